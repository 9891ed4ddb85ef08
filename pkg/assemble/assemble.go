// Package assemble runs the whole pipeline for one asset root: scan,
// compose every valid component on a bounded worker pool, then write the
// assembly document.
package assemble

import (
	"context"
	"errors"
	"fmt"
	"runtime"
	"time"

	"go.uber.org/zap"
	"golang.org/x/sync/errgroup"

	"github.com/chazu/usdassemble/pkg/asset"
	"github.com/chazu/usdassemble/pkg/compose"
	"github.com/chazu/usdassemble/pkg/logging"
	"github.com/chazu/usdassemble/pkg/metrics"
	"github.com/chazu/usdassemble/pkg/scan"
)

// ComponentReport is the outcome of one component.
type ComponentReport struct {
	Name     string
	Type     asset.ComponentType
	Variants []string
	Textures int
	Status   string // metrics.StatusOK, StatusFailed or StatusSkipped
	Duration time.Duration
	Err      error
}

// Report is the outcome of one run. Components are in scan order.
type Report struct {
	RunID      string
	Root       string
	Name       string
	Type       asset.ComponentType
	Components []ComponentReport
	Rejected   []asset.Rejected
	Assembly   string // path of the assembly document, empty if not written
	DryRun     bool
}

// Failed returns the components whose composition failed.
func (r *Report) Failed() []ComponentReport {
	var out []ComponentReport
	for _, c := range r.Components {
		if c.Status == metrics.StatusFailed {
			out = append(out, c)
		}
	}
	return out
}

// Builder wires the scanner and composer together.
type Builder struct {
	Scanner  *scan.Scanner
	Composer *compose.Composer
	Workers  int
	Metrics  *metrics.Recorder
	Logger   *zap.Logger
}

// Build assembles the asset at root. With dryRun set it scans and reports
// without writing anything. Composition stops at the first failing
// component: components not yet started are skipped, those already
// composed stay on disk and the assembly document is not written. The
// report is returned alongside any error once scanning succeeded.
func (b *Builder) Build(ctx context.Context, root string, dryRun bool) (*Report, error) {
	runID := logging.NewRunID()
	log := logging.WithRun(b.logger(), runID)

	res, err := b.Scanner.Scan(ctx, root)
	if err != nil {
		var none *asset.NoValidComponentsError
		if errors.As(err, &none) {
			b.Metrics.Scanned(0, len(none.Rejected))
		}
		return nil, err
	}
	b.Metrics.Scanned(len(res.Components), len(res.Rejected))

	report := newReport(runID, res, dryRun)
	if dryRun {
		log.Info("dry run, nothing written", zap.String("root", res.Root), zap.Int("components", len(res.Components)))
		return report, nil
	}

	workers := b.Workers
	if workers < 1 {
		workers = runtime.NumCPU()
	}
	g, gctx := errgroup.WithContext(ctx)
	g.SetLimit(workers)
	for i, info := range res.Components {
		cr := &report.Components[i]
		g.Go(func() (err error) {
			if gctx.Err() != nil {
				b.Metrics.Composed(metrics.StatusSkipped, 0, 0)
				return nil
			}
			defer func() {
				if r := recover(); r != nil {
					err = fmt.Errorf("assemble: panic composing %s: %v", info.Name, r)
					cr.Status, cr.Err = metrics.StatusFailed, err
					b.Metrics.Composed(metrics.StatusFailed, 0, 0)
				}
			}()
			return b.composeOne(gctx, log, res.Root, info, cr)
		})
	}
	if err := g.Wait(); err != nil {
		log.Error("assembly aborted", zap.Error(err))
		return report, err
	}

	if err := b.Composer.ComposeAssembly(ctx, res); err != nil {
		return report, err
	}
	report.Assembly = compose.AssemblyPath(res)
	log.Info("asset assembled",
		zap.String("root", res.Root),
		zap.String("assembly", report.Assembly),
		zap.Int("components", len(res.Components)),
		zap.Int("rejected", len(res.Rejected)),
	)
	return report, nil
}

func (b *Builder) composeOne(ctx context.Context, log *zap.Logger, root string, info asset.ComponentInfo, cr *ComponentReport) error {
	start := time.Now()
	err := b.Composer.ComposeComponent(ctx, root, info)
	cr.Duration = time.Since(start)

	switch {
	case err == nil:
		cr.Status = metrics.StatusOK
		b.Metrics.Composed(metrics.StatusOK, len(info.Variants), cr.Duration)
		return nil
	case ctx.Err() != nil && errors.Is(err, context.Canceled):
		cr.Status = metrics.StatusSkipped
		b.Metrics.Composed(metrics.StatusSkipped, 0, 0)
	default:
		cr.Status, cr.Err = metrics.StatusFailed, err
		b.Metrics.Composed(metrics.StatusFailed, 0, 0)
		log.Error("component failed", zap.String("component", info.Name), zap.Error(err))
	}
	return err
}

func newReport(runID string, res *scan.Result, dryRun bool) *Report {
	r := &Report{
		RunID:      runID,
		Root:       res.Root,
		Name:       res.Name,
		Type:       res.Type,
		Components: make([]ComponentReport, len(res.Components)),
		Rejected:   res.Rejected,
		DryRun:     dryRun,
	}
	for i, info := range res.Components {
		r.Components[i] = ComponentReport{
			Name:     info.Name,
			Type:     info.Type,
			Variants: info.VariantNames(),
			Textures: info.TextureCount(),
			Status:   metrics.StatusSkipped,
		}
	}
	return r
}

func (b *Builder) logger() *zap.Logger {
	if b.Logger == nil {
		return zap.NewNop()
	}
	return b.Logger
}
