package main

import (
	"context"
	"errors"
	"fmt"

	"go.uber.org/zap"

	"github.com/chazu/usdassemble/pkg/assemble"
	"github.com/chazu/usdassemble/pkg/asset"
	"github.com/chazu/usdassemble/pkg/compose"
	"github.com/chazu/usdassemble/pkg/config"
	"github.com/chazu/usdassemble/pkg/material/mtlx"
	"github.com/chazu/usdassemble/pkg/metrics"
	"github.com/chazu/usdassemble/pkg/scan"
)

// App wires configuration into the assembly pipeline. Every command runs
// through it.
type App struct {
	cfg     config.Config
	logger  *zap.Logger
	profile asset.Profile
	builder *assemble.Builder
	metrics *metrics.Recorder
}

// NewApp builds the pipeline described by cfg.
func NewApp(cfg config.Config, logger *zap.Logger) (*App, error) {
	if logger == nil {
		logger = zap.NewNop()
	}
	profile, err := cfg.Profile()
	if err != nil {
		return nil, err
	}
	templates, err := cfg.Templates()
	if err != nil {
		return nil, err
	}
	sceneBackend, err := cfg.Scene()
	if err != nil {
		return nil, err
	}

	rec := metrics.New()
	return &App{
		cfg:     cfg,
		logger:  logger,
		profile: profile,
		metrics: rec,
		builder: &assemble.Builder{
			Scanner:  scan.New(profile.Taxonomy, logger),
			Composer: compose.New(sceneBackend, mtlx.New(), templates, profile.Mapping, cfg.ComposeOptions(), logger),
			Workers:  cfg.Workers,
			Metrics:  rec,
			Logger:   logger,
		},
	}, nil
}

// Scan reads the asset at root without writing anything.
func (a *App) Scan(ctx context.Context, root string) (*scan.Result, error) {
	return a.builder.Scanner.Scan(ctx, root)
}

// Validate scans root and fails when any component was rejected.
func (a *App) Validate(ctx context.Context, root string) (*scan.Result, error) {
	res, err := a.Scan(ctx, root)
	if err != nil {
		return nil, err
	}
	if len(res.Rejected) == 0 {
		return res, nil
	}
	reasons := make([]error, len(res.Rejected))
	for i, r := range res.Rejected {
		reasons[i] = r.Reason
	}
	return res, fmt.Errorf("%d of %d %s rejected: %w",
		len(res.Rejected), len(res.Rejected)+len(res.Components), res.Type.Directory(), errors.Join(reasons...))
}

// Assemble runs the full pipeline on root and writes the metrics textfile
// when one is configured.
func (a *App) Assemble(ctx context.Context, root string, dryRun bool) (*assemble.Report, error) {
	report, err := a.builder.Build(ctx, root, dryRun)
	a.writeMetrics()
	return report, err
}

// Watch assembles root on every change until ctx is done.
func (a *App) Watch(ctx context.Context, root string, onBuild func(*assemble.Report, error)) error {
	w := &assemble.Watcher{
		Builder:  a.builder,
		Debounce: assemble.DefaultDebounce,
		Logger:   a.logger,
		OnBuild: func(r *assemble.Report, err error) {
			a.writeMetrics()
			if onBuild != nil {
				onBuild(r, err)
			}
		},
	}
	return w.Run(ctx, root)
}

func (a *App) writeMetrics() {
	if a.cfg.MetricsTextfile == "" {
		return
	}
	if err := a.metrics.WriteTextfile(a.cfg.MetricsTextfile); err != nil {
		a.logger.Warn("cannot write metrics textfile", zap.String("path", a.cfg.MetricsTextfile), zap.Error(err))
	}
}
