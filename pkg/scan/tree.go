package scan

import (
	"context"
	"fmt"
	"io/fs"
	"os"
	"path/filepath"
	"slices"

	"github.com/samber/lo"
	"go.uber.org/zap"

	"github.com/chazu/usdassemble/pkg/asset"
	"github.com/chazu/usdassemble/pkg/scene"
)

// Result is the outcome of scanning one asset root.
type Result struct {
	Root       string // absolute asset root
	Name       string // asset name, the base name of Root
	Type       asset.ComponentType
	Container  string // absolute path of the scanned container directory
	Components []asset.ComponentInfo
	Rejected   []asset.Rejected
}

// Scanner walks an asset root and builds every component below its container.
type Scanner struct {
	Builder *ComponentBuilder
	Logger  *zap.Logger
}

// New returns a Scanner classifying with tax.
func New(tax asset.Taxonomy, logger *zap.Logger) *Scanner {
	if logger == nil {
		logger = zap.NewNop()
	}
	c := NewClassifier(tax)
	return &Scanner{
		Builder: &ComponentBuilder{
			Classifier: c,
			Variants:   &VariantDetector{Classifier: c, Logger: logger},
		},
		Logger: logger,
	}
}

type built struct {
	info asset.ComponentInfo
	err  error
}

// Scan enumerates the container of root. The base name of root is the asset
// name and must be a valid prim name. components/ takes precedence over
// subcomponents/. Invalid components and components failing validation are
// reported in Result.Rejected and scanning continues; an empty valid set is
// a NoValidComponentsError.
func (s *Scanner) Scan(ctx context.Context, root string) (*Result, error) {
	abs, err := filepath.Abs(root)
	if err != nil {
		return nil, fmt.Errorf("scan: resolve root %s: %w", root, err)
	}
	if name := filepath.Base(abs); !scene.ValidName(name) {
		return nil, &asset.InvalidNameError{What: "asset", Name: name}
	}

	var found []asset.ComponentType
	for _, t := range asset.ComponentTypes() {
		if isDir(filepath.Join(abs, t.Directory())) {
			found = append(found, t)
		}
	}
	if len(found) == 0 {
		return nil, &asset.NoContainerError{Root: abs}
	}
	ct := found[0]
	for _, ignored := range found[1:] {
		s.Logger.Warn("container ignored, another container takes precedence",
			zap.String("root", abs),
			zap.String("ignored", ignored.Directory()),
			zap.String("used", ct.Directory()),
		)
	}

	container := filepath.Join(abs, ct.Directory())
	entries, err := os.ReadDir(container)
	if err != nil {
		return nil, fmt.Errorf("scan: read container %s: %w", container, err)
	}
	names := lo.FilterMap(entries, func(e fs.DirEntry, _ int) (string, bool) {
		return e.Name(), e.IsDir() && !isHidden(e.Name())
	})
	slices.Sort(names)

	results := make([]built, 0, len(names))
	for _, name := range names {
		if err := ctx.Err(); err != nil {
			return nil, err
		}
		dir := filepath.Join(container, name)
		info, err := s.Builder.Build(dir, ct)
		if err != nil && asset.KindOf(err) != asset.KindValidation {
			return nil, err
		}
		if err == nil && !info.IsValid() {
			err = &asset.MissingGeometryError{Component: name, Path: filepath.Join(dir, asset.GeometryFileName(name))}
		}
		if err != nil {
			s.Logger.Warn("component rejected", zap.String("component", name), zap.Error(err))
			info = asset.ComponentInfo{Name: name, Type: ct}
		}
		results = append(results, built{info: info, err: err})
	}

	valid := lo.FilterMap(results, func(b built, _ int) (asset.ComponentInfo, bool) {
		return b.info, b.err == nil
	})
	rejected := lo.FilterMap(results, func(b built, _ int) (asset.Rejected, bool) {
		return asset.Rejected{Name: b.info.Name, Reason: b.err}, b.err != nil
	})

	if len(valid) == 0 {
		return nil, &asset.NoValidComponentsError{Root: abs, Type: ct, Rejected: rejected}
	}

	s.Logger.Info("scan complete",
		zap.String("root", abs),
		zap.String("type", ct.String()),
		zap.Int("valid", len(valid)),
		zap.Int("rejected", len(rejected)),
	)
	return &Result{
		Root:       abs,
		Name:       filepath.Base(abs),
		Type:       ct,
		Container:  container,
		Components: valid,
		Rejected:   rejected,
	}, nil
}

func isDir(p string) bool {
	fi, err := os.Stat(p)
	return err == nil && fi.IsDir()
}
