package scan

import (
	"errors"
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

// VariantDetector decides between flat and variant texture layouts. A texture
// root with at least one visible subdirectory is in variant mode and each
// subdirectory is one variant.
type VariantDetector struct {
	Classifier *Classifier
	Logger     *zap.Logger
}

// Detect returns the variants under textureRoot in name order, or nil when
// the root is missing or flat. Texture paths are relative to componentDir.
// The first variant that fails classification aborts detection.
func (d *VariantDetector) Detect(textureRoot, componentDir, component string) ([]asset.VariantInfo, error) {
	entries, err := os.ReadDir(textureRoot)
	if errors.Is(err, fs.ErrNotExist) {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("scan: read texture root %s: %w", textureRoot, err)
	}

	visible := lo.Reject(entries, func(e fs.DirEntry, _ int) bool { return isHidden(e.Name()) })
	dirs, loose := lo.FilterReject(visible, func(e fs.DirEntry, _ int) bool { return e.IsDir() })
	if len(dirs) == 0 {
		return nil, nil
	}

	if len(loose) > 0 {
		d.logger().Warn("ignoring files in texture root of a variant component",
			zap.String("component", component),
			zap.Strings("files", lo.Map(loose, func(e fs.DirEntry, _ int) string { return e.Name() })),
		)
	}

	names := lo.Map(dirs, func(e fs.DirEntry, _ int) string { return e.Name() })
	slices.Sort(names)

	variants := make([]asset.VariantInfo, 0, len(names))
	for _, name := range names {
		if !scene.ValidName(name) {
			return nil, &asset.VariantError{Component: component, Variant: name, Err: &asset.InvalidNameError{What: "variant", Name: name}}
		}
		textures, err := d.Classifier.Classify(filepath.Join(textureRoot, name), componentDir)
		if err != nil {
			return nil, &asset.VariantError{Component: component, Variant: name, Err: err}
		}
		if len(textures) == 0 {
			d.logger().Warn("variant has no textures",
				zap.String("component", component), zap.String("variant", name))
		}
		variants = append(variants, asset.VariantInfo{
			Name:        name,
			Textures:    textures,
			Description: asset.VariantDescription(component, name),
		})
	}
	return variants, nil
}

func (d *VariantDetector) logger() *zap.Logger {
	if d.Logger == nil {
		return zap.NewNop()
	}
	return d.Logger
}
