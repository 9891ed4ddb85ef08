package scan

import (
	"errors"
	"fmt"
	"os"
	"path/filepath"

	"github.com/chazu/usdassemble/pkg/asset"
	"github.com/chazu/usdassemble/pkg/scene"
)

// ComponentBuilder materialises the record of one component directory.
type ComponentBuilder struct {
	Classifier *Classifier
	Variants   *VariantDetector
}

// Build reads dir, whose base name is the component name and must be a
// valid prim name. Textures are classified only when no variants were
// detected. A texture failure on a component without geometry is joined
// with the MissingGeometryError so both reasons are reported.
func (b *ComponentBuilder) Build(dir string, t asset.ComponentType) (asset.ComponentInfo, error) {
	name := filepath.Base(dir)
	if !scene.ValidName(name) {
		return asset.ComponentInfo{}, &asset.InvalidNameError{What: "component", Name: name}
	}
	info := asset.ComponentInfo{Name: name, Type: t}

	geomPath := filepath.Join(dir, asset.GeometryFileName(name))
	geom, err := os.Stat(geomPath)
	info.HasGeometry = err == nil && geom.Mode().IsRegular()
	fail := func(err error) (asset.ComponentInfo, error) {
		if !info.HasGeometry {
			err = errors.Join(&asset.MissingGeometryError{Component: name, Path: geomPath}, err)
		}
		return asset.ComponentInfo{}, err
	}

	texDir := filepath.Join(dir, asset.TexturesDirName)
	variants, err := b.Variants.Detect(texDir, dir, name)
	if err != nil {
		return fail(err)
	}
	info.Variants = variants

	if !info.HasVariants() {
		textures, err := b.Classifier.Classify(texDir, dir)
		if err != nil {
			return fail(fmt.Errorf("component %s: %w", name, err))
		}
		info.Textures = textures
	}
	return info, nil
}
