package scan_test

import (
	"errors"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"
	"go.uber.org/zap/zaptest/observer"

	"github.com/chazu/usdassemble/pkg/asset"
	"github.com/chazu/usdassemble/pkg/scan"
)

func newDetector(logger *zap.Logger) *scan.VariantDetector {
	return &scan.VariantDetector{Classifier: scan.NewClassifier(asset.DefaultTaxonomy()), Logger: logger}
}

func TestDetectFlatAndMissing(t *testing.T) {
	comp := t.TempDir()
	d := newDetector(nil)

	got, err := d.Detect(filepath.Join(comp, "textures"), comp, "A")
	require.NoError(t, err)
	assert.Nil(t, got)

	touch(t, comp, "textures/A_base_color.png")
	mkdir(t, comp, "textures/.hidden")
	got, err = d.Detect(filepath.Join(comp, "textures"), comp, "A")
	require.NoError(t, err)
	assert.Nil(t, got)
}

// Variants come back in name order whatever order they were created in.
func TestDetectVariantsSorted(t *testing.T) {
	comp := t.TempDir()
	touch(t, comp,
		"textures/wood/B_base_color.png",
		"textures/metal/B_base_color.png",
		"textures/metal/B_roughness.png",
		"textures/cloth/B_base_color.jpg",
	)
	got, err := newDetector(nil).Detect(filepath.Join(comp, "textures"), comp, "B")
	require.NoError(t, err)
	require.Len(t, got, 3)
	assert.Equal(t, []string{"cloth", "metal", "wood"}, []string{got[0].Name, got[1].Name, got[2].Name})
	assert.Equal(t, asset.TextureMap{
		asset.SlotBaseColor: "textures/metal/B_base_color.png",
		asset.SlotRoughness: "textures/metal/B_roughness.png",
	}, got[1].Textures)
	assert.Equal(t, "metal variant of B", got[1].Description)
}

// One bad variant fails the whole detection and names the variant.
func TestDetectFailingVariant(t *testing.T) {
	comp := t.TempDir()
	touch(t, comp,
		"textures/metal/B_base_color.png",
		"textures/wood/B_base_color.png",
		"textures/wood/B_base_color_alt.png",
	)
	got, err := newDetector(nil).Detect(filepath.Join(comp, "textures"), comp, "B")
	require.Error(t, err)
	assert.Nil(t, got)

	var ve *asset.VariantError
	require.True(t, errors.As(err, &ve))
	assert.Equal(t, "wood", ve.Variant)
	assert.Contains(t, err.Error(), `"wood"`)

	var dup *asset.DuplicateTextureError
	require.True(t, errors.As(err, &dup))
	assert.Equal(t, asset.SlotBaseColor, dup.Slot)
}

func TestDetectWarnsOnLooseRootFiles(t *testing.T) {
	comp := t.TempDir()
	touch(t, comp,
		"textures/B_base_color.png",
		"textures/metal/B_base_color.png",
	)
	core, logs := observer.New(zap.WarnLevel)
	got, err := newDetector(zap.New(core)).Detect(filepath.Join(comp, "textures"), comp, "B")
	require.NoError(t, err)
	require.Len(t, got, 1)

	entries := logs.FilterMessage("ignoring files in texture root of a variant component").All()
	require.Len(t, entries, 1)
	assert.Equal(t, "B", entries[0].ContextMap()["component"])
}
