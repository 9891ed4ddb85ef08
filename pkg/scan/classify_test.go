package scan_test

import (
	"errors"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/chazu/usdassemble/pkg/asset"
	"github.com/chazu/usdassemble/pkg/scan"
)

func TestClassifyFlat(t *testing.T) {
	comp := t.TempDir()
	touch(t, comp,
		"textures/A_base_color.png",
		"textures/A_roughness.exr",
		"textures/A_normal.tiff",
		"textures/.DS_Store",
	)
	mkdir(t, comp, "textures/.cache")

	c := scan.NewClassifier(asset.DefaultTaxonomy())
	got, err := c.Classify(filepath.Join(comp, "textures"), comp)
	require.NoError(t, err)
	assert.Equal(t, asset.TextureMap{
		asset.SlotBaseColor: "textures/A_base_color.png",
		asset.SlotRoughness: "textures/A_roughness.exr",
		asset.SlotNormal:    "textures/A_normal.tiff",
	}, got)
}

func TestClassifyMissingDir(t *testing.T) {
	c := scan.NewClassifier(asset.DefaultTaxonomy())
	got, err := c.Classify(filepath.Join(t.TempDir(), "nope"), "")
	require.NoError(t, err)
	assert.Empty(t, got)
}

// Two files for one slot must fail naming the slot and both files.
func TestClassifyDuplicate(t *testing.T) {
	comp := t.TempDir()
	touch(t, comp,
		"textures/A_base_color.png",
		"textures/A_base_color_2k.jpg",
		"textures/A_roughness.png",
	)
	c := scan.NewClassifier(asset.DefaultTaxonomy())
	got, err := c.Classify(filepath.Join(comp, "textures"), comp)
	require.Error(t, err)
	assert.Nil(t, got)

	var dup *asset.DuplicateTextureError
	require.True(t, errors.As(err, &dup))
	assert.Equal(t, asset.SlotBaseColor, dup.Slot)
	assert.Equal(t, []string{"A_base_color.png", "A_base_color_2k.jpg"}, dup.Filenames)
	assert.Equal(t, asset.KindValidation, asset.KindOf(err))
}

// A file matching no slot fails with exactly the unmatched names.
func TestClassifyUnrecognized(t *testing.T) {
	comp := t.TempDir()
	touch(t, comp,
		"textures/A_base_color.png",
		"textures/A_notes.txt",
		"textures/A_albedo.png",
	)
	c := scan.NewClassifier(asset.DefaultTaxonomy())
	got, err := c.Classify(filepath.Join(comp, "textures"), comp)
	require.Error(t, err)
	assert.Nil(t, got)

	var un *asset.UnrecognizedTextureError
	require.True(t, errors.As(err, &un))
	assert.Equal(t, []string{"A_albedo.png", "A_notes.txt"}, un.Filenames)
}

func TestClassifyAmbiguous(t *testing.T) {
	comp := t.TempDir()
	touch(t, comp, "textures/A_metalness_roughness.png")
	c := scan.NewClassifier(asset.DefaultTaxonomy())
	_, err := c.Classify(filepath.Join(comp, "textures"), comp)

	var amb *asset.AmbiguousTextureError
	require.True(t, errors.As(err, &amb))
	assert.Equal(t, "A_metalness_roughness.png", amb.Filename)
	assert.Equal(t, []asset.TextureSlot{asset.SlotMetalness, asset.SlotRoughness}, amb.Slots)
}

func TestClassifyDuplicateReportedBeforeUnrecognized(t *testing.T) {
	comp := t.TempDir()
	touch(t, comp,
		"textures/x_normal.png",
		"textures/y_normal.png",
		"textures/junk.bin",
	)
	c := scan.NewClassifier(asset.DefaultTaxonomy())
	_, err := c.Classify(filepath.Join(comp, "textures"), comp)
	var dup *asset.DuplicateTextureError
	assert.True(t, errors.As(err, &dup))
}

// Every slot of the taxonomy is reachable with every accepted extension.
func TestClassifyEverySlotAndExtension(t *testing.T) {
	tax := asset.DefaultTaxonomy()
	for _, ext := range tax.Extensions {
		t.Run(ext, func(t *testing.T) {
			comp := t.TempDir()
			for _, s := range tax.Slots {
				touch(t, comp, "textures/C_"+s.Token+ext)
			}
			got, err := scan.NewClassifier(tax).Classify(filepath.Join(comp, "textures"), comp)
			require.NoError(t, err)
			assert.Len(t, got, len(tax.Slots))
			for _, s := range tax.Slots {
				assert.Equal(t, "textures/C_"+s.Token+ext, got[s.Slot])
			}
		})
	}
}
