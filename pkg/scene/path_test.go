package scene_test

import (
	"errors"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/chazu/usdassemble/pkg/scene"
)

func TestSplitPath(t *testing.T) {
	got, err := scene.SplitPath("/Chair/Geometry/Render")
	require.NoError(t, err)
	assert.Equal(t, []string{"Chair", "Geometry", "Render"}, got)

	got, err = scene.SplitPath("/")
	require.NoError(t, err)
	assert.Empty(t, got)

	for _, bad := range []string{"Chair", "/Chair//Render", "/9lives", "/a b", ""} {
		_, err := scene.SplitPath(bad)
		assert.True(t, errors.Is(err, scene.ErrInvalidPath), bad)
	}
}

func TestPathHelpers(t *testing.T) {
	assert.Equal(t, "/A/Materials", scene.JoinPath("A", "Materials"))
	assert.True(t, scene.IsUnder("/A/Materials", "/A"))
	assert.True(t, scene.IsUnder("/A", "/A"))
	assert.False(t, scene.IsUnder("/AB", "/A"))
	assert.True(t, scene.ValidName("wood_2"))
	assert.False(t, scene.ValidName("wood-oak"))
	assert.True(t, scene.ValidVariantName("wood-oak_2"))
	assert.False(t, scene.ValidVariantName("-wood"))
}
