package usda

import (
	"errors"
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/chazu/usdassemble/pkg/scene"
)

func openCanonical(t *testing.T) (scene.Stage, string) {
	t.Helper()
	path := filepath.Join(t.TempDir(), "B.usd")
	require.NoError(t, os.WriteFile(path, []byte(canonical), 0o644))
	st, err := New().Open(path)
	require.NoError(t, err)
	t.Cleanup(func() { st.Close() })
	return st, path
}

const wantVariants = `#usda 1.0
(
    defaultPrim = "B"
    metersPerUnit = 1
    upAxis = "Y"
)

def Xform "B" (
    prepend payload = @./B_payload.usd@
    kind = "component"
    prepend variantSets = "material_variant"
    variants = {
        string material_variant = "metal"
    }
)
{
    variantSet "material_variant" = {
        "metal" {
            over "Materials" (
                references = @./B_mat.mtlx@</MaterialX/Materials>
            )
            {
            }

            over "Geometry"
            {
                over "Render"
                {
                    rel material:binding = </B/Materials/M_B_metal>
                }
            }
        }
        "wood" {
        }
    }
}
`

func TestStageVariantAuthoring(t *testing.T) {
	st, path := openCanonical(t)

	root, ok := st.PrimAtPath("/B")
	require.True(t, ok)
	require.NoError(t, root.SetKind("component"))

	vset, err := root.VariantSets().Add("material_variant")
	require.NoError(t, err)
	require.NoError(t, vset.AddVariant("metal"))
	require.NoError(t, vset.AddVariant("wood"))
	require.NoError(t, vset.SetSelection("metal"))

	err = vset.Edit("metal", func() error {
		mats, err := st.OverridePrim("/B/Materials")
		if err != nil {
			return err
		}
		if err := mats.References().Clear(); err != nil {
			return err
		}
		if err := mats.References().Add("./B_mat.mtlx", "/MaterialX/Materials"); err != nil {
			return err
		}
		render, err := st.OverridePrim("/B/Geometry/Render")
		if err != nil {
			return err
		}
		return render.SetRelationship("material:binding", "/B/Materials/M_B_metal")
	})
	require.NoError(t, err)

	require.NoError(t, st.Save())
	got, err := os.ReadFile(path)
	require.NoError(t, err)
	assert.Equal(t, wantVariants, string(got))

	assert.Equal(t, "component", root.Kind())
	assert.Equal(t, "metal", vset.Selection())
	assert.Equal(t, []string{"metal", "wood"}, vset.Variants())
	assert.Equal(t, []string{"material_variant"}, root.VariantSets().Names())
	_, inRoot := st.PrimAtPath("/B/Materials")
	assert.False(t, inRoot, "variant content must not leak into the root layer")
}

func TestStageEditScopeRestoredOnError(t *testing.T) {
	st, _ := openCanonical(t)
	root, _ := st.PrimAtPath("/B")
	vset, err := root.VariantSets().Add("material_variant")
	require.NoError(t, err)
	require.NoError(t, vset.AddVariant("metal"))

	boom := errors.New("boom")
	err = vset.Edit("metal", func() error {
		_, err := st.OverridePrim("/B/Looks")
		require.NoError(t, err)
		return boom
	})
	assert.ErrorIs(t, err, boom)

	// Authoring after the scope lands in the root layer again.
	_, err = st.OverridePrim("/B/After")
	require.NoError(t, err)
	_, ok := st.PrimAtPath("/B/After")
	assert.True(t, ok)
	_, ok = st.PrimAtPath("/B/Looks")
	assert.False(t, ok)
}

func TestStageEditScopeRules(t *testing.T) {
	st, _ := openCanonical(t)
	root, _ := st.PrimAtPath("/B")
	vset, err := root.VariantSets().Add("material_variant")
	require.NoError(t, err)
	require.NoError(t, vset.AddVariant("metal"))

	err = vset.Edit("stone", func() error { return nil })
	assert.ErrorIs(t, err, scene.ErrUnknownVariant)
	assert.ErrorIs(t, vset.SetSelection("stone"), scene.ErrUnknownVariant)

	err = vset.Edit("metal", func() error {
		if err := vset.Edit("metal", func() error { return nil }); !errors.Is(err, scene.ErrEditScopeActive) {
			return errors.New("nested scope was allowed")
		}
		if err := st.Save(); !errors.Is(err, scene.ErrEditScopeActive) {
			return errors.New("save inside scope was allowed")
		}
		return nil
	})
	assert.NoError(t, err)

	assert.Error(t, vset.AddVariant("-bad"))
	_, err = root.VariantSets().Add("bad-set")
	assert.Error(t, err)
}

func TestStageReferencesListOps(t *testing.T) {
	st, err := New().Create(filepath.Join(t.TempDir(), "x.usda"))
	require.NoError(t, err)
	defer st.Close()

	p, err := st.DefinePrim("/A", "Xform")
	require.NoError(t, err)
	refs := p.References()
	require.NoError(t, refs.Add("./one.usd", ""))
	require.NoError(t, refs.Add("./two.usd", "/Two"))
	require.NoError(t, refs.Add("./two.usd", "/Two"))
	assert.Equal(t, []scene.Arc{{AssetPath: "./one.usd"}, {AssetPath: "./two.usd", PrimPath: "/Two"}}, refs.Items())

	require.NoError(t, refs.Clear())
	assert.Empty(t, refs.Items())
	require.NoError(t, refs.Add("./three.usd", ""))
	assert.Equal(t, []scene.Arc{{AssetPath: "./three.usd"}}, refs.Items())

	require.NoError(t, p.Payloads().Add("./A_payload.usd", ""))
	require.NoError(t, st.SetDefaultPrim("A"))

	want := `#usda 1.0
(
    defaultPrim = "A"
)

def Xform "A" (
    references = @./three.usd@
    prepend payload = @./A_payload.usd@
)
{
}
`
	assert.Equal(t, want, string(st.(*Stage).Layer().Bytes()))
}

func TestStageDefineOverAndRelationships(t *testing.T) {
	st, err := New().Create(filepath.Join(t.TempDir(), "x.usda"))
	require.NoError(t, err)
	defer st.Close()

	over, err := st.OverridePrim("/A/Geometry/Render")
	require.NoError(t, err)
	assert.Equal(t, "Render", over.Name())

	def, err := st.DefinePrim("/A", "Xform")
	require.NoError(t, err)
	assert.Equal(t, "Xform", def.TypeName())

	require.NoError(t, over.SetRelationship("material:binding", "/A/Materials/M_A"))
	targets, ok := over.Relationship("material:binding")
	require.True(t, ok)
	assert.Equal(t, []string{"/A/Materials/M_A"}, targets)

	require.NoError(t, over.SetRelationship("material:binding", "/A/Materials/M_B"))
	targets, _ = over.Relationship("material:binding")
	assert.Equal(t, []string{"/A/Materials/M_B"}, targets)

	_, ok = over.Relationship("missing")
	assert.False(t, ok)
	assert.ErrorIs(t, over.SetRelationship("material:binding", "relative"), scene.ErrInvalidPath)

	require.NoError(t, def.SetAssetInfo("./A.usd", "A"))
	assert.Contains(t, string(st.(*Stage).Layer().Bytes()), "asset identifier = @./A.usd@")

	_, err = st.DefinePrim("A", "")
	assert.ErrorIs(t, err, scene.ErrInvalidPath)
}

func TestStageExportAndClose(t *testing.T) {
	st, path := openCanonical(t)
	out := filepath.Join(filepath.Dir(path), "copy.usda")
	require.NoError(t, st.Export(out))
	got, err := os.ReadFile(out)
	require.NoError(t, err)
	assert.Equal(t, canonical, string(got))
	assert.Equal(t, path, st.Path())

	require.NoError(t, st.Close())
	_, ok := st.PrimAtPath("/B")
	assert.False(t, ok)
	assert.ErrorIs(t, st.Save(), scene.ErrClosed)
	_, err = st.OverridePrim("/B")
	assert.ErrorIs(t, err, scene.ErrClosed)
}

func TestOpenMissingAndMalformed(t *testing.T) {
	_, err := New().Open(filepath.Join(t.TempDir(), "missing.usda"))
	assert.ErrorIs(t, err, os.ErrNotExist)

	bad := filepath.Join(t.TempDir(), "bad.usda")
	require.NoError(t, os.WriteFile(bad, []byte("not usd"), 0o644))
	_, err = New().Open(bad)
	var se *SyntaxError
	assert.True(t, errors.As(err, &se))
}

// Identical edit sequences produce byte-identical documents.
func TestStageDeterministic(t *testing.T) {
	render := func() string {
		st, _ := openCanonical(t)
		root, _ := st.PrimAtPath("/B")
		vset, err := root.VariantSets().Add("material_variant")
		require.NoError(t, err)
		for _, v := range []string{"a", "b", "c"} {
			require.NoError(t, vset.AddVariant(v))
			require.NoError(t, vset.Edit(v, func() error {
				p, err := st.OverridePrim("/B/Geometry/Render")
				if err != nil {
					return err
				}
				return p.SetRelationship("material:binding", "/B/Materials/M_B_"+v)
			}))
		}
		return string(st.(*Stage).Layer().Bytes())
	}
	assert.Equal(t, render(), render())
}
