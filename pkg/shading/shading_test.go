package shading_test

import (
	"bytes"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap/zaptest"

	"github.com/chazu/usdassemble/pkg/asset"
	"github.com/chazu/usdassemble/pkg/material"
	"github.com/chazu/usdassemble/pkg/material/mtlx"
	"github.com/chazu/usdassemble/pkg/shading"
	"github.com/chazu/usdassemble/pkg/template"
)

func templateDoc(t *testing.T, name string) material.Document {
	t.Helper()
	src, err := template.Default().Render(template.Material, template.ComponentVars(name))
	require.NoError(t, err)
	doc, err := mtlx.New().Parse(src)
	require.NoError(t, err)
	return doc
}

func render(t *testing.T, doc material.Document) string {
	t.Helper()
	var b bytes.Buffer
	_, err := doc.WriteTo(&b)
	require.NoError(t, err)
	return b.String()
}

func names[T interface{ Name() string }](items []T) []string {
	out := make([]string, len(items))
	for i, it := range items {
		out[i] = it.Name()
	}
	return out
}

func generator(t *testing.T) *shading.Generator {
	return shading.New(asset.DefaultShaderMapping(), zaptest.NewLogger(t))
}

// ---------------------------------------------------------------------------
// Flat components
// ---------------------------------------------------------------------------

func TestGenerateFlatBindsAndPrunes(t *testing.T) {
	doc := templateDoc(t, "Leg")
	info := asset.ComponentInfo{
		Name:        "Leg",
		Type:        asset.Component,
		HasGeometry: true,
		Textures: asset.TextureMap{
			asset.SlotBaseColor: "textures/leg_base_color.png",
			asset.SlotRoughness: "textures/leg_roughness.png",
		},
	}
	require.NoError(t, generator(t).Generate(doc, info))

	ng, ok := doc.NodeGraph("NG_Leg")
	require.True(t, ok)
	assert.Equal(t, []string{"base_color", "roughness"}, names(ng.Nodes()))
	assert.Equal(t, []string{"base_color_output", "roughness_output"}, names(ng.Outputs()))

	bc, _ := ng.Node("base_color")
	file, ok := bc.Input("file")
	require.True(t, ok)
	assert.Equal(t, "textures/leg_base_color.png", file.Value())

	shader, ok := doc.Node("Leg")
	require.True(t, ok)
	assert.Equal(t, []string{"base_color", "specular_roughness"}, names(shader.Inputs()))
	_, ok = doc.Node("M_Leg")
	assert.True(t, ok)
}

func TestGenerateFlatPrunesNormalChain(t *testing.T) {
	doc := templateDoc(t, "Leg")
	info := asset.ComponentInfo{
		Name:     "Leg",
		Textures: asset.TextureMap{asset.SlotNormal: "textures/leg_normal.png"},
	}
	require.NoError(t, generator(t).Generate(doc, info))

	ng, _ := doc.NodeGraph("NG_Leg")
	assert.Equal(t, []string{"normal", "normal_map"}, names(ng.Nodes()))
	assert.Equal(t, []string{"normal_output"}, names(ng.Outputs()))
}

func TestGenerateFlatWithoutNormalDropsNormalMap(t *testing.T) {
	doc := templateDoc(t, "Leg")
	info := asset.ComponentInfo{
		Name:     "Leg",
		Textures: asset.TextureMap{asset.SlotMetalness: "textures/leg_metalness.exr"},
	}
	require.NoError(t, generator(t).Generate(doc, info))

	ng, _ := doc.NodeGraph("NG_Leg")
	assert.Equal(t, []string{"metalness"}, names(ng.Nodes()))
	out := render(t, doc)
	assert.NotContains(t, out, "normal_map")
	assert.NotContains(t, out, "normal_output")
}

func TestGenerateSlotWithoutTemplateNodeIsIgnored(t *testing.T) {
	doc := templateDoc(t, "Leg")
	info := asset.ComponentInfo{
		Name: "Leg",
		Textures: asset.TextureMap{
			asset.SlotBaseColor: "textures/leg_base_color.png",
			asset.SlotEmissive:  "textures/leg_emissive.png",
		},
	}
	require.NoError(t, generator(t).Generate(doc, info))
	assert.NotContains(t, render(t, doc), "emissive")
}

func TestGenerateMissingNodeGraph(t *testing.T) {
	doc := templateDoc(t, "Leg")
	err := generator(t).Generate(doc, asset.ComponentInfo{Name: "Arm"})
	var missing *shading.MissingNodeGraphError
	require.ErrorAs(t, err, &missing)
	assert.Equal(t, "NG_Arm", missing.Name)
	assert.Equal(t, asset.KindStructural, asset.KindOf(err))
}

// ---------------------------------------------------------------------------
// Variants
// ---------------------------------------------------------------------------

func variantInfo() asset.ComponentInfo {
	return asset.ComponentInfo{
		Name:        "Body",
		Type:        asset.Component,
		HasGeometry: true,
		Variants: []asset.VariantInfo{
			{Name: "metal", Textures: asset.TextureMap{
				asset.SlotBaseColor: "textures/metal/body_base_color.png",
				asset.SlotMetalness: "textures/metal/body_metalness.png",
			}},
			{Name: "wood", Textures: asset.TextureMap{
				asset.SlotBaseColor: "textures/wood/body_base_color.png",
				asset.SlotNormal:    "textures/wood/body_normal.png",
			}},
		},
	}
}

func TestGenerateVariants(t *testing.T) {
	doc := templateDoc(t, "Body")
	require.NoError(t, generator(t).Generate(doc, variantInfo()))

	assert.Equal(t, []string{"NG_Body_metal", "NG_Body_wood"}, names(doc.NodeGraphs()))
	assert.Equal(t,
		[]string{"Body_metal", "M_Body_metal", "Body_wood", "M_Body_wood"},
		names(doc.Nodes()))

	metal, _ := doc.NodeGraph("NG_Body_metal")
	assert.Equal(t, []string{"base_color", "metalness"}, names(metal.Nodes()))
	wood, _ := doc.NodeGraph("NG_Body_wood")
	assert.Equal(t, []string{"base_color", "normal", "normal_map"}, names(wood.Nodes()))

	bc, _ := wood.Node("base_color")
	file, _ := bc.Input("file")
	assert.Equal(t, "textures/wood/body_base_color.png", file.Value())

	shader, ok := doc.Node("Body_wood")
	require.True(t, ok)
	assert.Equal(t, "open_pbr_surface", shader.Category())
	assert.Equal(t, []string{"base_color", "geometry_normal"}, names(shader.Inputs()))
	in, _ := shader.Input("geometry_normal")
	assert.Equal(t, "NG_Body_wood", in.NodeGraph())
	assert.Equal(t, "normal_output", in.Output())
	assert.Equal(t, "vector3", in.Type())

	mat, _ := doc.Node("M_Body_metal")
	ss, ok := mat.Input("surfaceshader")
	require.True(t, ok)
	assert.Equal(t, "Body_metal", ss.NodeName())
}

func TestGenerateVariantsRemovesGenericNames(t *testing.T) {
	doc := templateDoc(t, "Body")
	require.NoError(t, generator(t).Generate(doc, variantInfo()))
	out := render(t, doc)
	assert.NotContains(t, out, `"NG_Body"`)
	assert.NotContains(t, out, `"M_Body"`)
	assert.NotContains(t, out, `name="Body"`)
	assert.NotContains(t, out, `nodename="Body"`)
}

func TestGenerateVariantsUsesMapping(t *testing.T) {
	doc := templateDoc(t, "Body")
	g := shading.New(asset.ShaderMapping{{Output: "base_color_output", Input: "diffuse_color"}}, nil)
	require.NoError(t, g.Generate(doc, variantInfo()))

	shader, _ := doc.Node("Body_metal")
	assert.Equal(t, []string{"diffuse_color"}, names(shader.Inputs()))
}

func TestGenerateVariantsEmptyTextures(t *testing.T) {
	doc := templateDoc(t, "Body")
	info := asset.ComponentInfo{
		Name:     "Body",
		Variants: []asset.VariantInfo{{Name: "bare", Textures: asset.TextureMap{}}},
	}
	require.NoError(t, generator(t).Generate(doc, info))

	ng, ok := doc.NodeGraph("NG_Body_bare")
	require.True(t, ok)
	assert.Empty(t, ng.Nodes())
	assert.Empty(t, ng.Outputs())
	shader, _ := doc.Node("Body_bare")
	assert.Empty(t, shader.Inputs())
}

func TestGenerateIsDeterministic(t *testing.T) {
	a := templateDoc(t, "Body")
	b := templateDoc(t, "Body")
	require.NoError(t, generator(t).Generate(a, variantInfo()))
	require.NoError(t, generator(t).Generate(b, variantInfo()))
	assert.Equal(t, render(t, a), render(t, b))
}
