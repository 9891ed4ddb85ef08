package asset

import (
	"fmt"
	"io"
	"path"
	"slices"
	"strings"

	"github.com/Masterminds/semver/v3"
	"gopkg.in/yaml.v3"
)

// TextureSlot is a semantic texture channel name.
type TextureSlot string

const (
	SlotBaseColor    TextureSlot = "base_color"
	SlotMetalness    TextureSlot = "metalness"
	SlotRoughness    TextureSlot = "roughness"
	SlotNormal       TextureSlot = "normal"
	SlotSpecular     TextureSlot = "specular"
	SlotScattering   TextureSlot = "scattering"
	SlotDiffuse      TextureSlot = "diffuse"
	SlotEmissive     TextureSlot = "emissive"
	SlotDisplacement TextureSlot = "displacement"
	SlotOpacity      TextureSlot = "opacity"
	SlotOcclusion    TextureSlot = "occlusion"
	SlotReflection   TextureSlot = "reflection"
	SlotRefraction   TextureSlot = "refraction"
	SlotSheen        TextureSlot = "sheen"
	SlotTransmission TextureSlot = "transmission"
)

// DefaultTaxonomyVersion versions the built-in slot table. Any change to the
// set of slots or extensions requires a new version.
const DefaultTaxonomyVersion = "1.0.0"

// SupportedTaxonomyRange is the range of taxonomy versions this build reads.
const SupportedTaxonomyRange = ">= 1.0.0, < 2.0.0"

// SlotPattern binds a slot to its filename token. A file matches the slot
// when its name glob-matches *<Token>*<ext> for an accepted extension.
type SlotPattern struct {
	Slot  TextureSlot `yaml:"name"`
	Token string      `yaml:"token"`
}

// Taxonomy is the closed slot table used by the classifier. Treat it as an
// immutable value; Default* constructors return a fresh copy each call.
type Taxonomy struct {
	Version    string        `yaml:"version"`
	Slots      []SlotPattern `yaml:"slots"`
	Extensions []string      `yaml:"extensions"`
}

// DefaultTaxonomy returns the built-in 15-slot taxonomy.
func DefaultTaxonomy() Taxonomy {
	slots := []TextureSlot{
		SlotBaseColor, SlotMetalness, SlotRoughness, SlotNormal, SlotSpecular,
		SlotScattering, SlotDiffuse, SlotEmissive, SlotDisplacement, SlotOpacity,
		SlotOcclusion, SlotReflection, SlotRefraction, SlotSheen, SlotTransmission,
	}
	t := Taxonomy{
		Version:    DefaultTaxonomyVersion,
		Extensions: []string{".jpg", ".png", ".exr", ".tif", ".tiff"},
	}
	for _, s := range slots {
		t.Slots = append(t.Slots, SlotPattern{Slot: s, Token: string(s)})
	}
	return t
}

// SlotNames returns the slot names in table order.
func (t Taxonomy) SlotNames() []TextureSlot {
	out := make([]TextureSlot, len(t.Slots))
	for i, s := range t.Slots {
		out[i] = s.Slot
	}
	return out
}

// Has reports whether slot is part of the taxonomy.
func (t Taxonomy) Has(slot TextureSlot) bool {
	return slices.Contains(t.SlotNames(), slot)
}

// Match returns every slot whose pattern matches filename, in table order.
// Matching is case-sensitive and only accepted extensions match.
func (t Taxonomy) Match(filename string) []TextureSlot {
	var out []TextureSlot
	for _, s := range t.Slots {
		for _, ext := range t.Extensions {
			if ok, _ := path.Match("*"+s.Token+"*"+ext, filename); ok {
				out = append(out, s.Slot)
				break
			}
		}
	}
	return out
}

// Validate checks the table for internal consistency and version discipline.
func (t Taxonomy) Validate() error {
	v, err := semver.NewVersion(t.Version)
	if err != nil {
		return &TaxonomyError{Reason: fmt.Sprintf("parse version %q: %v", t.Version, err)}
	}
	supported, err := semver.NewConstraint(SupportedTaxonomyRange)
	if err != nil {
		return &TaxonomyError{Reason: err.Error()}
	}
	if !supported.Check(v) {
		return &TaxonomyError{Reason: fmt.Sprintf("version %s outside supported range %q", v, SupportedTaxonomyRange)}
	}
	if len(t.Slots) == 0 {
		return &TaxonomyError{Reason: "no slots"}
	}
	if len(t.Extensions) == 0 {
		return &TaxonomyError{Reason: "no extensions"}
	}

	names := make(map[TextureSlot]bool)
	tokens := make(map[string]bool)
	for _, s := range t.Slots {
		if s.Slot == "" || s.Token == "" {
			return &TaxonomyError{Reason: "slot with empty name or token"}
		}
		if strings.ContainsAny(s.Token, `*?[]\/`) {
			return &TaxonomyError{Reason: fmt.Sprintf("slot %q: token %q contains glob metacharacters", s.Slot, s.Token)}
		}
		if names[s.Slot] {
			return &TaxonomyError{Reason: fmt.Sprintf("duplicate slot %q", s.Slot)}
		}
		if tokens[s.Token] {
			return &TaxonomyError{Reason: fmt.Sprintf("duplicate token %q", s.Token)}
		}
		names[s.Slot] = true
		tokens[s.Token] = true
	}

	exts := make(map[string]bool)
	for _, e := range t.Extensions {
		if !strings.HasPrefix(e, ".") || len(e) < 2 {
			return &TaxonomyError{Reason: fmt.Sprintf("extension %q must start with a dot", e)}
		}
		if exts[e] {
			return &TaxonomyError{Reason: fmt.Sprintf("duplicate extension %q", e)}
		}
		exts[e] = true
	}

	def := DefaultTaxonomy()
	if v.Equal(semver.MustParse(DefaultTaxonomyVersion)) && !t.sameTable(def) {
		return &TaxonomyError{Reason: fmt.Sprintf("slot table differs from built-in %s without a version bump", DefaultTaxonomyVersion)}
	}
	return nil
}

func (t Taxonomy) sameTable(o Taxonomy) bool {
	return slices.Equal(t.Slots, o.Slots) && slices.Equal(t.Extensions, o.Extensions)
}

// OutputMapping connects a node-graph output to a shader input.
type OutputMapping struct {
	Output string `yaml:"output"`
	Input  string `yaml:"input"`
}

// ShaderMapping is the ordered output-to-input table used when wiring
// per-variant shaders.
type ShaderMapping []OutputMapping

// DefaultShaderMapping returns the built-in table.
func DefaultShaderMapping() ShaderMapping {
	return ShaderMapping{
		{Output: "base_color_output", Input: "base_color"},
		{Output: "metalness_output", Input: "base_metalness"},
		{Output: "roughness_output", Input: "specular_roughness"},
		{Output: "normal_output", Input: "geometry_normal"},
	}
}

// Input returns the shader input mapped to output.
func (m ShaderMapping) Input(output string) (string, bool) {
	for _, e := range m {
		if e.Output == output {
			return e.Input, true
		}
	}
	return "", false
}

// Profile bundles a taxonomy with its shader mapping.
type Profile struct {
	Taxonomy Taxonomy
	Mapping  ShaderMapping
}

// DefaultProfile returns the built-in taxonomy and mapping.
func DefaultProfile() Profile {
	return Profile{Taxonomy: DefaultTaxonomy(), Mapping: DefaultShaderMapping()}
}

type profileFile struct {
	Taxonomy      `yaml:",inline"`
	ShaderMapping []OutputMapping `yaml:"shader_mapping"`
}

// LoadProfile reads a YAML taxonomy file. Omitted extensions and shader
// mapping fall back to the built-in ones. The result is validated.
func LoadProfile(r io.Reader) (Profile, error) {
	var f profileFile
	dec := yaml.NewDecoder(r)
	dec.KnownFields(true)
	if err := dec.Decode(&f); err != nil {
		return Profile{}, fmt.Errorf("asset: decode taxonomy: %w", err)
	}
	if len(f.Extensions) == 0 {
		f.Extensions = DefaultTaxonomy().Extensions
	}
	for i := range f.Slots {
		if f.Slots[i].Token == "" {
			f.Slots[i].Token = string(f.Slots[i].Slot)
		}
	}
	p := Profile{Taxonomy: f.Taxonomy, Mapping: f.ShaderMapping}
	if len(p.Mapping) == 0 {
		p.Mapping = DefaultShaderMapping()
	}
	if err := p.Taxonomy.Validate(); err != nil {
		return Profile{}, err
	}
	return p, nil
}
