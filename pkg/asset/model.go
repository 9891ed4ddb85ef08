package asset

import (
	"fmt"
	"path/filepath"
	"slices"
)

// TextureMap maps a slot to the POSIX path of its file, relative to the
// component directory. It is built only by the classifier.
type TextureMap map[TextureSlot]string

// Slots returns the populated slots sorted by name.
func (m TextureMap) Slots() []TextureSlot {
	out := make([]TextureSlot, 0, len(m))
	for s := range m {
		out = append(out, s)
	}
	slices.Sort(out)
	return out
}

// VariantInfo is one material variant of a component.
type VariantInfo struct {
	Name        string
	Textures    TextureMap
	Description string
}

// VariantDescription is the default description for a detected variant.
func VariantDescription(component, variant string) string {
	return fmt.Sprintf("%s variant of %s", variant, component)
}

// ComponentInfo is the scanned record of one component directory.
// Textures is populated only when the component has no variants.
type ComponentInfo struct {
	Name        string
	Type        ComponentType
	HasGeometry bool
	Variants    []VariantInfo
	Textures    TextureMap
}

// IsValid reports whether the component can be composed.
func (c ComponentInfo) IsValid() bool { return c.HasGeometry }

// HasVariants reports whether the component was scanned in variant mode.
func (c ComponentInfo) HasVariants() bool { return len(c.Variants) > 0 }

// HasMaterial reports whether a material document should be generated.
func (c ComponentInfo) HasMaterial() bool {
	return c.HasVariants() || len(c.Textures) > 0
}

// TextureCount is the number of classified textures across all variants.
func (c ComponentInfo) TextureCount() int {
	if !c.HasVariants() {
		return len(c.Textures)
	}
	n := 0
	for _, v := range c.Variants {
		n += len(v.Textures)
	}
	return n
}

// VariantNames returns variant names in detection order.
func (c ComponentInfo) VariantNames() []string {
	out := make([]string, len(c.Variants))
	for i, v := range c.Variants {
		out[i] = v.Name
	}
	return out
}

// DefaultVariant is the first detected variant, selected by default.
func (c ComponentInfo) DefaultVariant() (VariantInfo, bool) {
	if !c.HasVariants() {
		return VariantInfo{}, false
	}
	return c.Variants[0], true
}

// MaterialKey is the deterministic per-variant material key <component>_<variant>.
func (c ComponentInfo) MaterialKey(variant string) string {
	return c.Name + "_" + variant
}

// Dir returns the component directory under root.
func (c ComponentInfo) Dir(root string) string {
	return ComponentDir(root, c.Type, c.Name)
}

// GeometryPath returns the expected geometry file path under root.
func (c ComponentInfo) GeometryPath(root string) string {
	return filepath.Join(c.Dir(root), GeometryFileName(c.Name))
}
