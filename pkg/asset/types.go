package asset

import (
	"fmt"
	"path"
	"path/filepath"
)

// ComponentType is the closed set of component kinds an asset tree may hold.
type ComponentType int

const (
	Component ComponentType = iota
	Subcomponent
)

func (t ComponentType) String() string {
	switch t {
	case Component:
		return "component"
	case Subcomponent:
		return "subcomponent"
	default:
		return fmt.Sprintf("ComponentType(%d)", int(t))
	}
}

// Kind is the value written to the scene "kind" metadata.
func (t ComponentType) Kind() string {
	return t.String()
}

// Directory is the name of the container directory holding components of this type.
func (t ComponentType) Directory() string {
	switch t {
	case Component:
		return "components"
	case Subcomponent:
		return "subcomponents"
	default:
		return ""
	}
}

// ComponentTypes returns every component type in container precedence order.
func ComponentTypes() []ComponentType {
	return []ComponentType{Component, Subcomponent}
}

// ComponentTypeFromDirectory resolves a container directory name.
func ComponentTypeFromDirectory(name string) (ComponentType, bool) {
	for _, t := range ComponentTypes() {
		if t.Directory() == name {
			return t, true
		}
	}
	return 0, false
}

// GeometryFileName is the file whose presence makes a component valid.
func GeometryFileName(component string) string {
	return component + "_geom.usd"
}

// TexturesDirName is the texture root inside a component directory.
const TexturesDirName = "textures"

// VariantSetName is the variant set authored on every component with variants.
const VariantSetName = "material_variant"

// ComponentDir returns <root>/<container>/<name>.
func ComponentDir(root string, t ComponentType, name string) string {
	return filepath.Join(root, t.Directory(), name)
}

// ComponentRef is the POSIX path of a component's main document relative to
// the asset root, as referenced from the assembly document.
func ComponentRef(t ComponentType, name string) string {
	return "./" + path.Join(t.Directory(), name, name+".usd")
}
