// Package template loads the document templates a component is composed
// from and renders their placeholder tokens. Templates are laid out as a
// tree keyed by placeholder tokens; a default tree is embedded in the binary
// and a directory with the same layout overrides it.
package template

import (
	"embed"
	"errors"
	"fmt"
	"io/fs"
	"os"
	"path"
	"regexp"

	"github.com/chazu/usdassemble/pkg/asset"
)

//go:embed all:default
var embedded embed.FS

// Placeholder tokens understood by the default templates.
const (
	TokenAssemblyName  = "assembly_or_component_name"
	TokenComponentName = "component_or_subcomponent_name"
	TokenMaterialName  = "component_name"
	TokenUpAxis        = "up_axis"
	TokenMetersPerUnit = "meters_per_unit"
)

// Kind identifies one template document.
type Kind int

const (
	Main Kind = iota
	Payload
	Look
	Material
	Assembly
)

func (k Kind) String() string {
	switch k {
	case Main:
		return "main"
	case Payload:
		return "payload"
	case Look:
		return "look"
	case Material:
		return "material"
	case Assembly:
		return "assembly"
	default:
		return fmt.Sprintf("Kind(%d)", int(k))
	}
}

// Kinds lists every template kind in composition order.
func Kinds() []Kind {
	return []Kind{Material, Main, Payload, Look, Assembly}
}

const (
	assemblyDir  = "{$" + TokenAssemblyName + "}"
	componentDir = assemblyDir + "/components_or_subcomponents/{$" + TokenComponentName + "}"
)

// Path is the location of the template inside a template tree.
func (k Kind) Path() string {
	switch k {
	case Main:
		return componentDir + "/{$" + TokenComponentName + "}.usd"
	case Payload:
		return componentDir + "/{$" + TokenComponentName + "}_payload.usd"
	case Look:
		return componentDir + "/{$" + TokenComponentName + "}_look.usd"
	case Material:
		return componentDir + "/{$" + TokenMaterialName + "}_mat.mtlx"
	case Assembly:
		return assemblyDir + "/{$" + TokenAssemblyName + "}.usda"
	default:
		return ""
	}
}

// OutputName is the file name the rendered document is written to.
func (k Kind) OutputName(name string) string {
	switch k {
	case Main:
		return name + ".usd"
	case Payload:
		return name + "_payload.usd"
	case Look:
		return name + "_look.usd"
	case Material:
		return name + "_mat.mtlx"
	case Assembly:
		return name + ".usda"
	default:
		return ""
	}
}

// MissingTemplateError reports a template absent from the tree.
type MissingTemplateError struct {
	Source string
	Path   string
}

func (e *MissingTemplateError) Error() string {
	return fmt.Sprintf("template %s missing from %s", e.Path, e.Source)
}

func (e *MissingTemplateError) Kind() asset.ErrorKind { return asset.KindStructural }

// Set is a template tree.
type Set struct {
	fsys   fs.FS
	source string
}

// Default returns the embedded template tree.
func Default() *Set {
	sub, err := fs.Sub(embedded, "default")
	if err != nil {
		panic(err)
	}
	return &Set{fsys: sub, source: "embedded templates"}
}

// FromDir returns the template tree rooted at dir.
func FromDir(dir string) (*Set, error) {
	fi, err := os.Stat(dir)
	if err != nil {
		return nil, fmt.Errorf("template: %w", err)
	}
	if !fi.IsDir() {
		return nil, fmt.Errorf("template: %s is not a directory", dir)
	}
	return &Set{fsys: os.DirFS(dir), source: dir}, nil
}

// FromFS wraps an arbitrary filesystem.
func FromFS(fsys fs.FS, source string) *Set {
	return &Set{fsys: fsys, source: source}
}

// Source describes where the templates come from.
func (s *Set) Source() string { return s.source }

// Raw returns the unrendered template.
func (s *Set) Raw(k Kind) ([]byte, error) {
	p := k.Path()
	data, err := fs.ReadFile(s.fsys, p)
	if errors.Is(err, fs.ErrNotExist) {
		return nil, &MissingTemplateError{Source: s.source, Path: p}
	}
	if err != nil {
		return nil, fmt.Errorf("template: read %s: %w", path.Join(s.source, p), err)
	}
	return data, nil
}

// Render returns the template with vars substituted.
func (s *Set) Render(k Kind, vars Vars) ([]byte, error) {
	raw, err := s.Raw(k)
	if err != nil {
		return nil, err
	}
	return []byte(Substitute(string(raw), vars)), nil
}

// Validate checks that every template kind is present.
func (s *Set) Validate() error {
	var errs []error
	for _, k := range Kinds() {
		if _, err := s.Raw(k); err != nil {
			errs = append(errs, err)
		}
	}
	return errors.Join(errs...)
}

// Vars maps token names to values.
type Vars map[string]string

// With returns a copy of v with extra merged in.
func (v Vars) With(extra Vars) Vars {
	out := make(Vars, len(v)+len(extra))
	for k, val := range v {
		out[k] = val
	}
	for k, val := range extra {
		out[k] = val
	}
	return out
}

// ComponentVars binds the component name tokens.
func ComponentVars(name string) Vars {
	return Vars{TokenComponentName: name, TokenMaterialName: name}
}

// AssemblyVars binds the assembly name token.
func AssemblyVars(name string) Vars {
	return Vars{TokenAssemblyName: name}
}

var placeholder = regexp.MustCompile(`\$(?:(\$)|\{([_a-zA-Z][_a-zA-Z0-9]*)\}|([_a-zA-Z][_a-zA-Z0-9]*))`)

// Substitute replaces ${name} and $name with their values and $$ with $.
// Unknown names are left untouched.
func Substitute(text string, vars Vars) string {
	return placeholder.ReplaceAllStringFunc(text, func(m string) string {
		sub := placeholder.FindStringSubmatch(m)
		if sub[1] != "" {
			return "$"
		}
		name := sub[2] + sub[3]
		if v, ok := vars[name]; ok {
			return v
		}
		return m
	})
}
