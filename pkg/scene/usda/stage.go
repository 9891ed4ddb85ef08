// Package usda is a scene backend that reads and writes the textual USD
// format. It understands the subset needed to compose component documents:
// prim specs, composition arcs, variant sets, kind and asset info metadata
// and relationships. Unknown metadata and properties are carried verbatim.
package usda

import (
	"fmt"
	"os"
	"regexp"
	"strings"
	"sync"

	"github.com/chazu/usdassemble/pkg/scene"
)

// Backend opens .usda files.
type Backend struct{}

// New returns the textual backend.
func New() *Backend { return &Backend{} }

// Open parses the document at path.
func (Backend) Open(path string) (scene.Stage, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("usda: open %s: %w", path, err)
	}
	layer, err := Parse(data)
	if err != nil {
		return nil, fmt.Errorf("usda: %s: %w", path, err)
	}
	return &Stage{path: path, layer: layer}, nil
}

// Create starts an empty document bound to path.
func (Backend) Create(path string) (scene.Stage, error) {
	return &Stage{path: path, layer: &Layer{}}, nil
}

type editTarget struct {
	prim    string
	variant *PrimSpec
}

// Stage is an open document. Its methods are safe for concurrent use;
// mutations are serialised.
type Stage struct {
	mu     sync.Mutex
	path   string
	layer  *Layer
	target *editTarget
	closed bool
}

var _ scene.Stage = (*Stage)(nil)

func (s *Stage) Path() string { return s.path }

// Layer exposes the underlying document. Callers must not retain it past Close.
func (s *Stage) Layer() *Layer {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.layer
}

// specFor returns the spec that authoring at path would write to under the
// current edit target. With create set, missing prims are authored as overs.
func (s *Stage) specFor(path string, create bool) (*PrimSpec, error) {
	if s.closed {
		return nil, scene.ErrClosed
	}
	names, err := scene.SplitPath(path)
	if err != nil {
		return nil, err
	}
	if len(names) == 0 {
		return nil, fmt.Errorf("%w: cannot author on the pseudo-root", scene.ErrInvalidPath)
	}
	if t := s.target; t != nil && scene.IsUnder(path, t.prim) {
		rel := names[strings.Count(t.prim, "/"):]
		if create {
			return ensureBelow(t.variant, rel), nil
		}
		return lookupBelow(t.variant, rel), nil
	}
	if create {
		return s.layer.ensure(names), nil
	}
	return s.layer.lookup(names), nil
}

// readSpec returns the spec at the edit target, falling back to the root layer.
func (s *Stage) readSpec(path string) *PrimSpec {
	spec, err := s.specFor(path, false)
	if err != nil {
		return nil
	}
	if spec == nil && s.target != nil {
		names, _ := scene.SplitPath(path)
		spec = s.layer.lookup(names)
	}
	return spec
}

func (s *Stage) mutate(path string, fn func(*PrimSpec) error) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	spec, err := s.specFor(path, true)
	if err != nil {
		return err
	}
	return fn(spec)
}

func (s *Stage) read(path string, fn func(*PrimSpec)) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if spec := s.readSpec(path); spec != nil {
		fn(spec)
	}
}

func (s *Stage) PrimAtPath(path string) (scene.Prim, bool) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.readSpec(path) == nil {
		return nil, false
	}
	return &prim{stage: s, path: path}, true
}

func (s *Stage) DefinePrim(path, typeName string) (scene.Prim, error) {
	err := s.mutate(path, func(spec *PrimSpec) error {
		if spec.Specifier == SpecifierOver {
			spec.Specifier = SpecifierDef
		}
		if typeName != "" {
			spec.TypeName = typeName
		}
		return nil
	})
	if err != nil {
		return nil, err
	}
	return &prim{stage: s, path: path}, nil
}

func (s *Stage) OverridePrim(path string) (scene.Prim, error) {
	if err := s.mutate(path, func(*PrimSpec) error { return nil }); err != nil {
		return nil, err
	}
	return &prim{stage: s, path: path}, nil
}

func (s *Stage) SetDefaultPrim(name string) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.closed {
		return scene.ErrClosed
	}
	if !scene.ValidName(name) {
		return fmt.Errorf("%w: default prim %q", scene.ErrInvalidPath, name)
	}
	s.layer.meta = setMeta(s.layer.meta, &metaEntry{key: "defaultPrim", kind: metaRaw, raw: fmt.Sprintf("%q", name)})
	return nil
}

// Save writes the document back to its own path.
func (s *Stage) Save() error {
	return s.Export(s.path)
}

// Export writes the document to path. Exporting while an edit scope is
// active is refused.
func (s *Stage) Export(path string) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.closed {
		return scene.ErrClosed
	}
	if s.target != nil {
		return scene.ErrEditScopeActive
	}
	if err := os.WriteFile(path, s.layer.Bytes(), 0o644); err != nil {
		return fmt.Errorf("usda: write %s: %w", path, err)
	}
	return nil
}

func (s *Stage) Close() error {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.closed = true
	s.layer = nil
	s.target = nil
	return nil
}

// ---------------------------------------------------------------------------
// Prim handle
// ---------------------------------------------------------------------------

type prim struct {
	stage *Stage
	path  string
}

func (p *prim) Path() string { return p.path }

func (p *prim) Name() string { return p.path[strings.LastIndex(p.path, "/")+1:] }

func (p *prim) TypeName() string {
	var out string
	p.stage.read(p.path, func(spec *PrimSpec) { out = spec.TypeName })
	return out
}

func (p *prim) SetTypeName(name string) error {
	return p.stage.mutate(p.path, func(spec *PrimSpec) error {
		spec.TypeName = name
		return nil
	})
}

func (p *prim) Kind() string {
	var out string
	p.stage.read(p.path, func(spec *PrimSpec) { out = spec.stringMeta("kind") })
	return out
}

func (p *prim) SetKind(kind string) error {
	if kind == "" {
		return fmt.Errorf("usda: %s: empty kind", p.path)
	}
	return p.stage.mutate(p.path, func(spec *PrimSpec) error {
		spec.setStringMeta("kind", kind)
		return nil
	})
}

func (p *prim) SetAssetInfo(identifier, name string) error {
	return p.stage.mutate(p.path, func(spec *PrimSpec) error {
		spec.meta = setMeta(spec.meta, &metaEntry{
			key:  "assetInfo",
			kind: metaDict,
			dict: []dictItem{
				{typ: "asset", key: "identifier", raw: "@" + identifier + "@"},
				{typ: "string", key: "name", raw: fmt.Sprintf("%q", name)},
			},
		})
		return nil
	})
}

func (p *prim) References() scene.ArcList { return &arcList{prim: p, key: "references"} }

func (p *prim) Payloads() scene.ArcList { return &arcList{prim: p, key: "payload"} }

func (p *prim) VariantSets() scene.VariantSets { return &variantSets{prim: p} }

func (p *prim) SetRelationship(name string, targets ...string) error {
	for _, t := range targets {
		if _, err := scene.SplitPath(t); err != nil {
			return err
		}
	}
	var value string
	switch len(targets) {
	case 0:
		value = "None"
	case 1:
		value = "<" + targets[0] + ">"
	default:
		items := make([]string, len(targets))
		for i, t := range targets {
			items[i] = "<" + t + ">"
		}
		value = "[" + strings.Join(items, ", ") + "]"
	}
	return p.stage.mutate(p.path, func(spec *PrimSpec) error {
		spec.setProperty(property{name: name, raw: "rel " + name + " = " + value})
		return nil
	})
}

var targetPattern = regexp.MustCompile(`<([^>]*)>`)

func (p *prim) Relationship(name string) ([]string, bool) {
	var (
		out []string
		ok  bool
	)
	p.stage.read(p.path, func(spec *PrimSpec) {
		prop, found := spec.property(name)
		if !found || !isRelationship(prop) {
			return
		}
		ok = true
		for _, m := range targetPattern.FindAllStringSubmatch(prop.raw, -1) {
			out = append(out, m[1])
		}
	})
	return out, ok
}

func isRelationship(p property) bool {
	for _, f := range strings.Fields(p.raw) {
		switch f {
		case "rel":
			return true
		case p.name:
			return false
		}
	}
	return false
}

// ---------------------------------------------------------------------------
// Arc lists
// ---------------------------------------------------------------------------

type arcList struct {
	prim *prim
	key  string
}

func (a *arcList) Add(assetPath, primPath string) error {
	if assetPath == "" && primPath == "" {
		return fmt.Errorf("usda: %s: empty %s arc", a.prim.path, a.key)
	}
	if primPath != "" {
		if _, err := scene.SplitPath(primPath); err != nil {
			return err
		}
	}
	return a.prim.stage.mutate(a.prim.path, func(spec *PrimSpec) error {
		spec.addArc(a.key, scene.Arc{AssetPath: assetPath, PrimPath: primPath})
		return nil
	})
}

func (a *arcList) Clear() error {
	return a.prim.stage.mutate(a.prim.path, func(spec *PrimSpec) error {
		spec.clearArcs(a.key)
		return nil
	})
}

func (a *arcList) Items() []scene.Arc {
	var out []scene.Arc
	a.prim.stage.read(a.prim.path, func(spec *PrimSpec) { out = spec.arcs(a.key) })
	return out
}

// ---------------------------------------------------------------------------
// Variant sets
// ---------------------------------------------------------------------------

type variantSets struct {
	prim *prim
}

func (v *variantSets) Add(name string) (scene.VariantSet, error) {
	if !scene.ValidName(name) {
		return nil, fmt.Errorf("usda: invalid variant set name %q", name)
	}
	err := v.prim.stage.mutate(v.prim.path, func(spec *PrimSpec) error {
		spec.addVariantSetName(name)
		if spec.variantSet(name) == nil {
			spec.variantSets = append(spec.variantSets, &VariantSetSpec{Name: name})
		}
		return nil
	})
	if err != nil {
		return nil, err
	}
	return &variantSet{prim: v.prim, name: name}, nil
}

func (v *variantSets) Get(name string) (scene.VariantSet, bool) {
	found := false
	v.prim.stage.read(v.prim.path, func(spec *PrimSpec) { found = spec.variantSet(name) != nil })
	if !found {
		return nil, false
	}
	return &variantSet{prim: v.prim, name: name}, true
}

func (v *variantSets) Names() []string {
	var out []string
	v.prim.stage.read(v.prim.path, func(spec *PrimSpec) { out = spec.variantSetNames() })
	return out
}

type variantSet struct {
	prim *prim
	name string
}

func (v *variantSet) Name() string { return v.name }

// setSpec finds the variant set spec on the prim in the root layer.
func (v *variantSet) setSpec() (*VariantSetSpec, error) {
	s := v.prim.stage
	if s.closed {
		return nil, scene.ErrClosed
	}
	names, err := scene.SplitPath(v.prim.path)
	if err != nil {
		return nil, err
	}
	spec := s.layer.lookup(names)
	if spec == nil {
		return nil, fmt.Errorf("usda: prim %s not found", v.prim.path)
	}
	vs := spec.variantSet(v.name)
	if vs == nil {
		return nil, fmt.Errorf("usda: %s: variant set %q not found", v.prim.path, v.name)
	}
	return vs, nil
}

func (v *variantSet) AddVariant(name string) error {
	if !scene.ValidVariantName(name) {
		return fmt.Errorf("usda: invalid variant name %q", name)
	}
	s := v.prim.stage
	s.mu.Lock()
	defer s.mu.Unlock()
	vs, err := v.setSpec()
	if err != nil {
		return err
	}
	if vs.variant(name) == nil {
		vs.Variants = append(vs.Variants, &PrimSpec{Specifier: specifierVariant, Name: name})
	}
	return nil
}

func (v *variantSet) Variants() []string {
	s := v.prim.stage
	s.mu.Lock()
	defer s.mu.Unlock()
	vs, err := v.setSpec()
	if err != nil {
		return nil
	}
	out := make([]string, len(vs.Variants))
	for i, variant := range vs.Variants {
		out[i] = variant.Name
	}
	return out
}

func (v *variantSet) SetSelection(name string) error {
	s := v.prim.stage
	s.mu.Lock()
	vs, err := v.setSpec()
	if err == nil && vs.variant(name) == nil {
		err = fmt.Errorf("%w: %q in set %q", scene.ErrUnknownVariant, name, v.name)
	}
	s.mu.Unlock()
	if err != nil {
		return err
	}
	return s.mutate(v.prim.path, func(spec *PrimSpec) error {
		spec.setSelection(v.name, name)
		return nil
	})
}

func (v *variantSet) Selection() string {
	var out string
	v.prim.stage.read(v.prim.path, func(spec *PrimSpec) { out = spec.selection(v.name) })
	return out
}

func (v *variantSet) Edit(variant string, fn func() error) error {
	s := v.prim.stage
	s.mu.Lock()
	if s.target != nil {
		s.mu.Unlock()
		return scene.ErrEditScopeActive
	}
	vs, err := v.setSpec()
	if err != nil {
		s.mu.Unlock()
		return err
	}
	spec := vs.variant(variant)
	if spec == nil {
		s.mu.Unlock()
		return fmt.Errorf("%w: %q in set %q", scene.ErrUnknownVariant, variant, v.name)
	}
	s.target = &editTarget{prim: v.prim.path, variant: spec}
	s.mu.Unlock()

	defer func() {
		s.mu.Lock()
		s.target = nil
		s.mu.Unlock()
	}()
	return fn()
}
