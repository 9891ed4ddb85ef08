package usda

import (
	"slices"
	"strconv"
	"strings"

	"github.com/chazu/usdassemble/pkg/scene"
)

// Specifier is the prim specifier keyword.
type Specifier int

const (
	SpecifierDef Specifier = iota
	SpecifierOver
	SpecifierClass
	specifierVariant // body of a variant, no keyword
)

func (s Specifier) String() string {
	switch s {
	case SpecifierDef:
		return "def"
	case SpecifierOver:
		return "over"
	case SpecifierClass:
		return "class"
	default:
		return ""
	}
}

func parseSpecifier(s string) (Specifier, bool) {
	switch s {
	case "def":
		return SpecifierDef, true
	case "over":
		return SpecifierOver, true
	case "class":
		return SpecifierClass, true
	default:
		return 0, false
	}
}

type metaKind int

const (
	metaRaw metaKind = iota
	metaArcs
	metaStrings
	metaDict
)

type dictItem struct {
	typ string
	key string
	raw string
}

// metaEntry is one metadata statement. Known keys keep a structured value
// that is re-rendered on write; everything else is kept as source text.
type metaEntry struct {
	op   string // "", prepend, append, add, delete, reorder
	key  string // empty for a bare doc string
	kind metaKind
	raw  string
	arcs []scene.Arc
	none bool
	strs []string
	dict []dictItem
}

type property struct {
	name string
	raw  string
}

// PrimSpec is one prim, or the body of one variant.
type PrimSpec struct {
	Specifier   Specifier
	TypeName    string
	Name        string
	meta        []*metaEntry
	props       []property
	children    []*PrimSpec
	variantSets []*VariantSetSpec
}

// VariantSetSpec holds the variants of one set in authoring order.
type VariantSetSpec struct {
	Name     string
	Variants []*PrimSpec
}

// Layer is a parsed .usda document.
type Layer struct {
	meta  []*metaEntry
	prims []*PrimSpec
}

func (s *PrimSpec) child(name string) *PrimSpec {
	for _, c := range s.children {
		if c.Name == name {
			return c
		}
	}
	return nil
}

func (s *PrimSpec) variantSet(name string) *VariantSetSpec {
	for _, vs := range s.variantSets {
		if vs.Name == name {
			return vs
		}
	}
	return nil
}

func (vs *VariantSetSpec) variant(name string) *PrimSpec {
	for _, v := range vs.Variants {
		if v.Name == name {
			return v
		}
	}
	return nil
}

func (l *Layer) root(name string) *PrimSpec {
	for _, p := range l.prims {
		if p.Name == name {
			return p
		}
	}
	return nil
}

// lookup walks names from the layer root.
func (l *Layer) lookup(names []string) *PrimSpec {
	if len(names) == 0 {
		return nil
	}
	spec := l.root(names[0])
	for _, n := range names[1:] {
		if spec == nil {
			return nil
		}
		spec = spec.child(n)
	}
	return spec
}

// ensure walks names from the layer root, authoring overs for missing prims.
func (l *Layer) ensure(names []string) *PrimSpec {
	spec := l.root(names[0])
	if spec == nil {
		spec = &PrimSpec{Specifier: SpecifierOver, Name: names[0]}
		l.prims = append(l.prims, spec)
	}
	return ensureBelow(spec, names[1:])
}

func lookupBelow(spec *PrimSpec, names []string) *PrimSpec {
	for _, n := range names {
		if spec == nil {
			return nil
		}
		spec = spec.child(n)
	}
	return spec
}

func ensureBelow(spec *PrimSpec, names []string) *PrimSpec {
	for _, n := range names {
		c := spec.child(n)
		if c == nil {
			c = &PrimSpec{Specifier: SpecifierOver, Name: n}
			spec.children = append(spec.children, c)
		}
		spec = c
	}
	return spec
}

func findMeta(entries []*metaEntry, key string) (int, *metaEntry) {
	for i, m := range entries {
		if m.key == key && m.op == "" {
			return i, m
		}
	}
	return -1, nil
}

// setMeta replaces the explicit entry for m.key or appends m.
func setMeta(entries []*metaEntry, m *metaEntry) []*metaEntry {
	if i, _ := findMeta(entries, m.key); i >= 0 {
		entries[i] = m
		return entries
	}
	return append(entries, m)
}

func (s *PrimSpec) stringMeta(key string) string {
	_, m := findMeta(s.meta, key)
	if m == nil || m.kind != metaRaw {
		return ""
	}
	return unquote(m.raw)
}

func (s *PrimSpec) setStringMeta(key, val string) {
	s.meta = setMeta(s.meta, &metaEntry{key: key, kind: metaRaw, raw: strconv.Quote(val)})
}

// arcs returns the arcs of key across every list op, explicit list first.
func (s *PrimSpec) arcs(key string) []scene.Arc {
	var out []scene.Arc
	for _, op := range []string{"", "prepend", "add", "append"} {
		for _, m := range s.meta {
			if m.key == key && m.op == op && m.kind == metaArcs {
				out = append(out, m.arcs...)
			}
		}
	}
	return out
}

// clearArcs removes every opinion for key and authors an explicit empty list
// in place of the first one.
func (s *PrimSpec) clearArcs(key string) {
	entry := &metaEntry{key: key, kind: metaArcs, none: true}
	idx := -1
	kept := s.meta[:0:0]
	for _, m := range s.meta {
		if m.key == key {
			if idx < 0 {
				idx = len(kept)
			}
			continue
		}
		kept = append(kept, m)
	}
	if idx < 0 {
		s.meta = append(kept, entry)
		return
	}
	s.meta = slices.Insert(kept, idx, entry)
}

// addArc appends to the explicit list when one is authored, otherwise to the
// prepend list.
func (s *PrimSpec) addArc(key string, arc scene.Arc) {
	var target *metaEntry
	if _, m := findMeta(s.meta, key); m != nil && m.kind == metaArcs {
		target = m
	} else {
		for _, m := range s.meta {
			if m.key == key && m.op == "prepend" && m.kind == metaArcs {
				target = m
				break
			}
		}
	}
	if target == nil {
		target = &metaEntry{op: "prepend", key: key, kind: metaArcs}
		s.meta = append(s.meta, target)
	}
	target.none = false
	if !slices.Contains(target.arcs, arc) {
		target.arcs = append(target.arcs, arc)
	}
}

func (s *PrimSpec) variantSetNames() []string {
	var out []string
	for _, m := range s.meta {
		if m.key == "variantSets" && m.kind == metaStrings && m.op != "delete" {
			for _, n := range m.strs {
				if !slices.Contains(out, n) {
					out = append(out, n)
				}
			}
		}
	}
	return out
}

func (s *PrimSpec) addVariantSetName(name string) {
	if slices.Contains(s.variantSetNames(), name) {
		return
	}
	for _, m := range s.meta {
		if m.key == "variantSets" && m.op == "prepend" && m.kind == metaStrings {
			m.strs = append(m.strs, name)
			return
		}
	}
	s.meta = append(s.meta, &metaEntry{op: "prepend", key: "variantSets", kind: metaStrings, strs: []string{name}})
}

func (s *PrimSpec) selection(set string) string {
	_, m := findMeta(s.meta, "variants")
	if m == nil || m.kind != metaDict {
		return ""
	}
	for _, it := range m.dict {
		if it.key == set {
			return unquote(it.raw)
		}
	}
	return ""
}

func (s *PrimSpec) setSelection(set, variant string) {
	_, m := findMeta(s.meta, "variants")
	if m == nil || m.kind != metaDict {
		m = &metaEntry{key: "variants", kind: metaDict}
		s.meta = setMeta(s.meta, m)
	}
	item := dictItem{typ: "string", key: set, raw: strconv.Quote(variant)}
	for i, it := range m.dict {
		if it.key == set {
			m.dict[i] = item
			return
		}
	}
	m.dict = append(m.dict, item)
}

func (s *PrimSpec) property(name string) (property, bool) {
	for _, p := range s.props {
		if p.name == name {
			return p, true
		}
	}
	return property{}, false
}

func (s *PrimSpec) setProperty(p property) {
	for i, q := range s.props {
		if q.name == p.name {
			s.props[i] = p
			return
		}
	}
	s.props = append(s.props, p)
}

func unquote(raw string) string {
	if v, err := strconv.Unquote(raw); err == nil {
		return v
	}
	return strings.Trim(raw, `"'`)
}
