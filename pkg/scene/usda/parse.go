package usda

import (
	"fmt"
	"strings"

	"github.com/chazu/usdassemble/pkg/scene"
)

var listOps = map[string]bool{"prepend": true, "append": true, "add": true, "delete": true, "reorder": true}

// Parse reads a .usda document.
func Parse(data []byte) (*Layer, error) {
	src := string(data)
	if !strings.HasPrefix(src, "#usda ") {
		return nil, &SyntaxError{Line: 1, Msg: "missing #usda header"}
	}
	toks, err := lex(src)
	if err != nil {
		return nil, err
	}
	p := &parser{src: src, toks: toks}
	return p.layer()
}

type parser struct {
	src  string
	toks []token
	pos  int
}

func (p *parser) peek() token { return p.toks[p.pos] }

func (p *parser) peekAt(n int) token {
	if p.pos+n >= len(p.toks) {
		return p.toks[len(p.toks)-1]
	}
	return p.toks[p.pos+n]
}

func (p *parser) next() token {
	t := p.toks[p.pos]
	if t.kind != tokEOF {
		p.pos++
	}
	return t
}

func (p *parser) errorf(t token, format string, args ...any) error {
	return &SyntaxError{Line: t.line, Msg: fmt.Sprintf(format, args...)}
}

func (p *parser) expect(kind tokKind, text string) (token, error) {
	t := p.next()
	if t.kind != kind || (text != "" && t.text != text) {
		want := kind.String()
		if text != "" {
			want = fmt.Sprintf("%q", text)
		}
		return t, p.errorf(t, "expected %s, found %s", want, t)
	}
	return t, nil
}

func (p *parser) skipSemicolons() {
	for p.peek().is(tokPunct, ";") {
		p.next()
	}
}

func (p *parser) layer() (*Layer, error) {
	l := &Layer{}
	if p.peek().is(tokPunct, "(") {
		meta, err := p.metadata()
		if err != nil {
			return nil, err
		}
		l.meta = meta
	}
	for p.peek().kind != tokEOF {
		spec, err := p.prim()
		if err != nil {
			return nil, err
		}
		l.prims = append(l.prims, spec)
	}
	return l, nil
}

func (p *parser) prim() (*PrimSpec, error) {
	t := p.next()
	spec, ok := parseSpecifier(t.text)
	if t.kind != tokIdent || !ok {
		return nil, p.errorf(t, "expected def, over or class, found %s", t)
	}
	ps := &PrimSpec{Specifier: spec}
	if p.peek().kind == tokIdent {
		ps.TypeName = p.next().text
	}
	name, err := p.expect(tokString, "")
	if err != nil {
		return nil, err
	}
	ps.Name = name.val
	if p.peek().is(tokPunct, "(") {
		if ps.meta, err = p.metadata(); err != nil {
			return nil, err
		}
	}
	if _, err := p.expect(tokPunct, "{"); err != nil {
		return nil, err
	}
	if err := p.body(ps); err != nil {
		return nil, err
	}
	return ps, nil
}

// body parses statements up to and including the closing brace.
func (p *parser) body(ps *PrimSpec) error {
	for {
		p.skipSemicolons()
		t := p.peek()
		switch {
		case t.is(tokPunct, "}"):
			p.next()
			return nil
		case t.kind == tokEOF:
			return p.errorf(t, "unterminated body of %q", ps.Name)
		case t.kind == tokIdent && (t.text == "def" || t.text == "over" || t.text == "class") && p.peekAt(1).kind != tokPunct:
			child, err := p.prim()
			if err != nil {
				return err
			}
			ps.children = append(ps.children, child)
		case t.is(tokIdent, "variantSet"):
			vs, err := p.variantSet()
			if err != nil {
				return err
			}
			ps.variantSets = append(ps.variantSets, vs)
		default:
			prop, err := p.property()
			if err != nil {
				return err
			}
			ps.props = append(ps.props, prop)
		}
	}
}

func (p *parser) variantSet() (*VariantSetSpec, error) {
	p.next()
	name, err := p.expect(tokString, "")
	if err != nil {
		return nil, err
	}
	if _, err := p.expect(tokPunct, "="); err != nil {
		return nil, err
	}
	if _, err := p.expect(tokPunct, "{"); err != nil {
		return nil, err
	}
	vs := &VariantSetSpec{Name: name.val}
	for !p.peek().is(tokPunct, "}") {
		vname, err := p.expect(tokString, "")
		if err != nil {
			return nil, err
		}
		v := &PrimSpec{Specifier: specifierVariant, Name: vname.val}
		if p.peek().is(tokPunct, "(") {
			if v.meta, err = p.metadata(); err != nil {
				return nil, err
			}
		}
		if _, err := p.expect(tokPunct, "{"); err != nil {
			return nil, err
		}
		if err := p.body(v); err != nil {
			return nil, err
		}
		vs.Variants = append(vs.Variants, v)
	}
	p.next()
	return vs, nil
}

// property keeps the statement verbatim and extracts its name.
func (p *parser) property() (property, error) {
	first := p.peek()
	var name string
	if first.kind == tokIdent && listOps[first.text] {
		p.next()
	}
	if t := p.peek(); t.kind == tokIdent && first.text == "reorder" {
		p.next()
		name = "reorder " + t.text
	} else {
		for p.peek().kind == tokIdent && (p.peek().text == "custom" || p.peek().text == "uniform" || p.peek().text == "varying") {
			p.next()
		}
		if _, err := p.expect(tokIdent, ""); err != nil {
			return property{}, err
		}
		if p.peek().is(tokPunct, "[") {
			p.next()
			if _, err := p.expect(tokPunct, "]"); err != nil {
				return property{}, err
			}
		}
		n, err := p.expect(tokIdent, "")
		if err != nil {
			return property{}, err
		}
		name = n.text
	}
	last := p.toks[p.pos-1]
	if p.peek().is(tokPunct, "=") {
		p.next()
		if _, err := p.value(); err != nil {
			return property{}, err
		}
		last = p.toks[p.pos-1]
	}
	if p.peek().is(tokPunct, "(") {
		if _, err := p.balanced(); err != nil {
			return property{}, err
		}
		last = p.toks[p.pos-1]
	}
	return property{name: name, raw: p.src[first.start:last.end]}, nil
}

// value consumes one value and returns its tokens.
func (p *parser) value() ([]token, error) {
	t := p.peek()
	switch {
	case t.is(tokPunct, "(") || t.is(tokPunct, "[") || t.is(tokPunct, "{"):
		return p.balanced()
	case t.kind == tokPunct || t.kind == tokEOF:
		return nil, p.errorf(t, "expected value, found %s", t)
	}
	start := p.pos
	p.next()
	if t.kind == tokAsset && p.peek().kind == tokPath {
		p.next()
	}
	return p.toks[start:p.pos], nil
}

func (p *parser) balanced() ([]token, error) {
	start := p.pos
	open := p.next()
	closer := map[string]string{"(": ")", "[": "]", "{": "}"}
	stack := []string{closer[open.text]}
	for len(stack) > 0 {
		t := p.next()
		switch {
		case t.kind == tokEOF:
			return nil, p.errorf(open, "unbalanced %s", open.text)
		case t.kind != tokPunct:
		case closer[t.text] != "":
			stack = append(stack, closer[t.text])
		case t.text == stack[len(stack)-1]:
			stack = stack[:len(stack)-1]
		case t.text == ")" || t.text == "]" || t.text == "}":
			return nil, p.errorf(t, "mismatched %s", t.text)
		}
	}
	return p.toks[start:p.pos], nil
}

func (p *parser) metadata() ([]*metaEntry, error) {
	p.next()
	var out []*metaEntry
	for {
		p.skipSemicolons()
		t := p.peek()
		if t.is(tokPunct, ")") {
			p.next()
			return out, nil
		}
		if t.kind == tokString {
			p.next()
			out = append(out, &metaEntry{kind: metaRaw, raw: t.text})
			continue
		}
		m := &metaEntry{}
		if t.kind == tokIdent && listOps[t.text] && p.peekAt(1).kind == tokIdent {
			m.op = p.next().text
		}
		key, err := p.expect(tokIdent, "")
		if err != nil {
			return nil, err
		}
		m.key = key.text
		if _, err := p.expect(tokPunct, "="); err != nil {
			return nil, err
		}
		val, err := p.value()
		if err != nil {
			return nil, err
		}
		if err := p.structure(m, val); err != nil {
			return nil, err
		}
		out = append(out, m)
	}
}

// structure decodes the value of known metadata keys.
func (p *parser) structure(m *metaEntry, val []token) error {
	m.raw = p.src[val[0].start:val[len(val)-1].end]
	switch m.key {
	case "references", "payload", "inherits", "specializes":
		arcs, none, err := p.arcList(val)
		if err != nil {
			return err
		}
		m.kind, m.arcs, m.none = metaArcs, arcs, none
	case "variantSets":
		var strs []string
		for _, t := range val {
			switch {
			case t.kind == tokString:
				strs = append(strs, t.val)
			case t.kind == tokPunct && strings.Contains("[],", t.text):
			default:
				return p.errorf(t, "unsupported variantSets value %s", t)
			}
		}
		m.kind, m.strs = metaStrings, strs
	case "variants", "assetInfo":
		items, err := p.dict(val)
		if err != nil {
			return err
		}
		m.kind, m.dict = metaDict, items
	}
	return nil
}

func (p *parser) arcList(val []token) ([]scene.Arc, bool, error) {
	if len(val) == 1 && val[0].is(tokIdent, "None") {
		return nil, true, nil
	}
	if val[0].is(tokPunct, "[") {
		val = val[1 : len(val)-1]
	}
	var arcs []scene.Arc
	for i := 0; i < len(val); i++ {
		t := val[i]
		switch t.kind {
		case tokAsset:
			a := scene.Arc{AssetPath: t.val}
			if i+1 < len(val) && val[i+1].kind == tokPath {
				a.PrimPath = val[i+1].val
				i++
			}
			arcs = append(arcs, a)
		case tokPath:
			arcs = append(arcs, scene.Arc{PrimPath: t.val})
		case tokPunct:
			if t.text != "," {
				return nil, false, p.errorf(t, "unsupported arc syntax %s", t)
			}
		default:
			return nil, false, p.errorf(t, "unsupported arc syntax %s", t)
		}
	}
	return arcs, false, nil
}

func (p *parser) dict(val []token) ([]dictItem, error) {
	if !val[0].is(tokPunct, "{") {
		return nil, p.errorf(val[0], "expected dictionary, found %s", val[0])
	}
	sub := &parser{src: p.src, toks: append(append([]token{}, val[1:len(val)-1]...), token{kind: tokEOF, line: val[len(val)-1].line})}
	var items []dictItem
	for {
		sub.skipSemicolons()
		if sub.peek().kind == tokEOF {
			return items, nil
		}
		typ, err := sub.expect(tokIdent, "")
		if err != nil {
			return nil, err
		}
		if sub.peek().is(tokPunct, "[") {
			sub.next()
			if _, err := sub.expect(tokPunct, "]"); err != nil {
				return nil, err
			}
			typ.text += "[]"
		}
		key := sub.next()
		if key.kind != tokIdent && key.kind != tokString {
			return nil, sub.errorf(key, "expected dictionary key, found %s", key)
		}
		if _, err := sub.expect(tokPunct, "="); err != nil {
			return nil, err
		}
		v, err := sub.value()
		if err != nil {
			return nil, err
		}
		items = append(items, dictItem{typ: typ.text, key: key.text, raw: p.src[v[0].start:v[len(v)-1].end]})
	}
}
