package usda

import (
	"bytes"
	"io"
	"strconv"
	"strings"

	"github.com/chazu/usdassemble/pkg/scene"
)

const indentUnit = "    "

// Bytes renders the layer. Output depends only on the layer content.
func (l *Layer) Bytes() []byte {
	var b bytes.Buffer
	b.WriteString("#usda 1.0\n")
	if len(l.meta) > 0 {
		b.WriteString("(\n")
		writeMeta(&b, l.meta, 1)
		b.WriteString(")\n")
	}
	for _, p := range l.prims {
		b.WriteString("\n")
		writePrim(&b, p, 0)
	}
	return b.Bytes()
}

// WriteTo writes the rendered layer to w.
func (l *Layer) WriteTo(w io.Writer) (int64, error) {
	n, err := w.Write(l.Bytes())
	return int64(n), err
}

func indent(depth int) string {
	return strings.Repeat(indentUnit, depth)
}

func writeMeta(b *bytes.Buffer, entries []*metaEntry, depth int) {
	for _, m := range entries {
		b.WriteString(indent(depth))
		if m.op != "" {
			b.WriteString(m.op)
			b.WriteByte(' ')
		}
		if m.key == "" {
			b.WriteString(m.raw)
			b.WriteByte('\n')
			continue
		}
		b.WriteString(m.key)
		b.WriteString(" = ")
		b.WriteString(renderMetaValue(m, depth))
		b.WriteByte('\n')
	}
}

func renderMetaValue(m *metaEntry, depth int) string {
	switch m.kind {
	case metaArcs:
		if m.none || len(m.arcs) == 0 {
			return "None"
		}
		items := make([]string, len(m.arcs))
		for i, a := range m.arcs {
			items[i] = renderArc(a)
		}
		if len(items) == 1 {
			return items[0]
		}
		return "[" + strings.Join(items, ", ") + "]"
	case metaStrings:
		items := make([]string, len(m.strs))
		for i, s := range m.strs {
			items[i] = strconv.Quote(s)
		}
		if len(items) == 1 {
			return items[0]
		}
		return "[" + strings.Join(items, ", ") + "]"
	case metaDict:
		var b strings.Builder
		b.WriteString("{\n")
		for _, it := range m.dict {
			b.WriteString(indent(depth + 1))
			b.WriteString(it.typ)
			b.WriteByte(' ')
			b.WriteString(it.key)
			b.WriteString(" = ")
			b.WriteString(it.raw)
			b.WriteByte('\n')
		}
		b.WriteString(indent(depth))
		b.WriteString("}")
		return b.String()
	default:
		return m.raw
	}
}

func renderArc(a scene.Arc) string {
	var s string
	if a.AssetPath != "" {
		s = "@" + a.AssetPath + "@"
	}
	if a.PrimPath != "" {
		s += "<" + a.PrimPath + ">"
	}
	return s
}

func writePrim(b *bytes.Buffer, p *PrimSpec, depth int) {
	ind := indent(depth)
	b.WriteString(ind)
	b.WriteString(p.Specifier.String())
	if p.TypeName != "" {
		b.WriteByte(' ')
		b.WriteString(p.TypeName)
	}
	b.WriteByte(' ')
	b.WriteString(strconv.Quote(p.Name))
	if len(p.meta) > 0 {
		b.WriteString(" (\n")
		writeMeta(b, p.meta, depth+1)
		b.WriteString(ind)
		b.WriteString(")")
	}
	b.WriteString("\n")
	b.WriteString(ind)
	b.WriteString("{\n")
	writeBody(b, p, depth+1)
	b.WriteString(ind)
	b.WriteString("}\n")
}

func writeBody(b *bytes.Buffer, p *PrimSpec, depth int) {
	ind := indent(depth)
	sections := 0
	for _, prop := range p.props {
		b.WriteString(ind)
		b.WriteString(prop.raw)
		b.WriteByte('\n')
	}
	if len(p.props) > 0 {
		sections++
	}
	for _, c := range p.children {
		if sections > 0 {
			b.WriteByte('\n')
		}
		writePrim(b, c, depth)
		sections++
	}
	for _, vs := range p.variantSets {
		if sections > 0 {
			b.WriteByte('\n')
		}
		writeVariantSet(b, vs, depth)
		sections++
	}
}

func writeVariantSet(b *bytes.Buffer, vs *VariantSetSpec, depth int) {
	ind := indent(depth)
	b.WriteString(ind)
	b.WriteString("variantSet ")
	b.WriteString(strconv.Quote(vs.Name))
	b.WriteString(" = {\n")
	for _, v := range vs.Variants {
		vind := indent(depth + 1)
		b.WriteString(vind)
		b.WriteString(strconv.Quote(v.Name))
		if len(v.meta) > 0 {
			b.WriteString(" (\n")
			writeMeta(b, v.meta, depth+2)
			b.WriteString(vind)
			b.WriteString(")")
		}
		b.WriteString(" {\n")
		writeBody(b, v, depth+2)
		b.WriteString(vind)
		b.WriteString("}\n")
	}
	b.WriteString(ind)
	b.WriteString("}\n")
}
