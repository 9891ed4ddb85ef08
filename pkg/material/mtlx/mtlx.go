// Package mtlx is a material backend for MaterialX XML documents.
package mtlx

import (
	"errors"
	"fmt"
	"io"

	"github.com/beevik/etree"

	"github.com/chazu/usdassemble/pkg/material"
)

const (
	tagRoot      = "materialx"
	tagNodeGraph = "nodegraph"
	tagInput     = "input"
	tagOutput    = "output"
)

// ErrNotFound is returned when removing an element that does not exist.
var ErrNotFound = errors.New("mtlx: element not found")

// ErrExists is returned when adding an element whose name is taken.
var ErrExists = errors.New("mtlx: element already exists")

// Backend parses MaterialX documents.
type Backend struct{}

// New returns the MaterialX backend.
func New() *Backend { return &Backend{} }

// Parse reads a MaterialX document.
func (Backend) Parse(data []byte) (material.Document, error) {
	doc := etree.NewDocument()
	if err := doc.ReadFromBytes(data); err != nil {
		return nil, fmt.Errorf("mtlx: parse: %w", err)
	}
	root := doc.Root()
	if root == nil || root.Tag != tagRoot {
		return nil, fmt.Errorf("mtlx: root element is not <%s>", tagRoot)
	}
	return &Document{doc: doc, root: root}, nil
}

// Document is a parsed MaterialX document.
type Document struct {
	doc  *etree.Document
	root *etree.Element
}

var _ material.Document = (*Document)(nil)

func name(e *etree.Element) string { return e.SelectAttrValue("name", "") }

func childNamed(parent *etree.Element, pred func(*etree.Element) bool, n string) *etree.Element {
	for _, c := range parent.ChildElements() {
		if pred(c) && name(c) == n {
			return c
		}
	}
	return nil
}

func isGraph(e *etree.Element) bool { return e.Tag == tagNodeGraph }

func isNode(e *etree.Element) bool {
	return e.Tag != tagNodeGraph && e.Tag != tagInput && e.Tag != tagOutput
}

func isInput(e *etree.Element) bool  { return e.Tag == tagInput }
func isOutput(e *etree.Element) bool { return e.Tag == tagOutput }
func isAnything(*etree.Element) bool { return true }

func (d *Document) NodeGraph(n string) (material.NodeGraph, bool) {
	if e := childNamed(d.root, isGraph, n); e != nil {
		return &nodeGraph{e}, true
	}
	return nil, false
}

func (d *Document) NodeGraphs() []material.NodeGraph {
	var out []material.NodeGraph
	for _, c := range d.root.ChildElements() {
		if isGraph(c) {
			out = append(out, &nodeGraph{c})
		}
	}
	return out
}

func (d *Document) CloneNodeGraph(src, n string) (material.NodeGraph, error) {
	e := childNamed(d.root, isGraph, src)
	if e == nil {
		return nil, fmt.Errorf("%w: nodegraph %q", ErrNotFound, src)
	}
	if childNamed(d.root, isAnything, n) != nil {
		return nil, fmt.Errorf("%w: %q", ErrExists, n)
	}
	clone := e.Copy()
	clone.CreateAttr("name", n)

	last := e
	for _, c := range d.root.ChildElements() {
		if isGraph(c) {
			last = c
		}
	}
	d.root.InsertChildAt(last.Index()+1, clone)
	return &nodeGraph{clone}, nil
}

func (d *Document) RemoveNodeGraph(n string) error {
	return remove(d.root, isGraph, n)
}

func (d *Document) Node(n string) (material.Node, bool) {
	if e := childNamed(d.root, isNode, n); e != nil {
		return &node{e}, true
	}
	return nil, false
}

func (d *Document) Nodes() []material.Node {
	var out []material.Node
	for _, c := range d.root.ChildElements() {
		if isNode(c) {
			out = append(out, &node{c})
		}
	}
	return out
}

func (d *Document) AddNode(category, n, typ string) (material.Node, error) {
	if childNamed(d.root, isAnything, n) != nil {
		return nil, fmt.Errorf("%w: %q", ErrExists, n)
	}
	e := d.root.CreateElement(category)
	e.CreateAttr("name", n)
	e.CreateAttr("type", typ)
	return &node{e}, nil
}

func (d *Document) RemoveNode(n string) error {
	return remove(d.root, isNode, n)
}

// WriteTo writes the document with two-space indentation.
func (d *Document) WriteTo(w io.Writer) (int64, error) {
	d.doc.Indent(2)
	return d.doc.WriteTo(w)
}

func remove(parent *etree.Element, pred func(*etree.Element) bool, n string) error {
	e := childNamed(parent, pred, n)
	if e == nil {
		return fmt.Errorf("%w: %q in <%s>", ErrNotFound, n, parent.Tag)
	}
	parent.RemoveChild(e)
	return nil
}

type nodeGraph struct{ e *etree.Element }

func (g *nodeGraph) Name() string { return name(g.e) }

func (g *nodeGraph) Nodes() []material.Node {
	var out []material.Node
	for _, c := range g.e.ChildElements() {
		if isNode(c) {
			out = append(out, &node{c})
		}
	}
	return out
}

func (g *nodeGraph) Node(n string) (material.Node, bool) {
	if e := childNamed(g.e, isNode, n); e != nil {
		return &node{e}, true
	}
	return nil, false
}

func (g *nodeGraph) RemoveNode(n string) error { return remove(g.e, isNode, n) }

func (g *nodeGraph) Outputs() []material.Output {
	var out []material.Output
	for _, c := range g.e.ChildElements() {
		if isOutput(c) {
			out = append(out, &port{c})
		}
	}
	return out
}

func (g *nodeGraph) RemoveOutput(n string) error { return remove(g.e, isOutput, n) }

type node struct{ e *etree.Element }

func (n *node) Name() string     { return name(n.e) }
func (n *node) Category() string { return n.e.Tag }
func (n *node) Type() string     { return n.e.SelectAttrValue("type", "") }

func (n *node) Inputs() []material.Input {
	var out []material.Input
	for _, c := range n.e.ChildElements() {
		if isInput(c) {
			out = append(out, &port{c})
		}
	}
	return out
}

func (n *node) Input(in string) (material.Input, bool) {
	if e := childNamed(n.e, isInput, in); e != nil {
		return &port{e}, true
	}
	return nil, false
}

func (n *node) AddInput(in, typ string) (material.Input, error) {
	if childNamed(n.e, isInput, in) != nil {
		return nil, fmt.Errorf("%w: input %q on %q", ErrExists, in, n.Name())
	}
	e := n.e.CreateElement(tagInput)
	e.CreateAttr("name", in)
	e.CreateAttr("type", typ)
	return &port{e}, nil
}

func (n *node) RemoveInput(in string) error { return remove(n.e, isInput, in) }

// port implements both Input and Output; they share the attribute layout.
type port struct{ e *etree.Element }

func (p *port) Name() string      { return name(p.e) }
func (p *port) Type() string      { return p.e.SelectAttrValue("type", "") }
func (p *port) Value() string     { return p.e.SelectAttrValue("value", "") }
func (p *port) NodeName() string  { return p.e.SelectAttrValue("nodename", "") }
func (p *port) NodeGraph() string { return p.e.SelectAttrValue("nodegraph", "") }
func (p *port) Output() string    { return p.e.SelectAttrValue("output", "") }

func (p *port) SetValue(v string) { p.e.CreateAttr("value", v) }

func (p *port) SetNodeName(n string) { p.e.CreateAttr("nodename", n) }

func (p *port) Connect(nodeGraph, output string) {
	p.e.RemoveAttr("value")
	p.e.RemoveAttr("nodename")
	p.e.CreateAttr("nodegraph", nodeGraph)
	p.e.CreateAttr("output", output)
}
