// Package material defines the abstract node-graph material document used to
// generate per-component look development. Implementations (mtlx) parse and
// edit a concrete format behind these interfaces.
package material

import "io"

// Backend parses material documents.
type Backend interface {
	Parse(data []byte) (Document, error)
}

// Document is a mutable material document holding node graphs and
// top-level nodes (shaders and materials).
type Document interface {
	NodeGraph(name string) (NodeGraph, bool)
	NodeGraphs() []NodeGraph
	// CloneNodeGraph deep-copies src under a new name, placed after the
	// last existing node graph.
	CloneNodeGraph(src, name string) (NodeGraph, error)
	RemoveNodeGraph(name string) error

	Node(name string) (Node, bool)
	Nodes() []Node
	AddNode(category, name, typ string) (Node, error)
	RemoveNode(name string) error

	WriteTo(w io.Writer) (int64, error)
}

// NodeGraph is a named graph of nodes with outputs.
type NodeGraph interface {
	Name() string
	Nodes() []Node
	Node(name string) (Node, bool)
	RemoveNode(name string) error
	Outputs() []Output
	RemoveOutput(name string) error
}

// Node is a graph node, shader or material.
type Node interface {
	Name() string
	Category() string
	Type() string
	Inputs() []Input
	Input(name string) (Input, bool)
	AddInput(name, typ string) (Input, error)
	RemoveInput(name string) error
}

// Input is a node input holding either a value or a connection.
type Input interface {
	Name() string
	Type() string
	Value() string
	SetValue(v string)
	NodeName() string
	SetNodeName(name string)
	NodeGraph() string
	Output() string
	// Connect points the input at an output of a node graph.
	Connect(nodeGraph, output string)
}

// Output is a node-graph output.
type Output interface {
	Name() string
	Type() string
	NodeName() string
}
