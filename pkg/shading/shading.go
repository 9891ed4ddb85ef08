// Package shading generates the material document of a component: it binds
// classified textures into the template node graph, prunes nodes without a
// texture, and for components with variants emits one graph, shader and
// material per variant.
package shading

import (
	"fmt"
	"slices"

	"go.uber.org/zap"

	"github.com/chazu/usdassemble/pkg/asset"
	"github.com/chazu/usdassemble/pkg/material"
)

const (
	// DefaultShaderCategory is used when the template has no shader to copy from.
	DefaultShaderCategory = "open_pbr_surface"

	imageCategory    = "image"
	materialCategory = "surfacematerial"
	fileInput        = "file"
	shaderInput      = "surfaceshader"
)

// GraphName is the node graph name for key.
func GraphName(key string) string { return "NG_" + key }

// MaterialName is the material node name for key.
func MaterialName(key string) string { return "M_" + key }

// MissingNodeGraphError reports a material template without the component graph.
type MissingNodeGraphError struct {
	Component string
	Name      string
}

func (e *MissingNodeGraphError) Error() string {
	return fmt.Sprintf("component %s: material template has no nodegraph %q", e.Component, e.Name)
}

func (e *MissingNodeGraphError) Kind() asset.ErrorKind { return asset.KindStructural }

// Generator edits material documents for components.
type Generator struct {
	Mapping asset.ShaderMapping
	Logger  *zap.Logger
}

// New returns a Generator wiring shader inputs with mapping.
func New(mapping asset.ShaderMapping, logger *zap.Logger) *Generator {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &Generator{Mapping: mapping, Logger: logger}
}

// Generate rewrites doc, rendered from the material template, for info.
func (g *Generator) Generate(doc material.Document, info asset.ComponentInfo) error {
	base := GraphName(info.Name)
	if _, ok := doc.NodeGraph(base); !ok {
		return &MissingNodeGraphError{Component: info.Name, Name: base}
	}
	if !info.HasVariants() {
		return g.generateFlat(doc, info, base)
	}
	return g.generateVariants(doc, info, base)
}

func (g *Generator) generateFlat(doc material.Document, info asset.ComponentInfo, base string) error {
	ng, _ := doc.NodeGraph(base)
	removed, err := g.bind(ng, info.Textures, info.Name)
	if err != nil {
		return err
	}
	if shader, ok := doc.Node(info.Name); ok {
		for _, in := range shader.Inputs() {
			if in.NodeGraph() == base && removed[in.Output()] {
				if err := shader.RemoveInput(in.Name()); err != nil {
					return err
				}
			}
		}
	}
	return nil
}

func (g *Generator) generateVariants(doc material.Document, info asset.ComponentInfo, base string) error {
	category := DefaultShaderCategory
	if shader, ok := doc.Node(info.Name); ok {
		category = shader.Category()
	}

	graphs := make([]material.NodeGraph, len(info.Variants))
	for i, v := range info.Variants {
		key := info.MaterialKey(v.Name)
		ng, err := doc.CloneNodeGraph(base, GraphName(key))
		if err != nil {
			return fmt.Errorf("shading: variant %s: %w", v.Name, err)
		}
		if _, err := g.bind(ng, v.Textures, info.Name); err != nil {
			return fmt.Errorf("shading: variant %s: %w", v.Name, err)
		}
		graphs[i] = ng
	}

	for i, v := range info.Variants {
		key := info.MaterialKey(v.Name)
		if err := g.addMaterial(doc, category, key, graphs[i]); err != nil {
			return fmt.Errorf("shading: variant %s: %w", v.Name, err)
		}
	}

	if err := doc.RemoveNodeGraph(base); err != nil {
		return err
	}
	for _, n := range []string{info.Name, MaterialName(info.Name)} {
		if _, ok := doc.Node(n); ok {
			if err := doc.RemoveNode(n); err != nil {
				return err
			}
		}
	}
	return nil
}

// addMaterial emits the shader <key> and material M_<key> fed by ng.
func (g *Generator) addMaterial(doc material.Document, category, key string, ng material.NodeGraph) error {
	shader, err := doc.AddNode(category, key, "surfaceshader")
	if err != nil {
		return err
	}
	for _, out := range ng.Outputs() {
		name, ok := g.Mapping.Input(out.Name())
		if !ok {
			continue
		}
		in, err := shader.AddInput(name, out.Type())
		if err != nil {
			return err
		}
		in.Connect(ng.Name(), out.Name())
	}

	mat, err := doc.AddNode(materialCategory, MaterialName(key), "material")
	if err != nil {
		return err
	}
	in, err := mat.AddInput(shaderInput, shaderInput)
	if err != nil {
		return err
	}
	in.SetNodeName(key)
	return nil
}

// bind sets the file input of every slot node and prunes image nodes that
// received no texture, along with nodes fed only by pruned nodes. It returns
// the names of outputs removed because their node was pruned.
func (g *Generator) bind(ng material.NodeGraph, textures asset.TextureMap, component string) (map[string]bool, error) {
	log := g.Logger.With(zap.String("component", component), zap.String("nodegraph", ng.Name()))

	for _, slot := range textures.Slots() {
		node, ok := ng.Node(string(slot))
		if !ok {
			log.Warn("material template has no node for texture slot", zap.String("slot", string(slot)))
			continue
		}
		in, ok := node.Input(fileInput)
		if !ok {
			var err error
			if in, err = node.AddInput(fileInput, "filename"); err != nil {
				return nil, err
			}
		}
		in.SetValue(textures[slot])
	}

	dead := make(map[string]bool)
	for _, n := range ng.Nodes() {
		if _, ok := textures[asset.TextureSlot(n.Name())]; n.Category() == imageCategory && !ok {
			dead[n.Name()] = true
		}
	}
	for changed := true; changed; {
		changed = false
		for _, n := range ng.Nodes() {
			if dead[n.Name()] {
				continue
			}
			links, deadLinks := 0, 0
			for _, in := range n.Inputs() {
				if in.NodeName() == "" {
					continue
				}
				links++
				if dead[in.NodeName()] {
					deadLinks++
				}
			}
			if links > 0 && links == deadLinks {
				dead[n.Name()] = true
				changed = true
			}
		}
	}

	names := make([]string, 0, len(dead))
	for n := range dead {
		names = append(names, n)
	}
	slices.Sort(names)
	for _, n := range names {
		if err := ng.RemoveNode(n); err != nil {
			return nil, err
		}
		log.Debug("pruned node without texture", zap.String("node", n))
	}

	for _, n := range ng.Nodes() {
		for _, in := range n.Inputs() {
			if dead[in.NodeName()] {
				if err := n.RemoveInput(in.Name()); err != nil {
					return nil, err
				}
			}
		}
	}

	removed := make(map[string]bool)
	for _, out := range ng.Outputs() {
		if dead[out.NodeName()] {
			if err := ng.RemoveOutput(out.Name()); err != nil {
				return nil, err
			}
			removed[out.Name()] = true
		}
	}
	return removed, nil
}
