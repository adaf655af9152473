package basis

import (
	"github.com/OFFIS-RIT/stencil/pkg/document"
	"github.com/OFFIS-RIT/stencil/pkg/errors"
	"github.com/OFFIS-RIT/stencil/pkg/graph"
)

// Build converts a document tree into a graph with one node per element or
// text node, hung below a synthetic root with document.RootShape.
func Build[T graph.Payload[T]](root *document.Node, payload func(document.Shape, *document.Node) T) (*graph.Graph[T], error) {
	if root == nil {
		return nil, errors.Contractf("cannot build graph from empty document")
	}

	g := graph.New[T]()
	rootID := g.AddRoot(payload(document.RootShape, nil))

	var add func(parent graph.NodeID, n *document.Node) error
	add = func(parent graph.NodeID, n *document.Node) error {
		id := g.Add(payload(document.ShapeOf(n), n))
		if err := g.Link(parent, id); err != nil {
			return err
		}
		for _, c := range n.Children {
			if err := add(id, c); err != nil {
				return err
			}
		}
		return nil
	}
	if err := add(rootID, root); err != nil {
		return nil, err
	}
	return g, nil
}

// BuildOutput builds the full-fidelity output tree of a document.
func BuildOutput(root *document.Node) (*graph.Graph[OutputNode], error) {
	return Build(root, func(s document.Shape, n *document.Node) OutputNode {
		return OutputNode{Shape: s, Source: n}
	})
}

// BuildBasis builds the basis graph of a single document: the document tree
// with recursion folded into back-edges and sibling twins merged.
func BuildBasis(root *document.Node) (*graph.Graph[Node], error) {
	g, err := Build(root, func(s document.Shape, _ *document.Node) Node {
		return NewNode(s)
	})
	if err != nil {
		return nil, err
	}
	if _, err := g.Cyclize(); err != nil {
		return nil, errors.Wrap(err, "cyclize")
	}
	if _, err := g.Prune(); err != nil {
		return nil, errors.Wrap(err, "prune")
	}
	return g, nil
}
