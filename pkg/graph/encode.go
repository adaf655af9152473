package graph

import (
	"encoding/json"

	"github.com/OFFIS-RIT/stencil/pkg/digest"
	"github.com/OFFIS-RIT/stencil/pkg/errors"
)

// Describer is implemented by payloads that can summarise themselves for
// the persisted form.
type Describer interface {
	Describe() string
}

// EncodedNode is the persisted form of a graph. Every node is expanded
// exactly once, the first time it is reached through children; parent
// references and repeated or back-edge references are stubs carrying only
// id and hash.
type EncodedNode struct {
	ID          NodeID          `json:"id"`
	Hash        digest.Digest   `json:"hash"`
	Description string          `json:"description,omitempty"`
	Payload     json.RawMessage `json:"payload,omitempty"`
	Parents     []*EncodedNode  `json:"parents,omitempty"`
	Children    []*EncodedNode  `json:"children,omitempty"`
}

// IsStub reports whether the node is a reference without payload.
func (e *EncodedNode) IsStub() bool {
	return len(e.Payload) == 0
}

// Encode converts the graph into its persisted form, starting at the root.
func Encode[T Payload[T]](g *Graph[T]) (*EncodedNode, error) {
	root, err := g.Root()
	if err != nil {
		return nil, err
	}

	expanded := make(map[NodeID]bool)
	var encode func(id NodeID) (*EncodedNode, error)
	encode = func(id NodeID) (*EncodedNode, error) {
		if expanded[id] {
			return g.stub(id), nil
		}
		expanded[id] = true

		data, ok := g.Data(id)
		if !ok {
			return nil, errors.Wrapf(ErrUnknownNode, "encode %s", id)
		}
		payload, err := json.Marshal(data)
		if err != nil {
			return nil, errors.Wrapf(err, "failed to marshal payload of node %s", id)
		}

		e := &EncodedNode{
			ID:      id,
			Hash:    g.Hash(id),
			Payload: payload,
		}
		if d, ok := any(data).(Describer); ok {
			e.Description = d.Describe()
		}
		for _, p := range g.Parents(id) {
			e.Parents = append(e.Parents, g.stub(p))
		}
		for _, c := range g.Children(id) {
			ce, err := encode(c)
			if err != nil {
				return nil, err
			}
			e.Children = append(e.Children, ce)
		}
		return e, nil
	}
	return encode(root)
}

func (g *Graph[T]) stub(id NodeID) *EncodedNode {
	return &EncodedNode{ID: id, Hash: g.Hash(id)}
}

// Decode rebuilds a graph from its persisted form, preserving node ids.
// Payload fingerprints are recomputed and must match the stored hashes.
func Decode[T Payload[T]](root *EncodedNode) (*Graph[T], error) {
	if root == nil || root.IsStub() {
		return nil, errors.Parsef("encoded graph has no root")
	}

	full := make(map[NodeID]*EncodedNode)
	var collect func(e *EncodedNode) error
	collect = func(e *EncodedNode) error {
		if e.IsStub() {
			return nil
		}
		if _, dup := full[e.ID]; dup {
			return errors.Parsef("node %s expanded twice", e.ID)
		}
		full[e.ID] = e
		for _, c := range e.Children {
			if err := collect(c); err != nil {
				return err
			}
		}
		return nil
	}
	if err := collect(root); err != nil {
		return nil, err
	}

	g := New[T]()
	var maxID NodeID
	for id, e := range full {
		var data T
		if err := json.Unmarshal(e.Payload, &data); err != nil {
			return nil, errors.Mark(errors.Wrapf(err, "failed to unmarshal payload of node %s", id), errors.ErrParse)
		}
		if got := data.Fingerprint(); got != e.Hash {
			return nil, errors.Parsef("node %s: hash %s does not match payload %s", id, e.Hash.Short(), got.Short())
		}
		g.nodes[id] = &node[T]{id: id, hash: e.Hash, data: data}
		maxID = max(maxID, id)
	}
	g.root = root.ID
	g.next.Store(uint64(maxID))

	for id, e := range full {
		n := g.nodes[id]
		for _, p := range e.Parents {
			if _, ok := full[p.ID]; !ok {
				return nil, errors.Parsef("node %s: unknown parent %s", id, p.ID)
			}
			n.parents = append(n.parents, p.ID)
		}
		for _, c := range e.Children {
			if _, ok := full[c.ID]; !ok {
				return nil, errors.Parsef("node %s: unknown child %s", id, c.ID)
			}
			n.children = append(n.children, c.ID)
		}
	}
	return g, nil
}
