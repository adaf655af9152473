// Package graph implements the content-addressed node model shared by basis
// graphs and output trees.
//
// Nodes live in an arena owned by a Graph and are addressed by NodeID; edges
// are stored as id lists on both ends. A graph is normally a tree but may
// contain deliberate back-edges after Cyclize. Each node carries its own
// RWMutex. Every mutation touches exactly one node per critical section and
// no lock is ever held while another node lock is acquired, so traversals
// over cyclic graphs cannot self-deadlock.
package graph

import (
	"slices"
	"strconv"
	"sync"
	"sync/atomic"

	"github.com/OFFIS-RIT/stencil/pkg/digest"
	"github.com/OFFIS-RIT/stencil/pkg/errors"
)

// NodeID addresses a node within its graph. It is stable for the lifetime
// of the node.
type NodeID uint64

func (id NodeID) String() string {
	return strconv.FormatUint(uint64(id), 10)
}

// Payload is the data carried by a node. Fingerprint must depend only on the
// payload itself, never on the node's neighbours. Blank returns the payload
// with every learned field reset, used when a subtree is grafted into
// another graph.
type Payload[T any] interface {
	Fingerprint() digest.Digest
	Blank() T
}

var (
	// ErrNoRoot is returned when a root is requested before one was set.
	ErrNoRoot = errors.Mark(errors.New("graph has no root"), errors.ErrContract)

	// ErrUnknownNode is returned for ids that are not part of the graph.
	ErrUnknownNode = errors.Mark(errors.New("unknown node"), errors.ErrContract)
)

type node[T any] struct {
	id   NodeID
	hash digest.Digest

	mu       sync.RWMutex
	parents  []NodeID
	children []NodeID
	data     T
}

// Graph is an arena of nodes with payload T.
//
// A Graph should be created using New.
type Graph[T Payload[T]] struct {
	mu    sync.RWMutex
	nodes map[NodeID]*node[T]
	root  NodeID

	next atomic.Uint64
}

func New[T Payload[T]]() *Graph[T] {
	return &Graph[T]{
		nodes: make(map[NodeID]*node[T]),
	}
}

// Add creates a detached node and returns its id.
func (g *Graph[T]) Add(data T) NodeID {
	id := NodeID(g.next.Add(1))
	n := &node[T]{
		id:   id,
		hash: data.Fingerprint(),
		data: data,
	}
	g.mu.Lock()
	g.nodes[id] = n
	g.mu.Unlock()
	return id
}

// AddRoot creates a node and makes it the root of the graph.
func (g *Graph[T]) AddRoot(data T) NodeID {
	id := g.Add(data)
	g.mu.Lock()
	g.root = id
	g.mu.Unlock()
	return id
}

// Root returns the root id or ErrNoRoot.
func (g *Graph[T]) Root() (NodeID, error) {
	g.mu.RLock()
	defer g.mu.RUnlock()
	if g.root == 0 {
		return 0, ErrNoRoot
	}
	return g.root, nil
}

// Link appends child to parent's children and parent to child's parents.
// Existing edges are not duplicated.
func (g *Graph[T]) Link(parent, child NodeID) error {
	if !g.Has(parent) {
		return errors.Wrapf(ErrUnknownNode, "parent %s", parent)
	}
	if !g.Has(child) {
		return errors.Wrapf(ErrUnknownNode, "child %s", child)
	}
	g.editChildren(parent, func(ids []NodeID) []NodeID { return appendUnique(ids, child) })
	g.editParents(child, func(ids []NodeID) []NodeID { return appendUnique(ids, parent) })
	return nil
}

func (g *Graph[T]) node(id NodeID) *node[T] {
	g.mu.RLock()
	defer g.mu.RUnlock()
	return g.nodes[id]
}

func (g *Graph[T]) Has(id NodeID) bool {
	return g.node(id) != nil
}

// Len returns the number of nodes in the arena.
func (g *Graph[T]) Len() int {
	g.mu.RLock()
	defer g.mu.RUnlock()
	return len(g.nodes)
}

// Hash returns the payload fingerprint of a node.
func (g *Graph[T]) Hash(id NodeID) digest.Digest {
	n := g.node(id)
	if n == nil {
		return digest.Digest{}
	}
	return n.hash
}

// Children returns a snapshot of the node's children.
func (g *Graph[T]) Children(id NodeID) []NodeID {
	n := g.node(id)
	if n == nil {
		return nil
	}
	n.mu.RLock()
	defer n.mu.RUnlock()
	return slices.Clone(n.children)
}

// Parents returns a snapshot of the node's parents. The first parent is the
// structural one; later entries are back-edges or merge results.
func (g *Graph[T]) Parents(id NodeID) []NodeID {
	n := g.node(id)
	if n == nil {
		return nil
	}
	n.mu.RLock()
	defer n.mu.RUnlock()
	return slices.Clone(n.parents)
}

// Data returns a copy of the node payload.
func (g *Graph[T]) Data(id NodeID) (T, bool) {
	n := g.node(id)
	if n == nil {
		var zero T
		return zero, false
	}
	n.mu.RLock()
	defer n.mu.RUnlock()
	return n.data, true
}

// Update mutates the node payload under the node's write lock. fn must not
// call back into the graph. The payload fingerprint is not recomputed:
// fn may only touch learned fields.
func (g *Graph[T]) Update(id NodeID, fn func(*T)) bool {
	n := g.node(id)
	if n == nil {
		return false
	}
	n.mu.Lock()
	defer n.mu.Unlock()
	fn(&n.data)
	return true
}

// IDs returns every node reachable from the root in breadth-first order.
func (g *Graph[T]) IDs() []NodeID {
	root, err := g.Root()
	if err != nil {
		return nil
	}
	var ids []NodeID
	g.BFS(root, func(id NodeID, _ int) bool {
		ids = append(ids, id)
		return true
	})
	return ids
}

// BFS visits every node reachable from start once, in breadth-first order.
// Returning false from fn stops the traversal.
func (g *Graph[T]) BFS(start NodeID, fn func(id NodeID, depth int) bool) {
	type item struct {
		id    NodeID
		depth int
	}
	seen := map[NodeID]bool{start: true}
	queue := []item{{start, 0}}
	for len(queue) > 0 {
		it := queue[0]
		queue = queue[1:]
		if !fn(it.id, it.depth) {
			return
		}
		for _, c := range g.Children(it.id) {
			if seen[c] {
				continue
			}
			seen[c] = true
			queue = append(queue, item{c, it.depth + 1})
		}
	}
}

// SubgraphHash fingerprints the node together with everything reachable
// below it. Children are digested as an unordered set, so sibling order
// does not matter. A node revisited while on the recursion stack
// contributes digest.Cycle instead of recursing.
func (g *Graph[T]) SubgraphHash(id NodeID) digest.Digest {
	return g.subgraphHash(id, make(map[NodeID]bool))
}

func (g *Graph[T]) subgraphHash(id NodeID, onStack map[NodeID]bool) digest.Digest {
	if onStack[id] {
		return digest.Cycle
	}
	n := g.node(id)
	if n == nil {
		return digest.Digest{}
	}
	onStack[id] = true
	defer delete(onStack, id)

	h := digest.New().PushDigest(n.hash)
	for _, c := range g.Children(id) {
		h.PushDigest(g.subgraphHash(c, onStack))
	}
	return h.Finalize()
}

func (g *Graph[T]) editChildren(id NodeID, fn func([]NodeID) []NodeID) {
	n := g.node(id)
	if n == nil {
		return
	}
	n.mu.Lock()
	n.children = fn(n.children)
	n.mu.Unlock()
}

func (g *Graph[T]) editParents(id NodeID, fn func([]NodeID) []NodeID) {
	n := g.node(id)
	if n == nil {
		return
	}
	n.mu.Lock()
	n.parents = fn(n.parents)
	n.mu.Unlock()
}

func (g *Graph[T]) remove(id NodeID) {
	g.mu.Lock()
	delete(g.nodes, id)
	g.mu.Unlock()
}

func appendUnique(ids []NodeID, id NodeID) []NodeID {
	if slices.Contains(ids, id) {
		return ids
	}
	return append(ids, id)
}

// replaceID swaps old for repl in place and drops any duplicate that
// results, keeping the first occurrence.
func replaceID(ids []NodeID, old, repl NodeID) []NodeID {
	out := make([]NodeID, 0, len(ids))
	for _, id := range ids {
		if id == old {
			id = repl
		}
		if slices.Contains(out, id) {
			continue
		}
		out = append(out, id)
	}
	return out
}
