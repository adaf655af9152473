package graph

import (
	"slices"

	"github.com/OFFIS-RIT/stencil/pkg/digest"
)

// Lineage returns the content address of a node: the hashes from the root
// down to id along each node's structural (first) parent.
func (g *Graph[T]) Lineage(id NodeID) digest.Lineage {
	var hashes []digest.Digest
	seen := make(map[NodeID]bool)
	for cur := id; cur != 0 && !seen[cur]; {
		seen[cur] = true
		n := g.node(cur)
		if n == nil {
			break
		}
		hashes = append(hashes, n.hash)

		parents := g.Parents(cur)
		if len(parents) == 0 {
			break
		}
		cur = parents[0]
	}
	slices.Reverse(hashes)
	return digest.NewLineage(hashes)
}

// ApplyLineage walks the lineage from the root, descending into the child
// whose hash matches the next entry. A leading entry equal to the root hash
// is consumed. The walk is permissive: it stops at the deepest match. exact
// reports whether the whole lineage was consumed.
func (g *Graph[T]) ApplyLineage(l digest.Lineage) (id NodeID, exact bool, err error) {
	root, err := g.Root()
	if err != nil {
		return 0, false, err
	}

	cur := root
	i := 0
	if l.Len() > 0 && l.At(0) == g.Hash(root) {
		i = 1
	}
	for ; i < l.Len(); i++ {
		next, ok := g.childWithHash(cur, l.At(i))
		if !ok {
			return cur, false, nil
		}
		cur = next
	}
	return cur, true, nil
}

func (g *Graph[T]) childWithHash(id NodeID, h digest.Digest) (NodeID, bool) {
	for _, c := range g.Children(id) {
		if g.Hash(c) == h {
			return c, true
		}
	}
	return 0, false
}
