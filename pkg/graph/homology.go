package graph

import (
	"github.com/OFFIS-RIT/stencil/pkg/digest"
)

// FindHomologous returns the nodes of tree whose lineage resolves exactly to
// target in basis, in breadth-first order.
func FindHomologous[B Payload[B], O Payload[O]](target NodeID, basis *Graph[B], tree *Graph[O]) ([]NodeID, error) {
	root, err := tree.Root()
	if err != nil {
		return nil, err
	}
	if _, err := basis.Root(); err != nil {
		return nil, err
	}

	var out []NodeID
	tree.BFS(root, func(id NodeID, _ int) bool {
		got, exact, _ := basis.ApplyLineage(tree.Lineage(id))
		if exact && got == target {
			out = append(out, id)
		}
		return true
	})
	return out, nil
}

// HomologIndex maps basis nodes to their homologs in one output tree. It is
// computed in a single pass, extending lineages incrementally instead of
// resolving each one from the root.
type HomologIndex struct {
	byBasis  map[NodeID][]NodeID
	byOutput map[NodeID]NodeID
}

func IndexHomologs[B Payload[B], O Payload[O]](basis *Graph[B], tree *Graph[O]) (*HomologIndex, error) {
	bRoot, err := basis.Root()
	if err != nil {
		return nil, err
	}
	tRoot, err := tree.Root()
	if err != nil {
		return nil, err
	}

	idx := &HomologIndex{
		byBasis:  make(map[NodeID][]NodeID),
		byOutput: make(map[NodeID]NodeID),
	}

	type item struct {
		id   NodeID
		last digest.Digest
		at   NodeID
	}

	start := item{id: tRoot, last: tree.Hash(tRoot), at: bRoot}
	if tree.Hash(tRoot) != basis.Hash(bRoot) {
		// a foreign root is consumed as the first lineage step
		c, ok := basis.childWithHash(bRoot, tree.Hash(tRoot))
		if !ok {
			return idx, nil
		}
		start.at = c
	}

	queue := []item{start}
	for len(queue) > 0 {
		it := queue[0]
		queue = queue[1:]
		idx.byOutput[it.id] = it.at
		idx.byBasis[it.at] = append(idx.byBasis[it.at], it.id)

		for _, c := range tree.Children(it.id) {
			h := tree.Hash(c)
			if h == it.last {
				// consecutive repeats collapse in the lineage
				queue = append(queue, item{id: c, last: h, at: it.at})
				continue
			}
			next, ok := basis.childWithHash(it.at, h)
			if !ok {
				continue
			}
			queue = append(queue, item{id: c, last: h, at: next})
		}
	}
	return idx, nil
}

// Homologs returns the output nodes resolving to basis node id.
func (x *HomologIndex) Homologs(id NodeID) []NodeID {
	return x.byBasis[id]
}

// Resolve returns the basis node an output node resolves to.
func (x *HomologIndex) Resolve(id NodeID) (NodeID, bool) {
	b, ok := x.byOutput[id]
	return b, ok
}
