package graph

import (
	"github.com/OFFIS-RIT/stencil/pkg/digest"
)

// Cyclize folds recursive nesting into back-edges. Whenever a node has the
// same hash as one of its ancestors, it is merged into that ancestor: its
// children move up and its parents point at the ancestor instead. Passes
// repeat until nothing folds, so the result is a fixpoint. It returns the
// number of folded nodes.
func (g *Graph[T]) Cyclize() (int, error) {
	root, err := g.Root()
	if err != nil {
		return 0, err
	}

	total := 0
	for {
		n := g.cyclizePass(root)
		if n == 0 {
			return total, nil
		}
		total += n
	}
}

func (g *Graph[T]) cyclizePass(root NodeID) int {
	folds := 0
	path := make(map[digest.Digest]NodeID)
	onPath := make(map[NodeID]bool)
	visited := make(map[NodeID]bool)

	var walk func(id NodeID)
	walk = func(id NodeID) {
		visited[id] = true
		onPath[id] = true
		h := g.Hash(id)
		_, shadowed := path[h]
		if !shadowed {
			path[h] = id
		}

		for _, child := range g.Children(id) {
			if onPath[child] || !g.Has(child) {
				continue
			}
			if first, ok := path[g.Hash(child)]; ok && first != child {
				g.mergeInto(first, child)
				folds++
				continue
			}
			if !visited[child] {
				walk(child)
			}
		}

		if !shadowed {
			delete(path, h)
		}
		delete(onPath, id)
	}
	walk(root)
	return folds
}

// Prune merges sibling twins, children of the same parent with equal hash.
// The first twin is kept; the later one's children and parents are moved
// onto it. A kept twin that was already processed is visited again so that
// the children it gained are deduplicated as well, which makes a single
// call idempotent. It returns the number of merged nodes.
func (g *Graph[T]) Prune() (int, error) {
	root, err := g.Root()
	if err != nil {
		return 0, err
	}

	merges := 0
	done := make(map[NodeID]bool)
	queued := map[NodeID]bool{root: true}
	queue := []NodeID{root}
	enqueue := func(id NodeID) {
		if queued[id] {
			return
		}
		queued[id] = true
		queue = append(queue, id)
	}

	for len(queue) > 0 {
		id := queue[0]
		queue = queue[1:]
		delete(queued, id)
		if !g.Has(id) {
			continue
		}

		for {
			keep, drop, ok := g.twins(id, root)
			if !ok {
				break
			}
			g.mergeInto(keep, drop)
			merges++
			if done[keep] {
				delete(done, keep)
				enqueue(keep)
			}
		}
		done[id] = true

		for _, c := range g.Children(id) {
			if !done[c] {
				enqueue(c)
			}
		}
	}
	return merges, nil
}

// twins finds the first pair of equal-hash children of parent. The parent
// itself and the root are never chosen as the node to drop.
func (g *Graph[T]) twins(parent, root NodeID) (keep, drop NodeID, ok bool) {
	first := make(map[digest.Digest]NodeID)
	for _, c := range g.Children(parent) {
		h := g.Hash(c)
		k, seen := first[h]
		if !seen {
			first[h] = c
			continue
		}
		if c == parent || c == root {
			return c, k, true
		}
		return k, c, true
	}
	return 0, 0, false
}

// mergeInto redirects every edge of drop to keep and removes drop from the
// arena. Each step locks a single node.
func (g *Graph[T]) mergeInto(keep, drop NodeID) {
	if keep == drop {
		return
	}
	for _, p := range g.Parents(drop) {
		if p == drop {
			continue
		}
		g.editChildren(p, func(ids []NodeID) []NodeID { return replaceID(ids, drop, keep) })
		g.editParents(keep, func(ids []NodeID) []NodeID { return appendUnique(ids, p) })
	}
	for _, c := range g.Children(drop) {
		if c == drop {
			c = keep
		}
		g.editParents(c, func(ids []NodeID) []NodeID {
			ids = replaceID(ids, drop, keep)
			return appendUnique(ids, keep)
		})
		g.editChildren(keep, func(ids []NodeID) []NodeID { return appendUnique(ids, c) })
	}
	g.remove(drop)
}
