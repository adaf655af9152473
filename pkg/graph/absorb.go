package graph

import (
	"github.com/OFFIS-RIT/stencil/pkg/errors"
)

type edge struct {
	recipient NodeID
	donor     NodeID
}

type absorber[T Payload[T]] struct {
	recipient *Graph[T]
	donor     *Graph[T]

	// matched maps donor ids to the recipient node standing in for them,
	// either an existing node or a grafted copy.
	matched map[NodeID]NodeID
	visited map[edge]bool
	grafted int
}

// Absorb merges donor into recipient. Donor nodes whose hash matches a child
// of the corresponding recipient node are walked further; anything else is
// grafted below the recipient node as a copy with blank learned fields.
// Subtrees whose subgraph hash already matches are skipped, so absorbing the
// same donor twice leaves the recipient unchanged. Back-edges of the donor
// are reproduced on the recipient counterparts. The donor is only read.
//
// An empty recipient becomes a copy of the donor. It returns the number of
// nodes added to recipient.
func Absorb[T Payload[T]](recipient, donor *Graph[T]) (int, error) {
	dRoot, err := donor.Root()
	if err != nil {
		return 0, errors.Wrap(err, "donor")
	}

	a := &absorber[T]{
		recipient: recipient,
		donor:     donor,
		matched:   make(map[NodeID]NodeID),
		visited:   make(map[edge]bool),
	}

	rRoot, err := recipient.Root()
	if errors.Is(err, ErrNoRoot) {
		id := a.copyTree(dRoot)
		recipient.mu.Lock()
		recipient.root = id
		recipient.mu.Unlock()
		return a.grafted, nil
	}
	if err != nil {
		return 0, err
	}
	if recipient.Hash(rRoot) != donor.Hash(dRoot) {
		return 0, errors.Contractf("root hash mismatch: recipient %s, donor %s",
			recipient.Hash(rRoot).Short(), donor.Hash(dRoot).Short())
	}

	a.matched[dRoot] = rRoot
	if recipient.SubgraphHash(rRoot) == donor.SubgraphHash(dRoot) {
		return 0, nil
	}
	for _, dc := range donor.Children(dRoot) {
		a.absorb(rRoot, dc)
	}
	return a.grafted, nil
}

func (a *absorber[T]) absorb(r, d NodeID) {
	key := edge{recipient: r, donor: d}
	if a.visited[key] {
		return
	}
	a.visited[key] = true

	dh := a.donor.Hash(d)
	for _, rc := range a.recipient.Children(r) {
		if a.recipient.Hash(rc) != dh {
			continue
		}
		if _, ok := a.matched[d]; !ok {
			a.matched[d] = rc
		}
		if a.recipient.SubgraphHash(rc) == a.donor.SubgraphHash(d) {
			return
		}
		for _, dc := range a.donor.Children(d) {
			a.absorb(rc, dc)
		}
		return
	}

	// back-edge to a node that already has a counterpart
	if m, ok := a.matched[d]; ok {
		_ = a.recipient.Link(r, m)
		return
	}

	c := a.copyTree(d)
	_ = a.recipient.Link(r, c)
}

// copyTree copies the donor subtree below d into the recipient and returns
// the id of the copy of d. Edges to donor nodes that already have a
// counterpart are linked to that counterpart instead of being copied.
func (a *absorber[T]) copyTree(d NodeID) NodeID {
	if m, ok := a.matched[d]; ok {
		return m
	}
	data, _ := a.donor.Data(d)
	id := a.recipient.Add(data.Blank())
	a.matched[d] = id
	a.grafted++

	for _, dc := range a.donor.Children(d) {
		c := a.copyTree(dc)
		_ = a.recipient.Link(id, c)
	}
	return id
}
