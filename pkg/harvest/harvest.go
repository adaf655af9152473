package harvest

import (
	"context"
	"fmt"
	"slices"

	"golang.org/x/sync/errgroup"

	"github.com/OFFIS-RIT/stencil/internal/metrics"
	"github.com/OFFIS-RIT/stencil/pkg/basis"
	"github.com/OFFIS-RIT/stencil/pkg/document"
	"github.com/OFFIS-RIT/stencil/pkg/graph"
	"github.com/OFFIS-RIT/stencil/pkg/logger"
)

// Options configure a Harvester.
type Options struct {
	// MergeLeafRuns merges runs of value-only leaves into synthetic
	// containers.
	MergeLeafRuns bool
}

func DefaultOptions() Options {
	return Options{MergeLeafRuns: true}
}

// Harvester extracts content from documents with an interpreted basis
// graph. The basis graph must not change while harvesting.
type Harvester struct {
	basis *graph.Graph[basis.Node]
	opts  Options
}

func New(g *graph.Graph[basis.Node], opts Options) *Harvester {
	return &Harvester{basis: g, opts: opts}
}

// entry is the analysis of one output node, in output node ids.
type entry struct {
	out      graph.NodeID
	values   []Value
	parent   graph.NodeID
	isRoot   bool
	next     graph.NodeID
	assoc    []string
	children []*entry
}

// Harvest extracts the content of a loaded document.
func (h *Harvester) Harvest(ctx context.Context, doc *document.Document) (*Result, error) {
	if doc == nil || doc.Root == nil {
		return nil, fmt.Errorf("harvest: empty document")
	}
	tree, err := basis.BuildOutput(doc.Root)
	if err != nil {
		return nil, err
	}
	res, err := h.HarvestTree(ctx, tree)
	if err != nil {
		return nil, err
	}
	res.Source = doc.Source
	res.Title = doc.Title
	return res, nil
}

// HarvestTree harvests an output tree. Peripheral values go to
// RelatedContent, all others to Content; both trees are assembled and
// post-processed concurrently.
func (h *Harvester) HarvestTree(ctx context.Context, tree *graph.Graph[basis.OutputNode]) (*Result, error) {
	idx, err := graph.IndexHomologs(h.basis, tree)
	if err != nil {
		return nil, err
	}
	root, err := tree.Root()
	if err != nil {
		return nil, err
	}

	a := &analysis{h: h, tree: tree, idx: idx}
	top := a.walk(root)
	if a.unresolved > 0 {
		logger.Debug("[Harvest] output nodes without basis node", "count", a.unresolved)
	}

	res := &Result{}
	eg, _ := errgroup.WithContext(ctx)
	eg.Go(func() error {
		res.Content = h.assemble(top, false)
		return nil
	})
	eg.Go(func() error {
		res.RelatedContent = h.assemble(top, true)
		return nil
	})
	if err := eg.Wait(); err != nil {
		return nil, err
	}
	if err := ctx.Err(); err != nil {
		return nil, err
	}

	metrics.RecordHarvested("content", res.Content.Size())
	metrics.RecordHarvested("related", res.RelatedContent.Size())
	return res, nil
}

type analysis struct {
	h          *Harvester
	tree       *graph.Graph[basis.OutputNode]
	idx        *graph.HomologIndex
	unresolved int
}

func (a *analysis) source(id graph.NodeID) *document.Node {
	d, ok := a.tree.Data(id)
	if !ok {
		return nil
	}
	return d.Source
}

func (a *analysis) walk(id graph.NodeID) *entry {
	e := &entry{out: id}
	if b, ok := a.idx.Resolve(id); ok {
		a.apply(e, b)
	} else {
		a.unresolved++
	}
	for _, c := range a.tree.Children(id) {
		e.children = append(e.children, a.walk(c))
	}
	a.associate(e)
	return e
}

// apply evaluates the interpretations of basis node b on output node e.out.
func (a *analysis) apply(e *entry, b graph.NodeID) {
	node, ok := a.h.basis.Data(b)
	if !ok {
		return
	}
	src := a.source(e.out)
	if src == nil {
		return
	}

	for _, d := range node.Data {
		if v, ok := extract(src, d.Selector); ok {
			e.values = append(e.values, Value{Name: d.Name, Value: v, Peripheral: d.Peripheral, URL: d.URL})
		}
	}

	for _, s := range node.Structure {
		switch s.Kind {
		case basis.StructureRecursive:
			if s.Recursive != nil {
				a.recursive(e, b, src, *s.Recursive)
			}
		case basis.StructureEnumerative:
			if s.Enumerative != nil {
				e.next = a.successor(e.out, s.Enumerative.Next)
			}
		}
	}
}

func extract(n *document.Node, sel basis.Selector) (string, bool) {
	var v string
	switch {
	case !sel.IsText():
		v, _ = n.Attr(sel.Attribute)
	case n.Kind == document.KindText:
		v = n.Text
	default:
		v = document.TextContent(n)
	}
	return v, v != ""
}

// recursive resolves whether the node is a root instance or which instance
// is its parent. The parent is searched among the preceding siblings,
// nearest first, then among the ancestors.
func (a *analysis) recursive(e *entry, b graph.NodeID, src *document.Node, r basis.Recursive) {
	v, ok := src.Attr(r.Attribute)
	if !ok {
		return
	}
	if slices.Contains(r.RootValues, v) {
		e.isRoot = true
		return
	}
	want, ok := r.Rule.Parent(v)
	if !ok {
		e.isRoot = true
		return
	}

	matches := func(id graph.NodeID) bool {
		if rb, ok := a.idx.Resolve(id); !ok || rb != b {
			return false
		}
		s := a.source(id)
		if s == nil {
			return false
		}
		got, ok := s.Attr(r.Attribute)
		return ok && got == want
	}

	parents := a.tree.Parents(e.out)
	if len(parents) > 0 {
		siblings := a.tree.Children(parents[0])
		if i := slices.Index(siblings, e.out); i > 0 {
			for j := i - 1; j >= 0; j-- {
				if matches(siblings[j]) {
					e.parent = siblings[j]
					return
				}
			}
		}
	}
	for len(parents) > 0 {
		p := parents[0]
		if matches(p) {
			e.parent = p
			return
		}
		parents = a.tree.Parents(p)
	}
	logger.Debug("[Harvest] recursive parent not found", "node_id", e.out, "attribute", r.Attribute, "value", v)
}

// successor returns the first following sibling resolving to next.
func (a *analysis) successor(id, next graph.NodeID) graph.NodeID {
	parents := a.tree.Parents(id)
	if len(parents) == 0 {
		return 0
	}
	siblings := a.tree.Children(parents[0])
	i := slices.Index(siblings, id)
	if i < 0 {
		return 0
	}
	for _, s := range siblings[i+1:] {
		if b, ok := a.idx.Resolve(s); ok && b == next {
			return s
		}
	}
	return 0
}

// associate sets the association keys of the children of e, when the
// basis node of e groups them.
func (a *analysis) associate(e *entry) {
	b, ok := a.idx.Resolve(e.out)
	if !ok {
		return
	}
	node, _ := a.h.basis.Data(b)
	s, ok := node.StructureOf(basis.StructureAssociative)
	if !ok || s.Associative == nil {
		return
	}
	for _, c := range e.children {
		cb, ok := a.idx.Resolve(c.out)
		if !ok {
			continue
		}
		key := basis.AssociationKey(a.h.basis, cb)
		for _, group := range s.Associative.Groups {
			if !slices.Contains(group, key) {
				continue
			}
			for _, k := range group {
				if k != key && !slices.Contains(c.assoc, k) {
					c.assoc = append(c.assoc, k)
				}
			}
		}
	}
}

// assemble turns the analysis into a content tree holding the peripheral
// or the primary values, then post-processes it. Links are kept only in
// the primary tree.
func (h *Harvester) assemble(top *entry, peripheral bool) *Content {
	byOut := make(map[graph.NodeID]*Content)

	var build func(e *entry) *Content
	build = func(e *entry) *Content {
		c := newContent()
		byOut[e.out] = c
		for _, v := range e.values {
			if v.Peripheral == peripheral {
				c.Values = append(c.Values, v)
			}
		}
		for _, x := range e.children {
			c.InnerContent = append(c.InnerContent, build(x))
		}
		return c
	}
	root := build(top)

	if !peripheral {
		var link func(e *entry)
		link = func(e *entry) {
			m := &Meta{IsRoot: e.isRoot, Associates: e.assoc}
			if p, ok := byOut[e.parent]; ok && e.parent != 0 {
				m.Parent = p.ID
			}
			if n, ok := byOut[e.next]; ok && e.next != 0 {
				m.Next = n.ID
			}
			if !m.IsZero() {
				byOut[e.out].Meta = m
			}
			for _, x := range e.children {
				link(x)
			}
		}
		link(top)
	}

	return postprocess(root, h.opts)
}
