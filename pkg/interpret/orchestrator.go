package interpret

import (
	"context"
	"fmt"
	"slices"
	"sync"

	"golang.org/x/sync/errgroup"
	"golang.org/x/sync/semaphore"

	"github.com/OFFIS-RIT/stencil/internal/metrics"
	"github.com/OFFIS-RIT/stencil/pkg/basis"
	"github.com/OFFIS-RIT/stencil/pkg/digest"
	"github.com/OFFIS-RIT/stencil/pkg/document"
	"github.com/OFFIS-RIT/stencil/pkg/graph"
	"github.com/OFFIS-RIT/stencil/pkg/logger"
	"github.com/OFFIS-RIT/stencil/pkg/store"
)

// Orchestrator runs one interpretation pass over a basis graph.
type Orchestrator struct {
	interp Interpreter
	store  store.Store
	opts   Options
}

// New creates an orchestrator. store may be nil, which disables the
// basis-node cache.
func New(interp Interpreter, st store.Store, opts Options) *Orchestrator {
	if opts.MaxConcurrency < 1 {
		opts.MaxConcurrency = 1
	}
	if opts.MaxExamples < 1 {
		opts.MaxExamples = DefaultOptions().MaxExamples
	}
	if opts.MaxExemplars < 1 {
		opts.MaxExemplars = DefaultOptions().MaxExemplars
	}
	if opts.Snippet.Target <= 0 {
		opts.Snippet = document.DefaultSnippetOptions()
	}
	return &Orchestrator{interp: interp, store: st, opts: opts}
}

// Report counts how the nodes of a pass were settled. Skipped nodes are
// counted under basis.Skipped but stay unvisited in the graph.
type Report struct {
	mu          sync.Mutex
	Resolutions map[basis.Resolution]int
	Cached      int
	Failed      int
	// Order lists the nodes in the order they were visited.
	Order []graph.NodeID
}

func (r *Report) visit(id graph.NodeID) {
	r.mu.Lock()
	r.Order = append(r.Order, id)
	r.mu.Unlock()
}

func (r *Report) settle(res basis.Resolution, cached bool) {
	r.mu.Lock()
	r.Resolutions[res]++
	if cached {
		r.Cached++
	}
	r.mu.Unlock()
	metrics.RecordResolution(res.String())
}

func (r *Report) fail() {
	r.mu.Lock()
	r.Failed++
	r.mu.Unlock()
}

// homolog is a concrete instance of a basis node.
type homolog struct {
	root *document.Node
	node *document.Node
}

type instance struct {
	tree  *graph.Graph[basis.OutputNode]
	root  *document.Node
	index *graph.HomologIndex
}

type pass struct {
	*Orchestrator
	g         *graph.Graph[basis.Node]
	instances []instance
	report    *Report
}

// Run interprets every unsettled node of g. trees are the output trees of
// the documents g was learned from; they supply the homologs. Nodes are
// admitted in breadth-first order through a gate of MaxConcurrency
// permits. Failures of single nodes are logged and leave the node
// unvisited for the next run; only cancellation and contract errors are
// returned.
func (o *Orchestrator) Run(ctx context.Context, g *graph.Graph[basis.Node], trees []*graph.Graph[basis.OutputNode]) (*Report, error) {
	if _, err := g.Root(); err != nil {
		return nil, err
	}

	p := &pass{Orchestrator: o, g: g, report: &Report{Resolutions: make(map[basis.Resolution]int)}}
	for _, t := range trees {
		idx, err := graph.IndexHomologs(g, t)
		if err != nil {
			return nil, fmt.Errorf("index homologs: %w", err)
		}
		p.instances = append(p.instances, instance{tree: t, root: documentRoot(t), index: idx})
	}

	ids := g.IDs()
	logger.Info("[Interpret] starting pass", "nodes", len(ids), "documents", len(trees), "concurrency", o.opts.MaxConcurrency)

	gate := semaphore.NewWeighted(int64(o.opts.MaxConcurrency))
	eg, egCtx := errgroup.WithContext(ctx)
	for _, id := range ids {
		if err := gate.Acquire(egCtx, 1); err != nil {
			break
		}
		eg.Go(func() error {
			defer gate.Release(1)
			return p.visit(egCtx, id)
		})
	}
	if err := eg.Wait(); err != nil {
		return p.report, err
	}
	if err := ctx.Err(); err != nil {
		return p.report, err
	}

	logger.Info("[Interpret] pass done",
		"interpreted", p.report.Resolutions[basis.Interpreted],
		"classical", p.report.Resolutions[basis.ClassicallyResolved],
		"skipped", p.report.Resolutions[basis.Skipped],
		"cached", p.report.Cached,
		"failed", p.report.Failed,
	)
	if n := p.report.Resolutions[basis.Skipped]; n > 0 {
		logger.Warn("[Interpret] nodes without homologs left for a later run", "count", n)
	}
	return p.report, nil
}

func documentRoot(t *graph.Graph[basis.OutputNode]) *document.Node {
	root, err := t.Root()
	if err != nil {
		return nil
	}
	for _, c := range t.Children(root) {
		if d, ok := t.Data(c); ok && d.Source != nil {
			return d.Source
		}
	}
	return nil
}

func (p *pass) homologs(id graph.NodeID) []homolog {
	var out []homolog
	for _, inst := range p.instances {
		for _, h := range inst.index.Homologs(id) {
			if d, ok := inst.tree.Data(h); ok && d.Source != nil {
				out = append(out, homolog{root: inst.root, node: d.Source})
			}
		}
	}
	return out
}

func (p *pass) snippets(hs []homolog, limit int) []string {
	out := make([]string, 0, min(len(hs), limit))
	for _, h := range hs {
		if len(out) == limit {
			break
		}
		root := h.root
		if root == nil {
			root = h.node
		}
		out = append(out, document.Snippet(root, h.node, p.opts.Snippet))
	}
	return out
}

func (p *pass) visit(ctx context.Context, id graph.NodeID) error {
	if err := ctx.Err(); err != nil {
		return err
	}
	p.report.visit(id)

	node, ok := p.g.Data(id)
	if !ok {
		return nil
	}
	lineage := p.g.Lineage(id)

	if node.Resolution == basis.Unvisited && !node.IsInterpreted() && !node.Shape.IsRoot() {
		if restored, err := p.restore(ctx, id, lineage, node); err != nil {
			logger.Warn("[Interpret] basis node cache lookup failed", "node_id", id, "lineage", lineage, "err", err)
		} else if restored {
			return nil
		}
	}

	hs := p.homologs(id)
	d := Plan(PlanInput{Node: node, Homologs: len(hs), LayoutTags: p.opts.LayoutTags})
	switch d.Action {
	case ActionKeep:
		logger.Debug("[Interpret] node already resolved", "node_id", id, "lineage", lineage, "resolution", d.Resolution)
		return nil
	case ActionSkip:
		logger.Debug("[Interpret] basis node has no homologs in this batch", "node_id", id, "lineage", lineage, "shape", node.Shape)
		p.report.settle(basis.Skipped, false)
		return nil
	case ActionResolve:
		logger.Debug("[Interpret] resolving node without interpreter", "node_id", id, "lineage", lineage, "reason", d.Reason)
		if p.settle(id, nil, nil, d.Resolution) {
			p.report.settle(d.Resolution, false)
		}
		return nil
	}

	data, structure, err := p.interpret(ctx, id, node, d, hs)
	if err != nil {
		if ctx.Err() != nil {
			return ctx.Err()
		}
		logger.Error("[Interpret] interpreter failed, node left unvisited", "node_id", id, "lineage", lineage, "err", err)
		p.report.fail()
		return nil
	}

	if !p.settle(id, data, structure, basis.Interpreted) {
		return nil
	}
	p.report.settle(basis.Interpreted, false)

	if p.store != nil {
		final, _ := p.g.Data(id)
		if err := p.store.SaveBasisNode(ctx, lineage, final); err != nil {
			logger.Warn("[Interpret] saving basis node failed", "node_id", id, "lineage", lineage, "err", err)
		}
	}
	return nil
}

// settle writes the results onto the node once. It reports false if the
// node was settled concurrently.
func (p *pass) settle(id graph.NodeID, data []basis.Data, structure []basis.Structure, res basis.Resolution) bool {
	written := false
	p.g.Update(id, func(n *basis.Node) {
		if n.IsInterpreted() || n.Resolution != basis.Unvisited {
			return
		}
		n.Data = data
		n.Structure = structure
		n.Resolution = res
		written = true
	})
	return written
}

// restore copies a node interpreted in an earlier run at the same lineage.
func (p *pass) restore(ctx context.Context, id graph.NodeID, lineage digest.Lineage, node basis.Node) (bool, error) {
	if p.store == nil {
		return false, nil
	}
	cached, ok, err := p.store.GetBasisNodeByLineage(ctx, lineage)
	metrics.RecordCacheLookup("node", ok && err == nil)
	if err != nil || !ok {
		return false, err
	}
	if cached.Fingerprint() != node.Fingerprint() || cached.Resolution != basis.Interpreted {
		return false, nil
	}

	structure := slices.Clone(cached.Structure)
	for i, s := range structure {
		if s.Kind == basis.StructureEnumerative {
			// ids are local to a graph; successors are always the node itself
			structure[i] = basis.NewEnumerative(id)
		}
	}
	if !p.settle(id, slices.Clone(cached.Data), structure, basis.Interpreted) {
		return true, nil
	}
	logger.Debug("[Interpret] restored basis node", "node_id", id, "lineage", lineage)
	p.report.settle(basis.Interpreted, true)
	return true, nil
}

func (p *pass) interpret(ctx context.Context, id graph.NodeID, node basis.Node, d Decision, hs []homolog) ([]basis.Data, []basis.Structure, error) {
	snippets := p.snippets(hs, p.opts.MaxExamples)

	if d.Text {
		field, err := p.interp.ClassifyText(ctx, snippets)
		if err != nil {
			return nil, nil, fmt.Errorf("classify text: %w", err)
		}
		if field.Name == "" {
			return nil, nil, nil
		}
		field.Selector = basis.Selector{}
		return []basis.Data{field}, nil, nil
	}

	verdict, err := p.interp.ClassifyStructure(ctx, node.Shape.Attributes, snippets)
	if err != nil {
		return nil, nil, fmt.Errorf("classify structure: %w", err)
	}

	var structure []basis.Structure
	if r := verdict.Recursive; r != nil {
		if slices.Contains(node.Shape.Attributes, r.Attribute) {
			structure = append(structure, basis.NewRecursive(*r))
		} else {
			logger.Warn("[Interpret] recursive attribute not on node, ignored", "node_id", id, "attribute", r.Attribute)
		}
	}
	if verdict.Enumerative {
		structure = append(structure, basis.NewEnumerative(id))
	}
	if verdict.Associative {
		groups, err := p.associations(ctx, id)
		if err != nil {
			return nil, nil, fmt.Errorf("classify associations: %w", err)
		}
		if len(groups) > 0 {
			structure = append(structure, basis.NewAssociative(groups))
		}
	}

	if !d.Data {
		return nil, structure, nil
	}
	attrs := node.Shape.MeaningfulAttributes()
	fields, err := p.interp.ClassifyData(ctx, attrs, snippets)
	if err != nil {
		return nil, nil, fmt.Errorf("classify data: %w", err)
	}
	var data []basis.Data
	for _, f := range fields {
		if f.Name == "" || f.Selector.IsText() || !slices.Contains(attrs, f.Selector.Attribute) {
			continue
		}
		data = append(data, f)
	}
	return data, structure, nil
}

// associations groups the children of id whose instances form one record.
// Every child contributes at most MaxExemplars excerpts per distinct
// association key.
func (p *pass) associations(ctx context.Context, id graph.NodeID) ([][]string, error) {
	var children []graph.NodeID
	for _, c := range p.g.Children(id) {
		if c != id {
			children = append(children, c)
		}
	}
	if len(children) < 2 {
		return nil, nil
	}

	keys := make(map[string]bool)
	var tagged []TaggedSnippet
	for _, c := range children {
		key := basis.AssociationKey(p.g, c)
		if keys[key] {
			continue
		}
		keys[key] = true
		for _, s := range p.snippets(p.homologs(c), p.opts.MaxExemplars) {
			tagged = append(tagged, TaggedSnippet{Key: key, Snippet: s})
		}
	}
	if len(keys) < 2 {
		return nil, nil
	}

	groups, err := p.interp.ClassifyAssociations(ctx, tagged)
	if err != nil {
		return nil, err
	}

	var out [][]string
	for _, g := range groups {
		var members []string
		for _, k := range g {
			if keys[k] && !slices.Contains(members, k) {
				members = append(members, k)
			}
		}
		if len(members) >= 2 {
			slices.Sort(members)
			out = append(out, members)
		}
	}
	return out, nil
}
