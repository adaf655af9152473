package interpret

import (
	"context"
	"errors"
	"strings"
	"sync"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/OFFIS-RIT/stencil/pkg/basis"
	"github.com/OFFIS-RIT/stencil/pkg/document"
	"github.com/OFFIS-RIT/stencil/pkg/graph"
	"github.com/OFFIS-RIT/stencil/pkg/store/memory"
)

const list = `<html><body><ul class="items">
<li data-id="1">alpha</li><li data-id="2">beta</li><li data-id="3">gamma</li>
</ul></body></html>`

type fakeInterpreter struct {
	mu       sync.Mutex
	calls    map[string]int
	snippets []string
	err      error
}

func newFake() *fakeInterpreter {
	return &fakeInterpreter{calls: make(map[string]int)}
}

func (f *fakeInterpreter) record(kind string, snippets []string) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.calls[kind]++
	f.snippets = append(f.snippets, snippets...)
	return f.err
}

func (f *fakeInterpreter) total() int {
	f.mu.Lock()
	defer f.mu.Unlock()
	n := 0
	for _, c := range f.calls {
		n += c
	}
	return n
}

func (f *fakeInterpreter) ClassifyStructure(_ context.Context, attrs []string, snippets []string) (StructureVerdict, error) {
	if err := f.record("structure", snippets); err != nil {
		return StructureVerdict{}, err
	}
	for _, a := range attrs {
		if a == "data-id" {
			return StructureVerdict{Enumerative: true}, nil
		}
	}
	return StructureVerdict{Associative: true}, nil
}

func (f *fakeInterpreter) ClassifyData(_ context.Context, attrs []string, snippets []string) ([]basis.Data, error) {
	if err := f.record("data", snippets); err != nil {
		return nil, err
	}
	out := []basis.Data{{Name: "bogus", Selector: basis.Selector{Attribute: "missing"}}}
	for _, a := range attrs {
		out = append(out, basis.Data{Name: strings.ReplaceAll(a, "-", "_"), Selector: basis.Selector{Attribute: a}})
	}
	return out, nil
}

func (f *fakeInterpreter) ClassifyText(_ context.Context, snippets []string) (basis.Data, error) {
	if err := f.record("text", snippets); err != nil {
		return basis.Data{}, err
	}
	return basis.Data{Name: "label", Selector: basis.Selector{Attribute: "ignored"}}, nil
}

func (f *fakeInterpreter) ClassifyAssociations(_ context.Context, snippets []TaggedSnippet) ([][]string, error) {
	f.mu.Lock()
	f.calls["associations"]++
	f.mu.Unlock()
	var keys []string
	for _, s := range snippets {
		keys = append(keys, s.Key)
	}
	return [][]string{append(keys, "unknown")}, nil
}

func learn(t *testing.T, src string) (*graph.Graph[basis.Node], *graph.Graph[basis.OutputNode]) {
	t.Helper()
	root, err := document.ParseBytes([]byte(src), document.DefaultFilter())
	require.NoError(t, err)
	g, err := basis.BuildBasis(root)
	require.NoError(t, err)
	out, err := basis.BuildOutput(root)
	require.NoError(t, err)
	return g, out
}

func find(t *testing.T, g *graph.Graph[basis.Node], match func(basis.Node) bool) graph.NodeID {
	t.Helper()
	for _, id := range g.IDs() {
		if d, _ := g.Data(id); match(d) {
			return id
		}
	}
	t.Fatal("no matching node")
	return 0
}

func tag(name string) func(basis.Node) bool {
	return func(n basis.Node) bool { return n.Shape.Tag == name }
}

func sequential() Options {
	opts := DefaultOptions()
	opts.MaxConcurrency = 1
	return opts
}

func TestRun_ResolvesEveryNode(t *testing.T) {
	g, out := learn(t, list)
	fake := newFake()

	report, err := New(fake, nil, DefaultOptions()).Run(context.Background(), g, []*graph.Graph[basis.OutputNode]{out})
	require.NoError(t, err)

	for _, id := range g.IDs() {
		d, _ := g.Data(id)
		assert.NotEqual(t, basis.Unvisited, d.Resolution, "node %s %s", id, d.Shape)
	}
	assert.Equal(t, 3, report.Resolutions[basis.ClassicallyResolved]) // root, html, body

	li, _ := g.Data(find(t, g, tag("li")))
	assert.Equal(t, basis.Interpreted, li.Resolution)
	require.Len(t, li.Data, 1)
	assert.Equal(t, "data_id", li.Data[0].Name)
	s, ok := li.StructureOf(basis.StructureEnumerative)
	require.True(t, ok)
	assert.Equal(t, find(t, g, tag("li")), s.Enumerative.Next)

	text, _ := g.Data(find(t, g, func(n basis.Node) bool { return n.Shape.IsText() }))
	require.Len(t, text.Data, 1)
	assert.True(t, text.Data[0].Selector.IsText())

	for _, s := range fake.snippets {
		assert.Contains(t, s, document.TargetStart)
		assert.Contains(t, s, document.TargetEnd)
	}
}

func TestRun_Idempotent(t *testing.T) {
	g, out := learn(t, list)
	fake := newFake()
	o := New(fake, nil, DefaultOptions())
	trees := []*graph.Graph[basis.OutputNode]{out}

	_, err := o.Run(context.Background(), g, trees)
	require.NoError(t, err)
	calls := fake.total()
	require.Positive(t, calls)
	before, err := graph.Encode(g)
	require.NoError(t, err)

	_, err = o.Run(context.Background(), g, trees)
	require.NoError(t, err)
	assert.Equal(t, calls, fake.total())
	after, err := graph.Encode(g)
	require.NoError(t, err)
	assert.Equal(t, before, after)
}

func TestRun_SequentialOrder(t *testing.T) {
	g, out := learn(t, list)

	report, err := New(newFake(), nil, sequential()).Run(context.Background(), g, []*graph.Graph[basis.OutputNode]{out})
	require.NoError(t, err)
	assert.Equal(t, g.IDs(), report.Order)
}

func TestRun_FailureLeavesNodeUnvisited(t *testing.T) {
	g, out := learn(t, list)
	trees := []*graph.Graph[basis.OutputNode]{out}
	failing := newFake()
	failing.err = errors.New("model unavailable")

	report, err := New(failing, nil, sequential()).Run(context.Background(), g, trees)
	require.NoError(t, err)
	assert.Positive(t, report.Failed)
	li, _ := g.Data(find(t, g, tag("li")))
	assert.Equal(t, basis.Unvisited, li.Resolution)

	report, err = New(newFake(), nil, sequential()).Run(context.Background(), g, trees)
	require.NoError(t, err)
	assert.Zero(t, report.Failed)
	li, _ = g.Data(find(t, g, tag("li")))
	assert.Equal(t, basis.Interpreted, li.Resolution)
}

func TestRun_RestoresFromStore(t *testing.T) {
	st := memory.New()
	g, out := learn(t, list)
	_, err := New(newFake(), st, sequential()).Run(context.Background(), g, []*graph.Graph[basis.OutputNode]{out})
	require.NoError(t, err)

	fresh, freshOut := learn(t, list)
	failing := newFake()
	failing.err = errors.New("must not be called")
	report, err := New(failing, st, sequential()).Run(context.Background(), fresh, []*graph.Graph[basis.OutputNode]{freshOut})
	require.NoError(t, err)
	assert.Zero(t, report.Failed)
	assert.Positive(t, report.Cached)

	liID := find(t, fresh, tag("li"))
	li, _ := fresh.Data(liID)
	s, ok := li.StructureOf(basis.StructureEnumerative)
	require.True(t, ok)
	assert.Equal(t, liID, s.Enumerative.Next)
}

func TestRun_NoHomologsSkips(t *testing.T) {
	g, _ := learn(t, list)
	fake := newFake()

	report, err := New(fake, nil, DefaultOptions()).Run(context.Background(), g, nil)
	require.NoError(t, err)
	assert.Zero(t, fake.total())
	assert.Equal(t, 1, report.Resolutions[basis.ClassicallyResolved])
	assert.Equal(t, g.Len()-1, report.Resolutions[basis.Skipped])

	root, err := g.Root()
	require.NoError(t, err)
	for _, id := range g.IDs() {
		if id == root {
			continue
		}
		n, _ := g.Data(id)
		assert.Equal(t, basis.Unvisited, n.Resolution, "node %d", id)
	}
}

func TestRun_Associations(t *testing.T) {
	g, out := learn(t, `<html><body><dl><dt>Title</dt><dd>Details</dd></dl></body></html>`)
	fake := newFake()

	_, err := New(fake, nil, sequential()).Run(context.Background(), g, []*graph.Graph[basis.OutputNode]{out})
	require.NoError(t, err)

	dlID := find(t, g, tag("dl"))
	dl, _ := g.Data(dlID)
	s, ok := dl.StructureOf(basis.StructureAssociative)
	require.True(t, ok)
	require.Len(t, s.Associative.Groups, 1)

	var want []string
	for _, c := range g.Children(dlID) {
		want = append(want, basis.AssociationKey(g, c))
	}
	assert.ElementsMatch(t, want, s.Associative.Groups[0])
}

func TestRun_Cancelled(t *testing.T) {
	g, out := learn(t, list)
	ctx, cancel := context.WithCancel(context.Background())
	cancel()

	_, err := New(newFake(), nil, DefaultOptions()).Run(ctx, g, []*graph.Graph[basis.OutputNode]{out})
	assert.ErrorIs(t, err, context.Canceled)
}
