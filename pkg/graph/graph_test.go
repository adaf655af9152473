package graph

import (
	"encoding/json"
	"sync"
	"testing"

	"github.com/OFFIS-RIT/stencil/pkg/digest"
	"github.com/OFFIS-RIT/stencil/pkg/errors"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

// label is a minimal payload: Name is structural, Note is a learned field.
type label struct {
	Name string `json:"name"`
	Note string `json:"note,omitempty"`
}

func (l label) Fingerprint() digest.Digest { return digest.Of("label", l.Name) }
func (l label) Blank() label               { return label{Name: l.Name} }
func (l label) Describe() string           { return l.Name }

type tn struct {
	name string
	kids []tn
}

func n(name string, kids ...tn) tn { return tn{name: name, kids: kids} }

func build(t *testing.T, kids ...tn) *Graph[label] {
	t.Helper()
	g := New[label]()
	root := g.AddRoot(label{Name: "root"})
	var add func(parent NodeID, spec tn)
	add = func(parent NodeID, spec tn) {
		id := g.Add(label{Name: spec.name})
		require.NoError(t, g.Link(parent, id))
		for _, k := range spec.kids {
			add(id, k)
		}
	}
	for _, k := range kids {
		add(root, k)
	}
	return g
}

func childNamed(t *testing.T, g *Graph[label], id NodeID, name string) NodeID {
	t.Helper()
	for _, c := range g.Children(id) {
		if d, _ := g.Data(c); d.Name == name {
			return c
		}
	}
	t.Fatalf("node %s has no child %q", id, name)
	return 0
}

func commentThread() []tn {
	return []tn{
		n("comment",
			n("text"),
			n("replies",
				n("comment",
					n("text"),
					n("replies",
						n("comment", n("text")))))),
	}
}

func TestRoot_Missing(t *testing.T) {
	g := New[label]()
	_, err := g.Root()
	assert.ErrorIs(t, err, ErrNoRoot)
	assert.True(t, errors.IsContract(err))

	_, err = g.Cyclize()
	assert.ErrorIs(t, err, ErrNoRoot)
}

func TestSubgraphHash_IgnoresSiblingOrder(t *testing.T) {
	a := build(t, n("ul", n("li"), n("p")))
	b := build(t, n("ul", n("p"), n("li")))
	c := build(t, n("ul", n("li"), n("span")))

	ra, _ := a.Root()
	rb, _ := b.Root()
	rc, _ := c.Root()
	assert.Equal(t, a.SubgraphHash(ra), b.SubgraphHash(rb))
	assert.NotEqual(t, a.SubgraphHash(ra), c.SubgraphHash(rc))
}

func TestSubgraphHash_IgnoresGrandchildOrder(t *testing.T) {
	a := build(t, n("ul", n("li", n("a"), n("b")), n("li", n("c"))))
	b := build(t, n("ul", n("li", n("c")), n("li", n("b"), n("a"))))
	c := build(t, n("ul", n("li", n("a"), n("c")), n("li", n("b"))))

	ra, _ := a.Root()
	rb, _ := b.Root()
	rc, _ := c.Root()
	assert.Equal(t, a.SubgraphHash(ra), b.SubgraphHash(rb))
	assert.NotEqual(t, a.SubgraphHash(ra), c.SubgraphHash(rc), "moving a grandchild to another parent changes the hash")
}

func TestSubgraphHash_SelfLoop(t *testing.T) {
	g := build(t, n("div", n("p")))
	root, _ := g.Root()
	div := childNamed(t, g, root, "div")
	acyclic := g.SubgraphHash(root)

	require.NoError(t, g.Link(div, div))
	looped := g.SubgraphHash(root)
	assert.NotEqual(t, acyclic, looped)
	assert.Equal(t, looped, g.SubgraphHash(root))

	folds, err := g.Cyclize()
	require.NoError(t, err)
	assert.Zero(t, folds)
	_, err = g.Prune()
	require.NoError(t, err)

	assert.Equal(t, looped, g.SubgraphHash(root))
	assert.Contains(t, g.Children(div), div)
	assert.Equal(t, 3, g.Len())
}

func TestCyclize_CommentThread(t *testing.T) {
	g := build(t, commentThread()...)
	root, _ := g.Root()

	folds, err := g.Cyclize()
	require.NoError(t, err)
	assert.Equal(t, 2, folds)

	again, err := g.Cyclize()
	require.NoError(t, err)
	assert.Zero(t, again)

	// no node shares its hash with an ancestor on the structural path
	for _, id := range g.IDs() {
		h := g.Hash(id)
		seen := map[NodeID]bool{id: true}
		for p := g.Parents(id); len(p) > 0 && !seen[p[0]]; p = g.Parents(p[0]) {
			seen[p[0]] = true
			assert.NotEqual(t, h, g.Hash(p[0]), "node %s repeats ancestor %s", id, p[0])
		}
	}

	_, err = g.Prune()
	require.NoError(t, err)
	assert.Equal(t, 4, g.Len())

	comment := childNamed(t, g, root, "comment")
	replies := childNamed(t, g, comment, "replies")
	assert.Equal(t, []NodeID{root, replies}, g.Parents(comment))
	assert.Equal(t, []NodeID{comment}, g.Children(replies))
	assert.Equal(t, 2, g.Lineage(comment).Len())
	assert.Equal(t, 3, g.Lineage(replies).Len())
}

func TestCyclize_DirectNesting(t *testing.T) {
	g := build(t, n("div", n("div", n("div", n("p")))))
	root, _ := g.Root()

	_, err := g.Cyclize()
	require.NoError(t, err)
	_, err = g.Prune()
	require.NoError(t, err)

	div := childNamed(t, g, root, "div")
	assert.Contains(t, g.Children(div), div)
	childNamed(t, g, div, "p")
	assert.Equal(t, 3, g.Len())
}

func TestPrune_MergesTwins(t *testing.T) {
	tests := []struct {
		name     string
		kids     []tn
		wantLen  int
		wantKids []string
	}{
		{
			name:     "identical list items",
			kids:     []tn{n("ul", n("li", n("text")), n("li", n("text")), n("li", n("text")))},
			wantLen:  4,
			wantKids: []string{"text"},
		},
		{
			name:     "children are unioned",
			kids:     []tn{n("ul", n("li", n("text")), n("li", n("a")), n("li", n("text"), n("b")))},
			wantLen:  6,
			wantKids: []string{"text", "a", "b"},
		},
		{
			name:     "no twins",
			kids:     []tn{n("ul", n("li", n("text")))},
			wantLen:  4,
			wantKids: []string{"text"},
		},
	}
	for _, tc := range tests {
		t.Run(tc.name, func(t *testing.T) {
			g := build(t, tc.kids...)
			root, _ := g.Root()

			_, err := g.Prune()
			require.NoError(t, err)
			assert.Equal(t, tc.wantLen, g.Len())

			ul := childNamed(t, g, root, "ul")
			require.Len(t, g.Children(ul), 1)
			li := g.Children(ul)[0]
			var got []string
			for _, c := range g.Children(li) {
				d, _ := g.Data(c)
				got = append(got, d.Name)
			}
			assert.Equal(t, tc.wantKids, got)

			before := g.SubgraphHash(root)
			merges, err := g.Prune()
			require.NoError(t, err)
			assert.Zero(t, merges)
			assert.Equal(t, before, g.SubgraphHash(root))
		})
	}
}

func TestPrune_NestedTwinsInOnePass(t *testing.T) {
	g := build(t,
		n("ul", n("li", n("span", n("text"))), n("li", n("span", n("text"), n("b")))),
	)
	_, err := g.Prune()
	require.NoError(t, err)

	// root, ul, li, span, text, b
	assert.Equal(t, 6, g.Len())
	merges, err := g.Prune()
	require.NoError(t, err)
	assert.Zero(t, merges)
}

func TestAbsorb_GraftsNewChildOnly(t *testing.T) {
	basis := build(t, n("article", n("h1", n("text")), n("p", n("text"))))
	donor := build(t, n("article", n("h1", n("text")), n("p", n("text")), n("span", n("text"))))
	root, _ := basis.Root()
	article := childNamed(t, basis, root, "article")
	h1 := childNamed(t, basis, article, "h1")
	basis.Update(h1, func(l *label) { l.Note = "heading" })

	dRoot, _ := donor.Root()
	for _, id := range donor.IDs() {
		if id != dRoot {
			donor.Update(id, func(l *label) { l.Note = "donor" })
		}
	}

	added, err := Absorb(basis, donor)
	require.NoError(t, err)
	assert.Equal(t, 2, added)
	assert.Len(t, basis.Children(article), 3)
	assert.Equal(t, h1, childNamed(t, basis, article, "h1"))

	d, _ := basis.Data(h1)
	assert.Equal(t, "heading", d.Note)
	span := childNamed(t, basis, article, "span")
	d, _ = basis.Data(span)
	assert.Empty(t, d.Note)

	before := basis.SubgraphHash(root)
	added, err = Absorb(basis, donor)
	require.NoError(t, err)
	assert.Zero(t, added)
	assert.Equal(t, before, basis.SubgraphHash(root))
}

func TestAbsorb_IntoEmpty(t *testing.T) {
	donor := build(t, commentThread()...)
	_, err := donor.Cyclize()
	require.NoError(t, err)

	basis := New[label]()
	added, err := Absorb(basis, donor)
	require.NoError(t, err)
	assert.Equal(t, donor.Len(), added)

	bRoot, _ := basis.Root()
	dRoot, _ := donor.Root()
	assert.Equal(t, donor.SubgraphHash(dRoot), basis.SubgraphHash(bRoot))
}

func TestAbsorb_CyclicDonor(t *testing.T) {
	basis := build(t, commentThread()...)
	_, err := basis.Cyclize()
	require.NoError(t, err)
	_, err = basis.Prune()
	require.NoError(t, err)

	donor := build(t, n("comment", n("text"), n("author"), n("replies", n("comment", n("text")))))
	_, err = donor.Cyclize()
	require.NoError(t, err)
	_, err = donor.Prune()
	require.NoError(t, err)

	added, err := Absorb(basis, donor)
	require.NoError(t, err)
	assert.Equal(t, 1, added)

	root, _ := basis.Root()
	comment := childNamed(t, basis, root, "comment")
	childNamed(t, basis, comment, "author")
	assert.Equal(t, 5, basis.Len())
}

func TestAbsorb_RootMismatch(t *testing.T) {
	basis := build(t, n("p"))
	donor := New[label]()
	donor.AddRoot(label{Name: "other"})

	_, err := Absorb(basis, donor)
	assert.True(t, errors.IsContract(err))
}

func TestApplyLineage(t *testing.T) {
	g := build(t, n("html", n("body", n("ul", n("li", n("text"))), n("p", n("text")))))

	for _, id := range g.IDs() {
		got, exact, err := g.ApplyLineage(g.Lineage(id))
		require.NoError(t, err)
		assert.True(t, exact)
		assert.Equal(t, id, got)
	}

	root, _ := g.Root()
	body := childNamed(t, g, childNamed(t, g, root, "html"), "body")
	unknown := g.Lineage(body).WithHash(digest.Of("label", "table"))
	got, exact, err := g.ApplyLineage(unknown)
	require.NoError(t, err)
	assert.False(t, exact)
	assert.Equal(t, body, got)
}

func TestFindHomologous(t *testing.T) {
	output := build(t, n("ul", n("li", n("text")), n("li", n("text")), n("li", n("text"))))
	basis := build(t, n("ul", n("li", n("text")), n("li", n("text"))))
	_, err := basis.Prune()
	require.NoError(t, err)

	bRoot, _ := basis.Root()
	li := childNamed(t, basis, childNamed(t, basis, bRoot, "ul"), "li")

	homologs, err := FindHomologous(li, basis, output)
	require.NoError(t, err)
	assert.Len(t, homologs, 3)

	idx, err := IndexHomologs(basis, output)
	require.NoError(t, err)
	for _, id := range basis.IDs() {
		want, err := FindHomologous(id, basis, output)
		require.NoError(t, err)
		assert.Equal(t, want, idx.Homologs(id), "basis node %s", id)
	}
	for _, id := range homologs {
		got, ok := idx.Resolve(id)
		assert.True(t, ok)
		assert.Equal(t, li, got)
	}
}

func TestFindHomologous_Recursive(t *testing.T) {
	output := build(t, commentThread()...)
	basis := build(t, commentThread()...)
	_, err := basis.Cyclize()
	require.NoError(t, err)
	_, err = basis.Prune()
	require.NoError(t, err)

	bRoot, _ := basis.Root()
	comment := childNamed(t, basis, bRoot, "comment")

	homologs, err := FindHomologous(comment, basis, output)
	require.NoError(t, err)
	assert.Len(t, homologs, 3)

	idx, err := IndexHomologs(basis, output)
	require.NoError(t, err)
	assert.Equal(t, homologs, idx.Homologs(comment))
}

func TestEncodeDecode(t *testing.T) {
	g := build(t, commentThread()...)
	_, err := g.Cyclize()
	require.NoError(t, err)
	_, err = g.Prune()
	require.NoError(t, err)
	root, _ := g.Root()
	comment := childNamed(t, g, root, "comment")
	g.Update(comment, func(l *label) { l.Note = "learned" })

	enc, err := Encode(g)
	require.NoError(t, err)
	assert.Equal(t, "root", enc.Description)

	raw, err := json.Marshal(enc)
	require.NoError(t, err)
	var back EncodedNode
	require.NoError(t, json.Unmarshal(raw, &back))

	d, err := Decode[label](&back)
	require.NoError(t, err)
	assert.Equal(t, g.Len(), d.Len())
	dRoot, _ := d.Root()
	assert.Equal(t, root, dRoot)
	assert.Equal(t, g.SubgraphHash(root), d.SubgraphHash(dRoot))
	assert.Equal(t, g.Parents(comment), d.Parents(comment))

	data, _ := d.Data(comment)
	assert.Equal(t, "learned", data.Note)

	fresh := d.Add(label{Name: "x"})
	for _, id := range g.IDs() {
		assert.Greater(t, fresh, id)
	}
}

func TestDecode_RejectsTamperedHash(t *testing.T) {
	g := build(t, n("p"))
	enc, err := Encode(g)
	require.NoError(t, err)
	enc.Children[0].Hash = digest.Of("label", "span")

	_, err = Decode[label](enc)
	assert.True(t, errors.IsParse(err))
}

func TestConcurrentAccess(t *testing.T) {
	g := build(t, commentThread()...)
	_, err := g.Cyclize()
	require.NoError(t, err)
	root, _ := g.Root()
	ids := g.IDs()

	var wg sync.WaitGroup
	for i := range 8 {
		wg.Add(1)
		go func() {
			defer wg.Done()
			for _, id := range ids {
				g.Update(id, func(l *label) { l.Note = string(rune('a' + i)) })
				_ = g.Children(id)
				_ = g.SubgraphHash(root)
				_ = g.Lineage(id)
			}
		}()
	}
	wg.Wait()
}
