package document

import (
	"strings"
	"testing"
	"unicode/utf8"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/OFFIS-RIT/stencil/pkg/errors"
)

const page = `<!DOCTYPE html>
<html>
<head><title>News</title><script>var x = 1;</script></head>
<body>
  <ul class="items">
    <li class="item" style="color:red" onclick="go()">First</li>
    <li class="item">Second</li>
  </ul>
  <a href="/more" data-id="7">More</a>
  <!-- comment -->
</body>
</html>`

func TestParse_FiltersNoise(t *testing.T) {
	root, err := Parse(strings.NewReader(page), DefaultFilter())
	require.NoError(t, err)
	require.Equal(t, "html", root.Tag)
	require.Len(t, root.Children, 1, "head is filtered")

	body := root.Children[0]
	assert.Equal(t, "body", body.Tag)
	require.Len(t, body.Children, 2)

	ul := body.Children[0]
	require.Len(t, ul.Children, 2)
	first := ul.Children[0]
	assert.Equal(t, []Attribute{{Name: "class", Value: "item"}}, first.Attributes)
	require.Len(t, first.Children, 1)
	assert.Equal(t, KindText, first.Children[0].Kind)
	assert.Equal(t, "First", first.Children[0].Text)

	a := body.Children[1]
	href, ok := a.Attr("href")
	assert.True(t, ok)
	assert.Equal(t, "/more", href)
	assert.Equal(t, "More", TextContent(a))
}

func TestParse_Empty(t *testing.T) {
	_, err := Parse(strings.NewReader(""), Filter{Elements: []string{"html"}})
	assert.True(t, errors.IsParse(err))
}

func TestShape(t *testing.T) {
	mk := func(attrs ...Attribute) *Node {
		return &Node{Kind: KindElement, Tag: "div", Attributes: attrs}
	}

	tests := []struct {
		name  string
		a, b  *Node
		equal bool
	}{
		{
			name:  "attribute values ignored",
			a:     mk(Attribute{"data-id", "1"}),
			b:     mk(Attribute{"data-id", "2"}),
			equal: true,
		},
		{
			name:  "attribute order ignored",
			a:     mk(Attribute{"href", "x"}, Attribute{"title", "y"}),
			b:     mk(Attribute{"title", "z"}, Attribute{"href", "w"}),
			equal: true,
		},
		{
			name:  "class tokens matter",
			a:     mk(Attribute{"class", "comment"}),
			b:     mk(Attribute{"class", "reply"}),
			equal: false,
		},
		{
			name:  "class token order ignored",
			a:     mk(Attribute{"class", "a b"}),
			b:     mk(Attribute{"class", "b  a"}),
			equal: true,
		},
		{
			name:  "attribute names matter",
			a:     mk(Attribute{"href", "x"}),
			b:     mk(),
			equal: false,
		},
		{
			name:  "text content ignored",
			a:     &Node{Kind: KindText, Text: "one"},
			b:     &Node{Kind: KindText, Text: "two"},
			equal: true,
		},
	}
	for _, tc := range tests {
		t.Run(tc.name, func(t *testing.T) {
			fa, fb := ShapeOf(tc.a).Fingerprint(), ShapeOf(tc.b).Fingerprint()
			if tc.equal {
				assert.Equal(t, fa, fb)
			} else {
				assert.NotEqual(t, fa, fb)
			}
		})
	}

	assert.NotEqual(t, RootShape.Fingerprint(), ShapeOf(mk()).Fingerprint())
	assert.True(t, RootShape.IsRoot())
}

func TestShape_MeaningfulAttributes(t *testing.T) {
	s := ShapeOf(&Node{Kind: KindElement, Tag: "a", Attributes: []Attribute{
		{"class", "link"}, {"id", "x"}, {"href", "/"}, {"title", "t"},
	}})
	assert.Equal(t, []string{"href", "title"}, s.MeaningfulAttributes())
	assert.Equal(t, "a.link[href][id][title]", s.String())
}

func TestRender(t *testing.T) {
	n := &Node{Kind: KindElement, Tag: "p", Attributes: []Attribute{{"title", `a"b`}}, Children: []*Node{
		{Kind: KindText, Text: "x < y"},
		{Kind: KindElement, Tag: "br"},
	}}
	assert.Equal(t, `<p title="a&#34;b">x &lt; y<br></p>`, Render(n))
}

func TestSnippet(t *testing.T) {
	target := &Node{Kind: KindElement, Tag: "b", Children: []*Node{{Kind: KindText, Text: "target"}}}
	root := &Node{Kind: KindElement, Tag: "div", Children: []*Node{
		{Kind: KindText, Text: strings.Repeat("ä", 50)},
		target,
		{Kind: KindText, Text: strings.Repeat("ö", 50)},
	}}

	got := Snippet(root, target, SnippetOptions{Context: 11, Target: 100})
	assert.True(t, utf8.ValidString(got))
	assert.Contains(t, got, TargetStart+"<b>target</b>"+TargetEnd)

	before, _, _ := strings.Cut(got, TargetStart)
	assert.LessOrEqual(t, len(before), 11)
	assert.Equal(t, strings.Repeat("ä", 5), before)

	short := Snippet(root, target, SnippetOptions{Context: 0, Target: 4})
	assert.Equal(t, TargetStart+"<b>t"+TargetEnd, short)

	detached := &Node{Kind: KindText, Text: "alone"}
	assert.Equal(t, TargetStart+"alone"+TargetEnd, Snippet(root, detached, DefaultSnippetOptions()))
}
