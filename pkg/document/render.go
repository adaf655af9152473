package document

import (
	"strings"

	"golang.org/x/net/html"

	"github.com/OFFIS-RIT/stencil/internal/util"
)

const (
	TargetStart = "<!-- Target node: Start -->"
	TargetEnd   = "<!-- Target node: End -->"
)

var voidElements = map[string]bool{
	"area": true, "base": true, "br": true, "col": true, "embed": true,
	"hr": true, "img": true, "input": true, "source": true, "track": true, "wbr": true,
}

// Render serializes n as HTML.
func Render(n *Node) string {
	var b strings.Builder
	render(&b, n, nil, nil)
	return b.String()
}

// span is set to the byte range of target within the output.
func render(b *strings.Builder, n, target *Node, span *[2]int) {
	if n == target && span != nil {
		span[0] = b.Len()
		defer func() { span[1] = b.Len() }()
	}
	if n.Kind == KindText {
		b.WriteString(html.EscapeString(n.Text))
		return
	}
	b.WriteByte('<')
	b.WriteString(n.Tag)
	for _, a := range n.Attributes {
		b.WriteByte(' ')
		b.WriteString(a.Name)
		b.WriteString(`="`)
		b.WriteString(html.EscapeString(a.Value))
		b.WriteByte('"')
	}
	b.WriteByte('>')
	if voidElements[n.Tag] {
		return
	}
	for _, c := range n.Children {
		render(b, c, target, span)
	}
	b.WriteString("</")
	b.WriteString(n.Tag)
	b.WriteByte('>')
}

// SnippetOptions bounds a snippet. Context is the number of bytes kept on
// each side of the target, Target the number of bytes kept of the target
// itself.
type SnippetOptions struct {
	Context int `validate:"gte=0"`
	Target  int `validate:"gt=0"`
}

func DefaultSnippetOptions() SnippetOptions {
	return SnippetOptions{Context: 300, Target: 1500}
}

// Snippet renders root and cuts out the region around target, with the
// target delimited by TargetStart and TargetEnd. Cuts never split a UTF-8
// sequence. If target is not below root only the target is rendered.
func Snippet(root, target *Node, opts SnippetOptions) string {
	var b strings.Builder
	span := [2]int{-1, -1}
	render(&b, root, target, &span)
	full := b.String()

	var before, body, after string
	if span[0] < 0 {
		body = Render(target)
	} else {
		before = full[:span[0]]
		body = full[span[0]:span[1]]
		after = full[span[1]:]
	}

	var out strings.Builder
	out.WriteString(util.TailUTF8(before, opts.Context))
	out.WriteString(TargetStart)
	out.WriteString(util.TruncateUTF8(body, opts.Target))
	out.WriteString(TargetEnd)
	out.WriteString(util.TruncateUTF8(after, opts.Context))
	return out.String()
}
