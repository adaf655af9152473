// Package document turns HTML into the element/text trees that graphs are
// built from, and renders those trees back into bounded snippets.
package document

import (
	"bytes"
	"io"
	"slices"
	"strings"

	"golang.org/x/net/html"

	"github.com/OFFIS-RIT/stencil/pkg/errors"
)

type Kind int

const (
	KindElement Kind = iota
	KindText
)

func (k Kind) String() string {
	if k == KindText {
		return "text"
	}
	return "element"
}

type Attribute struct {
	Name  string `json:"name"`
	Value string `json:"value"`
}

// Node is one structural unit of a document: an element with its filtered
// attributes, or a run of non-empty text. Child order follows the source.
type Node struct {
	Kind       Kind
	Tag        string
	Attributes []Attribute
	Text       string
	Children   []*Node
}

// Attr returns the value of the named attribute.
func (n *Node) Attr(name string) (string, bool) {
	for _, a := range n.Attributes {
		if a.Name == name {
			return a.Value, true
		}
	}
	return "", false
}

// Document is a parsed source together with the metadata loaders could
// find for it.
type Document struct {
	Source string
	Title  string
	Byline string
	Root   *Node
}

// Filter removes presentation-only noise while parsing. Elements listed in
// Elements are dropped with their whole subtree; attributes listed in
// Attributes, or starting with one of AttributePrefixes, are dropped from
// every element.
type Filter struct {
	Elements          []string
	Attributes        []string
	AttributePrefixes []string
}

func DefaultFilter() Filter {
	return Filter{
		Elements: []string{
			"script", "style", "noscript", "template", "svg", "canvas",
			"iframe", "link", "meta", "head",
		},
		Attributes: []string{
			"style", "tabindex", "width", "height", "align", "bgcolor",
			"border", "cellpadding", "cellspacing", "srcset", "sizes",
			"loading", "decoding", "nonce", "integrity", "crossorigin",
		},
		AttributePrefixes: []string{"on", "aria-"},
	}
}

func (f Filter) skipElement(tag string) bool {
	return slices.Contains(f.Elements, tag)
}

func (f Filter) skipAttribute(name string) bool {
	if slices.Contains(f.Attributes, name) {
		return true
	}
	for _, p := range f.AttributePrefixes {
		if strings.HasPrefix(name, p) {
			return true
		}
	}
	return false
}

// Parse reads HTML and returns the filtered tree below the document node,
// normally a single html element.
func Parse(r io.Reader, filter Filter) (*Node, error) {
	doc, err := html.Parse(r)
	if err != nil {
		return nil, errors.Mark(errors.Wrap(err, "failed to parse html"), errors.ErrParse)
	}

	var root *Node
	for c := doc.FirstChild; c != nil; c = c.NextSibling {
		if n := convert(c, filter); n != nil && n.Kind == KindElement {
			root = n
			break
		}
	}
	if root == nil {
		return nil, errors.Parsef("document has no elements")
	}
	return root, nil
}

// ParseBytes is a convenience wrapper around Parse.
func ParseBytes(data []byte, filter Filter) (*Node, error) {
	return Parse(bytes.NewReader(data), filter)
}

func convert(h *html.Node, filter Filter) *Node {
	switch h.Type {
	case html.TextNode:
		text := strings.Join(strings.Fields(h.Data), " ")
		if text == "" {
			return nil
		}
		return &Node{Kind: KindText, Text: text}
	case html.ElementNode:
		tag := strings.ToLower(h.Data)
		if filter.skipElement(tag) {
			return nil
		}
		n := &Node{Kind: KindElement, Tag: tag}
		for _, a := range h.Attr {
			name := strings.ToLower(a.Key)
			if a.Namespace != "" || filter.skipAttribute(name) {
				continue
			}
			n.Attributes = append(n.Attributes, Attribute{Name: name, Value: a.Val})
		}
		for c := h.FirstChild; c != nil; c = c.NextSibling {
			if child := convert(c, filter); child != nil {
				n.Children = append(n.Children, child)
			}
		}
		return n
	default:
		return nil
	}
}

// TextContent joins all text below n with single spaces.
func TextContent(n *Node) string {
	var parts []string
	var walk func(*Node)
	walk = func(n *Node) {
		if n.Kind == KindText {
			parts = append(parts, n.Text)
			return
		}
		for _, c := range n.Children {
			walk(c)
		}
	}
	walk(n)
	return strings.Join(parts, " ")
}
