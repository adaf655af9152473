// Package harvest applies an interpreted basis graph to a document and
// assembles the structured content it finds.
package harvest

import (
	gonanoid "github.com/matoous/go-nanoid/v2"
)

// Value is one extracted field.
type Value struct {
	Name       string `json:"name"`
	Value      string `json:"value"`
	Peripheral bool   `json:"peripheral,omitempty"`
	URL        bool   `json:"url,omitempty"`
}

// Meta links content nodes across the tree. Parent and Next hold content
// ids; Associates holds the group keys of siblings forming one record with
// this node.
type Meta struct {
	Parent     string   `json:"parent,omitempty"`
	IsRoot     bool     `json:"is_root,omitempty"`
	Next       string   `json:"next,omitempty"`
	Associates []string `json:"associates,omitempty"`
}

func (m *Meta) IsZero() bool {
	return m == nil || (m.Parent == "" && !m.IsRoot && m.Next == "" && len(m.Associates) == 0)
}

// Content mirrors the document with non-meaningful wrapping removed.
// InnerContent are structural children; Children are logical children
// attached through recursive parent links.
type Content struct {
	ID           string     `json:"id"`
	Values       []Value    `json:"values,omitempty"`
	Meta         *Meta      `json:"meta,omitempty"`
	InnerContent []*Content `json:"inner_content,omitempty"`
	Children     []*Content `json:"children,omitempty"`
}

func newContent() *Content {
	return &Content{ID: newID()}
}

func newID() string {
	return gonanoid.Must()
}

func (c *Content) isEmpty() bool {
	return len(c.Values) == 0 && c.Meta.IsZero() && len(c.InnerContent) == 0 && len(c.Children) == 0
}

// isValueLeaf reports whether c carries values and nothing else.
func (c *Content) isValueLeaf() bool {
	return len(c.Values) > 0 && c.Meta.IsZero() && len(c.InnerContent) == 0 && len(c.Children) == 0
}

// Walk visits c and all structural and logical descendants depth first.
func (c *Content) Walk(fn func(*Content)) {
	if c == nil {
		return
	}
	fn(c)
	for _, x := range c.InnerContent {
		x.Walk(fn)
	}
	for _, x := range c.Children {
		x.Walk(fn)
	}
}

// Size counts the nodes below and including c.
func (c *Content) Size() int {
	n := 0
	c.Walk(func(*Content) { n++ })
	return n
}

// Result is the outcome of one harvest.
type Result struct {
	Source         string   `json:"source,omitempty"`
	Title          string   `json:"title,omitempty"`
	Content        *Content `json:"content"`
	RelatedContent *Content `json:"related_content"`
}
