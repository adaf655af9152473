package document

import (
	"slices"
	"strings"

	"github.com/OFFIS-RIT/stencil/pkg/digest"
)

// Shape is the part of a node that takes part in structural matching: the
// tag, the set of attribute names and the class tokens. Other attribute
// values and all text are instance data and do not change the shape.
type Shape struct {
	Kind       Kind     `json:"kind"`
	Tag        string   `json:"tag,omitempty"`
	Attributes []string `json:"attributes,omitempty"`
	Classes    []string `json:"classes,omitempty"`
}

// RootShape is the shape of the synthetic root every graph is built under.
var RootShape = Shape{Kind: KindElement, Tag: "#root"}

func ShapeOf(n *Node) Shape {
	if n.Kind == KindText {
		return Shape{Kind: KindText}
	}
	s := Shape{Kind: KindElement, Tag: n.Tag}
	for _, a := range n.Attributes {
		if !slices.Contains(s.Attributes, a.Name) {
			s.Attributes = append(s.Attributes, a.Name)
		}
		if a.Name == "class" {
			for _, c := range strings.Fields(a.Value) {
				if !slices.Contains(s.Classes, c) {
					s.Classes = append(s.Classes, c)
				}
			}
		}
	}
	slices.Sort(s.Attributes)
	slices.Sort(s.Classes)
	return s
}

func (s Shape) Fingerprint() digest.Digest {
	if s.IsRoot() {
		return digest.Of("root")
	}
	if s.Kind == KindText {
		return digest.Of("text")
	}
	h := digest.New().PushString("element").PushString("tag:" + s.Tag)
	for _, a := range s.Attributes {
		h.PushString("attr:" + a)
	}
	for _, c := range s.Classes {
		h.PushString("class:" + c)
	}
	return h.Finalize()
}

func (s Shape) IsRoot() bool {
	return s.Kind == RootShape.Kind && s.Tag == RootShape.Tag
}

func (s Shape) IsText() bool {
	return s.Kind == KindText
}

// String renders the shape as a css-like selector, e.g. div.comment[data-id].
func (s Shape) String() string {
	if s.Kind == KindText {
		return "#text"
	}
	var b strings.Builder
	b.WriteString(s.Tag)
	for _, c := range s.Classes {
		b.WriteByte('.')
		b.WriteString(c)
	}
	for _, a := range s.Attributes {
		if a == "class" {
			continue
		}
		b.WriteByte('[')
		b.WriteString(a)
		b.WriteByte(']')
	}
	return b.String()
}

// identifying attributes never carry field data on their own
var identifying = []string{"class", "id", "role", "lang", "dir", "rel", "target", "type", "name", "for"}

// MeaningfulAttributes returns the attribute names that can hold field
// values, in sorted order.
func (s Shape) MeaningfulAttributes() []string {
	var out []string
	for _, a := range s.Attributes {
		if slices.Contains(identifying, a) {
			continue
		}
		out = append(out, a)
	}
	return out
}
