// Package basis defines the payloads of basis graphs and output trees and
// builds both from parsed documents.
package basis

import (
	"fmt"
	"strings"

	"github.com/OFFIS-RIT/stencil/pkg/digest"
	"github.com/OFFIS-RIT/stencil/pkg/document"
)

// Resolution records how the interpretation pass settled a basis node.
type Resolution int

const (
	Unvisited Resolution = iota
	ClassicallyResolved
	Interpreted
	Skipped
)

var resolutionNames = []string{"unvisited", "classical", "interpreted", "skipped"}

func (r Resolution) String() string {
	if int(r) < len(resolutionNames) {
		return resolutionNames[r]
	}
	return fmt.Sprintf("resolution(%d)", int(r))
}

func (r Resolution) MarshalText() ([]byte, error) {
	return []byte(r.String()), nil
}

func (r *Resolution) UnmarshalText(text []byte) error {
	for i, name := range resolutionNames {
		if name == string(text) {
			*r = Resolution(i)
			return nil
		}
	}
	return fmt.Errorf("unknown resolution %q", text)
}

// Selector says where a field value is read from: an attribute of the node
// or, when Attribute is empty, its text content.
type Selector struct {
	Attribute string `json:"attribute,omitempty"`
}

func (s Selector) IsText() bool {
	return s.Attribute == ""
}

func (s Selector) String() string {
	if s.IsText() {
		return "text()"
	}
	return "@" + s.Attribute
}

// Data is a field-level interpretation: the semantic name of a value found
// at Selector. Peripheral fields (navigation, ads, boilerplate) are routed
// to the related content tree.
type Data struct {
	Name       string   `json:"name" jsonschema:"description=Semantic field name in snake_case"`
	Selector   Selector `json:"selector"`
	Peripheral bool     `json:"peripheral,omitempty"`
	URL        bool     `json:"url,omitempty"`
}

// Node is the payload of a basis graph node. Shape is fixed when the node is
// built; Data, Structure and Resolution are learned.
type Node struct {
	Shape      document.Shape `json:"shape"`
	Data       []Data         `json:"data,omitempty"`
	Structure  []Structure    `json:"structure,omitempty"`
	Resolution Resolution     `json:"resolution"`
}

func NewNode(shape document.Shape) Node {
	return Node{Shape: shape}
}

func (n Node) Fingerprint() digest.Digest {
	return n.Shape.Fingerprint()
}

func (n Node) Blank() Node {
	return Node{Shape: n.Shape}
}

// IsInterpreted reports whether interpretation results were already
// written. Such nodes are never interpreted again.
func (n Node) IsInterpreted() bool {
	return len(n.Data) > 0 || len(n.Structure) > 0
}

// StructureOf returns the first structure entry of the given kind.
func (n Node) StructureOf(kind StructureKind) (Structure, bool) {
	for _, s := range n.Structure {
		if s.Kind == kind {
			return s, true
		}
	}
	return Structure{}, false
}

func (n Node) Describe() string {
	var b strings.Builder
	b.WriteString(n.Shape.String())
	for _, s := range n.Structure {
		fmt.Fprintf(&b, " [%s]", s.Kind)
	}
	if len(n.Data) > 0 {
		names := make([]string, len(n.Data))
		for i, d := range n.Data {
			names[i] = d.Name
		}
		fmt.Fprintf(&b, " {%s}", strings.Join(names, ", "))
	}
	return b.String()
}

// OutputNode is the payload of an output tree: the shape of a concrete
// document node plus the node itself.
type OutputNode struct {
	Shape  document.Shape `json:"shape"`
	Source *document.Node `json:"-"`
}

func (n OutputNode) Fingerprint() digest.Digest {
	return n.Shape.Fingerprint()
}

func (n OutputNode) Blank() OutputNode {
	return n
}

func (n OutputNode) Describe() string {
	return n.Shape.String()
}
