package basis

import (
	"strconv"
	"strings"

	"github.com/OFFIS-RIT/stencil/pkg/graph"
)

type StructureKind string

const (
	StructureRecursive   StructureKind = "recursive"
	StructureEnumerative StructureKind = "enumerative"
	StructureAssociative StructureKind = "associative"
)

// Structure is one structural interpretation. Exactly the field matching
// Kind is set.
type Structure struct {
	Kind        StructureKind `json:"kind"`
	Recursive   *Recursive    `json:"recursive,omitempty"`
	Enumerative *Enumerative  `json:"enumerative,omitempty"`
	Associative *Associative  `json:"associative,omitempty"`
}

// Recursive models parent/child recursion between instances of the same
// node, such as comment threads. Attribute identifies an instance; values in
// RootValues mark top-level instances; Rule derives the parent's value from
// a child's value.
type Recursive struct {
	Attribute  string         `json:"attribute"`
	RootValues []string       `json:"root_values,omitempty"`
	Rule       DerivationRule `json:"rule"`
}

// Enumerative models list iteration: Next is the basis node of the item
// following an instance. It is the node itself for homogeneous lists.
type Enumerative struct {
	Next graph.NodeID `json:"next"`
}

// Associative lists groups of child keys that together form one logical
// record spread across siblings. Keys come from AssociationKey.
type Associative struct {
	Groups [][]string `json:"groups"`
}

// AssociationKey names a child within its parent. Siblings never share a
// fingerprint, since twins are merged, and the fingerprint does not change
// when later documents grow the child's subgraph.
func AssociationKey(g *graph.Graph[Node], id graph.NodeID) string {
	return g.Hash(id).String()
}

func NewRecursive(r Recursive) Structure {
	return Structure{Kind: StructureRecursive, Recursive: &r}
}

func NewEnumerative(next graph.NodeID) Structure {
	return Structure{Kind: StructureEnumerative, Enumerative: &Enumerative{Next: next}}
}

func NewAssociative(groups [][]string) Structure {
	return Structure{Kind: StructureAssociative, Associative: &Associative{Groups: groups}}
}

type RuleKind string

const (
	// RuleDecrement treats the value as a depth: the parent has value-1.
	RuleDecrement RuleKind = "decrement"
	// RuleTrimSegment treats the value as a path: the parent has the value
	// without its last Separator-delimited segment.
	RuleTrimSegment RuleKind = "trim_segment"
)

type DerivationRule struct {
	Kind      RuleKind `json:"kind" jsonschema:"enum=decrement,enum=trim_segment"`
	Separator string   `json:"separator,omitempty"`
}

// Parent derives the identifying value of the parent instance. ok is false
// when value has no parent under the rule.
func (r DerivationRule) Parent(value string) (string, bool) {
	switch r.Kind {
	case RuleDecrement:
		n, err := strconv.Atoi(strings.TrimSpace(value))
		if err != nil || n <= 0 {
			return "", false
		}
		return strconv.Itoa(n - 1), true
	case RuleTrimSegment:
		if r.Separator == "" {
			return "", false
		}
		i := strings.LastIndex(value, r.Separator)
		if i <= 0 {
			return "", false
		}
		return value[:i], true
	default:
		return "", false
	}
}
