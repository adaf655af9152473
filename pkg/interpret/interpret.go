// Package interpret settles every node of a basis graph exactly once,
// either by fixed rules or by asking an Interpreter about excerpts of the
// node's homologs in the documents the graph was learned from.
package interpret

import (
	"context"

	"github.com/OFFIS-RIT/stencil/pkg/basis"
	"github.com/OFFIS-RIT/stencil/pkg/document"
)

// StructureVerdict is the answer to a structure classification.
type StructureVerdict struct {
	Recursive   *basis.Recursive
	Enumerative bool
	Associative bool
}

// TaggedSnippet is a snippet labelled with the group key of the sibling it
// was taken from.
type TaggedSnippet struct {
	Key     string
	Snippet string
}

// Interpreter classifies template positions from bounded excerpts in which
// the node under inspection is enclosed by document.TargetStart and
// document.TargetEnd.
type Interpreter interface {
	// ClassifyStructure decides the structural patterns of a node. attributes
	// are the attribute names of the node's shape.
	ClassifyStructure(ctx context.Context, attributes []string, snippets []string) (StructureVerdict, error)
	// ClassifyData names the meaningful attributes that carry content.
	ClassifyData(ctx context.Context, attributes []string, snippets []string) ([]basis.Data, error)
	// ClassifyText names a text node. An empty name means no content.
	ClassifyText(ctx context.Context, snippets []string) (basis.Data, error)
	// ClassifyAssociations groups sibling keys that form one record.
	ClassifyAssociations(ctx context.Context, snippets []TaggedSnippet) ([][]string, error)
}

// Options configure an interpretation pass.
type Options struct {
	// MaxConcurrency bounds the number of nodes interpreted at once. 1 runs
	// the nodes sequentially in breadth-first order.
	MaxConcurrency int `validate:"min=1"`
	// MaxExamples caps the homologs excerpted per node.
	MaxExamples int `validate:"min=1"`
	// MaxExemplars caps the excerpts per distinct sibling subgraph for
	// association detection.
	MaxExemplars int `validate:"min=1"`
	Snippet      document.SnippetOptions
	// LayoutTags are wrapper tags resolved without interpretation when they
	// occur once.
	LayoutTags []string
}

func DefaultOptions() Options {
	return Options{
		MaxConcurrency: 4,
		MaxExamples:    5,
		MaxExemplars:   2,
		Snippet:        document.DefaultSnippetOptions(),
		LayoutTags:     DefaultLayoutTags(),
	}
}

func DefaultLayoutTags() []string {
	return []string{"html", "body", "main", "br", "hr", "wbr"}
}
