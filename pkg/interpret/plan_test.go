package interpret

import (
	"testing"

	"github.com/stretchr/testify/assert"

	"github.com/OFFIS-RIT/stencil/pkg/basis"
	"github.com/OFFIS-RIT/stencil/pkg/document"
)

func TestPlan(t *testing.T) {
	element := func(tag string, attrs ...string) basis.Node {
		return basis.NewNode(document.Shape{Kind: document.KindElement, Tag: tag, Attributes: attrs})
	}
	interpreted := element("a", "href")
	interpreted.Data = []basis.Data{{Name: "link", Selector: basis.Selector{Attribute: "href"}}}
	skipped := element("div")
	skipped.Resolution = basis.Skipped

	tests := []struct {
		name   string
		in     PlanInput
		action Action
		res    basis.Resolution
		text   bool
		data   bool
	}{
		{"interpreted node is kept", PlanInput{Node: interpreted, Homologs: 3}, ActionKeep, basis.Unvisited, false, false},
		{"settled node is kept", PlanInput{Node: skipped, Homologs: 3}, ActionKeep, basis.Skipped, false, false},
		{"synthetic root", PlanInput{Node: basis.NewNode(document.RootShape)}, ActionResolve, basis.ClassicallyResolved, false, false},
		{"no homologs", PlanInput{Node: element("div")}, ActionSkip, basis.Skipped, false, false},
		{"single layout wrapper", PlanInput{Node: element("body"), Homologs: 1, LayoutTags: DefaultLayoutTags()}, ActionResolve, basis.ClassicallyResolved, false, false},
		{"repeated layout tag is interpreted", PlanInput{Node: element("br"), Homologs: 2, LayoutTags: DefaultLayoutTags()}, ActionInterpret, basis.Unvisited, false, false},
		{"text", PlanInput{Node: basis.NewNode(document.Shape{Kind: document.KindText}), Homologs: 5}, ActionInterpret, basis.Unvisited, true, false},
		{"no meaningful attributes", PlanInput{Node: element("div", "class", "id"), Homologs: 2}, ActionInterpret, basis.Unvisited, false, false},
		{"meaningful attributes", PlanInput{Node: element("a", "class", "href"), Homologs: 2}, ActionInterpret, basis.Unvisited, false, true},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			d := Plan(tt.in)
			assert.Equal(t, tt.action, d.Action)
			assert.Equal(t, tt.res, d.Resolution)
			assert.Equal(t, tt.text, d.Text)
			assert.Equal(t, tt.data, d.Data)
			assert.NotEmpty(t, d.Reason)
		})
	}
}
