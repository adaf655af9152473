package interpret

import (
	"slices"

	"github.com/OFFIS-RIT/stencil/pkg/basis"
)

type Action int

const (
	// ActionKeep leaves the node untouched.
	ActionKeep Action = iota
	// ActionResolve settles the node with Decision.Resolution without
	// asking the interpreter.
	ActionResolve
	// ActionInterpret asks the interpreter.
	ActionInterpret
	// ActionSkip leaves the node unvisited for a later pass that has
	// homologs for it.
	ActionSkip
)

// Decision is the outcome of planning one basis node.
type Decision struct {
	Action     Action
	Resolution basis.Resolution
	// Text asks for a text classification instead of structure and data.
	Text bool
	// Data asks for a data classification after the structure one.
	Data   bool
	Reason string
}

// PlanInput is everything Plan looks at.
type PlanInput struct {
	Node       basis.Node
	Homologs   int
	LayoutTags []string
}

// Plan decides how a basis node is resolved. The rules are checked in
// order and the first match wins.
func Plan(in PlanInput) Decision {
	n := in.Node
	switch {
	case n.IsInterpreted() || n.Resolution != basis.Unvisited:
		return Decision{Action: ActionKeep, Resolution: n.Resolution, Reason: "already resolved"}
	case n.Shape.IsRoot():
		return Decision{Action: ActionResolve, Resolution: basis.ClassicallyResolved, Reason: "synthetic root"}
	case in.Homologs == 0:
		return Decision{Action: ActionSkip, Resolution: basis.Skipped, Reason: "no homologs"}
	case in.Homologs == 1 && slices.Contains(in.LayoutTags, n.Shape.Tag):
		return Decision{Action: ActionResolve, Resolution: basis.ClassicallyResolved, Reason: "layout wrapper"}
	case n.Shape.IsText():
		return Decision{Action: ActionInterpret, Text: true, Reason: "text"}
	case len(n.Shape.MeaningfulAttributes()) == 0:
		return Decision{Action: ActionInterpret, Reason: "structure only"}
	default:
		return Decision{Action: ActionInterpret, Data: true, Reason: "structure and data"}
	}
}
