package queue

import (
	"fmt"

	"github.com/OFFIS-RIT/stencil/pkg/digest"
)

// LearnDocument is a document uploaded to object storage.
type LearnDocument struct {
	Key    string `json:"key" validate:"required"`
	Source string `json:"source,omitempty"`
}

// LearnJob asks the worker to absorb documents into a template and,
// when Interpret is set, to interpret the grown template.
type LearnJob struct {
	JobID     string          `json:"job_id" validate:"required"`
	Template  string          `json:"template" validate:"required"`
	Documents []LearnDocument `json:"documents" validate:"required,min=1,dive"`
	Interpret bool            `json:"interpret"`
}

// LearnedEvent is published after a LearnJob succeeded.
type LearnedEvent struct {
	JobID        string        `json:"job_id"`
	Template     string        `json:"template"`
	SubgraphHash digest.Digest `json:"subgraph_hash"`
	Documents    int           `json:"documents"`
	Grafted      int           `json:"grafted"`
	Interpreted  int           `json:"interpreted"`
	Failed       int           `json:"failed"`
	Snapshot     string        `json:"snapshot,omitempty"`
}

// LearnedTopic is the routing key of LearnedEvent for a template.
func LearnedTopic(template string) string {
	return fmt.Sprintf("template.%s.learned", template)
}
