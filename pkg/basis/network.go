package basis

import (
	"time"

	"github.com/OFFIS-RIT/stencil/pkg/digest"
	"github.com/OFFIS-RIT/stencil/pkg/graph"
)

// Network is the persisted form of a basis graph.
type Network struct {
	Template     string             `json:"template"`
	SubgraphHash digest.Digest      `json:"subgraph_hash"`
	Documents    int                `json:"documents"`
	UpdatedAt    time.Time          `json:"updated_at"`
	Root         *graph.EncodedNode `json:"root"`
}

func NewNetwork(template string, g *graph.Graph[Node], documents int) (*Network, error) {
	root, err := g.Root()
	if err != nil {
		return nil, err
	}
	enc, err := graph.Encode(g)
	if err != nil {
		return nil, err
	}
	return &Network{
		Template:     template,
		SubgraphHash: g.SubgraphHash(root),
		Documents:    documents,
		UpdatedAt:    time.Now().UTC(),
		Root:         enc,
	}, nil
}

// Graph decodes the network back into a basis graph.
func (n *Network) Graph() (*graph.Graph[Node], error) {
	return graph.Decode[Node](n.Root)
}
