package store

import (
	"context"

	"github.com/OFFIS-RIT/stencil/pkg/basis"
	"github.com/OFFIS-RIT/stencil/pkg/digest"
)

// Cache is a content-addressed byte cache. Writes of the same key are
// idempotent: concurrent writers store the same value.
type Cache interface {
	Get(ctx context.Context, key string) ([]byte, bool, error)
	Put(ctx context.Context, key string, value []byte) error
}

// Store persists learned templates. Basis nodes are addressed by lineage,
// basis networks by their template name and the subgraph hash of their
// root, and templates map a name to the subgraph hash of their latest
// network. Two templates that learned identical documents share a hash
// but keep separate networks.
type Store interface {
	Cache

	GetBasisNodeByLineage(ctx context.Context, lineage digest.Lineage) (basis.Node, bool, error)
	SaveBasisNode(ctx context.Context, lineage digest.Lineage, node basis.Node) error

	GetBasisNetworkBySubgraphHash(ctx context.Context, template string, hash digest.Digest) (*basis.Network, bool, error)
	SaveBasisNetwork(ctx context.Context, template string, hash digest.Digest, network *basis.Network) error

	GetTemplate(ctx context.Context, name string) (digest.Digest, bool, error)
	SaveTemplate(ctx context.Context, name string, hash digest.Digest) error

	Close() error
}
