// Package postgres provides the Store shared by the server and the worker.
package postgres

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgconn"
	"github.com/jackc/pgx/v5/pgxpool"

	"github.com/OFFIS-RIT/stencil/internal/util"
	"github.com/OFFIS-RIT/stencil/pkg/basis"
	"github.com/OFFIS-RIT/stencil/pkg/digest"
)

type dbConn interface {
	Exec(ctx context.Context, sql string, arguments ...any) (pgconn.CommandTag, error)
	QueryRow(ctx context.Context, sql string, args ...any) pgx.Row
}

type Store struct {
	db   dbConn
	pool *pgxpool.Pool
}

func New(pool *pgxpool.Pool) *Store {
	return &Store{db: pool, pool: pool}
}

func (s *Store) Get(ctx context.Context, key string) ([]byte, bool, error) {
	var value []byte
	err := s.db.QueryRow(ctx, getCacheSQL, key).Scan(&value)
	if errors.Is(err, pgx.ErrNoRows) {
		return nil, false, nil
	}
	if err != nil {
		return nil, false, fmt.Errorf("get cache entry: %w", err)
	}
	return value, true, nil
}

func (s *Store) Put(ctx context.Context, key string, value []byte) error {
	if _, err := s.db.Exec(ctx, putCacheSQL, key, value); err != nil {
		return fmt.Errorf("put cache entry: %w", err)
	}
	return nil
}

func (s *Store) GetBasisNodeByLineage(ctx context.Context, lineage digest.Lineage) (basis.Node, bool, error) {
	var (
		raw  []byte
		node basis.Node
	)
	err := s.db.QueryRow(ctx, getBasisNodeSQL, lineage.ID().String()).Scan(&raw)
	if errors.Is(err, pgx.ErrNoRows) {
		return node, false, nil
	}
	if err != nil {
		return node, false, fmt.Errorf("get basis node %s: %w", lineage, err)
	}
	if err := json.Unmarshal(raw, &node); err != nil {
		return node, false, fmt.Errorf("decode basis node %s: %w", lineage, err)
	}
	return node, true, nil
}

func (s *Store) SaveBasisNode(ctx context.Context, lineage digest.Lineage, node basis.Node) error {
	rawLineage, err := json.Marshal(lineage)
	if err != nil {
		return err
	}
	rawNode, err := json.Marshal(node)
	if err != nil {
		return err
	}
	_, err = s.db.Exec(ctx, saveBasisNodeSQL,
		lineage.ID().String(),
		rawLineage,
		util.SanitizePostgresText(node.Describe()),
		jsonb(rawNode),
	)
	if err != nil {
		return fmt.Errorf("save basis node %s: %w", lineage, err)
	}
	return nil
}

func (s *Store) GetBasisNetworkBySubgraphHash(ctx context.Context, template string, hash digest.Digest) (*basis.Network, bool, error) {
	var raw []byte
	err := s.db.QueryRow(ctx, getBasisNetworkSQL, template, hash.String()).Scan(&raw)
	if errors.Is(err, pgx.ErrNoRows) {
		return nil, false, nil
	}
	if err != nil {
		return nil, false, fmt.Errorf("get basis network %s/%s: %w", template, hash.Short(), err)
	}
	var n basis.Network
	if err := json.Unmarshal(raw, &n); err != nil {
		return nil, false, fmt.Errorf("decode basis network %s/%s: %w", template, hash.Short(), err)
	}
	return &n, true, nil
}

func (s *Store) SaveBasisNetwork(ctx context.Context, template string, hash digest.Digest, network *basis.Network) error {
	if network == nil {
		return fmt.Errorf("save basis network %s/%s: network is nil", template, hash.Short())
	}
	raw, err := json.Marshal(network)
	if err != nil {
		return err
	}
	if _, err := s.db.Exec(ctx, saveBasisNetworkSQL, template, hash.String(), network.Documents, jsonb(raw)); err != nil {
		return fmt.Errorf("save basis network %s/%s: %w", template, hash.Short(), err)
	}
	return nil
}

func (s *Store) GetTemplate(ctx context.Context, name string) (digest.Digest, bool, error) {
	var raw string
	err := s.db.QueryRow(ctx, getTemplateSQL, name).Scan(&raw)
	if errors.Is(err, pgx.ErrNoRows) {
		return digest.Digest{}, false, nil
	}
	if err != nil {
		return digest.Digest{}, false, fmt.Errorf("get template %s: %w", name, err)
	}
	h, err := digest.Parse(raw)
	if err != nil {
		return digest.Digest{}, false, fmt.Errorf("template %s: %w", name, err)
	}
	return h, true, nil
}

func (s *Store) SaveTemplate(ctx context.Context, name string, hash digest.Digest) error {
	if _, err := s.db.Exec(ctx, saveTemplateSQL, name, hash.String()); err != nil {
		return fmt.Errorf("save template %s: %w", name, err)
	}
	return nil
}

// Close closes the underlying pool.
func (s *Store) Close() error {
	if s.pool != nil {
		s.pool.Close()
	}
	return nil
}

// jsonb rejects NUL escapes, which document text may carry.
func jsonb(raw []byte) []byte {
	return bytes.ReplaceAll(raw, []byte(`\u0000`), nil)
}

const getCacheSQL = `
SELECT value FROM cache_entries WHERE cache_key = $1;
`

const putCacheSQL = `
INSERT INTO cache_entries (cache_key, value)
VALUES ($1, $2)
ON CONFLICT (cache_key) DO UPDATE
SET value = EXCLUDED.value;
`

const getBasisNodeSQL = `
SELECT node FROM basis_nodes WHERE lineage_id = $1;
`

const saveBasisNodeSQL = `
INSERT INTO basis_nodes (lineage_id, lineage, description, node, updated_at)
VALUES ($1, $2, $3, $4, now())
ON CONFLICT (lineage_id) DO UPDATE
SET lineage     = EXCLUDED.lineage,
    description = EXCLUDED.description,
    node        = EXCLUDED.node,
    updated_at  = now();
`

const getBasisNetworkSQL = `
SELECT network FROM basis_networks WHERE template = $1 AND subgraph_hash = $2;
`

const saveBasisNetworkSQL = `
INSERT INTO basis_networks (template, subgraph_hash, documents, network)
VALUES ($1, $2, $3, $4)
ON CONFLICT (template, subgraph_hash) DO UPDATE
SET documents = EXCLUDED.documents,
    network   = EXCLUDED.network;
`

const getTemplateSQL = `
SELECT subgraph_hash FROM templates WHERE name = $1;
`

const saveTemplateSQL = `
INSERT INTO templates (name, subgraph_hash, updated_at)
VALUES ($1, $2, now())
ON CONFLICT (name) DO UPDATE
SET subgraph_hash = EXCLUDED.subgraph_hash,
    updated_at    = now();
`
