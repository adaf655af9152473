package store

import (
	"context"
	"encoding/json"
	"fmt"

	"github.com/OFFIS-RIT/stencil/pkg/basis"
	"github.com/OFFIS-RIT/stencil/pkg/digest"
)

// KV is the raw key/value surface embedded backends provide.
type KV interface {
	Load(ctx context.Context, key string) ([]byte, bool, error)
	Save(ctx context.Context, key string, value []byte) error
	Close() error
}

// KVStore implements Store on top of a KV backend, encoding values as JSON.
type KVStore struct {
	kv KV
}

func NewKVStore(kv KV) *KVStore {
	return &KVStore{kv: kv}
}

func (s *KVStore) Get(ctx context.Context, key string) ([]byte, bool, error) {
	return s.kv.Load(ctx, CacheKey(key))
}

func (s *KVStore) Put(ctx context.Context, key string, value []byte) error {
	return s.kv.Save(ctx, CacheKey(key), value)
}

func (s *KVStore) GetBasisNodeByLineage(ctx context.Context, lineage digest.Lineage) (basis.Node, bool, error) {
	var n basis.Node
	ok, err := s.load(ctx, NodeKey(lineage), &n)
	return n, ok, err
}

func (s *KVStore) SaveBasisNode(ctx context.Context, lineage digest.Lineage, node basis.Node) error {
	return s.save(ctx, NodeKey(lineage), node)
}

func (s *KVStore) GetBasisNetworkBySubgraphHash(ctx context.Context, template string, hash digest.Digest) (*basis.Network, bool, error) {
	var n basis.Network
	ok, err := s.load(ctx, NetworkKey(template, hash), &n)
	if !ok || err != nil {
		return nil, false, err
	}
	return &n, true, nil
}

func (s *KVStore) SaveBasisNetwork(ctx context.Context, template string, hash digest.Digest, network *basis.Network) error {
	if network == nil {
		return fmt.Errorf("save basis network %s/%s: network is nil", template, hash.Short())
	}
	return s.save(ctx, NetworkKey(template, hash), network)
}

func (s *KVStore) GetTemplate(ctx context.Context, name string) (digest.Digest, bool, error) {
	var h digest.Digest
	ok, err := s.load(ctx, TemplateKey(name), &h)
	return h, ok, err
}

func (s *KVStore) SaveTemplate(ctx context.Context, name string, hash digest.Digest) error {
	return s.save(ctx, TemplateKey(name), hash)
}

func (s *KVStore) Close() error {
	return s.kv.Close()
}

func (s *KVStore) load(ctx context.Context, key string, out any) (bool, error) {
	raw, ok, err := s.kv.Load(ctx, key)
	if err != nil || !ok {
		return false, err
	}
	if err := json.Unmarshal(raw, out); err != nil {
		return false, fmt.Errorf("decode %s: %w", key, err)
	}
	return true, nil
}

func (s *KVStore) save(ctx context.Context, key string, value any) error {
	data, err := json.Marshal(value)
	if err != nil {
		return fmt.Errorf("encode %s: %w", key, err)
	}
	return s.kv.Save(ctx, key, data)
}
