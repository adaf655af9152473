package store_test

import (
	"context"
	"errors"
	"sync"
	"sync/atomic"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/OFFIS-RIT/stencil/pkg/basis"
	"github.com/OFFIS-RIT/stencil/pkg/digest"
	"github.com/OFFIS-RIT/stencil/pkg/document"
	"github.com/OFFIS-RIT/stencil/pkg/store"
	"github.com/OFFIS-RIT/stencil/pkg/store/badger"
	"github.com/OFFIS-RIT/stencil/pkg/store/memory"
)

func backends(t *testing.T) map[string]store.Store {
	t.Helper()
	b, err := badger.New(badger.InMemoryConfig())
	require.NoError(t, err)
	t.Cleanup(func() { _ = b.Close() })
	return map[string]store.Store{
		"memory": memory.New(),
		"badger": b,
	}
}

func TestStore_BasisNodes(t *testing.T) {
	ctx := context.Background()
	lineage := digest.NewLineage([]digest.Digest{digest.Of("root"), digest.Of("ul"), digest.Of("li")})

	node := basis.NewNode(document.Shape{Kind: document.KindElement, Tag: "li"})
	node.Data = []basis.Data{{Name: "item"}}
	node.Resolution = basis.Interpreted

	for name, s := range backends(t) {
		t.Run(name, func(t *testing.T) {
			_, ok, err := s.GetBasisNodeByLineage(ctx, lineage)
			require.NoError(t, err)
			assert.False(t, ok)

			require.NoError(t, s.SaveBasisNode(ctx, lineage, node))

			// consecutive repeats collapse, so this is the same address
			again := digest.NewLineage([]digest.Digest{digest.Of("root"), digest.Of("ul"), digest.Of("li"), digest.Of("li")})
			got, ok, err := s.GetBasisNodeByLineage(ctx, again)
			require.NoError(t, err)
			require.True(t, ok)
			assert.Equal(t, node, got)
		})
	}
}

func TestStore_NetworksAndTemplates(t *testing.T) {
	ctx := context.Background()
	doc, err := document.ParseBytes([]byte(`<ul><li>a</li><li>b</li></ul>`), document.DefaultFilter())
	require.NoError(t, err)
	g, err := basis.BuildBasis(doc)
	require.NoError(t, err)
	network, err := basis.NewNetwork("list", g, 1)
	require.NoError(t, err)

	for name, s := range backends(t) {
		t.Run(name, func(t *testing.T) {
			_, ok, err := s.GetTemplate(ctx, "list")
			require.NoError(t, err)
			assert.False(t, ok)

			require.NoError(t, s.SaveBasisNetwork(ctx, "list", network.SubgraphHash, network))
			require.NoError(t, s.SaveTemplate(ctx, "list", network.SubgraphHash))

			head, ok, err := s.GetTemplate(ctx, "list")
			require.NoError(t, err)
			require.True(t, ok)
			assert.Equal(t, network.SubgraphHash, head)

			got, ok, err := s.GetBasisNetworkBySubgraphHash(ctx, "list", head)
			require.NoError(t, err)
			require.True(t, ok)
			assert.Equal(t, "list", got.Template)

			decoded, err := got.Graph()
			require.NoError(t, err)
			root, err := decoded.Root()
			require.NoError(t, err)
			assert.Equal(t, head, decoded.SubgraphHash(root))
		})
	}
}

func TestStore_NetworksAreScopedByTemplate(t *testing.T) {
	ctx := context.Background()
	doc, err := document.ParseBytes([]byte(`<ul><li>a</li></ul>`), document.DefaultFilter())
	require.NoError(t, err)
	g, err := basis.BuildBasis(doc)
	require.NoError(t, err)
	news, err := basis.NewNetwork("news", g, 1)
	require.NoError(t, err)
	blog, err := basis.NewNetwork("blog", g, 3)
	require.NoError(t, err)
	require.Equal(t, news.SubgraphHash, blog.SubgraphHash)

	for name, s := range backends(t) {
		t.Run(name, func(t *testing.T) {
			require.NoError(t, s.SaveBasisNetwork(ctx, "news", news.SubgraphHash, news))
			require.NoError(t, s.SaveBasisNetwork(ctx, "blog", blog.SubgraphHash, blog))

			got, ok, err := s.GetBasisNetworkBySubgraphHash(ctx, "news", news.SubgraphHash)
			require.NoError(t, err)
			require.True(t, ok)
			assert.Equal(t, "news", got.Template)
			assert.Equal(t, 1, got.Documents)

			_, ok, err = s.GetBasisNetworkBySubgraphHash(ctx, "shop", news.SubgraphHash)
			require.NoError(t, err)
			assert.False(t, ok)
		})
	}
}

func TestGetOrCompute(t *testing.T) {
	ctx := context.Background()

	t.Run("computes once and caches", func(t *testing.T) {
		s := memory.New()
		var calls atomic.Int32
		compute := func(context.Context) ([]string, error) {
			calls.Add(1)
			return []string{"title"}, nil
		}

		for range 3 {
			v, err := store.GetOrCompute(ctx, s, "k", compute)
			require.NoError(t, err)
			assert.Equal(t, []string{"title"}, v)
		}
		assert.Equal(t, int32(1), calls.Load())
	})

	t.Run("errors are not cached", func(t *testing.T) {
		s := memory.New()
		boom := errors.New("boom")
		_, err := store.GetOrCompute(ctx, s, "k", func(context.Context) (int, error) { return 0, boom })
		require.ErrorIs(t, err, boom)

		v, err := store.GetOrCompute(ctx, s, "k", func(context.Context) (int, error) { return 42, nil })
		require.NoError(t, err)
		assert.Equal(t, 42, v)
	})

	t.Run("concurrent misses agree", func(t *testing.T) {
		s := memory.New()
		var wg sync.WaitGroup
		results := make([]int, 8)
		for i := range results {
			wg.Add(1)
			go func() {
				defer wg.Done()
				v, err := store.GetOrCompute(ctx, s, "shared", func(context.Context) (int, error) { return 7, nil })
				assert.NoError(t, err)
				results[i] = v
			}()
		}
		wg.Wait()
		for _, v := range results {
			assert.Equal(t, 7, v)
		}
	})
}
