package store

import (
	"context"
	"encoding/json"
	"fmt"

	"golang.org/x/sync/singleflight"

	"github.com/OFFIS-RIT/stencil/pkg/digest"
)

const (
	nodePrefix     = "node:"
	networkPrefix  = "network:"
	templatePrefix = "template:"
	cachePrefix    = "cache:"
	jobPrefix      = "job:"
)

func NodeKey(l digest.Lineage) string {
	return nodePrefix + l.ID().String()
}

func NetworkKey(template string, h digest.Digest) string {
	return networkPrefix + template + ":" + h.String()
}

func TemplateKey(name string) string {
	return templatePrefix + name
}

func CacheKey(key string) string {
	return cachePrefix + key
}

func JobKey(template, jobID string) string {
	return jobPrefix + template + ":" + jobID
}

var computeGroup singleflight.Group

// GetOrCompute returns the cached value for key or computes, stores and
// returns it. Concurrent misses within one process share a single compute;
// misses across processes may compute twice, and the last write wins.
func GetOrCompute[T any](ctx context.Context, c Cache, key string, compute func(ctx context.Context) (T, error)) (T, error) {
	var zero T

	raw, ok, err := c.Get(ctx, key)
	if err != nil {
		return zero, fmt.Errorf("cache get %s: %w", key, err)
	}
	if ok {
		var v T
		if err := json.Unmarshal(raw, &v); err == nil {
			return v, nil
		}
		// undecodable entries are recomputed and overwritten
	}

	res, err, _ := computeGroup.Do(fmt.Sprintf("%p/%s", c, key), func() (any, error) {
		v, err := compute(ctx)
		if err != nil {
			return nil, err
		}
		data, err := json.Marshal(v)
		if err != nil {
			return nil, fmt.Errorf("encode cache value: %w", err)
		}
		if err := c.Put(ctx, key, data); err != nil {
			return nil, fmt.Errorf("cache put %s: %w", key, err)
		}
		return v, nil
	})
	if err != nil {
		return zero, err
	}
	v, _ := res.(T)
	return v, nil
}
