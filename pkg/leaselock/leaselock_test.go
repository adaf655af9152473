package leaselock

import (
	"context"
	"sync"
	"testing"
	"time"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgconn"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

// fakeLocks emulates app_locks without expiry.
type fakeLocks struct {
	mu    sync.Mutex
	owner map[string]string
}

type row struct {
	key string
	err error
}

func (r row) Scan(dest ...any) error {
	if r.err != nil {
		return r.err
	}
	*dest[0].(*string) = r.key
	return nil
}

func (f *fakeLocks) QueryRow(_ context.Context, sql string, args ...any) pgx.Row {
	f.mu.Lock()
	defer f.mu.Unlock()
	key, token := args[0].(string), args[1].(string)
	cur, held := f.owner[key]
	switch sql {
	case tryAcquireSQL:
		if held && cur != token {
			return row{err: pgx.ErrNoRows}
		}
		f.owner[key] = token
		return row{key: key}
	case renewSQL:
		if !held || cur != token {
			return row{err: pgx.ErrNoRows}
		}
		return row{key: key}
	}
	return row{err: pgx.ErrNoRows}
}

func (f *fakeLocks) Exec(_ context.Context, sql string, args ...any) (pgconn.CommandTag, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	if sql == releaseSQL && f.owner[args[0].(string)] == args[1].(string) {
		delete(f.owner, args[0].(string))
	}
	return pgconn.CommandTag{}, nil
}

func TestAcquire_BusyWithoutWait(t *testing.T) {
	c := &Client{db: &fakeLocks{owner: map[string]string{}}}
	ctx := context.Background()
	key := TemplateKey("news")

	first, err := c.Acquire(ctx, key, Options{TTL: time.Minute})
	require.NoError(t, err)

	_, err = c.Acquire(ctx, key, Options{TTL: time.Minute})
	assert.ErrorIs(t, err, ErrBusy)

	require.NoError(t, first.Release(ctx))
	assert.Error(t, first.Context.Err())

	second, err := c.Acquire(ctx, key, Options{TTL: time.Minute})
	require.NoError(t, err)
	require.NoError(t, second.Release(ctx))
}

func TestWithLease_Serializes(t *testing.T) {
	c := &Client{db: &fakeLocks{owner: map[string]string{}}}
	ctx := context.Background()
	opts := TemplateOptions("worker")
	opts.WaitInterval = time.Millisecond
	opts.WaitJitter = 0

	var (
		mu      sync.Mutex
		running int
		peak    int
		wg      sync.WaitGroup
	)
	for range 4 {
		wg.Add(1)
		go func() {
			defer wg.Done()
			err := c.WithLease(ctx, TemplateKey("news"), opts, func(context.Context) error {
				mu.Lock()
				running++
				peak = max(peak, running)
				mu.Unlock()
				time.Sleep(2 * time.Millisecond)
				mu.Lock()
				running--
				mu.Unlock()
				return nil
			})
			assert.NoError(t, err)
		}()
	}
	wg.Wait()
	assert.Equal(t, 1, peak)
}

func TestAcquire_EmptyKey(t *testing.T) {
	c := &Client{db: &fakeLocks{owner: map[string]string{}}}
	_, err := c.Acquire(context.Background(), "", Options{})
	assert.Error(t, err)
}
