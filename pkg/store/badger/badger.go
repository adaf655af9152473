// Package badger provides a Store on an embedded BadgerDB, the default
// backend of the command line tool.
package badger

import (
	"bytes"
	"context"
	"errors"
	"fmt"
	"os"
	"sync"
	"time"

	"github.com/dgraph-io/badger/v4"

	"github.com/OFFIS-RIT/stencil/pkg/logger"
	"github.com/OFFIS-RIT/stencil/pkg/store"
)

// Config holds configuration for a BadgerDB instance.
type Config struct {
	// Path is the directory for database files. Ignored when InMemory is set.
	Path string

	InMemory   bool
	SyncWrites bool

	// Verbose forwards BadgerDB's internal logging to the logger facade.
	Verbose bool

	NumVersionsToKeep int

	// GCInterval is how often value log garbage collection runs. 0 disables it.
	GCInterval     time.Duration
	GCDiscardRatio float64
}

func DefaultConfig(path string) Config {
	return Config{
		Path:              path,
		SyncWrites:        true,
		NumVersionsToKeep: 1,
		GCInterval:        5 * time.Minute,
		GCDiscardRatio:    0.5,
	}
}

// InMemoryConfig returns a configuration without disk I/O, for tests.
func InMemoryConfig() Config {
	return Config{
		InMemory:          true,
		NumVersionsToKeep: 1,
	}
}

// badgerLogger adapts the logger facade to BadgerDB's Logger interface.
type badgerLogger struct{}

func (badgerLogger) Errorf(format string, args ...any) {
	logger.Error("[Badger] " + fmt.Sprintf(format, args...))
}

func (badgerLogger) Warningf(format string, args ...any) {
	logger.Warn("[Badger] " + fmt.Sprintf(format, args...))
}

func (badgerLogger) Infof(format string, args ...any) {
	logger.Debug("[Badger] " + fmt.Sprintf(format, args...))
}

func (badgerLogger) Debugf(format string, args ...any) {
	logger.Debug("[Badger] " + fmt.Sprintf(format, args...))
}

// Open opens a BadgerDB at the configured path, creating it if needed, or
// in memory.
func Open(cfg Config) (*badger.DB, error) {
	if !cfg.InMemory && cfg.Path == "" {
		return nil, errors.New("path is required for persistent database")
	}

	var opts badger.Options
	if cfg.InMemory {
		opts = badger.DefaultOptions("").WithInMemory(true)
	} else {
		if err := os.MkdirAll(cfg.Path, 0o750); err != nil {
			return nil, fmt.Errorf("create database directory %s: %w", cfg.Path, err)
		}
		opts = badger.DefaultOptions(cfg.Path)
	}

	opts = opts.WithSyncWrites(cfg.SyncWrites)
	if cfg.NumVersionsToKeep > 0 {
		opts = opts.WithNumVersionsToKeep(cfg.NumVersionsToKeep)
	}
	if cfg.Verbose {
		opts = opts.WithLogger(badgerLogger{})
	} else {
		opts = opts.WithLogger(nil)
	}

	db, err := badger.Open(opts)
	if err != nil {
		return nil, fmt.Errorf("open badger database: %w", err)
	}
	return db, nil
}

type kv struct {
	db *badger.DB

	stop     chan struct{}
	stopOnce sync.Once
	done     chan struct{}
}

// New opens the database and wraps it as a Store. Closing the store closes
// the database.
func New(cfg Config) (*store.KVStore, error) {
	db, err := Open(cfg)
	if err != nil {
		return nil, err
	}
	k := &kv{db: db, stop: make(chan struct{}), done: make(chan struct{})}
	if cfg.GCInterval > 0 && !cfg.InMemory {
		go k.gcLoop(cfg.GCInterval, cfg.GCDiscardRatio)
	} else {
		close(k.done)
	}
	return store.NewKVStore(k), nil
}

func (k *kv) gcLoop(interval time.Duration, ratio float64) {
	defer close(k.done)
	if ratio <= 0 || ratio >= 1 {
		ratio = 0.5
	}
	t := time.NewTicker(interval)
	defer t.Stop()
	for {
		select {
		case <-k.stop:
			return
		case <-t.C:
			for k.db.RunValueLogGC(ratio) == nil {
			}
		}
	}
}

func (k *kv) Load(_ context.Context, key string) ([]byte, bool, error) {
	var out []byte
	err := k.db.View(func(txn *badger.Txn) error {
		item, err := txn.Get([]byte(key))
		if err != nil {
			return err
		}
		out, err = item.ValueCopy(nil)
		return err
	})
	if errors.Is(err, badger.ErrKeyNotFound) {
		return nil, false, nil
	}
	if err != nil {
		return nil, false, fmt.Errorf("badger get %s: %w", key, err)
	}
	return out, true, nil
}

func (k *kv) Save(_ context.Context, key string, value []byte) error {
	err := k.db.Update(func(txn *badger.Txn) error {
		return txn.Set([]byte(key), bytes.Clone(value))
	})
	if err != nil {
		return fmt.Errorf("badger set %s: %w", key, err)
	}
	return nil
}

func (k *kv) Close() error {
	k.stopOnce.Do(func() { close(k.stop) })
	<-k.done
	return k.db.Close()
}
