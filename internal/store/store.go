// Package store persists game state as opaque values under string keys.
//
// Backends only need point reads and an atomic batch write. All read/modify
// logic runs on a Tx, which buffers writes in memory until Commit hands them
// to the backend as one batch.
package store

import (
	"context"
	"errors"
	"fmt"
	"sort"
	"strings"

	log "github.com/sirupsen/logrus"
)

var ErrNotFound = errors.New("store: key not found")

// Write is one key assignment inside a batch.
type Write struct {
	Key   string
	Value []byte
}

// Store is a key/value backend.
type Store interface {
	// Get returns ErrNotFound when key has never been written.
	Get(ctx context.Context, key string) ([]byte, error)
	// Apply writes the whole batch or nothing.
	Apply(ctx context.Context, batch []Write) error
	Close() error
}

// Backend names used in configuration.
const (
	BackendMemory   = "memory"
	BackendRedis    = "redis"
	BackendPostgres = "postgres"
	BackendSQLite   = "sqlite"
)

// Tx is a read-your-writes overlay over a Store.
type Tx struct {
	ctx    context.Context
	store  Store
	writes map[string][]byte
	done   bool
}

func Begin(ctx context.Context, s Store) *Tx {
	return &Tx{ctx: ctx, store: s, writes: make(map[string][]byte)}
}

func (t *Tx) Get(key string) ([]byte, error) {
	if v, ok := t.writes[key]; ok {
		return v, nil
	}
	return t.store.Get(t.ctx, key)
}

func (t *Tx) Set(key string, value []byte) {
	t.writes[key] = value
}

// Pending is the number of buffered writes.
func (t *Tx) Pending() int { return len(t.writes) }

// Commit applies buffered writes in key order. A Tx can only be finished
// once.
func (t *Tx) Commit() error {
	if t.done {
		return errors.New("store: transaction already finished")
	}
	t.done = true
	if len(t.writes) == 0 {
		return nil
	}

	batch := make([]Write, 0, len(t.writes))
	for k, v := range t.writes {
		batch = append(batch, Write{Key: k, Value: v})
	}
	sort.Slice(batch, func(i, j int) bool { return batch[i].Key < batch[j].Key })

	if err := t.store.Apply(t.ctx, batch); err != nil {
		return fmt.Errorf("commit %d writes: %w", len(batch), err)
	}
	log.WithFields(log.Fields{
		"component": "store",
		"writes":    len(batch),
	}).Debug("committed transaction")
	return nil
}

// Discard drops buffered writes.
func (t *Tx) Discard() {
	t.done = true
	t.writes = nil
}

// Key joins parts with '/'.
func Key(parts ...string) string {
	return strings.Join(parts, "/")
}
