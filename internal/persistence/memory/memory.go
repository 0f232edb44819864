// Package memory is an in-process persistence backend. Snapshots are kept as
// encoded JSON so saved state never aliases the live store.
package memory

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"sync"

	"gigbook/internal/store"
)

// ErrClosed is returned after Close.
var ErrClosed = errors.New("memory backend closed")

// Backend keeps the latest snapshot in memory.
type Backend struct {
	mu      sync.Mutex
	data    []byte
	saves   int
	saveErr error
	closed  bool
}

// New returns an empty backend.
func New() *Backend {
	return &Backend{}
}

// Load decodes the last saved snapshot.
func (b *Backend) Load(ctx context.Context) (store.Snapshot, error) {
	if err := ctx.Err(); err != nil {
		return store.Snapshot{}, err
	}
	b.mu.Lock()
	defer b.mu.Unlock()
	if b.closed {
		return store.Snapshot{}, ErrClosed
	}
	var snap store.Snapshot
	if len(b.data) == 0 {
		return snap, nil
	}
	if err := json.Unmarshal(b.data, &snap); err != nil {
		return store.Snapshot{}, fmt.Errorf("decode snapshot: %w", err)
	}
	return snap, nil
}

// Save encodes and keeps snap, unless a failure was injected with FailSaves.
func (b *Backend) Save(ctx context.Context, snap store.Snapshot) error {
	if err := ctx.Err(); err != nil {
		return err
	}
	b.mu.Lock()
	defer b.mu.Unlock()
	if b.closed {
		return ErrClosed
	}
	if b.saveErr != nil {
		return b.saveErr
	}
	data, err := json.Marshal(snap)
	if err != nil {
		return fmt.Errorf("encode snapshot: %w", err)
	}
	b.data = data
	b.saves++
	return nil
}

// FailSaves makes every following Save return err. A nil err clears it.
func (b *Backend) FailSaves(err error) {
	b.mu.Lock()
	b.saveErr = err
	b.mu.Unlock()
}

// Saves returns the number of successful saves.
func (b *Backend) Saves() int {
	b.mu.Lock()
	defer b.mu.Unlock()
	return b.saves
}

func (b *Backend) Close() error {
	b.mu.Lock()
	b.closed = true
	b.mu.Unlock()
	return nil
}
