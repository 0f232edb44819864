// Package persistence connects the entity store to durable storage. A Backend
// loads and saves whole snapshots; a Syncer saves after every successful
// mutation and reports save failures as warnings instead of dropping them.
package persistence

import (
	"context"
	"errors"
	"fmt"
	"sync"

	"gigbook/internal/store"
)

// Backend stores snapshots of the entity store.
type Backend interface {
	// Load returns the last saved snapshot, or an empty one when nothing has
	// been saved yet.
	Load(ctx context.Context) (store.Snapshot, error)
	Save(ctx context.Context, snap store.Snapshot) error
	Close() error
}

// Source produces snapshots. *store.Store satisfies it.
type Source interface {
	Snapshot() store.Snapshot
}

// Target accepts a loaded snapshot. *store.Store satisfies it.
type Target interface {
	Restore(snap store.Snapshot) error
}

// PersistError reports that a mutation was committed in memory but could not
// be saved. Callers treat it as a warning: the returned entity is valid.
type PersistError struct {
	Op  string
	Err error
}

func (e *PersistError) Error() string {
	return fmt.Sprintf("persist after %s: %v", e.Op, e.Err)
}

func (e *PersistError) Unwrap() error {
	return e.Err
}

// IsWarning reports whether err is (or wraps) a PersistError.
func IsWarning(err error) bool {
	var pe *PersistError
	return errors.As(err, &pe)
}

// Syncer saves the source's snapshot to a backend. Saves are serialized so
// an older snapshot never overwrites a newer one.
type Syncer struct {
	mu      sync.Mutex
	backend Backend
	source  Source
}

// NewSyncer returns a Syncer. A nil backend makes Sync a no-op.
func NewSyncer(backend Backend, source Source) *Syncer {
	return &Syncer{backend: backend, source: source}
}

// Sync saves the current snapshot. op names the mutation for the error.
func (s *Syncer) Sync(ctx context.Context, op string) error {
	if s == nil || s.backend == nil {
		return nil
	}
	s.mu.Lock()
	defer s.mu.Unlock()

	if err := s.backend.Save(ctx, s.source.Snapshot()); err != nil {
		return &PersistError{Op: op, Err: err}
	}
	return nil
}

// Hydrate loads the backend's snapshot into target.
func Hydrate(ctx context.Context, backend Backend, target Target) error {
	snap, err := backend.Load(ctx)
	if err != nil {
		return fmt.Errorf("load snapshot: %w", err)
	}
	if err := target.Restore(snap); err != nil {
		return fmt.Errorf("restore snapshot: %w", err)
	}
	return nil
}
