package memory

import (
	"context"
	"errors"
	"testing"

	"gigbook/internal/catalog"
	"gigbook/internal/store"
)

func TestLoadEmpty(t *testing.T) {
	snap, err := New().Load(context.Background())
	if err != nil {
		t.Fatalf("Load error: %v", err)
	}
	if len(snap.Songs) != 0 || len(snap.Setlists) != 0 {
		t.Fatalf("expected empty snapshot, got %+v", snap)
	}
}

func TestSavedSnapshotDoesNotAlias(t *testing.T) {
	ctx := context.Background()
	b := New()
	key := "C"
	snap := store.Snapshot{Songs: []catalog.Song{{ID: "s1", Title: "Song", Key: &key}}}
	if err := b.Save(ctx, snap); err != nil {
		t.Fatalf("Save error: %v", err)
	}
	key = "D"
	snap.Songs[0].Title = "Changed"

	got, err := b.Load(ctx)
	if err != nil {
		t.Fatalf("Load error: %v", err)
	}
	if got.Songs[0].Title != "Song" || *got.Songs[0].Key != "C" {
		t.Fatalf("saved state changed with caller's copy: %+v", got.Songs[0])
	}
}

func TestFailSavesAndClose(t *testing.T) {
	ctx := context.Background()
	b := New()
	boom := errors.New("boom")
	b.FailSaves(boom)
	if err := b.Save(ctx, store.Snapshot{}); !errors.Is(err, boom) {
		t.Fatalf("expected injected error, got %v", err)
	}
	if b.Saves() != 0 {
		t.Fatalf("failed saves must not count")
	}
	b.FailSaves(nil)
	if err := b.Save(ctx, store.Snapshot{}); err != nil {
		t.Fatalf("Save error: %v", err)
	}
	_ = b.Close()
	if err := b.Save(ctx, store.Snapshot{}); !errors.Is(err, ErrClosed) {
		t.Fatalf("expected ErrClosed, got %v", err)
	}
	if _, err := b.Load(ctx); !errors.Is(err, ErrClosed) {
		t.Fatalf("expected ErrClosed, got %v", err)
	}
}

func TestCancelledContext(t *testing.T) {
	ctx, cancel := context.WithCancel(context.Background())
	cancel()
	if err := New().Save(ctx, store.Snapshot{}); !errors.Is(err, context.Canceled) {
		t.Fatalf("expected context.Canceled, got %v", err)
	}
}
