package persistence

import (
	"context"
	"errors"
	"testing"

	"gigbook/internal/catalog"
	"gigbook/internal/persistence/memory"
	"gigbook/internal/store"
)

func TestSyncSavesCurrentSnapshot(t *testing.T) {
	ctx := context.Background()
	s := store.New()
	backend := memory.New()
	syncer := NewSyncer(backend, s)

	song, err := s.CreateSong(catalog.NewSong("Amazing Grace"))
	if err != nil {
		t.Fatalf("CreateSong error: %v", err)
	}
	if err := syncer.Sync(ctx, "create song"); err != nil {
		t.Fatalf("Sync error: %v", err)
	}

	snap, err := backend.Load(ctx)
	if err != nil {
		t.Fatalf("Load error: %v", err)
	}
	if len(snap.Songs) != 1 || snap.Songs[0].ID != song.ID {
		t.Fatalf("expected saved song, got %+v", snap.Songs)
	}
	if backend.Saves() != 1 {
		t.Fatalf("expected one save, got %d", backend.Saves())
	}
}

func TestSyncFailureIsWarning(t *testing.T) {
	ctx := context.Background()
	s := store.New()
	backend := memory.New()
	diskFull := errors.New("disk full")
	backend.FailSaves(diskFull)
	syncer := NewSyncer(backend, s)

	song, _ := s.CreateSong(catalog.NewSong("Sunday"))
	err := syncer.Sync(ctx, "create song")
	if err == nil {
		t.Fatalf("expected persist error")
	}
	if !IsWarning(err) {
		t.Fatalf("expected IsWarning, got %v", err)
	}
	if !errors.Is(err, diskFull) {
		t.Fatalf("expected cause to be wrapped, got %v", err)
	}
	var pe *PersistError
	if !errors.As(err, &pe) || pe.Op != "create song" {
		t.Fatalf("expected op to be recorded, got %#v", err)
	}
	if _, err := s.GetSong(song.ID); err != nil {
		t.Fatalf("in-memory change must survive a failed save: %v", err)
	}

	backend.FailSaves(nil)
	if err := syncer.Sync(ctx, "retry"); err != nil {
		t.Fatalf("Sync after recovery error: %v", err)
	}
}

func TestIsWarning(t *testing.T) {
	tests := []struct {
		name string
		err  error
		want bool
	}{
		{name: "nil", err: nil, want: false},
		{name: "plain", err: errors.New("x"), want: false},
		{name: "persist", err: &PersistError{Op: "op", Err: errors.New("x")}, want: true},
		{name: "wrapped", err: errors.Join(errors.New("ctx"), &PersistError{Op: "op", Err: errors.New("x")}), want: true},
		{name: "not found", err: store.NotFoundError{Entity: store.EntitySong, ID: "s"}, want: false},
	}
	for _, tc := range tests {
		tc := tc
		t.Run(tc.name, func(t *testing.T) {
			if got := IsWarning(tc.err); got != tc.want {
				t.Fatalf("IsWarning(%v) = %v, want %v", tc.err, got, tc.want)
			}
		})
	}
}

func TestNilBackendSyncIsNoop(t *testing.T) {
	if err := NewSyncer(nil, store.New()).Sync(context.Background(), "op"); err != nil {
		t.Fatalf("expected nil, got %v", err)
	}
	var syncer *Syncer
	if err := syncer.Sync(context.Background(), "op"); err != nil {
		t.Fatalf("expected nil for nil syncer, got %v", err)
	}
}

func TestHydrate(t *testing.T) {
	ctx := context.Background()
	src := store.New()
	song, _ := src.CreateSong(catalog.NewSong("Song"))
	setlist, _ := src.CreateSetlist(catalog.NewSetlist("Set"))
	if _, err := src.AttachSong(setlist.ID, song.ID); err != nil {
		t.Fatalf("AttachSong error: %v", err)
	}
	backend := memory.New()
	if err := backend.Save(ctx, src.Snapshot()); err != nil {
		t.Fatalf("Save error: %v", err)
	}

	dst := store.New()
	if err := Hydrate(ctx, backend, dst); err != nil {
		t.Fatalf("Hydrate error: %v", err)
	}
	got, err := dst.GetSetlist(setlist.ID)
	if err != nil {
		t.Fatalf("GetSetlist error: %v", err)
	}
	if len(got.Items) != 1 || got.Items[0].SongID != song.ID {
		t.Fatalf("unexpected hydrated setlist %+v", got)
	}
}

func TestHydrateRejectsBrokenSnapshot(t *testing.T) {
	ctx := context.Background()
	backend := memory.New()
	broken := store.Snapshot{Setlists: []catalog.Setlist{{
		ID: "l1", Title: "Set",
		Items: []catalog.SetlistItem{{ID: "i1", SongID: "missing"}},
	}}}
	if err := backend.Save(ctx, broken); err != nil {
		t.Fatalf("Save error: %v", err)
	}
	if err := Hydrate(ctx, backend, store.New()); !errors.Is(err, store.ErrNotFound) {
		t.Fatalf("expected ErrNotFound, got %v", err)
	}
}
