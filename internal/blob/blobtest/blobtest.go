// Package blobtest holds the behaviour every blob.Store driver must share.
package blobtest

import (
	"bytes"
	"context"
	"errors"
	"io"
	"testing"

	"gigbook/internal/blob"
)

// Run exercises store through the create-only Put/Get/Head/List/Delete cycle.
func Run(t *testing.T, store blob.Store) {
	t.Helper()
	ctx := context.Background()
	payload := []byte("\xff\xd8\xff fake jpeg")

	info, err := store.Put(ctx, "songs/s1/a.jpg", bytes.NewReader(payload), blob.PutOptions{ContentType: "image/jpeg"})
	if err != nil {
		t.Fatalf("Put error: %v", err)
	}
	if info.Key != "songs/s1/a.jpg" || info.Size != int64(len(payload)) {
		t.Fatalf("unexpected put info %+v", info)
	}

	if _, err := store.Put(ctx, "songs/s1/a.jpg", bytes.NewReader(payload), blob.PutOptions{}); !errors.Is(err, blob.ErrExists) {
		t.Fatalf("expected ErrExists, got %v", err)
	}
	if _, err := store.Put(ctx, "../escape", bytes.NewReader(payload), blob.PutOptions{}); !errors.Is(err, blob.ErrInvalidKey) {
		t.Fatalf("expected ErrInvalidKey, got %v", err)
	}

	got, rc, err := store.Get(ctx, "songs/s1/a.jpg")
	if err != nil {
		t.Fatalf("Get error: %v", err)
	}
	data, err := io.ReadAll(rc)
	_ = rc.Close()
	if err != nil {
		t.Fatalf("read error: %v", err)
	}
	if !bytes.Equal(data, payload) {
		t.Fatalf("expected %q, got %q", payload, data)
	}
	if got.ContentType != "image/jpeg" {
		t.Fatalf("expected content type to round trip, got %q", got.ContentType)
	}

	head, err := store.Head(ctx, "songs/s1/a.jpg")
	if err != nil {
		t.Fatalf("Head error: %v", err)
	}
	if head.Size != int64(len(payload)) {
		t.Fatalf("unexpected head size %d", head.Size)
	}

	if _, err := store.Put(ctx, "items/i1/b.jpg", bytes.NewReader([]byte("b")), blob.PutOptions{}); err != nil {
		t.Fatalf("Put error: %v", err)
	}
	list, err := store.List(ctx, "songs/")
	if err != nil {
		t.Fatalf("List error: %v", err)
	}
	if len(list) != 1 || list[0].Key != "songs/s1/a.jpg" {
		t.Fatalf("unexpected list %+v", list)
	}
	all, err := store.List(ctx, "")
	if err != nil || len(all) != 2 {
		t.Fatalf("expected two blobs, got %d (%v)", len(all), err)
	}

	existed, err := store.Delete(ctx, "songs/s1/a.jpg")
	if err != nil || !existed {
		t.Fatalf("Delete = %v, %v", existed, err)
	}
	existed, err = store.Delete(ctx, "songs/s1/a.jpg")
	if err != nil || existed {
		t.Fatalf("second Delete = %v, %v", existed, err)
	}
	if _, err := store.Head(ctx, "songs/s1/a.jpg"); !errors.Is(err, blob.ErrNotFound) {
		t.Fatalf("expected ErrNotFound after delete, got %v", err)
	}
	if _, _, err := store.Get(ctx, "songs/s1/a.jpg"); !errors.Is(err, blob.ErrNotFound) {
		t.Fatalf("expected ErrNotFound from Get, got %v", err)
	}
}
