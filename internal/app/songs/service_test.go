package songs

import (
	"bytes"
	"context"
	"errors"
	"fmt"
	"image"
	"image/color"
	"image/png"
	"testing"
	"time"

	"gigbook/internal/app"
	blobmemory "gigbook/internal/blob/memory"
	"gigbook/internal/catalog"
	"gigbook/internal/imports"
	"gigbook/internal/persistence"
	persistmemory "gigbook/internal/persistence/memory"
	"gigbook/internal/store"
)

type fixture struct {
	store   *store.Store
	backend *persistmemory.Backend
	blobs   *blobmemory.Store
	svc     Service
}

func newFixture(t *testing.T) *fixture {
	t.Helper()
	clock := time.Date(2024, 5, 1, 18, 0, 0, 0, time.UTC)
	seq := 0
	s := store.New(
		store.WithClock(func() time.Time {
			clock = clock.Add(time.Second)
			return clock
		}),
		store.WithIDGenerator(func() string {
			seq++
			return fmt.Sprintf("id-%d", seq)
		}),
	)
	backend := persistmemory.New()
	blobs := blobmemory.New()
	svc := New(s, app.Runtime{
		Syncer: persistence.NewSyncer(backend, s),
		Blobs:  blobs,
	})
	return &fixture{store: s, backend: backend, blobs: blobs, svc: svc}
}

func testImage(w, h int) image.Image {
	img := image.NewRGBA(image.Rect(0, 0, w, h))
	img.Set(0, 0, color.RGBA{G: 180, A: 255})
	return img
}

func pngSource(t *testing.T, name string) imports.Source {
	t.Helper()
	var buf bytes.Buffer
	if err := png.Encode(&buf, testImage(6, 6)); err != nil {
		t.Fatalf("png.Encode error: %v", err)
	}
	return imports.BytesSource{Label: name, Data: buf.Bytes()}
}

func (f *fixture) blobCount(t *testing.T) int {
	t.Helper()
	infos, err := f.blobs.List(context.Background(), "")
	if err != nil {
		t.Fatalf("List error: %v", err)
	}
	return len(infos)
}

func (f *fixture) mustCreate(t *testing.T, title string) catalog.Song {
	t.Helper()
	song, err := f.svc.Create(context.Background(), catalog.NewSong(title))
	if err != nil {
		t.Fatalf("Create error: %v", err)
	}
	return song
}

func TestCreatePersistsSnapshot(t *testing.T) {
	f := newFixture(t)
	song := f.mustCreate(t, "Amazing Grace")

	if f.backend.Saves() != 1 {
		t.Fatalf("expected one save, got %d", f.backend.Saves())
	}
	snap, err := f.backend.Load(context.Background())
	if err != nil {
		t.Fatalf("Load error: %v", err)
	}
	if len(snap.Songs) != 1 || snap.Songs[0].ID != song.ID {
		t.Fatalf("unexpected snapshot %+v", snap.Songs)
	}
}

func TestCreateRejectsInvalidSongWithoutSaving(t *testing.T) {
	f := newFixture(t)
	bad := catalog.NewSong("Fast")
	tempo := 301
	bad.Tempo = &tempo

	_, err := f.svc.Create(context.Background(), bad)
	if !errors.Is(err, catalog.ErrInvalidTempo) {
		t.Fatalf("expected ErrInvalidTempo, got %v", err)
	}
	if f.backend.Saves() != 0 {
		t.Fatalf("failed mutations must not save")
	}
}

func TestPersistFailureIsAWarning(t *testing.T) {
	f := newFixture(t)
	f.backend.FailSaves(errors.New("disk full"))

	song, err := f.svc.Create(context.Background(), catalog.NewSong("Be Thou My Vision"))
	if !persistence.IsWarning(err) {
		t.Fatalf("expected persist warning, got %v", err)
	}
	if song.ID == "" {
		t.Fatalf("committed song must still be returned")
	}
	if _, err := f.store.GetSong(song.ID); err != nil {
		t.Fatalf("song should be committed in memory: %v", err)
	}
}

func TestCancelledContextDoesNotMutate(t *testing.T) {
	f := newFixture(t)
	ctx, cancel := context.WithCancel(context.Background())
	cancel()

	if _, err := f.svc.Create(ctx, catalog.NewSong("Never")); !errors.Is(err, context.Canceled) {
		t.Fatalf("expected context.Canceled, got %v", err)
	}
	if len(f.store.ListSongs()) != 0 {
		t.Fatalf("expected no songs")
	}
}

func TestSectionWorkflow(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()
	song := f.mustCreate(t, "How Great")

	verse, err := f.svc.AddSection(ctx, song.ID, catalog.NewSection(catalog.SectionVerse, ""))
	if err != nil {
		t.Fatalf("AddSection error: %v", err)
	}
	chorus, err := f.svc.AddSection(ctx, song.ID, catalog.NewSection(catalog.SectionChorus, ""))
	if err != nil {
		t.Fatalf("AddSection error: %v", err)
	}
	if verse.DisplayName() != "V1" || chorus.DisplayName() != "C1" {
		t.Fatalf("unexpected names %q %q", verse.DisplayName(), chorus.DisplayName())
	}

	moved, err := f.svc.MoveSection(ctx, song.ID, 1, 0)
	if err != nil {
		t.Fatalf("MoveSection error: %v", err)
	}
	if moved[0].ID != chorus.ID || moved[1].ID != verse.ID {
		t.Fatalf("unexpected order after move")
	}

	if _, err := f.svc.UpdateSection(ctx, song.ID, verse.ID, func(s *catalog.Section) error {
		label := "2"
		s.Label = &label
		return nil
	}); err != nil {
		t.Fatalf("UpdateSection error: %v", err)
	}
	if err := f.svc.DeleteSection(ctx, song.ID, chorus.ID); err != nil {
		t.Fatalf("DeleteSection error: %v", err)
	}

	got, _ := f.svc.Get(ctx, song.ID)
	if len(got.Sections) != 1 || got.Sections[0].Order != 0 || got.Sections[0].DisplayName() != "V2" {
		t.Fatalf("unexpected sections %+v", got.Sections)
	}
	if f.backend.Saves() != 6 {
		t.Fatalf("expected a save per mutation, got %d", f.backend.Saves())
	}
}

func TestImageLifecycle(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()
	song := f.mustCreate(t, "Sheet")

	updated, err := f.svc.AddImage(ctx, song.ID, "page1", testImage(20, 10))
	if err != nil {
		t.Fatalf("AddImage error: %v", err)
	}
	if len(updated.Images) != 1 || f.blobCount(t) != 1 {
		t.Fatalf("expected one image and one blob")
	}

	img, err := f.svc.Image(ctx, song.ID, 0)
	if err != nil {
		t.Fatalf("Image error: %v", err)
	}
	if img.Bounds().Dx() != 20 || img.Bounds().Dy() != 10 {
		t.Fatalf("unexpected bounds %v", img.Bounds())
	}
	if _, err := f.svc.Image(ctx, song.ID, 3); !errors.Is(err, store.ErrNotFound) {
		t.Fatalf("expected ErrNotFound, got %v", err)
	}

	removed, err := f.svc.RemoveImage(ctx, song.ID, 0)
	if err != nil {
		t.Fatalf("RemoveImage error: %v", err)
	}
	if removed.Key != updated.Images[0].Key || f.blobCount(t) != 0 {
		t.Fatalf("expected the blob to be released")
	}
}

func TestAddImageAtLimitStoresNothing(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()
	song := f.mustCreate(t, "Full")
	for i := 0; i < catalog.MaxImages; i++ {
		if _, err := f.svc.AddImage(ctx, song.ID, fmt.Sprintf("p%d", i), testImage(4, 4)); err != nil {
			t.Fatalf("AddImage %d error: %v", i, err)
		}
	}

	_, err := f.svc.AddImage(ctx, song.ID, "one too many", testImage(4, 4))
	if !errors.Is(err, catalog.ErrImageLimitExceeded) {
		t.Fatalf("expected ErrImageLimitExceeded, got %v", err)
	}
	if f.blobCount(t) != catalog.MaxImages {
		t.Fatalf("expected %d blobs, got %d", catalog.MaxImages, f.blobCount(t))
	}
}

func TestImportImages(t *testing.T) {
	f := newFixture(t)
	song := f.mustCreate(t, "Imported")
	saves := f.backend.Saves()

	sources := []imports.Source{
		pngSource(t, "a.png"),
		imports.BytesSource{Label: "broken.png", Data: []byte("nope")},
		pngSource(t, "b.png"),
	}
	report, err := f.svc.ImportImages(context.Background(), song.ID, sources)
	if err != nil {
		t.Fatalf("ImportImages error: %v", err)
	}
	if len(report.Added) != 2 || len(report.Failed) != 1 {
		t.Fatalf("unexpected report %+v", report)
	}
	got, _ := f.svc.Get(context.Background(), song.ID)
	if len(got.Images) != 2 {
		t.Fatalf("expected 2 images, got %d", len(got.Images))
	}
	if f.backend.Saves() != saves+1 {
		t.Fatalf("expected one save for the batch")
	}

	if _, err := f.svc.ImportImages(context.Background(), "missing", sources); !errors.Is(err, store.ErrNotFound) {
		t.Fatalf("expected ErrNotFound, got %v", err)
	}
}

func TestDeleteReleasesImagesAndHonoursUsage(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()
	song := f.mustCreate(t, "Doomed")
	if _, err := f.svc.AddImage(ctx, song.ID, "p", testImage(4, 4)); err != nil {
		t.Fatalf("AddImage error: %v", err)
	}

	setlist, err := f.store.CreateSetlist(catalog.NewSetlist("Sunday"))
	if err != nil {
		t.Fatalf("CreateSetlist error: %v", err)
	}
	item, err := f.store.AttachSong(setlist.ID, song.ID)
	if err != nil {
		t.Fatalf("AttachSong error: %v", err)
	}

	var inUse store.SongInUseError
	if err := f.svc.Delete(ctx, song.ID); !errors.As(err, &inUse) || inUse.SetlistIDs[0] != setlist.ID {
		t.Fatalf("expected SongInUseError, got %v", err)
	}
	if f.blobCount(t) != 1 {
		t.Fatalf("blocked delete must keep blobs")
	}

	if _, err := f.store.RemoveItem(setlist.ID, item.ID); err != nil {
		t.Fatalf("RemoveItem error: %v", err)
	}
	if err := f.svc.Delete(ctx, song.ID); err != nil {
		t.Fatalf("Delete error: %v", err)
	}
	if f.blobCount(t) != 0 {
		t.Fatalf("expected blobs released")
	}
	if _, err := f.svc.Get(ctx, song.ID); !errors.Is(err, store.ErrNotFound) {
		t.Fatalf("expected ErrNotFound, got %v", err)
	}
}

func TestRecentOrdersByModification(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()
	a := f.mustCreate(t, "A")
	f.mustCreate(t, "B")
	if _, err := f.svc.Update(ctx, a.ID, func(s *catalog.Song) error {
		key := "G"
		s.Key = &key
		return nil
	}); err != nil {
		t.Fatalf("Update error: %v", err)
	}

	recent, err := f.svc.Recent(ctx, 1)
	if err != nil {
		t.Fatalf("Recent error: %v", err)
	}
	if len(recent) != 1 || recent[0].ID != a.ID {
		t.Fatalf("expected %s first, got %+v", a.ID, recent)
	}
	all, _ := f.svc.List(ctx)
	if len(all) != 2 || all[0].Title != "A" {
		t.Fatalf("expected title order, got %+v", all)
	}
}
