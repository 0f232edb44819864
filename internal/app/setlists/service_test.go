package setlists

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
	clock := time.Date(2024, 6, 2, 9, 0, 0, 0, time.UTC)
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

func strPtr(v string) *string { return &v }
func intPtr(v int) *int       { return &v }

func testImage() image.Image {
	img := image.NewRGBA(image.Rect(0, 0, 6, 6))
	img.Set(2, 2, color.RGBA{R: 90, A: 255})
	return img
}

func pngSources(t *testing.T, n int) []imports.Source {
	t.Helper()
	var buf bytes.Buffer
	if err := png.Encode(&buf, testImage()); err != nil {
		t.Fatalf("png.Encode error: %v", err)
	}
	out := make([]imports.Source, n)
	for i := range out {
		out[i] = imports.BytesSource{Label: fmt.Sprintf("p%d.png", i), Data: buf.Bytes()}
	}
	return out
}

func (f *fixture) blobCount(t *testing.T) int {
	t.Helper()
	infos, err := f.blobs.List(context.Background(), "")
	if err != nil {
		t.Fatalf("List error: %v", err)
	}
	return len(infos)
}

func (f *fixture) mustSong(t *testing.T, title, key string, tempo int) catalog.Song {
	t.Helper()
	song := catalog.NewSong(title)
	song.Key = strPtr(key)
	song.Tempo = intPtr(tempo)
	song.Sections = []catalog.Section{
		catalog.NewSection(catalog.SectionVerse, "1"),
		catalog.NewSection(catalog.SectionChorus, "1"),
	}
	song.Sections[1].Order = 1
	created, err := f.store.CreateSong(song)
	if err != nil {
		t.Fatalf("CreateSong error: %v", err)
	}
	return created
}

func (f *fixture) mustSetlist(t *testing.T, title string) catalog.Setlist {
	t.Helper()
	setlist, err := f.svc.Create(context.Background(), catalog.NewSetlist(title))
	if err != nil {
		t.Fatalf("Create error: %v", err)
	}
	return setlist
}

func TestAttachRejectsDuplicates(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()
	song := f.mustSong(t, "Amazing Grace", "G", 72)
	setlist := f.mustSetlist(t, "Sunday")

	if _, err := f.svc.Attach(ctx, setlist.ID, song.ID, false); err != nil {
		t.Fatalf("Attach error: %v", err)
	}
	saves := f.backend.Saves()
	if _, err := f.svc.Attach(ctx, setlist.ID, song.ID, false); !errors.Is(err, ErrSongAlreadyAttached) {
		t.Fatalf("expected ErrSongAlreadyAttached, got %v", err)
	}
	got, _ := f.svc.Get(ctx, setlist.ID)
	if len(got.Items) != 1 || f.backend.Saves() != saves {
		t.Fatalf("duplicate attach must leave the setlist untouched")
	}

	if _, err := f.svc.Attach(ctx, setlist.ID, "missing", false); !errors.Is(err, store.ErrNotFound) {
		t.Fatalf("expected ErrNotFound, got %v", err)
	}
}

func TestAttachWithClonedSections(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()
	song := f.mustSong(t, "Holy", "D", 80)
	setlist := f.mustSetlist(t, "Evening")

	item, err := f.svc.Attach(ctx, setlist.ID, song.ID, true)
	if err != nil {
		t.Fatalf("Attach error: %v", err)
	}
	if len(item.Sections) != 2 {
		t.Fatalf("expected 2 cloned sections, got %d", len(item.Sections))
	}
	for i, sec := range item.Sections {
		if sec.ID == song.Sections[i].ID {
			t.Fatalf("cloned section %d shares its identity with the song", i)
		}
		if sec.DisplayName() != song.Sections[i].DisplayName() || sec.Order != i {
			t.Fatalf("cloned section %d = %+v", i, sec)
		}
	}

	if err := f.svc.DeleteItemSection(ctx, setlist.ID, item.ID, item.Sections[0].ID); err != nil {
		t.Fatalf("DeleteItemSection error: %v", err)
	}
	fresh, _ := f.store.GetSong(song.ID)
	if len(fresh.Sections) != 2 {
		t.Fatalf("editing the copy must not touch the song")
	}
}

func TestRunSheetResolvesLiveValues(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()
	grace := f.mustSong(t, "Amazing Grace", "G", 72)
	holy := f.mustSong(t, "Holy", "D", 80)
	setlist := f.mustSetlist(t, "Sunday")

	first, err := f.svc.Attach(ctx, setlist.ID, grace.ID, false)
	if err != nil {
		t.Fatalf("Attach error: %v", err)
	}
	second, err := f.svc.Attach(ctx, setlist.ID, holy.ID, true)
	if err != nil {
		t.Fatalf("Attach error: %v", err)
	}
	if _, err := f.svc.UpdateItem(ctx, setlist.ID, first.ID, func(i *catalog.SetlistItem) error {
		i.KeyOverride = strPtr("A")
		return nil
	}); err != nil {
		t.Fatalf("UpdateItem error: %v", err)
	}
	if _, err := f.store.UpdateSong(grace.ID, func(s *catalog.Song) error {
		s.Tempo = intPtr(76)
		return nil
	}); err != nil {
		t.Fatalf("UpdateSong error: %v", err)
	}
	if _, err := f.svc.MoveItem(ctx, setlist.ID, 1, 0); err != nil {
		t.Fatalf("MoveItem error: %v", err)
	}
	if _, err := f.svc.AddItemSection(ctx, setlist.ID, second.ID, catalog.NewItemSection(catalog.SectionBridge, "")); err != nil {
		t.Fatalf("AddItemSection error: %v", err)
	}

	sheet, err := f.svc.RunSheet(ctx, setlist.ID)
	if err != nil {
		t.Fatalf("RunSheet error: %v", err)
	}
	if len(sheet.Entries) != 2 {
		t.Fatalf("expected 2 entries, got %d", len(sheet.Entries))
	}
	top, bottom := sheet.Entries[0], sheet.Entries[1]
	if top.Number != 1 || top.Title != "Holy" || *top.Key != "D" || top.KeyOverridden {
		t.Fatalf("unexpected first entry %+v", top)
	}
	if got := fmt.Sprint(top.Sections); got != "[V1 C1 B1]" {
		t.Fatalf("unexpected item sections %s", got)
	}
	if bottom.Title != "Amazing Grace" || *bottom.Key != "A" || !bottom.KeyOverridden {
		t.Fatalf("expected key override on second entry, got %+v", bottom)
	}
	if *bottom.Tempo != 76 || bottom.TempoOverridden {
		t.Fatalf("expected live song tempo, got %v", *bottom.Tempo)
	}
	if got := fmt.Sprint(bottom.Sections); got != "[V1 C1]" {
		t.Fatalf("expected song sections as fallback, got %s", got)
	}
}

func TestUpdateItemRejectsInvalidOverride(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()
	song := f.mustSong(t, "Slow", "E", 60)
	setlist := f.mustSetlist(t, "Vigil")
	item, _ := f.svc.Attach(ctx, setlist.ID, song.ID, false)
	saves := f.backend.Saves()

	_, err := f.svc.UpdateItem(ctx, setlist.ID, item.ID, func(i *catalog.SetlistItem) error {
		i.TempoOverride = intPtr(0)
		return nil
	})
	if !errors.Is(err, catalog.ErrInvalidTempo) {
		t.Fatalf("expected ErrInvalidTempo, got %v", err)
	}
	resolved, _ := f.svc.ResolveItem(ctx, setlist.ID, item.ID)
	if resolved.Item.TempoOverride != nil || f.backend.Saves() != saves {
		t.Fatalf("rejected update must leave no trace")
	}
}

func TestItemImagesAndRelease(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()
	song := f.mustSong(t, "Chart", "C", 100)
	setlist := f.mustSetlist(t, "Rehearsal")
	first, _ := f.svc.Attach(ctx, setlist.ID, song.ID, false)
	other := f.mustSong(t, "Other", "F", 90)
	second, _ := f.svc.Attach(ctx, setlist.ID, other.ID, false)

	if _, err := f.svc.AddItemImage(ctx, setlist.ID, first.ID, "stand", testImage()); err != nil {
		t.Fatalf("AddItemImage error: %v", err)
	}
	if _, err := f.svc.AddItemImage(ctx, setlist.ID, second.ID, "stand", testImage()); err != nil {
		t.Fatalf("AddItemImage error: %v", err)
	}
	if f.blobCount(t) != 2 {
		t.Fatalf("expected 2 blobs")
	}

	if _, err := f.svc.RemoveItemImage(ctx, setlist.ID, first.ID, 5); !errors.Is(err, store.ErrNotFound) {
		t.Fatalf("expected ErrNotFound, got %v", err)
	}
	if err := f.svc.RemoveItem(ctx, setlist.ID, first.ID); err != nil {
		t.Fatalf("RemoveItem error: %v", err)
	}
	if f.blobCount(t) != 1 {
		t.Fatalf("removing an item releases its images")
	}
	if err := f.svc.Delete(ctx, setlist.ID); err != nil {
		t.Fatalf("Delete error: %v", err)
	}
	if f.blobCount(t) != 0 {
		t.Fatalf("deleting a setlist releases item images")
	}
	if _, err := f.store.GetSong(song.ID); err != nil {
		t.Fatalf("songs survive setlist deletion: %v", err)
	}
}

func TestImportItemImagesStopsAtLimit(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()
	song := f.mustSong(t, "Long", "B", 120)
	setlist := f.mustSetlist(t, "Festival")
	item, _ := f.svc.Attach(ctx, setlist.ID, song.ID, false)

	report, err := f.svc.ImportItemImages(ctx, setlist.ID, item.ID, pngSources(t, catalog.MaxImages+2))
	if err != nil {
		t.Fatalf("ImportItemImages error: %v", err)
	}
	if !report.LimitReached || len(report.Added) != catalog.MaxImages {
		t.Fatalf("expected %d added and limit reached, got %+v", catalog.MaxImages, report)
	}
	resolved, _ := f.svc.ResolveItem(ctx, setlist.ID, item.ID)
	if len(resolved.Item.Images) != catalog.MaxImages {
		t.Fatalf("expected %d images, got %d", catalog.MaxImages, len(resolved.Item.Images))
	}
	if f.blobCount(t) != catalog.MaxImages {
		t.Fatalf("rejected images must not leave blobs, got %d", f.blobCount(t))
	}
}

func TestSaveFailureStillReturnsAttachedItem(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()
	song := f.mustSong(t, "Offline", "A", 70)
	setlist := f.mustSetlist(t, "Unplugged")
	f.backend.FailSaves(errors.New("read-only"))

	item, err := f.svc.Attach(ctx, setlist.ID, song.ID, true)
	var perr *persistence.PersistError
	if !errors.As(err, &perr) || perr.Op != "attach song" {
		t.Fatalf("expected attach persist warning, got %v", err)
	}
	if item.ID == "" || len(item.Sections) != 2 {
		t.Fatalf("expected the committed item, got %+v", item)
	}
}

func TestMoveItemSection(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()
	song := f.mustSong(t, "Arranged", "G", 90)
	setlist := f.mustSetlist(t, "Arr")
	item, _ := f.svc.Attach(ctx, setlist.ID, song.ID, true)

	sections, err := f.svc.MoveItemSection(ctx, setlist.ID, item.ID, 0, 5)
	if err != nil {
		t.Fatalf("MoveItemSection error: %v", err)
	}
	if sections[0].DisplayName() != "C1" || sections[1].DisplayName() != "V1" {
		t.Fatalf("unexpected order %s %s", sections[0].DisplayName(), sections[1].DisplayName())
	}
	renamed, err := f.svc.UpdateItemSection(ctx, setlist.ID, item.ID, sections[1].ID, func(s *catalog.SetlistItemSection) error {
		s.Label = strPtr("3")
		return nil
	})
	if err != nil || renamed.DisplayName() != "V3" {
		t.Fatalf("UpdateItemSection = %v, %v", renamed.DisplayName(), err)
	}
	cloned, err := f.svc.CloneSections(ctx, setlist.ID, item.ID)
	if err != nil || len(cloned) != 2 || cloned[0].DisplayName() != "V1" {
		t.Fatalf("CloneSections should restore the song arrangement, got %v", err)
	}
}
