package setlists

import (
	"context"
	"errors"
	"fmt"
	"image"

	"gigbook/internal/app"
	"gigbook/internal/catalog"
	"gigbook/internal/imports"
	"gigbook/internal/store"
)

// ErrSongAlreadyAttached rejects attaching a song a setlist already holds.
var ErrSongAlreadyAttached = errors.New("song already attached to setlist")

// Store captures the entity store operations setlist workflows need.
type Store interface {
	CreateSetlist(setlist catalog.Setlist) (catalog.Setlist, error)
	GetSetlist(id string) (catalog.Setlist, error)
	ListSetlists() []catalog.Setlist
	UpdateSetlist(id string, mutator func(*catalog.Setlist) error) (catalog.Setlist, error)
	DeleteSetlist(id string) ([]catalog.ImageRef, error)

	ContainsSong(setlistID, songID string) (bool, error)
	AttachSong(setlistID, songID string) (catalog.SetlistItem, error)
	RemoveItem(setlistID, itemID string) ([]catalog.ImageRef, error)
	MoveItem(setlistID string, from, to int) ([]catalog.SetlistItem, error)
	UpdateItem(setlistID, itemID string, mutator func(*catalog.SetlistItem) error) (catalog.SetlistItem, error)
	CloneSectionsFromSong(setlistID, itemID string) ([]catalog.SetlistItemSection, error)

	AddItemSection(setlistID, itemID string, section catalog.SetlistItemSection) (catalog.SetlistItemSection, error)
	UpdateItemSection(setlistID, itemID, sectionID string, mutator func(*catalog.SetlistItemSection) error) (catalog.SetlistItemSection, error)
	DeleteItemSection(setlistID, itemID, sectionID string) error
	MoveItemSection(setlistID, itemID string, from, to int) ([]catalog.SetlistItemSection, error)

	AddItemImage(setlistID, itemID string, ref catalog.ImageRef) (catalog.SetlistItem, error)
	RemoveItemImage(setlistID, itemID string, index int) (catalog.ImageRef, error)

	ResolveItem(setlistID, itemID string) (store.ResolvedItem, error)
	ResolveSetlist(setlistID string) ([]store.ResolvedItem, error)
}

// Service coordinates setlist operations. Mutations that commit but fail to
// save return the committed value together with a *persistence.PersistError.
type Service interface {
	List(ctx context.Context) ([]catalog.Setlist, error)
	Get(ctx context.Context, id string) (catalog.Setlist, error)
	Create(ctx context.Context, setlist catalog.Setlist) (catalog.Setlist, error)
	Update(ctx context.Context, id string, mutator func(*catalog.Setlist) error) (catalog.Setlist, error)
	Delete(ctx context.Context, id string) error

	Attach(ctx context.Context, setlistID, songID string, cloneSections bool) (catalog.SetlistItem, error)
	RemoveItem(ctx context.Context, setlistID, itemID string) error
	MoveItem(ctx context.Context, setlistID string, from, to int) ([]catalog.SetlistItem, error)
	UpdateItem(ctx context.Context, setlistID, itemID string, mutator func(*catalog.SetlistItem) error) (catalog.SetlistItem, error)
	CloneSections(ctx context.Context, setlistID, itemID string) ([]catalog.SetlistItemSection, error)

	AddItemSection(ctx context.Context, setlistID, itemID string, section catalog.SetlistItemSection) (catalog.SetlistItemSection, error)
	UpdateItemSection(ctx context.Context, setlistID, itemID, sectionID string, mutator func(*catalog.SetlistItemSection) error) (catalog.SetlistItemSection, error)
	DeleteItemSection(ctx context.Context, setlistID, itemID, sectionID string) error
	MoveItemSection(ctx context.Context, setlistID, itemID string, from, to int) ([]catalog.SetlistItemSection, error)

	AddItemImage(ctx context.Context, setlistID, itemID, source string, img image.Image) (catalog.SetlistItem, error)
	RemoveItemImage(ctx context.Context, setlistID, itemID string, index int) (catalog.ImageRef, error)
	ImportItemImages(ctx context.Context, setlistID, itemID string, sources []imports.Source) (imports.Report, error)

	ResolveItem(ctx context.Context, setlistID, itemID string) (store.ResolvedItem, error)
	RunSheet(ctx context.Context, setlistID string) (RunSheet, error)
}

type service struct {
	store Store
	rt    app.Runtime
}

// New constructs a setlist Service backed by the provided Store.
func New(s Store, rt app.Runtime) Service {
	return &service{store: s, rt: rt.WithDefaults()}
}

func imagePrefix(setlistID, itemID string) string {
	return "setlists/" + setlistID + "/items/" + itemID
}

func (s *service) List(ctx context.Context) ([]catalog.Setlist, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	return s.store.ListSetlists(), nil
}

func (s *service) Get(ctx context.Context, id string) (catalog.Setlist, error) {
	if err := ctx.Err(); err != nil {
		return catalog.Setlist{}, err
	}
	return s.store.GetSetlist(id)
}

func (s *service) Create(ctx context.Context, setlist catalog.Setlist) (created catalog.Setlist, err error) {
	defer s.rt.Track(ctx, "setlists.create")(&err)
	if err := ctx.Err(); err != nil {
		return catalog.Setlist{}, err
	}
	created, err = s.store.CreateSetlist(setlist)
	if err != nil {
		return catalog.Setlist{}, err
	}
	return created, s.rt.Persist(ctx, "create setlist")
}

func (s *service) Update(ctx context.Context, id string, mutator func(*catalog.Setlist) error) (updated catalog.Setlist, err error) {
	defer s.rt.Track(ctx, "setlists.update")(&err)
	if err := ctx.Err(); err != nil {
		return catalog.Setlist{}, err
	}
	updated, err = s.store.UpdateSetlist(id, mutator)
	if err != nil {
		return catalog.Setlist{}, err
	}
	return updated, s.rt.Persist(ctx, "update setlist")
}

func (s *service) Delete(ctx context.Context, id string) (err error) {
	defer s.rt.Track(ctx, "setlists.delete")(&err)
	if err := ctx.Err(); err != nil {
		return err
	}
	images, err := s.store.DeleteSetlist(id)
	if err != nil {
		return err
	}
	err = s.rt.Persist(ctx, "delete setlist")
	s.rt.ReleaseImages(ctx, images...)
	return err
}

// Attach appends songID to the setlist. With cloneSections the new item gets
// its own copy of the song's current sections.
func (s *service) Attach(ctx context.Context, setlistID, songID string, cloneSections bool) (item catalog.SetlistItem, err error) {
	defer s.rt.Track(ctx, "setlists.attach")(&err)
	if err := ctx.Err(); err != nil {
		return catalog.SetlistItem{}, err
	}
	present, err := s.store.ContainsSong(setlistID, songID)
	if err != nil {
		return catalog.SetlistItem{}, err
	}
	if present {
		return catalog.SetlistItem{}, fmt.Errorf("attach song %s to setlist %s: %w", songID, setlistID, ErrSongAlreadyAttached)
	}
	item, err = s.store.AttachSong(setlistID, songID)
	if err != nil {
		return catalog.SetlistItem{}, err
	}
	if cloneSections {
		sections, err := s.store.CloneSectionsFromSong(setlistID, item.ID)
		if err != nil {
			return item, errors.Join(fmt.Errorf("clone sections: %w", err), s.rt.Persist(ctx, "attach song"))
		}
		item.Sections = sections
	}
	return item, s.rt.Persist(ctx, "attach song")
}

func (s *service) RemoveItem(ctx context.Context, setlistID, itemID string) (err error) {
	defer s.rt.Track(ctx, "setlists.remove_item")(&err)
	if err := ctx.Err(); err != nil {
		return err
	}
	images, err := s.store.RemoveItem(setlistID, itemID)
	if err != nil {
		return err
	}
	err = s.rt.Persist(ctx, "remove item")
	s.rt.ReleaseImages(ctx, images...)
	return err
}

func (s *service) MoveItem(ctx context.Context, setlistID string, from, to int) (items []catalog.SetlistItem, err error) {
	defer s.rt.Track(ctx, "setlists.move_item")(&err)
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	items, err = s.store.MoveItem(setlistID, from, to)
	if err != nil {
		return nil, err
	}
	return items, s.rt.Persist(ctx, "move item")
}

func (s *service) UpdateItem(ctx context.Context, setlistID, itemID string, mutator func(*catalog.SetlistItem) error) (updated catalog.SetlistItem, err error) {
	defer s.rt.Track(ctx, "setlists.update_item")(&err)
	if err := ctx.Err(); err != nil {
		return catalog.SetlistItem{}, err
	}
	updated, err = s.store.UpdateItem(setlistID, itemID, mutator)
	if err != nil {
		return catalog.SetlistItem{}, err
	}
	return updated, s.rt.Persist(ctx, "update item")
}

func (s *service) CloneSections(ctx context.Context, setlistID, itemID string) (sections []catalog.SetlistItemSection, err error) {
	defer s.rt.Track(ctx, "setlists.clone_sections")(&err)
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	sections, err = s.store.CloneSectionsFromSong(setlistID, itemID)
	if err != nil {
		return nil, err
	}
	return sections, s.rt.Persist(ctx, "clone sections")
}

func (s *service) AddItemSection(ctx context.Context, setlistID, itemID string, section catalog.SetlistItemSection) (added catalog.SetlistItemSection, err error) {
	defer s.rt.Track(ctx, "setlists.add_item_section")(&err)
	if err := ctx.Err(); err != nil {
		return catalog.SetlistItemSection{}, err
	}
	added, err = s.store.AddItemSection(setlistID, itemID, section)
	if err != nil {
		return catalog.SetlistItemSection{}, err
	}
	return added, s.rt.Persist(ctx, "add item section")
}

func (s *service) UpdateItemSection(ctx context.Context, setlistID, itemID, sectionID string, mutator func(*catalog.SetlistItemSection) error) (updated catalog.SetlistItemSection, err error) {
	defer s.rt.Track(ctx, "setlists.update_item_section")(&err)
	if err := ctx.Err(); err != nil {
		return catalog.SetlistItemSection{}, err
	}
	updated, err = s.store.UpdateItemSection(setlistID, itemID, sectionID, mutator)
	if err != nil {
		return catalog.SetlistItemSection{}, err
	}
	return updated, s.rt.Persist(ctx, "update item section")
}

func (s *service) DeleteItemSection(ctx context.Context, setlistID, itemID, sectionID string) (err error) {
	defer s.rt.Track(ctx, "setlists.delete_item_section")(&err)
	if err := ctx.Err(); err != nil {
		return err
	}
	if err := s.store.DeleteItemSection(setlistID, itemID, sectionID); err != nil {
		return err
	}
	return s.rt.Persist(ctx, "delete item section")
}

func (s *service) MoveItemSection(ctx context.Context, setlistID, itemID string, from, to int) (sections []catalog.SetlistItemSection, err error) {
	defer s.rt.Track(ctx, "setlists.move_item_section")(&err)
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	sections, err = s.store.MoveItemSection(setlistID, itemID, from, to)
	if err != nil {
		return nil, err
	}
	return sections, s.rt.Persist(ctx, "move item section")
}

func (s *service) AddItemImage(ctx context.Context, setlistID, itemID, source string, img image.Image) (updated catalog.SetlistItem, err error) {
	defer s.rt.Track(ctx, "setlists.add_item_image")(&err)
	if err := ctx.Err(); err != nil {
		return catalog.SetlistItem{}, err
	}
	resolved, err := s.store.ResolveItem(setlistID, itemID)
	if err != nil {
		return catalog.SetlistItem{}, err
	}
	if err := catalog.CheckImageCapacity("setlist item", len(resolved.Item.Images), 1); err != nil {
		return catalog.SetlistItem{}, err
	}
	ref, err := s.rt.StoreImage(ctx, imagePrefix(setlistID, itemID), source, img)
	if err != nil {
		return catalog.SetlistItem{}, err
	}
	updated, err = s.store.AddItemImage(setlistID, itemID, ref)
	if err != nil {
		s.rt.ReleaseImages(ctx, ref)
		return catalog.SetlistItem{}, err
	}
	return updated, s.rt.Persist(ctx, "add item image")
}

func (s *service) RemoveItemImage(ctx context.Context, setlistID, itemID string, index int) (removed catalog.ImageRef, err error) {
	defer s.rt.Track(ctx, "setlists.remove_item_image")(&err)
	if err := ctx.Err(); err != nil {
		return catalog.ImageRef{}, err
	}
	removed, err = s.store.RemoveItemImage(setlistID, itemID, index)
	if err != nil {
		return catalog.ImageRef{}, err
	}
	err = s.rt.Persist(ctx, "remove item image")
	s.rt.ReleaseImages(ctx, removed)
	return removed, err
}

func (s *service) ImportItemImages(ctx context.Context, setlistID, itemID string, sources []imports.Source) (report imports.Report, err error) {
	defer s.rt.Track(ctx, "setlists.import_item_images")(&err)
	if err := ctx.Err(); err != nil {
		return imports.Report{}, err
	}
	if _, err := s.store.ResolveItem(setlistID, itemID); err != nil {
		return imports.Report{}, err
	}
	report, err = s.rt.Import(ctx, imagePrefix(setlistID, itemID), sources, func(_ context.Context, ref catalog.ImageRef) error {
		_, err := s.store.AddItemImage(setlistID, itemID, ref)
		return err
	})
	if len(report.Added) > 0 {
		if perr := s.rt.Persist(ctx, "import item images"); perr != nil {
			err = errors.Join(err, perr)
		}
	}
	return report, err
}

func (s *service) ResolveItem(ctx context.Context, setlistID, itemID string) (store.ResolvedItem, error) {
	if err := ctx.Err(); err != nil {
		return store.ResolvedItem{}, err
	}
	return s.store.ResolveItem(setlistID, itemID)
}
