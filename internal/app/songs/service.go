package songs

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

// Store captures the entity store operations song workflows need.
type Store interface {
	CreateSong(song catalog.Song) (catalog.Song, error)
	GetSong(id string) (catalog.Song, error)
	ListSongs() []catalog.Song
	RecentSongs(limit int) []catalog.Song
	UpdateSong(id string, mutator func(*catalog.Song) error) (catalog.Song, error)
	DeleteSong(id string) ([]catalog.ImageRef, error)
	AddSection(songID string, section catalog.Section) (catalog.Section, error)
	UpdateSection(songID, sectionID string, mutator func(*catalog.Section) error) (catalog.Section, error)
	DeleteSection(songID, sectionID string) error
	MoveSection(songID string, from, to int) ([]catalog.Section, error)
	AddSongImage(songID string, ref catalog.ImageRef) (catalog.Song, error)
	RemoveSongImage(songID string, index int) (catalog.ImageRef, error)
}

// Service coordinates song operations. Mutations that commit but fail to save
// return the committed value together with a *persistence.PersistError.
type Service interface {
	List(ctx context.Context) ([]catalog.Song, error)
	Recent(ctx context.Context, limit int) ([]catalog.Song, error)
	Get(ctx context.Context, id string) (catalog.Song, error)
	Create(ctx context.Context, song catalog.Song) (catalog.Song, error)
	Update(ctx context.Context, id string, mutator func(*catalog.Song) error) (catalog.Song, error)
	Delete(ctx context.Context, id string) error

	AddSection(ctx context.Context, songID string, section catalog.Section) (catalog.Section, error)
	UpdateSection(ctx context.Context, songID, sectionID string, mutator func(*catalog.Section) error) (catalog.Section, error)
	DeleteSection(ctx context.Context, songID, sectionID string) error
	MoveSection(ctx context.Context, songID string, from, to int) ([]catalog.Section, error)

	AddImage(ctx context.Context, songID, source string, img image.Image) (catalog.Song, error)
	RemoveImage(ctx context.Context, songID string, index int) (catalog.ImageRef, error)
	ImportImages(ctx context.Context, songID string, sources []imports.Source) (imports.Report, error)
	Image(ctx context.Context, songID string, index int) (image.Image, error)
}

type service struct {
	store Store
	rt    app.Runtime
}

// New constructs a song Service backed by the provided Store.
func New(store Store, rt app.Runtime) Service {
	return &service{store: store, rt: rt.WithDefaults()}
}

func imagePrefix(songID string) string { return "songs/" + songID }

func (s *service) List(ctx context.Context) ([]catalog.Song, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	return s.store.ListSongs(), nil
}

func (s *service) Recent(ctx context.Context, limit int) ([]catalog.Song, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	return s.store.RecentSongs(limit), nil
}

func (s *service) Get(ctx context.Context, id string) (catalog.Song, error) {
	if err := ctx.Err(); err != nil {
		return catalog.Song{}, err
	}
	return s.store.GetSong(id)
}

func (s *service) Create(ctx context.Context, song catalog.Song) (created catalog.Song, err error) {
	defer s.rt.Track(ctx, "songs.create")(&err)
	if err := ctx.Err(); err != nil {
		return catalog.Song{}, err
	}
	created, err = s.store.CreateSong(song)
	if err != nil {
		return catalog.Song{}, err
	}
	return created, s.rt.Persist(ctx, "create song")
}

func (s *service) Update(ctx context.Context, id string, mutator func(*catalog.Song) error) (updated catalog.Song, err error) {
	defer s.rt.Track(ctx, "songs.update")(&err)
	if err := ctx.Err(); err != nil {
		return catalog.Song{}, err
	}
	updated, err = s.store.UpdateSong(id, mutator)
	if err != nil {
		return catalog.Song{}, err
	}
	return updated, s.rt.Persist(ctx, "update song")
}

func (s *service) Delete(ctx context.Context, id string) (err error) {
	defer s.rt.Track(ctx, "songs.delete")(&err)
	if err := ctx.Err(); err != nil {
		return err
	}
	images, err := s.store.DeleteSong(id)
	if err != nil {
		return err
	}
	err = s.rt.Persist(ctx, "delete song")
	s.rt.ReleaseImages(ctx, images...)
	return err
}

func (s *service) AddSection(ctx context.Context, songID string, section catalog.Section) (added catalog.Section, err error) {
	defer s.rt.Track(ctx, "songs.add_section")(&err)
	if err := ctx.Err(); err != nil {
		return catalog.Section{}, err
	}
	added, err = s.store.AddSection(songID, section)
	if err != nil {
		return catalog.Section{}, err
	}
	return added, s.rt.Persist(ctx, "add section")
}

func (s *service) UpdateSection(ctx context.Context, songID, sectionID string, mutator func(*catalog.Section) error) (updated catalog.Section, err error) {
	defer s.rt.Track(ctx, "songs.update_section")(&err)
	if err := ctx.Err(); err != nil {
		return catalog.Section{}, err
	}
	updated, err = s.store.UpdateSection(songID, sectionID, mutator)
	if err != nil {
		return catalog.Section{}, err
	}
	return updated, s.rt.Persist(ctx, "update section")
}

func (s *service) DeleteSection(ctx context.Context, songID, sectionID string) (err error) {
	defer s.rt.Track(ctx, "songs.delete_section")(&err)
	if err := ctx.Err(); err != nil {
		return err
	}
	if err := s.store.DeleteSection(songID, sectionID); err != nil {
		return err
	}
	return s.rt.Persist(ctx, "delete section")
}

func (s *service) MoveSection(ctx context.Context, songID string, from, to int) (sections []catalog.Section, err error) {
	defer s.rt.Track(ctx, "songs.move_section")(&err)
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	sections, err = s.store.MoveSection(songID, from, to)
	if err != nil {
		return nil, err
	}
	return sections, s.rt.Persist(ctx, "move section")
}

// AddImage encodes and stores img, then appends it to the song. A song that
// already holds catalog.MaxImages images is rejected before anything is stored.
func (s *service) AddImage(ctx context.Context, songID, source string, img image.Image) (updated catalog.Song, err error) {
	defer s.rt.Track(ctx, "songs.add_image")(&err)
	if err := ctx.Err(); err != nil {
		return catalog.Song{}, err
	}
	song, err := s.store.GetSong(songID)
	if err != nil {
		return catalog.Song{}, err
	}
	if err := catalog.CheckImageCapacity("song", len(song.Images), 1); err != nil {
		return catalog.Song{}, err
	}
	ref, err := s.rt.StoreImage(ctx, imagePrefix(songID), source, img)
	if err != nil {
		return catalog.Song{}, err
	}
	updated, err = s.store.AddSongImage(songID, ref)
	if err != nil {
		s.rt.ReleaseImages(ctx, ref)
		return catalog.Song{}, err
	}
	return updated, s.rt.Persist(ctx, "add song image")
}

func (s *service) RemoveImage(ctx context.Context, songID string, index int) (removed catalog.ImageRef, err error) {
	defer s.rt.Track(ctx, "songs.remove_image")(&err)
	if err := ctx.Err(); err != nil {
		return catalog.ImageRef{}, err
	}
	removed, err = s.store.RemoveSongImage(songID, index)
	if err != nil {
		return catalog.ImageRef{}, err
	}
	err = s.rt.Persist(ctx, "remove song image")
	s.rt.ReleaseImages(ctx, removed)
	return removed, err
}

// ImportImages loads several picked images concurrently and appends them in
// completion order. The batch stops at the image limit; cancellation keeps the
// images already appended.
func (s *service) ImportImages(ctx context.Context, songID string, sources []imports.Source) (report imports.Report, err error) {
	defer s.rt.Track(ctx, "songs.import_images")(&err)
	if err := ctx.Err(); err != nil {
		return imports.Report{}, err
	}
	if _, err := s.store.GetSong(songID); err != nil {
		return imports.Report{}, err
	}
	report, err = s.rt.Import(ctx, imagePrefix(songID), sources, func(_ context.Context, ref catalog.ImageRef) error {
		_, err := s.store.AddSongImage(songID, ref)
		return err
	})
	if len(report.Added) > 0 {
		if perr := s.rt.Persist(ctx, "import song images"); perr != nil {
			err = errors.Join(err, perr)
		}
	}
	return report, err
}

func (s *service) Image(ctx context.Context, songID string, index int) (image.Image, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	song, err := s.store.GetSong(songID)
	if err != nil {
		return nil, err
	}
	if index < 0 || index >= len(song.Images) {
		return nil, store.NotFoundError{Entity: store.EntityImage, ID: fmt.Sprintf("%s[%d]", songID, index)}
	}
	return s.rt.LoadImage(ctx, song.Images[index])
}
