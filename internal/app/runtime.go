package app

import (
	"context"
	"errors"
	"fmt"
	"image"
	"io"
	"time"

	"github.com/rs/zerolog"

	"gigbook/internal/blob"
	"gigbook/internal/catalog"
	"gigbook/internal/imagecodec"
	"gigbook/internal/imports"
	"gigbook/internal/logging"
	"gigbook/internal/metrics"
	"gigbook/internal/persistence"
	"gigbook/internal/store"
)

// Syncer saves the store after a committed mutation.
type Syncer interface {
	Sync(ctx context.Context, op string) error
}

// Runtime carries the collaborators shared by the application services.
type Runtime struct {
	Syncer  Syncer
	Blobs   blob.Store
	Codec   imagecodec.Codec
	Loader  *imports.Loader
	Metrics metrics.Recorder
	Logger  *logging.Logger
}

// WithDefaults fills unset collaborators. Blob-backed operations still need
// Blobs; without it they report ErrNoBlobStore.
func (r Runtime) WithDefaults() Runtime {
	if r.Metrics == nil {
		r.Metrics = metrics.Nop{}
	}
	if r.Logger == nil {
		r.Logger = logging.Nop()
	}
	if r.Codec == nil {
		r.Codec = imagecodec.New(imagecodec.DefaultQuality, imagecodec.DefaultMaxDimension)
	}
	if r.Loader == nil && r.Blobs != nil {
		r.Loader = imports.NewLoader(r.Blobs, r.Codec, imports.DefaultConcurrency, r.Logger)
	}
	return r
}

// ErrNoBlobStore is returned by image operations when no blob store is wired.
var ErrNoBlobStore = errors.New("no blob store configured")

// Track starts timing op. Call the returned func with the operation's final
// error, usually from a defer.
func (r Runtime) Track(ctx context.Context, op string) func(*error) {
	start := time.Now()
	return func(errp *error) {
		var err error
		if errp != nil {
			err = *errp
		}
		elapsed := time.Since(start)
		r.Metrics.Observe(ctx, op, err == nil || persistence.IsWarning(err), elapsed)
		r.Logger.Operation(op, elapsed, LevelFor(err), err)
	}
}

// LevelFor picks the log level for an operation error.
func LevelFor(err error) zerolog.Level {
	switch {
	case err == nil:
		return zerolog.DebugLevel
	case persistence.IsWarning(err):
		return zerolog.WarnLevel
	case errors.Is(err, store.ErrNotFound), errors.Is(err, store.ErrDuplicateIdentifier):
		return zerolog.ErrorLevel
	case errors.Is(err, context.Canceled), errors.Is(err, context.DeadlineExceeded):
		return zerolog.DebugLevel
	default:
		return zerolog.WarnLevel
	}
}

// Persist saves after a committed mutation. The mutation stands even if the
// caller's context is already done, so the save runs without its cancellation.
func (r Runtime) Persist(ctx context.Context, op string) error {
	if r.Syncer == nil {
		return nil
	}
	return r.Syncer.Sync(context.WithoutCancel(ctx), op)
}

// StoreImage encodes img and writes it under prefix.
func (r Runtime) StoreImage(ctx context.Context, prefix, source string, img image.Image) (catalog.ImageRef, error) {
	if r.Loader == nil {
		return catalog.ImageRef{}, ErrNoBlobStore
	}
	return r.Loader.Store(ctx, prefix, source, img)
}

// Import runs a concurrent image import through the loader.
func (r Runtime) Import(ctx context.Context, prefix string, sources []imports.Source, commit imports.CommitFunc) (imports.Report, error) {
	if r.Loader == nil {
		return imports.Report{}, ErrNoBlobStore
	}
	return r.Loader.Load(ctx, prefix, sources, commit)
}

// LoadImage fetches and decodes a stored image.
func (r Runtime) LoadImage(ctx context.Context, ref catalog.ImageRef) (image.Image, error) {
	if r.Blobs == nil {
		return nil, ErrNoBlobStore
	}
	_, rc, err := r.Blobs.Get(ctx, ref.Key)
	if err != nil {
		return nil, fmt.Errorf("get image %s: %w", ref.Key, err)
	}
	defer rc.Close()

	data, err := io.ReadAll(rc)
	if err != nil {
		return nil, fmt.Errorf("read image %s: %w", ref.Key, err)
	}
	return r.Codec.Decode(data)
}

// ReleaseImages deletes blobs whose owning records are gone. Failures are
// logged; the records are already removed.
func (r Runtime) ReleaseImages(ctx context.Context, refs ...catalog.ImageRef) {
	if r.Blobs == nil {
		return
	}
	ctx = context.WithoutCancel(ctx)
	for _, ref := range refs {
		if _, err := r.Blobs.Delete(ctx, ref.Key); err != nil {
			r.Logger.Zerolog().Warn().Err(err).Str("key", ref.Key).Msg("release image blob")
		}
	}
}
