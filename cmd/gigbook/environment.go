package main

import (
	"context"
	"fmt"

	"gigbook/internal/app"
	"gigbook/internal/app/setlists"
	"gigbook/internal/app/songs"
	"gigbook/internal/blob"
	"gigbook/internal/config"
	"gigbook/internal/imagecodec"
	"gigbook/internal/imports"
	"gigbook/internal/logging"
	"gigbook/internal/metrics"
	"gigbook/internal/persistence"
	"gigbook/internal/store"
)

// environment is the wired application: a hydrated store, its backend and the
// services on top.
type environment struct {
	backend  persistence.Backend
	blobs    blob.Store
	store    *store.Store
	songs    songs.Service
	setlists setlists.Service
}

func openEnvironment(ctx context.Context, cfg *config.Config, logger *logging.Logger, recorder metrics.Recorder) (*environment, error) {
	backend, err := openBackend(ctx, cfg.Storage)
	if err != nil {
		return nil, fmt.Errorf("open %s backend: %w", cfg.Storage.Backend, err)
	}
	blobs, err := openBlobStore(ctx, cfg.Blob)
	if err != nil {
		_ = backend.Close()
		return nil, fmt.Errorf("open %s blob store: %w", cfg.Blob.Driver, err)
	}

	dataStore := store.New()
	if err := persistence.Hydrate(ctx, backend, dataStore); err != nil {
		_ = backend.Close()
		return nil, err
	}

	codec := imagecodec.New(cfg.Images.Quality, cfg.Images.MaxDimension)
	rt := app.Runtime{
		Syncer:  persistence.NewSyncer(backend, dataStore),
		Blobs:   blobs,
		Codec:   codec,
		Loader:  imports.NewLoader(blobs, codec, cfg.Images.Concurrency, logger),
		Metrics: recorder,
		Logger:  logger,
	}

	logger.Zerolog().Debug().
		Str("backend", cfg.Storage.Backend).
		Str("blob_driver", string(blobs.Driver())).
		Int("songs", len(dataStore.ListSongs())).
		Msg("environment ready")

	return &environment{
		backend:  backend,
		blobs:    blobs,
		store:    dataStore,
		songs:    songs.New(dataStore, rt),
		setlists: setlists.New(dataStore, rt),
	}, nil
}

func (e *environment) Close() error {
	if e == nil {
		return nil
	}
	return e.backend.Close()
}
