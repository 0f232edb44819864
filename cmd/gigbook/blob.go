package main

import (
	"context"
	"fmt"

	"gigbook/internal/blob"
	"gigbook/internal/blob/fs"
	"gigbook/internal/blob/memory"
	"gigbook/internal/blob/s3"
	"gigbook/internal/config"
)

// openBlobStore builds the image blob store selected by the config.
func openBlobStore(ctx context.Context, cfg config.BlobConfig) (blob.Store, error) {
	driver, ok := blob.ParseDriver(cfg.Driver)
	if !ok {
		return nil, fmt.Errorf("unknown blob driver %q", cfg.Driver)
	}
	switch driver {
	case blob.DriverMemory:
		return memory.New(), nil
	case blob.DriverS3:
		store, err := s3.New(ctx, s3.Config{
			Bucket:    cfg.S3.Bucket,
			Region:    cfg.S3.Region,
			Endpoint:  cfg.S3.Endpoint,
			PathStyle: cfg.S3.PathStyle,
		})
		if err != nil {
			return nil, err
		}
		return store, nil
	default:
		store, err := fs.New(cfg.FSRoot)
		if err != nil {
			return nil, err
		}
		return store, nil
	}
}
