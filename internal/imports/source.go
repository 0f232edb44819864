package imports

import (
	"bytes"
	"context"
	"io"
	"os"
	"path/filepath"
)

// Source is one picked image.
type Source interface {
	Name() string
	Open(ctx context.Context) (io.ReadCloser, error)
}

// FileSource reads an image from the local filesystem.
type FileSource struct {
	Path string
}

func (f FileSource) Name() string { return filepath.Base(f.Path) }

func (f FileSource) Open(ctx context.Context) (io.ReadCloser, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	return os.Open(f.Path)
}

// Files wraps paths as sources.
func Files(paths ...string) []Source {
	out := make([]Source, len(paths))
	for i, p := range paths {
		out[i] = FileSource{Path: p}
	}
	return out
}

// BytesSource serves an in-memory image.
type BytesSource struct {
	Label string
	Data  []byte
}

func (b BytesSource) Name() string { return b.Label }

func (b BytesSource) Open(ctx context.Context) (io.ReadCloser, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	return io.NopCloser(bytes.NewReader(b.Data)), nil
}
