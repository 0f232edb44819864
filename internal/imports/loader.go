// Package imports loads picked images into the blob store concurrently and
// hands each finished image to a single committer, so the entity store only
// ever sees one append at a time.
package imports

import (
	"bytes"
	"context"
	"errors"
	"fmt"
	"image"

	"golang.org/x/sync/errgroup"

	"gigbook/internal/blob"
	"gigbook/internal/catalog"
	"gigbook/internal/imagecodec"
	"gigbook/internal/logging"
)

// DefaultConcurrency bounds parallel fetch/encode work when unset.
const DefaultConcurrency = 4

// CommitFunc appends a stored image to its owner. It is only ever called from
// one goroutine at a time.
type CommitFunc func(ctx context.Context, ref catalog.ImageRef) error

// Failure records one image that could not be imported.
type Failure struct {
	Source string
	Err    error
}

// Report summarizes a batch. Added is in commit (completion) order.
type Report struct {
	Added        []catalog.ImageRef
	Failed       []Failure
	Skipped      []string
	LimitReached bool
}

// Err joins the per-image failures, or returns nil.
func (r Report) Err() error {
	errs := make([]error, 0, len(r.Failed))
	for _, f := range r.Failed {
		errs = append(errs, fmt.Errorf("%s: %w", f.Source, f.Err))
	}
	return errors.Join(errs...)
}

// Loader fetches, encodes and stores images.
type Loader struct {
	blobs       blob.Store
	codec       imagecodec.Codec
	concurrency int
	logger      *logging.Logger
}

// NewLoader returns a Loader. A concurrency below 1 selects DefaultConcurrency.
func NewLoader(blobs blob.Store, codec imagecodec.Codec, concurrency int, logger *logging.Logger) *Loader {
	if concurrency < 1 {
		concurrency = DefaultConcurrency
	}
	if logger == nil {
		logger = logging.Nop()
	}
	return &Loader{blobs: blobs, codec: codec, concurrency: concurrency, logger: logger}
}

type result struct {
	source  string
	ref     catalog.ImageRef
	err     error
	skipped bool
}

// Load imports sources under the blob key prefix. Images are committed in the
// order they finish. A commit failing with catalog.ErrImageLimitExceeded stops
// the batch; other failures are recorded and the batch continues. Cancelling
// ctx stops fetching and committing, keeps what was already committed and
// returns the context error with the partial report.
func (l *Loader) Load(ctx context.Context, prefix string, sources []Source, commit CommitFunc) (Report, error) {
	parent := ctx
	ctx, cancel := context.WithCancel(ctx)
	defer cancel()

	results := make(chan result)
	done := make(chan Report)
	go func() {
		done <- l.commitAll(ctx, cancel, results, commit)
	}()

	g, gctx := errgroup.WithContext(ctx)
	g.SetLimit(l.concurrency)
	for _, src := range sources {
		src := src
		g.Go(func() error {
			if gctx.Err() != nil {
				results <- result{source: src.Name(), skipped: true}
				return nil
			}
			ref, err := l.fetch(gctx, prefix, src)
			results <- result{source: src.Name(), ref: ref, err: err}
			return nil
		})
	}
	_ = g.Wait()
	close(results)
	report := <-done

	if err := parent.Err(); err != nil {
		return report, err
	}
	return report, nil
}

// commitAll runs on a single goroutine and is the only caller of commit.
func (l *Loader) commitAll(ctx context.Context, cancel context.CancelFunc, results <-chan result, commit CommitFunc) Report {
	var report Report
	stopped := false
	for res := range results {
		switch {
		case res.skipped:
			report.Skipped = append(report.Skipped, res.source)
		case res.err != nil:
			if stopped || ctx.Err() != nil {
				report.Skipped = append(report.Skipped, res.source)
				continue
			}
			l.logger.Zerolog().Warn().Err(res.err).Str("source", res.source).Msg("image import failed")
			report.Failed = append(report.Failed, Failure{Source: res.source, Err: res.err})
		case stopped || ctx.Err() != nil:
			l.discard(ctx, res.ref)
			report.Skipped = append(report.Skipped, res.source)
		default:
			if err := commit(ctx, res.ref); err != nil {
				l.discard(ctx, res.ref)
				if errors.Is(err, catalog.ErrImageLimitExceeded) {
					stopped = true
					report.LimitReached = true
					report.Skipped = append(report.Skipped, res.source)
					cancel()
					continue
				}
				report.Failed = append(report.Failed, Failure{Source: res.source, Err: err})
				continue
			}
			l.logger.Zerolog().Debug().Str("source", res.source).Str("key", res.ref.Key).Msg("image imported")
			report.Added = append(report.Added, res.ref)
		}
	}
	return report
}

func (l *Loader) fetch(ctx context.Context, prefix string, src Source) (catalog.ImageRef, error) {
	rc, err := src.Open(ctx)
	if err != nil {
		return catalog.ImageRef{}, fmt.Errorf("open: %w", err)
	}
	defer rc.Close()

	img, err := imagecodec.Read(rc)
	if err != nil {
		return catalog.ImageRef{}, err
	}
	if err := ctx.Err(); err != nil {
		return catalog.ImageRef{}, err
	}
	return l.Store(ctx, prefix, src.Name(), img)
}

// Store encodes one already decoded image and writes it under prefix. The
// caller owns the returned blob until it is committed somewhere.
func (l *Loader) Store(ctx context.Context, prefix, source string, img image.Image) (catalog.ImageRef, error) {
	data, err := l.codec.Encode(img)
	if err != nil {
		return catalog.ImageRef{}, err
	}
	info, err := l.blobs.Put(ctx, blob.NewKey(prefix, imagecodec.Extension), bytes.NewReader(data), blob.PutOptions{
		ContentType: imagecodec.ContentType,
		Metadata:    map[string]string{"source": source},
	})
	if err != nil {
		return catalog.ImageRef{}, fmt.Errorf("store image: %w", err)
	}
	return catalog.ImageRef{Key: info.Key, ContentType: imagecodec.ContentType, Size: info.Size}, nil
}

// discard removes a stored blob that never made it into the entity store.
func (l *Loader) discard(ctx context.Context, ref catalog.ImageRef) {
	if _, err := l.blobs.Delete(context.WithoutCancel(ctx), ref.Key); err != nil {
		l.logger.Zerolog().Warn().Err(err).Str("key", ref.Key).Msg("discard image blob")
	}
}
