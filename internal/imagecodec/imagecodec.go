// Package imagecodec turns picked images into the compressed JPEG bytes that
// are stored as blobs.
package imagecodec

import (
	"bytes"
	"fmt"
	"image"
	_ "image/gif" // register decoders for picked images
	"image/jpeg"
	_ "image/png"
	"io"

	"golang.org/x/image/draw"

	"gigbook/internal/catalog"
)

const (
	// ContentType of every encoded image.
	ContentType = "image/jpeg"
	// Extension used for blob keys.
	Extension = "jpg"

	DefaultQuality      = 80
	DefaultMaxDimension = 2048
)

// Codec encodes images for storage and decodes stored bytes.
type Codec interface {
	Encode(img image.Image) ([]byte, error)
	Decode(data []byte) (image.Image, error)
}

// JPEG encodes at a fixed quality, downscaling images whose longer side
// exceeds MaxDimension. A zero MaxDimension disables scaling.
type JPEG struct {
	Quality      int
	MaxDimension int
}

// New returns a JPEG codec. A quality outside 1..100 selects DefaultQuality;
// a negative maxDimension selects DefaultMaxDimension and zero disables scaling.
func New(quality, maxDimension int) *JPEG {
	if quality <= 0 || quality > 100 {
		quality = DefaultQuality
	}
	if maxDimension < 0 {
		maxDimension = DefaultMaxDimension
	}
	return &JPEG{Quality: quality, MaxDimension: maxDimension}
}

// Encode compresses img. Failures wrap catalog.ErrImageCompressionFailed.
func (c *JPEG) Encode(img image.Image) ([]byte, error) {
	if img == nil || img.Bounds().Empty() {
		return nil, compressionFailed("empty image")
	}
	img = Fit(img, c.MaxDimension)
	var buf bytes.Buffer
	if err := jpeg.Encode(&buf, img, &jpeg.Options{Quality: c.Quality}); err != nil {
		return nil, compressionFailed("encode jpeg: %v", err)
	}
	return buf.Bytes(), nil
}

func (c *JPEG) Decode(data []byte) (image.Image, error) {
	img, _, err := image.Decode(bytes.NewReader(data))
	if err != nil {
		return nil, fmt.Errorf("decode image: %w", err)
	}
	return img, nil
}

// Read decodes any registered format (JPEG, PNG, GIF) from r.
func Read(r io.Reader) (image.Image, error) {
	img, _, err := image.Decode(r)
	if err != nil {
		return nil, compressionFailed("decode picked image: %v", err)
	}
	return img, nil
}

// Fit scales img down so its longer side is at most maxDim, keeping the
// aspect ratio. Smaller images are returned unchanged.
func Fit(img image.Image, maxDim int) image.Image {
	b := img.Bounds()
	w, h := b.Dx(), b.Dy()
	if maxDim <= 0 || (w <= maxDim && h <= maxDim) {
		return img
	}
	nw, nh := maxDim, maxDim
	if w >= h {
		nh = max(1, h*maxDim/w)
	} else {
		nw = max(1, w*maxDim/h)
	}
	dst := image.NewRGBA(image.Rect(0, 0, nw, nh))
	draw.CatmullRom.Scale(dst, dst.Bounds(), img, b, draw.Over, nil)
	return dst
}

func compressionFailed(format string, args ...any) error {
	return &catalog.ValidationError{Entity: "image", Err: catalog.ErrImageCompressionFailed, Detail: fmt.Sprintf(format, args...)}
}
