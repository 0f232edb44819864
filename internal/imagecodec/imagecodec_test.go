package imagecodec

import (
	"bytes"
	"errors"
	"image"
	"image/color"
	"image/png"
	"testing"

	"gigbook/internal/catalog"
)

func solid(w, h int) image.Image {
	img := image.NewRGBA(image.Rect(0, 0, w, h))
	for y := 0; y < h; y++ {
		for x := 0; x < w; x++ {
			img.Set(x, y, color.RGBA{R: 200, G: 40, B: 40, A: 255})
		}
	}
	return img
}

func TestEncodeDecodeRoundTrip(t *testing.T) {
	codec := New(0, 0)
	data, err := codec.Encode(solid(40, 20))
	if err != nil {
		t.Fatalf("Encode error: %v", err)
	}
	if len(data) < 2 || data[0] != 0xFF || data[1] != 0xD8 {
		t.Fatalf("expected JPEG magic bytes")
	}
	img, err := codec.Decode(data)
	if err != nil {
		t.Fatalf("Decode error: %v", err)
	}
	if img.Bounds().Dx() != 40 || img.Bounds().Dy() != 20 {
		t.Fatalf("unexpected bounds %v", img.Bounds())
	}
}

func TestEncodeDownscales(t *testing.T) {
	codec := New(70, 100)
	data, err := codec.Encode(solid(400, 200))
	if err != nil {
		t.Fatalf("Encode error: %v", err)
	}
	img, err := codec.Decode(data)
	if err != nil {
		t.Fatalf("Decode error: %v", err)
	}
	if img.Bounds().Dx() != 100 || img.Bounds().Dy() != 50 {
		t.Fatalf("expected 100x50, got %v", img.Bounds())
	}
}

func TestEncodeEmptyImageFails(t *testing.T) {
	_, err := New(0, 0).Encode(image.NewRGBA(image.Rect(0, 0, 0, 0)))
	if !errors.Is(err, catalog.ErrImageCompressionFailed) {
		t.Fatalf("expected ErrImageCompressionFailed, got %v", err)
	}
	if !catalog.IsValidation(err) {
		t.Fatalf("expected a validation error")
	}
}

func TestFit(t *testing.T) {
	tests := []struct {
		name         string
		w, h, limit  int
		wantW, wantH int
	}{
		{name: "small untouched", w: 10, h: 10, limit: 50, wantW: 10, wantH: 10},
		{name: "landscape", w: 300, h: 100, limit: 150, wantW: 150, wantH: 50},
		{name: "portrait", w: 100, h: 400, limit: 200, wantW: 50, wantH: 200},
		{name: "disabled", w: 500, h: 500, limit: 0, wantW: 500, wantH: 500},
		{name: "sliver keeps a pixel", w: 1000, h: 1, limit: 10, wantW: 10, wantH: 1},
	}
	for _, tc := range tests {
		tc := tc
		t.Run(tc.name, func(t *testing.T) {
			b := Fit(solid(tc.w, tc.h), tc.limit).Bounds()
			if b.Dx() != tc.wantW || b.Dy() != tc.wantH {
				t.Fatalf("expected %dx%d, got %dx%d", tc.wantW, tc.wantH, b.Dx(), b.Dy())
			}
		})
	}
}

func TestReadAcceptsPNG(t *testing.T) {
	var buf bytes.Buffer
	if err := png.Encode(&buf, solid(8, 8)); err != nil {
		t.Fatalf("png.Encode error: %v", err)
	}
	img, err := Read(&buf)
	if err != nil {
		t.Fatalf("Read error: %v", err)
	}
	if img.Bounds().Dx() != 8 {
		t.Fatalf("unexpected bounds %v", img.Bounds())
	}
	if _, err := Read(bytes.NewReader([]byte("not an image"))); !errors.Is(err, catalog.ErrImageCompressionFailed) {
		t.Fatalf("expected ErrImageCompressionFailed, got %v", err)
	}
}
