package commands

import (
	"bytes"
	"errors"
	"fmt"
	"image"
	"image/color"
	"image/draw"
	"image/png"

	// decoders for every raster format the service accepts
	_ "image/gif"
	_ "image/jpeg"

	_ "golang.org/x/image/webp"
)

var white = color.RGBA{255, 255, 255, 255}

// DefaultMaxPixels caps the declared size of decoded input at 0x3FFF x 0x3FFF pixels
const DefaultMaxPixels int64 = 0x3FFF * 0x3FFF

// ErrTooManyPixels is returned when an image header declares more pixels than allowed
var ErrTooManyPixels = errors.New("image exceeds pixel limit")

// CheckPixels reads only the image header and rejects input above maxPixels.
// A maxPixels of zero or less selects DefaultMaxPixels.
func CheckPixels(data []byte, maxPixels int64) (image.Config, string, error) {
	if maxPixels <= 0 {
		maxPixels = DefaultMaxPixels
	}
	cfg, format, err := image.DecodeConfig(bytes.NewReader(data))
	if err != nil {
		return image.Config{}, "", fmt.Errorf("failed to read image header: %w", err)
	}
	if err := checkDimensions(cfg.Width, cfg.Height, maxPixels); err != nil {
		return cfg, format, err
	}
	return cfg, format, nil
}

func checkDimensions(w, h int, maxPixels int64) error {
	if w <= 0 || h <= 0 {
		return fmt.Errorf("invalid image dimensions %dx%d", w, h)
	}
	if int64(w) > maxPixels/int64(h) {
		return fmt.Errorf("%w: %dx%d > %d", ErrTooManyPixels, w, h, maxPixels)
	}
	return nil
}

// decodeImage decodes any registered raster format after checking its declared size
func decodeImage(data []byte) (image.Image, string, error) {
	if _, _, err := CheckPixels(data, DefaultMaxPixels); err != nil {
		return nil, "", err
	}
	img, format, err := image.Decode(bytes.NewReader(data))
	if err != nil {
		return nil, "", fmt.Errorf("failed to decode image: %w", err)
	}
	return img, format, nil
}

func encodePNG(img image.Image) ([]byte, error) {
	var buf bytes.Buffer
	b := img.Bounds()
	buf.Grow(b.Dx() * b.Dy())
	if err := png.Encode(&buf, img); err != nil {
		return nil, fmt.Errorf("failed to encode PNG image: %w", err)
	}
	return buf.Bytes(), nil
}

// newCanvas allocates an RGBA image filled with bg
func newCanvas(w, h int, bg color.Color) *image.RGBA {
	dst := image.NewRGBA(image.Rect(0, 0, w, h))
	draw.Draw(dst, dst.Bounds(), &image.Uniform{C: bg}, image.Point{}, draw.Src)
	return dst
}

// flatten composites img over an opaque background so formats without alpha render
// predictably. Opaque input is returned unchanged.
func flatten(img image.Image, bg color.Color) image.Image {
	if isOpaque(img) {
		return img
	}
	b := img.Bounds()
	dst := newCanvas(b.Dx(), b.Dy(), bg)
	parallelRows(b.Dy(), func(y int) {
		row := image.Rect(0, y, b.Dx(), y+1)
		draw.Draw(dst, row, img, image.Point{X: b.Min.X, Y: b.Min.Y + y}, draw.Over)
	})
	return dst
}

func isOpaque(img image.Image) bool {
	if o, ok := img.(interface{ Opaque() bool }); ok {
		return o.Opaque()
	}
	b := img.Bounds()
	translucent := parallelRowsUntil(b.Dy(), func(y int) bool {
		for x := b.Min.X; x < b.Max.X; x++ {
			if _, _, _, a := img.At(x, b.Min.Y+y).RGBA(); a != 0xffff {
				return true
			}
		}
		return false
	})
	return !translucent
}
