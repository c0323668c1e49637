// Package optimizer re-encodes raster uploads and keeps the result only when it is smaller.
package optimizer

import (
	"bytes"
	"fmt"
	"image"
	"image/jpeg"
	"image/png"
	"log/slog"
	"strings"

	_ "image/gif"

	"github.com/gen2brain/webp"
	"github.com/jo-hoe/designcase/internal/backend/commands"
	_ "golang.org/x/image/webp"
)

// ImageMetadata is what decoding the upload revealed
type ImageMetadata struct {
	Width  int
	Height int
	Format string
}

// Result always carries usable bytes. Degraded is set when optimization failed and
// Data is the untouched input.
type Result struct {
	Data      []byte
	Metadata  *ImageMetadata
	Optimized bool
	Degraded  error
}

// Settings control re-encoding. MaxPixels bounds the declared width x height of input
// that is decoded at all; zero selects commands.DefaultMaxPixels.
type Settings struct {
	PNGCompression png.CompressionLevel
	JPEGQuality    int
	WebPQuality    int
	MaxPixels      int64
}

func DefaultSettings() Settings {
	return Settings{
		PNGCompression: png.BestCompression,
		JPEGQuality:    90,
		WebPQuality:    90,
		MaxPixels:      commands.DefaultMaxPixels,
	}
}

// ParsePNGCompression maps the config names onto png.CompressionLevel
func ParsePNGCompression(name string) (png.CompressionLevel, error) {
	switch strings.ToLower(strings.TrimSpace(name)) {
	case "", "best":
		return png.BestCompression, nil
	case "default":
		return png.DefaultCompression, nil
	case "speed":
		return png.BestSpeed, nil
	case "none":
		return png.NoCompression, nil
	}
	return 0, fmt.Errorf("unknown png compression %q", name)
}

type Optimizer struct {
	settings Settings
	pngEnc   *png.Encoder
}

func NewOptimizer(settings Settings) *Optimizer {
	return &Optimizer{
		settings: settings,
		pngEnc:   &png.Encoder{CompressionLevel: settings.PNGCompression},
	}
}

// IsOptimizable reports whether ext names a raster format the optimizer re-encodes
func IsOptimizable(ext string) bool {
	switch strings.ToLower(ext) {
	case ".png", ".jpg", ".jpeg", ".webp":
		return true
	}
	return false
}

// Optimize never fails; non-raster input passes through without metadata
func (o *Optimizer) Optimize(data []byte, ext string) Result {
	ext = strings.ToLower(ext)
	if !IsOptimizable(ext) {
		return Result{Data: data}
	}

	if _, _, err := commands.CheckPixels(data, o.settings.MaxPixels); err != nil {
		slog.Warn("image optimization skipped: header rejected", "extension", ext, "error", err)
		return Result{Data: data, Degraded: fmt.Errorf("decode: %w", err)}
	}

	img, format, err := image.Decode(bytes.NewReader(data))
	if err != nil {
		slog.Warn("image optimization skipped: decode failed", "extension", ext, "error", err)
		return Result{Data: data, Degraded: fmt.Errorf("decode: %w", err)}
	}
	meta := &ImageMetadata{Width: img.Bounds().Dx(), Height: img.Bounds().Dy(), Format: format}

	encoded, err := o.encode(img, ext)
	if err != nil {
		slog.Warn("image optimization skipped: encode failed", "extension", ext, "error", err)
		return Result{Data: data, Degraded: fmt.Errorf("encode: %w", err)}
	}

	if len(encoded) < len(data) {
		slog.Debug("image optimized", "original_bytes", len(data), "optimized_bytes", len(encoded))
		return Result{Data: encoded, Metadata: meta, Optimized: true}
	}
	slog.Debug("image optimization kept original", "original_bytes", len(data), "encoded_bytes", len(encoded))
	return Result{Data: data, Metadata: meta}
}

func (o *Optimizer) encode(img image.Image, ext string) ([]byte, error) {
	var buf bytes.Buffer
	var err error
	switch ext {
	case ".png":
		err = o.pngEnc.Encode(&buf, img)
	case ".jpg", ".jpeg":
		err = jpeg.Encode(&buf, img, &jpeg.Options{Quality: o.settings.JPEGQuality})
	case ".webp":
		err = webp.Encode(&buf, img, webp.Options{Quality: o.settings.WebPQuality})
	default:
		err = fmt.Errorf("no encoder for %s", ext)
	}
	if err != nil {
		return nil, err
	}
	return buf.Bytes(), nil
}
