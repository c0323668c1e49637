package optimizer

import (
	"bytes"
	"encoding/binary"
	"errors"
	"hash/crc32"
	"image"
	"image/color"
	"image/jpeg"
	"image/png"
	"testing"

	"github.com/jo-hoe/designcase/internal/backend/commands"
)

func noisyImage(w, h int) *image.RGBA {
	img := image.NewRGBA(image.Rect(0, 0, w, h))
	seed := uint32(7)
	for y := 0; y < h; y++ {
		for x := 0; x < w; x++ {
			seed = seed*1664525 + 1013904223
			img.Set(x, y, color.RGBA{uint8(seed >> 24), uint8(seed >> 16), uint8(seed >> 8), 255})
		}
	}
	return img
}

func flatImage(w, h int) *image.RGBA {
	img := image.NewRGBA(image.Rect(0, 0, w, h))
	for i := range img.Pix {
		img.Pix[i] = 200
	}
	return img
}

func encodePNG(t *testing.T, img image.Image, level png.CompressionLevel) []byte {
	t.Helper()
	var buf bytes.Buffer
	enc := png.Encoder{CompressionLevel: level}
	if err := enc.Encode(&buf, img); err != nil {
		t.Fatalf("encode: %v", err)
	}
	return buf.Bytes()
}

func TestOptimize_PNGShrinks(t *testing.T) {
	original := encodePNG(t, flatImage(300, 200), png.NoCompression)
	res := NewOptimizer(DefaultSettings()).Optimize(original, ".png")

	if res.Degraded != nil {
		t.Fatalf("unexpected degrade: %v", res.Degraded)
	}
	if !res.Optimized {
		t.Fatal("expected uncompressed PNG to be optimized")
	}
	if len(res.Data) >= len(original) {
		t.Errorf("optimized size %d not smaller than %d", len(res.Data), len(original))
	}
	if res.Metadata == nil || res.Metadata.Width != 300 || res.Metadata.Height != 200 || res.Metadata.Format != "png" {
		t.Errorf("metadata = %+v", res.Metadata)
	}
}

func TestOptimize_KeepsOriginalWhenNotSmaller(t *testing.T) {
	// a low-quality noisy JPEG grows when re-encoded at quality 90
	var buf bytes.Buffer
	if err := jpeg.Encode(&buf, noisyImage(64, 64), &jpeg.Options{Quality: 10}); err != nil {
		t.Fatalf("encode: %v", err)
	}
	original := buf.Bytes()

	res := NewOptimizer(DefaultSettings()).Optimize(original, ".jpg")
	if res.Optimized {
		t.Fatal("expected original to be kept")
	}
	if !bytes.Equal(res.Data, original) {
		t.Error("data must be the original bytes")
	}
	if res.Metadata == nil || res.Metadata.Format != "jpeg" || res.Metadata.Width != 64 {
		t.Errorf("metadata must still be reported, got %+v", res.Metadata)
	}
}

func TestOptimize_CorruptImageDegrades(t *testing.T) {
	original := []byte("\x89PNG\r\n\x1a\nthis is not really a png")
	res := NewOptimizer(DefaultSettings()).Optimize(original, ".png")

	if res.Degraded == nil {
		t.Fatal("expected degraded result")
	}
	if res.Metadata != nil {
		t.Errorf("metadata must be absent on decode failure, got %+v", res.Metadata)
	}
	if !bytes.Equal(res.Data, original) {
		t.Error("data must be the original bytes")
	}
}

func TestOptimize_NonRasterPassThrough(t *testing.T) {
	for _, ext := range []string{".svg", ".pdf"} {
		original := []byte("%PDF-1.4 or <svg/>")
		res := NewOptimizer(DefaultSettings()).Optimize(original, ext)
		if res.Metadata != nil || res.Optimized || res.Degraded != nil {
			t.Errorf("%s: expected untouched pass-through, got %+v", ext, res)
		}
		if !bytes.Equal(res.Data, original) {
			t.Errorf("%s: data changed", ext)
		}
	}
}

func TestOptimize_WebP(t *testing.T) {
	original := encodePNG(t, flatImage(64, 64), png.NoCompression)
	// PNG bytes under a .webp name still decode; the encoder follows the extension
	res := NewOptimizer(DefaultSettings()).Optimize(original, ".webp")
	if res.Degraded != nil {
		t.Fatalf("unexpected degrade: %v", res.Degraded)
	}
	if !res.Optimized {
		t.Fatal("expected webp encoding of a flat image to be smaller")
	}
	if !bytes.HasPrefix(res.Data, []byte("RIFF")) {
		t.Error("expected RIFF/WEBP container")
	}
}

func TestParsePNGCompression(t *testing.T) {
	tests := map[string]png.CompressionLevel{
		"":        png.BestCompression,
		"best":    png.BestCompression,
		"Default": png.DefaultCompression,
		"speed":   png.BestSpeed,
		"none":    png.NoCompression,
	}
	for in, want := range tests {
		got, err := ParsePNGCompression(in)
		if err != nil || got != want {
			t.Errorf("ParsePNGCompression(%q) = %v, %v; want %v", in, got, err, want)
		}
	}
	if _, err := ParsePNGCompression("ultra"); err == nil {
		t.Error("expected error for unknown level")
	}
}

// declaredPNG carries only an IHDR declaring w x h grayscale pixels
func declaredPNG(w, h uint32) []byte {
	var buf bytes.Buffer
	buf.WriteString("\x89PNG\r\n\x1a\n")
	chunk := func(typ string, data []byte) {
		_ = binary.Write(&buf, binary.BigEndian, uint32(len(data)))
		body := append([]byte(typ), data...)
		buf.Write(body)
		_ = binary.Write(&buf, binary.BigEndian, crc32.ChecksumIEEE(body))
	}
	ihdr := make([]byte, 13)
	binary.BigEndian.PutUint32(ihdr[0:], w)
	binary.BigEndian.PutUint32(ihdr[4:], h)
	ihdr[8] = 8
	chunk("IHDR", ihdr)
	chunk("IEND", nil)
	return buf.Bytes()
}

func TestOptimize_RejectsOversizedInput(t *testing.T) {
	limited := DefaultSettings()
	limited.MaxPixels = 100 * 100

	tests := []struct {
		name     string
		settings Settings
		data     []byte
	}{
		{"declared size above default limit", DefaultSettings(), declaredPNG(16000, 20000)},
		{"real image above configured limit", limited, encodePNG(t, flatImage(120, 100), png.NoCompression)},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			res := NewOptimizer(tt.settings).Optimize(tt.data, ".png")
			if !errors.Is(res.Degraded, commands.ErrTooManyPixels) {
				t.Fatalf("expected pixel limit degrade, got %v", res.Degraded)
			}
			if res.Metadata != nil || res.Optimized {
				t.Errorf("expected no metadata and no optimization, got %+v", res)
			}
			if !bytes.Equal(res.Data, tt.data) {
				t.Error("data must be the original bytes")
			}
		})
	}
}
