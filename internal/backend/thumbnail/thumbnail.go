// Package thumbnail renders preview images through a configurable command chain.
package thumbnail

import (
	"fmt"
	"log/slog"
	"net/http"

	"github.com/jo-hoe/designcase/internal/backend/commands"
	"github.com/jo-hoe/designcase/internal/backend/commandstructure"
)

// Size is the edge length of the default square thumbnail
const Size = 400

// DefaultCommands scales to cover the box, center crops, and encodes as JPEG at quality 80
func DefaultCommands() []commandstructure.CommandConfig {
	return []commandstructure.CommandConfig{
		{Name: "ScaleCommand", Params: map[string]any{"width": Size, "height": Size, "mode": "cover"}},
		{Name: "CropCommand", Params: map[string]any{"width": Size, "height": Size}},
		{Name: "JpegConverterCommand", Params: map[string]any{"quality": 80}},
	}
}

// Result is either a rendered thumbnail, a skip, or a degrade carrying the cause
type Result struct {
	Data        []byte
	ContentType string
	Extension   string
	Skipped     bool
	Degraded    error
}

func (r Result) Ok() bool {
	return !r.Skipped && r.Degraded == nil && len(r.Data) > 0
}

type Generator struct {
	invoker   *commandstructure.CommandInvoker
	maxPixels int64
}

// NewGenerator builds the chain from configs, falling back to DefaultCommands when empty
func NewGenerator(configs []commandstructure.CommandConfig) (*Generator, error) {
	if len(configs) == 0 {
		configs = DefaultCommands()
	}
	invoker, err := commandstructure.NewCommandInvokerFromConfig(configs)
	if err != nil {
		return nil, fmt.Errorf("failed to build thumbnail commands: %w", err)
	}
	return &Generator{invoker: invoker, maxPixels: commands.DefaultMaxPixels}, nil
}

// WithMaxPixels bounds the declared input size the chain is run on. Values of zero or
// less keep commands.DefaultMaxPixels.
func (g *Generator) WithMaxPixels(maxPixels int64) *Generator {
	if maxPixels > 0 {
		g.maxPixels = maxPixels
	}
	return g
}

func (g *Generator) Commands() []string {
	return g.invoker.Names()
}

// Generate only runs for raster input whose metadata was obtained; it never returns an error
func (g *Generator) Generate(data []byte, raster bool, hasMetadata bool) Result {
	if !raster || !hasMetadata {
		return Result{Skipped: true}
	}

	if _, _, err := commands.CheckPixels(data, g.maxPixels); err != nil {
		slog.Warn("thumbnail generation skipped: header rejected", "error", err)
		return Result{Degraded: err}
	}

	out, err := g.invoker.Execute(data)
	if err != nil {
		slog.Warn("thumbnail generation failed", "error", err)
		return Result{Degraded: err}
	}
	if len(out) == 0 {
		return Result{Degraded: fmt.Errorf("thumbnail commands produced no output")}
	}

	contentType := http.DetectContentType(out)
	ext, ok := extensionFor(contentType)
	if !ok {
		return Result{Degraded: fmt.Errorf("thumbnail commands produced unsupported content type %s", contentType)}
	}
	return Result{Data: out, ContentType: contentType, Extension: ext}
}

func extensionFor(contentType string) (string, bool) {
	switch contentType {
	case "image/jpeg":
		return ".jpg", true
	case "image/png":
		return ".png", true
	case "image/webp":
		return ".webp", true
	}
	return "", false
}
