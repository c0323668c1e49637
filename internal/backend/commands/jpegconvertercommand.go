package commands

import (
	"bytes"
	"fmt"
	"image/jpeg"

	"github.com/jo-hoe/designcase/internal/backend/commandstructure"
)

const defaultJpegQuality = 90

// JpegConverterCommand re-encodes any raster input as baseline JPEG. Transparency is
// flattened onto white.
type JpegConverterCommand struct {
	name    string
	quality int
}

func NewJpegConverterCommand(params map[string]any) (commandstructure.Command, error) {
	quality := commandstructure.GetIntParam(params, "quality", defaultJpegQuality)
	if quality < 1 || quality > 100 {
		return nil, fmt.Errorf("quality must be between 1 and 100, got %d", quality)
	}
	return &JpegConverterCommand{name: "JpegConverterCommand", quality: quality}, nil
}

func (c *JpegConverterCommand) Name() string {
	return c.name
}

func (c *JpegConverterCommand) Quality() int {
	return c.quality
}

func (c *JpegConverterCommand) Execute(imageData []byte) ([]byte, error) {
	img, _, err := decodeImage(imageData)
	if err != nil {
		return nil, err
	}

	var buf bytes.Buffer
	if err := jpeg.Encode(&buf, flatten(img, white), &jpeg.Options{Quality: c.quality}); err != nil {
		return nil, fmt.Errorf("failed to encode JPEG image: %w", err)
	}
	return buf.Bytes(), nil
}

func init() {
	if err := commandstructure.DefaultRegistry.Register("JpegConverterCommand", NewJpegConverterCommand); err != nil {
		panic(fmt.Sprintf("failed to register JpegConverterCommand: %v", err))
	}
}
