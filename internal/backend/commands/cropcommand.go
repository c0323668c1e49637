package commands

import (
	"fmt"
	"image"
	"image/draw"
	"log/slog"

	"github.com/jo-hoe/designcase/internal/backend/commandstructure"
)

type CropParams struct {
	Width  int
	Height int
}

func NewCropParamsFromMap(params map[string]any) (*CropParams, error) {
	width, height, err := commandstructure.GetPositiveDimensions(params)
	if err != nil {
		return nil, err
	}
	return &CropParams{Width: width, Height: height}, nil
}

// CropCommand cuts a centered region and emits PNG
type CropCommand struct {
	name   string
	params *CropParams
}

func NewCropCommand(params map[string]any) (commandstructure.Command, error) {
	typed, err := NewCropParamsFromMap(params)
	if err != nil {
		return nil, err
	}
	return &CropCommand{name: "CropCommand", params: typed}, nil
}

func (c *CropCommand) Name() string {
	return c.name
}

func (c *CropCommand) GetParams() *CropParams {
	return c.params
}

// Execute returns the input untouched when it already fits inside the crop box
func (c *CropCommand) Execute(imageData []byte) ([]byte, error) {
	img, _, err := decodeImage(imageData)
	if err != nil {
		return nil, err
	}

	b := img.Bounds()
	if c.params.Width >= b.Dx() && c.params.Height >= b.Dy() {
		return imageData, nil
	}

	cw := min(c.params.Width, b.Dx())
	ch := min(c.params.Height, b.Dy())
	origin := image.Pt(b.Min.X+(b.Dx()-cw)/2, b.Min.Y+(b.Dy()-ch)/2)

	dst := image.NewRGBA(image.Rect(0, 0, cw, ch))
	draw.Draw(dst, dst.Bounds(), img, origin, draw.Src)

	slog.Debug("CropCommand: center crop",
		"source_width", b.Dx(),
		"source_height", b.Dy(),
		"crop_x", origin.X,
		"crop_y", origin.Y,
		"crop_width", cw,
		"crop_height", ch)

	return encodePNG(dst)
}

func init() {
	if err := commandstructure.DefaultRegistry.Register("CropCommand", NewCropCommand); err != nil {
		panic(fmt.Sprintf("failed to register CropCommand: %v", err))
	}
}
