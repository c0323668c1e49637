package commands

import (
	"testing"

	"github.com/jo-hoe/designcase/internal/backend/commandstructure"
)

func BenchmarkPngConverterCommand_Execute(b *testing.B) {
	imageData := jpegBytes(b, gradientImage(1600, 1200))
	command, err := NewPngConverterCommand(map[string]any{})
	if err != nil {
		b.Fatalf("failed to create PngConverterCommand: %v", err)
	}

	b.ReportAllocs()
	b.ResetTimer()
	for i := 0; i < b.N; i++ {
		if _, err := command.Execute(imageData); err != nil {
			b.Fatalf("execute failed: %v", err)
		}
	}
}

func BenchmarkScaleCommand_Execute(b *testing.B) {
	imageData := pngBytes(b, gradientImage(1600, 1200))

	cases := []struct {
		name string
		mode ScaleMode
	}{
		{name: "fit", mode: ScaleModeFit},
		{name: "cover", mode: ScaleModeCover},
	}
	for _, tc := range cases {
		b.Run(tc.name, func(b *testing.B) {
			command, err := NewScaleCommandWithParams(400, 400, tc.mode)
			if err != nil {
				b.Fatalf("failed to create ScaleCommand: %v", err)
			}
			b.ReportAllocs()
			b.ResetTimer()
			for i := 0; i < b.N; i++ {
				if _, err := command.Execute(imageData); err != nil {
					b.Fatalf("execute failed: %v", err)
				}
			}
		})
	}
}

func BenchmarkThumbnailChain_Execute(b *testing.B) {
	imageData := pngBytes(b, gradientImage(2000, 2000))
	invoker, err := commandstructure.NewCommandInvokerFromConfig([]commandstructure.CommandConfig{
		{Name: "ScaleCommand", Params: map[string]any{"width": 400, "height": 400, "mode": "cover"}},
		{Name: "CropCommand", Params: map[string]any{"width": 400, "height": 400}},
		{Name: "JpegConverterCommand", Params: map[string]any{"quality": 80}},
	})
	if err != nil {
		b.Fatalf("failed to build chain: %v", err)
	}

	b.ReportAllocs()
	b.ResetTimer()
	for i := 0; i < b.N; i++ {
		if _, err := invoker.Execute(imageData); err != nil {
			b.Fatalf("execute failed: %v", err)
		}
	}
}
