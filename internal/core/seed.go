package core

import (
	"context"
	"embed"
	"errors"
	"fmt"
	"log/slog"

	"github.com/jo-hoe/designcase/internal/backend/commands"
	"github.com/jo-hoe/designcase/internal/backend/database"
	"github.com/jo-hoe/designcase/internal/backend/storage"
)

//go:embed assets/templates/*.svg
var templateAssets embed.FS

const (
	TemplatePrefix          = "templates"
	templateThumbnailWidth  = 400
	templateThumbnailHeight = 300
)

var defaultTemplates = []database.Template{
	{
		Name:        "Minimal",
		Slug:        "minimal",
		Description: "Clean and minimal case study template",
		Category:    "minimal",
		IsPublic:    true,
		SortOrder:   1,
	},
	{
		Name:        "Immersive",
		Slug:        "immersive",
		Description: "Immersive 3D case study template",
		Category:    "immersive",
		IsPublic:    true,
		SortOrder:   2,
	},
	{
		Name:        "Portfolio",
		Slug:        "portfolio",
		Description: "Portfolio-style case study template",
		Category:    "portfolio",
		IsPublic:    true,
		SortOrder:   3,
	},
}

// SeedTemplates renders the default template previews, stores them and upserts the
// template rows. Running it again keeps the already stored previews.
func (service *CoreService) SeedTemplates(ctx context.Context) ([]*database.Template, error) {
	renderer := commands.NewPngConverterCommandWithSize(templateThumbnailWidth, templateThumbnailHeight)

	seeded := make([]*database.Template, 0, len(defaultTemplates))
	for _, def := range defaultTemplates {
		svg, err := templateAssets.ReadFile("assets/templates/" + def.Slug + ".svg")
		if err != nil {
			return nil, fmt.Errorf("missing template asset %s: %w", def.Slug, err)
		}
		png, err := renderer.Execute(svg)
		if err != nil {
			return nil, fmt.Errorf("render template %s: %w", def.Slug, err)
		}

		key := storage.ObjectKey(TemplatePrefix, def.Slug+".png")
		if _, err := service.storage.Put(ctx, key, png, "image/png"); err != nil && !errors.Is(err, storage.ErrObjectExists) {
			return nil, fmt.Errorf("store template thumbnail %s: %w", def.Slug, err)
		}

		template := def
		template.Thumbnail = service.storage.PublicURL(key)
		if err := service.databaseService.UpsertTemplate(ctx, &template); err != nil {
			return nil, fmt.Errorf("upsert template %s: %w", def.Slug, err)
		}
		slog.Info("template seeded", "slug", template.Slug, "thumbnail", template.Thumbnail)
		seeded = append(seeded, &template)
	}
	return seeded, nil
}
