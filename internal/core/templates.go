package core

import (
	"context"

	"github.com/jo-hoe/designcase/internal/backend/database"
)

// ListTemplates returns public templates in display order
func (service *CoreService) ListTemplates(ctx context.Context) ([]*database.Template, error) {
	templates, err := service.databaseService.ListTemplates(ctx, true)
	if err != nil {
		return nil, upstreamError(CodeTemplateError, "Failed to list templates", err)
	}
	return templates, nil
}
