package core

import (
	"context"
	"errors"
	"strings"
	"unicode"

	"github.com/jo-hoe/designcase/internal/backend/database"
)

type CreateProjectRequest struct {
	UserID      string
	Name        string
	Description string
}

func (service *CoreService) CreateProject(ctx context.Context, req CreateProjectRequest) (*database.Project, error) {
	name := strings.TrimSpace(req.Name)
	if name == "" {
		return nil, validationError(CodeValidation, "Project name is required", nil)
	}

	now := service.now()
	id := service.newID()
	project := &database.Project{
		ID:          id,
		UserID:      req.UserID,
		Name:        name,
		Description: strings.TrimSpace(req.Description),
		Slug:        projectSlug(name, id),
		Status:      database.ProjectStatusPending,
		CreatedAt:   now,
		UpdatedAt:   now,
	}
	if err := service.databaseService.CreateProject(ctx, project); err != nil {
		return nil, upstreamError(CodeProjectError, "Failed to create project", err)
	}
	return project, nil
}

// GetProject answers PROJECT_NOT_FOUND for projects owned by someone else
func (service *CoreService) GetProject(ctx context.Context, projectID, userID string) (*database.Project, error) {
	project, err := service.databaseService.GetProjectForUser(ctx, projectID, userID)
	if errors.Is(err, database.ErrNotFound) {
		return nil, notFoundError(CodeProjectNotFound, "Project not found or unauthorized")
	}
	if err != nil {
		return nil, upstreamError(CodeProjectError, "Failed to load project", err)
	}
	return project, nil
}

func (service *CoreService) ListProjects(ctx context.Context, userID string) ([]*database.Project, error) {
	projects, err := service.databaseService.ListProjectsByUser(ctx, userID)
	if err != nil {
		return nil, upstreamError(CodeProjectError, "Failed to list projects", err)
	}
	return projects, nil
}

// projectSlug lowercases name, joins word runs with '-' and appends the first 8 characters
// of id so equal names stay unique.
func projectSlug(name, id string) string {
	var b strings.Builder
	dash := false
	for _, r := range strings.ToLower(name) {
		if unicode.IsLetter(r) || unicode.IsDigit(r) {
			if dash && b.Len() > 0 {
				b.WriteByte('-')
			}
			b.WriteRune(r)
			dash = false
			continue
		}
		dash = true
	}

	suffix := strings.ReplaceAll(id, "-", "")
	if len(suffix) > 8 {
		suffix = suffix[:8]
	}
	if b.Len() == 0 {
		return suffix
	}
	return b.String() + "-" + suffix
}
