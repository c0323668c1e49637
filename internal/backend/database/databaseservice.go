package database

import (
	"context"
	"errors"
)

// ErrNotFound is returned when a row does not exist
var ErrNotFound = errors.New("not found")

type DatabaseService interface {
	// CreateDatabase ensures the schema exists; it is idempotent
	CreateDatabase(ctx context.Context) error
	Ping(ctx context.Context) error
	Close() error

	CreateProject(ctx context.Context, project *Project) error
	GetProjectByID(ctx context.Context, id string) (*Project, error)
	// GetProjectForUser returns ErrNotFound when the project is absent or owned by someone else
	GetProjectForUser(ctx context.Context, id, userID string) (*Project, error)
	ListProjectsByUser(ctx context.Context, userID string) ([]*Project, error)

	// CreateDesignFile inserts the file and applies update to its project in one transaction
	CreateDesignFile(ctx context.Context, file *DesignFile, update ProjectUpdate) error
	GetDesignFileByID(ctx context.Context, id string) (*DesignFile, error)
	// ListDesignFilesByProject orders newest first
	ListDesignFilesByProject(ctx context.Context, projectID string) ([]*DesignFile, error)
	DeleteDesignFile(ctx context.Context, id string) error
	// ListStoragePaths returns every object key referenced by a DesignFile
	ListStoragePaths(ctx context.Context) ([]string, error)

	UpsertTemplate(ctx context.Context, template *Template) error
	ListTemplates(ctx context.Context, publicOnly bool) ([]*Template, error)
}
