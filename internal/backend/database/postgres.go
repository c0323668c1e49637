package database

import (
	"context"
	"embed"
	"errors"
	"fmt"
	"log/slog"
	"time"

	"github.com/golang-migrate/migrate/v4"
	_ "github.com/golang-migrate/migrate/v4/database/postgres"
	"github.com/golang-migrate/migrate/v4/source/iofs"
	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"
)

//go:embed migrations/*.sql
var migrationsFS embed.FS

type PostgresDatabase struct {
	pool             *pgxpool.Pool
	connectionString string
}

func NewPostgresDatabase(ctx context.Context, connectionString string) (DatabaseService, error) {
	pool, err := pgxpool.New(ctx, connectionString)
	if err != nil {
		return nil, fmt.Errorf("create pool: %w", err)
	}
	if err := pool.Ping(ctx); err != nil {
		pool.Close()
		return nil, fmt.Errorf("ping database: %w", err)
	}
	slog.Info("connected to database", "type", "postgres")
	return &PostgresDatabase{pool: pool, connectionString: connectionString}, nil
}

// CreateDatabase runs the embedded migrations
func (p *PostgresDatabase) CreateDatabase(ctx context.Context) error {
	return MigratePostgres(p.connectionString)
}

// MigratePostgres applies all pending up migrations embedded in the binary
func MigratePostgres(databaseURL string) error {
	src, err := iofs.New(migrationsFS, "migrations")
	if err != nil {
		return fmt.Errorf("load migration source: %w", err)
	}

	m, err := migrate.NewWithSourceInstance("iofs", src, databaseURL)
	if err != nil {
		return fmt.Errorf("create migrator: %w", err)
	}
	defer func() {
		_, _ = m.Close()
	}()

	if err := m.Up(); err != nil && !errors.Is(err, migrate.ErrNoChange) {
		return fmt.Errorf("apply migrations: %w", err)
	}
	slog.Info("database migrations applied")
	return nil
}

func (p *PostgresDatabase) Ping(ctx context.Context) error {
	return p.pool.Ping(ctx)
}

func (p *PostgresDatabase) Close() error {
	p.pool.Close()
	return nil
}

func nowIfZero(t time.Time) time.Time {
	if t.IsZero() {
		return time.Now().UTC()
	}
	return t
}

func (p *PostgresDatabase) CreateProject(ctx context.Context, pr *Project) error {
	ensureID(&pr.ID)
	pr.CreatedAt = nowIfZero(pr.CreatedAt)
	if pr.UpdatedAt.IsZero() {
		pr.UpdatedAt = pr.CreatedAt
	}
	_, err := p.pool.Exec(ctx,
		`INSERT INTO projects (id, user_id, name, description, slug, status, thumbnail, file_size, created_at, updated_at)
		 VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10)`,
		pr.ID, pr.UserID, pr.Name, pr.Description, pr.Slug, pr.Status, pr.Thumbnail, pr.FileSize, pr.CreatedAt, pr.UpdatedAt)
	if err != nil {
		return fmt.Errorf("create project: %w", err)
	}
	return nil
}

func scanPgProject(row pgx.Row) (*Project, error) {
	var pr Project
	err := row.Scan(&pr.ID, &pr.UserID, &pr.Name, &pr.Description, &pr.Slug, &pr.Status, &pr.Thumbnail,
		&pr.FileSize, &pr.CreatedAt, &pr.UpdatedAt)
	if err != nil {
		return nil, err
	}
	return &pr, nil
}

func (p *PostgresDatabase) GetProjectByID(ctx context.Context, id string) (*Project, error) {
	pr, err := scanPgProject(p.pool.QueryRow(ctx, `SELECT `+projectColumns+` FROM projects WHERE id = $1`, id))
	if errors.Is(err, pgx.ErrNoRows) {
		return nil, ErrNotFound
	}
	if err != nil {
		return nil, fmt.Errorf("get project: %w", err)
	}
	return pr, nil
}

func (p *PostgresDatabase) GetProjectForUser(ctx context.Context, id, userID string) (*Project, error) {
	pr, err := scanPgProject(p.pool.QueryRow(ctx,
		`SELECT `+projectColumns+` FROM projects WHERE id = $1 AND user_id = $2`, id, userID))
	if errors.Is(err, pgx.ErrNoRows) {
		return nil, ErrNotFound
	}
	if err != nil {
		return nil, fmt.Errorf("get project for user: %w", err)
	}
	return pr, nil
}

func (p *PostgresDatabase) ListProjectsByUser(ctx context.Context, userID string) ([]*Project, error) {
	rows, err := p.pool.Query(ctx,
		`SELECT `+projectColumns+` FROM projects WHERE user_id = $1 ORDER BY created_at DESC, id DESC`, userID)
	if err != nil {
		return nil, fmt.Errorf("list projects: %w", err)
	}
	defer rows.Close()

	projects := []*Project{}
	for rows.Next() {
		pr, err := scanPgProject(rows)
		if err != nil {
			return nil, fmt.Errorf("scan project: %w", err)
		}
		projects = append(projects, pr)
	}
	return projects, rows.Err()
}

func (p *PostgresDatabase) CreateDesignFile(ctx context.Context, f *DesignFile, update ProjectUpdate) error {
	ensureID(&f.ID)
	f.CreatedAt = nowIfZero(f.CreatedAt)
	if update.UpdatedAt.IsZero() {
		update.UpdatedAt = f.CreatedAt
	}

	return pgx.BeginFunc(ctx, p.pool, func(tx pgx.Tx) error {
		_, err := tx.Exec(ctx,
			`INSERT INTO design_files (id, project_id, filename, original_name, file_type, file_url, thumbnail_url,
				storage_path, thumbnail_path, file_size, width, height, status, created_at)
			 VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10, $11, $12, $13, $14)`,
			f.ID, f.ProjectID, f.Filename, f.OriginalName, f.FileType, f.FileURL, f.ThumbnailURL,
			f.StoragePath, f.ThumbnailPath, f.FileSize, f.Width, f.Height, f.Status, f.CreatedAt)
		if err != nil {
			return fmt.Errorf("insert design file: %w", err)
		}

		tag, err := tx.Exec(ctx,
			`UPDATE projects SET status = $1, thumbnail = COALESCE(NULLIF($2, ''), thumbnail), file_size = $3, updated_at = $4
			 WHERE id = $5`,
			update.Status, update.Thumbnail, update.FileSize, update.UpdatedAt, f.ProjectID)
		if err != nil {
			return fmt.Errorf("update project: %w", err)
		}
		if tag.RowsAffected() == 0 {
			return ErrNotFound
		}
		return nil
	})
}

func scanPgDesignFile(row pgx.Row) (*DesignFile, error) {
	var f DesignFile
	err := row.Scan(&f.ID, &f.ProjectID, &f.Filename, &f.OriginalName, &f.FileType, &f.FileURL, &f.ThumbnailURL,
		&f.StoragePath, &f.ThumbnailPath, &f.FileSize, &f.Width, &f.Height, &f.Status, &f.CreatedAt)
	if err != nil {
		return nil, err
	}
	return &f, nil
}

func (p *PostgresDatabase) GetDesignFileByID(ctx context.Context, id string) (*DesignFile, error) {
	f, err := scanPgDesignFile(p.pool.QueryRow(ctx, `SELECT `+designFileColumns+` FROM design_files WHERE id = $1`, id))
	if errors.Is(err, pgx.ErrNoRows) {
		return nil, ErrNotFound
	}
	if err != nil {
		return nil, fmt.Errorf("get design file: %w", err)
	}
	return f, nil
}

func (p *PostgresDatabase) ListDesignFilesByProject(ctx context.Context, projectID string) ([]*DesignFile, error) {
	rows, err := p.pool.Query(ctx,
		`SELECT `+designFileColumns+` FROM design_files WHERE project_id = $1 ORDER BY created_at DESC, id DESC`, projectID)
	if err != nil {
		return nil, fmt.Errorf("list design files: %w", err)
	}
	defer rows.Close()

	files := []*DesignFile{}
	for rows.Next() {
		f, err := scanPgDesignFile(rows)
		if err != nil {
			return nil, fmt.Errorf("scan design file: %w", err)
		}
		files = append(files, f)
	}
	return files, rows.Err()
}

func (p *PostgresDatabase) DeleteDesignFile(ctx context.Context, id string) error {
	tag, err := p.pool.Exec(ctx, `DELETE FROM design_files WHERE id = $1`, id)
	if err != nil {
		return fmt.Errorf("delete design file: %w", err)
	}
	if tag.RowsAffected() == 0 {
		return ErrNotFound
	}
	return nil
}

func (p *PostgresDatabase) ListStoragePaths(ctx context.Context) ([]string, error) {
	rows, err := p.pool.Query(ctx,
		`SELECT storage_path FROM design_files
		 UNION SELECT thumbnail_path FROM design_files WHERE thumbnail_path <> ''`)
	if err != nil {
		return nil, fmt.Errorf("list storage paths: %w", err)
	}
	paths, err := pgx.CollectRows(rows, pgx.RowTo[string])
	if err != nil {
		return nil, fmt.Errorf("scan storage paths: %w", err)
	}
	return paths, nil
}

func (p *PostgresDatabase) UpsertTemplate(ctx context.Context, t *Template) error {
	ensureID(&t.ID)
	now := time.Now().UTC()
	t.CreatedAt = nowIfZero(t.CreatedAt)
	t.UpdatedAt = now
	err := p.pool.QueryRow(ctx,
		`INSERT INTO templates (id, name, slug, description, category, thumbnail, is_premium, is_public, sort_order, created_at, updated_at)
		 VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10, $11)
		 ON CONFLICT (slug) DO UPDATE SET
			name = EXCLUDED.name,
			description = EXCLUDED.description,
			category = EXCLUDED.category,
			thumbnail = EXCLUDED.thumbnail,
			is_premium = EXCLUDED.is_premium,
			is_public = EXCLUDED.is_public,
			sort_order = EXCLUDED.sort_order,
			updated_at = EXCLUDED.updated_at
		 RETURNING id`,
		t.ID, t.Name, t.Slug, t.Description, t.Category, t.Thumbnail, t.IsPremium, t.IsPublic, t.SortOrder,
		t.CreatedAt, t.UpdatedAt).Scan(&t.ID)
	if err != nil {
		return fmt.Errorf("upsert template: %w", err)
	}
	return nil
}

func (p *PostgresDatabase) ListTemplates(ctx context.Context, publicOnly bool) ([]*Template, error) {
	rows, err := p.pool.Query(ctx,
		`SELECT id, name, slug, description, category, thumbnail, is_premium, is_public, sort_order, created_at, updated_at
		 FROM templates WHERE is_public OR NOT $1 ORDER BY sort_order ASC, name ASC`, publicOnly)
	if err != nil {
		return nil, fmt.Errorf("list templates: %w", err)
	}
	defer rows.Close()

	templates := []*Template{}
	for rows.Next() {
		var t Template
		if err := rows.Scan(&t.ID, &t.Name, &t.Slug, &t.Description, &t.Category, &t.Thumbnail,
			&t.IsPremium, &t.IsPublic, &t.SortOrder, &t.CreatedAt, &t.UpdatedAt); err != nil {
			return nil, fmt.Errorf("scan template: %w", err)
		}
		templates = append(templates, &t)
	}
	return templates, rows.Err()
}
