package database

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"time"

	_ "modernc.org/sqlite"
)

type SQLiteDatabase struct {
	db               *sql.DB
	connectionString string
}

func NewSQLiteDatabase(connectionString string) (DatabaseService, error) {
	db, err := sql.Open("sqlite", connectionString)
	if err != nil {
		return nil, err
	}
	// one connection keeps :memory: databases shared and serializes writers
	db.SetMaxOpenConns(1)

	return &SQLiteDatabase{
		db:               db,
		connectionString: connectionString,
	}, nil
}

var sqliteSchema = []string{
	`PRAGMA foreign_keys = ON`,
	`CREATE TABLE IF NOT EXISTS projects (
		id TEXT PRIMARY KEY,
		user_id TEXT NOT NULL,
		name TEXT NOT NULL,
		description TEXT NOT NULL DEFAULT '',
		slug TEXT NOT NULL UNIQUE,
		status TEXT NOT NULL,
		thumbnail TEXT NOT NULL DEFAULT '',
		file_size INTEGER NOT NULL DEFAULT 0,
		created_at INTEGER NOT NULL,
		updated_at INTEGER NOT NULL
	)`,
	`CREATE INDEX IF NOT EXISTS idx_projects_user ON projects (user_id, created_at)`,
	`CREATE TABLE IF NOT EXISTS design_files (
		id TEXT PRIMARY KEY,
		project_id TEXT NOT NULL REFERENCES projects(id) ON DELETE CASCADE,
		filename TEXT NOT NULL,
		original_name TEXT NOT NULL,
		file_type TEXT NOT NULL,
		file_url TEXT NOT NULL,
		thumbnail_url TEXT NOT NULL DEFAULT '',
		storage_path TEXT NOT NULL,
		thumbnail_path TEXT NOT NULL DEFAULT '',
		file_size INTEGER NOT NULL,
		width INTEGER,
		height INTEGER,
		status TEXT NOT NULL,
		created_at INTEGER NOT NULL
	)`,
	`CREATE INDEX IF NOT EXISTS idx_design_files_project ON design_files (project_id, created_at)`,
	`CREATE TABLE IF NOT EXISTS templates (
		id TEXT PRIMARY KEY,
		name TEXT NOT NULL,
		slug TEXT NOT NULL UNIQUE,
		description TEXT NOT NULL DEFAULT '',
		category TEXT NOT NULL DEFAULT '',
		thumbnail TEXT NOT NULL DEFAULT '',
		is_premium INTEGER NOT NULL DEFAULT 0,
		is_public INTEGER NOT NULL DEFAULT 1,
		sort_order INTEGER NOT NULL DEFAULT 0,
		created_at INTEGER NOT NULL,
		updated_at INTEGER NOT NULL
	)`,
}

func (s *SQLiteDatabase) CreateDatabase(ctx context.Context) error {
	for _, stmt := range sqliteSchema {
		if _, err := s.db.ExecContext(ctx, stmt); err != nil {
			return fmt.Errorf("apply schema: %w", err)
		}
	}
	return nil
}

func (s *SQLiteDatabase) Ping(ctx context.Context) error {
	return s.db.PingContext(ctx)
}

func (s *SQLiteDatabase) Close() error {
	if s.db != nil {
		return s.db.Close()
	}
	return nil
}

func toUnix(t time.Time) int64 {
	if t.IsZero() {
		t = time.Now()
	}
	return t.UTC().UnixNano()
}

func fromUnix(n int64) time.Time {
	return time.Unix(0, n).UTC()
}

func (s *SQLiteDatabase) CreateProject(ctx context.Context, p *Project) error {
	ensureID(&p.ID)
	if p.CreatedAt.IsZero() {
		p.CreatedAt = time.Now().UTC()
	}
	if p.UpdatedAt.IsZero() {
		p.UpdatedAt = p.CreatedAt
	}
	_, err := s.db.ExecContext(ctx,
		`INSERT INTO projects (id, user_id, name, description, slug, status, thumbnail, file_size, created_at, updated_at)
		 VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?)`,
		p.ID, p.UserID, p.Name, p.Description, p.Slug, p.Status, p.Thumbnail, p.FileSize,
		toUnix(p.CreatedAt), toUnix(p.UpdatedAt))
	if err != nil {
		return fmt.Errorf("create project: %w", err)
	}
	return nil
}

const projectColumns = `id, user_id, name, description, slug, status, thumbnail, file_size, created_at, updated_at`

type rowScanner interface {
	Scan(dest ...any) error
}

func scanSQLiteProject(row rowScanner) (*Project, error) {
	var p Project
	var created, updated int64
	if err := row.Scan(&p.ID, &p.UserID, &p.Name, &p.Description, &p.Slug, &p.Status, &p.Thumbnail, &p.FileSize, &created, &updated); err != nil {
		return nil, err
	}
	p.CreatedAt = fromUnix(created)
	p.UpdatedAt = fromUnix(updated)
	return &p, nil
}

func (s *SQLiteDatabase) GetProjectByID(ctx context.Context, id string) (*Project, error) {
	p, err := scanSQLiteProject(s.db.QueryRowContext(ctx,
		`SELECT `+projectColumns+` FROM projects WHERE id = ?`, id))
	if errors.Is(err, sql.ErrNoRows) {
		return nil, ErrNotFound
	}
	if err != nil {
		return nil, fmt.Errorf("get project: %w", err)
	}
	return p, nil
}

func (s *SQLiteDatabase) GetProjectForUser(ctx context.Context, id, userID string) (*Project, error) {
	p, err := scanSQLiteProject(s.db.QueryRowContext(ctx,
		`SELECT `+projectColumns+` FROM projects WHERE id = ? AND user_id = ?`, id, userID))
	if errors.Is(err, sql.ErrNoRows) {
		return nil, ErrNotFound
	}
	if err != nil {
		return nil, fmt.Errorf("get project for user: %w", err)
	}
	return p, nil
}

func (s *SQLiteDatabase) ListProjectsByUser(ctx context.Context, userID string) ([]*Project, error) {
	rows, err := s.db.QueryContext(ctx,
		`SELECT `+projectColumns+` FROM projects WHERE user_id = ? ORDER BY created_at DESC, id DESC`, userID)
	if err != nil {
		return nil, fmt.Errorf("list projects: %w", err)
	}
	defer func() {
		_ = rows.Close()
	}()

	projects := []*Project{}
	for rows.Next() {
		p, err := scanSQLiteProject(rows)
		if err != nil {
			return nil, fmt.Errorf("scan project: %w", err)
		}
		projects = append(projects, p)
	}
	return projects, rows.Err()
}

func nullableInt(v *int) sql.NullInt64 {
	if v == nil {
		return sql.NullInt64{}
	}
	return sql.NullInt64{Int64: int64(*v), Valid: true}
}

func intPtr(v sql.NullInt64) *int {
	if !v.Valid {
		return nil
	}
	i := int(v.Int64)
	return &i
}

func (s *SQLiteDatabase) CreateDesignFile(ctx context.Context, f *DesignFile, update ProjectUpdate) (err error) {
	ensureID(&f.ID)
	if f.CreatedAt.IsZero() {
		f.CreatedAt = time.Now().UTC()
	}
	if update.UpdatedAt.IsZero() {
		update.UpdatedAt = f.CreatedAt
	}

	tx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return fmt.Errorf("begin transaction: %w", err)
	}
	defer func() {
		if err != nil {
			_ = tx.Rollback()
		}
	}()

	_, err = tx.ExecContext(ctx,
		`INSERT INTO design_files (id, project_id, filename, original_name, file_type, file_url, thumbnail_url,
			storage_path, thumbnail_path, file_size, width, height, status, created_at)
		 VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?)`,
		f.ID, f.ProjectID, f.Filename, f.OriginalName, f.FileType, f.FileURL, f.ThumbnailURL,
		f.StoragePath, f.ThumbnailPath, f.FileSize, nullableInt(f.Width), nullableInt(f.Height), f.Status,
		toUnix(f.CreatedAt))
	if err != nil {
		return fmt.Errorf("insert design file: %w", err)
	}

	res, err := tx.ExecContext(ctx,
		`UPDATE projects SET status = ?, thumbnail = COALESCE(NULLIF(?, ''), thumbnail), file_size = ?, updated_at = ?
		 WHERE id = ?`,
		update.Status, update.Thumbnail, update.FileSize, toUnix(update.UpdatedAt), f.ProjectID)
	if err != nil {
		return fmt.Errorf("update project: %w", err)
	}
	if n, _ := res.RowsAffected(); n == 0 {
		err = ErrNotFound
		return err
	}

	if err = tx.Commit(); err != nil {
		return fmt.Errorf("commit transaction: %w", err)
	}
	return nil
}

const designFileColumns = `id, project_id, filename, original_name, file_type, file_url, thumbnail_url,
	storage_path, thumbnail_path, file_size, width, height, status, created_at`

func scanSQLiteDesignFile(row rowScanner) (*DesignFile, error) {
	var f DesignFile
	var width, height sql.NullInt64
	var created int64
	if err := row.Scan(&f.ID, &f.ProjectID, &f.Filename, &f.OriginalName, &f.FileType, &f.FileURL, &f.ThumbnailURL,
		&f.StoragePath, &f.ThumbnailPath, &f.FileSize, &width, &height, &f.Status, &created); err != nil {
		return nil, err
	}
	f.Width = intPtr(width)
	f.Height = intPtr(height)
	f.CreatedAt = fromUnix(created)
	return &f, nil
}

func (s *SQLiteDatabase) GetDesignFileByID(ctx context.Context, id string) (*DesignFile, error) {
	f, err := scanSQLiteDesignFile(s.db.QueryRowContext(ctx,
		`SELECT `+designFileColumns+` FROM design_files WHERE id = ?`, id))
	if errors.Is(err, sql.ErrNoRows) {
		return nil, ErrNotFound
	}
	if err != nil {
		return nil, fmt.Errorf("get design file: %w", err)
	}
	return f, nil
}

func (s *SQLiteDatabase) ListDesignFilesByProject(ctx context.Context, projectID string) ([]*DesignFile, error) {
	rows, err := s.db.QueryContext(ctx,
		`SELECT `+designFileColumns+` FROM design_files WHERE project_id = ? ORDER BY created_at DESC, id DESC`, projectID)
	if err != nil {
		return nil, fmt.Errorf("list design files: %w", err)
	}
	defer func() {
		_ = rows.Close()
	}()

	files := []*DesignFile{}
	for rows.Next() {
		f, err := scanSQLiteDesignFile(rows)
		if err != nil {
			return nil, fmt.Errorf("scan design file: %w", err)
		}
		files = append(files, f)
	}
	return files, rows.Err()
}

func (s *SQLiteDatabase) DeleteDesignFile(ctx context.Context, id string) error {
	res, err := s.db.ExecContext(ctx, `DELETE FROM design_files WHERE id = ?`, id)
	if err != nil {
		return fmt.Errorf("delete design file: %w", err)
	}
	if n, _ := res.RowsAffected(); n == 0 {
		return ErrNotFound
	}
	return nil
}

func (s *SQLiteDatabase) ListStoragePaths(ctx context.Context) ([]string, error) {
	rows, err := s.db.QueryContext(ctx,
		`SELECT storage_path FROM design_files
		 UNION SELECT thumbnail_path FROM design_files WHERE thumbnail_path <> ''`)
	if err != nil {
		return nil, fmt.Errorf("list storage paths: %w", err)
	}
	defer func() {
		_ = rows.Close()
	}()

	var paths []string
	for rows.Next() {
		var p string
		if err := rows.Scan(&p); err != nil {
			return nil, fmt.Errorf("scan storage path: %w", err)
		}
		paths = append(paths, p)
	}
	return paths, rows.Err()
}

func (s *SQLiteDatabase) UpsertTemplate(ctx context.Context, t *Template) error {
	ensureID(&t.ID)
	now := time.Now().UTC()
	if t.CreatedAt.IsZero() {
		t.CreatedAt = now
	}
	t.UpdatedAt = now
	err := s.db.QueryRowContext(ctx,
		`INSERT INTO templates (id, name, slug, description, category, thumbnail, is_premium, is_public, sort_order, created_at, updated_at)
		 VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?)
		 ON CONFLICT (slug) DO UPDATE SET
			name = excluded.name,
			description = excluded.description,
			category = excluded.category,
			thumbnail = excluded.thumbnail,
			is_premium = excluded.is_premium,
			is_public = excluded.is_public,
			sort_order = excluded.sort_order,
			updated_at = excluded.updated_at
		 RETURNING id`,
		t.ID, t.Name, t.Slug, t.Description, t.Category, t.Thumbnail, t.IsPremium, t.IsPublic, t.SortOrder,
		toUnix(t.CreatedAt), toUnix(t.UpdatedAt)).Scan(&t.ID)
	if err != nil {
		return fmt.Errorf("upsert template: %w", err)
	}
	return nil
}

func (s *SQLiteDatabase) ListTemplates(ctx context.Context, publicOnly bool) ([]*Template, error) {
	query := `SELECT id, name, slug, description, category, thumbnail, is_premium, is_public, sort_order, created_at, updated_at
		FROM templates`
	if publicOnly {
		query += ` WHERE is_public = 1`
	}
	query += ` ORDER BY sort_order ASC, name ASC`

	rows, err := s.db.QueryContext(ctx, query)
	if err != nil {
		return nil, fmt.Errorf("list templates: %w", err)
	}
	defer func() {
		_ = rows.Close()
	}()

	templates := []*Template{}
	for rows.Next() {
		var t Template
		var created, updated int64
		if err := rows.Scan(&t.ID, &t.Name, &t.Slug, &t.Description, &t.Category, &t.Thumbnail,
			&t.IsPremium, &t.IsPublic, &t.SortOrder, &created, &updated); err != nil {
			return nil, fmt.Errorf("scan template: %w", err)
		}
		t.CreatedAt = fromUnix(created)
		t.UpdatedAt = fromUnix(updated)
		templates = append(templates, &t)
	}
	return templates, rows.Err()
}
