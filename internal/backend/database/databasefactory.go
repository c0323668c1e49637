package database

import (
	"context"
	"fmt"
	"log/slog"
)

func NewDatabase(ctx context.Context, databaseType, connectionString string) (database DatabaseService, err error) {
	switch databaseType {
	case "sqlite":
		database, err = NewSQLiteDatabase(connectionString)
	case "postgres":
		database, err = NewPostgresDatabase(ctx, connectionString)
	default:
		return nil, fmt.Errorf("unsupported database driver: %s", databaseType)
	}
	if err != nil {
		return nil, err
	}

	// in-memory SQLite starts empty on every run
	slog.Info("initializing database schema", "type", databaseType)
	if err = database.CreateDatabase(ctx); err != nil {
		_ = database.Close()
		return nil, fmt.Errorf("failed to create database: %w", err)
	}

	return database, nil
}
