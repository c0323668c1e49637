package core

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"log/slog"
	"time"

	"github.com/jo-hoe/designcase/internal/backend/cache"
	"github.com/jo-hoe/designcase/internal/backend/database"
	"github.com/jo-hoe/designcase/internal/backend/storage"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/trace"
)

const (
	DefaultSignedURLTTL = time.Hour
	MinSignedURLTTL     = time.Minute
	MaxSignedURLTTL     = 7 * 24 * time.Hour
)

type SignedURL struct {
	URL       string
	ExpiresIn time.Duration
}

// cachedSignedURL is the cache representation; ExpiresAt is the unix millisecond the URL stops working
type cachedSignedURL struct {
	URL       string `json:"url"`
	ExpiresAt int64  `json:"expiresAt"`
}

func withFileID(id string) trace.SpanStartOption {
	return trace.WithAttributes(attribute.String("design_file.id", id))
}

// ownedDesignFile loads a file and checks that its project belongs to userID
func (service *CoreService) ownedDesignFile(ctx context.Context, designFileID, userID, failureCode string) (*database.DesignFile, error) {
	file, err := service.databaseService.GetDesignFileByID(ctx, designFileID)
	if errors.Is(err, database.ErrNotFound) {
		return nil, notFoundError(CodeFileNotFound, "File not found")
	}
	if err != nil {
		return nil, upstreamError(failureCode, "Failed to load file", err)
	}

	project, err := service.databaseService.GetProjectByID(ctx, file.ProjectID)
	if errors.Is(err, database.ErrNotFound) {
		return nil, notFoundError(CodeFileNotFound, "File not found")
	}
	if err != nil {
		return nil, upstreamError(failureCode, "Failed to load project", err)
	}
	if project.UserID != userID {
		return nil, newError(KindAuthorization, CodeUnauthorized, "Unauthorized", nil)
	}
	return file, nil
}

// DeleteDesignFile removes the stored objects best-effort and then the metadata row.
// A second call for the same id answers FILE_NOT_FOUND.
func (service *CoreService) DeleteDesignFile(ctx context.Context, designFileID, userID string) error {
	ctx, span := service.tracer.Start(ctx, "delete", withFileID(designFileID))
	defer span.End()

	file, err := service.ownedDesignFile(ctx, designFileID, userID, CodeDeleteError)
	if err != nil {
		return err
	}

	for _, key := range []string{file.StoragePath, file.ThumbnailPath} {
		if key == "" {
			continue
		}
		if err := service.storage.Delete(ctx, key); err != nil {
			service.observer.RecordStorageError("delete")
			slog.Warn("failed to delete stored object", "key", key, "design_file_id", file.ID, "error", err)
		}
	}

	if err := service.databaseService.DeleteDesignFile(ctx, file.ID); err != nil {
		if errors.Is(err, database.ErrNotFound) {
			return notFoundError(CodeFileNotFound, "File not found")
		}
		return upstreamError(CodeDeleteError, "Delete failed", err)
	}

	slog.Info("file deleted", "design_file_id", file.ID, "project_id", file.ProjectID)
	return nil
}

// ListDesignFiles returns the files of an owned project, newest first
func (service *CoreService) ListDesignFiles(ctx context.Context, projectID, userID string) ([]*database.DesignFile, error) {
	if _, err := service.databaseService.GetProjectForUser(ctx, projectID, userID); err != nil {
		if errors.Is(err, database.ErrNotFound) {
			return nil, notFoundError(CodeProjectNotFound, "Project not found or unauthorized")
		}
		return nil, upstreamError(CodeListError, "Failed to list files", err)
	}

	files, err := service.databaseService.ListDesignFilesByProject(ctx, projectID)
	if err != nil {
		return nil, upstreamError(CodeListError, "Failed to list files", err)
	}
	return files, nil
}

// SignedURL issues a time-limited URL for the main object of a design file. A zero ttl
// selects DefaultSignedURLTTL. Issued URLs are cached for half their lifetime and
// ExpiresIn always reports the time the returned URL has left.
func (service *CoreService) SignedURL(ctx context.Context, designFileID, userID string, ttl time.Duration) (*SignedURL, error) {
	if ttl == 0 {
		ttl = DefaultSignedURLTTL
	}
	if ttl < MinSignedURLTTL || ttl > MaxSignedURLTTL {
		return nil, validationError(CodeValidation,
			fmt.Sprintf("ttl must be between %d and %d seconds", int(MinSignedURLTTL.Seconds()), int(MaxSignedURLTTL.Seconds())), nil)
	}

	ctx, span := service.tracer.Start(ctx, "signed_url", withFileID(designFileID))
	defer span.End()

	file, err := service.ownedDesignFile(ctx, designFileID, userID, CodeSignError)
	if err != nil {
		return nil, err
	}

	cacheKey := fmt.Sprintf("signed:%s:%d", file.ID, int(ttl.Seconds()))
	if signed, ok := service.lookupSignedURL(ctx, cacheKey); ok {
		span.SetAttributes(attribute.Bool("cache.hit", true))
		return signed, nil
	}

	value, err, _ := service.signGroup.Do(cacheKey, func() (any, error) {
		// shared by every waiting caller, so one disconnecting client must not cancel it
		signCtx := context.WithoutCancel(ctx)
		expiresAt := service.now().Add(ttl)
		url, err := service.storage.SignedURL(signCtx, file.StoragePath, ttl)
		if err != nil {
			return cachedSignedURL{}, err
		}
		entry := cachedSignedURL{URL: url, ExpiresAt: expiresAt.UnixMilli()}
		if encoded, err := json.Marshal(entry); err != nil {
			slog.Warn("signed url cache encode failed", "key", cacheKey, "error", err)
		} else if err := service.cache.Set(signCtx, cacheKey, string(encoded), ttl/2); err != nil {
			slog.Warn("signed url cache write failed", "key", cacheKey, "error", err)
		}
		return entry, nil
	})
	if err != nil {
		service.observer.RecordStorageError("sign")
		if errors.Is(err, storage.ErrObjectNotFound) {
			return nil, notFoundError(CodeFileNotFound, "File not found")
		}
		return nil, upstreamError(CodeSignError, "Failed to create signed URL", err)
	}
	return service.signedURLFrom(value.(cachedSignedURL)), nil
}

// lookupSignedURL returns a cached URL that still has time left
func (service *CoreService) lookupSignedURL(ctx context.Context, key string) (*SignedURL, bool) {
	raw, err := service.cache.Get(ctx, key)
	if err != nil {
		if !errors.Is(err, cache.ErrMiss) {
			slog.Warn("signed url cache read failed", "key", key, "error", err)
		}
		return nil, false
	}
	var entry cachedSignedURL
	if err := json.Unmarshal([]byte(raw), &entry); err != nil || entry.URL == "" {
		slog.Warn("signed url cache entry unreadable", "key", key, "error", err)
		return nil, false
	}
	signed := service.signedURLFrom(entry)
	if signed.ExpiresIn <= 0 {
		return nil, false
	}
	return signed, true
}

func (service *CoreService) signedURLFrom(entry cachedSignedURL) *SignedURL {
	remaining := time.UnixMilli(entry.ExpiresAt).Sub(service.now()).Round(time.Second)
	return &SignedURL{URL: entry.URL, ExpiresIn: max(remaining, 0)}
}
