package core

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"path/filepath"
	"strings"
	"time"

	"github.com/jo-hoe/designcase/internal/backend/database"
	"github.com/jo-hoe/designcase/internal/backend/optimizer"
	"github.com/jo-hoe/designcase/internal/backend/storage"
	"github.com/jo-hoe/designcase/internal/backend/validation"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/codes"
	"go.opentelemetry.io/otel/trace"
)

// UploadRequest is one incoming file. A nil Data means no file was supplied.
type UploadRequest struct {
	UserID      string
	ProjectID   string
	Filename    string
	ContentType string
	Data        []byte
}

type UploadResult struct {
	File         *database.DesignFile
	OriginalURL  string
	ThumbnailURL string
	// Metadata is nil for non-images and for images that could not be decoded
	Metadata *optimizer.ImageMetadata
}

// Upload validates, optimizes, stores and records one file. Optimization and thumbnailing
// degrade silently; every returned error is a *ServiceError.
func (service *CoreService) Upload(ctx context.Context, req UploadRequest) (result *UploadResult, err error) {
	start := service.now()
	ctx, span := service.tracer.Start(ctx, "upload", trace.WithAttributes(
		attribute.String("project.id", req.ProjectID),
		attribute.Int("upload.bytes", len(req.Data)),
	))
	defer func() {
		outcome := "success"
		var stored int64
		if err != nil {
			outcome = CodeOf(err)
			span.SetStatus(codes.Error, outcome)
		} else {
			stored = result.File.FileSize
		}
		service.observer.RecordUpload(service.now().Sub(start), outcome, stored)
		span.End()
	}()

	if _, err := service.databaseService.GetProjectForUser(ctx, req.ProjectID, req.UserID); err != nil {
		if errors.Is(err, database.ErrNotFound) {
			return nil, notFoundError(CodeProjectNotFound, "Project not found or unauthorized")
		}
		return nil, upstreamError(CodeUploadError, "Upload failed", err)
	}

	if req.Data == nil {
		return nil, validationError(CodeNoFile, "No file provided", nil)
	}

	fileType, err := service.validator.Validate(req.Filename, req.ContentType, int64(len(req.Data)))
	if err != nil {
		if errors.Is(err, validation.ErrFileTooLarge) {
			return nil, validationError(CodeFileTooLarge,
				fmt.Sprintf("File size exceeds %dMB limit", service.validator.MaxSize()/1024/1024), err)
		}
		return nil, validationError(CodeUnsupportedFileType, "Invalid file type. Allowed: PNG, JPG, SVG, WEBP, PDF", err)
	}

	ext := strings.ToLower(filepath.Ext(req.Filename))
	generatedName := service.newID() + ext

	optimized := service.optimize(ctx, req.Data, ext)

	mainKey := storage.ObjectKey(req.UserID, req.ProjectID, generatedName)
	if _, err := service.storage.Put(ctx, mainKey, optimized.Data, fileType.MIME); err != nil {
		service.observer.RecordStorageError("put")
		slog.Error("main file upload failed", "key", mainKey, "error", err)
		return nil, upstreamError(CodeUploadError, "Storage upload failed", err)
	}
	fileURL := service.storage.PublicURL(mainKey)

	thumbnailKey, thumbnailURL := service.storeThumbnail(ctx, req, optimized, fileType.Raster)

	file := &database.DesignFile{
		ID:            service.newID(),
		ProjectID:     req.ProjectID,
		Filename:      generatedName,
		OriginalName:  req.Filename,
		FileType:      fileType.MIME,
		FileURL:       fileURL,
		ThumbnailURL:  thumbnailURL,
		StoragePath:   mainKey,
		ThumbnailPath: thumbnailKey,
		FileSize:      int64(len(optimized.Data)),
		Status:        database.DesignFileStatusUploaded,
		CreatedAt:     service.now(),
	}
	if optimized.Metadata != nil {
		file.FileType = optimized.Metadata.Format
		width, height := optimized.Metadata.Width, optimized.Metadata.Height
		file.Width = &width
		file.Height = &height
	}

	update := database.ProjectUpdate{
		Status:    database.ProjectStatusProcessing,
		Thumbnail: thumbnailURL,
		FileSize:  file.FileSize,
		UpdatedAt: file.CreatedAt,
	}
	if err := service.databaseService.CreateDesignFile(ctx, file, update); err != nil {
		slog.Error("persisting design file failed; removing stored objects", "project_id", req.ProjectID, "error", err)
		service.compensate(mainKey, thumbnailKey)
		return nil, upstreamError(CodeUploadError, "Failed to save file metadata", err)
	}

	slog.Info("file uploaded",
		"design_file_id", file.ID,
		"project_id", req.ProjectID,
		"original_bytes", len(req.Data),
		"stored_bytes", file.FileSize,
		"thumbnail", thumbnailURL != "")

	return &UploadResult{
		File:         file,
		OriginalURL:  fileURL,
		ThumbnailURL: thumbnailURL,
		Metadata:     optimized.Metadata,
	}, nil
}

func (service *CoreService) optimize(ctx context.Context, data []byte, ext string) optimizer.Result {
	_, span := service.tracer.Start(ctx, "upload.optimize")
	defer span.End()

	result := service.optimizer.Optimize(data, ext)
	if result.Degraded != nil {
		service.observer.RecordDegraded("optimize")
		span.RecordError(result.Degraded)
	}
	span.SetAttributes(attribute.Bool("optimized", result.Optimized), attribute.Int("stored.bytes", len(result.Data)))
	return result
}

// storeThumbnail returns empty strings whenever the thumbnail is skipped or fails
func (service *CoreService) storeThumbnail(ctx context.Context, req UploadRequest, optimized optimizer.Result, raster bool) (string, string) {
	ctx, span := service.tracer.Start(ctx, "upload.thumbnail")
	defer span.End()

	thumb := service.thumbnails.Generate(optimized.Data, raster, optimized.Metadata != nil)
	if thumb.Skipped {
		return "", ""
	}
	if !thumb.Ok() {
		service.observer.RecordDegraded("thumbnail")
		span.RecordError(thumb.Degraded)
		return "", ""
	}

	key := storage.ObjectKey(req.UserID, req.ProjectID, "thumbnails", service.newID()+thumb.Extension)
	if _, err := service.storage.Put(ctx, key, thumb.Data, thumb.ContentType); err != nil {
		service.observer.RecordStorageError("put_thumbnail")
		service.observer.RecordDegraded("thumbnail")
		slog.Warn("thumbnail upload failed (non-critical)", "key", key, "error", err)
		span.RecordError(err)
		return "", ""
	}
	return key, service.storage.PublicURL(key)
}

// compensate removes objects of an upload that could not be recorded. It runs detached
// from the request context so a cancelled client does not leave orphans behind.
func (service *CoreService) compensate(keys ...string) {
	ctx, cancel := context.WithTimeout(context.Background(), 30*time.Second)
	defer cancel()
	for _, key := range keys {
		if key == "" {
			continue
		}
		if err := service.storage.Delete(ctx, key); err != nil {
			service.observer.RecordStorageError("delete")
			slog.Warn("compensating delete failed; object left for reconciliation", "key", key, "error", err)
		}
	}
}
