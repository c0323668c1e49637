package core

import (
	"bytes"
	"context"
	"errors"
	"image"
	"strings"
	"testing"

	"github.com/jo-hoe/designcase/internal/backend/database"
	"github.com/jo-hoe/designcase/internal/backend/optimizer"
	"github.com/jo-hoe/designcase/internal/backend/thumbnail"
)

type stubOptimizer struct {
	result optimizer.Result
}

func (o stubOptimizer) Optimize([]byte, string) optimizer.Result {
	return o.result
}

func TestUpload_LargePNGIsOptimizedAndThumbnailed(t *testing.T) {
	const optimizedSize = 8 * 1024 * 1024

	// a real 2000x2000 PNG padded after IEND still decodes, which lets the
	// thumbnail chain run on an 8 MiB optimized payload
	optimized := gradientPNG(t, 2000, 2000)
	if len(optimized) > optimizedSize {
		t.Fatalf("fixture too large: %d bytes", len(optimized))
	}
	optimized = append(optimized, make([]byte, optimizedSize-len(optimized))...)

	env := newTestEnv(t, func(deps *Dependencies) {
		deps.Optimizer = stubOptimizer{result: optimizer.Result{
			Data:      optimized,
			Metadata:  &optimizer.ImageMetadata{Width: 2000, Height: 2000, Format: "png"},
			Optimized: true,
		}}
	})

	result, err := env.service.Upload(context.Background(), UploadRequest{
		UserID:      ownerID,
		ProjectID:   env.project.ID,
		Filename:    "board.png",
		ContentType: "image/png",
		Data:        make([]byte, 10*1024*1024),
	})
	if err != nil {
		t.Fatalf("Upload error: %v", err)
	}

	if result.Metadata == nil || result.Metadata.Width != 2000 || result.Metadata.Height != 2000 || result.Metadata.Format != "png" {
		t.Fatalf("unexpected metadata: %+v", result.Metadata)
	}
	if result.File.FileSize != optimizedSize {
		t.Errorf("fileSize = %d, want %d", result.File.FileSize, optimizedSize)
	}
	stored, ok := env.store.object(result.File.StoragePath)
	if !ok || len(stored) != optimizedSize {
		t.Fatalf("stored object missing or wrong size: %d", len(stored))
	}
	if result.ThumbnailURL == "" {
		t.Fatal("expected a thumbnail URL")
	}

	thumb, ok := env.store.object(result.File.ThumbnailPath)
	if !ok {
		t.Fatalf("thumbnail %s not stored", result.File.ThumbnailPath)
	}
	cfg, format, err := image.DecodeConfig(bytes.NewReader(thumb))
	if err != nil {
		t.Fatalf("thumbnail does not decode: %v", err)
	}
	if cfg.Width != 400 || cfg.Height != 400 || format != "jpeg" {
		t.Errorf("thumbnail = %dx%d %s, want 400x400 jpeg", cfg.Width, cfg.Height, format)
	}

	wantPrefix := ownerID + "/" + env.project.ID + "/"
	if !strings.HasPrefix(result.File.StoragePath, wantPrefix) || !strings.HasSuffix(result.File.StoragePath, ".png") {
		t.Errorf("unexpected storage path %s", result.File.StoragePath)
	}
	if !strings.HasPrefix(result.File.ThumbnailPath, wantPrefix+"thumbnails/") {
		t.Errorf("unexpected thumbnail path %s", result.File.ThumbnailPath)
	}
}

func TestUpload_CorruptPNGStoresOriginal(t *testing.T) {
	env := newTestEnv(t, nil)
	data := []byte("\x89PNG\r\n\x1a\nthis is not really a png")

	result, err := env.service.Upload(context.Background(), UploadRequest{
		UserID:    ownerID,
		ProjectID: env.project.ID,
		Filename:  "broken.png",
		Data:      data,
	})
	if err != nil {
		t.Fatalf("Upload error: %v", err)
	}

	if result.Metadata != nil {
		t.Errorf("expected no metadata, got %+v", result.Metadata)
	}
	if result.File.Width != nil || result.File.Height != nil {
		t.Error("expected width and height to be absent")
	}
	if result.ThumbnailURL != "" || result.File.ThumbnailURL != "" {
		t.Errorf("expected empty thumbnail URL, got %q", result.ThumbnailURL)
	}
	if result.File.FileSize != int64(len(data)) {
		t.Errorf("fileSize = %d, want %d", result.File.FileSize, len(data))
	}
	stored, _ := env.store.object(result.File.StoragePath)
	if !bytes.Equal(stored, data) {
		t.Error("expected the original bytes to be stored")
	}
}

func TestUpload_OversizedImageIsStoredWithoutDecoding(t *testing.T) {
	tests := []struct {
		name      string
		data      []byte
		configure func(deps *Dependencies)
	}{
		{
			name: "declared size above default limit",
			data: oversizedPNG(16000, 20000),
		},
		{
			name: "decodable image above configured limit",
			data: gradientPNG(t, 1200, 1000),
			configure: func(deps *Dependencies) {
				settings := optimizer.DefaultSettings()
				settings.MaxPixels = 1000 * 1000
				deps.Optimizer = optimizer.NewOptimizer(settings)
				generator, _ := thumbnail.NewGenerator(nil)
				deps.Thumbnails = generator.WithMaxPixels(1000 * 1000)
			},
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			env := newTestEnv(t, tt.configure)

			result, err := env.service.Upload(context.Background(), UploadRequest{
				UserID:    ownerID,
				ProjectID: env.project.ID,
				Filename:  "poster.png",
				Data:      tt.data,
			})
			if err != nil {
				t.Fatalf("Upload error: %v", err)
			}

			if result.Metadata != nil {
				t.Errorf("expected no metadata, got %+v", result.Metadata)
			}
			if result.ThumbnailURL != "" || result.File.ThumbnailPath != "" {
				t.Errorf("expected no thumbnail, got %q", result.ThumbnailURL)
			}
			stored, ok := env.store.object(result.File.StoragePath)
			if !ok || !bytes.Equal(stored, tt.data) {
				t.Error("expected the original bytes to be stored")
			}
			if got := env.store.mutations(); got != 1 {
				t.Errorf("expected only the main object to be written, got %d mutations", got)
			}
		})
	}
}

func TestUpload_RealPNGKeepsSmallerEncoding(t *testing.T) {
	env := newTestEnv(t, nil)
	data := gradientPNG(t, 640, 480)

	result, err := env.service.Upload(context.Background(), UploadRequest{
		UserID:    ownerID,
		ProjectID: env.project.ID,
		Filename:  "Hero Shot.PNG",
		Data:      data,
	})
	if err != nil {
		t.Fatalf("Upload error: %v", err)
	}

	if result.File.FileSize > int64(len(data)) {
		t.Errorf("stored %d bytes, more than the %d uploaded", result.File.FileSize, len(data))
	}
	if result.File.OriginalName != "Hero Shot.PNG" || !strings.HasSuffix(result.File.Filename, ".png") {
		t.Errorf("unexpected names: %s / %s", result.File.OriginalName, result.File.Filename)
	}
	if result.File.FileType != "png" {
		t.Errorf("fileType = %s, want png", result.File.FileType)
	}
	if result.File.Width == nil || *result.File.Width != 640 || *result.File.Height != 480 {
		t.Errorf("unexpected dimensions %v x %v", result.File.Width, result.File.Height)
	}
	if result.File.Status != database.DesignFileStatusUploaded {
		t.Errorf("status = %s", result.File.Status)
	}
	if result.OriginalURL != "https://cdn.test/"+result.File.StoragePath {
		t.Errorf("unexpected original URL %s", result.OriginalURL)
	}

	project, err := env.db.GetProjectByID(context.Background(), env.project.ID)
	if err != nil {
		t.Fatalf("GetProjectByID error: %v", err)
	}
	if project.Status != database.ProjectStatusProcessing {
		t.Errorf("project status = %s, want PROCESSING", project.Status)
	}
	if project.Thumbnail != result.ThumbnailURL || project.FileSize != result.File.FileSize {
		t.Errorf("project not updated: %+v", project)
	}
}

func TestUpload_NonImagesHaveNoMetadataOrThumbnail(t *testing.T) {
	tests := []struct {
		filename string
		data     []byte
		fileType string
	}{
		{"brief.pdf", []byte("%PDF-1.7\n%%EOF"), "application/pdf"},
		{"logo.svg", []byte(`<svg xmlns="http://www.w3.org/2000/svg" width="10" height="10"/>`), "image/svg+xml"},
	}

	for _, tt := range tests {
		t.Run(tt.filename, func(t *testing.T) {
			env := newTestEnv(t, nil)
			result, err := env.service.Upload(context.Background(), UploadRequest{
				UserID:    ownerID,
				ProjectID: env.project.ID,
				Filename:  tt.filename,
				Data:      tt.data,
			})
			if err != nil {
				t.Fatalf("Upload error: %v", err)
			}
			if result.Metadata != nil || result.File.Width != nil {
				t.Errorf("expected no metadata, got %+v", result.Metadata)
			}
			if result.ThumbnailURL != "" {
				t.Errorf("expected empty thumbnail URL, got %q", result.ThumbnailURL)
			}
			if result.File.FileSize != int64(len(tt.data)) {
				t.Errorf("fileSize = %d, want %d", result.File.FileSize, len(tt.data))
			}
			if result.File.FileType != tt.fileType {
				t.Errorf("fileType = %s, want %s", result.File.FileType, tt.fileType)
			}
			if env.store.mutations() != 1 {
				t.Errorf("expected exactly one storage put, got %d mutations", env.store.mutations())
			}
		})
	}
}

func TestUpload_RejectionsHaveNoSideEffects(t *testing.T) {
	tests := []struct {
		name string
		req  func(env *testEnv) UploadRequest
		code string
	}{
		{
			name: "unsupported extension",
			req: func(env *testEnv) UploadRequest {
				return UploadRequest{UserID: ownerID, ProjectID: env.project.ID, Filename: "setup.exe", Data: []byte("MZ")}
			},
			code: CodeUnsupportedFileType,
		},
		{
			name: "unsupported declared type",
			req: func(env *testEnv) UploadRequest {
				return UploadRequest{UserID: ownerID, ProjectID: env.project.ID, Filename: "a.png", ContentType: "text/html", Data: []byte("x")}
			},
			code: CodeUnsupportedFileType,
		},
		{
			name: "too large",
			req: func(env *testEnv) UploadRequest {
				return UploadRequest{UserID: ownerID, ProjectID: env.project.ID, Filename: "huge.pdf", Data: make([]byte, 50*1024*1024+1)}
			},
			code: CodeFileTooLarge,
		},
		{
			name: "too large with unsupported type",
			req: func(env *testEnv) UploadRequest {
				return UploadRequest{UserID: ownerID, ProjectID: env.project.ID, Filename: "huge.exe", Data: make([]byte, 50*1024*1024+1)}
			},
			code: CodeFileTooLarge,
		},
		{
			name: "no file",
			req: func(env *testEnv) UploadRequest {
				return UploadRequest{UserID: ownerID, ProjectID: env.project.ID}
			},
			code: CodeNoFile,
		},
		{
			name: "project of another user",
			req: func(env *testEnv) UploadRequest {
				return UploadRequest{UserID: strangerID, ProjectID: env.project.ID, Filename: "a.png", Data: gradientPNG(t, 4, 4)}
			},
			code: CodeProjectNotFound,
		},
		{
			name: "unknown project",
			req: func(env *testEnv) UploadRequest {
				return UploadRequest{UserID: ownerID, ProjectID: "3f0e3c52-9f2a-4b7e-a1d4-2f0b8d1c0e11", Filename: "a.png", Data: gradientPNG(t, 4, 4)}
			},
			code: CodeProjectNotFound,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			env := newTestEnv(t, nil)
			_, err := env.service.Upload(context.Background(), tt.req(env))
			requireCode(t, err, tt.code)
			if env.store.mutations() != 0 {
				t.Errorf("expected no storage calls, got %d", env.store.mutations())
			}
			files, err := env.db.ListDesignFilesByProject(context.Background(), env.project.ID)
			if err != nil {
				t.Fatalf("ListDesignFilesByProject error: %v", err)
			}
			if len(files) != 0 {
				t.Errorf("expected no design files, got %d", len(files))
			}
		})
	}
}

func TestUpload_MainStorageFailureAborts(t *testing.T) {
	env := newTestEnv(t, nil)
	env.store.failPut = func(string) error { return errors.New("bucket unavailable") }

	_, err := env.service.Upload(context.Background(), UploadRequest{
		UserID: ownerID, ProjectID: env.project.ID, Filename: "a.png", Data: gradientPNG(t, 8, 8),
	})
	requireCode(t, err, CodeUploadError)
	if !IsKind(err, KindUpstream) {
		t.Errorf("expected upstream kind, got %v", err)
	}

	files, _ := env.db.ListDesignFilesByProject(context.Background(), env.project.ID)
	if len(files) != 0 {
		t.Errorf("expected no design files, got %d", len(files))
	}
}

func TestUpload_ThumbnailStorageFailureDegrades(t *testing.T) {
	env := newTestEnv(t, nil)
	env.store.failPut = func(key string) error {
		if strings.Contains(key, "/thumbnails/") {
			return errors.New("quota exceeded")
		}
		return nil
	}

	result, err := env.service.Upload(context.Background(), UploadRequest{
		UserID: ownerID, ProjectID: env.project.ID, Filename: "a.png", Data: gradientPNG(t, 64, 64),
	})
	if err != nil {
		t.Fatalf("Upload error: %v", err)
	}
	if result.ThumbnailURL != "" || result.File.ThumbnailPath != "" {
		t.Errorf("expected no thumbnail, got %q", result.ThumbnailURL)
	}
	if result.Metadata == nil {
		t.Error("expected metadata for a decodable image")
	}
}

func TestUpload_PersistFailureRemovesStoredObjects(t *testing.T) {
	env := newTestEnv(t, func(deps *Dependencies) {
		deps.Database = failingDesignFiles{DatabaseService: deps.Database}
	})

	_, err := env.service.Upload(context.Background(), UploadRequest{
		UserID: ownerID, ProjectID: env.project.ID, Filename: "a.png", Data: gradientPNG(t, 64, 64),
	})
	requireCode(t, err, CodeUploadError)

	if len(env.store.puts) != 2 {
		t.Fatalf("expected main and thumbnail puts, got %v", env.store.puts)
	}
	if len(env.store.deletes) != 2 {
		t.Fatalf("expected compensating deletes for %v, got %v", env.store.puts, env.store.deletes)
	}
	objects, _ := env.store.List(context.Background(), "")
	if len(objects) != 0 {
		t.Errorf("expected no orphaned objects, got %v", objects)
	}
}

func TestUpload_ConcurrentUploadsUseDistinctPaths(t *testing.T) {
	env := newTestEnv(t, nil)
	data := []byte("%PDF-1.4\n%%EOF")

	const uploads = 8
	errs := make(chan error, uploads)
	for i := 0; i < uploads; i++ {
		go func() {
			_, err := env.service.Upload(context.Background(), UploadRequest{
				UserID: ownerID, ProjectID: env.project.ID, Filename: "brief.pdf", Data: data,
			})
			errs <- err
		}()
	}
	for i := 0; i < uploads; i++ {
		if err := <-errs; err != nil {
			t.Fatalf("Upload error: %v", err)
		}
	}

	files, err := env.service.ListDesignFiles(context.Background(), env.project.ID, ownerID)
	if err != nil {
		t.Fatalf("ListDesignFiles error: %v", err)
	}
	seen := map[string]bool{}
	for _, f := range files {
		if seen[f.StoragePath] {
			t.Fatalf("duplicate storage path %s", f.StoragePath)
		}
		seen[f.StoragePath] = true
	}
	if len(seen) != uploads {
		t.Errorf("expected %d files, got %d", uploads, len(seen))
	}
}
