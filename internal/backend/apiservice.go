package backend

import (
	"errors"
	"fmt"
	"io"
	"log/slog"
	"mime/multipart"
	"net/http"
	"net/url"
	"path"
	"time"

	"github.com/jo-hoe/designcase/internal/backend/auth"
	"github.com/jo-hoe/designcase/internal/backend/database"
	"github.com/jo-hoe/designcase/internal/backend/optimizer"
	"github.com/jo-hoe/designcase/internal/backend/storage"
	"github.com/jo-hoe/designcase/internal/core"
	"github.com/labstack/echo/v4"
	"github.com/labstack/echo/v4/middleware"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

// multipartOverhead leaves room for boundaries and headers around the file part
const multipartOverhead = 1 << 20

// Codes for failures the framework produces before a handler runs
const (
	codeNotFound         = "NOT_FOUND"
	codeMethodNotAllowed = "METHOD_NOT_ALLOWED"
	codeInternal         = "INTERNAL_ERROR"
)

var statusByCode = map[string]int{
	core.CodeNoFile:              http.StatusBadRequest,
	core.CodeValidation:          http.StatusBadRequest,
	core.CodeUnauthenticated:     http.StatusUnauthorized,
	core.CodeUnauthorized:        http.StatusForbidden,
	core.CodeProjectNotFound:     http.StatusNotFound,
	core.CodeFileNotFound:        http.StatusNotFound,
	core.CodeFileTooLarge:        http.StatusRequestEntityTooLarge,
	core.CodeUnsupportedFileType: http.StatusUnsupportedMediaType,
}

type APIService struct {
	config      *core.ServiceConfig
	coreService *core.CoreService
	gatherer    prometheus.Gatherer
}

type errorResponse struct {
	Error string `json:"error"`
	Code  string `json:"code"`
}

type projectPathParams struct {
	ProjectID string `param:"projectId" validate:"required,uuid"`
}

type designFilePathParams struct {
	DesignFileID string `param:"designFileId" validate:"required,uuid"`
}

type createProjectRequest struct {
	Name        string `json:"name" validate:"required,max=200"`
	Description string `json:"description" validate:"max=2000"`
}

type uploadedFile struct {
	ID           string    `json:"id"`
	Filename     string    `json:"filename"`
	OriginalName string    `json:"originalName"`
	FileSize     int64     `json:"fileSize"`
	Width        *int      `json:"width"`
	Height       *int      `json:"height"`
	Status       string    `json:"status"`
	CreatedAt    time.Time `json:"createdAt"`
}

type uploadURLs struct {
	Original  string `json:"original"`
	Thumbnail string `json:"thumbnail"`
}

// uploadMetadata renders as {} when the upload was not a decodable image
type uploadMetadata struct {
	Width  int    `json:"width,omitempty"`
	Height int    `json:"height,omitempty"`
	Format string `json:"format,omitempty"`
}

type uploadResponse struct {
	Success  bool           `json:"success"`
	File     uploadedFile   `json:"file"`
	URLs     uploadURLs     `json:"urls"`
	Metadata uploadMetadata `json:"metadata"`
}

// NewAPIService wires the JSON API. gatherer may be nil to disable the metrics route.
func NewAPIService(config *core.ServiceConfig, coreService *core.CoreService, gatherer prometheus.Gatherer) *APIService {
	return &APIService{
		config:      config,
		coreService: coreService,
		gatherer:    gatherer,
	}
}

func (service *APIService) SetRoutes(e *echo.Echo) {
	e.HTTPErrorHandler = service.errorHandler

	// Set probe route
	e.GET("/probe", func(ctx echo.Context) error {
		return ctx.String(http.StatusOK, "ok")
	})
	e.GET("/health", service.healthHandler)
	if service.gatherer != nil {
		e.GET(service.config.Telemetry.MetricsPath, echo.WrapHandler(promhttp.HandlerFor(service.gatherer, promhttp.HandlerOpts{})))
	}
	if _, ok := service.coreService.Storage().(*storage.FilesystemStorage); ok {
		e.GET(core.FilesRoutePrefix+"/*", service.fileHandler)
	}

	identity := auth.Identity(auth.Config{
		JWTSecret:  service.config.Auth.JWTSecret,
		UserHeader: service.config.Auth.UserHeader,
	})
	bodyLimit := middleware.BodyLimit(fmt.Sprintf("%dB", service.config.MaxUploadBytes+multipartOverhead))

	uploads := e.Group("/uploads", identity)
	uploads.POST("/projects/:projectId/upload", service.uploadHandler, bodyLimit)
	uploads.GET("/projects/:projectId", service.listDesignFilesHandler)
	uploads.DELETE("/:designFileId", service.deleteDesignFileHandler)
	uploads.GET("/:designFileId/signed-url", service.signedURLHandler)

	projects := e.Group("/projects", identity)
	projects.POST("", service.createProjectHandler)
	projects.GET("", service.listProjectsHandler)
	projects.GET("/:projectId", service.getProjectHandler)

	e.GET("/templates", service.listTemplatesHandler)
}

func (service *APIService) uploadHandler(ctx echo.Context) error {
	var params projectPathParams
	if err := bindPath(ctx, &params); err != nil {
		return err
	}

	req := core.UploadRequest{
		UserID:    auth.UserID(ctx),
		ProjectID: params.ProjectID,
	}

	file, err := ctx.FormFile("file")
	switch {
	case errors.Is(err, http.ErrMissingFile), errors.Is(err, http.ErrNotMultipart):
		// the core answers NO_FILE after checking project ownership
	case err != nil:
		var httpErr *echo.HTTPError
		if errors.As(err, &httpErr) {
			return httpErr
		}
		return echo.NewHTTPError(http.StatusBadRequest, "Invalid multipart request").SetInternal(err)
	default:
		data, err := readFormFile(file)
		if err != nil {
			return err
		}
		req.Filename = file.Filename
		req.ContentType = file.Header.Get(echo.HeaderContentType)
		req.Data = data
	}

	result, err := service.coreService.Upload(ctx.Request().Context(), req)
	if err != nil {
		return err
	}

	response := uploadResponse{
		Success: true,
		File: uploadedFile{
			ID:           result.File.ID,
			Filename:     result.File.Filename,
			OriginalName: result.File.OriginalName,
			FileSize:     result.File.FileSize,
			Width:        result.File.Width,
			Height:       result.File.Height,
			Status:       result.File.Status,
			CreatedAt:    result.File.CreatedAt,
		},
		URLs: uploadURLs{
			Original:  result.OriginalURL,
			Thumbnail: result.ThumbnailURL,
		},
		Metadata: toUploadMetadata(result.Metadata),
	}
	return ctx.JSON(http.StatusOK, response)
}

func readFormFile(file *multipart.FileHeader) ([]byte, error) {
	src, err := file.Open()
	if err != nil {
		return nil, fmt.Errorf("failed to open uploaded file: %w", err)
	}
	defer func() {
		if cerr := src.Close(); cerr != nil {
			slog.Error("failed to close uploaded file reader", "error", cerr, "filename", file.Filename)
		}
	}()

	data, err := io.ReadAll(src)
	if err != nil {
		return nil, fmt.Errorf("failed to read uploaded file: %w", err)
	}
	// a present but empty part still counts as a supplied file
	if data == nil {
		data = []byte{}
	}
	return data, nil
}

func toUploadMetadata(metadata *optimizer.ImageMetadata) uploadMetadata {
	if metadata == nil {
		return uploadMetadata{}
	}
	return uploadMetadata{Width: metadata.Width, Height: metadata.Height, Format: metadata.Format}
}

func (service *APIService) deleteDesignFileHandler(ctx echo.Context) error {
	var params designFilePathParams
	if err := bindDesignFileID(ctx, &params); err != nil {
		return err
	}

	if err := service.coreService.DeleteDesignFile(ctx.Request().Context(), params.DesignFileID, auth.UserID(ctx)); err != nil {
		return err
	}
	return ctx.JSON(http.StatusOK, map[string]any{
		"success": true,
		"message": "File deleted successfully",
	})
}

func (service *APIService) listDesignFilesHandler(ctx echo.Context) error {
	var params projectPathParams
	if err := bindPath(ctx, &params); err != nil {
		return err
	}

	files, err := service.coreService.ListDesignFiles(ctx.Request().Context(), params.ProjectID, auth.UserID(ctx))
	if err != nil {
		return err
	}
	return ctx.JSON(http.StatusOK, map[string]any{
		"success": true,
		"files":   files,
		"count":   len(files),
	})
}

func (service *APIService) signedURLHandler(ctx echo.Context) error {
	var params designFilePathParams
	if err := bindDesignFileID(ctx, &params); err != nil {
		return err
	}
	var ttlSeconds int64
	if err := echo.QueryParamsBinder(ctx).Int64("ttl", &ttlSeconds).BindError(); err != nil {
		return echo.NewHTTPError(http.StatusBadRequest, "ttl must be a number of seconds").SetInternal(err)
	}

	signed, err := service.coreService.SignedURL(ctx.Request().Context(), params.DesignFileID, auth.UserID(ctx), time.Duration(ttlSeconds)*time.Second)
	if err != nil {
		return err
	}
	return ctx.JSON(http.StatusOK, map[string]any{
		"success":   true,
		"url":       signed.URL,
		"expiresIn": int(signed.ExpiresIn.Seconds()),
	})
}

func (service *APIService) createProjectHandler(ctx echo.Context) error {
	var body createProjectRequest
	if err := ctx.Bind(&body); err != nil {
		return err
	}
	if err := ctx.Validate(&body); err != nil {
		return err
	}

	project, err := service.coreService.CreateProject(ctx.Request().Context(), core.CreateProjectRequest{
		UserID:      auth.UserID(ctx),
		Name:        body.Name,
		Description: body.Description,
	})
	if err != nil {
		return err
	}
	return ctx.JSON(http.StatusCreated, map[string]any{"success": true, "project": project})
}

func (service *APIService) listProjectsHandler(ctx echo.Context) error {
	projects, err := service.coreService.ListProjects(ctx.Request().Context(), auth.UserID(ctx))
	if err != nil {
		return err
	}
	return ctx.JSON(http.StatusOK, map[string]any{
		"success":  true,
		"projects": projects,
		"count":    len(projects),
	})
}

func (service *APIService) getProjectHandler(ctx echo.Context) error {
	var params projectPathParams
	if err := bindPath(ctx, &params); err != nil {
		return err
	}

	project, err := service.coreService.GetProject(ctx.Request().Context(), params.ProjectID, auth.UserID(ctx))
	if err != nil {
		return err
	}
	return ctx.JSON(http.StatusOK, map[string]any{"success": true, "project": project})
}

func (service *APIService) listTemplatesHandler(ctx echo.Context) error {
	templates, err := service.coreService.ListTemplates(ctx.Request().Context())
	if err != nil {
		return err
	}
	if templates == nil {
		templates = []*database.Template{}
	}
	return ctx.JSON(http.StatusOK, map[string]any{
		"success":   true,
		"templates": templates,
		"count":     len(templates),
	})
}

func (service *APIService) healthHandler(ctx echo.Context) error {
	now := time.Now().UTC().Format(time.RFC3339)
	if err := service.coreService.Ping(ctx.Request().Context()); err != nil {
		slog.Error("health check failed", "error", err)
		return ctx.JSON(http.StatusServiceUnavailable, map[string]string{"status": "unavailable", "timestamp": now})
	}
	return ctx.JSON(http.StatusOK, map[string]string{"status": "ok", "timestamp": now})
}

// fileHandler serves filesystem storage objects. Objects are public like a public-read bucket,
// but a URL that carries a signature must still verify.
func (service *APIService) fileHandler(ctx echo.Context) error {
	store := service.coreService.Storage().(*storage.FilesystemStorage)

	key, err := url.PathUnescape(ctx.Param("*"))
	if err != nil {
		return echo.ErrNotFound
	}
	if signature := ctx.QueryParam("signature"); signature != "" {
		if !store.VerifySignedRequest(key, ctx.QueryParam("expires"), signature) {
			return echo.NewHTTPError(http.StatusForbidden, "Invalid or expired signature")
		}
	}

	file, err := store.Open(key)
	if err != nil {
		return echo.ErrNotFound.WithInternal(err)
	}
	defer func() {
		if cerr := file.Close(); cerr != nil {
			slog.Error("failed to close stored object", "key", key, "error", cerr)
		}
	}()
	info, err := file.Stat()
	if err != nil {
		return err
	}

	ctx.Response().Header().Set("Cache-Control", "max-age=3600")
	http.ServeContent(ctx.Response(), ctx.Request(), path.Base(key), info.ModTime(), file)
	return nil
}

func bindPath(ctx echo.Context, target any) error {
	if err := (&echo.DefaultBinder{}).BindPathParams(ctx, target); err != nil {
		return err
	}
	return ctx.Validate(target)
}

// bindDesignFileID answers ids that cannot name a design file like unknown ones
func bindDesignFileID(ctx echo.Context, params *designFilePathParams) error {
	if err := bindPath(ctx, params); err != nil {
		return &core.ServiceError{Kind: core.KindNotFound, Code: core.CodeFileNotFound, Message: "File not found", Err: err}
	}
	return nil
}

// errorHandler answers every failure with {error, code}
func (service *APIService) errorHandler(err error, ctx echo.Context) {
	if ctx.Response().Committed {
		return
	}

	status, body := service.errorResponse(err)
	if status >= http.StatusInternalServerError {
		slog.Error("request failed",
			"method", ctx.Request().Method,
			"route", ctx.Path(),
			"status", status,
			"code", body.Code,
			"error", err)
	}

	if ctx.Request().Method == http.MethodHead {
		err = ctx.NoContent(status)
	} else {
		err = ctx.JSON(status, body)
	}
	if err != nil {
		slog.Error("failed to write error response", "error", err)
	}
}

func (service *APIService) errorResponse(err error) (int, errorResponse) {
	var serviceErr *core.ServiceError
	if errors.As(err, &serviceErr) {
		status, ok := statusByCode[serviceErr.Code]
		if !ok {
			status = statusForKind(serviceErr.Kind)
		}
		return status, errorResponse{Error: serviceErr.Message, Code: serviceErr.Code}
	}

	if errors.Is(err, auth.ErrUnauthenticated) {
		return http.StatusUnauthorized, errorResponse{Error: "Authentication required", Code: core.CodeUnauthenticated}
	}

	var httpErr *echo.HTTPError
	if errors.As(err, &httpErr) {
		message := http.StatusText(httpErr.Code)
		if m, ok := httpErr.Message.(string); ok && m != "" {
			message = m
		}
		switch httpErr.Code {
		case http.StatusRequestEntityTooLarge:
			return httpErr.Code, errorResponse{
				Error: fmt.Sprintf("File size exceeds %dMB limit", service.config.MaxUploadBytes/1024/1024),
				Code:  core.CodeFileTooLarge,
			}
		case http.StatusBadRequest, http.StatusUnsupportedMediaType:
			return http.StatusBadRequest, errorResponse{Error: message, Code: core.CodeValidation}
		case http.StatusUnauthorized:
			return httpErr.Code, errorResponse{Error: message, Code: core.CodeUnauthenticated}
		case http.StatusForbidden:
			return httpErr.Code, errorResponse{Error: message, Code: core.CodeUnauthorized}
		case http.StatusNotFound:
			return httpErr.Code, errorResponse{Error: message, Code: codeNotFound}
		case http.StatusMethodNotAllowed:
			return httpErr.Code, errorResponse{Error: message, Code: codeMethodNotAllowed}
		}
		if httpErr.Code < http.StatusInternalServerError {
			return httpErr.Code, errorResponse{Error: message, Code: codeInternal}
		}
	}

	return http.StatusInternalServerError, errorResponse{Error: "Internal server error", Code: codeInternal}
}

func statusForKind(kind core.ErrorKind) int {
	switch kind {
	case core.KindValidation:
		return http.StatusBadRequest
	case core.KindNotFound:
		return http.StatusNotFound
	case core.KindAuthorization:
		return http.StatusForbidden
	}
	return http.StatusInternalServerError
}
