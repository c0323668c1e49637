// Package validation implements the upload allow-list and size limit.
package validation

import (
	"errors"
	"fmt"
	"mime"
	"path/filepath"
	"strings"
)

// DefaultMaxFileSize is the largest accepted payload (50 MiB)
const DefaultMaxFileSize int64 = 50 * 1024 * 1024

var (
	ErrFileTooLarge        = errors.New("file too large")
	ErrUnsupportedFileType = errors.New("unsupported file type")
)

// FileType is the accepted classification of an upload
type FileType struct {
	Extension string
	MIME      string
	Raster    bool
}

var allowedExtensions = map[string]FileType{
	".png":  {Extension: ".png", MIME: "image/png", Raster: true},
	".jpg":  {Extension: ".jpg", MIME: "image/jpeg", Raster: true},
	".jpeg": {Extension: ".jpeg", MIME: "image/jpeg", Raster: true},
	".webp": {Extension: ".webp", MIME: "image/webp", Raster: true},
	".svg":  {Extension: ".svg", MIME: "image/svg+xml"},
	".pdf":  {Extension: ".pdf", MIME: "application/pdf"},
}

var allowedMIMETypes = map[string]bool{
	"image/png":       true,
	"image/jpeg":      true,
	"image/svg+xml":   true,
	"image/webp":      true,
	"application/pdf": true,
}

// Validator checks uploads before any storage I/O happens
type Validator struct {
	maxSize int64
}

func NewValidator(maxSize int64) *Validator {
	if maxSize <= 0 {
		maxSize = DefaultMaxFileSize
	}
	return &Validator{maxSize: maxSize}
}

func (v *Validator) MaxSize() int64 {
	return v.maxSize
}

// Validate checks the size first so oversized payloads are rejected regardless of type.
// declaredType may be empty or application/octet-stream when the client sent nothing useful.
func (v *Validator) Validate(filename, declaredType string, size int64) (FileType, error) {
	if size > v.maxSize {
		return FileType{}, fmt.Errorf("%w: file size exceeds %dMB limit", ErrFileTooLarge, v.maxSize/1024/1024)
	}

	ext := strings.ToLower(filepath.Ext(filename))
	fileType, ok := allowedExtensions[ext]
	if !ok {
		if ext == "" {
			ext = "(none)"
		}
		return FileType{}, fmt.Errorf("%w: %s", ErrUnsupportedFileType, ext)
	}

	if declared := normalizeMIME(declaredType); declared != "" && declared != "application/octet-stream" {
		if !allowedMIMETypes[declared] {
			return FileType{}, fmt.Errorf("%w: %s", ErrUnsupportedFileType, declared)
		}
	}
	return fileType, nil
}

// LookupExtension returns the classification for a known extension
func LookupExtension(ext string) (FileType, bool) {
	ft, ok := allowedExtensions[strings.ToLower(ext)]
	return ft, ok
}

func normalizeMIME(v string) string {
	v = strings.TrimSpace(v)
	if v == "" {
		return ""
	}
	mediaType, _, err := mime.ParseMediaType(v)
	if err != nil {
		return strings.ToLower(v)
	}
	if mediaType == "image/jpg" {
		return "image/jpeg"
	}
	return mediaType
}
