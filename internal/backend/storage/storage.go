// Package storage is the object storage gateway for uploaded blobs.
package storage

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"time"
)

var (
	// ErrObjectExists is returned by Put when the key is already taken
	ErrObjectExists = errors.New("object already exists")
	// ErrObjectNotFound is returned when a key does not exist
	ErrObjectNotFound = errors.New("object not found")
)

// ObjectInfo describes one stored object
type ObjectInfo struct {
	Key          string
	Size         int64
	LastModified time.Time
}

// Storage never overwrites objects. Put fails with ErrObjectExists instead.
type Storage interface {
	Put(ctx context.Context, key string, data []byte, contentType string) (string, error)
	Delete(ctx context.Context, key string) error
	PublicURL(key string) string
	SignedURL(ctx context.Context, key string, ttl time.Duration) (string, error)
	List(ctx context.Context, prefix string) ([]ObjectInfo, error)
}

// ObjectKey joins path segments with "/" and skips empty ones
func ObjectKey(segments ...string) string {
	parts := make([]string, 0, len(segments))
	for _, s := range segments {
		s = strings.Trim(s, "/")
		if s != "" {
			parts = append(parts, s)
		}
	}
	return strings.Join(parts, "/")
}

func validateKey(key string) error {
	if key == "" {
		return fmt.Errorf("object key must not be empty")
	}
	if strings.HasPrefix(key, "/") || strings.Contains(key, "\\") {
		return fmt.Errorf("invalid object key %q", key)
	}
	for _, part := range strings.Split(key, "/") {
		if part == "" || part == "." || part == ".." {
			return fmt.Errorf("invalid object key %q", key)
		}
	}
	return nil
}

func joinURL(base, key string) string {
	return strings.TrimRight(base, "/") + "/" + key
}
