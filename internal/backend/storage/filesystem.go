package storage

import (
	"context"
	"crypto/hmac"
	"crypto/sha256"
	"encoding/hex"
	"errors"
	"fmt"
	"io/fs"
	"net/url"
	"os"
	"path/filepath"
	"strconv"
	"strings"
	"time"
)

// FilesystemStorage keeps objects under a local directory. It is intended for development
// and tests; the API serves its objects under publicBaseURL.
type FilesystemStorage struct {
	baseDir       string
	publicBaseURL string
	signingKey    []byte
	now           func() time.Time
}

func NewFilesystemStorage(baseDir, publicBaseURL, signingKey string) (*FilesystemStorage, error) {
	if baseDir == "" {
		baseDir = "data/objects"
	}
	if err := os.MkdirAll(baseDir, 0o755); err != nil {
		return nil, fmt.Errorf("create storage dir: %w", err)
	}
	return &FilesystemStorage{
		baseDir:       baseDir,
		publicBaseURL: publicBaseURL,
		signingKey:    []byte(signingKey),
		now:           time.Now,
	}, nil
}

func (s *FilesystemStorage) path(key string) string {
	return filepath.Join(s.baseDir, filepath.FromSlash(key))
}

func (s *FilesystemStorage) Put(ctx context.Context, key string, data []byte, contentType string) (string, error) {
	if err := validateKey(key); err != nil {
		return "", err
	}
	if err := ctx.Err(); err != nil {
		return "", err
	}

	path := s.path(key)
	if err := os.MkdirAll(filepath.Dir(path), 0o755); err != nil {
		return "", fmt.Errorf("ensure object dir: %w", err)
	}
	f, err := os.OpenFile(path, os.O_WRONLY|os.O_CREATE|os.O_EXCL, 0o644)
	if err != nil {
		if errors.Is(err, fs.ErrExist) {
			return "", fmt.Errorf("%w: %s", ErrObjectExists, key)
		}
		return "", fmt.Errorf("create object: %w", err)
	}
	if _, err := f.Write(data); err != nil {
		_ = f.Close()
		_ = os.Remove(path)
		return "", fmt.Errorf("write object: %w", err)
	}
	if err := f.Close(); err != nil {
		_ = os.Remove(path)
		return "", fmt.Errorf("close object: %w", err)
	}
	return key, nil
}

// Delete treats a missing object as already deleted
func (s *FilesystemStorage) Delete(ctx context.Context, key string) error {
	if err := validateKey(key); err != nil {
		return err
	}
	if err := os.Remove(s.path(key)); err != nil && !errors.Is(err, fs.ErrNotExist) {
		return fmt.Errorf("delete object: %w", err)
	}
	return nil
}

func (s *FilesystemStorage) PublicURL(key string) string {
	if s.publicBaseURL == "" {
		abs, _ := filepath.Abs(s.path(key))
		return (&url.URL{Scheme: "file", Path: filepath.ToSlash(abs)}).String()
	}
	return joinURL(s.publicBaseURL, key)
}

// SignedURL appends an expiry and, when a signing key is configured, an HMAC over key and expiry
func (s *FilesystemStorage) SignedURL(ctx context.Context, key string, ttl time.Duration) (string, error) {
	if err := validateKey(key); err != nil {
		return "", err
	}
	if _, err := os.Stat(s.path(key)); err != nil {
		if errors.Is(err, fs.ErrNotExist) {
			return "", fmt.Errorf("%w: %s", ErrObjectNotFound, key)
		}
		return "", fmt.Errorf("stat object: %w", err)
	}

	u, err := url.Parse(s.PublicURL(key))
	if err != nil {
		return "", fmt.Errorf("parse public url: %w", err)
	}
	expires := s.now().Add(ttl).Unix()
	q := u.Query()
	q.Set("expires", strconv.FormatInt(expires, 10))
	if len(s.signingKey) > 0 {
		q.Set("signature", s.sign(key, expires))
	}
	u.RawQuery = q.Encode()
	return u.String(), nil
}

func (s *FilesystemStorage) sign(key string, expires int64) string {
	mac := hmac.New(sha256.New, s.signingKey)
	mac.Write([]byte(key))
	mac.Write([]byte{0})
	mac.Write([]byte(strconv.FormatInt(expires, 10)))
	return hex.EncodeToString(mac.Sum(nil))
}

// VerifySignedRequest checks the expires and signature query values produced by SignedURL
func (s *FilesystemStorage) VerifySignedRequest(key, expires, signature string) bool {
	if len(s.signingKey) == 0 {
		return false
	}
	exp, err := strconv.ParseInt(expires, 10, 64)
	if err != nil || s.now().Unix() > exp {
		return false
	}
	want := s.sign(key, exp)
	return hmac.Equal([]byte(want), []byte(signature))
}

// Open returns the file backing key for serving
func (s *FilesystemStorage) Open(key string) (*os.File, error) {
	if err := validateKey(key); err != nil {
		return nil, err
	}
	f, err := os.Open(s.path(key))
	if err != nil {
		if errors.Is(err, fs.ErrNotExist) {
			return nil, fmt.Errorf("%w: %s", ErrObjectNotFound, key)
		}
		return nil, err
	}
	return f, nil
}

func (s *FilesystemStorage) List(ctx context.Context, prefix string) ([]ObjectInfo, error) {
	var objects []ObjectInfo
	err := filepath.WalkDir(s.baseDir, func(path string, d fs.DirEntry, err error) error {
		if err != nil {
			return err
		}
		if err := ctx.Err(); err != nil {
			return err
		}
		if d.IsDir() {
			return nil
		}
		rel, err := filepath.Rel(s.baseDir, path)
		if err != nil {
			return err
		}
		key := filepath.ToSlash(rel)
		if !strings.HasPrefix(key, prefix) {
			return nil
		}
		info, err := d.Info()
		if err != nil {
			return err
		}
		objects = append(objects, ObjectInfo{Key: key, Size: info.Size(), LastModified: info.ModTime()})
		return nil
	})
	if err != nil {
		return nil, fmt.Errorf("list objects: %w", err)
	}
	return objects, nil
}
