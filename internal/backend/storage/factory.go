package storage

import (
	"context"
	"fmt"
)

// Options is the union of settings for every storage type
type Options struct {
	Type          string
	Bucket        string
	Endpoint      string
	Region        string
	AccessKey     string
	SecretKey     string
	UseSSL        bool
	UsePathStyle  bool
	PublicBaseURL string
	BaseDir       string
	SigningKey    string
}

func NewStorage(ctx context.Context, opts Options) (Storage, error) {
	switch opts.Type {
	case "", "filesystem":
		return NewFilesystemStorage(opts.BaseDir, opts.PublicBaseURL, opts.SigningKey)
	case "minio":
		store, err := NewMinioStorage(MinioOptions{
			Endpoint:      opts.Endpoint,
			AccessKey:     opts.AccessKey,
			SecretKey:     opts.SecretKey,
			Region:        opts.Region,
			Bucket:        opts.Bucket,
			PublicBaseURL: opts.PublicBaseURL,
			UseSSL:        opts.UseSSL,
		})
		if err != nil {
			return nil, err
		}
		if err := store.EnsureBucket(ctx); err != nil {
			return nil, err
		}
		return store, nil
	case "s3":
		return NewS3Storage(ctx, S3Options{
			Endpoint:      opts.Endpoint,
			Region:        opts.Region,
			AccessKey:     opts.AccessKey,
			SecretKey:     opts.SecretKey,
			Bucket:        opts.Bucket,
			PublicBaseURL: opts.PublicBaseURL,
			UsePathStyle:  opts.UsePathStyle,
		})
	default:
		return nil, fmt.Errorf("unsupported storage type: %s", opts.Type)
	}
}
