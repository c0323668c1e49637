// Package cache stores short-lived string values such as signed URLs.
package cache

import (
	"context"
	"errors"
	"fmt"
	"time"
)

// ErrMiss is returned by Get when the key is absent or expired
var ErrMiss = errors.New("cache miss")

type Cache interface {
	Get(ctx context.Context, key string) (string, error)
	Set(ctx context.Context, key, value string, ttl time.Duration) error
	Close() error
}

type Options struct {
	Type     string
	Address  string
	Password string
	DB       int
	Size     int
}

func NewCache(opts Options) (Cache, error) {
	switch opts.Type {
	case "", "memory":
		return NewLRUCache(opts.Size)
	case "redis":
		return NewRedisCache(opts.Address, opts.Password, opts.DB)
	case "none":
		return NoopCache{}, nil
	default:
		return nil, fmt.Errorf("unsupported cache type: %s", opts.Type)
	}
}

// NoopCache never stores anything
type NoopCache struct{}

func (NoopCache) Get(context.Context, string) (string, error)              { return "", ErrMiss }
func (NoopCache) Set(context.Context, string, string, time.Duration) error { return nil }
func (NoopCache) Close() error                                             { return nil }
