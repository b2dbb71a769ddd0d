package storage

import (
	"context"
	"errors"
	"io"
	"time"
)

var ErrObjectNotFound = errors.New("object_not_found")

// Store keeps generated documents and backups.
type Store interface {
	Put(ctx context.Context, key string, r io.Reader, size int64, contentType string) error
	Get(ctx context.Context, key string) ([]byte, error)
	PresignedURL(ctx context.Context, key string, ttl time.Duration) (string, error)
}
