package storage

import (
	"context"
	"errors"
	"io"
	"time"
)

// ErrNotExist is returned when a stored object cannot be found.
var ErrNotExist = errors.New("storage: object does not exist")

// Store abstracts where generated files live.
type Store interface {
	Save(ctx context.Context, key string, data []byte, contentType string) error
	Open(ctx context.Context, key string) (io.ReadCloser, error)
	Delete(ctx context.Context, key string) error
	CleanupOlderThan(ctx context.Context, ttl time.Duration) ([]string, error)
}
