package domain

import (
	"context"
	"errors"
	"time"
)

var ErrCatalogUnavailable = errors.New("catalog data unavailable")

// Cache stores JSON-encodable values under string keys.
type Cache interface {
	// Get decodes the value at key into dst and reports whether it existed.
	Get(ctx context.Context, key string, dst any) (bool, error)
	Set(ctx context.Context, key string, value any, ttl time.Duration) error
}
