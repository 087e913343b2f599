// Package redis holds the Redis-backed stores: refresh token revocation
// and the JSON cache used by the catalog.
package redis

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/redis/go-redis/v9"
)

// ErrRedisUnavailable wraps any failure to reach Redis.
var ErrRedisUnavailable = errors.New("redis unavailable")

const defaultRevocationPrefix = "carprice:revoked"

// RevocationStore implements domain.RevocationStore. Each revoked token id
// is a key that expires when the token itself would have.
type RevocationStore struct {
	rdb    redis.UniversalClient
	prefix string
}

// NewRevocationStore creates a store with keys under prefix. An empty
// prefix uses the default namespace.
func NewRevocationStore(rdb redis.UniversalClient, prefix string) *RevocationStore {
	if prefix == "" {
		prefix = defaultRevocationPrefix
	}
	return &RevocationStore{rdb: rdb, prefix: prefix}
}

func (s *RevocationStore) key(id string) string {
	return s.prefix + ":" + id
}

// Revoke sets the marker with SETNX so that of several concurrent callers
// presenting the same token only one gets true.
func (s *RevocationStore) Revoke(ctx context.Context, id string, ttl time.Duration) (bool, error) {
	if ttl < time.Second {
		ttl = time.Second
	}
	ok, err := s.rdb.SetNX(ctx, s.key(id), time.Now().Unix(), ttl).Result()
	if err != nil {
		return false, fmt.Errorf("%w: %v", ErrRedisUnavailable, err)
	}
	return ok, nil
}

// IsRevoked reports whether id has been revoked.
func (s *RevocationStore) IsRevoked(ctx context.Context, id string) (bool, error) {
	n, err := s.rdb.Exists(ctx, s.key(id)).Result()
	if err != nil {
		return false, fmt.Errorf("%w: %v", ErrRedisUnavailable, err)
	}
	return n > 0, nil
}
