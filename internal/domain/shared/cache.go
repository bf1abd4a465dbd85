package shared

import (
	"context"
	"errors"
	"time"
)

// ErrCacheMiss is returned by Cache.Get when the key is absent or expired.
var ErrCacheMiss = errors.New("cache: key not found")

// Cache is the key/value collaborator every cached service receives explicitly.
// Values are serialized by the implementation; Get decodes into dest.
type Cache interface {
	// Get loads key into dest. Returns ErrCacheMiss when there is nothing stored.
	Get(ctx context.Context, key string, dest interface{}) error

	// Set stores value under key, replacing any previous value.
	Set(ctx context.Context, key string, value interface{}, ttl time.Duration) error

	// Delete removes the given keys. Missing keys are not an error.
	Delete(ctx context.Context, keys ...string) error

	// DeleteByPattern removes every key matching a glob pattern such as "exchange_rate:*".
	DeleteByPattern(ctx context.Context, pattern string) error
}

// IsCacheMiss reports whether err means "nothing cached".
func IsCacheMiss(err error) bool {
	return errors.Is(err, ErrCacheMiss)
}
