// Package cache defines the port interface for caching.
package cache

import (
	"context"
	"encoding/json"
	"fmt"
	"time"
)

// Cache is the port interface for key-value caching.
type Cache interface {
	Get(ctx context.Context, key string) ([]byte, bool, error)
	Set(ctx context.Context, key string, value []byte, ttl time.Duration) error
	Delete(ctx context.Context, key string) error
}

// GetJSON reads key and decodes it into a T. A miss returns ok=false.
// An undecodable entry is reported as an error, not a miss.
func GetJSON[T any](ctx context.Context, c Cache, key string) (v T, ok bool, err error) {
	data, found, err := c.Get(ctx, key)
	if err != nil || !found {
		return v, false, err
	}
	if err := json.Unmarshal(data, &v); err != nil {
		return v, false, fmt.Errorf("decode cache entry %s: %w", key, err)
	}
	return v, true, nil
}

// SetJSON encodes v and stores it under key.
func SetJSON(ctx context.Context, c Cache, key string, v any, ttl time.Duration) error {
	data, err := json.Marshal(v)
	if err != nil {
		return fmt.Errorf("encode cache entry %s: %w", key, err)
	}
	return c.Set(ctx, key, data, ttl)
}

// LoadFunc produces the value for a cache miss.
type LoadFunc func(ctx context.Context) ([]byte, error)

// Loader is a Cache that can fill misses itself, collapsing concurrent
// loads of the same key into one call.
type Loader interface {
	Cache
	GetOrLoad(ctx context.Context, key string, ttl time.Duration, load LoadFunc) ([]byte, error)
}
