// Package cache optionally stores small derived results between runs.
//
// Caching is opt-in. When enabled, the pipelines cache codec-toolchain probe results (duration, dimensions,
// frame rate) so that repeated exports of the same video skip the external
// probe. Keys are derived from the file path, size and modification time, so
// editing a source invalidates its entry.
//
// Backends:
//   - [NullCache]: caching disabled (CLI default)
//   - [FileCache]: JSON entries under the user cache dir
//   - [RedisCache]: shared entries for multi-machine batch runs
package cache

import (
	"context"
	"encoding/json"
	"time"
)

// Cache is a byte-oriented key/value store with per-entry TTL.
type Cache interface {
	// Get returns the value and whether it was found.
	Get(ctx context.Context, key string) ([]byte, bool, error)
	// Set stores data; a zero ttl never expires.
	Set(ctx context.Context, key string, data []byte, ttl time.Duration) error
	Delete(ctx context.Context, key string) error
	Close() error
}

// ProbeTTL bounds how long a probe result is trusted.
const ProbeTTL = 30 * 24 * time.Hour

// GetJSON decodes a cached JSON value into dest. A corrupt entry is a miss.
func GetJSON(ctx context.Context, c Cache, key string, dest any) (bool, error) {
	data, ok, err := c.Get(ctx, key)
	if err != nil || !ok {
		return false, err
	}
	if err := json.Unmarshal(data, dest); err != nil {
		return false, nil
	}
	return true, nil
}

// SetJSON encodes value as JSON and stores it.
func SetJSON(ctx context.Context, c Cache, key string, value any, ttl time.Duration) error {
	data, err := json.Marshal(value)
	if err != nil {
		return err
	}
	return c.Set(ctx, key, data, ttl)
}

// Scoped prefixes every key before delegating to inner.
type Scoped struct {
	Inner  Cache
	Prefix string
}

func (s Scoped) Get(ctx context.Context, key string) ([]byte, bool, error) {
	return s.Inner.Get(ctx, s.Prefix+key)
}

func (s Scoped) Set(ctx context.Context, key string, data []byte, ttl time.Duration) error {
	return s.Inner.Set(ctx, s.Prefix+key, data, ttl)
}

func (s Scoped) Delete(ctx context.Context, key string) error {
	return s.Inner.Delete(ctx, s.Prefix+key)
}

func (s Scoped) Close() error { return s.Inner.Close() }

var _ Cache = Scoped{}
