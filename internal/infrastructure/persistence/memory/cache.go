// Package memory provides an in-process implementation of the shared cache
// contract. It backs the worker when Redis is disabled and drives TTL tests
// through an injected clock.
package memory

import (
	"context"
	"encoding/json"
	"fmt"
	"path"
	"sync"
	"time"

	"github.com/alem-hub/academy-core/internal/domain/shared"
	"github.com/alem-hub/academy-core/pkg/timeutil"
)

type entry struct {
	data      []byte
	expiresAt time.Time // zero means no expiry
}

// Cache is a mutex-guarded map of JSON values with per-key expiry.
type Cache struct {
	mu      sync.RWMutex
	entries map[string]entry
	clock   timeutil.Clock
}

var _ shared.Cache = (*Cache)(nil)

// NewCache creates an empty cache. A nil clock uses the system clock.
func NewCache(clock timeutil.Clock) *Cache {
	return &Cache{
		entries: make(map[string]entry),
		clock:   timeutil.OrSystem(clock),
	}
}

// Set stores value as JSON. A zero ttl keeps the entry until deleted.
func (c *Cache) Set(_ context.Context, key string, value interface{}, ttl time.Duration) error {
	if key == "" {
		return fmt.Errorf("memory cache: empty key")
	}
	if ttl < 0 {
		return fmt.Errorf("memory cache: negative ttl %s", ttl)
	}

	data, err := json.Marshal(value)
	if err != nil {
		return fmt.Errorf("memory cache: encode %s: %w", key, err)
	}

	e := entry{data: data}
	if ttl > 0 {
		e.expiresAt = c.clock.Now().Add(ttl)
	}

	c.mu.Lock()
	c.entries[key] = e
	c.mu.Unlock()
	return nil
}

// Get decodes the value under key into dest, or returns shared.ErrCacheMiss.
// Expired entries are dropped on read.
func (c *Cache) Get(_ context.Context, key string, dest interface{}) error {
	c.mu.RLock()
	e, ok := c.entries[key]
	c.mu.RUnlock()

	if !ok {
		return shared.ErrCacheMiss
	}
	if c.expired(e) {
		c.mu.Lock()
		if cur, ok := c.entries[key]; ok && c.expired(cur) {
			delete(c.entries, key)
		}
		c.mu.Unlock()
		return shared.ErrCacheMiss
	}

	if err := json.Unmarshal(e.data, dest); err != nil {
		return fmt.Errorf("memory cache: decode %s: %w", key, err)
	}
	return nil
}

// Delete removes keys. Missing keys are ignored.
func (c *Cache) Delete(_ context.Context, keys ...string) error {
	c.mu.Lock()
	for _, k := range keys {
		delete(c.entries, k)
	}
	c.mu.Unlock()
	return nil
}

// DeleteByPattern removes every key matching a glob pattern ("exchange_rate:*").
func (c *Cache) DeleteByPattern(_ context.Context, pattern string) error {
	if _, err := path.Match(pattern, ""); err != nil {
		return fmt.Errorf("memory cache: bad pattern %q: %w", pattern, err)
	}

	c.mu.Lock()
	defer c.mu.Unlock()
	for k := range c.entries {
		if ok, _ := path.Match(pattern, k); ok {
			delete(c.entries, k)
		}
	}
	return nil
}

// Len returns the number of stored entries, expired ones included.
func (c *Cache) Len() int {
	c.mu.RLock()
	defer c.mu.RUnlock()
	return len(c.entries)
}

func (c *Cache) expired(e entry) bool {
	return !e.expiresAt.IsZero() && !c.clock.Now().Before(e.expiresAt)
}
