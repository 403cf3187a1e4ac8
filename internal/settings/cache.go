// Package settings provides the dynamically refreshed rate limit
// configuration. A Cache wraps a Source (HTTP platform-settings endpoint or
// the local store) and serves a limit table with a soft TTL: stale reads up
// to the TTL are accepted, refresh failures fall back to the last known good
// table, and a process that has never fetched successfully runs on the
// built-in defaults.
package settings

import (
	"context"
	"fmt"
	"log/slog"
	"sync"
	"time"

	"limitd/internal/models"
)

// Source fetches the current platform settings from their source of truth.
type Source interface {
	Fetch(ctx context.Context) (*models.PlatformSettings, error)
}

// Cache is a TTL cache over a Source. Safe for concurrent use.
type Cache struct {
	source Source
	ttl    time.Duration

	mu        sync.Mutex
	table     models.LimitTable
	haveTable bool
	fetchedAt time.Time
	fetching  bool
}

// NewCache creates a settings cache. The first Limits call triggers a fetch.
func NewCache(source Source, ttl time.Duration) *Cache {
	return &Cache{source: source, ttl: ttl}
}

// Limits returns the current limit table, refreshing from the source when
// the cached copy is missing or older than the TTL. It never fails: refresh
// errors and invalid settings keep the previous table, or the built-in
// defaults when nothing has been fetched yet. Only the call that triggers a
// refresh waits on the source; concurrent calls serve the current table.
func (c *Cache) Limits(ctx context.Context) models.LimitTable {
	c.mu.Lock()
	if c.haveTable && time.Since(c.fetchedAt) < c.ttl {
		table := c.table
		c.mu.Unlock()
		return table
	}
	if c.fetching {
		table, have := c.table, c.haveTable
		c.mu.Unlock()
		if have {
			return table
		}
		return models.DefaultLimitTable()
	}
	c.fetching = true
	c.mu.Unlock()

	ps, err := c.source.Fetch(ctx)
	if err == nil && ps != nil {
		// The store path validates on write, but the source of truth may
		// predate that or be edited directly. A bad table must never be
		// installed: a zero max_requests would block a category outright.
		if verr := ps.Validate(); verr != nil {
			err = fmt.Errorf("invalid settings: %w", verr)
		}
	}

	c.mu.Lock()
	defer c.mu.Unlock()
	c.fetching = false

	if err != nil || ps == nil {
		if err != nil {
			slog.Warn("settings refresh failed", "error", err)
		}
		if c.haveTable {
			// Keep serving the stale table, retry on the next call.
			return c.table
		}
		return models.DefaultLimitTable()
	}

	c.table = ps.Table()
	c.haveTable = true
	c.fetchedAt = time.Now()
	return c.table
}

// Invalidate drops the cached table so the next Limits call refetches.
// Called after an admin writes new settings through this process.
func (c *Cache) Invalidate() {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.haveTable = false
}
