package database

import (
	"context"
	"fmt"
	"sync"
	"sync/atomic"
	"time"

	"fleet-dashboard/internal/models"

	"golang.org/x/sync/singleflight"
)

// cacheEntry holds a memoized result and its expiration time.
type cacheEntry struct {
	frame     *models.Frame
	expiresAt time.Time
}

// CacheStats reports memo table effectiveness.
type CacheStats struct {
	Entries       int    `json:"entries"`
	Hits          uint64 `json:"hits"`
	Misses        uint64 `json:"misses"`
	Invalidations uint64 `json:"invalidations"`
}

// CachedWarehouse memoizes read-only query results by statement and arguments
// for a fixed TTL. Concurrent identical misses share one round trip.
// Errors are never cached.
type CachedWarehouse struct {
	Warehouse

	ttl         time.Duration
	loadTimeout time.Duration
	now         func() time.Time
	group       singleflight.Group
	mu          sync.RWMutex
	entries     map[string]*cacheEntry
	// generation advances on Invalidate so loads started earlier are not stored
	generation uint64

	hits, misses, invalidations atomic.Uint64
}

// DefaultLoadTimeout bounds a shared load once its callers have gone away.
const DefaultLoadTimeout = time.Minute

func NewCachedWarehouse(w Warehouse, ttl time.Duration) *CachedWarehouse {
	return &CachedWarehouse{
		Warehouse:   w,
		ttl:         ttl,
		loadTimeout: DefaultLoadTimeout,
		now:         time.Now,
		entries:     make(map[string]*cacheEntry),
	}
}

func (c *CachedWarehouse) Query(ctx context.Context, sql string, args ...any) (*models.Frame, error) {
	key := cacheKey(sql, args)

	c.mu.RLock()
	entry, ok := c.entries[key]
	gen := c.generation
	c.mu.RUnlock()
	if ok && c.now().Before(entry.expiresAt) {
		c.hits.Add(1)
		return entry.frame, nil
	}
	c.misses.Add(1)

	ch := c.group.DoChan(fmt.Sprintf("%d\x00%s", gen, key), func() (any, error) {
		// shared by every waiting caller, so no single caller may cancel it
		lctx, cancel := context.WithTimeout(context.WithoutCancel(ctx), c.loadTimeout)
		defer cancel()

		frame, err := c.Warehouse.Query(lctx, sql, args...)
		if err != nil {
			return nil, err
		}
		c.mu.Lock()
		if c.generation == gen {
			c.entries[key] = &cacheEntry{frame: frame, expiresAt: c.now().Add(c.ttl)}
		}
		c.mu.Unlock()
		return frame, nil
	})

	select {
	case res := <-ch:
		if res.Err != nil {
			return nil, res.Err
		}
		return res.Val.(*models.Frame), nil
	case <-ctx.Done():
		return nil, ctx.Err()
	}
}

// Invalidate drops every memoized result and returns how many were dropped.
func (c *CachedWarehouse) Invalidate() int {
	c.mu.Lock()
	n := len(c.entries)
	c.entries = make(map[string]*cacheEntry)
	c.generation++
	c.mu.Unlock()

	c.invalidations.Add(1)
	return n
}

// Uncached returns the wrapped warehouse, for statements that must not be memoized.
func (c *CachedWarehouse) Uncached() Warehouse {
	return c.Warehouse
}

func (c *CachedWarehouse) Stats() CacheStats {
	c.mu.RLock()
	n := len(c.entries)
	c.mu.RUnlock()
	return CacheStats{
		Entries:       n,
		Hits:          c.hits.Load(),
		Misses:        c.misses.Load(),
		Invalidations: c.invalidations.Load(),
	}
}

func cacheKey(sql string, args []any) string {
	return fmt.Sprintf("%s\x00%#v", sql, args)
}
