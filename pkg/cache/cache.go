// Package cache holds the session's directory listings.
//
// The backend sends no change notifications, so every handler that mutates
// the remote store must invalidate each directory whose listing it could have
// changed. Entries are replaced wholesale, never patched.
package cache

import (
	"context"
	"fmt"
	"path"
	"sort"
	"time"

	"github.com/fruitsalade/remsh/internal/logging"
	"github.com/fruitsalade/remsh/internal/metrics"
	"github.com/fruitsalade/remsh/pkg/listing"
	"github.com/fruitsalade/remsh/pkg/models"
)

// Lister fetches the raw listing of one remote directory.
type Lister interface {
	List(ctx context.Context, dir string) (string, error)
}

// Entry describes one cached directory.
type Entry struct {
	Path      string
	Count     int
	Size      int64
	FetchedAt time.Time
}

// Stats counts cache activity since creation.
type Stats struct {
	Entries       int
	Hits          int
	Misses        int
	Fetches       int
	Invalidations int
}

// Cache maps absolute remote paths to snapshots.
//
// A Cache is not safe for concurrent use. The shell only touches it from the
// goroutine that reads input lines, completion included.
type Cache struct {
	lister  Lister
	entries map[string]*models.Snapshot
	stats   Stats
}

// New creates an empty cache that fetches through lister.
func New(lister Lister) *Cache {
	return &Cache{
		lister:  lister,
		entries: make(map[string]*models.Snapshot),
	}
}

func key(p string) string {
	return path.Clean("/" + p)
}

// Get returns the cached snapshot of dir, fetching it on a miss. A failed
// fetch leaves the cache unchanged.
func (c *Cache) Get(ctx context.Context, dir string) (*models.Snapshot, error) {
	k := key(dir)
	if snap, ok := c.entries[k]; ok {
		c.stats.Hits++
		metrics.RecordCacheHit()
		return snap, nil
	}
	c.stats.Misses++
	metrics.RecordCacheMiss()
	return c.fetch(ctx, k)
}

// ForceRefresh refetches dir and replaces its entry.
func (c *Cache) ForceRefresh(ctx context.Context, dir string) (*models.Snapshot, error) {
	return c.fetch(ctx, key(dir))
}

func (c *Cache) fetch(ctx context.Context, k string) (*models.Snapshot, error) {
	c.stats.Fetches++
	raw, err := c.lister.List(ctx, k)
	if err != nil {
		return nil, err
	}
	snap, err := listing.Parse(raw)
	if err != nil {
		return nil, fmt.Errorf("list %s: %w", k, err)
	}
	// The header names whatever the backend printed; key by what was asked.
	snap.Path = k

	c.entries[k] = snap
	metrics.SetCacheEntries(len(c.entries))
	logging.Debug("directory cached", logging.String("path", k), logging.Int("entries", snap.Len()))
	return snap, nil
}

// Invalidate drops the entry for p. It is a no-op when p is not cached.
func (c *Cache) Invalidate(p string) {
	k := key(p)
	if _, ok := c.entries[k]; !ok {
		return
	}
	delete(c.entries, k)
	c.stats.Invalidations++
	metrics.RecordCacheInvalidation()
	metrics.SetCacheEntries(len(c.entries))
}

// InvalidateAll empties the cache and returns how many entries it dropped.
func (c *Cache) InvalidateAll() int {
	n := len(c.entries)
	for k := range c.entries {
		delete(c.entries, k)
		c.stats.Invalidations++
		metrics.RecordCacheInvalidation()
	}
	metrics.SetCacheEntries(0)
	return n
}

// Cached reports whether p currently has an entry.
func (c *Cache) Cached(p string) bool {
	_, ok := c.entries[key(p)]
	return ok
}

// Entries lists the cached directories sorted by path.
func (c *Cache) Entries() []Entry {
	out := make([]Entry, 0, len(c.entries))
	for k, snap := range c.entries {
		out = append(out, Entry{
			Path:      k,
			Count:     snap.Len(),
			Size:      snap.TotalSize(),
			FetchedAt: snap.FetchedAt,
		})
	}
	sort.Slice(out, func(i, j int) bool { return out[i].Path < out[j].Path })
	return out
}

// Stats returns cache statistics.
func (c *Cache) Stats() Stats {
	s := c.stats
	s.Entries = len(c.entries)
	return s
}
