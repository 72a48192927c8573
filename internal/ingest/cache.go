package ingest

import (
	"context"
	"log/slog"
	"sort"
	"strconv"
	"sync"
	"time"

	"github.com/mauv0809/fipezap-dashboard/internal/metrics"
	"golang.org/x/sync/singleflight"
)

// Fetcher loads a sheet from its source.
type Fetcher interface {
	Fetch(ctx context.Context, key Key) (*RawTable, error)
}

// Cache memoizes RawTables per Key for the lifetime of an epoch.
//
// Misses are populated under single-flight, so concurrent first access to a
// key issues one fetch. Failures are never stored. Invalidate starts a new
// epoch; a fetch begun in an older epoch does not populate the new one.
type Cache struct {
	fetcher Fetcher
	metrics *metrics.Manager
	logger  *slog.Logger

	group singleflight.Group

	mu      sync.RWMutex
	entries map[Key]*RawTable
	epoch   uint64
	hits    uint64
	misses  uint64
}

// CacheOption configures a Cache.
type CacheOption func(*Cache)

// WithCacheMetrics records hits and misses on m.
func WithCacheMetrics(m *metrics.Manager) CacheOption {
	return func(c *Cache) {
		c.metrics = m
	}
}

// WithCacheLogger sets the logger.
func WithCacheLogger(l *slog.Logger) CacheOption {
	return func(c *Cache) {
		if l != nil {
			c.logger = l
		}
	}
}

// NewCache creates an empty cache in epoch 1.
func NewCache(f Fetcher, opts ...CacheOption) *Cache {
	c := &Cache{
		fetcher: f,
		logger:  slog.Default(),
		entries: make(map[Key]*RawTable),
		epoch:   1,
	}
	for _, opt := range opts {
		opt(c)
	}
	c.metrics.SetCacheEpoch(c.epoch)
	return c
}

// Get returns the table for key, fetching it on a miss.
func (c *Cache) Get(ctx context.Context, key Key) (*RawTable, error) {
	c.mu.Lock()
	table, ok := c.entries[key]
	epoch := c.epoch
	if ok {
		c.hits++
	} else {
		c.misses++
	}
	c.mu.Unlock()

	c.metrics.RecordCache(ok)
	if ok {
		return table, nil
	}

	flight := strconv.FormatUint(epoch, 10) + "\x00" + key.String()
	ch := c.group.DoChan(flight, func() (any, error) {
		// An earlier flight may have finished between the lookup and DoChan.
		c.mu.RLock()
		table, ok := c.entries[key]
		current := c.epoch == epoch
		c.mu.RUnlock()
		if ok && current {
			return table, nil
		}

		// The flight outlives any single caller; the fetcher's own timeout bounds it.
		table, err := c.fetcher.Fetch(context.WithoutCancel(ctx), key)
		if err != nil {
			return nil, err
		}

		c.mu.Lock()
		if c.epoch == epoch {
			c.entries[key] = table
		}
		c.mu.Unlock()
		return table, nil
	})

	select {
	case <-ctx.Done():
		return nil, ctx.Err()
	case res := <-ch:
		if res.Err != nil {
			return nil, res.Err
		}
		return res.Val.(*RawTable), nil
	}
}

// Invalidate drops every entry and advances the epoch.
func (c *Cache) Invalidate() uint64 {
	c.mu.Lock()
	c.entries = make(map[Key]*RawTable)
	c.epoch++
	epoch := c.epoch
	c.mu.Unlock()

	c.metrics.SetCacheEpoch(epoch)
	c.logger.Info("workbook cache invalidated", slog.Uint64("epoch", epoch))
	return epoch
}

// EntryStatus describes one cached sheet.
type EntryStatus struct {
	URL       string    `json:"url"`
	Sheet     string    `json:"sheet"`
	FetchedAt time.Time `json:"fetched_at"`
	Rows      int       `json:"rows"`
	Columns   int       `json:"columns"`
}

// CacheStatus is a snapshot of the cache.
type CacheStatus struct {
	Epoch   uint64        `json:"epoch"`
	Hits    uint64        `json:"hits"`
	Misses  uint64        `json:"misses"`
	Entries []EntryStatus `json:"entries"`
}

// Status returns a snapshot of the cache.
func (c *Cache) Status() CacheStatus {
	c.mu.RLock()
	defer c.mu.RUnlock()

	status := CacheStatus{
		Epoch:   c.epoch,
		Hits:    c.hits,
		Misses:  c.misses,
		Entries: make([]EntryStatus, 0, len(c.entries)),
	}
	for key, t := range c.entries {
		status.Entries = append(status.Entries, EntryStatus{
			URL:       key.URL,
			Sheet:     key.Sheet,
			FetchedAt: t.FetchedAt,
			Rows:      len(t.Rows),
			Columns:   t.Width(),
		})
	}
	sort.Slice(status.Entries, func(i, j int) bool {
		return status.Entries[i].Sheet < status.Entries[j].Sheet
	})
	return status
}
