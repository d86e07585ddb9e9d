// Package cache provides the two-tier cache used for manifests and
// transformed media: a bounded, TTL'd in-process tier in front of the
// authoritative durable blob store.
package cache

import (
	"context"
	"errors"
	"sync"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"go.uber.org/zap"

	"github.com/mdpress/presto/internal/blob"
)

// store is the consumer interface for the durable tier (ISP).
type store interface {
	Exists(ctx context.Context, key string) (bool, error)
	Get(ctx context.Context, key string) ([]byte, error)
	Put(ctx context.Context, key string, value []byte) error
}

type entry struct {
	value     []byte
	lastWrite time.Time
}

// TwoTier layers a bounded in-process cache over a durable blob store.
// The durable tier is the system of record: fast-tier entries are
// evicted by count bound and absolute age, and correctness never
// depends on which entries survive. Safe for concurrent use.
type TwoTier struct {
	durable store
	logger  *zap.Logger

	mu      sync.Mutex
	entries map[string]*entry

	maxEntries int
	ttl        time.Duration
	now        func() time.Time

	ops *prometheus.CounterVec // labels: tier, result; may be nil
}

// New creates a two-tier cache. maxEntries and ttl bound the fast
// tier; ops is a counter vec with labels ("tier", "result"), optional.
func New(durable store, maxEntries int, ttl time.Duration, ops *prometheus.CounterVec, logger *zap.Logger) *TwoTier {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &TwoTier{
		durable:    durable,
		logger:     logger,
		entries:    make(map[string]*entry),
		maxEntries: maxEntries,
		ttl:        ttl,
		now:        time.Now,
		ops:        ops,
	}
}

// Get returns the cached bytes for key. The fast tier is consulted
// first; a miss falls through to the durable tier and populates the
// fast tier. Absent in both tiers returns blob.ErrKeyNotFound. A
// durable read failure degrades to a miss.
func (c *TwoTier) Get(ctx context.Context, key string) ([]byte, error) {
	if data, ok := c.getFast(key); ok {
		c.count("fast", "hit")
		return data, nil
	}
	c.count("fast", "miss")

	data, err := c.durable.Get(ctx, key)
	if err != nil {
		if errors.Is(err, blob.ErrKeyNotFound) {
			c.count("durable", "miss")
			return nil, blob.ErrKeyNotFound
		}
		// Read failures are treated as a miss; the caller recomputes.
		c.logger.Warn("durable read failed, treating as miss", zap.String("key", key), zap.Error(err))
		c.count("durable", "error")
		return nil, blob.ErrKeyNotFound
	}

	c.count("durable", "hit")
	c.putFast(key, data)
	return data, nil
}

// Put writes through to the durable tier and, only on success,
// refreshes the fast tier. A durable write failure propagates: a
// silently dropped write would break the durable tier's authority.
func (c *TwoTier) Put(ctx context.Context, key string, value []byte) error {
	if err := c.durable.Put(ctx, key, value); err != nil {
		return err
	}
	c.putFast(key, value)
	return nil
}

// Exists checks the durable tier only, independent of the fast tier.
func (c *TwoTier) Exists(ctx context.Context, key string) (bool, error) {
	return c.durable.Exists(ctx, key)
}

// Invalidate removes key from the fast tier. The durable tier is only
// ever overwritten by a new Put.
func (c *TwoTier) Invalidate(key string) {
	c.mu.Lock()
	defer c.mu.Unlock()
	delete(c.entries, key)
}

// Len returns the current fast-tier entry count.
func (c *TwoTier) Len() int {
	c.mu.Lock()
	defer c.mu.Unlock()
	return len(c.entries)
}

func (c *TwoTier) getFast(key string) ([]byte, bool) {
	c.mu.Lock()
	defer c.mu.Unlock()

	e, ok := c.entries[key]
	if !ok {
		return nil, false
	}
	if c.ttl > 0 && c.now().Sub(e.lastWrite) > c.ttl {
		delete(c.entries, key)
		return nil, false
	}
	return e.value, true
}

func (c *TwoTier) putFast(key string, value []byte) {
	c.mu.Lock()
	defer c.mu.Unlock()

	if _, ok := c.entries[key]; !ok && c.maxEntries > 0 && len(c.entries) >= c.maxEntries {
		c.evictOldestLocked()
	}
	c.entries[key] = &entry{value: value, lastWrite: c.now()}
}

// evictOldestLocked removes the entry with the oldest last-write time.
// Callers hold c.mu.
func (c *TwoTier) evictOldestLocked() {
	var oldestKey string
	var oldest time.Time
	first := true
	for k, e := range c.entries {
		if first || e.lastWrite.Before(oldest) {
			oldestKey, oldest = k, e.lastWrite
			first = false
		}
	}
	if !first {
		delete(c.entries, oldestKey)
	}
}

func (c *TwoTier) count(tier, result string) {
	if c.ops != nil {
		c.ops.WithLabelValues(tier, result).Inc()
	}
}
