// Package cache provides the TTL response cache placed in front of the
// geocoding and directions providers.
package cache

import (
	"errors"
	"log/slog"
	"sync"
	"sync/atomic"
	"time"

	"github.com/hashicorp/golang-lru/v2/simplelru"
)

// DefaultMaxEntries bounds a cache when Config.MaxEntries is zero.
const DefaultMaxEntries = 10000

// Config controls one cache instance.
type Config struct {
	TTL             time.Duration // zero disables expiry
	Enabled         bool
	MaxEntries      int
	CleanupInterval time.Duration // zero disables the background sweep
}

// Hooks observe cache activity. Any field may be nil.
type Hooks struct {
	OnHit   func(cache string)
	OnMiss  func(cache string)
	OnEvict func(cache string, reason string)
	OnSize  func(cache string, entries int)
}

// Eviction reasons passed to Hooks.OnEvict.
const (
	EvictExpired  = "expired"
	EvictCapacity = "capacity"
)

// Stats is a point-in-time view of cache counters.
type Stats struct {
	Name      string  `json:"name"`
	Enabled   bool    `json:"enabled"`
	Entries   int     `json:"entries"`
	Hits      uint64  `json:"hits"`
	Misses    uint64  `json:"misses"`
	Evictions uint64  `json:"evictions"`
	HitRate   float64 `json:"hitRate"`
	TTL       string  `json:"ttl"`
}

type entry[V any] struct {
	value      V
	insertedAt time.Time
	expiresAt  time.Time // zero never expires
}

func (e entry[V]) expired(now time.Time) bool {
	return !e.expiresAt.IsZero() && !now.Before(e.expiresAt)
}

type options struct {
	hooks  Hooks
	now    func() time.Time
	logger *slog.Logger
}

// Option configures a ResponseCache.
type Option func(*options)

// WithHooks installs observation hooks.
func WithHooks(h Hooks) Option {
	return func(o *options) { o.hooks = h }
}

// WithClock overrides the time source.
func WithClock(now func() time.Time) Option {
	return func(o *options) { o.now = now }
}

// WithLogger sets the cache logger.
func WithLogger(logger *slog.Logger) Option {
	return func(o *options) { o.logger = logger }
}

// ResponseCache is a thread-safe, size-bounded cache with per-entry expiry.
// A disabled cache always misses and ignores writes.
type ResponseCache[V any] struct {
	name string
	cfg  Config
	opts options

	mu    sync.Mutex
	items *simplelru.LRU[string, entry[V]]

	hits      atomic.Uint64
	misses    atomic.Uint64
	evictions atomic.Uint64

	stopOnce    sync.Once
	stopCleanup chan struct{}
	done        chan struct{}
}

// New creates a cache named name and starts its sweep when configured.
func New[V any](name string, cfg Config, opts ...Option) (*ResponseCache[V], error) {
	if cfg.TTL < 0 {
		return nil, errors.New("cache ttl must not be negative")
	}
	if cfg.MaxEntries <= 0 {
		cfg.MaxEntries = DefaultMaxEntries
	}

	o := options{now: time.Now, logger: slog.Default()}
	for _, opt := range opts {
		opt(&o)
	}
	o.logger = o.logger.With("component", "cache", "cache", name)

	items, err := simplelru.NewLRU[string, entry[V]](cfg.MaxEntries, nil)
	if err != nil {
		return nil, err
	}

	c := &ResponseCache[V]{
		name:        name,
		cfg:         cfg,
		opts:        o,
		items:       items,
		stopCleanup: make(chan struct{}),
		done:        make(chan struct{}),
	}

	if cfg.Enabled && cfg.CleanupInterval > 0 {
		go c.cleanupLoop()
	} else {
		close(c.done)
	}

	return c, nil
}

// Name returns the cache name.
func (c *ResponseCache[V]) Name() string {
	return c.name
}

// Enabled reports whether the cache stores anything.
func (c *ResponseCache[V]) Enabled() bool {
	return c.cfg.Enabled
}

// Get returns the live value for key. Expired entries are removed and
// reported as misses.
func (c *ResponseCache[V]) Get(key string) (V, bool) {
	var zero V
	if !c.cfg.Enabled {
		c.recordMiss()
		return zero, false
	}

	c.mu.Lock()
	e, ok := c.items.Get(key)
	if ok && e.expired(c.opts.now()) {
		c.items.Remove(key)
		ok = false
		c.evictions.Add(1)
		c.mu.Unlock()
		c.notifyEvict(EvictExpired)
		c.notifySize()
	} else {
		c.mu.Unlock()
	}

	if !ok {
		c.recordMiss()
		return zero, false
	}

	c.hits.Add(1)
	if c.opts.hooks.OnHit != nil {
		c.opts.hooks.OnHit(c.name)
	}
	return e.value, true
}

// Set stores value under key with the configured TTL.
func (c *ResponseCache[V]) Set(key string, value V) bool {
	return c.SetWithTTL(key, value, c.cfg.TTL)
}

// SetWithTTL stores value under key, replacing any previous entry. A
// non-positive ttl falls back to the configured TTL.
func (c *ResponseCache[V]) SetWithTTL(key string, value V, ttl time.Duration) bool {
	if !c.cfg.Enabled || key == "" {
		return false
	}
	if ttl <= 0 {
		ttl = c.cfg.TTL
	}

	now := c.opts.now()
	e := entry[V]{value: value, insertedAt: now}
	if ttl > 0 {
		e.expiresAt = now.Add(ttl)
	}

	c.mu.Lock()
	evicted := c.items.Add(key, e)
	c.mu.Unlock()

	if evicted {
		c.evictions.Add(1)
		c.notifyEvict(EvictCapacity)
	}
	c.notifySize()
	return true
}

// Delete removes key.
func (c *ResponseCache[V]) Delete(key string) {
	c.mu.Lock()
	c.items.Remove(key)
	c.mu.Unlock()
	c.notifySize()
}

// Clear removes every entry. Counters are kept.
func (c *ResponseCache[V]) Clear() {
	c.mu.Lock()
	c.items.Purge()
	c.mu.Unlock()
	c.notifySize()
	c.opts.logger.Info("cache cleared")
}

// Len returns the number of stored entries, including expired ones not yet swept.
func (c *ResponseCache[V]) Len() int {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.items.Len()
}

// Stats returns the current counters.
func (c *ResponseCache[V]) Stats() Stats {
	hits, misses := c.hits.Load(), c.misses.Load()
	s := Stats{
		Name:      c.name,
		Enabled:   c.cfg.Enabled,
		Entries:   c.Len(),
		Hits:      hits,
		Misses:    misses,
		Evictions: c.evictions.Load(),
		TTL:       c.cfg.TTL.String(),
	}
	if total := hits + misses; total > 0 {
		s.HitRate = float64(hits) / float64(total)
	}
	return s
}

// DeleteExpired sweeps expired entries and returns how many were removed.
func (c *ResponseCache[V]) DeleteExpired() int {
	now := c.opts.now()

	c.mu.Lock()
	removed := 0
	for _, k := range c.items.Keys() {
		if e, ok := c.items.Peek(k); ok && e.expired(now) {
			c.items.Remove(k)
			removed++
		}
	}
	c.mu.Unlock()

	if removed > 0 {
		c.evictions.Add(uint64(removed))
		for i := 0; i < removed; i++ {
			c.notifyEvict(EvictExpired)
		}
		c.notifySize()
	}
	return removed
}

// Stop ends the background sweep. It is safe to call more than once.
func (c *ResponseCache[V]) Stop() {
	c.stopOnce.Do(func() {
		close(c.stopCleanup)
	})
	<-c.done
}

func (c *ResponseCache[V]) cleanupLoop() {
	defer close(c.done)

	ticker := time.NewTicker(c.cfg.CleanupInterval)
	defer ticker.Stop()

	for {
		select {
		case <-ticker.C:
			c.sweep()
		case <-c.stopCleanup:
			return
		}
	}
}

func (c *ResponseCache[V]) sweep() {
	defer func() {
		if r := recover(); r != nil {
			c.opts.logger.Error("cache sweep panicked", "panic", r)
		}
	}()
	if n := c.DeleteExpired(); n > 0 {
		c.opts.logger.Debug("swept expired entries", "removed", n)
	}
}

func (c *ResponseCache[V]) recordMiss() {
	c.misses.Add(1)
	if c.opts.hooks.OnMiss != nil {
		c.opts.hooks.OnMiss(c.name)
	}
}

func (c *ResponseCache[V]) notifyEvict(reason string) {
	if c.opts.hooks.OnEvict != nil {
		c.opts.hooks.OnEvict(c.name, reason)
	}
}

func (c *ResponseCache[V]) notifySize() {
	if c.opts.hooks.OnSize != nil {
		c.opts.hooks.OnSize(c.name, c.Len())
	}
}
