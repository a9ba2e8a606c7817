package cache

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"time"

	"github.com/google/uuid"
	"golang.org/x/sync/singleflight"

	"github.com/Mich120232024/dashsync/pkg/clock"
	"github.com/Mich120232024/dashsync/pkg/log"
)

// Default tier parameters.
const (
	DefaultMemoryTTL      = 60 * time.Second
	DefaultSessionTTL     = 5 * time.Minute
	DefaultDurableTTL     = 24 * time.Hour
	DefaultMemoryCapacity = 100
)

// Loader produces the value for a key on a total cache miss.
type Loader func(ctx context.Context) (json.RawMessage, error)

// Config holds construction parameters for a TieredCache.
type Config struct {
	// Dir is the root directory for the persistent tiers: the session
	// tier lives under Dir/session/<session id>, the durable tier in
	// Dir/durable.db.
	Dir string

	// SessionID namespaces the session tier. A fresh ID is generated
	// when empty.
	SessionID string

	// Tier TTLs. Zero values fall back to the package defaults.
	MemoryTTL  time.Duration
	SessionTTL time.Duration
	DurableTTL time.Duration

	// MemoryCapacity bounds the memory tier entry count.
	MemoryCapacity int
}

// Option overrides an optional TieredCache collaborator.
type Option func(*TieredCache)

// WithMetrics sets the metrics sink. Defaults to NoopMetrics.
func WithMetrics(m Metrics) Option {
	return func(c *TieredCache) { c.metrics = m }
}

// WithClock sets the time source. Defaults to the real clock.
func WithClock(clk clock.Clock) Option {
	return func(c *TieredCache) { c.clock = clk }
}

// WithLogger sets the logger. Defaults to a no-op logger.
func WithLogger(l log.Logger) Option {
	return func(c *TieredCache) { c.log = l }
}

// level pairs a tier with the TTL it stamps on entries.
type level struct {
	tier Tier
	ttl  time.Duration
}

// TieredCache serves read-through lookups across the memory, session,
// and durable tiers. Reads scan hot to cold; loads on a total miss
// populate every tier; concurrent loads for one key coalesce into a
// single loader call.
type TieredCache struct {
	levels  []level
	session *FileTier
	durable *BoltTier
	flights singleflight.Group
	metrics Metrics
	clock   clock.Clock
	log     log.Logger
	sid     string
	dir     string
}

// New builds the three tiers under cfg.Dir and returns the cache.
func New(cfg Config, opts ...Option) (*TieredCache, error) {
	if cfg.Dir == "" {
		return nil, errors.New("cache: dir is required")
	}
	if cfg.MemoryTTL <= 0 {
		cfg.MemoryTTL = DefaultMemoryTTL
	}
	if cfg.SessionTTL <= 0 {
		cfg.SessionTTL = DefaultSessionTTL
	}
	if cfg.DurableTTL <= 0 {
		cfg.DurableTTL = DefaultDurableTTL
	}
	if cfg.MemoryCapacity <= 0 {
		cfg.MemoryCapacity = DefaultMemoryCapacity
	}
	if cfg.SessionID == "" {
		cfg.SessionID = uuid.NewString()
	}

	c := &TieredCache{
		metrics: NoopMetrics{},
		clock:   clock.Real(),
		log:     log.NewNoopLogger(),
		sid:     cfg.SessionID,
		dir:     cfg.Dir,
	}
	for _, opt := range opts {
		opt(c)
	}

	if err := os.MkdirAll(cfg.Dir, 0o700); err != nil {
		return nil, fmt.Errorf("create cache dir: %w", err)
	}

	memory := NewMemoryTier(cfg.MemoryCapacity)
	memory.OnEvict = func(key string) { c.metrics.Eviction() }

	session, err := NewFileTier(filepath.Join(cfg.Dir, "session"), cfg.SessionID)
	if err != nil {
		return nil, err
	}

	durable, err := NewBoltTier(filepath.Join(cfg.Dir, "durable.db"))
	if err != nil {
		return nil, err
	}

	c.session = session
	c.durable = durable
	c.levels = []level{
		{tier: memory, ttl: cfg.MemoryTTL},
		{tier: session, ttl: cfg.SessionTTL},
		{tier: durable, ttl: cfg.DurableTTL},
	}
	return c, nil
}

// SessionID returns the id namespacing the session tier.
func (c *TieredCache) SessionID() string { return c.sid }

// Get returns the entry for key, loading it on a total miss. A hit in
// a cold tier promotes the value into the hotter tiers. Concurrent
// calls for the same key share one loader invocation; the loader runs
// on the context of the call that started it, and a loader error
// reaches every caller of that flight unchanged, with no tier writes.
func (c *TieredCache) Get(ctx context.Context, key string, loader Loader) (Entry, error) {
	if e, ok := c.lookup(ctx, key, true); ok {
		return e, nil
	}
	c.metrics.Miss()

	v, err, _ := c.flights.Do(key, func() (any, error) {
		// A racing flight may have filled the tiers already.
		if e, ok := c.lookup(ctx, key, false); ok {
			return e, nil
		}
		c.metrics.LoaderCall()
		value, err := loader(ctx)
		if err != nil {
			return nil, err
		}
		return c.storeAll(ctx, key, value), nil
	})
	if err != nil {
		return Entry{}, err
	}
	return v.(Entry), nil
}

// Put refreshes every tier with a value obtained outside the cache
// (write-through after a bypass fetch).
func (c *TieredCache) Put(ctx context.Context, key string, value json.RawMessage) Entry {
	return c.storeAll(ctx, key, value)
}

// Invalidate removes key from every tier and forgets any in-flight
// load, so the next Get re-invokes its loader.
func (c *TieredCache) Invalidate(ctx context.Context, key string) error {
	c.flights.Forget(key)

	var errs []error
	for _, lv := range c.levels {
		if err := lv.tier.Delete(ctx, key); err != nil {
			errs = append(errs, fmt.Errorf("%s: %w", lv.tier.Name(), err))
		}
	}
	return errors.Join(errs...)
}

// Peek returns the first entry found scanning hot to cold, ignoring
// expiry, without promotion. It is the outage fallback read; StoredAt
// tells the caller how stale the value is. Note that promotion
// restamps StoredAt, so a hot-tier entry may read newer than the
// remote fetch that produced it, bounded by the tier TTLs.
func (c *TieredCache) Peek(ctx context.Context, key string) (Entry, bool) {
	for _, lv := range c.levels {
		if e, ok := c.tierGet(ctx, lv, key); ok {
			return e, true
		}
	}
	return Entry{}, false
}

// Close releases the persistent tiers.
func (c *TieredCache) Close() error {
	var errs []error
	for _, lv := range c.levels {
		if err := lv.tier.Close(); err != nil {
			errs = append(errs, fmt.Errorf("%s: %w", lv.tier.Name(), err))
		}
	}
	return errors.Join(errs...)
}

// lookup scans the tiers for a fresh entry, promoting a hit into the
// hotter tiers. Expired entries are misses but stay in place: a later
// successful load overwrites them, and until then Peek can serve them
// as outage fallbacks. The janitor sweep reclaims the ones nothing
// refreshes. When record is false the scan skips metrics, so the
// re-check inside a coalesced flight does not double-count.
func (c *TieredCache) lookup(ctx context.Context, key string, record bool) (Entry, bool) {
	now := c.clock.Now()
	for i, lv := range c.levels {
		e, ok := c.tierGet(ctx, lv, key)
		if !ok {
			continue
		}
		if e.Expired(now) {
			if record {
				c.metrics.Expiration(lv.tier.Name())
			}
			continue
		}
		if record {
			c.metrics.Hit(lv.tier.Name())
		}
		c.promote(ctx, e, i, now)
		return e, true
	}
	return Entry{}, false
}

// tierGet reads one tier, folding corruption into a logged miss.
func (c *TieredCache) tierGet(ctx context.Context, lv level, key string) (Entry, bool) {
	e, ok, err := lv.tier.Get(ctx, key)
	if err != nil {
		var corrupt *CorruptEntryError
		if errors.As(err, &corrupt) {
			c.metrics.Corruption(lv.tier.Name())
			c.log.Warn("dropped corrupt cache entry",
				log.String("key", key),
				log.String("tier", lv.tier.Name()),
				log.Err(corrupt.Err),
			)
		} else {
			c.log.Warn("cache tier read failed",
				log.String("key", key),
				log.String("tier", lv.tier.Name()),
				log.Err(err),
			)
		}
		return Entry{}, false
	}
	return e, ok
}

// promote copies the entry into every tier hotter than the one it was
// found in, stamping each copy with that tier's own TTL at promotion
// time rather than the source tier's remaining lifetime.
func (c *TieredCache) promote(ctx context.Context, e Entry, foundAt int, now time.Time) {
	for i := foundAt - 1; i >= 0; i-- {
		lv := c.levels[i]
		promoted := Entry{
			Key:      e.Key,
			Value:    cloneValue(e.Value),
			StoredAt: now,
			TTL:      lv.ttl,
		}
		if err := lv.tier.Set(ctx, promoted); err != nil {
			c.log.Warn("cache promotion failed",
				log.String("key", e.Key),
				log.String("tier", lv.tier.Name()),
				log.Err(err),
			)
			continue
		}
		c.metrics.Promotion(lv.tier.Name())
	}
}

// storeAll writes a loaded value into every tier, cold to hot, each
// with its own TTL. Per-tier write failures are logged and skipped;
// the value is still served.
func (c *TieredCache) storeAll(ctx context.Context, key string, value json.RawMessage) Entry {
	now := c.clock.Now()
	for i := len(c.levels) - 1; i >= 0; i-- {
		lv := c.levels[i]
		e := Entry{
			Key:      key,
			Value:    cloneValue(value),
			StoredAt: now,
			TTL:      lv.ttl,
		}
		if err := lv.tier.Set(ctx, e); err != nil {
			c.log.Warn("cache tier write failed",
				log.String("key", key),
				log.String("tier", lv.tier.Name()),
				log.Err(err),
			)
		}
	}
	return Entry{Key: key, Value: value, StoredAt: now, TTL: c.levels[0].ttl}
}
