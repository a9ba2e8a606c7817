package source

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"time"

	"github.com/Mich120232024/dashsync/pkg/cache"
	"github.com/Mich120232024/dashsync/pkg/log"
)

// ErrNoCachedValue reports a remote fetch failure with no cached copy
// in any tier to fall back on.
var ErrNoCachedValue = errors.New("source: no cached value")

// Fetcher retrieves the current JSON document for a named resource
// from the remote service.
type Fetcher interface {
	FetchJSON(ctx context.Context, resource string) (json.RawMessage, error)
}

// Result is one resolved read. Stale marks a value served from the
// cache because the remote fetch failed; UpdatedAt is when the value
// was last stored.
type Result struct {
	Resource  string          `json:"resource"`
	Value     json.RawMessage `json:"value"`
	Stale     bool            `json:"stale"`
	UpdatedAt time.Time       `json:"updated_at"`
}

// DataSource is the resource-level read path: cache tiers in front,
// the remote service behind, stale fallback in between when the
// remote is down.
type DataSource struct {
	fetcher Fetcher
	cache   *cache.TieredCache
	log     log.Logger
}

// Option configures a DataSource.
type Option func(*DataSource)

// WithLogger sets the logger used for fallback and write-through
// diagnostics.
func WithLogger(l log.Logger) Option {
	return func(s *DataSource) { s.log = l }
}

// New returns a DataSource reading through c and fetching from f.
func New(f Fetcher, c *cache.TieredCache, opts ...Option) *DataSource {
	s := &DataSource{
		fetcher: f,
		cache:   c,
		log:     log.NewNoopLogger(),
	}
	for _, opt := range opts {
		opt(s)
	}
	return s
}

// Fetch resolves resource. With useCache the read goes through the
// tier hierarchy and only reaches the remote on a total miss; without
// it the remote is called directly and the result refreshes every
// tier so later cached reads stay consistent. Either way a remote
// failure falls back to the newest cached copy, however old, with
// Stale set; the fetch error surfaces only when no tier holds the
// resource at all.
func (s *DataSource) Fetch(ctx context.Context, resource string, useCache bool) (Result, error) {
	if useCache {
		e, err := s.cache.Get(ctx, resource, func(ctx context.Context) (json.RawMessage, error) {
			return s.fetcher.FetchJSON(ctx, resource)
		})
		if err != nil {
			return s.fallback(ctx, resource, err)
		}
		return Result{Resource: resource, Value: e.Value, UpdatedAt: e.StoredAt}, nil
	}

	value, err := s.fetcher.FetchJSON(ctx, resource)
	if err != nil {
		return s.fallback(ctx, resource, err)
	}
	e := s.cache.Put(ctx, resource, value)
	return Result{Resource: resource, Value: e.Value, UpdatedAt: e.StoredAt}, nil
}

// Refresh re-fetches resource from the remote, bypassing cached reads
// but writing the result through. It is the polling path.
func (s *DataSource) Refresh(ctx context.Context, resource string) (Result, error) {
	return s.Fetch(ctx, resource, false)
}

// fallback serves the newest cached copy of resource after a remote
// failure. With nothing cached anywhere the fetch error surfaces,
// tagged ErrNoCachedValue.
func (s *DataSource) fallback(ctx context.Context, resource string, cause error) (Result, error) {
	e, ok := s.cache.Peek(ctx, resource)
	if !ok {
		return Result{}, fmt.Errorf("fetch %s: %w: %w", resource, cause, ErrNoCachedValue)
	}
	s.log.Warn("serving stale cached value after fetch failure",
		log.String("resource", resource),
		log.Time("updated_at", e.StoredAt),
		log.Err(cause),
	)
	return Result{Resource: resource, Value: e.Value, Stale: true, UpdatedAt: e.StoredAt}, nil
}
