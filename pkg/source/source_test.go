package source

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"sync"
	"testing"
	"time"

	"github.com/Mich120232024/dashsync/pkg/cache"
	"github.com/Mich120232024/dashsync/pkg/clock"
)

type fakeFetcher struct {
	mu    sync.Mutex
	calls map[string]int
	data  map[string]json.RawMessage
	err   error
}

func (f *fakeFetcher) FetchJSON(ctx context.Context, resource string) (json.RawMessage, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	if f.calls == nil {
		f.calls = make(map[string]int)
	}
	f.calls[resource]++
	if f.err != nil {
		return nil, f.err
	}
	v, ok := f.data[resource]
	if !ok {
		return nil, fmt.Errorf("unknown resource %q", resource)
	}
	return v, nil
}

func (f *fakeFetcher) callCount(resource string) int {
	f.mu.Lock()
	defer f.mu.Unlock()
	return f.calls[resource]
}

func (f *fakeFetcher) fail(err error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.err = err
}

func (f *fakeFetcher) serve(resource, value string) {
	f.mu.Lock()
	defer f.mu.Unlock()
	if f.data == nil {
		f.data = make(map[string]json.RawMessage)
	}
	f.data[resource] = json.RawMessage(value)
	f.err = nil
}

func newTestSource(t *testing.T, opts ...cache.Option) (*DataSource, *fakeFetcher) {
	t.Helper()
	c, err := cache.New(cache.Config{Dir: t.TempDir()}, opts...)
	if err != nil {
		t.Fatalf("cache.New() error: %v", err)
	}
	t.Cleanup(func() { c.Close() })
	f := &fakeFetcher{}
	return New(f, c), f
}

func TestFetchCachedReadThrough(t *testing.T) {
	ctx := context.Background()
	s, f := newTestSource(t)
	f.serve("messages", `[{"id":1}]`)

	res, err := s.Fetch(ctx, "messages", true)
	if err != nil {
		t.Fatalf("Fetch() error: %v", err)
	}
	if res.Resource != "messages" || res.Stale || string(res.Value) != `[{"id":1}]` {
		t.Errorf("Fetch() = %+v", res)
	}
	if res.UpdatedAt.IsZero() {
		t.Error("Fetch() left UpdatedAt zero")
	}
	if got := f.callCount("messages"); got != 1 {
		t.Errorf("remote calls = %d, want 1", got)
	}

	// The second read is served from cache.
	again, err := s.Fetch(ctx, "messages", true)
	if err != nil {
		t.Fatalf("Fetch() second read error: %v", err)
	}
	if string(again.Value) != `[{"id":1}]` || f.callCount("messages") != 1 {
		t.Errorf("second read = %+v with %d remote calls", again, f.callCount("messages"))
	}
}

func TestFetchBypassRefreshesCache(t *testing.T) {
	ctx := context.Background()
	s, f := newTestSource(t)
	f.serve("agents", `{"n":1}`)

	if _, err := s.Fetch(ctx, "agents", true); err != nil {
		t.Fatalf("Fetch() error: %v", err)
	}

	// A bypass fetch always hits the remote and writes through, so a
	// later cached read sees the new value without another call.
	f.serve("agents", `{"n":2}`)
	res, err := s.Fetch(ctx, "agents", false)
	if err != nil {
		t.Fatalf("Fetch(bypass) error: %v", err)
	}
	if res.Stale || string(res.Value) != `{"n":2}` {
		t.Errorf("Fetch(bypass) = %+v", res)
	}
	if got := f.callCount("agents"); got != 2 {
		t.Errorf("remote calls = %d, want 2", got)
	}

	cached, err := s.Fetch(ctx, "agents", true)
	if err != nil {
		t.Fatalf("Fetch() after bypass error: %v", err)
	}
	if string(cached.Value) != `{"n":2}` || f.callCount("agents") != 2 {
		t.Errorf("cached read = %+v with %d remote calls", cached, f.callCount("agents"))
	}
}

func TestRefreshIsBypassFetch(t *testing.T) {
	ctx := context.Background()
	s, f := newTestSource(t)
	f.serve("containers", `[]`)

	if _, err := s.Fetch(ctx, "containers", true); err != nil {
		t.Fatalf("Fetch() error: %v", err)
	}
	f.serve("containers", `[{"id":"x"}]`)

	res, err := s.Refresh(ctx, "containers")
	if err != nil {
		t.Fatalf("Refresh() error: %v", err)
	}
	if string(res.Value) != `[{"id":"x"}]` || f.callCount("containers") != 2 {
		t.Errorf("Refresh() = %+v with %d remote calls", res, f.callCount("containers"))
	}
}

func TestFetchFailureServesStaleValue(t *testing.T) {
	ctx := context.Background()
	base := time.Date(2025, 6, 1, 12, 0, 0, 0, time.UTC)
	clk := clock.Fake(base)
	s, f := newTestSource(t, cache.WithClock(clk))

	f.serve("messages", `"good"`)
	first, err := s.Fetch(ctx, "messages", true)
	if err != nil {
		t.Fatalf("Fetch() error: %v", err)
	}

	// Two hours on, the hot tiers have expired but the copies remain.
	clk.Advance(2 * time.Hour)
	f.fail(errors.New("service unavailable"))

	res, err := s.Refresh(ctx, "messages")
	if err != nil {
		t.Fatalf("Refresh() during outage error: %v", err)
	}
	if !res.Stale || string(res.Value) != `"good"` {
		t.Errorf("Refresh() = %+v, want stale cached value", res)
	}
	if !res.UpdatedAt.Equal(first.UpdatedAt) {
		t.Errorf("UpdatedAt = %v, want original store time %v", res.UpdatedAt, first.UpdatedAt)
	}

	// The cached path degrades the same way once every tier has
	// expired and the loader cannot reach the remote.
	clk.Advance(cache.DefaultDurableTTL)
	res, err = s.Fetch(ctx, "messages", true)
	if err != nil {
		t.Fatalf("Fetch() during outage error: %v", err)
	}
	if !res.Stale || string(res.Value) != `"good"` {
		t.Errorf("Fetch() = %+v, want stale cached value", res)
	}
}

func TestFetchFailureWithoutCacheIsError(t *testing.T) {
	ctx := context.Background()
	s, f := newTestSource(t)

	cause := errors.New("connection refused")
	f.fail(cause)

	res, err := s.Fetch(ctx, "messages", true)
	if err == nil {
		t.Fatal("Fetch() with no cache and no remote succeeded")
	}
	if !errors.Is(err, ErrNoCachedValue) {
		t.Errorf("error = %v, want ErrNoCachedValue in chain", err)
	}
	if !errors.Is(err, cause) {
		t.Errorf("error = %v, want original cause in chain", err)
	}
	if res.Value != nil {
		t.Errorf("Result = %+v, want zero", res)
	}
}
