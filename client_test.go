package dashsync_test

import (
	"context"
	"encoding/json"
	"errors"
	"net/http"
	"net/http/httptest"
	"strings"
	"sync"
	"testing"
	"time"

	"go.uber.org/goleak"

	dashsync "github.com/Mich120232024/dashsync"
	"github.com/Mich120232024/dashsync/internal/domain"
	"github.com/Mich120232024/dashsync/internal/ports"
)

const waitTimeout = 5 * time.Second

// =============================================================================
// Test Utilities
// =============================================================================

// fakeService is an httptest-backed dashboard API serving mutable JSON
// documents under /api/v1/<resource>.
type fakeService struct {
	mu   sync.Mutex
	docs map[string]string

	server *httptest.Server
}

func newFakeService(t *testing.T) *fakeService {
	t.Helper()
	s := &fakeService{docs: make(map[string]string)}
	s.server = httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		resource := strings.TrimPrefix(r.URL.Path, "/api/v1/")
		s.mu.Lock()
		doc, ok := s.docs[resource]
		s.mu.Unlock()
		if !ok {
			http.Error(w, `{"error":"not found"}`, http.StatusNotFound)
			return
		}
		w.Header().Set("Content-Type", "application/json")
		w.Write([]byte(doc))
	}))
	t.Cleanup(s.server.Close)
	return s
}

func (s *fakeService) URL() string { return s.server.URL }

func (s *fakeService) serve(resource, doc string) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.docs[resource] = doc
}

// newTestHTTPClient builds a client without connection reuse so tests
// leave no transport goroutines behind.
func newTestHTTPClient() *http.Client {
	return &http.Client{
		Timeout:   5 * time.Second,
		Transport: &http.Transport{DisableKeepAlives: true},
	}
}

// fakeLive is a scripted live channel fed by the test.
type fakeLive struct {
	events chan domain.SyncEvent
	once   sync.Once
}

func newFakeLive() *fakeLive {
	return &fakeLive{events: make(chan domain.SyncEvent, 16)}
}

func (l *fakeLive) Events() <-chan domain.SyncEvent { return l.events }
func (l *fakeLive) Err() error                      { return nil }

func (l *fakeLive) Close() error {
	l.once.Do(func() { close(l.events) })
	return nil
}

func (l *fakeLive) update(t *testing.T, resource string) {
	t.Helper()
	ev := domain.SyncEvent{
		Type:       domain.EventResourceUpdated,
		Payload:    json.RawMessage(`{"resource":"` + resource + `"}`),
		ReceivedAt: time.Now(),
	}
	select {
	case l.events <- ev:
	case <-time.After(waitTimeout):
		t.Fatal("timed out emitting event")
	}
}

// liveDialer always hands out the same fake channel.
type liveDialer struct {
	live *fakeLive
}

func (d *liveDialer) Dial(ctx context.Context) (ports.LiveChannel, error) {
	return d.live, nil
}

// downDialer fails every dial, forcing degraded polling.
type downDialer struct{}

func (downDialer) Dial(ctx context.Context) (ports.LiveChannel, error) {
	return nil, &domain.ChannelError{Op: "dial", Err: errors.New("connection refused")}
}

// captureHandler records every client event.
type captureHandler struct {
	dashsync.BaseEventHandler

	mu         sync.Mutex
	states     []dashsync.StateChangeEvent
	connStates []dashsync.ConnStateChangeEvent
	synced     []dashsync.ResourceSyncedEvent
	errors     []dashsync.SyncErrorEvent
}

func (h *captureHandler) OnStateChange(e dashsync.StateChangeEvent) {
	h.mu.Lock()
	defer h.mu.Unlock()
	h.states = append(h.states, e)
}

func (h *captureHandler) OnConnStateChange(e dashsync.ConnStateChangeEvent) {
	h.mu.Lock()
	defer h.mu.Unlock()
	h.connStates = append(h.connStates, e)
}

func (h *captureHandler) OnResourceSynced(e dashsync.ResourceSyncedEvent) {
	h.mu.Lock()
	defer h.mu.Unlock()
	h.synced = append(h.synced, e)
}

func (h *captureHandler) OnSyncError(e dashsync.SyncErrorEvent) {
	h.mu.Lock()
	defer h.mu.Unlock()
	h.errors = append(h.errors, e)
}

func (h *captureHandler) lastConnState() (dashsync.ConnState, bool) {
	h.mu.Lock()
	defer h.mu.Unlock()
	if len(h.connStates) == 0 {
		return dashsync.Disconnected, false
	}
	return h.connStates[len(h.connStates)-1].Current, true
}

func (h *captureHandler) syncedWithOrigin(origin string) []dashsync.ResourceSyncedEvent {
	h.mu.Lock()
	defer h.mu.Unlock()
	var out []dashsync.ResourceSyncedEvent
	for _, e := range h.synced {
		if e.Origin == origin {
			out = append(out, e)
		}
	}
	return out
}

func (h *captureHandler) stateSequence() []dashsync.State {
	h.mu.Lock()
	defer h.mu.Unlock()
	out := make([]dashsync.State, 0, len(h.states))
	for _, e := range h.states {
		out = append(out, e.Current)
	}
	return out
}

// trackingPlugin records initialization and shutdown order.
type trackingPlugin struct {
	name          string
	initOrder     *[]string
	shutdownOrder *[]string
	initError     error
	mu            sync.Mutex
}

func (p *trackingPlugin) Name() string { return p.name }

func (p *trackingPlugin) Initialize(ctx context.Context, cfg dashsync.PluginConfig) error {
	p.mu.Lock()
	defer p.mu.Unlock()
	if p.initError != nil {
		return p.initError
	}
	*p.initOrder = append(*p.initOrder, p.name)
	return nil
}

func (p *trackingPlugin) Shutdown(ctx context.Context) error {
	p.mu.Lock()
	defer p.mu.Unlock()
	*p.shutdownOrder = append(*p.shutdownOrder, p.name)
	return nil
}

func waitFor(t *testing.T, cond func() bool, msg string) {
	t.Helper()
	deadline := time.Now().Add(waitTimeout)
	for time.Now().Before(deadline) {
		if cond() {
			return
		}
		time.Sleep(10 * time.Millisecond)
	}
	t.Fatal(msg)
}

func testConfig(t *testing.T, serviceURL string, resources ...string) dashsync.Config {
	t.Helper()
	if len(resources) == 0 {
		resources = []string{"messages"}
	}
	return dashsync.Config{
		ServiceURL: serviceURL,
		CacheDir:   t.TempDir(),
		Resources:  resources,
	}
}

// =============================================================================
// Construction
// =============================================================================

func TestNew_Defaults(t *testing.T) {
	c, err := dashsync.New(dashsync.Config{CacheDir: t.TempDir()})
	if err != nil {
		t.Fatalf("New failed: %v", err)
	}
	if got := c.Status(); got != dashsync.StateStopped {
		t.Errorf("Status() = %v, want StateStopped", got)
	}
	if c.SessionID() == "" {
		t.Error("SessionID() should be non-empty")
	}
	if got := c.Resources(); len(got) != len(dashsync.DefaultResources) {
		t.Errorf("Resources() = %v, want defaults %v", got, dashsync.DefaultResources)
	}
}

func TestNew_InvalidConfig(t *testing.T) {
	tests := []struct {
		name   string
		mutate func(*dashsync.Config)
	}{
		{
			name:   "negative poll interval",
			mutate: func(c *dashsync.Config) { c.PollInterval = -1 },
		},
		{
			name:   "empty resource name",
			mutate: func(c *dashsync.Config) { c.Resources = []string{"messages", ""} },
		},
		{
			name:   "negative http timeout",
			mutate: func(c *dashsync.Config) { c.HTTPTimeout = -time.Second },
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			cfg := dashsync.Config{CacheDir: t.TempDir()}
			tt.mutate(&cfg)
			if _, err := dashsync.New(cfg); err == nil {
				t.Error("New should fail with invalid config")
			}
		})
	}
}

func TestNew_SessionIDPinned(t *testing.T) {
	cfg := dashsync.Config{CacheDir: t.TempDir()}
	c, err := dashsync.New(cfg, dashsync.WithSessionID("session-1"))
	if err != nil {
		t.Fatalf("New failed: %v", err)
	}
	if got := c.SessionID(); got != "session-1" {
		t.Errorf("SessionID() = %q, want session-1", got)
	}
}

// =============================================================================
// Lifecycle
// =============================================================================

func TestClient_StartStop(t *testing.T) {
	defer goleak.VerifyNone(t)

	svc := newFakeService(t)
	defer svc.server.Close()
	svc.serve("messages", `[{"id":1}]`)

	handler := &captureHandler{}
	c, err := dashsync.New(testConfig(t, svc.URL()),
		dashsync.WithHTTPClient(newTestHTTPClient()),
		dashsync.WithDialer(downDialer{}),
		dashsync.WithEventHandler(handler),
	)
	if err != nil {
		t.Fatalf("New failed: %v", err)
	}

	if err := c.Start(context.Background()); err != nil {
		t.Fatalf("Start failed: %v", err)
	}

	if got := c.Status(); got != dashsync.StateRunning {
		t.Errorf("Status() = %v, want StateRunning", got)
	}

	// Start primes the store before returning.
	v, ok := c.Store().Get("messages")
	if !ok {
		t.Fatal("store should hold the primed resource")
	}
	if string(v.(json.RawMessage)) != `[{"id":1}]` {
		t.Errorf("store value = %s, want [{\"id\":1}]", v)
	}

	meta, ok := c.Meta("messages")
	if !ok {
		t.Fatal("Meta should be published after priming")
	}
	if meta.Stale {
		t.Error("freshly fetched resource should not be stale")
	}

	// With the dialer down the channel settles into degraded polling.
	waitFor(t, func() bool {
		s, ok := handler.lastConnState()
		return ok && s == dashsync.DegradedPolling
	}, "connection never reached DegradedPolling")

	if err := c.Stop(); err != nil {
		t.Fatalf("Stop failed: %v", err)
	}
	if got := c.Status(); got != dashsync.StateStopped {
		t.Errorf("Status() after Stop = %v, want StateStopped", got)
	}

	want := []dashsync.State{
		dashsync.StateStarting,
		dashsync.StateRunning,
		dashsync.StateStopping,
		dashsync.StateStopped,
	}
	got := handler.stateSequence()
	if len(got) != len(want) {
		t.Fatalf("state sequence = %v, want %v", got, want)
	}
	for i := range want {
		if got[i] != want[i] {
			t.Errorf("state[%d] = %v, want %v", i, got[i], want[i])
		}
	}
}

func TestClient_StartWhileRunning(t *testing.T) {
	svc := newFakeService(t)
	svc.serve("messages", `[]`)

	c, err := dashsync.New(testConfig(t, svc.URL()),
		dashsync.WithHTTPClient(newTestHTTPClient()),
		dashsync.WithDialer(downDialer{}),
	)
	if err != nil {
		t.Fatalf("New failed: %v", err)
	}

	if err := c.Start(context.Background()); err != nil {
		t.Fatalf("Start failed: %v", err)
	}
	defer c.Stop()

	if err := c.Start(context.Background()); !errors.Is(err, dashsync.ErrAlreadyRunning) {
		t.Errorf("second Start = %v, want ErrAlreadyRunning", err)
	}
}

func TestClient_StopWhenNotRunning(t *testing.T) {
	c, err := dashsync.New(dashsync.Config{CacheDir: t.TempDir()})
	if err != nil {
		t.Fatalf("New failed: %v", err)
	}
	if err := c.Stop(); !errors.Is(err, dashsync.ErrNotRunning) {
		t.Errorf("Stop = %v, want ErrNotRunning", err)
	}
}

func TestClient_PrimeFailureSurfacesAsEvent(t *testing.T) {
	svc := newFakeService(t)
	// nothing served: every prime fetch fails

	handler := &captureHandler{}
	c, err := dashsync.New(testConfig(t, svc.URL()),
		dashsync.WithHTTPClient(newTestHTTPClient()),
		dashsync.WithDialer(downDialer{}),
		dashsync.WithEventHandler(handler),
	)
	if err != nil {
		t.Fatalf("New failed: %v", err)
	}

	// Start must succeed even when priming cannot fetch anything.
	if err := c.Start(context.Background()); err != nil {
		t.Fatalf("Start failed: %v", err)
	}
	defer c.Stop()

	handler.mu.Lock()
	errCount := len(handler.errors)
	handler.mu.Unlock()
	if errCount == 0 {
		t.Error("prime failure should emit a sync error event")
	}
	if _, ok := c.Store().Get("messages"); ok {
		t.Error("store should stay empty when priming fails")
	}
}

// =============================================================================
// Plugins
// =============================================================================

func TestClient_PluginLifecycleOrder(t *testing.T) {
	svc := newFakeService(t)
	svc.serve("messages", `[]`)

	var initOrder, shutdownOrder []string
	first := &trackingPlugin{name: "first", initOrder: &initOrder, shutdownOrder: &shutdownOrder}
	second := &trackingPlugin{name: "second", initOrder: &initOrder, shutdownOrder: &shutdownOrder}

	c, err := dashsync.New(testConfig(t, svc.URL()),
		dashsync.WithHTTPClient(newTestHTTPClient()),
		dashsync.WithDialer(downDialer{}),
		dashsync.WithPlugin(first),
		dashsync.WithPlugin(second),
	)
	if err != nil {
		t.Fatalf("New failed: %v", err)
	}

	if err := c.Start(context.Background()); err != nil {
		t.Fatalf("Start failed: %v", err)
	}
	if err := c.Stop(); err != nil {
		t.Fatalf("Stop failed: %v", err)
	}

	if len(initOrder) != 2 || initOrder[0] != "first" || initOrder[1] != "second" {
		t.Errorf("init order = %v, want [first second]", initOrder)
	}
	if len(shutdownOrder) != 2 || shutdownOrder[0] != "second" || shutdownOrder[1] != "first" {
		t.Errorf("shutdown order = %v, want [second first]", shutdownOrder)
	}
}

func TestClient_PluginInitFailureAbortsStart(t *testing.T) {
	svc := newFakeService(t)
	svc.serve("messages", `[]`)

	var initOrder, shutdownOrder []string
	bad := &trackingPlugin{
		name:          "bad",
		initOrder:     &initOrder,
		shutdownOrder: &shutdownOrder,
		initError:     errors.New("bad plugin"),
	}

	c, err := dashsync.New(testConfig(t, svc.URL()),
		dashsync.WithHTTPClient(newTestHTTPClient()),
		dashsync.WithDialer(downDialer{}),
		dashsync.WithPlugin(bad),
	)
	if err != nil {
		t.Fatalf("New failed: %v", err)
	}

	if err := c.Start(context.Background()); err == nil {
		t.Fatal("Start should fail when a plugin cannot initialize")
	}
	if got := c.Status(); got != dashsync.StateStopped {
		t.Errorf("Status() = %v, want StateStopped after failed start", got)
	}
}

func TestClient_ControlsSetPollInterval(t *testing.T) {
	c, err := dashsync.New(dashsync.Config{CacheDir: t.TempDir()})
	if err != nil {
		t.Fatalf("New failed: %v", err)
	}

	if err := c.SetPollInterval(5 * time.Second); err != nil {
		t.Errorf("SetPollInterval(5s) = %v", err)
	}
	if err := c.SetPollInterval(0); err == nil {
		t.Error("SetPollInterval(0) should fail")
	}
}

// =============================================================================
// Fetch, Refresh, Invalidate
// =============================================================================

func TestClient_FetchServesCachedReads(t *testing.T) {
	svc := newFakeService(t)
	svc.serve("agents", `{"v":1}`)

	c, err := dashsync.New(testConfig(t, svc.URL(), "agents"),
		dashsync.WithHTTPClient(newTestHTTPClient()),
	)
	if err != nil {
		t.Fatalf("New failed: %v", err)
	}

	ctx := context.Background()

	res, err := c.Fetch(ctx, "agents")
	if err != nil {
		t.Fatalf("Fetch failed: %v", err)
	}
	if string(res.Value) != `{"v":1}` {
		t.Errorf("Fetch value = %s, want {\"v\":1}", res.Value)
	}

	// The remote moves on, but a cached fetch still serves the old copy.
	svc.serve("agents", `{"v":2}`)
	res, err = c.Fetch(ctx, "agents")
	if err != nil {
		t.Fatalf("cached Fetch failed: %v", err)
	}
	if string(res.Value) != `{"v":1}` {
		t.Errorf("cached Fetch value = %s, want {\"v\":1}", res.Value)
	}

	// Refresh bypasses cached reads.
	res, err = c.Refresh(ctx, "agents")
	if err != nil {
		t.Fatalf("Refresh failed: %v", err)
	}
	if string(res.Value) != `{"v":2}` {
		t.Errorf("Refresh value = %s, want {\"v\":2}", res.Value)
	}

	stats := c.CacheStats()
	if stats.Hits() == 0 {
		t.Error("cached Fetch should register a tier hit")
	}
	if stats.LoaderCalls == 0 {
		t.Error("initial Fetch should register a loader call")
	}
}

func TestClient_InvalidateForcesReload(t *testing.T) {
	svc := newFakeService(t)
	svc.serve("agents", `{"v":1}`)

	c, err := dashsync.New(testConfig(t, svc.URL(), "agents"),
		dashsync.WithHTTPClient(newTestHTTPClient()),
	)
	if err != nil {
		t.Fatalf("New failed: %v", err)
	}

	ctx := context.Background()
	if _, err := c.Fetch(ctx, "agents"); err != nil {
		t.Fatalf("Fetch failed: %v", err)
	}

	svc.serve("agents", `{"v":2}`)
	if err := c.Invalidate("agents"); err != nil {
		t.Fatalf("Invalidate failed: %v", err)
	}

	res, err := c.Fetch(ctx, "agents")
	if err != nil {
		t.Fatalf("Fetch after Invalidate failed: %v", err)
	}
	if string(res.Value) != `{"v":2}` {
		t.Errorf("Fetch after Invalidate = %s, want {\"v\":2}", res.Value)
	}
}

// =============================================================================
// Live updates
// =============================================================================

func TestClient_LiveEventUpdatesStore(t *testing.T) {
	svc := newFakeService(t)
	svc.serve("messages", `[{"id":1}]`)

	live := newFakeLive()
	handler := &captureHandler{}
	c, err := dashsync.New(testConfig(t, svc.URL()),
		dashsync.WithHTTPClient(newTestHTTPClient()),
		dashsync.WithDialer(&liveDialer{live: live}),
		dashsync.WithEventHandler(handler),
	)
	if err != nil {
		t.Fatalf("New failed: %v", err)
	}

	var (
		mu       sync.Mutex
		observed []string
	)
	unsubscribe := c.Store().Subscribe("messages", func(newValue, oldValue any) {
		mu.Lock()
		observed = append(observed, string(newValue.(json.RawMessage)))
		mu.Unlock()
	})
	defer unsubscribe()

	if err := c.Start(context.Background()); err != nil {
		t.Fatalf("Start failed: %v", err)
	}
	defer c.Stop()

	waitFor(t, func() bool {
		s, ok := handler.lastConnState()
		return ok && s == dashsync.Connected
	}, "channel never connected")

	svc.serve("messages", `[{"id":1},{"id":2}]`)
	live.update(t, "messages")

	waitFor(t, func() bool {
		v, ok := c.Store().Get("messages")
		return ok && string(v.(json.RawMessage)) == `[{"id":1},{"id":2}]`
	}, "live update never reached the store")

	waitFor(t, func() bool {
		return len(handler.syncedWithOrigin(dashsync.OriginLive)) > 0
	}, "no synced event with the live origin")

	mu.Lock()
	subscribed := len(observed)
	mu.Unlock()
	if subscribed == 0 {
		t.Error("subscriber should observe the live update")
	}
}
