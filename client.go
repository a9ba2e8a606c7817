package dashsync

import (
	"context"
	"fmt"
	"net/http"
	"sync"
	"time"

	"github.com/google/uuid"

	"github.com/Mich120232024/dashsync/internal/adapters/rest"
	"github.com/Mich120232024/dashsync/internal/adapters/ws"
	"github.com/Mich120232024/dashsync/internal/app"
	"github.com/Mich120232024/dashsync/internal/domain"
	"github.com/Mich120232024/dashsync/pkg/cache"
	"github.com/Mich120232024/dashsync/pkg/clock"
	"github.com/Mich120232024/dashsync/pkg/log"
	"github.com/Mich120232024/dashsync/pkg/source"
	"github.com/Mich120232024/dashsync/pkg/store"
)

// Result is one resolved read: the resource document plus its
// staleness metadata.
type Result = source.Result

// ResourceMeta is the per-resource freshness summary published under
// the meta store key.
type ResourceMeta = domain.ResourceMeta

// MetaKey returns the store key carrying the freshness summary for a
// resource.
func MetaKey(resource string) string { return app.MetaKey(resource) }

// Sentinel errors returned by the client API.
var (
	ErrAlreadyRunning  = domain.ErrAlreadyRunning
	ErrNotRunning      = domain.ErrNotRunning
	ErrShutdownTimeout = domain.ErrShutdownTimeout
	ErrInvalidConfig   = domain.ErrInvalidConfig
)

// Client keeps named JSON resources from a remote dashboard service
// continuously available through a reactive store, backed by a tiered
// cache and a live event channel with a polling fallback.
// Use New() to create an instance, then Start() to begin syncing.
type Client struct {
	config    Config
	opts      options
	sessionID string

	lifecycle *app.Lifecycle
	channel   *app.Channel
	binder    *app.StoreBinder
	store     *store.Store
	cache     *cache.TieredCache
	source    *source.DataSource
	counters  *cache.Counters
	janitor   *janitorRunner
	emitter   *emitterWrapper
	logger    log.Logger

	plugins []Plugin

	mu     sync.RWMutex
	ctx    context.Context
	cancel context.CancelFunc
}

// New creates a new Client with the given configuration.
// The instance is created in StateStopped; call Start() to begin syncing.
// Returns an error if configuration is invalid.
func New(cfg Config, opts ...Option) (*Client, error) {
	cfg.SetDefaults()

	if err := cfg.Validate(); err != nil {
		return nil, err
	}

	// Validate module version compatibility
	if err := validateModuleVersions(); err != nil {
		return nil, err
	}

	// Apply options
	httpClient := &http.Client{Timeout: cfg.HTTPTimeout}
	o := defaultOptions(httpClient)
	for _, opt := range opts {
		opt(&o)
	}

	logger := o.logger
	sessionID := o.sessionID
	if sessionID == "" {
		sessionID = uuid.NewString()
	}

	// The client keeps its own counters for CacheStats; an external
	// sink from WithMetrics observes the same stream.
	counters := &cache.Counters{}
	var metrics cache.Metrics = counters
	if o.metrics != nil {
		metrics = teeMetrics{a: counters, b: o.metrics}
	}

	tiers, err := cache.New(cache.Config{
		Dir:            cfg.CacheDir,
		SessionID:      sessionID,
		MemoryTTL:      cfg.MemoryTTL,
		SessionTTL:     cfg.SessionTTL,
		DurableTTL:     cfg.DurableTTL,
		MemoryCapacity: cfg.MemoryCapacity,
	},
		cache.WithMetrics(metrics),
		cache.WithClock(o.clock),
		cache.WithLogger(logger),
	)
	if err != nil {
		return nil, fmt.Errorf("create cache: %w", err)
	}

	remote := rest.NewClient(rest.ClientConfig{
		ServiceURL: cfg.ServiceURL,
		AuthKey:    cfg.AuthKey,
		SessionID:  sessionID,
	}, o.httpClient, logger)

	src := source.New(remote, tiers, source.WithLogger(logger))

	st := store.New()
	binder := app.NewStoreBinder(st)

	dialer := o.dialer
	if dialer == nil {
		wsDialer, err := ws.NewDialer(ws.DialerConfig{
			ServiceURL:       cfg.ServiceURL,
			AuthKey:          cfg.AuthKey,
			SessionID:        sessionID,
			HandshakeTimeout: cfg.HandshakeTimeout,
			ReadWindow:       cfg.PollInterval * 5 / 2,
		}, logger)
		if err != nil {
			tiers.Close()
			return nil, fmt.Errorf("create channel dialer: %w", err)
		}
		dialer = wsDialer
	}

	emitter := &emitterWrapper{handler: o.eventHandler}

	channel := app.NewChannel(app.ChannelConfig{
		Resources:    cfg.Resources,
		PollInterval: cfg.PollInterval,
	}, app.ChannelDeps{
		Dialer: dialer,
		Source: src,
		Cache:  tiers,
		Binder: binder,
		Logger: logger,
		Clock:  o.clock,
		Conn:   emitter,
		Sync:   emitter,
	})

	c := &Client{
		config:    cfg,
		opts:      o,
		sessionID: sessionID,
		lifecycle: app.NewLifecycle(logger, emitter),
		channel:   channel,
		binder:    binder,
		store:     st,
		cache:     tiers,
		source:    src,
		counters:  counters,
		emitter:   emitter,
		logger:    logger,
		plugins:   o.plugins,
	}

	if o.janitorConfig != nil {
		c.janitor = newJanitorRunner(*o.janitorConfig, tiers, logger)
	}

	return c, nil
}

// Start begins syncing in the background. It primes every configured
// resource through the cached fetch path (prime failures surface as
// events, not errors), then launches the sync channel and returns.
// The provided context bounds the lifetime of the sync operation.
func (c *Client) Start(ctx context.Context) error {
	c.mu.Lock()
	defer c.mu.Unlock()

	if !c.lifecycle.CanStart() {
		return domain.ErrAlreadyRunning
	}

	if err := c.lifecycle.TransitionTo(app.StateStarting, "Start() called"); err != nil {
		return err
	}

	runCtx, cancel := context.WithCancel(ctx)
	c.ctx = runCtx
	c.cancel = cancel
	c.lifecycle.SetCancel(cancel)

	// Initialize plugins
	pluginCfg := PluginConfig{
		ServiceURL: c.config.ServiceURL,
		CacheDir:   c.config.CacheDir,
		ConfigPath: c.config.ConfigPath,
		SessionID:  c.sessionID,
		Logger:     c.logger,
		Controls:   c,
	}
	for _, p := range c.plugins {
		if err := p.Initialize(runCtx, pluginCfg); err != nil {
			c.logger.Error("plugin initialization failed",
				log.String("plugin", p.Name()),
				log.Err(err))
			cancel()
			_ = c.lifecycle.TransitionTo(app.StateStopped, "plugin init failed: "+p.Name())
			return err
		}
		c.logger.Info("plugin initialized", log.String("plugin", p.Name()))
	}

	if c.janitor != nil {
		c.janitor.start(runCtx)
	}

	// Prime the store so consumers have data before the first live
	// event or poll tick.
	c.prime(runCtx)

	if err := c.lifecycle.TransitionTo(app.StateRunning, "sync channel starting"); err != nil {
		return err
	}

	c.lifecycle.AddWorker()
	go func() {
		defer c.lifecycle.WorkerDone()
		if err := c.channel.Run(runCtx); err != nil && err != context.Canceled {
			c.logger.Error("sync channel error", log.Err(err))
		}
	}()

	return nil
}

// Stop gracefully shuts the client down: the sync channel drains, the
// janitor stops, plugins shut down in reverse registration order, and
// the cache tiers close. Waits up to Config.StopTimeout before
// forcing shutdown; returns ErrShutdownTimeout if forced.
func (c *Client) Stop() error {
	c.mu.Lock()

	if !c.lifecycle.CanStop() {
		c.mu.Unlock()
		return domain.ErrNotRunning
	}

	if err := c.lifecycle.TransitionTo(app.StateStopping, "Stop() called"); err != nil {
		c.mu.Unlock()
		return err
	}

	if c.cancel != nil {
		c.cancel()
	}

	c.mu.Unlock()

	err := c.lifecycle.WaitWithTimeout(c.config.StopTimeout)

	if c.janitor != nil {
		c.janitor.stop()
	}

	// Shutdown plugins (in reverse order)
	shutdownCtx := context.Background()
	for i := len(c.plugins) - 1; i >= 0; i-- {
		p := c.plugins[i]
		if shutdownErr := p.Shutdown(shutdownCtx); shutdownErr != nil {
			c.logger.Error("plugin shutdown failed",
				log.String("plugin", p.Name()),
				log.Err(shutdownErr))
		} else {
			c.logger.Info("plugin shutdown complete", log.String("plugin", p.Name()))
		}
	}

	if closeErr := c.cache.Close(); closeErr != nil {
		c.logger.Error("cache close failed", log.Err(closeErr))
	}

	if err != nil {
		_ = c.lifecycle.TransitionTo(app.StateStopped, "shutdown timeout")
	} else {
		_ = c.lifecycle.TransitionTo(app.StateStopped, "graceful shutdown")
	}

	return err
}

// prime fetches every configured resource through the cached path and
// publishes the results. Failures are reported through the event
// handler; a resource that cannot be fetched simply stays absent
// until the channel or a poll refreshes it.
func (c *Client) prime(ctx context.Context) {
	for _, resource := range c.config.Resources {
		if ctx.Err() != nil {
			return
		}
		res, err := c.source.Fetch(ctx, resource, true)
		if err != nil {
			c.logger.Warn("prime fetch failed",
				log.String("resource", resource),
				log.Err(err))
			c.emitter.OnSyncError(resource, app.OriginFetch, err)
			continue
		}
		c.binder.Apply(res)
		c.emitter.OnResourceSynced(res, app.OriginFetch)
	}
}

// Fetch resolves a resource through the cache tiers, reaching the
// remote only on a total miss, and publishes the result to the store.
// When the remote is down the newest cached copy is served with
// Stale set; an error is returned only with nothing cached at all.
func (c *Client) Fetch(ctx context.Context, resource string) (Result, error) {
	res, err := c.source.Fetch(ctx, resource, true)
	if err != nil {
		c.emitter.OnSyncError(resource, app.OriginFetch, err)
		return Result{}, err
	}
	c.binder.Apply(res)
	c.emitter.OnResourceSynced(res, app.OriginFetch)
	return res, nil
}

// Refresh re-fetches a resource from the remote, bypassing cached
// reads but refreshing every tier, and publishes the result.
func (c *Client) Refresh(ctx context.Context, resource string) (Result, error) {
	res, err := c.source.Refresh(ctx, resource)
	if err != nil {
		c.emitter.OnSyncError(resource, app.OriginFetch, err)
		return Result{}, err
	}
	c.binder.Apply(res)
	c.emitter.OnResourceSynced(res, app.OriginFetch)
	return res, nil
}

// Invalidate drops a resource from every cache tier. The next Fetch
// is a full miss.
func (c *Client) Invalidate(resource string) error {
	return c.cache.Invalidate(context.Background(), resource)
}

// Meta returns the last published freshness summary for a resource.
func (c *Client) Meta(resource string) (ResourceMeta, bool) {
	return c.binder.Meta(resource)
}

// Store returns the reactive store consumers subscribe to.
func (c *Client) Store() *store.Store {
	return c.store
}

// Status returns the current lifecycle state.
// Safe to call concurrently from any goroutine.
func (c *Client) Status() State {
	return convertState(c.lifecycle.State())
}

// State returns the current connection state.
func (c *Client) State() ConnState {
	return c.channel.State()
}

// SetPollInterval changes the degraded-mode poll cadence at runtime.
func (c *Client) SetPollInterval(d time.Duration) error {
	return c.channel.SetPollInterval(d)
}

// CacheStats returns the cache counters accumulated so far.
func (c *Client) CacheStats() cache.Stats {
	return c.counters.Snapshot()
}

// SessionID returns the id namespacing this client's session tier and
// request headers.
func (c *Client) SessionID() string {
	return c.sessionID
}

// Resources returns the configured resource names.
func (c *Client) Resources() []string {
	out := make([]string, len(c.config.Resources))
	copy(out, c.config.Resources)
	return out
}

// validateModuleVersions checks that all module versions are compatible.
// Returns an error if any module version is below its minimum compatible version.
func validateModuleVersions() error {
	modules := map[string]struct {
		version    string
		minVersion string
	}{
		"store":  {store.Version, store.MinCompatibleVersion},
		"cache":  {cache.Version, cache.MinCompatibleVersion},
		"clock":  {clock.Version, clock.MinCompatibleVersion},
		"source": {source.Version, source.MinCompatibleVersion},
		"log":    {log.Version, log.MinCompatibleVersion},
	}

	for name, m := range modules {
		if !isVersionCompatible(m.version, m.minVersion) {
			return fmt.Errorf("module %s version %s is below minimum compatible version %s",
				name, m.version, m.minVersion)
		}
	}

	return nil
}

// isVersionCompatible checks if version >= minVersion using semantic versioning.
// Assumes versions are in format "major.minor.patch".
func isVersionCompatible(version, minVersion string) bool {
	var vMajor, vMinor, vPatch int
	var mMajor, mMinor, mPatch int

	_, _ = fmt.Sscanf(version, "%d.%d.%d", &vMajor, &vMinor, &vPatch)
	_, _ = fmt.Sscanf(minVersion, "%d.%d.%d", &mMajor, &mMinor, &mPatch)

	if vMajor != mMajor {
		return vMajor > mMajor
	}
	if vMinor != mMinor {
		return vMinor > mMinor
	}
	return vPatch >= mPatch
}
