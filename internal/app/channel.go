package app

import (
	"context"
	"encoding/json"
	"fmt"
	"sync"
	"time"

	"github.com/Mich120232024/dashsync/internal/domain"
	"github.com/Mich120232024/dashsync/internal/ports"
	"github.com/Mich120232024/dashsync/pkg/cache"
	"github.com/Mich120232024/dashsync/pkg/clock"
	"github.com/Mich120232024/dashsync/pkg/log"
	"github.com/Mich120232024/dashsync/pkg/source"
)

// DefaultPollInterval is the degraded-mode refresh cadence.
const DefaultPollInterval = 30 * time.Second

// Origins identify what triggered a resource refresh.
const (
	OriginLive      = "live"
	OriginPoll      = "poll"
	OriginReconnect = "reconnect"
	OriginFetch     = "fetch"
)

// ChannelConfig contains configuration for the sync engine.
type ChannelConfig struct {
	// Resources are the names polled while degraded and refreshed
	// after a reconnect.
	Resources []string

	// PollInterval is the degraded-mode cadence. Each tick retries the
	// live channel first and polls the resources if that fails.
	PollInterval time.Duration
}

// ChannelDeps are the collaborators the engine drives.
type ChannelDeps struct {
	Dialer ports.ChannelDialer
	Source *source.DataSource
	Cache  *cache.TieredCache
	Binder *StoreBinder
	Logger log.Logger
	Clock  clock.Clock
	Conn   ConnEmitter
	Sync   SyncEmitter
}

// SyncEmitter receives sync activity from the engine.
type SyncEmitter interface {
	// OnResourceSynced is called after a refreshed resource lands in
	// the store. Origin is one of the Origin constants.
	OnResourceSynced(res source.Result, origin string)

	// OnSyncError is called when a refresh fails outright, with not
	// even a stale cached copy to serve.
	OnSyncError(resource, origin string, err error)
}

// Channel keeps subscribed resources in sync with the remote service.
// It prefers a live event channel and degrades to scheduled polling
// when the channel cannot be established or drops; every poll tick
// first retries the live channel. Channel faults drive state
// transitions and are never returned to callers.
type Channel struct {
	config  ChannelConfig
	dialer  ports.ChannelDialer
	source  *source.DataSource
	cache   *cache.TieredCache
	binder  *StoreBinder
	conn    *connTracker
	logger  log.Logger
	clock   clock.Clock
	emitter SyncEmitter

	mu       sync.Mutex
	interval time.Duration
	ticker   *clock.Ticker
}

// NewChannel creates the sync engine. Logger and Clock default to the
// no-op logger and the real clock; emitters may be nil.
func NewChannel(config ChannelConfig, deps ChannelDeps) *Channel {
	if config.PollInterval <= 0 {
		config.PollInterval = DefaultPollInterval
	}
	if deps.Logger == nil {
		deps.Logger = log.NewNoopLogger()
	}
	if deps.Clock == nil {
		deps.Clock = clock.Real()
	}

	return &Channel{
		config:   config,
		dialer:   deps.Dialer,
		source:   deps.Source,
		cache:    deps.Cache,
		binder:   deps.Binder,
		conn:     newConnTracker(deps.Logger, deps.Conn),
		logger:   deps.Logger,
		clock:    deps.Clock,
		emitter:  deps.Sync,
		interval: config.PollInterval,
	}
}

// State returns the current connection state.
func (c *Channel) State() domain.ConnectionState {
	return c.conn.State()
}

// Resources returns the synced resource names.
func (c *Channel) Resources() []string {
	out := make([]string, len(c.config.Resources))
	copy(out, c.config.Resources)
	return out
}

// PollInterval returns the current degraded-mode cadence.
func (c *Channel) PollInterval() time.Duration {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.interval
}

// SetPollInterval changes the degraded-mode cadence. A running poll
// timer is reset to the new interval immediately.
func (c *Channel) SetPollInterval(d time.Duration) error {
	if d <= 0 {
		return fmt.Errorf("%w: poll interval must be positive", domain.ErrInvalidConfig)
	}

	c.mu.Lock()
	defer c.mu.Unlock()
	c.interval = d
	if c.ticker != nil {
		c.ticker.Reset(d)
	}
	c.logger.Info("poll interval updated", log.Duration("interval", d))
	return nil
}

// Run executes the sync loop: dial, consume events until the channel
// drops, degrade to polling, reconnect, repeat. It returns when ctx
// is canceled, leaving the state machine Disconnected.
func (c *Channel) Run(ctx context.Context) error {
	reconnected := false
	live, err := c.dialer.Dial(ctx)

	for ctx.Err() == nil {
		if err == nil {
			reason := "channel established"
			if reconnected {
				reason = "channel reestablished"
			}
			c.conn.transitionTo(domain.Connected, reason)
			if reconnected {
				// Polling may have missed updates between the last
				// tick and the reconnect; refresh everything once.
				c.refreshAll(ctx, OriginReconnect)
			}
			c.consume(ctx, live)
			live = nil
			if ctx.Err() != nil {
				break
			}
			c.conn.transitionTo(domain.DegradedPolling, "live channel lost")
		} else {
			c.logger.Warn("live channel unavailable", log.Err(err))
			c.conn.transitionTo(domain.DegradedPolling, "dial failed")
		}

		reconnected = true
		live, err = c.pollUntilConnected(ctx)
	}

	c.conn.transitionTo(domain.Disconnected, "stopped")
	return ctx.Err()
}

// consume drains the live channel until it drops or ctx ends.
func (c *Channel) consume(ctx context.Context, live ports.LiveChannel) {
	defer live.Close()

	for {
		select {
		case <-ctx.Done():
			return
		case ev, ok := <-live.Events():
			if !ok {
				if err := live.Err(); err != nil {
					c.logger.Warn("live channel dropped", log.Err(err))
				}
				return
			}
			c.handleEvent(ctx, ev)
		}
	}
}

// handleEvent dispatches one live message. Unknown types are ignored.
func (c *Channel) handleEvent(ctx context.Context, ev domain.SyncEvent) {
	switch ev.Type {
	case domain.EventResourceUpdated:
		var p domain.UpdatePayload
		if err := json.Unmarshal(ev.Payload, &p); err != nil {
			c.logger.Warn("malformed event payload",
				log.String("type", ev.Type),
				log.Err(err),
			)
			return
		}
		if p.Resource == "" {
			c.logger.Warn("resource-updated event without a resource")
			return
		}
		c.applyUpdate(ctx, p.Resource)
	default:
		c.logger.Debug("ignoring event", log.String("type", ev.Type))
	}
}

// applyUpdate reacts to a remote change notice: invalidate the cached
// copies, re-fetch, publish to the store. The ordering means no
// subscriber can observe a refreshed store backed by a stale cache.
func (c *Channel) applyUpdate(ctx context.Context, resource string) {
	if err := c.cache.Invalidate(ctx, resource); err != nil {
		c.logger.Warn("cache invalidation failed",
			log.String("resource", resource),
			log.Err(err),
		)
	}

	res, err := c.source.Fetch(ctx, resource, true)
	if err != nil {
		c.logger.Warn("refresh after update failed",
			log.String("resource", resource),
			log.Err(err),
		)
		if c.emitter != nil {
			c.emitter.OnSyncError(resource, OriginLive, err)
		}
		return
	}

	c.binder.Apply(res)
	if c.emitter != nil {
		c.emitter.OnResourceSynced(res, OriginLive)
	}
}

// pollUntilConnected is the degraded mode: every tick retries the
// live channel and, failing that, refreshes each subscribed resource.
// It returns the new channel on reconnect, or ctx.Err().
func (c *Channel) pollUntilConnected(ctx context.Context) (ports.LiveChannel, error) {
	ticker := c.clock.NewTicker(c.PollInterval())
	c.setTicker(ticker)
	defer func() {
		c.setTicker(nil)
		ticker.Stop()
	}()

	for {
		select {
		case <-ctx.Done():
			return nil, ctx.Err()
		case <-ticker.C:
			live, err := c.dialer.Dial(ctx)
			if err == nil {
				return live, nil
			}
			c.logger.Debug("reconnect attempt failed", log.Err(err))
			c.refreshAll(ctx, OriginPoll)
		}
	}
}

// refreshAll re-fetches every subscribed resource from the remote,
// bypassing cached reads, and publishes the results. A failed
// resource is logged and skipped for this cycle only.
func (c *Channel) refreshAll(ctx context.Context, origin string) {
	for _, resource := range c.config.Resources {
		if ctx.Err() != nil {
			return
		}

		res, err := c.source.Refresh(ctx, resource)
		if err != nil {
			c.logger.Warn("poll refresh failed",
				log.String("resource", resource),
				log.String("origin", origin),
				log.Err(err),
			)
			if c.emitter != nil {
				c.emitter.OnSyncError(resource, origin, err)
			}
			continue
		}

		c.binder.Apply(res)
		if c.emitter != nil {
			c.emitter.OnResourceSynced(res, origin)
		}
	}
}

func (c *Channel) setTicker(t *clock.Ticker) {
	c.mu.Lock()
	c.ticker = t
	c.mu.Unlock()
}
