package dashsync

import (
	"context"
	"time"

	"github.com/Mich120232024/dashsync/pkg/cache"
)

// Plugin extends the client with optional behavior tied to its
// lifecycle. Plugins are initialized during Start, in registration
// order, and shut down during Stop in reverse order. An Initialize
// error aborts the start.
type Plugin interface {
	// Name returns the plugin identifier used in logs.
	Name() string

	// Initialize is called during Start. The context is canceled when
	// the client stops; long-running plugin work should watch it.
	Initialize(ctx context.Context, cfg PluginConfig) error

	// Shutdown is called during Stop, after the sync engine drained.
	Shutdown(ctx context.Context) error
}

// PluginConfig carries the client context a plugin may need.
type PluginConfig struct {
	// ServiceURL is the dashboard API base.
	ServiceURL string

	// CacheDir is the root of the persistent cache tiers.
	CacheDir string

	// ConfigPath is the config file the client was loaded from, if
	// any.
	ConfigPath string

	// SessionID identifies this client session.
	SessionID string

	// Logger is the client logger.
	Logger Logger

	// Controls exposes the runtime-adjustable client surface.
	Controls Controls
}

// Controls is the subset of the client a plugin may drive at runtime.
// The Client itself implements it.
type Controls interface {
	// SetPollInterval changes the degraded-mode poll cadence.
	SetPollInterval(d time.Duration) error

	// Refresh re-fetches a resource from the remote, bypassing cached
	// reads, and publishes the result.
	Refresh(ctx context.Context, resource string) (Result, error)

	// Invalidate drops a resource from every cache tier.
	Invalidate(resource string) error

	// CacheStats returns the cache counters accumulated so far.
	CacheStats() cache.Stats
}

// BasePlugin provides no-op implementations of the Plugin methods
// except Name. Embed it when a plugin only needs a subset.
type BasePlugin struct{}

// Initialize does nothing.
func (BasePlugin) Initialize(ctx context.Context, cfg PluginConfig) error { return nil }

// Shutdown does nothing.
func (BasePlugin) Shutdown(ctx context.Context) error { return nil }
