package dashsync

import (
	"net/http"

	"github.com/Mich120232024/dashsync/internal/ports"
	"github.com/Mich120232024/dashsync/pkg/cache"
	"github.com/Mich120232024/dashsync/pkg/clock"
	"github.com/Mich120232024/dashsync/pkg/log"
)

// HTTPClient is the interface for making HTTP requests.
// *http.Client satisfies this interface.
type HTTPClient = ports.HTTPClient

// Dialer opens live event channels to the service. The default
// WebSocket dialer satisfies this interface; swap it in tests or to
// front a different transport.
type Dialer = ports.ChannelDialer

// Logger is the structured logging interface from pkg/log.
type Logger = log.Logger

// Option configures optional behavior of the Client.
type Option func(*options)

// options holds the optional configuration for a Client instance.
type options struct {
	httpClient    HTTPClient
	dialer        Dialer
	logger        Logger
	clock         clock.Clock
	metrics       cache.Metrics
	eventHandler  EventHandler
	plugins       []Plugin
	janitorConfig *JanitorConfig
	sessionID     string
}

// defaultOptions returns options with sensible defaults.
func defaultOptions(client *http.Client) options {
	return options{
		httpClient: client,
		logger:     log.NewNoopLogger(),
		clock:      clock.Real(),
	}
}

// WithHTTPClient sets a custom HTTP client for API communication.
// If not provided, a default client with the configured timeout is used.
func WithHTTPClient(client HTTPClient) Option {
	return func(o *options) {
		o.httpClient = client
	}
}

// WithDialer sets a custom live-channel dialer. If not provided, a
// WebSocket dialer against the service URL is used.
func WithDialer(dialer Dialer) Option {
	return func(o *options) {
		o.dialer = dialer
	}
}

// WithLogger sets a custom logger for structured logging.
// If not provided, a no-op logger is used (no output).
func WithLogger(logger Logger) Option {
	return func(o *options) {
		o.logger = logger
	}
}

// WithClock sets the time source driving the poll ticker. Tests
// inject clock.Fake for deterministic timing.
func WithClock(clk clock.Clock) Option {
	return func(o *options) {
		o.clock = clk
	}
}

// WithMetrics sets the cache metrics sink. The client always keeps
// its own counters for CacheStats; this adds an external sink on top.
func WithMetrics(m cache.Metrics) Option {
	return func(o *options) {
		o.metrics = m
	}
}

// WithEventHandler sets a handler for client events.
// Events are called synchronously from the sync goroutines.
// If not provided, no events are emitted.
func WithEventHandler(handler EventHandler) Option {
	return func(o *options) {
		o.eventHandler = handler
	}
}

// WithPlugin registers a plugin to be initialized when the client starts.
// Plugins are initialized in registration order and shut down in reverse
// order. Use this for custom plugins; built-in plugins ship their own
// options, like configwatcher.WithConfigWatcher.
func WithPlugin(plugin Plugin) Option {
	return func(o *options) {
		o.plugins = append(o.plugins, plugin)
	}
}

// WithSessionID pins the session namespace instead of generating a
// fresh one, reattaching to that session's cache tier. Mainly for
// tests.
func WithSessionID(id string) Option {
	return func(o *options) {
		o.sessionID = id
	}
}

// teeMetrics fans cache measurements out to both sinks.
type teeMetrics struct {
	a, b cache.Metrics
}

func (t teeMetrics) Hit(tier string)        { t.a.Hit(tier); t.b.Hit(tier) }
func (t teeMetrics) Miss()                  { t.a.Miss(); t.b.Miss() }
func (t teeMetrics) Eviction()              { t.a.Eviction(); t.b.Eviction() }
func (t teeMetrics) Expiration(tier string) { t.a.Expiration(tier); t.b.Expiration(tier) }
func (t teeMetrics) Promotion(tier string)  { t.a.Promotion(tier); t.b.Promotion(tier) }
func (t teeMetrics) Corruption(tier string) { t.a.Corruption(tier); t.b.Corruption(tier) }
func (t teeMetrics) LoaderCall()            { t.a.LoaderCall(); t.b.LoaderCall() }
