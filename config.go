package dashsync

import (
	"fmt"
	"os"
	"path/filepath"
	"strings"
	"time"

	"github.com/Mich120232024/dashsync/pkg/cache"
)

// DefaultServiceURL is the dashboard API endpoint used when none is
// configured.
const DefaultServiceURL = "http://localhost:8000"

// Default sync parameters.
const (
	DefaultPollInterval     = 30 * time.Second
	DefaultHTTPTimeout      = 15 * time.Second
	DefaultHandshakeTimeout = 10 * time.Second
	DefaultStopTimeout      = 30 * time.Second
)

// DefaultResources are the dashboard collections synced when none are
// configured.
var DefaultResources = []string{"messages", "agents", "containers"}

// Config holds the client configuration. The zero value is not usable;
// call SetDefaults then Validate, or start from DefaultConfig.
type Config struct {
	// ServiceURL is the dashboard API base, e.g. https://api.example.com.
	ServiceURL string

	// AuthKey is sent as a bearer token on every request when set.
	AuthKey string

	// CacheDir is the root directory for the persistent cache tiers.
	// Derived from os.UserCacheDir when empty.
	CacheDir string

	// ConfigPath is the config file backing this configuration, if
	// any. It is handed to plugins (the config watcher monitors it)
	// and never read by the client itself.
	ConfigPath string

	// Resources are the collections kept in sync. They are primed on
	// Start and polled while the live channel is down.
	Resources []string

	// Cache tier parameters. Zero values fall back to the pkg/cache
	// defaults (60s / 5m / 24h, 100 entries).
	MemoryTTL      time.Duration
	SessionTTL     time.Duration
	DurableTTL     time.Duration
	MemoryCapacity int

	// PollInterval is the degraded-mode refresh cadence.
	PollInterval time.Duration

	// HTTPTimeout bounds each REST request.
	HTTPTimeout time.Duration

	// HandshakeTimeout bounds the live-channel upgrade.
	HandshakeTimeout time.Duration

	// StopTimeout bounds how long Stop waits for workers to drain.
	StopTimeout time.Duration
}

// DefaultConfig returns a Config with every default applied.
func DefaultConfig() Config {
	var cfg Config
	cfg.SetDefaults()
	return cfg
}

// SetDefaults fills unset fields with their defaults.
func (c *Config) SetDefaults() {
	if c.ServiceURL == "" {
		c.ServiceURL = DefaultServiceURL
	}
	if len(c.Resources) == 0 {
		c.Resources = append([]string(nil), DefaultResources...)
	}
	if c.MemoryTTL == 0 {
		c.MemoryTTL = cache.DefaultMemoryTTL
	}
	if c.SessionTTL == 0 {
		c.SessionTTL = cache.DefaultSessionTTL
	}
	if c.DurableTTL == 0 {
		c.DurableTTL = cache.DefaultDurableTTL
	}
	if c.MemoryCapacity == 0 {
		c.MemoryCapacity = cache.DefaultMemoryCapacity
	}
	if c.PollInterval == 0 {
		c.PollInterval = DefaultPollInterval
	}
	if c.HTTPTimeout == 0 {
		c.HTTPTimeout = DefaultHTTPTimeout
	}
	if c.HandshakeTimeout == 0 {
		c.HandshakeTimeout = DefaultHandshakeTimeout
	}
	if c.StopTimeout == 0 {
		c.StopTimeout = DefaultStopTimeout
	}
}

// Validate checks the configuration and sets derived defaults.
func (c *Config) Validate() error {
	if c.ServiceURL == "" {
		return fmt.Errorf("service-url is required")
	}
	c.ServiceURL = strings.TrimRight(c.ServiceURL, "/")

	if len(c.Resources) == 0 {
		return fmt.Errorf("at least one resource is required")
	}
	for _, r := range c.Resources {
		if r == "" {
			return fmt.Errorf("resource names must be non-empty")
		}
	}

	if c.CacheDir == "" {
		base, err := os.UserCacheDir()
		if err != nil {
			return fmt.Errorf("derive cache dir: %w", err)
		}
		c.CacheDir = filepath.Join(base, "dashsync")
	}

	if c.MemoryTTL < 0 || c.SessionTTL < 0 || c.DurableTTL < 0 {
		return fmt.Errorf("tier TTLs must be positive")
	}
	if c.MemoryCapacity < 0 {
		return fmt.Errorf("memory capacity must be positive")
	}
	if c.PollInterval <= 0 {
		return fmt.Errorf("poll interval must be positive")
	}
	if c.HTTPTimeout <= 0 {
		return fmt.Errorf("http timeout must be positive")
	}
	if c.HandshakeTimeout <= 0 {
		return fmt.Errorf("handshake timeout must be positive")
	}
	if c.StopTimeout <= 0 {
		return fmt.Errorf("stop timeout must be positive")
	}

	return nil
}
