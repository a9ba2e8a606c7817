package cliconfig

import (
	"os"
	"path/filepath"

	toml "github.com/pelletier/go-toml/v2"
)

// FileConfig mirrors Config but uses strings for durations to make TOML friendly.
type FileConfig struct {
	ServiceURL string   `toml:"service-url"`
	AuthKey    string   `toml:"auth-key"`
	CacheDir   string   `toml:"cache-dir"`
	Resources  []string `toml:"resources"`

	MemoryTTL      string `toml:"memory-ttl"`
	SessionTTL     string `toml:"session-ttl"`
	DurableTTL     string `toml:"durable-ttl"`
	MemoryCapacity int    `toml:"memory-capacity"`

	PollInterval     string `toml:"poll-interval"`
	HTTPTimeout      string `toml:"http-timeout"`
	HandshakeTimeout string `toml:"handshake-timeout"`
	StopTimeout      string `toml:"stop-timeout"`

	LogLevel string `toml:"log-level"`
	JSONLogs *bool  `toml:"json-logs"`

	Once        *bool `toml:"once"`
	WatchConfig *bool `toml:"watch-config"`

	JanitorEnabled       *bool  `toml:"janitor"`
	JanitorInterval      string `toml:"janitor-interval"`
	JanitorHighWatermark int64  `toml:"janitor-high-watermark"`
	JanitorLowWatermark  int64  `toml:"janitor-low-watermark"`

	TLSCert string `toml:"tls-cert"`
	TLSKey  string `toml:"tls-key"`
	TLSCA   string `toml:"tls-ca"`
}

// LoadFileConfig reads and parses a TOML config file from the given path.
func LoadFileConfig(path string) (FileConfig, error) {
	var fc FileConfig
	b, err := os.ReadFile(path)
	if err != nil {
		return fc, err
	}
	if err := toml.Unmarshal(b, &fc); err != nil {
		return fc, err
	}
	return fc, nil
}

// DefaultConfigPath returns the default configuration file path.
// Returns ~/.dashsync/config.toml if user home directory is accessible.
func DefaultConfigPath() string {
	if h, err := os.UserHomeDir(); err == nil {
		return filepath.Join(h, ".dashsync", "config.toml")
	}
	return ""
}

// ApplyFileConfig applies configuration from a file to the Config struct.
// It respects flags that have been explicitly set (changed map).
func ApplyFileConfig(cfg *Config, fc FileConfig, changed map[string]bool) error {
	s := newConfigSetter(changed)

	s.setString("service-url", fc.ServiceURL, &cfg.ServiceURL)
	s.setString("auth-key", fc.AuthKey, &cfg.AuthKey)
	s.setString("cache-dir", fc.CacheDir, &cfg.CacheDir)
	s.setStrings("resources", fc.Resources, &cfg.Resources)
	s.setString("log-level", fc.LogLevel, &cfg.LogLevel)
	s.setString("tls-cert", fc.TLSCert, &cfg.TLSCert)
	s.setString("tls-key", fc.TLSKey, &cfg.TLSKey)
	s.setString("tls-ca", fc.TLSCA, &cfg.TLSCA)

	if err := s.setDuration("memory-ttl", fc.MemoryTTL, &cfg.MemoryTTL); err != nil {
		return err
	}
	if err := s.setDuration("session-ttl", fc.SessionTTL, &cfg.SessionTTL); err != nil {
		return err
	}
	if err := s.setDuration("durable-ttl", fc.DurableTTL, &cfg.DurableTTL); err != nil {
		return err
	}
	if err := s.setDuration("poll", fc.PollInterval, &cfg.PollInterval); err != nil {
		return err
	}
	if err := s.setDuration("timeout", fc.HTTPTimeout, &cfg.HTTPTimeout); err != nil {
		return err
	}
	if err := s.setDuration("handshake-timeout", fc.HandshakeTimeout, &cfg.HandshakeTimeout); err != nil {
		return err
	}
	if err := s.setDuration("stop-timeout", fc.StopTimeout, &cfg.StopTimeout); err != nil {
		return err
	}
	if err := s.setDuration("janitor-interval", fc.JanitorInterval, &cfg.JanitorInterval); err != nil {
		return err
	}

	s.setInt("memory-capacity", fc.MemoryCapacity, &cfg.MemoryCapacity)
	s.setInt64("janitor-high", fc.JanitorHighWatermark, &cfg.JanitorHighWatermark)
	s.setInt64("janitor-low", fc.JanitorLowWatermark, &cfg.JanitorLowWatermark)

	s.setBool("json-logs", fc.JSONLogs, &cfg.JSONLogs)
	s.setBool("once", fc.Once, &cfg.Once)
	s.setBool("watch-config", fc.WatchConfig, &cfg.WatchConfig)
	s.setBool("janitor", fc.JanitorEnabled, &cfg.JanitorEnabled)

	return nil
}

// FileExists checks if a file exists at the given path.
func FileExists(p string) bool {
	_, err := os.Stat(p)
	return err == nil
}
