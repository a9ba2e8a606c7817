package cliconfig

import (
	"fmt"
	"os"
	"strconv"
	"strings"
	"time"
)

// DefaultServiceURL is the default dashboard API endpoint.
const DefaultServiceURL = "http://localhost:8000"

// Config holds CLI configuration for dashsync.
type Config struct {
	ServiceURL string
	AuthKey    string
	CacheDir   string

	Resources []string

	MemoryTTL      time.Duration
	SessionTTL     time.Duration
	DurableTTL     time.Duration
	MemoryCapacity int

	PollInterval     time.Duration
	HTTPTimeout      time.Duration
	HandshakeTimeout time.Duration
	StopTimeout      time.Duration

	LogLevel string
	JSONLogs bool

	Once        bool
	WatchConfig bool

	JanitorEnabled       bool
	JanitorInterval      time.Duration
	JanitorHighWatermark int64
	JanitorLowWatermark  int64

	TLSCert string
	TLSKey  string
	TLSCA   string
}

// DefaultConfig returns a Config with default values.
func DefaultConfig() Config {
	return Config{
		ServiceURL:           DefaultServiceURL,
		AuthKey:              os.Getenv("DASHSYNC_AUTH_KEY"),
		Resources:            []string{"messages", "agents", "containers"},
		MemoryTTL:            60 * time.Second,
		SessionTTL:           5 * time.Minute,
		DurableTTL:           24 * time.Hour,
		MemoryCapacity:       100,
		PollInterval:         30 * time.Second,
		HTTPTimeout:          15 * time.Second,
		HandshakeTimeout:     10 * time.Second,
		StopTimeout:          30 * time.Second,
		LogLevel:             "info",
		WatchConfig:          true,
		JanitorEnabled:       true,
		JanitorInterval:      time.Hour,
		JanitorHighWatermark: 256 << 20, // 256 MiB
		JanitorLowWatermark:  192 << 20, // 192 MiB
	}
}

// Validate checks the configuration for errors and sets derived defaults.
func (c *Config) Validate() error {
	if c.ServiceURL == "" {
		c.ServiceURL = DefaultServiceURL
	}
	c.ServiceURL = strings.TrimRight(c.ServiceURL, "/")

	if len(c.Resources) == 0 {
		return fmt.Errorf("at least one resource is required")
	}

	if c.MemoryTTL <= 0 || c.SessionTTL <= 0 || c.DurableTTL <= 0 {
		return fmt.Errorf("tier TTLs must be positive")
	}
	if c.MemoryCapacity <= 0 {
		return fmt.Errorf("memory capacity must be positive")
	}
	if c.PollInterval <= 0 {
		return fmt.Errorf("poll interval must be positive")
	}
	if c.HTTPTimeout <= 0 {
		return fmt.Errorf("http timeout must be positive")
	}

	if c.JanitorEnabled && c.JanitorLowWatermark > c.JanitorHighWatermark {
		return fmt.Errorf("janitor low watermark exceeds high watermark")
	}

	if (c.TLSCert == "") != (c.TLSKey == "") {
		return fmt.Errorf("tls-cert and tls-key must be set together")
	}

	return nil
}

// configSetter helps apply configuration values while respecting flag precedence.
// It only applies values if the corresponding flag hasn't been explicitly set.
type configSetter struct {
	changed map[string]bool
}

// newConfigSetter creates a new setter with the given changed flags map.
func newConfigSetter(changed map[string]bool) *configSetter {
	return &configSetter{changed: changed}
}

// setString sets a string value if not empty and flag not changed.
func (s *configSetter) setString(flag, value string, dst *string) {
	if value == "" || s.changed[flag] {
		return
	}
	*dst = value
}

// setStrings sets a string-slice value if non-empty and flag not changed.
func (s *configSetter) setStrings(flag string, value []string, dst *[]string) {
	if len(value) == 0 || s.changed[flag] {
		return
	}
	*dst = value
}

// setInt sets an int value if positive and flag not changed.
func (s *configSetter) setInt(flag string, value int, dst *int) {
	if value <= 0 || s.changed[flag] {
		return
	}
	*dst = value
}

// setInt64 sets an int64 value if positive and flag not changed.
func (s *configSetter) setInt64(flag string, value int64, dst *int64) {
	if value <= 0 || s.changed[flag] {
		return
	}
	*dst = value
}

// setDuration parses and sets a duration from string if valid and flag not changed.
func (s *configSetter) setDuration(flag, value string, dst *time.Duration) error {
	if value == "" || s.changed[flag] {
		return nil
	}
	d, err := time.ParseDuration(value)
	if err != nil {
		return fmt.Errorf("parse %s: %w", flag, err)
	}
	*dst = d
	return nil
}

// setBool sets a bool value from a pointer if not nil and flag not changed.
func (s *configSetter) setBool(flag string, value *bool, dst *bool) {
	if value == nil || s.changed[flag] {
		return
	}
	*dst = *value
}

// setIntFromString parses a string to int and sets the destination if valid.
// Used for environment variables that come as strings.
func (s *configSetter) setIntFromString(flag, value string, dst *int) error {
	if value == "" || s.changed[flag] {
		return nil
	}
	i, err := strconv.Atoi(value)
	if err != nil {
		return fmt.Errorf("parse %s: %w", flag, err)
	}
	if i <= 0 {
		return nil
	}
	*dst = i
	return nil
}

// setInt64FromString parses a string to int64 and sets the destination if valid.
// Used for environment variables that come as strings.
func (s *configSetter) setInt64FromString(flag, value string, dst *int64) error {
	if value == "" || s.changed[flag] {
		return nil
	}
	i, err := strconv.ParseInt(value, 10, 64)
	if err != nil {
		return fmt.Errorf("parse %s: %w", flag, err)
	}
	if i <= 0 {
		return nil
	}
	*dst = i
	return nil
}

// setBoolFromString parses a string to bool and sets the destination.
// Accepts "true", "1" as true, anything else as false.
// Used for environment variables that come as strings.
func (s *configSetter) setBoolFromString(flag, value string, dst *bool) {
	if value == "" || s.changed[flag] {
		return
	}
	*dst = value == "true" || value == "1"
}

// setStringsFromString splits a comma-separated list and sets the
// destination. Used for environment variables that come as strings.
func (s *configSetter) setStringsFromString(flag, value string, dst *[]string) {
	if value == "" || s.changed[flag] {
		return
	}
	var out []string
	for _, p := range strings.Split(value, ",") {
		if p = strings.TrimSpace(p); p != "" {
			out = append(out, p)
		}
	}
	if len(out) > 0 {
		*dst = out
	}
}
