package cliconfig

import "os"

// ApplyEnvConfig applies configuration from environment variables (DASHSYNC_*).
// It respects flags that have been explicitly set (changed map).
// Returns error if any environment variable has an invalid format.
func ApplyEnvConfig(cfg *Config, changed map[string]bool) error {
	s := newConfigSetter(changed)

	s.setString("service-url", os.Getenv("DASHSYNC_SERVICE_URL"), &cfg.ServiceURL)
	s.setString("auth-key", os.Getenv("DASHSYNC_AUTH_KEY"), &cfg.AuthKey)
	s.setString("cache-dir", os.Getenv("DASHSYNC_CACHE_DIR"), &cfg.CacheDir)
	s.setString("log-level", os.Getenv("DASHSYNC_LOG_LEVEL"), &cfg.LogLevel)
	s.setString("tls-cert", os.Getenv("DASHSYNC_TLS_CERT"), &cfg.TLSCert)
	s.setString("tls-key", os.Getenv("DASHSYNC_TLS_KEY"), &cfg.TLSKey)
	s.setString("tls-ca", os.Getenv("DASHSYNC_TLS_CA"), &cfg.TLSCA)

	s.setStringsFromString("resources", os.Getenv("DASHSYNC_RESOURCES"), &cfg.Resources)

	if err := s.setDuration("memory-ttl", os.Getenv("DASHSYNC_MEMORY_TTL"), &cfg.MemoryTTL); err != nil {
		return err
	}
	if err := s.setDuration("session-ttl", os.Getenv("DASHSYNC_SESSION_TTL"), &cfg.SessionTTL); err != nil {
		return err
	}
	if err := s.setDuration("durable-ttl", os.Getenv("DASHSYNC_DURABLE_TTL"), &cfg.DurableTTL); err != nil {
		return err
	}
	if err := s.setDuration("poll", os.Getenv("DASHSYNC_POLL_INTERVAL"), &cfg.PollInterval); err != nil {
		return err
	}
	if err := s.setDuration("timeout", os.Getenv("DASHSYNC_HTTP_TIMEOUT"), &cfg.HTTPTimeout); err != nil {
		return err
	}
	if err := s.setDuration("handshake-timeout", os.Getenv("DASHSYNC_HANDSHAKE_TIMEOUT"), &cfg.HandshakeTimeout); err != nil {
		return err
	}
	if err := s.setDuration("stop-timeout", os.Getenv("DASHSYNC_STOP_TIMEOUT"), &cfg.StopTimeout); err != nil {
		return err
	}
	if err := s.setDuration("janitor-interval", os.Getenv("DASHSYNC_JANITOR_INTERVAL"), &cfg.JanitorInterval); err != nil {
		return err
	}

	if err := s.setIntFromString("memory-capacity", os.Getenv("DASHSYNC_MEMORY_CAPACITY"), &cfg.MemoryCapacity); err != nil {
		return err
	}
	if err := s.setInt64FromString("janitor-high", os.Getenv("DASHSYNC_JANITOR_HIGH_WATERMARK"), &cfg.JanitorHighWatermark); err != nil {
		return err
	}
	if err := s.setInt64FromString("janitor-low", os.Getenv("DASHSYNC_JANITOR_LOW_WATERMARK"), &cfg.JanitorLowWatermark); err != nil {
		return err
	}

	s.setBoolFromString("json-logs", os.Getenv("DASHSYNC_JSON_LOGS"), &cfg.JSONLogs)
	s.setBoolFromString("once", os.Getenv("DASHSYNC_ONCE"), &cfg.Once)
	s.setBoolFromString("watch-config", os.Getenv("DASHSYNC_WATCH_CONFIG"), &cfg.WatchConfig)
	s.setBoolFromString("janitor", os.Getenv("DASHSYNC_JANITOR"), &cfg.JanitorEnabled)

	return nil
}
