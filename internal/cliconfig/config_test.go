package cliconfig

import (
	"testing"
	"time"
)

func TestDefaultConfig(t *testing.T) {
	cfg := DefaultConfig()

	if cfg.ServiceURL != DefaultServiceURL {
		t.Errorf("ServiceURL = %v, want %v", cfg.ServiceURL, DefaultServiceURL)
	}
	if cfg.PollInterval != 30*time.Second {
		t.Errorf("PollInterval = %v, want 30s", cfg.PollInterval)
	}
	if cfg.MemoryTTL != 60*time.Second {
		t.Errorf("MemoryTTL = %v, want 60s", cfg.MemoryTTL)
	}
	if cfg.SessionTTL != 5*time.Minute {
		t.Errorf("SessionTTL = %v, want 5m", cfg.SessionTTL)
	}
	if cfg.DurableTTL != 24*time.Hour {
		t.Errorf("DurableTTL = %v, want 24h", cfg.DurableTTL)
	}
	if cfg.MemoryCapacity != 100 {
		t.Errorf("MemoryCapacity = %v, want 100", cfg.MemoryCapacity)
	}
	if len(cfg.Resources) != 3 {
		t.Errorf("Resources = %v, want 3 defaults", cfg.Resources)
	}
	if cfg.JanitorHighWatermark != 256<<20 {
		t.Errorf("JanitorHighWatermark = %v, want 256 MiB", cfg.JanitorHighWatermark)
	}
}

func TestConfig_Validate(t *testing.T) {
	base := func() Config {
		cfg := DefaultConfig()
		cfg.ServiceURL = "http://localhost:8080"
		return cfg
	}

	tests := []struct {
		name           string
		mutate         func(*Config)
		wantErr        bool
		wantServiceURL string
	}{
		{
			name:   "valid default config",
			mutate: func(cfg *Config) {},
		},
		{
			name:           "service url defaults when omitted",
			mutate:         func(cfg *Config) { cfg.ServiceURL = "" },
			wantServiceURL: DefaultServiceURL,
		},
		{
			name:           "trailing slash trimmed",
			mutate:         func(cfg *Config) { cfg.ServiceURL = "http://localhost:8080/" },
			wantServiceURL: "http://localhost:8080",
		},
		{
			name:    "empty resources",
			mutate:  func(cfg *Config) { cfg.Resources = nil },
			wantErr: true,
		},
		{
			name:    "invalid poll interval",
			mutate:  func(cfg *Config) { cfg.PollInterval = -1 },
			wantErr: true,
		},
		{
			name:    "invalid memory ttl",
			mutate:  func(cfg *Config) { cfg.MemoryTTL = 0 },
			wantErr: true,
		},
		{
			name:    "invalid memory capacity",
			mutate:  func(cfg *Config) { cfg.MemoryCapacity = 0 },
			wantErr: true,
		},
		{
			name: "janitor low watermark above high",
			mutate: func(cfg *Config) {
				cfg.JanitorHighWatermark = 100
				cfg.JanitorLowWatermark = 200
			},
			wantErr: true,
		},
		{
			name: "watermarks ignored when janitor disabled",
			mutate: func(cfg *Config) {
				cfg.JanitorEnabled = false
				cfg.JanitorHighWatermark = 100
				cfg.JanitorLowWatermark = 200
			},
		},
		{
			name:    "tls cert without key",
			mutate:  func(cfg *Config) { cfg.TLSCert = "/tmp/cert.pem" },
			wantErr: true,
		},
		{
			name: "tls cert with key",
			mutate: func(cfg *Config) {
				cfg.TLSCert = "/tmp/cert.pem"
				cfg.TLSKey = "/tmp/key.pem"
			},
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			cfg := base()
			tt.mutate(&cfg)
			err := cfg.Validate()
			if (err != nil) != tt.wantErr {
				t.Fatalf("Validate() error = %v, wantErr %v", err, tt.wantErr)
			}
			if err == nil && tt.wantServiceURL != "" && cfg.ServiceURL != tt.wantServiceURL {
				t.Errorf("ServiceURL = %v, want %v", cfg.ServiceURL, tt.wantServiceURL)
			}
		})
	}
}
