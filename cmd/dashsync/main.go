package main

import (
	"context"
	"fmt"
	"os"
	"os/signal"
	"runtime"
	"runtime/debug"
	"strings"
	"syscall"

	"github.com/rs/zerolog"
	"github.com/spf13/cobra"
	pflag "github.com/spf13/pflag"

	dashsync "github.com/Mich120232024/dashsync"
	"github.com/Mich120232024/dashsync/internal/adapters/rest"
	"github.com/Mich120232024/dashsync/internal/cliconfig"
	"github.com/Mich120232024/dashsync/pkg/log"
	"github.com/Mich120232024/dashsync/plugins/configwatcher"
)

const helpDescription = `
Keep dashboard resources synced to a local cache and reactive store.

Highlights:
  - Live WebSocket updates with automatic fallback to polling.
  - Three cache tiers (memory, session, durable) so panels render even
    when the service is unreachable.
  - Configure via file, environment (DASHSYNC_*), or flags.
`

var exampleUsage = strings.TrimSpace(`
  dashsync --service-url https://dashboard.example.com --auth-key <api-key>
  dashsync --config $HOME/.dashsync/config.toml --once
`)

func getVersion() string {
	if info, ok := debug.ReadBuildInfo(); ok && info.Main.Version != "" {
		return info.Main.Version
	}
	return "dev"
}

func newLogger(cfg cliconfig.Config) zerolog.Logger {
	level, err := zerolog.ParseLevel(cfg.LogLevel)
	if err != nil {
		level = zerolog.InfoLevel
	}

	var l zerolog.Logger
	if cfg.JSONLogs {
		l = zerolog.New(os.Stderr)
	} else {
		l = zerolog.New(zerolog.ConsoleWriter{Out: os.Stderr})
	}
	return l.Level(level).With().Timestamp().Logger()
}

func main() {
	cfg := cliconfig.DefaultConfig()
	var cfgPath string

	root := &cobra.Command{
		Use:     "dashsync",
		Short:   "Keep dashboard resources synced to a local cache and reactive store",
		Long:    strings.TrimSpace(helpDescription),
		Example: exampleUsage,
		Version: fmt.Sprintf("%s %s/%s", getVersion(), runtime.GOOS, runtime.GOARCH),
		RunE: func(cmd *cobra.Command, args []string) error {
			// Load config file first (default $HOME/.dashsync/config.toml),
			// then env vars, then flag overrides.
			cfgFile := cfgPath
			if cfgFile == "" {
				cfgFile = cliconfig.DefaultConfigPath()
			}

			// Build set of changed flags
			changed := map[string]bool{}
			cmd.Flags().Visit(func(f *pflag.Flag) { changed[f.Name] = true })

			if cfgFile != "" && cliconfig.FileExists(cfgFile) {
				fc, err := cliconfig.LoadFileConfig(cfgFile)
				if err != nil {
					return fmt.Errorf("load config: %w", err)
				}
				if err := cliconfig.ApplyFileConfig(&cfg, fc, changed); err != nil {
					return err
				}
			}

			if err := cliconfig.ApplyEnvConfig(&cfg, changed); err != nil {
				return err
			}

			if err := cfg.Validate(); err != nil {
				return err
			}

			zl := newLogger(cfg)

			// Log configuration (masking API key)
			logCfg := cfg
			if len(logCfg.AuthKey) > 0 {
				logCfg.AuthKey = "*****"
			}
			zl.Info().Interface("config", logCfg).Msg("configuration")

			return run(zl, cfg, cfgFile)
		},
	}

	root.Flags().StringVar(&cfgPath, "config", "", "path to config file (default: $HOME/.dashsync/config.toml)")
	root.Flags().StringVar(&cfg.ServiceURL, "service-url", cfg.ServiceURL, "dashboard API base URL")
	root.Flags().StringVar(&cfg.AuthKey, "auth-key", cfg.AuthKey, "API key for authentication")
	root.Flags().StringVar(&cfg.CacheDir, "cache-dir", cfg.CacheDir, "cache directory (defaults to the user cache dir)")
	root.Flags().StringSliceVar(&cfg.Resources, "resources", cfg.Resources, "resources to keep in sync")

	root.Flags().DurationVar(&cfg.MemoryTTL, "memory-ttl", cfg.MemoryTTL, "memory tier TTL")
	root.Flags().DurationVar(&cfg.SessionTTL, "session-ttl", cfg.SessionTTL, "session tier TTL")
	root.Flags().DurationVar(&cfg.DurableTTL, "durable-ttl", cfg.DurableTTL, "durable tier TTL")
	root.Flags().IntVar(&cfg.MemoryCapacity, "memory-capacity", cfg.MemoryCapacity, "memory tier entry bound")

	root.Flags().DurationVar(&cfg.PollInterval, "poll", cfg.PollInterval, "poll interval while the live channel is down")
	root.Flags().DurationVar(&cfg.HTTPTimeout, "timeout", cfg.HTTPTimeout, "HTTP timeout")
	root.Flags().DurationVar(&cfg.HandshakeTimeout, "handshake-timeout", cfg.HandshakeTimeout, "live channel handshake timeout")
	root.Flags().DurationVar(&cfg.StopTimeout, "stop-timeout", cfg.StopTimeout, "graceful shutdown timeout")

	root.Flags().StringVar(&cfg.LogLevel, "log-level", cfg.LogLevel, "log level (debug, info, warn, error)")
	root.Flags().BoolVar(&cfg.JSONLogs, "json-logs", cfg.JSONLogs, "emit JSON logs instead of console output")
	root.Flags().BoolVar(&cfg.Once, "once", cfg.Once, "prime the configured resources and exit")
	root.Flags().BoolVar(&cfg.WatchConfig, "watch-config", cfg.WatchConfig, "apply safe config file changes at runtime")

	root.Flags().BoolVar(&cfg.JanitorEnabled, "janitor", cfg.JanitorEnabled, "periodically sweep expired cache entries")
	root.Flags().DurationVar(&cfg.JanitorInterval, "janitor-interval", cfg.JanitorInterval, "janitor sweep interval")
	root.Flags().Int64Var(&cfg.JanitorHighWatermark, "janitor-high", cfg.JanitorHighWatermark, "session tier size that triggers cleanup (bytes)")
	root.Flags().Int64Var(&cfg.JanitorLowWatermark, "janitor-low", cfg.JanitorLowWatermark, "session tier size target after cleanup (bytes)")

	root.Flags().StringVar(&cfg.TLSCert, "tls-cert", cfg.TLSCert, "client certificate for mutual TLS (optional)")
	root.Flags().StringVar(&cfg.TLSKey, "tls-key", cfg.TLSKey, "client key for mutual TLS (optional)")
	root.Flags().StringVar(&cfg.TLSCA, "tls-ca", cfg.TLSCA, "CA bundle for mutual TLS (optional)")

	if err := root.Execute(); err != nil {
		zl := zerolog.New(zerolog.ConsoleWriter{Out: os.Stderr})
		zl.Error().Err(err).Msg("dashsync")
		os.Exit(1)
	}
}

func run(zl zerolog.Logger, cfg cliconfig.Config, cfgFile string) error {
	libCfg := dashsync.Config{
		ServiceURL:       cfg.ServiceURL,
		AuthKey:          cfg.AuthKey,
		CacheDir:         cfg.CacheDir,
		ConfigPath:       cfgFile,
		Resources:        cfg.Resources,
		MemoryTTL:        cfg.MemoryTTL,
		SessionTTL:       cfg.SessionTTL,
		DurableTTL:       cfg.DurableTTL,
		MemoryCapacity:   cfg.MemoryCapacity,
		PollInterval:     cfg.PollInterval,
		HTTPTimeout:      cfg.HTTPTimeout,
		HandshakeTimeout: cfg.HandshakeTimeout,
		StopTimeout:      cfg.StopTimeout,
	}

	opts := []dashsync.Option{
		dashsync.WithLogger(log.NewZerologAdapterWithLogger(zl)),
	}

	if cfg.TLSCert != "" {
		client, err := rest.NewMTLSClient(rest.TLSConfig{
			CertFile: cfg.TLSCert,
			KeyFile:  cfg.TLSKey,
			CAFile:   cfg.TLSCA,
		}, cfg.HTTPTimeout)
		if err != nil {
			return fmt.Errorf("mtls transport: %w", err)
		}
		opts = append(opts, dashsync.WithHTTPClient(client))
	}

	if cfg.JanitorEnabled && !cfg.Once {
		opts = append(opts, dashsync.WithJanitor(dashsync.JanitorConfig{
			Enabled:       true,
			CheckInterval: cfg.JanitorInterval,
			HighWatermark: cfg.JanitorHighWatermark,
			LowWatermark:  cfg.JanitorLowWatermark,
		}))
	}

	if cfg.WatchConfig && cfgFile != "" && !cfg.Once {
		opts = append(opts, configwatcher.WithConfigWatcher(configwatcher.DefaultConfig()))
	}

	client, err := dashsync.New(libCfg, opts...)
	if err != nil {
		return fmt.Errorf("create client: %w", err)
	}

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	sigCh := make(chan os.Signal, 1)
	signal.Notify(sigCh, syscall.SIGINT, syscall.SIGTERM)

	statsCh := make(chan os.Signal, 1)
	signal.Notify(statsCh, syscall.SIGUSR1)

	// Start primes the configured resources before launching the sync
	// channel, so in once mode everything is fetched by the time it
	// returns.
	if err := client.Start(ctx); err != nil {
		return fmt.Errorf("start client: %w", err)
	}

	if cfg.Once {
		for _, resource := range client.Resources() {
			if meta, ok := client.Meta(resource); ok {
				zl.Info().
					Str("resource", resource).
					Bool("stale", meta.Stale).
					Time("updated_at", meta.UpdatedAt).
					Msg("resource primed")
			} else {
				zl.Warn().Str("resource", resource).Msg("resource unavailable")
			}
		}
		err := client.Stop()
		dumpStats(zl, client)
		return err
	}

	running := true
	for running {
		select {
		case <-sigCh:
			zl.Info().Msg("received signal, stopping...")
			running = false
		case <-statsCh:
			dumpStats(zl, client)
		}
	}

	if err := client.Stop(); err != nil {
		dumpStats(zl, client)
		return fmt.Errorf("stop client: %w", err)
	}
	dumpStats(zl, client)
	return nil
}

func dumpStats(zl zerolog.Logger, client *dashsync.Client) {
	stats := client.CacheStats()
	zl.Info().
		Int64("memory_hits", stats.MemoryHits).
		Int64("session_hits", stats.SessionHits).
		Int64("durable_hits", stats.DurableHits).
		Int64("misses", stats.Misses).
		Int64("evictions", stats.Evictions).
		Int64("expirations", stats.Expirations).
		Int64("promotions", stats.Promotions).
		Int64("corruptions", stats.Corruptions).
		Int64("loader_calls", stats.LoaderCalls).
		Float64("hit_rate", stats.HitRate()).
		Msg("cache statistics")
}
