package dashsync

import (
	"context"
	"sync"
	"time"

	"github.com/Mich120232024/dashsync/pkg/cache"
	"github.com/Mich120232024/dashsync/pkg/log"
)

// JanitorConfig holds configuration for the periodic cache sweep.
// Read-time expiry keeps results correct on its own but never deletes
// entries nothing reads again; the janitor reclaims that disk space.
type JanitorConfig struct {
	// Enabled controls whether the janitor runs. Default: false
	Enabled bool

	// CheckInterval is how often to sweep the persistent tiers.
	// Default: 1 hour
	CheckInterval time.Duration

	// HighWatermark is the session-tier size in bytes above which the
	// oldest entries are removed. Default: 256 MiB
	HighWatermark int64

	// LowWatermark is the target size once removal starts.
	// Default: 192 MiB
	LowWatermark int64
}

// DefaultJanitorConfig returns a JanitorConfig with sensible defaults.
func DefaultJanitorConfig() JanitorConfig {
	return JanitorConfig{
		Enabled:       true,
		CheckInterval: time.Hour,
		HighWatermark: 256 << 20,
		LowWatermark:  192 << 20,
	}
}

// WithJanitor enables the periodic cache sweep with the given
// configuration.
//
// Usage:
//
//	c, err := dashsync.New(cfg,
//	    dashsync.WithJanitor(dashsync.JanitorConfig{
//	        Enabled:       true,
//	        CheckInterval: 30 * time.Minute,
//	        HighWatermark: 1 << 30, // 1 GiB
//	        LowWatermark:  1 << 29, // 512 MiB
//	    }),
//	)
func WithJanitor(cfg JanitorConfig) Option {
	if !cfg.Enabled {
		return func(o *options) {}
	}

	if cfg.CheckInterval <= 0 {
		cfg.CheckInterval = time.Hour
	}
	if cfg.HighWatermark <= 0 {
		cfg.HighWatermark = 256 << 20
	}
	if cfg.LowWatermark <= 0 {
		cfg.LowWatermark = 192 << 20
	}

	return func(o *options) {
		o.janitorConfig = &cfg
	}
}

// janitorRunner manages the cache sweep goroutine.
type janitorRunner struct {
	checkInterval time.Duration
	policy        cache.SweepPolicy

	cache  *cache.TieredCache
	logger log.Logger
	cancel context.CancelFunc
	wg     sync.WaitGroup
}

func newJanitorRunner(cfg JanitorConfig, c *cache.TieredCache, logger log.Logger) *janitorRunner {
	return &janitorRunner{
		checkInterval: cfg.CheckInterval,
		policy: cache.SweepPolicy{
			HighWatermark: cfg.HighWatermark,
			LowWatermark:  cfg.LowWatermark,
		},
		cache:  c,
		logger: logger,
	}
}

func (j *janitorRunner) start(ctx context.Context) {
	sweepCtx, cancel := context.WithCancel(ctx)
	j.cancel = cancel

	j.logger.Info("cache janitor enabled",
		log.Duration("interval", j.checkInterval),
	)

	j.wg.Add(1)
	go j.sweepLoop(sweepCtx)
}

func (j *janitorRunner) stop() {
	if j.cancel != nil {
		j.cancel()
	}
	j.wg.Wait()
}

func (j *janitorRunner) sweepLoop(ctx context.Context) {
	defer j.wg.Done()

	// Run immediately on startup
	j.sweepOnce(ctx)

	ticker := time.NewTicker(j.checkInterval)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
			j.sweepOnce(ctx)
		}
	}
}

func (j *janitorRunner) sweepOnce(ctx context.Context) {
	r := j.cache.Sweep(ctx, j.policy)
	if r.Removed() == 0 && r.ForeignDirs == 0 {
		return
	}
	j.logger.Info("cache sweep complete",
		log.Int("session_expired", r.SessionExpired),
		log.Int("durable_expired", r.DurableExpired),
		log.Int("foreign_dirs", r.ForeignDirs),
		log.Int("budget_removed", r.BudgetRemoved),
		log.Int64("bytes_freed", r.BytesFreed),
	)
}
