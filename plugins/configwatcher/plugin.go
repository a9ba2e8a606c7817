// Package configwatcher applies safe config file changes to a running
// dashsync client. It watches the client's config file and, when the
// poll-interval key changes, adjusts the degraded-mode poll cadence
// without a restart. Changes to any other key are logged as requiring
// a restart.
package configwatcher

import (
	"context"
	"fmt"
	"os"
	"path/filepath"
	"reflect"
	"sort"
	"sync"
	"time"

	"github.com/fsnotify/fsnotify"
	toml "github.com/pelletier/go-toml/v2"

	dashsync "github.com/Mich120232024/dashsync"
	"github.com/Mich120232024/dashsync/pkg/log"
)

// Config holds configuration options for the config watcher plugin.
type Config struct {
	// DebounceDelay is the delay to wait after a file change before
	// re-reading, collapsing editor write bursts into one reload.
	// Default: 100 milliseconds
	DebounceDelay time.Duration
}

// DefaultConfig returns a Config with sensible defaults.
func DefaultConfig() Config {
	return Config{
		DebounceDelay: 100 * time.Millisecond,
	}
}

// Plugin implements config file watching. It is wired into the client
// with WithConfigWatcher and does nothing until Initialize.
type Plugin struct {
	mu sync.Mutex

	debounceDelay time.Duration

	configPath string
	logger     log.Logger
	controls   dashsync.Controls
	cancel     context.CancelFunc
	wg         sync.WaitGroup
	debounce   *time.Timer

	// last successfully parsed file contents, keyed by TOML key
	snapshot map[string]any
}

// New creates a new config watcher plugin with the given configuration.
func New(cfg Config) *Plugin {
	if cfg.DebounceDelay <= 0 {
		cfg.DebounceDelay = 100 * time.Millisecond
	}
	return &Plugin{debounceDelay: cfg.DebounceDelay}
}

// Name returns the plugin identifier.
func (p *Plugin) Name() string {
	return "configwatcher"
}

// Initialize records a baseline snapshot of the config file and starts
// the watcher loop. A missing or unwatchable file disables the plugin
// instead of failing the client start.
func (p *Plugin) Initialize(ctx context.Context, cfg dashsync.PluginConfig) error {
	p.mu.Lock()
	p.configPath = cfg.ConfigPath
	p.logger = cfg.Logger
	p.controls = cfg.Controls
	p.mu.Unlock()

	if p.configPath == "" {
		p.logger.Warn("Config watcher disabled: no config file path")
		return nil
	}

	snapshot, err := readConfigFile(p.configPath)
	if err != nil {
		p.logger.Warn("Config watcher disabled: cannot read config file",
			log.String("path", p.configPath),
			log.Err(err))
		return nil
	}
	p.mu.Lock()
	p.snapshot = snapshot
	p.mu.Unlock()

	watchCtx, cancel := context.WithCancel(ctx)
	p.cancel = cancel

	p.logger.Info("Config watcher plugin initialized",
		log.String("path", p.configPath))

	p.wg.Add(1)
	go p.watchLoop(watchCtx)

	return nil
}

// Shutdown stops the watcher loop and waits for it to drain.
func (p *Plugin) Shutdown(ctx context.Context) error {
	if p.cancel != nil {
		p.cancel()
	}
	p.mu.Lock()
	if p.debounce != nil {
		p.debounce.Stop()
	}
	p.mu.Unlock()
	p.wg.Wait()
	return nil
}

// watchLoop watches the config file's directory. Watching the directory
// rather than the file keeps the watch alive across the rename-and-
// replace pattern editors and config tools use when saving.
func (p *Plugin) watchLoop(ctx context.Context) {
	defer p.wg.Done()

	watcher, err := fsnotify.NewWatcher()
	if err != nil {
		p.logger.Error("Config watcher: failed to create watcher", log.Err(err))
		return
	}
	defer watcher.Close()

	if err := watcher.Add(filepath.Dir(p.configPath)); err != nil {
		p.logger.Error("Config watcher: failed to watch directory", log.Err(err))
		return
	}

	target := filepath.Base(p.configPath)

	for {
		select {
		case <-ctx.Done():
			return

		case event, ok := <-watcher.Events:
			if !ok {
				return
			}
			if filepath.Base(event.Name) != target {
				continue
			}
			if event.Op&(fsnotify.Write|fsnotify.Create|fsnotify.Rename) == 0 {
				continue
			}
			p.debounceReload()

		case err, ok := <-watcher.Errors:
			if !ok {
				return
			}
			p.logger.Error("Config watcher: watcher error", log.Err(err))
		}
	}
}

func (p *Plugin) debounceReload() {
	p.mu.Lock()
	defer p.mu.Unlock()

	if p.debounce != nil {
		p.debounce.Stop()
	}
	p.debounce = time.AfterFunc(p.debounceDelay, p.reload)
}

// reload re-reads the config file, applies the poll interval if it
// changed, and logs every other changed key as restart-required.
func (p *Plugin) reload() {
	next, err := readConfigFile(p.configPath)
	if err != nil {
		// Transient states (file mid-rewrite, briefly absent) resolve
		// with the next event; keep the old snapshot.
		p.logger.Warn("Config watcher: reload failed, keeping previous config",
			log.Err(err))
		return
	}

	p.mu.Lock()
	prev := p.snapshot
	p.snapshot = next
	controls := p.controls
	p.mu.Unlock()

	if reflect.DeepEqual(prev, next) {
		return
	}

	if raw, changed := changedKey(prev, next, "poll-interval"); changed {
		if d, err := pollIntervalValue(raw); err != nil {
			p.logger.Warn("Config watcher: invalid poll-interval ignored",
				log.Err(err))
		} else if err := controls.SetPollInterval(d); err != nil {
			p.logger.Warn("Config watcher: failed to apply poll interval",
				log.Err(err))
		} else {
			p.logger.Info("Config watcher: poll interval updated",
				log.Duration("poll_interval", d))
		}
	}

	if stale := restartRequiredKeys(prev, next); len(stale) > 0 {
		p.logger.Warn("Config watcher: changes require a restart to take effect",
			log.Strs("keys", stale))
	}
}

func readConfigFile(path string) (map[string]any, error) {
	b, err := os.ReadFile(path)
	if err != nil {
		return nil, err
	}
	var m map[string]any
	if err := toml.Unmarshal(b, &m); err != nil {
		return nil, err
	}
	return m, nil
}

// changedKey reports whether the value under key differs between the
// two snapshots, returning the new value when it does.
func changedKey(prev, next map[string]any, key string) (any, bool) {
	before, after := prev[key], next[key]
	if reflect.DeepEqual(before, after) {
		return nil, false
	}
	return after, true
}

func pollIntervalValue(raw any) (time.Duration, error) {
	s, ok := raw.(string)
	if !ok {
		return 0, fmt.Errorf("poll-interval: expected duration string, got %T", raw)
	}
	d, err := time.ParseDuration(s)
	if err != nil {
		return 0, fmt.Errorf("poll-interval: %w", err)
	}
	return d, nil
}

// restartRequiredKeys lists keys other than poll-interval whose values
// differ between the two snapshots, sorted for stable log output.
func restartRequiredKeys(prev, next map[string]any) []string {
	seen := map[string]bool{}
	for k := range prev {
		seen[k] = true
	}
	for k := range next {
		seen[k] = true
	}

	var keys []string
	for k := range seen {
		if k == "poll-interval" {
			continue
		}
		if !reflect.DeepEqual(prev[k], next[k]) {
			keys = append(keys, k)
		}
	}
	sort.Strings(keys)
	return keys
}

// Ensure Plugin implements dashsync.Plugin.
var _ dashsync.Plugin = (*Plugin)(nil)
