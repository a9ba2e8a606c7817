package configwatcher

import dashsync "github.com/Mich120232024/dashsync"

// WithConfigWatcher returns a dashsync Option that applies safe config
// file changes at runtime. The plugin watches the config file the
// client was loaded from; edits to poll-interval take effect without a
// restart, and other changed keys are logged as restart-required.
//
// Usage:
//
//	c, err := dashsync.New(cfg,
//	    configwatcher.WithConfigWatcher(configwatcher.Config{
//	        DebounceDelay: 100 * time.Millisecond,
//	    }),
//	)
func WithConfigWatcher(cfg Config) dashsync.Option {
	plugin := New(cfg)
	return dashsync.WithPlugin(plugin)
}

// WithDefaultConfigWatcher returns a dashsync Option that enables
// config watching with default settings (debounce 100ms).
//
// Usage:
//
//	c, err := dashsync.New(cfg, configwatcher.WithDefaultConfigWatcher())
func WithDefaultConfigWatcher() dashsync.Option {
	return WithConfigWatcher(DefaultConfig())
}
