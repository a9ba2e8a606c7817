// Package dashsync keeps named JSON resources from a remote dashboard
// service continuously available to in-process consumers under
// unreliable connectivity.
//
// A [Client] binds four pieces together: a reactive store consumers
// subscribe to, a three-tier cache (memory, session, durable) serving
// read-through lookups, a data source with a stale-fallback read path,
// and a sync channel that streams live update events over WebSocket
// and degrades to scheduled polling when the stream is down.
//
// # Basic Usage
//
// To embed dashsync in your application:
//
//	cfg := dashsync.Config{
//	    ServiceURL: "https://dashboard.example.com",
//	    AuthKey:    "your-api-key",
//	    Resources:  []string{"messages", "agents", "containers"},
//	}
//
//	client, err := dashsync.New(cfg)
//	if err != nil {
//	    log.Fatal(err)
//	}
//
//	ctx := context.Background()
//	if err := client.Start(ctx); err != nil {
//	    log.Fatal(err)
//	}
//
//	cancel := client.Store().Subscribe("messages", func(newV, oldV any) {
//	    // render newV
//	})
//	defer cancel()
//
//	// ... run until shutdown signal ...
//
//	if err := client.Stop(); err != nil {
//	    log.Printf("shutdown error: %v", err)
//	}
//
// # Configuration
//
// Create a [Config] with at minimum ServiceURL. All other fields have
// sensible defaults set via [Config.SetDefaults].
//
// # Staleness
//
// When the remote service is unreachable the newest cached copy of a
// resource is served instead of an error, however old. The store key
// returned by [MetaKey] carries a [ResourceMeta] with the Stale flag
// and the time of last refresh, so a view can render a staleness
// indicator rather than an error screen.
//
// # Event Handling
//
// To observe lifecycle, connection, and sync activity, implement
// [EventHandler] and pass it via [WithEventHandler]:
//
//	handler := &myEventHandler{}
//	client, err := dashsync.New(cfg, dashsync.WithEventHandler(handler))
//
// Events are called synchronously from the sync goroutines.
// Implementations should return quickly to avoid blocking syncing.
//
// # Dependency Injection
//
// For testing, you can inject custom implementations of external
// dependencies:
//
//	client, err := dashsync.New(cfg,
//	    dashsync.WithHTTPClient(mockClient),
//	    dashsync.WithDialer(mockDialer),
//	    dashsync.WithClock(fakeClock),
//	    dashsync.WithLogger(customLogger),
//	)
//
// # Plugins and the Janitor
//
// Optional plugins hook into the client lifecycle:
//
//	import "github.com/Mich120232024/dashsync/plugins/configwatcher"
//
//	client, err := dashsync.New(cfg,
//	    configwatcher.WithConfigWatcher(configwatcher.DefaultConfig()),
//	    dashsync.WithJanitor(dashsync.DefaultJanitorConfig()),
//	)
//
// The janitor periodically sweeps expired entries out of the
// persistent cache tiers; without it, read-time expiry keeps results
// correct but reclaims no disk space.
package dashsync
