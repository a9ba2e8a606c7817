// Package source resolves named remote resources through the cache
// hierarchy.
//
// A DataSource hides the cache/network distinction from its callers:
// cached reads go through the tiers and only reach the remote service
// on a total miss, bypass reads hit the remote directly and refresh
// the tiers on success. When the remote fails, the newest cached copy
// is served instead, marked stale, so an outage degrades the data
// rather than the dashboard.
//
// # Usage
//
//	ds := source.New(restClient, tieredCache, source.WithLogger(logger))
//
//	res, err := ds.Fetch(ctx, "messages", true)
//	if err != nil {
//		// remote down and no cached copy anywhere
//	}
//	if res.Stale {
//		// render a staleness indicator next to res.Value
//	}
//
// # Version
//
// Current version: 1.0.0
// Minimum compatible version: 1.0.0
//
// See version.go for version constants that can be used programmatically.
package source
