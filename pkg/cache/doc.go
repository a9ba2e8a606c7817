// Package cache provides the three-tier read-through cache for
// dashsync: a FIFO-bounded memory tier, a session-scoped file tier,
// and a durable bbolt tier, with independent TTLs per tier.
//
// Reads scan hot to cold and promote hits toward memory; a total miss
// runs the caller's loader once (concurrent callers coalesce) and
// populates every tier. Expiry is lazy: entries are checked against
// their TTL at read time and removed from the tier they were found
// expired in. Peek ignores expiry and serves as the outage fallback
// read.
//
// # Usage
//
//	c, err := cache.New(cache.Config{Dir: dir})
//	if err != nil {
//	    return err
//	}
//	defer c.Close()
//
//	entry, err := c.Get(ctx, "messages", func(ctx context.Context) (json.RawMessage, error) {
//	    return api.FetchJSON(ctx, "messages")
//	})
//
// # Persistence
//
// The session and durable tiers serialize entries as JSON under
// namespaced keys ("cache:session:<key>", "cache:durable:<key>").
// Undecodable records are removed on read and reported as misses.
// The session tier lives in a per-session directory; directories from
// other sessions are swept at open and by Sweep.
//
// # Version
//
// Current version: 1.0.0
// Minimum compatible version: 1.0.0
//
// See version.go for version constants that can be used programmatically.
package cache
