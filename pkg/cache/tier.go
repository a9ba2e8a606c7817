package cache

import "context"

// Tier names used in keys, logs, and metrics.
const (
	TierMemory  = "memory"
	TierSession = "session"
	TierDurable = "durable"
)

// TierKey returns the namespaced key a persistent tier stores a cache
// key under: "cache:<tier>:<key>".
func TierKey(tier, key string) string {
	return "cache:" + tier + ":" + key
}

// Tier is one backing store in the cache hierarchy. Tiers store and
// return entries verbatim; freshness policy (expiry, promotion, TTL
// stamping) lives in TieredCache.
type Tier interface {
	// Name identifies the tier.
	Name() string

	// Get returns the entry stored under key. A missing key returns
	// ok=false with a nil error. Tiers holding serialized entries
	// remove an undecodable record and report it as a miss with a
	// CorruptEntryError.
	Get(ctx context.Context, key string) (entry Entry, ok bool, err error)

	// Set stores the entry under entry.Key, replacing any previous
	// value.
	Set(ctx context.Context, entry Entry) error

	// Delete removes the key. Deleting a missing key is not an error.
	Delete(ctx context.Context, key string) error

	// Close releases tier resources. The tier is unusable afterwards.
	Close() error
}
