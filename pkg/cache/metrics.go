package cache

import "sync/atomic"

// Metrics receives cache activity counts. Implementations must be safe
// for concurrent use.
type Metrics interface {
	// Hit records a fresh entry served from the named tier.
	Hit(tier string)

	// Miss records a lookup that found no fresh entry in any tier.
	Miss()

	// Eviction records a memory-tier entry displaced by capacity.
	Eviction()

	// Expiration records an entry found expired in the named tier.
	Expiration(tier string)

	// Promotion records an entry copied into the named hotter tier.
	Promotion(tier string)

	// Corruption records an undecodable persisted entry in the named
	// tier.
	Corruption(tier string)

	// LoaderCall records a loader invocation on a total miss.
	LoaderCall()
}

// NoopMetrics discards all measurements.
type NoopMetrics struct{}

func (NoopMetrics) Hit(tier string)        {}
func (NoopMetrics) Miss()                  {}
func (NoopMetrics) Eviction()              {}
func (NoopMetrics) Expiration(tier string) {}
func (NoopMetrics) Promotion(tier string)  {}
func (NoopMetrics) Corruption(tier string) {}
func (NoopMetrics) LoaderCall()            {}

// Counters is an atomic Metrics implementation. Snapshot returns the
// totals accumulated so far.
type Counters struct {
	memoryHits  atomic.Int64
	sessionHits atomic.Int64
	durableHits atomic.Int64
	misses      atomic.Int64
	evictions   atomic.Int64
	expirations atomic.Int64
	promotions  atomic.Int64
	corruptions atomic.Int64
	loaderCalls atomic.Int64
}

// Stats is a point-in-time snapshot of cache counters.
type Stats struct {
	MemoryHits  int64 `json:"memory_hits"`
	SessionHits int64 `json:"session_hits"`
	DurableHits int64 `json:"durable_hits"`
	Misses      int64 `json:"misses"`
	Evictions   int64 `json:"evictions"`
	Expirations int64 `json:"expirations"`
	Promotions  int64 `json:"promotions"`
	Corruptions int64 `json:"corruptions"`
	LoaderCalls int64 `json:"loader_calls"`
}

// Hits returns the total across all tiers.
func (s Stats) Hits() int64 {
	return s.MemoryHits + s.SessionHits + s.DurableHits
}

// HitRate returns hits / (hits + misses), or 0 with no traffic.
func (s Stats) HitRate() float64 {
	total := s.Hits() + s.Misses
	if total == 0 {
		return 0
	}
	return float64(s.Hits()) / float64(total)
}

func (c *Counters) Hit(tier string) {
	switch tier {
	case TierMemory:
		c.memoryHits.Add(1)
	case TierSession:
		c.sessionHits.Add(1)
	case TierDurable:
		c.durableHits.Add(1)
	}
}

func (c *Counters) Miss()                  { c.misses.Add(1) }
func (c *Counters) Eviction()              { c.evictions.Add(1) }
func (c *Counters) Expiration(tier string) { c.expirations.Add(1) }
func (c *Counters) Promotion(tier string)  { c.promotions.Add(1) }
func (c *Counters) Corruption(tier string) { c.corruptions.Add(1) }
func (c *Counters) LoaderCall()            { c.loaderCalls.Add(1) }

// Snapshot returns the current totals.
func (c *Counters) Snapshot() Stats {
	return Stats{
		MemoryHits:  c.memoryHits.Load(),
		SessionHits: c.sessionHits.Load(),
		DurableHits: c.durableHits.Load(),
		Misses:      c.misses.Load(),
		Evictions:   c.evictions.Load(),
		Expirations: c.expirations.Load(),
		Promotions:  c.promotions.Load(),
		Corruptions: c.corruptions.Load(),
		LoaderCalls: c.loaderCalls.Load(),
	}
}
