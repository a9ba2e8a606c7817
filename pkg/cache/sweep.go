package cache

import "context"

// SweepPolicy bounds a persistent-tier sweep.
type SweepPolicy struct {
	// HighWatermark triggers size enforcement when the session tier's
	// disk usage exceeds this many bytes. Zero disables enforcement.
	HighWatermark int64

	// LowWatermark is the usage target once enforcement starts.
	LowWatermark int64
}

// SweepResult reports what a sweep removed.
type SweepResult struct {
	SessionExpired int   `json:"session_expired"`
	DurableExpired int   `json:"durable_expired"`
	ForeignDirs    int   `json:"foreign_dirs"`
	BudgetRemoved  int   `json:"budget_removed"`
	BytesFreed     int64 `json:"bytes_freed"`
}

// Removed returns the total number of entries a sweep deleted.
func (r SweepResult) Removed() int {
	return r.SessionExpired + r.DurableExpired + r.BudgetRemoved
}

// Sweep actively removes expired entries from the persistent tiers,
// clears session directories left by other sessions, and enforces the
// session disk budget by deleting oldest files first. Lazy read-time
// expiry keeps results correct without it; Sweep only reclaims disk
// for entries nothing reads again. The memory tier needs no sweeping.
func (c *TieredCache) Sweep(ctx context.Context, policy SweepPolicy) SweepResult {
	now := c.clock.Now()
	var r SweepResult

	r.SessionExpired = c.session.sweepExpired(now)
	if ctx.Err() != nil {
		return r
	}
	r.DurableExpired = c.durable.sweepExpired(now)
	if ctx.Err() != nil {
		return r
	}
	r.ForeignDirs = c.session.sweepForeign()
	r.BudgetRemoved, r.BytesFreed = c.session.enforceBudget(policy.HighWatermark, policy.LowWatermark)
	return r
}
