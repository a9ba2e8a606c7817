// Package clock abstracts time for dashsync components.
//
// The sync engine schedules polling, dial retries, and cache expiry
// against a Clock rather than the time package, so tests can drive
// every timer deterministically.
//
// # Usage
//
// Production code injects the real clock:
//
//	engine := app.NewChannel(deps, clock.Real())
//
// Tests inject a fake and advance it explicitly:
//
//	fake := clock.Fake(time.Unix(0, 0))
//	// ... start the code under test ...
//	fake.BlockUntil(1)
//	fake.Advance(30 * time.Second)
//
// # Version
//
// Current version: 1.0.0
// Minimum compatible version: 1.0.0
//
// See version.go for version constants that can be used programmatically.
package clock
