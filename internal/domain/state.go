package domain

import "time"

// ConnectionState is the live-channel health as seen by the sync
// engine. It starts Disconnected, moves to Connected on a successful
// channel handshake, degrades to DegradedPolling when the channel
// fails, and returns to Connected on reconnect.
type ConnectionState int

const (
	// Disconnected means the engine is stopped or not yet started;
	// neither the live channel nor the polling timer is active.
	Disconnected ConnectionState = iota

	// Connected means the live channel is established and update
	// events stream in.
	Connected

	// DegradedPolling means the live channel is down and a recurring
	// poll keeps subscribed resources fresh until it comes back.
	DegradedPolling
)

// String returns a human-readable representation of the state.
func (s ConnectionState) String() string {
	switch s {
	case Disconnected:
		return "Disconnected"
	case Connected:
		return "Connected"
	case DegradedPolling:
		return "DegradedPolling"
	default:
		return "Unknown"
	}
}

// ResourceMeta is the per-resource freshness summary exposed next to
// the data itself, so a view can render a staleness indicator instead
// of an error screen.
type ResourceMeta struct {
	Resource  string    `json:"resource"`
	Stale     bool      `json:"stale"`
	UpdatedAt time.Time `json:"updated_at"`
}
