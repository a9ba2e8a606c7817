package domain

import (
	"encoding/json"
	"time"
)

// Event types recognized on the live channel. Messages with other
// types are ignored.
const (
	// EventResourceUpdated signals that a resource changed remotely and
	// cached copies of it are out of date.
	EventResourceUpdated = "resource-updated"
)

// SyncEvent is one message from the live channel: a type tag plus an
// opaque payload. Events are transient; they are consumed immediately
// and never persisted.
type SyncEvent struct {
	// Type is the event tag (e.g. "resource-updated").
	Type string `json:"type"`

	// Payload is the event body, decoded per Type.
	Payload json.RawMessage `json:"payload"`

	// ReceivedAt is when the message arrived locally. It is not part
	// of the wire shape.
	ReceivedAt time.Time `json:"-"`
}

// UpdatePayload is the payload of a resource-updated event. Messages
// from the remote service name only the resource; synthetic events
// produced by the polling path also carry the refreshed value.
type UpdatePayload struct {
	Resource  string          `json:"resource"`
	Value     json.RawMessage `json:"value,omitempty"`
	Stale     bool            `json:"stale,omitempty"`
	UpdatedAt time.Time       `json:"updated_at"`
}
