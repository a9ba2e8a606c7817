package dashsync

import (
	"time"

	"github.com/Mich120232024/dashsync/internal/app"
	"github.com/Mich120232024/dashsync/internal/domain"
	"github.com/Mich120232024/dashsync/pkg/source"
)

// State is the client lifecycle state.
type State int

const (
	StateStopped State = iota
	StateStarting
	StateRunning
	StateStopping
)

// String returns a human-readable representation of the state.
func (s State) String() string {
	switch s {
	case StateStopped:
		return "Stopped"
	case StateStarting:
		return "Starting"
	case StateRunning:
		return "Running"
	case StateStopping:
		return "Stopping"
	default:
		return "Unknown"
	}
}

// ConnState is the live-channel connection state.
type ConnState = domain.ConnectionState

// Connection states. The channel starts Disconnected, moves to
// Connected when the live stream is up, and to DegradedPolling while
// scheduled polling covers for it.
const (
	Disconnected    = domain.Disconnected
	Connected       = domain.Connected
	DegradedPolling = domain.DegradedPolling
)

// Origins carried on ResourceSyncedEvent and SyncErrorEvent,
// identifying what triggered the refresh.
const (
	// OriginFetch is a direct Fetch/Refresh call or the priming pass
	// during Start.
	OriginFetch = app.OriginFetch

	// OriginLive is a refresh driven by a live-channel update event.
	OriginLive = app.OriginLive

	// OriginPoll is a degraded-mode poll tick.
	OriginPoll = app.OriginPoll

	// OriginReconnect is the catch-up refresh after the live channel
	// comes back.
	OriginReconnect = app.OriginReconnect
)

// StateChangeEvent reports a lifecycle transition.
type StateChangeEvent struct {
	Previous State
	Current  State
	Reason   string
}

// ConnStateChangeEvent reports a connection-state transition.
type ConnStateChangeEvent struct {
	Previous ConnState
	Current  ConnState
	Reason   string
}

// ResourceSyncedEvent reports a resource landing in the store.
type ResourceSyncedEvent struct {
	Resource  string
	Origin    string
	Stale     bool
	Bytes     int
	UpdatedAt time.Time
}

// SyncErrorEvent reports a refresh that failed outright, with not even
// a stale cached copy to serve.
type SyncErrorEvent struct {
	Resource string
	Origin   string
	Err      error
}

// EventHandler receives client events. Handlers are called
// synchronously from the sync goroutines and must not block. Embed
// BaseEventHandler to implement only the events you care about.
type EventHandler interface {
	// OnStateChange is called on every lifecycle transition.
	OnStateChange(event StateChangeEvent)

	// OnConnStateChange is called on every connection transition.
	OnConnStateChange(event ConnStateChangeEvent)

	// OnResourceSynced is called after a refreshed resource lands in
	// the store.
	OnResourceSynced(event ResourceSyncedEvent)

	// OnSyncError is called when a refresh fails with no cached
	// fallback.
	OnSyncError(event SyncErrorEvent)
}

// BaseEventHandler is a no-op EventHandler. Embed it to override a
// subset of the events.
type BaseEventHandler struct{}

func (BaseEventHandler) OnStateChange(StateChangeEvent)         {}
func (BaseEventHandler) OnConnStateChange(ConnStateChangeEvent) {}
func (BaseEventHandler) OnResourceSynced(ResourceSyncedEvent)   {}
func (BaseEventHandler) OnSyncError(SyncErrorEvent)             {}

// emitterWrapper adapts EventHandler to the internal emitter
// interfaces. A nil handler silently drops every event.
type emitterWrapper struct {
	handler EventHandler
}

func (e *emitterWrapper) OnStateChange(previous, current app.State, reason string) {
	if e.handler == nil {
		return
	}
	e.handler.OnStateChange(StateChangeEvent{
		Previous: convertState(previous),
		Current:  convertState(current),
		Reason:   reason,
	})
}

func (e *emitterWrapper) OnConnectionStateChange(previous, current domain.ConnectionState, reason string) {
	if e.handler == nil {
		return
	}
	e.handler.OnConnStateChange(ConnStateChangeEvent{
		Previous: previous,
		Current:  current,
		Reason:   reason,
	})
}

func (e *emitterWrapper) OnResourceSynced(res source.Result, origin string) {
	if e.handler == nil {
		return
	}
	e.handler.OnResourceSynced(ResourceSyncedEvent{
		Resource:  res.Resource,
		Origin:    origin,
		Stale:     res.Stale,
		Bytes:     len(res.Value),
		UpdatedAt: res.UpdatedAt,
	})
}

func (e *emitterWrapper) OnSyncError(resource, origin string, err error) {
	if e.handler == nil {
		return
	}
	e.handler.OnSyncError(SyncErrorEvent{
		Resource: resource,
		Origin:   origin,
		Err:      err,
	})
}

func convertState(s app.State) State {
	switch s {
	case app.StateStopped:
		return StateStopped
	case app.StateStarting:
		return StateStarting
	case app.StateRunning:
		return StateRunning
	case app.StateStopping:
		return StateStopping
	default:
		return StateStopped
	}
}
