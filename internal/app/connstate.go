package app

import (
	"sync"

	"github.com/Mich120232024/dashsync/internal/domain"
	"github.com/Mich120232024/dashsync/pkg/log"
)

// ConnEmitter is called when the connection state changes.
type ConnEmitter interface {
	OnConnectionStateChange(previous, current domain.ConnectionState, reason string)
}

// connTracker records connection-state transitions for the sync
// engine. Change events are emitted outside its lock.
type connTracker struct {
	mu      sync.RWMutex
	state   domain.ConnectionState
	logger  log.Logger
	emitter ConnEmitter
}

func newConnTracker(logger log.Logger, emitter ConnEmitter) *connTracker {
	return &connTracker{
		state:   domain.Disconnected,
		logger:  logger,
		emitter: emitter,
	}
}

// State returns the current connection state.
func (t *connTracker) State() domain.ConnectionState {
	t.mu.RLock()
	defer t.mu.RUnlock()
	return t.state
}

// transitionTo moves the machine to newState. Requesting the current
// state again is a no-op and emits nothing.
func (t *connTracker) transitionTo(newState domain.ConnectionState, reason string) {
	t.mu.Lock()
	oldState := t.state
	if oldState == newState {
		t.mu.Unlock()
		return
	}
	t.state = newState
	t.mu.Unlock()

	// Emit event outside of lock
	if t.emitter != nil {
		t.emitter.OnConnectionStateChange(oldState, newState, reason)
	}

	t.logger.Info("connection state changed",
		log.String("from", oldState.String()),
		log.String("to", newState.String()),
		log.String("reason", reason),
	)
}
