package domain

import (
	"errors"
	"fmt"
)

// Domain errors represent error conditions in the dashsync domain.
// These errors are returned by the public API and can be checked with errors.Is.
var (
	// ErrAlreadyRunning is returned when Start() is called on a running client.
	ErrAlreadyRunning = errors.New("dashsync: already running")

	// ErrNotRunning is returned when Stop() is called on a stopped client.
	ErrNotRunning = errors.New("dashsync: not running")

	// ErrShutdownTimeout is returned when graceful shutdown times out.
	ErrShutdownTimeout = errors.New("dashsync: shutdown timeout")

	// ErrInvalidConfig is returned when configuration validation fails.
	ErrInvalidConfig = errors.New("dashsync: invalid configuration")
)

// NetworkError reports a failed remote request. Status is zero when
// the request never produced an HTTP response.
type NetworkError struct {
	URL    string
	Status int
	Err    error
}

// Error implements the error interface.
func (e *NetworkError) Error() string {
	if e.Status != 0 {
		return fmt.Sprintf("dashsync: request %s returned status %d", e.URL, e.Status)
	}
	return fmt.Sprintf("dashsync: request %s failed: %v", e.URL, e.Err)
}

// Unwrap returns the underlying transport error, if any.
func (e *NetworkError) Unwrap() error { return e.Err }

// ChannelError reports a live-channel fault. Channel errors drive the
// connection state machine; they are never surfaced to data readers.
type ChannelError struct {
	Op  string
	Err error
}

// Error implements the error interface.
func (e *ChannelError) Error() string {
	return fmt.Sprintf("dashsync: channel %s: %v", e.Op, e.Err)
}

// Unwrap returns the underlying error.
func (e *ChannelError) Unwrap() error { return e.Err }
