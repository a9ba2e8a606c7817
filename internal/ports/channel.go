package ports

import (
	"context"

	"github.com/Mich120232024/dashsync/internal/domain"
)

// LiveChannel is an established event stream from the remote service.
type LiveChannel interface {
	// Events returns the stream of decoded messages. The channel is
	// closed when the connection drops or Close is called; once it
	// closes, Err reports what ended the stream.
	Events() <-chan domain.SyncEvent

	// Err returns the error that terminated the stream, or nil after
	// a clean local Close.
	Err() error

	// Close tears the connection down and releases the reader.
	Close() error
}

// ChannelDialer opens live channels to the remote service.
// Dial failures are reported as *domain.ChannelError.
type ChannelDialer interface {
	// Dial performs the handshake and returns the established channel.
	Dial(ctx context.Context) (LiveChannel, error)
}
