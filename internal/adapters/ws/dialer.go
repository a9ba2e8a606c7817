// Package ws implements the live sync channel over WebSocket.
package ws

import (
	"context"
	"fmt"
	"net/http"
	"net/url"
	"strings"
	"time"

	"github.com/gorilla/websocket"

	"github.com/Mich120232024/dashsync/internal/domain"
	"github.com/Mich120232024/dashsync/internal/ports"
	"github.com/Mich120232024/dashsync/pkg/log"
)

const (
	wsPath = "/api/v1/ws"

	defaultHandshakeTimeout = 10 * time.Second

	// defaultReadWindow is how long the reader tolerates silence
	// (frames and pongs both count) before declaring the channel lost.
	defaultReadWindow = 75 * time.Second
)

// DialerConfig identifies the service endpoint and the caller.
type DialerConfig struct {
	// ServiceURL is the http(s) service base; the scheme is swapped
	// to ws(s) for the channel endpoint.
	ServiceURL string

	// AuthKey is sent as a bearer token during the handshake when
	// non-empty.
	AuthKey string

	// SessionID is sent as X-Dashsync-Session when non-empty.
	SessionID string

	// HandshakeTimeout bounds the upgrade. Defaults to 10s.
	HandshakeTimeout time.Duration

	// ReadWindow overrides the silence tolerance. Defaults to 75s.
	ReadWindow time.Duration
}

// Dialer establishes live channels. It implements ports.ChannelDialer.
type Dialer struct {
	config DialerConfig
	url    string
	logger log.Logger
}

// NewDialer validates the endpoint and returns a dialer.
func NewDialer(cfg DialerConfig, logger log.Logger) (*Dialer, error) {
	if logger == nil {
		logger = log.NewNoopLogger()
	}
	if cfg.HandshakeTimeout <= 0 {
		cfg.HandshakeTimeout = defaultHandshakeTimeout
	}
	if cfg.ReadWindow <= 0 {
		cfg.ReadWindow = defaultReadWindow
	}

	u, err := url.Parse(strings.TrimRight(cfg.ServiceURL, "/"))
	if err != nil {
		return nil, fmt.Errorf("parse service url: %w", err)
	}
	switch u.Scheme {
	case "http":
		u.Scheme = "ws"
	case "https":
		u.Scheme = "wss"
	case "ws", "wss":
	default:
		return nil, fmt.Errorf("unsupported service url scheme %q", u.Scheme)
	}
	u.Path += wsPath

	return &Dialer{
		config: cfg,
		url:    u.String(),
		logger: logger,
	}, nil
}

// Dial upgrades a connection to the channel endpoint and starts its
// read and ping loops. Failures are reported as *domain.ChannelError.
func (d *Dialer) Dial(ctx context.Context) (ports.LiveChannel, error) {
	dialer := websocket.Dialer{HandshakeTimeout: d.config.HandshakeTimeout}

	header := http.Header{}
	if d.config.AuthKey != "" {
		header.Set("Authorization", "Bearer "+d.config.AuthKey)
	}
	if d.config.SessionID != "" {
		header.Set("X-Dashsync-Session", d.config.SessionID)
	}

	conn, resp, err := dialer.DialContext(ctx, d.url, header)
	if err != nil {
		if resp != nil {
			resp.Body.Close()
			err = fmt.Errorf("%w (status %d)", err, resp.StatusCode)
		}
		return nil, &domain.ChannelError{Op: "dial", Err: err}
	}

	d.logger.Debug("live channel established", log.String("url", d.url))
	return newLiveChannel(conn, d.config.ReadWindow, d.logger), nil
}
