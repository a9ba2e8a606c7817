// Package rest implements the remote resource API over HTTP JSON.
package rest

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"strings"

	"github.com/Mich120232024/dashsync/internal/domain"
	"github.com/Mich120232024/dashsync/internal/ports"
	"github.com/Mich120232024/dashsync/pkg/log"
)

const apiPrefix = "/api/v1/"

// errorBodyLimit bounds how much of an error response lands in the
// returned NetworkError.
const errorBodyLimit = 256

// Client fetches resource documents from the dashboard service. It
// implements ports.RemoteAPI.
type Client struct {
	baseURL   string
	authKey   string
	sessionID string
	client    ports.HTTPClient
	logger    log.Logger
}

// ClientConfig identifies the service and the caller.
type ClientConfig struct {
	// ServiceURL is the service base, e.g. https://api.example.com.
	ServiceURL string

	// AuthKey is sent as a bearer token when non-empty.
	AuthKey string

	// SessionID is sent as X-Dashsync-Session when non-empty, letting
	// the service correlate requests from one client session.
	SessionID string
}

// NewClient creates a REST client. A nil httpClient falls back to a
// plain client without a timeout; pass one built by NewHTTPClient to
// bound requests.
func NewClient(cfg ClientConfig, httpClient ports.HTTPClient, logger log.Logger) *Client {
	if httpClient == nil {
		httpClient = &http.Client{}
	}
	if logger == nil {
		logger = log.NewNoopLogger()
	}
	return &Client{
		baseURL:   strings.TrimRight(cfg.ServiceURL, "/"),
		authKey:   cfg.AuthKey,
		sessionID: cfg.SessionID,
		client:    httpClient,
		logger:    logger,
	}
}

// FetchJSON retrieves the current document for resource. Transport
// failures, non-2xx statuses and non-JSON bodies are reported as
// *domain.NetworkError.
func (c *Client) FetchJSON(ctx context.Context, resource string) (json.RawMessage, error) {
	u := c.baseURL + apiPrefix + url.PathEscape(resource)

	req, err := http.NewRequestWithContext(ctx, http.MethodGet, u, nil)
	if err != nil {
		return nil, fmt.Errorf("create request: %w", err)
	}
	req.Header.Set("Accept", "application/json")
	if c.authKey != "" {
		req.Header.Set("Authorization", "Bearer "+c.authKey)
	}
	if c.sessionID != "" {
		req.Header.Set("X-Dashsync-Session", c.sessionID)
	}

	resp, err := c.client.Do(req)
	if err != nil {
		return nil, &domain.NetworkError{URL: u, Err: err}
	}
	defer resp.Body.Close()

	if resp.StatusCode/100 != 2 {
		body, _ := io.ReadAll(io.LimitReader(resp.Body, errorBodyLimit))
		return nil, &domain.NetworkError{
			URL:    u,
			Status: resp.StatusCode,
			Err:    errors.New(strings.TrimSpace(string(body))),
		}
	}

	body, err := io.ReadAll(resp.Body)
	if err != nil {
		return nil, &domain.NetworkError{URL: u, Err: fmt.Errorf("read response: %w", err)}
	}
	if !json.Valid(body) {
		return nil, &domain.NetworkError{URL: u, Err: errors.New("response is not valid JSON")}
	}

	c.logger.Debug("fetched resource",
		log.String("resource", resource),
		log.Int("status", resp.StatusCode),
		log.Int("bytes", len(body)),
	)
	return body, nil
}
