package ports

import (
	"context"
	"encoding/json"
)

// RemoteAPI is the read boundary to the dashboard service. Resource
// names are opaque strings; the service returns the complete JSON
// document for each.
type RemoteAPI interface {
	// FetchJSON retrieves the current document for resource.
	// Failures are reported as *domain.NetworkError.
	FetchJSON(ctx context.Context, resource string) (json.RawMessage, error)
}
