package session

import (
	"fmt"
	"net/url"
	"strings"

	"github.com/modelcontextprotocol/go-sdk/mcp"

	"github.com/mcp-conformance-harness/internal/domain"
)

// NewClientTransport builds the SDK client transport for an endpoint. In auto mode a
// path ending in /sse selects the SSE transport; anything else uses streamable HTTP.
func NewClientTransport(endpoint, transportType string) (mcp.Transport, error) {
	u, err := url.Parse(endpoint)
	if err != nil {
		return nil, fmt.Errorf("invalid endpoint %q: %w", endpoint, err)
	}
	if u.Scheme != "http" && u.Scheme != "https" {
		return nil, fmt.Errorf("invalid endpoint %q: scheme must be http or https", endpoint)
	}
	if u.Host == "" {
		return nil, fmt.Errorf("invalid endpoint %q: missing host", endpoint)
	}

	switch TransportTypeFor(u, transportType) {
	case domain.TransportSSE:
		return &mcp.SSEClientTransport{Endpoint: endpoint}, nil
	case domain.TransportStreamable:
		return &mcp.StreamableClientTransport{Endpoint: endpoint}, nil
	default:
		return nil, fmt.Errorf("unsupported transport type: %s", transportType)
	}
}

// TransportTypeFor resolves the auto transport type for a parsed endpoint
func TransportTypeFor(u *url.URL, transportType string) string {
	if transportType != domain.TransportAuto {
		return transportType
	}
	if strings.HasSuffix(strings.TrimSuffix(u.Path, "/"), "/sse") {
		return domain.TransportSSE
	}
	return domain.TransportStreamable
}
