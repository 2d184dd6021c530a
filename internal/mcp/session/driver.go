// Package session adapts an MCP SDK client session to the harness SessionDriver
// contract. Every error leaving this package is a *domain.CallError; the decision
// between structured, unclassified and connection faults is made here and nowhere else.
package session

import (
	"context"
	"errors"
	"fmt"
	"io"
	"net"
	"net/url"
	"sync"

	"github.com/modelcontextprotocol/go-sdk/jsonrpc"
	"github.com/modelcontextprotocol/go-sdk/mcp"
	"github.com/sirupsen/logrus"
	"github.com/sony/gobreaker"

	"github.com/mcp-conformance-harness/internal/domain"
	"github.com/mcp-conformance-harness/internal/mcp/logging"
)

// codeTransportRejected is the code the SDK assigns to requests its HTTP transport
// could not deliver. It is built on the client side and never comes from the server.
const codeTransportRejected int64 = -32005

// Driver owns one initialized client session
type Driver struct {
	session *mcp.ClientSession
	breaker *gobreaker.CircuitBreaker
	logger  *logging.MCPLogger

	closeOnce sync.Once
	closeErr  error
}

var _ domain.SessionDriver = (*Driver)(nil)

// Open connects to an endpoint and performs the initialize handshake
func Open(ctx context.Context, endpoint string, cfg *domain.Config, logger *logging.MCPLogger) (*Driver, error) {
	transport, err := NewClientTransport(endpoint, cfg.Transport.Type)
	if err != nil {
		return nil, domain.NewConnectionError(err)
	}
	logger.Entry(logging.OperationConnect).WithFields(logrus.Fields{
		"endpoint":  endpoint,
		"transport": fmt.Sprintf("%T", transport),
	}).Info("Connecting to MCP server")

	return Connect(ctx, transport, cfg, logger)
}

// Connect performs the handshake over an already constructed transport
func Connect(ctx context.Context, transport mcp.Transport, cfg *domain.Config, logger *logging.MCPLogger) (*Driver, error) {
	client := mcp.NewClient(&mcp.Implementation{
		Name:    cfg.Client.Name,
		Version: cfg.Client.Version,
	}, nil)

	cs, err := client.Connect(ctx, transport, nil)
	if err != nil {
		return nil, connectionFault(fmt.Errorf("initialize session: %w", err))
	}

	d := &Driver{
		session: cs,
		breaker: newBreaker(cfg.Breaker, logger),
		logger:  logger,
	}

	logger.Entry(logging.OperationConnect).Info("MCP session initialized")
	return d, nil
}

// newBreaker trips after Threshold consecutive transport faults. Protocol errors are
// answers from a live server and count as successes.
func newBreaker(cfg domain.BreakerConfig, logger *logging.MCPLogger) *gobreaker.CircuitBreaker {
	return gobreaker.NewCircuitBreaker(gobreaker.Settings{
		Name:        "mcp-session",
		MaxRequests: 1,
		ReadyToTrip: func(counts gobreaker.Counts) bool {
			return counts.ConsecutiveFailures >= cfg.Threshold
		},
		IsSuccessful: func(err error) bool {
			return err == nil || isProtocolError(err)
		},
		OnStateChange: func(name string, from, to gobreaker.State) {
			logger.Entry(logging.OperationConnect).WithFields(logrus.Fields{
				"breaker": name,
				"from":    from.String(),
				"to":      to.String(),
			}).Warn("Session circuit breaker changed state")
		},
	})
}

// ListTools returns every published tool, following pagination cursors
func (d *Driver) ListTools(ctx context.Context) ([]*mcp.Tool, error) {
	var tools []*mcp.Tool
	params := &mcp.ListToolsParams{}
	for {
		res, err := execute(ctx, d, func() (*mcp.ListToolsResult, error) {
			return d.session.ListTools(ctx, params)
		})
		if err != nil {
			return nil, err
		}
		tools = append(tools, res.Tools...)
		if res.NextCursor == "" {
			return tools, nil
		}
		params = &mcp.ListToolsParams{Cursor: res.NextCursor}
	}
}

// ListResources returns every published resource, following pagination cursors
func (d *Driver) ListResources(ctx context.Context) ([]*mcp.Resource, error) {
	var resources []*mcp.Resource
	params := &mcp.ListResourcesParams{}
	for {
		res, err := execute(ctx, d, func() (*mcp.ListResourcesResult, error) {
			return d.session.ListResources(ctx, params)
		})
		if err != nil {
			return nil, err
		}
		resources = append(resources, res.Resources...)
		if res.NextCursor == "" {
			return resources, nil
		}
		params = &mcp.ListResourcesParams{Cursor: res.NextCursor}
	}
}

// ListPrompts returns every published prompt, following pagination cursors
func (d *Driver) ListPrompts(ctx context.Context) ([]*mcp.Prompt, error) {
	var prompts []*mcp.Prompt
	params := &mcp.ListPromptsParams{}
	for {
		res, err := execute(ctx, d, func() (*mcp.ListPromptsResult, error) {
			return d.session.ListPrompts(ctx, params)
		})
		if err != nil {
			return nil, err
		}
		prompts = append(prompts, res.Prompts...)
		if res.NextCursor == "" {
			return prompts, nil
		}
		params = &mcp.ListPromptsParams{Cursor: res.NextCursor}
	}
}

// CallTool invokes one tool and blocks until the server answers
func (d *Driver) CallTool(ctx context.Context, name string, args map[string]any) (*mcp.CallToolResult, error) {
	return execute(ctx, d, func() (*mcp.CallToolResult, error) {
		return d.session.CallTool(ctx, &mcp.CallToolParams{
			Name:      name,
			Arguments: args,
		})
	})
}

// Close releases the session. Safe to call more than once.
func (d *Driver) Close() error {
	d.closeOnce.Do(func() {
		d.closeErr = d.session.Close()
		d.logger.Entry(logging.OperationDisconnect).Info("MCP session closed")
	})
	return d.closeErr
}

// execute runs one request through the breaker and classifies any failure
func execute[T any](ctx context.Context, d *Driver, fn func() (T, error)) (T, error) {
	res, err := d.breaker.Execute(func() (interface{}, error) {
		v, err := fn()
		return v, err
	})
	if err != nil {
		var zero T
		return zero, d.classify(ctx, err)
	}
	return res.(T), nil
}

// classify maps a raw SDK error to the harness taxonomy
func (d *Driver) classify(ctx context.Context, err error) *domain.CallError {
	switch {
	case isTransportFault(err),
		ctx.Err() != nil,
		errors.Is(err, gobreaker.ErrOpenState),
		errors.Is(err, gobreaker.ErrTooManyRequests),
		d.breaker.State() == gobreaker.StateOpen:
		return domain.NewConnectionError(err)
	case isProtocolError(err):
		var rpcErr *jsonrpc.Error
		errors.As(err, &rpcErr)
		return domain.NewStructuredError(rpcErr.Code, rpcErr.Message, rpcErr.Data)
	default:
		return domain.NewUnclassifiedError(err)
	}
}

// connectionFault classifies a handshake failure. The protocol code is kept when the
// server itself rejected the handshake with one.
func connectionFault(err error) *domain.CallError {
	cerr := domain.NewConnectionError(err)
	var rpcErr *jsonrpc.Error
	if isProtocolError(err) && errors.As(err, &rpcErr) {
		code := rpcErr.Code
		cerr.Code = &code
		cerr.Data = rpcErr.Data
	}
	return cerr
}

// isTransportFault reports whether the request never got an answer from the server
func isTransportFault(err error) bool {
	var rpcErr *jsonrpc.Error
	if errors.As(err, &rpcErr) && rpcErr.Code == codeTransportRejected {
		return true
	}
	var urlErr *url.Error
	var netErr net.Error
	return errors.As(err, &urlErr) ||
		errors.As(err, &netErr) ||
		errors.Is(err, mcp.ErrConnectionClosed) ||
		errors.Is(err, io.EOF)
}

// isProtocolError reports whether the server answered with a JSON-RPC error
func isProtocolError(err error) bool {
	var rpcErr *jsonrpc.Error
	return errors.As(err, &rpcErr) && !isTransportFault(err)
}
