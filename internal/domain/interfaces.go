package domain

import (
	"context"

	"github.com/modelcontextprotocol/go-sdk/mcp"
)

// SessionDriver is the contract the scenario runner consumes. Implementations own one
// initialized session; every method failure is a *CallError.
type SessionDriver interface {
	ListTools(ctx context.Context) ([]*mcp.Tool, error)
	ListResources(ctx context.Context) ([]*mcp.Resource, error)
	ListPrompts(ctx context.Context) ([]*mcp.Prompt, error)
	CallTool(ctx context.Context, name string, args map[string]any) (*mcp.CallToolResult, error)
	Close() error
}

// RecordSink receives result records in emission order.
type RecordSink interface {
	Emit(record Record) error
}
