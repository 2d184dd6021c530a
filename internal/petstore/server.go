// Package petstore is an in-process MCP server exposing petstore operations as tools.
// It reproduces the server-side behaviour the conformance battery probes: strict input
// validation with a structured error taxonomy, domain not-found errors and tool-name
// suggestions.
package petstore

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"math/big"
	"net/url"
	"time"

	"github.com/modelcontextprotocol/go-sdk/mcp"
	"github.com/sirupsen/logrus"
)

// Resource and prompt names
const (
	OpenAPIResourceURI = "petstore://openapi"
	DescribePetPrompt  = "describe_pet"
)

// Fixture owns the MCP server and its backing store
type Fixture struct {
	store     *Store
	validator *Validator
	logger    *logrus.Logger
	server    *mcp.Server
	known     map[string]bool
}

// New builds the fixture server over a store
func New(store *Store, logger *logrus.Logger) (*Fixture, error) {
	v, err := NewValidator()
	if err != nil {
		return nil, err
	}

	f := &Fixture{
		store:     store,
		validator: v,
		logger:    logger,
		server: mcp.NewServer(&mcp.Implementation{
			Name:    "petstore-fixture",
			Version: "1.0.0",
		}, nil),
		known: make(map[string]bool, len(toolSpecs)),
	}

	handlers := map[string]func(map[string]any) (*mcp.CallToolResult, error){
		ToolGetPetByID:       f.getPetByID,
		ToolFindPetsByStatus: f.findPetsByStatus,
		ToolAddPet:           f.addPet,
	}
	for _, spec := range toolSpecs {
		schema, err := spec.inputSchema()
		if err != nil {
			return nil, err
		}
		f.server.AddTool(&mcp.Tool{
			Name:        spec.Name,
			Title:       spec.Title,
			Description: spec.Description,
			InputSchema: schema,
		}, f.toolHandler(spec.Name, handlers[spec.Name]))
		f.known[spec.Name] = true
	}

	f.server.AddResource(&mcp.Resource{
		URI:         OpenAPIResourceURI,
		Name:        "openapi",
		Description: "Operations exposed as tools",
		MIMEType:    "application/json",
	}, f.readOpenAPI)

	f.server.AddPrompt(&mcp.Prompt{
		Name:        DescribePetPrompt,
		Description: "Ask for a short description of a stored pet",
		Arguments: []*mcp.PromptArgument{
			{Name: "petId", Description: "ID of the pet to describe", Required: true},
		},
	}, f.describePet)

	f.server.AddReceivingMiddleware(f.logRequests, f.resolveToolNames)

	return f, nil
}

// Server returns the MCP server
func (f *Fixture) Server() *mcp.Server {
	return f.server
}

// Connect serves one session over the given transport
func (f *Fixture) Connect(ctx context.Context, transport mcp.Transport) (*mcp.ServerSession, error) {
	return f.server.Connect(ctx, transport, nil)
}

// logRequests records every inbound method with its latency
func (f *Fixture) logRequests(next mcp.MethodHandler) mcp.MethodHandler {
	return func(ctx context.Context, method string, req mcp.Request) (mcp.Result, error) {
		start := time.Now()
		res, err := next(ctx, method, req)

		entry := f.logger.WithFields(logrus.Fields{
			"method":   method,
			"duration": time.Since(start).String(),
		})
		if err != nil {
			entry.WithError(err).Debug("MCP request rejected")
		} else {
			entry.Debug("MCP request served")
		}
		return res, err
	}
}

// resolveToolNames rejects calls to unpublished tools with close-match suggestions
func (f *Fixture) resolveToolNames(next mcp.MethodHandler) mcp.MethodHandler {
	return func(ctx context.Context, method string, req mcp.Request) (mcp.Result, error) {
		if method == "tools/call" {
			if call, ok := req.(*mcp.CallToolRequest); ok && !f.known[call.Params.Name] {
				return nil, toolNotFoundError(call.Params.Name, Suggest(call.Params.Name, ToolNames()))
			}
		}
		return next(ctx, method, req)
	}
}

func (f *Fixture) toolHandler(name string, exec func(map[string]any) (*mcp.CallToolResult, error)) mcp.ToolHandler {
	return func(_ context.Context, req *mcp.CallToolRequest) (*mcp.CallToolResult, error) {
		args, err := decodeArguments(req.Params.Arguments)
		if err != nil {
			return nil, requestConstructionError(err.Error())
		}
		if violations := f.validator.Validate(name, args); len(violations) > 0 {
			return nil, validationError(violations)
		}
		return exec(args)
	}
}

// decodeArguments keeps numbers as json.Number so integer ids survive beyond 2^53
func decodeArguments(raw json.RawMessage) (map[string]any, error) {
	args := map[string]any{}
	if len(raw) == 0 || string(raw) == "null" {
		return args, nil
	}
	dec := json.NewDecoder(bytes.NewReader(raw))
	dec.UseNumber()
	if err := dec.Decode(&args); err != nil {
		return nil, fmt.Errorf("arguments must be a JSON object: %w", err)
	}
	return args, nil
}

// int64Arg converts a decoded integer argument. Integral values written with a
// fraction or exponent are accepted as long as they fit in an int64.
func int64Arg(v any) (int64, bool) {
	n, ok := v.(json.Number)
	if !ok {
		return 0, false
	}
	if i, err := n.Int64(); err == nil {
		return i, true
	}
	r, ok := new(big.Rat).SetString(n.String())
	if !ok || !r.IsInt() || !r.Num().IsInt64() {
		return 0, false
	}
	return r.Num().Int64(), true
}

func textResult(e exchange) *mcp.CallToolResult {
	return &mcp.CallToolResult{
		Content: []mcp.Content{&mcp.TextContent{Text: e.Render()}},
	}
}

func (f *Fixture) getPetByID(args map[string]any) (*mcp.CallToolResult, error) {
	id, ok := int64Arg(args["petId"])
	if !ok {
		return nil, validationError([]Violation{{
			Type:         ViolationConstraint,
			Parameter:    "petId",
			FieldPath:    "petId",
			ExpectedType: "integer",
			ActualValue:  args["petId"],
			Message:      "value is outside the int64 range",
		}})
	}

	pet, ok := f.store.Get(id)
	if !ok {
		return nil, notFoundError(fmt.Sprintf("Pet %d not found", id))
	}
	return textResult(exchange{
		Status: 200,
		Method: "GET",
		URL:    fmt.Sprintf("%s/pet/%d", BaseURL, id),
		Body:   pet,
	}), nil
}

func (f *Fixture) findPetsByStatus(args map[string]any) (*mcp.CallToolResult, error) {
	raw := args["status"].([]any)
	statuses := make([]string, len(raw))
	for i, s := range raw {
		statuses[i] = s.(string)
	}

	query := url.Values{"status": statuses}
	return textResult(exchange{
		Status: 200,
		Method: "GET",
		URL:    fmt.Sprintf("%s/pet/findByStatus?%s", BaseURL, query.Encode()),
		Body:   f.store.FindByStatus(statuses),
	}), nil
}

func (f *Fixture) addPet(args map[string]any) (*mcp.CallToolResult, error) {
	body := args["request_body"]

	data, err := json.Marshal(body)
	if err != nil {
		return nil, requestConstructionError(err.Error())
	}
	var pet Pet
	if err := json.Unmarshal(data, &pet); err != nil {
		return nil, requestConstructionError(err.Error())
	}

	stored := f.store.Add(pet)
	return textResult(exchange{
		Status:      200,
		Method:      "POST",
		URL:         BaseURL + "/pet",
		RequestBody: body,
		Location:    fmt.Sprintf("%s/pet/%d", BaseURL, stored.ID),
		Body:        stored,
	}), nil
}

func (f *Fixture) readOpenAPI(_ context.Context, req *mcp.ReadResourceRequest) (*mcp.ReadResourceResult, error) {
	operations := make([]map[string]string, 0, len(toolSpecs))
	for _, spec := range toolSpecs {
		operations = append(operations, map[string]string{
			"operationId": spec.Name,
			"method":      spec.Method,
			"summary":     spec.Title,
		})
	}
	doc, err := json.Marshal(map[string]any{
		"servers":    []map[string]string{{"url": BaseURL}},
		"operations": operations,
	})
	if err != nil {
		return nil, err
	}

	return &mcp.ReadResourceResult{
		Contents: []*mcp.ResourceContents{{
			URI:      req.Params.URI,
			MIMEType: "application/json",
			Text:     string(doc),
		}},
	}, nil
}

func (f *Fixture) describePet(_ context.Context, req *mcp.GetPromptRequest) (*mcp.GetPromptResult, error) {
	petID := req.Params.Arguments["petId"]
	return &mcp.GetPromptResult{
		Description: "Describe a pet from the store",
		Messages: []*mcp.PromptMessage{{
			Role: "user",
			Content: &mcp.TextContent{
				Text: fmt.Sprintf("Call %s with petId %s and describe the pet in one sentence.", ToolGetPetByID, petID),
			},
		}},
	}, nil
}
