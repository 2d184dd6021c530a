package petstore

import (
	"encoding/json"
	"fmt"
	"net/http"

	"github.com/modelcontextprotocol/go-sdk/jsonrpc"

	"github.com/mcp-conformance-harness/internal/domain"
)

// Violation kinds reported in validation-errors data
const (
	ViolationInvalidParameter  = "invalid-parameter"
	ViolationMissingParameter  = "missing-required-parameter"
	ViolationConstraint        = "constraint-violation"
	constraintEnumValues       = "enum-values"
	validationErrorsDataType   = "validation-errors"
	httpErrorDataType          = "http-error"
	requestConstructionErrType = "request-construction-error"
)

// Violation is one entry of a validation-errors payload
type Violation struct {
	Type            string       `json:"type"`
	Parameter       string       `json:"parameter"`
	Suggestions     []string     `json:"suggestions,omitempty"`
	ValidParameters []string     `json:"valid_parameters,omitempty"`
	Message         string       `json:"message,omitempty"`
	FieldPath       string       `json:"field_path,omitempty"`
	ActualValue     any          `json:"actual_value,omitempty"`
	ExpectedType    string       `json:"expected_type,omitempty"`
	Constraints     []Constraint `json:"constraints,omitempty"`
}

// Constraint names the schema rule a value broke
type Constraint struct {
	Type   string `json:"type"`
	Values []any  `json:"values,omitempty"`
}

func toolNotFoundError(name string, suggestions []string) *jsonrpc.Error {
	wireErr := &jsonrpc.Error{
		Code:    domain.CodeMethodNotFound,
		Message: fmt.Sprintf("Tool '%s' not found", name),
	}
	if len(suggestions) > 0 {
		wireErr.Data = mustMarshal(map[string]any{"suggestions": suggestions})
	}
	return wireErr
}

func validationError(violations []Violation) *jsonrpc.Error {
	plural := "s"
	if len(violations) == 1 {
		plural = ""
	}
	return &jsonrpc.Error{
		Code:    domain.CodeInvalidParams,
		Message: fmt.Sprintf("Validation failed with %d error%s", len(violations), plural),
		Data: mustMarshal(map[string]any{
			"type":       validationErrorsDataType,
			"violations": violations,
		}),
	}
}

func requestConstructionError(reason string) *jsonrpc.Error {
	return &jsonrpc.Error{
		Code:    domain.CodeInvalidParams,
		Message: fmt.Sprintf("Failed to construct request: %s", reason),
		Data: mustMarshal(map[string]any{
			"type":   requestConstructionErrType,
			"reason": reason,
		}),
	}
}

// notFoundError reports a well-formed lookup for an entity the store does not hold
func notFoundError(message string) *jsonrpc.Error {
	return &jsonrpc.Error{
		Code:    domain.CodeNotFound,
		Message: fmt.Sprintf("HTTP %d error: %s", http.StatusNotFound, message),
		Data: mustMarshal(map[string]any{
			"type":    httpErrorDataType,
			"status":  http.StatusNotFound,
			"message": message,
		}),
	}
}

func mustMarshal(v any) json.RawMessage {
	data, err := json.Marshal(v)
	if err != nil {
		panic(fmt.Sprintf("marshal error data: %v", err))
	}
	return data
}
