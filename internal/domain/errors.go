package domain

import (
	"encoding/json"
	"fmt"
	"strconv"
)

// JSON-RPC and MCP error codes observed by the harness
const (
	CodeParseError     int64 = -32700
	CodeInvalidRequest int64 = -32600
	CodeMethodNotFound int64 = -32601
	CodeInvalidParams  int64 = -32602
	CodeInternalError  int64 = -32603

	// CodeServerError is the generic implementation-defined server fault.
	CodeServerError int64 = -32000
	// CodeNotFound is returned when a well-formed call references an entity that does not exist.
	CodeNotFound int64 = -32002
)

// Sentinel codes used when a fault carries no protocol code
const (
	SentinelUnknown          = "unknown"
	SentinelConnectionFailed = "connection_failed"
	SentinelToolError        = "tool_error"
)

// ErrorKind discriminates how a fault was classified at the session boundary.
type ErrorKind string

const (
	// KindStructured faults carry a protocol code and optional data.
	KindStructured ErrorKind = "structured"
	// KindUnclassified faults expose only a message.
	KindUnclassified ErrorKind = "unclassified"
	// KindConnection faults mean the session itself is unusable.
	KindConnection ErrorKind = "connection"
)

// CallError is the single error type crossing the session driver boundary.
type CallError struct {
	Kind    ErrorKind
	Message string
	Code    *int64
	Data    json.RawMessage
}

// Error implements the error interface
func (e *CallError) Error() string {
	if e.Code != nil {
		return fmt.Sprintf("%s (code %d)", e.Message, *e.Code)
	}
	return e.Message
}

// IsConnection reports whether the fault ends the run.
func (e *CallError) IsConnection() bool {
	return e.Kind == KindConnection
}

// ErrorCode returns the code to publish in a record, falling back to the sentinel
// that matches the error kind.
func (e *CallError) ErrorCode() ErrorCode {
	switch {
	case e.Code != nil:
		return NumericCode(*e.Code)
	case e.Kind == KindConnection:
		return SentinelCode(SentinelConnectionFailed)
	default:
		return SentinelCode(SentinelUnknown)
	}
}

// NewStructuredError creates a CallError carrying a protocol code.
func NewStructuredError(code int64, message string, data json.RawMessage) *CallError {
	return &CallError{
		Kind:    KindStructured,
		Message: message,
		Code:    &code,
		Data:    data,
	}
}

// NewUnclassifiedError creates a CallError for a fault without a code.
func NewUnclassifiedError(err error) *CallError {
	return &CallError{Kind: KindUnclassified, Message: err.Error()}
}

// NewConnectionError creates a CallError for a session-level fault.
func NewConnectionError(err error) *CallError {
	return &CallError{Kind: KindConnection, Message: err.Error()}
}

// ErrorCode is either an integer protocol code or a sentinel string.
type ErrorCode struct {
	numeric  *int64
	sentinel string
}

// NumericCode wraps a protocol code.
func NumericCode(code int64) ErrorCode {
	return ErrorCode{numeric: &code}
}

// SentinelCode wraps a sentinel string.
func SentinelCode(s string) ErrorCode {
	return ErrorCode{sentinel: s}
}

// Int returns the numeric code and whether one is present.
func (c ErrorCode) Int() (int64, bool) {
	if c.numeric == nil {
		return 0, false
	}
	return *c.numeric, true
}

// Sentinel returns the sentinel string, empty for numeric codes.
func (c ErrorCode) Sentinel() string {
	return c.sentinel
}

func (c ErrorCode) String() string {
	if c.numeric != nil {
		return strconv.FormatInt(*c.numeric, 10)
	}
	return c.sentinel
}

// MarshalJSON emits a JSON number for protocol codes and a string otherwise.
func (c ErrorCode) MarshalJSON() ([]byte, error) {
	if c.numeric != nil {
		return []byte(strconv.FormatInt(*c.numeric, 10)), nil
	}
	return json.Marshal(c.sentinel)
}

// UnmarshalJSON accepts both encodings.
func (c *ErrorCode) UnmarshalJSON(data []byte) error {
	var n int64
	if err := json.Unmarshal(data, &n); err == nil {
		c.numeric, c.sentinel = &n, ""
		return nil
	}
	var s string
	if err := json.Unmarshal(data, &s); err != nil {
		return fmt.Errorf("error code must be a number or a string: %w", err)
	}
	c.numeric, c.sentinel = nil, s
	return nil
}
