package domain

import (
	"encoding/json"
)

// RecordType is the discriminator carried by every emitted record
type RecordType string

const (
	TypeToolsList       RecordType = "tools_list"
	TypeResourcesList   RecordType = "resources_list"
	TypePromptsList     RecordType = "prompts_list"
	TypeToolCallResult  RecordType = "tool_call_result"
	TypeConnectionError RecordType = "connection_error"
)

// Record is one line of harness output.
type Record interface {
	RecordType() RecordType
}

// Payload is a tool result decoded into generic JSON values.
type Payload map[string]any

// ErrorInfo is the published form of a failure.
type ErrorInfo struct {
	Message string          `json:"message"`
	Code    ErrorCode       `json:"code"`
	Data    json.RawMessage `json:"data,omitempty"`
}

// NewErrorInfo converts a classified error into its published form.
func NewErrorInfo(err *CallError) *ErrorInfo {
	return &ErrorInfo{
		Message: err.Message,
		Code:    err.ErrorCode(),
		Data:    err.Data,
	}
}

// ListRecord reports one capability listing.
type ListRecord struct {
	Type  RecordType `json:"type"`
	Data  any        `json:"data,omitempty"`
	Error *ErrorInfo `json:"error,omitempty"`
}

// RecordType implements Record
func (r *ListRecord) RecordType() RecordType { return r.Type }

// ToolCallRecord reports the outcome of one scenario.
type ToolCallRecord struct {
	Type      RecordType     `json:"type"`
	Scenario  string         `json:"scenario"`
	Tool      string         `json:"tool"`
	Arguments map[string]any `json:"arguments"`
	Success   bool           `json:"success"`
	Data      Payload        `json:"data,omitempty"`
	Error     *ErrorInfo     `json:"error,omitempty"`
}

// RecordType implements Record
func (r *ToolCallRecord) RecordType() RecordType { return r.Type }

// ConnectionErrorRecord replaces the remainder of the battery after a session fault.
type ConnectionErrorRecord struct {
	Type  RecordType `json:"type"`
	Error ErrorInfo  `json:"error"`
}

// RecordType implements Record
func (r *ConnectionErrorRecord) RecordType() RecordType { return r.Type }

// NewConnectionErrorRecord builds the record for a session-level fault. The code
// defaults to the connection_failed sentinel unless the fault carried one.
func NewConnectionErrorRecord(err *CallError) *ConnectionErrorRecord {
	info := NewErrorInfo(err)
	if err.Code == nil {
		info.Code = SentinelCode(SentinelConnectionFailed)
	}
	return &ConnectionErrorRecord{Type: TypeConnectionError, Error: *info}
}
