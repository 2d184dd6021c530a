// Package conformance drives the scenario battery against one MCP session and turns
// every outcome into a result record.
package conformance

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/modelcontextprotocol/go-sdk/mcp"
	"github.com/sirupsen/logrus"

	"github.com/mcp-conformance-harness/internal/domain"
	"github.com/mcp-conformance-harness/internal/mcp/logging"
	"github.com/mcp-conformance-harness/internal/mcp/session"
)

// OpenFunc establishes the session a run will own
type OpenFunc func(ctx context.Context) (domain.SessionDriver, error)

// Runner executes a battery of scenarios, one call at a time
type Runner struct {
	scenarios []domain.Scenario
	sink      domain.RecordSink
	logger    *logging.MCPLogger
}

// Report summarises one run
type Report struct {
	RunID           string            `json:"run_id"`
	StartTime       time.Time         `json:"start_time"`
	EndTime         time.Time         `json:"end_time"`
	Duration        time.Duration     `json:"duration"`
	Listings        int               `json:"listings"`
	ListingFailures int               `json:"listing_failures"`
	Outcomes        []domain.Outcome  `json:"outcomes"`
	Succeeded       int               `json:"succeeded"`
	Failed          int               `json:"failed"`
	Unexpected      []domain.Outcome  `json:"unexpected"`
	ConnectionError *domain.CallError `json:"connection_error,omitempty"`
}

// Truncated reports whether a connection fault ended the run early
func (r *Report) Truncated() bool {
	return r.ConnectionError != nil
}

// Records returns the number of records the run emitted
func (r *Report) Records() int {
	n := r.Listings + len(r.Outcomes)
	if r.Truncated() {
		n++
	}
	return n
}

// NewRunner creates a runner over a scenario list
func NewRunner(scenarios []domain.Scenario, sink domain.RecordSink, logger *logging.MCPLogger) *Runner {
	return &Runner{
		scenarios: scenarios,
		sink:      sink,
		logger:    logger,
	}
}

// RunEndpoint connects to endpoint and runs the battery. A failed connection is
// reported as a connection_error record, not as an error.
func (r *Runner) RunEndpoint(ctx context.Context, endpoint string, cfg *domain.Config) (*Report, error) {
	return r.RunWith(ctx, func(ctx context.Context) (domain.SessionDriver, error) {
		return session.Open(ctx, endpoint, cfg, r.logger)
	})
}

// RunWith opens a session with open and runs the battery over it
func (r *Runner) RunWith(ctx context.Context, open OpenFunc) (*Report, error) {
	driver, err := open(ctx)
	if err != nil {
		report := r.newReport()
		emitErr := r.abort(report, asCallError(err))
		return r.finish(report), emitErr
	}
	return r.Run(ctx, driver)
}

// Run takes ownership of driver, executes the listings and every scenario in order,
// and closes the driver on every exit path. The returned error is non-nil only when a
// record could not be written.
func (r *Runner) Run(ctx context.Context, driver domain.SessionDriver) (*Report, error) {
	defer func() {
		if err := driver.Close(); err != nil {
			r.logger.Entry(logging.OperationDisconnect).WithError(err).Debug("Session close reported an error")
		}
	}()

	report := r.newReport()
	defer r.finish(report)

	for _, listing := range r.listings(driver) {
		record, cerr := listing(ctx)
		if cerr != nil && cerr.IsConnection() {
			return report, r.abort(report, cerr)
		}
		report.Listings++
		if record.Error != nil {
			report.ListingFailures++
		}
		if err := r.sink.Emit(record); err != nil {
			return report, err
		}
	}

	for _, sc := range r.scenarios {
		start := time.Now()
		record, cerr := r.execute(ctx, driver, sc)
		if cerr != nil {
			return report, r.abort(report, cerr)
		}

		outcome := domain.Outcome{
			Label:   sc.Label,
			Tool:    sc.Tool,
			Success: record.Success,
		}
		if record.Error != nil {
			outcome.Code = record.Error.Code
		}
		outcome.Expected = sc.Matches(outcome.Success, outcome.Code)
		report.add(outcome)
		r.logger.LogToolCall(sc.Label, sc.Tool, time.Since(start), outcome)

		if err := r.sink.Emit(record); err != nil {
			return report, err
		}
	}

	return report, nil
}

func (r *Runner) newReport() *Report {
	return &Report{
		RunID:      r.logger.RunID(),
		StartTime:  time.Now(),
		Outcomes:   []domain.Outcome{},
		Unexpected: []domain.Outcome{},
	}
}

func (r *Runner) finish(report *Report) *Report {
	report.EndTime = time.Now()
	report.Duration = report.EndTime.Sub(report.StartTime)
	return report
}

func (r *Report) add(outcome domain.Outcome) {
	r.Outcomes = append(r.Outcomes, outcome)
	if outcome.Success {
		r.Succeeded++
	} else {
		r.Failed++
	}
	if !outcome.Expected {
		r.Unexpected = append(r.Unexpected, outcome)
	}
}

// abort records a connection fault and emits the record that replaces the rest of the battery
func (r *Runner) abort(report *Report, cerr *domain.CallError) error {
	report.ConnectionError = cerr
	r.logger.Entry(logging.OperationConnect).WithFields(logrus.Fields{
		"completed": len(report.Outcomes),
		"remaining": len(r.scenarios) - len(report.Outcomes),
	}).WithError(cerr).Error("Connection failed, battery stopped")

	return r.sink.Emit(domain.NewConnectionErrorRecord(cerr))
}

type listingFunc func(ctx context.Context) (*domain.ListRecord, *domain.CallError)

func (r *Runner) listings(driver domain.SessionDriver) []listingFunc {
	return []listingFunc{
		listing(domain.TypeToolsList, "tools", driver.ListTools),
		listing(domain.TypeResourcesList, "resources", driver.ListResources),
		listing(domain.TypePromptsList, "prompts", driver.ListPrompts),
	}
}

func listing[T any](typ domain.RecordType, key string, list func(context.Context) ([]T, error)) listingFunc {
	return func(ctx context.Context) (*domain.ListRecord, *domain.CallError) {
		items, err := list(ctx)
		if err != nil {
			cerr := asCallError(err)
			return &domain.ListRecord{Type: typ, Error: domain.NewErrorInfo(cerr)}, cerr
		}
		if items == nil {
			items = []T{}
		}
		return &domain.ListRecord{Type: typ, Data: map[string]any{key: items}}, nil
	}
}

// execute runs one scenario. A non-nil error is always a connection fault.
func (r *Runner) execute(ctx context.Context, driver domain.SessionDriver, sc domain.Scenario) (*domain.ToolCallRecord, *domain.CallError) {
	record := &domain.ToolCallRecord{
		Type:      domain.TypeToolCallResult,
		Scenario:  sc.Label,
		Tool:      sc.Tool,
		Arguments: sc.Arguments,
	}

	res, err := driver.CallTool(ctx, sc.Tool, sc.Arguments)
	if err != nil {
		cerr := asCallError(err)
		if cerr.IsConnection() {
			return nil, cerr
		}
		record.Error = domain.NewErrorInfo(cerr)
		return record, nil
	}

	if res.IsError {
		record.Error = toolErrorInfo(res)
		return record, nil
	}

	payload, err := toPayload(res)
	if err != nil {
		record.Error = domain.NewErrorInfo(domain.NewUnclassifiedError(err))
		return record, nil
	}
	record.Success = true
	record.Data = Normalize(payload)
	return record, nil
}

// toolErrorInfo reclassifies a result the server flagged with isError
func toolErrorInfo(res *mcp.CallToolResult) *domain.ErrorInfo {
	var texts []string
	for _, c := range res.Content {
		if text, ok := c.(*mcp.TextContent); ok {
			texts = append(texts, text.Text)
		}
	}
	message := strings.Join(texts, "\n")
	if message == "" {
		message = "tool reported an error"
	}

	info := &domain.ErrorInfo{
		Message: message,
		Code:    domain.SentinelCode(domain.SentinelToolError),
	}
	if res.StructuredContent != nil {
		if data, err := json.Marshal(res.StructuredContent); err == nil {
			info.Data = data
		}
	}
	return info
}

// toPayload converts a result into generic JSON values, keeping numbers exact
func toPayload(res *mcp.CallToolResult) (domain.Payload, error) {
	data, err := json.Marshal(res)
	if err != nil {
		return nil, fmt.Errorf("failed to encode tool result: %w", err)
	}
	dec := json.NewDecoder(bytes.NewReader(data))
	dec.UseNumber()

	var payload domain.Payload
	if err := dec.Decode(&payload); err != nil {
		return nil, fmt.Errorf("failed to decode tool result: %w", err)
	}
	return payload, nil
}

func asCallError(err error) *domain.CallError {
	var cerr *domain.CallError
	if errors.As(err, &cerr) {
		return cerr
	}
	return domain.NewUnclassifiedError(err)
}
