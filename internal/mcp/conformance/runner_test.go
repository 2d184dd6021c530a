package conformance

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http/httptest"
	"sort"
	"strings"
	"testing"

	"github.com/modelcontextprotocol/go-sdk/mcp"
	"github.com/sebdah/goldie/v2"
	"github.com/sirupsen/logrus"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/mcp-conformance-harness/internal/api"
	"github.com/mcp-conformance-harness/internal/domain"
	"github.com/mcp-conformance-harness/internal/mcp/logging"
	"github.com/mcp-conformance-harness/internal/mcp/session"
	"github.com/mcp-conformance-harness/internal/petstore"
)

type recordingSink struct {
	records []domain.Record
}

func (s *recordingSink) Emit(record domain.Record) error {
	s.records = append(s.records, record)
	return nil
}

func (s *recordingSink) types() []domain.RecordType {
	types := make([]domain.RecordType, len(s.records))
	for i, r := range s.records {
		types[i] = r.RecordType()
	}
	return types
}

func testLogger() *logging.MCPLogger {
	return logging.NewMCPLogger(logging.NewLogger(domain.LoggingConfig{Level: "error", Format: "text"}, io.Discard))
}

func testConfig() *domain.Config {
	return &domain.Config{
		Client:    domain.ClientConfig{Name: "conformance-test", Version: "0.0.1"},
		Transport: domain.TransportConfig{Type: domain.TransportAuto},
		Breaker:   domain.BreakerConfig{Threshold: 3},
	}
}

// runAgainstFixture runs the default battery against a fresh in-process petstore.
func runAgainstFixture(t *testing.T) (*Report, *recordingSink) {
	t.Helper()
	ctx := context.Background()

	store, err := petstore.NewStore(100)
	require.NoError(t, err)
	quiet := logrus.New()
	quiet.SetOutput(io.Discard)
	fixture, err := petstore.New(store, quiet)
	require.NoError(t, err)

	ct, st := mcp.NewInMemoryTransports()
	ss, err := fixture.Connect(ctx, st)
	require.NoError(t, err)
	t.Cleanup(func() { _ = ss.Close() })

	sink := &recordingSink{}
	runner := NewRunner(DefaultBattery(), sink, testLogger())
	report, err := runner.RunWith(ctx, func(ctx context.Context) (domain.SessionDriver, error) {
		return session.Connect(ctx, ct, testConfig(), testLogger())
	})
	require.NoError(t, err)
	return report, sink
}

// project reduces records to a stable text form: listing names, scenario outcomes and
// the normalized text of successful calls.
func project(t *testing.T, records []domain.Record) []byte {
	t.Helper()
	var b strings.Builder
	for _, record := range records {
		switch rec := record.(type) {
		case *domain.ListRecord:
			fmt.Fprintf(&b, "%s: %s\n", rec.Type, strings.Join(listedNames(t, rec), ", "))
		case *domain.ToolCallRecord:
			fmt.Fprintf(&b, "%s %s %s success=%t", rec.Type, rec.Scenario, rec.Tool, rec.Success)
			if rec.Error != nil {
				fmt.Fprintf(&b, " code=%s", rec.Error.Code)
			}
			b.WriteString("\n")
			if !rec.Success {
				continue
			}
			for _, line := range strings.Split(firstText(t, rec.Data), "\n") {
				if line == "" {
					b.WriteString("  |\n")
				} else {
					b.WriteString("  | " + line + "\n")
				}
			}
		case *domain.ConnectionErrorRecord:
			fmt.Fprintf(&b, "%s code=%s\n", rec.Type, rec.Error.Code)
		}
	}
	return []byte(b.String())
}

func listedNames(t *testing.T, rec *domain.ListRecord) []string {
	t.Helper()
	data, err := json.Marshal(rec.Data)
	require.NoError(t, err)

	var listing map[string][]struct {
		Name string `json:"name"`
	}
	require.NoError(t, json.Unmarshal(data, &listing))

	var names []string
	for _, items := range listing {
		for _, item := range items {
			names = append(names, item.Name)
		}
	}
	sort.Strings(names)
	return names
}

func firstText(t *testing.T, payload domain.Payload) string {
	t.Helper()
	content, ok := payload["content"].([]any)
	require.True(t, ok, "payload has no content")
	require.NotEmpty(t, content)
	block, ok := content[0].(map[string]any)
	require.True(t, ok)
	text, ok := block["text"].(string)
	require.True(t, ok)
	return text
}

func toolCall(t *testing.T, sink *recordingSink, label string) *domain.ToolCallRecord {
	t.Helper()
	for _, r := range sink.records {
		if rec, ok := r.(*domain.ToolCallRecord); ok && rec.Scenario == label {
			return rec
		}
	}
	require.Failf(t, "missing record", "no tool_call_result for %s", label)
	return nil
}

func TestRunner_BatteryAgainstFixture(t *testing.T) {
	report, sink := runAgainstFixture(t)

	assert.False(t, report.Truncated())
	assert.Equal(t, 15, report.Records())
	assert.Len(t, sink.records, 15)
	assert.Equal(t, 3, report.Listings)
	assert.Zero(t, report.ListingFailures)
	assert.Equal(t, 3, report.Succeeded)
	assert.Equal(t, 9, report.Failed)
	assert.Empty(t, report.Unexpected)
	assert.NotEmpty(t, report.RunID)

	g := goldie.New(t,
		goldie.WithFixtureDir("testdata/golden"),
		goldie.WithNameSuffix(".golden"),
	)
	g.Assert(t, "battery", project(t, sink.records))
}

func TestRunner_RecordsFollowBatteryOrder(t *testing.T) {
	_, sink := runAgainstFixture(t)

	expected := []domain.RecordType{domain.TypeToolsList, domain.TypeResourcesList, domain.TypePromptsList}
	for range DefaultBattery() {
		expected = append(expected, domain.TypeToolCallResult)
	}
	assert.Equal(t, expected, sink.types())

	var labels []string
	for _, r := range sink.records[3:] {
		labels = append(labels, r.(*domain.ToolCallRecord).Scenario)
	}
	var want []string
	for _, sc := range DefaultBattery() {
		want = append(want, sc.Label)
	}
	assert.Equal(t, want, labels)
}

func TestRunner_StructuredFailuresFromFixture(t *testing.T) {
	_, sink := runAgainstFixture(t)

	t.Run("not found carries the domain code", func(t *testing.T) {
		rec := toolCall(t, sink, "not_found")
		require.NotNil(t, rec.Error)
		assert.Equal(t, "-32002", rec.Error.Code.String())
		assert.Contains(t, rec.Error.Message, "not found")
		assert.JSONEq(t, `{"type":"http-error","status":404,"message":"Pet 999999 not found"}`, string(rec.Error.Data))
		assert.Nil(t, rec.Data)
	})

	t.Run("unknown tool name gets suggestions", func(t *testing.T) {
		rec := toolCall(t, sink, "unknown_tool_name")
		require.NotNil(t, rec.Error)
		assert.Equal(t, "-32601", rec.Error.Code.String())
		assert.JSONEq(t, `{"suggestions":["getPetById"]}`, string(rec.Error.Data))

		var data struct {
			Suggestions []string `json:"suggestions"`
		}
		require.NoError(t, json.Unmarshal(rec.Error.Data, &data))
		listing, ok := sink.records[0].(*domain.ListRecord)
		require.True(t, ok)
		require.Equal(t, domain.TypeToolsList, listing.Type)
		listed := listedNames(t, listing)
		for _, suggestion := range data.Suggestions {
			assert.Contains(t, listed, suggestion)
		}
	})

	t.Run("misspelled parameter names the valid ones", func(t *testing.T) {
		rec := toolCall(t, sink, "misspelled_parameter")
		require.NotNil(t, rec.Error)

		var data struct {
			Type       string `json:"type"`
			Violations []struct {
				Type            string   `json:"type"`
				Parameter       string   `json:"parameter"`
				Suggestions     []string `json:"suggestions"`
				ValidParameters []string `json:"valid_parameters"`
			} `json:"violations"`
		}
		require.NoError(t, json.Unmarshal(rec.Error.Data, &data))
		assert.Equal(t, "validation-errors", data.Type)
		require.NotEmpty(t, data.Violations)
		assert.Equal(t, "invalid-parameter", data.Violations[0].Type)
		assert.Equal(t, "pet_id", data.Violations[0].Parameter)
		assert.Equal(t, []string{"petId"}, data.Violations[0].Suggestions)
		assert.Equal(t, []string{"petId"}, data.Violations[0].ValidParameters)
	})

	t.Run("scalar for array is a type violation", func(t *testing.T) {
		rec := toolCall(t, sink, "scalar_for_array")
		require.NotNil(t, rec.Error)
		assert.Equal(t, "-32602", rec.Error.Code.String())
		assert.Contains(t, string(rec.Error.Data), `"expected_type":"array"`)
	})

	t.Run("arguments are echoed in full", func(t *testing.T) {
		rec := toolCall(t, sink, "unknown_extra_parameter")
		assert.Equal(t, map[string]any{"statuses": []any{"available"}, "limit": 10}, rec.Arguments)
	})
}

func TestRunner_SuccessfulPayloadsAreNormalized(t *testing.T) {
	_, sink := runAgainstFixture(t)

	for _, label := range []string{"path_scalar_binding", "query_array_binding", "request_body_binding"} {
		rec := toolCall(t, sink, label)
		require.True(t, rec.Success, label)
		text := firstText(t, rec.Data)
		assert.NotContains(t, text, "Headers:", label)
		assert.NotContains(t, text, "set-cookie", label)
		assert.Contains(t, text, "Response Body:", label)
	}
}

// dropAfterFirstCall shuts the server down once the first tool call is recorded
type dropAfterFirstCall struct {
	recordingSink
	drop    func()
	dropped bool
}

func (s *dropAfterFirstCall) Emit(record domain.Record) error {
	if err := s.recordingSink.Emit(record); err != nil {
		return err
	}
	if _, ok := record.(*domain.ToolCallRecord); ok && !s.dropped {
		s.dropped = true
		s.drop()
	}
	return nil
}

func TestRunEndpoint_ServerDropMidRun(t *testing.T) {
	quiet := logrus.New()
	quiet.SetOutput(io.Discard)
	store, err := petstore.NewStore(100)
	require.NoError(t, err)
	fixture, err := petstore.New(store, quiet)
	require.NoError(t, err)

	cfg := domain.FixtureConfig{RateLimit: 1000, RateBurst: 1000, StoreCapacity: 100}
	srv := httptest.NewServer(api.NewServer(cfg, fixture.Server(), quiet).Handler())
	stop := func() {
		srv.CloseClientConnections()
		srv.Close()
	}
	t.Cleanup(stop)

	sink := &dropAfterFirstCall{drop: stop}
	report, err := NewRunner(DefaultBattery(), sink, testLogger()).
		RunEndpoint(context.Background(), srv.URL+api.PathStreamable, testConfig())
	require.NoError(t, err)

	assert.True(t, report.Truncated())
	assert.Equal(t, []domain.RecordType{
		domain.TypeToolsList,
		domain.TypeResourcesList,
		domain.TypePromptsList,
		domain.TypeToolCallResult,
		domain.TypeConnectionError,
	}, sink.types())

	last, ok := sink.records[len(sink.records)-1].(*domain.ConnectionErrorRecord)
	require.True(t, ok)
	assert.Equal(t, domain.SentinelConnectionFailed, last.Error.Code.Sentinel())
}

// fakeDriver scripts listing and call results without a server
type fakeDriver struct {
	tools         []*mcp.Tool
	toolsErr      error
	promptsErr    error
	results       map[string]*mcp.CallToolResult
	callErrs      map[string]error
	calls         []string
	closed        int
	disconnectsAt int
}

func (f *fakeDriver) ListTools(context.Context) ([]*mcp.Tool, error) {
	return f.tools, f.toolsErr
}

func (f *fakeDriver) ListResources(context.Context) ([]*mcp.Resource, error) {
	return nil, nil
}

func (f *fakeDriver) ListPrompts(context.Context) ([]*mcp.Prompt, error) {
	return nil, f.promptsErr
}

func (f *fakeDriver) CallTool(_ context.Context, name string, _ map[string]any) (*mcp.CallToolResult, error) {
	f.calls = append(f.calls, name)
	if f.disconnectsAt > 0 && len(f.calls) >= f.disconnectsAt {
		return nil, domain.NewConnectionError(errors.New("connection reset by peer"))
	}
	if err, ok := f.callErrs[name]; ok {
		return nil, err
	}
	if res, ok := f.results[name]; ok {
		return res, nil
	}
	return &mcp.CallToolResult{Content: []mcp.Content{&mcp.TextContent{Text: "ok"}}}, nil
}

func (f *fakeDriver) Close() error {
	f.closed++
	return nil
}

func fakeBattery() []domain.Scenario {
	code := domain.CodeInvalidParams
	return []domain.Scenario{
		{Label: "first", Tool: "alpha", Arguments: map[string]any{}, Expectation: domain.ExpectSuccess},
		{Label: "second", Tool: "beta", Arguments: map[string]any{"x": 1}, Expectation: domain.Adversarial, ExpectCode: &code},
		{Label: "third", Tool: "gamma", Arguments: map[string]any{}, Expectation: domain.Adversarial},
	}
}

func TestRunner_ConnectionFaultTruncatesBattery(t *testing.T) {
	driver := &fakeDriver{disconnectsAt: 2}
	sink := &recordingSink{}

	report, err := NewRunner(fakeBattery(), sink, testLogger()).Run(context.Background(), driver)
	require.NoError(t, err)

	assert.Equal(t, []string{"alpha", "beta"}, driver.calls)
	assert.Equal(t, []domain.RecordType{
		domain.TypeToolsList,
		domain.TypeResourcesList,
		domain.TypePromptsList,
		domain.TypeToolCallResult,
		domain.TypeConnectionError,
	}, sink.types())
	assert.True(t, report.Truncated())
	assert.Equal(t, 5, report.Records())
	assert.Len(t, report.Outcomes, 1)
	assert.Equal(t, 1, driver.closed)

	last := sink.records[len(sink.records)-1].(*domain.ConnectionErrorRecord)
	assert.Equal(t, domain.SentinelConnectionFailed, last.Error.Code.Sentinel())
	assert.Contains(t, last.Error.Message, "connection reset")
}

func TestRunner_ListingConnectionFaultStopsBeforeCalls(t *testing.T) {
	driver := &fakeDriver{toolsErr: domain.NewConnectionError(io.EOF)}
	sink := &recordingSink{}

	report, err := NewRunner(fakeBattery(), sink, testLogger()).Run(context.Background(), driver)
	require.NoError(t, err)

	assert.Empty(t, driver.calls)
	assert.Equal(t, []domain.RecordType{domain.TypeConnectionError}, sink.types())
	assert.True(t, report.Truncated())
	assert.Equal(t, 1, driver.closed)
}

func TestRunner_ListingFailureIsRecorded(t *testing.T) {
	driver := &fakeDriver{
		promptsErr: domain.NewStructuredError(domain.CodeMethodNotFound, "Method not found", nil),
	}
	sink := &recordingSink{}

	report, err := NewRunner(fakeBattery(), sink, testLogger()).Run(context.Background(), driver)
	require.NoError(t, err)

	assert.False(t, report.Truncated())
	assert.Equal(t, 1, report.ListingFailures)
	assert.Len(t, sink.records, 6)

	prompts := sink.records[2].(*domain.ListRecord)
	require.NotNil(t, prompts.Error)
	assert.Nil(t, prompts.Data)
	assert.Equal(t, "-32601", prompts.Error.Code.String())

	resources := sink.records[1].(*domain.ListRecord)
	assert.Nil(t, resources.Error)
	assert.Equal(t, map[string]any{"resources": []*mcp.Resource{}}, resources.Data)
}

func TestRunner_FailureClassification(t *testing.T) {
	driver := &fakeDriver{
		callErrs: map[string]error{
			"beta":  domain.NewStructuredError(domain.CodeInvalidParams, "bad params", json.RawMessage(`{"field":"x"}`)),
			"gamma": errors.New("malformed response"),
		},
		results: map[string]*mcp.CallToolResult{
			"alpha": {
				IsError:           true,
				Content:           []mcp.Content{&mcp.TextContent{Text: "upstream said no"}},
				StructuredContent: map[string]any{"status": 500},
			},
		},
	}
	sink := &recordingSink{}

	report, err := NewRunner(fakeBattery(), sink, testLogger()).Run(context.Background(), driver)
	require.NoError(t, err)
	require.Len(t, sink.records, 6)

	t.Run("isError result becomes a tool_error failure", func(t *testing.T) {
		rec := sink.records[3].(*domain.ToolCallRecord)
		assert.False(t, rec.Success)
		assert.Nil(t, rec.Data)
		require.NotNil(t, rec.Error)
		assert.Equal(t, domain.SentinelToolError, rec.Error.Code.Sentinel())
		assert.Equal(t, "upstream said no", rec.Error.Message)
		assert.JSONEq(t, `{"status":500}`, string(rec.Error.Data))
	})

	t.Run("structured error keeps code and data", func(t *testing.T) {
		rec := sink.records[4].(*domain.ToolCallRecord)
		require.NotNil(t, rec.Error)
		code, ok := rec.Error.Code.Int()
		assert.True(t, ok)
		assert.Equal(t, domain.CodeInvalidParams, code)
		assert.JSONEq(t, `{"field":"x"}`, string(rec.Error.Data))
	})

	t.Run("unclassified error uses the unknown sentinel", func(t *testing.T) {
		rec := sink.records[5].(*domain.ToolCallRecord)
		require.NotNil(t, rec.Error)
		assert.Equal(t, domain.SentinelUnknown, rec.Error.Code.Sentinel())
		assert.Equal(t, "malformed response", rec.Error.Message)
		assert.Empty(t, rec.Error.Data)
	})

	t.Run("expectations are evaluated", func(t *testing.T) {
		require.Len(t, report.Outcomes, 3)
		assert.False(t, report.Outcomes[0].Expected)
		assert.True(t, report.Outcomes[1].Expected)
		assert.True(t, report.Outcomes[2].Expected)
		assert.Len(t, report.Unexpected, 1)
		assert.Equal(t, "first", report.Unexpected[0].Label)
	})
}

func TestRunner_RunWithOpenFailure(t *testing.T) {
	sink := &recordingSink{}
	runner := NewRunner(fakeBattery(), sink, testLogger())

	report, err := runner.RunWith(context.Background(), func(context.Context) (domain.SessionDriver, error) {
		return nil, domain.NewConnectionError(errors.New("dial tcp: connection refused"))
	})
	require.NoError(t, err)

	assert.True(t, report.Truncated())
	assert.Empty(t, report.Outcomes)
	assert.Equal(t, []domain.RecordType{domain.TypeConnectionError}, sink.types())
	assert.False(t, report.EndTime.Before(report.StartTime))
}

func TestRunner_RunEndpointRejectsBadURL(t *testing.T) {
	sink := &recordingSink{}
	runner := NewRunner(fakeBattery(), sink, testLogger())

	report, err := runner.RunEndpoint(context.Background(), "ftp://example.com/mcp", testConfig())
	require.NoError(t, err)

	assert.True(t, report.Truncated())
	require.Len(t, sink.records, 1)
	rec := sink.records[0].(*domain.ConnectionErrorRecord)
	assert.Equal(t, domain.SentinelConnectionFailed, rec.Error.Code.Sentinel())
}

type failingSink struct{}

func (failingSink) Emit(domain.Record) error { return errors.New("stdout closed") }

func TestRunner_SinkErrorIsReturned(t *testing.T) {
	driver := &fakeDriver{}

	_, err := NewRunner(fakeBattery(), failingSink{}, testLogger()).Run(context.Background(), driver)
	require.Error(t, err)
	assert.Contains(t, err.Error(), "stdout closed")
	assert.Empty(t, driver.calls)
	assert.Equal(t, 1, driver.closed)
}
