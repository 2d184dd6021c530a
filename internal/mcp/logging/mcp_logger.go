package logging

import (
	"io"
	"time"

	"github.com/google/uuid"
	"github.com/sirupsen/logrus"

	"github.com/mcp-conformance-harness/internal/domain"
)

// Operation types
const (
	OperationConnect    = "connect"
	OperationList       = "list"
	OperationToolCall   = "tool_call"
	OperationDisconnect = "disconnect"
)

// MCPLogger provides structured logging for one harness run. All entries carry the
// run_id so interleaved runs can be told apart on stderr.
type MCPLogger struct {
	logger *logrus.Logger
	runID  string
}

// NewLogger builds a logrus logger from configuration. Unknown levels fall back to info.
func NewLogger(config domain.LoggingConfig, out io.Writer) *logrus.Logger {
	logger := logrus.New()
	logger.SetOutput(out)

	level, err := logrus.ParseLevel(config.Level)
	if err != nil {
		level = logrus.InfoLevel
	}
	logger.SetLevel(level)

	if config.Format == "json" {
		logger.SetFormatter(&logrus.JSONFormatter{
			TimestampFormat: time.RFC3339Nano,
			FieldMap: logrus.FieldMap{
				logrus.FieldKeyTime:  "timestamp",
				logrus.FieldKeyLevel: "level",
				logrus.FieldKeyMsg:   "message",
			},
		})
	} else {
		logger.SetFormatter(&logrus.TextFormatter{
			TimestampFormat: time.RFC3339,
			FullTimestamp:   true,
		})
	}

	return logger
}

// NewMCPLogger wraps a logger with a fresh run ID
func NewMCPLogger(logger *logrus.Logger) *MCPLogger {
	return &MCPLogger{
		logger: logger,
		runID:  uuid.New().String(),
	}
}

// RunID returns the identifier attached to every entry
func (ml *MCPLogger) RunID() string {
	return ml.runID
}

// Logger exposes the underlying logger
func (ml *MCPLogger) Logger() *logrus.Logger {
	return ml.logger
}

// Entry returns an entry pre-populated with the run ID and operation type
func (ml *MCPLogger) Entry(operation string) *logrus.Entry {
	return ml.logger.WithFields(logrus.Fields{
		"run_id":         ml.runID,
		"operation_type": operation,
	})
}

// LogToolCall records the outcome of one scenario
func (ml *MCPLogger) LogToolCall(label, tool string, duration time.Duration, outcome domain.Outcome) {
	entry := ml.Entry(OperationToolCall).WithFields(logrus.Fields{
		"scenario": label,
		"tool":     tool,
		"duration": duration.String(),
		"success":  outcome.Success,
		"expected": outcome.Expected,
	})
	if !outcome.Success {
		entry = entry.WithField("code", outcome.Code.String())
	}

	if outcome.Expected {
		entry.Debug("Scenario completed")
	} else {
		entry.Warn("Scenario outcome contradicts its expectation")
	}
}
