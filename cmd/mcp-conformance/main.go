package main

import (
	"bufio"
	"context"
	"fmt"
	"os"
	"os/signal"
	"syscall"

	"github.com/spf13/cobra"

	"github.com/mcp-conformance-harness/internal/config"
	"github.com/mcp-conformance-harness/internal/mcp/conformance"
	"github.com/mcp-conformance-harness/internal/mcp/logging"
)

func main() {
	if err := newRootCommand().Execute(); err != nil {
		fmt.Fprintln(os.Stderr, "Error:", err)
		os.Exit(1)
	}
}

func newRootCommand() *cobra.Command {
	return &cobra.Command{
		Use:   "mcp-conformance <endpoint-url>",
		Short: "Run the conformance battery against an MCP server",
		Long: `Connect to an MCP server, list its tools, resources and prompts, then run the
built-in battery of tool-call scenarios. One JSON record per line is written to stdout;
logs and the run summary go to stderr.

A connection failure is reported as a connection_error record and still exits 0.

Example:
  mcp-conformance http://127.0.0.1:8000/sse
  MCP_CONFORMANCE_LOGGING_LEVEL=debug mcp-conformance http://127.0.0.1:8000/mcp`,
		Args:          cobra.ExactArgs(1),
		SilenceUsage:  true,
		SilenceErrors: true,
		RunE: func(cmd *cobra.Command, args []string) error {
			return run(cmd.Context(), args[0])
		},
	}
}

func run(ctx context.Context, endpoint string) error {
	configManager, err := config.NewManager()
	if err != nil {
		return err
	}
	if err := configManager.Validate(); err != nil {
		return fmt.Errorf("configuration validation failed: %w", err)
	}
	cfg := configManager.GetConfig()

	logger := logging.NewMCPLogger(logging.NewLogger(cfg.Logging, os.Stderr))

	ctx, stop := signal.NotifyContext(ctx, syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	out := bufio.NewWriter(os.Stdout)
	runner := conformance.NewRunner(conformance.DefaultBattery(), conformance.NewEmitter(out), logger)

	report, err := runner.RunEndpoint(ctx, endpoint, cfg)
	if err != nil {
		return fmt.Errorf("failed to write results: %w", err)
	}

	conformance.PrintSummary(os.Stderr, report)
	return nil
}
