package main

import (
	"context"
	"log"
	"os"
	"os/signal"
	"syscall"

	"github.com/mcp-conformance-harness/internal/api"
	"github.com/mcp-conformance-harness/internal/config"
	"github.com/mcp-conformance-harness/internal/mcp/logging"
	"github.com/mcp-conformance-harness/internal/petstore"
)

func main() {
	// Load configuration
	configManager, err := config.NewManager()
	if err != nil {
		log.Fatalf("Failed to load configuration: %v", err)
	}

	// Validate configuration
	if err := configManager.Validate(); err != nil {
		log.Fatalf("Configuration validation failed: %v", err)
	}
	if err := configManager.ValidateFixture(); err != nil {
		log.Fatalf("Fixture configuration validation failed: %v", err)
	}

	cfg := configManager.GetConfig()
	logger := logging.NewLogger(cfg.Logging, os.Stderr)

	store, err := petstore.NewStore(cfg.Fixture.StoreCapacity)
	if err != nil {
		log.Fatalf("Failed to create pet store: %v", err)
	}
	fixture, err := petstore.New(store, logger)
	if err != nil {
		log.Fatalf("Failed to create fixture server: %v", err)
	}

	server := api.NewServer(cfg.Fixture, fixture.Server(), logger)
	logger.Infof("Petstore fixture serving %s and %s on %s", api.PathSSE, api.PathStreamable, server.Addr())

	// Setup graceful shutdown
	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	if err := server.Start(ctx); err != nil {
		log.Fatalf("Server failed: %v", err)
	}

	logger.Info("Petstore fixture stopped")
}
