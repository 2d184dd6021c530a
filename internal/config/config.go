package config

import (
	"fmt"
	"strings"

	"github.com/spf13/viper"

	"github.com/mcp-conformance-harness/internal/domain"
)

// EnvPrefix prefixes every environment override, e.g. MCP_CONFORMANCE_LOGGING_LEVEL
const EnvPrefix = "MCP_CONFORMANCE"

// Manager loads configuration using Viper
type Manager struct {
	v      *viper.Viper
	config *domain.Config
}

// NewManager creates a new configuration manager
func NewManager() (*Manager, error) {
	m := &Manager{v: viper.New()}
	if err := m.loadConfig(); err != nil {
		return nil, fmt.Errorf("failed to load configuration: %w", err)
	}
	return m, nil
}

// loadConfig loads configuration from defaults and the environment. The harness keeps
// no configuration files.
func (m *Manager) loadConfig() error {
	m.v.SetEnvPrefix(EnvPrefix)
	m.v.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))
	m.v.AutomaticEnv()

	m.setDefaults()

	config := &domain.Config{}
	if err := m.v.Unmarshal(config); err != nil {
		return fmt.Errorf("error unmarshaling config: %w", err)
	}

	m.config = config
	return nil
}

// setDefaults sets default configuration values. Every key needs a default so that
// AutomaticEnv can resolve it during Unmarshal.
func (m *Manager) setDefaults() {
	m.v.SetDefault("client.name", "mcp-conformance")
	m.v.SetDefault("client.version", "0.1.0")

	m.v.SetDefault("transport.type", domain.TransportAuto)

	m.v.SetDefault("breaker.threshold", 3)

	m.v.SetDefault("logging.level", "warn")
	m.v.SetDefault("logging.format", "text")

	m.v.SetDefault("fixture.host", "127.0.0.1")
	m.v.SetDefault("fixture.port", 8000)
	m.v.SetDefault("fixture.read_timeout", "30s")
	m.v.SetDefault("fixture.write_timeout", "0s")
	m.v.SetDefault("fixture.rate_limit", 50.0)
	m.v.SetDefault("fixture.rate_burst", 100)
	m.v.SetDefault("fixture.store_capacity", 1024)
}

// GetConfig returns the complete configuration
func (m *Manager) GetConfig() *domain.Config {
	return m.config
}

// Reload reloads the configuration
func (m *Manager) Reload() error {
	return m.loadConfig()
}

// Validate validates the configuration
func (m *Manager) Validate() error {
	config := m.config

	switch config.Transport.Type {
	case domain.TransportAuto, domain.TransportSSE, domain.TransportStreamable:
	default:
		return fmt.Errorf("invalid transport type: %s", config.Transport.Type)
	}

	if config.Client.Name == "" {
		return fmt.Errorf("client name is required")
	}

	if config.Breaker.Threshold == 0 {
		return fmt.Errorf("breaker threshold must be positive")
	}

	validLogLevels := map[string]bool{
		"trace": true, "debug": true, "info": true, "warn": true, "error": true, "fatal": true, "panic": true,
	}
	if !validLogLevels[strings.ToLower(config.Logging.Level)] {
		return fmt.Errorf("invalid log level: %s", config.Logging.Level)
	}

	switch config.Logging.Format {
	case "json", "text":
	default:
		return fmt.Errorf("invalid log format: %s", config.Logging.Format)
	}

	return nil
}

// ValidateFixture validates the settings only the fixture server reads
func (m *Manager) ValidateFixture() error {
	config := m.config

	if config.Fixture.Port <= 0 || config.Fixture.Port > 65535 {
		return fmt.Errorf("invalid fixture port: %d", config.Fixture.Port)
	}
	if config.Fixture.StoreCapacity <= 0 {
		return fmt.Errorf("fixture store capacity must be positive")
	}

	return nil
}
