package domain

import (
	"time"
)

// Config represents the harness configuration
type Config struct {
	Client    ClientConfig    `mapstructure:"client"`
	Transport TransportConfig `mapstructure:"transport"`
	Breaker   BreakerConfig   `mapstructure:"breaker"`
	Logging   LoggingConfig   `mapstructure:"logging"`
	Fixture   FixtureConfig   `mapstructure:"fixture"`
}

// ClientConfig is the implementation info announced during the handshake
type ClientConfig struct {
	Name    string `mapstructure:"name"`
	Version string `mapstructure:"version"`
}

// TransportConfig selects the client transport
type TransportConfig struct {
	// Type is one of auto, sse, streamable
	Type string `mapstructure:"type"`
}

// Transport types
const (
	TransportAuto       = "auto"
	TransportSSE        = "sse"
	TransportStreamable = "streamable"
)

// BreakerConfig tunes the connection-tier circuit breaker
type BreakerConfig struct {
	// Threshold is the number of consecutive transport faults that open the breaker
	Threshold uint32 `mapstructure:"threshold"`
}

// LoggingConfig represents logging configuration
type LoggingConfig struct {
	Level  string `mapstructure:"level"`
	Format string `mapstructure:"format"`
}

// FixtureConfig configures the petstore fixture server
type FixtureConfig struct {
	Host          string        `mapstructure:"host"`
	Port          int           `mapstructure:"port"`
	ReadTimeout   time.Duration `mapstructure:"read_timeout"`
	WriteTimeout  time.Duration `mapstructure:"write_timeout"`
	RateLimit     float64       `mapstructure:"rate_limit"`
	RateBurst     int           `mapstructure:"rate_burst"`
	StoreCapacity int           `mapstructure:"store_capacity"`
}
