// Package config provides gateway configuration loaded from environment
// variables.
package config

import (
	"fmt"
	"time"

	"github.com/kelseyhightower/envconfig"
)

const logPrefix = "config:LoadConfig"

// Config holds varest-gateway configuration.
type Config struct {
	ServiceName string `envconfig:"SERVICE_NAME" default:"varest-gateway"`

	// HTTP transport
	HTTPAddr string `envconfig:"HTTP_ADDR" default:"0.0.0.0:6000"`

	// UDP transport
	UDPAddr        string        `envconfig:"UDP_ADDR" default:"0.0.0.0:6000"`
	UDPBufferSize  int           `envconfig:"UDP_BUFFER_SIZE" default:"4096"`
	UDPReadTimeout time.Duration `envconfig:"UDP_READ_TIMEOUT" default:"30s"`

	// AI bridge. An empty key disables the /ai routes without failing
	// startup.
	GeminiAPIKey     string        `envconfig:"GEMINI_API_KEY"`
	GeminiModel      string        `envconfig:"GEMINI_MODEL" default:"gemini-2.5-flash"`
	AIRequestTimeout time.Duration `envconfig:"AI_REQUEST_TIMEOUT" default:"30s"`

	// COMMS: connect to a broker at COMMSURL for message-received events.
	// Empty disables event publishing.
	COMMSURL            string `envconfig:"COMMS_URL"`
	MessageEventSubject string `envconfig:"MESSAGE_EVENT_SUBJECT"`

	// Message log. Empty DATABASE_URL disables it.
	DatabaseURL   string `envconfig:"DATABASE_URL"`
	RunMigrations bool   `envconfig:"RUN_MIGRATIONS" default:"false"`
	MigrationPath string `envconfig:"MIGRATION_PATH" default:"migrations"`

	// Client-version gate. Empty disables it.
	MinClientVersion string `envconfig:"MIN_CLIENT_VERSION"`

	// Logging
	LogLevel string `envconfig:"LOG_LEVEL" default:"info"`
	LogFile  string `envconfig:"LOG_FILE"`

	// Shutdown
	ShutdownTimeout time.Duration `envconfig:"SHUTDOWN_TIMEOUT" default:"10s"`
}

// LoadConfig loads configuration from environment variables.
func LoadConfig() (*Config, error) {
	var c Config
	if err := envconfig.Process("", &c); err != nil {
		return nil, err
	}
	return &c, nil
}

// ValidateForServe checks required config when running the gateway.
func (c *Config) ValidateForServe() error {
	if c.HTTPAddr == "" {
		return fmt.Errorf("%s - HTTP_ADDR is required", logPrefix)
	}
	if c.UDPAddr == "" {
		return fmt.Errorf("%s - UDP_ADDR is required", logPrefix)
	}
	if c.UDPBufferSize <= 0 {
		return fmt.Errorf("%s - UDP_BUFFER_SIZE must be positive", logPrefix)
	}
	if c.UDPReadTimeout <= 0 {
		return fmt.Errorf("%s - UDP_READ_TIMEOUT must be positive", logPrefix)
	}
	if c.AIRequestTimeout <= 0 {
		return fmt.Errorf("%s - AI_REQUEST_TIMEOUT must be positive", logPrefix)
	}
	return nil
}

// ValidateForDB checks required config when running DB-dependent commands
// (migrate).
func (c *Config) ValidateForDB() error {
	if c.DatabaseURL == "" {
		return fmt.Errorf("%s - DATABASE_URL is required", logPrefix)
	}
	return nil
}
