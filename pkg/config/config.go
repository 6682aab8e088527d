package config

import (
	"fmt"
	"os"
	"time"

	"github.com/ilyakaznacheev/cleanenv"
)

// Config holds all configuration for fathom-engine.
// Configuration can come from YAML file (config.yaml) or environment variables.
// Environment variables always override YAML values for fields that support both.
// Secrets (passwords, keys) must only come from environment variables.
type Config struct {
	// Server configuration
	BindAddr string `yaml:"bind_addr" env:"BIND_ADDR" env-default:"127.0.0.1"`
	Port     string `yaml:"port" env:"PORT" env-default:"8480"`
	Env      string `yaml:"env" env:"ENVIRONMENT" env-default:"local"`
	Version  string `yaml:"-"` // Set at load time, not from config

	// Database configuration (engine metadata store, PostgreSQL)
	Database DatabaseConfig `yaml:"database"`

	// Connector behavior for external data systems
	Connectors ConnectorConfig `yaml:"connectors"`

	// Code-generation model endpoints and keys
	AI AIConfig `yaml:"ai"`

	// Credential encryption key for linked service secrets.
	// Must be a 32-byte key, base64 encoded. Generate with: openssl rand -base64 32
	// Server will fail to start if this is not set.
	CredentialsKey string `yaml:"-" env:"CREDENTIALS_KEY"` // Secret - not in YAML
}

// DatabaseConfig holds PostgreSQL configuration for the engine's own state.
type DatabaseConfig struct {
	Host           string `yaml:"host" env:"PGHOST" env-default:"localhost"`
	Port           int    `yaml:"port" env:"PGPORT" env-default:"5432"`
	User           string `yaml:"user" env:"PGUSER" env-default:"fathom"`
	Password       string `yaml:"-" env:"PGPASSWORD"` // Secret - not in YAML
	Database       string `yaml:"database" env:"PGDATABASE" env-default:"fathom_engine"`
	MaxConnections int32  `yaml:"max_connections" env:"PGMAX_CONNECTIONS" env-default:"25"`
	SSLMode        string `yaml:"ssl_mode" env:"PGSSLMODE" env-default:"disable"`
	MigrationsPath string `yaml:"migrations_path" env:"PGMIGRATIONS_PATH" env-default:"migrations"`
}

// ConnectorConfig bounds interactions with external data systems.
type ConnectorConfig struct {
	// TestTimeoutSeconds bounds connectivity probes from testLinkedService.
	TestTimeoutSeconds int `yaml:"test_timeout_seconds" env:"CONNECTOR_TEST_TIMEOUT_SECONDS" env-default:"10"`
	// NodeTimeoutSeconds bounds each source read, sink write, and transform
	// execution during a pipeline run. Exceeding it fails the node.
	NodeTimeoutSeconds int `yaml:"node_timeout_seconds" env:"CONNECTOR_NODE_TIMEOUT_SECONDS" env-default:"300"`
	// PreviewSampleRows caps rows read per source while previewing a transform.
	PreviewSampleRows int `yaml:"preview_sample_rows" env:"CONNECTOR_PREVIEW_SAMPLE_ROWS" env-default:"1000"`
}

// AIConfig holds code-generation model settings.
// API keys are secrets and come only from the environment.
type AIConfig struct {
	DefaultModel    string `yaml:"default_model" env:"AI_DEFAULT_MODEL" env-default:"gpt-4o"`
	OpenAIBaseURL   string `yaml:"openai_base_url" env:"AI_OPENAI_BASE_URL" env-default:""`
	OpenAIAPIKey    string `yaml:"-" env:"OPENAI_API_KEY"`
	AnthropicAPIKey string `yaml:"-" env:"ANTHROPIC_API_KEY"`
}

// TestTimeout returns the connectivity probe timeout as a duration.
func (c *ConnectorConfig) TestTimeout() time.Duration {
	return time.Duration(c.TestTimeoutSeconds) * time.Second
}

// NodeTimeout returns the per-node execution timeout as a duration.
func (c *ConnectorConfig) NodeTimeout() time.Duration {
	return time.Duration(c.NodeTimeoutSeconds) * time.Second
}

// Load reads configuration from config.yaml with environment variable overrides.
// The version parameter is injected at build time and set on the returned Config.
// If config.yaml does not exist, configuration comes from the environment alone.
func Load(version string) (*Config, error) {
	cfg := &Config{
		Version: version,
	}

	if _, err := os.Stat("config.yaml"); err == nil {
		if err := cleanenv.ReadConfig("config.yaml", cfg); err != nil {
			return nil, fmt.Errorf("failed to read config.yaml: %w", err)
		}
	} else {
		if err := cleanenv.ReadEnv(cfg); err != nil {
			return nil, fmt.Errorf("failed to read environment: %w", err)
		}
	}

	if err := cfg.validate(); err != nil {
		return nil, err
	}

	return cfg, nil
}

func (c *Config) validate() error {
	if c.Connectors.TestTimeoutSeconds <= 0 {
		return fmt.Errorf("connector test timeout must be positive, got %d", c.Connectors.TestTimeoutSeconds)
	}
	if c.Connectors.NodeTimeoutSeconds <= 0 {
		return fmt.Errorf("connector node timeout must be positive, got %d", c.Connectors.NodeTimeoutSeconds)
	}
	if c.Connectors.PreviewSampleRows <= 0 {
		return fmt.Errorf("preview sample rows must be positive, got %d", c.Connectors.PreviewSampleRows)
	}
	return nil
}

// ConnectionString returns a PostgreSQL connection string.
func (c *DatabaseConfig) ConnectionString() string {
	return fmt.Sprintf(
		"host=%s port=%d user=%s password=%s dbname=%s sslmode=%s",
		c.Host, c.Port, c.User, c.Password, c.Database, c.SSLMode,
	)
}
