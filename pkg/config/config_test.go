package config

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestLoad_Defaults(t *testing.T) {
	// No config.yaml in the test working directory, so everything comes
	// from env defaults.
	cfg, err := Load("test")
	require.NoError(t, err)

	assert.Equal(t, "test", cfg.Version)
	assert.Equal(t, "8480", cfg.Port)
	assert.Equal(t, 10, cfg.Connectors.TestTimeoutSeconds)
	assert.Equal(t, 10*time.Second, cfg.Connectors.TestTimeout())
	assert.Equal(t, 5*time.Minute, cfg.Connectors.NodeTimeout())
	assert.Equal(t, 1000, cfg.Connectors.PreviewSampleRows)
	assert.Equal(t, "gpt-4o", cfg.AI.DefaultModel)
}

func TestLoad_EnvOverrides(t *testing.T) {
	t.Setenv("PORT", "9000")
	t.Setenv("PGHOST", "db.internal")
	t.Setenv("CONNECTOR_TEST_TIMEOUT_SECONDS", "3")

	cfg, err := Load("dev")
	require.NoError(t, err)

	assert.Equal(t, "9000", cfg.Port)
	assert.Equal(t, "db.internal", cfg.Database.Host)
	assert.Equal(t, 3*time.Second, cfg.Connectors.TestTimeout())
}

func TestLoad_RejectsNonPositiveTimeouts(t *testing.T) {
	t.Setenv("CONNECTOR_NODE_TIMEOUT_SECONDS", "0")

	_, err := Load("dev")
	require.Error(t, err)
	assert.Contains(t, err.Error(), "node timeout")
}

func TestDatabaseConfig_ConnectionString(t *testing.T) {
	cfg := DatabaseConfig{
		Host:     "localhost",
		Port:     5432,
		User:     "fathom",
		Password: "secret",
		Database: "fathom_engine",
		SSLMode:  "disable",
	}

	assert.Equal(t,
		"host=localhost port=5432 user=fathom password=secret dbname=fathom_engine sslmode=disable",
		cfg.ConnectionString())
}
