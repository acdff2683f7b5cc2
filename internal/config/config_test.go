package config

import (
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestLoadDefaults(t *testing.T) {
	cfg := Load()

	assert.Equal(t, ":8000", cfg.Server.Addr)
	assert.Equal(t, "postgres", cfg.Database.Driver)
	assert.Equal(t, "agents/telemetry", cfg.MQTT.Topic)
	assert.Equal(t, 10, cfg.Hub.BatchSize)
	assert.Equal(t, "info", cfg.Logging.Level)
}

func TestLoadFileAndEnvOverrides(t *testing.T) {
	dir := t.TempDir()
	path := filepath.Join(dir, "roadwatch.yaml")

	raw := []byte(`
logging:
  level: debug
server:
  addr: ":9000"
hub:
  batchSize: 25
`)
	require.NoError(t, os.WriteFile(path, raw, 0o600))

	t.Setenv(configPathEnv, path)
	t.Setenv(databasePathEnv, filepath.Join(dir, "records.db"))

	cfg := Load()

	assert.Equal(t, "debug", cfg.Logging.Level)
	assert.Equal(t, ":9000", cfg.Server.Addr)
	assert.Equal(t, 25, cfg.Hub.BatchSize)

	// env override switches the backend entirely
	assert.Equal(t, "sqlite", cfg.Database.Driver)
	assert.Equal(t, filepath.Join(dir, "records.db"), cfg.Database.Path)

	// untouched sections keep their defaults
	assert.Equal(t, "tcp://localhost:1883", cfg.MQTT.BrokerURL)
}
