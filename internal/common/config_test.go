package common

import (
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestLoadConfigDefaults(t *testing.T) {
	config, err := LoadConfig()
	require.NoError(t, err)

	assert.Equal(t, "development", config.Environment)
	assert.Equal(t, "cascade", config.Engine.ProcessingMode)
	assert.Equal(t, 4, config.Engine.MaxConcurrency)
	assert.Equal(t, "USD", config.Engine.DefaultCurrency)
	assert.Equal(t, "badger", config.Storage.Backend)
}

func TestLoadConfigFromFile(t *testing.T) {
	dir := t.TempDir()
	path := filepath.Join(dir, "finpoint.toml")
	content := `
environment = "production"

[engine]
processing_mode = "batch"
max_concurrency = 8
default_currency = "aud"

[storage]
backend = "surrealdb"

[storage.surrealdb]
address = "ws://db:8000"
`
	require.NoError(t, os.WriteFile(path, []byte(content), 0o644))

	config, err := LoadConfig(path)
	require.NoError(t, err)

	assert.True(t, config.IsProduction())
	assert.Equal(t, "batch", config.Engine.ProcessingMode)
	assert.Equal(t, 8, config.Engine.MaxConcurrency)
	assert.Equal(t, "AUD", config.Engine.DefaultCurrency)
	assert.Equal(t, "surrealdb", config.Storage.Backend)
	assert.Equal(t, "ws://db:8000", config.Storage.Surreal.Address)
}

func TestLoadConfigMissingFileIsSkipped(t *testing.T) {
	config, err := LoadConfig(filepath.Join(t.TempDir(), "does-not-exist.toml"))
	require.NoError(t, err)
	assert.Equal(t, "cascade", config.Engine.ProcessingMode)
}

func TestLoadConfigEnvOverrides(t *testing.T) {
	t.Setenv("FINPOINT_ENV", "staging")
	t.Setenv("FINPOINT_PROCESSING_MODE", "BATCH")
	t.Setenv("FINPOINT_MAX_CONCURRENCY", "16")
	t.Setenv("FINPOINT_DEFAULT_CURRENCY", "eur")
	t.Setenv("FINPOINT_STORAGE_BACKEND", "Badger")

	config, err := LoadConfig()
	require.NoError(t, err)

	assert.Equal(t, "staging", config.Environment)
	assert.Equal(t, "batch", config.Engine.ProcessingMode)
	assert.Equal(t, 16, config.Engine.MaxConcurrency)
	assert.Equal(t, "EUR", config.Engine.DefaultCurrency)
	assert.Equal(t, "badger", config.Storage.Backend)
}

func TestLoadConfigRejectsUnknownMode(t *testing.T) {
	t.Setenv("FINPOINT_PROCESSING_MODE", "turbo")
	_, err := LoadConfig()
	require.Error(t, err)
	assert.Contains(t, err.Error(), "processing_mode")
}

func TestLoadConfigRejectsUnknownBackend(t *testing.T) {
	t.Setenv("FINPOINT_STORAGE_BACKEND", "postgres")
	_, err := LoadConfig()
	require.Error(t, err)
	assert.Contains(t, err.Error(), "storage backend")
}
