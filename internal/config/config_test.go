package config

import (
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func env(m map[string]string) LookupFunc {
	return func(key string) (string, bool) {
		v, ok := m[key]
		return v, ok
	}
}

func writeConfig(t *testing.T, content string) string {
	t.Helper()
	path := filepath.Join(t.TempDir(), "banksync.yaml")
	require.NoError(t, os.WriteFile(path, []byte(content), 0o644))
	return path
}

const minimal = `
provider:
  base_url: https://api.provider.test
store:
  driver: memory
`

func TestLoad_DefaultsAndFile(t *testing.T) {
	path := writeConfig(t, `
provider:
  base_url: https://api.provider.test
  request_timeout: 3s
store:
  driver: memory
sync:
  batch_size: 250
`)

	cfg, err := LoadWithEnv(path, env(nil))

	require.NoError(t, err)
	assert.Equal(t, 250, cfg.Sync.BatchSize)
	assert.Equal(t, 8, cfg.Sync.MaxConcurrency, "default kept")
	assert.Equal(t, 3*time.Second, cfg.Provider.RequestTimeout)
	assert.Equal(t, 5, cfg.Provider.MaxAttempts)
	assert.Equal(t, DriverMemory, cfg.Store.Driver)
}

func TestLoad_EnvOverrides(t *testing.T) {
	path := writeConfig(t, minimal)

	cfg, err := LoadWithEnv(path, env(map[string]string{
		"BANKSYNC_STORE_DRIVER":         "postgres",
		"BANKSYNC_STORE_POSTGRES_DSN":   "postgres://localhost/banksync",
		"BANKSYNC_SYNC_MAX_CONCURRENCY": "2",
		"BANKSYNC_SYNC_LATEST":          "true",
		"BANKSYNC_PROVIDER_RATE_LIMIT":  "2.5",
		"BANKSYNC_WORKER_RETRY_BACKOFF": "250ms",
		"BANKSYNC_SERVER_AUTH_TOKEN":    "tok",
	}))

	require.NoError(t, err)
	assert.Equal(t, DriverPostgres, cfg.Store.Driver)
	assert.Equal(t, "postgres://localhost/banksync", cfg.Store.PostgresDSN)
	assert.Equal(t, 2, cfg.Sync.MaxConcurrency)
	assert.True(t, cfg.Sync.Latest)
	assert.Equal(t, 2.5, cfg.Provider.RateLimit)
	assert.Equal(t, 250*time.Millisecond, cfg.Worker.RetryBackoff)
	assert.Equal(t, "tok", cfg.Server.AuthToken)
}

func TestLoad_NoFile(t *testing.T) {
	cfg, err := LoadWithEnv("", env(map[string]string{
		"BANKSYNC_PROVIDER_BASE_URL": "https://api.provider.test",
		"BANKSYNC_STORE_DRIVER":      "memory",
	}))

	require.NoError(t, err)
	assert.Equal(t, ":8080", cfg.Server.Addr)
}

func TestLoad_Invalid(t *testing.T) {
	tests := []struct {
		name    string
		env     map[string]string
		wantErr string
	}{
		{
			name:    "missing provider url",
			env:     map[string]string{"BANKSYNC_STORE_DRIVER": "memory"},
			wantErr: "Config.Provider.BaseURL",
		},
		{
			name: "postgres without dsn",
			env: map[string]string{
				"BANKSYNC_PROVIDER_BASE_URL": "https://api.provider.test",
			},
			wantErr: "Config.Store.PostgresDSN",
		},
		{
			name: "unknown driver",
			env: map[string]string{
				"BANKSYNC_PROVIDER_BASE_URL": "https://api.provider.test",
				"BANKSYNC_STORE_DRIVER":      "sqlite",
			},
			wantErr: "Config.Store.Driver",
		},
		{
			name: "notion enabled without token",
			env: map[string]string{
				"BANKSYNC_PROVIDER_BASE_URL": "https://api.provider.test",
				"BANKSYNC_STORE_DRIVER":      "memory",
				"BANKSYNC_NOTION_ENABLED":    "true",
			},
			wantErr: "Config.Notion.Token",
		},
		{
			name: "batch size zero",
			env: map[string]string{
				"BANKSYNC_PROVIDER_BASE_URL": "https://api.provider.test",
				"BANKSYNC_STORE_DRIVER":      "memory",
				"BANKSYNC_SYNC_BATCH_SIZE":   "0",
			},
			wantErr: "Config.Sync.BatchSize",
		},
		{
			name: "batch size over postgres parameter limit",
			env: map[string]string{
				"BANKSYNC_PROVIDER_BASE_URL": "https://api.provider.test",
				"BANKSYNC_STORE_DRIVER":      "memory",
				"BANKSYNC_SYNC_BATCH_SIZE":   "4096",
			},
			wantErr: "Config.Sync.BatchSize",
		},
		{
			name: "bad log level",
			env: map[string]string{
				"BANKSYNC_PROVIDER_BASE_URL": "https://api.provider.test",
				"BANKSYNC_STORE_DRIVER":      "memory",
				"BANKSYNC_LOG_LEVEL":         "loud",
			},
			wantErr: "Config.Log.Level",
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			_, err := LoadWithEnv("", env(tt.env))
			assert.ErrorContains(t, err, tt.wantErr)
		})
	}
}

func TestLoad_MaxBatchSize(t *testing.T) {
	cfg, err := LoadWithEnv("", env(map[string]string{
		"BANKSYNC_PROVIDER_BASE_URL": "https://api.provider.test",
		"BANKSYNC_STORE_DRIVER":      "memory",
		"BANKSYNC_SYNC_BATCH_SIZE":   "4095",
	}))
	require.NoError(t, err)
	assert.Equal(t, 4095, cfg.Sync.BatchSize)
}

func TestLoad_BadEnvValue(t *testing.T) {
	_, err := LoadWithEnv("", env(map[string]string{"BANKSYNC_SYNC_BATCH_SIZE": "many"}))
	assert.ErrorContains(t, err, "BANKSYNC_SYNC_BATCH_SIZE")
}

func TestLoad_MissingFile(t *testing.T) {
	_, err := LoadWithEnv(filepath.Join(t.TempDir(), "nope.yaml"), env(nil))
	assert.ErrorContains(t, err, "reading config")
}
