package config

import (
	"log/slog"
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func writeConfig(t *testing.T, content string) string {
	t.Helper()
	path := filepath.Join(t.TempDir(), "nidstore.yaml")
	require.NoError(t, os.WriteFile(path, []byte(content), 0o644))
	return path
}

func TestLoad_Defaults(t *testing.T) {
	cfg, err := Load("")
	require.NoError(t, err)
	assert.Equal(t, Default(), cfg)
}

func TestLoad_YAML(t *testing.T) {
	path := writeConfig(t, `
name: terminology
backend: sqlite
path: /var/lib/nidstore/store.db
workers: 2
log_level: debug
log_format: json
`)
	cfg, err := Load(path)
	require.NoError(t, err)
	assert.Equal(t, Config{
		Name:      "terminology",
		Backend:   BackendSQLite,
		Path:      "/var/lib/nidstore/store.db",
		Workers:   2,
		LogLevel:  "debug",
		LogFormat: "json",
	}, cfg)
}

func TestLoad_EmptyFileKeepsDefaults(t *testing.T) {
	cfg, err := Load(writeConfig(t, ""))
	require.NoError(t, err)
	assert.Equal(t, Default(), cfg)
}

func TestLoad_RejectsUnknownFields(t *testing.T) {
	_, err := Load(writeConfig(t, "backnd: sqlite\n"))
	require.Error(t, err)
	assert.Contains(t, err.Error(), "backnd")
}

func TestLoad_MissingFile(t *testing.T) {
	_, err := Load(filepath.Join(t.TempDir(), "missing.yaml"))
	require.Error(t, err)
	assert.Contains(t, err.Error(), "failed to read config file")
}

func TestLoad_EnvOverridesFile(t *testing.T) {
	path := writeConfig(t, "workers: 2\nname: from-file\n")
	t.Setenv("NIDSTORE_WORKERS", "3")
	t.Setenv("NIDSTORE_BACKEND", "sqlite")
	t.Setenv("NIDSTORE_PATH", "/tmp/env.db")

	cfg, err := Load(path)
	require.NoError(t, err)
	assert.Equal(t, 3, cfg.Workers)
	assert.Equal(t, BackendSQLite, cfg.Backend)
	assert.Equal(t, "/tmp/env.db", cfg.Path)
	assert.Equal(t, "from-file", cfg.Name)
}

func TestLoad_InvalidEnv(t *testing.T) {
	t.Setenv("NIDSTORE_WORKERS", "many")

	_, err := Load("")
	require.Error(t, err)
	assert.Contains(t, err.Error(), "parse env")
}

func TestLoad_OverridesWin(t *testing.T) {
	t.Setenv("NIDSTORE_LOG_LEVEL", "warn")

	cfg, err := Load("", func(c *Config) { c.LogLevel = "error" })
	require.NoError(t, err)
	assert.Equal(t, "error", cfg.LogLevel)
}

func TestValidate(t *testing.T) {
	tests := []struct {
		name   string
		mutate func(*Config)
	}{
		{"unknown backend", func(c *Config) { c.Backend = "redis" }},
		{"sqlite without path", func(c *Config) { c.Backend = BackendSQLite }},
		{"zero workers", func(c *Config) { c.Workers = 0 }},
		{"unknown log level", func(c *Config) { c.LogLevel = "verbose" }},
		{"unknown log format", func(c *Config) { c.LogFormat = "xml" }},
		{"empty name", func(c *Config) { c.Name = "" }},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			cfg := Default()
			tt.mutate(&cfg)
			err := cfg.Validate()
			require.Error(t, err)
			assert.Contains(t, err.Error(), "invalid config")
		})
	}

	require.NoError(t, Default().Validate())
}

func TestLevel(t *testing.T) {
	tests := map[string]slog.Level{
		"debug": slog.LevelDebug,
		"info":  slog.LevelInfo,
		"warn":  slog.LevelWarn,
		"error": slog.LevelError,
		"":      slog.LevelInfo,
	}
	for name, want := range tests {
		assert.Equal(t, want, Config{LogLevel: name}.Level(), name)
	}
}
