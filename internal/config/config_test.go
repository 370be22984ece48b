package config

import (
	"bytes"
	"log/slog"
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestLoadDefaults(t *testing.T) {
	cfg, err := Load()
	require.NoError(t, err)

	assert.Equal(t, "127.0.0.1:8080", cfg.ListenAddr)
	assert.Equal(t, ProviderOpenAI, cfg.LLMProvider)
	assert.Equal(t, ProviderOllama, cfg.EmbedProvider)
	assert.Equal(t, 384, cfg.EmbedDimension)
	assert.Equal(t, "America/Los_Angeles", cfg.DefaultTimezone)
}

func TestLoadYAMLFileAndEnvPrecedence(t *testing.T) {
	path := filepath.Join(t.TempDir(), "config.yaml")
	yaml := "listen_addr: 0.0.0.0:9999\ndatabase_path: /data/chat.db\ndefault_timezone: Europe/Vienna\n"
	require.NoError(t, os.WriteFile(path, []byte(yaml), 0o600))

	t.Setenv("CHEMOCHAT_CONFIG", path)
	t.Setenv("CHEMOCHAT_DB_PATH", "/override/chat.db")

	cfg, err := Load()
	require.NoError(t, err)

	// File value where no env override exists.
	assert.Equal(t, "0.0.0.0:9999", cfg.ListenAddr)
	assert.Equal(t, "Europe/Vienna", cfg.DefaultTimezone)
	// Env wins over file.
	assert.Equal(t, "/override/chat.db", cfg.DatabasePath)
}

func TestLoadMissingConfigFile(t *testing.T) {
	t.Setenv("CHEMOCHAT_CONFIG", filepath.Join(t.TempDir(), "nope.yaml"))
	_, err := Load()
	require.Error(t, err)
}

func TestParseLogLevel(t *testing.T) {
	tests := []struct {
		in   string
		want slog.Level
	}{
		{"DEBUG", slog.LevelDebug},
		{"debug", slog.LevelDebug},
		{"INFO", slog.LevelInfo},
		{"WARNING", slog.LevelWarn},
		{"ERROR", slog.LevelError},
		{"bogus", slog.LevelInfo},
	}
	for _, tt := range tests {
		assert.Equal(t, tt.want, parseLogLevel(tt.in), "input %q", tt.in)
	}
}

func TestSetupLoggerWithWriters(t *testing.T) {
	var stderr, file bytes.Buffer
	logger := SetupLoggerWithWriters(&stderr, &file, slog.LevelInfo)

	logger.Info("session created", "state", "chemo_check_sent")

	assert.Contains(t, stderr.String(), "session created")
	assert.Contains(t, file.String(), `"state":"chemo_check_sent"`)
}
