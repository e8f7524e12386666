package main

import (
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestLoadConfigWritesDefaults(t *testing.T) {
	path := filepath.Join(t.TempDir(), "config.toml")

	cfg, err := LoadConfig(path)
	require.NoError(t, err)
	assert.Equal(t, DefaultTOMLConfig(), cfg)

	// The default file was written and parses back to the same config.
	_, statErr := os.Stat(path)
	require.NoError(t, statErr)
	reread, err := LoadConfig(path)
	require.NoError(t, err)
	assert.Equal(t, cfg, reread)
}

func TestLoadConfigParsesFile(t *testing.T) {
	path := filepath.Join(t.TempDir(), "config.toml")
	content := `
[api]
base_url = "https://api.example.net/v3"
account = "bob@example.net"

[connection]
connect_timeout_seconds = 5
use_message_queue = false
queue_interval_ms = 250
enable_voice = true
track_activity = false

[metrics]
enabled = true
listen_addr = "127.0.0.1:9900"

[state]
database_path = "/tmp/voxcat-test.db"
`
	require.NoError(t, os.WriteFile(path, []byte(content), 0644))

	cfg, err := LoadConfig(path)
	require.NoError(t, err)
	assert.Equal(t, "https://api.example.net/v3", cfg.API.BaseURL)
	assert.Equal(t, "bob@example.net", cfg.API.Account)
	assert.Equal(t, 5, cfg.Connection.ConnectTimeoutSeconds)
	assert.False(t, cfg.Connection.UseMessageQueue)
	assert.Equal(t, 250, cfg.Connection.QueueIntervalMillis)
	assert.True(t, cfg.Connection.EnableVoice)
	assert.False(t, cfg.Connection.TrackActivity)
	assert.True(t, cfg.Metrics.Enabled)
	assert.Equal(t, "127.0.0.1:9900", cfg.Metrics.ListenAddr)
	assert.Equal(t, "/tmp/voxcat-test.db", cfg.State.DatabasePath)
}

func TestLoadConfigRejectsBadFile(t *testing.T) {
	path := filepath.Join(t.TempDir(), "config.toml")
	require.NoError(t, os.WriteFile(path, []byte("not [valid toml"), 0644))

	_, err := LoadConfig(path)
	require.Error(t, err)
	assert.Contains(t, err.Error(), "failed to parse config file")
}

func TestEnvOverrides(t *testing.T) {
	t.Setenv("VOXCAT_API_BASE_URL", "https://override.example.net")
	t.Setenv("VOXCAT_CONNECTION_USE_MESSAGE_QUEUE", "false")
	t.Setenv("VOXCAT_CONNECTION_QUEUE_INTERVAL_MS", "50")
	t.Setenv("VOXCAT_METRICS_ENABLED", "true")
	t.Setenv("VOXCAT_CONNECTION_CONNECT_TIMEOUT_SECONDS", "not-a-number")

	cfg := applyEnvOverrides(DefaultTOMLConfig())
	assert.Equal(t, "https://override.example.net", cfg.API.BaseURL)
	assert.False(t, cfg.Connection.UseMessageQueue)
	assert.Equal(t, 50, cfg.Connection.QueueIntervalMillis)
	assert.True(t, cfg.Metrics.Enabled)
	// Unparseable values leave the default in place.
	assert.Equal(t, 30, cfg.Connection.ConnectTimeoutSeconds)
}

func TestExpandPath(t *testing.T) {
	home, err := os.UserHomeDir()
	require.NoError(t, err)

	got, err := expandPath("~/.voxcat/config.toml")
	require.NoError(t, err)
	assert.Equal(t, filepath.Join(home, ".voxcat", "config.toml"), got)

	got, err = expandPath("/etc/voxcat.toml")
	require.NoError(t, err)
	assert.Equal(t, "/etc/voxcat.toml", got)
}
