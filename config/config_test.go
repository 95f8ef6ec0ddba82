package config_test

import (
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/bandroom/studio-scheduler/config"
)

func TestLoad_MissingFileFallsBackToDefaults(t *testing.T) {
	cfg, err := config.Load(filepath.Join(t.TempDir(), "nope.yaml"))
	require.NoError(t, err)
	assert.Equal(t, "127.0.0.1:8080", cfg.Listen)
	assert.Equal(t, "scheduler.db", cfg.DBPath)
	assert.Equal(t, 24*time.Hour, cfg.SessionTTL())
}

func TestLoad_FileValuesWin(t *testing.T) {
	path := filepath.Join(t.TempDir(), "config.yaml")
	require.NoError(t, os.WriteFile(path, []byte(`
listen: ":9090"
db_path: /var/lib/scheduler.db
bot_token: "12345:TOKEN"
operator_chat_id: 42
allowed_origins:
  - https://studio.example.com
session_ttl_hours: 48
`), 0o600))

	cfg, err := config.Load(path)
	require.NoError(t, err)
	assert.Equal(t, ":9090", cfg.Listen)
	assert.Equal(t, "/var/lib/scheduler.db", cfg.DBPath)
	assert.Equal(t, "12345:TOKEN", cfg.BotToken)
	assert.Equal(t, int64(42), cfg.OperatorChatID)
	assert.Equal(t, []string{"https://studio.example.com"}, cfg.AllowedOrigins)
	assert.Equal(t, 48*time.Hour, cfg.SessionTTL())
}

func TestLoad_PartialFileIsNormalized(t *testing.T) {
	path := filepath.Join(t.TempDir(), "config.yaml")
	require.NoError(t, os.WriteFile(path, []byte("listen: \":9090\"\n"), 0o600))

	cfg, err := config.Load(path)
	require.NoError(t, err)
	assert.Equal(t, ":9090", cfg.Listen)
	assert.Equal(t, "scheduler.db", cfg.DBPath)
	assert.NotEmpty(t, cfg.AllowedOrigins)
}

func TestLoad_MalformedFileIsAnError(t *testing.T) {
	path := filepath.Join(t.TempDir(), "config.yaml")
	require.NoError(t, os.WriteFile(path, []byte("listen: [unclosed"), 0o600))

	_, err := config.Load(path)
	assert.Error(t, err)
}
