/*
config.go - Application configuration

PURPOSE:
  Loads the server configuration from a YAML file. A missing file is
  not an error: the server starts with defaults (and a log-only
  notifier, since no bot token is configured), which keeps local
  development zero-setup.

PRECEDENCE:
  Command-line flags in cmd/server override whatever the file says.

SEE ALSO:
  - cmd/server/main.go: Flag handling and wiring
*/
package config

import (
	"errors"
	"fmt"
	"io/fs"
	"os"
	"time"

	"gopkg.in/yaml.v3"
)

// Config is the top-level application configuration.
type Config struct {
	// Listen is the HTTP listen address.
	Listen string `yaml:"listen"`

	// DBPath is the SQLite database file. ":memory:" works for dev.
	DBPath string `yaml:"db_path"`

	// BotToken is the Telegram bot token. Empty disables Telegram
	// notifications and init-data verification cannot succeed, so it
	// is required in production.
	BotToken string `yaml:"bot_token"`

	// OperatorChatID is the Telegram chat that receives booking and
	// moderation notifications.
	OperatorChatID int64 `yaml:"operator_chat_id"`

	// AllowedOrigins is the CORS allowlist for the Mini App frontend.
	AllowedOrigins []string `yaml:"allowed_origins"`

	// SessionTTLHours is the bearer token lifetime in hours.
	SessionTTLHours int `yaml:"session_ttl_hours"`
}

// DefaultConfig returns an in-memory default configuration.
func DefaultConfig() *Config {
	return &Config{
		Listen:          "127.0.0.1:8080",
		DBPath:          "scheduler.db",
		AllowedOrigins:  []string{"http://localhost:5173"},
		SessionTTLHours: 24,
	}
}

// Normalize fills in missing/zero values so partially-filled configs
// still behave correctly.
func (c *Config) Normalize() {
	if c.Listen == "" {
		c.Listen = "127.0.0.1:8080"
	}
	if c.DBPath == "" {
		c.DBPath = "scheduler.db"
	}
	if len(c.AllowedOrigins) == 0 {
		c.AllowedOrigins = []string{"http://localhost:5173"}
	}
	if c.SessionTTLHours <= 0 {
		c.SessionTTLHours = 24
	}
}

// SessionTTL returns the configured token lifetime as a duration.
func (c *Config) SessionTTL() time.Duration {
	return time.Duration(c.SessionTTLHours) * time.Hour
}

// Load loads configuration from the given YAML path. A missing file
// yields the defaults; a malformed file is an error.
func Load(path string) (*Config, error) {
	if path == "" {
		cfg := DefaultConfig()
		return cfg, nil
	}

	data, err := os.ReadFile(path)
	if err != nil {
		if errors.Is(err, fs.ErrNotExist) {
			return DefaultConfig(), nil
		}
		return nil, fmt.Errorf("read config: %w", err)
	}

	var cfg Config
	if err := yaml.Unmarshal(data, &cfg); err != nil {
		return nil, fmt.Errorf("parse config: %w", err)
	}
	cfg.Normalize()
	return &cfg, nil
}
