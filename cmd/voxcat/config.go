package main

import (
	"fmt"
	"os"
	"path/filepath"
	"strconv"
	"strings"

	"github.com/BurntSushi/toml"
)

// TOMLConfig represents the structure of the voxcat config file
type TOMLConfig struct {
	API        APISection        `toml:"api"`
	Connection ConnectionSection `toml:"connection"`
	Metrics    MetricsSection    `toml:"metrics"`
	State      StateSection      `toml:"state"`
}

type APISection struct {
	BaseURL string `toml:"base_url"`
	Account string `toml:"account"`
}

type ConnectionSection struct {
	ConnectTimeoutSeconds int  `toml:"connect_timeout_seconds"`
	UseMessageQueue       bool `toml:"use_message_queue"`
	QueueIntervalMillis   int  `toml:"queue_interval_ms"`
	EnableVoice           bool `toml:"enable_voice"`
	TrackActivity         bool `toml:"track_activity"`
}

type MetricsSection struct {
	Enabled    bool   `toml:"enabled"`
	ListenAddr string `toml:"listen_addr"`
}

type StateSection struct {
	DatabasePath string `toml:"database_path"`
}

// DefaultTOMLConfig returns the default voxcat configuration
func DefaultTOMLConfig() TOMLConfig {
	return TOMLConfig{
		API: APISection{
			BaseURL: "https://api.voxhall.net/v3",
		},
		Connection: ConnectionSection{
			ConnectTimeoutSeconds: 30,
			UseMessageQueue:       true,
			QueueIntervalMillis:   100,
			TrackActivity:         true,
		},
		Metrics: MetricsSection{
			Enabled:    false,
			ListenAddr: "127.0.0.1:9822",
		},
		State: StateSection{
			DatabasePath: "~/.voxcat/voxcat.db",
		},
	}
}

// LoadConfig loads configuration from a TOML file, creates default if not
// found, and applies environment variable overrides
func LoadConfig(path string) (TOMLConfig, error) {
	expanded, err := expandPath(path)
	if err != nil {
		return TOMLConfig{}, err
	}
	path = expanded

	if _, err := os.Stat(path); os.IsNotExist(err) {
		config := DefaultTOMLConfig()
		if err := writeDefaultConfig(path, config); err != nil {
			// Can't write (permissions, read-only home); run on defaults.
			return applyEnvOverrides(config), nil
		}
		return applyEnvOverrides(config), nil
	}

	var config TOMLConfig
	if _, err := toml.DecodeFile(path, &config); err != nil {
		return TOMLConfig{}, fmt.Errorf("failed to parse config file: %w", err)
	}
	return applyEnvOverrides(config), nil
}

// applyEnvOverrides applies environment variable overrides to the config.
// Variables follow the pattern VOXCAT_SECTION_KEY, e.g.
// VOXCAT_API_BASE_URL=https://api.example.net
func applyEnvOverrides(config TOMLConfig) TOMLConfig {
	if val := os.Getenv("VOXCAT_API_BASE_URL"); val != "" {
		config.API.BaseURL = val
	}
	if val := os.Getenv("VOXCAT_API_ACCOUNT"); val != "" {
		config.API.Account = val
	}
	if val := os.Getenv("VOXCAT_CONNECTION_CONNECT_TIMEOUT_SECONDS"); val != "" {
		if n, err := strconv.Atoi(val); err == nil {
			config.Connection.ConnectTimeoutSeconds = n
		}
	}
	if val := os.Getenv("VOXCAT_CONNECTION_USE_MESSAGE_QUEUE"); val != "" {
		if b, err := strconv.ParseBool(val); err == nil {
			config.Connection.UseMessageQueue = b
		}
	}
	if val := os.Getenv("VOXCAT_CONNECTION_QUEUE_INTERVAL_MS"); val != "" {
		if n, err := strconv.Atoi(val); err == nil {
			config.Connection.QueueIntervalMillis = n
		}
	}
	if val := os.Getenv("VOXCAT_CONNECTION_ENABLE_VOICE"); val != "" {
		if b, err := strconv.ParseBool(val); err == nil {
			config.Connection.EnableVoice = b
		}
	}
	if val := os.Getenv("VOXCAT_CONNECTION_TRACK_ACTIVITY"); val != "" {
		if b, err := strconv.ParseBool(val); err == nil {
			config.Connection.TrackActivity = b
		}
	}
	if val := os.Getenv("VOXCAT_METRICS_ENABLED"); val != "" {
		if b, err := strconv.ParseBool(val); err == nil {
			config.Metrics.Enabled = b
		}
	}
	if val := os.Getenv("VOXCAT_METRICS_LISTEN_ADDR"); val != "" {
		config.Metrics.ListenAddr = val
	}
	if val := os.Getenv("VOXCAT_STATE_DATABASE_PATH"); val != "" {
		config.State.DatabasePath = val
	}
	return config
}

func writeDefaultConfig(path string, config TOMLConfig) error {
	if err := os.MkdirAll(filepath.Dir(path), 0755); err != nil {
		return err
	}
	f, err := os.Create(path)
	if err != nil {
		return err
	}
	defer f.Close()
	return toml.NewEncoder(f).Encode(config)
}

// expandPath expands a leading ~ to the user's home directory.
func expandPath(path string) (string, error) {
	if !strings.HasPrefix(path, "~/") {
		return path, nil
	}
	homeDir, err := os.UserHomeDir()
	if err != nil {
		return "", fmt.Errorf("failed to get home directory: %w", err)
	}
	return filepath.Join(homeDir, path[2:]), nil
}
