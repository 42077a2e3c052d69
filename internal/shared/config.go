package shared

import (
	_ "embed"
	"fmt"
	"os"

	"github.com/BurntSushi/toml"
)

//go:embed config.example.toml
var exampleConf []byte

// Config represents the application configuration loaded from a TOML file.
type Config struct {
	Player   PlayerConfig   `toml:"player"`
	Session  SessionConfig  `toml:"session"`
	Relay    RelayConfig    `toml:"relay"`
	Database DatabaseConfig `toml:"database"`
}

// PlayerConfig contains transport engine and crossfade settings.
type PlayerConfig struct {
	TickMillis        int  `toml:"tick_millis"`
	CrossfadeEnabled  bool `toml:"crossfade_enabled"`
	CrossfadeWindow   int  `toml:"crossfade_window_secs"`
	CrossfadeRamp     int  `toml:"crossfade_ramp_secs"`
	PreloadLeadMillis int  `toml:"preload_lead_millis"`
}

// SessionConfig contains relay client connection settings.
type SessionConfig struct {
	RelayURL          string `toml:"relay_url"`
	ReconnectAttempts int    `toml:"reconnect_attempts"`
	BackoffBaseMillis int    `toml:"backoff_base_millis"`
	BackoffCapMillis  int    `toml:"backoff_cap_millis"`
	DialTimeoutMillis int    `toml:"dial_timeout_millis"`
}

// RelayConfig contains relay server settings.
type RelayConfig struct {
	Host             string  `toml:"host"`
	Port             int     `toml:"port"`
	HostGraceSecs    int     `toml:"host_grace_secs"`
	MaxRoomSize      int     `toml:"max_room_size"`
	MessagesPerSec   float64 `toml:"messages_per_sec"`
	MessageBurst     int     `toml:"message_burst"`
	WriteTimeoutSecs int     `toml:"write_timeout_secs"`
}

// DatabaseConfig contains database connection settings.
type DatabaseConfig struct {
	Path         string `toml:"path"`
	MaxOpenConns int    `toml:"max_open_conns"`
	MaxIdleConns int    `toml:"max_idle_conns"`
}

// LoadConfig reads and parses a TOML configuration file from the specified path.
func LoadConfig(path string) (*Config, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("failed to read config file: %w", err)
	}

	var config Config
	if err := toml.Unmarshal(data, &config); err != nil {
		return nil, fmt.Errorf("failed to parse config: %w", err)
	}

	return &config, nil
}

// DefaultConfig returns a Config with sensible defaults loaded from the embedded example config.
func DefaultConfig() *Config {
	var config Config
	if err := toml.Unmarshal(exampleConf, &config); err != nil {
		panic(fmt.Sprintf("failed to parse embedded default config: %v", err))
	}
	return &config
}

// CreateConfigFile creates a config.toml file at the specified path using the embedded example config.
func CreateConfigFile(path string) error {
	// Check if file already exists
	if _, err := os.Stat(path); err == nil {
		return fmt.Errorf("config file already exists at %s", path)
	}

	// Write the embedded example config to the file
	if err := os.WriteFile(path, exampleConf, 0644); err != nil {
		return fmt.Errorf("failed to write config file: %w", err)
	}

	return nil
}
