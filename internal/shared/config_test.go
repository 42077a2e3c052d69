package shared

import (
	"os"
	"path/filepath"
	"testing"
)

func TestDefaultConfig(t *testing.T) {
	config := DefaultConfig()

	if config.Player.TickMillis <= 0 {
		t.Error("expected a positive tick interval")
	}
	if config.Player.CrossfadeWindow <= 0 || config.Player.CrossfadeRamp <= 0 {
		t.Error("expected crossfade window and ramp defaults")
	}
	if config.Relay.Port == 0 {
		t.Error("expected a default relay port")
	}
	if config.Session.ReconnectAttempts <= 0 {
		t.Error("expected a default reconnect attempt count")
	}
	if config.Database.Path == "" {
		t.Error("expected a default database path")
	}
}

func TestCreateConfigFile(t *testing.T) {
	t.Run("writes a loadable config", func(t *testing.T) {
		path := filepath.Join(t.TempDir(), "config.toml")

		if err := CreateConfigFile(path); err != nil {
			t.Fatalf("expected no error, got %v", err)
		}

		config, err := LoadConfig(path)
		if err != nil {
			t.Fatalf("failed to load created config: %v", err)
		}
		if config.Player.TickMillis != DefaultConfig().Player.TickMillis {
			t.Error("expected created config to match defaults")
		}
	})

	t.Run("refuses to overwrite", func(t *testing.T) {
		path := filepath.Join(t.TempDir(), "config.toml")
		if err := os.WriteFile(path, []byte("existing"), 0o644); err != nil {
			t.Fatal(err)
		}

		if err := CreateConfigFile(path); err == nil {
			t.Fatal("expected error for existing file")
		}
	})
}

func TestLoadConfig(t *testing.T) {
	t.Run("missing file is an error", func(t *testing.T) {
		if _, err := LoadConfig(filepath.Join(t.TempDir(), "nope.toml")); err == nil {
			t.Fatal("expected error for missing file")
		}
	})

	t.Run("malformed TOML is an error", func(t *testing.T) {
		path := filepath.Join(t.TempDir(), "bad.toml")
		if err := os.WriteFile(path, []byte("[player\n"), 0o644); err != nil {
			t.Fatal(err)
		}

		if _, err := LoadConfig(path); err == nil {
			t.Fatal("expected error for malformed TOML")
		}
	})
}
