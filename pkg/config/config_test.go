package config

import (
	"testing"
	"time"
)

func TestLoadDefaults(t *testing.T) {
	cfg, err := Load()
	if err != nil {
		t.Fatalf("Load failed: %v", err)
	}

	if cfg.Server.Port != 8080 {
		t.Errorf("Default port = %d, want 8080", cfg.Server.Port)
	}
	if cfg.Database.Path != "grubwheel.db" {
		t.Errorf("Default database path = %q", cfg.Database.Path)
	}
	if len(cfg.Fetch.Mirrors) != 3 {
		t.Errorf("Expected 3 default mirrors, got %d", len(cfg.Fetch.Mirrors))
	}
	if cfg.Wheel.SpinDuration != 4*time.Second {
		t.Errorf("Default spin duration = %v", cfg.Wheel.SpinDuration)
	}
}

func TestLoadFromEnvironment(t *testing.T) {
	t.Setenv("SERVER_PORT", "9090")
	t.Setenv("FETCH_MIRRORS", "https://a.example/api,https://b.example/api")
	t.Setenv("WHEEL_SPIN_DURATION", "2s")

	cfg, err := Load()
	if err != nil {
		t.Fatalf("Load failed: %v", err)
	}

	if cfg.Server.Port != 9090 {
		t.Errorf("Port = %d, want 9090", cfg.Server.Port)
	}
	if len(cfg.Fetch.Mirrors) != 2 || cfg.Fetch.Mirrors[0] != "https://a.example/api" {
		t.Errorf("Mirrors = %v", cfg.Fetch.Mirrors)
	}
	if cfg.Wheel.SpinDuration != 2*time.Second {
		t.Errorf("Spin duration = %v", cfg.Wheel.SpinDuration)
	}
}

func TestLoadIgnoresMalformedValues(t *testing.T) {
	t.Setenv("SERVER_PORT", "not-a-number")

	cfg, err := Load()
	if err != nil {
		t.Fatalf("Load failed: %v", err)
	}
	if cfg.Server.Port != 8080 {
		t.Errorf("Malformed port should fall back to default, got %d", cfg.Server.Port)
	}
}
