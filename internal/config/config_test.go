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

	if cfg.Port != "8080" {
		t.Errorf("Expected default port 8080, got %q", cfg.Port)
	}
	if cfg.SweepInterval != 5*time.Minute {
		t.Errorf("Expected default sweep interval 5m, got %v", cfg.SweepInterval)
	}
	if cfg.TurnTimeout != 2*time.Hour {
		t.Errorf("Expected default turn timeout 2h, got %v", cfg.TurnTimeout)
	}
	if cfg.DefaultLines != 4 || cfg.DefaultWords != 6 {
		t.Errorf("Expected defaults 4 lines / 6 words, got %d/%d", cfg.DefaultLines, cfg.DefaultWords)
	}
}

func TestLoadOverrides(t *testing.T) {
	t.Setenv("PORT", "9000")
	t.Setenv("TURN_TIMEOUT", "30m")
	t.Setenv("DEFAULT_LINES", "2")

	cfg, err := Load()
	if err != nil {
		t.Fatalf("Load failed: %v", err)
	}

	if cfg.Port != "9000" {
		t.Errorf("Expected port 9000, got %q", cfg.Port)
	}
	if cfg.TurnTimeout != 30*time.Minute {
		t.Errorf("Expected turn timeout 30m, got %v", cfg.TurnTimeout)
	}
	if cfg.DefaultLines != 2 {
		t.Errorf("Expected 2 lines, got %d", cfg.DefaultLines)
	}
}

func TestLoadIgnoresMalformedValues(t *testing.T) {
	t.Setenv("TURN_TIMEOUT", "not-a-duration")
	t.Setenv("DEFAULT_LINES", "many")

	cfg, err := Load()
	if err != nil {
		t.Fatalf("Load failed: %v", err)
	}
	if cfg.TurnTimeout != 2*time.Hour {
		t.Errorf("Expected fallback timeout, got %v", cfg.TurnTimeout)
	}
	if cfg.DefaultLines != 4 {
		t.Errorf("Expected fallback lines, got %d", cfg.DefaultLines)
	}
}

func TestValidateRejectsBadValues(t *testing.T) {
	cfg := &Config{
		Port:          "8080",
		DBPath:        "./data/corpse.db",
		SweepInterval: 5 * time.Minute,
		TurnTimeout:   2 * time.Hour,
		DefaultLines:  0,
		DefaultWords:  6,
	}
	if err := cfg.Validate(); err == nil {
		t.Error("Expected validation error for zero lines")
	}

	cfg.DefaultLines = 4
	cfg.DBPath = ""
	if err := cfg.Validate(); err == nil {
		t.Error("Expected validation error for empty DB path")
	}
}
