package config

import (
	"os"
	"path/filepath"
	"testing"
	"time"
)

func TestLoad_Defaults(t *testing.T) {
	t.Setenv("CONFIG_PATH", "")
	t.Setenv("PORT", "")

	cfg, err := Load()
	if err != nil {
		t.Fatalf("load: %v", err)
	}
	if cfg.Port != "8080" || cfg.FreeDailyAnalyses != 3 || cfg.CompetitorInterval != 6*time.Hour {
		t.Errorf("unexpected defaults: %+v", cfg)
	}
}

func TestLoad_FileThenEnv(t *testing.T) {
	path := filepath.Join(t.TempDir(), "nichescope.yaml")
	yaml := `
port: "9090"
log_level: debug
free_daily_analyses: 10
competitor_interval: 30m
llm_model: gpt-4o
`
	if err := os.WriteFile(path, []byte(yaml), 0o600); err != nil {
		t.Fatal(err)
	}

	t.Setenv("CONFIG_PATH", path)
	t.Setenv("PORT", "7070")
	t.Setenv("LLM_MODEL", "")
	t.Setenv("REFRESH_BATCH_WINDOW", "2s")

	cfg, err := Load()
	if err != nil {
		t.Fatalf("load: %v", err)
	}
	if cfg.Port != "7070" {
		t.Errorf("port = %q, env should win over file", cfg.Port)
	}
	if cfg.LogLevel != "debug" || cfg.FreeDailyAnalyses != 10 || cfg.LLMModel != "gpt-4o" {
		t.Errorf("file values not applied: %+v", cfg)
	}
	if cfg.CompetitorInterval != 30*time.Minute {
		t.Errorf("competitorInterval = %s, want 30m", cfg.CompetitorInterval)
	}
	if cfg.RefreshWindow != 2*time.Second {
		t.Errorf("refreshWindow = %s, want 2s", cfg.RefreshWindow)
	}
	if cfg.LLMTimeout != 60*time.Second {
		t.Errorf("untouched default changed: %s", cfg.LLMTimeout)
	}
}

func TestLoad_Errors(t *testing.T) {
	t.Run("missing file", func(t *testing.T) {
		t.Setenv("CONFIG_PATH", filepath.Join(t.TempDir(), "nope.yaml"))
		if _, err := Load(); err == nil {
			t.Error("expected error")
		}
	})
	t.Run("bad int", func(t *testing.T) {
		t.Setenv("CONFIG_PATH", "")
		t.Setenv("FREE_DAILY_ANALYSES", "lots")
		if _, err := Load(); err == nil {
			t.Error("expected error")
		}
	})
	t.Run("bad duration", func(t *testing.T) {
		t.Setenv("CONFIG_PATH", "")
		t.Setenv("COMPETITOR_INTERVAL", "daily")
		if _, err := Load(); err == nil {
			t.Error("expected error")
		}
	})
}
