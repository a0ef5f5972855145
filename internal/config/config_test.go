package config

import (
	"os"
	"path/filepath"
	"testing"
)

func TestLoadMissingFile(t *testing.T) {
	_, err := Load(filepath.Join(t.TempDir(), "nope.json"))
	if err == nil {
		t.Fatal("expected error for missing config file")
	}
}

func TestLoadFillsDefaults(t *testing.T) {
	path := filepath.Join(t.TempDir(), "config.json")
	raw := `{"slack": {"botToken": "xoxb-1", "appToken": "xapp-1"}}`
	if err := os.WriteFile(path, []byte(raw), 0o600); err != nil {
		t.Fatal(err)
	}

	cfg, err := Load(path)
	if err != nil {
		t.Fatalf("Load: %v", err)
	}
	if cfg.General.MaxIterations != 10 {
		t.Fatalf("expected default maxIterations 10, got %d", cfg.General.MaxIterations)
	}
	if cfg.General.HistoryLimit != 5 {
		t.Fatalf("expected default historyLimit 5, got %d", cfg.General.HistoryLimit)
	}
	if cfg.LLM.MaxTokens != 1500 {
		t.Fatalf("expected default maxTokens 1500, got %d", cfg.LLM.MaxTokens)
	}
	if cfg.Slack.BotToken != "xoxb-1" {
		t.Fatalf("bot token not loaded: %q", cfg.Slack.BotToken)
	}
}

func TestSaveRoundTrip(t *testing.T) {
	path := filepath.Join(t.TempDir(), "config.json")
	cfg := Defaults()
	cfg.LLM.Model = "claude-3-5-sonnet-latest"
	if err := Save(path, cfg); err != nil {
		t.Fatalf("Save: %v", err)
	}

	loaded, err := Load(path)
	if err != nil {
		t.Fatalf("Load: %v", err)
	}
	if loaded.LLM.Model != "claude-3-5-sonnet-latest" {
		t.Fatalf("model not round-tripped: %q", loaded.LLM.Model)
	}
}

func TestApplyEnvOverrides(t *testing.T) {
	t.Setenv("SLACK_BOT_TOKEN", "xoxb-env")
	t.Setenv("LLM_MODEL", "llama-3.1-70b-versatile")

	cfg := Defaults()
	cfg.Slack.BotToken = "xoxb-file"
	cfg.ApplyEnv()

	if cfg.Slack.BotToken != "xoxb-env" {
		t.Fatalf("env should override file token, got %q", cfg.Slack.BotToken)
	}
	if cfg.LLM.Model != "llama-3.1-70b-versatile" {
		t.Fatalf("env should override model, got %q", cfg.LLM.Model)
	}
}

func TestValidate(t *testing.T) {
	cfg := Defaults()
	if err := cfg.Validate(); err == nil {
		t.Fatal("expected validation error without slack tokens")
	}
	cfg.Slack.BotToken = "xoxb-1"
	cfg.Slack.AppToken = "xapp-1"
	if err := cfg.Validate(); err != nil {
		t.Fatalf("unexpected validation error: %v", err)
	}
}
