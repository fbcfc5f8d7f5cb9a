package config

import (
	"os"
	"path/filepath"
	"testing"
)

func writeConfig(t *testing.T, content string) string {
	t.Helper()
	path := filepath.Join(t.TempDir(), "config.yaml")
	if err := os.WriteFile(path, []byte(content), 0o644); err != nil {
		t.Fatalf("Failed to write temp config: %v", err)
	}
	return path
}

func TestLoadConfig(t *testing.T) {
	path := writeConfig(t, `
fetch:
  query: "flood OR landslide"
  max_records: 25
summary:
  threshold: 8
llm:
  api_key: test_key
`)

	cfg, err := Load(path)
	if err != nil {
		t.Fatalf("Failed to load config: %v", err)
	}

	if cfg.Fetch.Query != "flood OR landslide" {
		t.Errorf("Expected query override, got %q", cfg.Fetch.Query)
	}
	if cfg.Fetch.MaxRecords != 25 {
		t.Errorf("Expected max_records 25, got %d", cfg.Fetch.MaxRecords)
	}
	if cfg.Summary.Threshold != 8 {
		t.Errorf("Expected threshold 8, got %d", cfg.Summary.Threshold)
	}
	// Untouched settings fall through to defaults.
	if cfg.Fetch.Mode != "PointData" {
		t.Errorf("Expected default mode PointData, got %q", cfg.Fetch.Mode)
	}
	if cfg.Data.ScoredDir != "data/scored" {
		t.Errorf("Expected default scored dir, got %q", cfg.Data.ScoredDir)
	}
}

func TestLoadMissingFileUsesDefaults(t *testing.T) {
	cfg, err := Load(filepath.Join(t.TempDir(), "nope.yaml"))
	if err != nil {
		t.Fatalf("Missing config file should not be an error, got: %v", err)
	}
	if cfg.Summary.Threshold != 7 {
		t.Errorf("Expected default threshold 7, got %d", cfg.Summary.Threshold)
	}
	if cfg.Schedule != "0 8 * * *" {
		t.Errorf("Expected default schedule, got %q", cfg.Schedule)
	}
	if cfg.Data.Instructions != "config/agent_prompt.txt" {
		t.Errorf("Expected default instructions path, got %q", cfg.Data.Instructions)
	}
}

func TestLoadExpandsEnvVars(t *testing.T) {
	t.Setenv("TEST_LLM_KEY", "secret-from-env")
	path := writeConfig(t, `
llm:
  api_key: ${TEST_LLM_KEY}
`)

	cfg, err := Load(path)
	if err != nil {
		t.Fatalf("Failed to load config: %v", err)
	}
	if cfg.LLM.APIKey != "secret-from-env" {
		t.Errorf("Expected env-expanded api key, got %q", cfg.LLM.APIKey)
	}
}

func TestValidateRejectsBadThreshold(t *testing.T) {
	path := writeConfig(t, `
summary:
  threshold: 11
`)
	if _, err := Load(path); err == nil {
		t.Fatal("Expected error for threshold outside [0,10]")
	}
}
