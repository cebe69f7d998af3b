package config

import (
	"os"
	"path/filepath"
	"testing"
)

func TestDefault(t *testing.T) {
	cfg := Default()
	if cfg.Provider != "none" {
		t.Errorf("Provider = %q, want none", cfg.Provider)
	}
	if cfg.TotalPrompts != 10 || cfg.Trials != 5 {
		t.Errorf("defaults = %d prompts, %d trials", cfg.TotalPrompts, cfg.Trials)
	}
}

func TestLoadMissingFile(t *testing.T) {
	cfg, err := Load(filepath.Join(t.TempDir(), "absent.yaml"))
	if err != nil {
		t.Fatalf("Load() error = %v", err)
	}
	if cfg != Default() {
		t.Errorf("missing file should yield defaults, got %+v", cfg)
	}
}

func TestLoadFile(t *testing.T) {
	path := filepath.Join(t.TempDir(), "specprobe.yaml")
	data := "provider: anthropic\napi_key: file-key\ntotal_prompts: 20\ntrials: 3\n"
	if err := os.WriteFile(path, []byte(data), 0o644); err != nil {
		t.Fatal(err)
	}

	cfg, err := Load(path)
	if err != nil {
		t.Fatalf("Load() error = %v", err)
	}
	if cfg.Provider != "anthropic" || cfg.APIKey != "file-key" {
		t.Errorf("provider/key = %q/%q", cfg.Provider, cfg.APIKey)
	}
	if cfg.TotalPrompts != 20 || cfg.Trials != 3 {
		t.Errorf("prompts/trials = %d/%d", cfg.TotalPrompts, cfg.Trials)
	}
	if cfg.TrialParallelism != 2 {
		t.Errorf("unset field should keep default, got %d", cfg.TrialParallelism)
	}
}

func TestEnvOverrides(t *testing.T) {
	t.Setenv("SPECPROBE_PROVIDER", "gemini")
	t.Setenv("SPECPROBE_API_KEY", "env-key")
	t.Setenv("SPECPROBE_TRIALS", "7")

	cfg, err := Load("")
	if err != nil {
		t.Fatalf("Load() error = %v", err)
	}
	if cfg.Provider != "gemini" {
		t.Errorf("Provider = %q, want gemini", cfg.Provider)
	}
	if cfg.APIKey != "env-key" {
		t.Errorf("APIKey = %q", cfg.APIKey)
	}
	if cfg.Trials != 7 {
		t.Errorf("Trials = %d, want 7", cfg.Trials)
	}
}

func TestValidateRejectsUnknownProvider(t *testing.T) {
	t.Setenv("SPECPROBE_PROVIDER", "openai")
	if _, err := Load(""); err == nil {
		t.Fatal("expected error for unknown provider")
	}
}
