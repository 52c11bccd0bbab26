package infra

import (
	"testing"
	"time"
)

func setRequired(t *testing.T) {
	t.Helper()
	t.Setenv("DATABASE_URL", "postgres://example")
	t.Setenv("JWT_SECRET", "test-secret")
}

func TestLoadConfigDefaults(t *testing.T) {
	setRequired(t)
	t.Setenv("PORT", "")
	t.Setenv("STORAGE_BASE_URL", "")
	t.Setenv("GENERATE_MODE", "")
	t.Setenv("PROMPT_PROVIDER", "")
	t.Setenv("WORKER_POLL_INTERVAL_MS", "")
	t.Setenv("CORS_ALLOWED_ORIGINS", "")

	cfg, err := LoadConfig()
	if err != nil {
		t.Fatalf("LoadConfig returned error: %v", err)
	}
	if cfg.StorageBaseURL != "http://localhost:8080/static" {
		t.Fatalf("StorageBaseURL mismatch: got %q", cfg.StorageBaseURL)
	}
	if cfg.GenerateMode != GenerateModeAuto {
		t.Fatalf("GenerateMode = %q, want auto", cfg.GenerateMode)
	}
	if cfg.PromptProvider != "static" {
		t.Fatalf("PromptProvider = %q, want static", cfg.PromptProvider)
	}
	if cfg.WorkerPollInterval != 2*time.Second {
		t.Fatalf("WorkerPollInterval = %s, want 2s", cfg.WorkerPollInterval)
	}
	if len(cfg.CORSOrigins) != 1 || cfg.CORSOrigins[0] != "*" {
		t.Fatalf("CORSOrigins = %#v", cfg.CORSOrigins)
	}
}

func TestLoadConfigInheritsPortInStorageBaseURL(t *testing.T) {
	setRequired(t)
	t.Setenv("PORT", "1919")
	t.Setenv("STORAGE_BASE_URL", "")

	cfg, err := LoadConfig()
	if err != nil {
		t.Fatalf("LoadConfig returned error: %v", err)
	}
	if cfg.StorageBaseURL != "http://localhost:1919/static" {
		t.Fatalf("StorageBaseURL mismatch: got %q", cfg.StorageBaseURL)
	}
}

func TestLoadConfigHonorsExplicitValues(t *testing.T) {
	setRequired(t)
	t.Setenv("STORAGE_BASE_URL", "https://cdn.example.com/static/")
	t.Setenv("GENERATE_MODE", "ASYNC")
	t.Setenv("PROMPT_PROVIDER", "openai")
	t.Setenv("CORS_ALLOWED_ORIGINS", "https://a.example, https://b.example ,")
	t.Setenv("WORKER_POLL_INTERVAL_MS", "500")

	cfg, err := LoadConfig()
	if err != nil {
		t.Fatalf("LoadConfig returned error: %v", err)
	}
	if cfg.StorageBaseURL != "https://cdn.example.com/static" {
		t.Fatalf("StorageBaseURL mismatch: got %q", cfg.StorageBaseURL)
	}
	if cfg.GenerateMode != GenerateModeAsync {
		t.Fatalf("GenerateMode = %q", cfg.GenerateMode)
	}
	if cfg.PromptProvider != "openai" {
		t.Fatalf("PromptProvider = %q", cfg.PromptProvider)
	}
	if len(cfg.CORSOrigins) != 2 || cfg.CORSOrigins[1] != "https://b.example" {
		t.Fatalf("CORSOrigins = %#v", cfg.CORSOrigins)
	}
	if cfg.WorkerPollInterval != 500*time.Millisecond {
		t.Fatalf("WorkerPollInterval = %s", cfg.WorkerPollInterval)
	}
}

func TestLoadConfigRejects(t *testing.T) {
	tests := []struct {
		name string
		env  map[string]string
	}{
		{name: "missing database", env: map[string]string{"DATABASE_URL": ""}},
		{name: "missing secret", env: map[string]string{"JWT_SECRET": ""}},
		{name: "bad mode", env: map[string]string{"GENERATE_MODE": "later"}},
		{name: "bad provider", env: map[string]string{"PROMPT_PROVIDER": "qwen"}},
	}
	for _, tc := range tests {
		t.Run(tc.name, func(t *testing.T) {
			setRequired(t)
			t.Setenv("GENERATE_MODE", "")
			t.Setenv("PROMPT_PROVIDER", "")
			for k, v := range tc.env {
				t.Setenv(k, v)
			}
			if _, err := LoadConfig(); err == nil {
				t.Fatalf("expected error")
			}
		})
	}
}
