package config

import (
	"os"
	"path/filepath"
	"testing"
	"time"
)

func TestLoad_MissingFileReturnsDefault(t *testing.T) {
	cfg, err := Load(filepath.Join(t.TempDir(), "does-not-exist.json5"))
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if cfg.Gateway.MaxMessageChars != 32000 {
		t.Errorf("expected default config, got MaxMessageChars=%d", cfg.Gateway.MaxMessageChars)
	}
}

func TestLoad_ParsesJSON5WithCommentsAndTrailingCommas(t *testing.T) {
	path := filepath.Join(t.TempDir(), "gateway.json5")
	body := `{
  // inline comment
  "gateway": {
    "log_level": "debug",
    "max_message_chars": 9000,
  },
  "tools": {
    "profile": "coding",
  },
}`
	if err := os.WriteFile(path, []byte(body), 0o644); err != nil {
		t.Fatalf("unexpected error: %v", err)
	}

	cfg, err := Load(path)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if cfg.Gateway.LogLevel != "debug" {
		t.Errorf("LogLevel = %q, want debug", cfg.Gateway.LogLevel)
	}
	if cfg.Gateway.MaxMessageChars != 9000 {
		t.Errorf("MaxMessageChars = %d, want 9000", cfg.Gateway.MaxMessageChars)
	}
	if cfg.Tools.Profile != "coding" {
		t.Errorf("Tools.Profile = %q, want coding", cfg.Tools.Profile)
	}
}

func TestLoad_InvalidJSONReturnsError(t *testing.T) {
	path := filepath.Join(t.TempDir(), "broken.json5")
	if err := os.WriteFile(path, []byte("{not valid"), 0o644); err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if _, err := Load(path); err == nil {
		t.Error("expected an error for malformed config content")
	}
}

func TestLoad_AppliesEnvSecrets(t *testing.T) {
	t.Setenv("ANTHROPIC_API_KEY", "sk-test-key")
	t.Setenv("SUPERBRAIN_POSTGRES_DSN", "postgres://localhost/test")

	cfg, err := Load(filepath.Join(t.TempDir(), "missing.json5"))
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if cfg.Providers.Anthropic.APIKey != "sk-test-key" {
		t.Errorf("Anthropic.APIKey = %q, want sk-test-key", cfg.Providers.Anthropic.APIKey)
	}
	if cfg.Database.PostgresDSN != "postgres://localhost/test" {
		t.Errorf("PostgresDSN = %q, want postgres://localhost/test", cfg.Database.PostgresDSN)
	}
}

func TestNewWatcher_ReloadsOnWrite(t *testing.T) {
	path := filepath.Join(t.TempDir(), "gateway.json5")
	if err := os.WriteFile(path, []byte(`{"gateway":{"log_level":"info"}}`), 0o644); err != nil {
		t.Fatalf("unexpected error: %v", err)
	}

	cfg, err := Load(path)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}

	w, err := NewWatcher(path, cfg)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	defer w.Close()

	reloaded := make(chan struct{}, 1)
	w.OnReload(func(*Config) {
		select {
		case reloaded <- struct{}{}:
		default:
		}
	})

	if err := os.WriteFile(path, []byte(`{"gateway":{"log_level":"debug"}}`), 0o644); err != nil {
		t.Fatalf("unexpected error: %v", err)
	}

	select {
	case <-reloaded:
	case <-time.After(2 * time.Second):
		t.Fatal("timed out waiting for config reload callback")
	}

	if cfg.Snapshot().Gateway.LogLevel != "debug" {
		t.Errorf("Gateway.LogLevel = %q, want debug after reload", cfg.Snapshot().Gateway.LogLevel)
	}
}
