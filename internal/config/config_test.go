package config

import (
	"os"
	"path/filepath"
	"strings"
	"testing"
	"time"
)

func useTempConfigDir(t *testing.T) string {
	t.Helper()
	tmpDir, err := os.MkdirTemp("", "exatool-test")
	if err != nil {
		t.Fatal(err)
	}
	t.Cleanup(func() { os.RemoveAll(tmpDir) })

	dir := filepath.Join(tmpDir, "config")
	SetConfigDir(dir)
	t.Setenv(APIKeyEnv, "")
	return dir
}

func TestDefaultConfig(t *testing.T) {
	cfg := DefaultConfig()

	if cfg.Exa.BaseURL != "https://api.exa.ai" {
		t.Errorf("Expected BaseURL to be https://api.exa.ai, got %s", cfg.Exa.BaseURL)
	}
	if cfg.Exa.Timeout() != 30*time.Second {
		t.Errorf("Expected timeout 30s, got %s", cfg.Exa.Timeout())
	}
	if cfg.Exa.LivecrawlTimeout() != 90*time.Second {
		t.Errorf("Expected livecrawl timeout 90s, got %s", cfg.Exa.LivecrawlTimeout())
	}
	if cfg.Exa.MaxRetries != 2 {
		t.Errorf("Expected MaxRetries to be 2, got %d", cfg.Exa.MaxRetries)
	}
	if cfg.Exa.RetryBackoff() != 500*time.Millisecond {
		t.Errorf("Expected backoff 500ms, got %s", cfg.Exa.RetryBackoff())
	}
	if !cfg.Usage.Enabled {
		t.Error("Expected usage ledger to be enabled")
	}
	if err := cfg.Validate(); err != nil {
		t.Errorf("Default config should be valid: %v", err)
	}
}

func TestConfigValidate(t *testing.T) {
	tests := []struct {
		name    string
		mutate  func(*Config)
		wantErr string
	}{
		{"valid config", func(*Config) {}, ""},
		{"empty BaseURL", func(c *Config) { c.Exa.BaseURL = "" }, "exa.base_url cannot be empty"},
		{"non-http BaseURL", func(c *Config) { c.Exa.BaseURL = "ftp://exa" }, "http(s) URL"},
		{"zero timeout", func(c *Config) { c.Exa.TimeoutSeconds = 0 }, "exa.timeout_seconds"},
		{"zero livecrawl timeout", func(c *Config) { c.Exa.LivecrawlTimeoutSeconds = 0 }, "exa.livecrawl_timeout_seconds"},
		{"too many retries", func(c *Config) { c.Exa.MaxRetries = 11 }, "exa.max_retries"},
		{"zero retries", func(c *Config) { c.Exa.MaxRetries = 0 }, ""},
		{"negative backoff", func(c *Config) { c.Exa.RetryBackoffMS = -1 }, "exa.retry_backoff_ms"},
		{"usage without path", func(c *Config) { c.Usage.DBPath = "" }, "usage.db_path"},
		{"usage disabled without path", func(c *Config) { c.Usage.Enabled = false; c.Usage.DBPath = "" }, ""},
		{"bad log level", func(c *Config) { c.Log.Level = "loud" }, "log.level"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			cfg := DefaultConfig()
			tt.mutate(cfg)
			err := cfg.Validate()
			if tt.wantErr == "" {
				if err != nil {
					t.Errorf("Validate() unexpected error: %v", err)
				}
				return
			}
			if err == nil || !strings.Contains(err.Error(), tt.wantErr) {
				t.Errorf("Validate() error = %v, want it to mention %q", err, tt.wantErr)
			}
		})
	}
}

func TestSaveAndLoad(t *testing.T) {
	configTestDir := useTempConfigDir(t)

	// Create and save config
	cfg := DefaultConfig()
	cfg.Exa.APIKey = "test-api-key"
	cfg.Exa.MaxRetries = 4

	err := Save(cfg)
	if err != nil {
		t.Fatalf("Failed to save config: %v", err)
	}

	// Verify file exists
	configPath := filepath.Join(configTestDir, "config.yaml")
	if _, err := os.Stat(configPath); os.IsNotExist(err) {
		t.Fatal("Config file not created")
	}

	// Load config
	loadedCfg, err := Load()
	if err != nil {
		t.Fatalf("Failed to load config: %v", err)
	}

	if loadedCfg.Exa.APIKey != cfg.Exa.APIKey {
		t.Errorf("API Key mismatch: expected %s, got %s", cfg.Exa.APIKey, loadedCfg.Exa.APIKey)
	}
	if loadedCfg.Exa.MaxRetries != 4 {
		t.Errorf("Expected MaxRetries 4, got %d", loadedCfg.Exa.MaxRetries)
	}
}

func TestLoad_CreatesDefaultAndMergesSecrets(t *testing.T) {
	dir := useTempConfigDir(t)
	if err := os.MkdirAll(dir, 0755); err != nil {
		t.Fatal(err)
	}
	secrets := "# exa\nexport EXA_API_KEY=\"secret-from-file\"\n"
	if err := os.WriteFile(filepath.Join(dir, ".secrets"), []byte(secrets), 0600); err != nil {
		t.Fatal(err)
	}

	cfg, err := Load()
	if err != nil {
		t.Fatalf("Failed to load config: %v", err)
	}
	if cfg.Exa.APIKey != "secret-from-file" {
		t.Errorf("Expected key from .secrets, got %q", cfg.Exa.APIKey)
	}

	data, err := os.ReadFile(filepath.Join(dir, "config.yaml"))
	if err != nil {
		t.Fatalf("Default config should be written: %v", err)
	}
	if strings.Contains(string(data), "secret-from-file") {
		t.Error("Keys from .secrets must not be written to config.yaml")
	}

	// Saving again keeps the merged key out of the file.
	if err := Save(cfg); err != nil {
		t.Fatal(err)
	}
	data, _ = os.ReadFile(filepath.Join(dir, "config.yaml"))
	if strings.Contains(string(data), "secret-from-file") {
		t.Error("Merged keys must not be written on later saves")
	}
}

func TestLoad_EnvOverridesKey(t *testing.T) {
	useTempConfigDir(t)

	cfg := DefaultConfig()
	cfg.Exa.APIKey = "from-file"
	if err := Save(cfg); err != nil {
		t.Fatal(err)
	}

	t.Setenv(APIKeyEnv, "from-env")
	loaded, err := Load()
	if err != nil {
		t.Fatalf("Failed to load config: %v", err)
	}
	if loaded.Exa.APIKey != "from-env" {
		t.Errorf("Expected env key to win, got %q", loaded.Exa.APIKey)
	}
}

func TestLoad_InvalidFile(t *testing.T) {
	dir := useTempConfigDir(t)
	if err := os.MkdirAll(dir, 0755); err != nil {
		t.Fatal(err)
	}
	bad := "exa:\n  base_url: https://api.exa.ai\n  max_retries: 50\n"
	if err := os.WriteFile(filepath.Join(dir, "config.yaml"), []byte(bad), 0644); err != nil {
		t.Fatal(err)
	}

	if _, err := Load(); err == nil || !strings.Contains(err.Error(), "max_retries") {
		t.Errorf("Expected a max_retries validation error, got %v", err)
	}
}

func TestSecretsParsing(t *testing.T) {
	tmpDir := t.TempDir()
	path := filepath.Join(tmpDir, ".secrets")
	content := "A=1\n  # comment\n\nB = 'two words'\nexport C=\"x\\ty\"\nD=\n"
	if err := os.WriteFile(path, []byte(content), 0600); err != nil {
		t.Fatal(err)
	}

	s, err := LoadSecretsFrom(path)
	if err != nil {
		t.Fatalf("Failed to load secrets: %v", err)
	}
	if s.Get("A") != "1" || s.Get("B") != "two words" || s.Get("C") != "x\ty" {
		t.Errorf("Unexpected values: A=%q B=%q C=%q", s.Get("A"), s.Get("B"), s.Get("C"))
	}
	if !s.Has("D") || s.GetOrDefault("D", "fallback") != "fallback" {
		t.Error("Empty values should exist but fall back to the default")
	}

	if err := os.WriteFile(path, []byte("no separator\n"), 0600); err != nil {
		t.Fatal(err)
	}
	if _, err := LoadSecretsFrom(path); err == nil {
		t.Error("Malformed lines should be reported")
	}

	missing, err := LoadSecretsFrom(filepath.Join(tmpDir, "absent"))
	if err != nil || missing.Has("A") {
		t.Errorf("A missing file should give empty secrets, got %v", err)
	}
}

func TestIsAPIKeyConfigured(t *testing.T) {
	cfg := DefaultConfig()

	if cfg.IsAPIKeyConfigured() {
		t.Error("Default config should not have API Key")
	}

	cfg.Exa.APIKey = "test-key-123456"
	if !cfg.IsAPIKeyConfigured() {
		t.Error("Should return true after setting API Key")
	}
	if out := cfg.String(); strings.Contains(out, "test-key-123456") || !strings.Contains(out, "test-key...") {
		t.Errorf("String() should redact the key:\n%s", out)
	}
}

func TestToolTexts(t *testing.T) {
	texts := DefaultToolTexts()
	if len(texts.ForLanguage()) != 0 {
		t.Error("English defaults should defer to built-in descriptions")
	}

	texts.Language = "zh"
	if texts.ForLanguage()["exa_search"] == "" {
		t.Error("Chinese descriptions should be available")
	}

	texts.Language = "fr"
	if len(texts.ForLanguage()) != 0 {
		t.Error("Unknown languages should fall back to English")
	}

	dir := useTempConfigDir(t)
	if err := os.MkdirAll(dir, 0755); err != nil {
		t.Fatal(err)
	}
	content := "language: en\ndescriptions:\n  en:\n    exa_answer: Custom answer text\n"
	if err := os.WriteFile(filepath.Join(dir, "tools.yaml"), []byte(content), 0644); err != nil {
		t.Fatal(err)
	}
	// A config/tools.yaml in the working directory would take precedence.
	if path, _ := ToolTextsPath(); path != filepath.Join(dir, "tools.yaml") {
		t.Skipf("tools.yaml found in working directory: %s", path)
	}

	loaded, err := LoadToolTexts()
	if err != nil {
		t.Fatalf("Failed to load tool texts: %v", err)
	}
	if loaded.ForLanguage()["exa_answer"] != "Custom answer text" {
		t.Errorf("Unexpected texts: %v", loaded.ForLanguage())
	}
}
