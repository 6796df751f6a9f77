package config

import (
	"fmt"
	"net/url"
	"os"
	"path/filepath"
	"strings"
	"time"

	"gopkg.in/yaml.v3"

	"github.com/hession/exatool/internal/logger"
)

// APIKeyEnv overrides every other source of the Exa API key.
const APIKeyEnv = "EXA_API_KEY"

var (
	// configDir is the configuration directory path
	// Can be set via SetConfigDir before loading config
	configDir     string
	configDirInit bool
)

// SetConfigDir sets a custom configuration directory
// Must be called before any config loading functions
func SetConfigDir(dir string) {
	configDir = dir
	configDirInit = true
}

// GetConfigDir returns the configuration directory
// Priority: 1. Manually set via SetConfigDir, 2. ./config in current directory
func GetConfigDir() string {
	if !configDirInit {
		// Default to ./config in current working directory
		cwd, err := os.Getwd()
		if err == nil {
			configDir = filepath.Join(cwd, "config")
		}
		configDirInit = true
	}
	return configDir
}

// Config application configuration structure
type Config struct {
	Exa   ExaConfig   `yaml:"exa"`
	Usage UsageConfig `yaml:"usage"`
	Log   LogConfig   `yaml:"log"`

	// keyMerged is set when the API key came from .secrets or the
	// environment; such a key is never written back to config.yaml.
	keyMerged bool
}

// ExaConfig search service configuration
type ExaConfig struct {
	APIKey                  string `yaml:"api_key"`
	BaseURL                 string `yaml:"base_url"`
	TimeoutSeconds          int    `yaml:"timeout_seconds"`
	LivecrawlTimeoutSeconds int    `yaml:"livecrawl_timeout_seconds"`
	MaxRetries              int    `yaml:"max_retries"`
	RetryBackoffMS          int    `yaml:"retry_backoff_ms"`
	UserAgent               string `yaml:"user_agent"`
}

// UsageConfig invocation ledger configuration
type UsageConfig struct {
	Enabled bool   `yaml:"enabled"`
	DBPath  string `yaml:"db_path"`
}

// LogConfig logging configuration
type LogConfig struct {
	Level   string `yaml:"level"`
	MaxDays int    `yaml:"max_days"`
	Console bool   `yaml:"console"`
}

// Timeout returns the per-attempt timeout.
func (c ExaConfig) Timeout() time.Duration {
	return time.Duration(c.TimeoutSeconds) * time.Second
}

// LivecrawlTimeout returns the per-attempt timeout for live crawls.
func (c ExaConfig) LivecrawlTimeout() time.Duration {
	return time.Duration(c.LivecrawlTimeoutSeconds) * time.Second
}

// RetryBackoff returns the base delay between retries.
func (c ExaConfig) RetryBackoff() time.Duration {
	return time.Duration(c.RetryBackoffMS) * time.Millisecond
}

// DefaultConfig returns default configuration
func DefaultConfig() *Config {
	homeDir, _ := os.UserHomeDir()
	return &Config{
		Exa: ExaConfig{
			APIKey:                  "",
			BaseURL:                 "https://api.exa.ai",
			TimeoutSeconds:          30,
			LivecrawlTimeoutSeconds: 90,
			MaxRetries:              2,
			RetryBackoffMS:          500,
			UserAgent:               "exatool/0.1",
		},
		Usage: UsageConfig{
			Enabled: true,
			DBPath:  filepath.Join(homeDir, ".exatool", "usage.db"),
		},
		Log: LogConfig{
			Level:   "info",
			MaxDays: 7,
			Console: false,
		},
	}
}

// ConfigDir returns the configuration directory path
func ConfigDir() (string, error) {
	dir := GetConfigDir()
	if dir == "" {
		return "", fmt.Errorf("failed to determine config directory")
	}
	return dir, nil
}

// LogDir returns the log directory path
func LogDir() string {
	dir := GetConfigDir()
	if dir == "" {
		return "logs"
	}
	return filepath.Join(dir, "logs")
}

// ConfigPath returns the configuration file path
func ConfigPath() (string, error) {
	dir, err := ConfigDir()
	if err != nil {
		return "", err
	}
	return filepath.Join(dir, "config.yaml"), nil
}

// Load loads configuration from file and merges with secrets.
// The API key is taken from, in increasing priority: config.yaml,
// .secrets (only when config.yaml has none), the EXA_API_KEY variable.
func Load() (*Config, error) {
	configPath, err := ConfigPath()
	if err != nil {
		return nil, err
	}

	// Check if config file exists
	if _, err := os.Stat(configPath); os.IsNotExist(err) {
		// Config file doesn't exist, create default config
		cfg := DefaultConfig()
		if err := Save(cfg); err != nil {
			return nil, fmt.Errorf("failed to create default config: %w", err)
		}
		cfg.mergeAPIKey()
		return cfg, nil
	}

	// Read config file
	data, err := os.ReadFile(configPath)
	if err != nil {
		return nil, fmt.Errorf("failed to read config file: %w", err)
	}

	// Parse config
	cfg := DefaultConfig() // Use default values as base
	if err := yaml.Unmarshal(data, cfg); err != nil {
		return nil, fmt.Errorf("failed to parse config file: %w", err)
	}

	cfg.mergeAPIKey()

	// Validate config
	if err := cfg.Validate(); err != nil {
		return nil, err
	}

	return cfg, nil
}

func (c *Config) mergeAPIKey() {
	if c.Exa.APIKey == "" {
		secrets, _ := LoadSecrets()
		if apiKey := secrets.GetExaAPIKey(); apiKey != "" {
			c.Exa.APIKey = apiKey
			c.keyMerged = true
		}
	}
	if apiKey := strings.TrimSpace(os.Getenv(APIKeyEnv)); apiKey != "" {
		c.Exa.APIKey = apiKey
		c.keyMerged = true
	}
}

// Save saves configuration to file
func Save(cfg *Config) error {
	configPath, err := ConfigPath()
	if err != nil {
		return err
	}

	// Ensure config directory exists
	dir := filepath.Dir(configPath)
	if err := os.MkdirAll(dir, 0755); err != nil {
		return fmt.Errorf("failed to create config directory: %w", err)
	}

	out := *cfg
	if out.keyMerged {
		out.Exa.APIKey = ""
	}

	// Serialize config
	data, err := yaml.Marshal(&out)
	if err != nil {
		return fmt.Errorf("failed to serialize config: %w", err)
	}

	// Add header comment
	content := "# exatool configuration file\n# The API key is best kept in .secrets (EXA_API_KEY=...) next to this file.\n\n" + string(data)

	// Write file
	if err := os.WriteFile(configPath, []byte(content), 0644); err != nil {
		return fmt.Errorf("failed to write config file: %w", err)
	}

	return nil
}

// Validate validates the configuration
func (c *Config) Validate() error {
	// Validate exa config
	if strings.TrimSpace(c.Exa.BaseURL) == "" {
		return fmt.Errorf("config error: exa.base_url cannot be empty")
	}
	u, err := url.Parse(c.Exa.BaseURL)
	if err != nil || (u.Scheme != "http" && u.Scheme != "https") || u.Host == "" {
		return fmt.Errorf("config error: exa.base_url must be an http(s) URL, got %q", c.Exa.BaseURL)
	}
	if c.Exa.TimeoutSeconds <= 0 {
		return fmt.Errorf("config error: exa.timeout_seconds must be greater than 0")
	}
	if c.Exa.LivecrawlTimeoutSeconds <= 0 {
		return fmt.Errorf("config error: exa.livecrawl_timeout_seconds must be greater than 0")
	}
	if c.Exa.MaxRetries < 0 || c.Exa.MaxRetries > 10 {
		return fmt.Errorf("config error: exa.max_retries must be between 0 and 10")
	}
	if c.Exa.RetryBackoffMS < 0 {
		return fmt.Errorf("config error: exa.retry_backoff_ms cannot be negative")
	}

	// Validate usage config
	if c.Usage.Enabled && strings.TrimSpace(c.Usage.DBPath) == "" {
		return fmt.Errorf("config error: usage.db_path cannot be empty when usage is enabled")
	}

	// Validate log config
	if _, err := logger.ParseLevel(c.Log.Level); err != nil {
		return fmt.Errorf("config error: log.level: %w", err)
	}
	if c.Log.MaxDays < 0 {
		return fmt.Errorf("config error: log.max_days cannot be negative")
	}

	return nil
}

// IsAPIKeyConfigured checks if API key is configured
func (c *Config) IsAPIKeyConfigured() bool {
	return c.Exa.APIKey != ""
}

// String returns string representation of config (hides sensitive info)
func (c *Config) String() string {
	return fmt.Sprintf(`exatool configuration:
  Exa:
    API Key: %s
    Base URL: %s
    Timeout Seconds: %d
    Livecrawl Timeout Seconds: %d
    Max Retries: %d
    Retry Backoff MS: %d
    User Agent: %s
  Usage:
    Enabled: %v
    DB Path: %s
  Log:
    Level: %s
    Max Days: %d
    Console: %v`,
		redactAPIKey(c.Exa.APIKey),
		c.Exa.BaseURL,
		c.Exa.TimeoutSeconds,
		c.Exa.LivecrawlTimeoutSeconds,
		c.Exa.MaxRetries,
		c.Exa.RetryBackoffMS,
		c.Exa.UserAgent,
		c.Usage.Enabled,
		c.Usage.DBPath,
		c.Log.Level,
		c.Log.MaxDays,
		c.Log.Console,
	)
}

func redactAPIKey(value string) string {
	if value == "" {
		return "(not configured)"
	}
	if len(value) > 8 {
		return value[:8] + "..."
	}
	return "***"
}
