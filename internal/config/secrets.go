package config

import (
	"bufio"
	"fmt"
	"os"
	"path/filepath"
	"strconv"
	"strings"
)

// Secrets sensitive configuration loaded from .secrets file
type Secrets struct {
	values map[string]string
}

// NewSecrets creates a new Secrets instance
func NewSecrets() *Secrets {
	return &Secrets{
		values: make(map[string]string),
	}
}

// SecretsPath returns the secrets file path
func SecretsPath() (string, error) {
	dir, err := ConfigDir()
	if err != nil {
		return "", err
	}
	return filepath.Join(dir, ".secrets"), nil
}

// LoadSecrets loads secrets from the .secrets file in the config directory.
// A missing file yields empty secrets.
func LoadSecrets() (*Secrets, error) {
	secretsPath, err := SecretsPath()
	if err != nil {
		return NewSecrets(), nil
	}
	return LoadSecretsFrom(secretsPath)
}

// LoadSecretsFrom parses a dotenv-style file: KEY=value lines, optional
// "export " prefixes, quoted values and # comments.
func LoadSecretsFrom(path string) (*Secrets, error) {
	secrets := NewSecrets()

	file, err := os.Open(path)
	if os.IsNotExist(err) {
		return secrets, nil
	}
	if err != nil {
		return secrets, fmt.Errorf("failed to open secrets file: %w", err)
	}
	defer file.Close()

	scanner := bufio.NewScanner(file)
	lineNo := 0
	for scanner.Scan() {
		lineNo++
		line := strings.TrimSpace(scanner.Text())

		// Skip empty lines and comments
		if line == "" || strings.HasPrefix(line, "#") {
			continue
		}
		line = strings.TrimPrefix(line, "export ")

		key, value, ok := strings.Cut(line, "=")
		if !ok {
			return secrets, fmt.Errorf("secrets file line %d: expected KEY=value", lineNo)
		}
		key = strings.TrimSpace(key)
		value = strings.TrimSpace(value)
		if len(value) >= 2 && (value[0] == '"' || value[0] == '\'') && value[len(value)-1] == value[0] {
			if value[0] == '"' {
				if unquoted, err := strconv.Unquote(value); err == nil {
					value = unquoted
				}
			} else {
				value = value[1 : len(value)-1]
			}
		}
		secrets.values[key] = value
	}

	return secrets, scanner.Err()
}

// Get returns the value for a key
func (s *Secrets) Get(key string) string {
	if s == nil || s.values == nil {
		return ""
	}
	return s.values[key]
}

// GetOrDefault returns the value for a key, or the default value if not found
func (s *Secrets) GetOrDefault(key, defaultValue string) string {
	if s == nil || s.values == nil {
		return defaultValue
	}
	if value, ok := s.values[key]; ok && value != "" {
		return value
	}
	return defaultValue
}

// Has checks if a key exists
func (s *Secrets) Has(key string) bool {
	if s == nil || s.values == nil {
		return false
	}
	_, ok := s.values[key]
	return ok
}

// GetExaAPIKey returns the Exa API key from secrets
func (s *Secrets) GetExaAPIKey() string {
	return strings.TrimSpace(s.Get(APIKeyEnv))
}
