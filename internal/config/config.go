// Package config resolves runtime settings from environment variables,
// falling back to an optional YAML config file on disk. Environment
// variables always win, matching the precedence rule a shell operator
// expects from any CLI tool.
package config

import (
	"fmt"
	"os"
	"path/filepath"
	"strconv"
	"strings"

	"gopkg.in/yaml.v3"
)

// FileConfig is the on-disk representation of .enhancedterm.yaml.
type FileConfig struct {
	Path   string
	Values map[string]string
}

// DefaultConfigPath returns ~/.enhancedterm.yaml.
func DefaultConfigPath() (string, error) {
	homeDir, err := os.UserHomeDir()
	if err != nil {
		return "", fmt.Errorf("resolve home directory failed: %w", err)
	}
	return filepath.Join(homeDir, ".enhancedterm.yaml"), nil
}

// Load reads path (or DefaultConfigPath when path is empty) as YAML. A
// missing file is not an error: it resolves to an empty FileConfig so that
// every setting falls through to its built-in default.
func Load(path string) (FileConfig, error) {
	configPath := strings.TrimSpace(path)
	if configPath == "" {
		resolvedPath, err := DefaultConfigPath()
		if err != nil {
			return FileConfig{}, err
		}
		configPath = resolvedPath
	}

	raw, err := os.ReadFile(configPath)
	if err != nil {
		if os.IsNotExist(err) {
			return FileConfig{Path: configPath, Values: map[string]string{}}, nil
		}
		return FileConfig{}, fmt.Errorf("open config failed: %w", err)
	}

	values := map[string]string{}
	if err := yaml.Unmarshal(raw, &values); err != nil {
		return FileConfig{}, fmt.Errorf("parse config failed: %w", err)
	}
	return FileConfig{Path: configPath, Values: values}, nil
}

// Save writes config back to its Path as YAML with sorted keys.
func Save(config FileConfig) error {
	if strings.TrimSpace(config.Path) == "" {
		return fmt.Errorf("config path is required")
	}
	if err := os.MkdirAll(filepath.Dir(config.Path), 0o700); err != nil {
		return fmt.Errorf("create config directory failed: %w", err)
	}
	content, err := yaml.Marshal(config.Values)
	if err != nil {
		return fmt.Errorf("marshal config failed: %w", err)
	}
	if err := os.WriteFile(config.Path, content, 0o600); err != nil {
		return fmt.Errorf("write config failed: %w", err)
	}
	return nil
}

// ResolveString returns the environment variable named key if set and
// non-blank, else defaults[key], else "".
func ResolveString(key string, defaults map[string]string) string {
	if value := strings.TrimSpace(os.Getenv(key)); value != "" {
		return value
	}
	if defaults == nil {
		return ""
	}
	return strings.TrimSpace(defaults[key])
}

// ResolveBool treats "1", "true", "yes", "on" (case-insensitive) as true;
// anything else, including an unset value, resolves to false.
func ResolveBool(key string, defaults map[string]string) bool {
	raw := ResolveString(key, defaults)
	switch strings.ToLower(strings.TrimSpace(raw)) {
	case "1", "true", "yes", "on":
		return true
	default:
		return false
	}
}

// ResolveInt parses the resolved string as an integer, falling back to
// fallback when unset, blank, or unparsable.
func ResolveInt(key string, defaults map[string]string, fallback int) int {
	raw := ResolveString(key, defaults)
	if raw == "" {
		return fallback
	}
	parsed, err := strconv.Atoi(raw)
	if err != nil {
		return fallback
	}
	return parsed
}
