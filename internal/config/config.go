// Package config handles configuration for querychat.
package config

import (
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"
	"sort"
	"strconv"
	"strings"
	"time"

	"github.com/diogo/querychat/internal/models"
)

// Environment variables that override the config file
const (
	EnvBaseURL = "QUERYCHAT_URL"
	EnvTimeout = "QUERYCHAT_TIMEOUT"
)

// MarkdownConfig configures markdown rendering of replies
type MarkdownConfig struct {
	// Enabled renders replies through glamour. Off by default: replies are shown verbatim.
	Enabled bool   `json:"enabled"`
	Style   string `json:"style"` // "dark", "light", "notty", or path to JSON theme
	Emoji   bool   `json:"emoji"`
}

// Config represents the user configuration
type Config struct {
	// BaseURL is the backend root; queries go to BaseURL + "/query".
	BaseURL string `json:"base_url"`
	// TimeoutSeconds bounds each query. 0 waits indefinitely.
	TimeoutSeconds int `json:"timeout_seconds"`
	// Verbose enables request logging to LogFile.
	Verbose         bool           `json:"verbose"`
	LogLevel        string         `json:"log_level,omitempty"`
	LogFile         string         `json:"log_file,omitempty"`
	CopyToClipboard bool           `json:"copy_to_clipboard"`
	TUITheme        string         `json:"tui_theme,omitempty"`
	Markdown        MarkdownConfig `json:"markdown"`
}

// DefaultMarkdownConfig returns the default markdown configuration
func DefaultMarkdownConfig() MarkdownConfig {
	return MarkdownConfig{
		Enabled: false,
		Style:   "dark",
		Emoji:   true,
	}
}

// DefaultConfig returns the default configuration
func DefaultConfig() Config {
	return Config{
		BaseURL:         models.DefaultBaseURL,
		TimeoutSeconds:  0,
		Verbose:         false,
		LogLevel:        "info",
		CopyToClipboard: false,
		TUITheme:        "tokyonight",
		Markdown:        DefaultMarkdownConfig(),
	}
}

// Timeout returns TimeoutSeconds as a duration
func (c Config) Timeout() time.Duration {
	if c.TimeoutSeconds <= 0 {
		return 0
	}
	return time.Duration(c.TimeoutSeconds) * time.Second
}

// ResolveLogFile returns the log file to use, or "" when logging is off.
// Verbose without an explicit file logs to querychat.log in the config dir.
func (c Config) ResolveLogFile() string {
	if c.LogFile != "" {
		return c.LogFile
	}
	if !c.Verbose {
		return ""
	}
	dir, err := GetConfigDir()
	if err != nil {
		return ""
	}
	return filepath.Join(dir, "querychat.log")
}

// GetConfigDir returns the configuration directory path
func GetConfigDir() (string, error) {
	home, err := os.UserHomeDir()
	if err != nil {
		return "", fmt.Errorf("failed to get home directory: %w", err)
	}

	return filepath.Join(home, ".querychat"), nil
}

// EnsureConfigDir creates the configuration directory if it doesn't exist
func EnsureConfigDir() (string, error) {
	configDir, err := GetConfigDir()
	if err != nil {
		return "", err
	}

	if err := os.MkdirAll(configDir, 0o700); err != nil {
		return "", fmt.Errorf("failed to create config directory: %w", err)
	}

	return configDir, nil
}

// GetConfigPath returns the path to the config file
func GetConfigPath() (string, error) {
	configDir, err := GetConfigDir()
	if err != nil {
		return "", err
	}
	return filepath.Join(configDir, "config.json"), nil
}

// LoadConfig loads the configuration from disk and applies environment overrides
func LoadConfig() (Config, error) {
	cfg, err := LoadFile()
	if err != nil {
		return cfg, err
	}

	if err := applyEnv(&cfg); err != nil {
		return cfg, err
	}

	return cfg, nil
}

// LoadFile loads the configuration from disk without environment overrides
func LoadFile() (Config, error) {
	cfg := DefaultConfig()

	configPath, err := GetConfigPath()
	if err != nil {
		return cfg, err
	}

	data, err := os.ReadFile(configPath)
	switch {
	case err == nil:
		if err := json.Unmarshal(data, &cfg); err != nil {
			return DefaultConfig(), fmt.Errorf("failed to parse config file: %w", err)
		}
	case os.IsNotExist(err):
		// Use defaults if config doesn't exist
	default:
		return cfg, fmt.Errorf("failed to read config file: %w", err)
	}

	return cfg, nil
}

// applyEnv overrides cfg from QUERYCHAT_* environment variables
func applyEnv(cfg *Config) error {
	if v := os.Getenv(EnvBaseURL); v != "" {
		cfg.BaseURL = v
	}
	if v := os.Getenv(EnvTimeout); v != "" {
		secs, err := parseTimeout(v)
		if err != nil {
			return fmt.Errorf("invalid %s: %w", EnvTimeout, err)
		}
		cfg.TimeoutSeconds = secs
	}
	return nil
}

// parseTimeout accepts whole seconds ("30") or a Go duration ("1m30s").
// Durations round to the nearest second, but a positive duration never
// becomes 0, which would mean no timeout at all.
func parseTimeout(v string) (int, error) {
	if secs, err := strconv.Atoi(v); err == nil {
		if secs < 0 {
			return 0, fmt.Errorf("timeout cannot be negative")
		}
		return secs, nil
	}
	d, err := time.ParseDuration(v)
	if err != nil {
		return 0, err
	}
	if d < 0 {
		return 0, fmt.Errorf("timeout cannot be negative")
	}
	secs := int(d.Round(time.Second) / time.Second)
	if d > 0 && secs == 0 {
		secs = 1
	}
	return secs, nil
}

// SaveConfig saves the configuration to disk
func SaveConfig(cfg Config) error {
	configDir, err := EnsureConfigDir()
	if err != nil {
		return err
	}

	configPath := filepath.Join(configDir, "config.json")

	data, err := json.MarshalIndent(cfg, "", "  ")
	if err != nil {
		return fmt.Errorf("failed to marshal config: %w", err)
	}

	if err := os.WriteFile(configPath, data, 0o600); err != nil {
		return fmt.Errorf("failed to write config file: %w", err)
	}

	return nil
}

// setters maps config keys to functions that parse and assign a value
var setters = map[string]func(cfg *Config, value string) error{
	"base_url": func(cfg *Config, v string) error {
		v = strings.TrimSpace(v)
		if !strings.HasPrefix(v, "http://") && !strings.HasPrefix(v, "https://") {
			return fmt.Errorf("base_url must start with http:// or https://")
		}
		cfg.BaseURL = v
		return nil
	},
	"timeout_seconds": func(cfg *Config, v string) error {
		secs, err := parseTimeout(v)
		if err != nil {
			return err
		}
		cfg.TimeoutSeconds = secs
		return nil
	},
	"verbose":           boolSetter(func(cfg *Config, b bool) { cfg.Verbose = b }),
	"copy_to_clipboard": boolSetter(func(cfg *Config, b bool) { cfg.CopyToClipboard = b }),
	"markdown.enabled":  boolSetter(func(cfg *Config, b bool) { cfg.Markdown.Enabled = b }),
	"markdown.emoji":    boolSetter(func(cfg *Config, b bool) { cfg.Markdown.Emoji = b }),
	"markdown.style": func(cfg *Config, v string) error {
		cfg.Markdown.Style = v
		return nil
	},
	"log_level": func(cfg *Config, v string) error {
		switch strings.ToLower(v) {
		case "trace", "debug", "info", "warn", "warning", "error":
			cfg.LogLevel = strings.ToLower(v)
			return nil
		}
		return fmt.Errorf("unknown log level %q", v)
	},
	"log_file": func(cfg *Config, v string) error {
		cfg.LogFile = v
		return nil
	},
	"tui_theme": func(cfg *Config, v string) error {
		cfg.TUITheme = v
		return nil
	},
}

func boolSetter(assign func(cfg *Config, b bool)) func(cfg *Config, value string) error {
	return func(cfg *Config, v string) error {
		b, err := strconv.ParseBool(v)
		if err != nil {
			return fmt.Errorf("expected true or false, got %q", v)
		}
		assign(cfg, b)
		return nil
	}
}

// SetValue parses value and assigns it to the field named by key
func SetValue(cfg *Config, key, value string) error {
	set, ok := setters[key]
	if !ok {
		return fmt.Errorf("unknown config key %q (available: %s)", key, strings.Join(Keys(), ", "))
	}
	if err := set(cfg, value); err != nil {
		return fmt.Errorf("invalid value for %s: %w", key, err)
	}
	return nil
}

// Keys returns the settable config keys, sorted
func Keys() []string {
	keys := make([]string, 0, len(setters))
	for k := range setters {
		keys = append(keys, k)
	}
	sort.Strings(keys)
	return keys
}
