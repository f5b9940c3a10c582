// Package config provides configuration loading and validation for the CLI.
package config

import (
	"encoding/json"
	"fmt"
	"net/url"
	"os"
	"path/filepath"
	"strconv"
	"time"
)

// DefaultAPIBaseURL is used when no service endpoint is configured.
const DefaultAPIBaseURL = "http://localhost:4000"

// DefaultPollIntervalMS is the status poll interval in milliseconds.
const DefaultPollIntervalMS = 1200

// Config represents the CLI configuration that can be loaded from a JSON file.
// All fields are optional; missing values use defaults or must be provided via CLI flags.
type Config struct {
	APIBaseURL     string `json:"api_base_url,omitempty"`     // Run/profile service endpoint
	UserID         string `json:"user_id,omitempty"`          // Authenticated user id
	StateDir       string `json:"state_dir,omitempty"`        // Directory for persisted local state
	Token          string `json:"token,omitempty"`            // Bearer token (literal)
	TokenFile      string `json:"token_file,omitempty"`       // Path to a file holding the bearer token
	PollIntervalMS int    `json:"poll_interval_ms,omitempty"` // Status poll interval in milliseconds
	Verbose        bool   `json:"verbose,omitempty"`          // Print detailed debug information
}

// LoadConfig loads configuration from a JSON file.
// Returns an error if the file cannot be read or parsed.
func LoadConfig(path string) (*Config, error) {
	if path == "" {
		return nil, fmt.Errorf("config path is empty")
	}

	// Resolve path relative to current directory if not absolute
	if !filepath.IsAbs(path) {
		cwd, err := os.Getwd()
		if err != nil {
			return nil, fmt.Errorf("failed to get current directory: %w", err)
		}
		path = filepath.Join(cwd, path)
	}

	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("failed to read config file %s: %w", path, err)
	}

	var cfg Config
	if err := json.Unmarshal(data, &cfg); err != nil {
		return nil, fmt.Errorf("failed to parse config JSON: %w", err)
	}

	return &cfg, nil
}

// FromEnv returns a Config populated from AUTOAPPLY_* environment variables.
func FromEnv() Config {
	cfg := Config{
		APIBaseURL: os.Getenv("AUTOAPPLY_API_BASE_URL"),
		UserID:     os.Getenv("AUTOAPPLY_USER_ID"),
		StateDir:   os.Getenv("AUTOAPPLY_STATE_DIR"),
		Token:      os.Getenv("AUTOAPPLY_TOKEN"),
		TokenFile:  os.Getenv("AUTOAPPLY_TOKEN_FILE"),
	}
	if v := os.Getenv("AUTOAPPLY_POLL_INTERVAL_MS"); v != "" {
		if n, err := strconv.Atoi(v); err == nil {
			cfg.PollIntervalMS = n
		}
	}
	return cfg
}

// Validate checks that the configuration has valid values.
func (c *Config) Validate() error {
	if c.Token != "" && c.TokenFile != "" {
		return fmt.Errorf("config error: 'token' and 'token_file' are mutually exclusive")
	}

	if c.PollIntervalMS < 0 {
		return fmt.Errorf("config error: 'poll_interval_ms' must be non-negative")
	}

	if c.APIBaseURL != "" {
		parsed, err := url.Parse(c.APIBaseURL)
		if err != nil || parsed.Scheme == "" || parsed.Host == "" {
			return fmt.Errorf("config error: 'api_base_url' is not a valid URL: %s", c.APIBaseURL)
		}
	}

	if c.TokenFile != "" {
		if _, err := os.Stat(c.TokenFile); os.IsNotExist(err) {
			return fmt.Errorf("config error: token file not found: %s", c.TokenFile)
		}
	}

	return nil
}

// MergeWithDefaults returns a new Config with empty fields filled from defaults.
// This is used to apply config file values as defaults for CLI flags.
func (c *Config) MergeWithDefaults(defaults Config) Config {
	result := *c

	if result.APIBaseURL == "" {
		result.APIBaseURL = defaults.APIBaseURL
	}
	if result.UserID == "" {
		result.UserID = defaults.UserID
	}
	if result.StateDir == "" {
		result.StateDir = defaults.StateDir
	}
	if result.Token == "" {
		result.Token = defaults.Token
	}
	if result.TokenFile == "" {
		result.TokenFile = defaults.TokenFile
	}
	if result.PollIntervalMS == 0 {
		result.PollIntervalMS = defaults.PollIntervalMS
	}

	// Bool fields: cannot distinguish unset from false, so we don't merge
	// (CLI flags should always win for bools)

	return result
}

// PollInterval returns the configured poll interval as a duration.
func (c *Config) PollInterval() time.Duration {
	ms := c.PollIntervalMS
	if ms <= 0 {
		ms = DefaultPollIntervalMS
	}
	return time.Duration(ms) * time.Millisecond
}

// DefaultStateDir returns the per-user state directory.
func DefaultStateDir() (string, error) {
	home, err := os.UserHomeDir()
	if err != nil {
		return "", fmt.Errorf("failed to resolve home directory: %w", err)
	}
	return filepath.Join(home, ".autoapply"), nil
}
