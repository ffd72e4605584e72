// Package config provides centralized configuration management for the ya-note
// application. It loads configuration from CLI flags and environment variables,
// validates required fields, and provides sensible defaults.
package config

import (
	"encoding/hex"
	"errors"
	"flag"
	"fmt"
	"os"
	"strings"
	"time"
)

// Config holds all application configuration.
type Config struct {
	// Server settings
	ListenAddr   string
	BaseURL      string
	TemplatesDir string

	// Database and sessions
	DatabasePath    string        // Path to the SQLite database file
	DatabaseKey     string        // Optional at-rest encryption key, 64 hex characters (32 bytes)
	SessionDuration time.Duration // How long sessions remain valid
}

// ValidationError represents a configuration validation error with multiple issues.
type ValidationError struct {
	Errors []string
}

func (e *ValidationError) Error() string {
	return fmt.Sprintf("configuration validation failed:\n  - %s", strings.Join(e.Errors, "\n  - "))
}

// ParseFlags parses CLI flags and returns them. Call before LoadConfig.
// This registers and parses the --addr flag.
func ParseFlags() (addr string) {
	flag.StringVar(&addr, "addr", "", "Listen address (default :8080, overrides LISTEN_ADDR env var)")
	flag.Parse()
	return addr
}

// LoadConfig loads configuration from environment variables and CLI flag values.
// The addr flag overrides the LISTEN_ADDR env var if non-empty.
func LoadConfig(addr string) (*Config, error) {
	cfg := &Config{}

	// Server settings
	cfg.ListenAddr = getEnvOrDefault("LISTEN_ADDR", ":8080")
	if addr != "" {
		cfg.ListenAddr = addr
	}
	cfg.BaseURL = strings.TrimSpace(os.Getenv("BASE_URL"))
	if cfg.BaseURL == "" {
		cfg.BaseURL = "http://localhost" + cfg.ListenAddr
	}
	cfg.TemplatesDir = getEnvOrDefault("TEMPLATES_DIR", "./web/templates")

	// Database and sessions
	cfg.DatabasePath = getEnvOrDefault("DATABASE_PATH", "./data/notes.db")
	cfg.DatabaseKey = strings.TrimSpace(os.Getenv("DATABASE_KEY"))
	cfg.SessionDuration = parseDurationOrDefault("SESSION_DURATION", 14*24*time.Hour)

	if err := cfg.Validate(); err != nil {
		return nil, err
	}

	return cfg, nil
}

// Validate checks that all required configuration is present and valid.
func (c *Config) Validate() error {
	var errs []string

	if c.ListenAddr == "" {
		errs = append(errs, "LISTEN_ADDR must not be empty")
	}
	if c.TemplatesDir == "" {
		errs = append(errs, "TEMPLATES_DIR must not be empty")
	}
	if c.DatabasePath == "" {
		errs = append(errs, "DATABASE_PATH must not be empty")
	}

	// DatabaseKey is optional; when set it must be a valid 32-byte hex key.
	if c.DatabaseKey != "" {
		if len(c.DatabaseKey) != 64 {
			errs = append(errs, "DATABASE_KEY must be 64 hex characters (generate with: openssl rand -hex 32)")
		} else if _, err := hex.DecodeString(c.DatabaseKey); err != nil {
			errs = append(errs, "DATABASE_KEY must be valid hex")
		}
	}

	if c.SessionDuration <= 0 {
		errs = append(errs, "SESSION_DURATION must be positive")
	}

	if len(errs) > 0 {
		return &ValidationError{Errors: errs}
	}

	return nil
}

// RequireSecureCookies returns true if secure cookies should be required.
// Returns false for localhost development URLs.
func (c *Config) RequireSecureCookies() bool {
	return !strings.HasPrefix(c.BaseURL, "http://localhost") &&
		!strings.HasPrefix(c.BaseURL, "http://127.0.0.1")
}

// PrintStartupSummary prints a human-readable summary of the configuration to stderr.
func (c *Config) PrintStartupSummary() {
	fmt.Fprintln(os.Stderr, "")
	fmt.Fprintln(os.Stderr, "ya-note server starting...")

	if c.DatabaseKey != "" {
		fmt.Fprintf(os.Stderr, "  Database: %s (encrypted)\n", c.DatabasePath)
	} else {
		fmt.Fprintf(os.Stderr, "  Database: %s\n", c.DatabasePath)
	}
	fmt.Fprintf(os.Stderr, "  Sessions: valid for %s\n", c.SessionDuration)
	fmt.Fprintf(os.Stderr, "  Listen:   %s\n", c.ListenAddr)
	fmt.Fprintf(os.Stderr, "  Base:     %s\n", c.BaseURL)
	fmt.Fprintln(os.Stderr, "")
}

func getEnvOrDefault(key, defaultValue string) string {
	value := strings.TrimSpace(os.Getenv(key))
	if value == "" {
		return defaultValue
	}
	return value
}

func parseDurationOrDefault(key string, defaultValue time.Duration) time.Duration {
	value := os.Getenv(key)
	if value == "" {
		return defaultValue
	}
	parsed, err := time.ParseDuration(value)
	if err != nil {
		return defaultValue
	}
	return parsed
}

// MustLoadConfig loads configuration and panics if validation fails.
// Use this in main() when you want the application to fail fast on bad config.
func MustLoadConfig(addr string) *Config {
	cfg, err := LoadConfig(addr)
	if err != nil {
		var validationErr *ValidationError
		if errors.As(err, &validationErr) {
			panic(fmt.Sprintf("Configuration validation failed:\n  - %s", strings.Join(validationErr.Errors, "\n  - ")))
		}
		panic(fmt.Sprintf("Failed to load configuration: %v", err))
	}
	return cfg
}
