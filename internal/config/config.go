// Package config loads server configuration from the environment.
//
// Precedence, highest first: real environment variables, then a .env file,
// then the defaults below. godotenv.Load never overrides variables that are
// already set, which is what gives the environment priority.
package config

import (
	"errors"
	"fmt"
	"os"
	"strconv"
	"strings"
	"time"

	"github.com/joho/godotenv"
)

// Config holds everything cmd/server needs to build the server.
type Config struct {
	Environment string
	LogLevel    string

	Port   int
	DBPath string

	// FirebaseProjectID turns on verification of Firebase ID tokens.
	FirebaseProjectID string
	// JWTSecret turns on locally signed HS256 tokens (development and tests).
	JWTSecret string

	CORSAllowedOrigins []string

	// RateLimitRPS of 0 disables the per-IP limiter.
	RateLimitRPS   float64
	RateLimitBurst int

	ReadTimeout  time.Duration
	WriteTimeout time.Duration
	IdleTimeout  time.Duration
}

// Load reads envFile (if it exists) and then the environment.
// Pass "" to skip the file.
func Load(envFile string) (*Config, error) {
	if envFile != "" {
		if err := godotenv.Load(envFile); err != nil && !errors.Is(err, os.ErrNotExist) {
			return nil, fmt.Errorf("loading %s: %w", envFile, err)
		}
	}

	cfg := &Config{
		Environment:        getConfigValue("ENV", "development"),
		LogLevel:           strings.ToLower(getConfigValue("LOG_LEVEL", "info")),
		DBPath:             getConfigValue("DB_PATH", "data/journal.db"),
		FirebaseProjectID:  getConfigValue("FIREBASE_PROJECT_ID", ""),
		JWTSecret:          getConfigValue("JWT_SECRET", ""),
		CORSAllowedOrigins: splitList(getConfigValue("CORS_ALLOWED_ORIGINS", "*")),
	}

	var err error
	if cfg.Port, err = getIntConfigValue("PORT", 8080); err != nil {
		return nil, err
	}
	if cfg.RateLimitRPS, err = getFloatConfigValue("RATE_LIMIT_RPS", 0); err != nil {
		return nil, err
	}
	if cfg.RateLimitBurst, err = getIntConfigValue("RATE_LIMIT_BURST", 20); err != nil {
		return nil, err
	}
	if cfg.ReadTimeout, err = getDurationConfigValue("READ_TIMEOUT", 15*time.Second); err != nil {
		return nil, err
	}
	if cfg.WriteTimeout, err = getDurationConfigValue("WRITE_TIMEOUT", 15*time.Second); err != nil {
		return nil, err
	}
	if cfg.IdleTimeout, err = getDurationConfigValue("IDLE_TIMEOUT", 60*time.Second); err != nil {
		return nil, err
	}

	if err := cfg.Validate(); err != nil {
		return nil, fmt.Errorf("config validation failed: %w", err)
	}
	return cfg, nil
}

// Validate checks that the values make sense together.
func (c *Config) Validate() error {
	switch c.Environment {
	case "development", "staging", "production":
	default:
		return fmt.Errorf("invalid environment: %s (must be development, staging, or production)", c.Environment)
	}

	switch c.LogLevel {
	case "debug", "info", "warn", "error":
	default:
		return fmt.Errorf("invalid log level: %s (must be debug, info, warn, or error)", c.LogLevel)
	}

	if c.Port <= 0 || c.Port > 65535 {
		return fmt.Errorf("invalid port: %d", c.Port)
	}
	if c.DBPath == "" {
		return errors.New("DB_PATH cannot be empty")
	}
	if c.FirebaseProjectID == "" && c.JWTSecret == "" {
		return errors.New("one of FIREBASE_PROJECT_ID or JWT_SECRET is required")
	}
	if c.JWTSecret != "" && len(c.JWTSecret) < 32 {
		return errors.New("JWT_SECRET must be at least 32 bytes")
	}
	if c.RateLimitRPS < 0 || c.RateLimitBurst < 0 {
		return errors.New("rate limit values cannot be negative")
	}
	return nil
}

// IsProduction reports whether the server runs with ENV=production.
func (c *Config) IsProduction() bool {
	return c.Environment == "production"
}

// getConfigValue returns the env var or the default when unset or empty.
func getConfigValue(envKey, defaultValue string) string {
	if v := os.Getenv(envKey); v != "" {
		return v
	}
	return defaultValue
}

func getIntConfigValue(envKey string, defaultValue int) (int, error) {
	s := getConfigValue(envKey, "")
	if s == "" {
		return defaultValue, nil
	}
	n, err := strconv.Atoi(s)
	if err != nil {
		return 0, fmt.Errorf("invalid %s %q: %w", envKey, s, err)
	}
	return n, nil
}

func getFloatConfigValue(envKey string, defaultValue float64) (float64, error) {
	s := getConfigValue(envKey, "")
	if s == "" {
		return defaultValue, nil
	}
	f, err := strconv.ParseFloat(s, 64)
	if err != nil {
		return 0, fmt.Errorf("invalid %s %q: %w", envKey, s, err)
	}
	return f, nil
}

func getDurationConfigValue(envKey string, defaultValue time.Duration) (time.Duration, error) {
	s := getConfigValue(envKey, "")
	if s == "" {
		return defaultValue, nil
	}
	d, err := time.ParseDuration(s)
	if err != nil {
		return 0, fmt.Errorf("invalid %s %q: %w", envKey, s, err)
	}
	return d, nil
}

// splitList splits a comma separated value, trimming blanks.
func splitList(s string) []string {
	var out []string
	for _, part := range strings.Split(s, ",") {
		if p := strings.TrimSpace(part); p != "" {
			out = append(out, p)
		}
	}
	return out
}
