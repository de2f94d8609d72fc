package config

import (
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

const testSecret = "0123456789abcdef0123456789abcdef"

func validConfig() *Config {
	return &Config{
		Environment: "development",
		LogLevel:    "info",
		Port:        8080,
		DBPath:      "data/journal.db",
		JWTSecret:   testSecret,
	}
}

// clearEnv blanks every variable Load reads so the host environment cannot
// leak into a test. t.Setenv restores the originals afterwards.
func clearEnv(t *testing.T) {
	t.Helper()
	for _, k := range []string{
		"ENV", "LOG_LEVEL", "PORT", "DB_PATH", "FIREBASE_PROJECT_ID", "JWT_SECRET",
		"CORS_ALLOWED_ORIGINS", "RATE_LIMIT_RPS", "RATE_LIMIT_BURST",
		"READ_TIMEOUT", "WRITE_TIMEOUT", "IDLE_TIMEOUT",
	} {
		t.Setenv(k, "")
	}
}

func TestValidate_ValidConfig(t *testing.T) {
	assert.NoError(t, validConfig().Validate())
}

func TestValidate(t *testing.T) {
	tests := []struct {
		name   string
		mutate func(c *Config)
	}{
		{"unknown env", func(c *Config) { c.Environment = "test" }},
		{"env is case sensitive", func(c *Config) { c.Environment = "PRODUCTION" }},
		{"unknown log level", func(c *Config) { c.LogLevel = "verbose" }},
		{"port out of range", func(c *Config) { c.Port = 70000 }},
		{"empty db path", func(c *Config) { c.DBPath = "" }},
		{"no auth configured", func(c *Config) { c.JWTSecret = "" }},
		{"short secret", func(c *Config) { c.JWTSecret = "short" }},
		{"negative burst", func(c *Config) { c.RateLimitBurst = -1 }},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			cfg := validConfig()
			tt.mutate(cfg)
			assert.Error(t, cfg.Validate())
		})
	}
}

func TestValidate_FirebaseOnly(t *testing.T) {
	cfg := validConfig()
	cfg.JWTSecret = ""
	cfg.FirebaseProjectID = "drink-journal"
	assert.NoError(t, cfg.Validate())
}

func TestLoad_Defaults(t *testing.T) {
	clearEnv(t)
	t.Setenv("JWT_SECRET", testSecret)

	cfg, err := Load("")
	require.NoError(t, err)

	assert.Equal(t, "development", cfg.Environment)
	assert.Equal(t, "info", cfg.LogLevel)
	assert.Equal(t, 8080, cfg.Port)
	assert.Equal(t, "data/journal.db", cfg.DBPath)
	assert.Equal(t, []string{"*"}, cfg.CORSAllowedOrigins)
	assert.Equal(t, 0.0, cfg.RateLimitRPS)
	assert.Equal(t, 15*time.Second, cfg.ReadTimeout)
	assert.Equal(t, 60*time.Second, cfg.IdleTimeout)
	assert.False(t, cfg.IsProduction())
}

func TestLoad_FromEnv(t *testing.T) {
	clearEnv(t)
	t.Setenv("ENV", "production")
	t.Setenv("LOG_LEVEL", "WARN")
	t.Setenv("PORT", "9090")
	t.Setenv("FIREBASE_PROJECT_ID", "drink-journal")
	t.Setenv("CORS_ALLOWED_ORIGINS", "https://a.example, https://b.example ,")
	t.Setenv("RATE_LIMIT_RPS", "2.5")
	t.Setenv("WRITE_TIMEOUT", "30s")

	cfg, err := Load("")
	require.NoError(t, err)

	assert.True(t, cfg.IsProduction())
	assert.Equal(t, "warn", cfg.LogLevel)
	assert.Equal(t, 9090, cfg.Port)
	assert.Equal(t, []string{"https://a.example", "https://b.example"}, cfg.CORSAllowedOrigins)
	assert.Equal(t, 2.5, cfg.RateLimitRPS)
	assert.Equal(t, 30*time.Second, cfg.WriteTimeout)
}

func TestLoad_InvalidValues(t *testing.T) {
	tests := []struct {
		key   string
		value string
	}{
		{"PORT", "eighty"},
		{"RATE_LIMIT_RPS", "fast"},
		{"READ_TIMEOUT", "soon"},
	}

	for _, tt := range tests {
		t.Run(tt.key, func(t *testing.T) {
			clearEnv(t)
			t.Setenv("JWT_SECRET", testSecret)
			t.Setenv(tt.key, tt.value)

			_, err := Load("")
			assert.Error(t, err)
		})
	}
}

func TestLoad_EnvFile(t *testing.T) {
	clearEnv(t)
	// godotenv only fills variables that are unset, so drop the blanks
	// clearEnv put in place for the keys the file provides.
	os.Unsetenv("DB_PATH")
	os.Unsetenv("JWT_SECRET")
	t.Setenv("PORT", "7000")

	path := filepath.Join(t.TempDir(), ".env")
	content := "DB_PATH=/tmp/from-file.db\nJWT_SECRET=" + testSecret + "\nPORT=1234\n"
	require.NoError(t, os.WriteFile(path, []byte(content), 0o600))

	cfg, err := Load(path)
	require.NoError(t, err)

	assert.Equal(t, "/tmp/from-file.db", cfg.DBPath)
	// The real environment wins over the file.
	assert.Equal(t, 7000, cfg.Port)

	// Values Load copied into the process env must not leak into later tests.
	t.Cleanup(func() {
		os.Unsetenv("DB_PATH")
		os.Unsetenv("JWT_SECRET")
	})
}

func TestLoad_MissingEnvFileIsIgnored(t *testing.T) {
	clearEnv(t)
	t.Setenv("JWT_SECRET", testSecret)

	_, err := Load(filepath.Join(t.TempDir(), "does-not-exist.env"))
	assert.NoError(t, err)
}
