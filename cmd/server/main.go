// Command server runs the drink journal API.
//
// Configuration comes from the environment, optionally seeded from a .env
// file (see internal/config). At least one token verifier must be set up:
// FIREBASE_PROJECT_ID for real sign-ins, JWT_SECRET for locally minted
// development tokens (cmd/devtoken).
package main

import (
	"flag"
	"log/slog"
	"os"
	"path/filepath"

	"github.com/sakif/drink-journal/internal/auth"
	"github.com/sakif/drink-journal/internal/config"
	"github.com/sakif/drink-journal/internal/logger"
	"github.com/sakif/drink-journal/internal/server"
)

func main() {
	envFile := flag.String("env-file", ".env", "dotenv file to load before reading the environment (empty to skip)")
	flag.Parse()

	cfg, err := config.Load(*envFile)
	if err != nil {
		slog.Error("failed to load config", slog.String("error", err.Error()))
		os.Exit(1)
	}

	log := logger.New(logger.Config{
		Environment: cfg.Environment,
		Level:       logger.ParseLevel(cfg.LogLevel),
		AddSource:   !cfg.IsProduction(),
	})

	verifier, err := buildVerifier(cfg, log)
	if err != nil {
		log.Error("failed to set up authentication", slog.String("error", err.Error()))
		os.Exit(1)
	}

	if cfg.DBPath != ":memory:" {
		dbDir := filepath.Dir(cfg.DBPath)
		if err := os.MkdirAll(dbDir, 0o755); err != nil {
			log.Error("failed to create database directory",
				slog.String("dir", dbDir),
				slog.String("error", err.Error()),
			)
			os.Exit(1)
		}
	}

	srv, err := server.New(server.Config{
		Port:               cfg.Port,
		DBPath:             cfg.DBPath,
		CORSAllowedOrigins: cfg.CORSAllowedOrigins,
		RateLimitRPS:       cfg.RateLimitRPS,
		RateLimitBurst:     cfg.RateLimitBurst,
		ReadTimeout:        cfg.ReadTimeout,
		WriteTimeout:       cfg.WriteTimeout,
		IdleTimeout:        cfg.IdleTimeout,
	}, verifier, log)
	if err != nil {
		log.Error("failed to create server", slog.String("error", err.Error()))
		os.Exit(1)
	}

	// Start blocks until SIGINT or SIGTERM.
	if err := srv.Start(); err != nil {
		log.Error("server error", slog.String("error", err.Error()))
		os.Exit(1)
	}
}

// buildVerifier chains every configured token verifier. Firebase goes first
// because it carries production traffic.
func buildVerifier(cfg *config.Config, log *slog.Logger) (auth.Verifier, error) {
	var chain auth.ChainVerifier

	if cfg.FirebaseProjectID != "" {
		fb, err := auth.NewFirebaseVerifier(cfg.FirebaseProjectID)
		if err != nil {
			return nil, err
		}
		chain = append(chain, fb)
		log.Info("firebase token verification enabled", slog.String("project", cfg.FirebaseProjectID))
	}

	if cfg.JWTSecret != "" {
		tokens, err := auth.NewTokenService(cfg.JWTSecret)
		if err != nil {
			return nil, err
		}
		chain = append(chain, tokens)
		if cfg.IsProduction() {
			log.Warn("locally signed tokens are accepted in production")
		} else {
			log.Info("local token verification enabled")
		}
	}

	return chain, nil
}
