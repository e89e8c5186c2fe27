// Package main is the entry point of the integration dashboard server.
//
// main stays minimal: load configuration, build the logger, hand both to
// internal/server. Everything else lives in internal/.
package main

import (
	"flag"
	"log/slog"
	"os"
	"path/filepath"

	"github.com/sakif/integration-dashboard/internal/config"
	"github.com/sakif/integration-dashboard/internal/server"
)

func main() {
	envFile := flag.String("env", ".env", "optional dotenv file loaded into the environment")
	configFile := flag.String("config", "", "optional YAML config file (default $CONFIG_FILE)")
	flag.Parse()

	// === 1. CONFIGURATION ===
	// Defaults, then YAML, then environment. Missing secrets stop the server here.
	cfg, err := config.Load(*envFile, *configFile)
	if err != nil {
		slog.Error("invalid configuration", slog.String("error", err.Error()))
		os.Exit(1)
	}

	// === 2. LOGGING ===
	// Text output to stdout; LOG_LEVEL picks debug, info, warn or error.
	level, _ := cfg.SlogLevel() // validated by Load
	logger := slog.New(slog.NewTextHandler(os.Stdout, &slog.HandlerOptions{Level: level}))
	slog.SetDefault(logger)

	// === 3. DATABASE DIRECTORY ===
	// os.MkdirAll is `mkdir -p`.
	if cfg.DBPath != ":memory:" {
		dbDir := filepath.Dir(cfg.DBPath)
		if err := os.MkdirAll(dbDir, 0o755); err != nil {
			logger.Error("failed to create database directory",
				slog.String("dir", dbDir),
				slog.String("error", err.Error()),
			)
			os.Exit(1)
		}
	}

	// === 4. START ===
	srv, err := server.New(cfg, logger)
	if err != nil {
		logger.Error("failed to create server", slog.String("error", err.Error()))
		os.Exit(1)
	}

	// Start blocks until SIGINT/SIGTERM.
	if err := srv.Start(); err != nil {
		logger.Error("server error", slog.String("error", err.Error()))
		os.Exit(1)
	}
}
