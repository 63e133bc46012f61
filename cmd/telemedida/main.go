package main

import (
	"context"
	"flag"
	"fmt"
	"log/slog"
	"net/http"
	"os"
	"time"

	_ "github.com/jackc/pgx/v5/stdlib"
	"github.com/joho/godotenv"
	_ "github.com/mattn/go-sqlite3"

	"github.com/bia-energy/telemedida/internal/config"
	"github.com/bia-energy/telemedida/internal/db"
	"github.com/bia-energy/telemedida/internal/server"
	"github.com/bia-energy/telemedida/internal/sheet"
	"github.com/bia-energy/telemedida/internal/syncer"
)

func main() {
	// Parse command-line flags
	configFile := flag.String("config", "", "Path to configuration file (TOML)")
	envFile := flag.String("env-file", ".env", "Path to env file (loaded if present)")
	dateFlag := flag.String("date", "", "Target date YYYY-MM-DD (defaults to today)")
	serve := flag.Bool("serve", false, "Expose the sync trigger over HTTP instead of running once")
	flag.Parse()

	// Load env file before the config reads the environment
	if _, err := os.Stat(*envFile); err == nil {
		if err := godotenv.Load(*envFile); err != nil {
			fmt.Fprintf(os.Stderr, "failed to load env file %s: %v\n", *envFile, err)
			os.Exit(1)
		}
	}

	// Load configuration
	cfg, err := config.LoadConfig(*configFile)
	if err != nil {
		fmt.Fprintf(os.Stderr, "failed to load configuration: %v\n", err)
		os.Exit(1)
	}

	// Validate configuration
	if err := cfg.Validate(); err != nil {
		fmt.Fprintf(os.Stderr, "invalid configuration: %v\n", err)
		os.Exit(1)
	}

	// Initialize structured logger
	logger := newLogger(cfg.Logging)
	slog.SetDefault(logger)

	slog.Info("starting telemedida sheet sync",
		"driver", cfg.Database.Driver,
		"metersight_db", cfg.Database.MetersightDB,
		"app_ops_db", cfg.Database.AppOpsDB,
		"worksheet", cfg.Sheet.WorksheetName)

	targetDate, err := resolveTargetDate(*dateFlag)
	if err != nil {
		slog.Error("invalid -date flag", "error", err)
		os.Exit(1)
	}

	// Open both source databases
	metersight, err := db.OpenWithConfig(cfg.Database, cfg.Database.MetersightDB)
	if err != nil {
		slog.Error("failed to connect to metersight database", "error", err)
		os.Exit(1)
	}
	defer metersight.Close()

	appOps, err := db.OpenWithConfig(cfg.Database, cfg.Database.AppOpsDB)
	if err != nil {
		slog.Error("failed to connect to app_ops database", "error", err)
		os.Exit(1)
	}
	defer appOps.Close()

	ctx := context.Background()

	// Build the worksheet service
	worksheet, err := sheet.NewService(ctx, cfg.Sheet, logger)
	if err != nil {
		slog.Error("failed to build worksheet service", "error", err)
		os.Exit(1)
	}

	sources := db.NewSourceStore(metersight, appOps, cfg.Database.UTCOffsetHours, logger)
	sync := syncer.New(sources, worksheet, logger)

	if *serve {
		runServer(cfg, sync, logger)
		return
	}

	result, err := sync.Run(ctx, targetDate, false)
	if err != nil {
		slog.Error("run aborted", "error", err)
		os.Exit(1)
	}

	slog.Info("run finished",
		"processed", result.Processed,
		"updated", result.UpdatedCount(),
		"inserted", result.InsertedCount(),
		"errors", result.ErrorCount())

	for _, failure := range result.Errors {
		slog.Warn("code failed", "code", failure.Code, "error", failure.Message)
	}
}

// runServer blocks serving the HTTP trigger endpoint.
func runServer(cfg *config.Config, sync *syncer.Syncer, logger *slog.Logger) {
	srv := server.New(sync, logger)
	addr := fmt.Sprintf("%s:%d", cfg.HTTP.Address, cfg.HTTP.Port)

	slog.Info("serving sync trigger", "addr", addr)
	if err := http.ListenAndServe(addr, srv.Routes()); err != nil {
		slog.Error("http server stopped", "error", err)
		os.Exit(1)
	}
}

// resolveTargetDate parses the -date flag, defaulting to today.
func resolveTargetDate(value string) (time.Time, error) {
	if value == "" {
		now := time.Now()
		return time.Date(now.Year(), now.Month(), now.Day(), 0, 0, 0, 0, now.Location()), nil
	}
	return time.Parse("2006-01-02", value)
}

// newLogger builds the process logger from the logging config.
func newLogger(cfg config.LoggingConfig) *slog.Logger {
	var level slog.Level
	switch cfg.Level {
	case "debug":
		level = slog.LevelDebug
	case "warn":
		level = slog.LevelWarn
	case "error":
		level = slog.LevelError
	default:
		level = slog.LevelInfo
	}

	opts := &slog.HandlerOptions{Level: level}
	if cfg.Format == "text" {
		return slog.New(slog.NewTextHandler(os.Stdout, opts))
	}
	return slog.New(slog.NewJSONHandler(os.Stdout, opts))
}
