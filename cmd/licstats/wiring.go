package main

import (
	"fmt"
	"os"
	"time"

	"github.com/rs/zerolog"
	"github.com/spf13/afero"

	"github.com/wstszx/LicStats/internal/collector"
	"github.com/wstszx/LicStats/internal/config"
	"github.com/wstszx/LicStats/internal/snapshot"
	"github.com/wstszx/LicStats/internal/storage"
	"github.com/wstszx/LicStats/internal/storage/memory"
	"github.com/wstszx/LicStats/internal/storage/redis"
)

func openStorage(cfg config.StorageConfig) (storage.Store, error) {
	switch cfg.Type {
	case "", "memory":
		return memory.Open(), nil
	case "redis":
		return redis.Open(cfg.Redis)
	default:
		return nil, fmt.Errorf("unsupported storage type: %s", cfg.Type)
	}
}

// newSource picks the debug file when configured, otherwise the status command.
func newSource(cfg config.CollectorConfig, fs afero.Fs) collector.Source {
	if cfg.DebugFile != "" {
		return collector.FileSource{Fs: fs, Path: cfg.DebugFile}
	}
	return collector.CommandSource{
		Command: cfg.Command,
		Args:    cfg.Args,
		Timeout: parseDuration(cfg.Timeout, 60*time.Second),
	}
}

// newCollector builds the snapshot store and the collector writing to it.
func newCollector(cfg *config.Config, fs afero.Fs, store storage.Store, logger zerolog.Logger) (*snapshot.Store, *collector.Collector, error) {
	snapshots, err := snapshot.NewStore(fs, cfg.Snapshots.Dir)
	if err != nil {
		return nil, nil, fmt.Errorf("failed to open snapshot store: %w", err)
	}

	coll := collector.New(
		newSource(cfg.Collector, fs),
		snapshots,
		store,
		collector.Config{Retention: time.Duration(cfg.Collector.RetentionDays) * 24 * time.Hour},
		logger,
	)
	return snapshots, coll, nil
}

// setupLogger configures the logger based on configuration
func setupLogger(cfg config.LoggingConfig) zerolog.Logger {
	// Set log level
	level := zerolog.InfoLevel
	switch cfg.Level {
	case "debug":
		level = zerolog.DebugLevel
	case "info":
		level = zerolog.InfoLevel
	case "warn":
		level = zerolog.WarnLevel
	case "error":
		level = zerolog.ErrorLevel
	}

	zerolog.SetGlobalLevel(level)

	// Set output format
	if cfg.Format == "text" {
		return zerolog.New(zerolog.ConsoleWriter{Out: os.Stdout}).With().Timestamp().Logger()
	}

	// Default to JSON
	return zerolog.New(os.Stdout).With().Timestamp().Logger()
}

// parseDuration parses a duration string with a fallback
func parseDuration(s string, fallback time.Duration) time.Duration {
	d, err := time.ParseDuration(s)
	if err != nil {
		return fallback
	}
	return d
}
