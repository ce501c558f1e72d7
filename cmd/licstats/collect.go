package main

import (
	"context"
	"fmt"
	"os"
	"os/signal"
	"time"

	"github.com/fatih/color"
	"github.com/rs/zerolog"
	"github.com/spf13/afero"
	"github.com/spf13/cobra"

	"github.com/wstszx/LicStats/internal/config"
)

var collectCmd = &cobra.Command{
	Use:   "collect",
	Short: "Capture one snapshot and exit",
	Long:  `Run the configured license status command once and store the output as a snapshot.`,
	RunE:  runCollect,
}

func init() {
	rootCmd.AddCommand(collectCmd)
}

func runCollect(cmd *cobra.Command, args []string) error {
	cfg, err := config.Load(configPath)
	if err != nil {
		return fmt.Errorf("failed to load configuration: %w", err)
	}

	// Create a quiet logger for one-shot mode
	logger := zerolog.New(os.Stderr).Level(zerolog.ErrorLevel).With().Timestamp().Logger()

	store, err := openStorage(cfg.Storage)
	if err != nil {
		return fmt.Errorf("failed to initialize storage: %w", err)
	}
	defer store.Close()

	_, coll, err := newCollector(cfg, afero.NewOsFs(), store, logger)
	if err != nil {
		return err
	}

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt)
	defer stop()

	result, err := coll.Collect(ctx)
	if err != nil {
		_, _ = color.New(color.FgRed, color.Bold).Fprintf(os.Stderr, "❌ %v\n", err)
		return err
	}

	_, _ = color.New(color.FgGreen).Fprintf(os.Stdout, "✅ Stored %s (%d features) in %s\n",
		result.Snapshot.Path, result.Features, result.Duration.Round(time.Millisecond))
	return nil
}
