package main

import (
	"fmt"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/rs/zerolog/log"
	"github.com/spf13/afero"
	"github.com/spf13/cobra"

	"github.com/wstszx/LicStats/internal/api"
	"github.com/wstszx/LicStats/internal/collector"
	"github.com/wstszx/LicStats/internal/config"
	"github.com/wstszx/LicStats/internal/metrics"
	"github.com/wstszx/LicStats/internal/monitor"
	"github.com/wstszx/LicStats/internal/snapshot"
	"github.com/wstszx/LicStats/internal/systemd"
)

var serverCmd = &cobra.Command{
	Use:   "server",
	Short: "Start LicStats server",
	Long:  `Start the collection scheduler, the JSON API and the metrics endpoint.`,
	RunE:  runServer,
}

func init() {
	rootCmd.AddCommand(serverCmd)
}

func runServer(cmd *cobra.Command, args []string) error {
	// Load configuration
	cfg, err := config.Load(configPath)
	if err != nil {
		return fmt.Errorf("failed to load configuration: %w", err)
	}

	// Setup logger
	logger := setupLogger(cfg.Logging)
	log.Logger = logger

	logger.Info().
		Str("version", version).
		Str("config", configPath).
		Msg("Starting LicStats")

	// Check for systemd socket activation
	sdListeners, err := systemd.GetListeners()
	if err != nil {
		return fmt.Errorf("failed to get systemd listeners: %w", err)
	}
	if sdListeners.Activated {
		logger.Info().Msg("Running with systemd socket activation")
	}

	// Initialize storage
	store, err := openStorage(cfg.Storage)
	if err != nil {
		return fmt.Errorf("failed to initialize storage: %w", err)
	}
	defer func() {
		if err := store.Close(); err != nil {
			logger.Error().Err(err).Msg("Failed to close storage")
		}
	}()

	logger.Info().Str("type", cfg.Storage.Type).Msg("Storage initialized")

	// Initialize snapshot store and collector
	fs := afero.NewOsFs()
	snapshots, coll, err := newCollector(cfg, fs, store, logger)
	if err != nil {
		return err
	}

	loader, err := snapshot.NewLoader(snapshots, nil, snapshot.LoaderConfig{CacheSize: cfg.Snapshots.CacheSize}, logger)
	if err != nil {
		return fmt.Errorf("failed to initialize snapshot loader: %w", err)
	}

	logger.Info().
		Str("dir", snapshots.Dir()).
		Str("source", coll.Source().String()).
		Msg("Snapshot store initialized")

	interval := parseDuration(cfg.Collector.Interval, time.Minute)
	scheduler := collector.NewScheduler(coll, interval, cfg.Collector.RunOnStart, logger)
	scheduler.Start()

	// Initialize API Server
	mon := monitor.New(loader, store, monitor.Config{
		Interval:            interval,
		DebugMode:           cfg.Collector.DebugFile != "",
		Source:              coll.Source().String(),
		StatusHealthRecords: cfg.API.StatusHealthRecords,
	}, logger)

	apiConfig := api.Config{
		ListenAddr:     fmt.Sprintf("%s:%d", cfg.Server.BindAddress, cfg.Server.APIPort),
		CollectRate:    cfg.API.CollectRate,
		CollectBurst:   cfg.API.CollectBurst,
		AllowedOrigins: cfg.API.AllowedOrigins,
	}
	if cfg.Server.FrontendDir != "" {
		apiConfig.Frontend = os.DirFS(cfg.Server.FrontendDir)
	}

	apiServer := api.NewServer(apiConfig, mon, coll, logger)

	// Use systemd socket-activated listener if available
	if sdListeners.Activated && sdListeners.API != nil {
		apiServer.SetListener(sdListeners.API)
	}

	if err := apiServer.Start(); err != nil {
		return fmt.Errorf("failed to start API Server: %w", err)
	}

	// Initialize Metrics Server
	metricsAddr := fmt.Sprintf("%s:%d", cfg.Server.BindAddress, cfg.Server.MetricsPort)
	metricsServer := metrics.NewServer(metricsAddr, logger)

	// Use systemd socket-activated listener if available
	if sdListeners.Activated && sdListeners.Metrics != nil {
		metricsServer.SetListener(sdListeners.Metrics)
	}

	if err := metricsServer.Start(); err != nil {
		return fmt.Errorf("failed to start Metrics Server: %w", err)
	}

	// Log startup complete
	logger.Info().Msg("LicStats startup complete")
	logger.Info().Msgf("API: http://%s", apiConfig.ListenAddr)
	logger.Info().Msgf("Metrics: http://%s/metrics", metricsAddr)

	// Notify systemd that we're ready to serve requests
	if err := systemd.NotifyReady(); err != nil {
		logger.Warn().Err(err).Msg("Failed to send systemd ready notification")
	} else {
		logger.Debug().Msg("Sent systemd ready notification")
	}

	stopWatchdog := startWatchdog()

	// Wait for shutdown signal
	sigChan := make(chan os.Signal, 1)
	signal.Notify(sigChan, os.Interrupt, syscall.SIGTERM)
	<-sigChan

	logger.Info().Msg("Shutdown signal received, gracefully stopping...")

	// Notify systemd that we're stopping
	if err := systemd.NotifyStopping(); err != nil {
		logger.Warn().Err(err).Msg("Failed to send systemd stopping notification")
	}
	close(stopWatchdog)

	// Stop servers
	if err := apiServer.Stop(); err != nil {
		logger.Error().Err(err).Msg("Error stopping API Server")
	}

	scheduler.Stop()

	if err := metricsServer.Stop(); err != nil {
		logger.Error().Err(err).Msg("Error stopping Metrics Server")
	}

	logger.Info().Msg("LicStats stopped")

	return nil
}

// startWatchdog pings the systemd watchdog until the returned channel is closed.
func startWatchdog() chan struct{} {
	stop := make(chan struct{})
	interval := systemd.WatchdogInterval()
	if interval <= 0 {
		return stop
	}

	go func() {
		ticker := time.NewTicker(interval)
		defer ticker.Stop()
		for {
			select {
			case <-ticker.C:
				if err := systemd.NotifyWatchdog(); err != nil {
					log.Warn().Err(err).Msg("Failed to send systemd watchdog notification")
				}
			case <-stop:
				return
			}
		}
	}()
	return stop
}
