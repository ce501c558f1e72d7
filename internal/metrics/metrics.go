package metrics

import (
	"net"
	"net/http"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	"github.com/rs/zerolog"
)

var (
	// Collection metrics
	CollectionsTotal = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Name: "licstats_collections_total",
			Help: "Total license status collections by outcome",
		},
		[]string{"status"},
	)

	CollectionDuration = prometheus.NewHistogram(
		prometheus.HistogramOpts{
			Name:    "licstats_collection_duration_seconds",
			Help:    "Time spent running the license status tool",
			Buckets: []float64{.1, .25, .5, 1, 2.5, 5, 10, 30, 60},
		},
	)

	LastSuccessTimestamp = prometheus.NewGauge(
		prometheus.GaugeOpts{
			Name: "licstats_last_success_timestamp_seconds",
			Help: "Unix time of the last successful collection",
		},
	)

	// License metrics, from the most recent snapshot
	LicensesIssued = prometheus.NewGaugeVec(
		prometheus.GaugeOpts{
			Name: "licstats_licenses_issued",
			Help: "Licenses issued per feature",
		},
		[]string{"feature"},
	)

	LicensesInUse = prometheus.NewGaugeVec(
		prometheus.GaugeOpts{
			Name: "licstats_licenses_in_use",
			Help: "Licenses in use per feature",
		},
		[]string{"feature"},
	)

	ActiveUsers = prometheus.NewGauge(
		prometheus.GaugeOpts{
			Name: "licstats_active_users",
			Help: "Distinct users holding at least one license",
		},
	)

	// Snapshot metrics
	SnapshotsPruned = prometheus.NewCounter(
		prometheus.CounterOpts{
			Name: "licstats_snapshots_pruned_total",
			Help: "Snapshots deleted by retention",
		},
	)

	SnapshotReadFailures = prometheus.NewCounter(
		prometheus.CounterOpts{
			Name: "licstats_snapshot_read_failures_total",
			Help: "Snapshots skipped because they could not be read",
		},
	)

	ParseCacheHits = prometheus.NewCounter(
		prometheus.CounterOpts{
			Name: "licstats_parse_cache_hits_total",
			Help: "Parsed snapshot cache hits",
		},
	)

	ParseCacheMisses = prometheus.NewCounter(
		prometheus.CounterOpts{
			Name: "licstats_parse_cache_misses_total",
			Help: "Parsed snapshot cache misses",
		},
	)

	// API metrics
	APIRequestsTotal = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Name: "licstats_api_requests_total",
			Help: "Total API requests",
		},
		[]string{"route", "code"},
	)

	CollectThrottled = prometheus.NewCounter(
		prometheus.CounterOpts{
			Name: "licstats_collect_throttled_total",
			Help: "Manual collection requests rejected by the rate limiter",
		},
	)
)

func init() {
	// Register all metrics
	prometheus.MustRegister(
		CollectionsTotal,
		CollectionDuration,
		LastSuccessTimestamp,
		LicensesIssued,
		LicensesInUse,
		ActiveUsers,
		SnapshotsPruned,
		SnapshotReadFailures,
		ParseCacheHits,
		ParseCacheMisses,
		APIRequestsTotal,
		CollectThrottled,
	)
}

// Server is the metrics HTTP server
type Server struct {
	server   *http.Server
	logger   zerolog.Logger
	listener net.Listener // Optional pre-created listener (for systemd socket activation)
}

// NewServer creates a new metrics server
func NewServer(addr string, logger zerolog.Logger) *Server {
	return &Server{
		server: &http.Server{
			Addr:    addr,
			Handler: Handler(),
		},
		logger: logger.With().Str("component", "metrics").Logger(),
	}
}

// Handler serves /metrics and a plain /health check.
func Handler() http.Handler {
	mux := http.NewServeMux()
	mux.Handle("/metrics", promhttp.Handler())
	mux.HandleFunc("/health", func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusOK)
		_, _ = w.Write([]byte("OK"))
	})
	return mux
}

// SetListener sets a pre-created listener for systemd socket activation
func (s *Server) SetListener(ln net.Listener) {
	s.listener = ln
}

// Start starts the metrics server
func (s *Server) Start() error {
	s.logger.Info().Str("addr", s.server.Addr).Msg("Starting metrics server")
	go func() {
		var err error
		if s.listener != nil {
			s.logger.Debug().Msg("Using systemd socket-activated metrics listener")
			err = s.server.Serve(s.listener)
		} else {
			err = s.server.ListenAndServe()
		}
		if err != nil && err != http.ErrServerClosed {
			s.logger.Error().Err(err).Msg("Metrics server error")
		}
	}()
	return nil
}

// Stop stops the metrics server
func (s *Server) Stop() error {
	s.logger.Info().Msg("Stopping metrics server")
	return s.server.Close()
}
