package collector

import (
	"context"
	"errors"
	"fmt"
	"sync"
	"time"

	"github.com/rs/zerolog"

	"github.com/wstszx/LicStats/internal/health"
	"github.com/wstszx/LicStats/internal/license"
	"github.com/wstszx/LicStats/internal/lmstat"
	"github.com/wstszx/LicStats/internal/metrics"
	"github.com/wstszx/LicStats/internal/snapshot"
	"github.com/wstszx/LicStats/internal/stats"
	"github.com/wstszx/LicStats/internal/storage"
)

// Config holds collector configuration
type Config struct {
	// Retention deletes snapshots older than this after each successful
	// collection. Zero keeps everything.
	Retention time.Duration
}

// Result describes one successful collection.
type Result struct {
	Snapshot snapshot.Info `json:"snapshot"`
	Features int           `json:"features"`
	Duration time.Duration `json:"duration_ns"`
}

// Collector obtains a dump from its source and stores it as a snapshot.
// It is the only writer of snapshots and health events; concurrent calls
// to Collect are serialized.
type Collector struct {
	source    Source
	snapshots *snapshot.Store
	store     storage.Store
	config    Config
	logger    zerolog.Logger
	mu        sync.Mutex
}

// New creates a new collector
func New(source Source, snapshots *snapshot.Store, store storage.Store, config Config, logger zerolog.Logger) *Collector {
	return &Collector{
		source:    source,
		snapshots: snapshots,
		store:     store,
		config:    config,
		logger:    logger.With().Str("component", "collector").Logger(),
	}
}

// Source returns the configured source.
func (c *Collector) Source() Source {
	return c.source
}

// Collect runs one collection. The outcome is always recorded as a health
// event; a failure never touches stored snapshots.
func (c *Collector) Collect(ctx context.Context) (Result, error) {
	c.mu.Lock()
	defer c.mu.Unlock()

	at := c.snapshots.Now()
	began := time.Now()

	raw, err := c.source.Read(ctx)
	if err != nil {
		return Result{}, c.fail(ctx, at, time.Since(began), err)
	}

	info, err := c.snapshots.Write(raw, at)
	if err != nil {
		return Result{}, c.fail(ctx, at, time.Since(began), err)
	}
	took := time.Since(began)

	c.record(ctx, health.Success(at, info.Name, took))
	metrics.CollectionsTotal.WithLabelValues(string(health.StatusSuccess)).Inc()
	metrics.CollectionDuration.Observe(took.Seconds())
	metrics.LastSuccessTimestamp.Set(float64(at.Unix()))

	features := lmstat.Parse(string(raw))
	metrics.ObserveSnapshot(license.Snapshot{ID: info.Name, CapturedAt: at, Features: features}, stats.CountUsers(features))

	c.logger.Info().
		Str("snapshot", info.Name).
		Int("features", len(features)).
		Dur("duration", took).
		Msg("License data collected")

	c.prune(at)

	return Result{Snapshot: info, Features: len(features), Duration: took}, nil
}

// fail records a failed collection and returns the wrapped error.
func (c *Collector) fail(ctx context.Context, at time.Time, took time.Duration, err error) error {
	c.record(ctx, health.Failure(at, err, took))
	metrics.CollectionsTotal.WithLabelValues(string(health.StatusError)).Inc()
	metrics.CollectionDuration.Observe(took.Seconds())

	c.logger.Error().Err(err).Str("source", c.source.String()).Msg("Failed to collect license data")
	return fmt.Errorf("failed to collect license data: %w", err)
}

// record stores a health event and the resulting collector state. Storage
// errors are logged; they do not change the outcome of the collection.
func (c *Collector) record(ctx context.Context, rec health.Record) {
	ctx = context.WithoutCancel(ctx)

	if err := c.store.Health().Append(ctx, rec); err != nil {
		c.logger.Warn().Err(err).Msg("Failed to store health record")
	}

	state, err := c.store.State().Get(ctx)
	if err != nil {
		if !errors.Is(err, storage.ErrNotFound) {
			c.logger.Warn().Err(err).Msg("Failed to load collector state")
		}
		state = &storage.CollectorState{}
	}
	if err := c.store.State().Put(ctx, state.Apply(rec)); err != nil {
		c.logger.Warn().Err(err).Msg("Failed to store collector state")
	}
}

func (c *Collector) prune(now time.Time) {
	if c.config.Retention <= 0 {
		return
	}

	cutoff := now.Add(-c.config.Retention)
	removed, err := c.snapshots.Prune(cutoff)
	if removed > 0 {
		metrics.SnapshotsPruned.Add(float64(removed))
		c.logger.Info().
			Int("removed", removed).
			Time("cutoff", cutoff).
			Msg("Old snapshots pruned")
	}
	if err != nil {
		c.logger.Error().Err(err).Msg("Failed to prune old snapshots")
	}
}
