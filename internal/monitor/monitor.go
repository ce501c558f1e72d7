package monitor

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/rs/zerolog"

	"github.com/wstszx/LicStats/internal/aggregate"
	"github.com/wstszx/LicStats/internal/health"
	"github.com/wstszx/LicStats/internal/license"
	"github.com/wstszx/LicStats/internal/snapshot"
	"github.com/wstszx/LicStats/internal/stats"
	"github.com/wstszx/LicStats/internal/storage"
)

// Config holds monitor configuration
type Config struct {
	Interval            time.Duration
	DebugMode           bool
	Source              string
	StatusHealthRecords int
}

// Monitor answers usage queries over the stored snapshots.
type Monitor struct {
	loader *snapshot.Loader
	store  storage.Store
	config Config
	logger zerolog.Logger
}

// New creates a new monitor
func New(loader *snapshot.Loader, store storage.Store, config Config, logger zerolog.Logger) *Monitor {
	if config.StatusHealthRecords <= 0 {
		config.StatusHealthRecords = 10
	}
	return &Monitor{
		loader: loader,
		store:  store,
		config: config,
		logger: logger.With().Str("component", "monitor").Logger(),
	}
}

// Status is the service overview.
type Status struct {
	LastUpdate            *time.Time      `json:"last_update"`
	LastSnapshot          string          `json:"last_snapshot,omitempty"`
	ConsecutiveFailures   int             `json:"consecutive_failures"`
	DebugMode             bool            `json:"debug_mode"`
	Source                string          `json:"source"`
	UpdateIntervalMinutes float64         `json:"update_interval"`
	HealthStatus          []health.Record `json:"health_status"`
}

// Status returns the collector state and the most recent health events.
func (m *Monitor) Status(ctx context.Context) (Status, error) {
	records, err := m.store.Health().List(ctx, m.config.StatusHealthRecords)
	if err != nil {
		return Status{}, err
	}

	status := Status{
		DebugMode:             m.config.DebugMode,
		Source:                m.config.Source,
		UpdateIntervalMinutes: m.config.Interval.Minutes(),
		HealthStatus:          records,
	}

	state, err := m.store.State().Get(ctx)
	switch {
	case errors.Is(err, storage.ErrNotFound):
	case err != nil:
		return Status{}, err
	default:
		if !state.LastUpdate.IsZero() {
			last := state.LastUpdate
			status.LastUpdate = &last
		}
		status.LastSnapshot = state.LastSnapshot
		status.ConsecutiveFailures = state.ConsecutiveFailures
	}
	return status, nil
}

// Health returns every retained health event, oldest first.
func (m *Monitor) Health(ctx context.Context) ([]health.Record, error) {
	return m.store.Health().List(ctx, 0)
}

// Latest returns the most recent snapshot with its raw content.
func (m *Monitor) Latest(ctx context.Context) (snapshot.Document, error) {
	return m.loader.Latest(ctx)
}

// Snapshot returns the named snapshot with its raw content.
func (m *Monitor) Snapshot(ctx context.Context, name string) (snapshot.Document, error) {
	return m.loader.Open(ctx, name)
}

// Logs lists the snapshot files of a window, most recent first.
func (m *Monitor) Logs(ctx context.Context, w snapshot.Window) ([]snapshot.Info, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	return m.loader.Store().List(w)
}

// Span describes the snapshots a view was computed from.
type Span struct {
	Window    snapshot.Window `json:"window"`
	Snapshots int             `json:"snapshot_count"`
	From      time.Time       `json:"from"`
	To        time.Time       `json:"to"`
}

// AggregateView is the merged feature usage of a window.
type AggregateView struct {
	Span
	Features []license.AggregatedFeature `json:"features"`
}

// Aggregate merges the snapshots of a window.
func (m *Monitor) Aggregate(ctx context.Context, w snapshot.Window) (AggregateView, error) {
	snapshots, err := m.load(ctx, w)
	if err != nil {
		return AggregateView{}, err
	}
	return AggregateView{
		Span:     span(w, snapshots),
		Features: aggregate.Aggregate(snapshots, m.config.Interval),
	}, nil
}

// UserView lists per-user usage.
type UserView struct {
	Span
	Users      []stats.UserSummary `json:"users"`
	TotalUsers int                 `json:"total_users"`
}

// Users summarizes usage per user. Latest uses the single most recent
// snapshot; other windows use the deduplicated window users.
func (m *Monitor) Users(ctx context.Context, w snapshot.Window) (UserView, error) {
	snapshots, err := m.load(ctx, w)
	if err != nil {
		return UserView{}, err
	}

	var users []stats.UserSummary
	if w == snapshot.Latest {
		users = stats.UserStatistics(snapshots[len(snapshots)-1].Features)
	} else {
		users = stats.WindowUserStatistics(aggregate.Aggregate(snapshots, m.config.Interval))
	}
	return UserView{Span: span(w, snapshots), Users: users, TotalUsers: len(users)}, nil
}

// ModuleView lists features with usage.
type ModuleView struct {
	Span
	stats.ModuleReport
	TotalModules int `json:"total_active_modules"`
}

// Modules summarizes features in use. Latest ranks by current usage rate;
// other windows rank by peak usage.
func (m *Monitor) Modules(ctx context.Context, w snapshot.Window) (ModuleView, error) {
	snapshots, err := m.load(ctx, w)
	if err != nil {
		return ModuleView{}, err
	}

	var report stats.ModuleReport
	if w == snapshot.Latest {
		report = stats.ModuleStatistics(snapshots[len(snapshots)-1].Features)
	} else {
		report = stats.WindowModuleStatistics(aggregate.Aggregate(snapshots, m.config.Interval))
	}
	return ModuleView{Span: span(w, snapshots), ModuleReport: report, TotalModules: len(report.Modules)}, nil
}

// HistoryView is a usage time series.
type HistoryView struct {
	Span
	Points []aggregate.Point `json:"points"`
}

// History returns one point per snapshot of the window.
func (m *Monitor) History(ctx context.Context, w snapshot.Window) (HistoryView, error) {
	snapshots, err := m.load(ctx, w)
	if err != nil {
		return HistoryView{}, err
	}
	return HistoryView{Span: span(w, snapshots), Points: aggregate.History(snapshots)}, nil
}

func (m *Monitor) load(ctx context.Context, w snapshot.Window) ([]license.Snapshot, error) {
	snapshots, err := m.loader.Load(ctx, w)
	if err != nil {
		if !errors.Is(err, snapshot.ErrNoData) {
			m.logger.Error().Err(err).Str("window", w.String()).Msg("Failed to load snapshots")
		}
		return nil, fmt.Errorf("failed to load %s snapshots: %w", w, err)
	}
	return snapshots, nil
}

// span expects snapshots in capture order.
func span(w snapshot.Window, snapshots []license.Snapshot) Span {
	return Span{
		Window:    w,
		Snapshots: len(snapshots),
		From:      snapshots[0].CapturedAt,
		To:        snapshots[len(snapshots)-1].CapturedAt,
	}
}
