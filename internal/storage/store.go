package storage

import (
	"context"
	"errors"
	"time"

	"github.com/wstszx/LicStats/internal/health"
)

// ErrNotFound is returned when a record is missing from storage.
var ErrNotFound = errors.New("storage: record not found")

// Store represents the root storage interface.
type Store interface {
	Close() error
	Health() HealthStore
	State() StateStore
}

// HealthStore retains the most recent collection events. Implementations
// keep at most health.Capacity records and evict the oldest first.
type HealthStore interface {
	Append(ctx context.Context, rec health.Record) error
	// List returns up to limit of the most recent records, oldest first.
	// A non-positive limit returns every retained record.
	List(ctx context.Context, limit int) ([]health.Record, error)
}

// StateStore holds the collector's progress.
type StateStore interface {
	Get(ctx context.Context) (*CollectorState, error)
	Put(ctx context.Context, state CollectorState) error
}

// CollectorState tracks the outcome of recent collections.
type CollectorState struct {
	LastAttempt         time.Time `json:"last_attempt"`
	LastUpdate          time.Time `json:"last_update"`
	LastSnapshot        string    `json:"last_snapshot,omitempty"`
	ConsecutiveFailures int       `json:"consecutive_failures"`
}

// Apply returns the state after recording rec.
func (s CollectorState) Apply(rec health.Record) CollectorState {
	s.LastAttempt = rec.Timestamp
	if rec.Status == health.StatusSuccess {
		s.LastUpdate = rec.Timestamp
		s.LastSnapshot = rec.Snapshot
		s.ConsecutiveFailures = 0
	} else {
		s.ConsecutiveFailures++
	}
	return s
}
