package redis

import (
	"encoding/json"
	"fmt"
	"strconv"
	"time"

	"github.com/wstszx/LicStats/internal/health"
	"github.com/wstszx/LicStats/internal/storage"
)

// parseHealthRecord converts a list entry to a health.Record
func parseHealthRecord(item string) (health.Record, error) {
	var rec health.Record
	if err := json.Unmarshal([]byte(item), &rec); err != nil {
		return health.Record{}, fmt.Errorf("failed to parse health record: %w", err)
	}
	return rec, nil
}

// parseCollectorState converts a Redis hash to CollectorState
func parseCollectorState(data map[string]string) (*storage.CollectorState, error) {
	if len(data) == 0 {
		return nil, storage.ErrNotFound
	}

	lastAttempt, err := parseTime(data["last_attempt"])
	if err != nil {
		return nil, fmt.Errorf("failed to parse last_attempt: %w", err)
	}

	lastUpdate, err := parseTime(data["last_update"])
	if err != nil {
		return nil, fmt.Errorf("failed to parse last_update: %w", err)
	}

	failures, err := strconv.Atoi(data["consecutive_failures"])
	if err != nil {
		return nil, fmt.Errorf("failed to parse consecutive_failures: %w", err)
	}

	return &storage.CollectorState{
		LastAttempt:         lastAttempt,
		LastUpdate:          lastUpdate,
		LastSnapshot:        data["last_snapshot"],
		ConsecutiveFailures: failures,
	}, nil
}

// parseTime accepts the empty string as the zero time
func parseTime(s string) (time.Time, error) {
	if s == "" {
		return time.Time{}, nil
	}
	return time.Parse(time.RFC3339Nano, s)
}
