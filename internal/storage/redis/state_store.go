package redis

import (
	"context"
	"fmt"
	"strconv"
	"time"

	"github.com/redis/go-redis/v9"

	"github.com/wstszx/LicStats/internal/storage"
)

type stateStore struct {
	client *redis.Client
	keys   keyspace
}

// Get returns the collector state
func (s *stateStore) Get(ctx context.Context) (*storage.CollectorState, error) {
	data, err := s.client.HGetAll(ctx, s.keys.state()).Result()
	if err != nil {
		return nil, fmt.Errorf("failed to get collector state: %w", err)
	}
	return parseCollectorState(data)
}

// Put replaces the collector state
func (s *stateStore) Put(ctx context.Context, state storage.CollectorState) error {
	keys := []string{s.keys.state()}
	args := []interface{}{
		formatTime(state.LastAttempt),
		formatTime(state.LastUpdate),
		state.LastSnapshot,
		strconv.Itoa(state.ConsecutiveFailures),
	}

	if err := putState.Run(ctx, s.client, keys, args...).Err(); err != nil {
		return fmt.Errorf("failed to put collector state: %w", err)
	}
	return nil
}

func formatTime(t time.Time) string {
	if t.IsZero() {
		return ""
	}
	return t.Format(time.RFC3339Nano)
}
