package redis

import (
	"context"
	"encoding/json"
	"fmt"

	"github.com/redis/go-redis/v9"

	"github.com/wstszx/LicStats/internal/health"
)

type healthStore struct {
	client *redis.Client
	keys   keyspace
}

// Append adds a record to the bounded health list
func (s *healthStore) Append(ctx context.Context, rec health.Record) error {
	data, err := json.Marshal(rec)
	if err != nil {
		return fmt.Errorf("failed to encode health record: %w", err)
	}

	keys := []string{s.keys.health()}
	if err := appendHealth.Run(ctx, s.client, keys, string(data), health.Capacity).Err(); err != nil {
		return fmt.Errorf("failed to append health record: %w", err)
	}
	return nil
}

// List returns up to limit of the most recent records, oldest first
func (s *healthStore) List(ctx context.Context, limit int) ([]health.Record, error) {
	start := int64(0)
	if limit > 0 {
		start = int64(-limit)
	}

	items, err := s.client.LRange(ctx, s.keys.health(), start, -1).Result()
	if err != nil {
		return nil, fmt.Errorf("failed to list health records: %w", err)
	}

	records := make([]health.Record, 0, len(items))
	for _, item := range items {
		rec, err := parseHealthRecord(item)
		if err != nil {
			return nil, err
		}
		records = append(records, rec)
	}
	return records, nil
}
