package redis

import (
	"context"
	"testing"

	"github.com/alicebob/miniredis/v2"
	"github.com/redis/go-redis/v9"
)

// setupTestRedis creates a miniredis instance for testing Lua scripts
func setupTestRedis(t *testing.T) (*redis.Client, *miniredis.Miniredis) {
	t.Helper()

	mr := miniredis.RunT(t)
	client := redis.NewClient(&redis.Options{
		Addr: mr.Addr(),
	})

	return client, mr
}

func TestAppendHealthScript(t *testing.T) {
	client, mr := setupTestRedis(t)
	defer client.Close()

	ctx := context.Background()

	tests := []struct {
		name     string
		capacity int
		appends  int
		wantLen  int64
		wantHead string
	}{
		{"below capacity", 5, 3, 3, "r0"},
		{"at capacity", 3, 3, 3, "r0"},
		{"evicts oldest", 3, 5, 3, "r2"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			mr.FlushAll()
			var n int64
			for i := 0; i < tt.appends; i++ {
				var err error
				n, err = appendHealth.Run(ctx, client, []string{"h"}, "r"+string(rune('0'+i)), tt.capacity).Int64()
				if err != nil {
					t.Fatalf("Script failed: %v", err)
				}
			}
			if n != tt.wantLen {
				t.Errorf("Expected length %d, got %d", tt.wantLen, n)
			}
			items, _ := mr.List("h")
			if len(items) == 0 || items[0] != tt.wantHead {
				t.Errorf("Expected head %s, got %v", tt.wantHead, items)
			}
		})
	}
}

func TestPutStateScript(t *testing.T) {
	client, mr := setupTestRedis(t)
	defer client.Close()

	ctx := context.Background()
	mr.HSet("s", "stale", "1")

	if err := putState.Run(ctx, client, []string{"s"}, "", "", "", "3").Err(); err != nil {
		t.Fatalf("Script failed: %v", err)
	}

	if mr.HGet("s", "stale") != "" {
		t.Error("Expected stale fields to be removed")
	}
	if mr.HGet("s", "consecutive_failures") != "3" {
		t.Errorf("Expected consecutive_failures 3, got %q", mr.HGet("s", "consecutive_failures"))
	}
}
