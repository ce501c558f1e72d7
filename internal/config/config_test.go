package config

import (
	"os"
	"path/filepath"
	"strings"
	"testing"
)

func writeConfig(t *testing.T, content string) string {
	t.Helper()
	path := filepath.Join(t.TempDir(), "licstats.yaml")
	if err := os.WriteFile(path, []byte(content), 0644); err != nil {
		t.Fatalf("Failed to write config: %v", err)
	}
	return path
}

func TestLoad_Defaults(t *testing.T) {
	cfg, err := Load(filepath.Join(t.TempDir(), "missing.yaml"))
	if err != nil {
		t.Fatalf("Load failed: %v", err)
	}

	if cfg.Server.APIPort != 5000 {
		t.Errorf("Expected API port 5000, got %d", cfg.Server.APIPort)
	}
	if cfg.Collector.Interval != "1m" || cfg.Collector.Timeout != "60s" {
		t.Errorf("Unexpected collector timings: %+v", cfg.Collector)
	}
	if strings.Join(cfg.Collector.Args, " ") != "lmstat -c 29000@hqcndb -a" {
		t.Errorf("Unexpected collector args: %v", cfg.Collector.Args)
	}
	if cfg.Snapshots.Dir != "logs" || cfg.Storage.Type != "memory" {
		t.Errorf("Unexpected storage defaults: %+v %+v", cfg.Snapshots, cfg.Storage)
	}
	if cfg.API.StatusHealthRecords != 10 {
		t.Errorf("Expected 10 status health records, got %d", cfg.API.StatusHealthRecords)
	}
}

func TestLoad_FileAndEnv(t *testing.T) {
	path := writeConfig(t, `
server:
  api_port: 8080
collector:
  debug_file: testdata/234.txt
  interval: 5m
storage:
  type: redis
  redis:
    host: cache.internal
`)
	t.Setenv("LICSTATS_LOGGING_LEVEL", "debug")

	cfg, err := Load(path)
	if err != nil {
		t.Fatalf("Load failed: %v", err)
	}

	if cfg.Server.APIPort != 8080 {
		t.Errorf("Expected API port 8080, got %d", cfg.Server.APIPort)
	}
	if cfg.Collector.DebugFile != "testdata/234.txt" || cfg.Collector.Interval != "5m" {
		t.Errorf("Unexpected collector config: %+v", cfg.Collector)
	}
	if cfg.Storage.Type != "redis" || cfg.Storage.Redis.Host != "cache.internal" || cfg.Storage.Redis.Port != 6379 {
		t.Errorf("Unexpected redis config: %+v", cfg.Storage)
	}
	if cfg.Logging.Level != "debug" {
		t.Errorf("Expected env override of logging level, got %s", cfg.Logging.Level)
	}
}

func TestLoad_Invalid(t *testing.T) {
	tests := []struct {
		name    string
		content string
		wantErr string
	}{
		{"bad port", "server:\n  api_port: 70000\n", "invalid API port"},
		{"zero interval", "collector:\n  interval: 0s\n", "collector.interval"},
		{"sub-minute interval", "collector:\n  interval: 30s\n", "whole number of minutes"},
		{"fractional interval", "collector:\n  interval: 90s\n", "whole number of minutes"},
		{"bad timeout", "collector:\n  timeout: soon\n", "collector.timeout"},
		{"no source", "collector:\n  command: \"\"\n", "collector command is required"},
		{"bad storage", "storage:\n  type: bolt\n", "unsupported storage type"},
		{"empty dir", "snapshots:\n  dir: \"\"\n", "snapshot directory"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			_, err := Load(writeConfig(t, tt.content))
			if err == nil {
				t.Fatal("Expected an error, got nil")
			}
			if !strings.Contains(err.Error(), tt.wantErr) {
				t.Errorf("Expected error containing %q, got %v", tt.wantErr, err)
			}
		})
	}
}

func TestUnknownKeys(t *testing.T) {
	path := writeConfig(t, `
server:
  api_port: 8080
  apiport: 1
collector:
  intervall: 5m
storage:
  redis:
    password: secret
`)

	unknown, err := UnknownKeys(path)
	if err != nil {
		t.Fatalf("UnknownKeys failed: %v", err)
	}
	want := []string{"collector.intervall", "server.apiport"}
	if strings.Join(unknown, ",") != strings.Join(want, ",") {
		t.Errorf("UnknownKeys() = %v, want %v", unknown, want)
	}
}

func TestDefaults(t *testing.T) {
	cfg := Defaults()
	if cfg.Server.MetricsPort != 9090 || cfg.Storage.Redis.KeyPrefix != "licstats" {
		t.Errorf("Unexpected defaults: %+v", cfg)
	}
}
