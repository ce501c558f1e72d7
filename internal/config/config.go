package config

import (
	"errors"
	"fmt"
	"os"
	"sort"
	"strings"
	"time"

	"github.com/spf13/viper"
)

// Config holds the complete application configuration
type Config struct {
	Server    ServerConfig    `mapstructure:"server" yaml:"server"`
	Collector CollectorConfig `mapstructure:"collector" yaml:"collector"`
	Snapshots SnapshotsConfig `mapstructure:"snapshots" yaml:"snapshots"`
	Storage   StorageConfig   `mapstructure:"storage" yaml:"storage"`
	Logging   LoggingConfig   `mapstructure:"logging" yaml:"logging"`
	API       APIConfig       `mapstructure:"api" yaml:"api"`
}

// ServerConfig defines server ports and addresses
type ServerConfig struct {
	BindAddress string `mapstructure:"bind_address" yaml:"bind_address"`
	APIPort     int    `mapstructure:"api_port" yaml:"api_port"`
	MetricsPort int    `mapstructure:"metrics_port" yaml:"metrics_port"`
	FrontendDir string `mapstructure:"frontend_dir" yaml:"frontend_dir"` // Optional static dashboard served at /
}

// CollectorConfig defines how license status dumps are obtained
type CollectorConfig struct {
	Command       string   `mapstructure:"command" yaml:"command"`
	Args          []string `mapstructure:"args" yaml:"args"`
	DebugFile     string   `mapstructure:"debug_file" yaml:"debug_file"` // Read this file instead of running Command
	Interval      string   `mapstructure:"interval" yaml:"interval"`
	Timeout       string   `mapstructure:"timeout" yaml:"timeout"`
	RunOnStart    bool     `mapstructure:"run_on_start" yaml:"run_on_start"`
	RetentionDays int      `mapstructure:"retention_days" yaml:"retention_days"` // 0 keeps snapshots forever
}

// SnapshotsConfig defines where dumps are stored
type SnapshotsConfig struct {
	Dir       string `mapstructure:"dir" yaml:"dir"`
	CacheSize int    `mapstructure:"cache_size" yaml:"cache_size"`
}

// StorageConfig defines the backend for health events and collector state
type StorageConfig struct {
	Type  string      `mapstructure:"type" yaml:"type"` // "memory" or "redis"
	Redis RedisConfig `mapstructure:"redis" yaml:"redis"`
}

// RedisConfig defines Redis connection settings
type RedisConfig struct {
	Host         string `mapstructure:"host" yaml:"host"`
	Port         int    `mapstructure:"port" yaml:"port"`
	Password     string `mapstructure:"password" yaml:"password"`
	DB           int    `mapstructure:"db" yaml:"db"`
	PoolSize     int    `mapstructure:"pool_size" yaml:"pool_size"`
	MinIdleConns int    `mapstructure:"min_idle_conns" yaml:"min_idle_conns"`
	DialTimeout  string `mapstructure:"dial_timeout" yaml:"dial_timeout"`
	ReadTimeout  string `mapstructure:"read_timeout" yaml:"read_timeout"`
	WriteTimeout string `mapstructure:"write_timeout" yaml:"write_timeout"`
	KeyPrefix    string `mapstructure:"key_prefix" yaml:"key_prefix"`
}

// LoggingConfig defines logging behavior
type LoggingConfig struct {
	Level  string `mapstructure:"level" yaml:"level"`
	Format string `mapstructure:"format" yaml:"format"`
}

// APIConfig defines HTTP API behavior
type APIConfig struct {
	CollectRate         float64  `mapstructure:"collect_rate" yaml:"collect_rate"` // Manual collections per minute, 0 disables the limit
	CollectBurst        int      `mapstructure:"collect_burst" yaml:"collect_burst"`
	StatusHealthRecords int      `mapstructure:"status_health_records" yaml:"status_health_records"`
	AllowedOrigins      []string `mapstructure:"allowed_origins" yaml:"allowed_origins"`
}

// Load loads configuration from file and environment variables.
// A missing config file is not an error.
func Load(configPath string) (*Config, error) {
	v := viper.New()

	// Set defaults
	setDefaults(v)

	// Configure viper
	v.SetConfigType("yaml")
	v.SetEnvPrefix("LICSTATS")
	v.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))
	v.AutomaticEnv()

	if configPath != "" {
		if _, err := os.Stat(configPath); err == nil {
			v.SetConfigFile(configPath)
			if err := v.ReadInConfig(); err != nil {
				return nil, fmt.Errorf("failed to read config file: %w", err)
			}
		} else if !errors.Is(err, os.ErrNotExist) {
			return nil, fmt.Errorf("failed to stat config file: %w", err)
		}
	}

	// Unmarshal config
	var config Config
	if err := v.Unmarshal(&config); err != nil {
		return nil, fmt.Errorf("failed to unmarshal config: %w", err)
	}

	// Validate config
	if err := validate(&config); err != nil {
		return nil, fmt.Errorf("invalid configuration: %w", err)
	}

	return &config, nil
}

// setDefaults sets default configuration values
func setDefaults(v *viper.Viper) {
	// Server defaults
	v.SetDefault("server.bind_address", "0.0.0.0")
	v.SetDefault("server.api_port", 5000)
	v.SetDefault("server.metrics_port", 9090)
	v.SetDefault("server.frontend_dir", "")

	// Collector defaults
	v.SetDefault("collector.command", "lmutil")
	v.SetDefault("collector.args", []string{"lmstat", "-c", "29000@hqcndb", "-a"})
	v.SetDefault("collector.debug_file", "")
	v.SetDefault("collector.interval", "1m")
	v.SetDefault("collector.timeout", "60s")
	v.SetDefault("collector.run_on_start", true)
	v.SetDefault("collector.retention_days", 0)

	// Snapshot defaults
	v.SetDefault("snapshots.dir", "logs")
	v.SetDefault("snapshots.cache_size", 256)

	// Storage defaults
	v.SetDefault("storage.type", "memory")
	v.SetDefault("storage.redis.host", "localhost")
	v.SetDefault("storage.redis.port", 6379)
	v.SetDefault("storage.redis.password", "")
	v.SetDefault("storage.redis.db", 0)
	v.SetDefault("storage.redis.pool_size", 10)
	v.SetDefault("storage.redis.min_idle_conns", 2)
	v.SetDefault("storage.redis.dial_timeout", "5s")
	v.SetDefault("storage.redis.read_timeout", "3s")
	v.SetDefault("storage.redis.write_timeout", "3s")
	v.SetDefault("storage.redis.key_prefix", "licstats")

	// Logging defaults
	v.SetDefault("logging.level", "info")
	v.SetDefault("logging.format", "json")

	// API defaults
	v.SetDefault("api.collect_rate", 6)
	v.SetDefault("api.collect_burst", 1)
	v.SetDefault("api.status_health_records", 10)
	v.SetDefault("api.allowed_origins", []string{"*"})
}

// validate validates the configuration
func validate(cfg *Config) error {
	if cfg.Server.APIPort <= 0 || cfg.Server.APIPort > 65535 {
		return fmt.Errorf("invalid API port: %d", cfg.Server.APIPort)
	}
	if cfg.Server.MetricsPort <= 0 || cfg.Server.MetricsPort > 65535 {
		return fmt.Errorf("invalid metrics port: %d", cfg.Server.MetricsPort)
	}

	if cfg.Collector.Command == "" && cfg.Collector.DebugFile == "" {
		return fmt.Errorf("collector command is required unless debug_file is set")
	}
	if err := wholeMinutes("collector.interval", cfg.Collector.Interval); err != nil {
		return err
	}
	if err := positiveDuration("collector.timeout", cfg.Collector.Timeout); err != nil {
		return err
	}
	if cfg.Collector.RetentionDays < 0 {
		return fmt.Errorf("invalid retention_days: %d", cfg.Collector.RetentionDays)
	}

	if cfg.Snapshots.Dir == "" {
		return fmt.Errorf("snapshot directory is required")
	}

	switch cfg.Storage.Type {
	case "memory", "redis":
	case "":
		cfg.Storage.Type = "memory"
	default:
		return fmt.Errorf("unsupported storage type: %s", cfg.Storage.Type)
	}

	if cfg.API.CollectRate < 0 {
		return fmt.Errorf("invalid collect_rate: %v", cfg.API.CollectRate)
	}

	return nil
}

func positiveDuration(key, value string) error {
	d, err := time.ParseDuration(value)
	if err != nil {
		return fmt.Errorf("invalid %s: %w", key, err)
	}
	if d <= 0 {
		return fmt.Errorf("invalid %s: must be positive", key)
	}
	return nil
}

// Defaults returns the configuration used when no file or environment
// overrides are present.
func Defaults() *Config {
	v := viper.New()
	setDefaults(v)

	var cfg Config
	_ = v.Unmarshal(&cfg)
	return &cfg
}

// UnknownKeys returns the keys of the config file at path that no setting
// consumes, sorted. They usually indicate typos.
func UnknownKeys(path string) ([]string, error) {
	known := viper.New()
	setDefaults(known)
	valid := make(map[string]bool)
	for _, key := range known.AllKeys() {
		valid[key] = true
	}

	v := viper.New()
	v.SetConfigType("yaml")
	v.SetConfigFile(path)
	if err := v.ReadInConfig(); err != nil {
		return nil, fmt.Errorf("failed to read config file: %w", err)
	}

	unknown := []string{}
	for _, key := range v.AllKeys() {
		if !valid[key] {
			unknown = append(unknown, key)
		}
	}
	sort.Strings(unknown)
	return unknown, nil
}

// wholeMinutes accepts positive durations made of whole minutes only; the
// aggregator credits usage per sampling interval in minutes.
func wholeMinutes(key, value string) error {
	if err := positiveDuration(key, value); err != nil {
		return err
	}
	if d, _ := time.ParseDuration(value); d < time.Minute || d%time.Minute != 0 {
		return fmt.Errorf("invalid %s: must be a whole number of minutes, got %s", key, value)
	}
	return nil
}
