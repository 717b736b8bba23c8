package config

import (
	"errors"
	"fmt"
	"io/fs"
	"os"
	"strconv"
	"strings"
	"time"

	"github.com/go-playground/validator/v10"
	"gopkg.in/yaml.v3"
)

// Config captures the settings required to boot the regression service.
type Config struct {
	Server     ServerConfig     `yaml:"server"`
	Store      StoreConfig      `yaml:"store"`
	Engine     EngineConfig     `yaml:"engine"`
	Thresholds ThresholdsConfig `yaml:"thresholds"`
	Cache      CacheConfig      `yaml:"cache"`
	Logging    LoggingConfig    `yaml:"logging"`
}

// ServerConfig controls gRPC listener behaviour.
type ServerConfig struct {
	Address         string        `yaml:"address" validate:"required"`
	MetricsAddress  string        `yaml:"metricsAddress"`
	GracefulTimeout time.Duration `yaml:"gracefulTimeout" validate:"gte=0"`
}

// StoreConfig selects and tunes the metric store.
type StoreConfig struct {
	Driver         string        `yaml:"driver" validate:"oneof=sqlite memory"`
	Path           string        `yaml:"path" validate:"required_if=Driver sqlite"`
	BusyTimeout    time.Duration `yaml:"busyTimeout" validate:"gte=0"`
	MaxConnections int           `yaml:"maxConnections" validate:"gte=0"`
	MaxRetries     uint          `yaml:"maxRetries"`
}

// EngineConfig tunes evaluation.
type EngineConfig struct {
	// Concurrency bounds parallel sample evaluations per report.
	Concurrency int `yaml:"concurrency" validate:"gte=1"`
	// Defaults fill unset fields of thresholds submitted over the API.
	Defaults ThresholdDefaults `yaml:"defaults"`
}

// ThresholdDefaults are applied to thresholds that omit sample sizes or window.
type ThresholdDefaults struct {
	MinSampleSize uint32        `yaml:"minSampleSize" validate:"gte=1"`
	MaxSampleSize uint32        `yaml:"maxSampleSize" validate:"gtefield=MinSampleSize"`
	Window        time.Duration `yaml:"window" validate:"gt=0"`
}

// ThresholdsConfig points at the YAML file of thresholds seeded at boot.
type ThresholdsConfig struct {
	Path string `yaml:"path"`
}

// CacheConfig controls the in-process cache used for alert claims and
// threshold lookups.
type CacheConfig struct {
	Enabled      bool          `yaml:"enabled"`
	AlertTTL     time.Duration `yaml:"alertTTL" validate:"gte=0"`
	ThresholdTTL time.Duration `yaml:"thresholdTTL" validate:"gte=0"`
}

// LoggingConfig controls structured logging.
type LoggingConfig struct {
	Level string `yaml:"level"`
	JSON  bool   `yaml:"json"`
}

// Load initialises Config from a YAML file and optional environment overrides.
func Load(path string) (*Config, error) {
	if path == "" {
		path = os.Getenv("BENCHGUARD_CONFIG")
	}

	cfg := defaultConfig()

	if path != "" {
		data, err := os.ReadFile(path)
		if err != nil {
			if errors.Is(err, fs.ErrNotExist) {
				return nil, fmt.Errorf("config file %s not found: %w", path, err)
			}
			return nil, fmt.Errorf("read config: %w", err)
		}
		if err := yaml.Unmarshal(data, &cfg); err != nil {
			return nil, fmt.Errorf("parse config: %w", err)
		}
	}

	applyEnvOverrides(&cfg)
	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	return &cfg, nil
}

// Validate rejects settings the service cannot start with.
func (c Config) Validate() error {
	if err := validator.New().Struct(c); err != nil {
		var fieldErrs validator.ValidationErrors
		if errors.As(err, &fieldErrs) && len(fieldErrs) > 0 {
			fe := fieldErrs[0]
			return fmt.Errorf("invalid config: %s failed %q (%v)", fe.Namespace(), fe.Tag(), fe.Value())
		}
		return fmt.Errorf("invalid config: %w", err)
	}
	return nil
}

func defaultConfig() Config {
	return Config{
		Server: ServerConfig{
			Address:         ":50051",
			MetricsAddress:  ":2112",
			GracefulTimeout: 10 * time.Second,
		},
		Store: StoreConfig{
			Driver:         "sqlite",
			Path:           "benchguard.db",
			BusyTimeout:    5 * time.Second,
			MaxConnections: 4,
			MaxRetries:     5,
		},
		Engine: EngineConfig{
			Concurrency: 8,
			Defaults: ThresholdDefaults{
				MinSampleSize: 2,
				MaxSampleSize: 64,
				Window:        30 * 24 * time.Hour,
			},
		},
		Thresholds: ThresholdsConfig{Path: "configs/thresholds/default.yaml"},
		Cache: CacheConfig{
			Enabled:      true,
			AlertTTL:     24 * time.Hour,
			ThresholdTTL: time.Minute,
		},
		Logging: LoggingConfig{Level: "info", JSON: false},
	}
}

func applyEnvOverrides(cfg *Config) {
	if v := os.Getenv("BENCHGUARD_SERVER_ADDRESS"); v != "" {
		cfg.Server.Address = v
	}
	if v := os.Getenv("BENCHGUARD_METRICS_ADDRESS"); v != "" {
		cfg.Server.MetricsAddress = v
	}
	if v := os.Getenv("BENCHGUARD_STORE_DRIVER"); v != "" {
		cfg.Store.Driver = strings.ToLower(v)
	}
	if v := os.Getenv("BENCHGUARD_STORE_PATH"); v != "" {
		cfg.Store.Path = v
	}
	if v := os.Getenv("BENCHGUARD_STORE_BUSY_TIMEOUT"); v != "" {
		if d, err := time.ParseDuration(v); err == nil {
			cfg.Store.BusyTimeout = d
		}
	}
	if v := os.Getenv("BENCHGUARD_STORE_MAX_RETRIES"); v != "" {
		if n, err := strconv.ParseUint(v, 10, 32); err == nil {
			cfg.Store.MaxRetries = uint(n)
		}
	}
	if v := os.Getenv("BENCHGUARD_ENGINE_CONCURRENCY"); v != "" {
		if n, err := strconv.Atoi(v); err == nil {
			cfg.Engine.Concurrency = n
		}
	}
	if v := os.Getenv("BENCHGUARD_THRESHOLDS_PATH"); v != "" {
		cfg.Thresholds.Path = v
	}
	if v := os.Getenv("BENCHGUARD_CACHE_ENABLED"); v != "" {
		cfg.Cache.Enabled = strings.EqualFold(v, "true") || v == "1"
	}
	if v := os.Getenv("BENCHGUARD_CACHE_ALERT_TTL"); v != "" {
		if d, err := time.ParseDuration(v); err == nil {
			cfg.Cache.AlertTTL = d
		}
	}
	if v := os.Getenv("BENCHGUARD_CACHE_THRESHOLD_TTL"); v != "" {
		if d, err := time.ParseDuration(v); err == nil {
			cfg.Cache.ThresholdTTL = d
		}
	}
	if v := os.Getenv("BENCHGUARD_LOG_LEVEL"); v != "" {
		cfg.Logging.Level = v
	}
	if v := os.Getenv("BENCHGUARD_LOG_FORMAT"); v == "json" {
		cfg.Logging.JSON = true
	}
}
