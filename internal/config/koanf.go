// Stockwatch - Inventory Movement Anomaly Detection
// Copyright 2026 Tom F. (tomtom215)
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/tomtom215/stockwatch

package config

import (
	"fmt"
	"os"
	"strings"
	"time"

	"github.com/knadh/koanf/parsers/yaml"
	"github.com/knadh/koanf/providers/env"
	"github.com/knadh/koanf/providers/file"
	"github.com/knadh/koanf/providers/structs"
	"github.com/knadh/koanf/v2"
)

// DefaultConfigPaths lists the config files searched, in order, when no
// explicit path is given.
var DefaultConfigPaths = []string{
	"config.yaml",
	"config.yml",
	"/etc/stockwatch/config.yaml",
}

// ConfigPathEnvVar overrides the config file path.
const ConfigPathEnvVar = "CONFIG_PATH"

func defaultConfig() *Config {
	return &Config{
		Export: ExportConfig{
			BaseURL:      "http://localhost:8000",
			TokenSubject: "1",
			TokenRole:    "viewer",
			BatchSize:    10000,
			MaxRows:      0,
			Timeout:      60 * time.Second,
			RateLimit:    10,
			Burst:        1,
		},
		Model: ModelConfig{
			StoreDir:        "/data/models",
			KeepVersions:    5,
			NComponents:     8,
			NClusters:       5,
			RandomState:     42,
			NInit:           10,
			MaxIter:         300,
			AnomalyQuantile: 0.95,
			Watch:           true,
		},
		Train: TrainConfig{
			Enabled:  false,
			Interval: 24 * time.Hour,
			MinRows:  50,
			Timeout:  30 * time.Minute,
		},
		Sync: SyncConfig{
			Enabled:  false,
			Interval: 15 * time.Minute,
		},
		Database: DatabaseConfig{
			Path:      "/data/stockwatch.duckdb",
			MaxMemory: "1GB",
			Threads:   0,
		},
		S3: S3Config{
			Prefix: "models/",
			Region: "us-east-1",
		},
		Server: ServerConfig{
			Host:            "0.0.0.0",
			Port:            8085,
			Timeout:         30 * time.Second,
			ShutdownTimeout: 10 * time.Second,
		},
		Security: SecurityConfig{
			AuthMode:        AuthModeNone,
			CORSOrigins:     []string{"*"},
			RateLimitReqs:   100,
			RateLimitWindow: time.Minute,
			MaxScoreBatch:   10000,
		},
		Logging: LoggingConfig{
			Level:  "info",
			Format: "json",
		},
	}
}

// Default returns the built-in configuration.
func Default() *Config {
	return defaultConfig()
}

// Load builds the configuration from defaults, the config file and the
// environment, then validates it. An empty path searches
// DefaultConfigPaths; an explicit path must exist.
func Load(path string) (*Config, error) {
	k := koanf.New(".")

	if err := k.Load(structs.Provider(defaultConfig(), "koanf"), nil); err != nil {
		return nil, fmt.Errorf("failed to load defaults: %w", err)
	}

	if path == "" {
		path = findConfigFile()
	} else if _, err := os.Stat(path); err != nil {
		return nil, fmt.Errorf("config file %s: %w", path, err)
	}
	if path != "" {
		if err := k.Load(file.Provider(path), yaml.Parser()); err != nil {
			return nil, fmt.Errorf("failed to load config file %s: %w", path, err)
		}
	}

	if err := k.Load(env.Provider("", ".", envTransformFunc), nil); err != nil {
		return nil, fmt.Errorf("failed to load environment variables: %w", err)
	}

	if err := processSliceFields(k); err != nil {
		return nil, fmt.Errorf("failed to process slice fields: %w", err)
	}

	cfg := &Config{}
	if err := k.Unmarshal("", cfg); err != nil {
		return nil, fmt.Errorf("failed to unmarshal configuration: %w", err)
	}

	if err := cfg.Validate(); err != nil {
		return nil, fmt.Errorf("configuration validation failed: %w", err)
	}
	return cfg, nil
}

func findConfigFile() string {
	if envPath := os.Getenv(ConfigPathEnvVar); envPath != "" {
		if _, err := os.Stat(envPath); err == nil {
			return envPath
		}
	}
	for _, path := range DefaultConfigPaths {
		if _, err := os.Stat(path); err == nil {
			return path
		}
	}
	return ""
}

var sliceConfigPaths = []string{
	"security.cors_origins",
}

// processSliceFields splits comma-separated environment values for slice
// fields. Values from YAML are already slices and are left alone.
func processSliceFields(k *koanf.Koanf) error {
	for _, path := range sliceConfigPaths {
		strVal, ok := k.Get(path).(string)
		if !ok || strVal == "" {
			continue
		}
		var parts []string
		for _, p := range strings.Split(strVal, ",") {
			if p = strings.TrimSpace(p); p != "" {
				parts = append(parts, p)
			}
		}
		if err := k.Set(path, parts); err != nil {
			return fmt.Errorf("failed to set %s: %w", path, err)
		}
	}
	return nil
}

var envMappings = map[string]string{
	"export_base_url":      "export.base_url",
	"export_token":         "export.token",
	"export_token_secret":  "export.token_secret",
	"export_token_subject": "export.token_subject",
	"export_token_email":   "export.token_email",
	"export_token_role":    "export.token_role",
	"export_batch_size":    "export.batch_size",
	"export_max_rows":      "export.max_rows",
	"export_timeout":       "export.timeout",
	"export_rate_limit":    "export.rate_limit",
	"export_burst":         "export.burst",

	"model_dir":              "model.dir",
	"model_store_dir":        "model.store_dir",
	"model_keep_versions":    "model.keep_versions",
	"model_n_components":     "model.n_components",
	"model_n_clusters":       "model.n_clusters",
	"model_random_state":     "model.random_state",
	"model_n_init":           "model.n_init",
	"model_max_iter":         "model.max_iter",
	"model_anomaly_quantile": "model.anomaly_quantile",
	"model_watch":            "model.watch",

	"train_enabled":    "train.enabled",
	"train_on_startup": "train.on_startup",
	"train_interval":   "train.interval",
	"train_min_rows":   "train.min_rows",
	"train_timeout":    "train.timeout",

	"sync_enabled":  "sync.enabled",
	"sync_interval": "sync.interval",

	"duckdb_path":       "database.path",
	"duckdb_max_memory": "database.max_memory",
	"duckdb_threads":    "database.threads",

	"s3_enabled":        "s3.enabled",
	"s3_bucket":         "s3.bucket",
	"s3_prefix":         "s3.prefix",
	"s3_region":         "s3.region",
	"s3_endpoint":       "s3.endpoint",
	"s3_access_key":     "s3.access_key",
	"s3_secret_key":     "s3.secret_key",
	"s3_use_path_style": "s3.use_path_style",

	"http_host":             "server.host",
	"http_port":             "server.port",
	"http_timeout":          "server.timeout",
	"http_shutdown_timeout": "server.shutdown_timeout",

	"auth_mode":           "security.auth_mode",
	"jwt_secret":          "security.jwt_secret",
	"cors_origins":        "security.cors_origins",
	"rate_limit_requests": "security.rate_limit_reqs",
	"rate_limit_window":   "security.rate_limit_window",
	"disable_rate_limit":  "security.rate_limit_disabled",
	"max_score_batch":     "security.max_score_batch",

	"log_level":  "logging.level",
	"log_format": "logging.format",
	"log_caller": "logging.caller",
}

// envTransformFunc maps an environment variable to its koanf path. Unmapped
// variables return "" and are skipped.
func envTransformFunc(key string) string {
	return envMappings[strings.ToLower(key)]
}
