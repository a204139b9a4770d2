// Stockwatch - Inventory Movement Anomaly Detection
// Copyright 2026 Tom F. (tomtom215)
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/tomtom215/stockwatch

package config

import "time"

// Config is the complete application configuration.
type Config struct {
	Export   ExportConfig   `koanf:"export"`
	Model    ModelConfig    `koanf:"model"`
	Train    TrainConfig    `koanf:"train"`
	Sync     SyncConfig     `koanf:"sync"`
	Database DatabaseConfig `koanf:"database"`
	S3       S3Config       `koanf:"s3"`
	Server   ServerConfig   `koanf:"server"`
	Security SecurityConfig `koanf:"security"`
	Logging  LoggingConfig  `koanf:"logging"`
}

// ExportConfig describes the record store's paged export endpoint.
type ExportConfig struct {
	BaseURL string `koanf:"base_url"`

	// Token is sent as a bearer token when set. Otherwise a token is minted
	// from TokenSecret, when that is set.
	Token        string `koanf:"token"`
	TokenSecret  string `koanf:"token_secret"`
	TokenSubject string `koanf:"token_subject"`
	TokenEmail   string `koanf:"token_email"`
	TokenRole    string `koanf:"token_role"`

	BatchSize int           `koanf:"batch_size"`
	MaxRows   int           `koanf:"max_rows"` // 0 = unlimited
	Timeout   time.Duration `koanf:"timeout"`
	RateLimit float64       `koanf:"rate_limit"` // pages per second
	Burst     int           `koanf:"burst"`
}

// ModelConfig locates artifacts and holds training hyperparameters.
type ModelConfig struct {
	// Dir is a plain artifact directory. When set it takes precedence over
	// the versioned store for loading.
	Dir          string `koanf:"dir"`
	StoreDir     string `koanf:"store_dir"`
	KeepVersions int    `koanf:"keep_versions"`

	NComponents     int     `koanf:"n_components"`
	NClusters       int     `koanf:"n_clusters"`
	RandomState     int64   `koanf:"random_state"`
	NInit           int     `koanf:"n_init"`
	MaxIter         int     `koanf:"max_iter"`
	AnomalyQuantile float64 `koanf:"anomaly_quantile"`

	// Watch reloads the model when the artifact directory changes.
	Watch bool `koanf:"watch"`
}

// TrainConfig controls retraining inside the server.
type TrainConfig struct {
	Enabled   bool          `koanf:"enabled"`
	OnStartup bool          `koanf:"on_startup"`
	Interval  time.Duration `koanf:"interval"`
	MinRows   int           `koanf:"min_rows"`
	Timeout   time.Duration `koanf:"timeout"`
}

// SyncConfig controls the periodic export sync into the local snapshot.
type SyncConfig struct {
	Enabled  bool          `koanf:"enabled"`
	Interval time.Duration `koanf:"interval"`
}

// DatabaseConfig configures the DuckDB snapshot.
type DatabaseConfig struct {
	Path      string `koanf:"path"`
	MaxMemory string `koanf:"max_memory"`
	Threads   int    `koanf:"threads"` // 0 = runtime.NumCPU()
}

// S3Config configures artifact replication.
type S3Config struct {
	Enabled      bool   `koanf:"enabled"`
	Bucket       string `koanf:"bucket"`
	Prefix       string `koanf:"prefix"`
	Region       string `koanf:"region"`
	Endpoint     string `koanf:"endpoint"` // MinIO and other S3-compatible stores
	AccessKey    string `koanf:"access_key"`
	SecretKey    string `koanf:"secret_key"`
	UsePathStyle bool   `koanf:"use_path_style"`
}

// ServerConfig configures the HTTP listener.
type ServerConfig struct {
	Host            string        `koanf:"host"`
	Port            int           `koanf:"port"`
	Timeout         time.Duration `koanf:"timeout"`
	ShutdownTimeout time.Duration `koanf:"shutdown_timeout"`
}

// SecurityConfig configures the HTTP surface.
type SecurityConfig struct {
	AuthMode          string        `koanf:"auth_mode"` // none or jwt
	JWTSecret         string        `koanf:"jwt_secret"`
	CORSOrigins       []string      `koanf:"cors_origins"`
	RateLimitReqs     int           `koanf:"rate_limit_reqs"`
	RateLimitWindow   time.Duration `koanf:"rate_limit_window"`
	RateLimitDisabled bool          `koanf:"rate_limit_disabled"`
	MaxScoreBatch     int           `koanf:"max_score_batch"`
}

// LoggingConfig configures the global logger.
type LoggingConfig struct {
	Level  string `koanf:"level"`
	Format string `koanf:"format"`
	Caller bool   `koanf:"caller"`
}

// Auth modes.
const (
	AuthModeNone = "none"
	AuthModeJWT  = "jwt"
)
