// Stockwatch - Inventory Movement Anomaly Detection
// Copyright 2026 Tom F. (tomtom215)
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/tomtom215/stockwatch

package config

import (
	"fmt"
	"net/url"
	"strings"
)

const minJWTSecretLength = 32

// Validate checks the configuration and returns the first problem found.
func (c *Config) Validate() error {
	checks := []func() error{
		c.validateExport,
		c.validateModel,
		c.validateTrain,
		c.validateS3,
		c.validateServer,
		c.validateSecurity,
		c.validateLogging,
	}
	for _, check := range checks {
		if err := check(); err != nil {
			return err
		}
	}
	return nil
}

func (c *Config) validateExport() error {
	if err := validateHTTPURL(c.Export.BaseURL, "EXPORT_BASE_URL"); err != nil {
		return err
	}
	if c.Export.BatchSize < 1 || c.Export.BatchSize > 100000 {
		return fmt.Errorf("EXPORT_BATCH_SIZE must be between 1 and 100000, got %d", c.Export.BatchSize)
	}
	if c.Export.MaxRows < 0 {
		return fmt.Errorf("EXPORT_MAX_ROWS must not be negative, got %d", c.Export.MaxRows)
	}
	if c.Export.Timeout <= 0 {
		return fmt.Errorf("EXPORT_TIMEOUT must be positive, got %v", c.Export.Timeout)
	}
	if c.Export.RateLimit < 0 {
		return fmt.Errorf("EXPORT_RATE_LIMIT must not be negative, got %v", c.Export.RateLimit)
	}
	return nil
}

func (c *Config) validateModel() error {
	m := c.Model
	switch {
	case m.NComponents < 1:
		return fmt.Errorf("MODEL_N_COMPONENTS must be at least 1, got %d", m.NComponents)
	case m.NClusters < 1:
		return fmt.Errorf("MODEL_N_CLUSTERS must be at least 1, got %d", m.NClusters)
	case m.NInit < 1:
		return fmt.Errorf("MODEL_N_INIT must be at least 1, got %d", m.NInit)
	case m.MaxIter < 1:
		return fmt.Errorf("MODEL_MAX_ITER must be at least 1, got %d", m.MaxIter)
	case m.AnomalyQuantile <= 0 || m.AnomalyQuantile >= 1:
		return fmt.Errorf("MODEL_ANOMALY_QUANTILE must be in (0, 1), got %v", m.AnomalyQuantile)
	case m.KeepVersions < 0:
		return fmt.Errorf("MODEL_KEEP_VERSIONS must not be negative, got %d", m.KeepVersions)
	case m.Dir == "" && m.StoreDir == "":
		return fmt.Errorf("one of MODEL_DIR or MODEL_STORE_DIR is required")
	}
	return nil
}

func (c *Config) validateTrain() error {
	if !c.Train.Enabled {
		return nil
	}
	if c.Train.Interval <= 0 {
		return fmt.Errorf("TRAIN_INTERVAL must be positive, got %v", c.Train.Interval)
	}
	if c.Model.StoreDir == "" {
		return fmt.Errorf("MODEL_STORE_DIR is required when TRAIN_ENABLED=true")
	}
	return nil
}

func (c *Config) validateS3() error {
	if !c.S3.Enabled {
		return nil
	}
	if c.S3.Bucket == "" {
		return fmt.Errorf("S3_BUCKET is required when S3_ENABLED=true")
	}
	if c.S3.Endpoint != "" {
		if _, err := url.Parse(c.S3.Endpoint); err != nil {
			return fmt.Errorf("S3_ENDPOINT is invalid: %w", err)
		}
	}
	return nil
}

func (c *Config) validateServer() error {
	if c.Server.Port < 1 || c.Server.Port > 65535 {
		return fmt.Errorf("HTTP_PORT must be between 1 and 65535, got %d", c.Server.Port)
	}
	if c.Server.Timeout <= 0 {
		return fmt.Errorf("HTTP_TIMEOUT must be positive, got %v", c.Server.Timeout)
	}
	return nil
}

func (c *Config) validateSecurity() error {
	s := c.Security
	switch s.AuthMode {
	case AuthModeNone:
	case AuthModeJWT:
		if len(s.JWTSecret) < minJWTSecretLength {
			return fmt.Errorf("JWT_SECRET must be at least %d characters when AUTH_MODE=jwt", minJWTSecretLength)
		}
	default:
		return fmt.Errorf("AUTH_MODE must be none or jwt, got %q", s.AuthMode)
	}
	if !s.RateLimitDisabled && (s.RateLimitReqs < 1 || s.RateLimitWindow <= 0) {
		return fmt.Errorf("rate limit needs positive RATE_LIMIT_REQUESTS and RATE_LIMIT_WINDOW")
	}
	if s.MaxScoreBatch < 1 {
		return fmt.Errorf("MAX_SCORE_BATCH must be at least 1, got %d", s.MaxScoreBatch)
	}
	return nil
}

var validLogLevels = map[string]bool{
	"trace": true, "debug": true, "info": true, "warn": true,
	"error": true, "fatal": true, "panic": true, "disabled": true,
}

func (c *Config) validateLogging() error {
	level := strings.ToLower(c.Logging.Level)
	if !validLogLevels[level] {
		return fmt.Errorf("LOG_LEVEL must be one of trace, debug, info, warn, error, fatal, panic, disabled; got %q", c.Logging.Level)
	}
	switch strings.ToLower(c.Logging.Format) {
	case "json", "console":
		return nil
	default:
		return fmt.Errorf("LOG_FORMAT must be json or console, got %q", c.Logging.Format)
	}
}

// validateHTTPURL accepts http(s) base URLs with a host and no query.
func validateHTTPURL(rawURL, fieldName string) error {
	parsed, err := url.Parse(rawURL)
	if err != nil {
		return fmt.Errorf("%s failed to parse URL: %w", fieldName, err)
	}
	if parsed.Scheme != "http" && parsed.Scheme != "https" {
		return fmt.Errorf("%s scheme must be http or https, got: %q", fieldName, parsed.Scheme)
	}
	if parsed.Host == "" {
		return fmt.Errorf("%s host is required", fieldName)
	}
	if parsed.RawQuery != "" {
		return fmt.Errorf("%s should not contain query parameters", fieldName)
	}
	return nil
}
