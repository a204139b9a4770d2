// Stockwatch - Inventory Movement Anomaly Detection
// Copyright 2026 Tom F. (tomtom215)
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/tomtom215/stockwatch

/*
Package config loads Stockwatch configuration.

Configuration is layered with koanf v2. Later layers win:

 1. Built-in defaults (defaultConfig)
 2. A YAML file: the explicit path, then $CONFIG_PATH, config.yaml,
    config.yml and /etc/stockwatch/config.yaml
 3. Environment variables listed in envMappings

Unknown environment variables are ignored so that the host environment
cannot leak into the configuration.

# Sections

  - export: record store export API (base URL, token or token secret,
    page size, row cap, pacing)
  - model: artifact directory or versioned store, model hyperparameters
  - train: periodic retraining in the server
  - sync: periodic export sync into the local snapshot
  - database: DuckDB snapshot file
  - s3: artifact replication bucket
  - server, security: HTTP scoring surface
  - logging: zerolog level and format

# Environment Variables

A selection of the supported variables:

  - EXPORT_BASE_URL, EXPORT_TOKEN, EXPORT_TOKEN_SECRET, EXPORT_BATCH_SIZE
  - MODEL_DIR, MODEL_STORE_DIR, MODEL_N_COMPONENTS, MODEL_N_CLUSTERS
  - TRAIN_ENABLED, TRAIN_INTERVAL, SYNC_ENABLED, SYNC_INTERVAL
  - DUCKDB_PATH, S3_BUCKET, S3_ENDPOINT
  - HTTP_PORT, AUTH_MODE, JWT_SECRET, CORS_ORIGINS
  - LOG_LEVEL, LOG_FORMAT

Validate reports the first invalid setting.
*/
package config
