// Stockwatch - Inventory Movement Anomaly Detection
// Copyright 2026 Tom F. (tomtom215)
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/tomtom215/stockwatch

/*
Package main is the entry point for the Stockwatch scoring server.

The server loads a trained anomaly model and scores inventory movements over
HTTP. It can keep a local DuckDB snapshot of the export in sync, retrain on
a schedule and pick up models written by the offline pipeline.

# Application Architecture

Long-running work is supervised with Suture v4:

	RootSupervisor ("stockwatch")
	├── DataSupervisor ("data-layer")
	│   ├── export-sync (SYNC_ENABLED=true)
	│   └── model-watch (MODEL_WATCH=true)
	├── ModelSupervisor ("model-layer")
	│   └── train-service (TRAIN_ENABLED=true)
	└── APISupervisor ("api-layer")
	    └── http-server

Startup order:

 1. Configuration: Koanf v2 with defaults, config file and environment
 2. Logging: zerolog, bridged to slog for the supervisor
 3. Database: DuckDB snapshot of exported movements
 4. Model: initial load from MODEL_DIR or the newest MODEL_STORE_DIR version
 5. HTTP: Chi router with CORS, rate limiting and optional JWT
 6. Supervisor tree

The server starts without a model; scoring returns 503 until one is loaded
by the watcher, the training service or POST /api/v1/ml/model/reload.

# Signal Handling

SIGINT and SIGTERM cancel the root context. The HTTP server drains for
SERVER_SHUTDOWN_TIMEOUT, the other services stop, and the database is
closed last.

# Example Usage

	export MODEL_STORE_DIR=/data/models
	export SYNC_ENABLED=true
	export EXPORT_BASE_URL=http://inventory:8000
	export EXPORT_TOKEN_SECRET=...
	./stockwatch-server
*/
package main
