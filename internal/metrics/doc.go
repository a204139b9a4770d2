// Stockwatch - Inventory Movement Anomaly Detection
// Copyright 2026 Tom F. (tomtom215)
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/tomtom215/stockwatch

/*
Package metrics defines the Prometheus instruments exported at /metrics.

All instruments are registered on the default registry through promauto.
Callers normally use the Record helpers rather than the vectors directly.

# Available Metrics

Export client:
  - stockwatch_export_pages_total{status}: pages requested (ok, error, open)
  - stockwatch_export_rows_total: rows received
  - stockwatch_export_page_duration_seconds: page latency
  - stockwatch_export_circuit_state: 0 closed, 1 half-open, 2 open

Sync:
  - stockwatch_sync_duration_seconds, stockwatch_sync_rows_total
  - stockwatch_sync_errors_total{error_type}
  - stockwatch_sync_last_success_timestamp_seconds

Training:
  - stockwatch_training_runs_total{status}
  - stockwatch_training_duration_seconds
  - stockwatch_training_rows, stockwatch_training_rows_dropped
  - stockwatch_model_threshold, stockwatch_model_version
  - stockwatch_model_loads_total{result}, stockwatch_model_loaded

Scoring:
  - stockwatch_score_requests_total{status}
  - stockwatch_score_rows_total, stockwatch_score_anomalies_total
  - stockwatch_score_duration_seconds

Database and HTTP:
  - duckdb_query_duration_seconds{operation,table}
  - duckdb_query_errors_total{operation,table}
  - api_requests_total{method,endpoint,status_code}
  - api_request_duration_seconds{method,endpoint}
  - api_active_requests, api_rate_limit_hits_total{endpoint}
*/
package metrics
