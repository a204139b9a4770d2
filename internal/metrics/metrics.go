// Stockwatch - Inventory Movement Anomaly Detection
// Copyright 2026 Tom F. (tomtom215)
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/tomtom215/stockwatch

package metrics

import (
	"strings"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

var (
	// Export client
	ExportPagesTotal = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "stockwatch_export_pages_total",
			Help: "Export pages requested, by outcome",
		},
		[]string{"status"}, // ok, error, open
	)

	ExportRowsTotal = promauto.NewCounter(
		prometheus.CounterOpts{
			Name: "stockwatch_export_rows_total",
			Help: "Raw events received from the export API",
		},
	)

	ExportPageDuration = promauto.NewHistogram(
		prometheus.HistogramOpts{
			Name:    "stockwatch_export_page_duration_seconds",
			Help:    "Duration of export page requests",
			Buckets: []float64{0.05, 0.1, 0.25, 0.5, 1, 2.5, 5, 10, 30, 60},
		},
	)

	ExportCircuitState = promauto.NewGauge(
		prometheus.GaugeOpts{
			Name: "stockwatch_export_circuit_state",
			Help: "Export circuit breaker state (0 closed, 1 half-open, 2 open)",
		},
	)

	// Sync
	SyncDuration = promauto.NewHistogram(
		prometheus.HistogramOpts{
			Name:    "stockwatch_sync_duration_seconds",
			Help:    "Duration of export sync runs",
			Buckets: []float64{1, 5, 10, 30, 60, 120, 300, 600},
		},
	)

	SyncRowsTotal = promauto.NewCounter(
		prometheus.CounterOpts{
			Name: "stockwatch_sync_rows_total",
			Help: "Rows written to the local snapshot by sync runs",
		},
	)

	SyncErrors = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "stockwatch_sync_errors_total",
			Help: "Failed sync runs, by error type",
		},
		[]string{"error_type"},
	)

	SyncLastSuccess = promauto.NewGauge(
		prometheus.GaugeOpts{
			Name: "stockwatch_sync_last_success_timestamp_seconds",
			Help: "Unix time of the last successful sync",
		},
	)

	// Training
	TrainingRuns = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "stockwatch_training_runs_total",
			Help: "Training runs, by outcome",
		},
		[]string{"status"}, // success, error, skipped
	)

	TrainingDuration = promauto.NewHistogram(
		prometheus.HistogramOpts{
			Name:    "stockwatch_training_duration_seconds",
			Help:    "Duration of model fits",
			Buckets: []float64{0.1, 0.5, 1, 5, 10, 30, 60, 300, 900},
		},
	)

	TrainingRows = promauto.NewGauge(
		prometheus.GaugeOpts{
			Name: "stockwatch_training_rows",
			Help: "Rows used by the last successful fit",
		},
	)

	TrainingRowsDropped = promauto.NewGauge(
		prometheus.GaugeOpts{
			Name: "stockwatch_training_rows_dropped",
			Help: "Rows dropped as incomplete by the last successful fit",
		},
	)

	ModelThreshold = promauto.NewGauge(
		prometheus.GaugeOpts{
			Name: "stockwatch_model_threshold",
			Help: "Anomaly score threshold of the active model",
		},
	)

	ModelVersion = promauto.NewGauge(
		prometheus.GaugeOpts{
			Name: "stockwatch_model_version",
			Help: "Store version of the active model (0 for a plain directory)",
		},
	)

	ModelLoads = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "stockwatch_model_loads_total",
			Help: "Artifact load attempts, by result",
		},
		[]string{"result"}, // success, error
	)

	ModelLoaded = promauto.NewGauge(
		prometheus.GaugeOpts{
			Name: "stockwatch_model_loaded",
			Help: "1 when a model is available for scoring",
		},
	)

	// Scoring
	ScoreRequests = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "stockwatch_score_requests_total",
			Help: "Scoring calls, by outcome",
		},
		[]string{"status"}, // ok, unavailable, schema, invalid
	)

	ScoreRowsTotal = promauto.NewCounter(
		prometheus.CounterOpts{
			Name: "stockwatch_score_rows_total",
			Help: "Rows scored",
		},
	)

	ScoreAnomaliesTotal = promauto.NewCounter(
		prometheus.CounterOpts{
			Name: "stockwatch_score_anomalies_total",
			Help: "Rows flagged as anomalous",
		},
	)

	ScoreDuration = promauto.NewHistogram(
		prometheus.HistogramOpts{
			Name:    "stockwatch_score_duration_seconds",
			Help:    "Duration of scoring calls",
			Buckets: []float64{0.0005, 0.001, 0.005, 0.01, 0.05, 0.1, 0.5, 1, 5},
		},
	)

	// Database
	DBQueryDuration = promauto.NewHistogramVec(
		prometheus.HistogramOpts{
			Name:    "duckdb_query_duration_seconds",
			Help:    "Duration of DuckDB queries in seconds",
			Buckets: prometheus.DefBuckets,
		},
		[]string{"operation", "table"},
	)

	DBQueryErrors = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "duckdb_query_errors_total",
			Help: "Total number of DuckDB query errors",
		},
		[]string{"operation", "table"},
	)

	// HTTP
	APIRequestsTotal = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "api_requests_total",
			Help: "Total number of API requests",
		},
		[]string{"method", "endpoint", "status_code"},
	)

	APIRequestDuration = promauto.NewHistogramVec(
		prometheus.HistogramOpts{
			Name:    "api_request_duration_seconds",
			Help:    "API request duration in seconds",
			Buckets: []float64{0.01, 0.025, 0.05, 0.1, 0.25, 0.5, 1, 2.5, 5, 10},
		},
		[]string{"method", "endpoint"},
	)

	APIActiveRequests = promauto.NewGauge(
		prometheus.GaugeOpts{
			Name: "api_active_requests",
			Help: "Current number of active API requests",
		},
	)

	APIRateLimitHits = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "api_rate_limit_hits_total",
			Help: "Total number of rate limit rejections",
		},
		[]string{"endpoint"},
	)
)

// RecordExportPage records one export page request.
func RecordExportPage(status string, rows int, duration time.Duration) {
	ExportPagesTotal.WithLabelValues(status).Inc()
	ExportPageDuration.Observe(duration.Seconds())
	if rows > 0 {
		ExportRowsTotal.Add(float64(rows))
	}
}

// RecordSyncOperation records a sync run.
func RecordSyncOperation(duration time.Duration, rows int, err error) {
	SyncDuration.Observe(duration.Seconds())
	SyncRowsTotal.Add(float64(rows))
	if err != nil {
		SyncErrors.WithLabelValues(classifySyncError(err)).Inc()
		return
	}
	SyncLastSuccess.Set(float64(time.Now().Unix()))
}

func classifySyncError(err error) string {
	msg := strings.ToLower(err.Error())
	switch {
	case strings.Contains(msg, "circuit"):
		return "circuit_open"
	case strings.Contains(msg, "export"):
		return "export_api"
	case strings.Contains(msg, "database"), strings.Contains(msg, "duckdb"):
		return "database"
	case strings.Contains(msg, "context"):
		return "canceled"
	default:
		return "other"
	}
}

// RecordTraining records a training run. Pass a nil err and the fit
// statistics on success.
func RecordTraining(duration time.Duration, rows, dropped int, threshold float64, err error) {
	if err != nil {
		TrainingRuns.WithLabelValues("error").Inc()
		return
	}
	TrainingRuns.WithLabelValues("success").Inc()
	TrainingDuration.Observe(duration.Seconds())
	TrainingRows.Set(float64(rows))
	TrainingRowsDropped.Set(float64(dropped))
	ModelThreshold.Set(threshold)
}

// RecordTrainingSkipped records a run that did not fit, for example
// because the snapshot held too few rows.
func RecordTrainingSkipped() {
	TrainingRuns.WithLabelValues("skipped").Inc()
}

// RecordModelLoad records an artifact load attempt. version is ignored on
// failure.
func RecordModelLoad(version int, err error) {
	if err != nil {
		ModelLoads.WithLabelValues("error").Inc()
		return
	}
	ModelLoads.WithLabelValues("success").Inc()
	ModelLoaded.Set(1)
	ModelVersion.Set(float64(version))
}

// RecordScore records a scoring call.
func RecordScore(status string, rows, anomalies int, duration time.Duration) {
	ScoreRequests.WithLabelValues(status).Inc()
	ScoreDuration.Observe(duration.Seconds())
	ScoreRowsTotal.Add(float64(rows))
	ScoreAnomaliesTotal.Add(float64(anomalies))
}

// RecordDBQuery records a database query.
func RecordDBQuery(operation, table string, duration time.Duration, err error) {
	DBQueryDuration.WithLabelValues(operation, table).Observe(duration.Seconds())
	if err != nil {
		DBQueryErrors.WithLabelValues(operation, table).Inc()
	}
}

// RecordAPIRequest records an API request.
func RecordAPIRequest(method, endpoint, statusCode string, duration time.Duration) {
	APIRequestsTotal.WithLabelValues(method, endpoint, statusCode).Inc()
	APIRequestDuration.WithLabelValues(method, endpoint).Observe(duration.Seconds())
}

// TrackActiveRequest moves the in-flight request gauge.
func TrackActiveRequest(inc bool) {
	if inc {
		APIActiveRequests.Inc()
	} else {
		APIActiveRequests.Dec()
	}
}
