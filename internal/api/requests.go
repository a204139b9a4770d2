// Stockwatch - Inventory Movement Anomaly Detection
// Copyright 2026 Tom F. (tomtom215)
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/tomtom215/stockwatch

package api

import (
	"time"

	"github.com/tomtom215/stockwatch/internal/anomaly"
	"github.com/tomtom215/stockwatch/internal/features"
)

// ScoreRequest is the body of POST /api/v1/ml/score. Exactly one of the two
// fields must be present; an empty list counts as present.
type ScoreRequest struct {
	TransactionIDs []int64             `json:"transaction_ids" validate:"required_without=Transactions,excluded_with=Transactions"`
	Transactions   []features.RawEvent `json:"transactions" validate:"required_without=TransactionIDs,excluded_with=TransactionIDs"`
}

// size is the number of rows the request asks to score.
func (r *ScoreRequest) size() int {
	if r.TransactionIDs != nil {
		return len(r.TransactionIDs)
	}
	return len(r.Transactions)
}

// ScoreResponse is the data of a successful score call.
type ScoreResponse struct {
	Results      []anomaly.Result `json:"results"`
	ModelLoaded  bool             `json:"model_loaded"`
	ModelVersion int              `json:"model_version,omitempty"`
	Anomalies    int              `json:"anomalies"`
}

// ModelStatus is the data of GET /api/v1/ml/model.
type ModelStatus struct {
	Loaded         bool       `json:"loaded"`
	Version        int        `json:"version,omitempty"`
	Source         string     `json:"source,omitempty"`
	LoadedAt       *time.Time `json:"loaded_at,omitempty"`
	RunID          string     `json:"run_id,omitempty"`
	TrainedAt      *time.Time `json:"trained_at,omitempty"`
	Threshold      *float64   `json:"anomaly_score_threshold"`
	FeatureColumns []string   `json:"feature_columns,omitempty"`
	NComponents    int        `json:"n_components,omitempty"`
	NClusters      int        `json:"n_clusters,omitempty"`
	TrainingRows   int        `json:"training_rows,omitempty"`
}

func modelStatus(p *anomaly.Predictor, info anomaly.ModelInfo, loaded bool) ModelStatus {
	if !loaded {
		return ModelStatus{}
	}
	cfg := p.Config()
	loadedAt := info.LoadedAt
	status := ModelStatus{
		Loaded:         true,
		Version:        info.Version,
		Source:         info.Source,
		LoadedAt:       &loadedAt,
		RunID:          cfg.RunID,
		Threshold:      cfg.AnomalyScoreThreshold,
		FeatureColumns: cfg.FeatureColumns,
		NComponents:    cfg.NComponents,
		NClusters:      cfg.NClusters,
		TrainingRows:   cfg.TrainingRows,
	}
	if !cfg.TrainedAt.IsZero() {
		trainedAt := cfg.TrainedAt
		status.TrainedAt = &trainedAt
	}
	return status
}

// HealthStatus is the data of the health endpoints.
type HealthStatus struct {
	Status      string `json:"status"`
	ModelLoaded bool   `json:"model_loaded"`
	Database    string `json:"database,omitempty"`
}
