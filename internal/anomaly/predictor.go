// Stockwatch - Inventory Movement Anomaly Detection
// Copyright 2026 Tom F. (tomtom215)
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/tomtom215/stockwatch

package anomaly

import (
	"fmt"
	"math"

	"github.com/tomtom215/stockwatch/internal/features"
)

// Result is the score of one transaction.
type Result struct {
	TransactionID int64   `json:"transaction_id"`
	AnomalyScore  float64 `json:"anomaly_score"`
	ClusterID     int     `json:"cluster_id"`
	IsAnomaly     bool    `json:"is_anomaly"`
}

// Predictor scores feature matrices with a loaded artifact. It never
// modifies the artifact and is safe for concurrent use.
type Predictor struct {
	artifact *Artifact
}

// NewPredictor validates the artifact and wraps it for scoring.
func NewPredictor(a *Artifact) (*Predictor, error) {
	if err := a.Validate(); err != nil {
		return nil, err
	}
	return &Predictor{artifact: a}, nil
}

// Config returns the artifact configuration.
func (p *Predictor) Config() ArtifactConfig {
	return p.artifact.Config
}

// Artifact returns the underlying artifact. Callers must not modify it.
func (p *Predictor) Artifact() *Artifact {
	return p.artifact
}

// Score scores every row of m. Columns are selected by name in the order
// the model was trained on; a missing column yields a SchemaError and a
// row whose width differs from the header is an error. Non-finite values
// are scored as zero.
func (p *Predictor) Score(m *features.Matrix) ([]Result, error) {
	if m.Len() == 0 {
		return []Result{}, nil
	}

	for i, r := range m.Rows {
		if len(r) != len(m.Columns) {
			return nil, fmt.Errorf("row %d has %d values, want %d", i, len(r), len(m.Columns))
		}
	}

	rows, missing := m.Select(p.artifact.Config.FeatureColumns)
	if len(missing) > 0 {
		return nil, &SchemaError{Missing: missing}
	}
	for _, r := range rows {
		for j, v := range r {
			if math.IsNaN(v) || math.IsInf(v, 0) {
				r[j] = 0
			}
		}
	}

	recon, clusters, dists := p.artifact.rawScores(rows)
	scale := p.artifact.Config.DistanceScale
	if scale <= 0 {
		scale = distanceScaleOf(dists)
	}
	scores := combineScores(recon, dists, scale)
	threshold, calibrated := p.artifact.Threshold()

	results := make([]Result, len(rows))
	for i := range rows {
		id := int64(i)
		if i < len(m.IDs) {
			id = m.IDs[i]
		}
		results[i] = Result{
			TransactionID: id,
			AnomalyScore:  scores[i],
			ClusterID:     clusters[i],
			IsAnomaly:     calibrated && scores[i] > threshold,
		}
	}
	return results, nil
}

// BuildFeatures builds the feature matrix of raw events the way the model
// expects it: categories use the vocabulary stored in the artifact when
// there is one, and missing values follow the artifact's scoring policy,
// zero-fill unless stated otherwise.
func (p *Predictor) BuildFeatures(events []features.RawEvent) (*features.Matrix, error) {
	policy := features.MissingZeroFill
	if s := p.artifact.Config.ScoreMissingPolicy; s != "" {
		if parsed, err := features.ParseMissingPolicy(s); err == nil {
			policy = parsed
		}
	}
	return features.Build(events, features.Options{
		OnMissing:  policy,
		Vocabulary: p.artifact.Config.Vocabulary,
	})
}

// ScoreEvents builds features for raw events and scores them.
func (p *Predictor) ScoreEvents(events []features.RawEvent) ([]Result, error) {
	m, err := p.BuildFeatures(events)
	if err != nil {
		return nil, err
	}
	return p.Score(m)
}

// Summary counts anomalies in a result set.
func Summary(results []Result) (anomalies int, maxScore float64) {
	for _, r := range results {
		if r.IsAnomaly {
			anomalies++
		}
		if r.AnomalyScore > maxScore {
			maxScore = r.AnomalyScore
		}
	}
	return anomalies, maxScore
}
