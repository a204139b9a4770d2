// Stockwatch - Inventory Movement Anomaly Detection
// Copyright 2026 Tom F. (tomtom215)
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/tomtom215/stockwatch

package anomaly

import (
	"context"
	"fmt"
	"math"
	"math/rand"
	"slices"
	"time"

	"github.com/google/uuid"
	"gonum.org/v1/gonum/mat"

	"github.com/tomtom215/stockwatch/internal/features"
)

// TrainConfig contains the model hyperparameters.
type TrainConfig struct {
	// NComponents is the requested PCA dimension. The fitted dimension is
	// capped by the number of training rows and feature columns.
	NComponents int

	// NClusters is the requested cluster count, capped by the number of
	// training rows.
	NClusters int

	// RandomState seeds the single random stream used by clustering.
	RandomState int64

	// NInit is the number of k-means restarts.
	NInit int

	// MaxIter bounds the Lloyd iterations of each restart.
	MaxIter int

	// Tol is the convergence tolerance, relative to the mean variance of
	// the projected data.
	Tol float64

	// Quantile of the training scores used as the anomaly threshold.
	Quantile float64
}

// DefaultTrainConfig returns the production hyperparameters.
func DefaultTrainConfig() TrainConfig {
	return TrainConfig{
		NComponents: 8,
		NClusters:   5,
		RandomState: 42,
		NInit:       10,
		MaxIter:     300,
		Tol:         1e-4,
		Quantile:    0.95,
	}
}

// Validate checks the hyperparameters.
func (c TrainConfig) Validate() error {
	if c.NComponents < 1 {
		return fmt.Errorf("n_components must be at least 1, got %d", c.NComponents)
	}
	if c.NClusters < 1 {
		return fmt.Errorf("n_clusters must be at least 1, got %d", c.NClusters)
	}
	if c.NInit < 1 {
		return fmt.Errorf("n_init must be at least 1, got %d", c.NInit)
	}
	if c.MaxIter < 1 {
		return fmt.Errorf("max_iter must be at least 1, got %d", c.MaxIter)
	}
	if c.Tol < 0 {
		return fmt.Errorf("tol must not be negative, got %v", c.Tol)
	}
	if c.Quantile <= 0 || c.Quantile > 1 {
		return fmt.Errorf("anomaly quantile must be in (0, 1], got %v", c.Quantile)
	}
	return nil
}

// TrainResult is a fitted artifact together with its training scores.
type TrainResult struct {
	Artifact *Artifact

	// IDs, Scores and Clusters describe the rows actually used, in input
	// order.
	IDs      []int64
	Scores   []float64
	Clusters []int

	// RowsDropped counts rows removed for holding non-finite values.
	RowsDropped int

	Duration time.Duration
}

// Train fits scaler, PCA and k-means on m and calibrates the anomaly
// threshold. Rows holding NaN or infinite values are dropped first;
// ErrEmptyTrainingSet is returned when none remain.
func Train(ctx context.Context, m *features.Matrix, cfg TrainConfig) (*TrainResult, error) {
	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	start := time.Now()

	cols := len(m.Columns)
	if cols == 0 {
		return nil, fmt.Errorf("feature matrix has no columns")
	}
	for i, r := range m.Rows {
		if len(r) != cols {
			return nil, fmt.Errorf("row %d has %d values, want %d", i, len(r), cols)
		}
	}

	rows, ids := finiteRows(m)
	if len(rows) == 0 {
		return nil, ErrEmptyTrainingSet
	}

	flat := make([]float64, 0, len(rows)*cols)
	for _, r := range rows {
		flat = append(flat, r...)
	}
	x := mat.NewDense(len(rows), cols, flat)

	scaler := FitScaler(x)
	pca, err := FitPCA(scaler.Transform(x), min(cfg.NComponents, len(rows), cols))
	if err != nil {
		return nil, fmt.Errorf("fit pca: %w", err)
	}

	projected := make([][]float64, len(rows))
	std := make([]float64, cols)
	for i, r := range rows {
		scaler.TransformRow(std, r)
		projected[i] = make([]float64, pca.NComponents())
		pca.Project(projected[i], std)
	}

	//nolint:gosec // G404: math/rand is acceptable for ML initialization (not security)
	rng := rand.New(rand.NewSource(cfg.RandomState))
	km, _, err := FitKMeans(ctx, projected, KMeansConfig{
		K:       cfg.NClusters,
		NInit:   cfg.NInit,
		MaxIter: cfg.MaxIter,
		Tol:     cfg.Tol,
	}, rng)
	if err != nil {
		return nil, fmt.Errorf("fit kmeans: %w", err)
	}

	artifact := &Artifact{
		Scaler: scaler,
		PCA:    pca,
		KMeans: km,
		Config: ArtifactConfig{
			NComponents:     pca.NComponents(),
			NClusters:       km.K(),
			RandomState:     cfg.RandomState,
			FeatureColumns:  slices.Clone(m.Columns),
			AnomalyQuantile: cfg.Quantile,
			TrainingRows:    len(rows),
			RunID:           uuid.NewString(),
			TrainedAt:       time.Now().UTC(),
		},
	}

	recon, clusters, dists := artifact.rawScores(rows)
	artifact.Config.DistanceScale = distanceScaleOf(dists)
	scores := combineScores(recon, dists, artifact.Config.DistanceScale)
	threshold := Quantile(scores, cfg.Quantile)
	artifact.Config.AnomalyScoreThreshold = &threshold

	return &TrainResult{
		Artifact:    artifact,
		IDs:         ids,
		Scores:      scores,
		Clusters:    clusters,
		RowsDropped: m.Len() - len(rows),
		Duration:    time.Since(start),
	}, nil
}

// TrainEvents builds features for a batch of raw events and trains on
// them. The categorical vocabulary of the batch is frozen into the
// artifact so later scoring batches encode categories the same way.
func TrainEvents(ctx context.Context, events []features.RawEvent, cfg TrainConfig) (*TrainResult, error) {
	vocab := features.FitVocabulary(events)
	m, err := features.Build(events, features.Options{
		OnMissing:  features.MissingDrop,
		Vocabulary: vocab,
	})
	if err != nil {
		return nil, err
	}

	res, err := Train(ctx, m, cfg)
	if err != nil {
		return nil, err
	}
	res.RowsDropped += len(events) - m.Len()
	res.Artifact.Config.Vocabulary = vocab
	res.Artifact.Config.TrainMissingPolicy = string(features.MissingDrop)
	res.Artifact.Config.ScoreMissingPolicy = string(features.MissingZeroFill)
	return res, nil
}

func finiteRows(m *features.Matrix) ([][]float64, []int64) {
	rows := make([][]float64, 0, m.Len())
	ids := make([]int64, 0, m.Len())
	for i, r := range m.Rows {
		if !allFinite(r) {
			continue
		}
		rows = append(rows, r)
		if i < len(m.IDs) {
			ids = append(ids, m.IDs[i])
		} else {
			ids = append(ids, int64(i))
		}
	}
	return rows, ids
}

func allFinite(row []float64) bool {
	for _, v := range row {
		if math.IsNaN(v) || math.IsInf(v, 0) {
			return false
		}
	}
	return true
}
