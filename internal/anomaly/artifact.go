// Stockwatch - Inventory Movement Anomaly Detection
// Copyright 2026 Tom F. (tomtom215)
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/tomtom215/stockwatch

package anomaly

import (
	"fmt"
	"math"
	"slices"
	"time"

	"gonum.org/v1/gonum/stat"

	"github.com/tomtom215/stockwatch/internal/features"
)

// Artifact is a trained model: the three fitted stages plus the
// configuration needed to score with them.
type Artifact struct {
	Scaler *Scaler
	PCA    *PCA
	KMeans *KMeans
	Config ArtifactConfig
}

// ArtifactConfig is the JSON-serializable part of an artifact.
type ArtifactConfig struct {
	NComponents    int      `json:"n_components"`
	NClusters      int      `json:"n_clusters"`
	RandomState    int64    `json:"random_state"`
	FeatureColumns []string `json:"feature_columns"`

	// AnomalyScoreThreshold is null when the model was stored without a
	// calibrated threshold; such a model never flags a row.
	AnomalyScoreThreshold *float64 `json:"anomaly_score_threshold"`

	// DistanceScale is the frozen centroid distance normalizer. Zero means
	// the artifact predates it and the scoring batch is used instead.
	DistanceScale float64 `json:"distance_scale,omitempty"`

	AnomalyQuantile    float64              `json:"anomaly_quantile,omitempty"`
	Vocabulary         *features.Vocabulary `json:"vocabulary,omitempty"`
	TrainMissingPolicy string               `json:"train_missing_policy,omitempty"`
	ScoreMissingPolicy string               `json:"score_missing_policy,omitempty"`
	TrainingRows       int                  `json:"training_rows,omitempty"`
	RunID              string               `json:"run_id,omitempty"`
	TrainedAt          time.Time            `json:"trained_at"`
}

// Threshold returns the calibrated anomaly threshold, if any.
func (a *Artifact) Threshold() (float64, bool) {
	if a.Config.AnomalyScoreThreshold == nil {
		return 0, false
	}
	return *a.Config.AnomalyScoreThreshold, true
}

// Validate checks that the stages fit together.
func (a *Artifact) Validate() error {
	if a == nil || a.Scaler == nil || a.PCA == nil || a.KMeans == nil {
		return fmt.Errorf("%w: missing component", ErrInvalidArtifact)
	}
	cols := len(a.Config.FeatureColumns)
	if cols == 0 {
		return fmt.Errorf("%w: no feature columns", ErrInvalidArtifact)
	}
	if len(a.Scaler.Mean) != cols || len(a.Scaler.Scale) != cols {
		return fmt.Errorf("%w: scaler has %d columns, want %d", ErrInvalidArtifact, len(a.Scaler.Mean), cols)
	}
	if a.PCA.NComponents() == 0 || len(a.PCA.Mean) != cols {
		return fmt.Errorf("%w: pca does not match %d columns", ErrInvalidArtifact, cols)
	}
	for _, comp := range a.PCA.Components {
		if len(comp) != cols {
			return fmt.Errorf("%w: pca component has %d loadings, want %d", ErrInvalidArtifact, len(comp), cols)
		}
	}
	if a.KMeans.K() == 0 {
		return fmt.Errorf("%w: no centroids", ErrInvalidArtifact)
	}
	for _, c := range a.KMeans.Centroids {
		if len(c) != a.PCA.NComponents() {
			return fmt.Errorf("%w: centroid has %d dimensions, want %d", ErrInvalidArtifact, len(c), a.PCA.NComponents())
		}
	}
	if t := a.Config.AnomalyScoreThreshold; t != nil && (math.IsNaN(*t) || math.IsInf(*t, 0)) {
		return fmt.Errorf("%w: non-finite threshold", ErrInvalidArtifact)
	}
	return nil
}

// Columns returns a copy of the feature columns the model expects.
func (a *Artifact) Columns() []string {
	return slices.Clone(a.Config.FeatureColumns)
}

// rawScores returns the reconstruction error, nearest cluster and
// centroid distance of each standardized-then-projected row. rows must be
// finite and in model column order.
func (a *Artifact) rawScores(rows [][]float64) (recon []float64, clusters []int, dists []float64) {
	cols := len(a.Config.FeatureColumns)
	std := make([]float64, cols)
	proj := make([]float64, a.PCA.NComponents())

	recon = make([]float64, len(rows))
	clusters = make([]int, len(rows))
	dists = make([]float64, len(rows))
	for i, row := range rows {
		a.Scaler.TransformRow(std, row)
		a.PCA.Project(proj, std)
		recon[i] = a.PCA.ReconstructionError(std, proj)
		clusters[i], dists[i] = a.KMeans.Nearest(proj)
	}
	return recon, clusters, dists
}

func combineScores(recon, dists []float64, distanceScale float64) []float64 {
	scores := make([]float64, len(recon))
	for i := range recon {
		scores[i] = recon[i] + 0.5*dists[i]/distanceScale
	}
	return scores
}

func distanceScaleOf(dists []float64) float64 {
	return popStd(dists) + 1e-8
}

func popStd(xs []float64) float64 {
	if len(xs) == 0 {
		return 0
	}
	_, variance := stat.PopMeanVariance(xs, nil)
	return math.Sqrt(variance)
}

// Quantile returns the q-quantile of xs with linear interpolation between
// the two nearest ranks (rank q*(n-1)). xs is not modified.
//
// stat.Quantile is not used because neither of its estimators interpolates
// on that rank.
func Quantile(xs []float64, q float64) float64 {
	if len(xs) == 0 {
		return math.NaN()
	}
	sorted := slices.Clone(xs)
	slices.Sort(sorted)

	rank := q * float64(len(sorted)-1)
	lo := int(math.Floor(rank))
	if lo >= len(sorted)-1 {
		return sorted[len(sorted)-1]
	}
	if lo < 0 {
		return sorted[0]
	}
	frac := rank - float64(lo)
	return sorted[lo] + frac*(sorted[lo+1]-sorted[lo])
}
