// Stockwatch - Inventory Movement Anomaly Detection
// Copyright 2026 Tom F. (tomtom215)
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/tomtom215/stockwatch

// Package anomaly fits and applies the inventory movement anomaly model.
//
// # Model
//
// The model is a fixed three stage pipeline fitted on the feature matrix
// produced by package features:
//
//   - Scaler: per-column standardization (population standard deviation,
//     zero-variance columns keep a scale of 1)
//   - PCA: principal components computed from the SVD of the standardized,
//     centered training matrix
//   - KMeans: k-means++ seeded clustering in the reduced space with
//     multiple restarts, keeping the lowest inertia
//
// # Scoring
//
// The anomaly score of a row is
//
//	reconstruction_error + 0.5 * centroid_distance / distance_scale
//
// where reconstruction_error is the mean squared difference between the
// standardized row and its PCA reconstruction, centroid_distance is the
// Euclidean distance to the nearest centroid, and distance_scale is the
// population standard deviation of the training distances (plus 1e-8).
// The distance scale is frozen at training time, so the score of a row
// does not depend on the batch it is scored with.
//
// A row is anomalous when its score is strictly greater than the
// threshold, the 95th percentile of the training scores.
//
// # Determinism
//
// All randomness comes from one generator seeded with the configured
// random state. Training the same matrix with the same configuration
// produces identical stages and threshold; only the run identifier and
// timestamp differ.
//
// # Thread Safety
//
// Artifacts and Predictors are read-only once built and may be shared by
// any number of goroutines. Holder publishes a new Predictor atomically
// so in-flight requests keep the model they started with.
package anomaly
