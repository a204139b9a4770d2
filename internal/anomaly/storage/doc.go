// Stockwatch - Inventory Movement Anomaly Detection
// Copyright 2026 Tom F. (tomtom215)
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/tomtom215/stockwatch

// Package storage persists trained anomaly models.
//
// # Artifact Directory
//
// A model is stored as a directory holding four files:
//
//	scaler.gob.gz   fitted standardization
//	pca.gob.gz      fitted principal components
//	kmeans.gob.gz   fitted centroids
//	config.json     columns, threshold, hyperparameters and vocabulary
//
// Each .gob.gz file is a gob-encoded envelope with the component's
// metadata (name, SHA-256 checksum, size) and its gzip-compressed gob
// payload. The checksum is verified on load.
//
// Directories are written next to their destination and renamed into
// place, so a reader never observes a half-written model. A directory
// with a missing or corrupt file loads as ErrArtifactNotFound.
//
// # Versioned Store
//
// Store keeps successive models under model_v{N} directories in a base
// directory, with monotonically increasing versions and pruning of old
// ones. Publisher replicates versions to S3-compatible object storage.
package storage
