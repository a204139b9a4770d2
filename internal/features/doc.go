// Stockwatch - Inventory Movement Anomaly Detection
// Copyright 2026 Tom F. (tomtom215)
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/tomtom215/stockwatch

// Package features turns raw inventory movement events into the numeric
// feature matrix consumed by the anomaly model.
//
// # Columns
//
// Every matrix carries the same eleven columns in a fixed order (see
// FeatureColumns). Training and scoring both go through Build, so the
// column layout a model was fitted on is always the layout it is scored
// with.
//
// # Categorical Encoding
//
// transaction_type and item_category are label-encoded. Without a
// Vocabulary the codes are batch-relative: the sorted distinct values of
// the batch are numbered from zero, so the same category can receive a
// different code in a different batch. Passing the Vocabulary frozen at
// training time gives stable codes; values never seen during training
// fall into a shared bucket equal to the vocabulary size.
//
// # Missing Values
//
// A required column that is absent from the entire batch is a hard error
// (MissingColumnError). Individual missing or non-finite cells are handled
// by the caller's MissingPolicy.
package features
