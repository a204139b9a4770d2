// Stockwatch - Inventory Movement Anomaly Detection
// Copyright 2026 Tom F. (tomtom215)
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/tomtom215/stockwatch

package anomaly

import (
	"errors"
	"fmt"
	"strings"
)

var (
	// ErrEmptyTrainingSet is returned when no finite rows remain to fit on.
	ErrEmptyTrainingSet = errors.New("no rows available for training")

	// ErrModelUnavailable is returned when scoring is requested before any
	// model has been loaded.
	ErrModelUnavailable = errors.New("no anomaly model loaded")

	// ErrInvalidArtifact is returned when an artifact's components disagree
	// with each other.
	ErrInvalidArtifact = errors.New("invalid model artifact")
)

// SchemaError is returned when a matrix lacks columns the model was
// trained on.
type SchemaError struct {
	Missing []string
}

func (e *SchemaError) Error() string {
	return fmt.Sprintf("feature matrix is missing model columns: %s", strings.Join(e.Missing, ", "))
}
