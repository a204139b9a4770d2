// Stockwatch - Inventory Movement Anomaly Detection
// Copyright 2026 Tom F. (tomtom215)
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/tomtom215/stockwatch

package storage

import (
	"context"
	"fmt"
	"time"

	"github.com/tomtom215/stockwatch/internal/anomaly"
)

// Source loads the model to serve. A fixed Dir takes precedence over the
// latest version of Store.
type Source struct {
	Dir   string
	Store *Store
}

// LoadPredictor implements anomaly.Loader.
func (s Source) LoadPredictor(ctx context.Context) (*anomaly.Predictor, anomaly.ModelInfo, error) {
	var (
		a       *anomaly.Artifact
		version int
		from    string
		err     error
	)
	switch {
	case s.Dir != "":
		if err = ctx.Err(); err != nil {
			return nil, anomaly.ModelInfo{}, err
		}
		a, err = LoadDir(s.Dir)
		from = s.Dir
	case s.Store != nil:
		a, version, err = s.Store.Load(ctx, 0)
		from = s.Store.Path(version)
	default:
		return nil, anomaly.ModelInfo{}, fmt.Errorf("%w: no model location configured", ErrArtifactNotFound)
	}
	if err != nil {
		return nil, anomaly.ModelInfo{}, err
	}

	p, err := anomaly.NewPredictor(a)
	if err != nil {
		return nil, anomaly.ModelInfo{}, fmt.Errorf("%w: %v", ErrArtifactNotFound, err)
	}
	return p, anomaly.ModelInfo{Version: version, Source: from, LoadedAt: time.Now().UTC()}, nil
}

// WatchDir returns the directory whose changes should trigger a reload.
func (s Source) WatchDir() string {
	if s.Dir != "" {
		return s.Dir
	}
	if s.Store != nil {
		return s.Store.BaseDir()
	}
	return ""
}
