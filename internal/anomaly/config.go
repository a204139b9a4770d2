// Stockwatch - Inventory Movement Anomaly Detection
// Copyright 2026 Tom F. (tomtom215)
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/tomtom215/stockwatch

package anomaly

import "github.com/tomtom215/stockwatch/internal/config"

// TrainConfigFromModel maps the model configuration section onto the
// hyperparameters. Zero values keep the defaults, except RandomState where
// zero is a valid seed and is always copied.
func TrainConfigFromModel(cfg *config.ModelConfig) TrainConfig {
	tc := DefaultTrainConfig()
	if cfg.NComponents > 0 {
		tc.NComponents = cfg.NComponents
	}
	if cfg.NClusters > 0 {
		tc.NClusters = cfg.NClusters
	}
	tc.RandomState = cfg.RandomState
	if cfg.NInit > 0 {
		tc.NInit = cfg.NInit
	}
	if cfg.MaxIter > 0 {
		tc.MaxIter = cfg.MaxIter
	}
	if cfg.AnomalyQuantile > 0 {
		tc.Quantile = cfg.AnomalyQuantile
	}
	return tc
}
