// Stockwatch - Inventory Movement Anomaly Detection
// Copyright 2026 Tom F. (tomtom215)
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/tomtom215/stockwatch

package services

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/rs/zerolog"

	"github.com/tomtom215/stockwatch/internal/anomaly"
	"github.com/tomtom215/stockwatch/internal/features"
	"github.com/tomtom215/stockwatch/internal/metrics"
)

// ErrTooFewRows is returned by TrainOnce when the snapshot is smaller than
// the configured minimum.
var ErrTooFewRows = errors.New("too few rows to train")

// EventSource returns the full snapshot to train on.
type EventSource interface {
	AllEvents(ctx context.Context) ([]features.RawEvent, error)
}

// ArtifactStore persists numbered model versions.
type ArtifactStore interface {
	Save(ctx context.Context, a *anomaly.Artifact) (int, error)
	Prune(ctx context.Context, keep int) ([]int, error)
}

// ArtifactPusher replicates a saved version, typically to S3.
type ArtifactPusher interface {
	Push(ctx context.Context, version int) (int, error)
}

// TrainServiceConfig controls scheduled retraining.
type TrainServiceConfig struct {
	Train anomaly.TrainConfig

	OnStartup bool

	// Interval between runs. Zero means 24 hours.
	Interval time.Duration

	// MinRows skips a run on a smaller snapshot.
	MinRows int

	// Timeout bounds a single run. Zero means 30 minutes.
	Timeout time.Duration

	// KeepVersions prunes older store versions after a save. Zero keeps all.
	KeepVersions int
}

// TrainService refits the model from the local snapshot and publishes each
// new version to the serving Holder. A failed run leaves the served model
// untouched.
type TrainService struct {
	events EventSource
	store  ArtifactStore
	pusher ArtifactPusher
	holder *anomaly.Holder
	config TrainServiceConfig
	logger zerolog.Logger
	name   string
}

// NewTrainService creates the training loop. pusher may be nil.
//
//nolint:gocritic // zerolog.Logger is designed to be passed by value
func NewTrainService(events EventSource, store ArtifactStore, pusher ArtifactPusher, holder *anomaly.Holder, cfg TrainServiceConfig, logger zerolog.Logger) *TrainService {
	if cfg.Interval <= 0 {
		cfg.Interval = 24 * time.Hour
	}
	if cfg.Timeout <= 0 {
		cfg.Timeout = 30 * time.Minute
	}
	return &TrainService{
		events: events,
		store:  store,
		pusher: pusher,
		holder: holder,
		config: cfg,
		logger: logger.With().Str("service", "train").Logger(),
		name:   "train-service",
	}
}

// Serve implements suture.Service.
func (s *TrainService) Serve(ctx context.Context) error {
	s.logger.Info().
		Bool("on_startup", s.config.OnStartup).
		Dur("interval", s.config.Interval).
		Int("min_rows", s.config.MinRows).
		Msg("Training service starting")

	if s.config.OnStartup {
		s.runCycle(ctx)
	}

	ticker := time.NewTicker(s.config.Interval)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			s.logger.Info().Msg("Training service shutting down")
			return ctx.Err()
		case <-ticker.C:
			s.runCycle(ctx)
		}
	}
}

func (s *TrainService) runCycle(ctx context.Context) {
	version, err := s.TrainOnce(ctx)
	switch {
	case errors.Is(err, ErrTooFewRows):
		s.logger.Info().Err(err).Msg("Training skipped")
	case err != nil && ctx.Err() == nil:
		s.logger.Warn().Err(err).Msg("Training failed, keeping current model")
	case err == nil:
		s.logger.Info().Int("version", version).Msg("New model published")
	}
}

// TrainOnce fits a model on the current snapshot, saves it as a new store
// version and publishes it. It returns the new version.
func (s *TrainService) TrainOnce(ctx context.Context) (int, error) {
	ctx, cancel := context.WithTimeout(ctx, s.config.Timeout)
	defer cancel()

	events, err := s.events.AllEvents(ctx)
	if err != nil {
		return 0, fmt.Errorf("read snapshot: %w", err)
	}
	if len(events) == 0 || len(events) < s.config.MinRows {
		metrics.RecordTrainingSkipped()
		return 0, fmt.Errorf("%w: have %d, need %d", ErrTooFewRows, len(events), max(s.config.MinRows, 1))
	}

	res, err := anomaly.TrainEvents(ctx, events, s.config.Train)
	if err != nil {
		metrics.RecordTraining(0, 0, 0, 0, err)
		return 0, fmt.Errorf("train: %w", err)
	}
	threshold, _ := res.Artifact.Threshold()
	metrics.RecordTraining(res.Duration, len(res.IDs), res.RowsDropped, threshold, nil)

	p, err := anomaly.NewPredictor(res.Artifact)
	if err != nil {
		return 0, fmt.Errorf("build predictor: %w", err)
	}

	version, err := s.store.Save(ctx, res.Artifact)
	if err != nil {
		return 0, fmt.Errorf("save artifact: %w", err)
	}

	s.logger.Info().
		Int("version", version).
		Int("rows", len(res.IDs)).
		Int("rows_dropped", res.RowsDropped).
		Float64("threshold", threshold).
		Dur("duration", res.Duration).
		Msg("Model trained")

	if s.config.KeepVersions > 0 {
		removed, pruneErr := s.store.Prune(ctx, s.config.KeepVersions)
		if pruneErr != nil {
			s.logger.Warn().Err(pruneErr).Msg("Pruning old model versions failed")
		} else if len(removed) > 0 {
			s.logger.Debug().Ints("removed", removed).Msg("Pruned old model versions")
		}
	}

	if s.pusher != nil {
		if files, pushErr := s.pusher.Push(ctx, version); pushErr != nil {
			s.logger.Warn().Err(pushErr).Int("version", version).Msg("Replicating model to S3 failed")
		} else {
			s.logger.Debug().Int("version", version).Int("files", files).Msg("Model replicated to S3")
		}
	}

	s.holder.Publish(p, anomaly.ModelInfo{Version: version, Source: "train"})
	metrics.RecordModelLoad(version, nil)
	return version, nil
}

// String names the service in supervisor logs.
func (s *TrainService) String() string {
	return s.name
}
