// Stockwatch - Inventory Movement Anomaly Detection
// Copyright 2026 Tom F. (tomtom215)
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/tomtom215/stockwatch

package services

import (
	"context"
	"fmt"
	"time"

	"github.com/rs/zerolog"

	"github.com/tomtom215/stockwatch/internal/features"
	"github.com/tomtom215/stockwatch/internal/metrics"
)

// PageFetcher walks the paged export endpoint.
type PageFetcher interface {
	Pages(ctx context.Context, fn func(rows []features.RawEvent) error) (int, error)
}

// EventSink stores exported events, replacing rows with the same id.
type EventSink interface {
	UpsertEvents(ctx context.Context, events []features.RawEvent) (int, error)
}

// SyncServiceConfig controls the export sync loop.
type SyncServiceConfig struct {
	// Interval between syncs. Zero means 15 minutes.
	Interval time.Duration

	// OnStartup runs one sync before the first tick.
	OnStartup bool

	// Timeout bounds a single sync. Zero means 10 minutes.
	Timeout time.Duration
}

// SyncService copies the record store's export into the local snapshot on
// a schedule. A failed cycle is logged and retried on the next tick.
type SyncService struct {
	fetcher PageFetcher
	sink    EventSink
	config  SyncServiceConfig
	logger  zerolog.Logger
	name    string
}

// NewSyncService creates the sync loop.
//
//nolint:gocritic // zerolog.Logger is designed to be passed by value
func NewSyncService(fetcher PageFetcher, sink EventSink, cfg SyncServiceConfig, logger zerolog.Logger) *SyncService {
	if cfg.Interval <= 0 {
		cfg.Interval = 15 * time.Minute
	}
	if cfg.Timeout <= 0 {
		cfg.Timeout = 10 * time.Minute
	}
	return &SyncService{
		fetcher: fetcher,
		sink:    sink,
		config:  cfg,
		logger:  logger.With().Str("service", "sync").Logger(),
		name:    "export-sync",
	}
}

// Serve implements suture.Service.
func (s *SyncService) Serve(ctx context.Context) error {
	s.logger.Info().
		Bool("on_startup", s.config.OnStartup).
		Dur("interval", s.config.Interval).
		Msg("Export sync starting")

	if s.config.OnStartup {
		s.runCycle(ctx)
	}

	ticker := time.NewTicker(s.config.Interval)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			s.logger.Info().Msg("Export sync shutting down")
			return ctx.Err()
		case <-ticker.C:
			s.runCycle(ctx)
		}
	}
}

func (s *SyncService) runCycle(ctx context.Context) {
	rows, err := s.SyncOnce(ctx)
	if err != nil && ctx.Err() == nil {
		s.logger.Warn().Err(err).Int("rows", rows).Msg("Export sync failed, retrying on next tick")
	}
}

// SyncOnce runs one full export walk. Rows stored before a failure stay
// stored; rows is the number upserted either way.
func (s *SyncService) SyncOnce(ctx context.Context) (rows int, err error) {
	ctx, cancel := context.WithTimeout(ctx, s.config.Timeout)
	defer cancel()

	start := time.Now()
	defer func() {
		metrics.RecordSyncOperation(time.Since(start), rows, err)
	}()

	_, err = s.fetcher.Pages(ctx, func(page []features.RawEvent) error {
		n, upsertErr := s.sink.UpsertEvents(ctx, page)
		rows += n
		if upsertErr != nil {
			return fmt.Errorf("store page: %w", upsertErr)
		}
		return nil
	})
	if err != nil {
		return rows, fmt.Errorf("export sync: %w", err)
	}

	s.logger.Info().
		Int("rows", rows).
		Dur("duration", time.Since(start)).
		Msg("Export sync complete")
	return rows, nil
}

// String names the service in supervisor logs.
func (s *SyncService) String() string {
	return s.name
}
