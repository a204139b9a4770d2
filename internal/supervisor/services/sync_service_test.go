// Stockwatch - Inventory Movement Anomaly Detection
// Copyright 2026 Tom F. (tomtom215)
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/tomtom215/stockwatch

package services

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/rs/zerolog"
	"github.com/thejerf/suture/v4"

	"github.com/tomtom215/stockwatch/internal/features"
)

var _ suture.Service = (*SyncService)(nil)

func TestSyncService_SyncOnce(t *testing.T) {
	all := movements(25)
	fetcher := &pagedFetcher{pages: [][]features.RawEvent{all[:10], all[10:20], all[20:]}}
	sink := newMemEvents()
	svc := NewSyncService(fetcher, sink, SyncServiceConfig{}, zerolog.Nop())

	rows, err := svc.SyncOnce(context.Background())
	if err != nil {
		t.Fatalf("SyncOnce: %v", err)
	}
	if rows != 25 || sink.len() != 25 {
		t.Errorf("rows = %d, stored = %d, want 25", rows, sink.len())
	}

	// A second pass over the same export is idempotent.
	if _, err := svc.SyncOnce(context.Background()); err != nil {
		t.Fatal(err)
	}
	if sink.len() != 25 {
		t.Errorf("stored = %d after resync, want 25", sink.len())
	}
}

func TestSyncService_PartialFailureKeepsStoredPages(t *testing.T) {
	all := movements(20)
	exportErr := errors.New("export returned 502")
	fetcher := &pagedFetcher{pages: [][]features.RawEvent{all[:10]}, failErr: exportErr}
	sink := newMemEvents()
	svc := NewSyncService(fetcher, sink, SyncServiceConfig{}, zerolog.Nop())

	rows, err := svc.SyncOnce(context.Background())
	if !errors.Is(err, exportErr) {
		t.Fatalf("expected export error, got %v", err)
	}
	if rows != 10 || sink.len() != 10 {
		t.Errorf("rows = %d, stored = %d, want 10", rows, sink.len())
	}
}

func TestSyncService_SinkFailure(t *testing.T) {
	diskErr := errors.New("disk full")
	sink := newMemEvents()
	sink.upsertErr = diskErr
	svc := NewSyncService(&pagedFetcher{pages: [][]features.RawEvent{movements(3)}}, sink, SyncServiceConfig{}, zerolog.Nop())

	if _, err := svc.SyncOnce(context.Background()); !errors.Is(err, diskErr) {
		t.Errorf("expected sink error, got %v", err)
	}
}

func TestSyncService_ServeRunsOnStartup(t *testing.T) {
	fetcher := &pagedFetcher{pages: [][]features.RawEvent{movements(5)}}
	sink := newMemEvents()
	svc := NewSyncService(fetcher, sink, SyncServiceConfig{OnStartup: true, Interval: time.Hour}, zerolog.Nop())

	ctx, cancel := context.WithTimeout(context.Background(), 200*time.Millisecond)
	defer cancel()
	if err := svc.Serve(ctx); !errors.Is(err, context.DeadlineExceeded) {
		t.Errorf("Serve returned %v", err)
	}
	if fetcher.calls != 1 {
		t.Errorf("fetched %d times, want 1", fetcher.calls)
	}
	if sink.len() != 5 {
		t.Errorf("stored %d rows, want 5", sink.len())
	}
	if svc.String() != "export-sync" {
		t.Errorf("String() = %q", svc.String())
	}
}
