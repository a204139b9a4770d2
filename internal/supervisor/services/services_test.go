// Stockwatch - Inventory Movement Anomaly Detection
// Copyright 2026 Tom F. (tomtom215)
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/tomtom215/stockwatch

package services

import (
	"context"
	"errors"
	"sync"

	"github.com/tomtom215/stockwatch/internal/anomaly"
	"github.com/tomtom215/stockwatch/internal/features"
)

// movements returns n ordinary movements with ids 1..n.
func movements(n int) []features.RawEvent {
	events := make([]features.RawEvent, n)
	for i := range events {
		txType := features.TypeIn
		if i%3 == 0 {
			txType = features.TypeOut
		}
		qty := float64(1 + i%7)
		events[i] = features.RawEvent{
			TransactionID:   features.Int64(int64(i + 1)),
			ItemID:          features.Int64(int64(1 + i%4)),
			ItemCategory:    features.String([]string{"tools", "parts"}[i%2]),
			WarehouseID:     features.Int64(int64(1 + i%2)),
			TransactionType: features.String(txType),
			Quantity:        features.Float64(qty),
			UnitPrice:       features.Float64(3 + float64(i%5)),
			TotalAmount:     features.Float64(qty * (3 + float64(i%5))),
			CreatedAtTS:     features.Float64(1704067200 + float64(i)*5400),
		}
	}
	return events
}

func smallTrainConfig() anomaly.TrainConfig {
	cfg := anomaly.DefaultTrainConfig()
	cfg.NComponents = 2
	cfg.NClusters = 3
	cfg.NInit = 2
	return cfg
}

// memEvents is an in-memory snapshot implementing EventSink and
// EventSource.
type memEvents struct {
	mu        sync.Mutex
	byID      map[int64]features.RawEvent
	upsertErr error
	readErr   error
}

func newMemEvents() *memEvents {
	return &memEvents{byID: make(map[int64]features.RawEvent)}
}

func (m *memEvents) UpsertEvents(_ context.Context, events []features.RawEvent) (int, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.upsertErr != nil {
		return 0, m.upsertErr
	}
	n := 0
	for _, ev := range events {
		if ev.TransactionID == nil {
			continue
		}
		m.byID[*ev.TransactionID] = ev
		n++
	}
	return n, nil
}

func (m *memEvents) AllEvents(context.Context) ([]features.RawEvent, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.readErr != nil {
		return nil, m.readErr
	}
	out := make([]features.RawEvent, 0, len(m.byID))
	for id := int64(1); len(out) < len(m.byID); id++ {
		if ev, ok := m.byID[id]; ok {
			out = append(out, ev)
		}
	}
	return out, nil
}

func (m *memEvents) len() int {
	m.mu.Lock()
	defer m.mu.Unlock()
	return len(m.byID)
}

// pagedFetcher serves fixed pages and optionally fails after them.
type pagedFetcher struct {
	pages   [][]features.RawEvent
	failErr error
	calls   int
}

func (f *pagedFetcher) Pages(ctx context.Context, fn func(rows []features.RawEvent) error) (int, error) {
	f.calls++
	total := 0
	for _, p := range f.pages {
		if err := ctx.Err(); err != nil {
			return total, err
		}
		if err := fn(p); err != nil {
			return total, err
		}
		total += len(p)
	}
	return total, f.failErr
}

// staticLoader always returns the same predictor, or err.
type staticLoader struct {
	mu      sync.Mutex
	p       *anomaly.Predictor
	err     error
	version int
	loads   int
}

func (l *staticLoader) LoadPredictor(context.Context) (*anomaly.Predictor, anomaly.ModelInfo, error) {
	l.mu.Lock()
	defer l.mu.Unlock()
	l.loads++
	if l.err != nil {
		return nil, anomaly.ModelInfo{}, l.err
	}
	if l.p == nil {
		return nil, anomaly.ModelInfo{}, errors.New("no predictor")
	}
	return l.p, anomaly.ModelInfo{Version: l.version, Source: "test"}, nil
}

func (l *staticLoader) loadCount() int {
	l.mu.Lock()
	defer l.mu.Unlock()
	return l.loads
}
