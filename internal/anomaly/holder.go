// Stockwatch - Inventory Movement Anomaly Detection
// Copyright 2026 Tom F. (tomtom215)
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/tomtom215/stockwatch

package anomaly

import (
	"context"
	"sync"
	"sync/atomic"
	"time"

	"github.com/tomtom215/stockwatch/internal/features"
)

// ModelInfo describes where the active model came from.
type ModelInfo struct {
	Version  int       `json:"version,omitempty"`
	Source   string    `json:"source"`
	LoadedAt time.Time `json:"loaded_at"`
}

// Loader produces a ready-to-serve predictor.
type Loader interface {
	LoadPredictor(ctx context.Context) (*Predictor, ModelInfo, error)
}

type activeModel struct {
	predictor *Predictor
	info      ModelInfo
}

// Holder owns the predictor used for serving. Readers see either the old
// or the new model, never a partially loaded one.
type Holder struct {
	current  atomic.Pointer[activeModel]
	reloadMu sync.Mutex
}

// NewHolder returns an empty holder.
func NewHolder() *Holder {
	return &Holder{}
}

// Current returns the active predictor.
func (h *Holder) Current() (*Predictor, ModelInfo, bool) {
	m := h.current.Load()
	if m == nil {
		return nil, ModelInfo{}, false
	}
	return m.predictor, m.info, true
}

// Loaded reports whether a model is available.
func (h *Holder) Loaded() bool {
	return h.current.Load() != nil
}

// Publish makes p the active predictor.
func (h *Holder) Publish(p *Predictor, info ModelInfo) {
	if info.LoadedAt.IsZero() {
		info.LoadedAt = time.Now().UTC()
	}
	h.current.Store(&activeModel{predictor: p, info: info})
}

// Reload loads a model through l and publishes it. Concurrent reloads are
// serialized. On failure the previous model stays active.
func (h *Holder) Reload(ctx context.Context, l Loader) (ModelInfo, error) {
	h.reloadMu.Lock()
	defer h.reloadMu.Unlock()

	p, info, err := l.LoadPredictor(ctx)
	if err != nil {
		return ModelInfo{}, err
	}
	h.Publish(p, info)
	_, info, _ = h.Current()
	return info, nil
}

// ScoreEvents scores raw events with the active model.
func (h *Holder) ScoreEvents(events []features.RawEvent) ([]Result, error) {
	p, _, ok := h.Current()
	if !ok {
		return nil, ErrModelUnavailable
	}
	return p.ScoreEvents(events)
}
