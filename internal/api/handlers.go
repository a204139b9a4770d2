// Stockwatch - Inventory Movement Anomaly Detection
// Copyright 2026 Tom F. (tomtom215)
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/tomtom215/stockwatch

package api

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"time"

	"github.com/goccy/go-json"
	"github.com/rs/zerolog"

	"github.com/tomtom215/stockwatch/internal/anomaly"
	"github.com/tomtom215/stockwatch/internal/features"
	"github.com/tomtom215/stockwatch/internal/logging"
	"github.com/tomtom215/stockwatch/internal/metrics"
	"github.com/tomtom215/stockwatch/internal/validation"
)

const (
	// DefaultMaxScoreBatch applies when HandlerOptions.MaxScoreBatch is zero.
	DefaultMaxScoreBatch = 10000

	// maxBodyBytes bounds a score request body.
	maxBodyBytes = 32 << 20
)

// EventStore resolves transaction ids to raw events.
type EventStore interface {
	EventsByIDs(ctx context.Context, ids []int64) ([]features.RawEvent, error)
}

// Pinger reports whether a dependency is reachable.
type Pinger interface {
	Ping(ctx context.Context) error
}

// HandlerOptions wires a Handler. Only Holder is required.
type HandlerOptions struct {
	Holder *anomaly.Holder

	// Events resolves transaction_ids. Without it such requests get 503.
	Events EventStore

	// Loader backs the reload endpoint. Without it reloads get 503.
	Loader anomaly.Loader

	// Database is pinged by the readiness probe when set.
	Database Pinger

	MaxScoreBatch int
	Logger        zerolog.Logger
}

// Handler serves the scoring API.
type Handler struct {
	holder   *anomaly.Holder
	events   EventStore
	loader   anomaly.Loader
	database Pinger
	maxBatch int
	logger   zerolog.Logger
}

// NewHandler creates a handler.
//
//nolint:gocritic // options struct is built once at startup
func NewHandler(opts HandlerOptions) *Handler {
	maxBatch := opts.MaxScoreBatch
	if maxBatch <= 0 {
		maxBatch = DefaultMaxScoreBatch
	}
	return &Handler{
		holder:   opts.Holder,
		events:   opts.Events,
		loader:   opts.Loader,
		database: opts.Database,
		maxBatch: maxBatch,
		logger:   opts.Logger.With().Str("component", "api").Logger(),
	}
}

// Score handles POST /api/v1/ml/score.
func (h *Handler) Score(w http.ResponseWriter, r *http.Request) {
	rw := NewResponseWriter(w, r)
	start := time.Now()

	var req ScoreRequest
	if err := json.NewDecoder(http.MaxBytesReader(w, r.Body, maxBodyBytes)).Decode(&req); err != nil {
		metrics.RecordScore("invalid", 0, 0, time.Since(start))
		rw.BadRequest("Invalid request body: " + err.Error())
		return
	}
	if verr := validation.ValidateStruct(&req); verr != nil {
		metrics.RecordScore("invalid", 0, 0, time.Since(start))
		apiErr := verr.ToAPIError()
		rw.BadRequestWithDetails("Provide exactly one of transaction_ids or transactions: "+apiErr.Message, apiErr.Details)
		return
	}
	if n := req.size(); n > h.maxBatch {
		metrics.RecordScore("invalid", 0, 0, time.Since(start))
		rw.BadRequestWithDetails(fmt.Sprintf("Batch of %d rows exceeds the limit of %d", n, h.maxBatch),
			map[string]interface{}{"rows": n, "max_rows": h.maxBatch})
		return
	}

	p, info, ok := h.holder.Current()
	if !ok {
		metrics.RecordScore("unavailable", 0, 0, time.Since(start))
		rw.ServiceUnavailable("No model is loaded", map[string]interface{}{"model_loaded": false})
		return
	}

	events := req.Transactions
	if req.TransactionIDs != nil {
		if h.events == nil {
			metrics.RecordScore("unavailable", 0, 0, time.Since(start))
			rw.ServiceUnavailable("Transaction lookup is not available", map[string]interface{}{"model_loaded": true})
			return
		}
		var err error
		events, err = h.events.EventsByIDs(r.Context(), req.TransactionIDs)
		if err != nil {
			metrics.RecordScore("error", 0, 0, time.Since(start))
			rw.InternalError("Failed to look up transactions", err)
			return
		}
	}

	results, err := p.ScoreEvents(events)
	if err != nil {
		var mce *features.MissingColumnError
		var se *anomaly.SchemaError
		switch {
		case errors.As(err, &mce):
			metrics.RecordScore("schema", len(events), 0, time.Since(start))
			rw.ValidationFailed(mce.Error(), map[string]interface{}{"missing": mce.Columns})
		case errors.As(err, &se):
			metrics.RecordScore("schema", len(events), 0, time.Since(start))
			rw.ValidationFailed(se.Error(), map[string]interface{}{"missing": se.Missing})
		default:
			metrics.RecordScore("error", len(events), 0, time.Since(start))
			rw.InternalError("Scoring failed", err)
		}
		return
	}

	anomalies, maxScore := anomaly.Summary(results)
	metrics.RecordScore("ok", len(results), anomalies, time.Since(start))
	logging.Ctx(r.Context()).Debug().
		Int("rows", len(results)).
		Int("anomalies", anomalies).
		Float64("max_score", maxScore).
		Int("model_version", info.Version).
		Msg("Scored batch")

	rw.Success(ScoreResponse{
		Results:      results,
		ModelLoaded:  true,
		ModelVersion: info.Version,
		Anomalies:    anomalies,
	})
}

// ModelStatus handles GET /api/v1/ml/model.
func (h *Handler) ModelStatus(w http.ResponseWriter, r *http.Request) {
	p, info, ok := h.holder.Current()
	NewResponseWriter(w, r).Success(modelStatus(p, info, ok))
}

// ReloadModel handles POST /api/v1/ml/model/reload. A failed reload keeps
// the current model.
func (h *Handler) ReloadModel(w http.ResponseWriter, r *http.Request) {
	rw := NewResponseWriter(w, r)
	if h.loader == nil {
		rw.ServiceUnavailable("No model source is configured", nil)
		return
	}

	info, err := h.holder.Reload(r.Context(), h.loader)
	metrics.RecordModelLoad(info.Version, err)
	if err != nil {
		h.logger.Warn().Err(err).Msg("Model reload failed, keeping current model")
		rw.ServiceUnavailable("Model reload failed: "+err.Error(),
			map[string]interface{}{"model_loaded": h.holder.Loaded()})
		return
	}

	h.logger.Info().Int("version", info.Version).Str("source", info.Source).Msg("Model reloaded")
	p, info, ok := h.holder.Current()
	rw.Success(modelStatus(p, info, ok))
}
