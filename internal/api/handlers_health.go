// Stockwatch - Inventory Movement Anomaly Detection
// Copyright 2026 Tom F. (tomtom215)
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/tomtom215/stockwatch

package api

import (
	"context"
	"net/http"
	"time"
)

// readyPingTimeout bounds the database check in the readiness probe.
const readyPingTimeout = 2 * time.Second

// HealthLive handles GET /api/v1/health/live. It succeeds while the process
// can serve requests.
func (h *Handler) HealthLive(w http.ResponseWriter, r *http.Request) {
	NewResponseWriter(w, r).Success(HealthStatus{
		Status:      "ok",
		ModelLoaded: h.holder.Loaded(),
	})
}

// HealthReady handles GET /api/v1/health/ready. A missing model is reported
// but does not make the server unready; an unreachable database does.
func (h *Handler) HealthReady(w http.ResponseWriter, r *http.Request) {
	status := HealthStatus{Status: "ready", ModelLoaded: h.holder.Loaded()}

	if h.database != nil {
		ctx, cancel := context.WithTimeout(r.Context(), readyPingTimeout)
		defer cancel()
		if err := h.database.Ping(ctx); err != nil {
			h.logger.Warn().Err(err).Msg("Readiness check: database unreachable")
			status.Status = "unavailable"
			status.Database = "unreachable"
			NewResponseWriter(w, r).ServiceUnavailable("Database unreachable", status)
			return
		}
		status.Database = "ok"
	}

	NewResponseWriter(w, r).Success(status)
}
