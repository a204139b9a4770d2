// Stockwatch - Inventory Movement Anomaly Detection
// Copyright 2026 Tom F. (tomtom215)
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/tomtom215/stockwatch

package api

import (
	"net/http"
	"time"

	"github.com/go-chi/chi/v5"
	chimiddleware "github.com/go-chi/chi/v5/middleware"
	"github.com/go-chi/cors"
	"github.com/go-chi/httprate"
	"github.com/prometheus/client_golang/prometheus/promhttp"

	"github.com/tomtom215/stockwatch/internal/auth"
	"github.com/tomtom215/stockwatch/internal/config"
	"github.com/tomtom215/stockwatch/internal/metrics"
	"github.com/tomtom215/stockwatch/internal/middleware"
)

const mlRoutePrefix = "/api/v1/ml"

// RouterConfig configures the middleware around the handlers.
type RouterConfig struct {
	CORSOrigins       []string
	RateLimitRequests int
	RateLimitWindow   time.Duration
	RateLimitDisabled bool

	// Tokens enables bearer authentication on the ml routes when set.
	Tokens *auth.TokenManager
}

// RouterConfigFromSecurity builds a RouterConfig from the security section.
func RouterConfigFromSecurity(cfg *config.SecurityConfig) (RouterConfig, error) {
	rc := RouterConfig{
		CORSOrigins:       cfg.CORSOrigins,
		RateLimitRequests: cfg.RateLimitReqs,
		RateLimitWindow:   cfg.RateLimitWindow,
		RateLimitDisabled: cfg.RateLimitDisabled,
	}
	if cfg.AuthMode == config.AuthModeJWT {
		tm, err := auth.NewTokenManager(cfg.JWTSecret, auth.DefaultTokenTTL)
		if err != nil {
			return RouterConfig{}, err
		}
		rc.Tokens = tm
	}
	return rc, nil
}

// NewRouter wires the routes:
//
//	POST /api/v1/ml/score
//	GET  /api/v1/ml/model
//	POST /api/v1/ml/model/reload
//	GET  /api/v1/health/live
//	GET  /api/v1/health/ready
//	GET  /metrics
//
//nolint:gocritic // RouterConfig is built once at startup
func NewRouter(h *Handler, cfg RouterConfig) http.Handler {
	r := chi.NewRouter()

	r.Use(middleware.RequestID)
	r.Use(chimiddleware.RealIP)
	r.Use(chimiddleware.Recoverer)
	r.Use(cors.Handler(cors.Options{
		AllowedOrigins: cfg.CORSOrigins,
		AllowedMethods: []string{http.MethodGet, http.MethodPost, http.MethodOptions},
		AllowedHeaders: []string{"Content-Type", "Authorization", middleware.RequestIDHeader},
		ExposedHeaders: []string{middleware.RequestIDHeader},
		MaxAge:         86400,
	}))
	r.Use(middleware.PrometheusMetrics)

	r.NotFound(func(w http.ResponseWriter, r *http.Request) {
		NewResponseWriter(w, r).NotFound("Route not found")
	})
	r.MethodNotAllowed(func(w http.ResponseWriter, r *http.Request) {
		NewResponseWriter(w, r).MethodNotAllowed("Method not allowed")
	})

	r.Route("/api/v1/health", func(r chi.Router) {
		r.Use(middleware.SecurityHeaders)
		r.Get("/live", h.HealthLive)
		r.Get("/ready", h.HealthReady)
	})

	r.Route(mlRoutePrefix, func(r chi.Router) {
		r.Use(rateLimit(cfg))
		r.Use(middleware.SecurityHeaders)
		if cfg.Tokens != nil {
			r.Use(auth.RequireBearer(cfg.Tokens, unauthorized))
		}

		r.With(middleware.Compression).Post("/score", h.Score)
		r.Get("/model", h.ModelStatus)
		r.Post("/model/reload", h.ReloadModel)
	})

	r.Handle("/metrics", promhttp.Handler())

	return r
}

func rateLimit(cfg RouterConfig) func(http.Handler) http.Handler {
	if cfg.RateLimitDisabled || cfg.RateLimitRequests <= 0 {
		return func(next http.Handler) http.Handler { return next }
	}
	window := cfg.RateLimitWindow
	if window <= 0 {
		window = time.Minute
	}
	return httprate.Limit(
		cfg.RateLimitRequests,
		window,
		httprate.WithKeyFuncs(httprate.KeyByIP),
		httprate.WithLimitHandler(func(w http.ResponseWriter, r *http.Request) {
			metrics.APIRateLimitHits.WithLabelValues(mlRoutePrefix).Inc()
			NewResponseWriter(w, r).TooManyRequests("Rate limit exceeded")
		}),
	)
}

func unauthorized(w http.ResponseWriter, r *http.Request, err error) {
	NewResponseWriter(w, r).Unauthorized(err.Error())
}
