// Stockwatch - Inventory Movement Anomaly Detection
// Copyright 2026 Tom F. (tomtom215)
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/tomtom215/stockwatch

package api

import (
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/goccy/go-json"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/tomtom215/stockwatch/internal/anomaly"
	"github.com/tomtom215/stockwatch/internal/config"
	"github.com/tomtom215/stockwatch/internal/middleware"
)

func serve(router http.Handler, req *http.Request) *httptest.ResponseRecorder {
	rec := httptest.NewRecorder()
	router.ServeHTTP(rec, req)
	return rec
}

func TestRouter_RoutesAndEnvelope(t *testing.T) {
	h := newTestHandler(t, HandlerOptions{})
	router := NewRouter(h, RouterConfig{RateLimitDisabled: true})

	tests := []struct {
		name       string
		method     string
		path       string
		wantStatus int
		wantCode   string
	}{
		{"live", http.MethodGet, "/api/v1/health/live", http.StatusOK, ""},
		{"ready", http.MethodGet, "/api/v1/health/ready", http.StatusOK, ""},
		{"model status", http.MethodGet, "/api/v1/ml/model", http.StatusOK, ""},
		{"unknown route", http.MethodGet, "/api/v1/nope", http.StatusNotFound, ErrCodeNotFound},
		{"wrong method", http.MethodGet, "/api/v1/ml/score", http.StatusMethodNotAllowed, ErrCodeMethodNotAllowed},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			rec := serve(router, httptest.NewRequest(tt.method, tt.path, nil))
			assert.Equal(t, tt.wantStatus, rec.Code)
			assert.NotEmpty(t, rec.Header().Get(middleware.RequestIDHeader))

			var env envelope
			require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &env))
			if tt.wantCode == "" {
				assert.True(t, env.Success)
				return
			}
			require.NotNil(t, env.Error)
			assert.Equal(t, tt.wantCode, env.Error.Code)
		})
	}
}

func TestRouter_Metrics(t *testing.T) {
	router := NewRouter(newTestHandler(t, HandlerOptions{}), RouterConfig{RateLimitDisabled: true})
	serve(router, httptest.NewRequest(http.MethodGet, "/api/v1/health/live", nil))

	rec := serve(router, httptest.NewRequest(http.MethodGet, "/metrics", nil))
	assert.Equal(t, http.StatusOK, rec.Code)
	assert.Contains(t, rec.Body.String(), "api_requests_total")
}

func TestRouter_JWT(t *testing.T) {
	rc, err := RouterConfigFromSecurity(&config.SecurityConfig{
		AuthMode:          config.AuthModeJWT,
		JWTSecret:         "test-secret-of-reasonable-length",
		RateLimitDisabled: true,
	})
	require.NoError(t, err)
	require.NotNil(t, rc.Tokens)

	holder := anomaly.NewHolder()
	router := NewRouter(newTestHandler(t, HandlerOptions{Holder: holder}), rc)

	t.Run("missing token", func(t *testing.T) {
		rec := serve(router, httptest.NewRequest(http.MethodGet, "/api/v1/ml/model", nil))
		assert.Equal(t, http.StatusUnauthorized, rec.Code)

		var env envelope
		require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &env))
		require.NotNil(t, env.Error)
		assert.Equal(t, ErrCodeUnauthorized, env.Error.Code)
	})

	t.Run("valid token", func(t *testing.T) {
		token, _, err := rc.Tokens.Mint("1", "ops@example.com", "admin")
		require.NoError(t, err)
		req := httptest.NewRequest(http.MethodGet, "/api/v1/ml/model", nil)
		req.Header.Set("Authorization", "Bearer "+token)
		assert.Equal(t, http.StatusOK, serve(router, req).Code)
	})

	t.Run("health stays open", func(t *testing.T) {
		rec := serve(router, httptest.NewRequest(http.MethodGet, "/api/v1/health/live", nil))
		assert.Equal(t, http.StatusOK, rec.Code)
	})
}

func TestRouterConfigFromSecurity_RequiresSecret(t *testing.T) {
	_, err := RouterConfigFromSecurity(&config.SecurityConfig{AuthMode: config.AuthModeJWT})
	assert.Error(t, err)
}

func TestRouter_RateLimit(t *testing.T) {
	router := NewRouter(newTestHandler(t, HandlerOptions{}), RouterConfig{
		RateLimitRequests: 2,
		RateLimitWindow:   time.Minute,
	})

	var last *httptest.ResponseRecorder
	for i := 0; i < 3; i++ {
		req := httptest.NewRequest(http.MethodGet, "/api/v1/ml/model", nil)
		req.RemoteAddr = "203.0.113.9:4000"
		last = serve(router, req)
	}
	assert.Equal(t, http.StatusTooManyRequests, last.Code)

	var env envelope
	require.NoError(t, json.Unmarshal(last.Body.Bytes(), &env))
	require.NotNil(t, env.Error)
	assert.Equal(t, ErrCodeTooManyRequests, env.Error.Code)

	// Health is not rate limited.
	req := httptest.NewRequest(http.MethodGet, "/api/v1/health/live", nil)
	req.RemoteAddr = "203.0.113.9:4000"
	assert.Equal(t, http.StatusOK, serve(router, req).Code)
}

func TestRouter_CORS(t *testing.T) {
	router := NewRouter(newTestHandler(t, HandlerOptions{}), RouterConfig{
		CORSOrigins:       []string{"https://ops.example.com"},
		RateLimitDisabled: true,
	})

	req := httptest.NewRequest(http.MethodOptions, "/api/v1/ml/score", nil)
	req.Header.Set("Origin", "https://ops.example.com")
	req.Header.Set("Access-Control-Request-Method", http.MethodPost)
	rec := serve(router, req)

	assert.Equal(t, "https://ops.example.com", rec.Header().Get("Access-Control-Allow-Origin"))
	assert.True(t, strings.Contains(rec.Header().Get("Access-Control-Allow-Methods"), http.MethodPost))
}

func TestRouter_ScoreThroughMiddleware(t *testing.T) {
	holder := anomaly.NewHolder()
	holder.Publish(trainedPredictor(t), anomaly.ModelInfo{Version: 1})
	router := NewRouter(newTestHandler(t, HandlerOptions{Holder: holder}), RouterConfig{RateLimitDisabled: true})

	req := httptest.NewRequest(http.MethodPost, "/api/v1/ml/score", strings.NewReader(scoreBody(t, movements(2))))
	req.Header.Set("Content-Type", "application/json")
	rec := serve(router, req)
	require.Equal(t, http.StatusOK, rec.Code, rec.Body.String())
	assert.Equal(t, "nosniff", rec.Header().Get("X-Content-Type-Options"))
}
