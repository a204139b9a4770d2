// Stockwatch - Inventory Movement Anomaly Detection
// Copyright 2026 Tom F. (tomtom215)
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/tomtom215/stockwatch

package auth

import (
	"context"
	"errors"
	"net/http"
	"strings"

	"github.com/tomtom215/stockwatch/internal/logging"
)

type contextKey string

// ClaimsContextKey holds the verified *Claims of the caller.
const ClaimsContextKey contextKey = "claims"

// ErrMissingToken is passed to the failure handler when no bearer token
// was sent.
var ErrMissingToken = errors.New("missing bearer token")

// FailureFunc writes the response for a rejected request.
type FailureFunc func(w http.ResponseWriter, r *http.Request, err error)

// RequireBearer returns middleware that verifies the Authorization header
// with m. A nil onFailure writes a plain 401.
func RequireBearer(m *TokenManager, onFailure FailureFunc) func(http.Handler) http.Handler {
	if onFailure == nil {
		onFailure = func(w http.ResponseWriter, _ *http.Request, _ error) {
			http.Error(w, "Unauthorized", http.StatusUnauthorized)
		}
	}

	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			token, ok := bearerToken(r.Header.Get("Authorization"))
			if !ok {
				w.Header().Set("WWW-Authenticate", "Bearer")
				onFailure(w, r, ErrMissingToken)
				return
			}

			claims, err := m.Verify(token)
			if err != nil {
				logging.Ctx(r.Context()).Warn().
					Err(err).
					Str("token", logging.SanitizeToken(token)).
					Msg("Bearer token rejected")
				w.Header().Set("WWW-Authenticate", "Bearer")
				onFailure(w, r, err)
				return
			}

			ctx := context.WithValue(r.Context(), ClaimsContextKey, claims)
			next.ServeHTTP(w, r.WithContext(ctx))
		})
	}
}

// ClaimsFromContext returns the verified claims stored by RequireBearer.
func ClaimsFromContext(ctx context.Context) (*Claims, bool) {
	claims, ok := ctx.Value(ClaimsContextKey).(*Claims)
	return claims, ok
}

func bearerToken(header string) (string, bool) {
	scheme, token, ok := strings.Cut(header, " ")
	if !ok || !strings.EqualFold(scheme, "Bearer") {
		return "", false
	}
	token = strings.TrimSpace(token)
	return token, token != ""
}
