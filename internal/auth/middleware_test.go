// Stockwatch - Inventory Movement Anomaly Detection
// Copyright 2026 Tom F. (tomtom215)
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/tomtom215/stockwatch

package auth

import (
	"errors"
	"net/http"
	"net/http/httptest"
	"testing"
)

func TestRequireBearer(t *testing.T) {
	m := newTestManager(t)
	valid, _, err := m.Mint("3", "a@example.com", "admin")
	if err != nil {
		t.Fatal(err)
	}

	var gotSubject string
	next := http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		claims, ok := ClaimsFromContext(r.Context())
		if !ok {
			t.Error("claims missing from context")
			return
		}
		gotSubject = claims.Subject
		w.WriteHeader(http.StatusNoContent)
	})

	var failure error
	handler := RequireBearer(m, func(w http.ResponseWriter, _ *http.Request, err error) {
		failure = err
		w.WriteHeader(http.StatusUnauthorized)
	})(next)

	tests := []struct {
		name       string
		header     string
		wantStatus int
		wantErr    error
	}{
		{"valid", "Bearer " + valid, http.StatusNoContent, nil},
		{"lowercase scheme", "bearer " + valid, http.StatusNoContent, nil},
		{"missing", "", http.StatusUnauthorized, ErrMissingToken},
		{"basic scheme", "Basic dXNlcjpwYXNz", http.StatusUnauthorized, ErrMissingToken},
		{"bad token", "Bearer nope", http.StatusUnauthorized, ErrInvalidToken},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			failure, gotSubject = nil, ""
			req := httptest.NewRequest(http.MethodPost, "/api/v1/ml/score", nil)
			if tt.header != "" {
				req.Header.Set("Authorization", tt.header)
			}
			rec := httptest.NewRecorder()
			handler.ServeHTTP(rec, req)

			if rec.Code != tt.wantStatus {
				t.Errorf("status = %d, want %d", rec.Code, tt.wantStatus)
			}
			if tt.wantErr == nil {
				if gotSubject != "3" {
					t.Errorf("subject = %q", gotSubject)
				}
				return
			}
			if !errors.Is(failure, tt.wantErr) {
				t.Errorf("failure = %v, want %v", failure, tt.wantErr)
			}
			if rec.Header().Get("WWW-Authenticate") != "Bearer" {
				t.Error("missing WWW-Authenticate challenge")
			}
		})
	}
}

func TestRequireBearer_DefaultFailure(t *testing.T) {
	handler := RequireBearer(newTestManager(t), nil)(http.HandlerFunc(func(http.ResponseWriter, *http.Request) {
		t.Error("handler reached without a token")
	}))
	rec := httptest.NewRecorder()
	handler.ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/", nil))
	if rec.Code != http.StatusUnauthorized {
		t.Errorf("status = %d", rec.Code)
	}
}
