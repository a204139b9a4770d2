// Stockwatch - Inventory Movement Anomaly Detection
// Copyright 2026 Tom F. (tomtom215)
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/tomtom215/stockwatch

package auth

import (
	"context"
	"sync"
	"time"
)

// refreshMargin renews minted tokens this long before they expire.
const refreshMargin = time.Minute

// TokenSource supplies bearer tokens to the export client.
type TokenSource interface {
	Token(ctx context.Context) (string, error)
}

// StaticToken is a fixed bearer token. The empty token disables the
// Authorization header.
type StaticToken string

// Token implements TokenSource.
func (s StaticToken) Token(context.Context) (string, error) {
	return string(s), nil
}

// MintingSource mints service tokens on demand and caches them until
// shortly before expiry.
type MintingSource struct {
	manager *TokenManager
	subject string
	email   string
	role    string

	mu      sync.Mutex
	token   string
	expires time.Time
}

// NewMintingSource returns a TokenSource minting tokens for the given
// identity.
func NewMintingSource(m *TokenManager, subject, email, role string) *MintingSource {
	return &MintingSource{manager: m, subject: subject, email: email, role: role}
}

// Token implements TokenSource.
func (s *MintingSource) Token(context.Context) (string, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	if s.token != "" && s.manager.now().Add(refreshMargin).Before(s.expires) {
		return s.token, nil
	}
	token, exp, err := s.manager.Mint(s.subject, s.email, s.role)
	if err != nil {
		return "", err
	}
	s.token, s.expires = token, exp
	return token, nil
}
