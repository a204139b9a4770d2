// Stockwatch - Inventory Movement Anomaly Detection
// Copyright 2026 Tom F. (tomtom215)
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/tomtom215/stockwatch

package fetcher

import (
	"fmt"

	"github.com/rs/zerolog"

	"github.com/tomtom215/stockwatch/internal/auth"
	"github.com/tomtom215/stockwatch/internal/config"
)

// TokenSourceFromConfig picks the export credentials: a static token wins,
// otherwise tokens are minted from the shared secret. It returns nil when
// neither is configured.
func TokenSourceFromConfig(cfg *config.ExportConfig) (auth.TokenSource, error) {
	switch {
	case cfg.Token != "":
		return auth.StaticToken(cfg.Token), nil
	case cfg.TokenSecret != "":
		m, err := auth.NewTokenManager(cfg.TokenSecret, auth.DefaultTokenTTL)
		if err != nil {
			return nil, err
		}
		return auth.NewMintingSource(m, cfg.TokenSubject, cfg.TokenEmail, cfg.TokenRole), nil
	default:
		return nil, nil
	}
}

// NewFromConfig builds a Client from the export configuration section.
//
//nolint:gocritic // zerolog.Logger is designed to be passed by value
func NewFromConfig(cfg *config.ExportConfig, logger zerolog.Logger) (*Client, error) {
	tokens, err := TokenSourceFromConfig(cfg)
	if err != nil {
		return nil, fmt.Errorf("export credentials: %w", err)
	}
	return New(Options{
		BaseURL:   cfg.BaseURL,
		Tokens:    tokens,
		BatchSize: cfg.BatchSize,
		MaxRows:   cfg.MaxRows,
		Timeout:   cfg.Timeout,
		RateLimit: cfg.RateLimit,
		Burst:     cfg.Burst,
		Logger:    logger,
	})
}
