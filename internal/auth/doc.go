// Stockwatch - Inventory Movement Anomaly Detection
// Copyright 2026 Tom F. (tomtom215)
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/tomtom215/stockwatch

// Package auth handles the bearer tokens Stockwatch exchanges with the
// inventory record store.
//
// The record store issues HS256 access tokens carrying sub, email, role,
// type and exp claims. TokenManager mints tokens of that shape so the
// export client can page the store with a shared secret, and verifies
// them on the scoring API when AUTH_MODE=jwt.
package auth
