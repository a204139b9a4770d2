// Stockwatch - Inventory Movement Anomaly Detection
// Copyright 2026 Tom F. (tomtom215)
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/tomtom215/stockwatch

/*
Package fetcher pages raw inventory movement events out of the record
store's ML export endpoint.

	GET {base_url}/api/v1/ml/export?offset=N&limit=M
	Authorization: Bearer <token>

	{"rows": [...], "total_count": 1234, "offset": 0, "limit": 500, "has_more": true}

Paging advances the offset by the number of rows received and stops on an
empty page, when has_more is false, or once MaxRows rows were collected.

Resilience:
  - every page waits on a token bucket limiter (golang.org/x/time/rate)
  - HTTP 429 responses are retried with exponential backoff, honouring
    Retry-After
  - a circuit breaker (sony/gobreaker) opens after consecutive server or
    transport failures and reports gobreaker.ErrOpenState until it recovers
  - non-2xx responses surface as *StatusError with at most 64 KiB of body
*/
package fetcher
