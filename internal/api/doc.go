// Stockwatch - Inventory Movement Anomaly Detection
// Copyright 2026 Tom F. (tomtom215)
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/tomtom215/stockwatch

/*
Package api serves the scoring HTTP API on a chi router.

Every response uses one envelope:

	{"success": true, "data": {...}, "meta": {"request_id": "...", "timestamp": "...", "duration_ms": 3}}
	{"success": false, "error": {"code": "SERVICE_UNAVAILABLE", "message": "...", "details": {"model_loaded": false}}}

# Scoring

POST /api/v1/ml/score takes exactly one of transaction_ids (resolved through
the local snapshot; unknown ids are omitted) or transactions (raw events).
Status codes:

  - 200: scored, possibly with an empty result list
  - 400: malformed body, both or neither field, batch over the limit
  - 422: the batch lacks a column the model needs
  - 503: no model loaded

The server starts without a model. Health endpoints keep working and report
model_loaded=false until a model is published to the Holder.

# Authentication

With security.auth_mode=jwt, the /api/v1/ml routes require an HS256 access
token in the Authorization header. Health and /metrics stay open.
*/
package api
