// Stockwatch - Inventory Movement Anomaly Detection
// Copyright 2026 Tom F. (tomtom215)
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/tomtom215/stockwatch

/*
Package database keeps the local DuckDB snapshot of raw inventory events and
moves feature matrices in and out of parquet files.

# Snapshot

The sync service copies the record store's export into the raw_events table.
Score requests that name transaction ids are resolved against it:

	n, err := db.UpsertEvents(ctx, page)
	events, err := db.EventsByIDs(ctx, []int64{101, 102})

Rows are keyed by transaction_id, so replaying an export is idempotent.

# Files

DuckDB reads and writes the offline pipeline's files directly:

  - WriteFeatures / ReadFeatures: feature matrices as parquet
  - WriteScores: scored rows as parquet
  - ReadEventsCSV: raw events from a CSV export

Parquet output uses ZSTD compression with 100000-row row groups.

# Thread Safety

DB is safe for concurrent use. Operations that need a temporary table pin a
single connection from the pool for their duration.
*/
package database
