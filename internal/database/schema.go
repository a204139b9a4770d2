// Stockwatch - Inventory Movement Anomaly Detection
// Copyright 2026 Tom F. (tomtom215)
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/tomtom215/stockwatch

package database

// eventColumns is the column order shared by inserts and selects on
// raw_events.
var eventColumns = []string{
	"transaction_id",
	"item_id",
	"item_sku",
	"item_category",
	"warehouse_id",
	"warehouse_code",
	"transaction_type",
	"quantity",
	"unit_price",
	"total_amount",
	"reference_type",
	"created_at",
	"created_at_ts",
}

// eventColumnTypes maps each raw event column to its DuckDB type.
var eventColumnTypes = map[string]string{
	"transaction_id":   "BIGINT",
	"item_id":          "BIGINT",
	"item_sku":         "VARCHAR",
	"item_category":    "VARCHAR",
	"warehouse_id":     "BIGINT",
	"warehouse_code":   "VARCHAR",
	"transaction_type": "VARCHAR",
	"quantity":         "DOUBLE",
	"unit_price":       "DOUBLE",
	"total_amount":     "DOUBLE",
	"reference_type":   "VARCHAR",
	"created_at":       "VARCHAR",
	"created_at_ts":    "DOUBLE",
}

var schemaStatements = []string{
	`CREATE TABLE IF NOT EXISTS raw_events (
		transaction_id BIGINT PRIMARY KEY,
		item_id BIGINT,
		item_sku VARCHAR,
		item_category VARCHAR,
		warehouse_id BIGINT,
		warehouse_code VARCHAR,
		transaction_type VARCHAR,
		quantity DOUBLE,
		unit_price DOUBLE,
		total_amount DOUBLE,
		reference_type VARCHAR,
		created_at VARCHAR,
		created_at_ts DOUBLE,
		synced_at TIMESTAMP DEFAULT current_timestamp
	)`,
	`CREATE INDEX IF NOT EXISTS idx_raw_events_created_at_ts ON raw_events(created_at_ts)`,
}
