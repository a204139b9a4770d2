// Stockwatch - Inventory Movement Anomaly Detection
// Copyright 2026 Tom F. (tomtom215)
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/tomtom215/stockwatch

package database

import (
	"cmp"
	"context"
	"database/sql"
	"fmt"
	"slices"
	"strings"
	"time"

	"github.com/tomtom215/stockwatch/internal/features"
	"github.com/tomtom215/stockwatch/internal/metrics"
)

// idLookupChunk caps the number of placeholders in one IN clause.
const idLookupChunk = 1000

var (
	selectEventColumns = strings.Join(eventColumns, ", ")

	upsertEventSQL = func() string {
		updates := make([]string, 0, len(eventColumns))
		for _, c := range eventColumns[1:] {
			updates = append(updates, fmt.Sprintf("%s = EXCLUDED.%s", c, c))
		}
		updates = append(updates, "synced_at = current_timestamp")
		return fmt.Sprintf(`INSERT INTO raw_events (%s) VALUES (%s)
			ON CONFLICT (transaction_id) DO UPDATE SET %s`,
			selectEventColumns,
			placeholders(len(eventColumns)),
			strings.Join(updates, ", "))
	}()
)

// UpsertEvents inserts or replaces events keyed by transaction_id in one
// transaction. Events without a transaction id are skipped. It returns the
// number of rows written.
func (db *DB) UpsertEvents(ctx context.Context, events []features.RawEvent) (written int, err error) {
	if len(events) == 0 {
		return 0, nil
	}
	ctx, cancel := ensureContext(ctx)
	defer cancel()

	start := time.Now()
	defer func() {
		metrics.RecordDBQuery("upsert", "raw_events", time.Since(start), err)
	}()

	tx, err := db.conn.BeginTx(ctx, nil)
	if err != nil {
		return 0, fmt.Errorf("failed to begin transaction: %w", err)
	}
	defer func() {
		if err != nil {
			_ = tx.Rollback() //nolint:errcheck // rollback after failure
		}
	}()

	stmt, err := tx.PrepareContext(ctx, upsertEventSQL)
	if err != nil {
		return 0, fmt.Errorf("failed to prepare upsert: %w", err)
	}
	defer closeWithLog(stmt, "prepared statement")

	for i := range events {
		ev := &events[i]
		if ev.TransactionID == nil {
			continue
		}
		if _, err = stmt.ExecContext(ctx, eventArgs(ev)...); err != nil {
			return 0, fmt.Errorf("failed to upsert transaction %d: %w", *ev.TransactionID, err)
		}
		written++
	}

	if err = tx.Commit(); err != nil {
		return 0, fmt.Errorf("failed to commit upsert: %w", err)
	}
	return written, nil
}

// EventsByIDs returns the stored events for ids, ordered by transaction id.
// Unknown ids are omitted.
func (db *DB) EventsByIDs(ctx context.Context, ids []int64) (events []features.RawEvent, err error) {
	if len(ids) == 0 {
		return nil, nil
	}
	ctx, cancel := ensureContext(ctx)
	defer cancel()

	start := time.Now()
	defer func() {
		metrics.RecordDBQuery("select_by_id", "raw_events", time.Since(start), err)
	}()

	for lo := 0; lo < len(ids); lo += idLookupChunk {
		hi := min(lo+idLookupChunk, len(ids))
		chunk := ids[lo:hi]

		args := make([]interface{}, len(chunk))
		for i, id := range chunk {
			args[i] = id
		}
		query := fmt.Sprintf("SELECT %s FROM raw_events WHERE transaction_id IN (%s)",
			selectEventColumns, placeholders(len(chunk)))

		batch, err := db.queryEvents(ctx, query, args...)
		if err != nil {
			return nil, err
		}
		events = append(events, batch...)
	}

	sortByTransactionID(events)
	return events, nil
}

// AllEvents returns every stored event in chronological order.
func (db *DB) AllEvents(ctx context.Context) (events []features.RawEvent, err error) {
	ctx, cancel := ensureContext(ctx)
	defer cancel()

	start := time.Now()
	defer func() {
		metrics.RecordDBQuery("select_all", "raw_events", time.Since(start), err)
	}()

	return db.queryEvents(ctx, fmt.Sprintf(
		"SELECT %s FROM raw_events ORDER BY created_at_ts NULLS LAST, transaction_id", selectEventColumns))
}

// CountEvents returns the number of stored events.
func (db *DB) CountEvents(ctx context.Context) (n int64, err error) {
	ctx, cancel := ensureContext(ctx)
	defer cancel()

	start := time.Now()
	defer func() {
		metrics.RecordDBQuery("count", "raw_events", time.Since(start), err)
	}()

	if err := db.conn.QueryRowContext(ctx, "SELECT COUNT(*) FROM raw_events").Scan(&n); err != nil {
		return 0, fmt.Errorf("failed to count events: %w", err)
	}
	return n, nil
}

func (db *DB) queryEvents(ctx context.Context, query string, args ...interface{}) ([]features.RawEvent, error) {
	rows, err := db.conn.QueryContext(ctx, query, args...)
	if err != nil {
		return nil, fmt.Errorf("failed to query events: %w", err)
	}
	defer closeWithLog(rows, "rows")

	var events []features.RawEvent
	for rows.Next() {
		ev, err := scanEvent(rows)
		if err != nil {
			return nil, err
		}
		events = append(events, ev)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("error iterating events: %w", err)
	}
	return events, nil
}

// scanEvent reads one row laid out in eventColumns order.
func scanEvent(rows *sql.Rows) (features.RawEvent, error) {
	var (
		txID, itemID, warehouseID             sql.NullInt64
		sku, category, warehouse, txType, ref sql.NullString
		createdAt                             sql.NullString
		qty, unitPrice, total, createdAtTS    sql.NullFloat64
	)
	if err := rows.Scan(&txID, &itemID, &sku, &category, &warehouseID, &warehouse,
		&txType, &qty, &unitPrice, &total, &ref, &createdAt, &createdAtTS); err != nil {
		return features.RawEvent{}, fmt.Errorf("failed to scan event: %w", err)
	}
	return features.RawEvent{
		TransactionID:   nullInt(txID),
		ItemID:          nullInt(itemID),
		ItemSKU:         nullString(sku),
		ItemCategory:    nullString(category),
		WarehouseID:     nullInt(warehouseID),
		WarehouseCode:   nullString(warehouse),
		TransactionType: nullString(txType),
		Quantity:        nullFloat(qty),
		UnitPrice:       nullFloat(unitPrice),
		TotalAmount:     nullFloat(total),
		ReferenceType:   nullString(ref),
		CreatedAt:       nullString(createdAt),
		CreatedAtTS:     nullFloat(createdAtTS),
	}, nil
}

func eventArgs(ev *features.RawEvent) []interface{} {
	return []interface{}{
		derefInt(ev.TransactionID),
		derefInt(ev.ItemID),
		derefString(ev.ItemSKU),
		derefString(ev.ItemCategory),
		derefInt(ev.WarehouseID),
		derefString(ev.WarehouseCode),
		derefString(ev.TransactionType),
		derefFloat(ev.Quantity),
		derefFloat(ev.UnitPrice),
		derefFloat(ev.TotalAmount),
		derefString(ev.ReferenceType),
		derefString(ev.CreatedAt),
		derefFloat(ev.CreatedAtTS),
	}
}

func placeholders(n int) string {
	return strings.TrimSuffix(strings.Repeat("?, ", n), ", ")
}

func sortByTransactionID(events []features.RawEvent) {
	slices.SortFunc(events, func(a, b features.RawEvent) int {
		return cmp.Compare(*a.TransactionID, *b.TransactionID)
	})
}

func nullInt(v sql.NullInt64) *int64 {
	if !v.Valid {
		return nil
	}
	return &v.Int64
}

func nullFloat(v sql.NullFloat64) *float64 {
	if !v.Valid {
		return nil
	}
	return &v.Float64
}

func nullString(v sql.NullString) *string {
	if !v.Valid {
		return nil
	}
	return &v.String
}

func derefInt(v *int64) interface{} {
	if v == nil {
		return nil
	}
	return *v
}

func derefFloat(v *float64) interface{} {
	if v == nil {
		return nil
	}
	return *v
}

func derefString(v *string) interface{} {
	if v == nil {
		return nil
	}
	return *v
}
