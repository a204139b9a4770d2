// Stockwatch - Inventory Movement Anomaly Detection
// Copyright 2026 Tom F. (tomtom215)
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/tomtom215/stockwatch

package database

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"math"
	"os"
	"path/filepath"
	"strings"
	"time"

	"github.com/tomtom215/stockwatch/internal/anomaly"
	"github.com/tomtom215/stockwatch/internal/features"
	"github.com/tomtom215/stockwatch/internal/metrics"
)

// IDColumn names the identifier column of feature and score files.
const IDColumn = "transaction_id"

const (
	stageTable    = "stage_export"
	parquetFormat = "FORMAT PARQUET, COMPRESSION 'ZSTD', ROW_GROUP_SIZE 100000"
)

type column struct {
	name string
	typ  string
}

// WriteFeatures writes m to a parquet file at path: transaction_id followed
// by the feature columns. NaN cells are written as NULL.
func (db *DB) WriteFeatures(ctx context.Context, path string, m *features.Matrix) error {
	cols := make([]column, 0, len(m.Columns)+1)
	cols = append(cols, column{IDColumn, "BIGINT"})
	for _, c := range m.Columns {
		cols = append(cols, column{c, "DOUBLE"})
	}

	return db.copyToParquet(ctx, path, "features", cols, func(emit func(args []interface{}) error) error {
		for i, row := range m.Rows {
			args := make([]interface{}, 0, len(cols))
			args = append(args, rowID(m, i))
			for _, v := range row {
				args = append(args, nullableFloat(v))
			}
			if err := emit(args); err != nil {
				return err
			}
		}
		return nil
	})
}

// WriteScores writes the scored rows of m to a parquet file at path:
// transaction_id, the feature columns, anomaly_score, cluster_id and
// is_anomaly. results must hold one entry per row of m.
func (db *DB) WriteScores(ctx context.Context, path string, m *features.Matrix, results []anomaly.Result) error {
	if len(results) != m.Len() {
		return fmt.Errorf("score count %d does not match row count %d", len(results), m.Len())
	}

	cols := make([]column, 0, len(m.Columns)+4)
	cols = append(cols, column{IDColumn, "BIGINT"})
	for _, c := range m.Columns {
		cols = append(cols, column{c, "DOUBLE"})
	}
	cols = append(cols,
		column{"anomaly_score", "DOUBLE"},
		column{"cluster_id", "INTEGER"},
		column{"is_anomaly", "BOOLEAN"},
	)

	return db.copyToParquet(ctx, path, "scores", cols, func(emit func(args []interface{}) error) error {
		for i, row := range m.Rows {
			args := make([]interface{}, 0, len(cols))
			args = append(args, rowID(m, i))
			for _, v := range row {
				args = append(args, nullableFloat(v))
			}
			r := results[i]
			args = append(args, r.AnomalyScore, int32(r.ClusterID), r.IsAnomaly) //nolint:gosec // cluster ids are small
			if err := emit(args); err != nil {
				return err
			}
		}
		return nil
	})
}

// ReadFeatures reads a feature parquet file written by WriteFeatures, or
// any parquet file with numeric columns. Every column other than
// transaction_id becomes a feature column; NULL reads as NaN. Without a
// transaction_id column rows are numbered from zero.
func (db *DB) ReadFeatures(ctx context.Context, path string) (m *features.Matrix, err error) {
	if _, err := os.Stat(path); err != nil {
		return nil, fmt.Errorf("feature file: %w", err)
	}
	ctx, cancel := ensureContext(ctx)
	defer cancel()

	start := time.Now()
	defer func() {
		metrics.RecordDBQuery("read_parquet", "features", time.Since(start), err)
	}()

	source := fmt.Sprintf("read_parquet(%s)", quoteLiteral(path))
	names, err := db.sourceColumns(ctx, source)
	if err != nil {
		return nil, err
	}

	hasID := false
	exprs := make([]string, 0, len(names))
	m = &features.Matrix{}
	for _, name := range names {
		if name == IDColumn {
			hasID = true
			continue
		}
		m.Columns = append(m.Columns, name)
		exprs = append(exprs, fmt.Sprintf("CAST(%s AS DOUBLE)", quoteIdent(name)))
	}
	if hasID {
		exprs = append([]string{fmt.Sprintf("CAST(%s AS BIGINT)", quoteIdent(IDColumn))}, exprs...)
	}
	if len(exprs) == 0 {
		return m, nil
	}

	rows, err := db.conn.QueryContext(ctx, fmt.Sprintf("SELECT %s FROM %s", strings.Join(exprs, ", "), source))
	if err != nil {
		return nil, fmt.Errorf("failed to read %s: %w", path, err)
	}
	defer closeWithLog(rows, "rows")

	width := len(m.Columns)
	for n := int64(0); rows.Next(); n++ {
		var id sql.NullInt64
		cells := make([]sql.NullFloat64, width)
		dest := make([]interface{}, 0, width+1)
		if hasID {
			dest = append(dest, &id)
		}
		for j := range cells {
			dest = append(dest, &cells[j])
		}
		if err := rows.Scan(dest...); err != nil {
			return nil, fmt.Errorf("failed to scan feature row: %w", err)
		}

		row := make([]float64, width)
		for j, c := range cells {
			row[j] = math.NaN()
			if c.Valid {
				row[j] = c.Float64
			}
		}
		if hasID && id.Valid {
			m.IDs = append(m.IDs, id.Int64)
		} else {
			m.IDs = append(m.IDs, n)
		}
		m.Rows = append(m.Rows, row)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("error iterating %s: %w", path, err)
	}
	return m, nil
}

// ReadEventsCSV reads raw events from a CSV file with a header row. Columns
// are matched by name and unknown columns are ignored. Blank or unparsable
// cells read as missing. When created_at_ts is absent it is derived from
// created_at. A required column absent from the header yields a
// *features.MissingColumnError.
func (db *DB) ReadEventsCSV(ctx context.Context, path string) (events []features.RawEvent, err error) {
	if _, err := os.Stat(path); err != nil {
		return nil, fmt.Errorf("event file: %w", err)
	}
	ctx, cancel := ensureContext(ctx)
	defer cancel()

	start := time.Now()
	defer func() {
		queryErr := err
		if errors.As(err, new(*features.MissingColumnError)) {
			queryErr = nil
		}
		metrics.RecordDBQuery("read_csv", "raw_events", time.Since(start), queryErr)
	}()

	source := fmt.Sprintf("read_csv(%s, header = true, all_varchar = true)", quoteLiteral(path))
	names, err := db.sourceColumns(ctx, source)
	if err != nil {
		return nil, err
	}
	present := make(map[string]bool, len(names))
	for _, n := range names {
		present[n] = true
	}

	var missing []string
	for _, f := range features.RequiredFields {
		if present[f] || (f == "created_at_ts" && present["created_at"]) {
			continue
		}
		missing = append(missing, f)
	}
	if len(missing) > 0 {
		return nil, &features.MissingColumnError{Columns: missing}
	}

	exprs := make([]string, len(eventColumns))
	for i, c := range eventColumns {
		exprs[i] = csvColumnExpr(c, present)
	}
	query := fmt.Sprintf("SELECT %s FROM %s", strings.Join(exprs, ", "), source)

	events, err = db.queryEvents(ctx, query)
	if err != nil {
		return nil, fmt.Errorf("failed to read %s: %w", path, err)
	}
	return events, nil
}

func csvColumnExpr(name string, present map[string]bool) string {
	typ := eventColumnTypes[name]
	if !present[name] {
		if name == "created_at_ts" && present["created_at"] {
			return fmt.Sprintf("epoch(TRY_CAST(NULLIF(trim(%s), '') AS TIMESTAMP))", quoteIdent("created_at"))
		}
		return fmt.Sprintf("CAST(NULL AS %s)", typ)
	}
	cell := fmt.Sprintf("NULLIF(trim(%s), '')", quoteIdent(name))
	if typ == "VARCHAR" {
		return cell
	}
	return fmt.Sprintf("TRY_CAST(%s AS %s)", cell, typ)
}

// sourceColumns returns the column names a table function produces.
func (db *DB) sourceColumns(ctx context.Context, source string) ([]string, error) {
	rows, err := db.conn.QueryContext(ctx, fmt.Sprintf("SELECT * FROM %s LIMIT 0", source))
	if err != nil {
		return nil, fmt.Errorf("failed to open %s: %w", source, err)
	}
	defer closeWithLog(rows, "rows")

	names, err := rows.Columns()
	if err != nil {
		return nil, fmt.Errorf("failed to read columns: %w", err)
	}
	return names, nil
}

// copyToParquet stages rows in a temporary table on one pinned connection
// and copies it to path.
func (db *DB) copyToParquet(ctx context.Context, path, table string, cols []column, fill func(emit func(args []interface{}) error) error) (err error) {
	ctx, cancel := ensureContext(ctx)
	defer cancel()

	start := time.Now()
	defer func() {
		metrics.RecordDBQuery("write_parquet", table, time.Since(start), err)
	}()

	if dir := filepath.Dir(path); dir != "" && dir != "." {
		if err := os.MkdirAll(dir, 0o750); err != nil {
			return fmt.Errorf("failed to create output directory %s: %w", dir, err)
		}
	}

	conn, err := db.conn.Conn(ctx)
	if err != nil {
		return fmt.Errorf("failed to acquire connection: %w", err)
	}
	defer closeWithLog(conn, "connection")

	defs := make([]string, len(cols))
	names := make([]string, len(cols))
	for i, c := range cols {
		names[i] = quoteIdent(c.name)
		defs[i] = names[i] + " " + c.typ
	}
	if _, err := conn.ExecContext(ctx, fmt.Sprintf("CREATE OR REPLACE TEMP TABLE %s (%s)",
		stageTable, strings.Join(defs, ", "))); err != nil {
		return fmt.Errorf("failed to create staging table: %w", err)
	}
	defer func() {
		// A leftover table is replaced by the next export on this connection.
		_, _ = conn.ExecContext(context.Background(), "DROP TABLE IF EXISTS "+stageTable) //nolint:errcheck // best-effort cleanup
	}()

	if err := stageRows(ctx, conn, names, fill); err != nil {
		return err
	}

	copySQL := fmt.Sprintf("COPY %s TO %s (%s)", stageTable, quoteLiteral(path), parquetFormat)
	if _, err := conn.ExecContext(ctx, copySQL); err != nil {
		return fmt.Errorf("failed to write %s: %w", path, err)
	}
	return nil
}

func stageRows(ctx context.Context, conn *sql.Conn, names []string, fill func(emit func(args []interface{}) error) error) (err error) {
	tx, err := conn.BeginTx(ctx, nil)
	if err != nil {
		return fmt.Errorf("failed to begin transaction: %w", err)
	}
	defer func() {
		if err != nil {
			_ = tx.Rollback() //nolint:errcheck // rollback after failure
		}
	}()

	stmt, err := tx.PrepareContext(ctx, fmt.Sprintf("INSERT INTO %s (%s) VALUES (%s)",
		stageTable, strings.Join(names, ", "), placeholders(len(names))))
	if err != nil {
		return fmt.Errorf("failed to prepare staging insert: %w", err)
	}
	defer closeWithLog(stmt, "prepared statement")

	err = fill(func(args []interface{}) error {
		if _, err := stmt.ExecContext(ctx, args...); err != nil {
			return fmt.Errorf("failed to stage row: %w", err)
		}
		return nil
	})
	if err != nil {
		return err
	}

	if err = tx.Commit(); err != nil {
		return fmt.Errorf("failed to commit staged rows: %w", err)
	}
	return nil
}

func rowID(m *features.Matrix, i int) int64 {
	if i < len(m.IDs) {
		return m.IDs[i]
	}
	return int64(i)
}

func nullableFloat(v float64) interface{} {
	if math.IsNaN(v) || math.IsInf(v, 0) {
		return nil
	}
	return v
}

func quoteIdent(name string) string {
	return `"` + strings.ReplaceAll(name, `"`, `""`) + `"`
}

func quoteLiteral(s string) string {
	return "'" + strings.ReplaceAll(s, "'", "''") + "'"
}
