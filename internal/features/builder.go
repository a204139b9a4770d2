// Stockwatch - Inventory Movement Anomaly Detection
// Copyright 2026 Tom F. (tomtom215)
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/tomtom215/stockwatch

package features

import (
	"fmt"
	"math"
	"time"
)

// Feature column names, in matrix order.
const (
	ColQuantity        = "quantity"
	ColAbsQuantity     = "abs_quantity"
	ColUnitPrice       = "unit_price"
	ColTotalAmount     = "total_amount"
	ColHour            = "hour"
	ColDayOfWeek       = "day_of_week"
	ColDayOfMonth      = "day_of_month"
	ColItemID          = "item_id"
	ColWarehouseID     = "warehouse_id"
	ColTransactionType = "transaction_type_enc"
	ColItemCategory    = "item_category_enc"
)

// FeatureColumns is the fixed column order of every feature matrix.
var FeatureColumns = []string{
	ColQuantity,
	ColAbsQuantity,
	ColUnitPrice,
	ColTotalAmount,
	ColHour,
	ColDayOfWeek,
	ColDayOfMonth,
	ColItemID,
	ColWarehouseID,
	ColTransactionType,
	ColItemCategory,
}

// RequiredFields lists the raw fields every batch must carry.
var RequiredFields = []string{"transaction_id", "quantity", "created_at_ts", "item_id", "warehouse_id"}

// MissingPolicy decides what happens to rows with missing or non-finite
// feature values.
type MissingPolicy string

const (
	// MissingKeep leaves NaN in place.
	MissingKeep MissingPolicy = "keep"
	// MissingDrop removes the row.
	MissingDrop MissingPolicy = "drop"
	// MissingZeroFill replaces the value with zero.
	MissingZeroFill MissingPolicy = "zero_fill"
)

// ParseMissingPolicy converts a config string into a MissingPolicy.
func ParseMissingPolicy(s string) (MissingPolicy, error) {
	switch MissingPolicy(s) {
	case "", MissingKeep:
		return MissingKeep, nil
	case MissingDrop:
		return MissingDrop, nil
	case MissingZeroFill:
		return MissingZeroFill, nil
	default:
		return "", fmt.Errorf("unknown missing value policy %q", s)
	}
}

// Options configures Build.
type Options struct {
	// OnMissing defaults to MissingKeep.
	OnMissing MissingPolicy

	// Vocabulary, when set, replaces batch-relative categorical codes.
	Vocabulary *Vocabulary
}

// Matrix is a feature matrix with one row per transaction.
type Matrix struct {
	IDs     []int64
	Columns []string
	Rows    [][]float64
}

// Len returns the number of rows.
func (m *Matrix) Len() int {
	if m == nil {
		return 0
	}
	return len(m.Rows)
}

// ColumnIndex returns the position of a column, or -1.
func (m *Matrix) ColumnIndex(name string) int {
	for i, c := range m.Columns {
		if c == name {
			return i
		}
	}
	return -1
}

// Select returns the rows projected onto columns, in that order. Columns
// not present in the matrix are reported in missing and the rows are nil.
func (m *Matrix) Select(columns []string) (rows [][]float64, missing []string) {
	idx := make([]int, len(columns))
	for i, c := range columns {
		idx[i] = m.ColumnIndex(c)
		if idx[i] < 0 {
			missing = append(missing, c)
		}
	}
	if len(missing) > 0 {
		return nil, missing
	}

	rows = make([][]float64, len(m.Rows))
	for r, src := range m.Rows {
		dst := make([]float64, len(columns))
		for i, j := range idx {
			dst[i] = src[j]
		}
		rows[r] = dst
	}
	return rows, nil
}

// Build derives the feature matrix for a batch of events.
//
// An empty batch yields an empty matrix. A row without a transaction_id
// takes its position in the batch as identifier.
func Build(events []RawEvent, opts Options) (*Matrix, error) {
	m := &Matrix{
		Columns: append([]string(nil), FeatureColumns...),
		IDs:     make([]int64, 0, len(events)),
		Rows:    make([][]float64, 0, len(events)),
	}
	if len(events) == 0 {
		return m, nil
	}

	if missing := missingColumns(events); len(missing) > 0 {
		return nil, &MissingColumnError{Columns: missing}
	}

	policy := opts.OnMissing
	if policy == "" {
		policy = MissingKeep
	}
	vocab := opts.Vocabulary
	if vocab == nil {
		vocab = FitVocabulary(events)
	}

	for i := range events {
		ev := &events[i]
		row := featureRow(ev, vocab)

		if !applyPolicy(row, policy) {
			continue
		}

		id := int64(i)
		if ev.TransactionID != nil {
			id = *ev.TransactionID
		}
		m.IDs = append(m.IDs, id)
		m.Rows = append(m.Rows, row)
	}

	return m, nil
}

func featureRow(ev *RawEvent, vocab *Vocabulary) []float64 {
	nan := math.NaN()
	row := make([]float64, len(FeatureColumns))

	row[0], row[1] = nan, nan
	if ev.Quantity != nil {
		// Outbound rows are negative whether or not the export already
		// signed them. Other kinds keep the sign they arrived with.
		q := *ev.Quantity
		if ev.IsOutbound() {
			q = -math.Abs(q)
		}
		row[0], row[1] = q, math.Abs(q)
	}

	// Prices are optional: a missing one counts as zero, never as missing.
	row[2] = floatOrZero(ev.UnitPrice)
	row[3] = floatOrZero(ev.TotalAmount)

	row[4], row[5], row[6] = nan, nan, nan
	if ts, ok := ev.Timestamp(); ok {
		row[4] = float64(ts.Hour())
		row[5] = float64(mondayFirst(ts.Weekday()))
		row[6] = float64(ts.Day())
	}

	row[7] = intOrNaN(ev.ItemID)
	row[8] = intOrNaN(ev.WarehouseID)
	row[9] = float64(vocab.EncodeType(categoryValue(ev.TransactionType)))
	row[10] = float64(vocab.EncodeCategory(categoryValue(ev.ItemCategory)))
	return row
}

// applyPolicy reports whether the row is kept.
func applyPolicy(row []float64, policy MissingPolicy) bool {
	for i, v := range row {
		if !math.IsNaN(v) && !math.IsInf(v, 0) {
			continue
		}
		switch policy {
		case MissingDrop:
			return false
		case MissingZeroFill:
			row[i] = 0
		case MissingKeep:
			row[i] = math.NaN()
		}
	}
	return true
}

func missingColumns(events []RawEvent) []string {
	present := make(map[string]bool, len(RequiredFields))
	for i := range events {
		ev := &events[i]
		present["transaction_id"] = present["transaction_id"] || ev.TransactionID != nil
		present["quantity"] = present["quantity"] || ev.Quantity != nil
		present["created_at_ts"] = present["created_at_ts"] || ev.CreatedAtTS != nil
		present["item_id"] = present["item_id"] || ev.ItemID != nil
		present["warehouse_id"] = present["warehouse_id"] || ev.WarehouseID != nil
	}

	var missing []string
	for _, f := range RequiredFields {
		if !present[f] {
			missing = append(missing, f)
		}
	}
	return missing
}

func mondayFirst(d time.Weekday) int {
	return (int(d) + 6) % 7
}

func floatOrZero(v *float64) float64 {
	if v == nil {
		return 0
	}
	return *v
}

func intOrNaN(v *int64) float64 {
	if v == nil {
		return math.NaN()
	}
	return float64(*v)
}
