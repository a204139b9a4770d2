// Stockwatch - Inventory Movement Anomaly Detection
// Copyright 2026 Tom F. (tomtom215)
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/tomtom215/stockwatch

package anomaly

import (
	"math/rand"

	"github.com/tomtom215/stockwatch/internal/features"
)

// 2024-01-01 09:00:00 UTC
const morningShift = 1704099600.0

// movementBatch returns 200 inbound movements of which every twentieth
// (transaction ids 20, 40, ..., 200) moves 100x the usual quantity at 50x
// the usual unit price.
func movementBatch() []features.RawEvent {
	events := make([]features.RawEvent, 200)
	for i := range events {
		qty := float64(5 + i%5)
		price := 10 + 0.5*float64(i%7)
		if isOutlierRow(i) {
			qty *= 100
			price *= 50
		}
		events[i] = features.RawEvent{
			TransactionID:   features.Int64(int64(i + 1)),
			ItemID:          features.Int64(1),
			ItemCategory:    features.String("tools"),
			WarehouseID:     features.Int64(int64(1 + (i/4)%2)),
			TransactionType: features.String(features.TypeIn),
			Quantity:        features.Float64(qty),
			UnitPrice:       features.Float64(price),
			TotalAmount:     features.Float64(qty * price),
			CreatedAtTS:     features.Float64(morningShift),
		}
	}
	return events
}

func isOutlierRow(i int) bool {
	return i%20 == 19
}

func smallConfig() TrainConfig {
	cfg := DefaultTrainConfig()
	cfg.NComponents = 2
	cfg.NClusters = 3
	return cfg
}

// noiseMatrix returns a reproducible matrix of uniform noise.
func noiseMatrix(rows, cols int, seed int64) *features.Matrix {
	rng := rand.New(rand.NewSource(seed)) //nolint:gosec // test data
	m := &features.Matrix{Columns: make([]string, cols)}
	for j := range m.Columns {
		m.Columns[j] = string(rune('a' + j))
	}
	for i := 0; i < rows; i++ {
		row := make([]float64, cols)
		for j := range row {
			row[j] = rng.Float64() * float64(j+1)
		}
		m.IDs = append(m.IDs, int64(i))
		m.Rows = append(m.Rows, row)
	}
	return m
}
