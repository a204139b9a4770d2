// Stockwatch - Inventory Movement Anomaly Detection
// Copyright 2026 Tom F. (tomtom215)
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/tomtom215/stockwatch

package features

import (
	"strings"
	"time"
)

// Transaction types reported by the inventory service.
const (
	TypeIn       = "in"
	TypeOut      = "out"
	TypeAdjust   = "adjust"
	TypeTransfer = "transfer"
)

// UnknownCategory replaces a missing transaction_type or item_category.
const UnknownCategory = "unknown"

// RawEvent is one inventory movement as exported by the inventory service.
// Pointer fields distinguish an absent value from a zero value.
type RawEvent struct {
	TransactionID   *int64   `json:"transaction_id"`
	ItemID          *int64   `json:"item_id"`
	ItemSKU         *string  `json:"item_sku,omitempty"`
	ItemCategory    *string  `json:"item_category"`
	WarehouseID     *int64   `json:"warehouse_id"`
	WarehouseCode   *string  `json:"warehouse_code,omitempty"`
	TransactionType *string  `json:"transaction_type"`
	Quantity        *float64 `json:"quantity"`
	UnitPrice       *float64 `json:"unit_price"`
	TotalAmount     *float64 `json:"total_amount"`
	ReferenceType   *string  `json:"reference_type,omitempty"`
	CreatedAt       *string  `json:"created_at,omitempty"`
	CreatedAtTS     *float64 `json:"created_at_ts"`
}

// IsOutbound reports whether the event removes stock.
func (e *RawEvent) IsOutbound() bool {
	return e.TransactionType != nil && strings.EqualFold(strings.TrimSpace(*e.TransactionType), TypeOut)
}

// Timestamp returns created_at_ts as a UTC time.
func (e *RawEvent) Timestamp() (time.Time, bool) {
	if e.CreatedAtTS == nil {
		return time.Time{}, false
	}
	sec, frac := splitSeconds(*e.CreatedAtTS)
	return time.Unix(sec, frac).UTC(), true
}

func splitSeconds(ts float64) (int64, int64) {
	sec := int64(ts)
	if float64(sec) > ts {
		sec--
	}
	nsec := int64((ts - float64(sec)) * 1e9)
	return sec, nsec
}

// Helpers for building events in code and tests.

// Int64 returns a pointer to v.
func Int64(v int64) *int64 { return &v }

// Float64 returns a pointer to v.
func Float64(v float64) *float64 { return &v }

// String returns a pointer to v.
func String(v string) *string { return &v }
