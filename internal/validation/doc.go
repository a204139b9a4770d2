// Stockwatch - Inventory Movement Anomaly Detection
// Copyright 2026 Tom F. (tomtom215)
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/tomtom215/stockwatch

// Package validation provides struct validation using go-playground/validator v10.
//
// A single validator instance is shared process-wide; it caches struct
// metadata after the first use. Field names in errors are taken from the
// json tag, so messages name the fields a client actually sent.
//
// # Quick Start
//
//	type ScoreRequest struct {
//	    TransactionIDs []int64           `json:"transaction_ids" validate:"required_without=Transactions,excluded_with=Transactions"`
//	    Transactions   []features.RawEvent `json:"transactions" validate:"required_without=TransactionIDs,excluded_with=TransactionIDs"`
//	}
//
//	if verr := validation.ValidateStruct(&req); verr != nil {
//	    apiErr := verr.ToAPIError()
//	    rw.BadRequestWithDetails(apiErr.Message, apiErr.Details)
//	    return
//	}
//
// # Error Types
//
// ValidationError describes one failing field. RequestValidationError
// collects them and converts to the API error shape with ToAPIError: one
// failure yields its message with field, tag and value details, several
// failures yield a joined message and a fields list.
package validation
