// Stockwatch - Inventory Movement Anomaly Detection
// Copyright 2026 Tom F. (tomtom215)
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/tomtom215/stockwatch

package features

import "sort"

// Vocabulary freezes the label encoding of the categorical columns.
type Vocabulary struct {
	TransactionType map[string]int `json:"transaction_type"`
	ItemCategory    map[string]int `json:"item_category"`
}

// FitVocabulary numbers the sorted distinct categorical values of a batch.
// Missing values are counted as UnknownCategory.
func FitVocabulary(events []RawEvent) *Vocabulary {
	types := make([]string, 0, len(events))
	cats := make([]string, 0, len(events))
	for i := range events {
		types = append(types, categoryValue(events[i].TransactionType))
		cats = append(cats, categoryValue(events[i].ItemCategory))
	}
	return &Vocabulary{
		TransactionType: indexSorted(types),
		ItemCategory:    indexSorted(cats),
	}
}

// EncodeType returns the code for a transaction type. Values outside the
// vocabulary share the code len(TransactionType).
func (v *Vocabulary) EncodeType(value string) int {
	return encode(v.TransactionType, value)
}

// EncodeCategory returns the code for an item category. Values outside the
// vocabulary share the code len(ItemCategory).
func (v *Vocabulary) EncodeCategory(value string) int {
	return encode(v.ItemCategory, value)
}

func encode(codes map[string]int, value string) int {
	if code, ok := codes[value]; ok {
		return code
	}
	return len(codes)
}

func indexSorted(values []string) map[string]int {
	sort.Strings(values)
	codes := make(map[string]int, len(values))
	for _, v := range values {
		if _, seen := codes[v]; !seen {
			codes[v] = len(codes)
		}
	}
	return codes
}

func categoryValue(v *string) string {
	if v == nil {
		return UnknownCategory
	}
	return *v
}
