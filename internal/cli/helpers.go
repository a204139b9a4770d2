// Stockwatch - Inventory Movement Anomaly Detection
// Copyright 2026 Tom F. (tomtom215)
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/tomtom215/stockwatch

package cli

import (
	"context"
	"errors"
	"fmt"
	"os"
	"path/filepath"

	"github.com/goccy/go-json"

	"github.com/tomtom215/stockwatch/internal/anomaly"
	"github.com/tomtom215/stockwatch/internal/anomaly/storage"
	"github.com/tomtom215/stockwatch/internal/config"
	"github.com/tomtom215/stockwatch/internal/database"
	"github.com/tomtom215/stockwatch/internal/features"
	"github.com/tomtom215/stockwatch/internal/fetcher"
	"github.com/tomtom215/stockwatch/internal/logging"
)

const (
	defaultFeaturesPath = "features/transactions_featured.parquet"
	defaultModelDir     = "model"
	defaultScoredPath   = "output/scored.parquet"

	// VocabularyFile is written next to a feature matrix.
	VocabularyFile = "vocabulary.json"
)

// openScratchDB opens an in-memory DuckDB used for parquet and CSV I/O.
func openScratchDB(cfg *config.Config) (*database.DB, error) {
	return database.New(&config.DatabaseConfig{
		Path:      ":memory:",
		MaxMemory: cfg.Database.MaxMemory,
		Threads:   cfg.Database.Threads,
	})
}

// exportOverrides replaces parts of the export section with flag values.
type exportOverrides struct {
	apiURL  string
	token   string
	maxRows int
}

func fetchEvents(ctx context.Context, cfg *config.Config, o exportOverrides) ([]features.RawEvent, error) {
	exportCfg := cfg.Export
	if o.apiURL != "" {
		exportCfg.BaseURL = o.apiURL
	}
	if o.token != "" {
		exportCfg.Token = o.token
	}
	if o.maxRows > 0 {
		exportCfg.MaxRows = o.maxRows
	}

	client, err := fetcher.NewFromConfig(&exportCfg, logging.WithComponent("fetcher"))
	if err != nil {
		return nil, err
	}
	return client.FetchAll(ctx)
}

// modelLocation names a model: a plain directory, or a store version.
type modelLocation struct {
	dir     string
	store   string
	version int
}

func (l modelLocation) describe() string {
	if l.store != "" {
		if l.version > 0 {
			return fmt.Sprintf("%s (version %d)", l.store, l.version)
		}
		return fmt.Sprintf("%s (latest)", l.store)
	}
	return l.dir
}

func loadPredictor(ctx context.Context, l modelLocation) (*anomaly.Predictor, error) {
	var (
		a   *anomaly.Artifact
		err error
	)
	if l.store != "" {
		var store *storage.Store
		store, err = storage.NewStore(l.store)
		if err != nil {
			return nil, err
		}
		a, _, err = store.Load(ctx, l.version)
	} else {
		a, err = storage.LoadDir(l.dir)
	}
	if err != nil {
		if errors.Is(err, storage.ErrArtifactNotFound) {
			return nil, fmt.Errorf("model not found: %s: %w", l.describe(), err)
		}
		return nil, err
	}
	return anomaly.NewPredictor(a)
}

func vocabularyPath(featuresPath string) string {
	return filepath.Join(filepath.Dir(featuresPath), VocabularyFile)
}

func writeVocabulary(path string, v *features.Vocabulary) error {
	data, err := json.MarshalIndent(v, "", "  ")
	if err != nil {
		return fmt.Errorf("encode vocabulary: %w", err)
	}
	if err := os.WriteFile(path, data, 0o600); err != nil {
		return fmt.Errorf("write vocabulary: %w", err)
	}
	return nil
}

// readVocabulary returns nil when the file does not exist.
func readVocabulary(path string) (*features.Vocabulary, error) {
	data, err := os.ReadFile(path) //nolint:gosec // path comes from the operator
	if errors.Is(err, os.ErrNotExist) {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("read vocabulary: %w", err)
	}
	var v features.Vocabulary
	if err := json.Unmarshal(data, &v); err != nil {
		return nil, fmt.Errorf("decode vocabulary %s: %w", path, err)
	}
	return &v, nil
}

func ensureParent(path string) error {
	if err := os.MkdirAll(filepath.Dir(path), 0o750); err != nil { //nolint:gosec // output directories are operator owned
		return fmt.Errorf("create output directory: %w", err)
	}
	return nil
}
