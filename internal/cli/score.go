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
	"strings"

	"github.com/spf13/cobra"

	"github.com/tomtom215/stockwatch/internal/anomaly"
	"github.com/tomtom215/stockwatch/internal/database"
	"github.com/tomtom215/stockwatch/internal/features"
	"github.com/tomtom215/stockwatch/internal/logging"
)

// ScoreOptions holds the score command flags.
type ScoreOptions struct {
	ModelDir string
	Store    string
	Version  int
	Source   string // file | api
	Input    string
	Output   string
	APIURL   string
	Token    string
	MaxRows  int
}

// NewScoreCommand creates the score command.
func NewScoreCommand(rootOpts *RootOptions) *cobra.Command {
	opts := &ScoreOptions{}

	cmd := &cobra.Command{
		Use:   "score",
		Short: "Score movements with a saved model",
		Long: `Score a feature parquet, a CSV of raw movements, or a fresh pull from the
export API. Raw movements are encoded with the vocabulary and missing value
policy stored in the model. The output parquet holds the feature columns
followed by anomaly_score, cluster_id and is_anomaly.`,
		Args: cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			return runScore(cmd, rootOpts, opts)
		},
	}

	cmd.Flags().StringVar(&opts.ModelDir, "model-dir", "", "model directory (default: model.dir, else ./model)")
	cmd.Flags().StringVar(&opts.Store, "store", "", "load from this model store")
	cmd.Flags().IntVar(&opts.Version, "version", 0, "store version to load (0 = latest)")
	cmd.Flags().StringVar(&opts.Source, "source", "file", "input source (file|api)")
	cmd.Flags().StringVar(&opts.Input, "input", defaultFeaturesPath, "feature parquet, or a .csv of raw movements")
	cmd.Flags().StringVar(&opts.Output, "output", defaultScoredPath, "output parquet path")
	cmd.Flags().StringVar(&opts.APIURL, "api-url", "", "override export.base_url when --source=api")
	cmd.Flags().StringVar(&opts.Token, "token", "", "bearer token for the export API")
	cmd.Flags().IntVar(&opts.MaxRows, "max-rows", 0, "cap the number of exported rows (0 = config)")
	cmd.MarkFlagsMutuallyExclusive("model-dir", "store")

	return cmd
}

func runScore(cmd *cobra.Command, rootOpts *RootOptions, opts *ScoreOptions) error {
	ctx := cmdContext(cmd)
	cfg := rootOpts.Config

	loc := modelLocation{dir: opts.ModelDir, store: opts.Store, version: opts.Version}
	if loc.dir == "" && loc.store == "" {
		loc.dir = cfg.Model.Dir
		if loc.dir == "" {
			loc.store = cfg.Model.StoreDir
		}
		if loc.dir == "" && loc.store == "" {
			loc.dir = defaultModelDir
		}
	}
	if opts.Version > 0 && loc.store == "" {
		return errors.New("--version needs a model store (--store or model.store_dir)")
	}

	predictor, err := loadPredictor(ctx, loc)
	if err != nil {
		return err
	}

	db, err := openScratchDB(cfg)
	if err != nil {
		return err
	}
	defer db.Close() //nolint:errcheck // in-memory scratch database

	m, err := scoreInput(ctx, db, rootOpts, opts, predictor)
	if err != nil {
		return err
	}

	results, err := predictor.Score(m)
	if err != nil {
		return err
	}

	if err := ensureParent(opts.Output); err != nil {
		return err
	}
	if err := db.WriteScores(ctx, opts.Output, m, results); err != nil {
		return err
	}

	anomalies, maxScore := anomaly.Summary(results)
	logger := logging.WithComponent("score")
	logger.Info().
		Str("model", loc.describe()).
		Int("rows", len(results)).
		Int("anomalies", anomalies).
		Float64("max_score", maxScore).
		Msg("Scoring complete")

	_, _ = fmt.Fprintf(cmd.OutOrStdout(), "Wrote %d rows to %s, anomalies: %d\n", //nolint:errcheck // console output
		len(results), opts.Output, anomalies)
	return nil
}

// scoreInput loads the rows to score as a feature matrix.
func scoreInput(ctx context.Context, db *database.DB, rootOpts *RootOptions, opts *ScoreOptions, p *anomaly.Predictor) (*features.Matrix, error) {
	switch opts.Source {
	case "api":
		events, err := fetchEvents(ctx, rootOpts.Config, exportOverrides{
			apiURL:  opts.APIURL,
			token:   opts.Token,
			maxRows: opts.MaxRows,
		})
		if err != nil {
			return nil, err
		}
		return p.BuildFeatures(events)
	case "file":
	default:
		return nil, fmt.Errorf("invalid --source %q: must be file or api", opts.Source)
	}

	if strings.EqualFold(filepath.Ext(opts.Input), ".csv") {
		events, err := db.ReadEventsCSV(ctx, opts.Input)
		if errors.Is(err, os.ErrNotExist) {
			return nil, fmt.Errorf("input not found: %s", opts.Input)
		}
		if err != nil {
			return nil, err
		}
		return p.BuildFeatures(events)
	}

	m, err := db.ReadFeatures(ctx, opts.Input)
	if errors.Is(err, os.ErrNotExist) {
		return nil, fmt.Errorf("features not found: %s. Run `stockwatch features` first", opts.Input)
	}
	return m, err
}
