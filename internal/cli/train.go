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
	"strings"

	"github.com/spf13/cobra"

	"github.com/tomtom215/stockwatch/internal/anomaly"
	"github.com/tomtom215/stockwatch/internal/anomaly/storage"
	"github.com/tomtom215/stockwatch/internal/features"
	"github.com/tomtom215/stockwatch/internal/logging"
)

// TrainOptions holds the train command flags.
type TrainOptions struct {
	Features    string
	ModelDir    string
	Store       string
	NComponents int
	NClusters   int
	RandomState int64
	Publish     bool
}

// NewTrainCommand creates the train command.
func NewTrainCommand(rootOpts *RootOptions) *cobra.Command {
	opts := &TrainOptions{}

	cmd := &cobra.Command{
		Use:   "train",
		Short: "Fit the anomaly model on a feature matrix",
		Long: `Fit StandardScaler, PCA and k-means on the feature matrix and save the
artifact either to a plain directory (--model-dir) or as the next version
of a model store (--store). Hyperparameters default to the model section
of the configuration.`,
		Args: cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			return runTrain(cmd, rootOpts, opts)
		},
	}

	cmd.Flags().StringVar(&opts.Features, "features", defaultFeaturesPath, "feature parquet written by `stockwatch features`")
	cmd.Flags().StringVar(&opts.ModelDir, "model-dir", "", "save to this directory (default: model.dir, else ./model)")
	cmd.Flags().StringVar(&opts.Store, "store", "", "save as the next version of this model store")
	cmd.Flags().IntVar(&opts.NComponents, "n-components", 0, "PCA components (0 = config)")
	cmd.Flags().IntVar(&opts.NClusters, "n-clusters", 0, "k-means clusters (0 = config)")
	cmd.Flags().Int64Var(&opts.RandomState, "random-state", 0, "k-means seed (default: model.random_state)")
	cmd.Flags().BoolVar(&opts.Publish, "publish", false, "push the new store version to S3")
	cmd.MarkFlagsMutuallyExclusive("model-dir", "store")

	return cmd
}

func runTrain(cmd *cobra.Command, rootOpts *RootOptions, opts *TrainOptions) error {
	ctx := cmdContext(cmd)
	cfg := rootOpts.Config
	logger := logging.WithComponent("train")

	storeDir := opts.Store
	modelDir := opts.ModelDir
	if storeDir == "" && modelDir == "" {
		modelDir = cfg.Model.Dir
		if modelDir == "" {
			storeDir = cfg.Model.StoreDir
		}
		if modelDir == "" && storeDir == "" {
			modelDir = defaultModelDir
		}
	}
	if opts.Publish && storeDir == "" {
		return errors.New("--publish needs a model store (--store or model.store_dir)")
	}

	db, err := openScratchDB(cfg)
	if err != nil {
		return err
	}
	defer db.Close() //nolint:errcheck // in-memory scratch database

	m, err := db.ReadFeatures(ctx, opts.Features)
	if errors.Is(err, os.ErrNotExist) {
		return fmt.Errorf("features not found: %s. Run `stockwatch features` first", opts.Features)
	}
	if err != nil {
		return err
	}

	rows, missing := m.Select(features.FeatureColumns)
	if len(missing) > 0 {
		return &features.MissingColumnError{Columns: missing}
	}
	selected := &features.Matrix{IDs: m.IDs, Columns: features.FeatureColumns, Rows: rows}

	trainCfg := anomaly.TrainConfigFromModel(&cfg.Model)
	if opts.NComponents > 0 {
		trainCfg.NComponents = opts.NComponents
	}
	if opts.NClusters > 0 {
		trainCfg.NClusters = opts.NClusters
	}
	if cmd.Flags().Changed("random-state") {
		trainCfg.RandomState = opts.RandomState
	}

	res, err := anomaly.Train(ctx, selected, trainCfg)
	if err != nil {
		return err
	}

	vocab, err := readVocabulary(vocabularyPath(opts.Features))
	if err != nil {
		return err
	}
	if vocab != nil {
		res.Artifact.Config.Vocabulary = vocab
		res.Artifact.Config.TrainMissingPolicy = string(features.MissingDrop)
		res.Artifact.Config.ScoreMissingPolicy = string(features.MissingZeroFill)
	} else {
		logger.Warn().Str("features", opts.Features).
			Msg("No vocabulary next to the feature matrix; categorical codes will be batch-relative when scoring")
	}

	logger.Info().
		Int("rows", res.Artifact.Config.TrainingRows).
		Int("rows_dropped", res.RowsDropped).
		Int("n_components", res.Artifact.Config.NComponents).
		Int("n_clusters", res.Artifact.Config.NClusters).
		Dur("duration", res.Duration).
		Msg("Model trained")

	savedTo := modelDir
	if storeDir != "" {
		store, err := storage.NewStore(storeDir)
		if err != nil {
			return err
		}
		version, err := store.Save(ctx, res.Artifact)
		if err != nil {
			return err
		}
		savedTo = store.Path(version)

		if cfg.Model.KeepVersions > 0 {
			if _, err := store.Prune(ctx, cfg.Model.KeepVersions); err != nil {
				logger.Warn().Err(err).Msg("Failed to prune model store")
			}
		}
		if opts.Publish {
			if err := publishVersion(ctx, rootOpts, store, version); err != nil {
				return err
			}
		}
	} else if err := storage.SaveDir(modelDir, res.Artifact); err != nil {
		return err
	}

	threshold, _ := res.Artifact.Threshold()
	_, _ = fmt.Fprintf(cmd.OutOrStdout(), "Saved model to %s, anomaly_score_threshold=%.4f\n", //nolint:errcheck // console output
		strings.TrimSuffix(savedTo, "/"), threshold)
	return nil
}

func publishVersion(ctx context.Context, rootOpts *RootOptions, store *storage.Store, version int) error {
	pub, err := storage.PublisherFromConfig(ctx, &rootOpts.Config.S3, store)
	if err != nil {
		return err
	}
	if pub == nil {
		return errors.New("s3 publishing is disabled (s3.enabled=false)")
	}
	n, err := pub.Push(ctx, version)
	if err != nil {
		return err
	}
	logging.Info().Int("version", version).Int("files", n).Msg("Model version pushed")
	return nil
}
