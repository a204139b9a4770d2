// Stockwatch - Inventory Movement Anomaly Detection
// Copyright 2026 Tom F. (tomtom215)
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/tomtom215/stockwatch

package cli

import (
	"errors"
	"fmt"

	"github.com/spf13/cobra"

	"github.com/tomtom215/stockwatch/internal/features"
)

// FeaturesOptions holds the features command flags.
type FeaturesOptions struct {
	Source  string // api | csv
	CSVPath string
	Output  string
	MaxRows int
	APIURL  string
	Token   string
}

// NewFeaturesCommand creates the features command.
func NewFeaturesCommand(rootOpts *RootOptions) *cobra.Command {
	opts := &FeaturesOptions{}

	cmd := &cobra.Command{
		Use:   "features",
		Short: "Build the feature matrix from inventory movements",
		Long: `Load movements from the export API or a CSV file, derive the feature
columns and write them to parquet. The categorical vocabulary is written
next to the matrix as vocabulary.json so training can freeze it.`,
		Args: cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			return runFeatures(cmd, rootOpts, opts)
		},
	}

	cmd.Flags().StringVar(&opts.Source, "source", "api", "data source (api|csv)")
	cmd.Flags().StringVar(&opts.CSVPath, "csv-path", "", "CSV file when --source=csv")
	cmd.Flags().StringVar(&opts.Output, "output", defaultFeaturesPath, "output parquet path")
	cmd.Flags().IntVar(&opts.MaxRows, "max-rows", 0, "cap the number of exported rows (0 = config)")
	cmd.Flags().StringVar(&opts.APIURL, "api-url", "", "override export.base_url")
	cmd.Flags().StringVar(&opts.Token, "token", "", "bearer token for the export API")

	return cmd
}

func runFeatures(cmd *cobra.Command, rootOpts *RootOptions, opts *FeaturesOptions) error {
	ctx := cmdContext(cmd)
	out := cmd.OutOrStdout()

	db, err := openScratchDB(rootOpts.Config)
	if err != nil {
		return err
	}
	defer db.Close() //nolint:errcheck // in-memory scratch database

	var events []features.RawEvent
	switch opts.Source {
	case "api":
		events, err = fetchEvents(ctx, rootOpts.Config, exportOverrides{
			apiURL:  opts.APIURL,
			token:   opts.Token,
			maxRows: opts.MaxRows,
		})
	case "csv":
		if opts.CSVPath == "" {
			return errors.New("--csv-path is required when --source=csv")
		}
		events, err = db.ReadEventsCSV(ctx, opts.CSVPath)
		if err == nil && opts.MaxRows > 0 && len(events) > opts.MaxRows {
			events = events[:opts.MaxRows]
		}
	default:
		return fmt.Errorf("invalid --source %q: must be api or csv", opts.Source)
	}
	if err != nil {
		return err
	}

	if len(events) == 0 {
		_, _ = fmt.Fprintln(out, "No transactions loaded.") //nolint:errcheck // console output
		return nil
	}

	vocab := features.FitVocabulary(events)
	m, err := features.Build(events, features.Options{
		OnMissing:  features.MissingDrop,
		Vocabulary: vocab,
	})
	if err != nil {
		return err
	}
	if m.Len() == 0 {
		_, _ = fmt.Fprintln(out, "No rows after feature build.") //nolint:errcheck // console output
		return nil
	}

	if err := ensureParent(opts.Output); err != nil {
		return err
	}
	if err := db.WriteFeatures(ctx, opts.Output, m); err != nil {
		return err
	}
	if err := writeVocabulary(vocabularyPath(opts.Output), vocab); err != nil {
		return err
	}

	_, _ = fmt.Fprintf(out, "Wrote %d rows to %s\n", m.Len(), opts.Output) //nolint:errcheck // console output
	return nil
}
