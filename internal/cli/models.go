// Stockwatch - Inventory Movement Anomaly Detection
// Copyright 2026 Tom F. (tomtom215)
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/tomtom215/stockwatch

package cli

import (
	"context"
	"errors"
	"fmt"
	"text/tabwriter"

	"github.com/spf13/cobra"

	"github.com/tomtom215/stockwatch/internal/anomaly/storage"
	"github.com/tomtom215/stockwatch/internal/logging"
)

// NewModelsCommand creates the models command group.
func NewModelsCommand(rootOpts *RootOptions) *cobra.Command {
	var storeDir string

	cmd := &cobra.Command{
		Use:   "models",
		Short: "Manage the versioned model store",
	}
	cmd.PersistentFlags().StringVar(&storeDir, "store", "", "model store directory (default: model.store_dir)")

	openStore := func() (*storage.Store, error) {
		dir := storeDir
		if dir == "" {
			dir = rootOpts.Config.Model.StoreDir
		}
		if dir == "" {
			return nil, errors.New("no model store: pass --store or set model.store_dir")
		}
		return storage.NewStore(dir)
	}

	cmd.AddCommand(newModelsListCommand(openStore))
	cmd.AddCommand(newModelsPruneCommand(openStore))
	cmd.AddCommand(newModelsPushCommand(rootOpts, openStore))
	cmd.AddCommand(newModelsPullCommand(rootOpts, openStore))

	return cmd
}

type storeOpener func() (*storage.Store, error)

func cmdContext(cmd *cobra.Command) context.Context {
	if ctx := cmd.Context(); ctx != nil {
		return ctx
	}
	return context.Background()
}

func newModelsListCommand(openStore storeOpener) *cobra.Command {
	return &cobra.Command{
		Use:   "list",
		Short: "List stored model versions",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			store, err := openStore()
			if err != nil {
				return err
			}
			versions, err := store.List(cmdContext(cmd))
			if err != nil {
				return err
			}
			if len(versions) == 0 {
				_, _ = fmt.Fprintln(cmd.OutOrStdout(), "No model versions stored.") //nolint:errcheck // console output
				return nil
			}

			w := tabwriter.NewWriter(cmd.OutOrStdout(), 0, 0, 2, ' ', 0)
			_, _ = fmt.Fprintln(w, "VERSION\tTRAINED AT\tROWS\tCOMPONENTS\tCLUSTERS\tTHRESHOLD\tSIZE") //nolint:errcheck // console output
			for _, v := range versions {
				threshold := "-"
				if v.Threshold != nil {
					threshold = fmt.Sprintf("%.4f", *v.Threshold)
				}
				_, _ = fmt.Fprintf(w, "%d\t%s\t%d\t%d\t%d\t%s\t%d\n", //nolint:errcheck // console output
					v.Version, v.TrainedAt.Format("2006-01-02 15:04:05"), v.TrainingRows,
					v.NComponents, v.NClusters, threshold, v.SizeBytes)
			}
			return w.Flush()
		},
	}
}

func newModelsPruneCommand(openStore storeOpener) *cobra.Command {
	var keep int
	cmd := &cobra.Command{
		Use:   "prune",
		Short: "Delete all but the newest versions",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			if keep < 1 {
				return fmt.Errorf("--keep must be at least 1, got %d", keep)
			}
			store, err := openStore()
			if err != nil {
				return err
			}
			removed, err := store.Prune(cmdContext(cmd), keep)
			if err != nil {
				return err
			}
			_, _ = fmt.Fprintf(cmd.OutOrStdout(), "Removed %d versions\n", len(removed)) //nolint:errcheck // console output
			return nil
		},
	}
	cmd.Flags().IntVar(&keep, "keep", 5, "number of newest versions to keep")
	return cmd
}

func newModelsPushCommand(rootOpts *RootOptions, openStore storeOpener) *cobra.Command {
	var version int
	cmd := &cobra.Command{
		Use:   "push",
		Short: "Upload a store version to S3",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			ctx := cmdContext(cmd)
			store, err := openStore()
			if err != nil {
				return err
			}
			if version == 0 {
				latest, err := store.Refresh()
				if err != nil {
					return err
				}
				if latest == 0 {
					return fmt.Errorf("%w: store %s is empty", storage.ErrArtifactNotFound, store.BaseDir())
				}
				version = latest
			}
			if err := publishVersion(ctx, rootOpts, store, version); err != nil {
				return err
			}
			_, _ = fmt.Fprintf(cmd.OutOrStdout(), "Pushed version %d\n", version) //nolint:errcheck // console output
			return nil
		},
	}
	cmd.Flags().IntVar(&version, "version", 0, "version to push (0 = latest)")
	return cmd
}

func newModelsPullCommand(rootOpts *RootOptions, openStore storeOpener) *cobra.Command {
	var version int
	cmd := &cobra.Command{
		Use:   "pull",
		Short: "Download a version from S3 into the store",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			ctx := cmdContext(cmd)
			store, err := openStore()
			if err != nil {
				return err
			}
			pub, err := storage.PublisherFromConfig(ctx, &rootOpts.Config.S3, store)
			if err != nil {
				return err
			}
			if pub == nil {
				return errors.New("s3 publishing is disabled (s3.enabled=false)")
			}
			if version == 0 {
				remote, err := pub.Versions(ctx)
				if err != nil {
					return err
				}
				if len(remote) == 0 {
					return fmt.Errorf("%w: no versions in the bucket", storage.ErrArtifactNotFound)
				}
				version = remote[len(remote)-1]
			}
			n, err := pub.Pull(ctx, version)
			if err != nil {
				return err
			}
			logging.Info().Int("version", version).Int("files", n).Msg("Model version pulled")
			_, _ = fmt.Fprintf(cmd.OutOrStdout(), "Pulled version %d to %s\n", version, store.Path(version)) //nolint:errcheck // console output
			return nil
		},
	}
	cmd.Flags().IntVar(&version, "version", 0, "version to pull (0 = newest in the bucket)")
	return cmd
}
