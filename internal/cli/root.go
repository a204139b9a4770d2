// Stockwatch - Inventory Movement Anomaly Detection
// Copyright 2026 Tom F. (tomtom215)
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/tomtom215/stockwatch

package cli

import (
	"fmt"

	"github.com/spf13/cobra"

	"github.com/tomtom215/stockwatch/internal/config"
	"github.com/tomtom215/stockwatch/internal/logging"
)

// RootOptions holds the global flags and the configuration they resolve to.
type RootOptions struct {
	ConfigPath string
	LogLevel   string
	LogFormat  string

	// Config is loaded before any subcommand runs.
	Config *config.Config
}

// NewRootCommand creates the stockwatch command tree.
func NewRootCommand() *cobra.Command {
	opts := &RootOptions{}

	cmd := &cobra.Command{
		Use:   "stockwatch",
		Short: "Inventory movement anomaly detection",
		Long: `Offline pipeline for inventory movement anomaly detection.

  features  fetch movements (export API or CSV) and write the feature matrix
  train     fit scaler, PCA and k-means on a feature matrix and save the model
  score     score a feature matrix or raw movements with a saved model
  models    list, prune and replicate versions of the model store`,
		SilenceUsage: true,
		PersistentPreRunE: func(cmd *cobra.Command, _ []string) error {
			return opts.load()
		},
	}

	cmd.PersistentFlags().StringVar(&opts.ConfigPath, "config", "", "config file (default: $CONFIG_PATH, ./config.yaml, /etc/stockwatch/config.yaml)")
	cmd.PersistentFlags().StringVar(&opts.LogLevel, "log-level", "", "log level override (trace|debug|info|warn|error)")
	cmd.PersistentFlags().StringVar(&opts.LogFormat, "log-format", "", "log format override (json|console)")

	cmd.AddCommand(NewFeaturesCommand(opts))
	cmd.AddCommand(NewTrainCommand(opts))
	cmd.AddCommand(NewScoreCommand(opts))
	cmd.AddCommand(NewModelsCommand(opts))

	return cmd
}

func (o *RootOptions) load() error {
	cfg, err := config.Load(o.ConfigPath)
	if err != nil {
		return err
	}
	if o.LogLevel != "" {
		if _, err := logging.ParseLevel(o.LogLevel); err != nil {
			return fmt.Errorf("invalid --log-level: %w", err)
		}
		cfg.Logging.Level = o.LogLevel
	}
	if o.LogFormat != "" {
		if o.LogFormat != "json" && o.LogFormat != "console" {
			return fmt.Errorf("invalid --log-format %q: must be json or console", o.LogFormat)
		}
		cfg.Logging.Format = o.LogFormat
	}

	logCfg := logging.DefaultConfig()
	logCfg.Level = cfg.Logging.Level
	logCfg.Format = cfg.Logging.Format
	logCfg.Caller = cfg.Logging.Caller
	logging.Init(logCfg)

	o.Config = cfg
	return nil
}
