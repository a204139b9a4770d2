// Stockwatch - Inventory Movement Anomaly Detection
// Copyright 2026 Tom F. (tomtom215)
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/tomtom215/stockwatch

/*
Package cli implements the stockwatch command tree.

The offline pipeline runs as three steps sharing files on disk:

	stockwatch features --source csv --csv-path movements.csv
	stockwatch train --store /data/models
	stockwatch score --store /data/models --input movements.csv

features writes features/transactions_featured.parquet and a vocabulary.json
beside it. train reads both and saves a model directory. score loads a model
and writes output/scored.parquet. The models subcommands list, prune and
replicate store versions.

The configuration is loaded once in the root command's PersistentPreRunE,
so every subcommand sees the same koanf-resolved settings and logger.
*/
package cli
