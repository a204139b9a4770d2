// Stockwatch - Inventory Movement Anomaly Detection
// Copyright 2026 Tom F. (tomtom215)
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/tomtom215/stockwatch

package storage

import (
	"context"
	"fmt"

	"github.com/tomtom215/stockwatch/internal/config"
)

// SourceFromConfig resolves where the served model comes from. The store
// is opened even when a fixed dir is set so that it can still be pruned
// and replicated; its directory is created on first use.
func SourceFromConfig(cfg *config.ModelConfig) (Source, error) {
	src := Source{Dir: cfg.Dir}
	if cfg.StoreDir != "" {
		store, err := NewStore(cfg.StoreDir)
		if err != nil {
			return Source{}, fmt.Errorf("open model store: %w", err)
		}
		src.Store = store
	}
	return src, nil
}

// PublisherFromConfig returns an S3 publisher for store, or nil when S3
// replication is disabled.
func PublisherFromConfig(ctx context.Context, cfg *config.S3Config, store *Store) (*Publisher, error) {
	if !cfg.Enabled {
		return nil, nil
	}
	if store == nil {
		return nil, fmt.Errorf("s3 replication needs model.store_dir")
	}
	client, err := NewS3Client(ctx, S3Options{
		Region:       cfg.Region,
		Endpoint:     cfg.Endpoint,
		AccessKey:    cfg.AccessKey,
		SecretKey:    cfg.SecretKey,
		UsePathStyle: cfg.UsePathStyle,
	})
	if err != nil {
		return nil, err
	}
	return NewPublisher(client, cfg.Bucket, cfg.Prefix, store), nil
}
