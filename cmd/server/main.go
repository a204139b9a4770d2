// Stockwatch - Inventory Movement Anomaly Detection
// Copyright 2026 Tom F. (tomtom215)
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/tomtom215/stockwatch

package main

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/tomtom215/stockwatch/internal/anomaly"
	"github.com/tomtom215/stockwatch/internal/anomaly/storage"
	"github.com/tomtom215/stockwatch/internal/api"
	"github.com/tomtom215/stockwatch/internal/config"
	"github.com/tomtom215/stockwatch/internal/database"
	"github.com/tomtom215/stockwatch/internal/fetcher"
	"github.com/tomtom215/stockwatch/internal/logging"
	"github.com/tomtom215/stockwatch/internal/supervisor"
	"github.com/tomtom215/stockwatch/internal/supervisor/services"
)

func main() {
	cfg, err := config.Load("")
	if err != nil {
		logging.Fatal().Err(err).Msg("Failed to load configuration")
	}

	logging.Init(logging.Config{
		Level:  cfg.Logging.Level,
		Format: cfg.Logging.Format,
		Caller: cfg.Logging.Caller,
	})

	logging.Info().
		Str("db_path", cfg.Database.Path).
		Str("model_dir", cfg.Model.Dir).
		Str("model_store", cfg.Model.StoreDir).
		Str("auth_mode", cfg.Security.AuthMode).
		Msg("Configuration loaded")

	if err := run(cfg); err != nil {
		logging.Error().Err(err).Msg("Server failed")
		os.Exit(1)
	}
	logging.Info().Msg("Application stopped gracefully")
}

func run(cfg *config.Config) error {
	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	db, err := database.New(&cfg.Database)
	if err != nil {
		return fmt.Errorf("initialize database: %w", err)
	}
	defer func() {
		if err := db.Close(); err != nil {
			logging.Error().Err(err).Msg("Error closing database")
		}
	}()
	logging.Info().Msg("Database initialized successfully")

	source, err := storage.SourceFromConfig(&cfg.Model)
	if err != nil {
		return fmt.Errorf("open model store: %w", err)
	}
	holder := anomaly.NewHolder()
	if info, err := holder.Reload(ctx, source); err != nil {
		logging.Warn().Err(err).Msg("No model loaded at startup; scoring returns 503 until one is available")
	} else {
		logging.Info().Int("version", info.Version).Str("source", info.Source).Msg("Model loaded")
	}

	var publisher *storage.Publisher
	if source.Store != nil {
		publisher, err = storage.PublisherFromConfig(ctx, &cfg.S3, source.Store)
		if err != nil {
			return fmt.Errorf("initialize s3 publisher: %w", err)
		}
	}

	if cfg.Security.AuthMode == config.AuthModeNone {
		logging.Warn().Msg("Authentication is DISABLED (AUTH_MODE=none); the scoring API is open to anyone who can reach it")
	}
	if cfg.Security.RateLimitDisabled {
		logging.Warn().Msg("Rate limiting is DISABLED (RATE_LIMIT_DISABLED=true)")
	}

	routerCfg, err := api.RouterConfigFromSecurity(&cfg.Security)
	if err != nil {
		return fmt.Errorf("configure router: %w", err)
	}
	handler := api.NewHandler(api.HandlerOptions{
		Holder:        holder,
		Events:        db,
		Loader:        source,
		Database:      db,
		MaxScoreBatch: cfg.Security.MaxScoreBatch,
		Logger:        logging.WithComponent("api"),
	})

	server := &http.Server{
		Addr:              fmt.Sprintf("%s:%d", cfg.Server.Host, cfg.Server.Port),
		Handler:           api.NewRouter(handler, routerCfg),
		ReadHeaderTimeout: 10 * time.Second,
		ReadTimeout:       cfg.Server.Timeout,
		WriteTimeout:      cfg.Server.Timeout,
		IdleTimeout:       60 * time.Second,
	}

	tree, err := supervisor.NewTree(logging.NewSlogLogger(), supervisor.DefaultTreeConfig())
	if err != nil {
		return fmt.Errorf("create supervisor tree: %w", err)
	}

	if cfg.Sync.Enabled {
		client, err := fetcher.NewFromConfig(&cfg.Export, logging.WithComponent("fetcher"))
		if err != nil {
			return fmt.Errorf("initialize export client: %w", err)
		}
		tree.AddDataService(services.NewSyncService(client, db, services.SyncServiceConfig{
			Interval:  cfg.Sync.Interval,
			OnStartup: true,
		}, logging.WithComponent("sync")))
		logging.Info().Str("base_url", cfg.Export.BaseURL).Dur("interval", cfg.Sync.Interval).Msg("Export sync added to supervisor tree")
	}

	if cfg.Model.Watch {
		if dir := source.WatchDir(); dir != "" {
			tree.AddDataService(services.NewModelWatchService(holder, source, dir, 0, logging.WithComponent("model-watch")))
			logging.Info().Str("path", dir).Msg("Model watcher added to supervisor tree")
		}
	}

	if cfg.Train.Enabled {
		var pusher services.ArtifactPusher
		if publisher != nil {
			pusher = publisher
		}
		tree.AddModelService(services.NewTrainService(db, source.Store, pusher, holder, services.TrainServiceConfig{
			Train:        anomaly.TrainConfigFromModel(&cfg.Model),
			OnStartup:    cfg.Train.OnStartup,
			Interval:     cfg.Train.Interval,
			MinRows:      cfg.Train.MinRows,
			Timeout:      cfg.Train.Timeout,
			KeepVersions: cfg.Model.KeepVersions,
		}, logging.WithComponent("train")))
		logging.Info().Dur("interval", cfg.Train.Interval).Msg("Training service added to supervisor tree")
	}

	tree.AddAPIService(services.NewHTTPServerService(server, cfg.Server.ShutdownTimeout))
	logging.Info().Str("addr", server.Addr).Msg("HTTP server service added")

	logging.Info().Msg("Starting supervisor tree...")
	errCh := tree.ServeBackground(ctx)

	// errCh delivers exactly one value and is never closed.
	var treeErr error
	select {
	case <-ctx.Done():
		logging.Info().Msg("Received shutdown signal, waiting for supervisor to finish...")
		treeErr = <-errCh
	case treeErr = <-errCh:
	}
	stop()
	if treeErr != nil && !errors.Is(treeErr, context.Canceled) {
		logging.Error().Err(treeErr).Msg("Supervisor tree error")
	}

	unstopped, _ := tree.UnstoppedServiceReport() //nolint:errcheck // report only
	if len(unstopped) > 0 {
		logging.Warn().Int("count", len(unstopped)).Msg("Services failed to stop within timeout")
		for _, svc := range unstopped {
			logging.Warn().Str("service", svc.Name).Msg("Service failed to stop")
		}
	}
	return nil
}
