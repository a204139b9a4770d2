// Stockwatch - Inventory Movement Anomaly Detection
// Copyright 2026 Tom F. (tomtom215)
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/tomtom215/stockwatch

package services

import (
	"context"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"strings"
	"time"

	"github.com/fsnotify/fsnotify"
	"github.com/rs/zerolog"

	"github.com/tomtom215/stockwatch/internal/anomaly"
	"github.com/tomtom215/stockwatch/internal/metrics"
)

// DefaultWatchDebounce collapses the burst of events a single save produces.
const DefaultWatchDebounce = 2 * time.Second

// ModelWatchService reloads the served model when its artifact location
// changes on disk. Both a plain artifact directory, which is replaced by
// rename, and a versioned store root, which gains new version directories,
// are covered by watching the parent directory as well as the path itself.
type ModelWatchService struct {
	holder   *anomaly.Holder
	loader   anomaly.Loader
	path     string
	debounce time.Duration
	logger   zerolog.Logger
	name     string
}

// NewModelWatchService watches path and reloads through loader.
//
//nolint:gocritic // zerolog.Logger is designed to be passed by value
func NewModelWatchService(holder *anomaly.Holder, loader anomaly.Loader, path string, debounce time.Duration, logger zerolog.Logger) *ModelWatchService {
	if debounce <= 0 {
		debounce = DefaultWatchDebounce
	}
	return &ModelWatchService{
		holder:   holder,
		loader:   loader,
		path:     filepath.Clean(path),
		debounce: debounce,
		logger:   logger.With().Str("service", "model-watch").Str("path", path).Logger(),
		name:     "model-watch",
	}
}

// Serve implements suture.Service. A watcher error ends Serve so that the
// supervisor restarts it with a fresh watcher.
func (s *ModelWatchService) Serve(ctx context.Context) error {
	watcher, err := fsnotify.NewWatcher()
	if err != nil {
		return fmt.Errorf("create watcher: %w", err)
	}
	defer func() { _ = watcher.Close() }() //nolint:errcheck // shutdown path

	if err := s.addWatches(watcher); err != nil {
		return err
	}
	s.logger.Info().Dur("debounce", s.debounce).Msg("Watching model artifacts")

	timer := time.NewTimer(s.debounce)
	if !timer.Stop() {
		<-timer.C
	}
	defer timer.Stop()

	for {
		select {
		case <-ctx.Done():
			return ctx.Err()

		case event, ok := <-watcher.Events:
			if !ok {
				return errors.New("watcher closed")
			}
			if !s.relevant(event) {
				continue
			}
			// The path itself may have just been (re)created.
			if event.Name == s.path && event.Has(fsnotify.Create) {
				_ = watcher.Add(s.path) //nolint:errcheck // a plain file cannot be watched as a directory
			}
			s.logger.Debug().Str("event", event.String()).Msg("Model artifact changed")
			timer.Reset(s.debounce)

		case err, ok := <-watcher.Errors:
			if !ok {
				return errors.New("watcher closed")
			}
			return fmt.Errorf("watch %s: %w", s.path, err)

		case <-timer.C:
			s.reload(ctx)
		}
	}
}

func (s *ModelWatchService) addWatches(w *fsnotify.Watcher) error {
	parent := filepath.Dir(s.path)
	if err := w.Add(parent); err != nil {
		return fmt.Errorf("watch %s: %w", parent, err)
	}
	if info, err := os.Stat(s.path); err == nil && info.IsDir() {
		if err := w.Add(s.path); err != nil {
			return fmt.Errorf("watch %s: %w", s.path, err)
		}
	}
	return nil
}

// relevant keeps events on the watched path or anything below it. Staging
// and moved-aside siblings share the parent but not the path.
func (s *ModelWatchService) relevant(event fsnotify.Event) bool {
	if event.Has(fsnotify.Chmod) && !event.Has(fsnotify.Write) {
		return false
	}
	name := filepath.Clean(event.Name)
	return name == s.path || strings.HasPrefix(name, s.path+string(filepath.Separator))
}

func (s *ModelWatchService) reload(ctx context.Context) {
	info, err := s.holder.Reload(ctx, s.loader)
	metrics.RecordModelLoad(info.Version, err)
	if err != nil {
		if ctx.Err() == nil {
			s.logger.Warn().Err(err).Msg("Model reload failed, keeping current model")
		}
		return
	}
	s.logger.Info().
		Int("version", info.Version).
		Str("source", info.Source).
		Msg("Model reloaded from disk")
}

// String names the service in supervisor logs.
func (s *ModelWatchService) String() string {
	return s.name
}
