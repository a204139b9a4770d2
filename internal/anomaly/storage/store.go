// Stockwatch - Inventory Movement Anomaly Detection
// Copyright 2026 Tom F. (tomtom215)
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/tomtom215/stockwatch

package storage

import (
	"context"
	"fmt"
	"os"
	"path/filepath"
	"slices"
	"strconv"
	"strings"
	"sync"
	"time"

	"github.com/tomtom215/stockwatch/internal/anomaly"
)

const versionPrefix = "model_v"

// VersionInfo summarizes one stored model version.
type VersionInfo struct {
	Version      int       `json:"version"`
	Path         string    `json:"path"`
	RunID        string    `json:"run_id,omitempty"`
	TrainedAt    time.Time `json:"trained_at"`
	TrainingRows int       `json:"training_rows"`
	Threshold    *float64  `json:"anomaly_score_threshold"`
	NComponents  int       `json:"n_components"`
	NClusters    int       `json:"n_clusters"`
	SizeBytes    int64     `json:"size_bytes"`
}

// Store manages versioned model directories under a base directory.
type Store struct {
	baseDir string
	mu      sync.RWMutex
	latest  int
}

// NewStore creates the base directory if needed and scans it for
// existing versions.
func NewStore(baseDir string) (*Store, error) {
	if err := os.MkdirAll(baseDir, 0o750); err != nil { //nolint:gosec // 0750 is acceptable for model storage
		return nil, fmt.Errorf("create storage directory: %w", err)
	}

	s := &Store{baseDir: baseDir}
	versions, err := s.scanVersions()
	if err != nil {
		return nil, fmt.Errorf("scan existing models: %w", err)
	}
	if len(versions) > 0 {
		s.latest = versions[len(versions)-1]
	}
	return s, nil
}

// BaseDir returns the store's base directory.
func (s *Store) BaseDir() string {
	return s.baseDir
}

// Path returns the directory of a version.
func (s *Store) Path(version int) string {
	return filepath.Join(s.baseDir, fmt.Sprintf("%s%d", versionPrefix, version))
}

// Save writes the artifact as the next version and returns that version.
func (s *Store) Save(ctx context.Context, a *anomaly.Artifact) (int, error) {
	if err := ctx.Err(); err != nil {
		return 0, err
	}

	s.mu.Lock()
	defer s.mu.Unlock()

	// Another process may have saved since the last scan.
	if versions, err := s.scanVersions(); err == nil && len(versions) > 0 {
		s.latest = max(s.latest, versions[len(versions)-1])
	}
	version := s.latest + 1
	if err := SaveDir(s.Path(version), a); err != nil {
		return 0, fmt.Errorf("save model version %d: %w", version, err)
	}
	s.latest = version
	return version, nil
}

// Install stages a version through write and moves it into place once it
// loads cleanly. It is used to import versions produced elsewhere.
func (s *Store) Install(ctx context.Context, version int, write func(dir string) error) error {
	if version < 1 {
		return fmt.Errorf("invalid model version %d", version)
	}
	if err := ctx.Err(); err != nil {
		return err
	}

	s.mu.Lock()
	defer s.mu.Unlock()

	tmp, err := os.MkdirTemp(s.baseDir, ".install-")
	if err != nil {
		return fmt.Errorf("create staging directory: %w", err)
	}
	defer func() { _ = os.RemoveAll(tmp) }() //nolint:errcheck // staging directory is gone after a successful rename

	if err := write(tmp); err != nil {
		return err
	}
	if _, err := LoadDir(tmp); err != nil {
		return err
	}
	if err := replaceDir(tmp, s.Path(version)); err != nil {
		return err
	}
	if version > s.latest {
		s.latest = version
	}
	return nil
}

// LatestVersion returns the highest stored version.
func (s *Store) LatestVersion() (int, bool) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.latest, s.latest > 0
}

// Load reads a version. Version 0 loads the latest one.
func (s *Store) Load(ctx context.Context, version int) (*anomaly.Artifact, int, error) {
	if err := ctx.Err(); err != nil {
		return nil, 0, err
	}

	if version == 0 {
		latest, err := s.Refresh()
		if err != nil {
			return nil, 0, err
		}
		if latest == 0 {
			return nil, 0, fmt.Errorf("%w: no versions in %s", ErrArtifactNotFound, s.baseDir)
		}
		version = latest
	}

	s.mu.RLock()
	defer s.mu.RUnlock()
	a, err := LoadDir(s.Path(version))
	if err != nil {
		return nil, 0, err
	}
	return a, version, nil
}

// Refresh rescans the base directory so versions written by another
// process become visible, and returns the latest version.
func (s *Store) Refresh() (int, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	versions, err := s.scanVersions()
	if err != nil {
		return 0, fmt.Errorf("scan models: %w", err)
	}
	if len(versions) > 0 && versions[len(versions)-1] > s.latest {
		s.latest = versions[len(versions)-1]
	}
	return s.latest, nil
}

// List describes every stored version in ascending order. Versions whose
// config cannot be read are skipped.
func (s *Store) List(ctx context.Context) ([]VersionInfo, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	versions, err := s.scanVersions()
	if err != nil {
		return nil, err
	}

	infos := make([]VersionInfo, 0, len(versions))
	for _, v := range versions {
		if err := ctx.Err(); err != nil {
			return nil, err
		}
		dir := s.Path(v)
		cfg, err := ReadConfig(dir)
		if err != nil {
			continue
		}
		infos = append(infos, VersionInfo{
			Version:      v,
			Path:         dir,
			RunID:        cfg.RunID,
			TrainedAt:    cfg.TrainedAt,
			TrainingRows: cfg.TrainingRows,
			Threshold:    cfg.AnomalyScoreThreshold,
			NComponents:  cfg.NComponents,
			NClusters:    cfg.NClusters,
			SizeBytes:    dirSize(dir),
		})
	}
	return infos, nil
}

// Prune removes all but the newest keep versions and returns the removed
// version numbers.
func (s *Store) Prune(ctx context.Context, keep int) ([]int, error) {
	if keep < 1 {
		keep = 1
	}

	s.mu.Lock()
	defer s.mu.Unlock()

	versions, err := s.scanVersions()
	if err != nil {
		return nil, err
	}
	if len(versions) <= keep {
		return nil, nil
	}

	var removed []int
	for _, v := range versions[:len(versions)-keep] {
		if err := ctx.Err(); err != nil {
			return removed, err
		}
		if err := os.RemoveAll(s.Path(v)); err != nil {
			return removed, fmt.Errorf("remove model version %d: %w", v, err)
		}
		removed = append(removed, v)
	}
	return removed, nil
}

// scanVersions returns the stored versions in ascending order.
func (s *Store) scanVersions() ([]int, error) {
	entries, err := os.ReadDir(s.baseDir)
	if err != nil {
		return nil, err
	}

	var versions []int
	for _, entry := range entries {
		if !entry.IsDir() {
			continue
		}
		if v, ok := parseVersionDir(entry.Name()); ok {
			versions = append(versions, v)
		}
	}
	slices.Sort(versions)
	return versions, nil
}

// parseVersionDir extracts the version from a name like "model_v3".
func parseVersionDir(name string) (int, bool) {
	rest, ok := strings.CutPrefix(name, versionPrefix)
	if !ok {
		return 0, false
	}
	v, err := strconv.Atoi(rest)
	if err != nil || v < 1 {
		return 0, false
	}
	return v, true
}

func dirSize(dir string) int64 {
	var total int64
	for _, name := range ArtifactFiles {
		if info, err := os.Stat(filepath.Join(dir, name)); err == nil {
			total += info.Size()
		}
	}
	return total
}
