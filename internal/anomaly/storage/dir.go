// Stockwatch - Inventory Movement Anomaly Detection
// Copyright 2026 Tom F. (tomtom215)
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/tomtom215/stockwatch

package storage

import (
	"bytes"
	"crypto/sha256"
	"encoding/gob"
	"encoding/hex"
	"errors"
	"fmt"
	"io"
	"os"
	"path/filepath"
	"time"

	"github.com/goccy/go-json"
	"github.com/klauspost/compress/gzip"

	"github.com/tomtom215/stockwatch/internal/anomaly"
)

// Artifact file names.
const (
	ScalerFile = "scaler.gob.gz"
	PCAFile    = "pca.gob.gz"
	KMeansFile = "kmeans.gob.gz"
	ConfigFile = "config.json"
)

// ArtifactFiles lists every file of an artifact directory.
var ArtifactFiles = []string{ScalerFile, PCAFile, KMeansFile, ConfigFile}

// ErrArtifactNotFound is returned when a directory does not hold a
// complete, readable model.
var ErrArtifactNotFound = errors.New("model artifact not found")

// ComponentMetadata describes one stored model component.
type ComponentMetadata struct {
	// Name is the component name ("scaler", "pca" or "kmeans").
	Name string `json:"name"`

	// Checksum is the SHA-256 checksum of the uncompressed gob payload.
	Checksum string `json:"checksum"`

	// SizeBytes is the compressed payload size in bytes.
	SizeBytes int64 `json:"size_bytes"`

	// SavedAt is when the component was written.
	SavedAt time.Time `json:"saved_at"`
}

// storedFile is the on-disk format of a component file.
type storedFile struct {
	Metadata       ComponentMetadata
	CompressedData []byte
}

// SaveDir writes the artifact to dir, replacing any model already there.
func SaveDir(dir string, a *anomaly.Artifact) error {
	if err := a.Validate(); err != nil {
		return err
	}

	parent := filepath.Dir(dir)
	if err := os.MkdirAll(parent, 0o750); err != nil { //nolint:gosec // 0750 is acceptable for model storage
		return fmt.Errorf("create model parent directory: %w", err)
	}
	tmp, err := os.MkdirTemp(parent, "."+filepath.Base(dir)+".tmp-")
	if err != nil {
		return fmt.Errorf("create staging directory: %w", err)
	}
	committed := false
	defer func() {
		if !committed {
			_ = os.RemoveAll(tmp) //nolint:errcheck // best-effort cleanup of the staging directory
		}
	}()

	if err := writeArtifact(tmp, a); err != nil {
		return err
	}
	if err := replaceDir(tmp, dir); err != nil {
		return err
	}
	committed = true
	return nil
}

func writeArtifact(dir string, a *anomaly.Artifact) error {
	components := []struct {
		file string
		name string
		data interface{}
	}{
		{ScalerFile, "scaler", a.Scaler},
		{PCAFile, "pca", a.PCA},
		{KMeansFile, "kmeans", a.KMeans},
	}
	for _, c := range components {
		if err := writeComponent(filepath.Join(dir, c.file), c.name, c.data); err != nil {
			return err
		}
	}

	cfg, err := json.MarshalIndent(a.Config, "", "  ")
	if err != nil {
		return fmt.Errorf("encode model config: %w", err)
	}
	if err := os.WriteFile(filepath.Join(dir, ConfigFile), cfg, 0o640); err != nil { //nolint:gosec // model config is not secret
		return fmt.Errorf("write model config: %w", err)
	}
	return nil
}

// replaceDir moves src to dst. An existing dst is moved aside first and
// removed once src is in place.
func replaceDir(src, dst string) error {
	if _, err := os.Stat(dst); errors.Is(err, os.ErrNotExist) {
		if err := os.Rename(src, dst); err != nil {
			return fmt.Errorf("install model directory: %w", err)
		}
		return nil
	}

	old := fmt.Sprintf("%s.old-%d", dst, time.Now().UnixNano())
	if err := os.Rename(dst, old); err != nil {
		return fmt.Errorf("move previous model aside: %w", err)
	}
	if err := os.Rename(src, dst); err != nil {
		_ = os.Rename(old, dst) //nolint:errcheck // restoring the previous model is best effort
		return fmt.Errorf("install model directory: %w", err)
	}
	_ = os.RemoveAll(old) //nolint:errcheck // stale copy of the previous model
	return nil
}

func writeComponent(path, name string, data interface{}) error {
	var raw bytes.Buffer
	if err := gob.NewEncoder(&raw).Encode(data); err != nil {
		return fmt.Errorf("encode %s: %w", name, err)
	}
	hash := sha256.Sum256(raw.Bytes())

	var compressed bytes.Buffer
	gzw := gzip.NewWriter(&compressed)
	if _, err := gzw.Write(raw.Bytes()); err != nil {
		return fmt.Errorf("compress %s: %w", name, err)
	}
	if err := gzw.Close(); err != nil {
		return fmt.Errorf("finalize compression of %s: %w", name, err)
	}

	sf := storedFile{
		Metadata: ComponentMetadata{
			Name:      name,
			Checksum:  hex.EncodeToString(hash[:]),
			SizeBytes: int64(compressed.Len()),
			SavedAt:   time.Now().UTC(),
		},
		CompressedData: compressed.Bytes(),
	}

	f, err := os.Create(path) //nolint:gosec // path is built from a fixed file name
	if err != nil {
		return fmt.Errorf("create %s file: %w", name, err)
	}
	if err := gob.NewEncoder(f).Encode(sf); err != nil {
		_ = f.Close() //nolint:errcheck // the encode error is the one worth returning
		return fmt.Errorf("write %s file: %w", name, err)
	}
	if err := f.Sync(); err != nil {
		_ = f.Close() //nolint:errcheck // the sync error is the one worth returning
		return fmt.Errorf("sync %s file: %w", name, err)
	}
	return f.Close()
}

// LoadDir reads and validates the artifact stored in dir.
func LoadDir(dir string) (*anomaly.Artifact, error) {
	for _, name := range ArtifactFiles {
		if _, err := os.Stat(filepath.Join(dir, name)); err != nil {
			return nil, fmt.Errorf("%w: %s: %s missing", ErrArtifactNotFound, dir, name)
		}
	}

	a := &anomaly.Artifact{
		Scaler: &anomaly.Scaler{},
		PCA:    &anomaly.PCA{},
		KMeans: &anomaly.KMeans{},
	}
	if _, err := readComponent(filepath.Join(dir, ScalerFile), a.Scaler); err != nil {
		return nil, notFound(dir, err)
	}
	if _, err := readComponent(filepath.Join(dir, PCAFile), a.PCA); err != nil {
		return nil, notFound(dir, err)
	}
	if _, err := readComponent(filepath.Join(dir, KMeansFile), a.KMeans); err != nil {
		return nil, notFound(dir, err)
	}

	cfg, err := ReadConfig(dir)
	if err != nil {
		return nil, notFound(dir, err)
	}
	a.Config = *cfg

	if err := a.Validate(); err != nil {
		return nil, notFound(dir, err)
	}
	return a, nil
}

// ReadConfig reads only config.json of an artifact directory.
func ReadConfig(dir string) (*anomaly.ArtifactConfig, error) {
	raw, err := os.ReadFile(filepath.Join(dir, ConfigFile)) //nolint:gosec // dir is operator supplied
	if err != nil {
		return nil, fmt.Errorf("read model config: %w", err)
	}
	var cfg anomaly.ArtifactConfig
	if err := json.Unmarshal(raw, &cfg); err != nil {
		return nil, fmt.Errorf("decode model config: %w", err)
	}
	return &cfg, nil
}

// ReadComponentMetadata returns the envelope metadata of a component file
// without decompressing its payload.
func ReadComponentMetadata(path string) (*ComponentMetadata, error) {
	f, err := os.Open(path) //nolint:gosec // path is built from a fixed file name
	if err != nil {
		return nil, err
	}
	defer func() { _ = f.Close() }() //nolint:errcheck // read-only file

	var sf storedFile
	if err := gob.NewDecoder(f).Decode(&sf); err != nil {
		return nil, fmt.Errorf("read component file: %w", err)
	}
	return &sf.Metadata, nil
}

// Exists reports whether dir holds every artifact file.
func Exists(dir string) bool {
	for _, name := range ArtifactFiles {
		if _, err := os.Stat(filepath.Join(dir, name)); err != nil {
			return false
		}
	}
	return true
}

func readComponent(path string, target interface{}) (*ComponentMetadata, error) {
	f, err := os.Open(path) //nolint:gosec // path is built from a fixed file name
	if err != nil {
		return nil, fmt.Errorf("open component: %w", err)
	}
	defer func() { _ = f.Close() }() //nolint:errcheck // read-only file

	var sf storedFile
	if err := gob.NewDecoder(f).Decode(&sf); err != nil {
		return nil, fmt.Errorf("read component file: %w", err)
	}

	gzr, err := gzip.NewReader(bytes.NewReader(sf.CompressedData))
	if err != nil {
		return nil, fmt.Errorf("decompress %s: %w", sf.Metadata.Name, err)
	}
	defer func() { _ = gzr.Close() }() //nolint:errcheck // in-memory reader

	raw, err := io.ReadAll(gzr)
	if err != nil {
		return nil, fmt.Errorf("read decompressed %s: %w", sf.Metadata.Name, err)
	}

	hash := sha256.Sum256(raw)
	if checksum := hex.EncodeToString(hash[:]); checksum != sf.Metadata.Checksum {
		return nil, fmt.Errorf("%s checksum mismatch: expected %s, got %s", sf.Metadata.Name, sf.Metadata.Checksum, checksum)
	}

	if err := gob.NewDecoder(bytes.NewReader(raw)).Decode(target); err != nil {
		return nil, fmt.Errorf("decode %s: %w", sf.Metadata.Name, err)
	}
	return &sf.Metadata, nil
}

func notFound(dir string, err error) error {
	return fmt.Errorf("%w: %s: %v", ErrArtifactNotFound, dir, err)
}
