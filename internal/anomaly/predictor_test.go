// Stockwatch - Inventory Movement Anomaly Detection
// Copyright 2026 Tom F. (tomtom215)
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/tomtom215/stockwatch

package anomaly

import (
	"context"
	"errors"
	"fmt"
	"math"
	"sort"
	"strings"
	"sync"
	"testing"

	"github.com/tomtom215/stockwatch/internal/features"
)

func trainedPredictor(t *testing.T) *Predictor {
	t.Helper()
	res, err := TrainEvents(context.Background(), movementBatch(), smallConfig())
	if err != nil {
		t.Fatalf("TrainEvents() error = %v", err)
	}
	p, err := NewPredictor(res.Artifact)
	if err != nil {
		t.Fatalf("NewPredictor() error = %v", err)
	}
	return p
}

func TestPredictor_FlagsInjectedOutliers(t *testing.T) {
	p := trainedPredictor(t)

	results, err := p.ScoreEvents(movementBatch())
	if err != nil {
		t.Fatalf("ScoreEvents() error = %v", err)
	}
	if len(results) != 200 {
		t.Fatalf("got %d results, want 200", len(results))
	}

	for _, r := range results {
		outlier := r.TransactionID%20 == 0
		if r.IsAnomaly != outlier {
			t.Errorf("transaction %d: IsAnomaly = %v, want %v (score %.4f)", r.TransactionID, r.IsAnomaly, outlier, r.AnomalyScore)
		}
	}

	sorted := append([]Result(nil), results...)
	sort.Slice(sorted, func(i, j int) bool { return sorted[i].AnomalyScore > sorted[j].AnomalyScore })
	for _, r := range sorted[:10] {
		if r.TransactionID%20 != 0 {
			t.Errorf("transaction %d ranks in the top ten but is not an outlier", r.TransactionID)
		}
	}

	anomalies, _ := Summary(results)
	if anomalies != 10 {
		t.Errorf("Summary anomalies = %d, want 10", anomalies)
	}
}

func TestPredictor_ScoreIndependentOfBatch(t *testing.T) {
	p := trainedPredictor(t)
	batch := movementBatch()

	all, err := p.ScoreEvents(batch)
	if err != nil {
		t.Fatal(err)
	}
	one, err := p.ScoreEvents(batch[19:20])
	if err != nil {
		t.Fatal(err)
	}
	if one[0].AnomalyScore != all[19].AnomalyScore {
		t.Errorf("single-row score %v differs from batch score %v", one[0].AnomalyScore, all[19].AnomalyScore)
	}
	if one[0].ClusterID != all[19].ClusterID {
		t.Errorf("single-row cluster %d differs from batch cluster %d", one[0].ClusterID, all[19].ClusterID)
	}
}

func TestPredictor_SchemaMismatch(t *testing.T) {
	p := trainedPredictor(t)
	m := &features.Matrix{
		IDs:     []int64{1},
		Columns: features.FeatureColumns[:5],
		Rows:    [][]float64{{1, 1, 1, 1, 1}},
	}

	_, err := p.Score(m)
	var se *SchemaError
	if !errors.As(err, &se) {
		t.Fatalf("Score() error = %v, want SchemaError", err)
	}
	if len(se.Missing) != len(features.FeatureColumns)-5 {
		t.Errorf("Missing = %v", se.Missing)
	}
}

func TestPredictor_ReorderedColumns(t *testing.T) {
	p := trainedPredictor(t)
	m, err := features.Build(movementBatch()[:3], features.Options{Vocabulary: p.Config().Vocabulary})
	if err != nil {
		t.Fatal(err)
	}
	want, err := p.Score(m)
	if err != nil {
		t.Fatal(err)
	}

	reversed := &features.Matrix{IDs: m.IDs}
	for j := len(m.Columns) - 1; j >= 0; j-- {
		reversed.Columns = append(reversed.Columns, m.Columns[j])
	}
	for _, row := range m.Rows {
		r := make([]float64, len(row))
		for j := range row {
			r[len(row)-1-j] = row[j]
		}
		reversed.Rows = append(reversed.Rows, r)
	}

	got, err := p.Score(reversed)
	if err != nil {
		t.Fatal(err)
	}
	for i := range want {
		if got[i] != want[i] {
			t.Errorf("row %d: %+v, want %+v", i, got[i], want[i])
		}
	}
}

func TestPredictor_EmptyInput(t *testing.T) {
	p := trainedPredictor(t)

	results, err := p.ScoreEvents(nil)
	if err != nil {
		t.Fatal(err)
	}
	if results == nil || len(results) != 0 {
		t.Errorf("results = %v, want empty non-nil slice", results)
	}
}

func TestPredictor_NilThresholdNeverFlags(t *testing.T) {
	p := trainedPredictor(t)
	a := *p.Artifact()
	a.Config.AnomalyScoreThreshold = nil
	uncalibrated, err := NewPredictor(&a)
	if err != nil {
		t.Fatal(err)
	}

	results, err := uncalibrated.ScoreEvents(movementBatch())
	if err != nil {
		t.Fatal(err)
	}
	for _, r := range results {
		if r.IsAnomaly {
			t.Fatalf("transaction %d flagged without a threshold", r.TransactionID)
		}
	}
}

func TestPredictor_NonFiniteScoredAsZero(t *testing.T) {
	p := trainedPredictor(t)
	m, err := features.Build(movementBatch()[:1], features.Options{Vocabulary: p.Config().Vocabulary})
	if err != nil {
		t.Fatal(err)
	}
	zeroed := &features.Matrix{IDs: m.IDs, Columns: m.Columns, Rows: [][]float64{append([]float64(nil), m.Rows[0]...)}}
	m.Rows[0][2] = math.NaN()
	zeroed.Rows[0][2] = 0

	got, err := p.Score(m)
	if err != nil {
		t.Fatal(err)
	}
	want, err := p.Score(zeroed)
	if err != nil {
		t.Fatal(err)
	}
	if got[0] != want[0] || math.IsNaN(got[0].AnomalyScore) {
		t.Errorf("NaN row scored %+v, want %+v", got[0], want[0])
	}
}

func TestPredictor_LegacyDistanceScale(t *testing.T) {
	p := trainedPredictor(t)
	a := *p.Artifact()
	a.Config.DistanceScale = 0
	legacy, err := NewPredictor(&a)
	if err != nil {
		t.Fatal(err)
	}
	results, err := legacy.ScoreEvents(movementBatch())
	if err != nil {
		t.Fatal(err)
	}
	for _, r := range results {
		if math.IsNaN(r.AnomalyScore) || math.IsInf(r.AnomalyScore, 0) {
			t.Fatalf("transaction %d has non-finite score", r.TransactionID)
		}
	}
}

func TestPredictor_ConcurrentScoring(t *testing.T) {
	p := trainedPredictor(t)
	batch := movementBatch()
	const workers, size = 16, 12

	// Each worker scores its own slice; the results must match a serial run
	// over the same slice.
	want := make([][]Result, workers)
	for g := range want {
		res, err := p.ScoreEvents(batch[g*size : (g+1)*size])
		if err != nil {
			t.Fatal(err)
		}
		want[g] = res
	}

	var wg sync.WaitGroup
	errs := make(chan error, workers)
	for g := 0; g < workers; g++ {
		wg.Add(1)
		go func(g int) {
			defer wg.Done()
			got, err := p.ScoreEvents(batch[g*size : (g+1)*size])
			if err != nil {
				errs <- err
				return
			}
			if len(got) != len(want[g]) {
				errs <- fmt.Errorf("worker %d: %d results, want %d", g, len(got), len(want[g]))
				return
			}
			for i := range got {
				if got[i] != want[g][i] {
					errs <- fmt.Errorf("worker %d row %d: %+v, want %+v", g, i, got[i], want[g][i])
					return
				}
			}
		}(g)
	}
	wg.Wait()
	close(errs)
	for err := range errs {
		t.Error(err)
	}
}

func TestPredictor_ShortRow(t *testing.T) {
	p := trainedPredictor(t)
	m := &features.Matrix{
		IDs:     []int64{1, 2},
		Columns: features.FeatureColumns,
		Rows: [][]float64{
			make([]float64, len(features.FeatureColumns)),
			{1, 2, 3},
		},
	}

	_, err := p.Score(m)
	if err == nil {
		t.Fatal("Score() error = nil, want row width error")
	}
	if !strings.Contains(err.Error(), "row 1") {
		t.Errorf("Score() error = %v, want it to name row 1", err)
	}
}

func TestNewPredictor_RejectsInconsistentArtifact(t *testing.T) {
	p := trainedPredictor(t)
	a := *p.Artifact()
	a.KMeans = &KMeans{Centroids: [][]float64{{1, 2, 3, 4, 5}}}
	if _, err := NewPredictor(&a); !errors.Is(err, ErrInvalidArtifact) {
		t.Errorf("NewPredictor() error = %v, want ErrInvalidArtifact", err)
	}
}
