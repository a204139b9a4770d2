// Stockwatch - Inventory Movement Anomaly Detection
// Copyright 2026 Tom F. (tomtom215)
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/tomtom215/stockwatch

package anomaly

import (
	"context"
	"math"
	"math/rand"
	"testing"

	"gonum.org/v1/gonum/mat"
)

func TestFitScaler(t *testing.T) {
	x := mat.NewDense(4, 2, []float64{
		1, 7,
		2, 7,
		3, 7,
		4, 7,
	})
	s := FitScaler(x)

	if s.Mean[0] != 2.5 || s.Mean[1] != 7 {
		t.Errorf("Mean = %v, want [2.5 7]", s.Mean)
	}
	if want := math.Sqrt(1.25); math.Abs(s.Scale[0]-want) > 1e-12 {
		t.Errorf("Scale[0] = %v, want population std %v", s.Scale[0], want)
	}
	if s.Scale[1] != 1 {
		t.Errorf("constant column Scale = %v, want 1", s.Scale[1])
	}

	dst := make([]float64, 2)
	s.TransformRow(dst, []float64{2.5, 9})
	if dst[0] != 0 || dst[1] != 2 {
		t.Errorf("TransformRow = %v, want [0 2]", dst)
	}
}

func TestFitPCA_Components(t *testing.T) {
	// Points along the anti-diagonal: the dominant loading is negative
	// in one coordinate and positive in the other with equal magnitude,
	// so add a small tilt to make the choice unambiguous.
	x := mat.NewDense(5, 2, []float64{
		-2, 2.2,
		-1, 1.1,
		0, 0,
		1, -1.1,
		2, -2.2,
	})
	p, err := FitPCA(x, 5)
	if err != nil {
		t.Fatalf("FitPCA() error = %v", err)
	}
	if p.NComponents() != 2 {
		t.Fatalf("NComponents() = %d, want 2 (capped by columns)", p.NComponents())
	}

	for k, comp := range p.Components {
		var norm, maxAbs, maxVal float64
		for _, c := range comp {
			norm += c * c
			if math.Abs(c) > maxAbs {
				maxAbs, maxVal = math.Abs(c), c
			}
		}
		if math.Abs(norm-1) > 1e-9 {
			t.Errorf("component %d norm = %v, want 1", k, norm)
		}
		if maxVal <= 0 {
			t.Errorf("component %d largest loading %v should be positive", k, maxVal)
		}
	}
	if p.Components[0][1] <= 0 || p.Components[0][0] >= 0 {
		t.Errorf("first component = %v, want (-, +) orientation", p.Components[0])
	}
	if p.ExplainedVariance[0] < p.ExplainedVariance[1] {
		t.Errorf("explained variance not descending: %v", p.ExplainedVariance)
	}

	// A point on the principal axis reconstructs exactly.
	proj := make([]float64, 1)
	single := &PCA{Mean: p.Mean, Components: p.Components[:1]}
	single.Project(proj, []float64{3, -3.3})
	if e := single.ReconstructionError([]float64{3, -3.3}, proj); e > 1e-18 {
		t.Errorf("ReconstructionError on axis = %v, want 0", e)
	}
}

func TestFitPCA_CappedByRows(t *testing.T) {
	x := mat.NewDense(2, 4, []float64{
		1, 2, 3, 4,
		4, 3, 2, 1,
	})
	p, err := FitPCA(x, 4)
	if err != nil {
		t.Fatal(err)
	}
	if p.NComponents() != 2 {
		t.Errorf("NComponents() = %d, want 2", p.NComponents())
	}
}

func TestFitKMeans_SeparatedBlobs(t *testing.T) {
	var points [][]float64
	for i := 0; i < 30; i++ {
		off := float64(i%5) * 0.01
		points = append(points, []float64{off, off})
		points = append(points, []float64{10 + off, 10 - off})
	}

	rng := rand.New(rand.NewSource(42)) //nolint:gosec // test
	km, labels, err := FitKMeans(context.Background(), points, KMeansConfig{K: 2, NInit: 5, MaxIter: 100, Tol: 1e-4}, rng)
	if err != nil {
		t.Fatalf("FitKMeans() error = %v", err)
	}
	if km.K() != 2 {
		t.Fatalf("K() = %d, want 2", km.K())
	}
	for i := 0; i < len(points); i += 2 {
		if labels[i] == labels[i+1] {
			t.Fatalf("points %d and %d share cluster %d", i, i+1, labels[i])
		}
		if labels[i] != labels[0] {
			t.Fatalf("blob A split across clusters")
		}
	}
	if km.Inertia > 0.1 {
		t.Errorf("Inertia = %v, want near zero", km.Inertia)
	}

	c, d := km.Nearest([]float64{10, 10})
	if c != labels[1] {
		t.Errorf("Nearest cluster = %d, want %d", c, labels[1])
	}
	if d > 0.1 {
		t.Errorf("Nearest distance = %v", d)
	}
}

func TestFitKMeans_KCappedAndDuplicates(t *testing.T) {
	points := [][]float64{{1}, {1}, {1}}
	rng := rand.New(rand.NewSource(1)) //nolint:gosec // test
	km, labels, err := FitKMeans(context.Background(), points, KMeansConfig{K: 5, NInit: 3, MaxIter: 10}, rng)
	if err != nil {
		t.Fatal(err)
	}
	if km.K() != 3 {
		t.Errorf("K() = %d, want 3", km.K())
	}
	if len(labels) != 3 {
		t.Errorf("labels = %v", labels)
	}
	if km.Inertia != 0 {
		t.Errorf("Inertia = %v, want 0", km.Inertia)
	}
}

func TestFitKMeans_Cancelled(t *testing.T) {
	ctx, cancel := context.WithCancel(context.Background())
	cancel()
	rng := rand.New(rand.NewSource(1)) //nolint:gosec // test
	if _, _, err := FitKMeans(ctx, [][]float64{{1}, {2}}, KMeansConfig{K: 1, NInit: 1, MaxIter: 1}, rng); err == nil {
		t.Error("expected context error")
	}
}

func TestNearest_TiesResolveToLowestIndex(t *testing.T) {
	km := &KMeans{Centroids: [][]float64{{-1}, {1}}}
	c, d := km.Nearest([]float64{0})
	if c != 0 || d != 1 {
		t.Errorf("Nearest = (%d, %v), want (0, 1)", c, d)
	}
}

func TestQuantile(t *testing.T) {
	xs := []float64{10, 1, 9, 2, 8, 3, 7, 4, 6, 5}
	tests := []struct {
		q    float64
		want float64
	}{
		{0, 1},
		{0.5, 5.5},
		{0.95, 9.55},
		{1, 10},
	}
	for _, tt := range tests {
		if got := Quantile(xs, tt.q); math.Abs(got-tt.want) > 1e-12 {
			t.Errorf("Quantile(%v) = %v, want %v", tt.q, got, tt.want)
		}
	}
	if xs[0] != 10 {
		t.Error("Quantile modified its input")
	}
	if !math.IsNaN(Quantile(nil, 0.5)) {
		t.Error("Quantile(nil) should be NaN")
	}
}
