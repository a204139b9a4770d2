// Stockwatch - Inventory Movement Anomaly Detection
// Copyright 2026 Tom F. (tomtom215)
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/tomtom215/stockwatch

package anomaly

import (
	"context"
	"math"
	"math/rand"
	"sort"
)

// KMeans is a fitted set of cluster centroids.
type KMeans struct {
	Centroids [][]float64

	// Inertia is the sum of squared distances of the training points to
	// their closest centroid.
	Inertia float64

	// Iterations is the Lloyd iteration count of the kept restart.
	Iterations int
}

// KMeansConfig configures FitKMeans.
type KMeansConfig struct {
	K       int
	NInit   int
	MaxIter int

	// Tol is relative to the mean per-dimension variance of the input.
	Tol float64
}

// FitKMeans clusters points with k-means++ initialization and Lloyd
// iterations, restarting NInit times and keeping the run with the lowest
// inertia. Ties keep the earlier restart. All restarts draw from rng.
func FitKMeans(ctx context.Context, points [][]float64, cfg KMeansConfig, rng *rand.Rand) (*KMeans, []int, error) {
	n := len(points)
	if n == 0 {
		return nil, nil, ErrEmptyTrainingSet
	}
	k := max(1, min(cfg.K, n))
	nInit := max(1, cfg.NInit)
	maxIter := max(1, cfg.MaxIter)
	tol := cfg.Tol * meanVariance(points)

	var best *KMeans
	var bestLabels []int
	for run := 0; run < nInit; run++ {
		if err := ctx.Err(); err != nil {
			return nil, nil, err
		}

		centers := initPlusPlus(points, k, rng)
		labels, inertia, iters := lloyd(points, centers, maxIter, tol)
		if best == nil || inertia < best.Inertia {
			best = &KMeans{Centroids: centers, Inertia: inertia, Iterations: iters}
			bestLabels = labels
		}
	}
	return best, bestLabels, nil
}

// K returns the number of centroids.
func (km *KMeans) K() int {
	return len(km.Centroids)
}

// Nearest returns the closest centroid and the Euclidean distance to it.
// Equidistant centroids resolve to the lowest index.
func (km *KMeans) Nearest(point []float64) (int, float64) {
	c, d2 := nearest(point, km.Centroids)
	return c, math.Sqrt(d2)
}

func nearest(point []float64, centers [][]float64) (int, float64) {
	best, bestDist := 0, math.Inf(1)
	for c, center := range centers {
		if d := sqDist(point, center); d < bestDist {
			best, bestDist = c, d
		}
	}
	return best, bestDist
}

// initPlusPlus picks k initial centers with greedy k-means++: every new
// center is the best of several candidates sampled proportionally to the
// squared distance to the existing centers.
func initPlusPlus(points [][]float64, k int, rng *rand.Rand) [][]float64 {
	n := len(points)
	centers := make([][]float64, 0, k)
	centers = append(centers, clonePoint(points[rng.Intn(n)]))

	closest := make([]float64, n)
	for i, p := range points {
		closest[i] = sqDist(p, centers[0])
	}

	trials := 2 + int(math.Log(float64(k)))
	cumulative := make([]float64, n)
	for len(centers) < k {
		var total float64
		for i, d := range closest {
			total += d
			cumulative[i] = total
		}

		bestIdx, bestPot := -1, math.Inf(1)
		var bestClosest []float64
		for t := 0; t < trials; t++ {
			idx := sort.SearchFloat64s(cumulative, rng.Float64()*total)
			if idx >= n {
				idx = n - 1
			}

			candidate := make([]float64, n)
			var pot float64
			for i, p := range points {
				candidate[i] = math.Min(closest[i], sqDist(p, points[idx]))
				pot += candidate[i]
			}
			if pot < bestPot {
				bestIdx, bestPot, bestClosest = idx, pot, candidate
			}
		}

		centers = append(centers, clonePoint(points[bestIdx]))
		closest = bestClosest
	}
	return centers
}

// lloyd refines centers in place and returns the final assignment.
func lloyd(points, centers [][]float64, maxIter int, tol float64) ([]int, float64, int) {
	labels := make([]int, len(points))
	dists := make([]float64, len(points))
	iters := 0

	for iters < maxIter {
		assign(points, centers, labels, dists)
		next := recompute(points, centers, labels, dists)

		var shift float64
		for c := range centers {
			shift += sqDist(centers[c], next[c])
			centers[c] = next[c]
		}
		iters++
		if shift <= tol {
			break
		}
	}

	inertia := assign(points, centers, labels, dists)
	return labels, inertia, iters
}

func assign(points, centers [][]float64, labels []int, dists []float64) float64 {
	var inertia float64
	for i, p := range points {
		labels[i], dists[i] = nearest(p, centers)
		inertia += dists[i]
	}
	return inertia
}

// recompute returns the cluster means. A cluster left empty is moved onto
// the point farthest from its current centroid.
func recompute(points, centers [][]float64, labels []int, dists []float64) [][]float64 {
	k, dim := len(centers), len(points[0])
	sums := make([][]float64, k)
	counts := make([]int, k)
	for c := range sums {
		sums[c] = make([]float64, dim)
	}
	for i, p := range points {
		c := labels[i]
		counts[c]++
		for j, v := range p {
			sums[c][j] += v
		}
	}

	var taken map[int]bool
	for c := range sums {
		if counts[c] > 0 {
			for j := range sums[c] {
				sums[c][j] /= float64(counts[c])
			}
			continue
		}

		if taken == nil {
			taken = make(map[int]bool)
		}
		far, farDist := 0, -1.0
		for i, d := range dists {
			if !taken[i] && d > farDist {
				far, farDist = i, d
			}
		}
		taken[far] = true
		copy(sums[c], points[far])
	}
	return sums
}

func meanVariance(points [][]float64) float64 {
	n, dim := float64(len(points)), len(points[0])
	if dim == 0 {
		return 0
	}
	var total float64
	for j := 0; j < dim; j++ {
		var mean float64
		for _, p := range points {
			mean += p[j]
		}
		mean /= n
		var ss float64
		for _, p := range points {
			d := p[j] - mean
			ss += d * d
		}
		total += ss / n
	}
	return total / float64(dim)
}

func sqDist(a, b []float64) float64 {
	var sum float64
	for i := range a {
		d := a[i] - b[i]
		sum += d * d
	}
	return sum
}

func clonePoint(p []float64) []float64 {
	return append([]float64(nil), p...)
}
