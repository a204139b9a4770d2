// Stockwatch - Inventory Movement Anomaly Detection
// Copyright 2026 Tom F. (tomtom215)
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/tomtom215/stockwatch

package anomaly

import (
	"fmt"
	"math"

	"gonum.org/v1/gonum/mat"
)

// PCA is a fitted principal component projection.
type PCA struct {
	// Mean is the column mean of the fitted input.
	Mean []float64

	// Components holds one unit-length loading vector per component,
	// ordered by decreasing explained variance.
	Components [][]float64

	// ExplainedVariance is the variance captured by each component.
	ExplainedVariance []float64
}

// FitPCA fits up to n components on x. Fewer components are kept when x
// has fewer rows or columns than n.
//
// Component signs are normalized so that the loading with the largest
// absolute value is positive, making the fit independent of the sign
// convention of the SVD routine.
func FitPCA(x *mat.Dense, n int) (*PCA, error) {
	rows, cols := x.Dims()
	if rows == 0 || cols == 0 {
		return nil, ErrEmptyTrainingSet
	}

	mean := make([]float64, cols)
	for i := 0; i < rows; i++ {
		for j, v := range x.RawRowView(i) {
			mean[j] += v
		}
	}
	for j := range mean {
		mean[j] /= float64(rows)
	}

	centered := mat.NewDense(rows, cols, nil)
	for i := 0; i < rows; i++ {
		dst := centered.RawRowView(i)
		for j, v := range x.RawRowView(i) {
			dst[j] = v - mean[j]
		}
	}

	var svd mat.SVD
	if ok := svd.Factorize(centered, mat.SVDThin); !ok {
		return nil, fmt.Errorf("pca: singular value decomposition did not converge")
	}
	values := svd.Values(nil)
	var v mat.Dense
	svd.VTo(&v)

	n = min(n, len(values))
	p := &PCA{
		Mean:              mean,
		Components:        make([][]float64, n),
		ExplainedVariance: make([]float64, n),
	}
	for k := 0; k < n; k++ {
		comp := make([]float64, cols)
		mat.Col(comp, k, &v)
		flipSign(comp)
		p.Components[k] = comp
		if rows > 1 {
			p.ExplainedVariance[k] = values[k] * values[k] / float64(rows-1)
		}
	}
	return p, nil
}

func flipSign(comp []float64) {
	maxIdx := 0
	for j, c := range comp {
		if math.Abs(c) > math.Abs(comp[maxIdx]) {
			maxIdx = j
		}
	}
	if comp[maxIdx] < 0 {
		for j := range comp {
			comp[j] = -comp[j]
		}
	}
}

// NComponents returns the number of fitted components.
func (p *PCA) NComponents() int {
	return len(p.Components)
}

// Project writes the component coordinates of row into dst.
func (p *PCA) Project(dst, row []float64) {
	for k, comp := range p.Components {
		var sum float64
		for j, c := range comp {
			sum += (row[j] - p.Mean[j]) * c
		}
		dst[k] = sum
	}
}

// ReconstructionError returns the mean squared difference between row and
// its reconstruction from the projected coordinates.
func (p *PCA) ReconstructionError(row, projected []float64) float64 {
	var sum float64
	for j, v := range row {
		rec := p.Mean[j]
		for k, comp := range p.Components {
			rec += projected[k] * comp[j]
		}
		d := v - rec
		sum += d * d
	}
	return sum / float64(len(row))
}
