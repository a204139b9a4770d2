// Stockwatch - Inventory Movement Anomaly Detection
// Copyright 2026 Tom F. (tomtom215)
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/tomtom215/stockwatch

package anomaly

import (
	"math"

	"gonum.org/v1/gonum/mat"
	"gonum.org/v1/gonum/stat"
)

// minScale treats near-constant columns as constant.
const minScale = 10 * 2.220446049250313e-16

// Scaler standardizes each column to zero mean and unit variance.
type Scaler struct {
	Mean  []float64
	Scale []float64
}

// FitScaler computes column means and population standard deviations.
func FitScaler(x *mat.Dense) *Scaler {
	rows, cols := x.Dims()
	s := &Scaler{
		Mean:  make([]float64, cols),
		Scale: make([]float64, cols),
	}

	col := make([]float64, rows)
	for j := 0; j < cols; j++ {
		mat.Col(col, j, x)
		mean, variance := stat.PopMeanVariance(col, nil)
		scale := math.Sqrt(variance)
		if scale < minScale || math.IsNaN(scale) {
			scale = 1
		}
		s.Mean[j] = mean
		s.Scale[j] = scale
	}
	return s
}

// TransformRow writes the standardized row into dst.
func (s *Scaler) TransformRow(dst, row []float64) {
	for j, v := range row {
		dst[j] = (v - s.Mean[j]) / s.Scale[j]
	}
}

// Transform standardizes every row of x into a new matrix.
func (s *Scaler) Transform(x *mat.Dense) *mat.Dense {
	rows, cols := x.Dims()
	out := mat.NewDense(rows, cols, nil)
	for i := 0; i < rows; i++ {
		s.TransformRow(out.RawRowView(i), x.RawRowView(i))
	}
	return out
}
