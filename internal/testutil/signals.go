package testutil

import "math"

// GaussianTable samples a*exp(-(x-x0)^2/(2*sigma^2)) + b*x + c at n evenly
// spaced points over [lo, hi] and returns (x, y) rows.
func GaussianTable(a, x0, sigma, b, c, lo, hi float64, n int) [][]float64 {
	rows := make([][]float64, n)
	step := (hi - lo) / float64(n-1)
	for i := range rows {
		x := lo + float64(i)*step
		if i == n-1 {
			x = hi
		}
		y := a*math.Exp(-(x-x0)*(x-x0)/(2*sigma*sigma)) + b*x + c
		rows[i] = []float64{x, y}
	}
	return rows
}

// WithTerminator appends a trailing row the importer is expected to drop.
func WithTerminator(rows [][]float64) [][]float64 {
	return append(rows, []float64{-1, -1})
}
