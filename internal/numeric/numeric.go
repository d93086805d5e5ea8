// Package numeric provides the two primitives simulation relies on:
// piecewise-linear interpolation with zero fill and trapezoidal integration.
package numeric

import (
	"cmp"
	"slices"
	"sort"

	"gonum.org/v1/gonum/floats"
	"gonum.org/v1/gonum/integrate"
)

// Interpolate evaluates the piecewise-linear function through (xs, ys) at
// every point of x. Queries outside [xs[0], xs[len-1]] yield zero, as do all
// queries against an empty source. A single-point source is non-zero only
// at that point. Unsorted sources are sorted first; extra ys are ignored.
func Interpolate(x, xs, ys []float64) []float64 {
	out := make([]float64, len(x))
	n := min(len(xs), len(ys))
	if n == 0 {
		return out
	}
	xs, ys = sortedPairs(xs[:n], ys[:n])

	lo, hi := xs[0], xs[n-1]
	for i, q := range x {
		if q < lo || q > hi {
			continue
		}
		j := sort.SearchFloat64s(xs, q)
		if xs[j] == q {
			out[i] = ys[j]
			continue
		}
		x0, x1 := xs[j-1], xs[j]
		y0, y1 := ys[j-1], ys[j]
		out[i] = y0 + (y1-y0)*(q-x0)/(x1-x0)
	}
	return out
}

// Trapezoid integrates y over x with the trapezoidal rule. Fewer than two
// samples integrate to zero. Unsorted input is sorted by x first.
func Trapezoid(x, y []float64) float64 {
	n := min(len(x), len(y))
	if n < 2 {
		return 0
	}
	x, y = sortedPairs(x[:n], y[:n])
	return integrate.Trapezoidal(x, y)
}

// TrapezoidProduct integrates the elementwise product a*b over x.
func TrapezoidProduct(x, a, b []float64) float64 {
	n := min(len(x), len(a), len(b))
	if n < 2 {
		return 0
	}
	return Trapezoid(x[:n], floats.MulTo(make([]float64, n), a[:n], b[:n]))
}

// Mul returns the elementwise product of a and b, truncated to the shorter.
func Mul(a, b []float64) []float64 {
	n := min(len(a), len(b))
	return floats.MulTo(make([]float64, n), a[:n], b[:n])
}

// sortedPairs returns xs and ys reordered by xs. Sorted input is returned
// unchanged without copying.
func sortedPairs(xs, ys []float64) ([]float64, []float64) {
	if slices.IsSorted(xs) {
		return xs, ys
	}
	idx := make([]int, len(xs))
	for i := range idx {
		idx[i] = i
	}
	slices.SortStableFunc(idx, func(a, b int) int { return cmp.Compare(xs[a], xs[b]) })

	sx := make([]float64, len(xs))
	sy := make([]float64, len(ys))
	for i, j := range idx {
		sx[i], sy[i] = xs[j], ys[j]
	}
	return sx, sy
}
