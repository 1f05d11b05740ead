package utils

import (
	"math"
	"sort"

	"gonum.org/v1/gonum/floats"
)

// Linspace returns n evenly spaced points over [lo, hi]. n must be at least 2.
// The last point is exactly hi.
func Linspace(lo, hi float64, n int) []float64 {
	xs := floats.Span(make([]float64, n), lo, hi)
	xs[n-1] = hi
	return xs
}

// SearchSorted returns the insertion point of v into the ascending slice xs:
// the first index i with xs[i] >= v, or len(xs) if there is none.
func SearchSorted(xs []float64, v float64) int {
	return sort.SearchFloat64s(xs, v)
}

// Nearest returns the index of the element of xs closest to v.
// Ties go to the lower index. It returns -1 for an empty slice.
func Nearest(xs []float64, v float64) int {
	best, bestDist := -1, math.Inf(1)
	for i, x := range xs {
		if d := math.Abs(x - v); d < bestDist {
			best, bestDist = i, d
		}
	}
	return best
}

// StrictlyIncreasing reports whether xs is sorted ascending with no repeats.
func StrictlyIncreasing(xs []float64) bool {
	for i := 1; i < len(xs); i++ {
		if !(xs[i] > xs[i-1]) {
			return false
		}
	}
	return true
}

// FirstNonFinite returns the index of the first NaN or ±Inf in xs, or -1.
func FirstNonFinite(xs []float64) int {
	for i, x := range xs {
		if math.IsNaN(x) || math.IsInf(x, 0) {
			return i
		}
	}
	return -1
}

// AllFinite reports whether every value in xs is finite.
func AllFinite(xs ...float64) bool {
	return FirstNonFinite(xs) < 0
}
