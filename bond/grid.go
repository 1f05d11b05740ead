package bond

import (
	"errors"
	"fmt"

	"github.com/ucfbrd/sovereign-risk-disaster/utils"
)

// ErrInvalidGrid is returned for bond grids that cannot back a model.
var ErrInvalidGrid = errors.New("bond: invalid grid")

// NewGrid returns n evenly spaced bond levels over [lo, hi]. Negative levels
// are debt, positive levels are savings.
func NewGrid(lo, hi float64, n int) ([]float64, error) {
	if n < 2 {
		return nil, fmt.Errorf("NewGrid: need at least 2 points, got %d: %w", n, ErrInvalidGrid)
	}
	if !utils.AllFinite(lo, hi) || !(lo < hi) {
		return nil, fmt.Errorf("NewGrid: need finite lo < hi, got [%g, %g]: %w", lo, hi, ErrInvalidGrid)
	}
	return utils.Linspace(lo, hi, n), nil
}

// CheckGrid verifies that b is non-empty, finite and strictly increasing.
func CheckGrid(b []float64) error {
	if len(b) == 0 {
		return fmt.Errorf("CheckGrid: grid is empty: %w", ErrInvalidGrid)
	}
	if i := utils.FirstNonFinite(b); i >= 0 {
		return fmt.Errorf("CheckGrid: level %d is %g: %w", i, b[i], ErrInvalidGrid)
	}
	if !utils.StrictlyIncreasing(b) {
		return fmt.Errorf("CheckGrid: levels must be strictly increasing: %w", ErrInvalidGrid)
	}
	return nil
}

// ZeroIndex is the index of the level closest to zero (lower index on ties).
// It is the bond position a country re-enters markets with.
func ZeroIndex(b []float64) int {
	return utils.Nearest(b, 0)
}

// EntryIndex is the insertion point of zero into b: the first non-negative
// level. It returns len(b) when every level is debt.
func EntryIndex(b []float64) int {
	return utils.SearchSorted(b, 0)
}
