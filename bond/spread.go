package bond

import (
	"fmt"
	"math"

	"gonum.org/v1/gonum/mat"
)

// ImpliedYield is the one-period yield of a discount bond bought at price q
// that pays one unit next period.
func ImpliedYield(q float64) (float64, error) {
	if !(q > 0) || math.IsInf(q, 0) {
		return 0, fmt.Errorf("ImpliedYield: price must be positive and finite, got %g", q)
	}
	return 1/q - 1, nil
}

// Spread is the implied yield at price q in excess of the risk-free rate r.
func Spread(q, r float64) (float64, error) {
	y, err := ImpliedYield(q)
	if err != nil {
		return 0, err
	}
	return y - r, nil
}

// SpreadSchedule maps a price schedule to spreads over r. Cells with a
// non-positive price (certain default) are +Inf.
func SpreadSchedule(q mat.Matrix, r float64) *mat.Dense {
	rows, cols := q.Dims()
	out := mat.NewDense(rows, cols, nil)
	for i := 0; i < rows; i++ {
		for j := 0; j < cols; j++ {
			s, err := Spread(q.At(i, j), r)
			if err != nil {
				s = math.Inf(1)
			}
			out.Set(i, j, s)
		}
	}
	return out
}
