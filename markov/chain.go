// Package markov holds finite-state Markov chains and the Tauchen
// discretization of an AR(1) income process with disaster risk.
package markov

import (
	"errors"
	"fmt"
	"math"

	"golang.org/x/exp/rand"
	"gonum.org/v1/gonum/mat"
	"gonum.org/v1/gonum/stat/distuv"

	"github.com/ucfbrd/sovereign-risk-disaster/utils"
)

// ErrInvalidChain is returned for malformed transition matrices, state grids
// or discretization parameters.
var ErrInvalidChain = errors.New("markov: invalid chain")

// RowSumTolerance bounds |Σ_j P[i,j] - 1| for every row of a valid chain.
const RowSumTolerance = 1e-9

// Chain is a finite Markov chain: a row-stochastic transition matrix with a
// value attached to each state. A Chain is never mutated after construction.
type Chain struct {
	p      *mat.Dense
	states []float64
}

// NewChain validates p and states and returns a chain holding copies of both.
func NewChain(p mat.Matrix, states []float64) (*Chain, error) {
	if p == nil {
		return nil, fmt.Errorf("NewChain: transition matrix is required: %w", ErrInvalidChain)
	}
	if err := CheckStochastic(p); err != nil {
		return nil, err
	}
	n, _ := p.Dims()
	if len(states) != n {
		return nil, fmt.Errorf("NewChain: %d states for a %dx%d transition matrix: %w", len(states), n, n, ErrInvalidChain)
	}
	if i := utils.FirstNonFinite(states); i >= 0 {
		return nil, fmt.Errorf("NewChain: state %d is %g: %w", i, states[i], ErrInvalidChain)
	}
	return &Chain{
		p:      mat.DenseCopyOf(p),
		states: append([]float64(nil), states...),
	}, nil
}

// CheckStochastic verifies that p is square, non-empty, has every entry in
// [0, 1] and every row summing to one within RowSumTolerance.
func CheckStochastic(p mat.Matrix) error {
	r, c := p.Dims()
	if r == 0 || r != c {
		return fmt.Errorf("CheckStochastic: transition matrix must be square and non-empty, got %dx%d: %w", r, c, ErrInvalidChain)
	}
	for i := 0; i < r; i++ {
		sum := 0.0
		for j := 0; j < c; j++ {
			v := p.At(i, j)
			if !(v >= 0 && v <= 1) {
				return fmt.Errorf("CheckStochastic: P[%d,%d] = %g outside [0, 1]: %w", i, j, v, ErrInvalidChain)
			}
			sum += v
		}
		if math.Abs(sum-1) > RowSumTolerance {
			return fmt.Errorf("CheckStochastic: row %d sums to %.12f: %w", i, sum, ErrInvalidChain)
		}
	}
	return nil
}

// N is the number of states.
func (c *Chain) N() int { return len(c.states) }

// States returns the state values. The slice is shared; do not modify it.
func (c *Chain) States() []float64 { return c.states }

// P returns the transition matrix as a read-only view.
func (c *Chain) P() mat.Matrix { return c.p }

// Exp returns a chain with the same transitions and states mapped through exp,
// turning a log-income grid into income levels.
func (c *Chain) Exp() *Chain {
	states := make([]float64, len(c.states))
	for i, s := range c.states {
		states[i] = math.Exp(s)
	}
	return &Chain{p: c.p, states: states}
}

// SimulateIndices draws a path of state indices of the given length.
// The path starts at init; each later index is drawn from the row of the
// previous one using src.
func (c *Chain) SimulateIndices(length, init int, src rand.Source) ([]int, error) {
	if length < 1 {
		return nil, fmt.Errorf("SimulateIndices: length must be positive, got %d: %w", length, ErrInvalidChain)
	}
	if init < 0 || init >= c.N() {
		return nil, fmt.Errorf("SimulateIndices: initial state %d outside [0, %d): %w", init, c.N(), ErrInvalidChain)
	}
	if src == nil {
		return nil, fmt.Errorf("SimulateIndices: random source is required: %w", ErrInvalidChain)
	}

	rows := make([]*distuv.Categorical, c.N())
	out := make([]int, length)
	out[0] = init
	for t := 1; t < length; t++ {
		prev := out[t-1]
		if rows[prev] == nil {
			cat := distuv.NewCategorical(c.p.RawRowView(prev), src)
			rows[prev] = &cat
		}
		out[t] = int(rows[prev].Rand())
	}
	return out, nil
}
