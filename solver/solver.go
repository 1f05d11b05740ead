// Package solver computes the equilibrium of the sovereign default model by
// value-function iteration with endogenous default and bond prices.
package solver

import (
	"errors"
	"fmt"
	"math"
	"time"

	"go.uber.org/zap"
	"golang.org/x/sync/errgroup"
	"gonum.org/v1/gonum/floats"
	"gonum.org/v1/gonum/mat"

	"github.com/ucfbrd/sovereign-risk-disaster/model"
	"github.com/ucfbrd/sovereign-risk-disaster/utils"
)

var (
	// ErrInvalidOptions is returned for unusable solver options.
	ErrInvalidOptions = errors.New("solver: invalid options")
	// ErrNonFinite aborts a solve when NaN or ±Inf shows up in a value or
	// price array.
	ErrNonFinite = errors.New("solver: non-finite value")
	// ErrNotConverged is reported by Solution.Err when the iteration cap was
	// reached first.
	ErrNotConverged = errors.New("solver: did not converge")
)

// Solution is the last iterate of a solve. The caller owns every array.
type Solution struct {
	// V is the value of entering a period with access to credit markets,
	// max(Vnd, Vd); Vnd the value of repaying; Vd the value of default.
	V   *mat.Dense
	Vnd *mat.Dense
	Vd  *mat.VecDense

	// Policy[iy][iB] is the optimal next-period bond index when repaying.
	Policy [][]int

	// DefaultStates is 1 where Vd > Vnd, else 0. DefaultProb is its
	// expectation under next period's income draw.
	DefaultStates *mat.Dense
	DefaultProb   *mat.Dense

	// Q is the price of one unit of next-period bonds issued in (y, B').
	Q *mat.Dense

	Iterations int
	Distance   float64
	Converged  bool
}

// Err is nil for a converged solution and wraps ErrNotConverged otherwise.
func (s *Solution) Err() error {
	if s.Converged {
		return nil
	}
	return fmt.Errorf("Solve: distance %g after %d iterations: %w", s.Distance, s.Iterations, ErrNotConverged)
}

// Solve iterates the coupled value and price system of p to a fixed point.
//
// Each iteration takes expectations EV = P·V and EVd = P·Vd, updates the
// default value of every income state and the optimal repayment value of every
// (income, bond) cell, marks default where Vd > Vnd, and reprices bonds with
// risk-neutral lenders and zero recovery: q = (1 - P·D)/(1 + r).
//
// Reaching opts.MaxIter is not an error; inspect Solution.Converged.
func Solve(p *model.Params, opts Options) (*Solution, error) {
	if p == nil {
		return nil, fmt.Errorf("Solve: model is required: %w", ErrInvalidOptions)
	}
	opts = opts.withDefaults()
	if err := opts.validate(); err != nil {
		return nil, err
	}

	log := opts.Logger.With(zap.Int("ny", p.NY()), zap.Int("nb", p.NB()))
	log.Info("solve started",
		zap.Float64("tol", opts.Tol),
		zap.Int("max_iter", opts.MaxIter),
		zap.Int("workers", opts.Workers))
	start := time.Now()

	s := newState(p.NY(), p.NB(), opts.InitialPrice)
	P := p.P()
	r := p.R()

	it, dist := 0, math.Inf(1)
	for it < opts.MaxIter && dist > opts.Tol {
		s.ev.Mul(P, s.v)
		s.evd.MulVec(P, s.vd)

		if err := s.sweep(p, opts.Workers); err != nil {
			return nil, fmt.Errorf("Solve: iteration %d: %w", it+1, err)
		}

		s.combine()
		s.defaultProb.Mul(P, s.defaultStates)
		s.q.Apply(func(_, _ int, prob float64) float64 {
			return (1 - prob) / (1 + r)
		}, s.defaultProb)

		if err := s.checkFinite(); err != nil {
			return nil, fmt.Errorf("Solve: iteration %d: %w", it+1, err)
		}

		dist = floats.Distance(s.vUpd.RawMatrix().Data, s.v.RawMatrix().Data, math.Inf(1))
		s.v, s.vUpd = s.vUpd, s.v
		it++

		if opts.LogEvery > 0 && it%opts.LogEvery == 0 {
			log.Debug("solve progress", zap.Int("iteration", it), zap.Float64("distance", dist))
		}
	}

	sol := &Solution{
		V:             s.v,
		Vnd:           s.vnd,
		Vd:            s.vd,
		Policy:        s.policy,
		DefaultStates: s.defaultStates,
		DefaultProb:   s.defaultProb,
		Q:             s.q,
		Iterations:    it,
		Distance:      dist,
		Converged:     dist <= opts.Tol,
	}

	fields := []zap.Field{
		zap.Int("iterations", it),
		zap.Float64("distance", dist),
		zap.Duration("elapsed", time.Since(start)),
	}
	if sol.Converged {
		log.Info("solve converged", fields...)
	} else {
		log.Warn("solve hit iteration cap", fields...)
	}
	return sol, nil
}

// state is the scratch owned by a single Solve call.
type state struct {
	v, vUpd, vnd *mat.Dense
	vd           *mat.VecDense
	ev           *mat.Dense
	evd          *mat.VecDense

	policy        [][]int
	defaultStates *mat.Dense
	defaultProb   *mat.Dense
	q             *mat.Dense
}

func newState(ny, nB int, initialPrice float64) *state {
	flat := make([]int, ny*nB)
	policy := make([][]int, ny)
	for iy := range policy {
		policy[iy] = flat[iy*nB : (iy+1)*nB : (iy+1)*nB]
	}

	q := mat.NewDense(ny, nB, nil)
	raw := q.RawMatrix().Data
	for i := range raw {
		raw[i] = initialPrice
	}

	return &state{
		v:             mat.NewDense(ny, nB, nil),
		vUpd:          mat.NewDense(ny, nB, nil),
		vnd:           mat.NewDense(ny, nB, nil),
		vd:            mat.NewVecDense(ny, nil),
		ev:            mat.NewDense(ny, nB, nil),
		evd:           mat.NewVecDense(ny, nil),
		policy:        policy,
		defaultStates: mat.NewDense(ny, nB, nil),
		defaultProb:   mat.NewDense(ny, nB, nil),
		q:             q,
	}
}

// sweep updates Vd, the savings policy and Vnd for every income state.
// Rows are independent, so workers > 1 splits them across goroutines.
func (s *state) sweep(p *model.Params, workers int) error {
	ny := p.NY()
	if workers <= 1 || ny < 2 {
		for iy := 0; iy < ny; iy++ {
			if err := s.sweepRow(p, iy); err != nil {
				return err
			}
		}
		return nil
	}

	var g errgroup.Group
	g.SetLimit(workers)
	for iy := 0; iy < ny; iy++ {
		iy := iy
		g.Go(func() error { return s.sweepRow(p, iy) })
	}
	return g.Wait()
}

func (s *state) sweepRow(p *model.Params, iy int) error {
	vd := p.BellmanDefault(iy, s.evd, s.ev)
	if !utils.AllFinite(vd) {
		return fmt.Errorf("Vd[%d] = %g: %w", iy, vd, ErrNonFinite)
	}
	s.vd.SetVec(iy, vd)

	vndRow := s.vnd.RawRowView(iy)
	for iB := range vndRow {
		next := p.SavingsPolicy(iy, iB, s.q, s.ev)
		s.policy[iy][iB] = next
		vndRow[iB] = p.BellmanNonDefault(iy, iB, s.q, s.ev, next)
		if !utils.AllFinite(vndRow[iB]) {
			return fmt.Errorf("Vnd[%d,%d] = %g: %w", iy, iB, vndRow[iB], ErrNonFinite)
		}
	}
	return nil
}

// combine sets V' = max(Vnd, Vd) and the default indicator Vd > Vnd.
func (s *state) combine() {
	ny, _ := s.vnd.Dims()
	for iy := 0; iy < ny; iy++ {
		vd := s.vd.AtVec(iy)
		vndRow := s.vnd.RawRowView(iy)
		updRow := s.vUpd.RawRowView(iy)
		defRow := s.defaultStates.RawRowView(iy)
		for iB, vnd := range vndRow {
			updRow[iB] = math.Max(vnd, vd)
			if vd > vnd {
				defRow[iB] = 1
			} else {
				defRow[iB] = 0
			}
		}
	}
}

func (s *state) checkFinite() error {
	for _, m := range []struct {
		name string
		a    *mat.Dense
	}{
		{"V", s.vUpd},
		{"q", s.q},
	} {
		_, cols := m.a.Dims()
		if i := utils.FirstNonFinite(m.a.RawMatrix().Data); i >= 0 {
			return fmt.Errorf("%s[%d,%d] = %g: %w", m.name, i/cols, i%cols, m.a.RawMatrix().Data[i], ErrNonFinite)
		}
	}
	return nil
}
