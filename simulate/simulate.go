// Package simulate replays a solved sovereign default model along a random
// income path.
package simulate

import (
	"errors"
	"fmt"

	"go.uber.org/zap"
	"golang.org/x/exp/rand"
	"gonum.org/v1/gonum/mat"
	"gonum.org/v1/gonum/stat"
	"gonum.org/v1/gonum/stat/distuv"

	"github.com/ucfbrd/sovereign-risk-disaster/bond"
	"github.com/ucfbrd/sovereign-risk-disaster/model"
	"github.com/ucfbrd/sovereign-risk-disaster/solver"
	"github.com/ucfbrd/sovereign-risk-disaster/utils"
)

// ErrInvalidInput is returned before any simulation work for unusable inputs.
var ErrInvalidInput = errors.New("simulate: invalid input")

// defaultThreshold is the indicator level above which a repaying country is
// treated as defaulting. It absorbs floating noise in the indicator.
const defaultThreshold = 1e-4

// Input carries the solved policy objects and simulation settings.
type Input struct {
	// Horizon is the number of simulated periods.
	Horizon int

	DefaultStates *mat.Dense
	Policy        [][]int
	Prices        *mat.Dense

	// YInit and BInit are optional starting indices. Income defaults to the
	// state nearest mean income, bonds to the first non-negative level.
	YInit *int
	BInit *int

	// Seed drives the random stream unless Source is set.
	Seed   uint64
	Source rand.Source

	Logger *zap.Logger
}

// InputFromSolution builds an Input that reads the solved arrays of sol.
func InputFromSolution(sol *solver.Solution, horizon int, seed uint64) Input {
	return Input{
		Horizon:       horizon,
		DefaultStates: sol.DefaultStates,
		Policy:        sol.Policy,
		Prices:        sol.Q,
		Seed:          seed,
	}
}

// Path is one simulated history. Default[t] reports whether the country
// entered period t excluded from credit markets.
type Path struct {
	Y       []float64
	B       []float64
	Q       []float64
	Default []bool
}

// Len is the number of simulated periods.
func (p *Path) Len() int { return len(p.Y) }

// Run simulates in.Horizon periods of p under the solved policy.
//
// Income indices are drawn once from the chain; default re-entry draws then
// come from the same stream, so a fixed seed reproduces the path exactly.
func Run(p *model.Params, in Input) (*Path, error) {
	if p == nil {
		return nil, fmt.Errorf("Run: model is required: %w", ErrInvalidInput)
	}
	if err := checkInput(p, in); err != nil {
		return nil, err
	}

	b, y := p.B(), p.Y()
	zero := bond.EntryIndex(b)
	if zero == len(b) {
		return nil, fmt.Errorf("Run: bond grid has no non-negative level: %w", ErrInvalidInput)
	}
	meanY := stat.Mean(y, nil)
	maxYDefault := model.DefaultIncomeShare * meanY

	yi := utils.Nearest(y, meanY)
	if in.YInit != nil {
		yi = *in.YInit
	}
	bi := zero
	if in.BInit != nil {
		bi = *in.BInit
	}
	if yi < 0 || yi >= p.NY() {
		return nil, fmt.Errorf("Run: initial income index %d outside [0, %d): %w", yi, p.NY(), ErrInvalidInput)
	}
	if bi < 0 || bi >= p.NB() {
		return nil, fmt.Errorf("Run: initial bond index %d outside [0, %d): %w", bi, p.NB(), ErrInvalidInput)
	}

	src := in.Source
	if src == nil {
		src = rand.NewSource(in.Seed)
	}
	rng := rand.New(src)

	T := in.Horizon
	yPath, err := p.Chain().SimulateIndices(T+1, yi, rng)
	if err != nil {
		return nil, fmt.Errorf("Run: income path: %w", err)
	}
	reentry := distuv.Uniform{Min: 0, Max: 1, Src: rng}

	out := &Path{
		Y:       make([]float64, T),
		B:       make([]float64, T),
		Q:       make([]float64, T),
		Default: make([]bool, T),
	}

	inDefault := false
	episodes := 0
	for t := 0; t < T; t++ {
		yi = yPath[t]

		if inDefault {
			out.Y[t] = min(y[yi], maxYDefault)
		} else {
			out.Y[t] = y[yi]
		}
		out.B[t] = b[bi]
		out.Default[t] = inDefault

		var next int
		if !inDefault {
			if in.DefaultStates.At(yi, bi) > defaultThreshold {
				inDefault = true
				episodes++
				next = zero
			} else {
				next = in.Policy[yi][bi]
			}
		} else {
			next = zero
			if reentry.Rand() < p.Theta() {
				inDefault = false
			}
		}

		out.Q[t] = in.Prices.At(yi, next)
		bi = next
	}

	if in.Logger != nil {
		in.Logger.Debug("simulation finished",
			zap.Int("horizon", T),
			zap.Int("default_episodes", episodes))
	}
	return out, nil
}

func checkInput(p *model.Params, in Input) error {
	if in.Horizon < 1 {
		return fmt.Errorf("Run: horizon must be positive, got %d: %w", in.Horizon, ErrInvalidInput)
	}
	ny, nB := p.NY(), p.NB()
	for _, m := range []struct {
		name string
		a    *mat.Dense
	}{
		{"default states", in.DefaultStates},
		{"prices", in.Prices},
	} {
		if m.a == nil {
			return fmt.Errorf("Run: %s are required: %w", m.name, ErrInvalidInput)
		}
		if r, c := m.a.Dims(); r != ny || c != nB {
			return fmt.Errorf("Run: %s are %dx%d, model is %dx%d: %w", m.name, r, c, ny, nB, ErrInvalidInput)
		}
	}
	if len(in.Policy) != ny {
		return fmt.Errorf("Run: policy has %d rows, model has %d income states: %w", len(in.Policy), ny, ErrInvalidInput)
	}
	for iy, row := range in.Policy {
		if len(row) != nB {
			return fmt.Errorf("Run: policy row %d has %d entries, want %d: %w", iy, len(row), nB, ErrInvalidInput)
		}
		for iB, next := range row {
			if next < 0 || next >= nB {
				return fmt.Errorf("Run: policy[%d][%d] = %d outside the bond grid: %w", iy, iB, next, ErrInvalidInput)
			}
		}
	}
	return nil
}
