// Package model holds the immutable parameter set of the sovereign default
// model with disaster risk and the Bellman right-hand sides evaluated on it.
package model

import (
	"errors"
	"fmt"

	"gonum.org/v1/gonum/mat"
	"gonum.org/v1/gonum/stat"

	"github.com/ucfbrd/sovereign-risk-disaster/bond"
	"github.com/ucfbrd/sovereign-risk-disaster/markov"
	"github.com/ucfbrd/sovereign-risk-disaster/utility"
	"github.com/ucfbrd/sovereign-risk-disaster/utils"
)

// ErrInvalidParams is returned by New for out-of-range or inconsistent inputs.
var ErrInvalidParams = errors.New("model: invalid parameters")

const (
	// ConsumptionFloor keeps consumption inside the utility function's domain.
	ConsumptionFloor = 1e-14
	// DefaultIncomeShare caps income while excluded from credit markets at
	// this fraction of mean income.
	DefaultIncomeShare = 0.969
)

// Default parameter values.
const (
	DefaultBeta  = 0.9
	DefaultGamma = 2.0
	DefaultR     = 0.0451
	DefaultRho   = 0.945
	DefaultEta   = 0.025
	DefaultTheta = 0.33
)

// Input collects everything New needs.
type Input struct {
	// B is the bond grid, strictly increasing. Negative levels are debt.
	B []float64
	// P is the income transition matrix; Y the income level of each state.
	P mat.Matrix
	Y []float64

	Beta  float64 // discount factor, in (0, 1)
	Gamma float64 // risk aversion, positive and not 1
	R     float64 // risk-free rate
	Rho   float64 // income persistence (informational)
	Eta   float64 // income volatility (informational)
	Theta float64 // probability of re-entering credit markets, in (0, 1]

	// U is the period utility; CRRA when nil.
	U utility.Func
}

// Params is the validated, immutable model. Accessors return shared views that
// callers must not modify.
type Params struct {
	b     []float64
	chain *markov.Chain
	y     []float64
	defY  []float64

	beta, gamma, r, rho, eta, theta float64

	u         utility.Func
	zeroIndex int
}

// New validates in and builds the model. Nothing is clamped: every violation
// is reported as an error wrapping ErrInvalidParams.
func New(in Input) (*Params, error) {
	if err := bond.CheckGrid(in.B); err != nil {
		return nil, fmt.Errorf("New: bond grid: %v: %w", err, ErrInvalidParams)
	}
	if in.P == nil {
		return nil, fmt.Errorf("New: transition matrix is required: %w", ErrInvalidParams)
	}
	if r, c := in.P.Dims(); r != c {
		return nil, fmt.Errorf("New: transition matrix must be square, got %dx%d: %w", r, c, ErrInvalidParams)
	} else if r != len(in.Y) {
		return nil, fmt.Errorf("New: %d income states for a %dx%d transition matrix: %w", len(in.Y), r, c, ErrInvalidParams)
	}
	chain, err := markov.NewChain(in.P, in.Y)
	if err != nil {
		return nil, fmt.Errorf("New: income chain: %v: %w", err, ErrInvalidParams)
	}

	if !utils.AllFinite(in.Beta, in.Gamma, in.R, in.Rho, in.Eta, in.Theta) {
		return nil, fmt.Errorf("New: non-finite scalar parameter: %w", ErrInvalidParams)
	}
	switch {
	case in.Beta <= 0 || in.Beta >= 1:
		return nil, fmt.Errorf("New: beta must lie in (0, 1), got %g: %w", in.Beta, ErrInvalidParams)
	case in.Gamma <= 0:
		return nil, fmt.Errorf("New: gamma must be positive, got %g: %w", in.Gamma, ErrInvalidParams)
	case in.Gamma == 1:
		return nil, fmt.Errorf("New: gamma = 1 is singular for CRRA utility: %w", ErrInvalidParams)
	case in.Theta <= 0 || in.Theta > 1:
		return nil, fmt.Errorf("New: theta must lie in (0, 1], got %g: %w", in.Theta, ErrInvalidParams)
	case in.R <= -1:
		return nil, fmt.Errorf("New: r must exceed -1, got %g: %w", in.R, ErrInvalidParams)
	}

	u := in.U
	if u == nil {
		u = utility.CRRA{}
	}

	y := chain.States()
	return &Params{
		b:         append([]float64(nil), in.B...),
		chain:     chain,
		y:         y,
		defY:      defaultIncome(y),
		beta:      in.Beta,
		gamma:     in.Gamma,
		r:         in.R,
		rho:       in.Rho,
		eta:       in.Eta,
		theta:     in.Theta,
		u:         u,
		zeroIndex: bond.ZeroIndex(in.B),
	}, nil
}

// defaultIncome is min(DefaultIncomeShare·mean(y), y[i]) per state.
func defaultIncome(y []float64) []float64 {
	ceiling := DefaultIncomeShare * stat.Mean(y, nil)
	out := make([]float64, len(y))
	for i, v := range y {
		out[i] = min(ceiling, v)
	}
	return out
}

func (p *Params) B() []float64             { return p.b }
func (p *Params) Y() []float64             { return p.y }
func (p *Params) P() mat.Matrix            { return p.chain.P() }
func (p *Params) Chain() *markov.Chain     { return p.chain }
func (p *Params) DefaultIncome() []float64 { return p.defY }
func (p *Params) U() utility.Func          { return p.u }

// ZeroIndex is the bond index closest to zero, used on re-entry.
func (p *Params) ZeroIndex() int { return p.zeroIndex }

func (p *Params) NB() int { return len(p.b) }
func (p *Params) NY() int { return len(p.y) }

func (p *Params) Beta() float64  { return p.beta }
func (p *Params) Gamma() float64 { return p.gamma }
func (p *Params) R() float64     { return p.r }
func (p *Params) Rho() float64   { return p.rho }
func (p *Params) Eta() float64   { return p.eta }
func (p *Params) Theta() float64 { return p.theta }
