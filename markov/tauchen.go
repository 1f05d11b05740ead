package markov

import (
	"fmt"
	"math"

	"gonum.org/v1/gonum/floats"
	"gonum.org/v1/gonum/mat"
	"gonum.org/v1/gonum/stat/distuv"

	"github.com/ucfbrd/sovereign-risk-disaster/utils"
)

// Tauchen discretizes the AR(1) process
//
//	y_{t+1} = ρ·y_t - ξ·h + u_{t+1},  u ~ N(0, σ²)
//
// into an n-state chain spanning ±m unconditional standard deviations of the
// non-disaster process. The disaster hazard h shifts every state by -h/(1-ρ).
func Tauchen(rho, sigma, h, m float64, n int) (*Chain, error) {
	switch {
	case n < 2:
		return nil, fmt.Errorf("Tauchen: need at least 2 states, got %d: %w", n, ErrInvalidChain)
	case !utils.AllFinite(rho, sigma, h, m):
		return nil, fmt.Errorf("Tauchen: non-finite parameter (rho=%g sigma=%g h=%g m=%g): %w", rho, sigma, h, m, ErrInvalidChain)
	case rho <= -1 || rho >= 1:
		return nil, fmt.Errorf("Tauchen: rho must lie in (-1, 1), got %g: %w", rho, ErrInvalidChain)
	case sigma <= 0:
		return nil, fmt.Errorf("Tauchen: sigma must be positive, got %g: %w", sigma, ErrInvalidChain)
	case h < 0 || h > 1:
		return nil, fmt.Errorf("Tauchen: disaster hazard must lie in [0, 1], got %g: %w", h, ErrInvalidChain)
	case m < 1:
		return nil, fmt.Errorf("Tauchen: span multiplier must be at least 1, got %g: %w", m, ErrInvalidChain)
	}

	stdY := sigma / math.Sqrt(1-rho*rho)
	xMax := m * stdY
	x := utils.Linspace(-xMax, xMax, n)
	halfStep := 0.5 * (2 * xMax / float64(n-1))

	p := mat.NewDense(n, n, nil)
	fillTauchen(x, p, rho, sigma, halfStep)

	floats.AddConst(-h/(1-rho), x)
	return &Chain{p: p, states: x}, nil
}

// fillTauchen writes transition probabilities for the symmetric grid x.
// Edge columns take the full tail mass so rows sum to one.
func fillTauchen(x []float64, p *mat.Dense, rho, sigma, halfStep float64) {
	n := len(x)
	cdf := distuv.UnitNormal.CDF
	for i := 0; i < n; i++ {
		row := p.RawRowView(i)
		row[0] = cdf((x[0] - rho*x[i] + halfStep) / sigma)
		row[n-1] = 1 - cdf((x[n-1]-rho*x[i]-halfStep)/sigma)
		for j := 1; j < n-1; j++ {
			z := x[j] - rho*x[i]
			row[j] = cdf((z+halfStep)/sigma) - cdf((z-halfStep)/sigma)
		}
	}
}
