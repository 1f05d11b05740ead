package income

import (
	"fmt"
	"math"

	"gonum.org/v1/gonum/floats"
	"gonum.org/v1/gonum/stat"

	"github.com/ucfbrd/sovereign-risk-disaster/markov"
)

// MinObservations is the shortest series EstimateAR1 accepts.
const MinObservations = 5

// AR1 is a fitted log-income process
//
//	log y_t = Intercept + Trend·t + z_t,   z_t = c + Rho·z_{t-1} + Sigma·ε_t
type AR1 struct {
	Rho   float64
	Sigma float64

	Intercept float64
	Trend     float64

	// N is the number of observations used.
	N int
}

// EstimateAR1 fits the cyclical component of log values by OLS.
// The log series is detrended linearly, then the residual z_t is regressed on
// z_{t-1}. Sigma is the residual standard error of that second regression.
func EstimateAR1(s Series) (AR1, error) {
	n := len(s)
	if n < MinObservations {
		return AR1{}, fmt.Errorf("EstimateAR1: %d observations, need %d: %w", n, MinObservations, ErrInsufficientData)
	}

	logs := make([]float64, n)
	ts := make([]float64, n)
	for i, o := range s {
		if !(o.Value > 0) || math.IsInf(o.Value, 0) {
			return AR1{}, fmt.Errorf("EstimateAR1: observation %d is %g, need positive values: %w", i, o.Value, ErrInsufficientData)
		}
		logs[i] = math.Log(o.Value)
		ts[i] = float64(i)
	}

	alpha, trend := stat.LinearRegression(ts, logs, nil, false)
	z := make([]float64, n)
	for i := range z {
		z[i] = logs[i] - alpha - trend*ts[i]
	}

	c, rho := stat.LinearRegression(z[:n-1], z[1:], nil, false)
	resid := make([]float64, n-1)
	for i := range resid {
		resid[i] = z[i+1] - c - rho*z[i]
	}
	sigma := math.Sqrt(floats.Dot(resid, resid) / float64(len(resid)-2))

	if math.IsNaN(rho) || math.IsNaN(sigma) {
		return AR1{}, fmt.Errorf("EstimateAR1: degenerate series: %w", ErrInsufficientData)
	}
	return AR1{Rho: rho, Sigma: sigma, Intercept: alpha, Trend: trend, N: n}, nil
}

// Chain discretizes the fitted process into n states with disaster hazard h
// and span multiplier m.
func (a AR1) Chain(h, m float64, n int) (*markov.Chain, error) {
	return markov.Tauchen(a.Rho, a.Sigma, h, m, n)
}
