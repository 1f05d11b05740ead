package simulate

import (
	"math"

	"gonum.org/v1/gonum/stat"

	"github.com/ucfbrd/sovereign-risk-disaster/bond"
)

// Summary holds moments of a simulated path.
type Summary struct {
	Periods int

	// DefaultFrequency is the share of periods spent excluded from markets.
	DefaultFrequency float64
	// DefaultEpisodes counts transitions from repayment into default.
	DefaultEpisodes int

	MeanIncome float64
	MeanDebt   float64
	StdDebt    float64

	// MeanSpread averages the spread over r of the prices quoted in
	// repayment periods with a positive price. NaN when there are none.
	MeanSpread float64
}

// Summarize computes the moments of path given the risk-free rate r.
func Summarize(path *Path, r float64) Summary {
	n := path.Len()
	s := Summary{Periods: n, MeanSpread: math.NaN(), StdDebt: math.NaN()}
	if n == 0 {
		return s
	}

	inDefault := 0
	for t, d := range path.Default {
		if d {
			inDefault++
			if t == 0 || !path.Default[t-1] {
				s.DefaultEpisodes++
			}
		}
	}
	s.DefaultFrequency = float64(inDefault) / float64(n)
	s.MeanIncome = stat.Mean(path.Y, nil)
	s.MeanDebt = stat.Mean(path.B, nil)
	if n > 1 {
		s.StdDebt = stat.StdDev(path.B, nil)
	}

	spreads := make([]float64, 0, n)
	for t, q := range path.Q {
		if path.Default[t] {
			continue
		}
		if sp, err := bond.Spread(q, r); err == nil {
			spreads = append(spreads, sp)
		}
	}
	if len(spreads) > 0 {
		s.MeanSpread = stat.Mean(spreads, nil)
	}
	return s
}
