package model

import (
	"math"

	"gonum.org/v1/gonum/mat"
)

// BellmanDefault is the value of income state iy while excluded from credit
// markets:
//
//	u(def_y[iy]) + γ·(θ·EV[iy, zero] + (1-θ)·EVd[iy])
//
// The continuation is weighted by γ, not β. Consumption is floored at
// ConsumptionFloor like in the repayment branch.
func (p *Params) BellmanDefault(iy int, evd *mat.VecDense, ev *mat.Dense) float64 {
	cont := p.theta*ev.At(iy, p.zeroIndex) + (1-p.theta)*evd.AtVec(iy)
	c := math.Max(p.defY[iy], ConsumptionFloor)
	return p.u.Eval(c, p.gamma) + p.gamma*cont
}

// BellmanNonDefault is the value of repaying in state (iy, iB) and carrying
// bond index next into the following period:
//
//	u(y[iy] - q[iy,next]·B[next] + B[iB]) + β·EV[iy, next]
func (p *Params) BellmanNonDefault(iy, iB int, q, ev *mat.Dense, next int) float64 {
	c := p.consumption(iy, iB, next, q.RawRowView(iy))
	return p.u.Eval(c, p.gamma) + p.beta*ev.At(iy, next)
}

// SavingsPolicy searches every bond index for the one maximizing the repayment
// value in state (iy, iB). The first maximum wins.
func (p *Params) SavingsPolicy(iy, iB int, q, ev *mat.Dense) int {
	qRow, evRow := q.RawRowView(iy), ev.RawRowView(iy)

	best, bestNext := math.Inf(-1), 0
	for next := range p.b {
		m := p.u.Eval(p.consumption(iy, iB, next, qRow), p.gamma) + p.beta*evRow[next]
		if m > best {
			best, bestNext = m, next
		}
	}
	return bestNext
}

func (p *Params) consumption(iy, iB, next int, qRow []float64) float64 {
	return math.Max(p.y[iy]-qRow[next]*p.b[next]+p.b[iB], ConsumptionFloor)
}
