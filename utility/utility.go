// Package utility defines the period utility functions used by the sovereign
// default model.
package utility

import "math"

// Func evaluates period utility of consumption c under risk-aversion gamma.
type Func interface {
	Eval(c, gamma float64) float64
}

// FuncOf adapts an ordinary function to Func.
type FuncOf func(c, gamma float64) float64

func (f FuncOf) Eval(c, gamma float64) float64 {
	return f(c, gamma)
}

// CRRA is constant relative risk aversion utility c^(1-γ)/(1-γ). γ must not be 1.
type CRRA struct{}

func (CRRA) Eval(c, gamma float64) float64 {
	return ValueCRRA(c, gamma)
}

// ValueCRRA is the CRRA formula as a plain function.
func ValueCRRA(c, gamma float64) float64 {
	return math.Pow(c, 1-gamma) / (1 - gamma)
}
