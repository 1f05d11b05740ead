package solver

import (
	"fmt"
	"math"

	"go.uber.org/zap"
)

// Options controls the fixed-point iteration.
type Options struct {
	// Tol is the sup-norm distance between successive value functions at
	// which the iteration stops.
	Tol float64

	// MaxIter caps the number of Bellman updates. Hitting it returns the last
	// iterate with Converged=false.
	MaxIter int

	// InitialPrice seeds every cell of the bond price schedule.
	InitialPrice float64

	// Workers is the number of goroutines sharing one Bellman sweep. Income
	// states are split between workers; results do not depend on the count.
	Workers int

	// LogEvery emits a debug progress line every LogEvery iterations (0 = never).
	LogEvery int

	// Logger receives progress and completion records. Nil disables logging.
	Logger *zap.Logger
}

// DefaultOptions are used for any zero-valued field.
var DefaultOptions = Options{
	Tol:          1e-8,
	MaxIter:      10000,
	InitialPrice: 0.95,
	Workers:      1,
	LogEvery:     100,
}

func (o Options) withDefaults() Options {
	if o.Tol == 0 {
		o.Tol = DefaultOptions.Tol
	}
	if o.MaxIter == 0 {
		o.MaxIter = DefaultOptions.MaxIter
	}
	if o.InitialPrice == 0 {
		o.InitialPrice = DefaultOptions.InitialPrice
	}
	if o.Workers <= 0 {
		o.Workers = DefaultOptions.Workers
	}
	if o.Logger == nil {
		o.Logger = zap.NewNop()
	}
	return o
}

func (o Options) validate() error {
	switch {
	case !(o.Tol > 0) || math.IsInf(o.Tol, 0):
		return fmt.Errorf("Solve: tolerance must be positive and finite, got %g: %w", o.Tol, ErrInvalidOptions)
	case o.MaxIter < 1:
		return fmt.Errorf("Solve: max iterations must be positive, got %d: %w", o.MaxIter, ErrInvalidOptions)
	case !(o.InitialPrice > 0 && o.InitialPrice <= 1):
		return fmt.Errorf("Solve: initial price must lie in (0, 1], got %g: %w", o.InitialPrice, ErrInvalidOptions)
	case o.LogEvery < 0:
		return fmt.Errorf("Solve: log interval must not be negative, got %d: %w", o.LogEvery, ErrInvalidOptions)
	}
	return nil
}
