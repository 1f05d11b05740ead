package solver_test

import (
	"math"
	"testing"

	"github.com/google/go-cmp/cmp"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/goleak"
	"go.uber.org/zap"
	"go.uber.org/zap/zaptest/observer"
	"gonum.org/v1/gonum/mat"

	"github.com/ucfbrd/sovereign-risk-disaster/bond"
	"github.com/ucfbrd/sovereign-risk-disaster/markov"
	"github.com/ucfbrd/sovereign-risk-disaster/model"
	"github.com/ucfbrd/sovereign-risk-disaster/solver"
	"github.com/ucfbrd/sovereign-risk-disaster/utility"
)

func TestMain(m *testing.M) {
	goleak.VerifyTestMain(m)
}

// smallModel is the five-bond, three-state economy used across the tests.
func smallModel(t *testing.T) *model.Params {
	t.Helper()

	chain, err := markov.Tauchen(0.9, 0.1, 0.01, 2, 3)
	require.NoError(t, err)
	p, err := model.New(model.Input{
		B:     []float64{-1, -0.5, 0, 0.5, 1},
		P:     chain.P(),
		Y:     chain.States(),
		Beta:  0.9,
		Gamma: 2,
		R:     0.05,
		Rho:   0.9,
		Eta:   0.1,
		Theta: 0.5,
	})
	require.NoError(t, err)
	return p
}

func TestSolve_SmallEconomyConverges(t *testing.T) {
	t.Parallel()

	p := smallModel(t)
	sol, err := solver.Solve(p, solver.Options{Tol: 1e-6, MaxIter: 5000})
	require.NoError(t, err)
	require.True(t, sol.Converged, "distance %g after %d iterations", sol.Distance, sol.Iterations)
	require.NoError(t, sol.Err())
	assert.LessOrEqual(t, sol.Distance, 1e-6)
	assert.Less(t, sol.Iterations, 5000)

	ceiling := 1 / (1 + p.R())
	for _, q := range sol.Q.RawMatrix().Data {
		assert.Greater(t, q, 0.0)
		assert.LessOrEqual(t, q, ceiling)
	}
}

func TestSolve_TenBondFiveStateConverges(t *testing.T) {
	t.Parallel()

	chain, err := markov.Tauchen(0.945, 0.025, 0.01, 3, 5)
	require.NoError(t, err)
	b, err := bond.NewGrid(-1, 1, 10)
	require.NoError(t, err)
	p, err := model.New(model.Input{
		B:     b,
		P:     chain.P(),
		Y:     chain.States(),
		Beta:  0.9,
		Gamma: 2,
		R:     0.0451,
		Rho:   0.945,
		Eta:   0.025,
		Theta: 0.33,
	})
	require.NoError(t, err)

	sol, err := solver.Solve(p, solver.Options{Tol: 1e-8, MaxIter: 2000})
	require.NoError(t, err)
	require.True(t, sol.Converged, "distance %g after %d iterations", sol.Distance, sol.Iterations)
	assertInvariants(t, p, sol)
}

func TestSolve_Invariants(t *testing.T) {
	t.Parallel()

	p := smallModel(t)
	for _, maxIter := range []int{1, 2, 10, 5000} {
		sol, err := solver.Solve(p, solver.Options{Tol: 1e-6, MaxIter: maxIter})
		require.NoError(t, err)
		assertInvariants(t, p, sol)
	}
}

// assertInvariants checks the relations every returned iterate satisfies.
func assertInvariants(t *testing.T, p *model.Params, sol *solver.Solution) {
	t.Helper()

	ny, nB := p.NY(), p.NB()
	require.Len(t, sol.Policy, ny)

	var wantProb mat.Dense
	wantProb.Mul(p.P(), sol.DefaultStates)

	for iy := 0; iy < ny; iy++ {
		require.Len(t, sol.Policy[iy], nB)
		vd := sol.Vd.AtVec(iy)
		for iB := 0; iB < nB; iB++ {
			vnd := sol.Vnd.At(iy, iB)
			d := sol.DefaultStates.At(iy, iB)
			if vd > vnd {
				assert.Equal(t, 1.0, d, "(%d,%d)", iy, iB)
			} else {
				assert.Equal(t, 0.0, d, "(%d,%d)", iy, iB)
			}
			assert.Equal(t, math.Max(vnd, vd), sol.V.At(iy, iB))

			prob := sol.DefaultProb.At(iy, iB)
			assert.InDelta(t, wantProb.At(iy, iB), prob, 1e-12)
			assert.InDelta(t, (1-prob)/(1+p.R()), sol.Q.At(iy, iB), 1e-15)

			next := sol.Policy[iy][iB]
			require.GreaterOrEqual(t, next, 0)
			require.Less(t, next, nB)
		}
	}
}

func TestSolve_WorkersDoNotChangeResult(t *testing.T) {
	t.Parallel()

	chain, err := markov.Tauchen(0.945, 0.025, 0.01, 3, 7)
	require.NoError(t, err)
	b, err := bond.NewGrid(-0.6, 0.6, 25)
	require.NoError(t, err)
	p, err := model.New(model.Input{
		B: b, P: chain.P(), Y: chain.Exp().States(),
		Beta: 0.9, Gamma: 2, R: 0.0451, Rho: 0.945, Eta: 0.025, Theta: 0.33,
	})
	require.NoError(t, err)

	serial, err := solver.Solve(p, solver.Options{Tol: 1e-6, MaxIter: 300, Workers: 1})
	require.NoError(t, err)
	parallel, err := solver.Solve(p, solver.Options{Tol: 1e-6, MaxIter: 300, Workers: 4})
	require.NoError(t, err)

	assert.Equal(t, serial.Iterations, parallel.Iterations)
	assert.Equal(t, serial.Converged, parallel.Converged)
	if diff := cmp.Diff(serial.V.RawMatrix().Data, parallel.V.RawMatrix().Data); diff != "" {
		t.Fatalf("V differs (-serial +parallel):\n%s", diff)
	}
	if diff := cmp.Diff(serial.Q.RawMatrix().Data, parallel.Q.RawMatrix().Data); diff != "" {
		t.Fatalf("q differs (-serial +parallel):\n%s", diff)
	}
	if diff := cmp.Diff(serial.Policy, parallel.Policy); diff != "" {
		t.Fatalf("policy differs (-serial +parallel):\n%s", diff)
	}
}

func TestSolve_Deterministic(t *testing.T) {
	t.Parallel()

	p := smallModel(t)
	a, err := solver.Solve(p, solver.Options{Tol: 1e-6, MaxIter: 5000})
	require.NoError(t, err)
	b, err := solver.Solve(p, solver.Options{Tol: 1e-6, MaxIter: 5000})
	require.NoError(t, err)
	assert.Equal(t, a.Iterations, b.Iterations)
	assert.True(t, mat.Equal(a.V, b.V))
	assert.True(t, mat.Equal(a.Vd, b.Vd))
	assert.True(t, mat.Equal(a.Q, b.Q))
}

func TestSolve_IterationCap(t *testing.T) {
	t.Parallel()

	p := smallModel(t)
	sol, err := solver.Solve(p, solver.Options{Tol: 1e-12, MaxIter: 3})
	require.NoError(t, err)
	assert.False(t, sol.Converged)
	assert.Equal(t, 3, sol.Iterations)
	assert.Greater(t, sol.Distance, 1e-12)
	require.ErrorIs(t, sol.Err(), solver.ErrNotConverged)
}

func TestSolve_NonFiniteAborts(t *testing.T) {
	t.Parallel()

	chain, err := markov.Tauchen(0.9, 0.1, 0.01, 2, 3)
	require.NoError(t, err)
	p, err := model.New(model.Input{
		B: []float64{-1, 0, 1}, P: chain.P(), Y: chain.States(),
		Beta: 0.9, Gamma: 2, R: 0.05, Theta: 0.5,
		U: utility.FuncOf(func(c, _ float64) float64 { return math.NaN() }),
	})
	require.NoError(t, err)

	for _, workers := range []int{1, 3} {
		_, err = solver.Solve(p, solver.Options{Workers: workers})
		require.ErrorIs(t, err, solver.ErrNonFinite)
	}
}

func TestSolve_InvalidOptions(t *testing.T) {
	t.Parallel()

	p := smallModel(t)
	tests := []struct {
		name string
		opts solver.Options
	}{
		{name: "negative tolerance", opts: solver.Options{Tol: -1}},
		{name: "nan tolerance", opts: solver.Options{Tol: math.NaN()}},
		{name: "negative max iterations", opts: solver.Options{MaxIter: -5}},
		{name: "price above one", opts: solver.Options{InitialPrice: 1.5}},
		{name: "negative price", opts: solver.Options{InitialPrice: -0.1}},
		{name: "negative log interval", opts: solver.Options{LogEvery: -1}},
	}
	for _, tc := range tests {
		tc := tc
		t.Run(tc.name, func(t *testing.T) {
			t.Parallel()
			_, err := solver.Solve(p, tc.opts)
			require.ErrorIs(t, err, solver.ErrInvalidOptions)
		})
	}

	_, err := solver.Solve(nil, solver.Options{})
	require.ErrorIs(t, err, solver.ErrInvalidOptions)
}

func TestSolve_Logging(t *testing.T) {
	t.Parallel()

	core, logs := observer.New(zap.DebugLevel)
	p := smallModel(t)
	_, err := solver.Solve(p, solver.Options{Tol: 1e-12, MaxIter: 4, LogEvery: 2, Logger: zap.New(core)})
	require.NoError(t, err)

	assert.Equal(t, 1, logs.FilterMessage("solve started").Len())
	assert.Equal(t, 2, logs.FilterMessage("solve progress").Len())
	assert.Equal(t, 1, logs.FilterMessage("solve hit iteration cap").Len())
}
