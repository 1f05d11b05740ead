package main

import (
	"bytes"
	"encoding/json"
	"fmt"
	"math"
	"os"
	"path/filepath"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/ucfbrd/sovereign-risk-disaster/config"
)

const smallConfig = `
chain:
  rho: 0.9
  sigma: 0.1
  disaster_hazard: 0.01
  span: 2
  states: 3
  exponentiate: false
bonds:
  min: -1
  max: 1
  points: 5
model:
  beta: 0.9
  gamma: 2
  r: 0.05
  theta: 0.5
solver:
  tol: 1.0e-6
  max_iter: 5000
simulation:
  horizon: 40
  seed: 42
`

func writeConfig(t *testing.T, body string) string {
	t.Helper()
	path := filepath.Join(t.TempDir(), "run.yaml")
	require.NoError(t, os.WriteFile(path, []byte(body), 0o600))
	return path
}

func execute(t *testing.T, args ...string) (int, []byte, string) {
	t.Helper()
	var stdout, stderr bytes.Buffer
	code := run(args, strings.NewReader(""), &stdout, &stderr)
	return code, stdout.Bytes(), stderr.String()
}

func TestDiscretize(t *testing.T) {
	t.Parallel()

	code, out, _ := execute(t, "discretize", "--config", writeConfig(t, smallConfig))
	require.Equal(t, 0, code, string(out))

	var got struct {
		RunID      string      `json:"run_id"`
		States     []float64   `json:"states"`
		Transition [][]float64 `json:"transition"`
	}
	require.NoError(t, json.Unmarshal(out, &got))
	assert.NotEmpty(t, got.RunID)
	require.Len(t, got.States, 3)
	require.Len(t, got.Transition, 3)
	for _, row := range got.Transition {
		sum := 0.0
		for _, p := range row {
			sum += p
		}
		assert.InDelta(t, 1, sum, 1e-12)
	}

	code, out, _ = execute(t, "discretize", "--config", writeConfig(t, smallConfig), "--states", "7")
	require.Equal(t, 0, code)
	require.NoError(t, json.Unmarshal(out, &got))
	assert.Len(t, got.States, 7)
}

func TestSolve(t *testing.T) {
	t.Parallel()

	code, out, logs := execute(t, "solve", "--config", writeConfig(t, smallConfig), "--strict")
	require.Equal(t, 0, code, string(out))

	var got struct {
		Converged bool         `json:"converged"`
		Prices    [][]float64  `json:"prices"`
		Policy    [][]int      `json:"policy"`
		Spreads   [][]*float64 `json:"spreads"`
	}
	require.NoError(t, json.Unmarshal(out, &got))
	assert.True(t, got.Converged)
	require.Len(t, got.Prices, 3)
	for _, row := range got.Prices {
		require.Len(t, row, 5)
		for _, q := range row {
			assert.LessOrEqual(t, q, 1/1.05)
		}
	}
	require.Len(t, got.Policy, 3)
	require.Len(t, got.Spreads, 3)
	assert.Contains(t, logs, "solve converged")
}

func TestSolveStrictFailsOnIterationCap(t *testing.T) {
	t.Parallel()

	cfg := strings.Replace(smallConfig, "max_iter: 5000", "max_iter: 2", 1)
	code, out, _ := execute(t, "solve", "--config", writeConfig(t, cfg), "--strict")
	require.Equal(t, 1, code)

	var got struct {
		Error string `json:"error"`
	}
	require.NoError(t, json.Unmarshal(out, &got))
	assert.Contains(t, got.Error, "did not converge")
}

func TestSimulate(t *testing.T) {
	t.Parallel()

	path := writeConfig(t, smallConfig)

	type output struct {
		Converged bool      `json:"converged"`
		Seed      uint64    `json:"seed"`
		Y         []float64 `json:"y"`
		B         []float64 `json:"b"`
		Q         []float64 `json:"q"`
		Default   []bool    `json:"default"`
		Summary   struct {
			Periods int `json:"periods"`
		} `json:"summary"`
	}

	code, out, _ := execute(t, "simulate", "--config", path)
	require.Equal(t, 0, code, string(out))
	var first output
	require.NoError(t, json.Unmarshal(out, &first))
	assert.True(t, first.Converged)
	assert.Equal(t, uint64(42), first.Seed)
	assert.Len(t, first.Y, 40)
	assert.Len(t, first.B, 40)
	assert.Len(t, first.Q, 40)
	assert.Len(t, first.Default, 40)
	assert.Equal(t, 40, first.Summary.Periods)

	code, out, _ = execute(t, "simulate", "--config", path)
	require.Equal(t, 0, code)
	var second output
	require.NoError(t, json.Unmarshal(out, &second))
	assert.Equal(t, first.Y, second.Y)
	assert.Equal(t, first.B, second.B)

	code, out, _ = execute(t, "simulate", "--config", path, "--horizon", "10", "--seed", "0")
	require.Equal(t, 0, code)
	var short output
	require.NoError(t, json.Unmarshal(out, &short))
	assert.Len(t, short.Y, 10)
	assert.Equal(t, uint64(0), short.Seed)
}

func TestIncomeFit(t *testing.T) {
	t.Parallel()

	dir := t.TempDir()
	var csv strings.Builder
	csv.WriteString("country,date,value\n")
	z := 0.0
	for i := 0; i < 40; i++ {
		// Deterministic oscillation around a trend.
		z = 0.7*z + 0.02*math.Sin(float64(i)*1.7)
		fmt.Fprintf(&csv, "Argentina,%d,%g\n", 1980+i, math.Exp(9+0.01*float64(i)+z))
	}
	data := filepath.Join(dir, "gdp.csv")
	require.NoError(t, os.WriteFile(data, []byte(csv.String()), 0o600))

	cfg := smallConfig + "income:\n  file: " + data + "\n  country: argentina\n"
	code, out, logs := execute(t, "discretize", "--config", writeConfig(t, cfg))
	require.Equal(t, 0, code, string(out))

	var got struct {
		Rho float64 `json:"rho"`
		Fit *struct {
			Rho float64 `json:"rho"`
			N   int     `json:"observations"`
		} `json:"fit"`
	}
	require.NoError(t, json.Unmarshal(out, &got))
	require.NotNil(t, got.Fit)
	assert.Equal(t, 40, got.Fit.N)
	assert.Equal(t, got.Fit.Rho, got.Rho)
	assert.Contains(t, logs, "income process estimated")
}

func TestErrors(t *testing.T) {
	t.Parallel()

	code, out, _ := execute(t, "solve", "--config", writeConfig(t, "model:\n  beta: 1.5\n"))
	assert.Equal(t, 1, code)
	assert.Contains(t, string(out), `"error"`)

	code, _, _ = execute(t, "solve", "--config", filepath.Join(t.TempDir(), "missing.yaml"))
	assert.Equal(t, 1, code)

	code, _, stderr := execute(t, "bogus")
	assert.Equal(t, 1, code)
	assert.Contains(t, stderr, "unknown command")
}

func TestConfigFromEnvironment(t *testing.T) {
	t.Setenv(config.EnvPath, writeConfig(t, smallConfig))

	code, out, _ := execute(t, "discretize")
	require.Equal(t, 0, code, string(out))

	var got struct {
		States []float64 `json:"states"`
	}
	require.NoError(t, json.Unmarshal(out, &got))
	assert.Len(t, got.States, 3)
}
