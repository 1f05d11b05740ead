// Package equilibrium implements `sovereign solve`: value-function iteration
// to the default and bond price equilibrium.
package equilibrium

import (
	"context"
	"fmt"

	"github.com/spf13/cobra"

	"github.com/ucfbrd/sovereign-risk-disaster/bond"
	"github.com/ucfbrd/sovereign-risk-disaster/cmd/sovereign/internal/cli"
	"github.com/ucfbrd/sovereign-risk-disaster/config"
	"github.com/ucfbrd/sovereign-risk-disaster/model"
	"github.com/ucfbrd/sovereign-risk-disaster/solver"
)

// Output is the JSON written to stdout. Spread cells are null where the
// price is zero.
type Output struct {
	RunID      string  `json:"run_id"`
	Converged  bool    `json:"converged"`
	Iterations int     `json:"iterations"`
	Distance   float64 `json:"distance"`

	Bonds  []float64 `json:"bonds"`
	Income []float64 `json:"income"`

	Value         [][]float64  `json:"value"`
	DefaultValue  []float64    `json:"default_value"`
	Policy        [][]int      `json:"policy"`
	DefaultStates [][]float64  `json:"default_states"`
	DefaultProb   [][]float64  `json:"default_prob"`
	Prices        [][]float64  `json:"prices"`
	Spreads       [][]*float64 `json:"spreads"`

	Fit *cli.Fit `json:"fit,omitempty"`
}

// Solve loads the model described by cfg and solves it. Non-convergence is
// reported through Solution.Converged, not as an error.
func Solve(ctx context.Context, env *cli.Env, cfg *config.Config) (*model.Params, *solver.Solution, *cli.Fit, error) {
	p, fit, err := env.Model(ctx, cfg)
	if err != nil {
		return nil, nil, nil, err
	}
	sol, err := solver.Solve(p, cfg.SolverOptions(env.Logger))
	if err != nil {
		return nil, nil, nil, err
	}
	return p, sol, fit, nil
}

// Command returns the cobra command bound to env.
func Command(env *cli.Env) *cobra.Command {
	var (
		workers int
		strict  bool
	)
	cmd := &cobra.Command{
		Use:   "solve",
		Short: "Solve for value functions, default sets and bond prices",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			cfg, err := env.LoadConfig()
			if err != nil {
				return env.Fail(err)
			}
			if workers > 0 {
				cfg.Solver.Workers = workers
			}
			p, sol, fit, err := Solve(cmd.Context(), env, cfg)
			if err != nil {
				return env.Fail(err)
			}
			if strict && !sol.Converged {
				return env.Fail(fmt.Errorf("solve: %w", sol.Err()))
			}
			return cli.WriteJSON(env.Stdout, NewOutput(env.RunID, p, sol, fit))
		},
	}
	cmd.Flags().IntVar(&workers, "workers", 0, "Goroutines per Bellman sweep (overrides config)")
	cmd.Flags().BoolVar(&strict, "strict", false, "Fail when the iteration cap is reached")
	return cmd
}

// NewOutput flattens a solution for JSON encoding.
func NewOutput(runID string, p *model.Params, sol *solver.Solution, fit *cli.Fit) Output {
	spreads := bond.SpreadSchedule(sol.Q, p.R())
	ny, nB := spreads.Dims()
	sp := make([][]*float64, ny)
	for i := range sp {
		sp[i] = make([]*float64, nB)
		for j := range sp[i] {
			sp[i][j] = cli.Finite(spreads.At(i, j))
		}
	}
	return Output{
		RunID:         runID,
		Converged:     sol.Converged,
		Iterations:    sol.Iterations,
		Distance:      sol.Distance,
		Bonds:         p.B(),
		Income:        p.Y(),
		Value:         cli.Rows(sol.V),
		DefaultValue:  sol.Vd.RawVector().Data,
		Policy:        sol.Policy,
		DefaultStates: cli.Rows(sol.DefaultStates),
		DefaultProb:   cli.Rows(sol.DefaultProb),
		Prices:        cli.Rows(sol.Q),
		Spreads:       sp,
		Fit:           fit,
	}
}
