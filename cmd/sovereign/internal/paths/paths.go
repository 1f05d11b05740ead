// Package paths implements `sovereign simulate`: solve the configured model
// and replay it along one random income path.
package paths

import (
	"github.com/spf13/cobra"
	"go.uber.org/zap"

	"github.com/ucfbrd/sovereign-risk-disaster/cmd/sovereign/internal/cli"
	"github.com/ucfbrd/sovereign-risk-disaster/cmd/sovereign/internal/equilibrium"
	"github.com/ucfbrd/sovereign-risk-disaster/simulate"
)

// Output is the JSON written to stdout.
type Output struct {
	RunID      string `json:"run_id"`
	Converged  bool   `json:"converged"`
	Iterations int    `json:"iterations"`
	Seed       uint64 `json:"seed"`

	Summary Summary `json:"summary"`

	Y       []float64 `json:"y"`
	B       []float64 `json:"b"`
	Q       []float64 `json:"q"`
	Default []bool    `json:"default"`

	Fit *cli.Fit `json:"fit,omitempty"`
}

// Summary is simulate.Summary with undefined moments encoded as null.
type Summary struct {
	Periods          int      `json:"periods"`
	DefaultFrequency float64  `json:"default_frequency"`
	DefaultEpisodes  int      `json:"default_episodes"`
	MeanIncome       float64  `json:"mean_income"`
	MeanDebt         float64  `json:"mean_debt"`
	StdDebt          *float64 `json:"std_debt"`
	MeanSpread       *float64 `json:"mean_spread"`
}

// Command returns the cobra command bound to env.
func Command(env *cli.Env) *cobra.Command {
	var (
		horizon int
		seed    uint64
	)
	cmd := &cobra.Command{
		Use:   "simulate",
		Short: "Solve the model and simulate income, debt and default",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			cfg, err := env.LoadConfig()
			if err != nil {
				return env.Fail(err)
			}
			if horizon > 0 {
				cfg.Simulation.Horizon = horizon
			}
			if cmd.Flags().Changed("seed") {
				cfg.Simulation.Seed = seed
			}

			p, sol, fit, err := equilibrium.Solve(cmd.Context(), env, cfg)
			if err != nil {
				return env.Fail(err)
			}
			if !sol.Converged {
				env.Logger.Warn("simulating an unconverged solution", zap.Float64("distance", sol.Distance))
			}

			in := simulate.InputFromSolution(sol, cfg.Simulation.Horizon, cfg.Simulation.Seed)
			in.Logger = env.Logger
			path, err := simulate.Run(p, in)
			if err != nil {
				return env.Fail(err)
			}

			s := simulate.Summarize(path, p.R())
			return cli.WriteJSON(env.Stdout, Output{
				RunID:      env.RunID,
				Converged:  sol.Converged,
				Iterations: sol.Iterations,
				Seed:       cfg.Simulation.Seed,
				Summary: Summary{
					Periods:          s.Periods,
					DefaultFrequency: s.DefaultFrequency,
					DefaultEpisodes:  s.DefaultEpisodes,
					MeanIncome:       s.MeanIncome,
					MeanDebt:         s.MeanDebt,
					StdDebt:          cli.Finite(s.StdDebt),
					MeanSpread:       cli.Finite(s.MeanSpread),
				},
				Y:       path.Y,
				B:       path.B,
				Q:       path.Q,
				Default: path.Default,
				Fit:     fit,
			})
		},
	}
	cmd.Flags().IntVar(&horizon, "horizon", 0, "Number of simulated periods (overrides config)")
	cmd.Flags().Uint64Var(&seed, "seed", 0, "Random seed (overrides config)")
	return cmd
}
