// Package discretize implements `sovereign discretize`: print the income
// chain of the configured model.
package discretize

import (
	"github.com/spf13/cobra"
	"go.uber.org/zap"

	"github.com/ucfbrd/sovereign-risk-disaster/cmd/sovereign/internal/cli"
)

// Output is the JSON written to stdout.
type Output struct {
	RunID          string      `json:"run_id"`
	Rho            float64     `json:"rho"`
	Sigma          float64     `json:"sigma"`
	DisasterHazard float64     `json:"disaster_hazard"`
	Exponentiated  bool        `json:"exponentiated"`
	States         []float64   `json:"states"`
	Transition     [][]float64 `json:"transition"`
	Fit            *cli.Fit    `json:"fit,omitempty"`
}

// Command returns the cobra command bound to env.
func Command(env *cli.Env) *cobra.Command {
	var states int
	cmd := &cobra.Command{
		Use:   "discretize",
		Short: "Print the Tauchen income chain with the disaster shift",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			cfg, err := env.LoadConfig()
			if err != nil {
				return env.Fail(err)
			}
			if states > 0 {
				cfg.Chain.States = states
			}
			chain, fit, err := env.Chain(cmd.Context(), cfg)
			if err != nil {
				return env.Fail(err)
			}
			env.Logger.Debug("chain discretized", zap.Int("states", chain.N()))

			return cli.WriteJSON(env.Stdout, Output{
				RunID:          env.RunID,
				Rho:            cfg.Chain.Rho,
				Sigma:          cfg.Chain.Sigma,
				DisasterHazard: cfg.Chain.DisasterHazard,
				Exponentiated:  cfg.Chain.Exponentiate,
				States:         chain.States(),
				Transition:     cli.Rows(chain.P()),
				Fit:            fit,
			})
		},
	}
	cmd.Flags().IntVar(&states, "states", 0, "Number of income states (overrides config)")
	return cmd
}
