package main

import (
	"fmt"
	"log"

	"github.com/ucfbrd/sovereign-risk-disaster/bond"
	"github.com/ucfbrd/sovereign-risk-disaster/config"
	"github.com/ucfbrd/sovereign-risk-disaster/simulate"
	"github.com/ucfbrd/sovereign-risk-disaster/solver"
)

func main() {
	cfg := config.DefaultConfig

	p, err := cfg.Build()
	if err != nil {
		log.Fatal(err)
	}

	sol, err := solver.Solve(p, cfg.SolverOptions(nil))
	if err != nil {
		log.Fatal(err)
	}
	fmt.Printf("Converged: %v after %d iterations (distance %.2e)\n", sol.Converged, sol.Iterations, sol.Distance)

	zero := bond.ZeroIndex(p.B())
	mid := p.NY() / 2
	fmt.Printf("Price of zero issuance at median income: %.6f\n", sol.Q.At(mid, zero))
	if s, err := bond.Spread(sol.Q.At(mid, 0), p.R()); err == nil {
		fmt.Printf("Spread at maximum debt, median income: %.4f\n", s)
	}

	path, err := simulate.Run(p, simulate.InputFromSolution(sol, cfg.Simulation.Horizon, cfg.Simulation.Seed))
	if err != nil {
		log.Fatal(err)
	}
	s := simulate.Summarize(path, p.R())
	fmt.Printf("Periods: %d\n", s.Periods)
	fmt.Printf("Default frequency: %.4f (%d episodes)\n", s.DefaultFrequency, s.DefaultEpisodes)
	fmt.Printf("Mean debt: %.4f, std: %.4f\n", s.MeanDebt, s.StdDebt)
	fmt.Printf("Mean spread: %.4f\n", s.MeanSpread)
}
