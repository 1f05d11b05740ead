// Package config holds the run parameters of a discretize, solve and simulate
// pipeline. Values load from YAML; zero fields keep their defaults.
package config

import (
	"errors"
	"fmt"
	"math"
	"os"

	"go.uber.org/zap"
	"gopkg.in/yaml.v3"

	"github.com/ucfbrd/sovereign-risk-disaster/bond"
	"github.com/ucfbrd/sovereign-risk-disaster/markov"
	"github.com/ucfbrd/sovereign-risk-disaster/model"
	"github.com/ucfbrd/sovereign-risk-disaster/solver"
)

// EnvPath names the environment variable holding the default config path.
const EnvPath = "SOVEREIGN_CONFIG"

// ErrInvalidConfig is returned by Validate and by loaders for bad values.
var ErrInvalidConfig = errors.New("config: invalid config")

// Config is the full run configuration.
type Config struct {
	Chain      ChainConfig      `yaml:"chain"`
	Income     IncomeConfig     `yaml:"income"`
	Bonds      BondConfig       `yaml:"bonds"`
	Model      ModelConfig      `yaml:"model"`
	Solver     SolverConfig     `yaml:"solver"`
	Simulation SimulationConfig `yaml:"simulation"`
}

// ChainConfig parameterizes the Tauchen discretization of log income.
type ChainConfig struct {
	// Rho is the persistence of the AR(1) process.
	Rho float64 `yaml:"rho"`

	// Sigma is the conditional standard deviation of the innovation.
	Sigma float64 `yaml:"sigma"`

	// DisasterHazard shifts every state down by h/(1-rho).
	DisasterHazard float64 `yaml:"disaster_hazard"`

	// Span is the number of unconditional standard deviations each side of
	// zero covered by the grid.
	Span float64 `yaml:"span"`

	// States is the number of grid points.
	States int `yaml:"states"`

	// Exponentiate maps the log-income states to income levels.
	Exponentiate bool `yaml:"exponentiate"`
}

// IncomeConfig optionally replaces Rho and Sigma with an AR(1) fit of an
// observed series. Both File and Country must be set to take effect.
type IncomeConfig struct {
	// File is a JSON or CSV observation file.
	File string `yaml:"file"`

	// Country selects the series inside File.
	Country string `yaml:"country"`
}

// Enabled reports whether an income series should be estimated.
func (c IncomeConfig) Enabled() bool {
	return c.File != "" && c.Country != ""
}

// BondConfig is an evenly spaced bond grid.
type BondConfig struct {
	Min    float64 `yaml:"min"`
	Max    float64 `yaml:"max"`
	Points int     `yaml:"points"`
}

// ModelConfig holds the preference and market scalars.
type ModelConfig struct {
	Beta  float64 `yaml:"beta"`
	Gamma float64 `yaml:"gamma"`
	R     float64 `yaml:"r"`

	// Theta is the per-period probability of regaining market access.
	Theta float64 `yaml:"theta"`
}

// SolverConfig mirrors solver.Options.
type SolverConfig struct {
	Tol          float64 `yaml:"tol"`
	MaxIter      int     `yaml:"max_iter"`
	InitialPrice float64 `yaml:"initial_price"`
	Workers      int     `yaml:"workers"`
	LogEvery     int     `yaml:"log_every"`
}

// SimulationConfig controls path simulation.
type SimulationConfig struct {
	Horizon int    `yaml:"horizon"`
	Seed    uint64 `yaml:"seed"`
}

// DefaultConfig provides the calibration used when no file is given.
var DefaultConfig = Config{
	Chain: ChainConfig{
		Rho:            model.DefaultRho,
		Sigma:          model.DefaultEta,
		DisasterHazard: 0.01,
		Span:           3,
		States:         21,
		Exponentiate:   true,
	},
	Bonds: BondConfig{Min: -0.45, Max: 0.45, Points: 51},
	Model: ModelConfig{
		Beta:  model.DefaultBeta,
		Gamma: model.DefaultGamma,
		R:     model.DefaultR,
		Theta: model.DefaultTheta,
	},
	Solver: SolverConfig{
		Tol:          solver.DefaultOptions.Tol,
		MaxIter:      solver.DefaultOptions.MaxIter,
		InitialPrice: solver.DefaultOptions.InitialPrice,
		Workers:      solver.DefaultOptions.Workers,
		LogEvery:     solver.DefaultOptions.LogEvery,
	},
	Simulation: SimulationConfig{Horizon: 250, Seed: 42},
}

// PathFromEnv returns the path named by SOVEREIGN_CONFIG, or "".
func PathFromEnv() string {
	if v, ok := os.LookupEnv(EnvPath); ok {
		return v
	}
	return ""
}

// Load reads and validates the YAML file at path on top of DefaultConfig.
// An empty path yields DefaultConfig.
func Load(path string) (*Config, error) {
	if path == "" {
		cfg := DefaultConfig
		return &cfg, nil
	}
	raw, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("Load: %w", err)
	}
	return Parse(raw)
}

// Parse decodes YAML on top of DefaultConfig and validates the result.
func Parse(raw []byte) (*Config, error) {
	cfg := DefaultConfig
	if err := yaml.Unmarshal(raw, &cfg); err != nil {
		return nil, fmt.Errorf("Parse: %w", err)
	}
	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	return &cfg, nil
}

// Validate checks every section. Model scalars are checked again by model.New.
func (c *Config) Validate() error {
	ch := c.Chain
	switch {
	case !(ch.Rho > -1 && ch.Rho < 1):
		return fmt.Errorf("Validate: chain.rho must lie in (-1, 1), got %g: %w", ch.Rho, ErrInvalidConfig)
	case !(ch.Sigma > 0) || math.IsInf(ch.Sigma, 0):
		return fmt.Errorf("Validate: chain.sigma must be positive, got %g: %w", ch.Sigma, ErrInvalidConfig)
	case !(ch.DisasterHazard >= 0 && ch.DisasterHazard <= 1):
		return fmt.Errorf("Validate: chain.disaster_hazard must lie in [0, 1], got %g: %w", ch.DisasterHazard, ErrInvalidConfig)
	case !(ch.Span >= 1) || math.IsInf(ch.Span, 0):
		return fmt.Errorf("Validate: chain.span must be at least 1, got %g: %w", ch.Span, ErrInvalidConfig)
	case ch.States < 2:
		return fmt.Errorf("Validate: chain.states must be at least 2, got %d: %w", ch.States, ErrInvalidConfig)
	}

	if (c.Income.File == "") != (c.Income.Country == "") {
		return fmt.Errorf("Validate: income.file and income.country must be set together: %w", ErrInvalidConfig)
	}

	if c.Bonds.Points < 2 || !(c.Bonds.Min < c.Bonds.Max) {
		return fmt.Errorf("Validate: bonds need min < max and at least 2 points, got [%g, %g] x %d: %w",
			c.Bonds.Min, c.Bonds.Max, c.Bonds.Points, ErrInvalidConfig)
	}

	m := c.Model
	switch {
	case !(m.Beta > 0 && m.Beta < 1):
		return fmt.Errorf("Validate: model.beta must lie in (0, 1), got %g: %w", m.Beta, ErrInvalidConfig)
	case !(m.Gamma > 0) || m.Gamma == 1:
		return fmt.Errorf("Validate: model.gamma must be positive and not 1, got %g: %w", m.Gamma, ErrInvalidConfig)
	case !(m.Theta > 0 && m.Theta <= 1):
		return fmt.Errorf("Validate: model.theta must lie in (0, 1], got %g: %w", m.Theta, ErrInvalidConfig)
	case !(m.R > -1):
		return fmt.Errorf("Validate: model.r must exceed -1, got %g: %w", m.R, ErrInvalidConfig)
	}

	s := c.Solver
	switch {
	case !(s.Tol > 0):
		return fmt.Errorf("Validate: solver.tol must be positive, got %g: %w", s.Tol, ErrInvalidConfig)
	case s.MaxIter < 1:
		return fmt.Errorf("Validate: solver.max_iter must be positive, got %d: %w", s.MaxIter, ErrInvalidConfig)
	case !(s.InitialPrice > 0 && s.InitialPrice <= 1):
		return fmt.Errorf("Validate: solver.initial_price must lie in (0, 1], got %g: %w", s.InitialPrice, ErrInvalidConfig)
	case s.Workers < 1:
		return fmt.Errorf("Validate: solver.workers must be positive, got %d: %w", s.Workers, ErrInvalidConfig)
	case s.LogEvery < 0:
		return fmt.Errorf("Validate: solver.log_every must not be negative, got %d: %w", s.LogEvery, ErrInvalidConfig)
	}

	if c.Simulation.Horizon < 1 {
		return fmt.Errorf("Validate: simulation.horizon must be positive, got %d: %w", c.Simulation.Horizon, ErrInvalidConfig)
	}
	return nil
}

// SolverOptions maps the solver section onto solver.Options.
func (c *Config) SolverOptions(logger *zap.Logger) solver.Options {
	return solver.Options{
		Tol:          c.Solver.Tol,
		MaxIter:      c.Solver.MaxIter,
		InitialPrice: c.Solver.InitialPrice,
		Workers:      c.Solver.Workers,
		LogEvery:     c.Solver.LogEvery,
		Logger:       logger,
	}
}

// Discretize builds the income chain from the chain section.
func (c *Config) Discretize() (*markov.Chain, error) {
	ch := c.Chain
	chain, err := markov.Tauchen(ch.Rho, ch.Sigma, ch.DisasterHazard, ch.Span, ch.States)
	if err != nil {
		return nil, fmt.Errorf("Discretize: %w", err)
	}
	if ch.Exponentiate {
		chain = chain.Exp()
	}
	return chain, nil
}

// Build discretizes income and assembles the model on the configured grid.
func (c *Config) Build() (*model.Params, error) {
	chain, err := c.Discretize()
	if err != nil {
		return nil, fmt.Errorf("Build: %w", err)
	}
	return c.BuildWith(chain)
}

// BuildWith assembles the model on the configured grid from an existing chain.
func (c *Config) BuildWith(chain *markov.Chain) (*model.Params, error) {
	b, err := bond.NewGrid(c.Bonds.Min, c.Bonds.Max, c.Bonds.Points)
	if err != nil {
		return nil, fmt.Errorf("Build: %w", err)
	}
	p, err := model.New(model.Input{
		B:     b,
		P:     chain.P(),
		Y:     chain.States(),
		Beta:  c.Model.Beta,
		Gamma: c.Model.Gamma,
		R:     c.Model.R,
		Rho:   c.Chain.Rho,
		Eta:   c.Chain.Sigma,
		Theta: c.Model.Theta,
	})
	if err != nil {
		return nil, fmt.Errorf("Build: %w", err)
	}
	return p, nil
}
