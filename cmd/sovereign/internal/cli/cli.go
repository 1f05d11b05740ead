// Package cli holds what the sovereign subcommands share: streams, logging,
// configuration and JSON output.
package cli

import (
	"context"
	"encoding/json"
	"fmt"
	"io"
	"math"
	"strings"

	"github.com/google/uuid"
	"go.uber.org/zap"
	"go.uber.org/zap/zapcore"
	"gonum.org/v1/gonum/mat"

	"github.com/ucfbrd/sovereign-risk-disaster/config"
	"github.com/ucfbrd/sovereign-risk-disaster/income"
	"github.com/ucfbrd/sovereign-risk-disaster/markov"
	"github.com/ucfbrd/sovereign-risk-disaster/model"
)

// Env is the per-invocation state handed to every subcommand.
type Env struct {
	Stdin  io.Reader
	Stdout io.Writer
	Stderr io.Writer

	// ConfigPath is the --config flag. Empty falls back to SOVEREIGN_CONFIG
	// and then to the built-in defaults.
	ConfigPath string
	Verbose    bool

	RunID  string
	Logger *zap.Logger
}

// Setup assigns a run ID and builds the logger. It runs before each command.
func (e *Env) Setup() {
	e.RunID = uuid.NewString()
	e.Logger = NewLogger(e.Stderr, e.Verbose).With(zap.String("run_id", e.RunID))
}

// Close flushes the logger.
func (e *Env) Close() {
	if e.Logger != nil {
		_ = e.Logger.Sync()
	}
}

// NewLogger writes JSON records to w at Info, or Debug when verbose.
func NewLogger(w io.Writer, verbose bool) *zap.Logger {
	level := zapcore.InfoLevel
	if verbose {
		level = zapcore.DebugLevel
	}
	enc := zapcore.NewJSONEncoder(zap.NewProductionEncoderConfig())
	return zap.New(zapcore.NewCore(enc, zapcore.AddSync(w), level))
}

// LoadConfig resolves the config path and loads it.
func (e *Env) LoadConfig() (*config.Config, error) {
	path := strings.TrimSpace(e.ConfigPath)
	if path == "" {
		path = config.PathFromEnv()
	}
	cfg, err := config.Load(path)
	if err != nil {
		return nil, err
	}
	if path != "" {
		e.Logger.Debug("config loaded", zap.String("path", path))
	}
	return cfg, nil
}

// Fit is the AR(1) estimate reported when the config names an income series.
type Fit struct {
	Country string  `json:"country"`
	Rho     float64 `json:"rho"`
	Sigma   float64 `json:"sigma"`
	Trend   float64 `json:"trend"`
	N       int     `json:"observations"`
}

// Chain discretizes income from cfg. When cfg names an income series, rho
// and sigma are replaced in cfg by the fitted values first.
func (e *Env) Chain(ctx context.Context, cfg *config.Config) (*markov.Chain, *Fit, error) {
	var fit *Fit
	if cfg.Income.Enabled() {
		src := income.FileSource{Path: cfg.Income.File}
		series, err := src.Series(ctx, cfg.Income.Country)
		if err != nil {
			return nil, nil, err
		}
		ar, err := income.EstimateAR1(series)
		if err != nil {
			return nil, nil, err
		}
		cfg.Chain.Rho, cfg.Chain.Sigma = ar.Rho, ar.Sigma
		fit = &Fit{Country: cfg.Income.Country, Rho: ar.Rho, Sigma: ar.Sigma, Trend: ar.Trend, N: ar.N}
		e.Logger.Info("income process estimated",
			zap.String("country", fit.Country),
			zap.Float64("rho", ar.Rho),
			zap.Float64("sigma", ar.Sigma),
			zap.Int("observations", ar.N))
	}
	chain, err := cfg.Discretize()
	if err != nil {
		return nil, nil, err
	}
	return chain, fit, nil
}

// Model discretizes income and assembles the model described by cfg.
func (e *Env) Model(ctx context.Context, cfg *config.Config) (*model.Params, *Fit, error) {
	chain, fit, err := e.Chain(ctx, cfg)
	if err != nil {
		return nil, nil, err
	}
	p, err := cfg.BuildWith(chain)
	if err != nil {
		return nil, nil, err
	}
	return p, fit, nil
}

// WriteJSON writes v as one JSON line to w.
func WriteJSON(w io.Writer, v any) error {
	b, err := json.Marshal(v)
	if err != nil {
		return err
	}
	_, err = fmt.Fprintln(w, string(b))
	return err
}

type errorOutput struct {
	RunID string `json:"run_id,omitempty"`
	Error string `json:"error"`
}

// Fail writes err as a JSON error object to stdout and returns it.
func (e *Env) Fail(err error) error {
	_ = WriteJSON(e.Stdout, errorOutput{RunID: e.RunID, Error: err.Error()})
	if e.Logger != nil {
		e.Logger.Error("command failed", zap.Error(err))
	}
	return err
}

// Finite returns nil for NaN or ±Inf so the value encodes as JSON null.
func Finite(v float64) *float64 {
	if math.IsNaN(v) || math.IsInf(v, 0) {
		return nil
	}
	return &v
}

// Rows copies m into nested slices, one per row.
func Rows(m mat.Matrix) [][]float64 {
	r, _ := m.Dims()
	out := make([][]float64, r)
	for i := range out {
		out[i] = mat.Row(nil, i, m)
	}
	return out
}
