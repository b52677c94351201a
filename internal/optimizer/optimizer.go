// Package optimizer implements the grid sweep over indicator presets,
// composite scoring, and acceptance gate. The worker pool is built on
// golang.org/x/sync/errgroup: each preset's backtest owns its own
// indicator/TPSL/trade state, so bounded fan-out is safe, and results
// are reduced in fixed preset-index order regardless of completion
// order.
package optimizer

import (
	"context"
	"runtime"
	"sort"

	"golang.org/x/sync/errgroup"

	"github.com/lucidquant/velas-engine/internal/backtest"
	"github.com/lucidquant/velas-engine/internal/candle"
	"github.com/lucidquant/velas-engine/internal/preset"
	"github.com/lucidquant/velas-engine/internal/stats"
	"github.com/lucidquant/velas-engine/internal/telemetry"
	"github.com/lucidquant/velas-engine/internal/verr"
)

// Config controls the sweep, validity predicate, and composite-score
// weights (§4.9).
type Config struct {
	MinTrades        int
	MinWinRateTP1    float64
	MinSharpe        float64
	MaxSharpe        float64
	MinProfitFactor  float64
	MaxDrawdown      float64

	WeightSharpe      float64
	WeightProfitFactor float64
	WeightWinRateTP1   float64
	WeightDrawdown     float64

	MaxWorkers     int
	PresetIndices  []int // nil => all 60
}

// DefaultConfig mirrors optimizer.py's OptimizationConfig defaults.
func DefaultConfig() Config {
	workers := runtime.NumCPU() - 1
	if workers < 1 {
		workers = 1
	}
	return Config{
		MinTrades: 20, MinWinRateTP1: 65.0, MinSharpe: 1.2, MaxSharpe: 2.5,
		MinProfitFactor: 1.4, MaxDrawdown: 15.0,
		WeightSharpe: 0.30, WeightProfitFactor: 0.25, WeightWinRateTP1: 0.25, WeightDrawdown: 0.20,
		MaxWorkers: workers,
	}
}

// Result is one preset's outcome (§3 OptimizationResult).
type Result struct {
	PresetIndex    int
	Backtest       backtest.Result
	Metrics        stats.Metrics
	IsValid        bool
	CompositeScore float64
	InvalidReasons []string
}

// GridSearchResult is the full sweep output (§4.9).
type GridSearchResult struct {
	AllResults   []Result
	ValidResults []Result
	BestResult   *Result
}

// BuildConfig is the function that turns a preset index into a full
// backtest.Config; callers supply this so the optimizer stays agnostic
// to symbol/timeframe/TPSL wiring.
type BuildConfig func(presetIndex int) backtest.Config

// Run executes one backtest per preset index in cfg.PresetIndices
// (default: all 60), validates and scores each, and reduces
// deterministically by preset index.
func Run(ctx context.Context, series candle.Series, cfg Config, build BuildConfig) (GridSearchResult, error) {
	indices := cfg.PresetIndices
	if indices == nil {
		indices = make([]int, preset.Count)
		for i := range indices {
			indices[i] = i
		}
	}

	results := make([]Result, len(indices))
	g, gctx := errgroup.WithContext(ctx)
	sem := make(chan struct{}, maxInt(cfg.MaxWorkers, 1))

	for pos, idx := range indices {
		pos, idx := pos, idx
		g.Go(func() error {
			select {
			case sem <- struct{}{}:
			case <-gctx.Done():
				return gctx.Err()
			}
			defer func() { <-sem }()

			btCfg := build(idx)
			res, err := backtest.Run(series, btCfg)
			if err != nil {
				results[pos] = Result{PresetIndex: idx, Metrics: stats.Metrics{}, IsValid: false, InvalidReasons: []string{err.Error()}}
				return nil
			}
			valid, reasons := validate(res.Metrics, cfg)
			score := 0.0
			if valid {
				score = compositeScore(res.Metrics, cfg)
			}
			results[pos] = Result{
				PresetIndex: idx, Backtest: res, Metrics: res.Metrics, IsValid: valid, CompositeScore: score, InvalidReasons: reasons,
			}
			return nil
		})
	}
	if err := g.Wait(); err != nil {
		return GridSearchResult{}, verr.NewExternalFailure("optimizer", "run_grid_search", err)
	}

	sort.SliceStable(results, func(i, j int) bool { return results[i].PresetIndex < results[j].PresetIndex })

	var valid []Result
	var best *Result
	for i := range results {
		if results[i].IsValid {
			valid = append(valid, results[i])
			if best == nil || results[i].CompositeScore > best.CompositeScore {
				best = &results[i]
			}
		}
	}
	telemetry.OptimizerRuns.Inc()
	telemetry.OptimizerValidPresets.Set(float64(len(valid)))

	return GridSearchResult{AllResults: results, ValidResults: valid, BestResult: best}, nil
}

func validate(m stats.Metrics, cfg Config) (bool, []string) {
	var reasons []string
	if m.TotalTrades < cfg.MinTrades {
		reasons = append(reasons, "min_trades")
	}
	if m.WinRateByTP[0] < cfg.MinWinRateTP1 {
		reasons = append(reasons, "win_rate_tp1")
	}
	if m.SharpeRatio < cfg.MinSharpe {
		reasons = append(reasons, "min_sharpe")
	}
	if m.SharpeRatio > cfg.MaxSharpe {
		reasons = append(reasons, "max_sharpe")
	}
	if m.ProfitFactor < cfg.MinProfitFactor {
		reasons = append(reasons, "min_profit_factor")
	}
	if absFloat(m.MaxDrawdownPercent) > cfg.MaxDrawdown {
		reasons = append(reasons, "max_drawdown")
	}
	return len(reasons) == 0, reasons
}

// compositeScore computes the weighted, clamped composite score (§4.9),
// reused verbatim by internal/walkforward and internal/robustness.
func compositeScore(m stats.Metrics, cfg Config) float64 {
	sSharpe := clamp((m.SharpeRatio-1.0)/2.0*100, 0, 100)
	sPF := clamp((m.ProfitFactor-1.0)/2.0*100, 0, 100)
	sWR := clamp((m.WinRateByTP[0]-50)/40*100, 0, 100)
	sDD := clamp((20-absFloat(m.MaxDrawdownPercent))/20*100, 0, 100)
	return cfg.WeightSharpe*sSharpe + cfg.WeightProfitFactor*sPF + cfg.WeightWinRateTP1*sWR + cfg.WeightDrawdown*sDD
}

// CompositeScore exposes the scoring formula for reuse by
// internal/walkforward (test-window scoring) and internal/robustness
// (neighbor scoring), both of which apply the identical formula per
// §4.9/§4.10/§4.11.
func CompositeScore(m stats.Metrics, cfg Config) float64 { return compositeScore(m, cfg) }

// Validate exposes the acceptance predicate outside this package.
func Validate(m stats.Metrics, cfg Config) (bool, []string) { return validate(m, cfg) }

func clamp(v, lo, hi float64) float64 {
	if v < lo {
		return lo
	}
	if v > hi {
		return hi
	}
	return v
}

func absFloat(f float64) float64 {
	if f < 0 {
		return -f
	}
	return f
}

func maxInt(a, b int) int {
	if a > b {
		return a
	}
	return b
}
