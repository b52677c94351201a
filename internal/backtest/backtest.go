// Package backtest implements the single-pass bar walk that drives the
// signal/trade state machines over an OHLCV series and collects trades,
// metrics, and an equity curve. A single run is a pure function of its
// inputs.
package backtest

import (
	"time"

	"github.com/lucidquant/velas-engine/internal/candle"
	"github.com/lucidquant/velas-engine/internal/indicator"
	"github.com/lucidquant/velas-engine/internal/signal"
	"github.com/lucidquant/velas-engine/internal/stats"
	"github.com/lucidquant/velas-engine/internal/telemetry"
	"github.com/lucidquant/velas-engine/internal/tpsl"
	"github.com/lucidquant/velas-engine/internal/trade"
	"github.com/lucidquant/velas-engine/internal/verr"
	"github.com/lucidquant/velas-engine/internal/volatility"
)

// Config is one backtest run's full parameterization (§4.7 inputs).
type Config struct {
	Symbol      string
	Timeframe   string
	Preset      indicator.Preset
	TPSL        tpsl.Config
	Filters     signal.FilterConfig
	Volatility  volatility.Config

	InitialCapital       float64
	CascadeStop          bool
	CloseOnOppositeSignal bool

	StartDate time.Time
	EndDate   time.Time
}

// DefaultConfig returns a Config with the reference defaults wired in,
// for a given symbol/timeframe/preset.
func DefaultConfig(symbol, timeframe string, preset indicator.Preset) Config {
	return Config{
		Symbol: symbol, Timeframe: timeframe, Preset: preset,
		TPSL: tpsl.DefaultConfig(), Filters: signal.DefaultFilterConfig(),
		Volatility: volatility.DefaultConfig(),
		InitialCapital: 10000.0, CascadeStop: true, CloseOnOppositeSignal: true,
	}
}

// Result is the full output of a run (§3 BacktestResult).
type Result struct {
	Config          Config
	StartDate       time.Time
	EndDate         time.Time
	TotalBars       int
	Trades          []*trade.Trade
	Metrics         stats.Metrics
	EquityCurve     []stats.EquityPoint
	ExecutionTime   time.Duration
	SignalsGenerated int
}

func (r Result) ClosedTrades() []*trade.Trade {
	out := make([]*trade.Trade, 0, len(r.Trades))
	for _, t := range r.Trades {
		if t.Result != nil {
			out = append(out, t)
		}
	}
	return out
}

// Run executes one backtest (§4.7 steps 1-5). series must already carry
// required OHLCV columns (validated by the caller's loader); Run itself
// validates only bar-count sufficiency via C1.
func Run(series candle.Series, cfg Config) (Result, error) {
	start := time.Now()
	sliced := series.Slice(cfg.StartDate, cfg.EndDate)

	bars, err := indicator.Compute(sliced, cfg.Preset)
	if err != nil {
		return Result{}, err
	}
	if len(sliced) == 0 {
		return Result{}, verr.NewInvalidInput("series", "empty after date-range slice")
	}

	filters := signal.PrepareFilters(sliced, cfg.Filters)

	atrSeries := make([]float64, len(bars))
	for i, b := range bars {
		atrSeries[i] = b.ATR
	}

	var trades []*trade.Trade
	var current *trade.Trade
	signalsGenerated := 0

	for i, c := range sliced {
		b := bars[i]

		if current != nil {
			current.CheckBar(c)
			if current.Status == trade.Open && cfg.CloseOnOppositeSignal {
				opposite := false
				if current.Direction == tpsl.Long {
					opposite = !isNaN(b.ShortTrigger) && c.Low < b.ShortTrigger
				} else {
					opposite = !isNaN(b.LongTrigger) && c.High > b.LongTrigger
				}
				if opposite {
					current.CloseBySignal(c.Close, c.Time)
				}
			}
		}

		if current == nil || current.Status != trade.Open {
			s, ok := signal.Evaluate(sliced, bars, i, tpsl.Long, cfg.Symbol, cfg.Timeframe, cfg.Preset.Index, cfg.Filters, filters)
			if !ok {
				s, ok = signal.Evaluate(sliced, bars, i, tpsl.Short, cfg.Symbol, cfg.Timeframe, cfg.Preset.Index, cfg.Filters, filters)
			}
			if ok {
				signalsGenerated++
				volResult := volatility.Classify(atrSeries, i, cfg.Volatility)
				telemetry.SetVolatilityRegime(volResult.Regime.String(), volatilityRegimeNames)
				tpMult, slMult := cfg.Volatility.Multipliers(volResult.Regime)
				scaledTPSL := cfg.TPSL
				for k := range scaledTPSL.TPPercent {
					scaledTPSL.TPPercent[k] *= tpMult
				}
				scaledTPSL.SLPercent *= slMult

				atrRatio, stdevRatio := 0.0, 0.0
				if c.Close != 0 {
					if !isNaN(b.ATR) {
						atrRatio = b.ATR / c.Close
					}
					if !isNaN(b.Stdev) {
						stdevRatio = b.Stdev / c.Close
					}
				}
				levels := tpsl.CalculateLevels(scaledTPSL, s.EntryPrice, s.Direction, atrRatio, stdevRatio)
				current = trade.Open(cfg.Symbol, cfg.Timeframe, s.Direction, s.EntryPrice, s.Timestamp, cfg.Preset.Index, levels, scaledTPSL)
				trades = append(trades, current)
			}
		}
	}

	if current != nil && current.Status == trade.Open {
		last := sliced[len(sliced)-1]
		current.CloseManual(last.Close, last.Time)
	}

	metrics := stats.CalculateAll(trades, cfg.InitialCapital)
	_, equity, _ := equityCurveFrom(trades, cfg.InitialCapital)

	telemetry.BacktestRuns.Inc()
	elapsed := time.Since(start)
	telemetry.BacktestDurationSeconds.Observe(elapsed.Seconds())

	return Result{
		Config: cfg, StartDate: sliced[0].Time, EndDate: sliced[len(sliced)-1].Time,
		TotalBars: len(sliced), Trades: trades, Metrics: metrics, EquityCurve: equity,
		ExecutionTime: elapsed, SignalsGenerated: signalsGenerated,
	}, nil
}

func equityCurveFrom(trades []*trade.Trade, initialCapital float64) (stats.Metrics, []stats.EquityPoint, error) {
	m := stats.CalculateAll(trades, initialCapital)
	// Returns a fresh CalculateAll over trades alongside the per-trade
	// equity points; Run computes its own Metrics and keeps only the
	// points from this call.
	return m, equityPoints(trades, initialCapital), nil
}

func equityPoints(trades []*trade.Trade, initialCapital float64) []stats.EquityPoint {
	closed := make([]*trade.Trade, 0, len(trades))
	for _, t := range trades {
		if t.Result != nil {
			closed = append(closed, t)
		}
	}
	equity := initialCapital
	peak := initialCapital
	out := make([]stats.EquityPoint, 0, len(closed)+1)
	out = append(out, stats.EquityPoint{Index: 0, Equity: equity})
	for i, t := range closed {
		equity *= 1 + t.Result.TotalPnLPercent/100
		if equity > peak {
			peak = equity
		}
		dd := 0.0
		if peak != 0 {
			dd = (equity - peak) / peak * 100
		}
		out = append(out, stats.EquityPoint{Index: i + 1, Equity: equity, DrawdownPercent: dd})
	}
	return out
}

func isNaN(f float64) bool { return f != f }

var volatilityRegimeNames = []string{volatility.Low.String(), volatility.Normal.String(), volatility.High.String()}
