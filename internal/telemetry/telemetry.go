// Package telemetry exposes Prometheus metrics for observability:
// package-level vectors registered in init(), with small setter and
// incrementer helpers, served by the HTTP handler cmd/velasd wires at
// /metrics.
package telemetry

import "github.com/prometheus/client_golang/prometheus"

var (
	SignalsGenerated = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Name: "velas_signals_generated_total",
			Help: "Signals emitted by the generator, by direction and strength.",
		},
		[]string{"direction", "strength"},
	)

	TradesOpened = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Name: "velas_trades_opened_total",
			Help: "Trades opened, by direction.",
		},
		[]string{"direction"},
	)

	TradesClosed = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Name: "velas_trades_closed_total",
			Help: "Trades closed, by terminal status.",
		},
		[]string{"status"},
	)

	TPHits = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Name: "velas_tp_hits_total",
			Help: "Take-profit levels hit, by index.",
		},
		[]string{"index"},
	)

	SLMoves = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Name: "velas_sl_moves_total",
			Help: "Stop-loss adjustments, by reason (cascade|breakeven).",
		},
		[]string{"reason"},
	)

	Equity = prometheus.NewGauge(
		prometheus.GaugeOpts{
			Name: "velas_equity_usd",
			Help: "Current equity in USD, rebased from the running PnL curve.",
		},
	)

	VolatilityRegime = prometheus.NewGaugeVec(
		prometheus.GaugeOpts{
			Name: "velas_volatility_regime",
			Help: "Current volatility regime indicator (1 for the active regime, 0 otherwise).",
		},
		[]string{"regime"},
	)

	BacktestRuns = prometheus.NewCounter(
		prometheus.CounterOpts{
			Name: "velas_backtest_runs_total",
			Help: "Number of backtest runs executed.",
		},
	)

	BacktestDurationSeconds = prometheus.NewHistogram(
		prometheus.HistogramOpts{
			Name: "velas_backtest_duration_seconds",
			Help: "Wall-clock duration of a single backtest run.",
		},
	)

	OptimizerRuns = prometheus.NewCounter(
		prometheus.CounterOpts{
			Name: "velas_optimizer_runs_total",
			Help: "Number of grid-search optimizer runs executed.",
		},
	)

	OptimizerValidPresets = prometheus.NewGauge(
		prometheus.GaugeOpts{
			Name: "velas_optimizer_valid_presets",
			Help: "Count of presets passing acceptance thresholds in the most recent optimizer run.",
		},
	)

	WalkForwardRuns = prometheus.NewCounter(
		prometheus.CounterOpts{
			Name: "velas_walkforward_runs_total",
			Help: "Number of walk-forward analyses executed.",
		},
	)

	WalkForwardEfficiency = prometheus.NewGauge(
		prometheus.GaugeOpts{
			Name: "velas_walkforward_avg_efficiency",
			Help: "Average out-of-sample efficiency from the most recent walk-forward run.",
		},
	)

	RobustnessScore = prometheus.NewGauge(
		prometheus.GaugeOpts{
			Name: "velas_robustness_score",
			Help: "Robustness score (0..100) from the most recent robustness check.",
		},
	)
)

func init() {
	prometheus.MustRegister(
		SignalsGenerated, TradesOpened, TradesClosed, TPHits, SLMoves,
		Equity, VolatilityRegime,
		BacktestRuns, BacktestDurationSeconds,
		OptimizerRuns, OptimizerValidPresets,
		WalkForwardRuns, WalkForwardEfficiency,
		RobustnessScore,
	)
}

// IncSignal records one generated signal.
func IncSignal(direction, strength string) { SignalsGenerated.WithLabelValues(direction, strength).Inc() }

// IncTradeOpened records one trade entry.
func IncTradeOpened(direction string) { TradesOpened.WithLabelValues(direction).Inc() }

// IncTradeClosed records one trade exit.
func IncTradeClosed(status string) { TradesClosed.WithLabelValues(status).Inc() }

// IncTPHit records a take-profit level firing.
func IncTPHit(index string) { TPHits.WithLabelValues(index).Inc() }

// IncSLMove records a stop-loss adjustment.
func IncSLMove(reason string) { SLMoves.WithLabelValues(reason).Inc() }

// SetEquity updates the equity gauge.
func SetEquity(v float64) { Equity.Set(v) }

// SetVolatilityRegime flips the active regime's series to 1 and the
// others to 0, leaving exactly one regime label active at a time.
func SetVolatilityRegime(active string, all []string) {
	for _, r := range all {
		if r == active {
			VolatilityRegime.WithLabelValues(r).Set(1)
		} else {
			VolatilityRegime.WithLabelValues(r).Set(0)
		}
	}
}
