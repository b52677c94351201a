package optimizer

import (
	"context"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/lucidquant/velas-engine/internal/backtest"
	"github.com/lucidquant/velas-engine/internal/candle"
	"github.com/lucidquant/velas-engine/internal/indicator"
	"github.com/lucidquant/velas-engine/internal/signal"
	"github.com/lucidquant/velas-engine/internal/stats"
	"github.com/lucidquant/velas-engine/internal/tpsl"
	"github.com/lucidquant/velas-engine/internal/volatility"
)

func zigzagSeries(n int) candle.Series {
	base := time.Date(2024, 1, 1, 0, 0, 0, 0, time.UTC)
	out := make(candle.Series, n)
	price := 100.0
	for i := 0; i < n; i++ {
		if i%4 == 0 {
			price *= 1.02
		} else if i%4 == 2 {
			price *= 0.985
		}
		out[i] = candle.Candle{Time: base.Add(time.Duration(i) * time.Hour), Open: price, High: price * 1.01, Low: price * 0.99, Close: price, Volume: 100}
	}
	return out
}

func buildFromIndex(series candle.Series) BuildConfig {
	return func(idx int) backtest.Config {
		p, _ := preset(idx)
		return backtest.Config{
			Symbol: "BTCUSDT", Timeframe: "15m", Preset: p,
			TPSL: tpsl.DefaultConfig(), Filters: signal.FilterConfig{}, Volatility: volatility.DefaultConfig(),
			InitialCapital: 10000, CascadeStop: true, CloseOnOppositeSignal: true,
		}
	}
}

// preset derives a small deterministic indicator preset from idx so each
// grid position differs without depending on internal/preset's catalog.
func preset(idx int) (indicator.Preset, error) {
	return indicator.Preset{Index: idx, I1: 10 + idx, I2: 10, I3: 0.5, I4: 1.0, I5: 1.0 + float64(idx)*0.1}, nil
}

func TestRunReducesDeterministicallyByPresetIndex(t *testing.T) {
	series := zigzagSeries(120)
	cfg := DefaultConfig()
	cfg.MaxWorkers = 4
	cfg.PresetIndices = []int{5, 2, 8, 0}
	cfg.MinTrades = 0

	grid, err := Run(context.Background(), series, cfg, buildFromIndex(series))
	require.NoError(t, err)
	require.Len(t, grid.AllResults, 4)
	for i := 1; i < len(grid.AllResults); i++ {
		assert.Less(t, grid.AllResults[i-1].PresetIndex, grid.AllResults[i].PresetIndex)
	}
}

func TestValidateFlagsEachViolation(t *testing.T) {
	cfg := DefaultConfig()
	m := stats.Metrics{TotalTrades: 1, WinRateByTP: [6]float64{10}, SharpeRatio: 0, ProfitFactor: 0.5, MaxDrawdownPercent: -50}
	valid, reasons := Validate(m, cfg)
	assert.False(t, valid)
	assert.Contains(t, reasons, "min_trades")
	assert.Contains(t, reasons, "win_rate_tp1")
	assert.Contains(t, reasons, "min_sharpe")
	assert.Contains(t, reasons, "min_profit_factor")
	assert.Contains(t, reasons, "max_drawdown")
}

func TestCompositeScoreClampedToHundred(t *testing.T) {
	cfg := DefaultConfig()
	m := stats.Metrics{SharpeRatio: 10, ProfitFactor: 10, WinRateByTP: [6]float64{100}, MaxDrawdownPercent: 0}
	score := CompositeScore(m, cfg)
	assert.LessOrEqual(t, score, 100.0)
	assert.Greater(t, score, 0.0)
}

func TestRunWithNoValidPresetsYieldsNilBest(t *testing.T) {
	series := zigzagSeries(120)
	cfg := DefaultConfig()
	cfg.MinTrades = 100000 // unreachable, forces every result invalid
	cfg.PresetIndices = []int{0, 1}

	grid, err := Run(context.Background(), series, cfg, buildFromIndex(series))
	require.NoError(t, err)
	assert.Nil(t, grid.BestResult)
	assert.Empty(t, grid.ValidResults)
}
