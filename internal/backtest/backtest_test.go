package backtest

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/lucidquant/velas-engine/internal/candle"
	"github.com/lucidquant/velas-engine/internal/indicator"
	"github.com/lucidquant/velas-engine/internal/signal"
	"github.com/lucidquant/velas-engine/internal/tpsl"
	"github.com/lucidquant/velas-engine/internal/trade"
	"github.com/lucidquant/velas-engine/internal/verr"
	"github.com/lucidquant/velas-engine/internal/volatility"
)

func flatWithBreakout(n, breakoutIdx int, breakoutHigh float64) candle.Series {
	base := time.Date(2024, 1, 1, 0, 0, 0, 0, time.UTC)
	out := make(candle.Series, n)
	for i := 0; i < n; i++ {
		out[i] = candle.Candle{Time: base.Add(time.Duration(i) * time.Hour), Open: 100, High: 100, Low: 100, Close: 100, Volume: 100}
	}
	if breakoutIdx >= 0 {
		out[breakoutIdx].High = breakoutHigh
		out[breakoutIdx].Close = breakoutHigh
	}
	return out
}

func testConfig(preset indicator.Preset) Config {
	return Config{
		Symbol: "BTCUSDT", Timeframe: "15m", Preset: preset,
		TPSL: tpsl.DefaultConfig(), Filters: signal.FilterConfig{}, Volatility: volatility.DefaultConfig(),
		InitialCapital: 10000, CascadeStop: true, CloseOnOppositeSignal: true,
	}
}

func TestRunOpensAndRecordsABreakoutTrade(t *testing.T) {
	series := flatWithBreakout(60, 30, 110)
	p := indicator.Preset{I1: 5, I2: 5, I3: 0, I4: 0, I5: 1}
	result, err := Run(series, testConfig(p))
	require.NoError(t, err)

	require.NotEmpty(t, result.Trades)
	assert.GreaterOrEqual(t, result.Metrics.TotalTrades, 0)
	assert.GreaterOrEqual(t, len(result.EquityCurve), 1)
	assert.Equal(t, len(series), result.TotalBars)
}

func TestRunInsufficientDataPropagatesFromIndicator(t *testing.T) {
	series := flatWithBreakout(5, -1, 0)
	p := indicator.Preset{I1: 5, I2: 5, I3: 0, I4: 0, I5: 1}
	_, err := Run(series, testConfig(p))
	require.Error(t, err)
	var insuff *verr.InsufficientData
	assert.ErrorAs(t, err, &insuff)
}

func TestRunClosesOpenTradeAtSeriesEnd(t *testing.T) {
	series := flatWithBreakout(40, 30, 105) // breakout too small to reach any TP
	p := indicator.Preset{I1: 5, I2: 5, I3: 0, I4: 0, I5: 1}
	result, err := Run(series, testConfig(p))
	require.NoError(t, err)
	require.NotEmpty(t, result.Trades)

	last := result.Trades[len(result.Trades)-1]
	assert.NotEqual(t, trade.Open, last.Status)
	require.NotNil(t, last.Result)
}

func TestDefaultConfigWiresReferenceDefaults(t *testing.T) {
	p := indicator.Preset{I1: 40, I2: 10, I3: 0.3, I4: 1.0, I5: 1.0}
	cfg := DefaultConfig("BTCUSDT", "15m", p)
	assert.Equal(t, 10000.0, cfg.InitialCapital)
	assert.True(t, cfg.CascadeStop)
	assert.Equal(t, tpsl.DefaultConfig(), cfg.TPSL)
}
