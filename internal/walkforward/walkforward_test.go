package walkforward

import (
	"context"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/lucidquant/velas-engine/internal/backtest"
	"github.com/lucidquant/velas-engine/internal/candle"
	"github.com/lucidquant/velas-engine/internal/indicator"
	"github.com/lucidquant/velas-engine/internal/optimizer"
	"github.com/lucidquant/velas-engine/internal/signal"
	"github.com/lucidquant/velas-engine/internal/tpsl"
	"github.com/lucidquant/velas-engine/internal/verr"
	"github.com/lucidquant/velas-engine/internal/volatility"
)

// hourlyZigzag builds an hourly series so a one-month train window still
// clears the 100-bar minimum optimizer.Run needs per period.
func hourlyZigzag(hours int) candle.Series {
	base := time.Date(2023, 1, 1, 0, 0, 0, 0, time.UTC)
	out := make(candle.Series, hours)
	price := 100.0
	for i := 0; i < hours; i++ {
		if i%6 < 3 {
			price *= 1.003
		} else {
			price *= 0.9975
		}
		out[i] = candle.Candle{Time: base.Add(time.Duration(i) * time.Hour), Open: price, High: price * 1.004, Low: price * 0.996, Close: price, Volume: 100}
	}
	return out
}

func smallBuild() BuildConfig {
	return func(idx int, series candle.Series) backtest.Config {
		p := indicator.Preset{Index: idx, I1: 10 + idx*2, I2: 10, I3: 0.5, I4: 1.0, I5: 1.0}
		return backtest.Config{
			Symbol: "BTCUSDT", Timeframe: "1d", Preset: p,
			TPSL: tpsl.DefaultConfig(), Filters: signal.FilterConfig{}, Volatility: volatility.DefaultConfig(),
			InitialCapital: 10000, CascadeStop: true, CloseOnOppositeSignal: true,
		}
	}
}

func smallOptimizerConfig() optimizer.Config {
	cfg := optimizer.DefaultConfig()
	cfg.PresetIndices = []int{0, 1, 2}
	cfg.MinTrades = 0
	cfg.MinWinRateTP1 = 0
	cfg.MinSharpe = -100
	cfg.MinProfitFactor = 0
	cfg.MaxDrawdown = 1000
	return cfg
}

func TestRunProducesPurifiedWindows(t *testing.T) {
	series := hourlyZigzag(2400)
	cfg := Config{TrainMonths: 1, TestMonths: 1, StepMonths: 1, MinPeriods: 2, OptimizerConfig: smallOptimizerConfig(), InitialCapital: 10000}

	result, err := Run(context.Background(), series, cfg, smallBuild())
	require.NoError(t, err)
	require.NotEmpty(t, result.Periods)
	for _, p := range result.Periods {
		assert.False(t, p.TestStart.Before(p.TrainEnd), "test window must start at or after train end")
		assert.True(t, p.TrainStart.Before(p.TrainEnd))
	}
}

func TestRunInsufficientHistoryErrors(t *testing.T) {
	series := hourlyZigzag(50)
	cfg := DefaultConfig()
	_, err := Run(context.Background(), series, cfg, smallBuild())
	require.Error(t, err)
	var insuff *verr.InsufficientData
	assert.ErrorAs(t, err, &insuff)
}

func TestRunEmptySeriesIsInvalidInput(t *testing.T) {
	cfg := DefaultConfig()
	_, err := Run(context.Background(), nil, cfg, smallBuild())
	require.Error(t, err)
	var invalid *verr.InvalidInput
	assert.ErrorAs(t, err, &invalid)
}
