package robustness

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
	"github.com/lucidquant/velas-engine/internal/tpsl"
	"github.com/lucidquant/velas-engine/internal/volatility"
)

func TestIntVariantsGeneratesLowBaseHigh(t *testing.T) {
	out := intVariants(20, 0.15, true)
	assert.ElementsMatch(t, []int{17, 20, 24}, out)
}

func TestIntVariantsDisabledReturnsOnlyBase(t *testing.T) {
	out := intVariants(20, 0.15, false)
	assert.Equal(t, []int{20}, out)
}

func TestIntVariantsClampsLowAtOne(t *testing.T) {
	out := intVariants(1, 0.5, true)
	for _, v := range out {
		assert.GreaterOrEqual(t, v, 1)
	}
}

func TestFloatVariantsRounding(t *testing.T) {
	out := floatVariants(1.0, 0.15, true)
	assert.ElementsMatch(t, []float64{0.85, 1.0, 1.15}, out)
}

func TestFloatVariantsDedupesZero(t *testing.T) {
	out := floatVariants(0, 0.15, true)
	assert.Equal(t, []float64{0}, out)
}

func TestNeighborParamsExcludesBaseTuple(t *testing.T) {
	base := indicator.Preset{Index: 1, I1: 20, I2: 10, I3: 0.5, I4: 1.0, I5: 1.0}
	cfg := Config{VariationPercent: 15.0, VaryI1: true}

	neighbors := neighborParams(base, cfg)
	require.Len(t, neighbors, 2)
	for _, n := range neighbors {
		assert.NotEqual(t, base.I1, n.I1)
		assert.Equal(t, base.I2, n.I2)
		assert.Equal(t, base.I3, n.I3)
	}
}

func TestNeighborParamsAllVariantsCombineAsCartesianProduct(t *testing.T) {
	base := indicator.Preset{Index: 1, I1: 20, I2: 10, I3: 0.5, I4: 1.0, I5: 1.0}
	cfg := DefaultConfig()

	neighbors := neighborParams(base, cfg)
	// 3^5 - 1 (base tuple excluded); every varied dimension contributes
	// at most 3 distinct values.
	assert.LessOrEqual(t, len(neighbors), 3*3*3*3*3-1)
	assert.NotEmpty(t, neighbors)
}

func TestPctDistZeroBaseIsZero(t *testing.T) {
	assert.Equal(t, 0.0, pctDist(0, 5))
}

func TestDistanceIsZeroForIdenticalPreset(t *testing.T) {
	p := indicator.Preset{Index: 1, I1: 20, I2: 10, I3: 0.5, I4: 1.0, I5: 1.0}
	assert.Equal(t, 0.0, distance(p, p))
}

func TestEvaluateNoNeighborsFails(t *testing.T) {
	res := evaluate(indicator.Preset{}, 50, nil)
	assert.False(t, res.IsRobust)
	assert.Contains(t, res.FailureReasons, "no_neighbors")
}

func TestEvaluatePassesWithinBounds(t *testing.T) {
	neighbors := []Neighbor{
		{Score: 48, ScoreDegradation: 4, IsValid: true, IsProfitable: true},
		{Score: 47, ScoreDegradation: 6, IsValid: true, IsProfitable: true},
		{Score: 49, ScoreDegradation: 2, IsValid: true, IsProfitable: true},
	}
	res := evaluate(indicator.Preset{}, 50, neighbors)
	assert.True(t, res.IsRobust)
	assert.Empty(t, res.FailureReasons)
	assert.Greater(t, res.RobustnessScore, 0.0)
	assert.LessOrEqual(t, res.RobustnessScore, 100.0)
}

func TestEvaluateFlagsEachViolation(t *testing.T) {
	neighbors := []Neighbor{
		// Invalid neighbors drag valid_ratio below 0.70 but must not pull
		// their forced-zero scores into the valid-only aggregates below.
		{Score: 0, ScoreDegradation: 0, IsValid: false, IsProfitable: false},
		{Score: 0, ScoreDegradation: 0, IsValid: false, IsProfitable: false},
		{Score: 0, ScoreDegradation: 100, IsValid: true, IsProfitable: false},
		{Score: 40, ScoreDegradation: 20, IsValid: true, IsProfitable: true},
		{Score: 50, ScoreDegradation: 0, IsValid: true, IsProfitable: true},
	}
	res := evaluate(indicator.Preset{}, 50, neighbors)
	assert.False(t, res.IsRobust)
	assert.Contains(t, res.FailureReasons, "valid_ratio")
	assert.Contains(t, res.FailureReasons, "max_degradation")
	assert.Contains(t, res.FailureReasons, "score_stddev")
}

func flatWithSpike(n, spikeIdx int, spikeHigh float64) candle.Series {
	base := time.Date(2024, 1, 1, 0, 0, 0, 0, time.UTC)
	out := make(candle.Series, n)
	for i := 0; i < n; i++ {
		out[i] = candle.Candle{Time: base.Add(time.Duration(i) * time.Hour), Open: 100, High: 100, Low: 100, Close: 100, Volume: 100}
	}
	if spikeIdx >= 0 {
		out[spikeIdx].High = spikeHigh
		out[spikeIdx].Close = spikeHigh
	}
	return out
}

func buildPreset(p indicator.Preset) backtest.Config {
	return backtest.Config{
		Symbol: "BTCUSDT", Timeframe: "15m", Preset: p,
		TPSL: tpsl.DefaultConfig(), Filters: signal.FilterConfig{}, Volatility: volatility.DefaultConfig(),
		InitialCapital: 10000, CascadeStop: true, CloseOnOppositeSignal: true,
	}
}

func TestCheckRunsBaseAndEveryNeighbor(t *testing.T) {
	series := flatWithSpike(60, 30, 110)
	base := indicator.Preset{Index: 1, I1: 5, I2: 5, I3: 0, I4: 0, I5: 1}
	cfg := DefaultConfig()
	cfg.MinTrades = 0

	res, err := Check(context.Background(), series, base, cfg, buildPreset)
	require.NoError(t, err)
	assert.Equal(t, base, res.BasePreset)
	assert.Equal(t, len(res.Neighbors), res.TotalNeighbors)
	assert.NotEmpty(t, res.Neighbors)
}
