package stats

import (
	"math"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/lucidquant/velas-engine/internal/candle"
	"github.com/lucidquant/velas-engine/internal/tpsl"
	"github.com/lucidquant/velas-engine/internal/trade"
)

// closedTrade builds a trade.Trade already closed with the given exit PnL,
// by driving it through Open/CheckBar/CloseManual against a flat bar.
func closedTrade(t *testing.T, entry, exitPrice float64, at time.Time, tpHitIdx int) *trade.Trade {
	t.Helper()
	cfg := tpsl.DefaultConfig()
	levels := tpsl.CalculateLevels(cfg, entry, tpsl.Long, 0, 0)
	tr := trade.Open("BTCUSDT", "15m", tpsl.Long, entry, at, 0, levels, cfg)
	if tpHitIdx > 0 {
		price := levels.TP[tpHitIdx-1].Price
		// High stops at the target so no later TP is hit, and Low stays
		// above entry so the same-bar cascade stop (moved to entry after
		// the first TP hit) doesn't also close the trade here.
		tr.CheckBar(candle.Candle{Time: at, Open: entry, High: price, Low: entry + 0.2, Close: price})
	}
	tr.CloseManual(exitPrice, at.Add(time.Hour))
	return tr
}

func TestCalculateAllEmptyTradeList(t *testing.T) {
	m := CalculateAll(nil, 10000)
	assert.Equal(t, 0, m.TotalTrades)
}

func TestCalculateAllWinLossClassification(t *testing.T) {
	base := time.Unix(0, 0)
	win := closedTrade(t, 100, 110, base, 0)
	loss := closedTrade(t, 100, 90, base.Add(time.Hour), 0)

	m := CalculateAll([]*trade.Trade{win, loss}, 10000)
	assert.Equal(t, 2, m.TotalTrades)
	assert.Equal(t, 1, m.WinningTrades)
	assert.Equal(t, 1, m.LosingTrades)
	assert.InDelta(t, 50.0, m.WinRate, 1e-9)
}

func TestCalculateAllWinRateByTP(t *testing.T) {
	base := time.Unix(0, 0)
	hitTP1 := closedTrade(t, 100, 105, base, 1)
	noTPHit := closedTrade(t, 100, 100.5, base.Add(time.Hour), 0)

	m := CalculateAll([]*trade.Trade{hitTP1, noTPHit}, 10000)
	assert.InDelta(t, 50.0, m.WinRateByTP[0], 1e-9)
	assert.InDelta(t, 0.0, m.WinRateByTP[1], 1e-9)
}

func TestCalculateAllEquityAndDrawdown(t *testing.T) {
	base := time.Unix(0, 0)
	up := closedTrade(t, 100, 110, base, 0)           // +10%
	down := closedTrade(t, 100, 90, base.Add(time.Hour), 0) // -10%

	m := CalculateAll([]*trade.Trade{up, down}, 10000)
	require.NotZero(t, m.FinalEquity)
	assert.InDelta(t, 10000*1.10*0.90, m.FinalEquity, 1e-6)
	assert.Less(t, m.MaxDrawdownPercent, 0.0)
}

func TestCalculateAllProfitFactorAllWinsIsInfinite(t *testing.T) {
	base := time.Unix(0, 0)
	win := closedTrade(t, 100, 110, base, 0)
	m := CalculateAll([]*trade.Trade{win}, 10000)
	assert.True(t, math.IsInf(m.ProfitFactor, 1))
}

func TestCalculateAllStreaks(t *testing.T) {
	base := time.Unix(0, 0)
	trades := []*trade.Trade{
		closedTrade(t, 100, 110, base, 0),
		closedTrade(t, 100, 110, base.Add(time.Hour), 0),
		closedTrade(t, 100, 90, base.Add(2*time.Hour), 0),
		closedTrade(t, 100, 90, base.Add(3*time.Hour), 0),
		closedTrade(t, 100, 90, base.Add(4*time.Hour), 0),
	}
	m := CalculateAll(trades, 10000)
	assert.Equal(t, 2, m.MaxConsecutiveWins)
	assert.Equal(t, 3, m.MaxConsecutiveLosses)
}

func TestIsAcceptableReportsViolations(t *testing.T) {
	m := Metrics{WinRate: 30, WinRateByTP: [6]float64{60}, SharpeRatio: 0.5, MaxDrawdownPercent: -20, ProfitFactor: 1.0}
	ok, violations := IsAcceptable(m, DefaultAcceptanceThresholds())
	assert.False(t, ok)
	assert.Contains(t, violations, "win_rate")
	assert.Contains(t, violations, "sharpe_ratio")
	assert.Contains(t, violations, "max_drawdown")
	assert.Contains(t, violations, "profit_factor")
}

func TestIsAcceptablePasses(t *testing.T) {
	m := Metrics{WinRate: 50, WinRateByTP: [6]float64{80}, SharpeRatio: 1.5, MaxDrawdownPercent: -5, ProfitFactor: 2.0}
	ok, violations := IsAcceptable(m, DefaultAcceptanceThresholds())
	assert.True(t, ok)
	assert.Empty(t, violations)
}
