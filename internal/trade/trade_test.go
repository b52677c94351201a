package trade

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/lucidquant/velas-engine/internal/candle"
	"github.com/lucidquant/velas-engine/internal/tpsl"
)

func bar(t time.Time, high, low, close float64) candle.Candle {
	return candle.Candle{Time: t, Open: close, High: high, Low: low, Close: close, Volume: 1}
}

func TestCheckBarCascadeStopThenSLHit(t *testing.T) {
	cfg := tpsl.DefaultConfig()
	levels := tpsl.CalculateLevels(cfg, 100, tpsl.Long, 0, 0)
	tr := Open("BTCUSDT", "15m", tpsl.Long, 100, time.Unix(0, 0), 0, levels, cfg)

	t0 := time.Unix(0, 0)
	events := tr.CheckBar(bar(t0, 101, 100.5, 101))
	require.Len(t, events, 2) // TP1 hit, cascade SL moved to entry
	assert.Equal(t, EventTPHit, events[0].Kind)
	assert.Equal(t, 1, events[0].TPIndex)
	assert.Equal(t, EventSLMoved, events[1].Kind)
	assert.InDelta(t, 100.0, events[1].NewSL, 1e-9)
	assert.Equal(t, Open, tr.Status)

	events = tr.CheckBar(bar(t0.Add(time.Hour), 100.2, 99, 99.5))
	require.Len(t, events, 1)
	assert.Equal(t, EventClosed, events[0].Kind)
	assert.Equal(t, ClosedSL, tr.Status)
	require.NotNil(t, tr.Result)
	assert.InDelta(t, 0.17, tr.Result.TotalPnLPercent, 1e-9)
}

func TestCheckBarTP6ClosesImmediately(t *testing.T) {
	cfg := tpsl.DefaultConfig()
	levels := tpsl.CalculateLevels(cfg, 100, tpsl.Long, 0, 0)
	tr := Open("BTCUSDT", "15m", tpsl.Long, 100, time.Unix(0, 0), 0, levels, cfg)

	events := tr.CheckBar(bar(time.Unix(0, 0), levels.TP[5].Price+1, 99, levels.TP[5].Price))
	var kinds []EventKind
	for _, e := range events {
		kinds = append(kinds, e.Kind)
	}
	assert.Contains(t, kinds, EventClosed)
	assert.Equal(t, ClosedTP, tr.Status)
	assert.InDelta(t, 0.0, tr.PositionRemaining, 1e-9)
	assert.True(t, tr.Result.IsProfitable())
}

func TestCheckBarDirectSLHitNoTP(t *testing.T) {
	cfg := tpsl.DefaultConfig()
	levels := tpsl.CalculateLevels(cfg, 100, tpsl.Long, 0, 0)
	tr := Open("BTCUSDT", "15m", tpsl.Long, 100, time.Unix(0, 0), 0, levels, cfg)

	events := tr.CheckBar(bar(time.Unix(0, 0), 100.5, 91.0, 91.2))
	require.Len(t, events, 1)
	assert.Equal(t, EventClosed, events[0].Kind)
	assert.Equal(t, ClosedSL, tr.Status)
	assert.False(t, tr.Result.IsProfitable())
}

func TestCheckBarShortDirectionMirrorsLong(t *testing.T) {
	cfg := tpsl.DefaultConfig()
	levels := tpsl.CalculateLevels(cfg, 100, tpsl.Short, 0, 0)
	tr := Open("BTCUSDT", "15m", tpsl.Short, 100, time.Unix(0, 0), 0, levels, cfg)

	events := tr.CheckBar(bar(time.Unix(0, 0), 100.5, 98.9, 99))
	require.NotEmpty(t, events)
	assert.Equal(t, EventTPHit, events[0].Kind)
}

func TestCheckBarNoOpWhenAlreadyClosed(t *testing.T) {
	cfg := tpsl.DefaultConfig()
	levels := tpsl.CalculateLevels(cfg, 100, tpsl.Long, 0, 0)
	tr := Open("BTCUSDT", "15m", tpsl.Long, 100, time.Unix(0, 0), 0, levels, cfg)
	tr.CloseManual(100, time.Unix(0, 0))
	require.Equal(t, ClosedManual, tr.Status)

	events := tr.CheckBar(bar(time.Unix(100, 0), 200, 1, 150))
	assert.Empty(t, events)
	assert.Equal(t, ClosedManual, tr.Status)
}

func TestCloseBySignalIgnoredWhenNotOpen(t *testing.T) {
	cfg := tpsl.DefaultConfig()
	levels := tpsl.CalculateLevels(cfg, 100, tpsl.Long, 0, 0)
	tr := Open("BTCUSDT", "15m", tpsl.Long, 100, time.Unix(0, 0), 0, levels, cfg)
	tr.CloseBySignal(105, time.Unix(1, 0))
	require.Equal(t, ClosedBySignal, tr.Status)
	firstResult := tr.Result

	tr.CloseBySignal(999, time.Unix(2, 0))
	assert.Same(t, firstResult, tr.Result)
}

func TestReachedTP(t *testing.T) {
	cfg := tpsl.DefaultConfig()
	levels := tpsl.CalculateLevels(cfg, 100, tpsl.Long, 0, 0)
	tr := Open("BTCUSDT", "15m", tpsl.Long, 100, time.Unix(0, 0), 0, levels, cfg)
	tr.CheckBar(bar(time.Unix(0, 0), levels.TP[0].Price+0.1, 99, levels.TP[0].Price))

	assert.True(t, tr.ReachedTP(1))
	assert.False(t, tr.ReachedTP(2))
}
