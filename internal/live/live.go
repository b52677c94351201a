// Package live implements a per-symbol actor that applies the same
// signal/trade machinery bar-by-bar to a live MarketDataSource stream
// instead of a historical series, publishing trade.Event notifications
// as they occur.
package live

import (
	"context"
	"sync"

	"github.com/lucidquant/velas-engine/internal/backtest"
	"github.com/lucidquant/velas-engine/internal/candle"
	"github.com/lucidquant/velas-engine/internal/external"
	"github.com/lucidquant/velas-engine/internal/indicator"
	"github.com/lucidquant/velas-engine/internal/signal"
	"github.com/lucidquant/velas-engine/internal/tpsl"
	"github.com/lucidquant/velas-engine/internal/trade"
	"github.com/lucidquant/velas-engine/internal/verr"
	"github.com/lucidquant/velas-engine/internal/vlog"
	"github.com/lucidquant/velas-engine/internal/volatility"
)

// Notification is one event surfaced to the caller's handler, carrying
// enough context to format a notify.TradingSignal / TPHitEvent /
// SLHitEvent without the tracker depending on internal/notify directly.
type Notification struct {
	Symbol    string
	Timeframe string
	Trade     *trade.Trade
	Event     trade.Event
}

// Handler receives tracker notifications. Implementations should not
// block; long work (sending to a NotificationTransport, writing to a
// StateStore) should be dispatched asynchronously by the caller.
type Handler func(Notification)

// Tracker runs the breakout strategy against one symbol/timeframe's
// live bar stream, maintaining at most one open trade.Trade at a time
// (§4.12 "a single open position per symbol", mirroring §4.7's backtest
// discipline over a live feed instead of a historical slice).
type Tracker struct {
	Symbol    string
	Timeframe string
	Preset    indicator.Preset
	TPSL      tpsl.Config
	Filters   signal.FilterConfig
	Volatility volatility.Config

	CloseOnOppositeSignal bool

	mu      sync.Mutex
	history candle.Series
	current *trade.Trade
	historyMin int

	log *vlog.Logger
}

// New constructs a Tracker. historyMin bounds how far back onBar
// recomputes indicators on every new bar, keeping per-tick cost bounded
// instead of growing with the tracker's full lifetime.
func New(symbol, timeframe string, preset indicator.Preset, tpslCfg tpsl.Config, filters signal.FilterConfig, volCfg volatility.Config, historyMin int) *Tracker {
	if historyMin < 200 {
		historyMin = 200
	}
	return &Tracker{
		Symbol: symbol, Timeframe: timeframe, Preset: preset, TPSL: tpslCfg, Filters: filters, Volatility: volCfg,
		CloseOnOppositeSignal: true, historyMin: historyMin, log: vlog.New("live." + symbol),
	}
}

// Seed primes the tracker with historical candles before streaming
// begins, so the first live bars aren't starved of warm-up data.
func (tr *Tracker) Seed(series candle.Series) {
	tr.mu.Lock()
	defer tr.mu.Unlock()
	tr.history = append(tr.history, series...)
}

// Run subscribes to src's live stream and drives the state machine one
// closed bar at a time until ctx is cancelled or the stream ends.
func (tr *Tracker) Run(ctx context.Context, src external.MarketDataSource, handle Handler) error {
	return src.Stream(ctx, tr.Symbol, tr.Timeframe, func(b external.Bar) {
		if !b.IsClosed {
			return
		}
		c := candle.Candle{Time: b.OpenTime, Open: b.Open, High: b.High, Low: b.Low, Close: b.Close, Volume: b.Volume}
		events, err := tr.onBar(c)
		if err != nil {
			tr.log.Warnf("bar skipped: %v", err)
			return
		}
		if handle == nil {
			return
		}
		tr.mu.Lock()
		cur := tr.current
		tr.mu.Unlock()
		for _, ev := range events {
			handle(Notification{Symbol: tr.Symbol, Timeframe: tr.Timeframe, Trade: cur, Event: ev})
		}
	})
}

// onBar appends bar to the bounded history, recomputes indicators and
// signals over the trailing window, advances any open trade, and opens
// a new one if a confirmed signal fires with no trade in flight. It
// holds tr.mu for the full state mutation; no I/O happens under the
// lock, so callers do any notification I/O after onBar returns.
func (tr *Tracker) onBar(c candle.Candle) ([]trade.Event, error) {
	tr.mu.Lock()
	defer tr.mu.Unlock()

	tr.history = append(tr.history, c)
	if len(tr.history) > tr.historyMin*4 {
		tr.history = tr.history[len(tr.history)-tr.historyMin*4:]
	}
	if len(tr.history) < tr.historyMin {
		return nil, verr.NewInsufficientData("live", len(tr.history), tr.historyMin)
	}

	bars, err := indicator.Compute(tr.history, tr.Preset)
	if err != nil {
		return nil, err
	}
	lastIdx := len(tr.history) - 1
	lastBar := bars[lastIdx]

	var events []trade.Event

	if tr.current != nil {
		events = append(events, tr.current.CheckBar(c)...)
		if tr.current.Status == trade.Open && tr.CloseOnOppositeSignal {
			opposite := false
			if tr.current.Direction == tpsl.Long {
				opposite = !isNaN(lastBar.ShortTrigger) && c.Low < lastBar.ShortTrigger
			} else {
				opposite = !isNaN(lastBar.LongTrigger) && c.High > lastBar.LongTrigger
			}
			if opposite {
				tr.current.CloseBySignal(c.Close, c.Time)
				events = append(events, trade.Event{Kind: trade.EventClosed, Reason: trade.ClosedBySignal.String(), Price: c.Close, Timestamp: c.Time})
			}
		}
	}

	if tr.current == nil || tr.current.Status != trade.Open {
		filters := signal.PrepareFilters(tr.history, tr.Filters)
		s, ok := signal.Evaluate(tr.history, bars, lastIdx, tpsl.Long, tr.Symbol, tr.Timeframe, tr.Preset.Index, tr.Filters, filters)
		if !ok {
			s, ok = signal.Evaluate(tr.history, bars, lastIdx, tpsl.Short, tr.Symbol, tr.Timeframe, tr.Preset.Index, tr.Filters, filters)
		}
		if ok {
			atrRatio, stdevRatio := 0.0, 0.0
			if c.Close != 0 {
				if !isNaN(lastBar.ATR) {
					atrRatio = lastBar.ATR / c.Close
				}
				if !isNaN(lastBar.Stdev) {
					stdevRatio = lastBar.Stdev / c.Close
				}
			}
			levels := tpsl.CalculateLevels(tr.TPSL, s.EntryPrice, s.Direction, atrRatio, stdevRatio)
			tr.current = trade.Open(tr.Symbol, tr.Timeframe, s.Direction, s.EntryPrice, s.Timestamp, tr.Preset.Index, levels, tr.TPSL)
		}
	}

	return events, nil
}

// OpenTrade returns the currently open trade, if any.
func (tr *Tracker) OpenTrade() *trade.Trade {
	tr.mu.Lock()
	defer tr.mu.Unlock()
	return tr.current
}

// Replay feeds a historical series through onBar without touching a
// live stream, used to warm up a Tracker's state before handing it to
// Run. An empty series is InvalidInput; bars that onBar rejects (e.g.
// before historyMin bars have accumulated) are skipped.
func Replay(tr *Tracker, series candle.Series) error {
	if len(series) == 0 {
		return verr.NewInvalidInput("series", "empty")
	}
	for _, c := range series {
		if _, err := tr.onBar(c); err != nil {
			continue
		}
	}
	return nil
}

// VolatilityNow classifies the tracker's current regime from its
// internal ATR history, for callers that want to log regime alongside
// trade decisions (§4.5).
func (tr *Tracker) VolatilityNow() (volatility.Result, error) {
	tr.mu.Lock()
	defer tr.mu.Unlock()
	bars, err := indicator.Compute(tr.history, tr.Preset)
	if err != nil {
		return volatility.Result{}, err
	}
	atrSeries := make([]float64, len(bars))
	for i, b := range bars {
		atrSeries[i] = b.ATR
	}
	return volatility.Classify(atrSeries, len(atrSeries)-1, tr.Volatility), nil
}

// entryConfig builds a one-off backtest.Config from a live tracker's
// current parameterization. It is unexported, so only code in this
// package can call it.
func (tr *Tracker) entryConfig(initialCapital float64) backtest.Config {
	return backtest.Config{
		Symbol: tr.Symbol, Timeframe: tr.Timeframe, Preset: tr.Preset, TPSL: tr.TPSL, Filters: tr.Filters,
		Volatility: tr.Volatility, InitialCapital: initialCapital, CascadeStop: true, CloseOnOppositeSignal: tr.CloseOnOppositeSignal,
	}
}

func isNaN(f float64) bool { return f != f }
