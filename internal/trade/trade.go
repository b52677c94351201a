// Package trade implements the per-bar trade state machine. A Trade is
// total over the bar stream (no failure semantics): it only ever
// transitions forward, and once closed no further bar update mutates it.
package trade

import (
	"math"
	"strconv"
	"time"

	"github.com/google/uuid"

	"github.com/lucidquant/velas-engine/internal/candle"
	"github.com/lucidquant/velas-engine/internal/telemetry"
	"github.com/lucidquant/velas-engine/internal/tpsl"
)

// Status is a Trade's lifecycle state.
type Status int

const (
	Open Status = iota
	ClosedTP
	ClosedSL
	ClosedBySignal
	ClosedManual
)

func (s Status) String() string {
	switch s {
	case ClosedTP:
		return "closed-tp"
	case ClosedSL:
		return "closed-sl"
	case ClosedBySignal:
		return "closed-by-opposite-signal"
	case ClosedManual:
		return "closed-manual"
	default:
		return "open"
	}
}

// TPHit records one take-profit level firing.
type TPHit struct {
	Index          int // 1..6
	Price          float64
	HitPrice       float64
	Timestamp      time.Time
	ClosedFraction float64
	PnLPercent     float64
}

// Result is the terminal summary of a closed Trade (§3 Trade's
// "final TradeResult once closed").
type Result struct {
	Status             Status
	ExitPrice          float64
	ExitTimestamp      time.Time
	TotalPnLPercent    float64
	TPHits             []TPHit
	MaxProfitPercent   float64
	MaxDrawdownPercent float64
	DurationBars       int
}

func (r Result) IsProfitable() bool { return r.TotalPnLPercent > 0 }

// EventKind enumerates the bar-level events a Trade can emit, reused
// verbatim by internal/live for the streaming-bar tracker (§4.12).
type EventKind int

const (
	EventTPHit EventKind = iota
	EventSLMoved
	EventBreakeven
	EventClosed
)

// Event is one state-machine transition produced during CheckBar.
type Event struct {
	Kind      EventKind
	TPIndex   int
	Price     float64
	OldSL     float64
	NewSL     float64
	Reason    string
	Timestamp time.Time
}

// Trade is a single open-then-closed position, owned exclusively by the
// loop or tracker that created it (§3 ownership note).
type Trade struct {
	ID         string
	Symbol     string
	Timeframe  string
	Direction  tpsl.Direction
	EntryPrice float64
	EntryTime  time.Time
	PresetIdx  int

	Levels tpsl.Levels
	cfg    tpsl.Config

	Status            Status
	PositionRemaining float64 // percent, starts at 100
	TPHits            []TPHit
	BarCount          int
	MaxPrice          float64
	MinPrice          float64
	MaxProfitPercent  float64
	MaxDrawdownPercent float64

	hitCount int
	beFired  bool

	Result *Result
}

// Open starts a new Trade from a signal entry and derived TP/SL levels.
func Open(symbol, timeframe string, dir tpsl.Direction, entry float64, at time.Time, presetIdx int, levels tpsl.Levels, cfg tpsl.Config) *Trade {
	telemetry.IncTradeOpened(dir.String())
	return &Trade{
		ID:                uuid.NewString(),
		Symbol:            symbol,
		Timeframe:         timeframe,
		Direction:         dir,
		EntryPrice:        entry,
		EntryTime:         at,
		PresetIdx:         presetIdx,
		Levels:            levels,
		cfg:               cfg,
		Status:            Open,
		PositionRemaining: 100,
		MaxPrice:          entry,
		MinPrice:          entry,
	}
}

// CheckBar advances the state machine by one bar, per §4.4 steps 1-5:
// extrema update, TP scan (ascending, unhit), cascade/breakeven stop
// update, SL scan, in that fixed order within the bar. Returns the
// events raised (may be empty). Does nothing if the trade is already
// closed.
func (t *Trade) CheckBar(bar candle.Candle) []Event {
	if t.Status != Open {
		return nil
	}
	t.BarCount++
	var events []Event

	// 1. Extrema update.
	if bar.High > t.MaxPrice {
		t.MaxPrice = bar.High
	}
	if bar.Low < t.MinPrice {
		t.MinPrice = bar.Low
	}
	t.updateExcursion(bar)

	// 2. TP scan, ascending, skipping already-hit levels.
	hitThisBar := false
	for i := range t.Levels.TP {
		lvl := &t.Levels.TP[i]
		if lvl.Hit {
			continue
		}
		hit := false
		if t.Direction == tpsl.Long {
			hit = bar.High >= lvl.Price
		} else {
			hit = bar.Low <= lvl.Price
		}
		if !hit {
			continue
		}
		lvl.Hit = true
		lvl.HitPrice = lvl.Price
		hitThisBar = true
		t.hitCount++

		closedFraction := lvl.PositionWeight
		if closedFraction > t.PositionRemaining {
			closedFraction = t.PositionRemaining
		}
		pnlPct := pnlPercent(t.Direction, t.EntryPrice, lvl.Price)
		th := TPHit{Index: lvl.Index, Price: lvl.Price, HitPrice: lvl.Price, Timestamp: bar.Time, ClosedFraction: closedFraction, PnLPercent: pnlPct}
		t.TPHits = append(t.TPHits, th)
		t.PositionRemaining -= closedFraction
		events = append(events, Event{Kind: EventTPHit, TPIndex: lvl.Index, Price: lvl.Price, Timestamp: bar.Time})
		telemetry.IncTPHit(strconv.Itoa(lvl.Index))

		if lvl.Index == 6 || t.PositionRemaining <= 1e-9 {
			t.close(ClosedTP, lvl.Price, bar.Time)
			events = append(events, Event{Kind: EventClosed, Reason: ClosedTP.String(), Price: lvl.Price, Timestamp: bar.Time})
			return events
		}
	}

	// 3. Cascade / breakeven stop update.
	if hitThisBar {
		switch t.cfg.StopManagement {
		case tpsl.StopCascade:
			candidate := tpsl.CascadeSL(t.Levels, t.hitCount)
			newSL := tpsl.Tighten(t.Direction, t.Levels.CurrentSL, candidate)
			if newSL != t.Levels.CurrentSL {
				old := t.Levels.CurrentSL
				t.Levels.CurrentSL = newSL
				events = append(events, Event{Kind: EventSLMoved, OldSL: old, NewSL: newSL, Timestamp: bar.Time})
				telemetry.IncSLMove("cascade")
			}
		case tpsl.StopBreakeven:
			if !t.beFired && t.hitCount >= t.cfg.BreakevenAfter {
				old := t.Levels.CurrentSL
				newSL := tpsl.BreakevenSL(t.Levels, t.hitCount, t.cfg.BreakevenAfter, old)
				if newSL != old {
					t.Levels.CurrentSL = newSL
					t.beFired = true
					events = append(events, Event{Kind: EventBreakeven, OldSL: old, NewSL: newSL, Timestamp: bar.Time})
					telemetry.IncSLMove("breakeven")
				}
			}
		}
	}

	// 4. SL scan.
	slHit := false
	if t.Direction == tpsl.Long {
		slHit = bar.Low <= t.Levels.CurrentSL
	} else {
		slHit = bar.High >= t.Levels.CurrentSL
	}
	if slHit {
		t.close(ClosedSL, t.Levels.CurrentSL, bar.Time)
		events = append(events, Event{Kind: EventClosed, Reason: ClosedSL.String(), Price: t.Levels.CurrentSL, Timestamp: bar.Time})
	}
	return events
}

// CloseBySignal closes the trade at closePrice because an opposite
// signal fired (§4.7 step 3, §8 scenario S3).
func (t *Trade) CloseBySignal(closePrice float64, at time.Time) {
	if t.Status != Open {
		return
	}
	t.close(ClosedBySignal, closePrice, at)
}

// CloseManual closes any still-open trade at series end (§4.7 step 4).
func (t *Trade) CloseManual(closePrice float64, at time.Time) {
	if t.Status != Open {
		return
	}
	t.close(ClosedManual, closePrice, at)
}

func (t *Trade) updateExcursion(bar candle.Candle) {
	favorable := pnlPercent(t.Direction, t.EntryPrice, t.MaxPrice)
	adverse := pnlPercent(t.Direction, t.EntryPrice, t.MinPrice)
	if t.Direction == tpsl.Short {
		favorable = pnlPercent(t.Direction, t.EntryPrice, t.MinPrice)
		adverse = pnlPercent(t.Direction, t.EntryPrice, t.MaxPrice)
	}
	if favorable > t.MaxProfitPercent {
		t.MaxProfitPercent = favorable
	}
	if adverse < t.MaxDrawdownPercent {
		t.MaxDrawdownPercent = adverse
	}
}

func (t *Trade) close(status Status, exitPrice float64, at time.Time) {
	t.Status = status
	telemetry.IncTradeClosed(status.String())
	var total float64
	for _, h := range t.TPHits {
		total += h.ClosedFraction / 100 * h.PnLPercent
	}
	exitPnl := pnlPercent(t.Direction, t.EntryPrice, exitPrice)
	total += t.PositionRemaining / 100 * exitPnl
	total = math.Round(total*1e4) / 1e4

	t.Result = &Result{
		Status:             status,
		ExitPrice:          exitPrice,
		ExitTimestamp:      at,
		TotalPnLPercent:    total,
		TPHits:             t.TPHits,
		MaxProfitPercent:   t.MaxProfitPercent,
		MaxDrawdownPercent: t.MaxDrawdownPercent,
		DurationBars:       t.BarCount,
	}
}

// pnlPercent is the signed percent move from entry to price for dir.
func pnlPercent(dir tpsl.Direction, entry, price float64) float64 {
	pct := (price - entry) / entry * 100
	if dir == tpsl.Short {
		pct = -pct
	}
	return pct
}

// ReachedTP reports whether the trade's life ever hit TP index k (1..6),
// used by internal/stats for the per-TP-level win rate.
func (t *Trade) ReachedTP(k int) bool {
	for _, h := range t.TPHits {
		if h.Index == k {
			return true
		}
	}
	return false
}
