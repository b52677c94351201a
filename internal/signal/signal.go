// Package signal implements the breakout signal generator, with
// optional volume / RSI / ADX / session filters (fixed or adaptive) and
// TTL expiry.
package signal

import (
	"fmt"
	"math"
	"time"

	"github.com/google/uuid"

	"github.com/lucidquant/velas-engine/internal/candle"
	"github.com/lucidquant/velas-engine/internal/indicator"
	"github.com/lucidquant/velas-engine/internal/telemetry"
	"github.com/lucidquant/velas-engine/internal/tpsl"
)

// State is the generator's single-state position indicator.
type State int

const (
	Flat State = iota
	InLong
	InShort
)

// Strength distinguishes a confirmed trigger cross from a bar merely
// approaching one (supplemented from original_source/core/signals.py's
// PREPARE_OFFSET_PERCENT; informational only, never opens a trade).
type Strength int

const (
	Confirmed Strength = iota
	Approaching
)

// Signal is a directional emission from C2 (§3 Signal).
type Signal struct {
	ID          string
	Timestamp   time.Time
	Symbol      string
	Timeframe   string
	Direction   tpsl.Direction
	EntryPrice  float64
	PresetIndex int

	ChannelHigh, ChannelLow, ChannelMid float64
	Trigger                             float64
	ATR                                 float64

	FilterResults map[string]bool
	Strength      Strength

	TTL       time.Duration
	ExpiresAt time.Time
	Expired   bool
}

// FilterConfig controls which filters run and their fixed or adaptive
// parameters (§4.2).
type FilterConfig struct {
	UseVolumeFilter  bool
	VolumeMultiplier float64
	VolumePeriod     int

	UseRSIFilter  bool
	RSIPeriod     int
	RSILongLevel  float64
	RSIShortLevel float64

	UseADXFilter bool
	ADXPeriod    int
	ADXLevel     float64

	UseSessionFilter bool
	SessionStart     string // "HH:MM" UTC
	SessionEnd       string

	UseAdaptiveFilters bool
	AdaptiveVolCoeff   float64
	AdaptiveRSICoeff   float64
	AdaptiveADXCoeff   float64

	PrepareOffsetPercent float64
	TTL                  time.Duration
}

// DefaultFilterConfig mirrors signals.py's FilterConfig defaults.
func DefaultFilterConfig() FilterConfig {
	return FilterConfig{
		UseVolumeFilter: true, VolumeMultiplier: 1.2, VolumePeriod: 20,
		UseRSIFilter: true, RSIPeriod: 14, RSILongLevel: 50, RSIShortLevel: 50,
		UseADXFilter: true, ADXPeriod: 14, ADXLevel: 25,
		UseSessionFilter: false, SessionStart: "09:00", SessionEnd: "17:00",
		UseAdaptiveFilters: false, AdaptiveVolCoeff: 0.5, AdaptiveRSICoeff: 10.0, AdaptiveADXCoeff: 10.0,
		PrepareOffsetPercent: 0.3,
		TTL:                  30 * time.Minute,
	}
}

// Generate walks bars []indicator.Bar (aligned 1:1 with c) and emits
// Signals per §4.2: a directional signal fires when the raw condition
// crosses into a state different from the current one, subject to all
// enabled filters passing.
func Generate(c candle.Series, bars []indicator.Bar, symbol, timeframe string, presetIdx int, cfg FilterConfig) []Signal {
	if len(c) == 0 || len(c) != len(bars) {
		return nil
	}
	closes := c.Closes()
	volumes := c.Volumes()
	rsi := wilderRSI(closes, cfg.RSIPeriod)
	pdi, mdi, adx := wilderADX(c, cfg.ADXPeriod)
	_ = pdi
	_ = mdi

	var signals []Signal
	state := Flat

	for i := range c {
		b := bars[i]
		if math.IsNaN(b.LongTrigger) || math.IsNaN(b.ShortTrigger) {
			continue
		}
		rawLong := c[i].High > b.LongTrigger
		rawShort := c[i].Low < b.ShortTrigger

		if rawLong && state != InLong {
			if sig, ok := buildSignal(c, bars, i, tpsl.Long, symbol, timeframe, presetIdx, cfg, rsi, adx, volumes, Confirmed); ok {
				signals = append(signals, sig)
				state = InLong
			}
		} else if rawShort && state != InShort {
			if sig, ok := buildSignal(c, bars, i, tpsl.Short, symbol, timeframe, presetIdx, cfg, rsi, adx, volumes, Confirmed); ok {
				signals = append(signals, sig)
				state = InShort
			}
		} else if cfg.PrepareOffsetPercent > 0 {
			// Approaching: opposite-side bar within PrepareOffsetPercent of
			// the trigger it has not yet crossed.
			if state != InShort && !math.IsNaN(b.ShortTrigger) && b.ShortTrigger != 0 {
				dist := (c[i].Low - b.ShortTrigger) / b.ShortTrigger * 100
				if dist > 0 && dist <= cfg.PrepareOffsetPercent {
					signals = append(signals, approachSignal(c[i], b, tpsl.Short, symbol, timeframe, presetIdx))
				}
			}
			if state != InLong && !math.IsNaN(b.LongTrigger) && b.LongTrigger != 0 {
				dist := (b.LongTrigger - c[i].High) / b.LongTrigger * 100
				if dist > 0 && dist <= cfg.PrepareOffsetPercent {
					signals = append(signals, approachSignal(c[i], b, tpsl.Long, symbol, timeframe, presetIdx))
				}
			}
		}
	}
	return signals
}

// FilterSeries holds the per-bar indicator arrays a series' filters
// need, derived once by PrepareFilters for reuse across repeated
// Evaluate calls against the same bars.
type FilterSeries struct {
	rsi     []float64
	adx     []float64
	volumes []float64
}

// PrepareFilters derives the RSI/ADX/volume arrays cfg's filters read,
// so a caller checking many bars against the same series (a full
// backtest pass, or a live tracker's sliding window) only pays for the
// Wilder smoothing once rather than on every Evaluate call.
func PrepareFilters(c candle.Series, cfg FilterConfig) FilterSeries {
	rsi := wilderRSI(c.Closes(), cfg.RSIPeriod)
	_, _, adx := wilderADX(c, cfg.ADXPeriod)
	return FilterSeries{rsi: rsi, adx: adx, volumes: c.Volumes()}
}

// Evaluate checks the raw trigger condition for dir at bar i directly
// against bars[i] — independent of any other bar and any notion of a
// generator-owned position state — and, if it fires, runs it through
// the same filter pipeline Generate uses to build a Confirmed Signal.
// Callers that own the real trade lifecycle (backtest, live tracking)
// call this gated on their own open/closed state rather than relying on
// Generate's self-contained walk to know when a position is flat.
func Evaluate(c candle.Series, bars []indicator.Bar, i int, dir tpsl.Direction, symbol, timeframe string, presetIdx int, cfg FilterConfig, fs FilterSeries) (Signal, bool) {
	if i < 0 || i >= len(c) || i >= len(bars) {
		return Signal{}, false
	}
	b := bars[i]
	if math.IsNaN(b.LongTrigger) || math.IsNaN(b.ShortTrigger) {
		return Signal{}, false
	}
	raw := c[i].High > b.LongTrigger
	if dir == tpsl.Short {
		raw = c[i].Low < b.ShortTrigger
	}
	if !raw {
		return Signal{}, false
	}
	return buildSignal(c, bars, i, dir, symbol, timeframe, presetIdx, cfg, fs.rsi, fs.adx, fs.volumes, Confirmed)
}

func approachSignal(bar candle.Candle, b indicator.Bar, dir tpsl.Direction, symbol, timeframe string, presetIdx int) Signal {
	trigger := b.LongTrigger
	if dir == tpsl.Short {
		trigger = b.ShortTrigger
	}
	telemetry.IncSignal(dir.String(), "approaching")
	return Signal{
		ID: uuid.NewString(), Timestamp: bar.Time, Symbol: symbol, Timeframe: timeframe,
		Direction: dir, EntryPrice: bar.Close, PresetIndex: presetIdx,
		ChannelHigh: b.HighChannel, ChannelLow: b.LowChannel, ChannelMid: b.MidChannel,
		Trigger: trigger, ATR: b.ATR, Strength: Approaching,
	}
}

func buildSignal(c candle.Series, bars []indicator.Bar, i int, dir tpsl.Direction, symbol, timeframe string, presetIdx int, cfg FilterConfig, rsi, adx []float64, volumes []float64, strength Strength) (Signal, bool) {
	b := bars[i]
	results := checkFilters(c, bars, i, dir, cfg, rsi, adx, volumes)
	for _, pass := range results {
		if !pass {
			return Signal{}, false
		}
	}
	trigger := b.LongTrigger
	if dir == tpsl.Short {
		trigger = b.ShortTrigger
	}
	sig := Signal{
		ID: uuid.NewString(), Timestamp: c[i].Time, Symbol: symbol, Timeframe: timeframe,
		Direction: dir, EntryPrice: c[i].Close, PresetIndex: presetIdx,
		ChannelHigh: b.HighChannel, ChannelLow: b.LowChannel, ChannelMid: b.MidChannel,
		Trigger: trigger, ATR: b.ATR, FilterResults: results, Strength: strength,
		TTL: cfg.TTL,
	}
	if cfg.TTL > 0 {
		sig.ExpiresAt = c[i].Time.Add(cfg.TTL)
	}
	telemetry.IncSignal(dir.String(), "confirmed")
	return sig, true
}

// checkFilters evaluates each enabled filter for bar i and direction
// dir. A filter referencing data unavailable at i (e.g. NaN RSI before
// warm-up) "falls back to filter passed" per §4.2's failure clause.
func checkFilters(c candle.Series, bars []indicator.Bar, i int, dir tpsl.Direction, cfg FilterConfig, rsi, adx []float64, volumes []float64) map[string]bool {
	results := map[string]bool{}
	atrRatio := 0.0
	if !math.IsNaN(bars[i].ATR) && c[i].Close != 0 {
		atrRatio = bars[i].ATR / c[i].Close
	}

	if cfg.UseVolumeFilter {
		results["volume"] = checkVolumeFilter(volumes, i, cfg, atrRatio)
	}
	if cfg.UseRSIFilter {
		results["rsi"] = checkRSIFilter(rsi, i, dir, cfg, atrRatio)
	}
	if cfg.UseADXFilter {
		results["adx"] = checkADXFilter(adx, i, cfg, atrRatio)
	}
	if cfg.UseSessionFilter {
		results["session"] = checkSessionFilter(c[i].Time, cfg)
	}
	return results
}

func checkVolumeFilter(volumes []float64, i int, cfg FilterConfig, atrRatio float64) bool {
	period := cfg.VolumePeriod
	if period < 1 || i+1 < period {
		return true
	}
	var sum float64
	for k := i - period + 1; k <= i; k++ {
		sum += volumes[k]
	}
	mean := sum / float64(period)
	mult := cfg.VolumeMultiplier
	if cfg.UseAdaptiveFilters {
		mult = cfg.VolumeMultiplier * (1 + atrRatio*cfg.AdaptiveVolCoeff)
	}
	return volumes[i] > mean*mult
}

func checkRSIFilter(rsi []float64, i int, dir tpsl.Direction, cfg FilterConfig, atrRatio float64) bool {
	if i >= len(rsi) || math.IsNaN(rsi[i]) {
		return true
	}
	longLevel, shortLevel := cfg.RSILongLevel, cfg.RSIShortLevel
	if cfg.UseAdaptiveFilters {
		offset := atrRatio * cfg.AdaptiveRSICoeff
		longLevel = clamp(cfg.RSILongLevel+offset, 0, 100)
		shortLevel = clamp(cfg.RSIShortLevel-offset, 0, 100)
	}
	if dir == tpsl.Long {
		return rsi[i] > longLevel
	}
	return rsi[i] < shortLevel
}

func checkADXFilter(adx []float64, i int, cfg FilterConfig, atrRatio float64) bool {
	if i >= len(adx) || math.IsNaN(adx[i]) {
		return true
	}
	level := cfg.ADXLevel
	if cfg.UseAdaptiveFilters {
		level += atrRatio * cfg.AdaptiveADXCoeff
	}
	return adx[i] > level
}

func checkSessionFilter(t time.Time, cfg FilterConfig) bool {
	start, err1 := time.Parse("15:04", cfg.SessionStart)
	end, err2 := time.Parse("15:04", cfg.SessionEnd)
	if err1 != nil || err2 != nil {
		return true
	}
	wall := t.UTC()
	mins := wall.Hour()*60 + wall.Minute()
	startMins := start.Hour()*60 + start.Minute()
	endMins := end.Hour()*60 + end.Minute()
	return mins >= startMins && mins <= endMins
}

func clamp(v, lo, hi float64) float64 {
	if v < lo {
		return lo
	}
	if v > hi {
		return hi
	}
	return v
}

// wilderRSI computes the Wilder-smoothed RSI over period, NaN during
// warm-up.
func wilderRSI(closes []float64, period int) []float64 {
	n := len(closes)
	out := make([]float64, n)
	for i := range out {
		out[i] = math.NaN()
	}
	if n < period+1 {
		return out
	}
	gains := make([]float64, n)
	losses := make([]float64, n)
	for i := 1; i < n; i++ {
		d := closes[i] - closes[i-1]
		if d > 0 {
			gains[i] = d
		} else {
			losses[i] = -d
		}
	}
	avgGain := indicator.WilderSmooth(gains[1:], period)
	avgLoss := indicator.WilderSmooth(losses[1:], period)
	for i := 0; i < len(avgGain); i++ {
		idx := i + 1
		if math.IsNaN(avgGain[i]) {
			continue
		}
		if avgLoss[i] == 0 {
			out[idx] = 100
			continue
		}
		rs := avgGain[i] / avgLoss[i]
		out[idx] = 100 - 100/(1+rs)
	}
	return out
}

// wilderADX computes +DI, -DI and ADX using Wilder smoothing (§4.2 ADX
// filter; full derivation grounded on signals.py's calculate_adx).
func wilderADX(c candle.Series, period int) (pdi, mdi, adx []float64) {
	n := len(c)
	pdi = nanSlice(n)
	mdi = nanSlice(n)
	adx = nanSlice(n)
	if n < period*2 {
		return
	}
	tr := make([]float64, n)
	plusDM := make([]float64, n)
	minusDM := make([]float64, n)
	for i := 1; i < n; i++ {
		h, l, ph, pl, pc := c[i].High, c[i].Low, c[i-1].High, c[i-1].Low, c[i-1].Close
		tr[i] = math.Max(h-l, math.Max(math.Abs(h-pc), math.Abs(l-pc)))
		upMove := h - ph
		downMove := pl - l
		if upMove > downMove && upMove > 0 {
			plusDM[i] = upMove
		}
		if downMove > upMove && downMove > 0 {
			minusDM[i] = downMove
		}
	}
	smTR := indicator.WilderSmooth(tr[1:], period)
	smPlus := indicator.WilderSmooth(plusDM[1:], period)
	smMinus := indicator.WilderSmooth(minusDM[1:], period)

	dx := nanSlice(len(smTR))
	for i := range smTR {
		idx := i + 1
		if math.IsNaN(smTR[i]) || smTR[i] == 0 {
			continue
		}
		p := 100 * smPlus[i] / smTR[i]
		m := 100 * smMinus[i] / smTR[i]
		pdi[idx] = p
		mdi[idx] = m
		if p+m != 0 {
			dx[i] = 100 * math.Abs(p-m) / (p + m)
		} else {
			dx[i] = 0
		}
	}
	smADX := indicator.WilderSmooth(compact(dx), period)
	// smADX is computed over the compacted (non-leading-NaN) dx values;
	// map back to the original index space.
	offset := firstNonNaN(dx)
	for i, v := range smADX {
		idx := offset + i + 1
		if idx < len(adx) {
			adx[idx] = v
		}
	}
	return
}

func nanSlice(n int) []float64 {
	out := make([]float64, n)
	for i := range out {
		out[i] = math.NaN()
	}
	return out
}

func compact(in []float64) []float64 {
	start := firstNonNaN(in)
	if start < 0 {
		return nil
	}
	return in[start:]
}

func firstNonNaN(in []float64) int {
	for i, v := range in {
		if !math.IsNaN(v) {
			return i
		}
	}
	return -1
}

// String renders a human-readable direction label, used by
// internal/notify and logging.
func (d Signal) String() string {
	dir := "LONG"
	if d.Direction == tpsl.Short {
		dir = "SHORT"
	}
	return fmt.Sprintf("%s %s @%.6f (%s)", d.Symbol, dir, d.EntryPrice, d.Timestamp.Format(time.RFC3339))
}
