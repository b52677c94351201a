// Package tpsl implements the six-level take-profit ladder and
// stop-loss configuration, including adaptive percent scaling by ATR or
// stddev.
package tpsl

import "math"

// StopManagement selects how the stop loss moves as TPs are hit.
type StopManagement int

const (
	StopNone StopManagement = iota
	StopBreakeven
	StopCascade
)

// AdaptiveMode selects how TP/SL percents scale with volatility.
type AdaptiveMode int

const (
	AdaptiveOff AdaptiveMode = iota
	AdaptiveByATR
	AdaptiveByStdev
)

// Direction is the trade side a TPSLLevels was built for.
type Direction int

const (
	Long Direction = iota
	Short
)

func (d Direction) String() string {
	if d == Short {
		return "short"
	}
	return "long"
}

// Config is the immutable TP/SL configuration (§3 TPSLConfig).
// TPPercent/TPPosition are six-element ladders, ascending percent,
// weights normalized to sum 100 by NewConfig.
type Config struct {
	TPPercent      [6]float64 `yaml:"tp_percent"`
	TPPosition     [6]float64 `yaml:"tp_position"`
	SLPercent      float64    `yaml:"sl_percent"`
	StopManagement StopManagement `yaml:"stop_management"`
	BreakevenAfter int        `yaml:"breakeven_after"` // TP index 1..6
	Adaptive       AdaptiveMode `yaml:"adaptive_mode"`
	ATRMultiplier  float64    `yaml:"atr_multiplier"`
}

// NewConfig renormalizes TPPosition to sum to 100, matching
// tpsl.py's _normalize_positions (only when off by more than 0.01).
func NewConfig(c Config) Config {
	var sum float64
	for _, w := range c.TPPosition {
		sum += w
	}
	if sum > 0 && math.Abs(sum-100) > 0.01 {
		scale := 100 / sum
		for i := range c.TPPosition {
			c.TPPosition[i] *= scale
		}
	}
	return c
}

// DefaultConfig is the "normal" volatility TP/SL configuration from the
// reference table (TPSL_CONFIG_NORMAL).
func DefaultConfig() Config {
	return NewConfig(Config{
		TPPercent:      [6]float64{1.0, 2.0, 3.0, 4.0, 7.5, 14.0},
		TPPosition:     [6]float64{17, 17, 17, 17, 16, 16},
		SLPercent:      8.5,
		StopManagement: StopCascade,
		BreakevenAfter: 4,
		Adaptive:       AdaptiveOff,
		ATRMultiplier:  1.0,
	})
}

// LowVolatilityConfig mirrors TPSL_CONFIG_LOW.
func LowVolatilityConfig() Config {
	return NewConfig(Config{
		TPPercent:      [6]float64{0.8, 1.6, 2.4, 3.2, 6.0, 11.2},
		TPPosition:     [6]float64{17, 17, 17, 17, 16, 16},
		SLPercent:      6.8,
		StopManagement: StopCascade,
		BreakevenAfter: 4,
	})
}

// HighVolatilityConfig mirrors TPSL_CONFIG_HIGH.
func HighVolatilityConfig() Config {
	return NewConfig(Config{
		TPPercent:      [6]float64{1.3, 2.6, 3.9, 5.2, 9.75, 18.2},
		TPPosition:     [6]float64{17, 17, 17, 17, 16, 16},
		SLPercent:      10.2,
		StopManagement: StopCascade,
		BreakevenAfter: 4,
	})
}

// ForVolatility mirrors get_tpsl_config_for_volatility: low/high/normal
// select the matching canonical config by regime name.
func ForVolatility(regime string) Config {
	switch regime {
	case "low":
		return LowVolatilityConfig()
	case "high":
		return HighVolatilityConfig()
	default:
		return DefaultConfig()
	}
}

// TPLevel is one rung of the ladder, derived for a specific entry.
type TPLevel struct {
	Index          int // 1..6
	Percent        float64
	Price          float64
	PositionWeight float64
	Hit            bool
	HitPrice       float64
}

// Levels is the derived TP/SL state for one trade (§3 TPSLLevels).
// CurrentSL only ever tightens once constructed — see trade.Trade for
// the bar-by-bar mutation that enforces this invariant.
type Levels struct {
	Entry     float64
	Direction Direction
	TP        [6]TPLevel
	InitialSL float64
	CurrentSL float64
}

// CalculateAdaptivePercents scales tp/sl percents by the configured
// adaptive mode. atrRatio is atr/entry; stdevRatio is stdev/entry. If
// the selected adaptive input is zero, falls back to fixed percents
// (§4.3 "If the adaptive input is zero or missing, fall back").
func CalculateAdaptivePercents(cfg Config, atrRatio, stdevRatio float64) (tp [6]float64, sl float64) {
	tp = cfg.TPPercent
	sl = cfg.SLPercent
	var ratio float64
	switch cfg.Adaptive {
	case AdaptiveByATR:
		ratio = atrRatio
	case AdaptiveByStdev:
		ratio = stdevRatio
	default:
		return tp, sl
	}
	if ratio == 0 {
		return tp, sl
	}
	for i, pct := range cfg.TPPercent {
		tp[i] = pct * ratio * cfg.ATRMultiplier * 100
	}
	sl = cfg.SLPercent * ratio * cfg.ATRMultiplier * 100
	return tp, sl
}

// CalculateLevels derives TPSLLevels for a new trade at entry, using
// cfg's percents scaled by the adaptive mode (atrRatio/stdevRatio may
// both be 0 when adaptive mode is off).
func CalculateLevels(cfg Config, entry float64, dir Direction, atrRatio, stdevRatio float64) Levels {
	tpPct, slPct := CalculateAdaptivePercents(cfg, atrRatio, stdevRatio)
	lv := Levels{Entry: entry, Direction: dir}
	sign := 1.0
	if dir == Short {
		sign = -1.0
	}
	for i := 0; i < 6; i++ {
		price := entry * (1 + sign*tpPct[i]/100)
		lv.TP[i] = TPLevel{Index: i + 1, Percent: tpPct[i], Price: price, PositionWeight: cfg.TPPosition[i]}
	}
	slPrice := entry * (1 - sign*slPct/100)
	lv.InitialSL = slPrice
	lv.CurrentSL = slPrice
	return lv
}

// CascadeSL returns the candidate new stop after the hitCount-th TP hit
// under cascade management: entry on the first hit, the previous TP's
// price on subsequent hits (§4.4 step 3).
func CascadeSL(lv Levels, hitCount int) float64 {
	if hitCount <= 1 {
		return lv.Entry
	}
	prevIdx := hitCount - 1 - 1 // TP(n-1), zero-based
	if prevIdx < 0 {
		prevIdx = 0
	}
	if prevIdx >= len(lv.TP) {
		prevIdx = len(lv.TP) - 1
	}
	return lv.TP[prevIdx].Price
}

// Tighten applies monotonic tightening of current SL toward candidate:
// for a long trade SL only rises (max), for a short only falls (min).
func Tighten(dir Direction, current, candidate float64) float64 {
	if dir == Long {
		return math.Max(current, candidate)
	}
	return math.Min(current, candidate)
}

// BreakevenSL returns entry once hitCount reaches beAfter, else current.
func BreakevenSL(lv Levels, hitCount, beAfter int, current float64) float64 {
	if hitCount < beAfter {
		return current
	}
	return Tighten(lv.Direction, current, lv.Entry)
}
