// Package indicator implements per-bar channel / midpoint / ATR / stddev
// / entry-trigger computation over an OHLCV series for one of the 60
// published indicator presets. It is a pure function of its input; it
// holds no state across calls.
package indicator

import (
	"math"

	"github.com/lucidquant/velas-engine/internal/candle"
	"github.com/lucidquant/velas-engine/internal/verr"
)

// Preset is an immutable channel-breakout parameterization.
// Index selects one of the 60 canonical rows (see internal/preset).
type Preset struct {
	Index int
	I1    int     // channel lookback (bars), >=1
	I2    int     // stddev lookback (bars), >=1
	I3    float64 // stddev multiplier
	I4    float64 // ATR multiplier
	I5    float64 // midpoint percent offset
}

const atrPeriod = 14

// Bar holds the computed indicator values for one candle. Values are
// math.NaN() before the preset's warm-up requirement is met.
type Bar struct {
	HighChannel  float64
	LowChannel   float64
	MidChannel   float64
	ATR          float64
	Stdev        float64
	LongTrigger  float64
	ShortTrigger float64
}

// Compute returns one Bar per input candle. Returns InsufficientData if
// fewer than max(i1, i2, 14) bars are supplied.
func Compute(c candle.Series, p Preset) ([]Bar, error) {
	minBars := p.I1
	if p.I2 > minBars {
		minBars = p.I2
	}
	if atrPeriod > minBars {
		minBars = atrPeriod
	}
	if len(c) < minBars {
		return nil, verr.NewInsufficientData("indicator", len(c), minBars)
	}

	n := len(c)
	out := make([]Bar, n)
	for i := range out {
		out[i] = Bar{HighChannel: math.NaN(), LowChannel: math.NaN(), MidChannel: math.NaN(),
			ATR: math.NaN(), Stdev: math.NaN(), LongTrigger: math.NaN(), ShortTrigger: math.NaN()}
	}

	atr := wilderATR(c)
	stdev := rollingStdev(c.Closes(), p.I2)

	for i := 0; i < n; i++ {
		if i+1 < p.I1 {
			continue
		}
		hi, lo := channel(c, i, p.I1)
		mid := (hi + lo) / 2
		b := Bar{HighChannel: hi, LowChannel: lo, MidChannel: mid, ATR: atr[i], Stdev: stdev[i]}
		if !math.IsNaN(b.ATR) && !math.IsNaN(b.Stdev) {
			b.LongTrigger = mid*(1+p.I5/100) + b.ATR*p.I4 + b.Stdev*p.I3
			b.ShortTrigger = mid*(1-p.I5/100) - b.ATR*p.I4 - b.Stdev*p.I3
		}
		out[i] = b
	}
	return out, nil
}

// channel returns (high_channel, low_channel) over the i1 bars ending
// at index i (inclusive).
func channel(c candle.Series, i, i1 int) (float64, float64) {
	hi, lo := math.Inf(-1), math.Inf(1)
	for k := i - i1 + 1; k <= i; k++ {
		if c[k].High > hi {
			hi = c[k].High
		}
		if c[k].Low < lo {
			lo = c[k].Low
		}
	}
	return hi, lo
}

// wilderATR computes the Wilder-smoothed Average True Range with the
// fixed 14-bar period mandated by §4.1, alpha = 1/14, NaN before the
// 14th bar.
func wilderATR(c candle.Series) []float64 {
	n := len(c)
	out := make([]float64, n)
	for i := range out {
		out[i] = math.NaN()
	}
	if n == 0 {
		return out
	}
	tr := make([]float64, n)
	tr[0] = c[0].High - c[0].Low
	for i := 1; i < n; i++ {
		h, l, pc := c[i].High, c[i].Low, c[i-1].Close
		tr[i] = math.Max(h-l, math.Max(math.Abs(h-pc), math.Abs(l-pc)))
	}
	if n < atrPeriod {
		return out
	}
	sum := 0.0
	for i := 0; i < atrPeriod; i++ {
		sum += tr[i]
	}
	prev := sum / atrPeriod
	out[atrPeriod-1] = prev
	alpha := 1.0 / atrPeriod
	for i := atrPeriod; i < n; i++ {
		prev = prev + alpha*(tr[i]-prev)
		out[i] = prev
	}
	return out
}

// rollingStdev is the rolling sample standard deviation of closes over
// an n-bar window, NaN before n observations are available. A window
// shorter than 2 bars yields 0 at every index.
func rollingStdev(closes []float64, n int) []float64 {
	out := make([]float64, len(closes))
	for i := range out {
		out[i] = math.NaN()
	}
	if n < 2 {
		for i := range out {
			out[i] = 0
		}
		return out
	}
	for i := n - 1; i < len(closes); i++ {
		window := closes[i-n+1 : i+1]
		mean := 0.0
		for _, v := range window {
			mean += v
		}
		mean /= float64(n)
		var ss float64
		for _, v := range window {
			d := v - mean
			ss += d * d
		}
		out[i] = math.Sqrt(ss / float64(n-1))
	}
	return out
}

// RollingStdev exposes the sample-stddev helper for reuse by other
// components (e.g. internal/volatility's ATR-ratio baseline).
func RollingStdev(values []float64, n int) []float64 { return rollingStdev(values, n) }

// WilderSmooth applies Wilder's EMA (alpha = 1/period) to an arbitrary
// series, seeded by the simple mean of the first period observations.
// Shared by RSI/ADX in internal/signal.
func WilderSmooth(values []float64, period int) []float64 {
	out := make([]float64, len(values))
	for i := range out {
		out[i] = math.NaN()
	}
	if len(values) < period || period < 1 {
		return out
	}
	sum := 0.0
	for i := 0; i < period; i++ {
		sum += values[i]
	}
	prev := sum / float64(period)
	out[period-1] = prev
	alpha := 1.0 / float64(period)
	for i := period; i < len(values); i++ {
		prev = prev + alpha*(values[i]-prev)
		out[i] = prev
	}
	return out
}
