// Package stats implements performance metrics computed from a
// closed-trade list, plus the acceptance gate consumed by the
// optimizer, walk-forward, and robustness packages.
package stats

import (
	"math"
	"sort"

	"github.com/lucidquant/velas-engine/internal/trade"
)

// PeriodsPerYear is the default annualization constant for Sharpe/Sortino.
const PeriodsPerYear = 252.0

// Metrics is the full performance summary (§4.8, §3 BacktestResult's
// "computed metrics").
type Metrics struct {
	TotalTrades    int
	WinningTrades  int
	LosingTrades   int
	BreakevenTrades int

	WinRate     float64
	WinRateByTP [6]float64 // fraction (0..100) of trades that reached TP_k

	TotalPnLPercent float64
	AvgWinPercent   float64
	AvgLossPercent  float64
	MaxWinPercent   float64
	MaxLossPercent  float64

	SharpeRatio  float64
	SortinoRatio float64

	MaxDrawdownPercent  float64
	MaxDrawdownDuration int

	ProfitFactor float64
	Expectancy   float64
	RecoveryFactor float64

	AvgTradeDurationBars float64
	AvgRRRatio           float64

	FinalEquity float64
	PeakEquity  float64

	MaxConsecutiveWins   int
	MaxConsecutiveLosses int
}

// AcceptanceThresholds is the configurable acceptance gate (§4.8, used
// directly by C9/C10/C11).
type AcceptanceThresholds struct {
	MinWinRate      float64
	MinWinRateTP1   float64
	MinSharpe       float64
	MaxDrawdown     float64
	MinProfitFactor float64
}

// DefaultAcceptanceThresholds mirrors metrics.py's is_acceptable defaults.
func DefaultAcceptanceThresholds() AcceptanceThresholds {
	return AcceptanceThresholds{MinWinRate: 40, MinWinRateTP1: 70, MinSharpe: 1.0, MaxDrawdown: 15, MinProfitFactor: 1.5}
}

// IsAcceptable evaluates m against thresholds, returning pass/fail plus
// the list of violated criteria (never an error — an acceptance failure
// is reported data, per §7).
func IsAcceptable(m Metrics, th AcceptanceThresholds) (bool, []string) {
	var violations []string
	if m.WinRate < th.MinWinRate {
		violations = append(violations, "win_rate")
	}
	if m.WinRateByTP[0] < th.MinWinRateTP1 {
		violations = append(violations, "win_rate_tp1")
	}
	if m.SharpeRatio < th.MinSharpe {
		violations = append(violations, "sharpe_ratio")
	}
	if math.Abs(m.MaxDrawdownPercent) > th.MaxDrawdown {
		violations = append(violations, "max_drawdown")
	}
	if m.ProfitFactor < th.MinProfitFactor {
		violations = append(violations, "profit_factor")
	}
	return len(violations) == 0, violations
}

// EquityPoint is one sample of the time-indexed equity curve.
type EquityPoint struct {
	Index           int
	Equity          float64
	DrawdownPercent float64
}

// CalculateAll computes every Metrics field from the closed-trade list,
// sorted by exit timestamp. initialCapital seeds the equity curve.
func CalculateAll(trades []*trade.Trade, initialCapital float64) Metrics {
	closed := closedTrades(trades)
	var m Metrics
	m.TotalTrades = len(closed)
	if m.TotalTrades == 0 {
		return m
	}

	var returns []float64
	var wins, losses []float64
	for _, t := range closed {
		r := t.Result.TotalPnLPercent
		returns = append(returns, r)
		switch {
		case r > 0:
			m.WinningTrades++
			wins = append(wins, r)
		case r < 0:
			m.LosingTrades++
			losses = append(losses, r)
		default:
			m.BreakevenTrades++
		}
	}
	m.WinRate = float64(m.WinningTrades) / float64(m.TotalTrades) * 100

	for k := 1; k <= 6; k++ {
		reached := 0
		for _, t := range closed {
			if t.ReachedTP(k) {
				reached++
			}
		}
		m.WinRateByTP[k-1] = float64(reached) / float64(m.TotalTrades) * 100
	}

	m.TotalPnLPercent = sum(returns)
	m.AvgWinPercent = mean(wins)
	m.AvgLossPercent = mean(losses)
	m.MaxWinPercent = maxOf(wins)
	m.MaxLossPercent = minOf(losses)

	m.SharpeRatio = sharpe(returns)
	m.SortinoRatio = sortino(returns)

	equity, dd, ddDur := equityCurve(closed, initialCapital)
	m.MaxDrawdownPercent = dd
	m.MaxDrawdownDuration = ddDur
	m.FinalEquity = equity[len(equity)-1].Equity
	m.PeakEquity = peak(equity)

	m.ProfitFactor = profitFactor(returns)
	m.Expectancy = (m.WinRate/100)*m.AvgWinPercent + ((100-m.WinRate)/100)*m.AvgLossPercent
	if dd != 0 {
		m.RecoveryFactor = m.TotalPnLPercent / math.Abs(dd)
	}

	var totalBars int
	for _, t := range closed {
		totalBars += t.Result.DurationBars
	}
	m.AvgTradeDurationBars = float64(totalBars) / float64(m.TotalTrades)

	winCount, lossCount := maxStreaks(returns)
	m.MaxConsecutiveWins = winCount
	m.MaxConsecutiveLosses = lossCount

	return m
}

func closedTrades(trades []*trade.Trade) []*trade.Trade {
	out := make([]*trade.Trade, 0, len(trades))
	for _, t := range trades {
		if t.Result != nil {
			out = append(out, t)
		}
	}
	sort.Slice(out, func(i, j int) bool { return out[i].Result.ExitTimestamp.Before(out[j].Result.ExitTimestamp) })
	return out
}

func sum(v []float64) float64 {
	var s float64
	for _, x := range v {
		s += x
	}
	return s
}

func mean(v []float64) float64 {
	if len(v) == 0 {
		return 0
	}
	return sum(v) / float64(len(v))
}

func maxOf(v []float64) float64 {
	if len(v) == 0 {
		return 0
	}
	m := v[0]
	for _, x := range v {
		if x > m {
			m = x
		}
	}
	return m
}

func minOf(v []float64) float64 {
	if len(v) == 0 {
		return 0
	}
	m := v[0]
	for _, x := range v {
		if x < m {
			m = x
		}
	}
	return m
}

func stddevSample(v []float64) float64 {
	n := len(v)
	if n < 2 {
		return 0
	}
	mu := mean(v)
	var ss float64
	for _, x := range v {
		d := x - mu
		ss += d * d
	}
	return math.Sqrt(ss / float64(n-1))
}

func sharpe(returns []float64) float64 {
	sd := stddevSample(returns)
	if sd == 0 {
		return 0
	}
	return mean(returns) / sd * math.Sqrt(PeriodsPerYear)
}

func sortino(returns []float64) float64 {
	var negative []float64
	for _, r := range returns {
		if r < 0 {
			negative = append(negative, r)
		}
	}
	if len(negative) == 0 {
		return math.Inf(1)
	}
	sd := stddevSample(negative)
	if sd == 0 {
		return math.Inf(1)
	}
	return mean(returns) / sd * math.Sqrt(PeriodsPerYear)
}

func profitFactor(returns []float64) float64 {
	var gross, loss float64
	for _, r := range returns {
		if r > 0 {
			gross += r
		} else {
			loss += -r
		}
	}
	if loss == 0 {
		if gross > 0 {
			return math.Inf(1)
		}
		return 0
	}
	return gross / loss
}

// equityCurve compounds initialCapital by each trade's return in order,
// tracking the running peak and percent drawdown (§4.8).
func equityCurve(closed []*trade.Trade, initialCapital float64) ([]EquityPoint, float64, int) {
	equity := initialCapital
	peak := initialCapital
	maxDD := 0.0
	ddDuration, curDuration := 0, 0
	out := make([]EquityPoint, 0, len(closed)+1)
	out = append(out, EquityPoint{Index: 0, Equity: equity})
	for i, t := range closed {
		equity *= 1 + t.Result.TotalPnLPercent/100
		if equity > peak {
			peak = equity
			curDuration = 0
		} else {
			curDuration++
		}
		dd := 0.0
		if peak != 0 {
			dd = (equity - peak) / peak * 100
		}
		if dd < maxDD {
			maxDD = dd
		}
		if curDuration > ddDuration {
			ddDuration = curDuration
		}
		out = append(out, EquityPoint{Index: i + 1, Equity: equity, DrawdownPercent: dd})
	}
	return out, maxDD, ddDuration
}

func peak(points []EquityPoint) float64 {
	p := points[0].Equity
	for _, pt := range points {
		if pt.Equity > p {
			p = pt.Equity
		}
	}
	return p
}

func maxStreaks(returns []float64) (maxWin, maxLoss int) {
	curWin, curLoss := 0, 0
	for _, r := range returns {
		if r > 0 {
			curWin++
			curLoss = 0
		} else if r < 0 {
			curLoss++
			curWin = 0
		} else {
			curWin, curLoss = 0, 0
		}
		if curWin > maxWin {
			maxWin = curWin
		}
		if curLoss > maxLoss {
			maxLoss = curLoss
		}
	}
	return
}
