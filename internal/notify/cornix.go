// Package notify formats trading signals and tracker events for the
// notification transport.
package notify

import (
	"fmt"
	"strings"

	"github.com/lucidquant/velas-engine/internal/tpsl"
)

var quoteSuffixes = []string{"USDT", "BUSD", "USDC", "BTC", "ETH"}

// FormatSymbol inserts a slash between base and quote, e.g. "BTCUSDT" ->
// "BTC/USDT".
func FormatSymbol(symbol string) string {
	for _, q := range quoteSuffixes {
		if strings.HasSuffix(symbol, q) && len(symbol) > len(q) {
			return symbol[:len(symbol)-len(q)] + "/" + q
		}
	}
	return symbol
}

// FormatPrice applies the §6 precision tiers: 1 decimal for >=10000, 2
// for >=100, 4 for >=1, 6 otherwise.
func FormatPrice(price float64) string {
	switch {
	case price >= 10000:
		return fmt.Sprintf("%.1f", price)
	case price >= 100:
		return fmt.Sprintf("%.2f", price)
	case price >= 1:
		return fmt.Sprintf("%.4f", price)
	default:
		return fmt.Sprintf("%.6f", price)
	}
}

// TradingSignal is the formatter's input: a trade-ready signal with
// concrete TP/SL prices (as opposed to signal.Signal, which only carries
// the trigger that produced it).
type TradingSignal struct {
	Symbol       string
	Direction    tpsl.Direction
	EntryPrice   float64
	StopLoss     float64
	TakeProfits  []float64 // ascending index order
	Leverage     int
	Timeframe    string
	PresetID     string
}

func sideLabel(dir tpsl.Direction) string {
	if dir == tpsl.Short {
		return "Short"
	}
	return "Long"
}

// FormatNewSignal renders the exact §6 multi-line block: symbol with a
// slash, "Signal Type" header, leverage line, Entry Zone, numbered
// Take-Profit Targets, and a single-line Stop Targets section.
func FormatNewSignal(s TradingSignal) string {
	leverage := s.Leverage
	if leverage <= 0 {
		leverage = 10
	}
	lines := []string{
		fmt.Sprintf("⚡⚡ #%s ⚡⚡", FormatSymbol(s.Symbol)),
		"",
		fmt.Sprintf("Signal Type: Regular (%s)", sideLabel(s.Direction)),
		"",
		fmt.Sprintf("Leverage: Cross (%dX)", leverage),
		"",
		"Entry Zone:",
		FormatPrice(s.EntryPrice),
		"",
		"Take-Profit Targets:",
	}
	for i, tp := range s.TakeProfits {
		lines = append(lines, fmt.Sprintf("%d) %s", i+1, FormatPrice(tp)))
	}
	lines = append(lines, "", "Stop Targets:", fmt.Sprintf("1) %s", FormatPrice(s.StopLoss)))
	return strings.Join(lines, "\n")
}

// TPHitEvent is the input to FormatTPHit (supplemented feature).
type TPHitEvent struct {
	Symbol                string
	Direction             tpsl.Direction
	TPLevel               int
	TPPrice               float64
	PnLPercent            float64
	PositionClosedPercent float64
	RemainingPercent      float64
	NewSLPrice            float64
	SLMovedToBreakeven    bool
}

// FormatTPHit renders a take-profit-hit notification.
func FormatTPHit(e TPHitEvent) string {
	sign := ""
	if e.PnLPercent >= 0 {
		sign = "+"
	}
	lines := []string{
		fmt.Sprintf("✅ TP%d HIT — %s %s", e.TPLevel, FormatSymbol(e.Symbol), strings.ToUpper(sideLabel(e.Direction))),
		fmt.Sprintf("Closed %.0f%% at %s (%s%.1f%%)", e.PositionClosedPercent, FormatPrice(e.TPPrice), sign, e.PnLPercent),
	}
	if e.NewSLPrice != 0 {
		if e.SLMovedToBreakeven {
			lines = append(lines, fmt.Sprintf("SL moved: -> %s (breakeven)", FormatPrice(e.NewSLPrice)))
		} else {
			lines = append(lines, fmt.Sprintf("SL moved: -> %s", FormatPrice(e.NewSLPrice)))
		}
	}
	if e.RemainingPercent > 0 {
		lines = append(lines, fmt.Sprintf("Remaining: %.0f%% of position", e.RemainingPercent))
	} else {
		lines = append(lines, "Position fully closed")
	}
	return strings.Join(lines, "\n")
}

// SLHitEvent is the input to FormatSLHit (supplemented feature).
type SLHitEvent struct {
	Symbol          string
	Direction       tpsl.Direction
	SLPrice         float64
	PnLPercent      float64
	PnLUSD          float64
	WasAtBreakeven  bool
}

// FormatSLHit renders a stop-loss-hit notification.
func FormatSLHit(e SLHitEvent) string {
	pnlSign, usdSign := "", ""
	if e.PnLPercent >= 0 {
		pnlSign = "+"
	}
	if e.PnLUSD >= 0 {
		usdSign = "+"
	} else {
		usdSign = "-"
	}
	suffix := ""
	if e.WasAtBreakeven {
		suffix = " (breakeven)"
	}
	abs := e.PnLUSD
	if abs < 0 {
		abs = -abs
	}
	lines := []string{
		fmt.Sprintf("⛔ SL HIT%s — %s %s", suffix, FormatSymbol(e.Symbol), strings.ToUpper(sideLabel(e.Direction))),
		fmt.Sprintf("Closed 100%% at %s (%s%.1f%%)", FormatPrice(e.SLPrice), pnlSign, e.PnLPercent),
		fmt.Sprintf("Result: %s$%.2f", usdSign, abs),
	}
	return strings.Join(lines, "\n")
}
