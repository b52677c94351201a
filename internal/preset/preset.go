// Package preset implements the fixed 60-row indicator preset table and
// the (symbol, timeframe, regime) -> trading preset catalog loaded from
// external YAML configuration.
package preset

import (
	"fmt"
	"os"

	"gopkg.in/yaml.v3"

	"github.com/lucidquant/velas-engine/internal/indicator"
	"github.com/lucidquant/velas-engine/internal/tpsl"
	"github.com/lucidquant/velas-engine/internal/verr"
	"github.com/lucidquant/velas-engine/internal/volatility"
)

// velasI1..velasI5 are the 60 published indicator preset rows, carried
// verbatim from the reference implementation's table. Index 0..59 is a
// fixed mapping; never mutate these slices.
var (
	velasI1 = [60]int{40, 50, 55, 60, 65, 70, 80, 90, 60, 55, 50, 45, 40, 35, 30, 150, 150, 200, 40, 200, 200, 200, 30, 20, 40, 15, 100, 110, 120, 130, 140, 160, 180, 100, 80, 75, 65, 55, 25, 18, 10, 12, 15, 20, 25, 30, 35, 75, 95, 180, 220, 250, 300, 320, 350, 400, 450, 500, 260, 280}
	velasI2 = [60]int{10, 11, 12, 14, 14, 14, 14, 15, 16, 16, 15, 16, 15, 15, 14, 14, 14, 14, 13, 14, 14, 14, 14, 14, 14, 14, 14, 14, 14, 14, 14, 14, 14, 16, 12, 13, 12, 13, 13, 12, 8, 9, 10, 12, 14, 16, 18, 20, 21, 22, 18, 20, 14, 16, 12, 8, 18, 20, 10, 14}
	velasI3 = [60]float64{0.3, 0.4, 0.5, 0.6, 0.8, 0.9, 1.0, 1.1, 1.2, 1.3, 1.4, 1.5, 1.6, 1.6, 1.7, 1.8, 2.0, 2.1, 1.1, 1.2, 1.4, 1.6, 2.3, 2.5, 2.7, 3.0, 1.05, 1.15, 1.25, 1.35, 1.45, 1.55, 1.65, 1.35, 0.65, 0.75, 0.55, 1.0, 2.0, 2.7, 0.2, 0.25, 0.35, 0.45, 0.6, 0.7, 0.85, 1.1, 1.3, 1.6, 1.9, 2.2, 2.6, 2.9, 3.2, 3.5, 4.0, 1.05, 0.55, 2.4}
	velasI4 = [60]float64{1.0, 1.1, 1.2, 1.3, 1.4, 1.5, 1.6, 1.7, 1.5, 1.6, 1.7, 1.8, 1.8, 1.9, 2.0, 2.2, 2.4, 2.6, 1.0, 1.6, 1.8, 2.0, 2.6, 3.0, 3.2, 3.5, 1.75, 1.85, 1.95, 2.05, 2.15, 2.25, 2.35, 1.9, 1.4, 1.5, 1.35, 1.55, 2.4, 3.1, 0.9, 1.0, 1.15, 1.25, 1.4, 1.55, 1.7, 1.85, 2.0, 2.2, 2.4, 2.6, 2.9, 3.1, 3.3, 3.5, 4.0, 1.35, 1.6, 2.8}
	velasI5 = [60]float64{1.0, 1.1, 1.2, 1.3, 1.4, 1.5, 1.6, 1.7, 1.5, 1.6, 1.7, 1.8, 1.8, 1.9, 1.5, 1.3, 1.5, 1.8, 1.0, 2.1, 2.4, 2.0, 2.6, 3.0, 3.2, 3.5, 1.75, 1.85, 1.75, 1.65, 1.55, 1.45, 1.55, 1.9, 1.25, 1.35, 1.15, 1.55, 2.2, 3.0, 0.8, 1.0, 1.2, 1.4, 1.6, 1.8, 2.0, 2.2, 2.4, 2.6, 2.8, 3.0, 3.2, 3.5, 3.8, 4.0, 4.2, 1.5, 2.1, 3.6}
)

// Count is the number of canonical indicator presets.
const Count = 60

// All returns the 60 canonical indicator presets, indexed 0..59.
func All() []indicator.Preset {
	out := make([]indicator.Preset, Count)
	for i := 0; i < Count; i++ {
		out[i] = indicator.Preset{Index: i, I1: velasI1[i], I2: velasI2[i], I3: velasI3[i], I4: velasI4[i], I5: velasI5[i]}
	}
	return out
}

// ByIndex returns the indicator preset at idx. Returns InvalidInput if
// idx is outside 0..59.
func ByIndex(idx int) (indicator.Preset, error) {
	if idx < 0 || idx >= Count {
		return indicator.Preset{}, verr.NewInvalidInput("preset_index", fmt.Sprintf("%d outside 0..%d", idx, Count-1))
	}
	return indicator.Preset{Index: idx, I1: velasI1[idx], I2: velasI2[idx], I3: velasI3[idx], I4: velasI4[idx], I5: velasI5[idx]}, nil
}

// TradingPreset binds an indicator preset choice to a TP/SL config for
// one (symbol, timeframe, regime) combination.
type TradingPreset struct {
	Symbol         string             `yaml:"symbol"`
	Timeframe      string             `yaml:"timeframe"`
	Regime         string             `yaml:"regime"` // "low", "normal", "high"
	IndicatorIndex int                `yaml:"indicator_index"`
	TPSL           tpsl.Config        `yaml:"tpsl"`
	Filters        map[string]any     `yaml:"filters,omitempty"`
}

// Catalog is the keyed (symbol, timeframe, regime) -> TradingPreset
// table, loaded once from external YAML and read-only thereafter (§4.6,
// §5 "the preset catalog is read-only after load").
type Catalog struct {
	byKey map[string]TradingPreset
}

type catalogFile struct {
	Presets []TradingPreset `yaml:"presets"`
}

// LoadCatalog reads a YAML document listing trading presets.
func LoadCatalog(path string) (*Catalog, error) {
	raw, err := os.ReadFile(path)
	if err != nil {
		return nil, verr.NewExternalFailure("preset_config_loader", "read", err)
	}
	var doc catalogFile
	if err := yaml.Unmarshal(raw, &doc); err != nil {
		return nil, verr.NewExternalFailure("preset_config_loader", "unmarshal", err)
	}
	cat := &Catalog{byKey: make(map[string]TradingPreset, len(doc.Presets))}
	for _, p := range doc.Presets {
		if p.IndicatorIndex < 0 || p.IndicatorIndex >= Count {
			return nil, verr.NewInvalidInput("indicator_index", fmt.Sprintf("preset for %s/%s/%s references %d", p.Symbol, p.Timeframe, p.Regime, p.IndicatorIndex))
		}
		cat.byKey[key(p.Symbol, p.Timeframe, p.Regime)] = p
	}
	return cat, nil
}

// NewCatalog builds a Catalog directly from trading presets, bypassing
// the YAML loader (used by tests and by callers constructing the
// catalog programmatically).
func NewCatalog(presets []TradingPreset) *Catalog {
	cat := &Catalog{byKey: make(map[string]TradingPreset, len(presets))}
	for _, p := range presets {
		cat.byKey[key(p.Symbol, p.Timeframe, p.Regime)] = p
	}
	return cat
}

func key(symbol, timeframe, regime string) string { return symbol + "|" + timeframe + "|" + regime }

// GetAdaptive returns the trading preset matching (symbol, timeframe,
// regime). regime is typically volatility.Regime.String() from C5.
func (c *Catalog) GetAdaptive(symbol, timeframe string, regime volatility.Regime) (TradingPreset, bool) {
	p, ok := c.byKey[key(symbol, timeframe, regime.String())]
	return p, ok
}
