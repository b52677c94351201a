package preset

import (
	"os"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/lucidquant/velas-engine/internal/tpsl"
	"github.com/lucidquant/velas-engine/internal/verr"
	"github.com/lucidquant/velas-engine/internal/volatility"
)

func TestAllReturnsSixtyIndexedPresets(t *testing.T) {
	all := All()
	require.Len(t, all, Count)
	for i, p := range all {
		assert.Equal(t, i, p.Index)
		assert.Greater(t, p.I1, 0)
		assert.Greater(t, p.I2, 0)
	}
}

func TestByIndexOutOfRange(t *testing.T) {
	_, err := ByIndex(-1)
	require.Error(t, err)
	var invalid *verr.InvalidInput
	assert.ErrorAs(t, err, &invalid)

	_, err = ByIndex(Count)
	assert.Error(t, err)
}

func TestByIndexMatchesAll(t *testing.T) {
	all := All()
	p, err := ByIndex(5)
	require.NoError(t, err)
	assert.Equal(t, all[5], p)
}

func TestCatalogGetAdaptive(t *testing.T) {
	cat := NewCatalog([]TradingPreset{
		{Symbol: "BTCUSDT", Timeframe: "15m", Regime: "normal", IndicatorIndex: 3, TPSL: tpsl.DefaultConfig()},
		{Symbol: "BTCUSDT", Timeframe: "15m", Regime: "high", IndicatorIndex: 7, TPSL: tpsl.HighVolatilityConfig()},
	})

	p, ok := cat.GetAdaptive("BTCUSDT", "15m", volatility.Normal)
	require.True(t, ok)
	assert.Equal(t, 3, p.IndicatorIndex)

	_, ok = cat.GetAdaptive("ETHUSDT", "15m", volatility.Normal)
	assert.False(t, ok)
}

func TestLoadCatalogRejectsOutOfRangeIndex(t *testing.T) {
	dir := t.TempDir()
	path := dir + "/catalog.yaml"
	content := "presets:\n  - symbol: BTCUSDT\n    timeframe: 15m\n    regime: normal\n    indicator_index: 999\n"
	require.NoError(t, os.WriteFile(path, []byte(content), 0o644))

	_, err := LoadCatalog(path)
	assert.Error(t, err)
}
