package telemetry

import (
	"testing"

	"github.com/prometheus/client_golang/prometheus/testutil"
	"github.com/stretchr/testify/assert"
)

func TestIncSignalIncrementsLabeledCounter(t *testing.T) {
	before := testutil.ToFloat64(SignalsGenerated.WithLabelValues("long", "confirmed"))
	IncSignal("long", "confirmed")
	after := testutil.ToFloat64(SignalsGenerated.WithLabelValues("long", "confirmed"))
	assert.Equal(t, before+1, after)
}

func TestIncTradeOpenedAndClosedTrackDistinctLabels(t *testing.T) {
	beforeOpen := testutil.ToFloat64(TradesOpened.WithLabelValues("short"))
	beforeClosed := testutil.ToFloat64(TradesClosed.WithLabelValues("closed_sl"))

	IncTradeOpened("short")
	IncTradeClosed("closed_sl")

	assert.Equal(t, beforeOpen+1, testutil.ToFloat64(TradesOpened.WithLabelValues("short")))
	assert.Equal(t, beforeClosed+1, testutil.ToFloat64(TradesClosed.WithLabelValues("closed_sl")))
}

func TestIncTPHitAndSLMoveCounters(t *testing.T) {
	beforeTP := testutil.ToFloat64(TPHits.WithLabelValues("1"))
	beforeSL := testutil.ToFloat64(SLMoves.WithLabelValues("cascade"))

	IncTPHit("1")
	IncSLMove("cascade")

	assert.Equal(t, beforeTP+1, testutil.ToFloat64(TPHits.WithLabelValues("1")))
	assert.Equal(t, beforeSL+1, testutil.ToFloat64(SLMoves.WithLabelValues("cascade")))
}

func TestSetEquitySetsGaugeValue(t *testing.T) {
	SetEquity(12345.67)
	assert.Equal(t, 12345.67, testutil.ToFloat64(Equity))
}

func TestSetVolatilityRegimeFlipsActiveOnly(t *testing.T) {
	regimes := []string{"low", "normal", "high"}
	SetVolatilityRegime("high", regimes)

	assert.Equal(t, 0.0, testutil.ToFloat64(VolatilityRegime.WithLabelValues("low")))
	assert.Equal(t, 0.0, testutil.ToFloat64(VolatilityRegime.WithLabelValues("normal")))
	assert.Equal(t, 1.0, testutil.ToFloat64(VolatilityRegime.WithLabelValues("high")))

	SetVolatilityRegime("normal", regimes)
	assert.Equal(t, 1.0, testutil.ToFloat64(VolatilityRegime.WithLabelValues("normal")))
	assert.Equal(t, 0.0, testutil.ToFloat64(VolatilityRegime.WithLabelValues("high")))
}
