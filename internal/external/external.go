// Package external defines the narrow interfaces naming the core's only
// contact with out-of-scope collaborators: the exchange market-data
// client, the columnar candle store, the live-only state store, and the
// notification transport. None of these are implemented here; in-memory
// fakes live in internal/testutil, and production adapters are out of
// scope.
package external

import (
	"context"
	"time"

	"github.com/lucidquant/velas-engine/internal/candle"
)

// Bar is the wire shape a streaming market-data callback delivers.
type Bar struct {
	Symbol   string
	Interval string
	OpenTime time.Time
	Open     float64
	High     float64
	Low      float64
	Close    float64
	Volume   float64
	IsClosed bool
}

// MarketDataSource is the consumed exchange REST/streaming client (§6).
type MarketDataSource interface {
	Name() string
	GetKlines(ctx context.Context, symbol, interval string, startMs, endMs int64) (candle.Series, error)
	Stream(ctx context.Context, symbol, interval string, onBar func(Bar)) error
}

// CandleStore is the consumed on-disk columnar candle storage (§6).
type CandleStore interface {
	Save(ctx context.Context, symbol, interval string, c candle.Series) error
	Append(ctx context.Context, symbol, interval string, c candle.Series) error
	Load(ctx context.Context, symbol, interval string, startMs, endMs int64) (candle.Series, error)
	ListSymbols(ctx context.Context) ([]string, error)
	ListIntervals(ctx context.Context, symbol string) ([]string, error)
}

// StateStore is the consumed live-only key/value façade (§6).
type StateStore interface {
	SavePosition(ctx context.Context, symbol string, data []byte) error
	DeletePosition(ctx context.Context, symbol string) error
	GetOpenPositions(ctx context.Context) (map[string][]byte, error)
	SaveSignal(ctx context.Context, id string, data []byte) error
	UpdateSignalStatus(ctx context.Context, id, status string) error
	SaveTradeHistory(ctx context.Context, data []byte) error
	SetSetting(ctx context.Context, key, value string) error
	GetSetting(ctx context.Context, key string) (string, error)
	LogEvent(ctx context.Context, kind string, data []byte) error
}

// NotificationTransport is the consumed notification transport (§6):
// accepts pre-formatted strings, the core never composes HTTP/WS calls.
type NotificationTransport interface {
	Send(ctx context.Context, text string, priority bool) error
}
