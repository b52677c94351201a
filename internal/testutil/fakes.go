// Package testutil provides in-memory fakes of the external package's
// interfaces, shared across package tests: full historical-plus-
// streaming fakes rather than a single mutable price.
package testutil

import (
	"context"
	"fmt"
	"sync"
	"time"

	"github.com/lucidquant/velas-engine/internal/candle"
	"github.com/lucidquant/velas-engine/internal/external"
)

// FakeMarketData is a deterministic, no-network MarketDataSource backed
// by an in-memory candle series.
type FakeMarketData struct {
	mu     sync.Mutex
	Series candle.Series
}

func NewFakeMarketData(series candle.Series) *FakeMarketData {
	return &FakeMarketData{Series: series}
}

func (f *FakeMarketData) Name() string { return "fake" }

func (f *FakeMarketData) GetKlines(ctx context.Context, symbol, interval string, startMs, endMs int64) (candle.Series, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	start := time.UnixMilli(startMs).UTC()
	end := time.UnixMilli(endMs).UTC()
	return f.Series.Slice(start, end), nil
}

func (f *FakeMarketData) Stream(ctx context.Context, symbol, interval string, onBar func(external.Bar)) error {
	f.mu.Lock()
	series := append(candle.Series(nil), f.Series...)
	f.mu.Unlock()
	for _, c := range series {
		select {
		case <-ctx.Done():
			return ctx.Err()
		default:
		}
		onBar(external.Bar{Symbol: symbol, Interval: interval, OpenTime: c.Time, Open: c.Open, High: c.High, Low: c.Low, Close: c.Close, Volume: c.Volume, IsClosed: true})
	}
	return nil
}

// FakeStateStore is an in-memory StateStore for live-tracker tests.
type FakeStateStore struct {
	mu        sync.Mutex
	positions map[string][]byte
	settings  map[string]string
	Events    []string
}

func NewFakeStateStore() *FakeStateStore {
	return &FakeStateStore{positions: map[string][]byte{}, settings: map[string]string{}}
}

func (s *FakeStateStore) SavePosition(ctx context.Context, symbol string, data []byte) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.positions[symbol] = data
	return nil
}

func (s *FakeStateStore) DeletePosition(ctx context.Context, symbol string) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	delete(s.positions, symbol)
	return nil
}

func (s *FakeStateStore) GetOpenPositions(ctx context.Context) (map[string][]byte, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	out := make(map[string][]byte, len(s.positions))
	for k, v := range s.positions {
		out[k] = v
	}
	return out, nil
}

func (s *FakeStateStore) SaveSignal(ctx context.Context, id string, data []byte) error { return nil }
func (s *FakeStateStore) UpdateSignalStatus(ctx context.Context, id, status string) error {
	return nil
}
func (s *FakeStateStore) SaveTradeHistory(ctx context.Context, data []byte) error { return nil }

func (s *FakeStateStore) SetSetting(ctx context.Context, key, value string) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.settings[key] = value
	return nil
}

func (s *FakeStateStore) GetSetting(ctx context.Context, key string) (string, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	v, ok := s.settings[key]
	if !ok {
		return "", fmt.Errorf("setting %q not found", key)
	}
	return v, nil
}

func (s *FakeStateStore) LogEvent(ctx context.Context, kind string, data []byte) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.Events = append(s.Events, kind)
	return nil
}

var (
	_ external.MarketDataSource = (*FakeMarketData)(nil)
	_ external.StateStore       = (*FakeStateStore)(nil)
)
