package feed

import (
	"context"
	"io"
	"log/slog"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/EthanAlgoX/Polymarket-TradeBot/internal/domain"
	"github.com/EthanAlgoX/Polymarket-TradeBot/internal/platform/polymarket"
	"github.com/EthanAlgoX/Polymarket-TradeBot/internal/service"
	"github.com/EthanAlgoX/Polymarket-TradeBot/internal/strategy"
)

func testLogger() *slog.Logger {
	return slog.New(slog.NewTextHandler(io.Discard, nil))
}

type memPriceCache struct{}

func (memPriceCache) SetPrice(context.Context, string, float64, time.Time) error { return nil }
func (memPriceCache) GetPrice(context.Context, string) (float64, time.Time, error) {
	return 0, time.Time{}, domain.ErrNotFound
}
func (memPriceCache) GetPrices(context.Context, []string) (map[string]float64, error) {
	return nil, nil
}

type memBookCache struct {
	books map[string]domain.OrderbookSnapshot
}

func (m *memBookCache) SetSnapshot(_ context.Context, assetID string, snap domain.OrderbookSnapshot) error {
	m.books[assetID] = snap
	return nil
}

func (m *memBookCache) GetSnapshot(_ context.Context, assetID string) (domain.OrderbookSnapshot, error) {
	snap, ok := m.books[assetID]
	if !ok {
		return domain.OrderbookSnapshot{}, domain.ErrNotFound
	}
	return snap, nil
}

func (m *memBookCache) UpdateLevel(context.Context, string, string, float64, float64) error {
	return nil
}

func (m *memBookCache) GetBBO(context.Context, string) (float64, float64, error) { return 0, 0, nil }

type memBus struct{}

func (memBus) Publish(context.Context, string, []byte) error { return nil }
func (memBus) Subscribe(context.Context, string) (<-chan []byte, error) {
	return nil, nil
}
func (memBus) StreamAppend(context.Context, string, []byte) error { return nil }
func (memBus) StreamRead(context.Context, string, string, int) ([]domain.StreamMessage, error) {
	return nil, nil
}

type markRecorder struct {
	marks map[string]float64
}

func (m *markRecorder) UpdatePrice(_, tokenID string, price float64) {
	m.marks[tokenID] = price
}

func snapFor(assetID string, bid, ask float64, ts time.Time) domain.OrderbookSnapshot {
	return domain.OrderbookSnapshot{
		AssetID:   assetID,
		Bids:      []domain.PriceLevel{{Price: bid, Size: 100}},
		Asks:      []domain.PriceLevel{{Price: ask, Size: 100}},
		BestBid:   bid,
		BestAsk:   ask,
		MidPrice:  (bid + ask) / 2,
		Timestamp: ts,
	}
}

// A book update for the active market marks both open-position tokens with
// their latest bids once a full two-sided quote can be built.
func TestFeedMarksPositionsOnQuote(t *testing.T) {
	prices := service.NewPriceService(memPriceCache{}, &memBookCache{books: map[string]domain.OrderbookSnapshot{}}, memBus{}, testLogger())
	engine := strategy.NewEngine(strategy.NewRegistry(), make(chan domain.TradeSignal, 8), testLogger())
	marks := &markRecorder{marks: map[string]float64{}}

	ws := polymarket.NewWSClient("wss://example.invalid/ws", testLogger())
	f := New(ws, prices, engine, marks, testLogger())
	f.active = domain.MarketConfig{
		MarketID:    "mkt-1",
		ConditionID: "0xcond",
		UpTokenID:   "tok-up",
		DownTokenID: "tok-down",
	}

	now := time.Now()
	// Only one side cached: no paired quote yet, so no marks.
	f.onBook(snapFor("tok-up", 0.44, 0.46, now))
	assert.Empty(t, marks.marks)

	f.onBook(snapFor("tok-down", 0.53, 0.55, now))
	require.Len(t, marks.marks, 2)
	assert.InDelta(t, 0.44, marks.marks["tok-up"], 1e-9)
	assert.InDelta(t, 0.53, marks.marks["tok-down"], 1e-9)
}

// Updates for tokens outside the active market never reach the marker.
func TestFeedIgnoresForeignTokens(t *testing.T) {
	prices := service.NewPriceService(memPriceCache{}, &memBookCache{books: map[string]domain.OrderbookSnapshot{}}, memBus{}, testLogger())
	engine := strategy.NewEngine(strategy.NewRegistry(), make(chan domain.TradeSignal, 8), testLogger())
	marks := &markRecorder{marks: map[string]float64{}}

	ws := polymarket.NewWSClient("wss://example.invalid/ws", testLogger())
	f := New(ws, prices, engine, marks, testLogger())
	f.active = domain.MarketConfig{
		MarketID:    "mkt-1",
		ConditionID: "0xcond",
		UpTokenID:   "tok-up",
		DownTokenID: "tok-down",
	}

	f.onBook(snapFor("tok-other", 0.10, 0.12, time.Now()))
	assert.Empty(t, marks.marks)
}
