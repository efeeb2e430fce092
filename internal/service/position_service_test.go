package service

import (
	"log/slog"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/EthanAlgoX/Polymarket-TradeBot/internal/domain"
)

func testLedger() *PositionService {
	return NewPositionService(nil, slog.Default())
}

func openPos(size, price float64) domain.Position {
	return domain.Position{
		MarketID:   "mkt-1",
		TokenID:    "tok-up",
		Outcome:    "Up",
		Side:       domain.OrderSideBuy,
		EntryPrice: price,
		Size:       size,
	}
}

func TestPositionService_AverageIn(t *testing.T) {
	l := testLedger()
	l.AddPosition(openPos(10, 0.40))
	got := l.AddPosition(openPos(10, 0.60))

	assert.InDelta(t, 0.50, got.EntryPrice, 1e-9)
	assert.InDelta(t, 20, got.Size, 1e-9)
	assert.Equal(t, 1, l.OpenCount())
	// Watermarks span both entries.
	assert.InDelta(t, 0.60, got.HighestPrice, 1e-9)
	assert.InDelta(t, 0.40, got.LowestPrice, 1e-9)
}

func TestPositionService_PartialClose(t *testing.T) {
	l := testLedger()
	l.AddPosition(openPos(20, 0.50))

	closed, err := l.ClosePosition("mkt-1", "tok-up", 0.60, 5)
	require.NoError(t, err)
	assert.InDelta(t, 5, closed.Size, 1e-9)
	assert.InDelta(t, 0.5, closed.RealizedPnL(), 1e-9)

	open := l.Open()
	require.Len(t, open, 1)
	assert.InDelta(t, 15, open[0].Size, 1e-9)
	assert.False(t, open[0].Closed)
}

func TestPositionService_FullClose(t *testing.T) {
	l := testLedger()
	l.AddPosition(openPos(20, 0.50))

	closed, err := l.ClosePosition("mkt-1", "tok-up", 0.45, 0)
	require.NoError(t, err)
	assert.True(t, closed.Closed)
	assert.InDelta(t, 20, closed.Size, 1e-9)
	assert.InDelta(t, -1.0, closed.RealizedPnL(), 1e-9)
	assert.Zero(t, l.OpenCount())

	_, err = l.ClosePosition("mkt-1", "tok-up", 0.45, 0)
	assert.ErrorIs(t, err, domain.ErrNotFound)
}

func TestPositionService_Watermarks(t *testing.T) {
	l := testLedger()
	l.AddPosition(openPos(10, 0.50))

	l.UpdatePrice("mkt-1", "tok-up", 0.70)
	l.UpdatePrice("mkt-1", "tok-up", 0.30)
	l.UpdatePrice("mkt-1", "tok-up", 0.55)

	open := l.Open()
	require.Len(t, open, 1)
	assert.InDelta(t, 0.55, open[0].CurrentPrice, 1e-9)
	assert.InDelta(t, 0.70, open[0].HighestPrice, 1e-9)
	assert.InDelta(t, 0.30, open[0].LowestPrice, 1e-9)
}

func TestPositionService_PortfolioSummary(t *testing.T) {
	l := testLedger()
	l.AddPosition(openPos(10, 0.40))
	down := openPos(10, 0.30)
	down.TokenID = "tok-down"
	l.AddPosition(down)

	l.UpdatePrice("mkt-1", "tok-up", 0.50)

	_, err := l.ClosePosition("mkt-1", "tok-down", 0.35, 0) // +0.5 winner
	require.NoError(t, err)
	other := openPos(10, 0.60)
	other.MarketID = "mkt-2"
	l.AddPosition(other)
	_, err = l.ClosePosition("mkt-2", "tok-up", 0.50, 0) // -1.0 loser
	require.NoError(t, err)

	sum := l.GetPortfolioSummary()
	assert.Equal(t, 1, sum.OpenPositions)
	assert.Equal(t, 2, sum.ClosedPositions)
	assert.InDelta(t, 4.0, sum.TotalInvested, 1e-9)
	assert.InDelta(t, 5.0, sum.CurrentValue, 1e-9)
	assert.InDelta(t, 1.0, sum.UnrealizedPnL, 1e-9)
	assert.InDelta(t, -0.5, sum.RealizedPnL, 1e-9)
	assert.Equal(t, 1, sum.WinningTrades)
	assert.InDelta(t, 0.5, sum.WinRate, 1e-9)
}

func TestPositionService_OpenByMarket(t *testing.T) {
	l := testLedger()
	l.AddPosition(openPos(10, 0.40))
	other := openPos(5, 0.55)
	other.MarketID = "mkt-2"
	l.AddPosition(other)

	got := l.OpenByMarket("mkt-2")
	require.Len(t, got, 1)
	assert.Equal(t, "mkt-2", got[0].MarketID)
}

func TestPositionService_ForceCloseAll(t *testing.T) {
	l := testLedger()
	l.AddPosition(openPos(10, 0.40))
	down := openPos(10, 0.30)
	down.TokenID = "tok-down"
	l.AddPosition(down)
	l.UpdatePrice("mkt-1", "tok-up", 0.45)

	closed := l.ForceCloseAll()
	assert.Len(t, closed, 2)
	assert.Zero(t, l.OpenCount())
	for _, c := range closed {
		assert.True(t, c.Closed)
	}
}
