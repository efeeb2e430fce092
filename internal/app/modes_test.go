package app

import (
	"context"
	"io"
	"log/slog"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/EthanAlgoX/Polymarket-TradeBot/internal/arbitrage"
	"github.com/EthanAlgoX/Polymarket-TradeBot/internal/domain"
	"github.com/EthanAlgoX/Polymarket-TradeBot/internal/service"
	"github.com/EthanAlgoX/Polymarket-TradeBot/internal/strategy"
)

func testLogger() *slog.Logger {
	return slog.New(slog.NewTextHandler(io.Discard, nil))
}

// testEngine returns an engine with no registered strategies: fill fan-out
// becomes a no-op, which is all the sink tests need.
func testEngine() *strategy.Engine {
	return strategy.NewEngine(strategy.NewRegistry(), make(chan domain.TradeSignal, 8), testLogger())
}

func testAppMarket() domain.MarketConfig {
	return domain.MarketConfig{
		MarketID:    "mkt-1",
		ConditionID: "0xcond",
		UpTokenID:   "tok-up",
		DownTokenID: "tok-down",
	}
}

type stubRoundStore struct {
	inserted []domain.Round
}

func (s *stubRoundStore) Insert(_ context.Context, r domain.Round) error {
	s.inserted = append(s.inserted, r)
	return nil
}

func (s *stubRoundStore) GetByID(context.Context, string) (domain.Round, error) {
	return domain.Round{}, domain.ErrNotFound
}

func (s *stubRoundStore) ListRecent(context.Context, int) ([]domain.Round, error) {
	return nil, nil
}

func (s *stubRoundStore) SumProfit(context.Context, time.Time) (float64, error) {
	return 0, nil
}

type stubRecorder struct {
	pnls    []float64
	winners []bool
	markets []string
}

func (r *stubRecorder) RecordTrade(_ context.Context, pnl float64, isWinner bool, marketID string) {
	r.pnls = append(r.pnls, pnl)
	r.winners = append(r.winners, isWinner)
	r.markets = append(r.markets, marketID)
}

func TestFillSinkOpensAndClosesPositions(t *testing.T) {
	ledger := service.NewPositionService(nil, testLogger())
	sink := fillSink{engine: testEngine(), ledger: ledger, logger: testLogger()}
	ctx := context.Background()

	require.NoError(t, sink.HandleFill(ctx, domain.Fill{
		MarketID: "mkt-1", TokenID: "tok-up",
		Side: domain.OrderSideBuy, Price: 0.40, Shares: 50,
	}))
	open := ledger.Open()
	require.Len(t, open, 1)
	assert.InDelta(t, 0.40, open[0].EntryPrice, 1e-9)
	assert.InDelta(t, 50, open[0].Size, 1e-9)

	require.NoError(t, sink.HandleFill(ctx, domain.Fill{
		MarketID: "mkt-1", TokenID: "tok-up",
		Side: domain.OrderSideSell, Price: 0.46, Shares: 50,
	}))
	assert.Zero(t, ledger.OpenCount())

	closed := ledger.Closed()
	require.Len(t, closed, 1)
	assert.InDelta(t, 0.06*50, closed[0].RealizedPnL(), 1e-9)
}

func TestFillSinkToleratesUnknownSell(t *testing.T) {
	ledger := service.NewPositionService(nil, testLogger())
	sink := fillSink{engine: testEngine(), ledger: ledger, logger: testLogger()}

	// A sell for a position the round sink already booked out.
	require.NoError(t, sink.HandleFill(context.Background(), domain.Fill{
		MarketID: "mkt-1", TokenID: "tok-up",
		Side: domain.OrderSideSell, Price: 0.30, Shares: 10,
	}))
	assert.Zero(t, ledger.OpenCount())
}

func TestRoundPnL(t *testing.T) {
	completed := domain.Round{
		Profit: 0.05,
		Leg1:   &domain.Leg{Shares: 100},
		Leg2:   &domain.Leg{Shares: 100},
	}
	assert.InDelta(t, 5.0, roundPnL(completed), 1e-9)

	stopped := domain.Round{
		Profit:            -0.15,
		StopLossTriggered: true,
		Leg1:              &domain.Leg{Shares: 100},
	}
	assert.InDelta(t, -15.0, roundPnL(stopped), 1e-9)

	assert.Zero(t, roundPnL(domain.Round{Profit: 0}))
}

func TestRoundSinkRecordsDollarPnL(t *testing.T) {
	a := &App{logger: testLogger()}
	store := &stubRoundStore{}
	recorder := &stubRecorder{}
	ledger := service.NewPositionService(nil, testLogger())

	// The legs the executor's fills opened during the round.
	ledger.AddPosition(domain.Position{MarketID: "mkt-1", TokenID: "tok-up", EntryPrice: 0.45, Size: 100})
	ledger.AddPosition(domain.Position{MarketID: "mkt-1", TokenID: "tok-down", EntryPrice: 0.50, Size: 100})

	sink := a.roundSink(store, recorder, ledger, nil)
	sink(domain.Round{
		ID:        "round_1",
		MarketID:  "mkt-1",
		Phase:     domain.RoundCompleted,
		Leg1:      &domain.Leg{Side: domain.SideUp, TokenID: "tok-up", Price: 0.45, Shares: 100},
		Leg2:      &domain.Leg{Side: domain.SideDown, TokenID: "tok-down", Price: 0.50, Shares: 100},
		TotalCost: 0.95,
		Profit:    0.05,
	})

	require.Len(t, store.inserted, 1)
	require.Len(t, recorder.pnls, 1)
	assert.InDelta(t, 5.0, recorder.pnls[0], 1e-9)
	assert.True(t, recorder.winners[0])
	assert.Equal(t, "mkt-1", recorder.markets[0])

	// Both legs left the ledger, and the realized sum matches the round.
	assert.Zero(t, ledger.OpenCount())
	var realized float64
	for _, p := range ledger.Closed() {
		realized += p.RealizedPnL()
	}
	assert.InDelta(t, 5.0, realized, 1e-9)
}

func TestRoundSinkStopLossRecordsLoss(t *testing.T) {
	a := &App{logger: testLogger()}
	recorder := &stubRecorder{}
	ledger := service.NewPositionService(nil, testLogger())
	ledger.AddPosition(domain.Position{MarketID: "mkt-1", TokenID: "tok-up", EntryPrice: 0.45, Size: 100})

	sink := a.roundSink(&stubRoundStore{}, recorder, ledger, nil)
	sink(domain.Round{
		ID:                "round_2",
		MarketID:          "mkt-1",
		Phase:             domain.RoundStopLoss,
		StopLossTriggered: true,
		Leg1:              &domain.Leg{Side: domain.SideUp, TokenID: "tok-up", Price: 0.45, Shares: 100},
		TotalCost:         0.45,
		Profit:            -0.15,
	})

	require.Len(t, recorder.pnls, 1)
	assert.InDelta(t, -15.0, recorder.pnls[0], 1e-9)
	assert.False(t, recorder.winners[0])
	assert.Zero(t, ledger.OpenCount())
}

// An entry fill flows through the fill sink into the ledger, and the spread
// strategy's exit rules see the resulting position on the next quote.
func TestEntryFillFeedsSpreadExits(t *testing.T) {
	ledger := service.NewPositionService(nil, testLogger())
	sink := fillSink{engine: testEngine(), ledger: ledger, logger: testLogger()}
	ctx := context.Background()

	require.NoError(t, sink.HandleFill(ctx, domain.Fill{
		MarketID: "mkt-1", TokenID: "tok-up",
		Side: domain.OrderSideBuy, Price: 0.40, Shares: 50,
		Timestamp: time.Now(),
	}))

	detector := arbitrage.NewDetector(arbitrage.DetectorConfig{Fee: 0.01, MinProfit: 0.02}, testLogger())
	spread := strategy.NewYesNoSpread(strategy.SpreadConfig{
		SizePerTrade: 20,
		StopLoss:     0.10,
	}, testAppMarket(), detector, ledger, testLogger())

	// The bid halves: far past the stop-loss, and balanced enough that no
	// fresh entry fires.
	sigs, err := spread.OnQuote(ctx, domain.Quote{
		MarketID: "mkt-1",
		UpAsk:    0.22, UpAskSize: 100, UpBid: 0.20, UpBidSize: 100,
		DownAsk: 0.81, DownAskSize: 100, DownBid: 0.79, DownBidSize: 100,
		Timestamp: time.Now(),
	})
	require.NoError(t, err)
	require.Len(t, sigs, 1)
	assert.Equal(t, domain.SignalExit, sigs[0].Kind)
	assert.Equal(t, "tok-up", sigs[0].TokenID)
	assert.Equal(t, "stop_loss", sigs[0].Reason)
	assert.InDelta(t, 50, sigs[0].Shares, 1e-9)
}
