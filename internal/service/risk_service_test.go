package service

import (
	"context"
	"log/slog"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/EthanAlgoX/Polymarket-TradeBot/internal/domain"
)

type fakeDailyStore struct {
	archived []domain.DailyStats
}

func (f *fakeDailyStore) Upsert(_ context.Context, stats domain.DailyStats) error {
	f.archived = append(f.archived, stats)
	return nil
}

func (f *fakeDailyStore) GetByDate(_ context.Context, date string) (domain.DailyStats, error) {
	for _, s := range f.archived {
		if s.Date == date {
			return s, nil
		}
	}
	return domain.DailyStats{}, domain.ErrNotFound
}

func (f *fakeDailyStore) ListRecent(_ context.Context, _ int) ([]domain.DailyStats, error) {
	return f.archived, nil
}

type fakeCounter struct{ n int }

func (f *fakeCounter) OpenCount() int { return f.n }

func testRiskService(cfg RiskConfig) (*RiskService, *time.Time, *fakeDailyStore) {
	daily := &fakeDailyStore{}
	svc := NewRiskService(cfg, &fakeCounter{}, daily, nil, slog.Default())
	clock := time.Date(2026, 8, 31, 12, 0, 0, 0, time.UTC)
	svc.now = func() time.Time { return clock }
	return svc, &clock, daily
}

func testOpportunity() domain.ArbitrageOpportunity {
	return domain.ArbitrageOpportunity{
		ID:              "opp-1",
		MarketID:        "mkt-1",
		TotalCost:       0.97,
		PotentialProfit: 0.02,
		MaxVolume:       100,
	}
}

func TestRiskService_AllGatesPass(t *testing.T) {
	svc, _, _ := testRiskService(RiskConfig{
		MinProfit:        0.01,
		MaxDailyTrades:   10,
		MaxOpenPositions: 5,
		DailyPnLLimit:    -50,
	})
	ok, reason := svc.CheckOpportunity(context.Background(), testOpportunity(), 200)
	assert.True(t, ok)
	assert.Equal(t, domain.RejectNone, reason)
}

func TestRiskService_GateRejections(t *testing.T) {
	tests := []struct {
		name   string
		cfg    RiskConfig
		mutate func(svc *RiskService, clock *time.Time, opp *domain.ArbitrageOpportunity, balance *float64)
		want   domain.RejectReason
	}{
		{
			name: "min trade interval",
			cfg:  RiskConfig{MinTradeInterval: time.Minute, DailyPnLLimit: -50},
			mutate: func(svc *RiskService, clock *time.Time, _ *domain.ArbitrageOpportunity, _ *float64) {
				svc.RecordTrade(context.Background(), 1, true, "")
				*clock = clock.Add(10 * time.Second)
			},
			want: domain.RejectTradeInterval,
		},
		{
			name: "daily trade limit",
			cfg:  RiskConfig{MaxDailyTrades: 1, DailyPnLLimit: -50},
			mutate: func(svc *RiskService, _ *time.Time, _ *domain.ArbitrageOpportunity, _ *float64) {
				svc.RecordTrade(context.Background(), 1, true, "")
			},
			want: domain.RejectDailyTradeLimit,
		},
		{
			name: "max open positions",
			cfg:  RiskConfig{MaxOpenPositions: 2, DailyPnLLimit: -50},
			mutate: func(svc *RiskService, _ *time.Time, _ *domain.ArbitrageOpportunity, _ *float64) {
				svc.positions = &fakeCounter{n: 2}
			},
			want: domain.RejectOpenPositions,
		},
		{
			name: "below min profit",
			cfg:  RiskConfig{MinProfit: 0.05, DailyPnLLimit: -50},
			want: domain.RejectBelowMinProfit,
		},
		{
			name: "insufficient balance",
			cfg:  RiskConfig{DailyPnLLimit: -50},
			mutate: func(_ *RiskService, _ *time.Time, _ *domain.ArbitrageOpportunity, balance *float64) {
				*balance = 10
			},
			want: domain.RejectInsufficientBal,
		},
		{
			name: "no liquidity",
			cfg:  RiskConfig{DailyPnLLimit: -50},
			mutate: func(_ *RiskService, _ *time.Time, opp *domain.ArbitrageOpportunity, _ *float64) {
				opp.MaxVolume = 0
			},
			want: domain.RejectNoLiquidity,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			svc, clock, _ := testRiskService(tt.cfg)
			opp := testOpportunity()
			balance := 200.0
			if tt.mutate != nil {
				tt.mutate(svc, clock, &opp, &balance)
			}
			ok, reason := svc.CheckOpportunity(context.Background(), opp, balance)
			assert.False(t, ok)
			assert.Equal(t, tt.want, reason)
		})
	}
}

func TestRiskService_MarketCooldownAfterLoss(t *testing.T) {
	svc, clock, _ := testRiskService(RiskConfig{
		DailyPnLLimit:  -50,
		MarketCooldown: 5 * time.Minute,
	})
	svc.RecordTrade(context.Background(), -2, false, "mkt-1")

	ok, reason := svc.CheckOpportunity(context.Background(), testOpportunity(), 200)
	assert.False(t, ok)
	assert.Equal(t, domain.RejectMarketCooldown, reason)

	// Another market is unaffected.
	other := testOpportunity()
	other.MarketID = "mkt-2"
	ok, _ = svc.CheckOpportunity(context.Background(), other, 200)
	assert.True(t, ok)

	// Cooldown expires and is purged lazily.
	*clock = clock.Add(6 * time.Minute)
	ok, _ = svc.CheckOpportunity(context.Background(), testOpportunity(), 200)
	assert.True(t, ok)
	assert.Empty(t, svc.Snapshot(context.Background()).CooldownMarkets)
}

func TestRiskService_DrawdownSequence(t *testing.T) {
	svc, _, _ := testRiskService(RiskConfig{DailyPnLLimit: -100})
	ctx := context.Background()

	deltas := []float64{10, 5, -8, -5, 3}
	for _, d := range deltas {
		svc.RecordTrade(ctx, d, d > 0, "")
	}

	snap := svc.Snapshot(ctx)
	assert.InDelta(t, 5, snap.DailyPnL, 1e-9)
	assert.InDelta(t, 15, snap.PeakPnL, 1e-9)
	assert.InDelta(t, 13, snap.MaxDrawdown, 1e-9)
	assert.Equal(t, len(deltas), snap.DailyTradesCount)
}

func TestRiskService_CircuitBreakerLatch(t *testing.T) {
	svc, clock, _ := testRiskService(RiskConfig{
		DailyPnLLimit:   -50,
		BreakerCooldown: time.Hour,
	})
	ctx := context.Background()

	svc.RecordTrade(ctx, -60, false, "")
	ok, reason := svc.CheckOpportunity(ctx, testOpportunity(), 200)
	require.False(t, ok)
	assert.Equal(t, domain.RejectCircuitBreaker, reason)

	// Later profits do not clear the latch.
	svc.RecordTrade(ctx, 100, true, "")
	ok, reason = svc.CheckOpportunity(ctx, testOpportunity(), 200)
	require.False(t, ok)
	assert.Equal(t, domain.RejectCircuitBreaker, reason)

	// The cooldown elapsing auto-resets on the next check.
	*clock = clock.Add(2 * time.Hour)
	ok, _ = svc.CheckOpportunity(ctx, testOpportunity(), 200)
	assert.True(t, ok)
}

func TestRiskService_DayRollover(t *testing.T) {
	svc, clock, daily := testRiskService(RiskConfig{
		DailyPnLLimit:  -50,
		MaxDailyTrades: 3,
	})
	ctx := context.Background()

	svc.RecordTrade(ctx, -60, false, "")
	svc.RecordTrade(ctx, 4, true, "")
	require.True(t, svc.Snapshot(ctx).CircuitBreakerActive)

	*clock = clock.Add(24 * time.Hour)
	snap := svc.Snapshot(ctx)

	assert.False(t, snap.CircuitBreakerActive)
	assert.Zero(t, snap.DailyPnL)
	assert.Zero(t, snap.DailyTradesCount)
	assert.Zero(t, snap.MaxDrawdown)

	require.Len(t, daily.archived, 1)
	got := daily.archived[0]
	assert.Equal(t, "2026-08-31", got.Date)
	assert.InDelta(t, -56, got.PnL, 1e-9)
	assert.Equal(t, 2, got.TradesCount)
	assert.InDelta(t, 60, got.MaxDrawdown, 1e-9)
}

func TestRiskService_CalculateSafeSize(t *testing.T) {
	svc, _, _ := testRiskService(RiskConfig{MaxTradeAmount: 40})
	opp := testOpportunity()
	opp.TotalCost = 0.5
	opp.MaxVolume = 100

	// Liquidity 100, capital cap 40/0.5 = 80, balance 0.95*30/0.5 = 57.
	size := svc.CalculateSafeSize(opp, 30)
	assert.InDelta(t, 57, size, 1e-9)

	// Liquidity binds with a large balance.
	opp.MaxVolume = 20
	size = svc.CalculateSafeSize(opp, 10_000)
	assert.InDelta(t, 20, size, 1e-9)

	// Degenerate cost yields zero.
	opp.TotalCost = 0
	assert.Zero(t, svc.CalculateSafeSize(opp, 10_000))
}
