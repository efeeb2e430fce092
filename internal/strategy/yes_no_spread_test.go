package strategy

import (
	"context"
	"log/slog"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/EthanAlgoX/Polymarket-TradeBot/internal/arbitrage"
	"github.com/EthanAlgoX/Polymarket-TradeBot/internal/domain"
)

type stubPositions struct {
	open []domain.Position
}

func (s *stubPositions) OpenByMarket(string) []domain.Position { return s.open }

func testSpread(t *testing.T, cfg SpreadConfig, positions PositionSource) *YesNoSpread {
	t.Helper()
	if cfg.SizePerTrade == 0 {
		cfg.SizePerTrade = 20
	}
	det := arbitrage.NewDetector(arbitrage.DetectorConfig{Fee: 0.01, MinProfit: 0.02}, slog.Default())
	return NewYesNoSpread(cfg, testMarket(), det, positions, slog.Default())
}

func TestYesNoSpread_EntryOnCheapYes(t *testing.T) {
	y := testSpread(t, SpreadConfig{}, nil)
	// YES ask 0.40 vs implied 1 - 0.55 - 0.01 = 0.44: profit 0.04 > 0.02.
	q := domain.Quote{
		MarketID: "mkt-1",
		UpAsk:    0.40, UpAskSize: 100, UpBid: 0.38, UpBidSize: 50,
		DownAsk: 0.58, DownAskSize: 80, DownBid: 0.55, DownBidSize: 60,
		Timestamp: time.Now(),
	}

	sigs, err := y.OnQuote(context.Background(), q)
	require.NoError(t, err)
	require.Len(t, sigs, 1)
	sig := sigs[0]
	assert.Equal(t, domain.SignalEntry, sig.Kind)
	assert.Equal(t, "tok-up", sig.TokenID)
	assert.Equal(t, domain.OrderSideBuy, sig.Side)
	assert.InDelta(t, 0.40, sig.TargetPrice, 1e-9)
	// 20 USDC at 0.40 = 50 shares, within the 60-share liquidity bound.
	assert.InDelta(t, 50, sig.Shares, 1e-9)
}

func TestYesNoSpread_EntryCooldown(t *testing.T) {
	y := testSpread(t, SpreadConfig{Cooldown: 10 * time.Second}, nil)
	base := time.Now()
	q := domain.Quote{
		MarketID: "mkt-1",
		UpAsk:    0.40, UpAskSize: 100, UpBid: 0.38, UpBidSize: 50,
		DownAsk: 0.58, DownAskSize: 80, DownBid: 0.55, DownBidSize: 60,
		Timestamp: base,
	}

	sigs, err := y.OnQuote(context.Background(), q)
	require.NoError(t, err)
	require.Len(t, sigs, 1)

	q.Timestamp = base.Add(2 * time.Second)
	sigs, err = y.OnQuote(context.Background(), q)
	require.NoError(t, err)
	assert.Empty(t, sigs)
}

func TestYesNoSpread_ExitRules(t *testing.T) {
	now := time.Now()
	tests := []struct {
		name   string
		cfg    SpreadConfig
		pos    domain.Position
		upBid  float64
		reason string
	}{
		{
			name:   "profit target",
			cfg:    SpreadConfig{ProfitTarget: 0.10},
			pos:    domain.Position{EntryPrice: 0.40, Size: 10, EntryTime: now},
			upBid:  0.46,
			reason: "profit_target",
		},
		{
			name:   "stop loss",
			cfg:    SpreadConfig{StopLoss: 0.07},
			pos:    domain.Position{EntryPrice: 0.40, Size: 10, EntryTime: now},
			upBid:  0.36,
			reason: "stop_loss",
		},
		{
			name:   "max holding time",
			cfg:    SpreadConfig{MaxHold: time.Hour},
			pos:    domain.Position{EntryPrice: 0.40, Size: 10, EntryTime: now.Add(-2 * time.Hour)},
			upBid:  0.40,
			reason: "max_holding_time",
		},
		{
			name:   "trailing stop",
			cfg:    SpreadConfig{TrailingStopPct: 0.05},
			pos:    domain.Position{EntryPrice: 0.40, Size: 10, EntryTime: now, HighestPrice: 0.50},
			upBid:  0.47,
			reason: "trailing_stop",
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			tt.pos.MarketID = "mkt-1"
			tt.pos.TokenID = "tok-up"
			y := testSpread(t, tt.cfg, &stubPositions{open: []domain.Position{tt.pos}})

			// Book kept balanced so no fresh entry fires.
			q := domain.Quote{
				MarketID: "mkt-1",
				UpAsk:    tt.upBid + 0.02, UpBid: tt.upBid, UpBidSize: 100, UpAskSize: 100,
				DownAsk: 1 - tt.upBid, DownBid: 1 - tt.upBid - 0.02, DownAskSize: 100, DownBidSize: 100,
				Timestamp: now,
			}
			sigs, err := y.OnQuote(context.Background(), q)
			require.NoError(t, err)
			require.Len(t, sigs, 1)
			assert.Equal(t, domain.SignalExit, sigs[0].Kind)
			assert.Equal(t, tt.reason, sigs[0].Reason)
			assert.True(t, sigs[0].IsSell)
			assert.InDelta(t, 10, sigs[0].Shares, 1e-9)
		})
	}
}

func TestYesNoSpread_NoExitWhenFlat(t *testing.T) {
	y := testSpread(t, SpreadConfig{ProfitTarget: 0.10, StopLoss: 0.07}, &stubPositions{
		open: []domain.Position{{
			MarketID: "mkt-1", TokenID: "tok-up",
			EntryPrice: 0.40, Size: 10, EntryTime: time.Now(),
		}},
	})
	q := domain.Quote{
		MarketID: "mkt-1",
		UpAsk:    0.43, UpBid: 0.41, UpBidSize: 100, UpAskSize: 100,
		DownAsk: 0.59, DownBid: 0.57, DownBidSize: 100, DownAskSize: 100,
		Timestamp: time.Now(),
	}
	sigs, err := y.OnQuote(context.Background(), q)
	require.NoError(t, err)
	assert.Empty(t, sigs)
}
