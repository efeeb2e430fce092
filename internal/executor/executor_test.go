package executor

import (
	"context"
	"log/slog"
	"testing"
	"time"

	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/EthanAlgoX/Polymarket-TradeBot/internal/domain"
	"github.com/EthanAlgoX/Polymarket-TradeBot/internal/strategy"
)

type stubPlacer struct {
	placed  []domain.TradeSignal
	results []domain.OrderResult
}

func (p *stubPlacer) PlaceOrder(_ context.Context, sig domain.TradeSignal) (domain.OrderResult, error) {
	p.placed = append(p.placed, sig)
	if len(p.results) > 0 {
		res := p.results[0]
		p.results = p.results[1:]
		return res, nil
	}
	return domain.OrderResult{
		Success:     true,
		OrderID:     uuid.NewString(),
		Status:      domain.OrderStatusMatched,
		FilledPrice: sig.TargetPrice,
		FilledSize:  sig.Shares,
	}, nil
}

type stubRisk struct {
	reject domain.RejectReason
	size   float64
}

func (r *stubRisk) CheckOpportunity(_ context.Context, _ domain.ArbitrageOpportunity, _ float64) (bool, domain.RejectReason) {
	if r.reject != domain.RejectNone {
		return false, r.reject
	}
	return true, domain.RejectNone
}

func (r *stubRisk) CalculateSafeSize(opp domain.ArbitrageOpportunity, _ float64) float64 {
	if r.size > 0 {
		return r.size
	}
	return opp.MaxVolume
}

type stubBalance struct{ usdc float64 }

func (b *stubBalance) Balance(context.Context) (float64, error) { return b.usdc, nil }

type stubFills struct{ fills []domain.Fill }

func (f *stubFills) HandleFill(_ context.Context, fill domain.Fill) error {
	f.fills = append(f.fills, fill)
	return nil
}

func testExecutor(cfg Config) (*Executor, *stubPlacer, *stubRisk, *stubFills) {
	placer := &stubPlacer{}
	risk := &stubRisk{}
	fills := &stubFills{}
	exec := NewExecutor(nil, placer, risk, &stubBalance{usdc: 1000}, fills, nil, cfg, slog.Default())
	return exec, placer, risk, fills
}

func leg1Signal() domain.TradeSignal {
	return domain.TradeSignal{
		ID:             uuid.NewString(),
		Kind:           domain.SignalLeg1,
		Source:         "dip_arb",
		MarketID:       "mkt-1",
		TokenID:        "tok-up",
		Side:           domain.OrderSideBuy,
		TargetPrice:    0.45,
		Shares:         30,
		ExpectedProfit: 1.2,
		RoundID:        "round_1",
		CreatedAt:      time.Now(),
	}
}

func TestExecutor_PlacesAndNotifiesFill(t *testing.T) {
	exec, placer, _, fills := testExecutor(Config{})
	exec.process(context.Background(), leg1Signal())

	require.Len(t, placer.placed, 1)
	require.Len(t, fills.fills, 1)
	fill := fills.fills[0]
	assert.Equal(t, "round_1", fill.RoundID)
	assert.InDelta(t, 30, fill.Shares, 1e-9)
	assert.InDelta(t, 0.45, fill.Price, 1e-9)
	assert.Len(t, fill.OrderIDs, 1)
}

func TestExecutor_Deduplicates(t *testing.T) {
	exec, placer, _, _ := testExecutor(Config{})
	sig := leg1Signal()
	exec.process(context.Background(), sig)
	exec.process(context.Background(), sig)
	assert.Len(t, placer.placed, 1)
}

func TestExecutor_SkipsExpired(t *testing.T) {
	exec, placer, _, _ := testExecutor(Config{})
	sig := leg1Signal()
	sig.ExpiresAt = time.Now().Add(-time.Second)
	exec.process(context.Background(), sig)
	assert.Empty(t, placer.placed)
}

func TestExecutor_RiskGateRejectsLeg1(t *testing.T) {
	exec, placer, risk, _ := testExecutor(Config{})
	risk.reject = domain.RejectCircuitBreaker
	exec.process(context.Background(), leg1Signal())
	assert.Empty(t, placer.placed)
}

func TestExecutor_Leg2BypassesRiskGate(t *testing.T) {
	exec, placer, risk, fills := testExecutor(Config{})
	risk.reject = domain.RejectCircuitBreaker

	sig := leg1Signal()
	sig.Kind = domain.SignalLeg2
	sig.TokenID = "tok-down"
	exec.process(context.Background(), sig)

	// Hedges must execute even with the breaker latched, and keep their
	// share count so leg2 matches leg1.
	require.Len(t, placer.placed, 1)
	assert.InDelta(t, 30, placer.placed[0].Shares, 1e-9)
	require.Len(t, fills.fills, 1)
}

func TestExecutor_ResizesByRiskGate(t *testing.T) {
	exec, placer, risk, _ := testExecutor(Config{})
	risk.size = 12
	exec.process(context.Background(), leg1Signal())
	require.Len(t, placer.placed, 1)
	assert.InDelta(t, 12, placer.placed[0].Shares, 1e-9)
}

func TestExecutor_SplitsBuyIntoClips(t *testing.T) {
	exec, placer, _, fills := testExecutor(Config{
		Split: strategy.SplitConfig{Chunks: 3},
	})
	exec.process(context.Background(), leg1Signal())

	require.Len(t, placer.placed, 3)
	var total float64
	for _, sig := range placer.placed {
		total += sig.Shares
	}
	assert.InDelta(t, 30, total, 1e-9)

	require.Len(t, fills.fills, 1)
	assert.InDelta(t, 30, fills.fills[0].Shares, 1e-9)
	assert.Len(t, fills.fills[0].OrderIDs, 3)
}

func TestExecutor_SellExecutesAsSingleClip(t *testing.T) {
	exec, placer, _, _ := testExecutor(Config{
		Split: strategy.SplitConfig{Chunks: 3},
	})
	sig := leg1Signal()
	sig.Kind = domain.SignalStopLoss
	sig.Side = domain.OrderSideSell
	sig.IsSell = true
	exec.process(context.Background(), sig)

	require.Len(t, placer.placed, 1)
	assert.InDelta(t, 30, placer.placed[0].Shares, 1e-9)
}

func TestExecutor_RetriesRetryableRejection(t *testing.T) {
	exec, placer, _, fills := testExecutor(Config{RetryDelay: time.Millisecond})
	placer.results = []domain.OrderResult{
		{Success: false, Status: domain.OrderStatusFailed, ShouldRetry: true},
	}
	exec.process(context.Background(), leg1Signal())

	require.Len(t, placer.placed, 2)
	require.Len(t, fills.fills, 1)
}

func TestExecutor_NoFillWhenAllClipsFail(t *testing.T) {
	exec, placer, _, fills := testExecutor(Config{})
	placer.results = []domain.OrderResult{
		{Success: false, Status: domain.OrderStatusFailed},
	}
	exec.process(context.Background(), leg1Signal())

	require.Len(t, placer.placed, 1)
	assert.Empty(t, fills.fills)
}
