package arbitrage

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestComputeEffectivePrices_MirrorImprovesBuy(t *testing.T) {
	// Selling NO at 0.40 implies buying YES at 0.60, better than the direct
	// 0.65 ask.
	e := ComputeEffectivePrices(0.65, 0.55, 0.35, 0.40)
	assert.InDelta(t, 0.60, e.BuyYes, 1e-9)
	assert.InDelta(t, 0.35, e.BuyNo, 1e-9)
	assert.InDelta(t, 0.65, e.SellYes, 1e-9)
	assert.InDelta(t, 0.40, e.SellNo, 1e-9)
}

func TestComputeEffectivePrices_ZeroBidFallsBack(t *testing.T) {
	// With no NO bid the mirror path is unavailable; direct ask is used.
	e := ComputeEffectivePrices(0.65, 0.55, 0.35, 0)
	assert.InDelta(t, 0.65, e.BuyYes, 1e-9)
}

func TestComputeEffectivePrices_BuyYesNonIncreasingInNoBid(t *testing.T) {
	prev := 2.0
	for _, noBid := range []float64{0.10, 0.20, 0.30, 0.40, 0.50, 0.60} {
		e := ComputeEffectivePrices(0.65, 0.55, 0.35, noBid)
		assert.LessOrEqual(t, e.BuyYes, prev, "noBid=%v", noBid)
		prev = e.BuyYes
	}
}

func TestCheckArbitrage_LongDetected(t *testing.T) {
	// Combined effective buy cost 0.50 + 0.49 < 1 with thin mirror bids.
	info := CheckArbitrage(0.50, 0.48, 0.49, 0.47, 0.001)
	require.NotNil(t, info)
	assert.Equal(t, ArbLong, info.Kind)
	assert.InDelta(t, 0.50+0.49, info.Cost, 1e-9)
	assert.InDelta(t, 1-(0.50+0.49), info.Profit, 1e-9)
}

func TestCheckArbitrage_ThresholdMonotone(t *testing.T) {
	// Lowering the threshold never turns a detected opportunity into none.
	low := CheckArbitrage(0.50, 0.48, 0.49, 0.47, 0.001)
	high := CheckArbitrage(0.50, 0.48, 0.49, 0.47, 0.02)
	require.NotNil(t, low)
	assert.Nil(t, high)
}

func TestCheckArbitrage_LongWinsTieBreak(t *testing.T) {
	// With all four quotes present the mirror identity makes long and short
	// profit equal, so whenever both qualify the long record is returned.
	e := ComputeEffectivePrices(0.60, 0.56, 0.50, 0.48)
	assert.InDelta(t, e.LongProfit(), e.ShortProfit(), 1e-9)

	info := CheckArbitrage(0.60, 0.56, 0.50, 0.48, 0.001)
	require.NotNil(t, info)
	assert.Equal(t, ArbLong, info.Kind)
}

func TestEffectivePrices_ShortProfitArithmetic(t *testing.T) {
	e := EffectivePrices{SellYes: 0.56, SellNo: 0.48}
	assert.InDelta(t, 1.04, e.ShortRevenue(), 1e-9)
	assert.InDelta(t, 0.04, e.ShortProfit(), 1e-9)
}

func TestCheckArbitrage_NoOpportunity(t *testing.T) {
	assert.Nil(t, CheckArbitrage(0.52, 0.50, 0.50, 0.48, 0.003))
}

func TestRoundPrice(t *testing.T) {
	assert.InDelta(t, 0.123, RoundPrice(0.12349), 1e-9)
	assert.InDelta(t, MinPrice, RoundPrice(0.0001), 1e-9)
	assert.InDelta(t, MaxPrice, RoundPrice(1.2), 1e-9)
}

func TestRoundSize(t *testing.T) {
	assert.InDelta(t, 10.35, RoundSize(10.3456), 1e-9)
}
