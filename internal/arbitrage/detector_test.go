package arbitrage

import (
	"log/slog"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/EthanAlgoX/Polymarket-TradeBot/internal/domain"
)

func testDetector(fee, minProfit float64) *Detector {
	return NewDetector(DetectorConfig{Fee: fee, MinProfit: minProfit}, slog.Default())
}

func book(askPrice, askSize, bidPrice, bidSize float64) domain.OrderbookSnapshot {
	snap := domain.OrderbookSnapshot{}
	if askPrice > 0 {
		snap.Asks = []domain.PriceLevel{{Price: askPrice, Size: askSize}}
		snap.BestAsk = askPrice
	}
	if bidPrice > 0 {
		snap.Bids = []domain.PriceLevel{{Price: bidPrice, Size: bidSize}}
		snap.BestBid = bidPrice
	}
	return snap
}

func TestDetectArbitrage_SumOfAsksBelowPayout(t *testing.T) {
	d := testDetector(0.01, 0.005)
	books := []OutcomeBook{
		{TokenID: "tok-a", Book: book(0.30, 100, 0.28, 50)},
		{TokenID: "tok-b", Book: book(0.35, 40, 0.33, 60)},
		{TokenID: "tok-c", Book: book(0.30, 80, 0.29, 30)},
	}

	opp := d.DetectArbitrage("mkt-1", books)
	require.NotNil(t, opp)
	assert.Equal(t, []string{"tok-a", "tok-b", "tok-c"}, opp.OutcomeTokenIDs)
	assert.InDelta(t, 0.95, opp.TotalCost, 1e-9)
	assert.InDelta(t, 1-0.95*1.01, opp.PotentialProfit, 1e-9)
	// Thinnest book bounds the fillable volume.
	assert.InDelta(t, 40, opp.MaxVolume, 1e-9)
	assert.Len(t, opp.Prices, 3)
}

func TestDetectArbitrage_EmptyAskSideSkipsMarket(t *testing.T) {
	d := testDetector(0, 0.001)
	books := []OutcomeBook{
		{TokenID: "tok-a", Book: book(0.30, 100, 0, 0)},
		{TokenID: "tok-b", Book: domain.OrderbookSnapshot{}},
	}
	assert.Nil(t, d.DetectArbitrage("mkt-1", books))
}

func TestDetectArbitrage_FeeEatsProfit(t *testing.T) {
	d := testDetector(0.10, 0.001)
	books := []OutcomeBook{
		{TokenID: "tok-a", Book: book(0.48, 10, 0, 0)},
		{TokenID: "tok-b", Book: book(0.48, 10, 0, 0)},
	}
	// 0.96 * 1.10 > 1: no opportunity after fees.
	assert.Nil(t, d.DetectArbitrage("mkt-1", books))
}

func TestDetectSpread_YesCheckedFirst(t *testing.T) {
	d := testDetector(0.01, 0.005)
	yes := OutcomeBook{TokenID: "tok-yes", Book: book(0.40, 25, 0.38, 10)}
	no := OutcomeBook{TokenID: "tok-no", Book: book(0.52, 15, 0.50, 30)}

	// YES: implied = 1 - 0.50 - 0.01 = 0.49; profit = 0.09.
	opp := d.DetectSpread("mkt-1", yes, no)
	require.NotNil(t, opp)
	assert.Equal(t, "yes", opp.Outcome)
	assert.Equal(t, "tok-yes", opp.TokenID)
	assert.InDelta(t, 0.49, opp.ImpliedPrice, 1e-9)
	assert.InDelta(t, 0.09, opp.PotentialProfit, 1e-9)
	assert.InDelta(t, 25, opp.MaxVolume, 1e-9) // min(yes ask size, no bid size)
	assert.InDelta(t, 0.9, opp.Confidence, 1e-9)
}

func TestDetectSpread_NoSide(t *testing.T) {
	d := testDetector(0.01, 0.005)
	yes := OutcomeBook{TokenID: "tok-yes", Book: book(0.55, 25, 0.50, 10)}
	no := OutcomeBook{TokenID: "tok-no", Book: book(0.42, 15, 0.40, 30)}

	// YES: implied = 1 - 0.40 - 0.01 = 0.59; profit 0.04... checked first.
	opp := d.DetectSpread("mkt-1", yes, no)
	require.NotNil(t, opp)
	assert.Equal(t, "yes", opp.Outcome)

	// Push the YES ask above its implied price so only NO qualifies.
	yes.Book = book(0.60, 25, 0.50, 10)
	opp = d.DetectSpread("mkt-1", yes, no)
	require.NotNil(t, opp)
	assert.Equal(t, "no", opp.Outcome)
	assert.Equal(t, "tok-no", opp.TokenID)
	// Implied NO price = 1 - 0.50 - 0.01 = 0.49; profit = 0.07.
	assert.InDelta(t, 0.07, opp.PotentialProfit, 1e-9)
	assert.InDelta(t, 10, opp.MaxVolume, 1e-9)
}

func TestDetectSpread_NoOpportunity(t *testing.T) {
	d := testDetector(0.01, 0.005)
	yes := OutcomeBook{TokenID: "tok-yes", Book: book(0.50, 25, 0.48, 10)}
	no := OutcomeBook{TokenID: "tok-no", Book: book(0.52, 15, 0.50, 30)}
	assert.Nil(t, d.DetectSpread("mkt-1", yes, no))
}
