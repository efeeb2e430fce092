package arbitrage

import (
	"log/slog"
	"math"
	"time"

	"github.com/google/uuid"

	"github.com/EthanAlgoX/Polymarket-TradeBot/internal/domain"
)

// DetectSpread is the two-outcome variant of the detector: it checks each
// token against the price implied by the mirror book and returns at most one
// opportunity. The YES token (first book) is checked before NO.
//
// Buying YES is profitable when 1 - no_bid - fee - yes_ask > min_profit: the
// YES ask undercuts what the NO book implies YES is worth.
func (d *Detector) DetectSpread(marketID string, yes, no OutcomeBook) *domain.SpreadOpportunity {
	yesAsk, yesAskSize := bestAsk(yes.Book)
	yesBid, yesBidSize := bestBid(yes.Book)
	noAsk, noAskSize := bestAsk(no.Book)
	noBid, noBidSize := bestBid(no.Book)

	if yesAsk > 0 && noBid > 0 {
		implied := 1 - noBid - d.cfg.Fee
		profit := implied - yesAsk
		if profit > d.cfg.MinProfit {
			return d.spreadOpp(marketID, yes.TokenID, "yes", yesAsk, implied, profit,
				math.Min(yesAskSize, noBidSize))
		}
	}
	if noAsk > 0 && yesBid > 0 {
		implied := 1 - yesBid - d.cfg.Fee
		profit := implied - noAsk
		if profit > d.cfg.MinProfit {
			return d.spreadOpp(marketID, no.TokenID, "no", noAsk, implied, profit,
				math.Min(noAskSize, yesBidSize))
		}
	}
	return nil
}

func (d *Detector) spreadOpp(marketID, tokenID, outcome string, market, implied, profit, volume float64) *domain.SpreadOpportunity {
	opp := &domain.SpreadOpportunity{
		ID:              uuid.NewString(),
		MarketID:        marketID,
		TokenID:         tokenID,
		Outcome:         outcome,
		MarketPrice:     market,
		ImpliedPrice:    implied,
		Spread:          implied - market,
		PotentialProfit: profit,
		MaxVolume:       RoundSize(volume),
		Confidence:      math.Min(profit*10, 0.9),
		Timestamp:       time.Now().UTC(),
	}
	d.logger.Debug("spread opportunity detected",
		slog.String("market_id", marketID),
		slog.String("outcome", outcome),
		slog.Float64("market_price", market),
		slog.Float64("implied_price", implied),
		slog.Float64("profit", profit),
	)
	return opp
}

func bestAsk(b domain.OrderbookSnapshot) (price, size float64) {
	if len(b.Asks) == 0 {
		return 0, 0
	}
	return b.Asks[0].Price, b.Asks[0].Size
}

func bestBid(b domain.OrderbookSnapshot) (price, size float64) {
	if len(b.Bids) == 0 {
		return 0, 0
	}
	return b.Bids[0].Price, b.Bids[0].Size
}
