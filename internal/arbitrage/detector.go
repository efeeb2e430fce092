package arbitrage

import (
	"log/slog"
	"math"
	"time"

	"github.com/google/uuid"

	"github.com/EthanAlgoX/Polymarket-TradeBot/internal/domain"
)

// DetectorConfig holds the thresholds shared by both detectors.
type DetectorConfig struct {
	// Fee is the exchange fee applied to fills, as a fraction of notional.
	Fee float64
	// MinProfit is the minimum guaranteed profit per $1 payout to act on.
	MinProfit float64
}

// OutcomeBook pairs an outcome token with its orderbook snapshot. Order of
// appearance matters for the spread detector: the first book is treated as
// YES, the second as NO.
type OutcomeBook struct {
	TokenID string
	Book    domain.OrderbookSnapshot
}

// Detector finds single-shot arbitrage opportunities across the outcome books
// of one market. It is stateless apart from configuration.
type Detector struct {
	cfg    DetectorConfig
	logger *slog.Logger
}

// NewDetector creates a detector with the given thresholds.
func NewDetector(cfg DetectorConfig, logger *slog.Logger) *Detector {
	return &Detector{
		cfg:    cfg,
		logger: logger.With(slog.String("component", "arb_detector")),
	}
}

// DetectArbitrage checks whether the sum of best asks across all outcomes
// undercuts the guaranteed $1 payout after fees. Every book must have a
// non-empty ask side; an outcome with no liquidity cannot be priced and the
// whole market is skipped. Returns nil when no opportunity exists.
func (d *Detector) DetectArbitrage(marketID string, books []OutcomeBook) *domain.ArbitrageOpportunity {
	if len(books) == 0 {
		return nil
	}

	tokenIDs := make([]string, 0, len(books))
	prices := make([]float64, 0, len(books))
	totalCost := 0.0
	maxVolume := math.MaxFloat64

	for _, ob := range books {
		if len(ob.Book.Asks) == 0 {
			return nil
		}
		best := ob.Book.Asks[0]
		if best.Price <= 0 {
			return nil
		}
		tokenIDs = append(tokenIDs, ob.TokenID)
		prices = append(prices, best.Price)
		totalCost += best.Price
		if best.Size < maxVolume {
			maxVolume = best.Size
		}
	}

	profit := 1 - totalCost*(1+d.cfg.Fee)
	if profit < d.cfg.MinProfit {
		return nil
	}

	opp := &domain.ArbitrageOpportunity{
		ID:              uuid.NewString(),
		MarketID:        marketID,
		Timestamp:       time.Now().UTC(),
		OutcomeTokenIDs: tokenIDs,
		Prices:          prices,
		TotalCost:       totalCost,
		PotentialProfit: profit,
		MaxVolume:       RoundSize(maxVolume),
	}
	d.logger.Debug("arbitrage opportunity detected",
		slog.String("market_id", marketID),
		slog.Float64("total_cost", totalCost),
		slog.Float64("profit", profit),
		slog.Float64("max_volume", opp.MaxVolume),
	)
	return opp
}
