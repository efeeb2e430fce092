package service

import (
	"context"
	"encoding/json"
	"fmt"
	"log/slog"

	"github.com/EthanAlgoX/Polymarket-TradeBot/internal/arbitrage"
	"github.com/EthanAlgoX/Polymarket-TradeBot/internal/domain"
)

// ArbService runs the arbitrage detector over cached orderbooks, records
// detected opportunities, and publishes them for the execution layer.
type ArbService struct {
	detector *arbitrage.Detector
	books    domain.OrderbookCache
	opps     domain.OpportunityStore
	bus      domain.SignalBus
	logger   *slog.Logger
}

// NewArbService creates an ArbService with all required dependencies. The
// opportunity store may be nil, in which case detections are only published.
func NewArbService(
	detector *arbitrage.Detector,
	books domain.OrderbookCache,
	opps domain.OpportunityStore,
	bus domain.SignalBus,
	logger *slog.Logger,
) *ArbService {
	return &ArbService{
		detector: detector,
		books:    books,
		opps:     opps,
		bus:      bus,
		logger:   logger.With(slog.String("component", "arb_service")),
	}
}

// ScanMarket evaluates one market for a sum-of-asks arbitrage. A market with
// any leg's book missing or empty yields no opportunity and no error: that is
// a skip-this-cycle condition, not a failure.
func (s *ArbService) ScanMarket(ctx context.Context, market domain.Market) (*domain.ArbitrageOpportunity, error) {
	books := make([]arbitrage.OutcomeBook, 0, len(market.TokenIDs))
	for _, tokenID := range market.TokenIDs {
		snap, err := s.books.GetSnapshot(ctx, tokenID)
		if err != nil {
			s.logger.DebugContext(ctx, "book unavailable, skipping market",
				slog.String("market_id", market.ID),
				slog.String("token_id", tokenID),
			)
			return nil, nil
		}
		books = append(books, arbitrage.OutcomeBook{TokenID: tokenID, Book: snap})
	}

	opp := s.detector.DetectArbitrage(market.ID, books)
	if opp == nil {
		return nil, nil
	}

	if s.opps != nil {
		if err := s.opps.Insert(ctx, *opp); err != nil {
			s.logger.WarnContext(ctx, "opportunity persist failed",
				slog.String("opp_id", opp.ID),
				slog.String("error", err.Error()),
			)
		}
	}

	evt, _ := json.Marshal(map[string]any{
		"event":            "arbitrage_detected",
		"opp_id":           opp.ID,
		"market_id":        opp.MarketID,
		"total_cost":       opp.TotalCost,
		"potential_profit": opp.PotentialProfit,
		"max_volume":       opp.MaxVolume,
	})
	if pubErr := s.bus.Publish(ctx, "opportunities", evt); pubErr != nil {
		s.logger.WarnContext(ctx, "publish opportunity failed",
			slog.String("opp_id", opp.ID),
			slog.String("error", pubErr.Error()),
		)
	}

	s.logger.InfoContext(ctx, "arbitrage detected",
		slog.String("market_id", opp.MarketID),
		slog.Float64("total_cost", opp.TotalCost),
		slog.Float64("potential_profit", opp.PotentialProfit),
		slog.Float64("max_volume", opp.MaxVolume),
	)
	return opp, nil
}

// ScanAll evaluates every market and returns the detected opportunities.
func (s *ArbService) ScanAll(ctx context.Context, markets []domain.Market) ([]domain.ArbitrageOpportunity, error) {
	var found []domain.ArbitrageOpportunity
	for _, m := range markets {
		if ctx.Err() != nil {
			return found, ctx.Err()
		}
		opp, err := s.ScanMarket(ctx, m)
		if err != nil {
			return found, fmt.Errorf("arb_service: scan %q: %w", m.ID, err)
		}
		if opp != nil {
			found = append(found, *opp)
		}
	}
	return found, nil
}

// MarkExecuted flags an opportunity as acted on.
func (s *ArbService) MarkExecuted(ctx context.Context, oppID string) error {
	if s.opps == nil {
		return nil
	}
	if err := s.opps.MarkExecuted(ctx, oppID); err != nil {
		return fmt.Errorf("arb_service: mark executed %q: %w", oppID, err)
	}
	return nil
}

// ListRecent returns the most recently detected opportunities.
func (s *ArbService) ListRecent(ctx context.Context, limit int) ([]domain.ArbitrageOpportunity, error) {
	if s.opps == nil {
		return nil, nil
	}
	opps, err := s.opps.ListRecent(ctx, limit)
	if err != nil {
		return nil, fmt.Errorf("arb_service: list recent: %w", err)
	}
	return opps, nil
}
