package service

import (
	"context"
	"encoding/json"
	"fmt"
	"log/slog"
	"time"

	"github.com/EthanAlgoX/Polymarket-TradeBot/internal/domain"
)

// TradeService persists executed fills and answers P&L history queries.
type TradeService struct {
	trades domain.TradeStore
	bus    domain.SignalBus
	audit  domain.AuditStore
	logger *slog.Logger
}

// NewTradeService creates a TradeService with all required dependencies.
func NewTradeService(
	trades domain.TradeStore,
	bus domain.SignalBus,
	audit domain.AuditStore,
	logger *slog.Logger,
) *TradeService {
	return &TradeService{
		trades: trades,
		bus:    bus,
		audit:  audit,
		logger: logger.With(slog.String("component", "trade_service")),
	}
}

// RecordFill persists one executed fill as a trade record, publishes an event
// on the signal bus, and writes an audit entry. The bus and audit writes are
// best effort: a failed publish never un-records a trade.
func (s *TradeService) RecordFill(ctx context.Context, fill domain.Fill, kind domain.SignalKind, pnl float64) error {
	rec := domain.TradeRecord{
		Timestamp: fill.Timestamp,
		MarketID:  fill.MarketID,
		TokenID:   fill.TokenID,
		RoundID:   fill.RoundID,
		SignalID:  fill.SignalID,
		Kind:      kind,
		Side:      fill.Side,
		Price:     fill.Price,
		Size:      fill.Shares,
		PnL:       pnl,
	}
	if rec.Timestamp.IsZero() {
		rec.Timestamp = time.Now().UTC()
	}

	if err := s.trades.Insert(ctx, rec); err != nil {
		return fmt.Errorf("trade_service: insert fill %q: %w", fill.SignalID, err)
	}

	evt, _ := json.Marshal(map[string]any{
		"event":     "trade_recorded",
		"signal_id": rec.SignalID,
		"round_id":  rec.RoundID,
		"market":    rec.MarketID,
		"kind":      string(rec.Kind),
		"side":      string(rec.Side),
		"price":     rec.Price,
		"size":      rec.Size,
		"pnl":       rec.PnL,
		"timestamp": rec.Timestamp.Format(time.RFC3339),
	})
	if pubErr := s.bus.Publish(ctx, "trades", evt); pubErr != nil {
		s.logger.WarnContext(ctx, "publish trade event failed",
			slog.String("signal_id", rec.SignalID),
			slog.String("error", pubErr.Error()),
		)
	}

	if s.audit != nil {
		if auditErr := s.audit.Log(ctx, "trade_recorded", map[string]any{
			"signal_id": rec.SignalID,
			"market":    rec.MarketID,
			"kind":      string(rec.Kind),
			"price":     rec.Price,
			"size":      rec.Size,
			"pnl":       rec.PnL,
		}); auditErr != nil {
			s.logger.WarnContext(ctx, "audit log failed",
				slog.String("signal_id", rec.SignalID),
				slog.String("error", auditErr.Error()),
			)
		}
	}

	s.logger.InfoContext(ctx, "fill recorded",
		slog.String("signal_id", rec.SignalID),
		slog.String("market", rec.MarketID),
		slog.String("kind", string(rec.Kind)),
		slog.Float64("price", rec.Price),
		slog.Float64("size", rec.Size),
	)
	return nil
}

// ListByMarket returns trades for one market with pagination.
func (s *TradeService) ListByMarket(ctx context.Context, marketID string, opts domain.ListOpts) ([]domain.TradeRecord, error) {
	trades, err := s.trades.ListByMarket(ctx, marketID, opts)
	if err != nil {
		return nil, fmt.Errorf("trade_service: list by market %q: %w", marketID, err)
	}
	return trades, nil
}

// SessionPnL sums realized P&L recorded since the given time.
func (s *TradeService) SessionPnL(ctx context.Context, since time.Time) (float64, error) {
	pnl, err := s.trades.SumPnL(ctx, since)
	if err != nil {
		return 0, fmt.Errorf("trade_service: sum pnl: %w", err)
	}
	return pnl, nil
}
