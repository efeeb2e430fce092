package service

import (
	"context"
	"fmt"
	"log/slog"

	"github.com/EthanAlgoX/Polymarket-TradeBot/internal/domain"
)

// MarketSource fetches tradable markets from an upstream discovery API.
type MarketSource interface {
	FetchActiveMarkets(ctx context.Context, limit int) ([]domain.Market, error)
}

// MarketService handles market discovery, metadata sync, and the selection
// logic behind market rotation.
type MarketService struct {
	source  MarketSource
	markets domain.MarketStore
	cache   domain.MarketCache
	logger  *slog.Logger
}

// NewMarketService creates a MarketService with all required dependencies.
func NewMarketService(
	source MarketSource,
	markets domain.MarketStore,
	cache domain.MarketCache,
	logger *slog.Logger,
) *MarketService {
	return &MarketService{
		source:  source,
		markets: markets,
		cache:   cache,
		logger:  logger.With(slog.String("component", "market_service")),
	}
}

// Refresh pulls active markets from the discovery source, upserts them into
// the store, and invalidates stale cache entries.
func (s *MarketService) Refresh(ctx context.Context, limit int) ([]domain.Market, error) {
	markets, err := s.source.FetchActiveMarkets(ctx, limit)
	if err != nil {
		return nil, fmt.Errorf("market_service: fetch active markets: %w", err)
	}
	if len(markets) == 0 {
		return nil, nil
	}

	if err := s.markets.UpsertBatch(ctx, markets); err != nil {
		return nil, fmt.Errorf("market_service: upsert batch: %w", err)
	}
	for _, m := range markets {
		if err := s.cache.Invalidate(ctx, m.ID); err != nil {
			s.logger.WarnContext(ctx, "cache invalidate failed",
				slog.String("market_id", m.ID),
				slog.String("error", err.Error()),
			)
		}
	}

	s.logger.InfoContext(ctx, "markets refreshed", slog.Int("count", len(markets)))
	return markets, nil
}

// GetMarket retrieves a market by ID, cache first with store fallback.
func (s *MarketService) GetMarket(ctx context.Context, id string) (domain.Market, error) {
	m, err := s.cache.Get(ctx, id)
	if err == nil {
		return m, nil
	}

	m, err = s.markets.GetByID(ctx, id)
	if err != nil {
		return domain.Market{}, fmt.Errorf("market_service: get by id %q: %w", id, err)
	}
	if cacheErr := s.cache.Set(ctx, m); cacheErr != nil {
		s.logger.WarnContext(ctx, "cache set failed",
			slog.String("market_id", id),
			slog.String("error", cacheErr.Error()),
		)
	}
	return m, nil
}

// GetMarketByToken retrieves a market by one of its outcome token IDs.
func (s *MarketService) GetMarketByToken(ctx context.Context, tokenID string) (domain.Market, error) {
	m, err := s.cache.GetByToken(ctx, tokenID)
	if err == nil {
		return m, nil
	}

	m, err = s.markets.GetByTokenID(ctx, tokenID)
	if err != nil {
		return domain.Market{}, fmt.Errorf("market_service: get by token %q: %w", tokenID, err)
	}
	if cacheErr := s.cache.Set(ctx, m); cacheErr != nil {
		s.logger.WarnContext(ctx, "cache set failed",
			slog.String("token_id", tokenID),
			slog.String("error", cacheErr.Error()),
		)
	}
	return m, nil
}

// ListActive returns active markets from the store.
func (s *MarketService) ListActive(ctx context.Context, opts domain.ListOpts) ([]domain.Market, error) {
	markets, err := s.markets.ListActive(ctx, opts)
	if err != nil {
		return nil, fmt.Errorf("market_service: list active: %w", err)
	}
	return markets, nil
}

// SelectTradable picks the active market with the highest volume, excluding
// the given market ID, and returns its trading configuration. It is the
// rotation target selector: pass the current market to rotate away from it,
// or an empty string at startup.
func (s *MarketService) SelectTradable(ctx context.Context, exclude string) (domain.MarketConfig, error) {
	markets, err := s.markets.ListActive(ctx, domain.ListOpts{Limit: 100})
	if err != nil {
		return domain.MarketConfig{}, fmt.Errorf("market_service: list for selection: %w", err)
	}

	var best *domain.Market
	for i := range markets {
		m := &markets[i]
		if m.ID == exclude || m.Status != domain.MarketStatusActive {
			continue
		}
		if m.TokenIDs[0] == "" || m.TokenIDs[1] == "" {
			continue
		}
		if best == nil || m.Volume > best.Volume {
			best = m
		}
	}
	if best == nil {
		return domain.MarketConfig{}, fmt.Errorf("market_service: select tradable: %w", domain.ErrNotFound)
	}

	cfg := domain.MarketConfig{
		MarketID:    best.ID,
		ConditionID: best.ConditionID,
		Question:    best.Question,
		UpTokenID:   best.TokenIDs[0],
		DownTokenID: best.TokenIDs[1],
	}
	s.logger.InfoContext(ctx, "market selected",
		slog.String("market_id", cfg.MarketID),
		slog.String("question", cfg.Question),
		slog.Float64("volume", best.Volume),
	)
	return cfg, nil
}
