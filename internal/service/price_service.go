package service

import (
	"context"
	"encoding/json"
	"fmt"
	"log/slog"
	"time"

	"github.com/EthanAlgoX/Polymarket-TradeBot/internal/domain"
)

// PriceService maintains live market data: it applies feed updates to the
// price and orderbook caches, publishes change events, and assembles
// two-token Quote snapshots for the strategy layer.
type PriceService struct {
	priceCache domain.PriceCache
	bookCache  domain.OrderbookCache
	bus        domain.SignalBus
	logger     *slog.Logger
}

// NewPriceService creates a PriceService with all required dependencies.
func NewPriceService(
	priceCache domain.PriceCache,
	bookCache domain.OrderbookCache,
	bus domain.SignalBus,
	logger *slog.Logger,
) *PriceService {
	return &PriceService{
		priceCache: priceCache,
		bookCache:  bookCache,
		bus:        bus,
		logger:     logger.With(slog.String("component", "price_service")),
	}
}

// HandleBookUpdate applies a full orderbook snapshot: stores it, refreshes
// the mid-price, and publishes a book update event.
func (s *PriceService) HandleBookUpdate(ctx context.Context, snap domain.OrderbookSnapshot) error {
	if err := s.bookCache.SetSnapshot(ctx, snap.AssetID, snap); err != nil {
		return fmt.Errorf("price_service: set snapshot for %q: %w", snap.AssetID, err)
	}
	if err := s.priceCache.SetPrice(ctx, snap.AssetID, snap.MidPrice, snap.Timestamp); err != nil {
		return fmt.Errorf("price_service: set price for %q: %w", snap.AssetID, err)
	}

	evt, _ := json.Marshal(map[string]any{
		"event":     "book_update",
		"asset_id":  snap.AssetID,
		"best_bid":  snap.BestBid,
		"best_ask":  snap.BestAsk,
		"mid_price": snap.MidPrice,
		"timestamp": snap.Timestamp.Format(time.RFC3339Nano),
	})
	if pubErr := s.bus.Publish(ctx, "prices", evt); pubErr != nil {
		s.logger.WarnContext(ctx, "publish book update failed",
			slog.String("asset_id", snap.AssetID),
			slog.String("error", pubErr.Error()),
		)
	}
	return nil
}

// HandlePriceChange applies an incremental level update, recomputes the BBO,
// and refreshes the mid-price.
func (s *PriceService) HandlePriceChange(ctx context.Context, change domain.PriceChange) error {
	if err := s.bookCache.UpdateLevel(ctx, change.AssetID, change.Side, change.Price, change.Size); err != nil {
		return fmt.Errorf("price_service: update level for %q: %w", change.AssetID, err)
	}

	bestBid, bestAsk, err := s.bookCache.GetBBO(ctx, change.AssetID)
	if err != nil {
		return fmt.Errorf("price_service: get BBO for %q: %w", change.AssetID, err)
	}
	var midPrice float64
	if bestBid > 0 && bestAsk > 0 {
		midPrice = (bestBid + bestAsk) / 2
	}
	if err := s.priceCache.SetPrice(ctx, change.AssetID, midPrice, change.Timestamp); err != nil {
		return fmt.Errorf("price_service: set price for %q: %w", change.AssetID, err)
	}
	return nil
}

// HandleLastTrade refreshes the price cache with the most recent execution
// price for an asset.
func (s *PriceService) HandleLastTrade(ctx context.Context, ltp domain.LastTradePrice) error {
	if err := s.priceCache.SetPrice(ctx, ltp.AssetID, ltp.Price, ltp.Timestamp); err != nil {
		return fmt.Errorf("price_service: set last trade for %q: %w", ltp.AssetID, err)
	}
	return nil
}

// BuildQuote assembles a top-of-book Quote across both outcome tokens of a
// market from the cached orderbooks. The quote timestamp is the older of the
// two book timestamps so staleness checks see the weakest leg.
func (s *PriceService) BuildQuote(ctx context.Context, market domain.MarketConfig) (domain.Quote, error) {
	up, err := s.bookCache.GetSnapshot(ctx, market.UpTokenID)
	if err != nil {
		return domain.Quote{}, fmt.Errorf("price_service: up book for %q: %w", market.MarketID, err)
	}
	down, err := s.bookCache.GetSnapshot(ctx, market.DownTokenID)
	if err != nil {
		return domain.Quote{}, fmt.Errorf("price_service: down book for %q: %w", market.MarketID, err)
	}

	q := domain.Quote{
		MarketID:  market.MarketID,
		Timestamp: up.Timestamp,
	}
	if down.Timestamp.Before(up.Timestamp) {
		q.Timestamp = down.Timestamp
	}
	if len(up.Asks) > 0 {
		q.UpAsk = up.Asks[0].Price
		q.UpAskSize = up.Asks[0].Size
	}
	if len(up.Bids) > 0 {
		q.UpBid = up.Bids[0].Price
		q.UpBidSize = up.Bids[0].Size
	}
	if len(down.Asks) > 0 {
		q.DownAsk = down.Asks[0].Price
		q.DownAskSize = down.Asks[0].Size
	}
	if len(down.Bids) > 0 {
		q.DownBid = down.Bids[0].Price
		q.DownBidSize = down.Bids[0].Size
	}
	return q, nil
}

// GetPrice returns the latest cached price and its timestamp for one asset.
func (s *PriceService) GetPrice(ctx context.Context, assetID string) (float64, time.Time, error) {
	price, ts, err := s.priceCache.GetPrice(ctx, assetID)
	if err != nil {
		return 0, time.Time{}, fmt.Errorf("price_service: get price for %q: %w", assetID, err)
	}
	return price, ts, nil
}

// GetBBO returns the best bid and ask for one asset from the orderbook cache.
func (s *PriceService) GetBBO(ctx context.Context, assetID string) (float64, float64, error) {
	bestBid, bestAsk, err := s.bookCache.GetBBO(ctx, assetID)
	if err != nil {
		return 0, 0, fmt.Errorf("price_service: get BBO for %q: %w", assetID, err)
	}
	return bestBid, bestAsk, nil
}
