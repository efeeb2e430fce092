// Package feed bridges the CLOB market-data WebSocket to the price service
// and the strategy engine.
package feed

import (
	"context"
	"log/slog"
	"sync"

	"github.com/EthanAlgoX/Polymarket-TradeBot/internal/domain"
	"github.com/EthanAlgoX/Polymarket-TradeBot/internal/platform/polymarket"
	"github.com/EthanAlgoX/Polymarket-TradeBot/internal/service"
	"github.com/EthanAlgoX/Polymarket-TradeBot/internal/strategy"
)

// wsChannels are the market-data channels every tracked asset subscribes to.
var wsChannels = []string{"book", "price_change", "last_trade_price"}

// PositionMarker receives the latest bid for each tracked token so open
// positions stay marked to market and their watermarks advance.
type PositionMarker interface {
	UpdatePrice(marketID, tokenID string, price float64)
}

// Feed routes WebSocket market data through the price service and pushes a
// fresh paired quote to the engine after every update of the active market.
// Market rotation swaps the tracked token subscriptions in place.
type Feed struct {
	ws     *polymarket.WSClient
	prices *service.PriceService
	engine *strategy.Engine
	marks  PositionMarker
	logger *slog.Logger

	mu     sync.RWMutex
	active domain.MarketConfig
}

// New creates a Feed. Handlers are registered immediately; Start connects.
// marks may be nil when no position ledger is running.
func New(ws *polymarket.WSClient, prices *service.PriceService, engine *strategy.Engine, marks PositionMarker, logger *slog.Logger) *Feed {
	f := &Feed{
		ws:     ws,
		prices: prices,
		engine: engine,
		marks:  marks,
		logger: logger.With(slog.String("component", "feed")),
	}

	ws.OnBookUpdate(f.onBook)
	ws.OnPriceChange(f.onPriceChange)
	ws.OnLastTradePrice(f.onLastTrade)
	return f
}

// Start connects the WebSocket and subscribes to the market's tokens.
func (f *Feed) Start(ctx context.Context, market domain.MarketConfig) error {
	if err := f.ws.Connect(ctx); err != nil {
		return err
	}
	return f.SwitchMarket(ctx, market)
}

// SwitchMarket moves the subscription to a new market: the old market's
// tokens are unsubscribed and the new pair subscribed. Stale data for the
// old tokens ages out of the cache via TTL.
func (f *Feed) SwitchMarket(ctx context.Context, market domain.MarketConfig) error {
	if !market.Valid() {
		return domain.ErrNotFound
	}

	f.mu.Lock()
	old := f.active
	f.active = market
	f.mu.Unlock()

	if old.Valid() && old.MarketID != market.MarketID {
		if err := f.ws.Unsubscribe(ctx, wsChannels, []string{old.UpTokenID, old.DownTokenID}); err != nil {
			f.logger.Warn("unsubscribe old market failed",
				slog.String("market_id", old.MarketID),
				slog.String("error", err.Error()))
		}
	}

	if err := f.ws.Subscribe(ctx, wsChannels, []string{market.UpTokenID, market.DownTokenID}); err != nil {
		return err
	}

	f.logger.Info("feed subscribed",
		slog.String("market_id", market.MarketID),
		slog.String("question", market.Question))
	return nil
}

// Active returns the currently tracked market.
func (f *Feed) Active() domain.MarketConfig {
	f.mu.RLock()
	defer f.mu.RUnlock()
	return f.active
}

// Close shuts down the WebSocket connection.
func (f *Feed) Close() error {
	return f.ws.Close()
}

func (f *Feed) onBook(snap domain.OrderbookSnapshot) {
	ctx := context.Background()
	if err := f.prices.HandleBookUpdate(ctx, snap); err != nil {
		f.logger.Debug("book update failed",
			slog.String("asset_id", snap.AssetID),
			slog.String("error", err.Error()))
		return
	}
	f.pushQuote(ctx, snap.AssetID)
}

func (f *Feed) onPriceChange(change domain.PriceChange) {
	ctx := context.Background()
	if err := f.prices.HandlePriceChange(ctx, change); err != nil {
		f.logger.Debug("price change failed",
			slog.String("asset_id", change.AssetID),
			slog.String("error", err.Error()))
		return
	}
	f.pushQuote(ctx, change.AssetID)
}

func (f *Feed) onLastTrade(ltp domain.LastTradePrice) {
	// Last trade prices only refresh the price cache; a paired quote needs
	// book data, so nothing is pushed to the engine here.
	_ = f.prices.HandleLastTrade(context.Background(), ltp)
}

// pushQuote assembles the two-sided quote for the active market and hands
// it to the engine, but only when the update concerns one of its tokens.
func (f *Feed) pushQuote(ctx context.Context, assetID string) {
	f.mu.RLock()
	market := f.active
	f.mu.RUnlock()

	if !market.Valid() || (assetID != market.UpTokenID && assetID != market.DownTokenID) {
		return
	}

	quote, err := f.prices.BuildQuote(ctx, market)
	if err != nil {
		// Normal until both sides of the book have arrived.
		return
	}
	if f.marks != nil {
		if quote.UpBid > 0 {
			f.marks.UpdatePrice(market.MarketID, market.UpTokenID, quote.UpBid)
		}
		if quote.DownBid > 0 {
			f.marks.UpdatePrice(market.MarketID, market.DownTokenID, quote.DownBid)
		}
	}
	if err := f.engine.HandleQuote(ctx, quote); err != nil {
		f.logger.Debug("engine rejected quote",
			slog.String("market_id", market.MarketID),
			slog.String("error", err.Error()))
	}
}
