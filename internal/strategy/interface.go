// Package strategy contains the trading strategies and the engine that feeds
// them market data. The dip-arbitrage round state machine lives here, next to
// the simpler spread strategy.
package strategy

import (
	"context"

	"github.com/EthanAlgoX/Polymarket-TradeBot/internal/domain"
)

// Strategy is the typed event sink every trading strategy implements. The
// engine serializes calls per strategy: OnQuote and OnFill never run
// concurrently for the same instance.
type Strategy interface {
	Name() string
	Init(ctx context.Context) error
	// OnQuote processes one top-of-book update and returns any signals to
	// forward to the executor. Quotes arrive in non-decreasing timestamp
	// order per market.
	OnQuote(ctx context.Context, quote domain.Quote) ([]domain.TradeSignal, error)
	// OnFill processes an asynchronous fill notification for a signal this
	// strategy emitted earlier.
	OnFill(ctx context.Context, fill domain.Fill) ([]domain.TradeSignal, error)
	Close() error
}
