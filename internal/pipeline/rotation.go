// Package pipeline runs the bot's background jobs: market rotation, the
// opportunity sweep, position merging, and cold-storage archival.
package pipeline

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"time"

	"github.com/EthanAlgoX/Polymarket-TradeBot/internal/domain"
)

// MarketPicker refreshes the market universe and selects the next market to
// trade.
type MarketPicker interface {
	Refresh(ctx context.Context, limit int) ([]domain.Market, error)
	SelectTradable(ctx context.Context, exclude string) (domain.MarketConfig, error)
}

// RotationStrategy is the strategy side of a rotation: it unwinds any open
// round before the market swap and reports session state.
type RotationStrategy interface {
	RotateMarket(ctx context.Context, next domain.MarketConfig) error
	Status() domain.BotStatus
}

// MarketSwitcher moves the market-data subscription to a new market.
type MarketSwitcher interface {
	SwitchMarket(ctx context.Context, market domain.MarketConfig) error
	Active() domain.MarketConfig
}

// OpportunityScanner scans a market set for cross-book arbitrage.
type OpportunityScanner interface {
	ScanAll(ctx context.Context, markets []domain.Market) ([]domain.ArbitrageOpportunity, error)
}

// Rotator periodically refreshes the market universe, records detected
// opportunities, and rotates the bot onto the best tradable market. A
// distributed lock keeps concurrent instances from rotating over each other.
type Rotator struct {
	picker   MarketPicker
	strategy RotationStrategy
	feed     MarketSwitcher
	scanner  OpportunityScanner
	locks    domain.LockManager

	refreshLimit int
	logger       *slog.Logger
}

// NewRotator creates a Rotator. scanner may be nil to skip the opportunity
// sweep.
func NewRotator(
	picker MarketPicker,
	strategy RotationStrategy,
	feed MarketSwitcher,
	scanner OpportunityScanner,
	locks domain.LockManager,
	refreshLimit int,
	logger *slog.Logger,
) *Rotator {
	if refreshLimit <= 0 {
		refreshLimit = 200
	}
	return &Rotator{
		picker:       picker,
		strategy:     strategy,
		feed:         feed,
		scanner:      scanner,
		locks:        locks,
		refreshLimit: refreshLimit,
		logger:       logger.With(slog.String("component", "rotator")),
	}
}

// RunLoop rotates immediately and then on every tick until the context is
// cancelled.
func (r *Rotator) RunLoop(ctx context.Context, interval time.Duration) error {
	if err := r.Run(ctx, interval); err != nil {
		r.logger.Error("rotation failed", slog.String("error", err.Error()))
	}

	ticker := time.NewTicker(interval)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			r.logger.Info("rotation loop stopped")
			return ctx.Err()
		case <-ticker.C:
			if err := r.Run(ctx, interval); err != nil {
				r.logger.Error("rotation failed", slog.String("error", err.Error()))
			}
		}
	}
}

// Run performs one rotation pass under the distributed lock: refresh the
// universe, sweep for opportunities, pick the next market, and swap if it
// differs from the current one. A held lock means another instance is
// rotating; that pass is skipped silently.
func (r *Rotator) Run(ctx context.Context, lockTTL time.Duration) error {
	unlock, err := r.locks.Acquire(ctx, "rotation", lockTTL)
	if err != nil {
		if errors.Is(err, domain.ErrLockHeld) {
			r.logger.Debug("rotation lock held elsewhere, skipping pass")
			return nil
		}
		return fmt.Errorf("pipeline: acquire rotation lock: %w", err)
	}
	defer unlock()

	markets, err := r.picker.Refresh(ctx, r.refreshLimit)
	if err != nil {
		return fmt.Errorf("pipeline: refresh markets: %w", err)
	}

	if r.scanner != nil {
		opps, scanErr := r.scanner.ScanAll(ctx, markets)
		if scanErr != nil {
			r.logger.Warn("opportunity sweep failed", slog.String("error", scanErr.Error()))
		} else if len(opps) > 0 {
			r.logger.Info("opportunity sweep",
				slog.Int("markets", len(markets)),
				slog.Int("opportunities", len(opps)))
		}
	}

	current := r.feed.Active()
	next, err := r.picker.SelectTradable(ctx, current.MarketID)
	if err != nil {
		if errors.Is(err, domain.ErrNotFound) {
			r.logger.Warn("no tradable market found, keeping current",
				slog.String("market_id", current.MarketID))
			return nil
		}
		return fmt.Errorf("pipeline: select tradable market: %w", err)
	}

	if current.Valid() && next.MarketID == current.MarketID {
		return nil
	}

	// RotateMarket unwinds any unhedged leg before the swap.
	if err := r.strategy.RotateMarket(ctx, next); err != nil {
		return fmt.Errorf("pipeline: rotate strategy to %s: %w", next.MarketID, err)
	}
	if err := r.feed.SwitchMarket(ctx, next); err != nil {
		return fmt.Errorf("pipeline: switch feed to %s: %w", next.MarketID, err)
	}

	st := r.strategy.Status()
	r.logger.Info("rotated market",
		slog.String("from", current.MarketID),
		slog.String("to", next.MarketID),
		slog.Int("rounds_started", st.Session.RoundsStarted),
		slog.Int("rounds_completed", st.Session.RoundsCompleted),
		slog.Int("rounds_stopped", st.Session.RoundsStopped),
		slog.Float64("total_profit", st.Session.TotalProfit),
	)
	return nil
}
