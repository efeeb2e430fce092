package strategy

import (
	"context"
	"fmt"
	"log/slog"
	"math"
	"sync"
	"time"

	"github.com/google/uuid"

	"github.com/EthanAlgoX/Polymarket-TradeBot/internal/arbitrage"
	"github.com/EthanAlgoX/Polymarket-TradeBot/internal/domain"
)

// SpreadConfig tunes the single-sided spread strategy and its exit rules.
type SpreadConfig struct {
	SizePerTrade    float64       // USDC notional per entry
	ProfitTarget    float64       // exit when up this fraction from entry
	StopLoss        float64       // exit when down this fraction from entry
	MaxHold         time.Duration // exit when held longer than this
	TrailingStopPct float64       // exit below highest * (1 - pct); 0 disables
	Cooldown        time.Duration // min interval between signals per position
	SignalTTL       time.Duration
}

// PositionSource exposes the open positions the exit rules evaluate.
type PositionSource interface {
	OpenByMarket(marketID string) []domain.Position
}

// YesNoSpread buys the outcome token that is cheap relative to the price
// implied by the mirror book, and manages the resulting directional position
// with profit-target, stop-loss, max-hold, and trailing-stop exits.
type YesNoSpread struct {
	cfg       SpreadConfig
	market    domain.MarketConfig
	detector  *arbitrage.Detector
	positions PositionSource
	logger    *slog.Logger

	mu        sync.Mutex
	lastEntry time.Time
	lastExit  map[string]time.Time // position key -> last exit signal
}

// NewYesNoSpread creates the strategy for one market.
func NewYesNoSpread(cfg SpreadConfig, market domain.MarketConfig, detector *arbitrage.Detector, positions PositionSource, logger *slog.Logger) *YesNoSpread {
	if cfg.SignalTTL <= 0 {
		cfg.SignalTTL = 30 * time.Second
	}
	return &YesNoSpread{
		cfg:       cfg,
		market:    market,
		detector:  detector,
		positions: positions,
		logger:    logger.With(slog.String("strategy", "yes_no_spread"), slog.String("market_id", market.MarketID)),
		lastExit:  make(map[string]time.Time),
	}
}

// Name returns the strategy identifier.
func (y *YesNoSpread) Name() string { return "yes_no_spread" }

// Init is a no-op.
func (y *YesNoSpread) Init(_ context.Context) error { return nil }

// Close is a no-op.
func (y *YesNoSpread) Close() error { return nil }

// OnQuote checks exits for open positions first, then a fresh entry.
func (y *YesNoSpread) OnQuote(_ context.Context, q domain.Quote) ([]domain.TradeSignal, error) {
	if q.MarketID != y.market.MarketID {
		return nil, nil
	}

	signals := y.evalExits(q)
	if entry := y.evalEntry(q); entry != nil {
		signals = append(signals, *entry)
	}
	return signals, nil
}

// OnFill is a no-op: the executor's fill sink writes entries and exits into
// the position ledger, so evalExits reads fresh state on the next quote.
func (y *YesNoSpread) OnFill(_ context.Context, _ domain.Fill) ([]domain.TradeSignal, error) {
	return nil, nil
}

func (y *YesNoSpread) evalEntry(q domain.Quote) *domain.TradeSignal {
	y.mu.Lock()
	defer y.mu.Unlock()

	if !y.lastEntry.IsZero() && q.Timestamp.Sub(y.lastEntry) < y.cfg.Cooldown {
		return nil
	}

	yes := arbitrage.OutcomeBook{
		TokenID: y.market.UpTokenID,
		Book:    bookFromQuote(q.UpAsk, q.UpAskSize, q.UpBid, q.UpBidSize),
	}
	no := arbitrage.OutcomeBook{
		TokenID: y.market.DownTokenID,
		Book:    bookFromQuote(q.DownAsk, q.DownAskSize, q.DownBid, q.DownBidSize),
	}
	opp := y.detector.DetectSpread(y.market.MarketID, yes, no)
	if opp == nil {
		return nil
	}

	price := arbitrage.RoundPrice(opp.MarketPrice)
	shares := arbitrage.RoundSize(math.Min(y.cfg.SizePerTrade/price, opp.MaxVolume))
	if shares <= 0 {
		return nil
	}

	y.lastEntry = q.Timestamp
	sig := domain.TradeSignal{
		ID:             uuid.NewString(),
		Kind:           domain.SignalEntry,
		Source:         y.Name(),
		MarketID:       y.market.MarketID,
		TokenID:        opp.TokenID,
		Side:           domain.OrderSideBuy,
		TargetPrice:    price,
		Shares:         shares,
		ExpectedProfit: opp.PotentialProfit * shares,
		Urgency:        domain.SignalUrgencyHigh,
		Reason: fmt.Sprintf("spread entry %s: market %.3f vs implied %.3f, confidence %.2f",
			opp.Outcome, opp.MarketPrice, opp.ImpliedPrice, opp.Confidence),
		CreatedAt: q.Timestamp,
		ExpiresAt: q.Timestamp.Add(y.cfg.SignalTTL),
	}
	y.logger.Info("spread entry signal",
		slog.String("outcome", opp.Outcome),
		slog.Float64("price", price),
		slog.Float64("shares", shares),
	)
	return &sig
}

// evalExits applies the exit rules in a fixed order: profit target, stop
// loss, max holding time, trailing stop. The first matching rule wins.
func (y *YesNoSpread) evalExits(q domain.Quote) []domain.TradeSignal {
	if y.positions == nil {
		return nil
	}

	var signals []domain.TradeSignal
	for _, pos := range y.positions.OpenByMarket(y.market.MarketID) {
		cur := y.bidFor(pos.TokenID, q)
		if cur <= 0 || pos.EntryPrice <= 0 || pos.Size <= 0 {
			continue
		}

		reason := ""
		change := (cur - pos.EntryPrice) / pos.EntryPrice
		switch {
		case y.cfg.ProfitTarget > 0 && change >= y.cfg.ProfitTarget:
			reason = "profit_target"
		case y.cfg.StopLoss > 0 && change <= -y.cfg.StopLoss:
			reason = "stop_loss"
		case y.cfg.MaxHold > 0 && q.Timestamp.Sub(pos.EntryTime) >= y.cfg.MaxHold:
			reason = "max_holding_time"
		case y.cfg.TrailingStopPct > 0 && pos.HighestPrice > 0 &&
			cur < pos.HighestPrice*(1-y.cfg.TrailingStopPct):
			reason = "trailing_stop"
		}
		if reason == "" {
			continue
		}

		key := pos.Key()
		y.mu.Lock()
		last, seen := y.lastExit[key]
		throttled := seen && q.Timestamp.Sub(last) < y.cfg.Cooldown
		if !throttled {
			y.lastExit[key] = q.Timestamp
		}
		y.mu.Unlock()
		if throttled {
			continue
		}

		signals = append(signals, domain.TradeSignal{
			ID:          uuid.NewString(),
			Kind:        domain.SignalExit,
			Source:      y.Name(),
			MarketID:    pos.MarketID,
			TokenID:     pos.TokenID,
			Side:        domain.OrderSideSell,
			TargetPrice: arbitrage.RoundPrice(cur),
			Shares:      pos.Size,
			IsSell:      true,
			Urgency:     domain.SignalUrgencyHigh,
			Reason:      reason,
			CreatedAt:   q.Timestamp,
			ExpiresAt:   q.Timestamp.Add(y.cfg.SignalTTL),
		})
		y.logger.Info("exit signal",
			slog.String("token_id", pos.TokenID),
			slog.String("reason", reason),
			slog.Float64("entry", pos.EntryPrice),
			slog.Float64("current", cur),
		)
	}
	return signals
}

func (y *YesNoSpread) bidFor(tokenID string, q domain.Quote) float64 {
	if tokenID == y.market.UpTokenID {
		return q.UpBid
	}
	if tokenID == y.market.DownTokenID {
		return q.DownBid
	}
	return 0
}

func bookFromQuote(ask, askSize, bid, bidSize float64) domain.OrderbookSnapshot {
	var snap domain.OrderbookSnapshot
	if ask > 0 {
		snap.Asks = []domain.PriceLevel{{Price: ask, Size: askSize}}
		snap.BestAsk = ask
	}
	if bid > 0 {
		snap.Bids = []domain.PriceLevel{{Price: bid, Size: bidSize}}
		snap.BestBid = bid
	}
	return snap
}
