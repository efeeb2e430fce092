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

// DipArbConfig enumerates every tunable of the dip-arbitrage engine.
type DipArbConfig struct {
	// SlidingWindow is the trailing window the dip detector compares the
	// current ask against. Valid range: >= 1s.
	SlidingWindow time.Duration
	// DipThreshold is the minimum fractional drop versus the window maximum
	// that qualifies as a dip, e.g. 0.04 for 4%.
	DipThreshold float64
	// SumTarget is the maximum combined cost of both legs that still
	// guarantees profit, e.g. 0.99 leaves at least 1 cent per pair.
	SumTarget float64
	// Leg2Timeout is how long an unhedged leg-1 position may live before the
	// stop-loss fires.
	Leg2Timeout time.Duration
	// ExecutionCooldown is the minimum interval between evaluations, keyed
	// off quote timestamps, to avoid signal storms.
	ExecutionCooldown time.Duration
	// PositionSize is the USDC notional committed per leg-1 entry.
	PositionSize float64
	// MaxHistory caps the quote ring buffer.
	MaxHistory int
	// AutoMerge schedules a merge of the completed pair into USDC.
	AutoMerge bool
	// DustThreshold is the minimum pair count worth merging.
	DustThreshold float64
	// SignalTTL bounds how long an emitted signal stays actionable.
	SignalTTL time.Duration
}

// MergeFunc converts matched YES/NO pairs into settlement currency.
type MergeFunc func(ctx context.Context, conditionID string, shares float64) error

// SellFunc market-sells shares of a token, used for emergency exits.
type SellFunc func(ctx context.Context, tokenID string, shares float64) error

// BalanceFunc reports the current share balance of an outcome token.
type BalanceFunc func(ctx context.Context, tokenID string) (float64, error)

// DipArbDeps are the external collaborators of the engine. Emit carries
// signals produced outside an OnQuote call (stop-loss timer, emergency exit).
// All fields are optional; missing collaborators degrade to log-only paths.
type DipArbDeps struct {
	Emit       func(domain.TradeSignal)
	Merge      MergeFunc
	Sell       SellFunc
	OnRoundEnd func(domain.Round)
}

// DipArb is the dip-arbitrage round state machine. It buys one side of a
// binary market on a transient price drop and hedges with the other side
// while the combined cost still guarantees a profit, guarded by a cancellable
// stop-loss timer.
//
// State transitions commit before any external I/O: a failed merge or sell
// never corrupts round bookkeeping.
type DipArb struct {
	cfg    DipArbConfig
	deps   DipArbDeps
	logger *slog.Logger

	mu          sync.Mutex
	market      domain.MarketConfig
	history     *QuoteHistory
	round       *domain.Round
	stopTimer   *time.Timer
	lastEval    time.Time
	pendingLeg1 string           // signal ID awaiting a leg-1 fill
	pendingSide domain.RoundSide // side the pending leg-1 signal bought
	pendingLeg2 string           // signal ID awaiting a leg-2 fill
	roundSeq    int
	stats       domain.SessionStats
}

// NewDipArb creates the engine for one market.
func NewDipArb(cfg DipArbConfig, market domain.MarketConfig, deps DipArbDeps, logger *slog.Logger) *DipArb {
	if cfg.MaxHistory <= 0 {
		cfg.MaxHistory = 1024
	}
	if cfg.SignalTTL <= 0 {
		cfg.SignalTTL = 30 * time.Second
	}
	return &DipArb{
		cfg:     cfg,
		deps:    deps,
		market:  market,
		history: NewQuoteHistory(cfg.MaxHistory),
		logger:  logger.With(slog.String("strategy", "dip_arb"), slog.String("market_id", market.MarketID)),
	}
}

// Name returns the strategy identifier.
func (d *DipArb) Name() string { return "dip_arb" }

// Init is a no-op.
func (d *DipArb) Init(_ context.Context) error { return nil }

// Close cancels any pending stop-loss timer.
func (d *DipArb) Close() error {
	d.mu.Lock()
	defer d.mu.Unlock()
	d.cancelTimerLocked()
	return nil
}

// OnQuote appends the quote to the history, enforces the execution cooldown,
// lazily starts a round, and dispatches on the round phase. At most one
// signal is emitted per update.
func (d *DipArb) OnQuote(_ context.Context, q domain.Quote) ([]domain.TradeSignal, error) {
	d.mu.Lock()
	defer d.mu.Unlock()

	if q.MarketID != d.market.MarketID {
		return nil, nil
	}
	// Duplicate or out-of-order delivery: ignore without touching state.
	if last, ok := d.history.Last(); ok && q.Timestamp.Before(last.Timestamp) {
		return nil, nil
	}
	d.history.Append(q)

	if !d.lastEval.IsZero() && q.Timestamp.Sub(d.lastEval) < d.cfg.ExecutionCooldown {
		return nil, nil
	}
	d.lastEval = q.Timestamp

	if d.round == nil {
		d.startRoundLocked(q.Timestamp)
	}

	switch d.round.Phase {
	case domain.RoundWaiting:
		return d.evalDipLocked(q), nil
	case domain.RoundLeg1Filled:
		return d.evalHedgeLocked(q), nil
	default:
		return nil, nil
	}
}

// OnFill routes fills to the leg they answer. Fills for signals that are no
// longer pending (e.g. a leg-2 fill racing a fired stop-loss) are ignored.
func (d *DipArb) OnFill(ctx context.Context, fill domain.Fill) ([]domain.TradeSignal, error) {
	d.mu.Lock()
	isLeg1 := fill.SignalID != "" && fill.SignalID == d.pendingLeg1
	isLeg2 := fill.SignalID != "" && fill.SignalID == d.pendingLeg2
	d.mu.Unlock()

	switch {
	case isLeg1:
		return nil, d.RecordLeg1Fill(ctx, fill.SignalID, fill.Price, fill.Shares, fill.OrderIDs)
	case isLeg2:
		return nil, d.RecordLeg2Fill(ctx, fill.SignalID, fill.Price, fill.Shares, fill.OrderIDs)
	default:
		return nil, nil
	}
}

// RecordLeg1Fill transitions WAITING -> LEG1_FILLED and arms the stop-loss
// countdown. Starting a new countdown always cancels any prior one.
func (d *DipArb) RecordLeg1Fill(_ context.Context, signalID string, price, shares float64, orderIDs []string) error {
	d.mu.Lock()
	defer d.mu.Unlock()

	if d.round == nil || d.round.Phase != domain.RoundWaiting {
		return fmt.Errorf("dip_arb: record leg1 fill: %w", domain.ErrNoActiveRound)
	}
	if signalID != d.pendingLeg1 {
		return fmt.Errorf("dip_arb: record leg1 fill: signal %s is not pending", signalID)
	}

	side := d.pendingSide
	now := time.Now().UTC()
	d.round.Leg1 = &domain.Leg{
		Side:      side,
		Price:     price,
		Shares:    shares,
		TokenID:   d.tokenFor(side),
		OrderIDs:  orderIDs,
		Timestamp: now,
	}
	d.round.Leg1FillTime = &now
	d.round.Phase = domain.RoundLeg1Filled
	d.pendingLeg1 = ""
	d.stats.RoundsStarted++

	roundID := d.round.ID
	d.cancelTimerLocked()
	d.stopTimer = time.AfterFunc(d.cfg.Leg2Timeout, func() {
		d.onLeg2Timeout(roundID)
	})

	d.logger.Info("leg1 filled, stop-loss armed",
		slog.String("round_id", roundID),
		slog.String("side", string(side)),
		slog.Float64("price", price),
		slog.Float64("shares", shares),
		slog.Duration("timeout", d.cfg.Leg2Timeout),
	)
	return nil
}

// RecordLeg2Fill cancels the countdown, transitions to COMPLETED, accumulates
// session statistics, and schedules the asynchronous merge when enabled. The
// COMPLETED transition commits before the merge call is made; Merged turns
// true only on merge success.
func (d *DipArb) RecordLeg2Fill(ctx context.Context, signalID string, price, shares float64, orderIDs []string) error {
	d.mu.Lock()

	if d.round == nil || d.round.Phase != domain.RoundLeg1Filled {
		d.mu.Unlock()
		return fmt.Errorf("dip_arb: record leg2 fill: %w", domain.ErrNoActiveRound)
	}
	if signalID != d.pendingLeg2 {
		d.mu.Unlock()
		return fmt.Errorf("dip_arb: record leg2 fill: signal %s is not pending", signalID)
	}

	d.cancelTimerLocked()

	leg1 := d.round.Leg1
	side := leg1.Side.Opposite()
	d.round.Leg2 = &domain.Leg{
		Side:      side,
		Price:     price,
		Shares:    shares,
		TokenID:   d.tokenFor(side),
		OrderIDs:  orderIDs,
		Timestamp: time.Now().UTC(),
	}
	d.round.TotalCost = leg1.Price + price
	d.round.Profit = 1 - d.round.TotalCost
	d.round.Phase = domain.RoundCompleted
	d.pendingLeg2 = ""

	d.stats.RoundsCompleted++
	d.stats.TotalProfit += d.round.Profit * shares

	finished := *d.round
	mergeShares := math.Min(leg1.Shares, shares)
	conditionID := d.market.ConditionID
	d.resetRoundLocked()
	d.mu.Unlock()

	d.logger.Info("round completed",
		slog.String("round_id", finished.ID),
		slog.Float64("total_cost", finished.TotalCost),
		slog.Float64("profit_per_pair", finished.Profit),
		slog.Float64("shares", shares),
	)

	if d.cfg.AutoMerge && d.deps.Merge != nil && mergeShares > d.cfg.DustThreshold {
		// Merged is recorded only once the merge actually lands; the round
		// reaches the persistence hook after the call resolves either way.
		go func() {
			if err := d.deps.Merge(context.WithoutCancel(ctx), conditionID, mergeShares); err != nil {
				// The pair stays on the books; startup reconciliation
				// recovers it.
				d.logger.Error("auto-merge failed",
					slog.String("round_id", finished.ID),
					slog.String("error", err.Error()),
				)
				d.finishRound(finished)
				return
			}
			d.logger.Info("pair merged", slog.String("round_id", finished.ID), slog.Float64("shares", mergeShares))
			finished.Merged = true
			d.finishRound(finished)
		}()
		return nil
	}
	d.finishRound(finished)
	return nil
}

// EmergencyExitLeg1 force-exits an unhedged leg-1 position: cancels the
// countdown, requests a market sell, transitions to STOP_LOSS, and resets.
func (d *DipArb) EmergencyExitLeg1(ctx context.Context) error {
	d.mu.Lock()
	if d.round == nil || d.round.Phase != domain.RoundLeg1Filled {
		d.mu.Unlock()
		return fmt.Errorf("dip_arb: emergency exit: %w", domain.ErrNoActiveRound)
	}
	sig, finished := d.stopLocked(domain.SignalEmergencyExit)
	d.mu.Unlock()

	d.logger.Warn("emergency exit of leg1 position",
		slog.String("round_id", finished.ID),
		slog.Float64("shares", finished.Leg1.Shares),
	)

	if d.deps.Sell != nil {
		leg := finished.Leg1
		go func() {
			if err := d.deps.Sell(context.WithoutCancel(ctx), leg.TokenID, leg.Shares); err != nil {
				d.logger.Error("emergency sell failed",
					slog.String("round_id", finished.ID),
					slog.String("error", err.Error()),
				)
			}
		}()
	} else if d.deps.Emit != nil {
		d.deps.Emit(sig)
	}
	d.finishRound(finished)
	return nil
}

// RotateMarket swaps the active market configuration and clears all history.
// An unhedged leg-1 position is emergency-exited first rather than handed
// over to the next market.
func (d *DipArb) RotateMarket(ctx context.Context, next domain.MarketConfig) error {
	if !next.Valid() {
		return fmt.Errorf("dip_arb: rotate market: %w", domain.ErrInvalidOrder)
	}

	d.mu.Lock()
	unhedged := d.round != nil && d.round.Phase == domain.RoundLeg1Filled
	d.mu.Unlock()

	if unhedged {
		d.logger.Warn("rotating with unhedged leg1 position, forcing exit")
		if err := d.EmergencyExitLeg1(ctx); err != nil {
			return fmt.Errorf("dip_arb: rotate market: %w", err)
		}
	}

	d.mu.Lock()
	defer d.mu.Unlock()
	d.cancelTimerLocked()
	d.market = next
	d.history.Reset()
	d.resetRoundLocked()
	d.lastEval = time.Time{}
	d.logger = d.logger.With(slog.String("rotated_to", next.MarketID))
	d.logger.Info("rotated to market", slog.String("question", next.Question))
	return nil
}

// ScanAndMergePairs reconciles pre-existing matched pairs at startup: it
// queries both token balances and merges min(up, down) when above the dust
// threshold. Returns the merged pair count.
func (d *DipArb) ScanAndMergePairs(ctx context.Context, balance BalanceFunc, merge MergeFunc) (float64, error) {
	if balance == nil || merge == nil {
		return 0, nil
	}
	d.mu.Lock()
	market := d.market
	d.mu.Unlock()

	up, err := balance(ctx, market.UpTokenID)
	if err != nil {
		return 0, fmt.Errorf("dip_arb: scan pairs: up balance: %w", err)
	}
	down, err := balance(ctx, market.DownTokenID)
	if err != nil {
		return 0, fmt.Errorf("dip_arb: scan pairs: down balance: %w", err)
	}

	pairs := arbitrage.RoundSize(math.Min(up, down))
	if pairs <= d.cfg.DustThreshold {
		return 0, nil
	}
	if err := merge(ctx, market.ConditionID, pairs); err != nil {
		return 0, fmt.Errorf("dip_arb: scan pairs: merge: %w", err)
	}
	d.logger.Info("merged existing pairs",
		slog.Float64("pairs", pairs),
		slog.Float64("up_balance", up),
		slog.Float64("down_balance", down),
	)
	return pairs, nil
}

// Status reports the engine state for the status surface.
func (d *DipArb) Status() domain.BotStatus {
	d.mu.Lock()
	defer d.mu.Unlock()

	st := domain.BotStatus{
		ActiveMarket: d.market.MarketID,
		RoundPhase:   domain.RoundWaiting,
		Session:      d.stats,
	}
	if d.round != nil {
		st.RoundPhase = d.round.Phase
		if d.round.Leg1 != nil {
			st.Leg1Price = d.round.Leg1.Price
		}
		if d.round.Leg2 != nil {
			st.Leg2Price = d.round.Leg2.Price
		}
	}
	return st
}

// --------------------------------------------------------------------------
// Internal
// --------------------------------------------------------------------------

// evalDipLocked checks both sides for a qualifying dip, UP before DOWN, and
// emits at most one leg-1 signal. The hedge side's affordability is not
// checked here; the budget check happens when pairing.
func (d *DipArb) evalDipLocked(q domain.Quote) []domain.TradeSignal {
	if d.pendingLeg1 != "" {
		return nil
	}
	for _, side := range []domain.RoundSide{domain.SideUp, domain.SideDown} {
		cur := askFor(q, side)
		if cur <= 0 {
			continue
		}
		windowMax, ok := d.history.MaxAskInWindow(side, d.cfg.SlidingWindow)
		if !ok {
			continue
		}
		drop := (windowMax - cur) / windowMax
		if drop < d.cfg.DipThreshold {
			continue
		}

		price := arbitrage.RoundPrice(cur)
		shares := arbitrage.RoundSize(d.cfg.PositionSize / price)
		// Never ask for more than the book shows at the dip price.
		if depth := askSizeFor(q, side); depth > 0 && depth < shares {
			shares = arbitrage.RoundSize(depth)
		}
		sig := domain.TradeSignal{
			ID:          uuid.NewString(),
			Kind:        domain.SignalLeg1,
			Source:      d.Name(),
			MarketID:    d.market.MarketID,
			TokenID:     d.tokenFor(side),
			Side:        domain.OrderSideBuy,
			TargetPrice: price,
			Shares:      shares,
			RoundID:     d.round.ID,
			Urgency:     domain.SignalUrgencyHigh,
			Reason: fmt.Sprintf("dip %.2f%% below window max %.3f",
				drop*100, windowMax),
			CreatedAt: q.Timestamp,
			ExpiresAt: q.Timestamp.Add(d.cfg.SignalTTL),
		}
		d.pendingLeg1 = sig.ID
		d.pendingSide = side
		d.logger.Info("dip detected, leg1 signal emitted",
			slog.String("round_id", d.round.ID),
			slog.String("side", string(side)),
			slog.Float64("ask", cur),
			slog.Float64("window_max", windowMax),
			slog.Float64("drop_pct", drop*100),
		)
		return []domain.TradeSignal{sig}
	}
	return nil
}

// evalHedgeLocked emits a leg-2 signal when the combined cost fits the sum
// target. Leg-2 shares always match leg-1 so each pair pays out exactly $1.
func (d *DipArb) evalHedgeLocked(q domain.Quote) []domain.TradeSignal {
	if d.pendingLeg2 != "" {
		return nil
	}
	leg1 := d.round.Leg1
	hedge := leg1.Side.Opposite()
	hedgeAsk := askFor(q, hedge)
	if hedgeAsk <= 0 {
		return nil
	}
	if leg1.Price+hedgeAsk > d.cfg.SumTarget {
		return nil
	}

	combined := leg1.Price + hedgeAsk
	sig := domain.TradeSignal{
		ID:             uuid.NewString(),
		Kind:           domain.SignalLeg2,
		Source:         d.Name(),
		MarketID:       d.market.MarketID,
		TokenID:        d.tokenFor(hedge),
		Side:           domain.OrderSideBuy,
		TargetPrice:    arbitrage.RoundPrice(hedgeAsk),
		Shares:         leg1.Shares,
		ExpectedProfit: (1 - combined) * leg1.Shares,
		RoundID:        d.round.ID,
		Urgency:        domain.SignalUrgencyImmediate,
		Reason: fmt.Sprintf("hedge within budget: %.3f + %.3f <= %.3f",
			leg1.Price, hedgeAsk, d.cfg.SumTarget),
		CreatedAt: q.Timestamp,
		ExpiresAt: q.Timestamp.Add(d.cfg.SignalTTL),
	}
	d.pendingLeg2 = sig.ID
	d.logger.Info("hedge affordable, leg2 signal emitted",
		slog.String("round_id", d.round.ID),
		slog.String("side", string(hedge)),
		slog.Float64("combined_cost", combined),
		slog.Float64("shares", leg1.Shares),
	)
	return []domain.TradeSignal{sig}
}

// onLeg2Timeout fires when the countdown elapses. It double-checks the round
// is still the one the timer was armed for and still unhedged; a leg-2 fill
// racing the timer wins if it committed first.
func (d *DipArb) onLeg2Timeout(roundID string) {
	d.mu.Lock()
	if d.round == nil || d.round.ID != roundID || d.round.Phase != domain.RoundLeg1Filled {
		d.mu.Unlock()
		return
	}
	sig, finished := d.stopLocked(domain.SignalStopLoss)
	d.mu.Unlock()

	d.logger.Warn("leg2 timeout, stop-loss triggered",
		slog.String("round_id", finished.ID),
		slog.Float64("leg1_price", finished.Leg1.Price),
		slog.Float64("shares", finished.Leg1.Shares),
	)
	if d.deps.Emit != nil {
		d.deps.Emit(sig)
	}
	d.finishRound(finished)
}

// stopLocked commits the STOP_LOSS transition and builds the market-sell
// signal for the leg-1 shares. Caller holds d.mu and emits after unlocking.
// The round's Profit carries the estimated per-share loss of selling at the
// last known bid; with no bid on record the whole leg-1 cost is assumed lost.
func (d *DipArb) stopLocked(kind domain.SignalKind) (domain.TradeSignal, domain.Round) {
	d.cancelTimerLocked()

	leg1 := d.round.Leg1
	d.round.Phase = domain.RoundStopLoss
	d.round.StopLossTriggered = true
	d.round.TotalCost = leg1.Price

	exit := 0.0
	if last, ok := d.history.Last(); ok {
		exit = bidFor(last, leg1.Side)
	}
	d.round.Profit = exit - leg1.Price
	d.stats.RoundsStopped++
	d.stats.TotalProfit += d.round.Profit * leg1.Shares

	now := time.Now().UTC()
	sig := domain.TradeSignal{
		ID:        uuid.NewString(),
		Kind:      kind,
		Source:    d.Name(),
		MarketID:  d.market.MarketID,
		TokenID:   leg1.TokenID,
		Side:      domain.OrderSideSell,
		Shares:    leg1.Shares,
		RoundID:   d.round.ID,
		IsSell:    true,
		Urgency:   domain.SignalUrgencyImmediate,
		Reason:    string(kind) + " market sell of unhedged leg1",
		CreatedAt: now,
		ExpiresAt: now.Add(d.cfg.SignalTTL),
	}

	finished := *d.round
	d.resetRoundLocked()
	return sig, finished
}

func (d *DipArb) startRoundLocked(ts time.Time) {
	d.roundSeq++
	d.round = &domain.Round{
		ID:        fmt.Sprintf("round_%d", d.roundSeq),
		MarketID:  d.market.MarketID,
		Phase:     domain.RoundWaiting,
		StartTime: ts,
	}
}

func (d *DipArb) resetRoundLocked() {
	d.round = nil
	d.pendingLeg1 = ""
	d.pendingLeg2 = ""
	d.pendingSide = ""
}

func (d *DipArb) cancelTimerLocked() {
	if d.stopTimer != nil {
		d.stopTimer.Stop()
		d.stopTimer = nil
	}
}

func (d *DipArb) tokenFor(side domain.RoundSide) string {
	if side == domain.SideUp {
		return d.market.UpTokenID
	}
	return d.market.DownTokenID
}

// finishRound hands a terminal round to the persistence hook.
func (d *DipArb) finishRound(r domain.Round) {
	if d.deps.OnRoundEnd != nil {
		d.deps.OnRoundEnd(r)
	}
}
