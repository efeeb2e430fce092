package executor

import (
	"context"
	"log/slog"
	"time"

	"github.com/EthanAlgoX/Polymarket-TradeBot/internal/domain"
	"github.com/EthanAlgoX/Polymarket-TradeBot/internal/strategy"
)

// OrderPlacer submits an order for one signal to the exchange. Implemented by
// the CLOB client wrapper.
type OrderPlacer interface {
	PlaceOrder(ctx context.Context, sig domain.TradeSignal) (domain.OrderResult, error)
}

// BalanceSource reports the available USDC balance for risk sizing.
type BalanceSource interface {
	Balance(ctx context.Context) (float64, error)
}

// RiskGate validates and sizes exposure-opening signals. Implemented by the
// risk service.
type RiskGate interface {
	CheckOpportunity(ctx context.Context, opp domain.ArbitrageOpportunity, balance float64) (bool, domain.RejectReason)
	CalculateSafeSize(opp domain.ArbitrageOpportunity, balance float64) float64
}

// FillSink receives fill notifications after execution. Implemented by the
// strategy engine, which routes them back to the emitting strategy.
type FillSink interface {
	HandleFill(ctx context.Context, fill domain.Fill) error
}

// TradeRecorder persists executed fills. Implemented by the trade service.
type TradeRecorder interface {
	RecordFill(ctx context.Context, fill domain.Fill, kind domain.SignalKind, pnl float64) error
}

// Config tunes the executor pipeline.
type Config struct {
	DedupTTL        time.Duration
	CleanupInterval time.Duration
	RetryDelay      time.Duration
	Split           strategy.SplitConfig // clip sizing for exposure-opening buys
}

// Executor consumes trade signals from the strategy engine and turns them
// into orders: dedup, expiry check, risk gate and safe sizing for
// exposure-opening signals, clip splitting for large buys, placement, and a
// fill notification back to the strategies.
//
// Hedge and exit signals (leg2, stop-loss, emergency exit, exit) bypass the
// risk gate: they reduce exposure the account already carries, and leg2 must
// keep its share count to match leg1.
type Executor struct {
	signalCh <-chan domain.TradeSignal
	orders   OrderPlacer
	risk     RiskGate
	balance  BalanceSource
	fills    FillSink
	trades   TradeRecorder
	dedup    *Dedup
	cfg      Config
	logger   *slog.Logger
}

// NewExecutor creates an Executor reading from signalCh. The trade recorder
// may be nil; fills are then not persisted.
func NewExecutor(
	signalCh <-chan domain.TradeSignal,
	orders OrderPlacer,
	risk RiskGate,
	balance BalanceSource,
	fills FillSink,
	trades TradeRecorder,
	cfg Config,
	logger *slog.Logger,
) *Executor {
	if cfg.DedupTTL <= 0 {
		cfg.DedupTTL = 2 * time.Minute
	}
	if cfg.CleanupInterval <= 0 {
		cfg.CleanupInterval = 30 * time.Second
	}
	if cfg.RetryDelay <= 0 {
		cfg.RetryDelay = 500 * time.Millisecond
	}
	return &Executor{
		signalCh: signalCh,
		orders:   orders,
		risk:     risk,
		balance:  balance,
		fills:    fills,
		trades:   trades,
		dedup:    NewDedup(cfg.DedupTTL),
		cfg:      cfg,
		logger:   logger.With(slog.String("component", "executor")),
	}
}

// Run processes signals until the context is cancelled, then drains whatever
// is still buffered so in-flight signals are not silently dropped.
func (e *Executor) Run(ctx context.Context) error {
	e.logger.Info("executor started")
	defer e.logger.Info("executor stopped")

	cleanup := time.NewTicker(e.cfg.CleanupInterval)
	defer cleanup.Stop()

	for {
		select {
		case <-ctx.Done():
			e.drain()
			return ctx.Err()
		case sig, ok := <-e.signalCh:
			if !ok {
				return nil
			}
			e.process(ctx, sig)
		case <-cleanup.C:
			e.dedup.Cleanup()
		}
	}
}

// process runs one signal through the full pipeline.
func (e *Executor) process(ctx context.Context, sig domain.TradeSignal) {
	log := e.logger.With(
		slog.String("signal_id", sig.ID),
		slog.String("kind", string(sig.Kind)),
		slog.String("source", sig.Source),
		slog.String("token", sig.TokenID),
		slog.String("side", string(sig.Side)),
	)

	if e.dedup.IsDuplicate(sig.ID) {
		log.Debug("signal deduplicated, skipping")
		return
	}
	if sig.Expired(time.Now().UTC()) {
		log.Warn("signal expired, skipping", slog.Time("expires_at", sig.ExpiresAt))
		return
	}

	if opensExposure(sig.Kind) {
		sized, ok := e.applyRiskGate(ctx, sig, log)
		if !ok {
			return
		}
		sig = sized
	}

	clips := e.clipsFor(sig)
	fill, placed := e.placeClips(ctx, sig, clips, log)
	if !placed {
		return
	}

	// The logical state transition lives in the strategy; the fill must reach
	// it even when persistence hiccups.
	if err := e.fills.HandleFill(ctx, fill); err != nil {
		log.Error("fill notification failed", slog.String("error", err.Error()))
	}
	if e.trades != nil {
		if err := e.trades.RecordFill(ctx, fill, sig.Kind, 0); err != nil {
			log.Warn("fill persist failed", slog.String("error", err.Error()))
		}
	}
}

// opensExposure reports whether the signal increases account exposure and so
// must pass the risk gates.
func opensExposure(kind domain.SignalKind) bool {
	return kind == domain.SignalLeg1 || kind == domain.SignalEntry
}

// applyRiskGate checks the signal against the risk manager and clamps its
// size. It returns the possibly shrunk signal and whether to proceed.
func (e *Executor) applyRiskGate(ctx context.Context, sig domain.TradeSignal, log *slog.Logger) (domain.TradeSignal, bool) {
	balance, err := e.balance.Balance(ctx)
	if err != nil {
		log.Error("balance lookup failed, skipping signal", slog.String("error", err.Error()))
		return sig, false
	}

	perShare := 0.0
	if sig.Shares > 0 {
		perShare = sig.ExpectedProfit / sig.Shares
	}
	opp := domain.ArbitrageOpportunity{
		ID:              sig.ID,
		MarketID:        sig.MarketID,
		TotalCost:       sig.TargetPrice,
		PotentialProfit: perShare,
		MaxVolume:       sig.Shares,
		Timestamp:       sig.CreatedAt,
	}

	ok, reason := e.risk.CheckOpportunity(ctx, opp, balance)
	if !ok {
		log.Warn("risk gate rejected signal", slog.String("reason", string(reason)))
		return sig, false
	}

	size := e.risk.CalculateSafeSize(opp, balance)
	if size <= 0 {
		log.Warn("safe size is zero, skipping signal")
		return sig, false
	}
	if size < sig.Shares {
		log.Info("signal resized by risk gate",
			slog.Float64("requested", sig.Shares),
			slog.Float64("sized", size),
		)
		sig.Shares = size
	}
	return sig, true
}

// clipsFor splits large buys into clips. Sells execute as a single clip:
// stop-loss and emergency exits need to leave the book in one shot.
func (e *Executor) clipsFor(sig domain.TradeSignal) []strategy.SplitOrder {
	if sig.IsSell || sig.Side == domain.OrderSideSell {
		return []strategy.SplitOrder{{Shares: sig.Shares, Size: sig.Shares * sig.TargetPrice}}
	}
	return strategy.CalculateSplitOrders(sig.Shares, sig.TargetPrice, e.cfg.Split)
}

// placeClips submits each clip in order and aggregates the result into one
// fill with a size-weighted average price.
func (e *Executor) placeClips(ctx context.Context, sig domain.TradeSignal, clips []strategy.SplitOrder, log *slog.Logger) (domain.Fill, bool) {
	var (
		filledShares float64
		notional     float64
		orderIDs     []string
	)

	for i, clip := range clips {
		if clip.Delay > 0 {
			select {
			case <-ctx.Done():
				log.Warn("cancelled between clips", slog.Int("placed", i))
				return e.buildFill(sig, filledShares, notional, orderIDs), filledShares > 0
			case <-time.After(clip.Delay):
			}
		}

		clipSig := sig
		clipSig.Shares = clip.Shares
		res, err := e.placeWithRetry(ctx, clipSig, log)
		if err != nil {
			log.Error("clip placement failed",
				slog.Int("clip", i),
				slog.String("error", err.Error()),
			)
			continue
		}
		if !res.Success {
			log.Warn("clip rejected",
				slog.Int("clip", i),
				slog.String("status", string(res.Status)),
				slog.String("message", res.Message),
			)
			continue
		}

		shares := res.FilledSize
		if shares <= 0 {
			shares = clip.Shares
		}
		price := res.FilledPrice
		if price <= 0 {
			price = sig.TargetPrice
		}
		filledShares += shares
		notional += shares * price
		if res.OrderID != "" {
			orderIDs = append(orderIDs, res.OrderID)
		}
	}

	if filledShares <= 0 {
		log.Warn("no clips filled")
		return domain.Fill{}, false
	}

	fill := e.buildFill(sig, filledShares, notional, orderIDs)
	log.Info("signal executed",
		slog.Float64("shares", fill.Shares),
		slog.Float64("avg_price", fill.Price),
		slog.Int("orders", len(fill.OrderIDs)),
	)
	return fill, true
}

func (e *Executor) buildFill(sig domain.TradeSignal, shares, notional float64, orderIDs []string) domain.Fill {
	avg := sig.TargetPrice
	if shares > 0 {
		avg = notional / shares
	}
	return domain.Fill{
		SignalID:  sig.ID,
		RoundID:   sig.RoundID,
		MarketID:  sig.MarketID,
		TokenID:   sig.TokenID,
		Side:      sig.Side,
		Price:     avg,
		Shares:    shares,
		OrderIDs:  orderIDs,
		Timestamp: time.Now().UTC(),
	}
}

// placeWithRetry submits one order, retrying once after a pause when the
// exchange marks the rejection retryable.
func (e *Executor) placeWithRetry(ctx context.Context, sig domain.TradeSignal, log *slog.Logger) (domain.OrderResult, error) {
	res, err := e.orders.PlaceOrder(ctx, sig)
	if err != nil || res.Success || !res.ShouldRetry {
		return res, err
	}
	if sig.Expired(time.Now().UTC()) {
		log.Warn("signal expired before retry, giving up")
		return res, nil
	}

	select {
	case <-ctx.Done():
		return res, ctx.Err()
	case <-time.After(e.cfg.RetryDelay):
	}
	log.Info("retrying rejected order")
	return e.orders.PlaceOrder(ctx, sig)
}

// drain processes signals still buffered after cancellation, each under a
// short timeout so shutdown cannot hang on external calls.
func (e *Executor) drain() {
	for {
		select {
		case sig, ok := <-e.signalCh:
			if !ok {
				return
			}
			e.logger.Warn("draining signal after shutdown", slog.String("signal_id", sig.ID))
			drainCtx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
			e.process(drainCtx, sig)
			cancel()
		default:
			return
		}
	}
}
