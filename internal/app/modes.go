package app

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"time"

	"github.com/google/uuid"
	"golang.org/x/sync/errgroup"

	"github.com/EthanAlgoX/Polymarket-TradeBot/internal/arbitrage"
	"github.com/EthanAlgoX/Polymarket-TradeBot/internal/crypto"
	"github.com/EthanAlgoX/Polymarket-TradeBot/internal/domain"
	"github.com/EthanAlgoX/Polymarket-TradeBot/internal/executor"
	"github.com/EthanAlgoX/Polymarket-TradeBot/internal/feed"
	"github.com/EthanAlgoX/Polymarket-TradeBot/internal/notify"
	"github.com/EthanAlgoX/Polymarket-TradeBot/internal/pipeline"
	"github.com/EthanAlgoX/Polymarket-TradeBot/internal/platform/polymarket"
	"github.com/EthanAlgoX/Polymarket-TradeBot/internal/server"
	"github.com/EthanAlgoX/Polymarket-TradeBot/internal/server/handler"
	"github.com/EthanAlgoX/Polymarket-TradeBot/internal/server/ws"
	"github.com/EthanAlgoX/Polymarket-TradeBot/internal/service"
	"github.com/EthanAlgoX/Polymarket-TradeBot/internal/strategy"
)

const signalBufferSize = 128

// services bundles the domain services a mode composes from the shared
// dependencies.
type services struct {
	prices    *service.PriceService
	markets   *service.MarketService
	positions *service.PositionService
	risk      *service.RiskService
	trades    *service.TradeService
	arb       *service.ArbService
	detector  *arbitrage.Detector
}

func (a *App) buildServices(deps *Dependencies, source service.MarketSource) *services {
	cfg := a.cfg
	detector := arbitrage.NewDetector(arbitrage.DetectorConfig{
		Fee:       cfg.Spread.Fee,
		MinProfit: cfg.Risk.MinProfit,
	}, a.logger)
	positions := service.NewPositionService(deps.PositionStore, a.logger)

	return &services{
		prices:    service.NewPriceService(deps.Prices, deps.Books, deps.Bus, a.logger),
		markets:   service.NewMarketService(source, deps.MarketStore, deps.Markets, a.logger),
		positions: positions,
		risk: service.NewRiskService(service.RiskConfig{
			MinProfit:        cfg.Risk.MinProfit,
			MaxTradeAmount:   cfg.Risk.MaxTradeAmount,
			MaxDailyTrades:   cfg.Risk.MaxDailyTrades,
			MaxOpenPositions: cfg.Risk.MaxOpenPositions,
			MinTradeInterval: cfg.Risk.MinTradeInterval.Duration,
			DailyPnLLimit:    cfg.Risk.DailyPnLLimit,
			MarketCooldown:   cfg.Risk.MarketCooldown.Duration,
			BreakerCooldown:  cfg.Risk.BreakerCooldown.Duration,
		}, positions, deps.DailyStatsStore, deps.AuditStore, a.logger),
		trades:   service.NewTradeService(deps.TradeStore, deps.Bus, deps.AuditStore, a.logger),
		arb:      service.NewArbService(detector, deps.Books, deps.OpportunityStore, deps.Bus, a.logger),
		detector: detector,
	}
}

// runTrade runs the full trading stack: signer, market data feed, strategy
// engine, executor, background pipeline, and optionally the status server.
func (a *App) runTrade(ctx context.Context, deps *Dependencies) error {
	cfg := a.cfg

	key, err := crypto.LoadKey(crypto.KeyConfig{
		RawPrivateKey:    cfg.Wallet.PrivateKey,
		EncryptedKeyPath: cfg.Wallet.EncryptedKeyPath,
		KeyPassword:      cfg.Wallet.KeyPassword,
	})
	if err != nil {
		return fmt.Errorf("app: load wallet key: %w", err)
	}
	signer, err := crypto.NewSigner(key, cfg.Polymarket.ChainID)
	if err != nil {
		return fmt.Errorf("app: build signer: %w", err)
	}

	var hmac *crypto.HMACAuth
	if cfg.Polymarket.ApiKey != "" {
		hmac = &crypto.HMACAuth{
			Key:        cfg.Polymarket.ApiKey,
			Secret:     cfg.Polymarket.ApiSecret,
			Passphrase: cfg.Polymarket.ApiPassphrase,
		}
	}
	clob := polymarket.NewClobClient(cfg.Polymarket.ClobHost, signer, hmac)
	if hmac == nil {
		if err := clob.DeriveAPIKey(ctx); err != nil {
			return fmt.Errorf("app: derive api key: %w", err)
		}
	}
	trader := polymarket.NewTrader(clob, signer, cfg.Polymarket.SignatureType, a.logger)
	gamma := polymarket.NewGammaClient(cfg.Polymarket.GammaHost)
	relayer := polymarket.NewRelayerClient(cfg.Polymarket.RelayerHost, signer, a.logger)

	svcs := a.buildServices(deps, gamma)

	if _, err := svcs.markets.Refresh(ctx, cfg.Scanner.MarketLimit); err != nil {
		a.logger.Warn("initial market refresh failed", slog.String("error", err.Error()))
	}
	market, err := svcs.markets.SelectTradable(ctx, "")
	if err != nil {
		return fmt.Errorf("app: select initial market: %w", err)
	}
	a.logger.Info("selected initial market",
		slog.String("market_id", market.MarketID),
		slog.String("question", market.Question),
	)

	signalCh := make(chan domain.TradeSignal, signalBufferSize)
	registry := strategy.NewRegistry()
	engine := strategy.NewEngine(registry, signalCh, a.logger)

	dipArb := strategy.NewDipArb(strategy.DipArbConfig{
		SlidingWindow:     cfg.Trading.SlidingWindow.Duration,
		DipThreshold:      cfg.Trading.DipThreshold,
		SumTarget:         cfg.Trading.SumTarget,
		Leg2Timeout:       cfg.Trading.Leg2Timeout.Duration,
		ExecutionCooldown: cfg.Trading.ExecutionCooldown.Duration,
		PositionSize:      cfg.Trading.PositionSize,
		MaxHistory:        cfg.Trading.MaxHistory,
		AutoMerge:         cfg.Trading.AutoMerge,
		DustThreshold:     cfg.Trading.DustThreshold,
		SignalTTL:         cfg.Trading.SignalTTL.Duration,
	}, market, strategy.DipArbDeps{
		Emit:       engine.Emit,
		Merge:      relayer.MergePositions,
		Sell:       a.sellFunc(svcs.prices, trader),
		OnRoundEnd: a.roundSink(deps.RoundStore, svcs.risk, svcs.positions, deps.Notifier),
	}, a.logger)
	registry.Register(dipArb.Name(), dipArb)
	active := []string{dipArb.Name()}

	if cfg.Spread.Enabled {
		spread := strategy.NewYesNoSpread(strategy.SpreadConfig{
			SizePerTrade:    cfg.Spread.SizePerTrade,
			ProfitTarget:    cfg.Spread.ProfitTarget,
			StopLoss:        cfg.Spread.StopLoss,
			MaxHold:         cfg.Spread.MaxHold.Duration,
			TrailingStopPct: cfg.Spread.TrailingStopPct,
			Cooldown:        cfg.Spread.Cooldown.Duration,
			SignalTTL:       cfg.Spread.SignalTTL.Duration,
		}, market, svcs.detector, svcs.positions, a.logger)
		registry.Register(spread.Name(), spread)
		active = append(active, spread.Name())
	}
	if err := engine.SetActiveNames(active); err != nil {
		return fmt.Errorf("app: activate strategies: %w", err)
	}

	exec := executor.NewExecutor(
		signalCh,
		orderRecorder{next: trader, orders: deps.OrderStore, logger: a.logger},
		svcs.risk,
		trader,
		fillSink{engine: engine, notifier: deps.Notifier, ledger: svcs.positions, logger: a.logger},
		svcs.trades,
		executor.Config{
			DedupTTL:        cfg.Executor.DedupTTL.Duration,
			CleanupInterval: cfg.Executor.CleanupInterval.Duration,
			RetryDelay:      cfg.Executor.RetryDelay.Duration,
			Split: strategy.SplitConfig{
				Chunks:    cfg.Executor.SplitChunks,
				Delay:     cfg.Executor.SplitDelay.Duration,
				MinShares: cfg.Executor.SplitMinShares,
			},
		},
		a.logger,
	)

	wsClient := polymarket.NewWSClient(cfg.Polymarket.WsHost, a.logger)
	fd := feed.New(wsClient, svcs.prices, engine, svcs.positions, a.logger)
	if err := fd.Start(ctx, market); err != nil {
		return fmt.Errorf("app: start feed: %w", err)
	}
	a.closers = append(a.closers, func() { _ = fd.Close() })

	rotator := pipeline.NewRotator(svcs.markets, dipArb, fd, svcs.arb, deps.Locks, cfg.Scanner.MarketLimit, a.logger)

	var archive *pipeline.ArchiveJob
	if deps.Archiver != nil {
		archive = pipeline.NewArchiveJob(deps.Archiver, cfg.S3.RetentionDays, a.logger)
	}
	var sweep pipeline.SweepFunc
	if cfg.Trading.AutoMerge {
		sweep = func(ctx context.Context) (float64, error) {
			return dipArb.ScanAndMergePairs(ctx, clob.TokenBalance, relayer.MergePositions)
		}
	}
	orch := pipeline.NewOrchestrator(
		rotator, archive, sweep,
		cfg.Scanner.RotateInterval.Duration,
		cfg.Scanner.RefreshInterval.Duration,
		cfg.S3.ArchiveCron,
		a.logger,
	)

	g, ctx := errgroup.WithContext(ctx)
	g.Go(func() error { return unlessCancelled(ctx, "engine", engine.Run(ctx)) })
	g.Go(func() error { return unlessCancelled(ctx, "executor", exec.Run(ctx)) })
	g.Go(func() error { return unlessCancelled(ctx, "pipeline", orch.Run(ctx)) })

	if cfg.Server.Enabled {
		a.startServer(ctx, g, deps,
			a.httpHandlers(deps, svcs, dipArb, engine, wsClient.IsConnected),
			dipArb.Status,
		)
	}

	err = g.Wait()
	if err != nil && deps.Notifier != nil {
		nctx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
		defer cancel()
		if nerr := deps.Notifier.NotifyKillSwitch(nctx, err.Error()); nerr != nil {
			a.logger.Error("kill switch alert failed", slog.String("error", nerr.Error()))
		}
	}
	return err
}

// runMonitor runs the feed, strategies, and rotation without signing or
// placing any orders. Emitted signals are logged and discarded.
func (a *App) runMonitor(ctx context.Context, deps *Dependencies) error {
	cfg := a.cfg
	gamma := polymarket.NewGammaClient(cfg.Polymarket.GammaHost)
	svcs := a.buildServices(deps, gamma)

	if _, err := svcs.markets.Refresh(ctx, cfg.Scanner.MarketLimit); err != nil {
		a.logger.Warn("initial market refresh failed", slog.String("error", err.Error()))
	}
	market, err := svcs.markets.SelectTradable(ctx, "")
	if err != nil {
		return fmt.Errorf("app: select initial market: %w", err)
	}

	signalCh := make(chan domain.TradeSignal, signalBufferSize)
	registry := strategy.NewRegistry()
	engine := strategy.NewEngine(registry, signalCh, a.logger)

	dipArb := strategy.NewDipArb(strategy.DipArbConfig{
		SlidingWindow:     cfg.Trading.SlidingWindow.Duration,
		DipThreshold:      cfg.Trading.DipThreshold,
		SumTarget:         cfg.Trading.SumTarget,
		Leg2Timeout:       cfg.Trading.Leg2Timeout.Duration,
		ExecutionCooldown: cfg.Trading.ExecutionCooldown.Duration,
		PositionSize:      cfg.Trading.PositionSize,
		MaxHistory:        cfg.Trading.MaxHistory,
		SignalTTL:         cfg.Trading.SignalTTL.Duration,
	}, market, strategy.DipArbDeps{Emit: engine.Emit}, a.logger)
	registry.Register(dipArb.Name(), dipArb)
	if err := engine.SetActiveNames([]string{dipArb.Name()}); err != nil {
		return fmt.Errorf("app: activate strategies: %w", err)
	}

	wsClient := polymarket.NewWSClient(cfg.Polymarket.WsHost, a.logger)
	fd := feed.New(wsClient, svcs.prices, engine, svcs.positions, a.logger)
	if err := fd.Start(ctx, market); err != nil {
		return fmt.Errorf("app: start feed: %w", err)
	}
	a.closers = append(a.closers, func() { _ = fd.Close() })

	rotator := pipeline.NewRotator(svcs.markets, dipArb, fd, svcs.arb, deps.Locks, cfg.Scanner.MarketLimit, a.logger)
	orch := pipeline.NewOrchestrator(
		rotator, nil, nil,
		cfg.Scanner.RotateInterval.Duration,
		cfg.Scanner.RefreshInterval.Duration,
		"",
		a.logger,
	)

	g, ctx := errgroup.WithContext(ctx)
	g.Go(func() error { return unlessCancelled(ctx, "engine", engine.Run(ctx)) })
	g.Go(func() error { a.drainSignals(ctx, signalCh); return nil })
	g.Go(func() error { return unlessCancelled(ctx, "pipeline", orch.Run(ctx)) })

	if cfg.Server.Enabled {
		a.startServer(ctx, g, deps,
			a.httpHandlers(deps, svcs, dipArb, engine, wsClient.IsConnected),
			dipArb.Status,
		)
	}
	return g.Wait()
}

// runServer serves the API over the stores and caches without running any
// trading components.
func (a *App) runServer(ctx context.Context, deps *Dependencies) error {
	if !a.cfg.Server.Enabled {
		return fmt.Errorf("app: mode server requires server.enabled")
	}
	gamma := polymarket.NewGammaClient(a.cfg.Polymarket.GammaHost)
	svcs := a.buildServices(deps, gamma)

	g, ctx := errgroup.WithContext(ctx)
	a.startServer(ctx, g, deps, a.httpHandlers(deps, svcs, nil, nil, nil), nil)
	return g.Wait()
}

// httpHandlers assembles the route handlers for the status server. bot,
// signals, and wsUp may be nil when the mode runs no trading components.
func (a *App) httpHandlers(
	deps *Dependencies,
	svcs *services,
	bot handler.StatusSource,
	signals handler.SignalSource,
	wsUp func() bool,
) server.Handlers {
	checks := map[string]handler.HealthCheck{
		"redis":    deps.Redis.Ping,
		"postgres": func(ctx context.Context) error { return deps.PG.Pool().Ping(ctx) },
	}
	if deps.Blob != nil {
		checks["s3"] = deps.Blob.Health
	}

	h := server.Handlers{
		Health:        handler.NewHealthHandler(checks),
		Status:        handler.NewStatusHandler(a.cfg.Mode, bot, svcs.risk, wsUp),
		Markets:       handler.NewMarketHandler(svcs.markets),
		Positions:     handler.NewPositionHandler(svcs.positions),
		Opportunities: handler.NewOpportunityHandler(svcs.arb),
		Rounds:        handler.NewRoundHandler(deps.RoundStore),
		Trades:        handler.NewTradeHandler(svcs.trades),
	}
	if signals != nil {
		h.Signals = handler.NewSignalHandler(signals)
	}
	return h
}

// startServer launches the WebSocket hub and the HTTP server on the group,
// plus a watcher that drains the server when the context ends.
func (a *App) startServer(ctx context.Context, g *errgroup.Group, deps *Dependencies, h server.Handlers, status ws.StatusFunc) {
	hub := ws.NewHub(deps.Bus, status, a.logger)
	srv := server.NewServer(server.Config{
		Port:        a.cfg.Server.Port,
		CORSOrigins: a.cfg.Server.CORSOrigins,
		APIKey:      a.cfg.Server.APIKey,
		RateLimit:   a.cfg.Server.RateLimit,
	}, h, hub, deps.Limiter, a.logger)

	g.Go(func() error {
		_ = hub.Run(ctx)
		return nil
	})
	g.Go(func() error {
		return unlessCancelled(ctx, "server", srv.Start())
	})
	g.Go(func() error {
		<-ctx.Done()
		shCtx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
		defer cancel()
		return srv.Shutdown(shCtx)
	})
}

// sellFunc builds the emergency-exit path: market-sell at the current best
// bid, falling back to the minimum tick when no bid is cached.
func (a *App) sellFunc(prices *service.PriceService, trader *polymarket.Trader) strategy.SellFunc {
	return func(ctx context.Context, tokenID string, shares float64) error {
		bid, _, err := prices.GetBBO(ctx, tokenID)
		if err != nil {
			a.logger.Warn("no cached bid for emergency sell, using minimum tick",
				slog.String("token_id", tokenID),
				slog.String("error", err.Error()))
			bid = 0
		}
		if bid <= 0 {
			bid = 0.01
		}
		sig := domain.TradeSignal{
			ID:          uuid.NewString(),
			Kind:        domain.SignalEmergencyExit,
			Source:      "app",
			TokenID:     tokenID,
			Side:        domain.OrderSideSell,
			TargetPrice: bid,
			Shares:      shares,
			IsSell:      true,
			Urgency:     domain.SignalUrgencyImmediate,
			Reason:      "emergency exit",
			CreatedAt:   time.Now().UTC(),
		}
		if _, err := trader.PlaceOrder(ctx, sig); err != nil {
			return fmt.Errorf("app: emergency sell %s: %w", tokenID, err)
		}
		return nil
	}
}

// tradeRecorder is the slice of the risk manager the round sink feeds.
type tradeRecorder interface {
	RecordTrade(ctx context.Context, pnl float64, isWinner bool, marketID string)
}

// roundSink persists finished rounds, feeds their dollar P&L into the risk
// manager, books the round's leg positions out of the ledger, and alerts the
// operator.
func (a *App) roundSink(rounds domain.RoundStore, risk tradeRecorder, ledger positionLedger, notifier *notify.Notifier) func(domain.Round) {
	return func(r domain.Round) {
		ctx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
		defer cancel()

		if err := rounds.Insert(ctx, r); err != nil {
			a.logger.Error("persist round failed",
				slog.String("round_id", r.ID),
				slog.String("error", err.Error()))
		}
		pnl := roundPnL(r)
		risk.RecordTrade(ctx, pnl, pnl > 0, r.MarketID)
		releaseRoundPositions(ledger, r)

		if notifier == nil {
			return
		}
		var err error
		if r.StopLossTriggered {
			err = notifier.NotifyStopLoss(ctx, r.ID, pnl)
		} else {
			err = notifier.NotifyRoundComplete(ctx, r)
		}
		if err != nil {
			a.logger.Warn("round notification failed",
				slog.String("round_id", r.ID),
				slog.String("error", err.Error()))
		}
	}
}

// roundPnL converts a round's per-pair profit into dollars. The risk
// manager's daily limits are dollar-denominated, as is SessionStats.
func roundPnL(r domain.Round) float64 {
	if r.Leg1 == nil {
		return r.Profit
	}
	shares := r.Leg1.Shares
	if r.Leg2 != nil && r.Leg2.Shares < shares {
		shares = r.Leg2.Shares
	}
	return r.Profit * shares
}

// releaseRoundPositions closes the ledger entries the round's fills opened.
// A completed pair settles at $1: the hedge leg exits flat and the entry leg
// carries the spread. Stop-loss legs may already be closed by the sell fill,
// so a missing position is expected there.
func releaseRoundPositions(ledger positionLedger, r domain.Round) {
	if ledger == nil || r.Leg1 == nil {
		return
	}
	if r.Leg2 != nil {
		_, _ = ledger.ClosePosition(r.MarketID, r.Leg2.TokenID, r.Leg2.Price, r.Leg2.Shares)
		_, _ = ledger.ClosePosition(r.MarketID, r.Leg1.TokenID, 1-r.Leg2.Price, r.Leg1.Shares)
		return
	}
	_, _ = ledger.ClosePosition(r.MarketID, r.Leg1.TokenID, r.Leg1.Price+r.Profit, r.Leg1.Shares)
}

// drainSignals consumes and logs signals that will not be executed.
func (a *App) drainSignals(ctx context.Context, signalCh <-chan domain.TradeSignal) {
	for {
		select {
		case <-ctx.Done():
			return
		case sig, ok := <-signalCh:
			if !ok {
				return
			}
			a.logger.Info("signal (not executed in monitor mode)",
				slog.String("signal_id", sig.ID),
				slog.String("kind", string(sig.Kind)),
				slog.String("market_id", sig.MarketID),
				slog.String("side", string(sig.Side)),
				slog.Float64("price", sig.TargetPrice),
				slog.Float64("shares", sig.Shares),
			)
		}
	}
}

// unlessCancelled swallows errors caused by a normal shutdown.
func unlessCancelled(ctx context.Context, name string, err error) error {
	if err == nil || ctx.Err() != nil {
		return nil
	}
	return fmt.Errorf("%s: %w", name, err)
}

// orderRecorder wraps an OrderPlacer and journals every accepted order. A
// journaling failure never fails the trade.
type orderRecorder struct {
	next   executor.OrderPlacer
	orders domain.OrderStore
	logger *slog.Logger
}

func (o orderRecorder) PlaceOrder(ctx context.Context, sig domain.TradeSignal) (domain.OrderResult, error) {
	res, err := o.next.PlaceOrder(ctx, sig)
	if err != nil || o.orders == nil {
		return res, err
	}

	order := domain.Order{
		ID:         res.OrderID,
		MarketID:   sig.MarketID,
		TokenID:    sig.TokenID,
		Side:       sig.Side,
		Type:       domain.OrderTypeFAK,
		Price:      sig.TargetPrice,
		Size:       sig.Shares,
		FilledSize: res.FilledSize,
		Status:     res.Status,
		SignalID:   sig.ID,
		RoundID:    sig.RoundID,
		CreatedAt:  time.Now().UTC(),
	}
	if err := o.orders.Create(ctx, order); err != nil {
		o.logger.Warn("order journal failed",
			slog.String("order_id", res.OrderID),
			slog.String("error", err.Error()))
	}
	return res, nil
}

// positionLedger is the slice of the position service the execution path
// writes: buys open or average into positions, sells close them.
type positionLedger interface {
	AddPosition(pos domain.Position) domain.Position
	ClosePosition(marketID, tokenID string, price, size float64) (domain.Position, error)
}

// fillSink updates the position ledger, routes fills back into the strategy
// engine, and mirrors them to the notifier.
type fillSink struct {
	engine   *strategy.Engine
	notifier *notify.Notifier
	ledger   positionLedger
	logger   *slog.Logger
}

func (f fillSink) HandleFill(ctx context.Context, fill domain.Fill) error {
	if f.ledger != nil {
		if fill.Side == domain.OrderSideSell {
			// A sell for a position the round sink already booked out is
			// normal; anything else is worth a log line.
			if _, err := f.ledger.ClosePosition(fill.MarketID, fill.TokenID, fill.Price, fill.Shares); err != nil && !errors.Is(err, domain.ErrNotFound) {
				f.logger.Warn("ledger close failed",
					slog.String("token_id", fill.TokenID),
					slog.String("error", err.Error()))
			}
		} else {
			f.ledger.AddPosition(domain.Position{
				MarketID:   fill.MarketID,
				TokenID:    fill.TokenID,
				Side:       fill.Side,
				EntryPrice: fill.Price,
				Size:       fill.Shares,
				EntryTime:  fill.Timestamp,
			})
		}
	}
	if f.notifier != nil {
		msg := fmt.Sprintf("%s %.2f shares @ %.4f on %s",
			fill.Side, fill.Shares, fill.Price, fill.MarketID)
		// Best effort; the notifier logs its own failures.
		_ = f.notifier.Notify(ctx, notify.EventFill, "Order filled", msg)
	}
	return f.engine.HandleFill(ctx, fill)
}
