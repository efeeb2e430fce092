package strategy

import (
	"context"
	"fmt"
	"log/slog"
	"sync"

	"golang.org/x/sync/errgroup"

	"github.com/EthanAlgoX/Polymarket-TradeBot/internal/domain"
)

// Engine orchestrates the enabled strategies. It fans quote updates and fill
// notifications out to per-strategy channels so each strategy processes its
// events serially, and forwards emitted trade signals to the signal channel
// consumed by the executor layer.
type Engine struct {
	registry *Registry
	signalCh chan<- domain.TradeSignal
	logger   *slog.Logger

	mu          sync.Mutex
	activeNames []string
	quoteChs    map[string]chan domain.Quote
	fillChs     map[string]chan domain.Fill

	recentSignals []domain.TradeSignal
	recentLimit   int
}

// NewEngine creates an Engine. The signalCh is the output channel where
// emitted TradeSignals are sent to the executor.
func NewEngine(registry *Registry, signalCh chan<- domain.TradeSignal, logger *slog.Logger) *Engine {
	return &Engine{
		registry:    registry,
		signalCh:    signalCh,
		logger:      logger.With(slog.String("component", "strategy_engine")),
		recentLimit: 500,
	}
}

// Emit sends a single signal to the signal channel without blocking the
// caller's lock. Strategies use it for signals produced outside an event
// handler, e.g. a stop-loss timer firing.
func (e *Engine) Emit(sig domain.TradeSignal) {
	e.signalCh <- sig
	e.rememberSignal(sig)
}

// SetActiveNames selects which registered strategies receive events. Names
// must be registered.
func (e *Engine) SetActiveNames(names []string) error {
	if len(names) == 0 {
		return fmt.Errorf("active names cannot be empty")
	}
	for _, name := range names {
		if _, err := e.registry.Get(name); err != nil {
			return fmt.Errorf("strategy %q: %w", name, err)
		}
	}
	e.mu.Lock()
	defer e.mu.Unlock()
	e.closeChannelsLocked()
	e.activeNames = names
	const buf = 64
	e.quoteChs = make(map[string]chan domain.Quote, len(names))
	e.fillChs = make(map[string]chan domain.Fill, len(names))
	for _, name := range names {
		e.quoteChs[name] = make(chan domain.Quote, buf)
		e.fillChs[name] = make(chan domain.Fill, buf)
	}
	e.logger.Info("active strategies set", slog.Any("strategies", names))
	return nil
}

// ActiveNames returns the currently enabled strategy names.
func (e *Engine) ActiveNames() []string {
	e.mu.Lock()
	defer e.mu.Unlock()
	out := make([]string, len(e.activeNames))
	copy(out, e.activeNames)
	return out
}

// RecentSignals returns up to limit most recent emitted signals, newest
// first.
func (e *Engine) RecentSignals(limit int) []domain.TradeSignal {
	if limit <= 0 {
		limit = 20
	}
	e.mu.Lock()
	defer e.mu.Unlock()
	n := len(e.recentSignals)
	if limit > n {
		limit = n
	}
	out := make([]domain.TradeSignal, 0, limit)
	for i := n - 1; i >= n-limit; i-- {
		out = append(out, e.recentSignals[i])
	}
	return out
}

// HandleQuote fans a quote out to every active strategy. A strategy whose
// buffer is full skips this update rather than stalling the feed.
func (e *Engine) HandleQuote(ctx context.Context, q domain.Quote) error {
	e.mu.Lock()
	names := e.activeNames
	chs := e.quoteChs
	e.mu.Unlock()

	for _, name := range names {
		ch, ok := chs[name]
		if !ok {
			continue
		}
		select {
		case ch <- q:
		case <-ctx.Done():
			return ctx.Err()
		default:
			e.logger.Debug("quote dropped, strategy backlogged", slog.String("strategy", name))
		}
	}
	return nil
}

// HandleFill fans a fill notification out to every active strategy. Fills
// block rather than drop: losing one desynchronizes round state.
func (e *Engine) HandleFill(ctx context.Context, fill domain.Fill) error {
	e.mu.Lock()
	names := e.activeNames
	chs := e.fillChs
	e.mu.Unlock()

	for _, name := range names {
		ch, ok := chs[name]
		if !ok {
			continue
		}
		select {
		case ch <- fill:
		case <-ctx.Done():
			return ctx.Err()
		}
	}
	return nil
}

// Run starts one goroutine per enabled strategy and blocks until the context
// is cancelled or a strategy fails fatally.
func (e *Engine) Run(ctx context.Context) error {
	e.mu.Lock()
	names := make([]string, len(e.activeNames))
	copy(names, e.activeNames)
	e.mu.Unlock()

	if len(names) == 0 {
		e.logger.Info("no active strategies, blocking until context done")
		<-ctx.Done()
		return ctx.Err()
	}

	e.logger.Info("strategy engine started", slog.Any("strategies", names))
	defer func() {
		e.mu.Lock()
		e.closeChannelsLocked()
		e.mu.Unlock()
		e.logger.Info("strategy engine stopped")
	}()

	g, gctx := errgroup.WithContext(ctx)
	for _, name := range names {
		name := name
		g.Go(func() error {
			return e.runStrategy(gctx, name)
		})
	}
	return g.Wait()
}

// runStrategy reads one strategy's channels and emits its signals.
func (e *Engine) runStrategy(ctx context.Context, name string) error {
	strat, err := e.registry.Get(name)
	if err != nil {
		return err
	}
	if err := strat.Init(ctx); err != nil {
		return fmt.Errorf("strategy %s init: %w", name, err)
	}
	defer func() { _ = strat.Close() }()

	e.mu.Lock()
	quoteCh := e.quoteChs[name]
	fillCh := e.fillChs[name]
	e.mu.Unlock()
	if quoteCh == nil || fillCh == nil {
		return nil
	}

	for {
		select {
		case <-ctx.Done():
			return ctx.Err()
		case q, ok := <-quoteCh:
			if !ok {
				return nil
			}
			signals, err := strat.OnQuote(ctx, q)
			if err != nil {
				e.logger.Warn("strategy OnQuote error",
					slog.String("strategy", name), slog.String("error", err.Error()))
				continue
			}
			e.emit(ctx, signals)
		case fill, ok := <-fillCh:
			if !ok {
				return nil
			}
			signals, err := strat.OnFill(ctx, fill)
			if err != nil {
				e.logger.Warn("strategy OnFill error",
					slog.String("strategy", name), slog.String("error", err.Error()))
				continue
			}
			e.emit(ctx, signals)
		}
	}
}

// emit sends each signal to the signal channel, respecting cancellation.
func (e *Engine) emit(ctx context.Context, signals []domain.TradeSignal) {
	for i := range signals {
		select {
		case <-ctx.Done():
			e.logger.Warn("context cancelled while emitting signals",
				slog.Int("remaining", len(signals)-i),
			)
			return
		case e.signalCh <- signals[i]:
			e.rememberSignal(signals[i])
			e.logger.Debug("signal emitted",
				slog.String("signal_id", signals[i].ID),
				slog.String("kind", string(signals[i].Kind)),
				slog.String("source", signals[i].Source),
			)
		}
	}
}

func (e *Engine) rememberSignal(sig domain.TradeSignal) {
	e.mu.Lock()
	defer e.mu.Unlock()
	e.recentSignals = append(e.recentSignals, sig)
	if overflow := len(e.recentSignals) - e.recentLimit; overflow > 0 {
		e.recentSignals = append([]domain.TradeSignal(nil), e.recentSignals[overflow:]...)
	}
}

func (e *Engine) closeChannelsLocked() {
	for _, ch := range e.quoteChs {
		close(ch)
	}
	for _, ch := range e.fillChs {
		close(ch)
	}
	e.quoteChs = nil
	e.fillChs = nil
}
