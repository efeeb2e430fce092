package service

import (
	"context"
	"fmt"
	"log/slog"
	"sync"
	"time"

	"github.com/EthanAlgoX/Polymarket-TradeBot/internal/domain"
)

// PositionService is the in-memory position ledger. Positions are keyed by
// (market, token): repeated entries average in, closes may be partial, and
// running highest/lowest watermarks feed trailing-stop logic.
//
// The ledger is the source of truth during a session; closed positions are
// mirrored to the store for history when one is configured.
type PositionService struct {
	store  domain.PositionStore
	logger *slog.Logger
	now    func() time.Time

	mu     sync.Mutex
	open   map[string]*domain.Position
	closed []domain.Position
}

// NewPositionService creates a PositionService. The store may be nil, in
// which case closed positions live only in memory.
func NewPositionService(store domain.PositionStore, logger *slog.Logger) *PositionService {
	return &PositionService{
		store:  store,
		logger: logger.With(slog.String("component", "position_service")),
		now:    time.Now,
		open:   make(map[string]*domain.Position),
	}
}

// AddPosition records a fill. If a position already exists for the same
// (market, token) key, it averages in: size-weighted entry price and summed
// size. Otherwise a new position starts with all watermarks at the entry
// price. It returns the resulting open position.
func (s *PositionService) AddPosition(pos domain.Position) domain.Position {
	s.mu.Lock()
	defer s.mu.Unlock()

	key := pos.Key()
	existing, ok := s.open[key]
	if !ok {
		p := pos
		if p.EntryTime.IsZero() {
			p.EntryTime = s.now().UTC()
		}
		p.CurrentPrice = p.EntryPrice
		p.HighestPrice = p.EntryPrice
		p.LowestPrice = p.EntryPrice
		s.open[key] = &p
		s.logger.Info("position opened",
			slog.String("key", key),
			slog.Float64("entry_price", p.EntryPrice),
			slog.Float64("size", p.Size),
		)
		return p
	}

	total := existing.Size + pos.Size
	if total > 0 {
		existing.EntryPrice = (existing.EntryPrice*existing.Size + pos.EntryPrice*pos.Size) / total
	}
	existing.Size = total
	existing.CurrentPrice = pos.EntryPrice
	if pos.EntryPrice > existing.HighestPrice {
		existing.HighestPrice = pos.EntryPrice
	}
	if pos.EntryPrice < existing.LowestPrice {
		existing.LowestPrice = pos.EntryPrice
	}
	s.logger.Info("position averaged in",
		slog.String("key", key),
		slog.Float64("entry_price", existing.EntryPrice),
		slog.Float64("size", existing.Size),
	)
	return *existing
}

// ClosePosition closes the (market, token) position at the given price.
// A size <= 0 or >= the open size closes the whole position; otherwise a
// closed snapshot of the requested size splits off and the open position
// shrinks. It returns the closed snapshot.
func (s *PositionService) ClosePosition(marketID, tokenID string, price, size float64) (domain.Position, error) {
	s.mu.Lock()
	key := marketID + ":" + tokenID
	pos, ok := s.open[key]
	if !ok {
		s.mu.Unlock()
		return domain.Position{}, fmt.Errorf("position_service: close %q: %w", key, domain.ErrNotFound)
	}

	closed := s.closeLocked(key, pos, price, size)
	s.mu.Unlock()

	s.logger.Info("position closed",
		slog.String("key", key),
		slog.Float64("exit_price", price),
		slog.Float64("size", closed.Size),
		slog.Float64("realized_pnl", closed.RealizedPnL()),
	)
	s.persistClosed(closed)
	return closed, nil
}

// closeLocked performs the ledger mutation and returns the closed snapshot.
func (s *PositionService) closeLocked(key string, pos *domain.Position, price, size float64) domain.Position {
	now := s.now().UTC()
	exitPrice := price

	if size <= 0 || size >= pos.Size {
		full := *pos
		full.Closed = true
		full.CurrentPrice = price
		full.ExitPrice = &exitPrice
		full.ExitTime = &now
		delete(s.open, key)
		s.closed = append(s.closed, full)
		return full
	}

	partial := *pos
	partial.Size = size
	partial.Closed = true
	partial.CurrentPrice = price
	partial.ExitPrice = &exitPrice
	partial.ExitTime = &now
	pos.Size -= size
	s.closed = append(s.closed, partial)
	return partial
}

// UpdatePrice marks the (market, token) position to the latest price and
// advances its highest/lowest watermarks. Unknown keys are ignored.
func (s *PositionService) UpdatePrice(marketID, tokenID string, price float64) {
	s.mu.Lock()
	defer s.mu.Unlock()

	pos, ok := s.open[marketID+":"+tokenID]
	if !ok {
		return
	}
	pos.CurrentPrice = price
	if price > pos.HighestPrice {
		pos.HighestPrice = price
	}
	if price < pos.LowestPrice {
		pos.LowestPrice = price
	}
}

// Open returns copies of all open positions.
func (s *PositionService) Open() []domain.Position {
	s.mu.Lock()
	defer s.mu.Unlock()
	out := make([]domain.Position, 0, len(s.open))
	for _, p := range s.open {
		out = append(out, *p)
	}
	return out
}

// OpenByMarket returns copies of the open positions in one market.
func (s *PositionService) OpenByMarket(marketID string) []domain.Position {
	s.mu.Lock()
	defer s.mu.Unlock()
	var out []domain.Position
	for _, p := range s.open {
		if p.MarketID == marketID {
			out = append(out, *p)
		}
	}
	return out
}

// OpenCount reports the number of open positions for the risk gates.
func (s *PositionService) OpenCount() int {
	s.mu.Lock()
	defer s.mu.Unlock()
	return len(s.open)
}

// Closed returns copies of all closed positions, oldest first.
func (s *PositionService) Closed() []domain.Position {
	s.mu.Lock()
	defer s.mu.Unlock()
	out := make([]domain.Position, len(s.closed))
	copy(out, s.closed)
	return out
}

// ForceCloseAll closes every open position at its current marked price and
// returns the closed snapshots. Used on shutdown and emergency stop.
func (s *PositionService) ForceCloseAll() []domain.Position {
	s.mu.Lock()
	keys := make([]string, 0, len(s.open))
	for key := range s.open {
		keys = append(keys, key)
	}
	out := make([]domain.Position, 0, len(keys))
	for _, key := range keys {
		pos := s.open[key]
		out = append(out, s.closeLocked(key, pos, pos.CurrentPrice, 0))
	}
	s.mu.Unlock()

	for _, closed := range out {
		s.logger.Warn("position force-closed",
			slog.String("key", closed.Key()),
			slog.Float64("exit_price", closed.CurrentPrice),
			slog.Float64("size", closed.Size),
		)
		s.persistClosed(closed)
	}
	return out
}

// GetPortfolioSummary aggregates the ledger in a single pass.
func (s *PositionService) GetPortfolioSummary() domain.PortfolioSummary {
	s.mu.Lock()
	defer s.mu.Unlock()

	sum := domain.PortfolioSummary{
		OpenPositions:   len(s.open),
		ClosedPositions: len(s.closed),
	}
	for _, p := range s.open {
		sum.TotalInvested += p.EntryPrice * p.Size
		sum.CurrentValue += p.CurrentPrice * p.Size
		sum.UnrealizedPnL += p.UnrealizedPnL()
	}
	for i := range s.closed {
		pnl := s.closed[i].RealizedPnL()
		sum.RealizedPnL += pnl
		if pnl > 0 {
			sum.WinningTrades++
		}
	}
	if len(s.closed) > 0 {
		sum.WinRate = float64(sum.WinningTrades) / float64(len(s.closed))
	}
	return sum
}

// persistClosed mirrors a closed position to the store, best effort.
func (s *PositionService) persistClosed(pos domain.Position) {
	if s.store == nil {
		return
	}
	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()
	if err := s.store.Insert(ctx, pos); err != nil {
		s.logger.Warn("closed position persist failed",
			slog.String("key", pos.Key()),
			slog.String("error", err.Error()),
		)
	}
}
