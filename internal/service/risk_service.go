package service

import (
	"context"
	"log/slog"
	"sync"
	"time"

	"github.com/EthanAlgoX/Polymarket-TradeBot/internal/arbitrage"
	"github.com/EthanAlgoX/Polymarket-TradeBot/internal/domain"
)

const dayFormat = "2006-01-02"

// balanceUseFraction is the share of the account balance a single trade may
// consume; the remainder absorbs fees and price drift between sizing and fill.
const balanceUseFraction = 0.95

// RiskConfig holds the tunable limits for pre-trade risk checks. A zero value
// for a count or duration limit disables that gate.
type RiskConfig struct {
	MinProfit        float64       // minimum per-share profit to act on
	MaxTradeAmount   float64       // max capital committed to one trade, USDC
	MaxDailyTrades   int           // trades allowed per UTC day
	MaxOpenPositions int           // concurrent open positions allowed
	MinTradeInterval time.Duration // minimum spacing between recorded trades
	DailyPnLLimit    float64       // daily loss floor, negative (e.g. -50)
	MarketCooldown   time.Duration // per-market pause after a losing trade
	BreakerCooldown  time.Duration // circuit breaker auto-reset delay
}

// OpenPositionCounter reports how many positions are currently open. The
// position ledger satisfies it.
type OpenPositionCounter interface {
	OpenCount() int
}

// RiskService is the account-wide risk manager. It gates every candidate
// trade through an ordered chain of checks, tracks daily P&L with peak and
// max-drawdown, cools down markets that just lost money, and latches a
// circuit breaker when the daily loss floor is breached.
//
// A single instance serializes CheckOpportunity and RecordTrade across all
// concurrently evaluated markets; it is the boundary for account-level limits.
type RiskService struct {
	cfg       RiskConfig
	positions OpenPositionCounter
	daily     domain.DailyStatsStore
	audit     domain.AuditStore
	logger    *slog.Logger
	now       func() time.Time

	mu            sync.Mutex
	day           string
	dailyPnL      float64
	dailyTrades   int
	peakPnL       float64
	maxDrawdown   float64
	lastTrade     *time.Time
	cooldowns     map[string]time.Time // market id -> cooldown expiry
	breakerActive bool
	breakerReason string
	breakerSince  *time.Time
}

// NewRiskService creates a RiskService. The daily-stats and audit stores may
// be nil; archiving and audit logging are then skipped.
func NewRiskService(
	cfg RiskConfig,
	positions OpenPositionCounter,
	daily domain.DailyStatsStore,
	audit domain.AuditStore,
	logger *slog.Logger,
) *RiskService {
	return &RiskService{
		cfg:       cfg,
		positions: positions,
		daily:     daily,
		audit:     audit,
		logger:    logger.With(slog.String("component", "risk_service")),
		now:       time.Now,
		cooldowns: make(map[string]time.Time),
	}
}

// CheckOpportunity evaluates the gate chain against a candidate opportunity
// and the current balance. It returns true when every gate passes, otherwise
// false plus the reason of the first gate that failed. The gate order is part
// of the contract: callers rely on stable reject reasons.
func (s *RiskService) CheckOpportunity(ctx context.Context, opp domain.ArbitrageOpportunity, balance float64) (bool, domain.RejectReason) {
	now := s.now().UTC()

	s.mu.Lock()
	defer s.mu.Unlock()
	s.rolloverLocked(ctx, now)
	s.maybeResetBreakerLocked(now)

	// Gate 1: circuit breaker.
	if s.breakerActive {
		return false, domain.RejectCircuitBreaker
	}

	// Gate 2: per-market cooldown, lazily purged once expired.
	if until, ok := s.cooldowns[opp.MarketID]; ok {
		if now.Before(until) {
			return false, domain.RejectMarketCooldown
		}
		delete(s.cooldowns, opp.MarketID)
	}

	// Gate 3: minimum spacing between trades.
	if s.cfg.MinTradeInterval > 0 && s.lastTrade != nil && now.Sub(*s.lastTrade) < s.cfg.MinTradeInterval {
		return false, domain.RejectTradeInterval
	}

	// Gate 4: daily trade budget.
	if s.cfg.MaxDailyTrades > 0 && s.dailyTrades >= s.cfg.MaxDailyTrades {
		return false, domain.RejectDailyTradeLimit
	}

	// Gate 5: open position budget.
	if s.cfg.MaxOpenPositions > 0 && s.positions != nil && s.positions.OpenCount() >= s.cfg.MaxOpenPositions {
		return false, domain.RejectOpenPositions
	}

	// Gate 6: minimum edge.
	if opp.PotentialProfit < s.cfg.MinProfit {
		return false, domain.RejectBelowMinProfit
	}

	// Gate 7: worst-case spend must fit the balance.
	if opp.TotalCost*opp.MaxVolume > balance {
		return false, domain.RejectInsufficientBal
	}

	// Gate 8: there must be something to buy.
	if opp.MaxVolume <= 0 {
		return false, domain.RejectNoLiquidity
	}

	return true, domain.RejectNone
}

// CalculateSafeSize clamps the tradable size to the binding constraint among
// available liquidity, the per-trade capital cap, and 95% of the balance.
func (s *RiskService) CalculateSafeSize(opp domain.ArbitrageOpportunity, balance float64) float64 {
	if opp.TotalCost <= 0 {
		return 0
	}
	size := opp.MaxVolume
	if s.cfg.MaxTradeAmount > 0 {
		if capped := s.cfg.MaxTradeAmount / opp.TotalCost; capped < size {
			size = capped
		}
	}
	if affordable := balance * balanceUseFraction / opp.TotalCost; affordable < size {
		size = affordable
	}
	if size < 0 {
		size = 0
	}
	return arbitrage.RoundSize(size)
}

// RecordTrade books a realized P&L delta: updates the daily totals, the
// running peak and max drawdown, applies a market cooldown on a loss, and
// trips the circuit breaker when the daily loss floor is breached.
func (s *RiskService) RecordTrade(ctx context.Context, pnl float64, isWinner bool, marketID string) {
	now := s.now().UTC()

	s.mu.Lock()
	s.rolloverLocked(ctx, now)

	s.dailyPnL += pnl
	s.dailyTrades++
	t := now
	s.lastTrade = &t

	if s.dailyPnL > s.peakPnL {
		s.peakPnL = s.dailyPnL
	}
	if dd := s.peakPnL - s.dailyPnL; dd > s.maxDrawdown {
		s.maxDrawdown = dd
	}

	if !isWinner && marketID != "" && s.cfg.MarketCooldown > 0 {
		s.cooldowns[marketID] = now.Add(s.cfg.MarketCooldown)
	}

	tripped := false
	if !s.breakerActive && s.dailyPnL <= s.cfg.DailyPnLLimit {
		s.breakerActive = true
		s.breakerReason = "daily loss limit breached"
		since := now
		s.breakerSince = &since
		tripped = true
	}
	dailyPnL := s.dailyPnL
	s.mu.Unlock()

	s.logger.Info("trade recorded",
		slog.Float64("pnl", pnl),
		slog.Bool("winner", isWinner),
		slog.String("market_id", marketID),
		slog.Float64("daily_pnl", dailyPnL),
	)

	if tripped {
		s.logger.Error("circuit breaker tripped",
			slog.Float64("daily_pnl", dailyPnL),
			slog.Float64("limit", s.cfg.DailyPnLLimit),
		)
		if s.audit != nil {
			if err := s.audit.Log(ctx, "circuit_breaker_tripped", map[string]any{
				"daily_pnl": dailyPnL,
				"limit":     s.cfg.DailyPnLLimit,
			}); err != nil {
				s.logger.Warn("audit log failed", slog.String("error", err.Error()))
			}
		}
	}
}

// TripBreaker activates the circuit breaker manually, e.g. from an operator
// emergency-stop endpoint.
func (s *RiskService) TripBreaker(reason string) {
	now := s.now().UTC()
	s.mu.Lock()
	s.breakerActive = true
	s.breakerReason = reason
	s.breakerSince = &now
	s.mu.Unlock()
	s.logger.Error("circuit breaker tripped manually", slog.String("reason", reason))
}

// Snapshot returns the current risk state. Reading metrics also gives the
// circuit breaker a chance to auto-reset once its cooldown has elapsed.
func (s *RiskService) Snapshot(ctx context.Context) domain.RiskSnapshot {
	now := s.now().UTC()

	s.mu.Lock()
	defer s.mu.Unlock()
	s.rolloverLocked(ctx, now)
	s.maybeResetBreakerLocked(now)

	cooldowns := make(map[string]time.Time, len(s.cooldowns))
	for m, until := range s.cooldowns {
		if now.Before(until) {
			cooldowns[m] = until
		}
	}
	return domain.RiskSnapshot{
		DailyPnL:             s.dailyPnL,
		DailyTradesCount:     s.dailyTrades,
		OpenPositionsCount:   s.openCountLocked(),
		CircuitBreakerActive: s.breakerActive,
		CircuitBreakerReason: s.breakerReason,
		CircuitBreakerTime:   s.breakerSince,
		CooldownMarkets:      cooldowns,
		LastTradeTime:        s.lastTrade,
		PeakPnL:              s.peakPnL,
		MaxDrawdown:          s.maxDrawdown,
	}
}

func (s *RiskService) openCountLocked() int {
	if s.positions == nil {
		return 0
	}
	return s.positions.OpenCount()
}

// rolloverLocked archives the finished day and resets all daily state when
// the UTC date has changed. A new trading day also clears the circuit breaker
// regardless of its cooldown.
func (s *RiskService) rolloverLocked(ctx context.Context, now time.Time) {
	date := now.Format(dayFormat)
	if s.day == "" {
		s.day = date
		return
	}
	if date == s.day {
		return
	}

	stats := domain.DailyStats{
		Date:        s.day,
		PnL:         s.dailyPnL,
		TradesCount: s.dailyTrades,
		PeakPnL:     s.peakPnL,
		MaxDrawdown: s.maxDrawdown,
	}
	if s.daily != nil {
		if err := s.daily.Upsert(ctx, stats); err != nil {
			s.logger.Warn("daily stats archive failed",
				slog.String("date", stats.Date),
				slog.String("error", err.Error()),
			)
		}
	}
	s.logger.Info("day rollover",
		slog.String("closed_day", s.day),
		slog.Float64("pnl", stats.PnL),
		slog.Int("trades", stats.TradesCount),
		slog.Float64("max_drawdown", stats.MaxDrawdown),
	)

	s.day = date
	s.dailyPnL = 0
	s.dailyTrades = 0
	s.peakPnL = 0
	s.maxDrawdown = 0
	s.breakerActive = false
	s.breakerReason = ""
	s.breakerSince = nil
}

func (s *RiskService) maybeResetBreakerLocked(now time.Time) {
	if !s.breakerActive || s.cfg.BreakerCooldown <= 0 || s.breakerSince == nil {
		return
	}
	if now.Sub(*s.breakerSince) < s.cfg.BreakerCooldown {
		return
	}
	s.breakerActive = false
	s.breakerReason = ""
	s.breakerSince = nil
	s.logger.Info("circuit breaker reset after cooldown")
}
