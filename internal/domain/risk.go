package domain

import "time"

// DailyStats is one archived trading day, keyed by UTC date.
type DailyStats struct {
	Date        string // "2006-01-02" UTC
	PnL         float64
	TradesCount int
	PeakPnL     float64
	MaxDrawdown float64
}

// RiskSnapshot is a read-only view of the risk manager's state for the status
// surface and the notifier.
type RiskSnapshot struct {
	DailyPnL             float64
	DailyTradesCount     int
	OpenPositionsCount   int
	CircuitBreakerActive bool
	CircuitBreakerReason string
	CircuitBreakerTime   *time.Time
	CooldownMarkets      map[string]time.Time
	LastTradeTime        *time.Time
	PeakPnL              float64
	MaxDrawdown          float64
}

// RejectReason explains why the risk manager declined a candidate trade.
// Rejections are policy outcomes, not errors, and are never retried.
type RejectReason string

const (
	RejectNone            RejectReason = ""
	RejectCircuitBreaker  RejectReason = "circuit_breaker_active"
	RejectMarketCooldown  RejectReason = "market_in_cooldown"
	RejectTradeInterval   RejectReason = "min_trade_interval"
	RejectDailyTradeLimit RejectReason = "daily_trade_limit"
	RejectOpenPositions   RejectReason = "max_open_positions"
	RejectBelowMinProfit  RejectReason = "below_min_profit"
	RejectInsufficientBal RejectReason = "insufficient_balance"
	RejectNoLiquidity     RejectReason = "no_liquidity"
)
