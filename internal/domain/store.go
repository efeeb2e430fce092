package domain

import (
	"context"
	"time"
)

// ListOpts provides pagination and filtering for list queries.
type ListOpts struct {
	Limit  int
	Offset int
	Since  *time.Time
	Until  *time.Time
}

// MarketStore persists market metadata.
type MarketStore interface {
	Upsert(ctx context.Context, market Market) error
	UpsertBatch(ctx context.Context, markets []Market) error
	GetByID(ctx context.Context, id string) (Market, error)
	GetByTokenID(ctx context.Context, tokenID string) (Market, error)
	ListActive(ctx context.Context, opts ListOpts) ([]Market, error)
	Count(ctx context.Context) (int64, error)
}

// OrderStore persists trading orders.
type OrderStore interface {
	Create(ctx context.Context, order Order) error
	UpdateStatus(ctx context.Context, id string, status OrderStatus) error
	GetByID(ctx context.Context, id string) (Order, error)
	ListOpen(ctx context.Context, wallet string) ([]Order, error)
	ListByRound(ctx context.Context, roundID string) ([]Order, error)
}

// TradeStore persists executed fills.
type TradeStore interface {
	Insert(ctx context.Context, trade TradeRecord) error
	InsertBatch(ctx context.Context, trades []TradeRecord) error
	ListByMarket(ctx context.Context, marketID string, opts ListOpts) ([]TradeRecord, error)
	SumPnL(ctx context.Context, since time.Time) (float64, error)
}

// PositionStore persists closed position history.
type PositionStore interface {
	Insert(ctx context.Context, pos Position) error
	ListClosed(ctx context.Context, marketID string, opts ListOpts) ([]Position, error)
}

// RoundStore persists completed and stopped dip-arbitrage rounds.
type RoundStore interface {
	Insert(ctx context.Context, round Round) error
	GetByID(ctx context.Context, id string) (Round, error)
	ListRecent(ctx context.Context, limit int) ([]Round, error)
	SumProfit(ctx context.Context, since time.Time) (float64, error)
}

// OpportunityStore persists detected arbitrage opportunities.
type OpportunityStore interface {
	Insert(ctx context.Context, opp ArbitrageOpportunity) error
	MarkExecuted(ctx context.Context, id string) error
	ListRecent(ctx context.Context, limit int) ([]ArbitrageOpportunity, error)
}

// DailyStatsStore archives per-day risk statistics.
type DailyStatsStore interface {
	Upsert(ctx context.Context, stats DailyStats) error
	GetByDate(ctx context.Context, date string) (DailyStats, error)
	ListRecent(ctx context.Context, limit int) ([]DailyStats, error)
}

// AuditEntry is a single audit log row.
type AuditEntry struct {
	ID        int64
	Event     string
	Detail    map[string]any
	CreatedAt time.Time
}

// AuditStore persists an append-only audit log of risk and lifecycle events.
type AuditStore interface {
	Log(ctx context.Context, event string, detail map[string]any) error
	List(ctx context.Context, opts ListOpts) ([]AuditEntry, error)
}
