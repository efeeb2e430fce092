package postgres

import (
	"context"
	"fmt"
	"time"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"

	"github.com/EthanAlgoX/Polymarket-TradeBot/internal/domain"
)

// TradeStore implements domain.TradeStore using PostgreSQL.
type TradeStore struct {
	pool *pgxpool.Pool
}

// NewTradeStore creates a TradeStore backed by the given connection pool.
func NewTradeStore(pool *pgxpool.Pool) *TradeStore {
	return &TradeStore{pool: pool}
}

const tradeCols = `id, ts, market_id, token_id, round_id, signal_id, kind, side,
	price, size, pnl, fee_usd`

const tradeInsertSQL = `
	INSERT INTO trades (ts, market_id, token_id, round_id, signal_id, kind, side,
		price, size, pnl, fee_usd)
	VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10, $11)`

func tradeInsertArgs(t domain.TradeRecord) []any {
	return []any{
		t.Timestamp, t.MarketID, t.TokenID, t.RoundID, t.SignalID,
		string(t.Kind), string(t.Side), t.Price, t.Size, t.PnL, t.FeeUSD,
	}
}

func scanTradeRows(rows pgx.Rows) ([]domain.TradeRecord, error) {
	var trades []domain.TradeRecord
	for rows.Next() {
		var t domain.TradeRecord
		var kind, side string
		err := rows.Scan(
			&t.ID, &t.Timestamp, &t.MarketID, &t.TokenID, &t.RoundID,
			&t.SignalID, &kind, &side, &t.Price, &t.Size, &t.PnL, &t.FeeUSD,
		)
		if err != nil {
			return nil, err
		}
		t.Kind = domain.SignalKind(kind)
		t.Side = domain.OrderSide(side)
		trades = append(trades, t)
	}
	return trades, rows.Err()
}

// Insert stores a single fill record.
func (s *TradeStore) Insert(ctx context.Context, trade domain.TradeRecord) error {
	if _, err := s.pool.Exec(ctx, tradeInsertSQL, tradeInsertArgs(trade)...); err != nil {
		return fmt.Errorf("postgres: insert trade: %w", err)
	}
	return nil
}

// InsertBatch stores fill records in a single batch round-trip.
func (s *TradeStore) InsertBatch(ctx context.Context, trades []domain.TradeRecord) error {
	if len(trades) == 0 {
		return nil
	}

	batch := &pgx.Batch{}
	for _, t := range trades {
		batch.Queue(tradeInsertSQL, tradeInsertArgs(t)...)
	}
	br := s.pool.SendBatch(ctx, batch)
	defer br.Close()

	for range trades {
		if _, err := br.Exec(); err != nil {
			return fmt.Errorf("postgres: insert trade batch: %w", err)
		}
	}
	return nil
}

// ListByMarket returns fills for a market, newest first.
func (s *TradeStore) ListByMarket(ctx context.Context, marketID string, opts domain.ListOpts) ([]domain.TradeRecord, error) {
	limit := opts.Limit
	if limit <= 0 {
		limit = 100
	}
	since := time.Time{}
	if opts.Since != nil {
		since = *opts.Since
	}

	rows, err := s.pool.Query(ctx,
		"SELECT "+tradeCols+" FROM trades WHERE market_id = $1 AND ts >= $2 ORDER BY ts DESC LIMIT $3 OFFSET $4",
		marketID, since, limit, opts.Offset)
	if err != nil {
		return nil, fmt.Errorf("postgres: list trades %s: %w", marketID, err)
	}
	defer rows.Close()

	trades, err := scanTradeRows(rows)
	if err != nil {
		return nil, fmt.Errorf("postgres: scan trades %s: %w", marketID, err)
	}
	return trades, nil
}

// ListBefore returns all fills older than the cutoff, oldest first. Used by
// the archiver to select rows for cold storage.
func (s *TradeStore) ListBefore(ctx context.Context, before time.Time) ([]domain.TradeRecord, error) {
	rows, err := s.pool.Query(ctx,
		"SELECT "+tradeCols+" FROM trades WHERE ts < $1 ORDER BY ts", before)
	if err != nil {
		return nil, fmt.Errorf("postgres: list trades before %s: %w", before.Format(time.RFC3339), err)
	}
	defer rows.Close()

	trades, err := scanTradeRows(rows)
	if err != nil {
		return nil, fmt.Errorf("postgres: scan trades before: %w", err)
	}
	return trades, nil
}

// SumPnL returns the total realized profit of fills since the given time.
func (s *TradeStore) SumPnL(ctx context.Context, since time.Time) (float64, error) {
	var sum float64
	err := s.pool.QueryRow(ctx,
		"SELECT COALESCE(SUM(pnl), 0) FROM trades WHERE ts >= $1", since,
	).Scan(&sum)
	if err != nil {
		return 0, fmt.Errorf("postgres: sum pnl: %w", err)
	}
	return sum, nil
}

var _ domain.TradeStore = (*TradeStore)(nil)
