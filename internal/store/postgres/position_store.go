package postgres

import (
	"context"
	"fmt"

	"github.com/jackc/pgx/v5/pgxpool"

	"github.com/EthanAlgoX/Polymarket-TradeBot/internal/domain"
)

// PositionStore implements domain.PositionStore using PostgreSQL. Only closed
// positions reach the database; open positions live in the in-memory ledger.
type PositionStore struct {
	pool *pgxpool.Pool
}

// NewPositionStore creates a PositionStore backed by the given connection pool.
func NewPositionStore(pool *pgxpool.Pool) *PositionStore {
	return &PositionStore{pool: pool}
}

// Insert stores a position snapshot.
func (s *PositionStore) Insert(ctx context.Context, pos domain.Position) error {
	_, err := s.pool.Exec(ctx, `
		INSERT INTO positions (market_id, token_id, outcome, side, entry_price, entry_time,
			size, current_price, highest_price, lowest_price, stop_price, closed,
			exit_price, exit_time)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10, $11, $12, $13, $14)`,
		pos.MarketID, pos.TokenID, pos.Outcome, string(pos.Side),
		pos.EntryPrice, pos.EntryTime, pos.Size, pos.CurrentPrice,
		pos.HighestPrice, pos.LowestPrice, pos.StopPrice, pos.Closed,
		pos.ExitPrice, pos.ExitTime,
	)
	if err != nil {
		return fmt.Errorf("postgres: insert position %s: %w", pos.Key(), err)
	}
	return nil
}

// ListClosed returns closed positions, newest exit first. An empty marketID
// lists across all markets.
func (s *PositionStore) ListClosed(ctx context.Context, marketID string, opts domain.ListOpts) ([]domain.Position, error) {
	limit := opts.Limit
	if limit <= 0 {
		limit = 100
	}

	rows, err := s.pool.Query(ctx, `
		SELECT market_id, token_id, outcome, side, entry_price, entry_time, size,
			current_price, highest_price, lowest_price, stop_price, closed,
			exit_price, exit_time
		FROM positions
		WHERE closed AND ($1 = '' OR market_id = $1)
		ORDER BY exit_time DESC NULLS LAST
		LIMIT $2 OFFSET $3`,
		marketID, limit, opts.Offset)
	if err != nil {
		return nil, fmt.Errorf("postgres: list closed positions: %w", err)
	}
	defer rows.Close()

	var positions []domain.Position
	for rows.Next() {
		var p domain.Position
		var side string
		err := rows.Scan(
			&p.MarketID, &p.TokenID, &p.Outcome, &side, &p.EntryPrice, &p.EntryTime,
			&p.Size, &p.CurrentPrice, &p.HighestPrice, &p.LowestPrice, &p.StopPrice,
			&p.Closed, &p.ExitPrice, &p.ExitTime,
		)
		if err != nil {
			return nil, fmt.Errorf("postgres: scan position: %w", err)
		}
		p.Side = domain.OrderSide(side)
		positions = append(positions, p)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("postgres: list closed positions: %w", err)
	}
	return positions, nil
}

var _ domain.PositionStore = (*PositionStore)(nil)
