package postgres

import (
	"context"
	"fmt"

	"github.com/jackc/pgx/v5/pgxpool"

	"github.com/EthanAlgoX/Polymarket-TradeBot/internal/domain"
)

// OpportunityStore implements domain.OpportunityStore using PostgreSQL.
type OpportunityStore struct {
	pool *pgxpool.Pool
}

// NewOpportunityStore creates an OpportunityStore backed by the given pool.
func NewOpportunityStore(pool *pgxpool.Pool) *OpportunityStore {
	return &OpportunityStore{pool: pool}
}

// Insert stores a detected opportunity.
func (s *OpportunityStore) Insert(ctx context.Context, opp domain.ArbitrageOpportunity) error {
	_, err := s.pool.Exec(ctx, `
		INSERT INTO opportunities (id, market_id, ts, token_ids, prices, total_cost,
			potential_profit, max_volume, executed)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9)
		ON CONFLICT (id) DO NOTHING`,
		opp.ID, opp.MarketID, opp.Timestamp, opp.OutcomeTokenIDs, opp.Prices,
		opp.TotalCost, opp.PotentialProfit, opp.MaxVolume, opp.Executed,
	)
	if err != nil {
		return fmt.Errorf("postgres: insert opportunity %s: %w", opp.ID, err)
	}
	return nil
}

// MarkExecuted flags an opportunity as acted on.
func (s *OpportunityStore) MarkExecuted(ctx context.Context, id string) error {
	tag, err := s.pool.Exec(ctx, "UPDATE opportunities SET executed = TRUE WHERE id = $1", id)
	if err != nil {
		return fmt.Errorf("postgres: mark opportunity %s executed: %w", id, err)
	}
	if tag.RowsAffected() == 0 {
		return domain.ErrNotFound
	}
	return nil
}

// ListRecent returns the most recently detected opportunities.
func (s *OpportunityStore) ListRecent(ctx context.Context, limit int) ([]domain.ArbitrageOpportunity, error) {
	if limit <= 0 {
		limit = 50
	}

	rows, err := s.pool.Query(ctx, `
		SELECT id, market_id, ts, token_ids, prices, total_cost, potential_profit,
			max_volume, executed
		FROM opportunities ORDER BY ts DESC LIMIT $1`, limit)
	if err != nil {
		return nil, fmt.Errorf("postgres: list recent opportunities: %w", err)
	}
	defer rows.Close()

	var opps []domain.ArbitrageOpportunity
	for rows.Next() {
		var o domain.ArbitrageOpportunity
		err := rows.Scan(
			&o.ID, &o.MarketID, &o.Timestamp, &o.OutcomeTokenIDs, &o.Prices,
			&o.TotalCost, &o.PotentialProfit, &o.MaxVolume, &o.Executed,
		)
		if err != nil {
			return nil, fmt.Errorf("postgres: scan opportunity: %w", err)
		}
		opps = append(opps, o)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("postgres: list recent opportunities: %w", err)
	}
	return opps, nil
}

var _ domain.OpportunityStore = (*OpportunityStore)(nil)
