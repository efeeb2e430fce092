package postgres

import (
	"context"
	"errors"
	"fmt"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"

	"github.com/EthanAlgoX/Polymarket-TradeBot/internal/domain"
)

// MarketStore implements domain.MarketStore using PostgreSQL.
type MarketStore struct {
	pool *pgxpool.Pool
}

// NewMarketStore creates a MarketStore backed by the given connection pool.
func NewMarketStore(pool *pgxpool.Pool) *MarketStore {
	return &MarketStore{pool: pool}
}

const marketCols = `id, question, slug, outcome_yes, outcome_no, token_yes, token_no,
	condition_id, neg_risk, volume, status, closed_at, created_at, updated_at`

const marketUpsertSQL = `
	INSERT INTO markets (id, question, slug, outcome_yes, outcome_no, token_yes, token_no,
		condition_id, neg_risk, volume, status, closed_at, created_at, updated_at)
	VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10, $11, $12, NOW(), NOW())
	ON CONFLICT (id) DO UPDATE SET
		question = EXCLUDED.question,
		slug = EXCLUDED.slug,
		outcome_yes = EXCLUDED.outcome_yes,
		outcome_no = EXCLUDED.outcome_no,
		token_yes = EXCLUDED.token_yes,
		token_no = EXCLUDED.token_no,
		condition_id = EXCLUDED.condition_id,
		neg_risk = EXCLUDED.neg_risk,
		volume = EXCLUDED.volume,
		status = EXCLUDED.status,
		closed_at = EXCLUDED.closed_at,
		updated_at = NOW()`

func marketUpsertArgs(m domain.Market) []any {
	return []any{
		m.ID, m.Question, m.Slug, m.Outcomes[0], m.Outcomes[1],
		m.TokenIDs[0], m.TokenIDs[1], m.ConditionID, m.NegRisk,
		m.Volume, string(m.Status), m.ClosedAt,
	}
}

func scanMarket(row pgx.Row) (domain.Market, error) {
	var m domain.Market
	var status string
	err := row.Scan(
		&m.ID, &m.Question, &m.Slug, &m.Outcomes[0], &m.Outcomes[1],
		&m.TokenIDs[0], &m.TokenIDs[1], &m.ConditionID, &m.NegRisk,
		&m.Volume, &status, &m.ClosedAt, &m.CreatedAt, &m.UpdatedAt,
	)
	if err != nil {
		return domain.Market{}, err
	}
	m.Status = domain.MarketStatus(status)
	return m, nil
}

// Upsert inserts or updates a single market.
func (s *MarketStore) Upsert(ctx context.Context, market domain.Market) error {
	if _, err := s.pool.Exec(ctx, marketUpsertSQL, marketUpsertArgs(market)...); err != nil {
		return fmt.Errorf("postgres: upsert market %s: %w", market.ID, err)
	}
	return nil
}

// UpsertBatch inserts or updates markets in a single batch round-trip.
func (s *MarketStore) UpsertBatch(ctx context.Context, markets []domain.Market) error {
	if len(markets) == 0 {
		return nil
	}

	batch := &pgx.Batch{}
	for _, m := range markets {
		batch.Queue(marketUpsertSQL, marketUpsertArgs(m)...)
	}
	br := s.pool.SendBatch(ctx, batch)
	defer br.Close()

	for range markets {
		if _, err := br.Exec(); err != nil {
			return fmt.Errorf("postgres: upsert market batch: %w", err)
		}
	}
	return nil
}

// GetByID returns a market by ID, or domain.ErrNotFound.
func (s *MarketStore) GetByID(ctx context.Context, id string) (domain.Market, error) {
	row := s.pool.QueryRow(ctx, "SELECT "+marketCols+" FROM markets WHERE id = $1", id)
	m, err := scanMarket(row)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return domain.Market{}, domain.ErrNotFound
		}
		return domain.Market{}, fmt.Errorf("postgres: get market %s: %w", id, err)
	}
	return m, nil
}

// GetByTokenID returns the market owning the given outcome token.
func (s *MarketStore) GetByTokenID(ctx context.Context, tokenID string) (domain.Market, error) {
	row := s.pool.QueryRow(ctx,
		"SELECT "+marketCols+" FROM markets WHERE token_yes = $1 OR token_no = $1", tokenID)
	m, err := scanMarket(row)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return domain.Market{}, domain.ErrNotFound
		}
		return domain.Market{}, fmt.Errorf("postgres: get market by token %s: %w", tokenID, err)
	}
	return m, nil
}

// ListActive returns active markets ordered by volume descending.
func (s *MarketStore) ListActive(ctx context.Context, opts domain.ListOpts) ([]domain.Market, error) {
	limit := opts.Limit
	if limit <= 0 {
		limit = 100
	}

	rows, err := s.pool.Query(ctx,
		"SELECT "+marketCols+" FROM markets WHERE status = $1 ORDER BY volume DESC LIMIT $2 OFFSET $3",
		string(domain.MarketStatusActive), limit, opts.Offset)
	if err != nil {
		return nil, fmt.Errorf("postgres: list active markets: %w", err)
	}
	defer rows.Close()

	var markets []domain.Market
	for rows.Next() {
		m, err := scanMarket(rows)
		if err != nil {
			return nil, fmt.Errorf("postgres: scan market: %w", err)
		}
		markets = append(markets, m)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("postgres: list active markets: %w", err)
	}
	return markets, nil
}

// Count returns the total number of stored markets.
func (s *MarketStore) Count(ctx context.Context) (int64, error) {
	var count int64
	if err := s.pool.QueryRow(ctx, "SELECT COUNT(*) FROM markets").Scan(&count); err != nil {
		return 0, fmt.Errorf("postgres: count markets: %w", err)
	}
	return count, nil
}

var _ domain.MarketStore = (*MarketStore)(nil)
