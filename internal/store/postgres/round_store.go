package postgres

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"time"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"

	"github.com/EthanAlgoX/Polymarket-TradeBot/internal/domain"
)

// RoundStore implements domain.RoundStore using PostgreSQL. Legs are stored
// as JSONB documents since they are written once and only read back whole.
type RoundStore struct {
	pool *pgxpool.Pool
}

// NewRoundStore creates a RoundStore backed by the given connection pool.
func NewRoundStore(pool *pgxpool.Pool) *RoundStore {
	return &RoundStore{pool: pool}
}

func marshalLeg(leg *domain.Leg) ([]byte, error) {
	if leg == nil {
		return nil, nil
	}
	return json.Marshal(leg)
}

func unmarshalLeg(data []byte) (*domain.Leg, error) {
	if len(data) == 0 {
		return nil, nil
	}
	var leg domain.Leg
	if err := json.Unmarshal(data, &leg); err != nil {
		return nil, err
	}
	return &leg, nil
}

// Insert stores a terminal round.
func (s *RoundStore) Insert(ctx context.Context, round domain.Round) error {
	leg1, err := marshalLeg(round.Leg1)
	if err != nil {
		return fmt.Errorf("postgres: marshal round %s leg1: %w", round.ID, err)
	}
	leg2, err := marshalLeg(round.Leg2)
	if err != nil {
		return fmt.Errorf("postgres: marshal round %s leg2: %w", round.ID, err)
	}

	_, err = s.pool.Exec(ctx, `
		INSERT INTO rounds (id, market_id, phase, start_time, leg1, leg2, leg1_fill_time,
			total_cost, profit, merged, stop_loss)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10, $11)
		ON CONFLICT (id) DO UPDATE SET
			phase = EXCLUDED.phase,
			leg1 = EXCLUDED.leg1,
			leg2 = EXCLUDED.leg2,
			leg1_fill_time = EXCLUDED.leg1_fill_time,
			total_cost = EXCLUDED.total_cost,
			profit = EXCLUDED.profit,
			merged = EXCLUDED.merged,
			stop_loss = EXCLUDED.stop_loss`,
		round.ID, round.MarketID, string(round.Phase), round.StartTime,
		leg1, leg2, round.Leg1FillTime, round.TotalCost, round.Profit,
		round.Merged, round.StopLossTriggered,
	)
	if err != nil {
		return fmt.Errorf("postgres: insert round %s: %w", round.ID, err)
	}
	return nil
}

func scanRound(row pgx.Row) (domain.Round, error) {
	var r domain.Round
	var phase string
	var leg1, leg2 []byte
	err := row.Scan(
		&r.ID, &r.MarketID, &phase, &r.StartTime, &leg1, &leg2,
		&r.Leg1FillTime, &r.TotalCost, &r.Profit, &r.Merged, &r.StopLossTriggered,
	)
	if err != nil {
		return domain.Round{}, err
	}
	r.Phase = domain.RoundPhase(phase)
	if r.Leg1, err = unmarshalLeg(leg1); err != nil {
		return domain.Round{}, err
	}
	if r.Leg2, err = unmarshalLeg(leg2); err != nil {
		return domain.Round{}, err
	}
	return r, nil
}

const roundCols = `id, market_id, phase, start_time, leg1, leg2, leg1_fill_time,
	total_cost, profit, merged, stop_loss`

// GetByID returns a round by ID, or domain.ErrNotFound.
func (s *RoundStore) GetByID(ctx context.Context, id string) (domain.Round, error) {
	row := s.pool.QueryRow(ctx, "SELECT "+roundCols+" FROM rounds WHERE id = $1", id)
	r, err := scanRound(row)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return domain.Round{}, domain.ErrNotFound
		}
		return domain.Round{}, fmt.Errorf("postgres: get round %s: %w", id, err)
	}
	return r, nil
}

// ListRecent returns the most recently started rounds.
func (s *RoundStore) ListRecent(ctx context.Context, limit int) ([]domain.Round, error) {
	if limit <= 0 {
		limit = 50
	}

	rows, err := s.pool.Query(ctx,
		"SELECT "+roundCols+" FROM rounds ORDER BY start_time DESC LIMIT $1", limit)
	if err != nil {
		return nil, fmt.Errorf("postgres: list recent rounds: %w", err)
	}
	defer rows.Close()

	var rounds []domain.Round
	for rows.Next() {
		r, err := scanRound(rows)
		if err != nil {
			return nil, fmt.Errorf("postgres: scan round: %w", err)
		}
		rounds = append(rounds, r)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("postgres: list recent rounds: %w", err)
	}
	return rounds, nil
}

// ListBefore returns all rounds started before the cutoff, oldest first.
func (s *RoundStore) ListBefore(ctx context.Context, before time.Time) ([]domain.Round, error) {
	rows, err := s.pool.Query(ctx,
		"SELECT "+roundCols+" FROM rounds WHERE start_time < $1 ORDER BY start_time", before)
	if err != nil {
		return nil, fmt.Errorf("postgres: list rounds before %s: %w", before.Format(time.RFC3339), err)
	}
	defer rows.Close()

	var rounds []domain.Round
	for rows.Next() {
		r, err := scanRound(rows)
		if err != nil {
			return nil, fmt.Errorf("postgres: scan round: %w", err)
		}
		rounds = append(rounds, r)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("postgres: list rounds before: %w", err)
	}
	return rounds, nil
}

// SumProfit returns the total profit of rounds started since the given time.
func (s *RoundStore) SumProfit(ctx context.Context, since time.Time) (float64, error) {
	var sum float64
	err := s.pool.QueryRow(ctx,
		"SELECT COALESCE(SUM(profit), 0) FROM rounds WHERE start_time >= $1", since,
	).Scan(&sum)
	if err != nil {
		return 0, fmt.Errorf("postgres: sum round profit: %w", err)
	}
	return sum, nil
}

var _ domain.RoundStore = (*RoundStore)(nil)
