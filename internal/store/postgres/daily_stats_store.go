package postgres

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"

	"github.com/EthanAlgoX/Polymarket-TradeBot/internal/domain"
)

// DailyStatsStore implements domain.DailyStatsStore using PostgreSQL.
type DailyStatsStore struct {
	pool *pgxpool.Pool
}

// NewDailyStatsStore creates a DailyStatsStore backed by the given pool.
func NewDailyStatsStore(pool *pgxpool.Pool) *DailyStatsStore {
	return &DailyStatsStore{pool: pool}
}

// Upsert stores or replaces the stats row for a day.
func (s *DailyStatsStore) Upsert(ctx context.Context, stats domain.DailyStats) error {
	_, err := s.pool.Exec(ctx, `
		INSERT INTO daily_stats (date, pnl, trades_count, peak_pnl, max_drawdown)
		VALUES ($1, $2, $3, $4, $5)
		ON CONFLICT (date) DO UPDATE SET
			pnl = EXCLUDED.pnl,
			trades_count = EXCLUDED.trades_count,
			peak_pnl = EXCLUDED.peak_pnl,
			max_drawdown = EXCLUDED.max_drawdown`,
		stats.Date, stats.PnL, stats.TradesCount, stats.PeakPnL, stats.MaxDrawdown,
	)
	if err != nil {
		return fmt.Errorf("postgres: upsert daily stats %s: %w", stats.Date, err)
	}
	return nil
}

// GetByDate returns the stats for a "2006-01-02" date, or domain.ErrNotFound.
func (s *DailyStatsStore) GetByDate(ctx context.Context, date string) (domain.DailyStats, error) {
	var stats domain.DailyStats
	err := s.pool.QueryRow(ctx,
		"SELECT date, pnl, trades_count, peak_pnl, max_drawdown FROM daily_stats WHERE date = $1",
		date,
	).Scan(&stats.Date, &stats.PnL, &stats.TradesCount, &stats.PeakPnL, &stats.MaxDrawdown)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return domain.DailyStats{}, domain.ErrNotFound
		}
		return domain.DailyStats{}, fmt.Errorf("postgres: get daily stats %s: %w", date, err)
	}
	return stats, nil
}

// ListRecent returns the most recent daily stats rows, newest first.
func (s *DailyStatsStore) ListRecent(ctx context.Context, limit int) ([]domain.DailyStats, error) {
	if limit <= 0 {
		limit = 30
	}

	rows, err := s.pool.Query(ctx,
		"SELECT date, pnl, trades_count, peak_pnl, max_drawdown FROM daily_stats ORDER BY date DESC LIMIT $1",
		limit)
	if err != nil {
		return nil, fmt.Errorf("postgres: list daily stats: %w", err)
	}
	defer rows.Close()

	var out []domain.DailyStats
	for rows.Next() {
		var stats domain.DailyStats
		if err := rows.Scan(&stats.Date, &stats.PnL, &stats.TradesCount, &stats.PeakPnL, &stats.MaxDrawdown); err != nil {
			return nil, fmt.Errorf("postgres: scan daily stats: %w", err)
		}
		out = append(out, stats)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("postgres: list daily stats: %w", err)
	}
	return out, nil
}

// ListBefore returns all daily stats rows dated strictly before the cutoff
// date, oldest first. Dates are stored as "2006-01-02" strings, which sort
// lexicographically in calendar order.
func (s *DailyStatsStore) ListBefore(ctx context.Context, before time.Time) ([]domain.DailyStats, error) {
	cutoff := before.UTC().Format("2006-01-02")

	rows, err := s.pool.Query(ctx,
		"SELECT date, pnl, trades_count, peak_pnl, max_drawdown FROM daily_stats WHERE date < $1 ORDER BY date",
		cutoff)
	if err != nil {
		return nil, fmt.Errorf("postgres: list daily stats before %s: %w", cutoff, err)
	}
	defer rows.Close()

	var out []domain.DailyStats
	for rows.Next() {
		var stats domain.DailyStats
		if err := rows.Scan(&stats.Date, &stats.PnL, &stats.TradesCount, &stats.PeakPnL, &stats.MaxDrawdown); err != nil {
			return nil, fmt.Errorf("postgres: scan daily stats: %w", err)
		}
		out = append(out, stats)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("postgres: list daily stats before: %w", err)
	}
	return out, nil
}

var _ domain.DailyStatsStore = (*DailyStatsStore)(nil)
