package postgres

import (
	"context"
	"errors"
	"fmt"
	"math/big"
	"time"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"

	"github.com/EthanAlgoX/Polymarket-TradeBot/internal/domain"
)

// OrderStore implements domain.OrderStore using PostgreSQL. Maker and taker
// amounts are stored as decimal strings because they exceed int64.
type OrderStore struct {
	pool *pgxpool.Pool
}

// NewOrderStore creates an OrderStore backed by the given connection pool.
func NewOrderStore(pool *pgxpool.Pool) *OrderStore {
	return &OrderStore{pool: pool}
}

const orderCols = `id, market_id, token_id, wallet, side, order_type, price, size,
	maker_amount, taker_amount, filled_size, status, signature, signal_id, round_id,
	created_at, filled_at, cancelled_at`

func bigIntString(v *big.Int) string {
	if v == nil {
		return "0"
	}
	return v.String()
}

// Create stores a new order.
func (s *OrderStore) Create(ctx context.Context, order domain.Order) error {
	createdAt := order.CreatedAt
	if createdAt.IsZero() {
		createdAt = time.Now().UTC()
	}

	_, err := s.pool.Exec(ctx, `
		INSERT INTO orders (id, market_id, token_id, wallet, side, order_type, price, size,
			maker_amount, taker_amount, filled_size, status, signature, signal_id, round_id,
			created_at, filled_at, cancelled_at)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10, $11, $12, $13, $14, $15, $16, $17, $18)`,
		order.ID, order.MarketID, order.TokenID, order.Wallet,
		string(order.Side), string(order.Type), order.Price, order.Size,
		bigIntString(order.MakerAmount), bigIntString(order.TakerAmount),
		order.FilledSize, string(order.Status), order.Signature,
		order.SignalID, order.RoundID, createdAt, order.FilledAt, order.CancelledAt,
	)
	if err != nil {
		return fmt.Errorf("postgres: create order %s: %w", order.ID, err)
	}
	return nil
}

// UpdateStatus changes an order's status, stamping filled_at or cancelled_at
// for terminal transitions.
func (s *OrderStore) UpdateStatus(ctx context.Context, id string, status domain.OrderStatus) error {
	tag, err := s.pool.Exec(ctx, `
		UPDATE orders SET
			status = $2,
			filled_at = CASE WHEN $2 = 'matched' THEN NOW() ELSE filled_at END,
			cancelled_at = CASE WHEN $2 = 'cancelled' THEN NOW() ELSE cancelled_at END
		WHERE id = $1`,
		id, string(status))
	if err != nil {
		return fmt.Errorf("postgres: update order %s status: %w", id, err)
	}
	if tag.RowsAffected() == 0 {
		return domain.ErrNotFound
	}
	return nil
}

func scanOrder(row pgx.Row) (domain.Order, error) {
	var o domain.Order
	var side, orderType, status, makerAmount, takerAmount string
	err := row.Scan(
		&o.ID, &o.MarketID, &o.TokenID, &o.Wallet, &side, &orderType,
		&o.Price, &o.Size, &makerAmount, &takerAmount, &o.FilledSize,
		&status, &o.Signature, &o.SignalID, &o.RoundID,
		&o.CreatedAt, &o.FilledAt, &o.CancelledAt,
	)
	if err != nil {
		return domain.Order{}, err
	}
	o.Side = domain.OrderSide(side)
	o.Type = domain.OrderType(orderType)
	o.Status = domain.OrderStatus(status)
	o.MakerAmount, _ = new(big.Int).SetString(makerAmount, 10)
	o.TakerAmount, _ = new(big.Int).SetString(takerAmount, 10)
	return o, nil
}

// GetByID returns an order by ID, or domain.ErrNotFound.
func (s *OrderStore) GetByID(ctx context.Context, id string) (domain.Order, error) {
	row := s.pool.QueryRow(ctx, "SELECT "+orderCols+" FROM orders WHERE id = $1", id)
	o, err := scanOrder(row)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return domain.Order{}, domain.ErrNotFound
		}
		return domain.Order{}, fmt.Errorf("postgres: get order %s: %w", id, err)
	}
	return o, nil
}

func (s *OrderStore) listOrders(ctx context.Context, query string, args ...any) ([]domain.Order, error) {
	rows, err := s.pool.Query(ctx, query, args...)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var orders []domain.Order
	for rows.Next() {
		o, err := scanOrder(rows)
		if err != nil {
			return nil, err
		}
		orders = append(orders, o)
	}
	return orders, rows.Err()
}

// ListOpen returns pending and open orders for a wallet.
func (s *OrderStore) ListOpen(ctx context.Context, wallet string) ([]domain.Order, error) {
	orders, err := s.listOrders(ctx,
		"SELECT "+orderCols+" FROM orders WHERE wallet = $1 AND status IN ('pending', 'open') ORDER BY created_at",
		wallet)
	if err != nil {
		return nil, fmt.Errorf("postgres: list open orders %s: %w", wallet, err)
	}
	return orders, nil
}

// ListByRound returns all orders placed during a round.
func (s *OrderStore) ListByRound(ctx context.Context, roundID string) ([]domain.Order, error) {
	orders, err := s.listOrders(ctx,
		"SELECT "+orderCols+" FROM orders WHERE round_id = $1 ORDER BY created_at", roundID)
	if err != nil {
		return nil, fmt.Errorf("postgres: list orders for round %s: %w", roundID, err)
	}
	return orders, nil
}

var _ domain.OrderStore = (*OrderStore)(nil)
