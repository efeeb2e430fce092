package domain

import "time"

// TradeRecord is one executed fill, persisted for audit and P&L history.
type TradeRecord struct {
	ID        int64
	Timestamp time.Time
	MarketID  string
	TokenID   string
	RoundID   string
	SignalID  string
	Kind      SignalKind
	Side      OrderSide
	Price     float64
	Size      float64
	PnL       float64
	FeeUSD    float64
}
