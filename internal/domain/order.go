package domain

import (
	"math/big"
	"time"
)

// OrderSide indicates whether this is a buy or sell.
type OrderSide string

const (
	OrderSideBuy  OrderSide = "buy"
	OrderSideSell OrderSide = "sell"
)

// OrderType indicates the time-in-force policy.
type OrderType string

const (
	OrderTypeGTC OrderType = "GTC" // Good-Till-Cancelled
	OrderTypeGTD OrderType = "GTD" // Good-Till-Date
	OrderTypeFOK OrderType = "FOK" // Fill-Or-Kill
	OrderTypeFAK OrderType = "FAK" // Fill-And-Kill
)

// OrderStatus tracks the order lifecycle.
type OrderStatus string

const (
	OrderStatusPending   OrderStatus = "pending"
	OrderStatusOpen      OrderStatus = "open"
	OrderStatusMatched   OrderStatus = "matched"
	OrderStatusCancelled OrderStatus = "cancelled"
	OrderStatusFailed    OrderStatus = "failed"
)

// Order represents a signed trading order.
type Order struct {
	ID            string
	MarketID      string
	TokenID       string
	Wallet        string
	Side          OrderSide
	Type          OrderType
	Price         float64
	Size          float64
	MakerAmount   *big.Int // integer notional used in signed payload
	TakerAmount   *big.Int // integer quantity used in signed payload
	FilledSize    float64
	Status        OrderStatus
	Salt          string // random salt used in the signed payload
	SignatureType int    // 0 = EOA, 1 = proxy, 2 = Gnosis Safe
	Signature     string // EIP-712 hex
	SignalID      string // signal that requested this order
	RoundID       string // round the order belongs to, if any
	CreatedAt     time.Time
	FilledAt      *time.Time
	CancelledAt   *time.Time
}

// OrderResult wraps the API response after order submission.
type OrderResult struct {
	Success     bool
	OrderID     string
	Status      OrderStatus
	Message     string
	ShouldRetry bool
	FilledPrice float64 // filled price when matched
	FilledSize  float64 // shares filled when matched
	FeeUSD      float64 // fee for this order
}

// Fill is an asynchronous fill notification reported by the executor back to
// the strategy layer.
type Fill struct {
	SignalID  string
	RoundID   string
	MarketID  string
	TokenID   string
	Side      OrderSide
	Price     float64
	Shares    float64
	OrderIDs  []string
	Timestamp time.Time
}
