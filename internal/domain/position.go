package domain

import "time"

// Position represents holdings in a single outcome token, keyed by
// (market, token). Owned exclusively by the position ledger: repeated entries
// average in, closes may be partial, and highest/lowest watermarks feed
// trailing-stop logic.
type Position struct {
	MarketID     string
	TokenID      string
	Outcome      string // "Yes"/"No"/"Up"/"Down" label
	Side         OrderSide
	EntryPrice   float64
	EntryTime    time.Time
	Size         float64
	CurrentPrice float64
	HighestPrice float64
	LowestPrice  float64
	StopPrice    float64
	Closed       bool
	ExitPrice    *float64
	ExitTime     *time.Time
}

// UnrealizedPnL returns marked-to-market profit for an open position.
func (p Position) UnrealizedPnL() float64 {
	if p.Closed {
		return 0
	}
	return p.Size*p.CurrentPrice - p.Size*p.EntryPrice
}

// RealizedPnL returns booked profit for a closed position.
func (p Position) RealizedPnL() float64 {
	if !p.Closed || p.ExitPrice == nil {
		return 0
	}
	return (*p.ExitPrice - p.EntryPrice) * p.Size
}

// Key returns the ledger key for the position.
func (p Position) Key() string {
	return p.MarketID + ":" + p.TokenID
}

// PortfolioSummary aggregates the ledger in a single pass.
type PortfolioSummary struct {
	OpenPositions   int
	ClosedPositions int
	TotalInvested   float64
	CurrentValue    float64
	UnrealizedPnL   float64
	RealizedPnL     float64
	WinningTrades   int
	WinRate         float64
}
