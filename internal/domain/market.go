package domain

import "time"

// MarketStatus represents the lifecycle state of a market.
type MarketStatus string

const (
	MarketStatusActive  MarketStatus = "active"
	MarketStatusClosed  MarketStatus = "closed"
	MarketStatusSettled MarketStatus = "settled"
)

// Market represents a Polymarket prediction market.
type Market struct {
	ID          string
	Question    string
	Slug        string
	Outcomes    [2]string // e.g. ["Yes","No"] or ["Up","Down"]
	TokenIDs    [2]string // ERC-1155 token IDs (76-digit strings)
	ConditionID string
	NegRisk     bool
	Volume      float64
	Status      MarketStatus
	ClosedAt    *time.Time
	CreatedAt   time.Time
	UpdatedAt   time.Time
}

// MarketConfig is the per-market configuration the dip-arbitrage engine trades
// against. UpTokenID/DownTokenID are the YES/NO outcome token IDs.
type MarketConfig struct {
	MarketID    string
	ConditionID string
	Question    string
	UpTokenID   string
	DownTokenID string
}

// Valid reports whether the config names both outcome tokens.
func (c MarketConfig) Valid() bool {
	return c.MarketID != "" && c.UpTokenID != "" && c.DownTokenID != ""
}
