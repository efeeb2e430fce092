package domain

import "time"

// ArbitrageOpportunity is a detected multi-outcome mispricing: the sum of best
// asks across all outcomes undercuts the guaranteed $1 payout.
// len(OutcomeTokenIDs) == len(Prices); MaxVolume is the minimum top-of-book
// ask size across all legs.
type ArbitrageOpportunity struct {
	ID              string
	MarketID        string
	Timestamp       time.Time
	OutcomeTokenIDs []string
	Prices          []float64
	TotalCost       float64
	PotentialProfit float64
	MaxVolume       float64
	Executed        bool
}

// SpreadOpportunity is a single-sided mispricing in a two-outcome market:
// buying one token beats the price implied by the mirror book.
type SpreadOpportunity struct {
	ID              string
	MarketID        string
	TokenID         string
	Outcome         string // "yes" or "no"
	MarketPrice     float64
	ImpliedPrice    float64
	Spread          float64
	PotentialProfit float64
	MaxVolume       float64
	Confidence      float64
	Timestamp       time.Time
}
