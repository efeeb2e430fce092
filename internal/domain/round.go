package domain

import "time"

// RoundPhase is the state of a dip-arbitrage round.
type RoundPhase string

const (
	RoundWaiting    RoundPhase = "waiting"
	RoundLeg1Filled RoundPhase = "leg1_filled"
	RoundCompleted  RoundPhase = "completed"
	RoundStopLoss   RoundPhase = "stop_loss"
)

// Terminal reports whether the phase ends the round.
func (p RoundPhase) Terminal() bool {
	return p == RoundCompleted || p == RoundStopLoss
}

// RoundSide names which outcome token a leg bought.
type RoundSide string

const (
	SideUp   RoundSide = "up"
	SideDown RoundSide = "down"
)

// Opposite returns the hedging side.
func (s RoundSide) Opposite() RoundSide {
	if s == SideUp {
		return SideDown
	}
	return SideUp
}

// Leg is one filled side of a two-leg arbitrage round.
type Leg struct {
	Side      RoundSide
	Price     float64
	Shares    float64
	TokenID   string
	OrderIDs  []string
	Timestamp time.Time
}

// Round is one complete attempt at a two-leg arbitrage: dip purchase, then
// hedge within budget, or stop-loss. At most one non-terminal round exists per
// market at any time.
type Round struct {
	ID                string
	MarketID          string
	Phase             RoundPhase
	StartTime         time.Time
	Leg1              *Leg
	Leg2              *Leg
	Leg1FillTime      *time.Time
	TotalCost         float64
	Profit            float64
	Merged            bool
	StopLossTriggered bool
}

// SessionStats accumulates per-session round outcomes for the status surface.
type SessionStats struct {
	RoundsStarted   int
	RoundsCompleted int
	RoundsStopped   int
	TotalProfit     float64
}
