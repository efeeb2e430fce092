package domain

import "time"

// SignalKind tags the reason a signal was emitted. The executor dispatches on
// the kind: leg signals are limit orders, stop-loss and emergency exits are
// market sells.
type SignalKind string

const (
	SignalLeg1          SignalKind = "leg1"
	SignalLeg2          SignalKind = "leg2"
	SignalStopLoss      SignalKind = "stop_loss"
	SignalEmergencyExit SignalKind = "emergency_exit"
	SignalEntry         SignalKind = "entry"
	SignalExit          SignalKind = "exit"
)

// SignalUrgency indicates how quickly a signal should be acted upon.
type SignalUrgency int

const (
	SignalUrgencyLow SignalUrgency = iota
	SignalUrgencyMedium
	SignalUrgencyHigh
	SignalUrgencyImmediate
)

// TradeSignal is emitted by a strategy to request order execution. Signals are
// requests only; they carry no guarantee of fill.
type TradeSignal struct {
	ID             string // UUID for dedup
	Kind           SignalKind
	Source         string // strategy name or "arb_detector"
	MarketID       string
	TokenID        string
	Side           OrderSide
	TargetPrice    float64
	Shares         float64
	ExpectedProfit float64
	RoundID        string
	IsSell         bool
	Urgency        SignalUrgency
	Reason         string
	CreatedAt      time.Time
	ExpiresAt      time.Time
}

// Expired reports whether the signal is past its expiry at the given time.
func (s TradeSignal) Expired(now time.Time) bool {
	return !s.ExpiresAt.IsZero() && now.After(s.ExpiresAt)
}
