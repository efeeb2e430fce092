package domain

// BotStatus is a summary of the bot's current operational state, served by the
// status endpoint.
type BotStatus struct {
	Mode          string
	WSConnected   bool
	UptimeSeconds int64
	ActiveMarket  string
	RoundPhase    RoundPhase
	Leg1Price     float64
	Leg2Price     float64
	Session       SessionStats
	Risk          RiskSnapshot
}
