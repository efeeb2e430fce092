package handler

import (
	"context"
	"net/http"
	"time"

	"github.com/EthanAlgoX/Polymarket-TradeBot/internal/domain"
)

// StatusSource reports the live strategy state: round phase, leg prices,
// session stats.
type StatusSource interface {
	Status() domain.BotStatus
}

// RiskSource reports the current risk counters and breaker state.
type RiskSource interface {
	Snapshot(ctx context.Context) domain.RiskSnapshot
}

// StatusHandler assembles the full status snapshot for operators.
type StatusHandler struct {
	mode      string
	startedAt time.Time
	bot       StatusSource
	risk      RiskSource
	wsUp      func() bool
}

// NewStatusHandler creates a StatusHandler. wsUp reports whether the market
// data connection is live; nil means unknown and reports false.
func NewStatusHandler(mode string, bot StatusSource, risk RiskSource, wsUp func() bool) *StatusHandler {
	return &StatusHandler{
		mode:      mode,
		startedAt: time.Now().UTC(),
		bot:       bot,
		risk:      risk,
		wsUp:      wsUp,
	}
}

// GetStatus responds with the merged bot and risk snapshot.
// GET /api/status
func (h *StatusHandler) GetStatus(w http.ResponseWriter, r *http.Request) {
	st := domain.BotStatus{Mode: h.mode}
	if h.bot != nil {
		st = h.bot.Status()
		st.Mode = h.mode
	}
	st.UptimeSeconds = int64(time.Since(h.startedAt).Seconds())
	if h.wsUp != nil {
		st.WSConnected = h.wsUp()
	}
	if h.risk != nil {
		st.Risk = h.risk.Snapshot(r.Context())
	}
	writeJSON(w, http.StatusOK, st)
}
