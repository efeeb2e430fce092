package handler

import (
	"net/http"

	"github.com/EthanAlgoX/Polymarket-TradeBot/internal/domain"
)

// SignalSource exposes the engine's recent signal ring.
type SignalSource interface {
	RecentSignals(limit int) []domain.TradeSignal
	ActiveNames() []string
}

// SignalHandler serves recently emitted trade signals and the active
// strategy set.
type SignalHandler struct {
	engine SignalSource
}

// NewSignalHandler creates a SignalHandler over the strategy engine.
func NewSignalHandler(engine SignalSource) *SignalHandler {
	return &SignalHandler{engine: engine}
}

// ListRecent returns the newest signals.
// GET /api/signals
func (h *SignalHandler) ListRecent(w http.ResponseWriter, r *http.Request) {
	signals := h.engine.RecentSignals(queryInt(r, "limit", 50))
	writeJSON(w, http.StatusOK, map[string]any{
		"signals":    signals,
		"count":      len(signals),
		"strategies": h.engine.ActiveNames(),
	})
}
