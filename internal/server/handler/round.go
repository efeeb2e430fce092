package handler

import (
	"errors"
	"net/http"

	"github.com/EthanAlgoX/Polymarket-TradeBot/internal/domain"
)

// RoundHandler serves completed arbitrage rounds from the store.
type RoundHandler struct {
	rounds domain.RoundStore
}

// NewRoundHandler creates a RoundHandler over the round store.
func NewRoundHandler(rounds domain.RoundStore) *RoundHandler {
	return &RoundHandler{rounds: rounds}
}

// ListRecent returns the most recently started rounds.
// GET /api/rounds
func (h *RoundHandler) ListRecent(w http.ResponseWriter, r *http.Request) {
	rounds, err := h.rounds.ListRecent(r.Context(), queryInt(r, "limit", 50))
	if err != nil {
		writeError(w, http.StatusInternalServerError, "list rounds failed")
		return
	}
	writeJSON(w, http.StatusOK, map[string]any{"rounds": rounds, "count": len(rounds)})
}

// GetRound returns one round by ID.
// GET /api/rounds/{id}
func (h *RoundHandler) GetRound(w http.ResponseWriter, r *http.Request) {
	round, err := h.rounds.GetByID(r.Context(), r.PathValue("id"))
	if err != nil {
		if errors.Is(err, domain.ErrNotFound) {
			writeError(w, http.StatusNotFound, "round not found")
			return
		}
		writeError(w, http.StatusInternalServerError, "get round failed")
		return
	}
	writeJSON(w, http.StatusOK, round)
}
