package handler

import (
	"net/http"

	"github.com/EthanAlgoX/Polymarket-TradeBot/internal/service"
)

// OpportunityHandler serves detected arbitrage opportunities.
type OpportunityHandler struct {
	arb *service.ArbService
}

// NewOpportunityHandler creates an OpportunityHandler over the arb service.
func NewOpportunityHandler(arb *service.ArbService) *OpportunityHandler {
	return &OpportunityHandler{arb: arb}
}

// ListRecent returns the most recently detected opportunities.
// GET /api/opportunities
func (h *OpportunityHandler) ListRecent(w http.ResponseWriter, r *http.Request) {
	opps, err := h.arb.ListRecent(r.Context(), queryInt(r, "limit", 50))
	if err != nil {
		writeError(w, http.StatusInternalServerError, "list opportunities failed")
		return
	}
	writeJSON(w, http.StatusOK, map[string]any{"opportunities": opps, "count": len(opps)})
}
