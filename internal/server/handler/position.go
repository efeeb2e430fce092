package handler

import (
	"net/http"

	"github.com/EthanAlgoX/Polymarket-TradeBot/internal/service"
)

// PositionHandler serves the in-memory position ledger.
type PositionHandler struct {
	positions *service.PositionService
}

// NewPositionHandler creates a PositionHandler over the position service.
func NewPositionHandler(positions *service.PositionService) *PositionHandler {
	return &PositionHandler{positions: positions}
}

// ListPositions returns open positions, or closed ones with ?state=closed.
// GET /api/positions
func (h *PositionHandler) ListPositions(w http.ResponseWriter, r *http.Request) {
	switch r.URL.Query().Get("state") {
	case "", "open":
		writeJSON(w, http.StatusOK, map[string]any{"positions": h.positions.Open()})
	case "closed":
		writeJSON(w, http.StatusOK, map[string]any{"positions": h.positions.Closed()})
	default:
		writeError(w, http.StatusBadRequest, "state must be open or closed")
	}
}

// GetPortfolio returns the aggregate portfolio summary.
// GET /api/portfolio
func (h *PositionHandler) GetPortfolio(w http.ResponseWriter, r *http.Request) {
	writeJSON(w, http.StatusOK, h.positions.GetPortfolioSummary())
}
