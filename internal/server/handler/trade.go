package handler

import (
	"net/http"

	"github.com/EthanAlgoX/Polymarket-TradeBot/internal/service"
)

// TradeHandler serves the fill ledger.
type TradeHandler struct {
	trades *service.TradeService
}

// NewTradeHandler creates a TradeHandler over the trade service.
func NewTradeHandler(trades *service.TradeService) *TradeHandler {
	return &TradeHandler{trades: trades}
}

// ListTrades returns fills for a market, newest first.
// GET /api/trades?market_id=...
func (h *TradeHandler) ListTrades(w http.ResponseWriter, r *http.Request) {
	marketID := r.URL.Query().Get("market_id")
	if marketID == "" {
		writeError(w, http.StatusBadRequest, "market_id is required")
		return
	}

	trades, err := h.trades.ListByMarket(r.Context(), marketID, parseListOpts(r))
	if err != nil {
		writeError(w, http.StatusInternalServerError, "list trades failed")
		return
	}
	writeJSON(w, http.StatusOK, map[string]any{"trades": trades, "count": len(trades)})
}
