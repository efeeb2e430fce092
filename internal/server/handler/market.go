package handler

import (
	"errors"
	"net/http"

	"github.com/EthanAlgoX/Polymarket-TradeBot/internal/domain"
	"github.com/EthanAlgoX/Polymarket-TradeBot/internal/service"
)

// MarketHandler serves the tracked markets.
type MarketHandler struct {
	markets *service.MarketService
}

// NewMarketHandler creates a MarketHandler over the market service.
func NewMarketHandler(markets *service.MarketService) *MarketHandler {
	return &MarketHandler{markets: markets}
}

// ListMarkets returns active markets ordered by volume.
// GET /api/markets
func (h *MarketHandler) ListMarkets(w http.ResponseWriter, r *http.Request) {
	markets, err := h.markets.ListActive(r.Context(), parseListOpts(r))
	if err != nil {
		writeError(w, http.StatusInternalServerError, "list markets failed")
		return
	}
	writeJSON(w, http.StatusOK, map[string]any{"markets": markets, "count": len(markets)})
}

// GetMarket returns one market by ID.
// GET /api/markets/{id}
func (h *MarketHandler) GetMarket(w http.ResponseWriter, r *http.Request) {
	market, err := h.markets.GetMarket(r.Context(), r.PathValue("id"))
	if err != nil {
		if errors.Is(err, domain.ErrNotFound) {
			writeError(w, http.StatusNotFound, "market not found")
			return
		}
		writeError(w, http.StatusInternalServerError, "get market failed")
		return
	}
	writeJSON(w, http.StatusOK, market)
}
