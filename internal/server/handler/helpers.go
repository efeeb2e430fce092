package handler

import (
	"encoding/json"
	"net/http"
	"strconv"

	"github.com/EthanAlgoX/Polymarket-TradeBot/internal/domain"
)

// writeJSON writes v with the given status. Marshal failures fall back to a
// canned 500 body.
func writeJSON(w http.ResponseWriter, status int, v any) {
	data, err := json.Marshal(v)
	if err != nil {
		http.Error(w, `{"error":"internal server error"}`, http.StatusInternalServerError)
		return
	}
	w.Header().Set("Content-Type", "application/json; charset=utf-8")
	w.WriteHeader(status)
	w.Write(data)
}

// writeError sends a JSON error body.
func writeError(w http.ResponseWriter, status int, msg string) {
	writeJSON(w, status, map[string]string{"error": msg})
}

// queryInt reads an integer query parameter, returning def when absent or
// unparseable.
func queryInt(r *http.Request, name string, def int) int {
	v := r.URL.Query().Get(name)
	if v == "" {
		return def
	}
	n, err := strconv.Atoi(v)
	if err != nil || n < 0 {
		return def
	}
	return n
}

// parseListOpts reads limit/offset pagination. Defaults limit=50, capped 500.
func parseListOpts(r *http.Request) domain.ListOpts {
	limit := queryInt(r, "limit", 50)
	if limit == 0 || limit > 500 {
		limit = 500
	}
	return domain.ListOpts{
		Limit:  limit,
		Offset: queryInt(r, "offset", 0),
	}
}
