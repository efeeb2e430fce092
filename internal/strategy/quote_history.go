package strategy

import (
	"time"

	"github.com/EthanAlgoX/Polymarket-TradeBot/internal/domain"
)

// windowTolerance is how far a history point may sit from the window start
// and still anchor a sliding-window lookup. Lookups with no anchor report
// unavailable rather than returning a max over a partial window.
const windowTolerance = 100 * time.Millisecond

// QuoteHistory is a bounded, time-ordered buffer of top-of-book quotes for
// one market. Oldest entries are evicted once the cap is reached. Not safe
// for concurrent use; the owning strategy serializes access.
type QuoteHistory struct {
	points []domain.Quote
	cap    int
}

// NewQuoteHistory creates a history holding at most cap quotes.
func NewQuoteHistory(cap int) *QuoteHistory {
	if cap <= 0 {
		cap = 1024
	}
	return &QuoteHistory{points: make([]domain.Quote, 0, cap), cap: cap}
}

// Append records a quote, evicting the oldest entry when full.
func (h *QuoteHistory) Append(q domain.Quote) {
	if len(h.points) == h.cap {
		copy(h.points, h.points[1:])
		h.points = h.points[:h.cap-1]
	}
	h.points = append(h.points, q)
}

// Len returns the number of retained quotes.
func (h *QuoteHistory) Len() int { return len(h.points) }

// Last returns the newest quote, if any.
func (h *QuoteHistory) Last() (domain.Quote, bool) {
	if len(h.points) == 0 {
		return domain.Quote{}, false
	}
	return h.points[len(h.points)-1], true
}

// Reset discards all history, e.g. on market rotation.
func (h *QuoteHistory) Reset() {
	h.points = h.points[:0]
}

// MaxAskInWindow returns the maximum ask for the given side over the trailing
// window ending at the newest quote, excluding the newest quote itself. The
// lookup needs an anchor point within ±windowTolerance of the window start;
// without one the history does not cover the window and the result is
// unavailable (ok=false).
func (h *QuoteHistory) MaxAskInWindow(side domain.RoundSide, window time.Duration) (float64, bool) {
	n := len(h.points)
	if n < 2 {
		return 0, false
	}
	newest := h.points[n-1]
	start := newest.Timestamp.Add(-window)

	var max float64
	found := false
	anchored := false
	for _, p := range h.points[:n-1] {
		if p.Timestamp.Before(start.Add(-windowTolerance)) {
			continue
		}
		if !p.Timestamp.After(start.Add(windowTolerance)) {
			anchored = true
		}
		ask := askFor(p, side)
		if ask <= 0 {
			continue
		}
		if !found || ask > max {
			max = ask
			found = true
		}
	}
	if !found || !anchored {
		return 0, false
	}
	return max, true
}

func askFor(q domain.Quote, side domain.RoundSide) float64 {
	if side == domain.SideUp {
		return q.UpAsk
	}
	return q.DownAsk
}

func askSizeFor(q domain.Quote, side domain.RoundSide) float64 {
	if side == domain.SideUp {
		return q.UpAskSize
	}
	return q.DownAskSize
}

func bidFor(q domain.Quote, side domain.RoundSide) float64 {
	if side == domain.SideUp {
		return q.UpBid
	}
	return q.DownBid
}
