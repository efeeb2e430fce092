package strategy

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"

	"github.com/EthanAlgoX/Polymarket-TradeBot/internal/domain"
)

func quoteAt(ts time.Time, upAsk, downAsk float64) domain.Quote {
	return domain.Quote{
		MarketID:  "mkt-1",
		UpAsk:     upAsk,
		DownAsk:   downAsk,
		Timestamp: ts,
	}
}

func TestQuoteHistory_CapEvictsOldest(t *testing.T) {
	h := NewQuoteHistory(3)
	base := time.Now()
	for i := 0; i < 5; i++ {
		h.Append(quoteAt(base.Add(time.Duration(i)*time.Second), 0.5, 0.5))
	}
	assert.Equal(t, 3, h.Len())
	last, ok := h.Last()
	assert.True(t, ok)
	assert.Equal(t, base.Add(4*time.Second), last.Timestamp)
}

func TestMaxAskInWindow_ExcludesNewest(t *testing.T) {
	h := NewQuoteHistory(16)
	base := time.Now()
	h.Append(quoteAt(base, 0.50, 0.40))
	h.Append(quoteAt(base.Add(1*time.Second), 0.55, 0.40))
	// Newest has the highest ask but must not count.
	h.Append(quoteAt(base.Add(2*time.Second), 0.70, 0.40))

	max, ok := h.MaxAskInWindow(domain.SideUp, 2*time.Second)
	assert.True(t, ok)
	assert.InDelta(t, 0.55, max, 1e-9)
}

func TestMaxAskInWindow_UnanchoredWindowUnavailable(t *testing.T) {
	h := NewQuoteHistory(16)
	base := time.Now()
	// History spans only 1s of a 5s window: no point near the window start.
	h.Append(quoteAt(base, 0.50, 0.40))
	h.Append(quoteAt(base.Add(1*time.Second), 0.45, 0.40))

	_, ok := h.MaxAskInWindow(domain.SideUp, 5*time.Second)
	assert.False(t, ok)
}

func TestMaxAskInWindow_AnchorWithinTolerance(t *testing.T) {
	h := NewQuoteHistory(16)
	base := time.Now()
	// Anchor sits 50ms inside the window start: within tolerance.
	h.Append(quoteAt(base.Add(50*time.Millisecond), 0.52, 0.40))
	h.Append(quoteAt(base.Add(1*time.Second), 0.48, 0.40))
	h.Append(quoteAt(base.Add(2*time.Second), 0.45, 0.40))

	max, ok := h.MaxAskInWindow(domain.SideUp, 2*time.Second)
	assert.True(t, ok)
	assert.InDelta(t, 0.52, max, 1e-9)
}

func TestMaxAskInWindow_TooFewPoints(t *testing.T) {
	h := NewQuoteHistory(16)
	h.Append(quoteAt(time.Now(), 0.50, 0.40))
	_, ok := h.MaxAskInWindow(domain.SideUp, time.Second)
	assert.False(t, ok)
}
