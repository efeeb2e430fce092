package strategy

import (
	"time"

	"github.com/EthanAlgoX/Polymarket-TradeBot/internal/arbitrage"
)

// SplitConfig controls how a large order is divided into clips.
type SplitConfig struct {
	Chunks    int           // desired number of clips
	Delay     time.Duration // pause between clips
	MinShares float64       // minimum shares per clip
}

// SplitOrder is one clip of a divided order.
type SplitOrder struct {
	Shares float64
	Size   float64 // notional in USDC at the quoted price
	Delay  time.Duration
}

// CalculateSplitOrders divides totalShares into equal clips with an
// inter-clip delay. Clips below MinShares are avoided by reducing the chunk
// count, growing each clip's share count instead. The clip shares always sum
// to the rounded total; the last clip absorbs rounding remainder.
func CalculateSplitOrders(totalShares, price float64, cfg SplitConfig) []SplitOrder {
	totalShares = arbitrage.RoundSize(totalShares)
	if totalShares <= 0 {
		return nil
	}

	chunks := cfg.Chunks
	if chunks < 1 {
		chunks = 1
	}
	for chunks > 1 && totalShares/float64(chunks) < cfg.MinShares {
		chunks--
	}

	base := arbitrage.RoundSize(totalShares / float64(chunks))
	orders := make([]SplitOrder, 0, chunks)
	allocated := 0.0
	for i := 0; i < chunks; i++ {
		shares := base
		if i == chunks-1 {
			shares = arbitrage.RoundSize(totalShares - allocated)
		}
		allocated += shares

		var delay time.Duration
		if i > 0 {
			delay = cfg.Delay
		}
		orders = append(orders, SplitOrder{
			Shares: shares,
			Size:   arbitrage.RoundSize(shares * price),
			Delay:  delay,
		})
	}
	return orders
}
