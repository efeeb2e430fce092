// Package arbitrage provides the effective-price model for binary YES/NO
// markets and detectors that find guaranteed-profit mispricings in orderbook
// data.
package arbitrage

import "math"

// Price bounds enforced when rounding for order placement. Polymarket rejects
// prices outside the open (0, 1) interval.
const (
	MinPrice = 0.001
	MaxPrice = 0.999
)

// EffectivePrices are the best achievable execution prices once the mirror
// orderbook is taken into account: buying YES at P is equivalent to selling NO
// at 1-P, so both books' liquidity combines into one effective price.
type EffectivePrices struct {
	BuyYes  float64
	BuyNo   float64
	SellYes float64
	SellNo  float64
}

// LongCost is the cost of buying one YES plus one NO share.
func (e EffectivePrices) LongCost() float64 { return e.BuyYes + e.BuyNo }

// LongProfit is the guaranteed profit of a long pair held to resolution.
func (e EffectivePrices) LongProfit() float64 { return 1 - e.LongCost() }

// ShortRevenue is the proceeds of selling one YES plus one NO share.
func (e EffectivePrices) ShortRevenue() float64 { return e.SellYes + e.SellNo }

// ShortProfit is the guaranteed profit of a short pair held to resolution.
func (e EffectivePrices) ShortProfit() float64 { return e.ShortRevenue() - 1 }

// ComputeEffectivePrices derives effective buy/sell prices from top-of-book
// quotes. A zero bid or ask means the mirror path is unavailable and the
// direct price is used as-is.
func ComputeEffectivePrices(yesAsk, yesBid, noAsk, noBid float64) EffectivePrices {
	e := EffectivePrices{
		BuyYes:  yesAsk,
		BuyNo:   noAsk,
		SellYes: yesBid,
		SellNo:  noBid,
	}
	if noBid > 0 {
		e.BuyYes = math.Min(yesAsk, 1-noBid)
	}
	if yesBid > 0 {
		e.BuyNo = math.Min(noAsk, 1-yesBid)
	}
	if noAsk > 0 {
		e.SellYes = math.Max(yesBid, 1-noAsk)
	}
	if yesAsk > 0 {
		e.SellNo = math.Max(noBid, 1-yesAsk)
	}
	return e
}

// ArbKind distinguishes the two pair-arbitrage directions.
type ArbKind string

const (
	ArbLong  ArbKind = "long"  // buy YES + NO below $1
	ArbShort ArbKind = "short" // sell YES + NO above $1
)

// ArbitrageInfo describes a detected pair arbitrage.
type ArbitrageInfo struct {
	Kind    ArbKind
	Cost    float64 // long: combined buy cost
	Revenue float64 // short: combined sell revenue
	Profit  float64
	Prices  EffectivePrices
}

// CheckArbitrage returns the pair arbitrage exceeding threshold, if any. Long
// is checked before short; with a consistent, non-crossed book the two cannot
// qualify simultaneously, but the long-first order is kept stable either way.
func CheckArbitrage(yesAsk, yesBid, noAsk, noBid, threshold float64) *ArbitrageInfo {
	e := ComputeEffectivePrices(yesAsk, yesBid, noAsk, noBid)

	if p := e.LongProfit(); p > threshold {
		return &ArbitrageInfo{
			Kind:   ArbLong,
			Cost:   e.LongCost(),
			Profit: p,
			Prices: e,
		}
	}
	if p := e.ShortProfit(); p > threshold {
		return &ArbitrageInfo{
			Kind:    ArbShort,
			Revenue: e.ShortRevenue(),
			Profit:  p,
			Prices:  e,
		}
	}
	return nil
}

// RoundPrice rounds to the 0.001 tick and clamps into the valid price band.
func RoundPrice(p float64) float64 {
	p = math.Round(p*1000) / 1000
	if p < MinPrice {
		return MinPrice
	}
	if p > MaxPrice {
		return MaxPrice
	}
	return p
}

// RoundSize rounds a share quantity to 2 decimal places.
func RoundSize(s float64) float64 {
	return math.Round(s*100) / 100
}
