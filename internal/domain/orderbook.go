package domain

import "time"

// PriceLevel is a single price+size entry in an orderbook.
type PriceLevel struct {
	Price float64
	Size  float64
}

// OrderbookSnapshot is a full snapshot of bids and asks for an asset.
type OrderbookSnapshot struct {
	AssetID   string
	Bids      []PriceLevel
	Asks      []PriceLevel
	BestBid   float64
	BestAsk   float64
	MidPrice  float64
	Timestamp time.Time
}

// PriceChange is an incremental orderbook level update.
type PriceChange struct {
	AssetID   string
	Side      string // "BUY" or "SELL"
	Price     float64
	Size      float64 // 0 means remove level
	Timestamp time.Time
}

// LastTradePrice is the most recent trade execution for an asset.
type LastTradePrice struct {
	AssetID   string
	Price     float64
	Size      float64
	Timestamp time.Time
}

// Quote is an immutable top-of-book snapshot across both outcome tokens of a
// binary market. Up corresponds to the YES token, Down to NO.
type Quote struct {
	MarketID    string
	UpAsk       float64
	UpAskSize   float64
	UpBid       float64
	UpBidSize   float64
	DownAsk     float64
	DownAskSize float64
	DownBid     float64
	DownBidSize float64
	Timestamp   time.Time
}
