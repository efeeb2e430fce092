package polymarket

import (
	"encoding/json"
	"math/big"
	"strconv"
	"strings"
	"time"

	"github.com/EthanAlgoX/Polymarket-TradeBot/internal/domain"
)

// flexBool unmarshals from JSON bool or string so Gamma responses work
// whether "active" arrives as bool or "true"/"false".
type flexBool bool

func (f *flexBool) UnmarshalJSON(data []byte) error {
	var b bool
	if err := json.Unmarshal(data, &b); err == nil {
		*f = flexBool(b)
		return nil
	}
	var s string
	if err := json.Unmarshal(data, &s); err != nil {
		return err
	}
	*f = flexBool(strings.EqualFold(s, "true") || s == "1")
	return nil
}

// APIOrder is an order as returned by the CLOB API.
type APIOrder struct {
	ID            string  `json:"id"`
	Status        string  `json:"status"`
	MarketID      string  `json:"market"`
	AssetID       string  `json:"asset_id"`
	Side          string  `json:"side"` // "BUY" or "SELL"
	Type          string  `json:"type"` // "GTC", "GTD", "FOK", "FAK"
	OriginalSize  string  `json:"original_size"`
	SizeMatched   string  `json:"size_matched"`
	Price         string  `json:"price"`
	MakerAmount   string  `json:"maker_amount"`
	TakerAmount   string  `json:"taker_amount"`
	Owner         string  `json:"owner"`
	Signature     string  `json:"signature"`
	CreatedAt     string  `json:"created_at"`
	FilledAt      *string `json:"filled_at,omitempty"`
	CancelledAt   *string `json:"cancelled_at,omitempty"`
	SignatureType int     `json:"signature_type"`
}

// APIOrderResult is the response from placing an order.
type APIOrderResult struct {
	Success      bool     `json:"success"`
	ErrorMsg     string   `json:"errorMsg,omitempty"`
	OrderID      string   `json:"orderID,omitempty"`
	Status       string   `json:"status,omitempty"`
	TransactID   string   `json:"transactID,omitempty"`
	ShouldRetry  bool     `json:"shouldRetry,omitempty"`
	MakingAmount string   `json:"makingAmount,omitempty"`
	TakingAmount string   `json:"takingAmount,omitempty"`
	TakerFee     string   `json:"takerFee,omitempty"`
	TxHashes     []string `json:"transactionsHashes,omitempty"`
}

// APIMarket is a market as returned by the Gamma discovery API.
type APIMarket struct {
	ID            string   `json:"id"`
	Question      string   `json:"question"`
	ConditionID   string   `json:"condition_id"`
	Slug          string   `json:"slug"`
	ActiveStr     flexBool `json:"active"`
	Closed        bool     `json:"closed"`
	Outcomes      string   `json:"outcomes"`       // JSON-encoded, e.g. "[\"Yes\",\"No\"]"
	ClobTokenIDs  string   `json:"clob_token_ids"` // JSON-encoded token ID pair
	Tokens        []Token  `json:"tokens"`
	Volume        string   `json:"volume"`
	NegRisk       bool     `json:"neg_risk"`
	EndDateISO    string   `json:"end_date_iso"`
	CreatedAt     string   `json:"created_at"`
	UpdatedAt     string   `json:"updated_at"`
	EnableBook    bool     `json:"enable_order_book"`
	AcceptingOrds bool     `json:"accepting_orders"`
}

// Token is a token entry inside the Gamma market response.
type Token struct {
	TokenID string `json:"token_id"`
	Outcome string `json:"outcome"`
	Winner  bool   `json:"winner"`
}

// WSCommand is the JSON payload sent to subscribe or unsubscribe.
type WSCommand struct {
	Type    string   `json:"type"`
	Channel string   `json:"channel,omitempty"`
	Assets  []string `json:"assets_ids,omitempty"`
	Markets []string `json:"markets,omitempty"`
}

// BookMessage is a full orderbook snapshot delivered over WebSocket.
type BookMessage struct {
	AssetID   string         `json:"asset_id"`
	Market    string         `json:"market"`
	Bids      []WSPriceLevel `json:"bids"`
	Asks      []WSPriceLevel `json:"asks"`
	Timestamp string         `json:"timestamp"`
	Hash      string         `json:"hash"`
}

// WSPriceLevel is a single bid/ask level in WebSocket book data.
type WSPriceLevel struct {
	Price string `json:"price"`
	Size  string `json:"size"`
}

// PriceChangeMessage is an incremental orderbook level update.
type PriceChangeMessage struct {
	AssetID   string `json:"asset_id"`
	Market    string `json:"market"`
	Side      string `json:"side"`
	Price     string `json:"price"`
	Size      string `json:"size"` // "0" removes the level
	Timestamp string `json:"timestamp"`
}

// PriceMessage is the most recent trade price for an asset.
type PriceMessage struct {
	AssetID   string `json:"asset_id"`
	Market    string `json:"market"`
	Price     string `json:"price"`
	Size      string `json:"size"`
	Timestamp string `json:"timestamp"`
}

// ToDomainOrder converts an APIOrder to a domain.Order.
func (a *APIOrder) ToDomainOrder() domain.Order {
	o := domain.Order{
		ID:        a.ID,
		MarketID:  a.MarketID,
		TokenID:   a.AssetID,
		Wallet:    a.Owner,
		Signature: a.Signature,
	}

	switch a.Side {
	case "BUY":
		o.Side = domain.OrderSideBuy
	case "SELL":
		o.Side = domain.OrderSideSell
	}
	o.Type = domain.OrderType(a.Type)

	switch a.Status {
	case "live", "open":
		o.Status = domain.OrderStatusOpen
	case "matched", "filled":
		o.Status = domain.OrderStatusMatched
	case "cancelled":
		o.Status = domain.OrderStatusCancelled
	default:
		o.Status = domain.OrderStatusPending
	}

	o.Price, _ = strconv.ParseFloat(a.Price, 64)
	o.Size, _ = strconv.ParseFloat(a.OriginalSize, 64)
	o.FilledSize, _ = strconv.ParseFloat(a.SizeMatched, 64)

	if ma, ok := new(big.Int).SetString(a.MakerAmount, 10); ok {
		o.MakerAmount = ma
	}
	if ta, ok := new(big.Int).SetString(a.TakerAmount, 10); ok {
		o.TakerAmount = ta
	}

	if t, err := time.Parse(time.RFC3339, a.CreatedAt); err == nil {
		o.CreatedAt = t
	}
	if a.FilledAt != nil {
		if t, err := time.Parse(time.RFC3339, *a.FilledAt); err == nil {
			o.FilledAt = &t
		}
	}
	if a.CancelledAt != nil {
		if t, err := time.Parse(time.RFC3339, *a.CancelledAt); err == nil {
			o.CancelledAt = &t
		}
	}
	return o
}

// ToDomainOrderResult converts an APIOrderResult to a domain.OrderResult.
// usdcScale converts 6-decimal integer amounts to floats.
func (r *APIOrderResult) ToDomainOrderResult(side domain.OrderSide) domain.OrderResult {
	result := domain.OrderResult{
		Success:     r.Success,
		OrderID:     r.OrderID,
		Message:     r.ErrorMsg,
		ShouldRetry: r.ShouldRetry,
	}

	switch r.Status {
	case "live", "open":
		result.Status = domain.OrderStatusOpen
	case "matched":
		result.Status = domain.OrderStatusMatched
	case "delayed":
		result.Status = domain.OrderStatusPending
	default:
		if r.Success {
			result.Status = domain.OrderStatusPending
		} else {
			result.Status = domain.OrderStatusFailed
		}
	}

	// making/taking amounts are 6-decimal integers. For a BUY the making
	// amount is USDC spent and the taking amount is shares received; a SELL
	// is the reverse.
	making := parseScaledAmount(r.MakingAmount)
	taking := parseScaledAmount(r.TakingAmount)
	var usd, shares float64
	if side == domain.OrderSideBuy {
		usd, shares = making, taking
	} else {
		usd, shares = taking, making
	}
	if shares > 0 {
		result.FilledSize = shares
		result.FilledPrice = usd / shares
	}
	result.FeeUSD = parseScaledAmount(r.TakerFee)

	return result
}

func parseScaledAmount(s string) float64 {
	if s == "" {
		return 0
	}
	v, err := strconv.ParseFloat(s, 64)
	if err != nil {
		return 0
	}
	return v / 1e6
}

// ToDomainMarket converts a Gamma APIMarket to a domain.Market.
func (m *APIMarket) ToDomainMarket() domain.Market {
	dm := domain.Market{
		ID:          m.ID,
		Question:    m.Question,
		Slug:        m.Slug,
		ConditionID: m.ConditionID,
		NegRisk:     m.NegRisk,
		Outcomes:    [2]string{"Yes", "No"},
	}

	dm.Volume, _ = strconv.ParseFloat(m.Volume, 64)

	if m.Closed {
		dm.Status = domain.MarketStatusClosed
	} else if bool(m.ActiveStr) {
		dm.Status = domain.MarketStatusActive
	} else {
		dm.Status = domain.MarketStatusSettled
	}

	// Token IDs come either from the tokens array or the JSON-encoded
	// clob_token_ids field, depending on the endpoint.
	for i, tok := range m.Tokens {
		if i >= 2 {
			break
		}
		dm.TokenIDs[i] = tok.TokenID
		if tok.Outcome != "" {
			dm.Outcomes[i] = tok.Outcome
		}
	}
	if dm.TokenIDs[0] == "" && m.ClobTokenIDs != "" {
		var ids []string
		if err := json.Unmarshal([]byte(m.ClobTokenIDs), &ids); err == nil {
			for i := 0; i < len(ids) && i < 2; i++ {
				dm.TokenIDs[i] = ids[i]
			}
		}
	}
	if m.Outcomes != "" {
		var outs []string
		if err := json.Unmarshal([]byte(m.Outcomes), &outs); err == nil {
			for i := 0; i < len(outs) && i < 2; i++ {
				dm.Outcomes[i] = outs[i]
			}
		}
	}

	if t, err := time.Parse(time.RFC3339, m.CreatedAt); err == nil {
		dm.CreatedAt = t
	}
	if t, err := time.Parse(time.RFC3339, m.UpdatedAt); err == nil {
		dm.UpdatedAt = t
	}
	if m.EndDateISO != "" {
		if t, err := time.Parse(time.RFC3339, m.EndDateISO); err == nil {
			dm.ClosedAt = &t
		}
	}
	return dm
}

// BookToDomainSnapshot converts a BookMessage to a domain.OrderbookSnapshot.
func BookToDomainSnapshot(b *BookMessage) domain.OrderbookSnapshot {
	snap := domain.OrderbookSnapshot{AssetID: b.AssetID}

	for _, lvl := range b.Bids {
		p, _ := strconv.ParseFloat(lvl.Price, 64)
		s, _ := strconv.ParseFloat(lvl.Size, 64)
		snap.Bids = append(snap.Bids, domain.PriceLevel{Price: p, Size: s})
		if p > snap.BestBid {
			snap.BestBid = p
		}
	}
	for _, lvl := range b.Asks {
		p, _ := strconv.ParseFloat(lvl.Price, 64)
		s, _ := strconv.ParseFloat(lvl.Size, 64)
		snap.Asks = append(snap.Asks, domain.PriceLevel{Price: p, Size: s})
		if snap.BestAsk == 0 || p < snap.BestAsk {
			snap.BestAsk = p
		}
	}
	if snap.BestBid > 0 && snap.BestAsk > 0 {
		snap.MidPrice = (snap.BestBid + snap.BestAsk) / 2
	}
	snap.Timestamp = parseWSTimestamp(b.Timestamp)
	return snap
}

// PriceChangeToDomain converts a PriceChangeMessage to a domain.PriceChange.
func PriceChangeToDomain(p *PriceChangeMessage) domain.PriceChange {
	pc := domain.PriceChange{AssetID: p.AssetID, Side: p.Side}
	pc.Price, _ = strconv.ParseFloat(p.Price, 64)
	pc.Size, _ = strconv.ParseFloat(p.Size, 64)
	pc.Timestamp = parseWSTimestamp(p.Timestamp)
	return pc
}

// PriceToDomainLastTrade converts a PriceMessage to a domain.LastTradePrice.
func PriceToDomainLastTrade(p *PriceMessage) domain.LastTradePrice {
	ltp := domain.LastTradePrice{AssetID: p.AssetID}
	ltp.Price, _ = strconv.ParseFloat(p.Price, 64)
	ltp.Size, _ = strconv.ParseFloat(p.Size, 64)
	ltp.Timestamp = parseWSTimestamp(p.Timestamp)
	return ltp
}

// parseWSTimestamp accepts Unix milliseconds, Unix seconds, or RFC 3339.
func parseWSTimestamp(s string) time.Time {
	if ts, err := strconv.ParseInt(s, 10, 64); err == nil {
		if ts > 1e12 {
			return time.UnixMilli(ts)
		}
		return time.Unix(ts, 0)
	}
	if t, err := time.Parse(time.RFC3339, s); err == nil {
		return t
	}
	return time.Now()
}
