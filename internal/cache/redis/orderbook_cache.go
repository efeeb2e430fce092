package redis

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"sort"
	"strconv"
	"time"

	"github.com/redis/go-redis/v9"

	"github.com/EthanAlgoX/Polymarket-TradeBot/internal/domain"
)

const bookTTL = 2 * time.Minute

// OrderbookCache implements domain.OrderbookCache. Each asset's book is one
// JSON document at "tb:book:{assetID}" plus a BBO hash at
// "tb:book:{assetID}:bbo" for cheap top-of-book reads. The strategies only
// consume top-of-book, so a document per asset beats maintaining sorted sets
// per level.
type OrderbookCache struct {
	rdb *redis.Client
}

// NewOrderbookCache creates an OrderbookCache backed by the given Client.
func NewOrderbookCache(c *Client) *OrderbookCache {
	return &OrderbookCache{rdb: c.Underlying()}
}

func bookKey(assetID string) string    { return "tb:book:" + assetID }
func bookBBOKey(assetID string) string { return "tb:book:" + assetID + ":bbo" }

// SetSnapshot replaces the full book for an asset. Levels are normalized so
// bids sort descending and asks ascending, and the BBO hash is refreshed in
// the same transaction.
func (oc *OrderbookCache) SetSnapshot(ctx context.Context, assetID string, snap domain.OrderbookSnapshot) error {
	normalizeSnapshot(&snap)

	data, err := json.Marshal(snap)
	if err != nil {
		return fmt.Errorf("redis: marshal book %s: %w", assetID, err)
	}

	pipe := oc.rdb.TxPipeline()
	pipe.Set(ctx, bookKey(assetID), data, bookTTL)
	pipe.HSet(ctx, bookBBOKey(assetID), map[string]any{
		"bid": snap.BestBid,
		"ask": snap.BestAsk,
	})
	pipe.Expire(ctx, bookBBOKey(assetID), bookTTL)
	if _, err := pipe.Exec(ctx); err != nil {
		return fmt.Errorf("redis: set book %s: %w", assetID, err)
	}
	return nil
}

// GetSnapshot returns the cached book for an asset, or domain.ErrNotFound.
func (oc *OrderbookCache) GetSnapshot(ctx context.Context, assetID string) (domain.OrderbookSnapshot, error) {
	data, err := oc.rdb.Get(ctx, bookKey(assetID)).Bytes()
	if err != nil {
		if errors.Is(err, redis.Nil) {
			return domain.OrderbookSnapshot{}, domain.ErrNotFound
		}
		return domain.OrderbookSnapshot{}, fmt.Errorf("redis: get book %s: %w", assetID, err)
	}

	var snap domain.OrderbookSnapshot
	if err := json.Unmarshal(data, &snap); err != nil {
		return domain.OrderbookSnapshot{}, fmt.Errorf("redis: unmarshal book %s: %w", assetID, err)
	}
	return snap, nil
}

// UpdateLevel applies one incremental level change: size > 0 upserts the
// level, size == 0 removes it. The document is read, patched, and written
// back; feed ingestion is single-writer per asset so no CAS loop is needed.
func (oc *OrderbookCache) UpdateLevel(ctx context.Context, assetID string, side string, price, size float64) error {
	snap, err := oc.GetSnapshot(ctx, assetID)
	if err != nil {
		if errors.Is(err, domain.ErrNotFound) {
			snap = domain.OrderbookSnapshot{AssetID: assetID}
		} else {
			return fmt.Errorf("redis: update level %s: %w", assetID, err)
		}
	}

	switch side {
	case "BUY", "bids":
		snap.Bids = patchLevels(snap.Bids, price, size)
	case "SELL", "asks":
		snap.Asks = patchLevels(snap.Asks, price, size)
	default:
		return fmt.Errorf("redis: update level %s: unknown side %q", assetID, side)
	}
	snap.Timestamp = time.Now().UTC()

	return oc.SetSnapshot(ctx, assetID, snap)
}

// GetBBO returns the best bid and ask from the BBO hash, or
// domain.ErrNotFound when no book is cached.
func (oc *OrderbookCache) GetBBO(ctx context.Context, assetID string) (bestBid, bestAsk float64, err error) {
	vals, err := oc.rdb.HGetAll(ctx, bookBBOKey(assetID)).Result()
	if err != nil {
		return 0, 0, fmt.Errorf("redis: get bbo %s: %w", assetID, err)
	}
	if len(vals) == 0 {
		return 0, 0, domain.ErrNotFound
	}
	bestBid, _ = strconv.ParseFloat(vals["bid"], 64)
	bestAsk, _ = strconv.ParseFloat(vals["ask"], 64)
	return bestBid, bestAsk, nil
}

// patchLevels upserts or removes one price level.
func patchLevels(levels []domain.PriceLevel, price, size float64) []domain.PriceLevel {
	for i := range levels {
		if levels[i].Price == price {
			if size <= 0 {
				return append(levels[:i], levels[i+1:]...)
			}
			levels[i].Size = size
			return levels
		}
	}
	if size <= 0 {
		return levels
	}
	return append(levels, domain.PriceLevel{Price: price, Size: size})
}

// normalizeSnapshot sorts the sides and recomputes BBO and mid-price.
func normalizeSnapshot(snap *domain.OrderbookSnapshot) {
	sort.Slice(snap.Bids, func(i, j int) bool { return snap.Bids[i].Price > snap.Bids[j].Price })
	sort.Slice(snap.Asks, func(i, j int) bool { return snap.Asks[i].Price < snap.Asks[j].Price })

	snap.BestBid, snap.BestAsk, snap.MidPrice = 0, 0, 0
	if len(snap.Bids) > 0 {
		snap.BestBid = snap.Bids[0].Price
	}
	if len(snap.Asks) > 0 {
		snap.BestAsk = snap.Asks[0].Price
	}
	if snap.BestBid > 0 && snap.BestAsk > 0 {
		snap.MidPrice = (snap.BestBid + snap.BestAsk) / 2
	}
}

var _ domain.OrderbookCache = (*OrderbookCache)(nil)
