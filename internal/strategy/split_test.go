package strategy

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestCalculateSplitOrders_EqualClips(t *testing.T) {
	orders := CalculateSplitOrders(90, 0.50, SplitConfig{
		Chunks:    3,
		Delay:     200 * time.Millisecond,
		MinShares: 5,
	})
	require.Len(t, orders, 3)

	var total float64
	for i, o := range orders {
		assert.InDelta(t, 30, o.Shares, 1e-9)
		assert.InDelta(t, 15, o.Size, 1e-9)
		if i == 0 {
			assert.Zero(t, o.Delay)
		} else {
			assert.Equal(t, 200*time.Millisecond, o.Delay)
		}
		total += o.Shares
	}
	assert.InDelta(t, 90, total, 1e-9)
}

func TestCalculateSplitOrders_MinShareClampGrowsClips(t *testing.T) {
	// 12 shares across 5 clips would be 2.4 each, below the 5-share minimum;
	// the chunk count shrinks until clips are large enough.
	orders := CalculateSplitOrders(12, 0.40, SplitConfig{Chunks: 5, MinShares: 5})
	require.Len(t, orders, 2)
	assert.InDelta(t, 6, orders[0].Shares, 1e-9)
	assert.InDelta(t, 6, orders[1].Shares, 1e-9)
}

func TestCalculateSplitOrders_RemainderOnLastClip(t *testing.T) {
	orders := CalculateSplitOrders(100, 0.30, SplitConfig{Chunks: 3, MinShares: 1})
	require.Len(t, orders, 3)
	var total float64
	for _, o := range orders {
		total += o.Shares
	}
	assert.InDelta(t, 100, total, 1e-9)
	assert.InDelta(t, 33.33, orders[0].Shares, 1e-9)
	assert.InDelta(t, 33.34, orders[2].Shares, 1e-9)
}

func TestCalculateSplitOrders_ZeroShares(t *testing.T) {
	assert.Nil(t, CalculateSplitOrders(0, 0.5, SplitConfig{Chunks: 3}))
}
