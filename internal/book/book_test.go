package book

import (
	"errors"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func newTestBook() *Book {
	return New(1, 1000)
}

func TestSubmitRests(t *testing.T) {
	b := newTestBook()

	trades, err := b.Submit(&Order{ID: 1, TraderID: "b1", Side: Buy, Price: 100, Qty: 2})
	require.NoError(t, err)
	assert.Empty(t, trades)

	price, ok := b.BestBid()
	require.True(t, ok)
	assert.Equal(t, int64(100), price)
	assert.Equal(t, int64(2), b.Outstanding())

	_, ok = b.BestAsk()
	assert.False(t, ok)
}

func TestExecutionAtRestingPrice(t *testing.T) {
	b := newTestBook()

	_, err := b.Submit(&Order{ID: 1, TraderID: "s1", Side: Sell, Price: 90, Qty: 1})
	require.NoError(t, err)

	trades, err := b.Submit(&Order{ID: 2, TraderID: "b1", Side: Buy, Price: 100, Qty: 1})
	require.NoError(t, err)
	require.Len(t, trades, 1)

	// incoming bid of 100 lifts the resting ask, deal prints at 90
	assert.Equal(t, int64(90), trades[0].Price)
	assert.Equal(t, "b1", trades[0].BuyTraderID)
	assert.Equal(t, "s1", trades[0].SellTraderID)
	assert.Equal(t, int64(0), b.Outstanding())
}

func TestFIFOAtEqualPrice(t *testing.T) {
	b := newTestBook()

	for i, trader := range []string{"s1", "s2", "s3"} {
		_, err := b.Submit(&Order{ID: int64(i + 1), TraderID: trader, Side: Sell, Price: 100, Qty: 1})
		require.NoError(t, err)
	}

	for i, want := range []string{"s1", "s2", "s3"} {
		trades, err := b.Submit(&Order{ID: int64(10 + i), TraderID: "b", Side: Buy, Price: 100, Qty: 1})
		require.NoError(t, err)
		require.Len(t, trades, 1)
		assert.Equal(t, want, trades[0].SellTraderID)
	}
}

func TestPricePriorityBeatsArrival(t *testing.T) {
	b := newTestBook()

	_, err := b.Submit(&Order{ID: 1, TraderID: "s1", Side: Sell, Price: 110, Qty: 1})
	require.NoError(t, err)
	_, err = b.Submit(&Order{ID: 2, TraderID: "s2", Side: Sell, Price: 105, Qty: 1})
	require.NoError(t, err)

	trades, err := b.Submit(&Order{ID: 3, TraderID: "b1", Side: Buy, Price: 120, Qty: 1})
	require.NoError(t, err)
	require.Len(t, trades, 1)
	assert.Equal(t, "s2", trades[0].SellTraderID)
	assert.Equal(t, int64(105), trades[0].Price)
}

func TestPartialFillWalksLevels(t *testing.T) {
	b := newTestBook()

	_, err := b.Submit(&Order{ID: 1, TraderID: "s1", Side: Sell, Price: 100, Qty: 2})
	require.NoError(t, err)
	_, err = b.Submit(&Order{ID: 2, TraderID: "s2", Side: Sell, Price: 101, Qty: 2})
	require.NoError(t, err)

	trades, err := b.Submit(&Order{ID: 3, TraderID: "b1", Side: Buy, Price: 101, Qty: 3})
	require.NoError(t, err)
	require.Len(t, trades, 2)
	assert.Equal(t, int64(100), trades[0].Price)
	assert.Equal(t, int64(2), trades[0].Qty)
	assert.Equal(t, int64(101), trades[1].Price)
	assert.Equal(t, int64(1), trades[1].Qty)

	// s2's remainder still rests
	price, ok := b.BestAsk()
	require.True(t, ok)
	assert.Equal(t, int64(101), price)
	assert.Equal(t, int64(1), b.Outstanding())
}

func TestRemainderRests(t *testing.T) {
	b := newTestBook()

	_, err := b.Submit(&Order{ID: 1, TraderID: "s1", Side: Sell, Price: 100, Qty: 1})
	require.NoError(t, err)

	trades, err := b.Submit(&Order{ID: 2, TraderID: "b1", Side: Buy, Price: 100, Qty: 3})
	require.NoError(t, err)
	require.Len(t, trades, 1)

	price, ok := b.BestBid()
	require.True(t, ok)
	assert.Equal(t, int64(100), price)
	assert.Equal(t, int64(2), b.Outstanding())
}

func TestNeverCrossed(t *testing.T) {
	b := newTestBook()

	orders := []*Order{
		{ID: 1, TraderID: "b1", Side: Buy, Price: 95, Qty: 2},
		{ID: 2, TraderID: "s1", Side: Sell, Price: 105, Qty: 2},
		{ID: 3, TraderID: "b2", Side: Buy, Price: 106, Qty: 1},
		{ID: 4, TraderID: "s2", Side: Sell, Price: 94, Qty: 4},
		{ID: 5, TraderID: "b3", Side: Buy, Price: 100, Qty: 1},
		{ID: 6, TraderID: "s3", Side: Sell, Price: 100, Qty: 1},
	}
	for _, o := range orders {
		_, err := b.Submit(o)
		require.NoError(t, err)
		bid, hasBid := b.BestBid()
		ask, hasAsk := b.BestAsk()
		if hasBid && hasAsk {
			assert.Less(t, bid, ask, "book crossed after order %d", o.ID)
		}
	}
}

func TestQuantityConservation(t *testing.T) {
	b := newTestBook()

	var submitted, executed int64
	orders := []*Order{
		{ID: 1, TraderID: "b1", Side: Buy, Price: 100, Qty: 5},
		{ID: 2, TraderID: "s1", Side: Sell, Price: 98, Qty: 3},
		{ID: 3, TraderID: "s2", Side: Sell, Price: 99, Qty: 4},
		{ID: 4, TraderID: "b2", Side: Buy, Price: 99, Qty: 2},
	}
	for _, o := range orders {
		submitted += o.Qty
		trades, err := b.Submit(o)
		require.NoError(t, err)
		for _, tr := range trades {
			executed += tr.Qty
		}
	}
	assert.Equal(t, submitted, executed+b.Outstanding())
}

func TestCancel(t *testing.T) {
	b := newTestBook()

	_, err := b.Submit(&Order{ID: 1, TraderID: "b1", Side: Buy, Price: 100, Qty: 2})
	require.NoError(t, err)

	assert.True(t, b.Cancel(1))
	assert.False(t, b.Resting(1))
	assert.Equal(t, int64(0), b.Outstanding())
	_, ok := b.BestBid()
	assert.False(t, ok)

	// unknown and repeated cancels are no-ops
	assert.False(t, b.Cancel(1))
	assert.False(t, b.Cancel(99))
}

func TestCancelMiddleOfLevel(t *testing.T) {
	b := newTestBook()

	for i := int64(1); i <= 3; i++ {
		_, err := b.Submit(&Order{ID: i, TraderID: "s", Side: Sell, Price: 100, Qty: 1})
		require.NoError(t, err)
	}
	require.True(t, b.Cancel(2))

	trades, err := b.Submit(&Order{ID: 10, TraderID: "b", Side: Buy, Price: 100, Qty: 2})
	require.NoError(t, err)
	require.Len(t, trades, 2)
	assert.Equal(t, int64(1), trades[0].SellOrderID)
	assert.Equal(t, int64(3), trades[1].SellOrderID)
}

func TestRejects(t *testing.T) {
	b := newTestBook()

	cases := []struct {
		name  string
		order *Order
	}{
		{"zero qty", &Order{ID: 1, Side: Buy, Price: 100, Qty: 0}},
		{"negative qty", &Order{ID: 2, Side: Buy, Price: 100, Qty: -1}},
		{"price below band", &Order{ID: 3, Side: Buy, Price: 0, Qty: 1}},
		{"price above band", &Order{ID: 4, Side: Sell, Price: 1001, Qty: 1}},
		{"bad side", &Order{ID: 5, Side: Side(9), Price: 100, Qty: 1}},
	}
	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			_, err := b.Submit(tc.order)
			assert.True(t, errors.Is(err, ErrInvalidOrder))
		})
	}

	t.Run("duplicate id", func(t *testing.T) {
		_, err := b.Submit(&Order{ID: 7, Side: Buy, Price: 100, Qty: 1})
		require.NoError(t, err)
		_, err = b.Submit(&Order{ID: 7, Side: Buy, Price: 101, Qty: 1})
		assert.True(t, errors.Is(err, ErrInvalidOrder))
	})
}

func TestDepth(t *testing.T) {
	b := newTestBook()

	_, _ = b.Submit(&Order{ID: 1, Side: Buy, Price: 95, Qty: 2})
	_, _ = b.Submit(&Order{ID: 2, Side: Buy, Price: 97, Qty: 1})
	_, _ = b.Submit(&Order{ID: 3, Side: Buy, Price: 95, Qty: 3})
	_, _ = b.Submit(&Order{ID: 4, Side: Sell, Price: 102, Qty: 4})

	bids, asks := b.Depth()
	require.Len(t, bids, 2)
	assert.Equal(t, Level{Price: 97, Qty: 1}, bids[0])
	assert.Equal(t, Level{Price: 95, Qty: 5}, bids[1])
	require.Len(t, asks, 1)
	assert.Equal(t, Level{Price: 102, Qty: 4}, asks[0])
}
