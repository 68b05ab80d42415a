package trader

import (
	"math/rand"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"simex/internal/book"
	"simex/internal/config"
	"simex/internal/oracle"
)

func newTestTrader(t *testing.T, tag string, side book.Side, params config.StrategyParams, seed int64) (*Trader, *rand.Rand) {
	t.Helper()
	rng := rand.New(rand.NewSource(seed))
	tr, err := New("t1", tag, side, params, 1, 1000, params.OracleWeight > 0, rng)
	require.NoError(t, err)
	return tr, rng
}

func marketView() View {
	return View{Tick: 10, Duration: 1000, PriceMin: 1, PriceMax: 1000}
}

func TestUnknownStrategy(t *testing.T) {
	rng := rand.New(rand.NewSource(1))
	_, err := New("t1", "galaxy", book.Buy, config.StrategyParams{}, 1, 1000, false, rng)
	assert.ErrorIs(t, err, config.ErrInvalidConfiguration)
}

func TestNoAssignmentNoQuote(t *testing.T) {
	tr, rng := newTestTrader(t, "gvwy", book.Buy, config.StrategyParams{}, 1)
	_, _, ok := tr.Quote(marketView(), nil, rng)
	assert.False(t, ok)
	assert.False(t, tr.Working())
}

func TestGiveawayQuotesLimit(t *testing.T) {
	tr, rng := newTestTrader(t, "gvwy", book.Buy, config.StrategyParams{}, 1)
	tr.Assign(Assignment{Limit: 120, Qty: 1})

	price, fault, ok := tr.Quote(marketView(), nil, rng)
	require.True(t, ok)
	assert.False(t, fault)
	assert.Equal(t, int64(120), price)
}

func TestZICStaysConstrained(t *testing.T) {
	buyer, rng := newTestTrader(t, "zic", book.Buy, config.StrategyParams{}, 2)
	buyer.Assign(Assignment{Limit: 150, Qty: 1})
	for i := 0; i < 500; i++ {
		price, _, ok := buyer.Quote(marketView(), nil, rng)
		require.True(t, ok)
		assert.GreaterOrEqual(t, price, int64(1))
		assert.LessOrEqual(t, price, int64(150))
	}

	seller, rng := newTestTrader(t, "zic", book.Sell, config.StrategyParams{}, 2)
	seller.Assign(Assignment{Limit: 150, Qty: 1})
	for i := 0; i < 500; i++ {
		price, _, ok := seller.Quote(marketView(), nil, rng)
		require.True(t, ok)
		assert.GreaterOrEqual(t, price, int64(150))
		assert.LessOrEqual(t, price, int64(1000))
	}
}

func TestShaverImprovesBest(t *testing.T) {
	buyer, rng := newTestTrader(t, "shvr", book.Buy, config.StrategyParams{}, 1)
	buyer.Assign(Assignment{Limit: 150, Qty: 1})

	v := marketView()
	v.HasBid, v.BestBid = true, 100
	price, _, ok := buyer.Quote(v, nil, rng)
	require.True(t, ok)
	assert.Equal(t, int64(101), price)

	// capped at limit
	v.BestBid = 150
	price, _, ok = buyer.Quote(v, nil, rng)
	require.True(t, ok)
	assert.Equal(t, int64(150), price)

	// empty book: stub quote at the band floor
	price, _, ok = buyer.Quote(marketView(), nil, rng)
	require.True(t, ok)
	assert.Equal(t, int64(1), price)

	seller, rng := newTestTrader(t, "shvr", book.Sell, config.StrategyParams{}, 1)
	seller.Assign(Assignment{Limit: 80, Qty: 1})
	v = marketView()
	v.HasAsk, v.BestAsk = true, 100
	price, _, ok = seller.Quote(v, nil, rng)
	require.True(t, ok)
	assert.Equal(t, int64(99), price)
}

func TestSniperLurksThenStrikes(t *testing.T) {
	tr, rng := newTestTrader(t, "snpr", book.Buy, config.StrategyParams{}, 1)
	tr.Assign(Assignment{Limit: 200, Qty: 1})

	early := marketView()
	early.Tick, early.Duration = 100, 1000
	_, _, ok := tr.Quote(early, nil, rng)
	assert.False(t, ok, "should lurk with 90%% of the session left")

	late := marketView()
	late.Tick, late.Duration = 950, 1000
	late.HasBid, late.BestBid = true, 100
	price, _, ok := tr.Quote(late, nil, rng)
	require.True(t, ok)
	assert.Greater(t, price, int64(100))
	assert.LessOrEqual(t, price, int64(200))

	// deeper into the close the shave gets thicker
	later := late
	later.Tick = 999
	price2, _, ok := tr.Quote(later, nil, rng)
	require.True(t, ok)
	assert.GreaterOrEqual(t, price2, price)
}

func TestZIPQuoteCarriesMargin(t *testing.T) {
	buyer, rng := newTestTrader(t, "zip", book.Buy, config.StrategyParams{}, 3)
	buyer.Assign(Assignment{Limit: 100, Qty: 1})
	price, _, ok := buyer.Quote(marketView(), nil, rng)
	require.True(t, ok)
	assert.Less(t, price, int64(100), "buy margin keeps the bid under the limit")

	seller, rng := newTestTrader(t, "zip", book.Sell, config.StrategyParams{}, 3)
	seller.Assign(Assignment{Limit: 100, Qty: 1})
	price, _, ok = seller.Quote(marketView(), nil, rng)
	require.True(t, ok)
	assert.Greater(t, price, int64(100), "sell margin keeps the ask over the limit")
}

func TestZIPQuoteRoundsMarginPrice(t *testing.T) {
	seller, rng := newTestTrader(t, "zip", book.Sell, config.StrategyParams{}, 3)
	seller.strat.(*zip).marginSell = 0.05
	seller.Assign(Assignment{Limit: 90, Qty: 1})

	price, _, ok := seller.Quote(marketView(), nil, rng)
	require.True(t, ok)
	assert.Equal(t, int64(95), price, "90*1.05 rounds to 95, matching the margin refit")

	buyer, rng := newTestTrader(t, "zip", book.Buy, config.StrategyParams{}, 3)
	buyer.strat.(*zip).marginBuy = -0.05
	buyer.Assign(Assignment{Limit: 90, Qty: 1})

	price, _, ok = buyer.Quote(marketView(), nil, rng)
	require.True(t, ok)
	assert.Equal(t, int64(86), price)
}

func TestZIPRaisesMarginAfterCheapSale(t *testing.T) {
	seller, rng := newTestTrader(t, "zip", book.Sell, config.StrategyParams{Beta: 0.5}, 4)
	seller.Assign(Assignment{Limit: 100, Qty: 1})

	first, _, ok := seller.Quote(marketView(), nil, rng)
	require.True(t, ok)

	// ask side emptied by a trade above our quote: could have sold for more
	v := marketView()
	z := seller.strat.(*zip)
	z.hasPrevAsk, z.prevAskP, z.prevAskQ = true, first, 1
	tradePrice := first + 40
	seller.Respond(v, &book.Trade{Price: tradePrice, Qty: 1}, rng)

	seller.Assign(Assignment{Limit: 100, Qty: 1})
	second, _, ok := seller.Quote(marketView(), nil, rng)
	require.True(t, ok)
	assert.Greater(t, second, first)
}

func TestZIPCutsPriceWhenOutbid(t *testing.T) {
	buyer, rng := newTestTrader(t, "zip", book.Buy, config.StrategyParams{Beta: 0.5}, 5)
	buyer.Assign(Assignment{Limit: 100, Qty: 1})

	first, _, ok := buyer.Quote(marketView(), nil, rng)
	require.True(t, ok)

	// bid hit below our working price: could have bought for less
	v := marketView()
	z := buyer.strat.(*zip)
	z.hasPrevBid, z.prevBidP, z.prevBidQ = true, first, 1
	tradePrice := first - 30
	if tradePrice < 1 {
		tradePrice = 1
	}
	buyer.Respond(v, &book.Trade{Price: tradePrice, Qty: 1}, rng)

	buyer.Assign(Assignment{Limit: 100, Qty: 1})
	second, _, ok := buyer.Quote(marketView(), nil, rng)
	require.True(t, ok)
	assert.Less(t, second, first)
}

func TestTrendTracksTape(t *testing.T) {
	tr, rng := newTestTrader(t, "trnd", book.Buy, config.StrategyParams{TrendWindow: 4}, 1)
	tr.Assign(Assignment{Limit: 300, Qty: 1})

	v := marketView()
	v.Tape = []int64{100, 100, 100, 100}
	price, _, ok := tr.Quote(v, nil, rng)
	require.True(t, ok)
	assert.Equal(t, int64(100), price)

	// thin tape: give the limit away
	v.Tape = []int64{100}
	price, _, ok = tr.Quote(v, nil, rng)
	require.True(t, ok)
	assert.Equal(t, int64(300), price)

	// never bids through the limit
	tr.Assign(Assignment{Limit: 90, Qty: 1})
	v.Tape = []int64{100, 100, 100, 100}
	price, _, ok = tr.Quote(v, nil, rng)
	require.True(t, ok)
	assert.Equal(t, int64(90), price)
}

func TestOracleShading(t *testing.T) {
	tr, rng := newTestTrader(t, "gvwy", book.Buy, config.StrategyParams{OracleWeight: 0.5}, 1)
	tr.Assign(Assignment{Limit: 600, Qty: 1})

	v := marketView()
	v.HasTrade, v.LastTrade = true, 400
	sig := &oracle.Signal{Observed: 500}

	// gvwy quotes 600, shade = 0.5*(500-400) = +50, then clamped to limit
	price, fault, ok := tr.Quote(v, sig, rng)
	require.True(t, ok)
	assert.False(t, fault)
	assert.Equal(t, int64(600), price)

	// below-reference observation pulls the bid down
	sig = &oracle.Signal{Observed: 300}
	price, _, ok = tr.Quote(v, sig, rng)
	require.True(t, ok)
	assert.Equal(t, int64(550), price)
}

func TestOutOfBandQuoteClippedAndCounted(t *testing.T) {
	tr, rng := newTestTrader(t, "gvwy", book.Sell, config.StrategyParams{OracleWeight: 1}, 1)
	tr.Assign(Assignment{Limit: 5, Qty: 1})

	// no trades yet: reference is the band midpoint 500, so the shade
	// drags the raw quote far below the floor
	sig := &oracle.Signal{Observed: 1}
	price, fault, ok := tr.Quote(marketView(), sig, rng)
	require.True(t, ok)
	assert.True(t, fault)
	assert.Equal(t, int64(5), price, "clip to band then respect the limit")
	assert.Equal(t, int64(1), tr.Faults)
}

func TestOnTrade(t *testing.T) {
	buyer, _ := newTestTrader(t, "gvwy", book.Buy, config.StrategyParams{}, 1)
	buyer.Assign(Assignment{Limit: 120, Qty: 2})

	buyer.OnTrade(100, 1)
	assert.Equal(t, int64(20), buyer.Balance)
	assert.True(t, buyer.Working())
	assert.Equal(t, int64(1), buyer.QtyWanted())

	buyer.OnTrade(110, 1)
	assert.Equal(t, int64(30), buyer.Balance)
	assert.False(t, buyer.Working(), "assignment cleared once filled")

	seller, _ := newTestTrader(t, "gvwy", book.Sell, config.StrategyParams{}, 1)
	seller.Assign(Assignment{Limit: 80, Qty: 1})
	seller.OnTrade(95, 1)
	assert.Equal(t, int64(15), seller.Balance)
}

func TestAssignSupersedes(t *testing.T) {
	tr, _ := newTestTrader(t, "gvwy", book.Buy, config.StrategyParams{}, 1)
	tr.Assign(Assignment{Limit: 100, Qty: 1})
	tr.Assign(Assignment{Limit: 140, Qty: 3})

	a, ok := tr.Assignment()
	require.True(t, ok)
	assert.Equal(t, int64(140), a.Limit)
	assert.Equal(t, int64(3), a.Qty)
	assert.Equal(t, book.Buy, a.Side)
}
