package trader

import (
	"fmt"
	"math/rand"

	"simex/internal/book"
	"simex/internal/config"
)

// strategy computes quotes from the working assignment and the public view.
// quote must not mutate anything the next call depends on other than the
// strategy's own adaptive state; respond is where market events land.
type strategy interface {
	quote(a Assignment, v View, rng *rand.Rand) (int64, bool)
	respond(a *Assignment, v View, trade *book.Trade, rng *rand.Rand)
}

func newStrategy(tag string, side book.Side, params config.StrategyParams, rng *rand.Rand) (strategy, error) {
	switch tag {
	case "gvwy":
		return giveaway{}, nil
	case "zic":
		return zic{}, nil
	case "shvr":
		return shaver{}, nil
	case "snpr":
		return newSniper(params), nil
	case "zip":
		return newZIP(side, params, rng), nil
	case "aa":
		return newAA(side, rng), nil
	case "trnd":
		return newTrend(params), nil
	default:
		return nil, fmt.Errorf("%w: unknown strategy %q", config.ErrInvalidConfiguration, tag)
	}
}

// passive holds the empty respond shared by the non-adaptive strategies.
type passive struct{}

func (passive) respond(*Assignment, View, *book.Trade, *rand.Rand) {}

// giveaway quotes the private limit, surrendering all surplus.
type giveaway struct{ passive }

func (giveaway) quote(a Assignment, _ View, _ *rand.Rand) (int64, bool) {
	return a.Limit, true
}

// zic draws uniformly between the band edge and the private limit
// (Gode & Sunder's zero-intelligence constrained trader).
type zic struct{ passive }

func (zic) quote(a Assignment, v View, rng *rand.Rand) (int64, bool) {
	if a.Side == book.Buy {
		return uniformRange(rng, worstBid(v), a.Limit), true
	}
	return uniformRange(rng, a.Limit, worstAsk(v)), true
}

// shaver improves the best same-side quote by one tick, capped at the limit.
type shaver struct{ passive }

func (shaver) quote(a Assignment, v View, _ *rand.Rand) (int64, bool) {
	return shaveQuote(a, v, 1), true
}

// sniper lurks until the closing fraction of the session, then shaves with
// growing aggression as the clock runs out.
type sniper struct {
	passive
	lurk   float64
	growth float64
}

func newSniper(params config.StrategyParams) sniper {
	s := sniper{lurk: 0.2, growth: 3}
	if params.LurkFraction > 0 {
		s.lurk = params.LurkFraction
	}
	if params.ShaveGrowth > 0 {
		s.growth = params.ShaveGrowth
	}
	return s
}

func (s sniper) quote(a Assignment, v View, _ *rand.Rand) (int64, bool) {
	countdown := v.countdown()
	if countdown > s.lurk {
		return 0, false
	}
	shave := int64(1.0 / (0.01 + countdown/(s.growth*s.lurk)))
	return shaveQuote(a, v, shave), true
}

func shaveQuote(a Assignment, v View, shave int64) int64 {
	if a.Side == book.Buy {
		if !v.HasBid {
			return worstBid(v)
		}
		price := v.BestBid + shave
		if price > a.Limit {
			price = a.Limit
		}
		return price
	}
	if !v.HasAsk {
		return worstAsk(v)
	}
	price := v.BestAsk - shave
	if price < a.Limit {
		price = a.Limit
	}
	return price
}

// worstBid and worstAsk are the least competitive admissible quotes, the
// stub prices used when a side of the book is empty.
func worstBid(v View) int64 { return v.PriceMin }

func worstAsk(v View) int64 { return v.PriceMax }

// uniformRange draws uniformly from [lo, hi]; inverted bounds collapse to lo.
func uniformRange(rng *rand.Rand, lo, hi int64) int64 {
	if hi <= lo {
		return lo
	}
	return lo + rng.Int63n(hi-lo+1)
}
