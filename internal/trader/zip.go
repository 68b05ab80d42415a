package trader

import (
	"math"
	"math/rand"

	"simex/internal/book"
	"simex/internal/config"
)

// zip is Cliff's 1997 adaptive-margin trader. The quote is
// limit*(1+margin); respond nudges the margin toward a perturbed target
// price whenever the market shows the current quote is beaten or beatable.
type zip struct {
	side book.Side
	bookWatch

	beta   float64
	momntm float64
	ca     float64
	cr     float64

	marginBuy  float64
	marginSell float64
	prevChange float64

	price  int64 // last quoted price
	limit  int64
	active bool
}

func newZIP(side book.Side, params config.StrategyParams, rng *rand.Rand) *zip {
	z := &zip{
		side:       side,
		beta:       0.1 + 0.4*rng.Float64(),
		momntm:     0.1 * rng.Float64(),
		ca:         0.05,
		cr:         0.05,
		marginBuy:  -(0.05 + 0.3*rng.Float64()),
		marginSell: 0.05 + 0.3*rng.Float64(),
	}
	if params.Beta > 0 {
		z.beta = params.Beta
	}
	if params.Momentum > 0 {
		z.momntm = params.Momentum
	}
	return z
}

func (z *zip) quote(a Assignment, _ View, _ *rand.Rand) (int64, bool) {
	z.active = true
	z.limit = a.Limit
	margin := z.marginSell
	if a.Side == book.Buy {
		margin = z.marginBuy
	}
	z.price = int64(math.Round(float64(a.Limit) * (1 + margin)))
	return z.price, true
}

func (z *zip) respond(a *Assignment, v View, trade *book.Trade, rng *rand.Rand) {
	if a == nil {
		z.active = false
	}

	bidImproved, bidHit := z.bidEvents(v, trade)
	askImproved, askLifted := z.askEvents(v, trade)
	deal := bidHit || askLifted

	if z.limit > 0 {
		if z.side == book.Sell {
			if deal && trade != nil {
				tp := trade.Price
				if z.price <= tp {
					// could have sold for more, raise margin
					z.profitAlter(z.targetUp(tp, rng))
				} else if askLifted && z.active && !z.willing(tp) {
					z.profitAlter(z.targetDown(tp, rng))
				}
			} else if askImproved && v.HasAsk && z.price > v.BestAsk {
				target := worstAsk(v)
				if v.HasBid {
					target = z.targetUp(v.BestBid, rng)
				}
				z.profitAlter(target)
			}
		} else {
			if deal && trade != nil {
				tp := trade.Price
				if z.price >= tp {
					// could have bought for less, cut the price
					z.profitAlter(z.targetDown(tp, rng))
				} else if bidHit && z.active && !z.willing(tp) {
					z.profitAlter(z.targetUp(tp, rng))
				}
			} else if bidImproved && v.HasBid && z.price < v.BestBid {
				target := worstBid(v)
				if v.HasAsk {
					target = z.targetDown(v.BestAsk, rng)
				}
				z.profitAlter(target)
			}
		}
	}

	z.observe(v)
}

func (z *zip) willing(price int64) bool {
	if !z.active {
		return false
	}
	if z.side == book.Buy {
		return z.price >= price
	}
	return z.price <= price
}

func (z *zip) targetUp(price int64, rng *rand.Rand) int64 {
	abs := z.ca * rng.Float64()
	rel := float64(price) * (1 + z.cr*rng.Float64())
	return int64(math.Round(rel + abs))
}

func (z *zip) targetDown(price int64, rng *rand.Rand) int64 {
	abs := z.ca * rng.Float64()
	rel := float64(price) * (1 - z.cr*rng.Float64())
	return int64(math.Round(rel - abs))
}

// profitAlter is the Widrow-Hoff margin update: move the working price a
// beta-scaled step (with momentum) toward target, then refit the margin,
// keeping buy margins negative and sell margins positive.
func (z *zip) profitAlter(target int64) {
	diff := float64(target - z.price)
	change := (1-z.momntm)*(z.beta*diff) + z.momntm*z.prevChange
	z.prevChange = change
	newMargin := (float64(z.price)+change)/float64(z.limit) - 1

	if z.side == book.Buy {
		if newMargin < 0 {
			z.marginBuy = newMargin
		}
		z.price = int64(math.Round(float64(z.limit) * (1 + z.marginBuy)))
		return
	}
	if newMargin > 0 {
		z.marginSell = newMargin
	}
	z.price = int64(math.Round(float64(z.limit) * (1 + z.marginSell)))
}
