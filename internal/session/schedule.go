package session

import (
	"math"
	"math/rand"

	"simex/internal/book"
	"simex/internal/config"
)

// pendingOrder is a customer order waiting for its issue tick.
type pendingOrder struct {
	traderIdx int
	side      book.Side
	limit     int64
	qty       int64
	issueTick int64
}

// scheduler replenishes customer orders: when the pending list drains it
// generates one new order per trader on each side, with issue times spread
// over the next interval and limit prices drawn from the side's range.
type scheduler struct {
	cfg      config.ScheduleConfig
	priceMin int64
	priceMax int64

	nBuyers  int
	nSellers int

	pending []pendingOrder
}

func newScheduler(cfg config.ScheduleConfig, priceMin, priceMax int64, nBuyers, nSellers int) *scheduler {
	return &scheduler{
		cfg:      cfg,
		priceMin: priceMin,
		priceMax: priceMax,
		nBuyers:  nBuyers,
		nSellers: nSellers,
	}
}

// due returns the customer orders to issue at tick, regenerating the
// pending list when it has drained.
func (s *scheduler) due(tick int64, rng *rand.Rand) []pendingOrder {
	if len(s.pending) == 0 {
		s.regenerate(tick, rng)
		return nil
	}
	var issued []pendingOrder
	keep := s.pending[:0]
	for _, p := range s.pending {
		if p.issueTick <= tick {
			issued = append(issued, p)
		} else {
			keep = append(keep, p)
		}
	}
	s.pending = keep
	return issued
}

func (s *scheduler) regenerate(tick int64, rng *rand.Rand) {
	times := s.issueTimes(s.nBuyers, rng)
	for i := 0; i < s.nBuyers; i++ {
		s.pending = append(s.pending, pendingOrder{
			traderIdx: i,
			side:      book.Buy,
			limit:     s.orderPrice(i, s.nBuyers, s.cfg.Demand, rng),
			qty:       s.cfg.OrderQty,
			issueTick: tick + times[i],
		})
	}
	times = s.issueTimes(s.nSellers, rng)
	for i := 0; i < s.nSellers; i++ {
		s.pending = append(s.pending, pendingOrder{
			traderIdx: i,
			side:      book.Sell,
			limit:     s.orderPrice(i, s.nSellers, s.cfg.Supply, rng),
			qty:       s.cfg.OrderQty,
			issueTick: tick + times[i],
		})
	}
}

// issueTimes spreads n arrivals over the replenishment interval according
// to the timemode, squeezes them to fit it exactly, and shuffles so the
// arrival order is decoupled from trader index.
func (s *scheduler) issueTimes(n int, rng *rand.Rand) []int64 {
	interval := float64(s.cfg.Interval)
	tstep := interval
	if n > 1 {
		tstep = interval / float64(n-1)
	}
	arrival := 0.0
	times := make([]float64, n)
	for i := 0; i < n; i++ {
		switch s.cfg.Timemode {
		case "periodic":
			arrival = interval
		case "drip-fixed":
			arrival = float64(i) * tstep
		case "drip-jitter":
			arrival = float64(i)*tstep + tstep*rng.Float64()
		case "drip-poisson":
			arrival += rng.ExpFloat64() * interval / float64(n)
		}
		times[i] = arrival
	}
	if last := times[n-1]; last != interval && last > 0 {
		for i := range times {
			times[i] = interval * times[i] / last
		}
	}
	ticks := make([]int64, n)
	for i, t := range times {
		ticks[i] = int64(t)
	}
	// Fisher-Yates so issue order does not follow trader index
	for i := n - 1; i > 0; i-- {
		j := rng.Int63n(int64(i + 1))
		ticks[i], ticks[j] = ticks[j], ticks[i]
	}
	return ticks
}

// orderPrice assigns trader i of n a limit price from the side's range.
func (s *scheduler) orderPrice(i, n int, r config.PriceRange, rng *rand.Rand) int64 {
	pmin, pmax := r.Low, r.High
	step := 0.0
	if n > 1 {
		step = float64(pmax-pmin) / float64(n-1)
	}
	var price int64
	switch s.cfg.Stepmode {
	case "fixed":
		price = pmin + int64(float64(i)*step)
	case "jittered":
		half := int64(math.Round(step / 2))
		price = pmin + int64(float64(i)*step)
		if half > 0 {
			price += rng.Int63n(2*half+1) - half
		}
	default: // random
		price = pmin
		if pmax > pmin {
			price += rng.Int63n(pmax - pmin + 1)
		}
	}
	return clampPrice(price, s.priceMin, s.priceMax)
}

func clampPrice(v, lo, hi int64) int64 {
	if v < lo {
		return lo
	}
	if v > hi {
		return hi
	}
	return v
}
