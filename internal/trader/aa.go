package trader

import (
	"math"
	"math/rand"

	"simex/internal/book"
)

// aa is Vytelingum's adaptive-aggressive trader. It keeps a decayed
// moving-average estimate of the equilibrium price, measures its
// volatility with Smith's alpha, and learns an aggressiveness coefficient
// that bends the target price between the private limit and the
// estimated equilibrium; quotes then step from the current best toward
// that target.
type aa struct {
	side book.Side
	bookWatch

	shortLR float64 // aggressiveness learning rate
	longLR  float64 // theta learning rate
	eta     float64 // fraction of the best-to-target gap closed per quote

	theta    float64
	thetaMax float64
	thetaMin float64

	maWeights []float64
	recent    []float64 // observed trade prices, most recent last
	eqEst     []float64
	alphas    []float64

	rShout     float64
	aggression float64
	target     float64
	hasTarget  bool

	limit  float64
	active bool
}

const (
	aaShoutRel = 0.05
	aaShoutAbs = 0.05
	aaWindow   = 5
	aaDecay    = 0.95
)

func newAA(side book.Side, rng *rand.Rand) *aa {
	t := &aa{
		side:       side,
		shortLR:    0.1 + 0.4*rng.Float64(),
		longLR:     0.1 + 0.4*rng.Float64(),
		eta:        3.0,
		theta:      -2.0,
		thetaMax:   2.0,
		thetaMin:   -8.0,
		aggression: -0.3 * rng.Float64(),
	}
	for i := 0; i < aaWindow; i++ {
		t.maWeights = append(t.maWeights, math.Pow(aaDecay, float64(i)))
	}
	return t
}

func (t *aa) quote(a Assignment, v View, _ *rand.Rand) (int64, bool) {
	t.active = true
	t.limit = float64(a.Limit)
	maxPrice := float64(v.PriceMax)
	t.computeTarget(maxPrice)

	oBid := 0.0
	if v.HasBid {
		oBid = float64(v.BestBid)
	}
	oAsk := maxPrice
	if v.HasAsk {
		oAsk = float64(v.BestAsk)
	}

	var price float64
	if t.side == book.Buy {
		if t.limit <= oBid {
			return 0, false
		}
		if len(t.recent) > 0 {
			oAskPlus := (1+aaShoutRel)*oAsk + aaShoutAbs
			price = oBid + (math.Min(t.limit, oAskPlus)-oBid)/t.eta
		} else if oAsk <= t.target {
			price = oAsk
		} else {
			price = oBid + (t.target-oBid)/t.eta
		}
	} else {
		if t.limit >= oAsk {
			return 0, false
		}
		if len(t.recent) > 0 {
			oBidMinus := (1-aaShoutRel)*oBid - aaShoutAbs
			price = oAsk - (oAsk-math.Max(t.limit, oBidMinus))/t.eta
		} else if oBid >= t.target {
			price = oBid
		} else {
			price = oAsk - (oAsk-t.target)/t.eta
		}
	}
	return int64(math.Round(price)), true
}

func (t *aa) respond(a *Assignment, v View, trade *book.Trade, _ *rand.Rand) {
	if a == nil {
		t.active = false
	}
	_, bidHit := t.bidEvents(v, trade)
	_, askLifted := t.askEvents(v, trade)
	t.observe(v)

	if (!bidHit && !askLifted) || trade == nil {
		return
	}
	price := float64(trade.Price)
	t.recent = append(t.recent, price)
	t.estimateEq()
	t.updateAlpha()
	if t.limit <= 0 {
		// no quote yet, nothing to aim at
		return
	}
	if !t.hasTarget {
		t.target = price
		t.hasTarget = true
	}
	maxPrice := float64(v.PriceMax)
	t.updateTheta()
	t.updateRShout(maxPrice)
	t.updateAggression(price)
	t.computeTarget(maxPrice)
}

// estimateEq appends a weighted moving average of the recent trade
// prices, falling back to a plain mean while the window is short.
func (t *aa) estimateEq() {
	n := len(t.recent)
	if n == 0 {
		return
	}
	if n < aaWindow {
		var sum float64
		for _, p := range t.recent {
			sum += p
		}
		t.eqEst = append(t.eqEst, sum/float64(n))
		return
	}
	var num, den float64
	for i, p := range t.recent[n-aaWindow:] {
		num += p * t.maWeights[i]
		den += t.maWeights[i]
	}
	t.eqEst = append(t.eqEst, num/den)
}

// updateAlpha appends Smith's alpha: the RMS deviation of the equilibrium
// estimates from the latest one, normalized by it.
func (t *aa) updateAlpha() {
	eq := t.eqEst[len(t.eqEst)-1]
	var sum float64
	for _, p := range t.eqEst {
		d := p - eq
		sum += d * d
	}
	t.alphas = append(t.alphas, math.Sqrt(sum/float64(len(t.eqEst)))/eq)
}

// updateTheta moves theta toward the value implied by where current
// volatility sits in its observed range.
func (t *aa) updateTheta() {
	const gamma = 2.0
	lo, hi := t.alphas[0], t.alphas[0]
	for _, a := range t.alphas {
		lo = math.Min(lo, a)
		hi = math.Max(hi, a)
	}
	rel := 0.4
	if hi > lo {
		rel = (t.alphas[len(t.alphas)-1] - lo) / (hi - lo)
	}
	desired := t.thetaMin + (t.thetaMax-t.thetaMin)*(1-rel*math.Exp(gamma*(rel-1)))
	t.theta += t.longLR * (desired - t.theta)
}

// updateRShout recovers the aggressiveness that would have produced the
// current target, the reference point for the next aggression update.
func (t *aa) updateRShout(maxPrice float64) {
	p := t.eqEst[len(t.eqEst)-1]
	l := t.limit
	th := t.theta
	if th == 0 {
		th = 1e-6
	}
	expTh := math.Exp(th) - 1

	var r float64
	if t.side == book.Buy {
		if l <= p { // extramarginal
			t.rShout = 0
			return
		}
		if t.target > p {
			r = math.Log((t.target-p)*expTh/(l-p)+1) / th
		} else {
			r = math.Log((1-t.target/p)*expTh+1) / th
		}
	} else {
		if l >= p { // extramarginal
			t.rShout = 0
			return
		}
		if t.target > p {
			r = math.Log((t.target-p)*expTh/(maxPrice-p)+1) / th
		} else {
			r = math.Log((1-(t.target-l)/(p-l))*expTh+1) / th
		}
	}
	if math.IsNaN(r) || math.IsInf(r, 0) {
		r = 0
	}
	t.rShout = r
}

// updateAggression is the short-term learning step: push the
// aggressiveness toward a perturbed version of rShout, up when the last
// trade beat the target and down otherwise.
func (t *aa) updateAggression(lastPrice float64) {
	var delta float64
	if t.target >= lastPrice {
		delta = (1+aaShoutRel)*t.rShout + aaShoutAbs
	} else {
		delta = (1-aaShoutRel)*t.rShout - aaShoutAbs
	}
	t.aggression += t.shortLR * (delta - t.aggression)
}

// computeTarget maps the current aggressiveness onto a target price.
// Positive aggression concedes toward the equilibrium estimate, negative
// holds out toward the limit (buyers) or the band ceiling (sellers).
func (t *aa) computeTarget(maxPrice float64) {
	l := t.limit
	var p float64
	if n := len(t.eqEst); n > 0 {
		p = t.eqEst[n-1]
		if l == p {
			p *= 1.000001
		}
	} else if t.side == book.Buy {
		p = l * 0.8
	} else {
		p = l * 1.2
	}

	th := t.theta
	if th == 0 {
		th = 1e-6
	}
	expTh := math.Exp(th) - 1
	minus := (math.Exp(-t.aggression*th) - 1) / expTh
	plus := (math.Exp(t.aggression*th) - 1) / expTh
	thetaBar := (th*l - th*p) / p
	if thetaBar == 0 {
		thetaBar = 0.0001
	}
	bar := (math.Exp(-t.aggression*thetaBar) - 1) / (math.Exp(thetaBar) - 1)

	if t.side == book.Buy {
		if l <= p { // extramarginal: never worth more than the limit
			if t.aggression >= 0 {
				t.target = l
			} else {
				t.target = l * (1 - minus)
			}
		} else {
			if t.aggression >= 0 {
				t.target = p + (l-p)*plus
			} else {
				t.target = p * (1 - bar)
			}
		}
		if t.target > l || math.IsNaN(t.target) || math.IsInf(t.target, 0) {
			t.target = l
		}
	} else {
		if l >= p { // extramarginal
			if t.aggression >= 0 {
				t.target = l
			} else {
				t.target = l + (maxPrice-l)*minus
			}
		} else {
			if t.aggression >= 0 {
				t.target = l + (p-l)*(1-plus)
			} else {
				t.target = p + (maxPrice-p)*bar
			}
		}
		if t.target < l || math.IsNaN(t.target) || math.IsInf(t.target, 0) {
			t.target = l
		}
	}
	t.hasTarget = true
}
