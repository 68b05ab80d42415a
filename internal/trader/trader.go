package trader

import (
	"fmt"
	"math"
	"math/rand"

	"simex/internal/book"
	"simex/internal/config"
	"simex/internal/oracle"
)

// Assignment is one customer order a trader works: trade up to Qty units at
// a private limit price. A new assignment supersedes the previous one.
type Assignment struct {
	Side  book.Side
	Limit int64
	Qty   int64
	Tick  int64
}

// View is the public market state handed to strategies. Tape holds recent
// trade prices, most recent last.
type View struct {
	Tick     int64
	Duration int64

	PriceMin int64
	PriceMax int64

	BestBid int64
	HasBid  bool
	BidQty  int64 // quantity at the best bid
	BestAsk int64
	HasAsk  bool
	AskQty  int64 // quantity at the best ask

	LastTrade int64
	HasTrade  bool

	// LastEventCancel is true when the most recent book event was a
	// cancellation rather than a trade.
	LastEventCancel bool

	Tape []int64
}

// countdown is the fraction of the session still to run.
func (v View) countdown() float64 {
	if v.Duration <= 0 {
		return 0
	}
	return float64(v.Duration-v.Tick) / float64(v.Duration)
}

// Trader is one market participant: a fixed side, a strategy, a running
// balance and at most one working assignment.
type Trader struct {
	ID         string
	Tag        string
	Side       book.Side
	Balance    int64
	Subscribed bool
	Faults     int64

	priceMin, priceMax int64
	oracleWeight       float64

	assignment *Assignment
	strat      strategy
}

// New builds a trader. rng seeds any per-trader randomized strategy
// parameters and must be the session RNG.
func New(id, tag string, side book.Side, params config.StrategyParams, priceMin, priceMax int64, subscribed bool, rng *rand.Rand) (*Trader, error) {
	strat, err := newStrategy(tag, side, params, rng)
	if err != nil {
		return nil, err
	}
	return &Trader{
		ID:           id,
		Tag:          tag,
		Side:         side,
		Subscribed:   subscribed,
		priceMin:     priceMin,
		priceMax:     priceMax,
		oracleWeight: params.OracleWeight,
		strat:        strat,
	}, nil
}

// Assign gives the trader a customer order to work, superseding any
// previous assignment.
func (t *Trader) Assign(a Assignment) {
	a.Side = t.Side
	t.assignment = &a
}

// Working reports whether the trader currently has an assignment.
func (t *Trader) Working() bool {
	return t.assignment != nil
}

// Assignment returns a copy of the working assignment.
func (t *Trader) Assignment() (Assignment, bool) {
	if t.assignment == nil {
		return Assignment{}, false
	}
	return *t.assignment, true
}

// Quote asks the strategy for a price. A false second return means the
// trader abstains this tick. A true fault return means the raw quote left
// the price band and was clipped; the session counts it and carries on.
func (t *Trader) Quote(v View, sig *oracle.Signal, rng *rand.Rand) (price int64, fault bool, ok bool) {
	if t.assignment == nil {
		return 0, false, false
	}
	a := *t.assignment
	price, ok = t.strat.quote(a, v, rng)
	if !ok {
		return 0, false, false
	}
	if sig != nil && t.oracleWeight > 0 {
		price += t.shade(v, sig)
	}
	if price < t.priceMin {
		price = t.priceMin
		fault = true
	} else if price > t.priceMax {
		price = t.priceMax
		fault = true
	}
	if fault {
		t.Faults++
	}
	// never quote through the private limit
	if a.Side == book.Buy && price > a.Limit {
		price = a.Limit
	}
	if a.Side == book.Sell && price < a.Limit {
		price = a.Limit
	}
	return price, fault, true
}

// shade moves the quote toward the observed fundamental, scaled by the
// cohort's oracle weight. The reference is the last trade price, or the
// band midpoint before any trade.
func (t *Trader) shade(v View, sig *oracle.Signal) int64 {
	ref := (t.priceMin + t.priceMax) / 2
	if v.HasTrade {
		ref = v.LastTrade
	}
	return int64(math.Round(t.oracleWeight * float64(sig.Observed-ref)))
}

// OnTrade books a fill of qty units at price: the balance moves by the
// signed surplus against the private limit and the assignment shrinks,
// clearing once exhausted.
func (t *Trader) OnTrade(price, qty int64) {
	if t.assignment == nil {
		return
	}
	var surplus int64
	if t.Side == book.Buy {
		surplus = t.assignment.Limit - price
	} else {
		surplus = price - t.assignment.Limit
	}
	t.Balance += surplus * qty
	t.assignment.Qty -= qty
	if t.assignment.Qty <= 0 {
		t.assignment = nil
	}
}

// Respond feeds a market update to the strategy's adaptive state. trade is
// nil when no trade happened since the last call.
func (t *Trader) Respond(v View, trade *book.Trade, rng *rand.Rand) {
	t.strat.respond(t.assignment, v, trade, rng)
}

// QtyWanted is the unfilled quantity of the working assignment.
func (t *Trader) QtyWanted() int64 {
	if t.assignment == nil {
		return 0
	}
	return t.assignment.Qty
}

func (t *Trader) String() string {
	return fmt.Sprintf("%s[%s %s bal=%d]", t.ID, t.Tag, t.Side, t.Balance)
}
