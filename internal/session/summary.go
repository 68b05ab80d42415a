package session

import (
	"sort"

	"github.com/shopspring/decimal"
)

// StrategyStats aggregates one strategy tag's outcome.
type StrategyStats struct {
	Traders      int             `json:"traders"`
	TotalBalance int64           `json:"total_balance"`
	MeanBalance  decimal.Decimal `json:"mean_balance"`
}

// Summary is the final accounting of a session.
type Summary struct {
	RunID string `json:"run_id"`
	Seed  int64  `json:"seed"`
	Ticks int64  `json:"ticks"`

	Trades         int64           `json:"trades"`
	MeanTradePrice decimal.Decimal `json:"mean_trade_price"`

	// Efficiency is realized surplus over the theoretical equilibrium
	// surplus of all issued customer orders.
	Efficiency decimal.Decimal `json:"efficiency"`

	PerStrategy  map[string]StrategyStats `json:"per_strategy"`
	BestStrategy string                   `json:"best_strategy"`

	StrategyFaults int64 `json:"strategy_faults"`
	UnknownCancels int64 `json:"unknown_cancels"`
	RejectedOrders int64 `json:"rejected_orders"`
}

func (s *Session) summarize() *Summary {
	sum := &Summary{
		RunID:          s.ID,
		Seed:           s.Seed,
		Ticks:          s.cfg.Session.DurationTicks,
		Trades:         int64(len(s.trades)),
		PerStrategy:    make(map[string]StrategyStats),
		UnknownCancels: s.unknownCancels,
		RejectedOrders: s.rejectedOrders,
	}

	var realized int64
	for _, t := range s.all {
		realized += t.Balance
		sum.StrategyFaults += t.Faults
		st := sum.PerStrategy[t.Tag]
		st.Traders++
		st.TotalBalance += t.Balance
		sum.PerStrategy[t.Tag] = st
	}
	tags := make([]string, 0, len(sum.PerStrategy))
	for tag := range sum.PerStrategy {
		tags = append(tags, tag)
	}
	sort.Strings(tags)
	for _, tag := range tags {
		st := sum.PerStrategy[tag]
		st.MeanBalance = decimal.NewFromInt(st.TotalBalance).
			Div(decimal.NewFromInt(int64(st.Traders)))
		sum.PerStrategy[tag] = st
		if sum.BestStrategy == "" || st.MeanBalance.GreaterThan(sum.PerStrategy[sum.BestStrategy].MeanBalance) {
			sum.BestStrategy = tag
		}
	}

	if n := len(s.tape); n > 0 {
		var total int64
		for _, p := range s.tape {
			total += p
		}
		sum.MeanTradePrice = decimal.NewFromInt(total).Div(decimal.NewFromInt(int64(n)))
	}

	if theoretical := equilibriumSurplus(s.demandBook, s.supplyBook); theoretical > 0 {
		sum.Efficiency = decimal.NewFromInt(realized).Div(decimal.NewFromInt(theoretical))
	}
	return sum
}

// equilibriumSurplus crosses the sorted demand and supply limit schedules:
// the best remaining buyer against the best remaining seller, unit by unit,
// while the buyer's limit clears the seller's.
func equilibriumSurplus(demand, supply []int64) int64 {
	d := append([]int64{}, demand...)
	u := append([]int64{}, supply...)
	sort.Slice(d, func(i, j int) bool { return d[i] > d[j] })
	sort.Slice(u, func(i, j int) bool { return u[i] < u[j] })

	var surplus int64
	for i := 0; i < len(d) && i < len(u) && d[i] >= u[i]; i++ {
		surplus += d[i] - u[i]
	}
	return surplus
}
