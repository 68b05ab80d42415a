package trader

import (
	"math"
	"math/rand"

	"github.com/markcheno/go-talib"

	"simex/internal/book"
	"simex/internal/config"
)

const defaultTrendWindow = 8

// trend quotes at the moving average of recent trade prices, betting that
// deals keep printing near where they have been printing. With too little
// tape it falls back to giving the limit away.
type trend struct {
	passive
	window int
}

func newTrend(params config.StrategyParams) trend {
	w := defaultTrendWindow
	if params.TrendWindow > 0 {
		w = params.TrendWindow
	}
	return trend{window: w}
}

func (t trend) quote(a Assignment, v View, _ *rand.Rand) (int64, bool) {
	if len(v.Tape) < t.window {
		return a.Limit, true
	}
	prices := make([]float64, len(v.Tape))
	for i, p := range v.Tape {
		prices[i] = float64(p)
	}
	sma := talib.Sma(prices, t.window)
	price := int64(math.Round(sma[len(sma)-1]))
	if a.Side == book.Buy && price > a.Limit {
		price = a.Limit
	}
	if a.Side == book.Sell && price < a.Limit {
		price = a.Limit
	}
	return price, true
}
