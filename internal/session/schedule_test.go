package session

import (
	"math/rand"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"simex/internal/book"
	"simex/internal/config"
)

func schedConfig(stepmode, timemode string) config.ScheduleConfig {
	return config.ScheduleConfig{
		Interval: 100,
		Timemode: timemode,
		Stepmode: stepmode,
		Demand:   config.PriceRange{Low: 60, High: 140},
		Supply:   config.PriceRange{Low: 80, High: 160},
		OrderQty: 1,
	}
}

func drain(s *scheduler, from, to int64, rng *rand.Rand) []pendingOrder {
	var out []pendingOrder
	for tick := from; tick <= to; tick++ {
		out = append(out, s.due(tick, rng)...)
	}
	return out
}

func TestScheduleIssuesEveryTrader(t *testing.T) {
	for _, timemode := range []string{"periodic", "drip-fixed", "drip-jitter", "drip-poisson"} {
		t.Run(timemode, func(t *testing.T) {
			rng := rand.New(rand.NewSource(2))
			s := newScheduler(schedConfig("random", timemode), 1, 1000, 6, 4)

			issued := drain(s, 1, 210, rng)
			require.GreaterOrEqual(t, len(issued), 10)

			buyers := make(map[int]bool)
			sellers := make(map[int]bool)
			for _, p := range issued {
				if p.side == book.Buy {
					buyers[p.traderIdx] = true
				} else {
					sellers[p.traderIdx] = true
				}
			}
			assert.Len(t, buyers, 6)
			assert.Len(t, sellers, 4)
		})
	}
}

func TestSchedulePricesInRange(t *testing.T) {
	for _, stepmode := range []string{"fixed", "jittered", "random"} {
		t.Run(stepmode, func(t *testing.T) {
			rng := rand.New(rand.NewSource(3))
			s := newScheduler(schedConfig(stepmode, "drip-fixed"), 1, 1000, 8, 8)

			for _, p := range drain(s, 1, 210, rng) {
				if p.side == book.Buy {
					assert.GreaterOrEqual(t, p.limit, int64(1))
					assert.LessOrEqual(t, p.limit, int64(200), "jitter stays near the demand range")
				} else {
					assert.GreaterOrEqual(t, p.limit, int64(1))
					assert.LessOrEqual(t, p.limit, int64(220))
				}
				assert.Equal(t, int64(1), p.qty)
			}
		})
	}
}

func TestScheduleFixedStepLadder(t *testing.T) {
	rng := rand.New(rand.NewSource(1))
	s := newScheduler(schedConfig("fixed", "drip-fixed"), 1, 1000, 5, 5)

	limits := make(map[int]int64)
	for _, p := range drain(s, 1, 210, rng) {
		if p.side == book.Buy {
			limits[p.traderIdx] = p.limit
		}
	}
	// demand 60..140 over 5 buyers: 60, 80, 100, 120, 140
	require.Len(t, limits, 5)
	for i, want := range []int64{60, 80, 100, 120, 140} {
		assert.Equal(t, want, limits[i])
	}
}

func TestScheduleReplenishes(t *testing.T) {
	rng := rand.New(rand.NewSource(4))
	s := newScheduler(schedConfig("random", "drip-fixed"), 1, 1000, 2, 2)

	first := drain(s, 1, 110, rng)
	second := drain(s, 111, 230, rng)
	assert.GreaterOrEqual(t, len(first), 4)
	assert.NotEmpty(t, second, "pending list should regenerate once drained")
}
