package oracle

import (
	"math/rand"

	"simex/internal/config"
)

// Signal is one delivered observation. True carries the lagged fundamental
// value the observation was derived from; Observed differs from it by at
// most the configured envelope.
type Signal struct {
	Tick     int64
	True     int64
	Observed int64
}

// Oracle owns the fundamental-value process and the imperfection model
// applied to every observation: subscription gating, random withholding,
// staleness and bounded noise. All parameters are fixed for the session.
type Oracle struct {
	min, max int64

	walkStep int64
	drift    int64
	noise    string
	envelope int64
	withhold float64
	lag      int

	value      int64
	history    []int64 // last lag+1 true values, oldest first
	subscribed map[string]bool
}

// New builds an oracle for the price band [priceMin, priceMax]. subscribers
// is the closed set of trader ids entitled to observations.
func New(cfg config.OracleConfig, priceMin, priceMax int64, subscribers []string) *Oracle {
	start := cfg.Start
	if start == 0 {
		start = (priceMin + priceMax) / 2
	}
	subs := make(map[string]bool, len(subscribers))
	for _, id := range subscribers {
		subs[id] = true
	}
	o := &Oracle{
		min:        priceMin,
		max:        priceMax,
		walkStep:   cfg.WalkStep,
		drift:      cfg.Drift,
		noise:      cfg.Noise,
		envelope:   cfg.Envelope,
		withhold:   cfg.WithholdProb,
		lag:        cfg.LagTicks,
		value:      start,
		subscribed: subs,
	}
	o.history = append(o.history, start)
	return o
}

// Value is the current true fundamental value.
func (o *Oracle) Value() int64 {
	return o.value
}

// Subscribed reports whether traderID may receive observations.
func (o *Oracle) Subscribed(traderID string) bool {
	return o.subscribed[traderID]
}

// Advance steps the fundamental once: drift plus a uniform step in
// [-walk_step, walk_step], reflecting at the band edges.
func (o *Oracle) Advance(rng *rand.Rand) {
	step := o.drift
	if o.walkStep > 0 {
		step += rng.Int63n(2*o.walkStep+1) - o.walkStep
	}
	v := o.value + step
	if v > o.max {
		v = o.max - (v - o.max)
	}
	if v < o.min {
		v = o.min + (o.min - v)
	}
	v = clamp(v, o.min, o.max)
	o.value = v

	o.history = append(o.history, v)
	if keep := o.lag + 1; len(o.history) > keep {
		o.history = o.history[len(o.history)-keep:]
	}
}

// Observe returns traderID's view of the fundamental at tick. Unsubscribed
// traders never receive a signal; subscribed ones are withheld with the
// configured probability. A delivered signal reports the value from
// lag_ticks ago with noise clipped to the envelope.
func (o *Oracle) Observe(traderID string, tick int64, rng *rand.Rand) (Signal, bool) {
	if !o.subscribed[traderID] {
		return Signal{}, false
	}
	if o.withhold > 0 && rng.Float64() < o.withhold {
		return Signal{}, false
	}
	lagged := o.history[0]
	if idx := len(o.history) - 1 - o.lag; idx > 0 {
		lagged = o.history[idx]
	}
	observed := clamp(lagged+o.drawNoise(rng), o.min, o.max)
	return Signal{Tick: tick, True: lagged, Observed: observed}, true
}

func (o *Oracle) drawNoise(rng *rand.Rand) int64 {
	if o.envelope == 0 {
		return 0
	}
	switch o.noise {
	case "gaussian":
		n := int64(rng.NormFloat64() * float64(o.envelope) / 2)
		return clamp(n, -o.envelope, o.envelope)
	default:
		return rng.Int63n(2*o.envelope+1) - o.envelope
	}
}

func clamp(v, lo, hi int64) int64 {
	if v < lo {
		return lo
	}
	if v > hi {
		return hi
	}
	return v
}
