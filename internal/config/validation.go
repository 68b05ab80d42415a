package config

import (
	"errors"
	"fmt"
)

// ErrInvalidConfiguration marks any configuration problem detected before a
// session starts. Callers match it with errors.Is.
var ErrInvalidConfiguration = errors.New("invalid configuration")

func invalidf(format string, v ...any) error {
	return fmt.Errorf("%w: %s", ErrInvalidConfiguration, fmt.Sprintf(format, v...))
}

// Validate checks every section against the session's price band and the
// closed strategy set. Any failure wraps ErrInvalidConfiguration.
func Validate(c *Config) error {
	if err := c.Session.validate(); err != nil {
		return err
	}
	if err := c.Traders.validate(c.Session); err != nil {
		return err
	}
	if err := c.Oracle.validate(c.Session); err != nil {
		return err
	}
	if err := c.Schedule.validate(c.Session); err != nil {
		return err
	}
	if err := c.Experiment.validate(); err != nil {
		return err
	}
	return nil
}

func (s SessionConfig) validate() error {
	if s.DurationTicks <= 0 {
		return invalidf("session.duration_ticks must be positive, got %d", s.DurationTicks)
	}
	if s.PriceMin <= 0 {
		return invalidf("session.price_min must be positive, got %d", s.PriceMin)
	}
	if s.PriceMax <= s.PriceMin {
		return invalidf("session.price_max (%d) must exceed price_min (%d)", s.PriceMax, s.PriceMin)
	}
	if s.SnapshotEvery < 0 {
		return invalidf("session.snapshot_every cannot be negative")
	}
	switch s.Activation {
	case "random", "round_robin":
	default:
		return invalidf("session.activation must be random or round_robin, got %q", s.Activation)
	}
	return nil
}

func (t TradersConfig) validate(s SessionConfig) error {
	if len(t.Buyers) == 0 {
		return invalidf("traders.buyers cannot be empty")
	}
	if len(t.Sellers) == 0 {
		return invalidf("traders.sellers cannot be empty")
	}
	for _, side := range []struct {
		name    string
		cohorts []CohortConfig
	}{{"buyers", t.Buyers}, {"sellers", t.Sellers}} {
		for i, cohort := range side.cohorts {
			if err := cohort.validate(); err != nil {
				return fmt.Errorf("traders.%s[%d]: %w", side.name, i, err)
			}
		}
	}
	return nil
}

func (c CohortConfig) validate() error {
	if !KnownStrategy(c.Strategy) {
		return invalidf("unknown strategy %q (known: %v)", c.Strategy, StrategyTags)
	}
	if c.Count <= 0 {
		return invalidf("count must be positive, got %d", c.Count)
	}
	p := c.Params
	if p.OracleWeight < 0 || p.OracleWeight > 1 {
		return invalidf("params.oracle_weight must be in [0,1], got %v", p.OracleWeight)
	}
	if p.LurkFraction < 0 || p.LurkFraction > 1 {
		return invalidf("params.lurk_fraction must be in [0,1], got %v", p.LurkFraction)
	}
	if p.ShaveGrowth < 0 {
		return invalidf("params.shave_growth cannot be negative")
	}
	if p.Beta < 0 || p.Beta > 1 {
		return invalidf("params.beta must be in [0,1], got %v", p.Beta)
	}
	if p.Momentum < 0 || p.Momentum > 1 {
		return invalidf("params.momentum must be in [0,1], got %v", p.Momentum)
	}
	if p.TrendWindow < 0 {
		return invalidf("params.trend_window cannot be negative")
	}
	return nil
}

func (o OracleConfig) validate(s SessionConfig) error {
	if o.Start != 0 && (o.Start < s.PriceMin || o.Start > s.PriceMax) {
		return invalidf("oracle.start %d outside price band [%d,%d]", o.Start, s.PriceMin, s.PriceMax)
	}
	if o.WalkStep < 0 {
		return invalidf("oracle.walk_step cannot be negative")
	}
	if o.Envelope < 0 {
		return invalidf("oracle.envelope cannot be negative")
	}
	if o.WithholdProb < 0 || o.WithholdProb > 1 {
		return invalidf("oracle.withhold_prob must be in [0,1], got %v", o.WithholdProb)
	}
	if o.LagTicks < 0 {
		return invalidf("oracle.lag_ticks cannot be negative")
	}
	switch o.Noise {
	case "uniform", "gaussian":
	default:
		return invalidf("oracle.noise must be uniform or gaussian, got %q", o.Noise)
	}
	return nil
}

func (sc ScheduleConfig) validate(s SessionConfig) error {
	if sc.Interval <= 0 {
		return invalidf("schedule.interval must be positive, got %d", sc.Interval)
	}
	switch sc.Timemode {
	case "periodic", "drip-fixed", "drip-jitter", "drip-poisson":
	default:
		return invalidf("schedule.timemode must be one of periodic, drip-fixed, drip-jitter, drip-poisson; got %q", sc.Timemode)
	}
	switch sc.Stepmode {
	case "fixed", "jittered", "random":
	default:
		return invalidf("schedule.stepmode must be one of fixed, jittered, random; got %q", sc.Stepmode)
	}
	if sc.OrderQty <= 0 {
		return invalidf("schedule.order_qty must be positive, got %d", sc.OrderQty)
	}
	for _, rng := range []struct {
		name string
		r    PriceRange
	}{{"demand", sc.Demand}, {"supply", sc.Supply}} {
		if rng.r.Low > rng.r.High {
			return invalidf("schedule.%s: low %d exceeds high %d", rng.name, rng.r.Low, rng.r.High)
		}
		if rng.r.Low < s.PriceMin || rng.r.High > s.PriceMax {
			return invalidf("schedule.%s range [%d,%d] outside price band [%d,%d]",
				rng.name, rng.r.Low, rng.r.High, s.PriceMin, s.PriceMax)
		}
	}
	return nil
}

func (e ExperimentConfig) validate() error {
	if e.Trials <= 0 {
		return invalidf("experiment.trials must be positive, got %d", e.Trials)
	}
	if e.MaxConcurrent <= 0 {
		return invalidf("experiment.max_concurrent must be positive, got %d", e.MaxConcurrent)
	}
	if e.MutationProb < 0 || e.MutationProb > 1 {
		return invalidf("experiment.mutation_prob must be in [0,1], got %v", e.MutationProb)
	}
	return nil
}
