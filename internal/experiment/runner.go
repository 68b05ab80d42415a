package experiment

import (
	"context"
	"fmt"
	"math/rand"

	"github.com/shopspring/decimal"
	"golang.org/x/sync/errgroup"

	"simex/internal/config"
	"simex/internal/logger"
	"simex/internal/recorder"
	"simex/internal/report"
	"simex/internal/session"
)

// Result aggregates an experiment's trials.
type Result struct {
	Name           string                     `json:"name"`
	RunIDs         []string                   `json:"run_ids"`
	Summaries      []*session.Summary         `json:"summaries"`
	MeanByStrategy map[string]decimal.Decimal `json:"mean_by_strategy"`
	BestStrategy   string                     `json:"best_strategy"`
}

// Runner expands one experiment config into trials sessions over
// consecutive seeds and runs them with bounded parallelism. Stores may be
// nil, in which case nothing is persisted.
type Runner struct {
	store *recorder.Store
	tape  *recorder.TapeStore
}

func NewRunner(store *recorder.Store, tape *recorder.TapeStore) *Runner {
	return &Runner{store: store, tape: tape}
}

// Run executes every trial. Trials share the (read-only) config and differ
// only in seed; population mutation noise is drawn once from a dedicated RNG so
// all trials face the same mutated population.
func (r *Runner) Run(ctx context.Context, cfg *config.Config) (*Result, error) {
	cfg, err := withPopulationNoise(cfg)
	if err != nil {
		return nil, err
	}

	trials := cfg.Experiment.Trials
	summaries := make([]*session.Summary, trials)
	runIDs := make([]string, trials)

	g, ctx := errgroup.WithContext(ctx)
	sem := make(chan struct{}, cfg.Experiment.MaxConcurrent)
	for i := 0; i < trials; i++ {
		i := i
		g.Go(func() error {
			select {
			case sem <- struct{}{}:
			case <-ctx.Done():
				return ctx.Err()
			}
			defer func() { <-sem }()

			seed := cfg.Session.Seed + int64(i)
			summary, runID, err := r.runTrial(ctx, cfg, seed)
			if err != nil {
				return fmt.Errorf("trial %d (seed %d): %w", i, seed, err)
			}
			summaries[i] = summary
			runIDs[i] = runID
			return nil
		})
	}
	if err := g.Wait(); err != nil {
		return nil, err
	}

	result := aggregate(cfg.Experiment.Name, runIDs, summaries)
	logger.Infof("experiment %s finished: trials=%d best=%s",
		result.Name, trials, result.BestStrategy)
	return result, nil
}

func (r *Runner) runTrial(ctx context.Context, cfg *config.Config, seed int64) (*session.Summary, string, error) {
	mem := recorder.NewMemory()
	var rec recorder.Recorder = mem
	persisted := r.store != nil && r.tape != nil && cfg.Recorder.Enabled
	if persisted {
		rec = tee{mem, recorder.NewSink(r.store, r.tape)}
	}

	s, err := session.New(cfg, seed, rec)
	if err != nil {
		return nil, "", err
	}
	if persisted {
		if err := r.store.BeginRun(s.ID, cfg.Experiment.Name, seed, cfg); err != nil {
			return nil, "", err
		}
	}

	summary, err := s.Run(ctx)
	if err != nil {
		if persisted {
			if ferr := r.store.FailRun(s.ID); ferr != nil {
				logger.Errorf("marking run %s failed: %v", s.ID, ferr)
			}
		}
		return nil, "", err
	}
	if persisted {
		err = r.store.FinalizeRun(s.ID, summary.Trades,
			summary.Efficiency.StringFixed(4), summary.BestStrategy, summary)
		if err != nil {
			return nil, "", err
		}
	}
	if cfg.Report.Enabled {
		if err := report.Write(cfg, summary, mem.TradePrices()); err != nil {
			logger.Warnf("writing report for run %s: %v", s.ID, err)
		}
	}
	return summary, s.ID, nil
}

// withPopulationNoise applies population mutation: each trader independently has
// mutation_prob chance of having its strategy tag swapped for a uniformly
// chosen other tag. The draw uses its own RNG seeded from the experiment
// seed, keeping treatments matched across trials.
func withPopulationNoise(cfg *config.Config) (*config.Config, error) {
	prob := cfg.Experiment.MutationProb
	if prob <= 0 {
		return cfg, nil
	}
	rng := rand.New(rand.NewSource(cfg.Session.Seed))
	mutated := *cfg
	mutated.Traders.Buyers = mutateCohorts(cfg.Traders.Buyers, prob, rng)
	mutated.Traders.Sellers = mutateCohorts(cfg.Traders.Sellers, prob, rng)
	if err := config.Validate(&mutated); err != nil {
		return nil, err
	}
	return &mutated, nil
}

func mutateCohorts(cohorts []config.CohortConfig, prob float64, rng *rand.Rand) []config.CohortConfig {
	var out []config.CohortConfig
	for _, c := range cohorts {
		for i := 0; i < c.Count; i++ {
			unit := c
			unit.Count = 1
			if rng.Float64() < prob {
				unit.Strategy = otherTag(c.Strategy, rng)
			}
			out = append(out, unit)
		}
	}
	return out
}

func otherTag(tag string, rng *rand.Rand) string {
	others := make([]string, 0, len(config.StrategyTags)-1)
	for _, t := range config.StrategyTags {
		if t != tag {
			others = append(others, t)
		}
	}
	return others[rng.Intn(len(others))]
}

func aggregate(name string, runIDs []string, summaries []*session.Summary) *Result {
	result := &Result{
		Name:           name,
		RunIDs:         runIDs,
		Summaries:      summaries,
		MeanByStrategy: make(map[string]decimal.Decimal),
	}
	counts := make(map[string]int64)
	for _, s := range summaries {
		for tag, st := range s.PerStrategy {
			result.MeanByStrategy[tag] = result.MeanByStrategy[tag].Add(st.MeanBalance)
			counts[tag]++
		}
	}
	for tag, total := range result.MeanByStrategy {
		result.MeanByStrategy[tag] = total.Div(decimal.NewFromInt(counts[tag]))
	}
	best := decimal.Zero
	for tag, mean := range result.MeanByStrategy {
		if result.BestStrategy == "" || mean.GreaterThan(best) ||
			(mean.Equal(best) && tag < result.BestStrategy) {
			result.BestStrategy, best = tag, mean
		}
	}
	return result
}

// tee fans records out to several recorders.
type tee []recorder.Recorder

func (t tee) RecordTrade(r recorder.TradeRecord) error {
	for _, rec := range t {
		if err := rec.RecordTrade(r); err != nil {
			return err
		}
	}
	return nil
}

func (t tee) RecordSnapshot(r recorder.SnapshotRecord) error {
	for _, rec := range t {
		if err := rec.RecordSnapshot(r); err != nil {
			return err
		}
	}
	return nil
}

func (t tee) Flush() error {
	for _, rec := range t {
		if err := rec.Flush(); err != nil {
			return err
		}
	}
	return nil
}

func (t tee) Close() error {
	for _, rec := range t {
		if err := rec.Close(); err != nil {
			return err
		}
	}
	return nil
}
