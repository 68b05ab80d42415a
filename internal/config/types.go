package config

// Config is the top-level experiment configuration.
type Config struct {
	App        AppConfig        `yaml:"app"`
	Session    SessionConfig    `yaml:"session"`
	Traders    TradersConfig    `yaml:"traders"`
	Oracle     OracleConfig     `yaml:"oracle"`
	Schedule   ScheduleConfig   `yaml:"schedule"`
	Recorder   RecorderConfig   `yaml:"recorder"`
	Report     ReportConfig     `yaml:"report"`
	HTTP       HTTPConfig       `yaml:"http"`
	Experiment ExperimentConfig `yaml:"experiment"`
}

type AppConfig struct {
	Env      string `yaml:"env"`
	LogLevel string `yaml:"log_level"`
	LogPath  string `yaml:"log_path"`
	DataDir  string `yaml:"data_dir"`
}

// SessionConfig drives a single market session.
type SessionConfig struct {
	Seed          int64  `yaml:"seed"`
	DurationTicks int64  `yaml:"duration_ticks"`
	PriceMin      int64  `yaml:"price_min"`
	PriceMax      int64  `yaml:"price_max"`
	SnapshotEvery int64  `yaml:"snapshot_every"`
	Activation    string `yaml:"activation"` // random | round_robin
}

// CohortConfig declares one group of traders sharing a strategy.
type CohortConfig struct {
	Strategy string         `yaml:"strategy"`
	Count    int            `yaml:"count"`
	Oracle   bool           `yaml:"oracle"`
	Params   StrategyParams `yaml:"params"`
}

// StrategyParams carries the per-strategy tunables. Zero values mean
// "use the strategy default".
type StrategyParams struct {
	OracleWeight float64 `yaml:"oracle_weight"` // shading strength for oracle-informed variants
	LurkFraction float64 `yaml:"lurk_fraction"` // snpr: fraction of session left before waking
	ShaveGrowth  float64 `yaml:"shave_growth"`  // snpr: shave thickness growth rate
	Beta         float64 `yaml:"beta"`          // zip: learning rate (0 => randomized per trader)
	Momentum     float64 `yaml:"momentum"`      // zip: momentum coefficient (0 => randomized)
	TrendWindow  int     `yaml:"trend_window"`  // trnd: SMA window over recent trade prices
}

type TradersConfig struct {
	Buyers  []CohortConfig `yaml:"buyers"`
	Sellers []CohortConfig `yaml:"sellers"`
}

// OracleConfig fixes the fundamental-value process and its imperfection
// model for the whole session.
type OracleConfig struct {
	Start        int64   `yaml:"start"`         // initial fundamental value (0 => band midpoint)
	WalkStep     int64   `yaml:"walk_step"`     // max per-tick random step
	Drift        int64   `yaml:"drift"`         // deterministic per-tick drift
	Noise        string  `yaml:"noise"`         // uniform | gaussian
	Envelope     int64   `yaml:"envelope"`      // hard bound on |observed - true|
	WithholdProb float64 `yaml:"withhold_prob"` // chance a subscribed observe returns nothing
	LagTicks     int     `yaml:"lag_ticks"`     // staleness of returned values
}

// PriceRange is one side's customer limit-price range.
type PriceRange struct {
	Low  int64 `yaml:"low"`
	High int64 `yaml:"high"`
}

// ScheduleConfig controls customer-order replenishment.
type ScheduleConfig struct {
	Interval int64      `yaml:"interval"` // ticks per replenishment cycle
	Timemode string     `yaml:"timemode"` // periodic | drip-fixed | drip-jitter | drip-poisson
	Stepmode string     `yaml:"stepmode"` // fixed | jittered | random
	Demand   PriceRange `yaml:"demand"`
	Supply   PriceRange `yaml:"supply"`
	OrderQty int64      `yaml:"order_qty"`
}

type RecorderConfig struct {
	Enabled bool   `yaml:"enabled"`
	Dir     string `yaml:"dir"`
}

type ReportConfig struct {
	Enabled bool   `yaml:"enabled"`
	Dir     string `yaml:"dir"`
}

type HTTPConfig struct {
	Enabled bool   `yaml:"enabled"`
	Addr    string `yaml:"addr"`
}

// ExperimentConfig describes a batch of sessions over consecutive seeds.
type ExperimentConfig struct {
	Name          string  `yaml:"name"`
	Trials        int     `yaml:"trials"`
	MaxConcurrent int     `yaml:"max_concurrent"`
	MutationProb  float64 `yaml:"mutation_prob"` // chance a trader's strategy tag is mis-assigned
	SpoolDir      string  `yaml:"spool_dir"`     // watched directory for dropped experiment files
}

// StrategyTags is the closed set of known strategy tags.
var StrategyTags = []string{"gvwy", "zic", "shvr", "snpr", "zip", "aa", "trnd"}

// KnownStrategy reports whether tag names a supported strategy.
func KnownStrategy(tag string) bool {
	for _, t := range StrategyTags {
		if t == tag {
			return true
		}
	}
	return false
}
