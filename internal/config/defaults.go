package config

func (c *Config) applyDefaults() {
	if c.App.LogLevel == "" {
		c.App.LogLevel = "info"
	}
	if c.App.DataDir == "" {
		c.App.DataDir = "data"
	}

	if c.Session.DurationTicks == 0 {
		c.Session.DurationTicks = 3300
	}
	if c.Session.PriceMin == 0 {
		c.Session.PriceMin = 1
	}
	if c.Session.PriceMax == 0 {
		c.Session.PriceMax = 1000
	}
	if c.Session.SnapshotEvery == 0 {
		c.Session.SnapshotEvery = 100
	}
	if c.Session.Activation == "" {
		c.Session.Activation = "random"
	}
	if c.Session.Seed == 0 {
		c.Session.Seed = 1
	}

	if c.Oracle.WalkStep == 0 {
		c.Oracle.WalkStep = 2
	}
	if c.Oracle.Noise == "" {
		c.Oracle.Noise = "uniform"
	}
	if c.Oracle.Envelope == 0 {
		c.Oracle.Envelope = 5
	}

	if c.Schedule.Interval == 0 {
		c.Schedule.Interval = 300
	}
	if c.Schedule.Timemode == "" {
		c.Schedule.Timemode = "drip-fixed"
	}
	if c.Schedule.Stepmode == "" {
		c.Schedule.Stepmode = "random"
	}
	if c.Schedule.Demand.Low == 0 && c.Schedule.Demand.High == 0 {
		c.Schedule.Demand = PriceRange{Low: 70, High: 130}
	}
	if c.Schedule.Supply.Low == 0 && c.Schedule.Supply.High == 0 {
		c.Schedule.Supply = PriceRange{Low: 70, High: 130}
	}
	if c.Schedule.OrderQty == 0 {
		c.Schedule.OrderQty = 1
	}

	if c.Recorder.Dir == "" {
		c.Recorder.Dir = c.App.DataDir
	}
	if c.Report.Dir == "" {
		c.Report.Dir = c.App.DataDir
	}
	if c.HTTP.Addr == "" {
		c.HTTP.Addr = ":9981"
	}

	if c.Experiment.Name == "" {
		c.Experiment.Name = "session"
	}
	if c.Experiment.Trials == 0 {
		c.Experiment.Trials = 1
	}
	if c.Experiment.MaxConcurrent == 0 {
		c.Experiment.MaxConcurrent = 1
	}
}
