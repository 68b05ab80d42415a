package app

import (
	"simex/internal/config"
	"simex/internal/experiment"
	"simex/internal/recorder"
	simhttp "simex/internal/transport/http"
)

// AppBuilder assembles the App's components in dependency order. The
// store/tape/watcher hooks exist so tests can substitute fakes.
type AppBuilder struct {
	cfg *config.Config

	storesFn  func(dir string) (*recorder.Store, *recorder.TapeStore, error)
	watcherFn func(dir string, runner *experiment.Runner) (*experiment.Watcher, error)
}

type AppBuilderOption func(*AppBuilder)

func NewAppBuilder(cfg *config.Config, opts ...AppBuilderOption) *AppBuilder {
	b := &AppBuilder{
		cfg:       cfg,
		storesFn:  openStores,
		watcherFn: experiment.NewWatcher,
	}
	for _, opt := range opts {
		opt(b)
	}
	return b
}

func (b *AppBuilder) Build() (*App, error) {
	a := &App{cfg: b.cfg}

	if b.cfg.Recorder.Enabled {
		store, tape, err := b.storesFn(b.cfg.Recorder.Dir)
		if err != nil {
			return nil, err
		}
		a.store, a.tape = store, tape
	}
	a.runner = experiment.NewRunner(a.store, a.tape)

	if b.cfg.HTTP.Enabled {
		if a.store == nil || a.tape == nil {
			store, tape, err := b.storesFn(b.cfg.App.DataDir)
			if err != nil {
				return nil, err
			}
			a.store, a.tape = store, tape
			a.runner = experiment.NewRunner(a.store, a.tape)
		}
		srv, err := simhttp.NewServer(simhttp.ServerConfig{
			Addr:   b.cfg.HTTP.Addr,
			Store:  a.store,
			Tape:   a.tape,
			Runner: a.runner,
		})
		if err != nil {
			return nil, err
		}
		a.httpSrv = srv
	}

	if dir := b.cfg.Experiment.SpoolDir; dir != "" {
		w, err := b.watcherFn(dir, a.runner)
		if err != nil {
			return nil, err
		}
		a.watcher = w
	}
	return a, nil
}

func openStores(dir string) (*recorder.Store, *recorder.TapeStore, error) {
	store, err := recorder.NewStore(dir)
	if err != nil {
		return nil, nil, err
	}
	tape, err := recorder.NewTapeStore(dir)
	if err != nil {
		store.Close()
		return nil, nil, err
	}
	return store, tape, nil
}
