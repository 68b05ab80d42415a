package app

import (
	"context"
	"errors"
	"fmt"

	"golang.org/x/sync/errgroup"

	"simex/internal/config"
	"simex/internal/experiment"
	"simex/internal/logger"
	"simex/internal/recorder"
	simhttp "simex/internal/transport/http"
)

// App wires the configured services together: the experiment runner, the
// optional persistence stores, the HTTP surface and the spool watcher.
type App struct {
	cfg     *config.Config
	store   *recorder.Store
	tape    *recorder.TapeStore
	runner  *experiment.Runner
	httpSrv *simhttp.Server
	watcher *experiment.Watcher
}

// NewApp builds the application from config without starting anything.
func NewApp(cfg *config.Config) (*App, error) {
	if cfg == nil {
		return nil, fmt.Errorf("nil config")
	}
	logger.SetLevel(cfg.App.LogLevel)
	return buildAppWithWire(cfg)
}

// Run executes the configured experiment and serves the optional HTTP and
// spool surfaces until ctx is cancelled.
func (a *App) Run(ctx context.Context) error {
	if a == nil || a.cfg == nil {
		return fmt.Errorf("app not initialized")
	}
	defer a.closeStores()

	group, ctx := errgroup.WithContext(ctx)

	if a.httpSrv != nil {
		group.Go(func() error {
			if err := a.httpSrv.Run(ctx); err != nil && !isShutdown(err) {
				return fmt.Errorf("http server error: %w", err)
			}
			return nil
		})
	}
	if a.watcher != nil {
		group.Go(func() error {
			if err := a.watcher.Run(ctx); err != nil && !isShutdown(err) {
				return fmt.Errorf("experiment watcher error: %w", err)
			}
			return nil
		})
	}

	group.Go(func() error {
		result, err := a.runner.Run(ctx, a.cfg)
		if err != nil {
			return fmt.Errorf("experiment %q failed: %w", a.cfg.Experiment.Name, err)
		}
		for tag, mean := range result.MeanByStrategy {
			logger.Infof("experiment %s: %s mean balance %s", result.Name, tag, mean.StringFixed(2))
		}
		return nil
	})

	return group.Wait()
}

func (a *App) closeStores() {
	if a.tape != nil {
		if err := a.tape.Close(); err != nil {
			logger.Errorf("closing tape store: %v", err)
		}
	}
	if a.store != nil {
		if err := a.store.Close(); err != nil {
			logger.Errorf("closing run store: %v", err)
		}
	}
}

func isShutdown(err error) bool {
	return errors.Is(err, context.Canceled) || errors.Is(err, context.DeadlineExceeded)
}
