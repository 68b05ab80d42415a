package app

import (
	"context"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"simex/internal/config"
)

func testAppConfig(t *testing.T) *config.Config {
	t.Helper()
	cfg, err := config.FromMap(map[string]any{
		"session": map[string]any{"seed": 1, "duration_ticks": 400},
		"traders": map[string]any{
			"buyers":  []any{map[string]any{"strategy": "zic", "count": 3}},
			"sellers": []any{map[string]any{"strategy": "zic", "count": 3}},
		},
		"schedule": map[string]any{
			"interval": 50,
			"demand":   map[string]any{"low": 50, "high": 150},
			"supply":   map[string]any{"low": 50, "high": 150},
		},
		"experiment": map[string]any{"name": "smoke", "trials": 2},
	})
	require.NoError(t, err)
	return cfg
}

func TestNewAppNilConfig(t *testing.T) {
	_, err := NewApp(nil)
	assert.Error(t, err)
}

func TestAppRunsExperiment(t *testing.T) {
	a, err := NewApp(testAppConfig(t))
	require.NoError(t, err)
	assert.Nil(t, a.store)
	assert.Nil(t, a.httpSrv)
	assert.Nil(t, a.watcher)

	require.NoError(t, a.Run(context.Background()))
}

func TestAppWithPersistence(t *testing.T) {
	cfg := testAppConfig(t)
	cfg.Recorder.Enabled = true
	cfg.Recorder.Dir = t.TempDir()

	a, err := NewApp(cfg)
	require.NoError(t, err)
	require.NotNil(t, a.store)
	require.NotNil(t, a.tape)
	require.NoError(t, a.Run(context.Background()))

	// stores are closed by Run; reopen to inspect
	store, tape, err := openStores(cfg.Recorder.Dir)
	require.NoError(t, err)
	defer store.Close()
	defer tape.Close()
	runs, err := store.ListRuns()
	require.NoError(t, err)
	assert.Len(t, runs, 2)
}

func TestAppBuildsWatcher(t *testing.T) {
	cfg := testAppConfig(t)
	cfg.Experiment.SpoolDir = t.TempDir()
	a, err := NewApp(cfg)
	require.NoError(t, err)
	assert.NotNil(t, a.watcher)
}
