package experiment

import (
	"context"
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"
	"strings"
	"time"

	"github.com/fsnotify/fsnotify"
	"gopkg.in/yaml.v3"

	"simex/internal/config"
	"simex/internal/logger"
)

// Watcher runs experiments dropped into a spool directory. A dropped
// .json/.yaml file is schema-validated, decoded through the regular config
// path and handed to the runner.
type Watcher struct {
	dir    string
	runner *Runner
	fsw    *fsnotify.Watcher

	recent map[string]time.Time
}

// NewWatcher creates the spool dir if needed and starts watching it.
func NewWatcher(dir string, runner *Runner) (*Watcher, error) {
	if strings.TrimSpace(dir) == "" {
		return nil, fmt.Errorf("experiment watcher: spool dir cannot be empty")
	}
	if err := os.MkdirAll(dir, 0o755); err != nil {
		return nil, err
	}
	fsw, err := fsnotify.NewWatcher()
	if err != nil {
		return nil, err
	}
	if err := fsw.Add(dir); err != nil {
		fsw.Close()
		return nil, err
	}
	return &Watcher{dir: dir, runner: runner, fsw: fsw, recent: make(map[string]time.Time)}, nil
}

// Run consumes filesystem events until the context is cancelled. Each
// accepted document runs to completion before the next is picked up.
func (w *Watcher) Run(ctx context.Context) error {
	defer w.fsw.Close()
	logger.Infof("experiment watcher: spooling from %s", w.dir)
	for {
		select {
		case <-ctx.Done():
			return ctx.Err()
		case evt, ok := <-w.fsw.Events:
			if !ok {
				return nil
			}
			if !evt.Has(fsnotify.Create) && !evt.Has(fsnotify.Write) {
				continue
			}
			if !w.accept(evt.Name) {
				continue
			}
			if err := w.handle(ctx, evt.Name); err != nil {
				logger.Errorf("experiment watcher: %s rejected: %v", filepath.Base(evt.Name), err)
			}
		case err, ok := <-w.fsw.Errors:
			if !ok {
				return nil
			}
			logger.Errorf("experiment watcher: %v", err)
		}
	}
}

// accept filters by extension and debounces the create+write event pair a
// single drop produces.
func (w *Watcher) accept(path string) bool {
	switch strings.ToLower(filepath.Ext(path)) {
	case ".json", ".yaml", ".yml":
	default:
		return false
	}
	now := time.Now()
	if last, ok := w.recent[path]; ok && now.Sub(last) < 2*time.Second {
		return false
	}
	w.recent[path] = now
	for p, ts := range w.recent {
		if now.Sub(ts) > time.Minute {
			delete(w.recent, p)
		}
	}
	return true
}

func (w *Watcher) handle(ctx context.Context, path string) error {
	raw, err := loadDocument(path)
	if err != nil {
		return err
	}
	info, err := ValidateDocument(raw)
	if err != nil {
		return err
	}
	var doc map[string]any
	if err := json.Unmarshal(raw, &doc); err != nil {
		return err
	}
	cfg, err := config.FromMap(doc)
	if err != nil {
		return err
	}
	logger.Infof("experiment watcher: accepted %q (name=%s seed=%d)",
		filepath.Base(path), info.Name, info.Seed)
	result, err := w.runner.Run(ctx, cfg)
	if err != nil {
		return err
	}
	logger.Infof("experiment watcher: %q done, best strategy %s",
		filepath.Base(path), result.BestStrategy)
	return nil
}

// loadDocument reads a spooled file as JSON, converting YAML drops first.
func loadDocument(path string) ([]byte, error) {
	raw, err := os.ReadFile(path)
	if err != nil {
		return nil, err
	}
	ext := strings.ToLower(filepath.Ext(path))
	if ext == ".json" {
		return raw, nil
	}
	var doc map[string]any
	if err := yaml.Unmarshal(raw, &doc); err != nil {
		return nil, fmt.Errorf("parsing yaml document: %w", err)
	}
	return json.Marshal(doc)
}
