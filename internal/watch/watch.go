// Package watch applies pending migrations whenever a definition file in the
// migration directory is created or rewritten.
package watch

import (
	"context"
	"fmt"
	"io"
	"log/slog"
	"path/filepath"
	"time"

	"github.com/fsnotify/fsnotify"

	"github.com/kingrea/fdml/internal/metrics"
	"github.com/kingrea/fdml/internal/migration"
	"github.com/kingrea/fdml/internal/migration/engine"
)

// DefaultDebounce batches editor save bursts into one run.
const DefaultDebounce = 250 * time.Millisecond

// Applier is the slice of *engine.Runner the watcher drives.
type Applier interface {
	Apply(ctx context.Context, opts engine.ApplyOptions) (engine.Result, error)
	Status(ctx context.Context) (engine.Status, error)
}

// Run describes one triggered batch.
type Run struct {
	Trigger string
	Result  engine.Result
	Err     error
}

// Option configures a Watcher.
type Option func(*Watcher)

// WithDebounce overrides DefaultDebounce.
func WithDebounce(d time.Duration) Option {
	return func(w *Watcher) {
		if d > 0 {
			w.debounce = d
		}
	}
}

// WithMetrics records every batch on rec.
func WithMetrics(rec *metrics.Recorder) Option {
	return func(w *Watcher) {
		w.metrics = rec
	}
}

// WithLogger sets the structured logger.
func WithLogger(logger *slog.Logger) Option {
	return func(w *Watcher) {
		if logger != nil {
			w.logger = logger
		}
	}
}

// OnRun is called after each batch, including the initial one.
func OnRun(fn func(Run)) Option {
	return func(w *Watcher) {
		w.onRun = fn
	}
}

// Watcher owns the fsnotify subscription for one migration directory.
type Watcher struct {
	dir      string
	applier  Applier
	debounce time.Duration
	metrics  *metrics.Recorder
	logger   *slog.Logger
	onRun    func(Run)
}

// New watches dir and applies through applier.
func New(dir string, applier Applier, opts ...Option) *Watcher {
	w := &Watcher{
		dir:      dir,
		applier:  applier,
		debounce: DefaultDebounce,
		logger:   slog.New(slog.NewTextHandler(io.Discard, nil)),
	}
	for _, opt := range opts {
		opt(w)
	}
	return w
}

// Run applies once, then blocks applying after each burst of relevant
// changes until ctx is cancelled. Failed batches are reported, not fatal.
func (w *Watcher) Run(ctx context.Context) error {
	fw, err := fsnotify.NewWatcher()
	if err != nil {
		return fmt.Errorf("watch: create watcher: %w", err)
	}
	defer fw.Close()
	if err := fw.Add(w.dir); err != nil {
		return fmt.Errorf("watch: add %s: %w", w.dir, err)
	}
	w.logger.Info("watching migrations", "dir", w.dir, "debounce", w.debounce)
	w.apply(ctx, "startup")

	var (
		timer   *time.Timer
		timerC  <-chan time.Time
		trigger string
	)
	defer func() {
		if timer != nil {
			timer.Stop()
		}
	}()
	for {
		select {
		case <-ctx.Done():
			return nil
		case event, ok := <-fw.Events:
			if !ok {
				return nil
			}
			if !Relevant(event) {
				continue
			}
			w.logger.Debug("migration file changed", "path", event.Name, "op", event.Op.String())
			trigger = filepath.Base(event.Name)
			if timer == nil {
				timer = time.NewTimer(w.debounce)
				timerC = timer.C
			} else {
				if !timer.Stop() {
					select {
					case <-timer.C:
					default:
					}
				}
				timer.Reset(w.debounce)
			}
		case <-timerC:
			w.apply(ctx, trigger)
		case err, ok := <-fw.Errors:
			if !ok {
				return nil
			}
			w.logger.Warn("watch error", "error", err)
		}
	}
}

// Relevant reports whether event touches a migration definition.
func Relevant(event fsnotify.Event) bool {
	if !event.Has(fsnotify.Create) && !event.Has(fsnotify.Write) && !event.Has(fsnotify.Rename) {
		return false
	}
	return migration.IsDefinitionFile(filepath.Base(event.Name))
}

func (w *Watcher) apply(ctx context.Context, trigger string) {
	if ctx.Err() != nil {
		return
	}
	start := time.Now()
	result, err := w.applier.Apply(ctx, engine.ApplyOptions{})
	w.metrics.ObserveRun("apply", len(result.IDs), time.Since(start), migration.ErrorKind(err), err != nil)
	if err != nil {
		w.logger.Error("watch apply failed", "trigger", trigger, "error", err)
	} else if len(result.IDs) > 0 {
		w.logger.Info("watch applied migrations", "trigger", trigger, "ids", result.IDs, "run_id", result.RunID)
	}
	if status, serr := w.applier.Status(ctx); serr == nil {
		w.metrics.SetPending(status.PendingCount)
	}
	if w.onRun != nil {
		w.onRun(Run{Trigger: trigger, Result: result, Err: err})
	}
}
