package engine

import (
	"context"
	"fmt"
	"io"
	"log/slog"
	"path/filepath"
	"slices"
	"time"

	"github.com/google/uuid"
	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/codes"
	"go.opentelemetry.io/otel/trace"

	"github.com/kingrea/fdml/internal/document"
	"github.com/kingrea/fdml/internal/logbook"
	"github.com/kingrea/fdml/internal/migration"
	"github.com/kingrea/fdml/internal/migration/mutator"
	"github.com/kingrea/fdml/internal/migration/resolver"
)

// DefaultTargetFile is the document a Runner edits when no target is set. It
// lives next to the migration directory.
const DefaultTargetFile = "spec.fdml"

// TracerName identifies spans emitted by the runner.
const TracerName = "github.com/kingrea/fdml/internal/migration/engine"

// Runner applies and rolls back the migrations of one directory against one
// target document.
type Runner struct {
	dir       string
	target    string
	store     StateStore
	backupDir string
	keep      int
	strict    bool
	journal   *logbook.Logbook
	logger    *slog.Logger
	tracer    trace.Tracer
	clock     func() time.Time
	newRunID  func() string
	backups   *BackupManager
}

// Option customizes the runner instance.
type Option func(*Runner)

// WithTargetFile overrides the document the runner edits.
func WithTargetFile(path string) Option {
	return func(r *Runner) {
		if path != "" {
			r.target = path
		}
	}
}

// WithStateStore replaces the on-disk state repository.
func WithStateStore(store StateStore) Option {
	return func(r *Runner) {
		if store != nil {
			r.store = store
		}
	}
}

// WithBackupDir stores snapshots somewhere other than <dir>/.backups.
func WithBackupDir(dir string) Option {
	return func(r *Runner) {
		if dir != "" {
			r.backupDir = dir
		}
	}
}

// WithBackupRetention keeps at most keep snapshots per target; zero keeps all.
func WithBackupRetention(keep int) Option {
	return func(r *Runner) { r.keep = keep }
}

// WithStrictRollback refuses to roll back a migration while migrations that
// depend on it remain applied.
func WithStrictRollback(strict bool) Option {
	return func(r *Runner) { r.strict = strict }
}

// WithJournal records every mutating batch in the given logbook.
func WithJournal(journal *logbook.Logbook) Option {
	return func(r *Runner) { r.journal = journal }
}

// WithLogger routes runner diagnostics to logger.
func WithLogger(logger *slog.Logger) Option {
	return func(r *Runner) {
		if logger != nil {
			r.logger = logger
		}
	}
}

// WithTracer overrides the tracer taken from the global provider.
func WithTracer(tracer trace.Tracer) Option {
	return func(r *Runner) {
		if tracer != nil {
			r.tracer = tracer
		}
	}
}

// WithClock injects a deterministic clock (primarily for tests).
func WithClock(clock func() time.Time) Option {
	return func(r *Runner) {
		if clock != nil {
			r.clock = clock
		}
	}
}

// New wires a runner to the migration directory dir. State and backups are
// kept inside dir unless overridden.
func New(dir string, opts ...Option) *Runner {
	r := &Runner{
		dir:      dir,
		target:   filepath.Join(filepath.Dir(filepath.Clean(dir)), DefaultTargetFile),
		logger:   slog.New(slog.NewTextHandler(io.Discard, nil)),
		tracer:   otel.Tracer(TracerName),
		clock:    time.Now,
		newRunID: uuid.NewString,
	}
	for _, opt := range opts {
		opt(r)
	}
	if r.store == nil {
		r.store = NewRepository(dir, r.clock)
	}
	if r.backupDir == "" {
		r.backupDir = filepath.Join(dir, BackupDirName)
	}
	r.backups = NewBackupManager(r.backupDir, r.keep, r.clock)
	return r
}

// Dir returns the migration directory.
func (r *Runner) Dir() string { return r.dir }

// Target returns the document file the runner edits.
func (r *Runner) Target() string { return r.target }

// Backups exposes the snapshot manager.
func (r *Runner) Backups() *BackupManager { return r.backups }

// ApplyOptions tunes a single Apply call.
type ApplyOptions struct {
	DryRun bool
}

// RollbackOptions tunes a single Rollback call.
type RollbackOptions struct {
	// Count is the number of most recently applied migrations to reverse.
	// Values below one roll back a single migration.
	Count  int
	DryRun bool
}

// Result reports the migrations a batch acted on, in execution order.
type Result struct {
	RunID      string
	IDs        []string
	DryRun     bool
	BackupPath string
}

// Status summarizes applied and pending migrations.
type Status struct {
	Total        int
	AppliedCount int
	PendingCount int
	Applied      []string
	Pending      []string
	// LastMigration is the most recently applied id, or "".
	LastMigration string
	UpdatedAt     time.Time
	// Migrations lists applied ids in application order, then pending ids.
	Migrations []MigrationSummary
}

// MigrationSummary describes one migration for display.
type MigrationSummary struct {
	ID           string
	Title        string
	Applied      bool
	Reversible   bool
	Missing      bool
	Dependencies []string
}

type plan struct {
	all   migration.Set
	state State
	ids   []string
}

// Apply runs every pending migration in dependency order. Nothing is written
// unless every migration succeeds.
func (r *Runner) Apply(ctx context.Context, opts ApplyOptions) (result Result, err error) {
	ctx, span := r.tracer.Start(ctx, "migration.apply", trace.WithAttributes(
		attribute.String("fdml.migration_dir", r.dir),
		attribute.Bool("fdml.dry_run", opts.DryRun),
	))
	defer func() { endSpan(span, result, err) }()

	result = Result{RunID: r.newRunID(), IDs: []string{}, DryRun: opts.DryRun}
	p, err := r.planApply(ctx)
	if err != nil {
		return result, err
	}
	r.logger.Debug("planned apply", "run_id", result.RunID, "pending", p.ids)
	if opts.DryRun || len(p.ids) == 0 {
		result.IDs = p.ids
		return result, nil
	}

	lock, err := acquireLock(r.dir)
	if err != nil {
		return result, err
	}
	defer r.releaseLock(lock)
	// Re-plan under the lock so a run that finished in between is honored.
	if p, err = r.planApply(ctx); err != nil {
		return result, err
	}
	if len(p.ids) == 0 {
		return result, nil
	}
	defer func() { r.record("apply", result, p.ids, err) }()

	result.BackupPath, err = r.snapshot(ctx)
	if err != nil {
		return result, err
	}
	doc, err := r.loadDocument()
	if err != nil {
		return result, err
	}
	for _, id := range p.ids {
		if err := ctx.Err(); err != nil {
			return result, err
		}
		m := p.all[id]
		if err := migration.ValidateAll(id, m.Up); err != nil {
			return result, err
		}
		if err := mutator.ApplyUp(doc, m.Up); err != nil {
			return result, fmt.Errorf("migration %s: %w", id, err)
		}
		r.logger.Info("applied migration", "run_id", result.RunID, "id", id, "title", m.Title)
	}
	if err := r.persist(ctx, doc, func() (State, error) { return r.store.RecordApplied(p.ids) }); err != nil {
		return result, err
	}
	result.IDs = p.ids
	return result, nil
}

// Rollback reverses the most recently applied migrations, newest first.
func (r *Runner) Rollback(ctx context.Context, opts RollbackOptions) (result Result, err error) {
	count := opts.Count
	if count < 1 {
		count = 1
	}
	ctx, span := r.tracer.Start(ctx, "migration.rollback", trace.WithAttributes(
		attribute.String("fdml.migration_dir", r.dir),
		attribute.Bool("fdml.dry_run", opts.DryRun),
		attribute.Int("fdml.count", count),
	))
	defer func() { endSpan(span, result, err) }()

	result = Result{RunID: r.newRunID(), IDs: []string{}, DryRun: opts.DryRun}
	p, err := r.planRollback(ctx, count)
	if err != nil {
		return result, err
	}
	r.logger.Debug("planned rollback", "run_id", result.RunID, "selected", p.ids)
	if opts.DryRun || len(p.ids) == 0 {
		result.IDs = p.ids
		return result, nil
	}

	lock, err := acquireLock(r.dir)
	if err != nil {
		return result, err
	}
	defer r.releaseLock(lock)
	if p, err = r.planRollback(ctx, count); err != nil {
		return result, err
	}
	if len(p.ids) == 0 {
		return result, nil
	}
	defer func() { r.record("rollback", result, p.ids, err) }()

	result.BackupPath, err = r.snapshot(ctx)
	if err != nil {
		return result, err
	}
	doc, err := r.loadDocument()
	if err != nil {
		return result, err
	}
	for _, id := range p.ids {
		if err := ctx.Err(); err != nil {
			return result, err
		}
		m := p.all[id]
		if err := migration.ValidateAll(id, m.Down); err != nil {
			return result, err
		}
		if err := mutator.ApplyDown(doc, m.Down); err != nil {
			return result, fmt.Errorf("migration %s: %w", id, err)
		}
		r.logger.Info("rolled back migration", "run_id", result.RunID, "id", id, "title", m.Title)
	}
	if err := r.persist(ctx, doc, func() (State, error) { return r.store.RecordRolledBack(p.ids) }); err != nil {
		return result, err
	}
	result.IDs = p.ids
	return result, nil
}

// Status reports applied and pending migrations without resolving order.
func (r *Runner) Status(ctx context.Context) (Status, error) {
	_, span := r.tracer.Start(ctx, "migration.status")
	defer span.End()
	all, err := migration.LoadDir(r.dir)
	if err != nil {
		span.RecordError(err)
		return Status{}, err
	}
	state, err := r.store.Load()
	if err != nil {
		span.RecordError(err)
		return Status{}, err
	}
	pending := pendingIDs(all, state)
	summaries := make([]MigrationSummary, 0, len(state.Applied)+len(pending))
	for _, id := range state.Applied {
		summaries = append(summaries, summarize(all, id, true))
	}
	for _, id := range pending {
		summaries = append(summaries, summarize(all, id, false))
	}
	return Status{
		Total:         len(all),
		AppliedCount:  len(state.Applied),
		PendingCount:  len(pending),
		Applied:       slices.Clone(state.Applied),
		Pending:       pending,
		LastMigration: state.Last(),
		UpdatedAt:     state.UpdatedAt,
		Migrations:    summaries,
	}, nil
}

// summarize describes id; Missing marks applied ids whose file is gone.
func summarize(all migration.Set, id string, applied bool) MigrationSummary {
	m, ok := all[id]
	if !ok {
		return MigrationSummary{ID: id, Applied: applied, Missing: true}
	}
	return MigrationSummary{
		ID:           id,
		Title:        m.Title,
		Applied:      applied,
		Reversible:   m.Reversible(),
		Dependencies: slices.Clone(m.Dependencies),
	}
}

// ValidateOperation checks op without touching the document.
func (r *Runner) ValidateOperation(op migration.Operation) error {
	return migration.Validate(op)
}

func (r *Runner) planApply(ctx context.Context) (plan, error) {
	_, span := r.tracer.Start(ctx, "migration.plan")
	defer span.End()
	all, err := migration.LoadDir(r.dir)
	if err != nil {
		return plan{}, err
	}
	state, err := r.store.Load()
	if err != nil {
		return plan{}, err
	}
	pending := pendingIDs(all, state)
	order, err := resolver.New(all, resolver.WithSatisfied(state.Applied...)).Resolve(pending)
	if err != nil {
		return plan{}, err
	}
	span.SetAttributes(attribute.Int("fdml.pending", len(order)))
	return plan{all: all, state: state, ids: order}, nil
}

func (r *Runner) planRollback(ctx context.Context, count int) (plan, error) {
	_, span := r.tracer.Start(ctx, "migration.plan")
	defer span.End()
	all, err := migration.LoadDir(r.dir)
	if err != nil {
		return plan{}, err
	}
	state, err := r.store.Load()
	if err != nil {
		return plan{}, err
	}
	selected := state.Recent(count)
	for _, id := range selected {
		m, ok := all[id]
		if !ok || !m.Reversible() {
			return plan{}, &migration.NoReverseError{ID: id}
		}
	}
	if r.strict {
		if err := checkDependents(all, state, selected); err != nil {
			return plan{}, err
		}
	}
	span.SetAttributes(attribute.Int("fdml.selected", len(selected)))
	return plan{all: all, state: state, ids: selected}, nil
}

// checkDependents rejects a selection that would leave an applied migration
// without one of its dependencies.
func checkDependents(all migration.Set, state State, selected []string) error {
	for _, id := range selected {
		var blocking []string
		for _, dep := range all.Dependents(id) {
			if state.IsApplied(dep) && !slices.Contains(selected, dep) {
				blocking = append(blocking, dep)
			}
		}
		if len(blocking) > 0 {
			return &migration.DependentsAppliedError{ID: id, Dependents: blocking}
		}
	}
	return nil
}

func (r *Runner) snapshot(ctx context.Context) (string, error) {
	_, span := r.tracer.Start(ctx, "migration.backup")
	defer span.End()
	path, err := r.backups.Snapshot(r.target)
	if err != nil {
		span.RecordError(err)
		return path, err
	}
	if path == "" {
		r.logger.Debug("target missing, no backup taken", "target", r.target)
	} else {
		r.logger.Info("backed up target", "target", r.target, "backup", path)
	}
	return path, nil
}

func (r *Runner) loadDocument() (*document.Document, error) {
	doc, err := document.LoadOrEmpty(r.target)
	if err != nil {
		return nil, &migration.IOError{Op: "load document", Path: r.target, Err: err}
	}
	return doc, nil
}

// persist writes the document and then the state. Both writes replace their
// file by rename; a failure between the two leaves the document ahead of
// the state, which the error names.
func (r *Runner) persist(ctx context.Context, doc *document.Document, record func() (State, error)) error {
	_, span := r.tracer.Start(ctx, "migration.persist")
	defer span.End()
	if err := document.Save(r.target, doc); err != nil {
		span.RecordError(err)
		return &migration.IOError{Op: "save document", Path: r.target, Err: err}
	}
	if _, err := record(); err != nil {
		span.RecordError(err)
		return fmt.Errorf("document %s saved but state update failed: %w", r.target, err)
	}
	r.logger.Debug("persisted document and state", "target", r.target)
	return nil
}

func (r *Runner) releaseLock(lock *runLock) {
	if err := lock.release(); err != nil {
		r.logger.Warn("release migration lock", "dir", r.dir, "error", err)
	}
}

// record journals a mutating batch; ids are the migrations attempted.
func (r *Runner) record(action string, result Result, ids []string, err error) {
	if err != nil {
		r.logger.Error(action+" failed", "run_id", result.RunID, "error", err, "kind", migration.ErrorKind(err))
	}
	r.journal.Record(logbook.Entry{
		RunID:  result.RunID,
		Action: action,
		IDs:    ids,
		Backup: result.BackupPath,
		Err:    err,
	})
}

// pendingIDs returns the sorted ids of loaded migrations not yet applied.
func pendingIDs(all migration.Set, state State) []string {
	pending := []string{}
	for _, id := range all.IDs() {
		if !state.IsApplied(id) {
			pending = append(pending, id)
		}
	}
	return pending
}

func endSpan(span trace.Span, result Result, err error) {
	span.SetAttributes(
		attribute.String("fdml.run_id", result.RunID),
		attribute.StringSlice("fdml.migrations", result.IDs),
	)
	if err != nil {
		span.RecordError(err)
		span.SetStatus(codes.Error, migration.ErrorKind(err))
	}
	span.End()
}
