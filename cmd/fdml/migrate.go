package main

import (
	"errors"
	"fmt"
	"net"
	"net/http"
	"strings"
	"time"

	"github.com/spf13/cobra"

	"github.com/kingrea/fdml/internal/metrics"
	"github.com/kingrea/fdml/internal/migration"
	"github.com/kingrea/fdml/internal/migration/engine"
	"github.com/kingrea/fdml/internal/tui"
	"github.com/kingrea/fdml/internal/ui"
	"github.com/kingrea/fdml/internal/watch"
)

// migrateFlags are shared by the migrate subcommands.
type migrateFlags struct {
	path   string
	target string
	dryRun bool
}

func (f *migrateFlags) bind(cmd *cobra.Command, withTarget, withDryRun bool) {
	cmd.Flags().StringVarP(&f.path, "path", "p", "", "migration directory (default from fdml.yaml)")
	if withTarget {
		cmd.Flags().StringVarP(&f.target, "target", "t", "", "target FDML document (default from fdml.yaml)")
	}
	if withDryRun {
		cmd.Flags().BoolVar(&f.dryRun, "dry-run", false, "report what would change without writing anything")
	}
}

func (c *cli) migrateCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "migrate",
		Short: "Apply, roll back and inspect migrations",
	}
	cmd.AddCommand(
		c.migrateApplyCmd(),
		c.migrateRollbackCmd(),
		c.migrateStatusCmd(),
		c.migrateCreateCmd(),
		c.migrateHistoryCmd(),
		c.migrateWatchCmd(),
	)
	return cmd
}

func (c *cli) migrateApplyCmd() *cobra.Command {
	var flags migrateFlags
	cmd := &cobra.Command{
		Use:   "apply",
		Short: "Apply all pending migrations in dependency order",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			runner := c.runner(c.migrationDir(flags.path), c.targetFile(flags.target))
			result, err := runner.Apply(cmd.Context(), engine.ApplyOptions{DryRun: flags.dryRun})
			if err != nil {
				return err
			}
			c.reportRun("apply", result)
			return nil
		},
	}
	flags.bind(cmd, true, true)
	return cmd
}

func (c *cli) migrateRollbackCmd() *cobra.Command {
	var (
		flags migrateFlags
		count int
	)
	cmd := &cobra.Command{
		Use:   "rollback",
		Short: "Roll back the most recently applied migrations",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			runner := c.runner(c.migrationDir(flags.path), c.targetFile(flags.target))
			result, err := runner.Rollback(cmd.Context(), engine.RollbackOptions{Count: count, DryRun: flags.dryRun})
			if err != nil {
				return err
			}
			c.reportRun("rollback", result)
			return nil
		},
	}
	flags.bind(cmd, true, true)
	cmd.Flags().IntVarP(&count, "count", "c", 1, "number of migrations to roll back")
	return cmd
}

func (c *cli) reportRun(action string, result engine.Result) {
	verb, past := "apply", "Applied"
	if action == "rollback" {
		verb, past = "roll back", "Rolled back"
	}
	switch {
	case result.DryRun && len(result.IDs) == 0:
		c.printer.Info("Dry run: nothing to %s", verb)
	case result.DryRun:
		c.printer.Info("Dry run: would %s %d migration(s):", verb, len(result.IDs))
		c.printer.IDs(result.IDs, "")
	case len(result.IDs) == 0:
		c.printer.Success("Nothing to %s", verb)
	default:
		c.printer.Success("%s %d migration(s):", past, len(result.IDs))
		c.printer.IDs(result.IDs, "")
		if result.BackupPath != "" {
			c.printer.Muted("  backup: %s", c.rel(result.BackupPath))
		}
	}
}

func (c *cli) migrateStatusCmd() *cobra.Command {
	var (
		flags       migrateFlags
		interactive bool
	)
	cmd := &cobra.Command{
		Use:   "status",
		Short: "Show applied and pending migrations",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			dir := c.migrationDir(flags.path)
			runner := c.runner(dir, c.targetFile(flags.target))
			if interactive {
				if !ui.IsTerminal(c.out) {
					return errors.New("--interactive requires a terminal")
				}
				return tui.Run(runner, tui.WithContext(cmd.Context()), tui.WithJournal(c.journal(dir)))
			}
			status, err := runner.Status(cmd.Context())
			if err != nil {
				return err
			}
			fmt.Fprintln(c.out, c.printer.StatusTable(status))
			return nil
		},
	}
	flags.bind(cmd, true, false)
	cmd.Flags().BoolVarP(&interactive, "interactive", "i", false, "browse, apply and roll back in a terminal UI")
	return cmd
}

func (c *cli) migrateCreateCmd() *cobra.Command {
	var (
		flags     migrateFlags
		title     string
		dependsOn []string
	)
	cmd := &cobra.Command{
		Use:   "create <name>",
		Short: "Write a skeleton migration with the next timestamped id",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			dir := c.migrationDir(flags.path)
			if title == "" {
				title = args[0]
			}
			m := migration.Migration{
				ID:           migration.NewID(time.Now(), 1, args[0]),
				Title:        title,
				Dependencies: dependsOn,
			}
			path, err := migration.WriteFile(dir, m)
			if err != nil {
				return err
			}
			c.logger.Info("migration created", "id", m.ID, "path", path)
			c.printer.Success("Created %s", c.rel(path))
			c.printer.Muted("  add operations under up: and their inverses under down:")
			return nil
		},
	}
	flags.bind(cmd, false, false)
	cmd.Flags().StringVar(&title, "title", "", "human readable title (default: name)")
	cmd.Flags().StringSliceVar(&dependsOn, "depends-on", nil, "ids this migration depends on")
	return cmd
}

func (c *cli) migrateHistoryCmd() *cobra.Command {
	var (
		flags migrateFlags
		limit int
	)
	cmd := &cobra.Command{
		Use:   "history",
		Short: "Show the migration journal",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			journal := c.journal(c.migrationDir(flags.path))
			if journal == nil {
				return errors.New("journal unavailable")
			}
			lines, total := journal.Tail(limit)
			if total == 0 {
				c.printer.Info("No migration runs recorded")
				return nil
			}
			for _, line := range lines {
				fmt.Fprintln(c.out, line)
			}
			if total > len(lines) {
				c.printer.Muted("(%d of %d entries; use --limit to see more)", len(lines), total)
			}
			return nil
		},
	}
	flags.bind(cmd, false, false)
	cmd.Flags().IntVarP(&limit, "limit", "n", 20, "number of entries to show")
	return cmd
}

func (c *cli) migrateWatchCmd() *cobra.Command {
	var (
		flags       migrateFlags
		metricsAddr string
		debounce    time.Duration
	)
	cmd := &cobra.Command{
		Use:   "watch",
		Short: "Apply pending migrations whenever a migration file changes",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			ctx := cmd.Context()
			dir := c.migrationDir(flags.path)
			runner := c.runner(dir, c.targetFile(flags.target))
			rec := metrics.New()

			if metricsAddr != "" {
				ln, err := net.Listen("tcp", metricsAddr)
				if err != nil {
					return fmt.Errorf("metrics listener: %w", err)
				}
				mux := http.NewServeMux()
				mux.Handle("/metrics", rec.Handler())
				srv := &http.Server{Handler: mux, ReadHeaderTimeout: 5 * time.Second}
				go func() {
					if err := srv.Serve(ln); err != nil && !errors.Is(err, http.ErrServerClosed) {
						c.logger.Error("metrics server stopped", "error", err)
					}
				}()
				defer srv.Close()
				c.printer.Info("metrics on http://%s/metrics", ln.Addr())
			}

			c.printer.Info("Watching %s (Ctrl+C to stop)", c.rel(dir))
			w := watch.New(dir, runner,
				watch.WithDebounce(debounce),
				watch.WithMetrics(rec),
				watch.WithLogger(c.logger.Logger),
				watch.OnRun(func(r watch.Run) {
					switch {
					case r.Err != nil:
						c.printer.Warn("%s: %s: %v", r.Trigger, migration.ErrorKind(r.Err), r.Err)
					case len(r.Result.IDs) > 0:
						c.printer.Success("%s: applied %s", r.Trigger, strings.Join(r.Result.IDs, ", "))
					}
				}),
			)
			return w.Run(ctx)
		},
	}
	flags.bind(cmd, true, false)
	cmd.Flags().StringVar(&metricsAddr, "metrics-addr", "", "serve Prometheus metrics on this address, e.g. :9464")
	cmd.Flags().DurationVar(&debounce, "debounce", watch.DefaultDebounce, "quiet period before applying")
	return cmd
}
