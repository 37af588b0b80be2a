package main

import (
	"context"
	"errors"
	"fmt"
	"io"
	"io/fs"
	"os"
	"os/signal"
	"path/filepath"
	"strings"
	"syscall"

	"github.com/spf13/cobra"

	"github.com/kingrea/fdml/internal/config"
	"github.com/kingrea/fdml/internal/logbook"
	"github.com/kingrea/fdml/internal/logging"
	"github.com/kingrea/fdml/internal/migration/engine"
	"github.com/kingrea/fdml/internal/telemetry"
	"github.com/kingrea/fdml/internal/ui"
)

// version is overridden at build time with -ldflags "-X main.version=...".
var version = "dev"

// cli carries the state shared by every command of one invocation.
type cli struct {
	projectDir string
	verbose    bool
	trace      string

	out    io.Writer
	errOut io.Writer

	cfg      *config.Config
	logger   *logging.Logger
	printer  *ui.Printer
	shutdown telemetry.ShutdownFunc
}

// run executes one invocation and returns the process exit code.
func run(args []string, out, errOut io.Writer) int {
	c := &cli{out: out, errOut: errOut}
	root := c.rootCmd()
	root.SetArgs(args)
	root.SetOut(out)
	root.SetErr(errOut)

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()
	err := root.ExecuteContext(ctx)
	if terr := c.teardown(context.Background()); err == nil {
		err = terr
	}
	if err != nil {
		ui.NewPrinter(errOut).Error(err)
		return 1
	}
	return 0
}

func (c *cli) rootCmd() *cobra.Command {
	root := &cobra.Command{
		Use:   "fdml",
		Short: "FDML specification migration tools",
		Long: `fdml evolves FDML specification documents through versioned,
reversible migrations.

Examples:
  fdml init my-app
  fdml add entity user --name "User"
  fdml add field user email --field-type string --required
  fdml migrate apply --dry-run
  fdml migrate rollback --count 2
  fdml list entities --output json`,
		Version:           version,
		SilenceUsage:      true,
		SilenceErrors:     true,
		PersistentPreRunE: c.setup,
	}
	flags := root.PersistentFlags()
	flags.StringVar(&c.projectDir, "project", ".", "project directory containing fdml.yaml")
	flags.BoolVarP(&c.verbose, "verbose", "v", false, "mirror debug logs to stderr")
	flags.StringVar(&c.trace, "trace", "", "trace exporter: none or stdout (default $"+telemetry.EnvTrace+")")

	root.AddCommand(
		c.initCmd(),
		c.migrateCmd(),
		c.addCmd(),
		c.listCmd(),
	)
	return root
}

// setup loads fdml.yaml, opens the file logger and installs tracing. The
// file logger is only used once the project has a .fdml directory.
func (c *cli) setup(cmd *cobra.Command, args []string) error {
	cfg, err := config.Load(c.projectDir)
	if err != nil {
		return err
	}
	c.cfg = cfg
	c.printer = ui.NewPrinter(c.out)

	c.logger = logging.Discard()
	if _, err := os.Stat(cfg.FDMLProjectDir); err == nil {
		logger, err := logging.New(cfg.LogsDir(), logging.Options{Level: cfg.LogLevel(), Verbose: c.verbose, Stderr: c.errOut})
		if err != nil {
			return err
		}
		c.logger = logger
	} else if !errors.Is(err, fs.ErrNotExist) {
		return fmt.Errorf("stat %s: %w", cfg.FDMLProjectDir, err)
	}

	shutdown, err := telemetry.Setup(telemetry.Config{
		ServiceName:    "fdml",
		ServiceVersion: version,
		Exporter:       c.trace,
		Writer:         c.errOut,
	})
	if err != nil {
		return err
	}
	c.shutdown = shutdown
	c.logger.Debug("command started", "command", cmd.CommandPath(), "project", cfg.ProjectDir)
	return nil
}

// teardown flushes tracing and closes the log file, also after a failed command.
func (c *cli) teardown(ctx context.Context) error {
	var errs []error
	if c.shutdown != nil {
		errs = append(errs, c.shutdown(ctx))
	}
	if c.logger != nil {
		errs = append(errs, c.logger.Close())
	}
	return errors.Join(errs...)
}

// migrationDir resolves --path against the project, falling back to fdml.yaml.
func (c *cli) migrationDir(flag string) string {
	if strings.TrimSpace(flag) == "" {
		return c.cfg.MigrationsDir()
	}
	return c.cfg.ResolvePath(flag)
}

// targetFile resolves --target against the project, falling back to fdml.yaml.
func (c *cli) targetFile(flag string) string {
	if strings.TrimSpace(flag) == "" {
		return c.cfg.TargetFile()
	}
	return c.cfg.ResolvePath(flag)
}

// journal opens the migration journal of dir. A journal that cannot be
// created is logged and skipped.
func (c *cli) journal(dir string) *logbook.Logbook {
	journal, err := logbook.ForDir(dir)
	if err != nil {
		c.logger.Warn("journal unavailable", "dir", dir, "error", err)
		return nil
	}
	return journal
}

// runner builds an engine.Runner for dir with the project's settings.
func (c *cli) runner(dir, target string, extra ...engine.Option) *engine.Runner {
	opts := []engine.Option{
		engine.WithTargetFile(target),
		engine.WithBackupRetention(c.cfg.BackupKeep()),
		engine.WithStrictRollback(c.cfg.StrictRollback()),
		engine.WithLogger(c.logger.Logger),
	}
	if journal := c.journal(dir); journal != nil {
		opts = append(opts, engine.WithJournal(journal))
	}
	return engine.New(dir, append(opts, extra...)...)
}

// rel shortens path for display when it sits under the project dir.
func (c *cli) rel(path string) string {
	if path == "" || c.cfg == nil {
		return path
	}
	if r, err := filepath.Rel(c.cfg.ProjectDir, path); err == nil && !strings.HasPrefix(r, "..") {
		return r
	}
	return path
}
