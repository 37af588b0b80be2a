package main

import (
	"context"
	"fmt"
	"os"
	"path/filepath"
	"strings"
	"time"

	"github.com/spf13/cobra"
	"gopkg.in/yaml.v3"

	"github.com/kingrea/fdml/internal/migration"
	"github.com/kingrea/fdml/internal/migration/engine"
)

// addFlags are shared by the add subcommands.
type addFlags struct {
	target string
	dryRun bool
	record bool
}

func (f *addFlags) bind(cmd *cobra.Command) {
	cmd.Flags().StringVarP(&f.target, "target", "t", "", "target FDML document (default from fdml.yaml)")
	cmd.Flags().BoolVar(&f.dryRun, "dry-run", false, "validate and report without writing anything")
	cmd.Flags().BoolVar(&f.record, "record", false, "write the migration into the project migration directory and apply pending migrations")
}

func (c *cli) addCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "add",
		Short: "Add features, entities, actions, constraints and fields",
		Long: `Each add command builds a one-operation migration with a matching down
operation and runs it through the migration engine, so the target document is
backed up and written atomically.

Examples:
  fdml add feature user_auth --title "User Authentication"
  fdml add entity user --name "User" --description "User account data"
  fdml add action login --name "User Login" --input user
  fdml add constraint email_unique --name "Email Uniqueness" --condition "unique(email)" --applies-to user.email
  fdml add field user age --field-type integer --default 18`,
	}
	cmd.AddCommand(
		c.addFeatureCmd(),
		c.addEntityCmd(),
		c.addActionCmd(),
		c.addConstraintCmd(),
		c.addFieldCmd(),
	)
	return cmd
}

func (c *cli) addFeatureCmd() *cobra.Command {
	var (
		flags     addFlags
		op        migration.AddFeature
		scenarios []string
	)
	cmd := &cobra.Command{
		Use:   "feature <id>",
		Short: "Add a feature",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			op.ID = args[0]
			op.Scenarios = scenarios
			return c.applyAdd(cmd.Context(), flags, op, "feature "+op.ID)
		},
	}
	flags.bind(cmd)
	cmd.Flags().StringVar(&op.Title, "title", "", "feature title")
	cmd.Flags().StringVar(&op.Description, "description", "", "feature description")
	cmd.Flags().StringArrayVar(&scenarios, "scenario", nil, "scenario title; repeat for several")
	_ = cmd.MarkFlagRequired("title")
	return cmd
}

func (c *cli) addEntityCmd() *cobra.Command {
	var (
		flags addFlags
		op    migration.AddEntity
	)
	cmd := &cobra.Command{
		Use:   "entity <id>",
		Short: "Add an entity",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			op.ID = args[0]
			return c.applyAdd(cmd.Context(), flags, op, "entity "+op.ID)
		},
	}
	flags.bind(cmd)
	cmd.Flags().StringVar(&op.Name, "name", "", "entity name")
	cmd.Flags().StringVar(&op.Description, "description", "", "entity description")
	return cmd
}

func (c *cli) addActionCmd() *cobra.Command {
	var (
		flags addFlags
		op    migration.AddAction
	)
	cmd := &cobra.Command{
		Use:   "action <id>",
		Short: "Add an action",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			op.ID = args[0]
			return c.applyAdd(cmd.Context(), flags, op, "action "+op.ID)
		},
	}
	flags.bind(cmd)
	cmd.Flags().StringVar(&op.Name, "name", "", "action name")
	cmd.Flags().StringVar(&op.Description, "description", "", "action description")
	cmd.Flags().StringVar(&op.Input, "input", "", "entity the action consumes")
	cmd.Flags().StringVar(&op.Output, "output", "", "entity the action produces")
	return cmd
}

func (c *cli) addConstraintCmd() *cobra.Command {
	var (
		flags addFlags
		op    migration.AddConstraint
	)
	cmd := &cobra.Command{
		Use:   "constraint <id>",
		Short: "Add a business constraint",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			op.ID = args[0]
			return c.applyAdd(cmd.Context(), flags, op, "constraint "+op.ID)
		},
	}
	flags.bind(cmd)
	cmd.Flags().StringVar(&op.Name, "name", "", "constraint name")
	cmd.Flags().StringVar(&op.Description, "description", "", "constraint description")
	cmd.Flags().StringVar(&op.Type, "type", "business_rule", "constraint type")
	cmd.Flags().StringVar(&op.Condition, "condition", "", `rule such as "unique(email)"`)
	cmd.Flags().StringVar(&op.AppliesTo, "applies-to", "", `element the rule covers, e.g. "user.email"`)
	cmd.Flags().StringVar(&op.Message, "message", "", "message shown when the rule is violated")
	return cmd
}

func (c *cli) addFieldCmd() *cobra.Command {
	var (
		flags      addFlags
		op         migration.AddField
		required   bool
		defaultRaw string
	)
	cmd := &cobra.Command{
		Use:   "field <entity> <name>",
		Short: "Add a field to an existing entity",
		Args:  cobra.ExactArgs(2),
		RunE: func(cmd *cobra.Command, args []string) error {
			op.EntityID, op.FieldName = args[0], args[1]
			if cmd.Flags().Changed("required") {
				op.Required = &required
			}
			if cmd.Flags().Changed("default") {
				value, err := parseScalar(defaultRaw)
				if err != nil {
					return fmt.Errorf("--default: %w", err)
				}
				op.Default = value
			}
			return c.applyAdd(cmd.Context(), flags, op, fmt.Sprintf("field %s to %s", op.FieldName, op.EntityID))
		},
	}
	flags.bind(cmd)
	cmd.Flags().StringVar(&op.FieldType, "field-type", "string", "field type (string, integer, float, boolean, ...)")
	cmd.Flags().BoolVar(&required, "required", false, "mark the field required")
	cmd.Flags().StringVar(&defaultRaw, "default", "", "default value, parsed as a YAML scalar")
	cmd.Flags().StringVar(&op.Description, "description", "", "field description")
	return cmd
}

// parseScalar turns "18" into 18 and "true" into true; other text stays a string.
func parseScalar(raw string) (any, error) {
	var value any
	if err := yaml.Unmarshal([]byte(raw), &value); err != nil {
		return nil, err
	}
	switch value.(type) {
	case map[string]any, []any:
		return nil, fmt.Errorf("expected a scalar, got %q", raw)
	case nil:
		return raw, nil
	}
	return value, nil
}

// addMigration wraps op in a one-operation migration whose down list is the
// structural inverse of op.
func addMigration(now time.Time, op migration.Operation, subject string) (migration.Migration, error) {
	down, ok := migration.Inverse(op)
	if !ok {
		return migration.Migration{}, fmt.Errorf("%s has no inverse", op.Kind())
	}
	return migration.Migration{
		ID:          migration.NewID(now, 1, string(op.Kind())),
		Title:       "Add " + subject,
		Description: "Generated by fdml add",
		Up:          migration.Operations{op},
		Down:        migration.Operations{down},
	}, nil
}

// applyAdd validates op, then routes it through the migration engine. Without
// --record the migration lives in a scratch directory with in-memory state
// and only the document change, its backup and the journal entry persist.
func (c *cli) applyAdd(ctx context.Context, flags addFlags, op migration.Operation, subject string) error {
	target := c.targetFile(flags.target)
	projectDir := c.cfg.MigrationsDir()

	m, err := addMigration(time.Now(), op, subject)
	if err != nil {
		return err
	}

	var runner *engine.Runner
	if flags.record {
		runner = c.runner(projectDir, target)
	} else {
		scratch, err := os.MkdirTemp("", "fdml-add-*")
		if err != nil {
			return fmt.Errorf("create scratch migration dir: %w", err)
		}
		defer os.RemoveAll(scratch)
		opts := []engine.Option{
			engine.WithTargetFile(target),
			engine.WithStateStore(engine.NewMemoryStore()),
			engine.WithBackupDir(filepath.Join(projectDir, engine.BackupDirName)),
			engine.WithBackupRetention(c.cfg.BackupKeep()),
			engine.WithLogger(c.logger.Logger),
		}
		if !flags.dryRun {
			if journal := c.journal(projectDir); journal != nil {
				opts = append(opts, engine.WithJournal(journal))
			}
		}
		runner = engine.New(scratch, opts...)
	}
	if err := runner.ValidateOperation(op); err != nil {
		return err
	}

	if flags.dryRun {
		c.printer.Info("Dry run: would apply %s", migration.Describe(op))
		c.printer.Muted("  target: %s", c.rel(target))
		return nil
	}

	path, err := migration.WriteFile(runner.Dir(), m)
	if err != nil {
		return err
	}
	c.logger.Debug("add migration written", "id", m.ID, "path", path, "record", flags.record)
	result, err := runner.Apply(ctx, engine.ApplyOptions{})
	if err != nil {
		if flags.record {
			if rmErr := os.Remove(path); rmErr != nil {
				c.logger.Warn("remove unapplied migration", "path", path, "error", rmErr)
				c.printer.Warn("%s was recorded but not applied", c.rel(path))
			}
		}
		return err
	}
	c.printer.Success("Added %s", subject)
	if flags.record {
		c.printer.Muted("  recorded as %s", c.rel(path))
		if extra := len(result.IDs) - 1; extra > 0 {
			c.printer.Muted("  also applied %d pending migration(s): %s", extra, strings.Join(without(result.IDs, m.ID), ", "))
		}
	}
	if result.BackupPath != "" {
		c.printer.Muted("  backup: %s", c.rel(result.BackupPath))
	}
	return nil
}

func without(ids []string, drop string) []string {
	out := make([]string, 0, len(ids))
	for _, id := range ids {
		if id != drop {
			out = append(out, id)
		}
	}
	return out
}
