package main

import (
	"errors"
	"fmt"
	"io/fs"
	"os"
	"strings"

	"github.com/spf13/cobra"

	"github.com/kingrea/fdml/internal/config"
	"github.com/kingrea/fdml/internal/document"
)

func (c *cli) initCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "init [name]",
		Short: "Initialize an fdml project",
		Long: `Create fdml.yaml, the migration directory and a starter specification
document in the project directory. Existing files are left untouched.`,
		Args: cobra.MaximumNArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			name := ""
			if len(args) == 1 {
				name = args[0]
			}
			return c.runInit(name)
		},
	}
}

func (c *cli) runInit(name string) error {
	if err := os.MkdirAll(c.projectDir, 0o755); err != nil {
		return fmt.Errorf("create project dir: %w", err)
	}
	cfg, err := config.Init(c.projectDir, name)
	if err != nil {
		return err
	}
	c.cfg = cfg
	c.printer.Success("Initialized fdml project %s", cfg.Project.Project.Name)
	c.printer.Info("config:     %s", c.rel(cfg.ProjectConfigPath()))
	c.printer.Info("migrations: %s", c.rel(cfg.MigrationsDir()))

	target := cfg.TargetFile()
	if _, err := os.Stat(target); err == nil {
		c.printer.Muted("  keeping existing %s", c.rel(target))
		return nil
	} else if !errors.Is(err, fs.ErrNotExist) {
		return fmt.Errorf("stat %s: %w", target, err)
	}
	if err := document.Save(target, starterDocument(cfg.Project.Project.Name)); err != nil {
		return err
	}
	c.printer.Info("document:   %s", c.rel(target))
	return nil
}

func starterDocument(name string) *document.Document {
	id := strings.Trim(strings.Map(func(r rune) rune {
		switch {
		case r >= 'a' && r <= 'z', r >= '0' && r <= '9':
			return r
		case r >= 'A' && r <= 'Z':
			return r + ('a' - 'A')
		default:
			return '_'
		}
	}, name), "_")
	if id == "" {
		id = "system"
	}
	return &document.Document{
		Metadata: &document.Metadata{Version: "1.0.0", Description: "Specification for " + name},
		System:   &document.System{ID: id, Name: name},
	}
}
