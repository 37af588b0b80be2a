package main

import (
	"encoding/json"
	"fmt"
	"strings"

	"github.com/spf13/cobra"

	"github.com/kingrea/fdml/internal/document"
)

const (
	outputText = "text"
	outputJSON = "json"
)

type listFlags struct {
	target string
	output string
}

func (c *cli) listCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "list",
		Short: "List features, entities, actions or constraints of a document",
	}
	cmd.AddCommand(
		c.listKindCmd("features", "List features with their scenario counts", func(doc *document.Document) (any, int, func()) {
			return doc.Features, len(doc.Features), func() {
				for _, f := range doc.Features {
					fmt.Fprintf(c.out, "  %s - %s\n", f.ID, f.Title)
					c.detail(f.Description)
					if n := len(f.Scenarios); n > 0 {
						c.detail(fmt.Sprintf("%d scenarios", n))
					}
				}
			}
		}),
		c.listKindCmd("entities", "List entities with their fields", func(doc *document.Document) (any, int, func()) {
			return doc.Entities, len(doc.Entities), func() {
				for _, e := range doc.Entities {
					fmt.Fprintf(c.out, "  %s - %s\n", e.ID, orPlaceholder(e.Name, "No name"))
					c.detail(e.Description)
					if len(e.Fields) > 0 {
						c.detail(fmt.Sprintf("%d fields", len(e.Fields)))
					}
					for _, f := range e.Fields {
						required := ""
						if f.IsRequired() {
							required = " (required)"
						}
						fmt.Fprintf(c.out, "       - %s: %s%s\n", f.Name, f.Type, required)
					}
				}
			}
		}),
		c.listKindCmd("actions", "List actions with their input and output", func(doc *document.Document) (any, int, func()) {
			return doc.Actions, len(doc.Actions), func() {
				for _, a := range doc.Actions {
					fmt.Fprintf(c.out, "  %s - %s\n", a.ID, orPlaceholder(a.Name, "No name"))
					c.detail(a.Description)
					if a.Input != nil && a.Input.Entity != "" {
						c.detail("Input: " + a.Input.Entity)
					}
					if a.Output != nil && a.Output.Entity != "" {
						c.detail("Output: " + a.Output.Entity)
					}
				}
			}
		}),
		c.listKindCmd("constraints", "List business constraints", func(doc *document.Document) (any, int, func()) {
			return doc.Constraints, len(doc.Constraints), func() {
				for _, k := range doc.Constraints {
					fmt.Fprintf(c.out, "  %s - %s (%s)\n", k.ID, orPlaceholder(k.Name, "No name"), orPlaceholder(k.Type, "unspecified"))
					c.detail(k.Description)
					c.detail("Rule: " + k.Condition)
					c.detail("Applies to: " + k.AppliesTo)
				}
			}
		}),
	)
	return cmd
}

// listKindCmd builds one list subcommand. pick returns the collection for
// JSON output, its length and the text renderer.
func (c *cli) listKindCmd(kind, short string, pick func(*document.Document) (any, int, func())) *cobra.Command {
	var flags listFlags
	cmd := &cobra.Command{
		Use:   kind,
		Short: short,
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			format := strings.ToLower(strings.TrimSpace(flags.output))
			if format != outputText && format != outputJSON {
				return fmt.Errorf("unknown output format %q (want text or json)", flags.output)
			}
			path := c.targetFile(flags.target)
			doc, err := document.Load(path)
			if err != nil {
				return err
			}
			items, n, render := pick(doc)
			if format == outputJSON {
				if n == 0 {
					items = []struct{}{}
				}
				data, err := json.MarshalIndent(items, "", "  ")
				if err != nil {
					return fmt.Errorf("encode %s: %w", kind, err)
				}
				fmt.Fprintln(c.out, string(data))
				return nil
			}
			if n == 0 {
				c.printer.Info("No %s found in %s", kind, c.rel(path))
				return nil
			}
			c.printer.Success("Found %d %s:", n, kind)
			render()
			return nil
		},
	}
	cmd.Flags().StringVarP(&flags.target, "target", "t", "", "FDML document to read (default from fdml.yaml)")
	cmd.Flags().StringVarP(&flags.output, "output", "o", outputText, "output format: text or json")
	return cmd
}

func (c *cli) detail(line string) {
	if strings.TrimSpace(line) == "" {
		return
	}
	fmt.Fprintf(c.out, "     %s\n", line)
}

func orPlaceholder(value, placeholder string) string {
	if strings.TrimSpace(value) == "" {
		return placeholder
	}
	return value
}
