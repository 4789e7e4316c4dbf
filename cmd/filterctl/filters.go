package main

import (
	"bytes"
	"context"
	"fmt"
	"os"
	"sort"
	"strings"

	"github.com/spf13/cobra"
	"gopkg.in/yaml.v3"

	"injectionfilter/internal/management"
	"injectionfilter/pkg/cel"
	pkgerrors "injectionfilter/pkg/errors"
)

func newListCmd(c *cli) *cobra.Command {
	var where string

	cmd := &cobra.Command{
		Use:   "list",
		Short: "List stored filters",
		Long:  "List every filter stored under the key prefix.\n\nSelector examples for --where:\n" + selectorHelp(),
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			if err := checkOutput(c.output); err != nil {
				return err
			}
			return c.exec(cmd, func(ctx context.Context, app *App) error {
				var (
					filters []management.StoredFilter
					err     error
				)
				if where != "" {
					filters, err = app.Service().FindFilters(ctx, where)
				} else {
					filters, err = app.Service().ListFilters(ctx)
				}
				if err != nil {
					return err
				}

				if c.output == outputText {
					renderFilterTable(cmd.OutOrStdout(), filters)
					return nil
				}
				return encode(cmd.OutOrStdout(), c.output, documents(filters))
			})
		},
	}

	cmd.Flags().StringVar(&where, "where", "", "CEL expression selecting filters")
	return cmd
}

func selectorHelp() string {
	names := make([]string, 0, len(cel.SelectorExamples))
	for name := range cel.SelectorExamples {
		names = append(names, name)
	}
	sort.Strings(names)

	var b strings.Builder
	for _, name := range names {
		fmt.Fprintf(&b, "  %-18s %s\n", name, cel.SelectorExamples[name])
	}
	return b.String()
}

func newShowCmd(c *cli) *cobra.Command {
	return &cobra.Command{
		Use:   "show <id|key>",
		Short: "Show one filter and its patterns",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			if err := checkOutput(c.output); err != nil {
				return err
			}
			return c.exec(cmd, func(ctx context.Context, app *App) error {
				sf, err := app.Service().GetFilter(ctx, args[0])
				if err != nil {
					return err
				}
				if c.output == outputText {
					renderFilterDetails(cmd.OutOrStdout(), sf)
					return nil
				}
				return encode(cmd.OutOrStdout(), c.output, management.NewFilterDocument(*sf))
			})
		},
	}
}

func newCreateCmd(c *cli) *cobra.Command {
	var (
		fromFile string
		req      management.CreateFilterRequest
		disabled bool
	)

	cmd := &cobra.Command{
		Use:   "create",
		Short: "Create a filter",
		Long: "Create a filter from flags or from a YAML document (--from).\n" +
			"Flags given on the command line override fields of the document.",
		Args: cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			r := req
			if fromFile != "" {
				doc, err := readCreateRequest(fromFile)
				if err != nil {
					return err
				}
				flags := cmd.Flags()
				if flags.Changed("id") {
					doc.ID = req.ID
				}
				if flags.Changed("name") {
					doc.Name = req.Name
				}
				if flags.Changed("description") {
					doc.Description = req.Description
				}
				r = doc
			}
			if cmd.Flags().Changed("disabled") {
				enabled := !disabled
				r.Enabled = &enabled
			}

			return c.exec(cmd, func(ctx context.Context, app *App) error {
				sf, err := app.Service().CreateFilter(ctx, r)
				if err != nil {
					return err
				}
				successColor.Fprintf(cmd.OutOrStdout(), "✓ Filter created: %s (key: %s)\n", sf.Filter.Name, sf.Key)
				return nil
			})
		},
	}

	flags := cmd.Flags()
	flags.StringVar(&fromFile, "from", "", "YAML file with the filter definition")
	flags.StringVar(&req.ID, "id", "", "Filter id (default: random UUID)")
	flags.StringVar(&req.Name, "name", "", "Filter name")
	flags.StringVar(&req.Description, "description", "", "Filter description")
	flags.BoolVar(&disabled, "disabled", false, "Create the filter disabled")
	return cmd
}

func readCreateRequest(path string) (management.CreateFilterRequest, error) {
	var req management.CreateFilterRequest

	data, err := os.ReadFile(path)
	if err != nil {
		return req, pkgerrors.ErrValidation.WithCause(err).WithMessage("cannot read %s", path)
	}
	dec := yaml.NewDecoder(bytes.NewReader(data))
	dec.KnownFields(true)
	if err := dec.Decode(&req); err != nil {
		return req, pkgerrors.ErrValidation.WithCause(err).WithMessage("invalid filter document %s", path)
	}
	return req, nil
}

func newUpdateCmd(c *cli) *cobra.Command {
	var (
		name        string
		description string
		enabled     bool
	)

	cmd := &cobra.Command{
		Use:   "update <id|key>",
		Short: "Change filter name, description or enabled flag",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			var req management.UpdateFilterRequest
			flags := cmd.Flags()
			if flags.Changed("name") {
				req.Name = &name
			}
			if flags.Changed("description") {
				req.Description = &description
			}
			if flags.Changed("enabled") {
				req.Enabled = &enabled
			}

			return c.exec(cmd, func(ctx context.Context, app *App) error {
				sf, err := app.Service().UpdateFilter(ctx, args[0], req)
				if err != nil {
					return err
				}
				successColor.Fprintf(cmd.OutOrStdout(), "✓ Filter updated: %s\n", sf.Filter.Name)
				return nil
			})
		},
	}

	flags := cmd.Flags()
	flags.StringVar(&name, "name", "", "New filter name")
	flags.StringVar(&description, "description", "", "New filter description")
	flags.BoolVar(&enabled, "enabled", true, "Enable or disable the filter")
	return cmd
}

func newDeleteCmd(c *cli) *cobra.Command {
	return &cobra.Command{
		Use:   "delete <id|key>",
		Short: "Delete a filter",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			return c.exec(cmd, func(ctx context.Context, app *App) error {
				if err := app.Service().DeleteFilter(ctx, args[0]); err != nil {
					return err
				}
				successColor.Fprintf(cmd.OutOrStdout(), "✓ Filter deleted: %s\n", args[0])
				return nil
			})
		},
	}
}

type exportDocument struct {
	Filters []management.FilterDocument `json:"filters" yaml:"filters"`
}

func newExportCmd(c *cli) *cobra.Command {
	var file string

	cmd := &cobra.Command{
		Use:   "export [id|key...]",
		Short: "Export filters as YAML or JSON",
		Long:  "Export the named filters, or all filters when none are named.",
		RunE: func(cmd *cobra.Command, args []string) error {
			format := c.output
			if format == outputText {
				format = outputYAML
			}
			if err := checkOutput(format); err != nil {
				return err
			}

			return c.exec(cmd, func(ctx context.Context, app *App) error {
				filters, err := exportFilters(ctx, app.Service(), args)
				if err != nil {
					return err
				}
				doc := exportDocument{Filters: documents(filters)}

				if file == "" {
					return encode(cmd.OutOrStdout(), format, doc)
				}

				var buf bytes.Buffer
				if err := encode(&buf, format, doc); err != nil {
					return err
				}
				if err := os.WriteFile(file, buf.Bytes(), 0o644); err != nil {
					return fmt.Errorf("failed to write %s: %w", file, err)
				}
				successColor.Fprintf(cmd.OutOrStdout(), "✓ Exported %d filters to %s\n", len(filters), file)
				return nil
			})
		},
	}

	cmd.Flags().StringVarP(&file, "file", "f", "", "Write to file instead of stdout")
	return cmd
}

func exportFilters(ctx context.Context, svc management.Service, refs []string) ([]management.StoredFilter, error) {
	if len(refs) == 0 {
		return svc.ListFilters(ctx)
	}
	filters := make([]management.StoredFilter, 0, len(refs))
	for _, ref := range refs {
		sf, err := svc.GetFilter(ctx, ref)
		if err != nil {
			return nil, err
		}
		filters = append(filters, *sf)
	}
	return filters, nil
}
