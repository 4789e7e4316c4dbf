package main

import (
	"bytes"
	"context"
	"os"
	"strconv"

	"github.com/spf13/cobra"
	"gopkg.in/yaml.v3"

	"injectionfilter/internal/management"
	pkgerrors "injectionfilter/pkg/errors"
)

func newPatternCmd(c *cli) *cobra.Command {
	cmd := &cobra.Command{
		Use:   "pattern",
		Short: "Edit the patterns of a filter",
	}
	cmd.AddCommand(
		newPatternUpsertCmd(c),
		newPatternSwapCmd(c),
		newPatternImportCmd(c),
	)
	return cmd
}

func newPatternUpsertCmd(c *cli) *cobra.Command {
	var (
		p        management.PatternInput
		disabled bool
	)

	cmd := &cobra.Command{
		Use:   "upsert <id|key>",
		Short: "Add a pattern, or replace the pattern with the same name",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			input := p
			if cmd.Flags().Changed("disabled") {
				enabled := !disabled
				input.Enabled = &enabled
			}

			return c.exec(cmd, func(ctx context.Context, app *App) error {
				sf, err := app.Service().UpsertPattern(ctx, args[0], input)
				if err != nil {
					return err
				}
				successColor.Fprintf(cmd.OutOrStdout(), "✓ Pattern %s saved in %s (%d patterns)\n",
					input.Name, sf.Filter.Name, sf.Filter.PatternCount())
				return nil
			})
		},
	}

	flags := cmd.Flags()
	flags.StringVar(&p.Name, "name", "", "Pattern name")
	flags.StringVar(&p.Expression, "expression", "", "Pattern expression")
	flags.StringVar(&p.Description, "description", "", "Pattern description")
	flags.BoolVar(&disabled, "disabled", false, "Store the pattern disabled")
	return cmd
}

func newPatternSwapCmd(c *cli) *cobra.Command {
	return &cobra.Command{
		Use:   "swap <id|key> <i> <j>",
		Short: "Swap two patterns by zero-based position",
		Args:  cobra.ExactArgs(3),
		RunE: func(cmd *cobra.Command, args []string) error {
			i, err := parseIndex(args[1])
			if err != nil {
				return err
			}
			j, err := parseIndex(args[2])
			if err != nil {
				return err
			}

			return c.exec(cmd, func(ctx context.Context, app *App) error {
				sf, err := app.Service().SwapPatterns(ctx, args[0], i, j)
				if err != nil {
					return err
				}
				successColor.Fprintf(cmd.OutOrStdout(), "✓ Swapped patterns %d and %d in %s\n", i, j, sf.Filter.Name)
				return nil
			})
		},
	}
}

func parseIndex(s string) (int, error) {
	i, err := strconv.Atoi(s)
	if err != nil {
		return 0, pkgerrors.ErrValidation.WithCause(err).WithMessage("pattern index %q is not a number", s)
	}
	return i, nil
}

// patternFile is the import format. A filter exported with show -o yaml is
// accepted as is; keys other than patterns are ignored.
type patternFile struct {
	Patterns []management.PatternInput `yaml:"patterns"`
}

func newPatternImportCmd(c *cli) *cobra.Command {
	var file string

	cmd := &cobra.Command{
		Use:   "import <id|key>",
		Short: "Replace all patterns of a filter with those in a YAML file",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			patterns, err := readPatternFile(file)
			if err != nil {
				return err
			}

			return c.exec(cmd, func(ctx context.Context, app *App) error {
				sf, err := app.Service().ReplacePatterns(ctx, args[0], patterns)
				if err != nil {
					return err
				}
				successColor.Fprintf(cmd.OutOrStdout(), "✓ Imported %d patterns into %s\n", sf.Filter.PatternCount(), sf.Filter.Name)
				return nil
			})
		},
	}

	cmd.Flags().StringVarP(&file, "file", "f", "", "YAML file with a patterns list")
	_ = cmd.MarkFlagRequired("file")
	return cmd
}

func readPatternFile(path string) ([]management.PatternInput, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, pkgerrors.ErrValidation.WithCause(err).WithMessage("cannot read %s", path)
	}

	var doc patternFile
	if err := yaml.NewDecoder(bytes.NewReader(data)).Decode(&doc); err != nil {
		return nil, pkgerrors.ErrValidation.WithCause(err).WithMessage("invalid pattern file %s", path)
	}
	return doc.Patterns, nil
}
