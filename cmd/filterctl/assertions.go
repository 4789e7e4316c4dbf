package main

import (
	"context"
	"errors"
	"io/fs"

	"github.com/spf13/cobra"

	"injectionfilter/internal/assertion"
	"injectionfilter/internal/management"
	pkgerrors "injectionfilter/pkg/errors"
)

func newBindCmd(c *cli) *cobra.Command {
	var (
		target string
		url    bool
		body   bool
	)

	cmd := &cobra.Command{
		Use:   "bind <assertion-file> <id|key>",
		Short: "Bind an assertion file to a filter",
		Long: "Point the assertion in <assertion-file> at a stored filter, creating the\n" +
			"file when it does not exist. Only the request message may scan the URL;\n" +
			"for any other message the body is always scanned.",
		Args: cobra.ExactArgs(2),
		RunE: func(cmd *cobra.Command, args []string) error {
			path, ref := args[0], args[1]

			a, err := assertion.Load(path)
			if errors.Is(err, fs.ErrNotExist) {
				a, err = assertion.New(), nil
			}
			if err != nil {
				return err
			}

			flags := cmd.Flags()
			if flags.Changed("target") {
				a.TargetMessageVariable = target
			}
			if flags.Changed("url") {
				a.IncludeURL = url
			}
			if flags.Changed("body") {
				a.IncludeBody = body
			}

			return c.exec(cmd, func(ctx context.Context, app *App) error {
				sf, err := assertion.Bind(ctx, a, app.Service(), ref)
				if err != nil {
					return err
				}
				if err := assertion.Save(path, a); err != nil {
					return err
				}
				successColor.Fprintf(cmd.OutOrStdout(), "✓ %s now checks %s with %s\n", path, a.TargetMessageVariable, sf.Filter.Name)
				return nil
			})
		},
	}

	flags := cmd.Flags()
	flags.StringVar(&target, "target", "", "Message variable to scan (request or a named response)")
	flags.BoolVar(&url, "url", false, "Scan the request URL")
	flags.BoolVar(&body, "body", true, "Scan the message body")
	return cmd
}

type resolvedAssertion struct {
	Assertion *assertion.Assertion      `json:"assertion" yaml:"assertion"`
	Filter    management.FilterDocument `json:"filter" yaml:"filter"`
}

func newResolveCmd(c *cli) *cobra.Command {
	return &cobra.Command{
		Use:   "resolve <assertion-file>",
		Short: "Show the filter an assertion file is bound to",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			if err := checkOutput(c.output); err != nil {
				return err
			}

			a, err := assertion.Load(args[0])
			if errors.Is(err, fs.ErrNotExist) {
				return pkgerrors.ErrNotFound.WithCause(err).WithDetail("path", args[0])
			}
			if err != nil {
				return err
			}
			if err := a.Validate(); err != nil {
				return err
			}

			return c.exec(cmd, func(ctx context.Context, app *App) error {
				sf, err := assertion.Resolve(ctx, a, app.Service())
				if err != nil {
					return err
				}
				if c.output == outputText {
					renderFilterDetails(cmd.OutOrStdout(), sf)
					return nil
				}
				return encode(cmd.OutOrStdout(), c.output, resolvedAssertion{
					Assertion: a,
					Filter:    management.NewFilterDocument(*sf),
				})
			})
		},
	}
}
