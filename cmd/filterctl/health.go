package main

import (
	"context"

	"github.com/spf13/cobra"

	pkgerrors "injectionfilter/pkg/errors"
	"injectionfilter/pkg/health"
)

func newHealthCmd(c *cli) *cobra.Command {
	return &cobra.Command{
		Use:   "health",
		Short: "Check the filter store and its connections",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			if err := checkOutput(c.output); err != nil {
				return err
			}
			return c.exec(cmd, func(ctx context.Context, app *App) error {
				h := app.Health(ctx)

				if c.output == outputText {
					renderHealth(cmd.OutOrStdout(), h)
				} else if err := encode(cmd.OutOrStdout(), c.output, h); err != nil {
					return err
				}

				if h.Status == health.StatusUnhealthy {
					return pkgerrors.ErrStoreUnavailable.WithMessage("filter store is unhealthy")
				}
				return nil
			})
		},
	}
}
