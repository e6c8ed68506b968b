package cli

import (
	"github.com/spf13/cobra"

	"workhours/internal/platform/config"
)

func newPurgeCommand(load func() config.Config) *cobra.Command {
	return &cobra.Command{
		Use:   "purge",
		Short: "Delete expired idempotency keys, job runs and audit events",
		Long: `Apply the configured retention once: IDEMPOTENCY_KEY_TTL, JOB_RUN_RETENTION
and AUDIT_RETENTION. A zero duration keeps that category forever.`,
		Args: cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			ctx := cmd.Context()
			app, err := openApp(ctx, load)
			if err != nil {
				return err
			}
			defer app.Close()

			res, err := app.Purge(ctx)
			if err != nil {
				return err
			}
			return printJSON(cmd.OutOrStdout(), res)
		},
	}
}
