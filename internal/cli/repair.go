package cli

import (
	"context"

	"github.com/spf13/cobra"

	"workhours/internal/platform/config"
	"workhours/internal/platform/jobs"
)

func newRepairCommand(load func() config.Config) *cobra.Command {
	return &cobra.Command{
		Use:   "repair-projects",
		Short: "Rewrite stored project lists in the canonical encoding",
		Long: `Scan every work hours record, decode its projects value however it was
stored, and write it back as a single-level JSON array with recomputed totals.
Records that cannot be decoded are listed and left untouched.`,
		Args: cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			ctx := cmd.Context()
			app, err := openApp(ctx, load)
			if err != nil {
				return err
			}
			defer app.Close()

			summary, err := app.Jobs.RunNow(ctx, jobs.JobRepairProjects, func(ctx context.Context) (any, error) {
				return app.Ledger.RepairProjects(ctx)
			})
			if err != nil {
				return err
			}
			return printJSON(cmd.OutOrStdout(), summary)
		},
	}
}
