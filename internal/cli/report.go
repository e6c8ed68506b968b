package cli

import (
	"context"
	"fmt"
	"os"
	"path/filepath"
	"strings"
	"time"

	"github.com/spf13/cobra"

	"workhours/internal/domain/report"
	"workhours/internal/platform/clock"
	"workhours/internal/platform/config"
	"workhours/internal/platform/jobs"
)

func newReportCommand(load func() config.Config) *cobra.Command {
	cmd := &cobra.Command{
		Use:   "report",
		Short: "Weekly work hours report",
	}
	cmd.AddCommand(newReportSendCommand(load), newReportExportCommand(load))
	return cmd
}

func newReportSendCommand(load func() config.Config) *cobra.Command {
	var weekOf string
	cmd := &cobra.Command{
		Use:   "send",
		Short: "Build the weekly report and email it once",
		Long: `Build the weekly report and email it to REPORT_RECIPIENT.
Without --week-of the report covers the same week the scheduled run would.`,
		Args: cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			ctx := cmd.Context()
			app, err := openApp(ctx, load)
			if err != nil {
				return err
			}
			defer app.Close()

			var day time.Time
			if strings.TrimSpace(weekOf) != "" {
				if day, err = clock.ParseDate(weekOf, app.Location); err != nil {
					return fmt.Errorf("--week-of: %w", err)
				}
			}
			outcome, err := app.Jobs.RunNow(ctx, jobs.JobWeeklyReport, func(ctx context.Context) (any, error) {
				if day.IsZero() {
					return app.Reports.SendWeekly(ctx, report.TriggerCLI)
				}
				return app.Reports.SendWeekOf(ctx, report.TriggerCLI, day)
			})
			if err != nil {
				return err
			}
			return printJSON(cmd.OutOrStdout(), outcome)
		},
	}
	cmd.Flags().StringVar(&weekOf, "week-of", "", "any date (YYYY-MM-DD) inside the Monday..Friday week to report")
	return cmd
}

func newReportExportCommand(load func() config.Config) *cobra.Command {
	var weekOf, out string
	cmd := &cobra.Command{
		Use:   "export",
		Short: "Write the weekly workbook to a file instead of emailing it",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			ctx := cmd.Context()
			app, err := openApp(ctx, load)
			if err != nil {
				return err
			}
			defer app.Close()

			var book report.Workbook
			if strings.TrimSpace(weekOf) != "" {
				day, err := clock.ParseDate(weekOf, app.Location)
				if err != nil {
					return fmt.Errorf("--week-of: %w", err)
				}
				book, err = app.Reports.BuildWeekOf(ctx, day)
				if err != nil {
					return err
				}
			} else {
				start, end := report.WeeklyWindow(app.Reports.Clock.Now(), app.Location)
				if book, err = app.Reports.Build(ctx, start, end); err != nil {
					return err
				}
			}

			path := out
			if path == "" {
				path = book.Filename
			} else if info, statErr := os.Stat(path); statErr == nil && info.IsDir() {
				path = filepath.Join(path, book.Filename)
			}
			if err := os.WriteFile(path, book.Data, 0o644); err != nil {
				return err
			}
			fmt.Fprintf(cmd.OutOrStdout(), "wrote %s (%d employees, %d rows)\n", path, len(book.Report.Employees), book.Report.RowCount())
			return nil
		},
	}
	cmd.Flags().StringVar(&weekOf, "week-of", "", "any date (YYYY-MM-DD) inside the Monday..Friday week to export")
	cmd.Flags().StringVarP(&out, "out", "o", "", "output file or directory (default: <label>.xlsx in the working directory)")
	return cmd
}
