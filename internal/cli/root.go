// Package cli holds the workhours command tree.
package cli

import (
	"context"
	"encoding/json"
	"fmt"
	"io"

	"github.com/spf13/cobra"

	"workhours/internal/app/server"
	"workhours/internal/platform/config"
	"workhours/internal/platform/logging"
)

// NewRootCommand builds the command tree. load supplies configuration so
// tests can bypass the environment.
func NewRootCommand(load func() config.Config) *cobra.Command {
	if load == nil {
		load = config.Load
	}
	root := &cobra.Command{
		Use:           "workhours",
		Short:         "Time tracking for field crews",
		Long:          "workhours records daily project hours, emails weekly reports and submits inspection forms.",
		SilenceUsage:  true,
		SilenceErrors: true,
	}
	root.AddCommand(
		newServeCommand(load),
		newReportCommand(load),
		newRepairCommand(load),
		newPurgeCommand(load),
		newUserCommand(load),
	)
	return root
}

// setup loads and validates configuration and installs the logger.
func setup(load func() config.Config) (config.Config, error) {
	cfg := load()
	logging.Setup(cfg.Environment, cfg.LogLevel)
	if err := cfg.Validate(); err != nil {
		return config.Config{}, fmt.Errorf("invalid configuration: %w", err)
	}
	return cfg, nil
}

// openApp builds the application without starting the HTTP server or the
// scheduler, for one-shot commands.
func openApp(ctx context.Context, load func() config.Config, opts ...server.Option) (*server.App, error) {
	cfg, err := setup(load)
	if err != nil {
		return nil, err
	}
	return server.New(ctx, cfg, opts...)
}

func printJSON(w io.Writer, value any) error {
	enc := json.NewEncoder(w)
	enc.SetIndent("", "  ")
	return enc.Encode(value)
}
