package main

import (
	"log/slog"
	"os"

	"github.com/spf13/cobra"

	"CatalogPoster/internal/app"
	"CatalogPoster/internal/config"
	"CatalogPoster/internal/logging"
)

// cli carries state shared by every subcommand once the root pre-run has
// loaded configuration.
type cli struct {
	cfg     config.Config
	logger  *slog.Logger
	app     *app.Application
	noColor bool
	verbose bool
}

func newRootCmd() *cobra.Command {
	c := &cli{}

	root := &cobra.Command{
		Use:   "catalogposter",
		Short: "Post affiliate catalog products to a WordPress blog",
		Long: `catalogposter pages through the affiliate catalog and publishes one blog
post per product, following up to four configured jobs.

Example usage:
  catalogposter run once --job 2     # Run job 2 now
  catalogposter run schedule         # Run the hourly plan until interrupted
  catalogposter run test             # Preview the first post of the active job
  catalogposter rewrite --dry-run    # Match existing posts to catalog products
  catalogposter logs --level ERROR   # Show recent errors`,
		SilenceUsage:  true,
		SilenceErrors: true,
		PersistentPreRunE: func(cmd *cobra.Command, _ []string) error {
			c.cfg = config.Load()
			level := c.cfg.Logging.Level
			if c.verbose {
				level = "debug"
			}
			c.logger = logging.NewWithWriter(cmd.ErrOrStderr(), level)
			c.app = app.New(c.cfg, c.logger)
			return c.app.Open(cmd.Context())
		},
		PersistentPostRunE: func(*cobra.Command, []string) error {
			if c.app == nil {
				return nil
			}
			return c.app.Close()
		},
	}

	root.PersistentFlags().BoolVarP(&c.verbose, "verbose", "v", false, "debug logging")
	root.PersistentFlags().BoolVar(&c.noColor, "no-color", false, "disable colored output")

	root.AddCommand(
		newRunCmd(c),
		newRewriteCmd(c),
		newFloorsCmd(c),
		newActressCmd(c),
		newLogsCmd(c),
		newSettingsCmd(c),
	)
	return root
}

func (c *cli) printer(cmd *cobra.Command) *printer {
	_, noColorEnv := os.LookupEnv("NO_COLOR")
	return newPrinter(cmd.OutOrStdout(), !c.noColor && !noColorEnv)
}
