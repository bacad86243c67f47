package main

import (
	"strings"
	"time"

	"github.com/spf13/cobra"

	"CatalogPoster/internal/domain"
)

func newLogsCmd(c *cli) *cobra.Command {
	var (
		level   string
		typ     string
		runID   string
		since   time.Duration
		limit   int
		cleanup bool
	)
	cmd := &cobra.Command{
		Use:   "logs",
		Short: "Show recent events from the event log",
		Long: `Show recent events from logs.db, newest first.

Examples:
  catalogposter logs --level ERROR --since 24h
  catalogposter logs --type posting --limit 20
  catalogposter logs --cleanup      # Drop events older than the retention`,
		Args: cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			p := c.printer(cmd)
			if cleanup {
				removed, err := c.app.CleanupLogs(cmd.Context())
				if err != nil {
					return err
				}
				p.Success("removed %d events older than %d days", removed, c.cfg.Logging.RetentionDays)
				return nil
			}

			f := domain.EventFilter{
				Level: domain.EventLevel(strings.ToUpper(level)),
				Type:  domain.EventType(strings.ToLower(typ)),
				RunID: runID,
				Limit: limit,
			}
			if since > 0 {
				f.Since = time.Now().Add(-since)
			}
			events, err := c.app.Logs(cmd.Context(), f)
			if err != nil {
				return err
			}
			if len(events) == 0 {
				p.Warning("no events")
				return nil
			}
			p.Table([]string{"time", "level", "type", "message", "run"}, p.eventRows(events))
			return nil
		},
	}
	cmd.Flags().StringVar(&level, "level", "", "DEBUG, INFO, WARNING or ERROR")
	cmd.Flags().StringVar(&typ, "type", "", "system, scraping, posting, error, schedule or category")
	cmd.Flags().StringVar(&runID, "run", "", "only events of this run id")
	cmd.Flags().DurationVar(&since, "since", 0, "only events newer than this")
	cmd.Flags().IntVar(&limit, "limit", 100, "maximum number of events")
	cmd.Flags().BoolVar(&cleanup, "cleanup", false, "remove events older than the retention and exit")
	return cmd
}
