package main

import (
	"fmt"
	"sort"

	"github.com/spf13/cobra"

	"CatalogPoster/internal/domain"
	"CatalogPoster/internal/usecase"
)

func newRunCmd(c *cli) *cobra.Command {
	cmd := &cobra.Command{
		Use:   "run",
		Short: "Run jobs once, on schedule, or as a preview",
	}
	cmd.AddCommand(newRunOnceCmd(c), newRunScheduleCmd(c), newRunTestCmd(c))
	return cmd
}

func newRunOnceCmd(c *cli) *cobra.Command {
	var slot int
	cmd := &cobra.Command{
		Use:   "once",
		Short: "Run one job to completion",
		Long: `Run one job to completion and print a summary.

Examples:
  catalogposter run once            # Run the active job
  catalogposter run once --job 3    # Run job 3`,
		Args: cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			p := c.printer(cmd)
			result, err := c.app.RunOnce(cmd.Context(), slot)
			if result.RunID != "" {
				p.Table([]string{"field", "value"}, runSummaryRows(result))
				printRunErrors(p, result)
			}
			if err != nil {
				return err
			}
			switch {
			case result.Cancelled:
				p.Warning("run cancelled after %d posts", len(result.PostIDs))
			case len(result.PostIDs) == 0:
				p.Warning("no posts created or updated")
			default:
				p.Success("%d posts created or updated", len(result.PostIDs))
			}
			return nil
		},
	}
	cmd.Flags().IntVarP(&slot, "job", "j", 0, "job slot 1-4 (default: active job)")
	return cmd
}

func printRunErrors(p *printer, result domain.RunResult) {
	kinds := make([]string, 0, len(result.LastErrors))
	for kind := range result.LastErrors {
		kinds = append(kinds, string(kind))
	}
	sort.Strings(kinds)
	for _, kind := range kinds {
		p.Error("%s: %s", kind, result.LastErrors[domain.ErrorKind(kind)])
	}
}

func newRunScheduleCmd(c *cli) *cobra.Command {
	return &cobra.Command{
		Use:   "schedule",
		Short: "Run the hourly plan and the control server until interrupted",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			c.printer(cmd).Success("scheduler running in %s (control on %s)", c.cfg.Scheduler.Location(), c.cfg.Control.Addr)
			return c.app.Schedule(cmd.Context())
		},
	}
}

func newRunTestCmd(c *cli) *cobra.Command {
	var slot int
	cmd := &cobra.Command{
		Use:   "test",
		Short: "Preview the first post a job would publish without touching the blog",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			preview, err := c.app.RunTest(cmd.Context(), slot)
			if err != nil {
				return err
			}
			fmt.Fprint(cmd.OutOrStdout(), preview.String())
			if !preview.Found {
				c.printer(cmd).Warning("no items matched the job's search")
			}
			return nil
		},
	}
	cmd.Flags().IntVarP(&slot, "job", "j", 0, "job slot 1-4 (default: active job)")
	return cmd
}

func newRewriteCmd(c *cli) *cobra.Command {
	var (
		slot   int
		opts   usecase.ReconcileOptions
		floors []string
	)
	cmd := &cobra.Command{
		Use:   "rewrite",
		Short: "Re-render existing posts from the catalog product matching their code",
		Long: `Walk every existing post, extract a product code from its slug or title,
look the code up in the catalog and rewrite the post with the job's templates.

Examples:
  catalogposter rewrite --dry-run           # Report matches only
  catalogposter rewrite --job 2 --limit 50  # Rewrite the first 50 posts with job 2`,
		Args: cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			p := c.printer(cmd)
			opts.Floors = floors
			report, err := c.app.Rewrite(cmd.Context(), slot, opts)
			if len(report.Entries) > 0 {
				p.Table([]string{"post", "slug", "code", "floor", "content id", "status", "error"}, p.reconcileRows(report))
			}
			if err != nil {
				return err
			}
			p.Success("rewritten %d, matched %d, no code %d, not found %d, failed %d",
				report.Counts[usecase.ReconcileRewritten],
				report.Counts[usecase.ReconcileMatched],
				report.Counts[usecase.ReconcileNoCode],
				report.Counts[usecase.ReconcileNotFound],
				report.Counts[usecase.ReconcileFailed])
			return nil
		},
	}
	cmd.Flags().IntVarP(&slot, "job", "j", 0, "job slot whose templates are used (default: active job)")
	cmd.Flags().BoolVar(&opts.DryRun, "dry-run", false, "report matches without writing")
	cmd.Flags().IntVar(&opts.Limit, "limit", 0, "examine at most this many posts")
	cmd.Flags().StringSliceVar(&floors, "floors", usecase.DefaultReconcileFloors, "floor fallback order")
	return cmd
}
