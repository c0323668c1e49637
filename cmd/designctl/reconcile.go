package main

import (
	"context"
	"fmt"
	"time"

	"github.com/jo-hoe/designcase/internal/core"
	"github.com/spf13/cobra"
)

var (
	reconcileDryRun      bool
	reconcileConcurrency int
	reconcileMinAge      time.Duration
)

var reconcileCmd = &cobra.Command{
	Use:   "reconcile",
	Short: "Delete stored objects no design file references",
	Long: `Compare every object in storage with the paths recorded on design files
and delete the unreferenced ones. Template previews and objects younger than
--min-age are kept.`,
	Args: cobra.NoArgs,
	RunE: runReconcile,
}

func init() {
	reconcileCmd.Flags().BoolVar(&reconcileDryRun, "dry-run", false, "only report orphaned objects")
	reconcileCmd.Flags().IntVar(&reconcileConcurrency, "concurrency", 4, "parallel deletes")
	reconcileCmd.Flags().DurationVar(&reconcileMinAge, "min-age", time.Hour, "skip objects modified more recently than this")
}

func runReconcile(cmd *cobra.Command, args []string) error {
	return withCoreService(cmd, func(ctx context.Context, service *core.CoreService) error {
		report, err := service.ReconcileOrphans(ctx, core.ReconcileOptions{
			DryRun:      reconcileDryRun,
			Concurrency: reconcileConcurrency,
			MinAge:      reconcileMinAge,
		})
		if err != nil {
			return err
		}

		out := cmd.OutOrStdout()
		for _, key := range report.Orphaned {
			fmt.Fprintln(out, key)
		}
		fmt.Fprintf(out, "scanned %d, referenced %d, orphaned %d, deleted %d, failed %d\n",
			report.Scanned, report.Referenced, len(report.Orphaned), report.Deleted, report.Failed)
		if report.Failed > 0 {
			return fmt.Errorf("%d objects could not be deleted", report.Failed)
		}
		return nil
	})
}
