package cli

import (
	"fmt"
	"strings"

	"github.com/fatih/color"
	"github.com/spf13/cobra"
)

func reconcileCmd(e *env) *cobra.Command {
	var limit int

	cmd := &cobra.Command{
		Use:   "reconcile",
		Short: "Replay pending ticket-service notifications",
		Long: `Drain up to --limit queued notifications, deliver them in order per ticket
and clear the sync_pending flag of tickets that are fully synchronised.

Examples:
  workflowctl reconcile
  workflowctl reconcile --limit 500`,
		RunE: func(cmd *cobra.Command, args []string) error {
			rt, err := e.runtime(cmd.Context())
			if err != nil {
				return err
			}
			if limit <= 0 {
				limit = rt.Config.Workflow.ReconcileBatchSize
			}
			report, err := rt.Reconciler.Run(cmd.Context(), limit)
			if err != nil {
				return err
			}

			out := cmd.OutOrStdout()
			fmt.Fprintf(out, "processed %d, delivered %s, requeued %s, abandoned %s\n",
				report.Processed,
				color.GreenString("%d", report.Delivered),
				color.YellowString("%d", report.Requeued),
				color.RedString("%d", report.Abandoned))
			if len(report.Cleared) > 0 {
				fmt.Fprintf(out, "%s in sync: %s\n", color.GreenString("✓"), strings.Join(report.Cleared, ", "))
			}
			if len(report.StillDirty) > 0 {
				fmt.Fprintf(out, "%s still pending: %s\n", color.YellowString("⚠"), strings.Join(report.StillDirty, ", "))
			}
			return nil
		},
	}

	cmd.Flags().IntVar(&limit, "limit", 0, "maximum notifications to replay (default RECONCILE_BATCH_SIZE)")
	return cmd
}
