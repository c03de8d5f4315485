package cli

import (
	"fmt"
	"io"
	"text/tabwriter"
	"time"

	"github.com/fatih/color"
	"github.com/spf13/cobra"

	"github.com/spec-kit/workflow-service/internal/domain"
)

func stateCmd(e *env) *cobra.Command {
	return &cobra.Command{
		Use:   "state <ticket-id>",
		Short: "Show the routing state of a ticket",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			rt, err := e.runtime(cmd.Context())
			if err != nil {
				return err
			}
			state, err := rt.Services.Routing.GetRoutingState(cmd.Context(), args[0])
			if err != nil {
				return err
			}
			displayState(cmd.OutOrStdout(), state)
			return nil
		},
	}
}

func historyCmd(e *env) *cobra.Command {
	return &cobra.Command{
		Use:   "history <ticket-id>",
		Short: "Show the workflow audit trail of a ticket",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			rt, err := e.runtime(cmd.Context())
			if err != nil {
				return err
			}
			entries, err := rt.Services.Audit.AuditTrail(cmd.Context(), args[0])
			if err != nil {
				return err
			}
			displayHistory(cmd.OutOrStdout(), args[0], entries)
			return nil
		},
	}
}

func groupsCmd(e *env) *cobra.Command {
	var (
		building string
		all      bool
	)

	cmd := &cobra.Command{
		Use:   "groups",
		Short: "List support groups",
		Long: `List support groups ordered by building and floor.

Examples:
  workflowctl groups
  workflowctl groups --building HQ --all`,
		RunE: func(cmd *cobra.Command, args []string) error {
			rt, err := e.runtime(cmd.Context())
			if err != nil {
				return err
			}
			groups, err := rt.Services.Directory.ListGroups(cmd.Context(), building, all)
			if err != nil {
				return err
			}
			displayGroups(cmd.OutOrStdout(), groups)
			return nil
		},
	}

	cmd.Flags().StringVar(&building, "building", "", "only groups of this building")
	cmd.Flags().BoolVar(&all, "all", false, "include inactive groups")
	return cmd
}

func statusColor(status domain.RoutingStatus) string {
	switch status {
	case domain.RoutingStatusAssigned:
		return color.GreenString(string(status))
	case domain.RoutingStatusEscalated:
		return color.RedString(string(status))
	default:
		return color.YellowString(string(status))
	}
}

func displayState(out io.Writer, state *domain.RoutingState) {
	fmt.Fprintf(out, "Ticket %s\n", state.TicketID)
	fmt.Fprintf(out, "  Status:      %s\n", statusColor(state.Status))
	fmt.Fprintf(out, "  Group:       %d\n", state.CurrentGroupID)
	if state.AssignedMemberID != nil {
		fmt.Fprintf(out, "  Assignee:    member %d\n", *state.AssignedMemberID)
	} else {
		fmt.Fprintf(out, "  Assignee:    -\n")
	}
	fmt.Fprintf(out, "  Escalations: %d\n", state.EscalationCount)
	if state.LastEscalatedAt != nil {
		fmt.Fprintf(out, "  Escalated:   %s\n", state.LastEscalatedAt.Format(time.RFC3339))
	}
	if state.ClaimedAt != nil {
		fmt.Fprintf(out, "  Claimed:     %s\n", state.ClaimedAt.Format(time.RFC3339))
	}
	if state.SyncPending {
		fmt.Fprintf(out, "  %s ticket service not yet updated\n", color.YellowString("⚠"))
	}
}

func displayHistory(out io.Writer, ticketID string, entries []domain.WorkflowLog) {
	if len(entries) == 0 {
		fmt.Fprintf(out, "no workflow history for %s\n", ticketID)
		return
	}
	w := tabwriter.NewWriter(out, 0, 0, 2, ' ', 0)
	fmt.Fprintln(w, "WHEN\tACTION\tGROUP\tMEMBER\tBY\tREASON")
	for _, e := range entries {
		fmt.Fprintf(w, "%s\t%s\t%s\t%s\t%s\t%s\n",
			e.CreatedAt.Format(time.RFC3339),
			e.Action,
			transition(e.FromGroupID, e.ToGroupID),
			transition(e.FromMemberID, e.ToMemberID),
			orDash(e.PerformedBy),
			e.Reason)
	}
	_ = w.Flush()
}

func displayGroups(out io.Writer, groups []domain.SupportGroup) {
	if len(groups) == 0 {
		fmt.Fprintln(out, "no support groups")
		return
	}
	w := tabwriter.NewWriter(out, 0, 0, 2, ' ', 0)
	fmt.Fprintln(w, "ID\tNAME\tBUILDING\tFLOOR\tPARENT\tACTIVE")
	for _, g := range groups {
		parent := "-"
		if g.ParentGroupID != nil {
			parent = fmt.Sprint(*g.ParentGroupID)
		}
		active := color.GreenString("yes")
		if !g.IsActive {
			active = color.RedString("no")
		}
		fmt.Fprintf(w, "%d\t%s\t%s\t%d\t%s\t%s\n", g.ID, g.Name, g.Building, g.Floor, parent, active)
	}
	_ = w.Flush()
}

func transition(from, to *int64) string {
	switch {
	case from == nil && to == nil:
		return "-"
	case from == nil:
		return fmt.Sprintf("→ %d", *to)
	case to == nil:
		return fmt.Sprintf("%d →", *from)
	}
	return fmt.Sprintf("%d → %d", *from, *to)
}

func orDash(s *string) string {
	if s == nil || *s == "" {
		return "-"
	}
	return *s
}
