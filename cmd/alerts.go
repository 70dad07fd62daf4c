package cmd

import (
	"fmt"
	"io"
	"strings"

	"github.com/spf13/cobra"

	"github.com/dineshreddykolli/mindcare-ai/internal/alerting"
	"github.com/dineshreddykolli/mindcare-ai/internal/fault"
	"github.com/dineshreddykolli/mindcare-ai/internal/store"
	"github.com/dineshreddykolli/mindcare-ai/internal/ui/theme"
)

var alertsCmd = &cobra.Command{
	Use:   "alerts",
	Short: "List and work clinical alerts",
}

var alertsListCmd = &cobra.Command{
	Use:   "list",
	Short: "List alerts, newest first",
	RunE: func(cmd *cobra.Command, args []string) error {
		status, _ := cmd.Flags().GetString("status")
		patient, _ := cmd.Flags().GetString("patient")
		limit, _ := cmd.Flags().GetInt("limit")
		switch alerting.Status(status) {
		case "", alerting.StatusOpen, alerting.StatusAcknowledged, alerting.StatusResolved:
		default:
			return fault.Invalid("status", "unknown alert status %q", status)
		}

		s, err := openStore(cmd)
		if err != nil {
			return err
		}
		defer s.Close()

		alerts, err := s.Alerts().List(cmd.Context(), store.AlertQuery{
			Status:    alerting.Status(status),
			PatientID: patient,
			Limit:     limit,
		})
		if err != nil {
			return err
		}
		if wantJSON(cmd) {
			return printJSON(cmd, alerts)
		}

		w := cmd.OutOrStdout()
		if len(alerts) == 0 {
			fmt.Fprintln(w, "No alerts found.")
			return nil
		}
		fmt.Fprintf(w, "%-36s  %-16s  %-14s  %-16s  %-10s  %s\n",
			"ID", "Created", "Patient", "Type", "Severity", "Status")
		fmt.Fprintln(w, strings.Repeat("─", 110))
		for _, a := range alerts {
			fmt.Fprintf(w, "%-36s  %-16s  %-14s  %-16s  %s  %s\n",
				a.ID,
				a.CreatedAt.Local().Format("2006-01-02 15:04"),
				truncate(a.PatientID, 14),
				a.Type,
				theme.Level(string(a.Severity)),
				theme.Status(string(a.Status)),
			)
		}
		return nil
	},
}

var alertsAckCmd = &cobra.Command{
	Use:   "ack <alert-id>",
	Short: "Acknowledge an open alert",
	Args:  cobra.ExactArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		by, _ := cmd.Flags().GetString("by")
		if by == "" {
			return fault.Invalid("by", "--by is required")
		}
		e, err := newEnv(cmd, envOpts{})
		if err != nil {
			return err
		}
		defer e.Close()

		a, err := e.svc.AcknowledgeAlert(cmd.Context(), args[0], by)
		if err != nil {
			return err
		}
		if wantJSON(cmd) {
			return printJSON(cmd, a)
		}
		printAlert(cmd.OutOrStdout(), *a)
		return nil
	},
}

var alertsResolveCmd = &cobra.Command{
	Use:   "resolve <alert-id>",
	Short: "Resolve an open or acknowledged alert",
	Args:  cobra.ExactArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		notes, _ := cmd.Flags().GetString("notes")
		e, err := newEnv(cmd, envOpts{})
		if err != nil {
			return err
		}
		defer e.Close()

		a, err := e.svc.ResolveAlert(cmd.Context(), args[0], notes)
		if err != nil {
			return err
		}
		if wantJSON(cmd) {
			return printJSON(cmd, a)
		}
		printAlert(cmd.OutOrStdout(), *a)
		return nil
	},
}

func printAlert(w io.Writer, a alerting.Alert) {
	body := []string{
		theme.Level(string(a.Severity)) + "  " + theme.Title.Render(a.Title),
		a.Description,
		theme.Field("Alert", a.ID),
		theme.Field("Status", theme.Status(string(a.Status))),
	}
	if a.AcknowledgedBy != "" {
		body = append(body, theme.Field("Acknowledged", a.AcknowledgedBy))
	}
	if a.ResolutionNotes != "" {
		body = append(body, theme.Field("Resolution", a.ResolutionNotes))
	}
	fmt.Fprintln(w, theme.Card.Render(strings.Join(body, "\n")))
}

func init() {
	alertsListCmd.Flags().String("status", "", "Filter by status (open, acknowledged, resolved)")
	alertsListCmd.Flags().String("patient", "", "Filter by patient ID")
	alertsListCmd.Flags().IntP("limit", "n", 50, "Number of alerts to show")
	alertsAckCmd.Flags().String("by", "", "Staff member acknowledging the alert")
	alertsResolveCmd.Flags().String("notes", "", "Resolution notes")

	alertsCmd.AddCommand(alertsListCmd)
	alertsCmd.AddCommand(alertsAckCmd)
	alertsCmd.AddCommand(alertsResolveCmd)
}
