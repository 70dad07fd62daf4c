package cmd

import (
	"fmt"
	"sort"
	"strings"

	"github.com/spf13/cobra"

	"github.com/dineshreddykolli/mindcare-ai/internal/alerting"
	"github.com/dineshreddykolli/mindcare-ai/internal/ui/theme"
)

var statsCmd = &cobra.Command{
	Use:   "stats",
	Short: "Show alert and caseload statistics",
	RunE: func(cmd *cobra.Command, args []string) error {
		roster, _ := cmd.Flags().GetString("roster")
		e, err := newEnv(cmd, envOpts{rosterFile: roster})
		if err != nil {
			return err
		}
		defer e.Close()

		byStatus := make(map[alerting.Status]int)
		bySeverity := make(map[alerting.Severity]int)
		for _, a := range e.svc.Alerts(alerting.Filter{}) {
			byStatus[a.Status]++
			if a.Status != alerting.StatusResolved {
				bySeverity[a.Severity]++
			}
		}
		usage := e.svc.Capacity()

		if wantJSON(cmd) {
			return printJSON(cmd, map[string]any{
				"alerts_by_status":       byStatus,
				"unresolved_by_severity": bySeverity,
				"caseload_by_therapist":  usage,
			})
		}

		w := cmd.OutOrStdout()
		fmt.Fprintln(w, theme.Title.Render("Alerts"))
		for _, s := range []alerting.Status{alerting.StatusOpen, alerting.StatusAcknowledged, alerting.StatusResolved} {
			fmt.Fprintln(w, theme.Field(string(s), fmt.Sprintf("%d", byStatus[s])))
		}
		fmt.Fprintln(w, theme.Field("unresolved", fmt.Sprintf("%d critical, %d high",
			bySeverity[alerting.SeverityCritical], bySeverity[alerting.SeverityHigh])))

		if len(usage) == 0 {
			fmt.Fprintln(w)
			fmt.Fprintln(w, theme.Hint.Render("Pass --roster to see caseloads."))
			return nil
		}
		ids := make([]string, 0, len(usage))
		for id := range usage {
			ids = append(ids, id)
		}
		sort.Strings(ids)

		fmt.Fprintln(w)
		fmt.Fprintln(w, theme.Title.Render("Caseload"))
		fmt.Fprintf(w, "%-20s  %7s  %5s  %5s\n", "Therapist", "Current", "Max", "Free")
		fmt.Fprintln(w, strings.Repeat("─", 44))
		for _, id := range ids {
			u := usage[id]
			fmt.Fprintf(w, "%-20s  %7d  %5d  %5d\n", truncate(id, 20), u.Current, u.Max, u.Remaining())
		}
		return nil
	},
}

func init() {
	statsCmd.Flags().String("roster", "", "Therapist roster JSON file")
	rootCmd.AddCommand(statsCmd)
}
