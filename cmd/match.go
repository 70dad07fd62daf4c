package cmd

import (
	"errors"
	"fmt"
	"io"
	"strings"

	"github.com/spf13/cobra"

	"github.com/dineshreddykolli/mindcare-ai/internal/fault"
	"github.com/dineshreddykolli/mindcare-ai/internal/intake"
	"github.com/dineshreddykolli/mindcare-ai/internal/matching"
	"github.com/dineshreddykolli/mindcare-ai/internal/triage"
	"github.com/dineshreddykolli/mindcare-ai/internal/ui/theme"
)

var matchCmd = &cobra.Command{
	Use:   "match",
	Short: "Rank therapists and manage assignments",
}

// patientFromIntake scores the intake file and builds the ranking input
// from the resulting assessment.
func patientFromIntake(cmd *cobra.Command, e *env, path string) (matching.Patient, error) {
	raw, err := readArg(path)
	if err != nil {
		return matching.Patient{}, err
	}
	in, err := intake.ParseIntake(raw)
	if err != nil {
		return matching.Patient{}, err
	}
	res, err := e.svc.ScoreIntake(cmd.Context(), in)
	if err != nil {
		return matching.Patient{}, err
	}
	return triage.PatientFor(res.Assessment, in), nil
}

func rosterFlag(cmd *cobra.Command) (string, error) {
	p, _ := cmd.Flags().GetString("roster")
	if p == "" {
		return "", fault.Invalid("roster", "--roster is required")
	}
	return p, nil
}

var matchRankCmd = &cobra.Command{
	Use:   "rank <intake-file>",
	Short: "Score an intake and rank the roster for it",
	Args:  cobra.ExactArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		roster, err := rosterFlag(cmd)
		if err != nil {
			return err
		}
		e, err := newEnv(cmd, envOpts{rosterFile: roster})
		if err != nil {
			return err
		}
		defer e.Close()

		p, err := patientFromIntake(cmd, e, args[0])
		if err != nil {
			return err
		}
		ranking, err := e.svc.Rank(cmd.Context(), p)
		if err != nil {
			return err
		}
		if wantJSON(cmd) {
			return printJSON(cmd, ranking)
		}
		printRanking(cmd.OutOrStdout(), p, ranking)
		return nil
	},
}

var matchAutoCmd = &cobra.Command{
	Use:   "auto <intake-file>",
	Short: "Score an intake and assign the best available therapist",
	Args:  cobra.ExactArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		roster, err := rosterFlag(cmd)
		if err != nil {
			return err
		}
		by, _ := cmd.Flags().GetString("by")
		e, err := newEnv(cmd, envOpts{rosterFile: roster})
		if err != nil {
			return err
		}
		defer e.Close()

		p, err := patientFromIntake(cmd, e, args[0])
		if err != nil {
			return err
		}
		res, err := e.svc.AutoAssign(cmd.Context(), p, by)
		var noCap *fault.ErrNoCapacity
		if errors.As(err, &noCap) {
			if wantJSON(cmd) {
				_ = printJSON(cmd, res)
			} else {
				printRanking(cmd.OutOrStdout(), p, res.Ranking)
			}
			return err
		}
		if err != nil {
			return err
		}
		if wantJSON(cmd) {
			return printJSON(cmd, res)
		}
		w := cmd.OutOrStdout()
		printRanking(w, p, res.Ranking)
		fmt.Fprintln(w)
		printAssignment(w, *res.Assignment)
		return nil
	},
}

var matchAssignCmd = &cobra.Command{
	Use:   "assign <patient-id> <therapist-id>",
	Short: "Assign a patient to a named therapist",
	Args:  cobra.ExactArgs(2),
	RunE: func(cmd *cobra.Command, args []string) error {
		roster, err := rosterFlag(cmd)
		if err != nil {
			return err
		}
		by, _ := cmd.Flags().GetString("by")
		e, err := newEnv(cmd, envOpts{rosterFile: roster, patients: []string{args[0]}})
		if err != nil {
			return err
		}
		defer e.Close()

		asg, err := e.svc.Assign(cmd.Context(), matching.Request{
			PatientID:   args[0],
			TherapistID: args[1],
			AssignedBy:  by,
		})
		if err != nil {
			return err
		}
		if wantJSON(cmd) {
			return printJSON(cmd, asg)
		}
		printAssignment(cmd.OutOrStdout(), *asg)
		return nil
	},
}

var matchEndCmd = &cobra.Command{
	Use:   "end <assignment-id>",
	Short: "End an active assignment and free its slot",
	Args:  cobra.ExactArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		roster, err := rosterFlag(cmd)
		if err != nil {
			return err
		}
		reason, _ := cmd.Flags().GetString("reason")
		e, err := newEnv(cmd, envOpts{rosterFile: roster})
		if err != nil {
			return err
		}
		defer e.Close()

		asg, err := e.svc.EndAssignment(cmd.Context(), args[0], reason)
		if err != nil {
			return err
		}
		if wantJSON(cmd) {
			return printJSON(cmd, asg)
		}
		printAssignment(cmd.OutOrStdout(), *asg)
		return nil
	},
}

func printRanking(w io.Writer, p matching.Patient, r matching.Ranking) {
	fmt.Fprintln(w, theme.Title.Render("Matches for "+p.ID))
	fmt.Fprintln(w, theme.Field("Level", theme.Level(string(p.Level))))
	if len(p.Needs) > 0 {
		fmt.Fprintln(w, theme.Field("Needs", strings.Join(p.Needs, ", ")))
	}
	fmt.Fprintln(w)
	if len(r.Candidates) == 0 {
		fmt.Fprintln(w, theme.Hint.Render("No therapist can take this patient."))
	} else {
		fmt.Fprintf(w, "%-4s  %-20s  %6s  %5s  %s\n", "Rank", "Therapist", "Score", "Free", "Rules")
		fmt.Fprintln(w, strings.Repeat("─", 72))
		for i, c := range r.Candidates {
			fmt.Fprintf(w, "%-4d  %-20s  %6.1f  %5d  %s\n",
				i+1, truncate(c.TherapistID, 20), c.Score, c.CapacityRemaining, strings.Join(c.Fired(), ", "))
		}
	}
	if len(r.Excluded) > 0 {
		fmt.Fprintln(w)
		for _, x := range r.Excluded {
			fmt.Fprintln(w, theme.Hint.Render(fmt.Sprintf("excluded %s: %s", x.TherapistID, x.Reason)))
		}
	}
}

func printAssignment(w io.Writer, a matching.Assignment) {
	fmt.Fprintln(w, theme.Title.Render("Assignment "+a.ID))
	fmt.Fprintln(w, theme.Field("Patient", a.PatientID))
	fmt.Fprintln(w, theme.Field("Therapist", a.TherapistID))
	fmt.Fprintln(w, theme.Field("Status", string(a.Status)))
	if a.MatchScore > 0 {
		fmt.Fprintln(w, theme.Field("Match score", fmt.Sprintf("%.1f", a.MatchScore)))
	}
	fmt.Fprintln(w, theme.Field("Assigned", a.AssignedAt.Local().Format("2006-01-02 15:04")+" by "+a.AssignedBy))
	if a.EndedAt != nil {
		fmt.Fprintln(w, theme.Field("Ended", a.EndedAt.Local().Format("2006-01-02 15:04")+" "+a.EndReason))
	}
}

func init() {
	for _, c := range []*cobra.Command{matchRankCmd, matchAutoCmd, matchAssignCmd, matchEndCmd} {
		c.Flags().String("roster", "", "Therapist roster JSON file")
		matchCmd.AddCommand(c)
	}
	matchAutoCmd.Flags().String("by", "system", "Who made the assignment")
	matchAssignCmd.Flags().String("by", "admin", "Who made the assignment")
	matchEndCmd.Flags().String("reason", "", "Why the assignment ended")
}
