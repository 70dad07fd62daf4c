package cmd

import (
	"fmt"
	"io"
	"strings"

	"github.com/spf13/cobra"

	"github.com/dineshreddykolli/mindcare-ai/internal/intake"
	"github.com/dineshreddykolli/mindcare-ai/internal/screening"
	"github.com/dineshreddykolli/mindcare-ai/internal/triage"
	"github.com/dineshreddykolli/mindcare-ai/internal/ui/theme"
)

var intakeCmd = &cobra.Command{
	Use:   "intake",
	Short: "Score intake questionnaires",
}

var intakeScoreCmd = &cobra.Command{
	Use:   "score <file>",
	Short: "Score one intake and classify its risk",
	Args:  cobra.ExactArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		raw, err := readArg(args[0])
		if err != nil {
			return err
		}
		in, err := intake.ParseIntake(raw)
		if err != nil {
			return err
		}

		e, err := newEnv(cmd, envOpts{})
		if err != nil {
			return err
		}
		defer e.Close()

		res, err := e.svc.ScoreIntake(cmd.Context(), in)
		if err != nil {
			return err
		}
		if wantJSON(cmd) {
			return printJSON(cmd, res)
		}
		printIntakeResult(cmd.OutOrStdout(), res)
		return nil
	},
}

var intakeBatchCmd = &cobra.Command{
	Use:   "batch <file>...",
	Short: "Score several intakes concurrently",
	Args:  cobra.MinimumNArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		// Unparseable files are reported with the rest rather than
		// aborting the batch.
		intakes := make([]*screening.IntakeResponse, len(args))
		parseErrs := make([]error, len(args))
		var valid []*screening.IntakeResponse
		var index []int
		for i, path := range args {
			raw, err := readArg(path)
			if err == nil {
				intakes[i], err = intake.ParseIntake(raw)
			}
			if err != nil {
				parseErrs[i] = err
				continue
			}
			valid = append(valid, intakes[i])
			index = append(index, i)
		}

		e, err := newEnv(cmd, envOpts{})
		if err != nil {
			return err
		}
		defer e.Close()

		results := make([]triage.BatchResult, len(args))
		for i := range args {
			results[i] = triage.BatchResult{Index: i, Err: parseErrs[i]}
		}
		for _, r := range e.svc.ScoreBatch(cmd.Context(), valid) {
			results[index[r.Index]].Result, results[index[r.Index]].Err = r.Result, r.Err
		}

		failed := 0
		type row struct {
			File   string               `json:"file"`
			Result *triage.IntakeResult `json:"result,omitempty"`
			Error  string               `json:"error,omitempty"`
		}
		rows := make([]row, len(args))
		for i, r := range results {
			rows[i] = row{File: args[i], Result: r.Result}
			if r.Err != nil {
				rows[i].Error = r.Err.Error()
				failed++
			}
		}

		if wantJSON(cmd) {
			if err := printJSON(cmd, rows); err != nil {
				return err
			}
		} else {
			w := cmd.OutOrStdout()
			fmt.Fprintf(w, "%-32s  %-10s  %6s  %s\n", "File", "Level", "Score", "Alert")
			fmt.Fprintln(w, strings.Repeat("─", 72))
			for _, r := range rows {
				if r.Error != "" {
					fmt.Fprintf(w, "%-32s  %s\n", truncate(r.File, 32), theme.Badge("error: "+r.Error, theme.Critical))
					continue
				}
				a := r.Result.Assessment
				alert := "-"
				if r.Result.Alert != nil {
					alert = string(r.Result.Alert.Type)
				}
				fmt.Fprintf(w, "%-32s  %-10s  %6.1f  %s\n", truncate(r.File, 32), theme.Level(string(a.Level)), a.Score, alert)
			}
		}
		if failed > 0 {
			return fmt.Errorf("%d of %d intakes failed", failed, len(args))
		}
		return nil
	},
}

func printIntakeResult(w io.Writer, res *triage.IntakeResult) {
	a := res.Assessment
	fmt.Fprintln(w, theme.Title.Render("Risk assessment "+a.ID))
	fmt.Fprintln(w, theme.Field("Patient", a.PatientID))
	fmt.Fprintln(w, theme.Field("Level", theme.Level(string(a.Level))))
	fmt.Fprintln(w, theme.Field("Score", fmt.Sprintf("%.1f / 100", a.Score)))
	fmt.Fprintln(w, theme.Field("Urgency", a.Urgency))
	fmt.Fprintln(w, theme.Field("PHQ-9", fmt.Sprintf("%d (%s)", a.Scores.Depression, a.Scores.DepressionBand)))
	fmt.Fprintln(w, theme.Field("GAD-7", fmt.Sprintf("%d (%s)", a.Scores.Anxiety, a.Scores.AnxietyBand)))
	if a.Scores.SelfHarm {
		fmt.Fprintln(w, theme.Field("Self-harm", theme.Badge(fmt.Sprintf("item 9 answered %d", a.Scores.SelfHarmAnswer), theme.Critical)))
	}
	if len(a.Keywords) > 0 {
		fmt.Fprintln(w, theme.Field("Crisis terms", strings.Join(a.Keywords, ", ")))
	}
	if res.Alert != nil {
		fmt.Fprintln(w)
		printAlert(w, *res.Alert)
	}
}

func init() {
	intakeCmd.AddCommand(intakeScoreCmd)
	intakeCmd.AddCommand(intakeBatchCmd)
}
