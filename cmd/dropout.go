package cmd

import (
	"fmt"
	"io"
	"strings"

	"github.com/spf13/cobra"

	"github.com/dineshreddykolli/mindcare-ai/internal/dropout"
	"github.com/dineshreddykolli/mindcare-ai/internal/intake"
	"github.com/dineshreddykolli/mindcare-ai/internal/triage"
	"github.com/dineshreddykolli/mindcare-ai/internal/ui/theme"
)

var dropoutCmd = &cobra.Command{
	Use:   "dropout",
	Short: "Estimate treatment dropout risk",
}

var dropoutPredictCmd = &cobra.Command{
	Use:   "predict <features-file>",
	Short: "Predict dropout from an engagement feature vector",
	Args:  cobra.ExactArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		raw, err := readArg(args[0])
		if err != nil {
			return err
		}
		patientID, fv, err := intake.ParseFeatures(raw)
		if err != nil {
			return err
		}
		e, err := newEnv(cmd, envOpts{patients: []string{patientID}})
		if err != nil {
			return err
		}
		defer e.Close()

		res, err := e.svc.PredictDropout(cmd.Context(), patientID, fv)
		if err != nil {
			return err
		}
		if wantJSON(cmd) {
			return printJSON(cmd, res)
		}
		printPrediction(cmd.OutOrStdout(), res)
		return nil
	},
}

var dropoutRecordCmd = &cobra.Command{
	Use:   "record <sessions-file>",
	Short: "Record session outcomes and re-predict affected patients",
	Args:  cobra.ExactArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		raw, err := readArg(args[0])
		if err != nil {
			return err
		}
		records, err := intake.ParseSessions(raw)
		if err != nil {
			return err
		}
		var patients []string
		seen := make(map[string]bool)
		for _, r := range records {
			if !seen[r.PatientID] {
				seen[r.PatientID] = true
				patients = append(patients, r.PatientID)
			}
		}

		e, err := newEnv(cmd, envOpts{patients: patients})
		if err != nil {
			return err
		}
		defer e.Close()

		// Only the last outcome per patient is reported; earlier ones are
		// superseded within the same file.
		latest := make(map[string]*triage.PredictionResult)
		for _, r := range records {
			res, err := e.svc.RecordSession(cmd.Context(), r)
			if err != nil {
				return fmt.Errorf("session %s: %w", r.ID, err)
			}
			if res != nil {
				latest[r.PatientID] = res
			}
		}

		var out []*triage.PredictionResult
		for _, id := range patients {
			if res, ok := latest[id]; ok {
				out = append(out, res)
			}
		}
		if wantJSON(cmd) {
			return printJSON(cmd, out)
		}
		w := cmd.OutOrStdout()
		fmt.Fprintf(w, "Recorded %d sessions for %d patients.\n", len(records), len(patients))
		for _, res := range out {
			fmt.Fprintln(w)
			printPrediction(w, res)
		}
		return nil
	},
}

var dropoutModelsCmd = &cobra.Command{
	Use:   "models",
	Short: "List registered dropout models",
	RunE: func(cmd *cobra.Command, args []string) error {
		cfg, err := loadConfig(cmd)
		if err != nil {
			return err
		}
		reg := dropout.NewRegistry()
		if cfg.Dropout.ModelFile != "" {
			if _, err := reg.LoadFile(cfg.Dropout.ModelFile); err != nil {
				return err
			}
		}
		active := cfg.Dropout.ModelVersion
		if active == "" {
			active = reg.Latest().Version
		}
		w := cmd.OutOrStdout()
		for _, v := range reg.Versions() {
			marker := " "
			if v == active {
				marker = "*"
			}
			m, _ := reg.Get(v)
			fmt.Fprintf(w, "%s %-10s  %s\n", marker, v, m.Notes)
		}
		return nil
	},
}

func printPrediction(w io.Writer, res *triage.PredictionResult) {
	p := res.Prediction
	fmt.Fprintln(w, theme.Title.Render("Dropout prediction "+p.ID))
	fmt.Fprintln(w, theme.Field("Patient", p.PatientID))
	prob := fmt.Sprintf("%.1f%%", p.Probability)
	if p.InterventionRecommended {
		prob = theme.Badge(prob+" intervention recommended", theme.Danger)
	}
	fmt.Fprintln(w, theme.Field("Probability", prob))
	fmt.Fprintln(w, theme.Field("Confidence", fmt.Sprintf("%.0f%%", p.Confidence)))
	fmt.Fprintln(w, theme.Field("Model", p.ModelVersion))
	if len(p.RiskFactors) > 0 {
		fmt.Fprintln(w, theme.Field("Factors", strings.Join(p.RiskFactors, "; ")))
	}
	if res.Alert != nil {
		fmt.Fprintln(w)
		printAlert(w, *res.Alert)
	}
}

func init() {
	dropoutCmd.AddCommand(dropoutPredictCmd)
	dropoutCmd.AddCommand(dropoutRecordCmd)
	dropoutCmd.AddCommand(dropoutModelsCmd)
}
