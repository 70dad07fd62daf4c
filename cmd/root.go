package cmd

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"os"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/rs/zerolog"
	"github.com/spf13/cobra"

	"github.com/dineshreddykolli/mindcare-ai/internal/config"
	"github.com/dineshreddykolli/mindcare-ai/internal/intake"
	"github.com/dineshreddykolli/mindcare-ai/internal/llm"
	"github.com/dineshreddykolli/mindcare-ai/internal/logging"
	"github.com/dineshreddykolli/mindcare-ai/internal/metrics"
	"github.com/dineshreddykolli/mindcare-ai/internal/store"
	"github.com/dineshreddykolli/mindcare-ai/internal/triage"
)

var rootCmd = &cobra.Command{
	Use:           "mindcare",
	Short:         "Mental health intake triage",
	Long:          "MindCare scores intake questionnaires, classifies risk, matches patients to therapists and flags dropout risk.",
	SilenceUsage:  true,
	SilenceErrors: true,
}

func Execute() error {
	return rootCmd.Execute()
}

func init() {
	rootCmd.PersistentFlags().String("config", "", "Path to mindcare.yaml (default ./mindcare.yaml)")
	rootCmd.PersistentFlags().String("db", "", "Path to SQLite database file (overrides database.path)")
	rootCmd.PersistentFlags().String("metrics-out", "", "Write Prometheus metrics to this textfile on exit")
	rootCmd.PersistentFlags().Bool("json", false, "Print results as JSON")

	rootCmd.AddCommand(intakeCmd)
	rootCmd.AddCommand(matchCmd)
	rootCmd.AddCommand(dropoutCmd)
	rootCmd.AddCommand(alertsCmd)
	rootCmd.AddCommand(llmCmd)
	rootCmd.AddCommand(versionCmd)
}

// loadConfig reads the config file named by --config.
func loadConfig(cmd *cobra.Command) (config.Config, error) {
	path, _ := cmd.Flags().GetString("config")
	return config.Load(path)
}

// resolveDBPath returns the database path using --db flag (highest priority),
// then database.path from config, then the default XDG path.
func resolveDBPath(cmd *cobra.Command, cfg config.Config) (string, error) {
	if p, _ := cmd.Flags().GetString("db"); p != "" {
		return p, store.EnsureDir(p)
	}
	if p := cfg.Database.Path; p != "" {
		return p, store.EnsureDir(p)
	}
	return store.DefaultDBPath()
}

// openStore opens the database for commands that only read it.
func openStore(cmd *cobra.Command) (*store.Store, error) {
	cfg, err := loadConfig(cmd)
	if err != nil {
		return nil, err
	}
	dbPath, err := resolveDBPath(cmd, cfg)
	if err != nil {
		return nil, fmt.Errorf("resolve database path: %w", err)
	}
	s, err := store.Open(dbPath)
	if err != nil {
		return nil, fmt.Errorf("open database: %w", err)
	}
	return s, nil
}

// envOpts says what a command needs restored before it runs.
type envOpts struct {
	rosterFile string
	patients   []string
}

// env is one command run: config, logger, store and a service resumed from
// the store.
type env struct {
	cfg        config.Config
	logger     zerolog.Logger
	store      *store.Store
	metrics    *metrics.Metrics
	svc        *triage.Service
	metricsOut string
}

func newEnv(cmd *cobra.Command, opts envOpts) (*env, error) {
	ctx := cmd.Context()
	cfg, err := loadConfig(cmd)
	if err != nil {
		return nil, err
	}
	logger := logging.New(cfg.Logging)

	dbPath, err := resolveDBPath(cmd, cfg)
	if err != nil {
		return nil, fmt.Errorf("resolve database path: %w", err)
	}
	st, err := store.Open(dbPath)
	if err != nil {
		return nil, fmt.Errorf("open database: %w", err)
	}

	svcOpts := []triage.Option{
		triage.WithLogger(logger),
		triage.WithSink(triage.NewStoreSink(st)),
	}
	provider, err := llm.NewProvider(ctx, cfg.LLM, st.EventRepo(), logger)
	switch {
	case errors.Is(err, llm.ErrDisabled):
		logger.Debug().Msg("llm disabled, using rule-based explanations")
	case err != nil:
		st.Close()
		return nil, err
	default:
		svcOpts = append(svcOpts, triage.WithProvider(provider))
	}

	m := metrics.New(prometheus.NewRegistry())
	svcOpts = append(svcOpts, triage.WithMetrics(m))

	svc, err := triage.New(cfg, svcOpts...)
	if err != nil {
		st.Close()
		return nil, err
	}
	e := &env{cfg: cfg, logger: logger, store: st, metrics: m, svc: svc}
	e.metricsOut, _ = cmd.Flags().GetString("metrics-out")

	if err := e.restore(ctx, opts); err != nil {
		e.Close()
		return nil, err
	}
	return e, nil
}

func (e *env) restore(ctx context.Context, opts envOpts) error {
	if opts.rosterFile != "" {
		raw, err := os.ReadFile(opts.rosterFile)
		if err != nil {
			return fmt.Errorf("read roster: %w", err)
		}
		roster, err := intake.ParseRoster(raw)
		if err != nil {
			return err
		}
		if err := e.svc.LoadRoster(roster); err != nil {
			return err
		}
	}

	state, err := triage.LoadState(ctx, e.store, opts.patients...)
	if err != nil {
		return err
	}
	// Assignments only matter against a roster; ones for therapists that
	// are not on it cannot hold a slot.
	known := make(map[string]bool)
	for _, t := range e.svc.Roster() {
		known[t.ID] = true
	}
	kept := state.Assignments[:0]
	for _, a := range state.Assignments {
		if known[a.TherapistID] {
			kept = append(kept, a)
		} else if opts.rosterFile != "" {
			e.logger.Warn().Str("assignment_id", a.ID).Str("therapist_id", a.TherapistID).Msg("assignment therapist not on roster, skipped")
		}
	}
	state.Assignments = kept
	return e.svc.Restore(state)
}

// Close drains explanations, writes metrics and closes the store.
func (e *env) Close() {
	e.svc.Close()
	if e.metricsOut != "" {
		if err := e.metrics.WriteTextfile(e.metricsOut); err != nil {
			e.logger.Warn().Err(err).Str("path", e.metricsOut).Msg("failed to write metrics")
		}
	}
	if err := e.store.Close(); err != nil {
		e.logger.Warn().Err(err).Msg("failed to close database")
	}
}

func wantJSON(cmd *cobra.Command) bool {
	v, _ := cmd.Flags().GetBool("json")
	return v
}

func printJSON(cmd *cobra.Command, v any) error {
	enc := json.NewEncoder(cmd.OutOrStdout())
	enc.SetIndent("", "  ")
	return enc.Encode(v)
}

func readArg(path string) ([]byte, error) {
	raw, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("read %s: %w", path, err)
	}
	return raw, nil
}
