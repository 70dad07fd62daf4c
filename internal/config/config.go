// Package config loads the layered mindcare configuration: built-in
// defaults, then mindcare.yaml, then MINDCARE_* environment variables.
package config

import (
	"errors"
	"fmt"
	"strings"

	"github.com/spf13/viper"

	"github.com/dineshreddykolli/mindcare-ai/internal/dropout"
	"github.com/dineshreddykolli/mindcare-ai/internal/explain"
	"github.com/dineshreddykolli/mindcare-ai/internal/llm"
	"github.com/dineshreddykolli/mindcare-ai/internal/matching"
	"github.com/dineshreddykolli/mindcare-ai/internal/risk"
)

const (
	fileName  = "mindcare"
	envPrefix = "MINDCARE"
)

// Config is the full application configuration.
type Config struct {
	Database DatabaseConfig  `mapstructure:"database"`
	Logging  LoggingConfig   `mapstructure:"logging"`
	Risk     risk.Config     `mapstructure:"risk"`
	Matching matching.Config `mapstructure:"matching"`
	Dropout  DropoutConfig   `mapstructure:"dropout"`
	Alerting AlertingConfig  `mapstructure:"alerting"`
	Explain  explain.Config  `mapstructure:"explain"`
	LLM      llm.Config      `mapstructure:"llm"`
	Batch    BatchConfig     `mapstructure:"batch"`
}

// DatabaseConfig locates the SQLite file. An empty path resolves to the
// per-user data directory.
type DatabaseConfig struct {
	Path string `mapstructure:"path"`
}

// LoggingConfig configures the process logger.
type LoggingConfig struct {
	Level  string `mapstructure:"level"`
	Format string `mapstructure:"format"` // json or console

	// File enables a rotating log file next to stderr output.
	File       string `mapstructure:"file"`
	MaxSizeMB  int    `mapstructure:"max_size_mb"`
	MaxBackups int    `mapstructure:"max_backups"`
	MaxAgeDays int    `mapstructure:"max_age_days"`
}

// DropoutConfig selects the active dropout model.
type DropoutConfig struct {
	// ModelVersion pins the active model. Empty means the newest registered.
	ModelVersion          string  `mapstructure:"model_version"`
	InterventionThreshold float64 `mapstructure:"intervention_threshold"`
	ModelFile             string  `mapstructure:"model_file"`
}

// AlertingConfig tunes alert derivation.
type AlertingConfig struct {
	CriticalDropout float64 `mapstructure:"critical_dropout"`
}

// BatchConfig bounds concurrent intake scoring.
type BatchConfig struct {
	Concurrency int `mapstructure:"concurrency"`
}

// Default returns the configuration used when nothing is overridden.
func Default() Config {
	return Config{
		Logging: LoggingConfig{
			Level:      "info",
			Format:     "console",
			MaxSizeMB:  50,
			MaxBackups: 3,
			MaxAgeDays: 28,
		},
		Risk:     risk.DefaultConfig(),
		Matching: matching.DefaultConfig(),
		Dropout: DropoutConfig{
			ModelVersion:          dropout.DefaultVersion,
			InterventionThreshold: 70,
		},
		Alerting: AlertingConfig{CriticalDropout: 85},
		Explain:  explain.DefaultConfig(),
		LLM:      llm.DefaultConfig(),
		Batch:    BatchConfig{Concurrency: 4},
	}
}

// Load reads configuration. When path is empty mindcare.yaml is looked up in
// the working directory and its absence is not an error; an explicit path
// must exist.
func Load(path string) (Config, error) {
	v := viper.New()
	setDefaults(v, Default())

	v.SetEnvPrefix(envPrefix)
	v.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))
	v.AutomaticEnv()

	if path != "" {
		v.SetConfigFile(path)
	} else {
		v.SetConfigName(fileName)
		v.SetConfigType("yaml")
		v.AddConfigPath(".")
	}
	if err := v.ReadInConfig(); err != nil {
		var notFound viper.ConfigFileNotFoundError
		if path != "" || !errors.As(err, &notFound) {
			return Config{}, fmt.Errorf("read config: %w", err)
		}
	}

	var cfg Config
	if err := v.Unmarshal(&cfg); err != nil {
		return Config{}, fmt.Errorf("decode config: %w", err)
	}

	// Provider credentials keep their historical variable names.
	cfg.LLM = llm.ConfigFromEnv(cfg.LLM)

	if err := cfg.Validate(); err != nil {
		return Config{}, fmt.Errorf("invalid config: %w", err)
	}
	return cfg, nil
}

// Validate checks every section.
func (c Config) Validate() error {
	if err := c.Risk.Validate(); err != nil {
		return err
	}
	if err := c.Matching.Validate(); err != nil {
		return err
	}
	if t := c.Dropout.InterventionThreshold; t <= 0 || t > 100 {
		return fmt.Errorf("dropout.intervention_threshold must be within (0,100], got %v", t)
	}
	if v := c.Dropout.ModelVersion; v != "" {
		if err := (dropout.Model{Version: v}).Validate(); err != nil {
			return err
		}
	}
	if t := c.Alerting.CriticalDropout; t < c.Dropout.InterventionThreshold || t > 100 {
		return fmt.Errorf("alerting.critical_dropout must be within [%v,100], got %v", c.Dropout.InterventionThreshold, t)
	}
	if err := c.Explain.Validate(); err != nil {
		return err
	}
	if err := c.LLM.Validate(); err != nil {
		return err
	}
	switch c.Logging.Format {
	case "json", "console":
	default:
		return fmt.Errorf("logging.format must be json or console, got %q", c.Logging.Format)
	}
	if c.Batch.Concurrency < 1 {
		return fmt.Errorf("batch.concurrency must be at least 1")
	}
	return nil
}

// setDefaults registers every key so AutomaticEnv can override it.
func setDefaults(v *viper.Viper, d Config) {
	v.SetDefault("database.path", d.Database.Path)

	v.SetDefault("logging.level", d.Logging.Level)
	v.SetDefault("logging.format", d.Logging.Format)
	v.SetDefault("logging.file", d.Logging.File)
	v.SetDefault("logging.max_size_mb", d.Logging.MaxSizeMB)
	v.SetDefault("logging.max_backups", d.Logging.MaxBackups)
	v.SetDefault("logging.max_age_days", d.Logging.MaxAgeDays)

	v.SetDefault("risk.weights.depression", d.Risk.Weights.Depression)
	v.SetDefault("risk.weights.anxiety", d.Risk.Weights.Anxiety)
	v.SetDefault("risk.weights.sentiment", d.Risk.Weights.Sentiment)
	v.SetDefault("risk.weights.crisis", d.Risk.Weights.Crisis)
	v.SetDefault("risk.thresholds.critical", d.Risk.Thresholds.Critical)
	v.SetDefault("risk.thresholds.high", d.Risk.Thresholds.High)
	v.SetDefault("risk.thresholds.moderate", d.Risk.Thresholds.Moderate)
	v.SetDefault("risk.urgency.critical", d.Risk.Urgency.Critical)
	v.SetDefault("risk.urgency.high", d.Risk.Urgency.High)
	v.SetDefault("risk.urgency.moderate", d.Risk.Urgency.Moderate)
	v.SetDefault("risk.urgency.low", d.Risk.Urgency.Low)
	v.SetDefault("risk.lexicon", d.Risk.Lexicon)
	v.SetDefault("risk.neutral_sentiment", d.Risk.NeutralSentiment)

	v.SetDefault("matching.top_n", d.Matching.TopN)
	v.SetDefault("matching.specialty_base", d.Matching.SpecialtyBase)
	v.SetDefault("matching.specialty_extra", d.Matching.SpecialtyExtra)
	v.SetDefault("matching.specialty_cap", d.Matching.SpecialtyCap)
	v.SetDefault("matching.language", d.Matching.Language)
	v.SetDefault("matching.high_risk", d.Matching.HighRisk)
	v.SetDefault("matching.success_max", d.Matching.SuccessMax)
	v.SetDefault("matching.format", d.Matching.Format)

	v.SetDefault("dropout.model_version", d.Dropout.ModelVersion)
	v.SetDefault("dropout.intervention_threshold", d.Dropout.InterventionThreshold)
	v.SetDefault("dropout.model_file", d.Dropout.ModelFile)

	v.SetDefault("alerting.critical_dropout", d.Alerting.CriticalDropout)

	v.SetDefault("explain.timeout", d.Explain.Timeout)
	v.SetDefault("explain.rate_per_second", d.Explain.RatePerSecond)
	v.SetDefault("explain.burst", d.Explain.Burst)
	v.SetDefault("explain.queue_size", d.Explain.QueueSize)
	v.SetDefault("explain.workers", d.Explain.Workers)
	v.SetDefault("explain.max_tokens", d.Explain.MaxTokens)
	v.SetDefault("explain.temperature", d.Explain.Temperature)

	v.SetDefault("llm.provider", d.LLM.Provider)
	v.SetDefault("llm.record_bodies", d.LLM.RecordBodies)
	v.SetDefault("llm.anthropic.api_key", "")
	v.SetDefault("llm.anthropic.model", d.LLM.Anthropic.Model)
	v.SetDefault("llm.anthropic.base_url", "")
	v.SetDefault("llm.openai.api_key", "")
	v.SetDefault("llm.openai.model", d.LLM.OpenAI.Model)
	v.SetDefault("llm.openai.base_url", "")
	v.SetDefault("llm.gemini.api_key", "")
	v.SetDefault("llm.gemini.model", d.LLM.Gemini.Model)
	v.SetDefault("llm.gemini.base_url", "")
	v.SetDefault("llm.retry.max_attempts", d.LLM.Retry.MaxAttempts)
	v.SetDefault("llm.retry.initial_wait", d.LLM.Retry.InitialWait)
	v.SetDefault("llm.retry.max_wait", d.LLM.Retry.MaxWait)
	v.SetDefault("llm.retry.multiplier", d.LLM.Retry.Multiplier)

	v.SetDefault("batch.concurrency", d.Batch.Concurrency)
}
