package llm

import (
	"fmt"
	"os"
	"time"
)

// Provider names accepted by Config.Provider.
const (
	ProviderNone       = "none"
	ProviderAuto       = "auto"
	ProviderAnthropic  = "anthropic"
	ProviderOpenAI     = "openai"
	ProviderOpenRouter = "openrouter"
	ProviderGemini     = "gemini"
	ProviderMock       = "mock"
)

// OpenRouterBaseURL is the OpenAI-compatible endpoint used for the
// openrouter provider.
const OpenRouterBaseURL = "https://openrouter.ai/api/v1"

// Config holds all LLM provider configuration.
type Config struct {
	// Provider selects the backend. "none" disables generation and "auto"
	// picks the first provider whose standard API key is set.
	Provider string `mapstructure:"provider"`

	Anthropic AnthropicConfig `mapstructure:"anthropic"`
	OpenAI    OpenAIConfig    `mapstructure:"openai"`
	Gemini    GeminiConfig    `mapstructure:"gemini"`
	Retry     RetryConfig     `mapstructure:"retry"`

	// RecordBodies stores prompt and response text with each request event.
	RecordBodies bool `mapstructure:"record_bodies"`
}

// AnthropicConfig holds Anthropic-specific configuration.
type AnthropicConfig struct {
	APIKey  string `mapstructure:"api_key"`
	Model   string `mapstructure:"model"` // Default: "claude-haiku"
	BaseURL string `mapstructure:"base_url"`
}

// OpenAIConfig holds configuration for OpenAI and compatible APIs.
type OpenAIConfig struct {
	APIKey  string `mapstructure:"api_key"`
	Model   string `mapstructure:"model"` // Default: "gpt-4o-mini"
	BaseURL string `mapstructure:"base_url"`
}

// GeminiConfig holds Gemini-specific configuration.
type GeminiConfig struct {
	APIKey  string `mapstructure:"api_key"`
	Model   string `mapstructure:"model"` // Default: "gemini-flash"
	BaseURL string `mapstructure:"base_url"`
}

// RetryConfig configures retry behavior for transient failures.
type RetryConfig struct {
	MaxAttempts int           `mapstructure:"max_attempts"`
	InitialWait time.Duration `mapstructure:"initial_wait"`
	MaxWait     time.Duration `mapstructure:"max_wait"`
	Multiplier  float64       `mapstructure:"multiplier"`
}

// DefaultConfig returns a disabled Config with per-provider defaults filled
// in. Explanations are bounded by a short deadline, so retries are few and
// quick.
func DefaultConfig() Config {
	return Config{
		Provider:  ProviderNone,
		Anthropic: AnthropicConfig{Model: "claude-haiku"},
		OpenAI:    OpenAIConfig{Model: "gpt-4o-mini"},
		Gemini:    GeminiConfig{Model: "gemini-flash"},
		Retry: RetryConfig{
			MaxAttempts: 2,
			InitialWait: 200 * time.Millisecond,
			MaxWait:     time.Second,
			Multiplier:  2.0,
		},
	}
}

// ConfigFromEnv applies MINDCARE_* environment variables on top of cfg.
func ConfigFromEnv(cfg Config) Config {
	set := func(dst *string, key string) {
		if v := os.Getenv(key); v != "" {
			*dst = v
		}
	}

	set(&cfg.Provider, "MINDCARE_LLM_PROVIDER")
	set(&cfg.Anthropic.APIKey, "MINDCARE_ANTHROPIC_API_KEY")
	set(&cfg.Anthropic.Model, "MINDCARE_ANTHROPIC_MODEL")
	set(&cfg.OpenAI.APIKey, "MINDCARE_OPENAI_API_KEY")
	set(&cfg.OpenAI.Model, "MINDCARE_OPENAI_MODEL")
	set(&cfg.OpenAI.BaseURL, "MINDCARE_OPENAI_BASE_URL")
	set(&cfg.Gemini.APIKey, "MINDCARE_GEMINI_API_KEY")
	set(&cfg.Gemini.Model, "MINDCARE_GEMINI_MODEL")

	return cfg
}

// Discover resolves the "auto" provider by probing the standard API key
// variables (Anthropic, then OpenAI, Gemini, OpenRouter). It returns false
// when none is set.
func Discover(cfg Config) (Config, bool) {
	if k := os.Getenv("ANTHROPIC_API_KEY"); k != "" {
		cfg.Provider = ProviderAnthropic
		cfg.Anthropic.APIKey = k
		return cfg, true
	}
	if k := os.Getenv("OPENAI_API_KEY"); k != "" {
		cfg.Provider = ProviderOpenAI
		cfg.OpenAI.APIKey = k
		return cfg, true
	}
	if k := os.Getenv("GEMINI_API_KEY"); k != "" {
		cfg.Provider = ProviderGemini
		cfg.Gemini.APIKey = k
		return cfg, true
	}
	if k := os.Getenv("OPENROUTER_API_KEY"); k != "" {
		cfg.Provider = ProviderOpenRouter
		cfg.OpenAI.APIKey = k
		return cfg, true
	}
	return cfg, false
}

// Validate checks that the selected provider has its required API key set.
func (c Config) Validate() error {
	switch c.Provider {
	case ProviderAnthropic:
		if c.Anthropic.APIKey == "" {
			return fmt.Errorf("MINDCARE_ANTHROPIC_API_KEY is required for the anthropic provider")
		}
	case ProviderOpenAI, ProviderOpenRouter:
		if c.OpenAI.APIKey == "" {
			return fmt.Errorf("MINDCARE_OPENAI_API_KEY is required for the %s provider", c.Provider)
		}
	case ProviderGemini:
		if c.Gemini.APIKey == "" {
			return fmt.Errorf("MINDCARE_GEMINI_API_KEY is required for the gemini provider")
		}
	case ProviderNone, ProviderAuto, ProviderMock, "":
		// No API key needed.
	default:
		return fmt.Errorf("unknown LLM provider: %q", c.Provider)
	}
	if c.Retry.MaxAttempts < 1 {
		return fmt.Errorf("llm.retry.max_attempts must be at least 1")
	}
	return nil
}
