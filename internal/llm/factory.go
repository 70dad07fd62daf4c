package llm

import (
	"context"
	"fmt"

	"github.com/rs/zerolog"

	"github.com/dineshreddykolli/mindcare-ai/internal/store"
)

// NewProvider creates a Provider from configuration, wrapped as
// caller → retry → logging → base. Event logging is skipped when events is
// nil. It returns ErrDisabled for the "none" provider and for "auto" when
// no API key is found.
func NewProvider(ctx context.Context, cfg Config, events store.EventRepo, logger zerolog.Logger) (Provider, error) {
	if cfg.Provider == ProviderAuto {
		var found bool
		if cfg, found = Discover(cfg); !found {
			return nil, ErrDisabled
		}
	}
	if err := cfg.Validate(); err != nil {
		return nil, err
	}

	var base Provider
	var err error

	switch cfg.Provider {
	case ProviderNone, "":
		return nil, ErrDisabled
	case ProviderAnthropic:
		base, err = NewAnthropicProvider(cfg.Anthropic)
	case ProviderOpenAI:
		base, err = NewOpenAIProvider(cfg.OpenAI)
	case ProviderOpenRouter:
		routed := cfg.OpenAI
		if routed.BaseURL == "" {
			routed.BaseURL = OpenRouterBaseURL
		}
		base, err = NewOpenAIProvider(routed)
	case ProviderGemini:
		base, err = NewGeminiProvider(ctx, cfg.Gemini)
	case ProviderMock:
		base = NewMockProvider()
	default:
		return nil, fmt.Errorf("unknown LLM provider: %q", cfg.Provider)
	}
	if err != nil {
		return nil, fmt.Errorf("initializing %s provider: %w", cfg.Provider, err)
	}

	logger = logger.With().Str("component", "llm").Str("provider", cfg.Provider).Logger()
	if events != nil {
		base = WithLogging(base, events, LogOptions{
			Provider:     cfg.Provider,
			Logger:       logger,
			RecordBodies: cfg.RecordBodies,
		})
	}
	return WithRetry(base, cfg.Retry, logger), nil
}
