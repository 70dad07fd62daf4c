package llm

import (
	"context"
	"encoding/json"
	"fmt"
	"strings"
	"time"

	"github.com/rs/zerolog"

	"github.com/dineshreddykolli/mindcare-ai/internal/store"
)

// LoggingProvider is a decorator that records every request as an event
// row. A failing event write never fails the request.
type LoggingProvider struct {
	inner        Provider
	name         string
	events       store.EventRepo
	logger       zerolog.Logger
	recordBodies bool
}

// LogOptions configures WithLogging.
type LogOptions struct {
	// Provider is the backend name stored with each event.
	Provider string
	Logger   zerolog.Logger
	// RecordBodies keeps prompt and response text in the event row.
	RecordBodies bool
}

// WithLogging wraps a Provider with event logging.
func WithLogging(p Provider, events store.EventRepo, opts LogOptions) Provider {
	name := opts.Provider
	if name == "" {
		name = p.ModelID()
	}
	return &LoggingProvider{
		inner:        p,
		name:         name,
		events:       events,
		logger:       opts.Logger,
		recordBodies: opts.RecordBodies,
	}
}

func (l *LoggingProvider) Generate(ctx context.Context, req Request) (*Response, error) {
	start := time.Now()
	purpose := PurposeFrom(ctx)

	resp, err := l.inner.Generate(ctx, req)

	data := store.LLMRequestEventData{
		Provider:  l.name,
		Model:     l.inner.ModelID(),
		Purpose:   purpose,
		LatencyMs: time.Since(start).Milliseconds(),
		Success:   err == nil,
	}
	if l.recordBodies {
		data.RequestBody = serializeRequest(req)
	}
	if resp != nil {
		data.InputTokens = resp.Usage.InputTokens
		data.OutputTokens = resp.Usage.OutputTokens
		if resp.Model != "" {
			data.Model = resp.Model
		}
		if l.recordBodies {
			data.ResponseBody = string(resp.Content)
		}
	}
	if err != nil {
		data.ErrorMessage = err.Error()
	}

	// The request context may already be past its deadline; the event
	// write gets its own.
	logCtx, cancel := context.WithTimeout(context.WithoutCancel(ctx), 2*time.Second)
	defer cancel()
	if logErr := l.events.AppendLLMRequest(logCtx, data); logErr != nil {
		l.logger.Warn().Err(logErr).Str("purpose", purpose).Msg("failed to log LLM request event")
	}

	return resp, err
}

func (l *LoggingProvider) ModelID() string {
	return l.inner.ModelID()
}

// serializeRequest builds a readable representation of the request.
func serializeRequest(req Request) string {
	var b strings.Builder

	if req.System != "" {
		b.WriteString("[system]\n")
		b.WriteString(req.System)
		b.WriteString("\n\n")
	}
	for _, m := range req.Messages {
		fmt.Fprintf(&b, "[%s]\n%s\n\n", m.Role, m.Content)
	}
	if req.Schema != nil {
		if def, err := json.Marshal(req.Schema.Definition); err == nil {
			fmt.Fprintf(&b, "[schema: %s]\n%s\n", req.Schema.Name, def)
		}
	}
	return b.String()
}
