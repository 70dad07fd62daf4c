package llm

import (
	"context"
	"encoding/json"
	"strings"
)

// Provider is the core abstraction for text generation. Explanations are
// the only consumer; nothing on the decision path waits on a Provider.
type Provider interface {
	// Generate sends a prompt and returns the model output. When the
	// request carries a Schema the output is validated JSON.
	Generate(ctx context.Context, req Request) (*Response, error)

	// ModelID returns the model identifier this provider is configured to use.
	ModelID() string
}

// Request describes what to send to the model.
type Request struct {
	// System sets the model's role and constraints.
	System string

	// Messages is usually a single user message holding the structured
	// decision summary. Prompts carry scores, levels and matched keywords,
	// never the patient's free text.
	Messages []Message

	// Schema, when set, asks the provider for JSON conforming to it.
	// When nil, Content is the raw text.
	Schema *Schema

	MaxTokens int

	// Temperature in 0.0 - 1.0; zero leaves the provider default.
	Temperature float64
}

// Message represents a single message in the conversation.
type Message struct {
	Role    Role
	Content string
}

// Role is the message sender role.
type Role string

const (
	RoleUser      Role = "user"
	RoleAssistant Role = "assistant"
)

// Schema defines the JSON structure expected from the model.
type Schema struct {
	// Name identifies the schema (tool name for Anthropic, schema name for
	// OpenAI) and keys the compiled-schema cache. Kebab-case.
	Name        string
	Description string
	Definition  map[string]any
}

// Response holds the model output.
type Response struct {
	Content json.RawMessage
	Usage   Usage

	// Model is the actual model that served the request.
	Model string

	// StopReason is normalized to stopEnd or stopMaxTokens.
	StopReason string
}

const (
	stopEnd       = "end"
	stopMaxTokens = "max_tokens"
)

// settle turns raw provider output into a Response. A structured request
// whose output was cut short or breaks its schema is an error, which sends
// the explanation back to rule-based text.
func settle(req Request, raw json.RawMessage, stop, model string, usage Usage) (*Response, error) {
	if req.Schema != nil {
		if stop == stopMaxTokens {
			return nil, &ErrMaxTokensExceeded{Content: raw}
		}
		if err := validateResponse(req.Schema, raw); err != nil {
			return nil, err
		}
	}
	return &Response{Content: raw, Usage: usage, Model: model, StopReason: stop}, nil
}

// resolveModel maps a configured alias to a provider model ID. Unknown
// names pass through so full model IDs work too.
func resolveModel(name string, aliases map[string]string) string {
	if id, ok := aliases[name]; ok {
		return id
	}
	return name
}

// Text returns Content as plain text. A JSON string is unquoted; anything
// else is returned trimmed.
func (r *Response) Text() string {
	if r == nil {
		return ""
	}
	var s string
	if err := json.Unmarshal(r.Content, &s); err == nil {
		return strings.TrimSpace(s)
	}
	return strings.TrimSpace(string(r.Content))
}

// Usage tracks token consumption for a single request.
type Usage struct {
	InputTokens  int
	OutputTokens int
	TotalTokens  int
}

type contextKey string

const purposeKey contextKey = "llm_purpose"

// Purpose labels recorded with every request event.
const (
	PurposeRiskExplanation  = "risk-explanation"
	PurposeMatchExplanation = "match-explanation"
)

// WithPurpose attaches a purpose label to the context for event logging.
func WithPurpose(ctx context.Context, purpose string) context.Context {
	return context.WithValue(ctx, purposeKey, purpose)
}

// PurposeFrom extracts the purpose label from the context.
func PurposeFrom(ctx context.Context) string {
	if v, ok := ctx.Value(purposeKey).(string); ok {
		return v
	}
	return "unknown"
}
