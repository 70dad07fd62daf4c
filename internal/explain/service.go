// Package explain produces human-readable explanations for risk
// assessments and therapist matches. Every call has a deterministic
// rule-based result; a configured LLM provider may improve the wording
// within a short deadline. Nothing here can fail or delay a triage
// decision.
package explain

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"sync"
	"text/template"
	"time"

	"github.com/rs/zerolog"
	"golang.org/x/time/rate"

	"github.com/dineshreddykolli/mindcare-ai/internal/llm"
	"github.com/dineshreddykolli/mindcare-ai/internal/risk"
)

var (
	errNoProvider  = errors.New("no provider configured")
	errRateLimited = errors.New("explanation rate limit reached")
	errEmpty       = errors.New("empty explanation")
)

// Service generates explanations.
type Service struct {
	provider llm.Provider
	cfg      Config
	limiter  *rate.Limiter
	logger   zerolog.Logger
	now      func() time.Time
	onDrop   func(Kind)
	onResult func(Explanation, error)

	mu      sync.RWMutex
	closed  bool
	pending chan job
	wg      sync.WaitGroup
}

type job struct {
	ctx  context.Context
	kind Kind
	run  func(context.Context) Explanation
	cb   func(Explanation)
}

// Option configures a Service.
type Option func(*Service)

// WithLogger sets the logger used for fallbacks and drops.
func WithLogger(l zerolog.Logger) Option {
	return func(s *Service) { s.logger = l }
}

// WithClock overrides the timestamp source.
func WithClock(now func() time.Time) Option {
	return func(s *Service) { s.now = now }
}

// WithDropHook is called whenever an async job is dropped because the
// queue is full.
func WithDropHook(fn func(Kind)) Option {
	return func(s *Service) { s.onDrop = fn }
}

// WithResultHook is called after every explanation with the provider
// error that forced a fallback, if any.
func WithResultHook(fn func(Explanation, error)) Option {
	return func(s *Service) { s.onResult = fn }
}

// New creates a Service. A nil provider yields rule-based text only and
// starts no workers.
func New(provider llm.Provider, cfg Config, opts ...Option) *Service {
	cfg = cfg.withDefaults()
	s := &Service{
		provider: provider,
		cfg:      cfg,
		limiter:  rate.NewLimiter(rate.Limit(cfg.RatePerSecond), cfg.Burst),
		logger:   zerolog.Nop(),
		now:      time.Now,
	}
	for _, opt := range opts {
		opt(s)
	}
	if provider != nil {
		s.pending = make(chan job, cfg.QueueSize)
		for range cfg.Workers {
			s.wg.Add(1)
			go s.processLoop()
		}
	}
	return s
}

// ExplainRisk returns an explanation of the assessment, waiting at most
// the configured timeout for the provider.
func (s *Service) ExplainRisk(ctx context.Context, a risk.Assessment) Explanation {
	fallback := RiskText(a)
	text, err := s.generate(llm.WithPurpose(ctx, llm.PurposeRiskExplanation), riskSystemPrompt, riskUserTemplate, viewOf(a))
	return s.finish(KindRisk, a.ID, fallback, text, err)
}

// ExplainMatch returns an explanation of a ranked candidate.
func (s *Service) ExplainMatch(ctx context.Context, m MatchSubject) Explanation {
	fallback := MatchText(m)
	text, err := s.generate(llm.WithPurpose(ctx, llm.PurposeMatchExplanation), matchSystemPrompt, matchUserTemplate, m)
	return s.finish(KindMatch, m.subjectID(), fallback, text, err)
}

// AttachRisk explains the assessment in the background and hands the
// result to cb. It reports false when the job was dropped.
func (s *Service) AttachRisk(ctx context.Context, a risk.Assessment, cb func(Explanation)) bool {
	a = a.Clone()
	return s.dispatch(ctx, KindRisk, func(ctx context.Context) Explanation {
		return s.ExplainRisk(ctx, a)
	}, cb)
}

// AttachMatch explains the candidate in the background.
func (s *Service) AttachMatch(ctx context.Context, m MatchSubject, cb func(Explanation)) bool {
	return s.dispatch(ctx, KindMatch, func(ctx context.Context) Explanation {
		return s.ExplainMatch(ctx, m)
	}, cb)
}

// Close stops accepting jobs and waits for queued ones to finish.
func (s *Service) Close() {
	s.mu.Lock()
	if s.closed {
		s.mu.Unlock()
		return
	}
	s.closed = true
	if s.pending != nil {
		close(s.pending)
	}
	s.mu.Unlock()
	s.wg.Wait()
}

func (s *Service) dispatch(ctx context.Context, kind Kind, run func(context.Context) Explanation, cb func(Explanation)) bool {
	// The job outlives the caller's request; only the explanation timeout
	// bounds it.
	ctx = context.WithoutCancel(ctx)

	if s.provider == nil {
		if cb != nil {
			cb(run(ctx))
		}
		return true
	}

	s.mu.RLock()
	defer s.mu.RUnlock()
	if s.closed {
		return false
	}
	select {
	case s.pending <- job{ctx: ctx, kind: kind, run: run, cb: cb}:
		return true
	default:
		s.logger.Debug().Str("kind", string(kind)).Msg("explanation queue full, dropping")
		if s.onDrop != nil {
			s.onDrop(kind)
		}
		return false
	}
}

func (s *Service) processLoop() {
	defer s.wg.Done()
	for j := range s.pending {
		e := j.run(j.ctx)
		if j.cb != nil {
			j.cb(e)
		}
	}
}

func (s *Service) generate(ctx context.Context, system string, tmpl *template.Template, data any) (string, error) {
	if s.provider == nil {
		return "", errNoProvider
	}
	if !s.limiter.Allow() {
		return "", errRateLimited
	}

	msg, err := render(tmpl, data)
	if err != nil {
		return "", fmt.Errorf("build prompt: %w", err)
	}

	ctx, cancel := context.WithTimeout(ctx, s.cfg.Timeout)
	defer cancel()

	resp, err := s.provider.Generate(ctx, llm.Request{
		System:      system,
		Messages:    []llm.Message{{Role: llm.RoleUser, Content: msg}},
		Schema:      explanationSchema,
		MaxTokens:   s.cfg.MaxTokens,
		Temperature: s.cfg.Temperature,
	})
	if err != nil {
		return "", err
	}
	return decodeSummary(resp)
}

func (s *Service) finish(kind Kind, subjectID, fallback, text string, err error) Explanation {
	e := Explanation{
		Kind:      kind,
		SubjectID: subjectID,
		Source:    SourceLLM,
		Text:      text,
		CreatedAt: s.now().UTC(),
	}
	if err != nil {
		e.Source = SourceRules
		e.Text = fallback
		if !errors.Is(err, errNoProvider) {
			s.logger.Debug().Err(err).Str("kind", string(kind)).Str("subject_id", subjectID).
				Msg("explanation fell back to rules")
		}
	}
	if s.onResult != nil {
		s.onResult(e, err)
	}
	return e
}

func decodeSummary(resp *llm.Response) (string, error) {
	var out explanationOutput
	if err := json.Unmarshal(resp.Content, &out); err != nil {
		return "", fmt.Errorf("decode explanation: %w", err)
	}
	if out.Summary == "" {
		return "", errEmpty
	}
	return out.Summary, nil
}
