package llm

import (
	"context"
	"errors"
	"math"
	"math/rand/v2"
	"time"

	"github.com/rs/zerolog"
)

// retryClass says whether a failed explanation request is worth repeating.
type retryClass int

const (
	retryTransient retryClass = iota
	retryOnce
	retryNever
)

// classifyRetry sorts provider errors. Truncation and bad credentials will
// fail the same way again; a malformed response may not, so it gets one
// more try.
func classifyRetry(err error) retryClass {
	var (
		maxTok  *ErrMaxTokensExceeded
		unauth  *ErrUnauthorized
		invalid *ErrInvalidResponse
	)
	switch {
	case errors.Is(err, context.Canceled), errors.Is(err, context.DeadlineExceeded):
		return retryNever
	case errors.As(err, &maxTok), errors.As(err, &unauth):
		return retryNever
	case errors.As(err, &invalid):
		return retryOnce
	}
	return retryTransient
}

// delay is the wait after the given zero-based attempt: capped exponential
// growth with ±20% jitter. A Retry-After from a 429 is used as is.
func (c RetryConfig) delay(attempt int, err error) time.Duration {
	var rl *ErrRateLimit
	if errors.As(err, &rl) && rl.RetryAfter > 0 {
		return rl.RetryAfter
	}
	d := math.Min(float64(c.InitialWait)*math.Pow(c.Multiplier, float64(attempt)), float64(c.MaxWait))
	return time.Duration(max(d*(0.8+0.4*rand.Float64()), 0))
}

// RetryProvider repeats failed requests. Explanations run under a short
// deadline, so in practice the context often ends the loop first.
type RetryProvider struct {
	inner  Provider
	cfg    RetryConfig
	logger zerolog.Logger
}

// WithRetry wraps p. Fewer than one attempt is treated as one.
func WithRetry(p Provider, cfg RetryConfig, logger zerolog.Logger) Provider {
	cfg.MaxAttempts = max(cfg.MaxAttempts, 1)
	return &RetryProvider{inner: p, cfg: cfg, logger: logger}
}

func (r *RetryProvider) ModelID() string { return r.inner.ModelID() }

func (r *RetryProvider) Generate(ctx context.Context, req Request) (*Response, error) {
	retriedInvalid := false
	for attempt := 0; ; attempt++ {
		resp, err := r.inner.Generate(ctx, req)
		if err == nil {
			return resp, nil
		}
		if attempt+1 >= r.cfg.MaxAttempts {
			return nil, err
		}
		switch classifyRetry(err) {
		case retryNever:
			return nil, err
		case retryOnce:
			if retriedInvalid {
				return nil, err
			}
			retriedInvalid = true
		}

		wait := r.cfg.delay(attempt, err)
		r.logger.Debug().
			Str("purpose", PurposeFrom(ctx)).
			Int("attempt", attempt+1).
			Dur("wait", wait).
			Err(err).
			Msg("explanation request retry")

		timer := time.NewTimer(wait)
		select {
		case <-ctx.Done():
			timer.Stop()
			return nil, ctx.Err()
		case <-timer.C:
		}
	}
}
