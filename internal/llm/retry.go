package llm

import (
	"context"
	"fmt"
	"time"

	"go.uber.org/zap"
)

// RetryPolicy bounds the backoff applied to rate-limited provider calls.
type RetryPolicy struct {
	MaxRetries   int
	InitialDelay time.Duration
	MaxDelay     time.Duration
	Multiplier   float64
}

// DefaultRetryPolicy waits 5s, 10s, 20s, 40s, 80s before giving up.
func DefaultRetryPolicy() RetryPolicy {
	return RetryPolicy{
		MaxRetries:   5,
		InitialDelay: 5 * time.Second,
		MaxDelay:     120 * time.Second,
		Multiplier:   2,
	}
}

func (p RetryPolicy) normalized() RetryPolicy {
	def := DefaultRetryPolicy()
	if p.MaxRetries < 0 {
		p.MaxRetries = 0
	}
	if p.InitialDelay <= 0 {
		p.InitialDelay = def.InitialDelay
	}
	if p.MaxDelay <= 0 {
		p.MaxDelay = def.MaxDelay
	}
	if p.Multiplier < 1 {
		p.Multiplier = def.Multiplier
	}
	return p
}

// Delay returns the wait before retry number n (0-based).
func (p RetryPolicy) Delay(n int) time.Duration {
	p = p.normalized()
	d := float64(p.InitialDelay)
	for i := 0; i < n; i++ {
		d *= p.Multiplier
		if d >= float64(p.MaxDelay) {
			return p.MaxDelay
		}
	}
	return time.Duration(d)
}

// sleep is swapped out in tests.
var sleep = func(ctx context.Context, d time.Duration) error {
	timer := time.NewTimer(d)
	defer timer.Stop()
	select {
	case <-ctx.Done():
		return ctx.Err()
	case <-timer.C:
		return nil
	}
}

// retryRateLimited runs op and retries it only while it fails with a rate
// limit error. Any other error is returned at once.
func retryRateLimited[T any](ctx context.Context, p RetryPolicy, logger *zap.Logger, op string, fn func() (T, error)) (T, error) {
	p = p.normalized()
	var zero T
	for attempt := 0; ; attempt++ {
		out, err := fn()
		if err == nil {
			return out, nil
		}
		if !IsRateLimited(err) {
			return zero, err
		}
		if attempt >= p.MaxRetries {
			return zero, fmt.Errorf("%s: giving up after %d retries: %w", op, p.MaxRetries, err)
		}

		delay := p.Delay(attempt)
		logger.Warn("provider rate limited, backing off",
			zap.String("op", op),
			zap.Int("retry", attempt+1),
			zap.Int("max_retries", p.MaxRetries),
			zap.Duration("delay", delay))
		if err := sleep(ctx, delay); err != nil {
			return zero, err
		}
	}
}

type retryingClient struct {
	next   Client
	policy RetryPolicy
	logger *zap.Logger
}

// WithRateLimitRetry wraps c so that 429 responses are retried with
// exponential backoff.
func WithRateLimitRetry(c Client, policy RetryPolicy, logger *zap.Logger) Client {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &retryingClient{next: c, policy: policy, logger: logger}
}

func (r *retryingClient) GenerateContent(ctx context.Context, prompt string, tier ModelTier) (string, error) {
	return retryRateLimited(ctx, r.policy, r.logger, "generate content", func() (string, error) {
		return r.next.GenerateContent(ctx, prompt, tier)
	})
}

func (r *retryingClient) GenerateJSON(ctx context.Context, prompt string, tier ModelTier) (string, error) {
	return retryRateLimited(ctx, r.policy, r.logger, "generate json", func() (string, error) {
		return r.next.GenerateJSON(ctx, prompt, tier)
	})
}

func (r *retryingClient) GetModel(tier ModelTier) string { return r.next.GetModel(tier) }

func (r *retryingClient) Close() error { return r.next.Close() }

type retryingImageClient struct {
	next   ImageClient
	policy RetryPolicy
	logger *zap.Logger
}

// WithImageRateLimitRetry is WithRateLimitRetry for image clients.
func WithImageRateLimitRetry(c ImageClient, policy RetryPolicy, logger *zap.Logger) ImageClient {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &retryingImageClient{next: c, policy: policy, logger: logger}
}

func (r *retryingImageClient) GenerateImage(ctx context.Context, req ImageRequest) ([][]byte, error) {
	return retryRateLimited(ctx, r.policy, r.logger, "generate image", func() ([][]byte, error) {
		return r.next.GenerateImage(ctx, req)
	})
}
