package llm

import (
	"context"
	"errors"
	"log"
	"math/rand"
	"time"
)

// RetryPolicy bounds the retry decorator.
type RetryPolicy struct {
	MaxAttempts int
	InitialWait time.Duration
	Factor      float64
	MaxWait     time.Duration
}

// DefaultRetryPolicy matches the provider rate-limit guidance: jittered
// exponential backoff, 1s initial, factor 2, 30s cap, 4 attempts.
func DefaultRetryPolicy() RetryPolicy {
	return RetryPolicy{MaxAttempts: 4, InitialWait: time.Second, Factor: 2, MaxWait: 30 * time.Second}
}

// RetryProvider wraps any Provider and retries transient failures.
type RetryProvider struct {
	inner  Provider
	policy RetryPolicy
}

// WithRetry decorates a provider with the given policy.
func WithRetry(inner Provider, policy RetryPolicy) *RetryProvider {
	if policy.MaxAttempts <= 0 {
		policy = DefaultRetryPolicy()
	}
	return &RetryProvider{inner: inner, policy: policy}
}

func (r *RetryProvider) Name() string         { return r.inner.Name() }
func (r *RetryProvider) SupportsVision() bool { return r.inner.SupportsVision() }

func (r *RetryProvider) Chat(ctx context.Context, messages []Message, opts Options) (*ChatResult, error) {
	return r.do(ctx, func() (*ChatResult, error) { return r.inner.Chat(ctx, messages, opts) })
}

func (r *RetryProvider) ChatWithImages(ctx context.Context, messages []Message, opts Options) (*ChatResult, error) {
	return r.do(ctx, func() (*ChatResult, error) { return r.inner.ChatWithImages(ctx, messages, opts) })
}

func (r *RetryProvider) CheckConnectivity(ctx context.Context) error {
	return r.inner.CheckConnectivity(ctx)
}

func (r *RetryProvider) do(ctx context.Context, call func() (*ChatResult, error)) (*ChatResult, error) {
	wait := r.policy.InitialWait
	var lastErr error

	for attempt := 1; attempt <= r.policy.MaxAttempts; attempt++ {
		result, err := call()
		if err == nil {
			return result, nil
		}
		lastErr = err

		if !isTransient(err) || attempt == r.policy.MaxAttempts {
			return nil, err
		}

		// Full jitter on the current backoff window.
		sleep := time.Duration(rand.Int63n(int64(wait)) + int64(wait)/2)
		log.Printf("LLM %s: transient failure (attempt %d/%d), retrying in %v: %v",
			r.inner.Name(), attempt, r.policy.MaxAttempts, sleep, err)

		select {
		case <-ctx.Done():
			return nil, ctx.Err()
		case <-time.After(sleep):
		}

		wait = time.Duration(float64(wait) * r.policy.Factor)
		if wait > r.policy.MaxWait {
			wait = r.policy.MaxWait
		}
	}
	return nil, lastErr
}

// isTransient classifies retryable failures: provider 429/5xx and plain
// network errors. Context cancellation and 4xx are final.
func isTransient(err error) bool {
	if errors.Is(err, context.Canceled) || errors.Is(err, context.DeadlineExceeded) {
		return false
	}
	var httpErr *HTTPError
	if errors.As(err, &httpErr) {
		return httpErr.Transient()
	}
	// Unclassified errors are assumed to be network hiccups.
	return true
}
