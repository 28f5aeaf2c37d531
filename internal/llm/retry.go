package llm

import (
	"context"
	"errors"
	"time"
)

// RetryingClient wraps a Client with a bounded attempt budget for
// transport-level failures. Non-retryable errors pass straight through.
type RetryingClient struct {
	inner     Client
	attempts  int
	baseDelay time.Duration
	sleep     func(ctx context.Context, d time.Duration) error
}

func NewRetryingClient(inner Client, attempts int, baseDelay time.Duration) *RetryingClient {
	if attempts < 1 {
		attempts = 1
	}
	if baseDelay <= 0 {
		baseDelay = time.Second
	}
	return &RetryingClient{
		inner:     inner,
		attempts:  attempts,
		baseDelay: baseDelay,
		sleep:     sleepCtx,
	}
}

func (c *RetryingClient) Provider() string { return c.inner.Provider() }
func (c *RetryingClient) Model() string    { return c.inner.Model() }

func (c *RetryingClient) Complete(ctx context.Context, req Request) (string, error) {
	var lastErr error
	delay := c.baseDelay
	for attempt := 1; attempt <= c.attempts; attempt++ {
		text, err := c.inner.Complete(ctx, req)
		if err == nil {
			return text, nil
		}
		lastErr = err
		if !errors.Is(err, ErrUnavailable) && !errors.Is(err, ErrEmptyCompletion) {
			return "", err
		}
		if attempt == c.attempts {
			break
		}
		if err := c.sleep(ctx, delay); err != nil {
			return "", err
		}
		delay *= 2
	}
	return "", lastErr
}

func sleepCtx(ctx context.Context, d time.Duration) error {
	timer := time.NewTimer(d)
	defer timer.Stop()
	select {
	case <-ctx.Done():
		return ctx.Err()
	case <-timer.C:
		return nil
	}
}
