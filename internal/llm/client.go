package llm

import (
	"context"
	"errors"
	"fmt"
	"time"

	"golang.org/x/time/rate"

	"github.com/dbsmedya/goask/internal/config"
	"github.com/dbsmedya/goask/internal/logger"
)

const (
	initialBackoff = time.Second
	maxBackoff     = 30 * time.Second
)

// Client wraps a provider with rate limiting, a per-call timeout and
// retries with exponential backoff for retryable errors.
type Client struct {
	gen        Generator
	limiter    *rate.Limiter
	timeout    time.Duration
	maxRetries int
	backoff    time.Duration
	log        *logger.Logger
}

// New creates a Client around the provider selected by cfg.Provider.
func New(cfg config.LLMConfig, log *logger.Logger) (*Client, error) {
	gen, err := NewProvider(cfg)
	if err != nil {
		return nil, err
	}
	return NewClient(gen, cfg, log), nil
}

// NewClient wraps an existing Generator. A zero rate limit disables limiting.
func NewClient(gen Generator, cfg config.LLMConfig, log *logger.Logger) *Client {
	if log == nil {
		log = logger.NewNop()
	}
	limiter := rate.NewLimiter(rate.Inf, 0)
	if cfg.RateLimit > 0 {
		burst := cfg.RateBurst
		if burst <= 0 {
			burst = 1
		}
		limiter = rate.NewLimiter(rate.Limit(cfg.RateLimit), burst)
	}
	maxRetries := cfg.MaxRetries
	if maxRetries < 0 {
		maxRetries = 0
	}
	return &Client{
		gen:        gen,
		limiter:    limiter,
		timeout:    cfg.Timeout,
		maxRetries: maxRetries,
		backoff:    initialBackoff,
		log:        log.WithComponent("llm").WithFields(map[string]interface{}{"provider": gen.Name(), "model": gen.Model()}),
	}
}

// Generate sends prompt to the model. Each attempt waits for the rate
// limiter first.
func (c *Client) Generate(ctx context.Context, prompt string) (string, error) {
	var lastErr error
	for attempt := 0; attempt <= c.maxRetries; attempt++ {
		if err := c.limiter.Wait(ctx); err != nil {
			if lastErr != nil {
				return "", fmt.Errorf("%w (after %d attempts: %v)", err, attempt, lastErr)
			}
			return "", err
		}

		start := time.Now()
		text, err := c.once(ctx, prompt)
		if err == nil {
			c.log.Debugw("Completion done", "attempt", attempt+1, "duration", time.Since(start), "chars", len(text))
			return text, nil
		}
		lastErr = err

		if ctx.Err() != nil {
			return "", err
		}
		kind := KindOf(err)
		if !kind.Retryable() {
			c.log.Warnw("Non-retryable LLM error", "kind", kind.String(), "error", err)
			return "", err
		}
		if attempt == c.maxRetries {
			break
		}

		wait := c.delay(attempt, err)
		c.log.Infow("Retrying after LLM error",
			"attempt", attempt+1,
			"kind", kind.String(),
			"backoff", wait,
			"error", err,
		)
		select {
		case <-ctx.Done():
			return "", fmt.Errorf("cancelled during backoff: %w", ctx.Err())
		case <-time.After(wait):
		}
	}
	return "", fmt.Errorf("llm retries exhausted after %d attempts: %w", c.maxRetries+1, lastErr)
}

func (c *Client) once(ctx context.Context, prompt string) (string, error) {
	if c.timeout > 0 {
		var cancel context.CancelFunc
		ctx, cancel = context.WithTimeout(ctx, c.timeout)
		defer cancel()
	}
	return c.gen.Generate(ctx, prompt)
}

// delay is min(backoff * 2^attempt, maxBackoff), raised to the provider's
// Retry-After when that is longer.
func (c *Client) delay(attempt int, err error) time.Duration {
	d := c.backoff
	for i := 0; i < attempt && d < maxBackoff; i++ {
		d *= 2
	}
	if d > maxBackoff {
		d = maxBackoff
	}
	var apiErr *APIError
	if errors.As(err, &apiErr) && apiErr.RetryAfter > d {
		d = min(apiErr.RetryAfter, maxBackoff)
	}
	return d
}

// Name returns the wrapped provider name.
func (c *Client) Name() string { return c.gen.Name() }

// Model returns the wrapped model name.
func (c *Client) Model() string { return c.gen.Model() }
