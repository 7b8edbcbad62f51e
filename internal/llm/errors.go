package llm

import (
	"context"
	"errors"
	"fmt"
	"net"
	"strings"
	"time"
)

// ErrEmptyResponse is returned when a provider answers without any text.
var ErrEmptyResponse = errors.New("model returned an empty response")

// ErrorKind classifies provider errors for retry decisions.
type ErrorKind int

const (
	KindRetryable  ErrorKind = iota // transient 5xx
	KindRateLimit                   // 429, honors Retry-After
	KindOverloaded                  // 529 or "overloaded"
	KindTimeout                     // deadline exceeded or gateway timeout
	KindAuth                        // 401, 403
	KindQuota                       // billing or quota exhausted
	KindBadRequest                  // 400
	KindFatal                       // everything else
)

// String returns a short label for logs.
func (k ErrorKind) String() string {
	switch k {
	case KindRetryable:
		return "retryable"
	case KindRateLimit:
		return "rate_limit"
	case KindOverloaded:
		return "overloaded"
	case KindTimeout:
		return "timeout"
	case KindAuth:
		return "auth"
	case KindQuota:
		return "quota"
	case KindBadRequest:
		return "bad_request"
	default:
		return "fatal"
	}
}

// Retryable reports whether a request failing with this kind may be retried.
func (k ErrorKind) Retryable() bool {
	return k == KindRetryable || k == KindRateLimit || k == KindOverloaded || k == KindTimeout
}

// APIError is a non-success answer from a provider.
type APIError struct {
	Provider   string
	StatusCode int
	Message    string
	RetryAfter time.Duration // zero when the provider sent no Retry-After
}

func (e *APIError) Error() string {
	return fmt.Sprintf("%s: API returned %d: %s", e.Provider, e.StatusCode, truncate(e.Message, 200))
}

// Kind classifies the error from its status code and message.
func (e *APIError) Kind() ErrorKind {
	return Classify(e.StatusCode, e.Message)
}

// Classify maps a status code and response body to an ErrorKind.
// Rate limits are checked before quota: Gemini reports both as
// RESOURCE_EXHAUSTED with a 429, and only a 429 is worth waiting for.
func Classify(statusCode int, body string) ErrorKind {
	lower := strings.ToLower(body)

	if statusCode == 429 ||
		strings.Contains(lower, "rate limit") ||
		strings.Contains(lower, "rate_limit") ||
		strings.Contains(lower, "too many requests") {
		return KindRateLimit
	}
	if statusCode == 402 ||
		strings.Contains(lower, "insufficient_quota") ||
		strings.Contains(lower, "billing") {
		return KindQuota
	}
	if statusCode == 529 || strings.Contains(lower, "overloaded") {
		return KindOverloaded
	}
	if statusCode == 504 || statusCode == 408 ||
		strings.Contains(lower, "deadline exceeded") ||
		strings.Contains(lower, "timed out") {
		return KindTimeout
	}

	switch {
	case statusCode == 400:
		return KindBadRequest
	case statusCode == 401 || statusCode == 403:
		return KindAuth
	case statusCode >= 500:
		return KindRetryable
	default:
		return KindFatal
	}
}

// KindOf classifies any error returned by a Generator.
func KindOf(err error) ErrorKind {
	var apiErr *APIError
	if errors.As(err, &apiErr) {
		return apiErr.Kind()
	}
	if errors.Is(err, context.DeadlineExceeded) {
		return KindTimeout
	}
	var netErr net.Error
	if errors.As(err, &netErr) && netErr.Timeout() {
		return KindTimeout
	}
	return KindFatal
}

func truncate(s string, maxLen int) string {
	if len(s) <= maxLen {
		return s
	}
	return s[:maxLen] + "..."
}
