package retry

import (
	"context"
	"errors"
	"fmt"
	"io"
	"math/rand"
	"net/http"
	"strconv"
	"time"

	"github.com/rs/zerolog"

	"github.com/amishk599/autosignin/internal/model"
)

// Transport is an http.RoundTripper that retries transient failures with
// exponential backoff and jitter. It is owned by site handlers; the execution
// core never retries on its own.
type Transport struct {
	inner      http.RoundTripper
	maxRetries int
	baseDelay  time.Duration
}

// NewTransport wraps inner with retry logic.
// maxRetries is the number of additional attempts after the first failure.
// baseDelay is the delay before the first retry, doubled on each subsequent retry.
// A nil inner means http.DefaultTransport.
func NewTransport(inner http.RoundTripper, maxRetries int, baseDelay time.Duration) *Transport {
	if inner == nil {
		inner = http.DefaultTransport
	}
	return &Transport{
		inner:      inner,
		maxRetries: maxRetries,
		baseDelay:  baseDelay,
	}
}

// RoundTrip sends req, retrying on network errors, 429 and 5xx responses.
// Requests with a body are only retried when the body can be rebuilt.
func (t *Transport) RoundTrip(req *http.Request) (*http.Response, error) {
	ctx := req.Context()
	resp, err := t.attempt(req)
	if err == nil {
		return resp, nil
	}
	if !isRetryable(err) || !rewindable(req) {
		return nil, err
	}

	lastErr := err
	for attempt := 1; attempt <= t.maxRetries; attempt++ {
		delay := t.backoffDelay(attempt, lastErr)

		zerolog.Ctx(ctx).Warn().
			Int("attempt", attempt).
			Int("max_retries", t.maxRetries).
			Dur("delay", delay).
			Str("url", req.URL.Redacted()).
			Err(lastErr).
			Msg("retrying after transient error")

		select {
		case <-ctx.Done():
			return nil, fmt.Errorf("retry cancelled: %w", ctx.Err())
		case <-time.After(delay):
		}

		next, err := rewind(req)
		if err != nil {
			return nil, err
		}
		resp, err = t.attempt(next)
		if err == nil {
			return resp, nil
		}
		if !isRetryable(err) {
			return nil, err
		}
		lastErr = err
	}

	return nil, lastErr
}

// attempt performs one round trip. A retryable status is turned into an
// *model.HTTPError and the response body is drained and closed.
func (t *Transport) attempt(req *http.Request) (*http.Response, error) {
	resp, err := t.inner.RoundTrip(req)
	if err != nil {
		return nil, err
	}
	if resp.StatusCode != http.StatusTooManyRequests && resp.StatusCode < 500 {
		return resp, nil
	}
	_, _ = io.Copy(io.Discard, resp.Body)
	resp.Body.Close()
	return nil, &model.HTTPError{
		StatusCode: resp.StatusCode,
		RetryAfter: parseRetryAfter(resp.Header.Get("Retry-After")),
		Err:        fmt.Errorf("%s %s: %s", req.Method, req.URL.Redacted(), resp.Status),
	}
}

func rewindable(req *http.Request) bool {
	return req.Body == nil || req.Body == http.NoBody || req.GetBody != nil
}

func rewind(req *http.Request) (*http.Request, error) {
	next := req.Clone(req.Context())
	if req.GetBody != nil {
		body, err := req.GetBody()
		if err != nil {
			return nil, fmt.Errorf("rewinding request body: %w", err)
		}
		next.Body = body
	}
	return next, nil
}

// backoffDelay computes the delay for a given attempt with ±30% jitter.
// If the error includes a Retry-After duration (HTTP 429), that takes precedence.
func (t *Transport) backoffDelay(attempt int, err error) time.Duration {
	var httpErr *model.HTTPError
	if errors.As(err, &httpErr) && httpErr.RetryAfter > 0 {
		return httpErr.RetryAfter
	}

	delay := t.baseDelay
	for i := 1; i < attempt; i++ {
		delay *= 2
	}

	jitter := float64(delay) * 0.3
	return time.Duration(float64(delay) + (rand.Float64()*2-1)*jitter)
}

// isRetryable returns true if the error represents a transient failure worth retrying.
func isRetryable(err error) bool {
	if err == nil {
		return false
	}

	// Context cancellation — never retry.
	if errors.Is(err, context.Canceled) || errors.Is(err, context.DeadlineExceeded) {
		return false
	}

	var httpErr *model.HTTPError
	if errors.As(err, &httpErr) {
		return httpErr.StatusCode == http.StatusTooManyRequests || httpErr.StatusCode >= 500
	}

	// Non-HTTP errors (network, DNS, etc.) — retryable.
	return true
}

// parseRetryAfter parses the Retry-After header value in seconds.
// Returns zero if absent or unparseable.
func parseRetryAfter(value string) time.Duration {
	seconds, err := strconv.Atoi(value)
	if err != nil || seconds < 0 {
		return 0
	}
	return time.Duration(seconds) * time.Second
}
