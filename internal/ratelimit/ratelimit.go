package ratelimit

import (
	"context"
	"fmt"
	"net/http"
	"sync"

	"golang.org/x/time/rate"
)

// HostLimiter keeps one token bucket per host so that several jobs hitting
// the same site share a request budget, while different sites never block
// each other.
type HostLimiter struct {
	mu       sync.Mutex
	limiters map[string]*rate.Limiter // key: request host
	limit    rate.Limit
	burst    int
}

// NewHostLimiter creates a limiter allowing perSecond requests per host with
// the given burst. perSecond <= 0 disables limiting.
func NewHostLimiter(perSecond float64, burst int) *HostLimiter {
	limit := rate.Limit(perSecond)
	if perSecond <= 0 {
		limit = rate.Inf
	}
	if burst < 1 {
		burst = 1
	}
	return &HostLimiter{
		limiters: make(map[string]*rate.Limiter),
		limit:    limit,
		burst:    burst,
	}
}

func (h *HostLimiter) limiter(host string) *rate.Limiter {
	h.mu.Lock()
	defer h.mu.Unlock()
	l, ok := h.limiters[host]
	if !ok {
		l = rate.NewLimiter(h.limit, h.burst)
		h.limiters[host] = l
	}
	return l
}

// Wait blocks until a request to host is allowed.
// Returns an error if the context is cancelled while waiting.
func (h *HostLimiter) Wait(ctx context.Context, host string) error {
	if err := h.limiter(host).Wait(ctx); err != nil {
		return fmt.Errorf("rate limiter wait for %s: %w", host, err)
	}
	return nil
}

// Transport is an http.RoundTripper that waits on the host limiter before
// delegating to the wrapped transport.
type Transport struct {
	inner   http.RoundTripper
	limiter *HostLimiter
}

// NewTransport wraps inner with per-host rate limiting. All clients talking to
// the same sites should share one limiter. A nil inner means
// http.DefaultTransport.
func NewTransport(inner http.RoundTripper, limiter *HostLimiter) *Transport {
	if inner == nil {
		inner = http.DefaultTransport
	}
	return &Transport{inner: inner, limiter: limiter}
}

// RoundTrip implements http.RoundTripper.
func (t *Transport) RoundTrip(req *http.Request) (*http.Response, error) {
	if err := t.limiter.Wait(req.Context(), req.URL.Host); err != nil {
		return nil, err
	}
	return t.inner.RoundTrip(req)
}
