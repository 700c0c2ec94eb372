package microsoft

import (
	"context"
	"net/http"
	"strconv"
	"sync"
	"time"

	"golang.org/x/time/rate"
)

// ServiceType identifies an Office 365 endpoint for rate limiting purposes.
type ServiceType string

const (
	// ServiceDiscovery is the Office 365 discovery service.
	ServiceDiscovery ServiceType = "discovery"
	// ServiceMail is the Exchange Online mail REST API.
	ServiceMail ServiceType = "mail"
	// ServiceToken is the Azure AD token endpoint.
	ServiceToken ServiceType = "token"
)

// RateLimitConfig holds rate limiting configuration for a service.
type RateLimitConfig struct {
	// RequestsPerSecond is the sustained rate limit.
	RequestsPerSecond float64
	// BurstSize is the maximum burst size.
	BurstSize int
}

// DefaultRateLimits paces requests per endpoint. The app makes a handful of
// calls per session, so these only matter when scripted in a loop.
var DefaultRateLimits = map[ServiceType]RateLimitConfig{
	ServiceDiscovery: {RequestsPerSecond: 2.0, BurstSize: 4},
	ServiceMail:      {RequestsPerSecond: 4.0, BurstSize: 4},
	ServiceToken:     {RequestsPerSecond: 5.0, BurstSize: 10},
}

// defaultRetryAfter is the backoff when a 429 carries no Retry-After header.
const defaultRetryAfter = 60 * time.Second

// RateLimiter provides rate limiting for Office 365 requests.
// It uses a token bucket with a backoff window set by 429 responses.
type RateLimiter struct {
	mu      sync.Mutex
	limiter *rate.Limiter
	retryAt time.Time
	service ServiceType
}

// NewRateLimiter creates a new rate limiter for the specified service.
func NewRateLimiter(service ServiceType) *RateLimiter {
	cfg, ok := DefaultRateLimits[service]
	if !ok {
		cfg = RateLimitConfig{RequestsPerSecond: 2.0, BurstSize: 4}
	}
	limiter := NewRateLimiterWithConfig(cfg)
	limiter.service = service
	return limiter
}

// NewRateLimiterWithConfig creates a rate limiter with custom configuration.
func NewRateLimiterWithConfig(cfg RateLimitConfig) *RateLimiter {
	return &RateLimiter{
		limiter: rate.NewLimiter(rate.Limit(cfg.RequestsPerSecond), cfg.BurstSize),
	}
}

// Service returns the endpoint this limiter paces.
func (r *RateLimiter) Service() ServiceType {
	return r.service
}

// Wait blocks until a request can be made without exceeding the rate limit.
// It also respects any backoff period set by RecordRateLimitError.
func (r *RateLimiter) Wait(ctx context.Context) error {
	r.mu.Lock()
	retryAt := r.retryAt
	r.mu.Unlock()

	if wait := time.Until(retryAt); wait > 0 {
		timer := time.NewTimer(wait)
		defer timer.Stop()
		select {
		case <-ctx.Done():
			return ctx.Err()
		case <-timer.C:
		}
	}

	return r.limiter.Wait(ctx)
}

// RecordRateLimitError sets a backoff window of retryAfter. Non-positive
// values use a 60 second default.
func (r *RateLimiter) RecordRateLimitError(retryAfter time.Duration) {
	r.mu.Lock()
	defer r.mu.Unlock()

	if retryAfter <= 0 {
		retryAfter = defaultRetryAfter
	}
	r.retryAt = time.Now().Add(retryAfter)
}

// Observe records a backoff window if resp is a 429.
func (r *RateLimiter) Observe(resp *http.Response) {
	if resp == nil || !IsRateLimited(resp.StatusCode) {
		return
	}
	r.RecordRateLimitError(RetryAfter(resp.Header))
}

// Allow checks if a request can be made immediately without blocking.
func (r *RateLimiter) Allow() bool {
	r.mu.Lock()
	retryAt := r.retryAt
	r.mu.Unlock()

	if time.Now().Before(retryAt) {
		return false
	}

	return r.limiter.Allow()
}

// RetryAfter parses a Retry-After header given in seconds. It returns zero
// when the header is absent or not a number of seconds.
func RetryAfter(h http.Header) time.Duration {
	v := h.Get("Retry-After")
	if v == "" {
		return 0
	}
	secs, err := strconv.Atoi(v)
	if err != nil || secs < 0 {
		return 0
	}
	return time.Duration(secs) * time.Second
}
