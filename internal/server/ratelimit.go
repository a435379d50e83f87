package server

import (
	"net"
	"net/http"
	"strings"
	"sync"
	"time"
)

// RateLimitConfig holds rate limiting configuration.
type RateLimitConfig struct {
	MaxAttempts int           // Maximum connections per window, 0 disables limiting
	Window      time.Duration // Time window for rate limiting (default: 1 minute)
}

// DefaultRateLimitConfig returns the default rate limiting configuration.
func DefaultRateLimitConfig() RateLimitConfig {
	return RateLimitConfig{
		MaxAttempts: 30,
		Window:      time.Minute,
	}
}

// rateLimiter implements a sliding window rate limiter keyed by client IP.
type rateLimiter struct {
	mu     sync.Mutex
	config RateLimitConfig

	// attempts tracks timestamps of connections per IP
	attempts map[string][]time.Time

	now func() time.Time
}

// newRateLimiter creates a rate limiter, or returns nil when the config
// disables limiting. A nil *rateLimiter allows everything.
func newRateLimiter(config RateLimitConfig) *rateLimiter {
	if config.MaxAttempts <= 0 {
		return nil
	}
	if config.Window <= 0 {
		config.Window = time.Minute
	}

	return &rateLimiter{
		config:   config,
		attempts: make(map[string][]time.Time),
		now:      time.Now,
	}
}

// checkResult represents the result of a rate limit check.
type checkResult struct {
	Allowed    bool
	RetryAfter time.Duration // How long until the client can retry
	Attempts   int           // Connections in the current window, this one included
	Reason     string        // Human-readable reason for rejection
}

// check records a connection from ip and reports whether it is allowed.
func (rl *rateLimiter) check(ip string) checkResult {
	if rl == nil {
		return checkResult{Allowed: true}
	}

	rl.mu.Lock()
	defer rl.mu.Unlock()

	now := rl.now()
	valid := prune(rl.attempts[ip], now.Add(-rl.config.Window))
	rl.attempts[ip] = valid

	if len(valid) >= rl.config.MaxAttempts {
		// The oldest connection in the window is the next to expire
		retryAfter := valid[0].Add(rl.config.Window).Sub(now)
		if retryAfter <= 0 {
			retryAfter = time.Second
		}
		return checkResult{
			Allowed:    false,
			RetryAfter: retryAfter,
			Attempts:   len(valid),
			Reason:     "rate limit exceeded",
		}
	}

	rl.attempts[ip] = append(valid, now)
	return checkResult{Allowed: true, Attempts: len(valid) + 1}
}

// cleanup removes IPs with no connections inside the window.
// Should be called periodically.
func (rl *rateLimiter) cleanup() {
	if rl == nil {
		return
	}

	rl.mu.Lock()
	defer rl.mu.Unlock()

	windowStart := rl.now().Add(-rl.config.Window)
	for ip, timestamps := range rl.attempts {
		valid := prune(timestamps, windowStart)
		if len(valid) == 0 {
			delete(rl.attempts, ip)
		} else {
			rl.attempts[ip] = valid
		}
	}
}

// tracked returns the number of IPs currently held.
func (rl *rateLimiter) tracked() int {
	if rl == nil {
		return 0
	}
	rl.mu.Lock()
	defer rl.mu.Unlock()
	return len(rl.attempts)
}

func prune(timestamps []time.Time, windowStart time.Time) []time.Time {
	valid := timestamps[:0]
	for _, ts := range timestamps {
		if ts.After(windowStart) {
			valid = append(valid, ts)
		}
	}
	return valid
}

// remoteIP returns the host part of a connection's remote address.
func remoteIP(addr net.Addr) string {
	if addr == nil {
		return ""
	}
	ip, _, err := net.SplitHostPort(addr.String())
	if err != nil {
		return addr.String()
	}
	return ip
}

// extractIP extracts the client IP from the request.
// X-Forwarded-For and X-Real-IP are only honoured when the direct peer is a
// loopback address, i.e. a reverse proxy on the same host. Any other peer
// could set them to dodge the rate limit.
func extractIP(r *http.Request) string {
	peer, _, err := net.SplitHostPort(r.RemoteAddr)
	if err != nil {
		// RemoteAddr might not have a port
		peer = r.RemoteAddr
	}
	if ip := net.ParseIP(peer); ip == nil || !ip.IsLoopback() {
		return peer
	}

	// X-Forwarded-For can be "client, proxy1, proxy2"
	if xff := r.Header.Get("X-Forwarded-For"); xff != "" {
		client, _, _ := strings.Cut(xff, ",")
		if client = strings.TrimSpace(client); client != "" {
			return client
		}
	}

	if xri := strings.TrimSpace(r.Header.Get("X-Real-IP")); xri != "" {
		return xri
	}

	return peer
}
