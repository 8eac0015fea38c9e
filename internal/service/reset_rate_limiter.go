package service

import (
	"context"
	"strings"
	"sync"
	"time"
)

// ResetRateLimiter acota cuántos códigos de recuperación se emiten por email.
type ResetRateLimiter interface {
	// Allow anota la solicitud si cabe en la ventana; si no, la rechaza sin anotarla.
	Allow(ctx context.Context, email string) bool
}

type resetRequestLog struct {
	mu       sync.Mutex
	window   time.Duration
	limit    int
	requests map[string][]time.Time
	now      func() time.Time
}

// NewResetRateLimiter admite limit solicitudes por email en cualquier ventana de window.
func NewResetRateLimiter(window time.Duration, limit int) ResetRateLimiter {
	window, limit = resetLimiterDefaults(window, limit)
	return &resetRequestLog{
		window:   window,
		limit:    limit,
		requests: make(map[string][]time.Time),
		now:      func() time.Time { return time.Now().UTC() },
	}
}

func (r *resetRequestLog) Allow(_ context.Context, email string) bool {
	email = normalizeLimiterKey(email)
	if email == "" {
		return false
	}

	r.mu.Lock()
	defer r.mu.Unlock()

	now := r.now()
	recent := pruneBefore(r.requests[email], now.Add(-r.window))
	if len(recent) >= r.limit {
		r.requests[email] = recent
		return false
	}
	r.requests[email] = append(recent, now)
	return true
}

// pruneBefore descarta en sitio las marcas no posteriores a cutoff.
func pruneBefore(stamps []time.Time, cutoff time.Time) []time.Time {
	i := 0
	for i < len(stamps) && !stamps[i].After(cutoff) {
		i++
	}
	return stamps[i:]
}

func normalizeLimiterKey(key string) string {
	return strings.ToLower(strings.TrimSpace(key))
}

func resetLimiterDefaults(window time.Duration, limit int) (time.Duration, int) {
	if window <= 0 {
		window = 10 * time.Minute
	}
	if limit <= 0 {
		limit = 3
	}
	return window, limit
}
