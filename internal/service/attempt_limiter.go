package service

import (
	"context"
	"fmt"
	"strings"
	"sync"
	"time"

	"github.com/redis/go-redis/v9"
)

// AttemptLimiter cuenta intentos de verificación por identidad. El intento se
// consume antes de verificar y un acierto pone el contador a cero con Reset.
type AttemptLimiter interface {
	// Consume anota un intento y devuelve ErrTooManyAttempts si supera el cupo.
	Consume(ctx context.Context, key string) error
	Reset(ctx context.Context, key string) error
}

type attemptEntry struct {
	attempts int
	resetAt  time.Time
}

type memoryAttemptLimiter struct {
	mu          sync.Mutex
	maxAttempts int
	lockout     time.Duration
	entries     map[string]attemptEntry
	now         func() time.Time
}

// NewMemoryAttemptLimiter admite maxAttempts intentos por clave en cada ventana de lockout.
func NewMemoryAttemptLimiter(maxAttempts int, lockout time.Duration) AttemptLimiter {
	if maxAttempts <= 0 {
		maxAttempts = 5
	}
	if lockout <= 0 {
		lockout = 15 * time.Minute
	}
	return &memoryAttemptLimiter{
		maxAttempts: maxAttempts,
		lockout:     lockout,
		entries:     make(map[string]attemptEntry),
		now:         func() time.Time { return time.Now().UTC() },
	}
}

func (l *memoryAttemptLimiter) Consume(_ context.Context, key string) error {
	l.mu.Lock()
	defer l.mu.Unlock()
	entry, ok := l.current(key)
	if !ok {
		entry = attemptEntry{resetAt: l.now().Add(l.lockout)}
	}
	if entry.attempts > l.maxAttempts {
		return ErrTooManyAttempts
	}
	entry.attempts++
	l.entries[key] = entry
	if entry.attempts > l.maxAttempts {
		return ErrTooManyAttempts
	}
	return nil
}

func (l *memoryAttemptLimiter) Reset(_ context.Context, key string) error {
	l.mu.Lock()
	defer l.mu.Unlock()
	delete(l.entries, key)
	return nil
}

// current devuelve la entrada vigente, descartando las expiradas. Requiere l.mu.
func (l *memoryAttemptLimiter) current(key string) (attemptEntry, bool) {
	entry, ok := l.entries[key]
	if !ok {
		return attemptEntry{}, false
	}
	if !l.now().Before(entry.resetAt) {
		delete(l.entries, key)
		return attemptEntry{}, false
	}
	return entry, true
}

type redisCounter interface {
	Incr(ctx context.Context, key string) *redis.IntCmd
	Expire(ctx context.Context, key string, expiration time.Duration) *redis.BoolCmd
	Del(ctx context.Context, keys ...string) *redis.IntCmd
}

type redisAttemptLimiter struct {
	client      redisCounter
	maxAttempts int
	lockout     time.Duration
	prefix      string
}

// NewRedisAttemptLimiter comparte los contadores de intentos entre instancias.
func NewRedisAttemptLimiter(client *redis.Client, maxAttempts int, lockout time.Duration) AttemptLimiter {
	if client == nil {
		return nil
	}
	if maxAttempts <= 0 {
		maxAttempts = 5
	}
	if lockout <= 0 {
		lockout = 15 * time.Minute
	}
	return &redisAttemptLimiter{
		client:      client,
		maxAttempts: maxAttempts,
		lockout:     lockout,
		prefix:      "auth:att:",
	}
}

func (l *redisAttemptLimiter) key(key string) string {
	return l.prefix + strings.ToLower(strings.TrimSpace(key))
}

// Consume incrementa primero: INCR es atómico, así que dos instancias no pueden
// leer el mismo contador y pasar ambas.
func (l *redisAttemptLimiter) Consume(ctx context.Context, key string) error {
	ctx, cancel := context.WithTimeout(ctx, redisCallTimeout)
	defer cancel()
	redisKey := l.key(key)
	count, err := l.client.Incr(ctx, redisKey).Result()
	if err != nil {
		return fmt.Errorf("attempt limiter consume: %w", err)
	}
	if count == 1 {
		if err := l.client.Expire(ctx, redisKey, l.lockout).Err(); err != nil {
			return fmt.Errorf("attempt limiter expire: %w", err)
		}
	}
	if count > int64(l.maxAttempts) {
		return ErrTooManyAttempts
	}
	return nil
}

func (l *redisAttemptLimiter) Reset(ctx context.Context, key string) error {
	ctx, cancel := context.WithTimeout(ctx, redisCallTimeout)
	defer cancel()
	if err := l.client.Del(ctx, l.key(key)).Err(); err != nil {
		return fmt.Errorf("attempt limiter reset: %w", err)
	}
	return nil
}
