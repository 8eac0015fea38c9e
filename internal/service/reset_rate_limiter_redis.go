package service

import (
	"context"
	"strconv"
	"time"

	"github.com/google/uuid"
	"github.com/redis/go-redis/v9"
)

const redisCallTimeout = 500 * time.Millisecond

// Ventana deslizante sobre un sorted set cuya puntuación es el instante en ms.
// ARGV: ahora, corte (ahora - ventana), límite, miembro, ventana en ms.
const resetWindowScript = `
redis.call("ZREMRANGEBYSCORE", KEYS[1], "-inf", ARGV[2])
if redis.call("ZCARD", KEYS[1]) >= tonumber(ARGV[3]) then
  return 0
end
redis.call("ZADD", KEYS[1], ARGV[1], ARGV[4])
redis.call("PEXPIRE", KEYS[1], ARGV[5])
return 1
`

type redisEvaler interface {
	Eval(ctx context.Context, script string, keys []string, args ...interface{}) *redis.Cmd
}

type redisResetRateLimiter struct {
	client redisEvaler
	window time.Duration
	limit  int
	prefix string
	now    func() time.Time
}

// NewRedisResetRateLimiter comparte la ventana entre instancias. Si redis falla, deja pasar.
func NewRedisResetRateLimiter(client *redis.Client, window time.Duration, limit int) ResetRateLimiter {
	if client == nil {
		return nil
	}
	window, limit = resetLimiterDefaults(window, limit)
	return &redisResetRateLimiter{
		client: client,
		window: window,
		limit:  limit,
		prefix: "auth:reset:",
		now:    func() time.Time { return time.Now().UTC() },
	}
}

func (r *redisResetRateLimiter) Allow(ctx context.Context, email string) bool {
	email = normalizeLimiterKey(email)
	if email == "" {
		return false
	}

	ctx, cancel := context.WithTimeout(ctx, redisCallTimeout)
	defer cancel()

	now := r.now()
	args := []interface{}{
		strconv.FormatInt(now.UnixMilli(), 10),
		strconv.FormatInt(now.Add(-r.window).UnixMilli(), 10),
		strconv.Itoa(r.limit),
		uuid.NewString(),
		strconv.FormatInt(r.window.Milliseconds(), 10),
	}
	admitted, err := r.client.Eval(ctx, resetWindowScript, []string{r.prefix + email}, args...).Int()
	if err != nil {
		return true
	}
	return admitted == 1
}
