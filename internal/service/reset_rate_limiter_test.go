package service

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/alicebob/miniredis/v2"
	"github.com/redis/go-redis/v9"
)

func TestResetRateLimiter_SlidingWindow(t *testing.T) {
	l := NewResetRateLimiter(10*time.Minute, 3).(*resetRequestLog)
	start := time.Date(2024, 5, 1, 12, 0, 0, 0, time.UTC)
	now := start
	l.now = func() time.Time { return now }
	ctx := context.Background()

	for _, offset := range []time.Duration{0, 4 * time.Minute, 8 * time.Minute} {
		now = start.Add(offset)
		if !l.Allow(ctx, "a@x.com") {
			t.Fatalf("request at +%v should be admitted", offset)
		}
	}
	now = start.Add(9 * time.Minute)
	if l.Allow(ctx, "A@X.com ") {
		t.Fatalf("fourth request inside the window should be refused")
	}
	if !l.Allow(ctx, "b@x.com") {
		t.Fatalf("another email has its own window")
	}

	// A los 10m sale la primera solicitud y entra una más, no tres.
	now = start.Add(10 * time.Minute)
	if !l.Allow(ctx, "a@x.com") {
		t.Fatalf("oldest request should have left the window")
	}
	if l.Allow(ctx, "a@x.com") {
		t.Fatalf("only one slot should have been freed")
	}
}

func TestResetRateLimiter_EmptyEmail(t *testing.T) {
	if NewResetRateLimiter(time.Minute, 1).Allow(context.Background(), "  ") {
		t.Fatalf("blank email should be refused")
	}
}

type stubEvaler struct {
	keys   []string
	args   []interface{}
	result int64
	err    error
}

func (s *stubEvaler) Eval(ctx context.Context, _ string, keys []string, args ...interface{}) *redis.Cmd {
	s.keys, s.args = keys, args
	cmd := redis.NewCmd(ctx)
	if s.err != nil {
		cmd.SetErr(s.err)
	} else {
		cmd.SetVal(s.result)
	}
	return cmd
}

func TestRedisResetRateLimiter_ScriptOutcome(t *testing.T) {
	fixed := time.Date(2024, 5, 1, 12, 0, 0, 0, time.UTC)
	cases := []struct {
		name string
		stub *stubEvaler
		want bool
	}{
		{name: "admitted", stub: &stubEvaler{result: 1}, want: true},
		{name: "window full", stub: &stubEvaler{result: 0}, want: false},
		{name: "redis down lets the request through", stub: &stubEvaler{err: errors.New("redis down")}, want: true},
	}
	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			l := &redisResetRateLimiter{
				client: tc.stub,
				window: 2 * time.Minute,
				limit:  3,
				prefix: "auth:reset:",
				now:    func() time.Time { return fixed },
			}
			if got := l.Allow(context.Background(), " User@Example.com "); got != tc.want {
				t.Fatalf("Allow = %v, want %v", got, tc.want)
			}
			if len(tc.stub.keys) != 1 || tc.stub.keys[0] != "auth:reset:user@example.com" {
				t.Fatalf("unexpected keys %v", tc.stub.keys)
			}
			want := []interface{}{"1714564800000", "1714564680000", "3"}
			if len(tc.stub.args) != 5 || tc.stub.args[0] != want[0] || tc.stub.args[1] != want[1] || tc.stub.args[2] != want[2] {
				t.Fatalf("unexpected args %v", tc.stub.args)
			}
		})
	}
}

func TestRedisResetRateLimiter_Miniredis(t *testing.T) {
	mr, client := newTestRedis(t)
	defer mr.Close()
	defer client.Close()

	l := NewRedisResetRateLimiter(client, time.Minute, 2).(*redisResetRateLimiter)
	start := time.Date(2024, 5, 1, 12, 0, 0, 0, time.UTC)
	now := start
	l.now = func() time.Time { return now }
	ctx := context.Background()

	if !l.Allow(ctx, "a@x.com") {
		t.Fatalf("first request should be admitted")
	}
	now = start.Add(30 * time.Second)
	if !l.Allow(ctx, "a@x.com") {
		t.Fatalf("second request should be admitted")
	}
	if l.Allow(ctx, "a@x.com") {
		t.Fatalf("third request should be refused")
	}
	if !l.Allow(ctx, "b@x.com") {
		t.Fatalf("another email has its own window")
	}
	if ttl := mr.TTL("auth:reset:a@x.com"); ttl != time.Minute {
		t.Fatalf("expected key ttl of one window, got %v", ttl)
	}

	now = start.Add(61 * time.Second)
	if !l.Allow(ctx, "a@x.com") {
		t.Fatalf("first request should have left the window")
	}
	if l.Allow(ctx, "a@x.com") {
		t.Fatalf("only one slot should have been freed")
	}
}

func newTestRedis(t *testing.T) (*miniredis.Miniredis, *redis.Client) {
	t.Helper()

	mr, err := miniredis.Run()
	if err != nil {
		t.Fatalf("miniredis.Run failed: %v", err)
	}
	return mr, redis.NewClient(&redis.Options{Addr: mr.Addr()})
}
