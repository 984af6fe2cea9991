package middleware

import (
	"context"
	"testing"
	"time"

	miniredis "github.com/alicebob/miniredis/v2"
	"github.com/redis/go-redis/v9"
)

func newRedisLimiterForTest(t *testing.T) (*miniredis.Miniredis, *RedisFixedWindowLimiter) {
	t.Helper()
	m := miniredis.RunT(t)
	client := redis.NewClient(&redis.Options{Addr: m.Addr()})
	t.Cleanup(func() {
		_ = client.Close()
	})
	return m, NewRedisFixedWindowLimiter(client, "rl_test")
}

func TestRedisFixedWindowLimiterAllowAndDeny(t *testing.T) {
	_, limiter := newRedisLimiterForTest(t)
	ctx := context.Background()

	allowed, _, err := limiter.Allow(ctx, "1.2.3.4", 1, time.Minute)
	if err != nil {
		t.Fatalf("first request: %v", err)
	}
	if !allowed {
		t.Fatal("first request must pass")
	}

	allowed, retryAfter, err := limiter.Allow(ctx, "1.2.3.4", 1, time.Minute)
	if err != nil {
		t.Fatalf("second request: %v", err)
	}
	if allowed {
		t.Fatal("second request over the limit must be denied")
	}
	if retryAfter <= 0 || retryAfter > time.Minute {
		t.Fatalf("retryAfter=%v", retryAfter)
	}
}

func TestRedisFixedWindowLimiterWindowExpires(t *testing.T) {
	m, limiter := newRedisLimiterForTest(t)
	ctx := context.Background()

	if allowed, _, _ := limiter.Allow(ctx, "k", 1, time.Second); !allowed {
		t.Fatal("first request")
	}
	if allowed, _, _ := limiter.Allow(ctx, "k", 1, time.Second); allowed {
		t.Fatal("over limit")
	}

	m.FastForward(2 * time.Second)
	if allowed, _, err := limiter.Allow(ctx, "k", 1, time.Second); err != nil || !allowed {
		t.Fatalf("after expiry: allowed=%v err=%v", allowed, err)
	}
}

func TestRedisFixedWindowLimiterEmptyKeyFallback(t *testing.T) {
	_, limiter := newRedisLimiterForTest(t)
	if allowed, _, err := limiter.Allow(context.Background(), "", 5, time.Minute); err != nil || !allowed {
		t.Fatalf("empty key: allowed=%v err=%v", allowed, err)
	}
}

func TestRedisFixedWindowLimiterBackendErrors(t *testing.T) {
	limiter := NewRedisFixedWindowLimiter(nil, "")
	if _, _, err := limiter.Allow(context.Background(), "k", 1, time.Minute); err == nil {
		t.Fatal("expected nil client error")
	}

	badClient := redis.NewClient(&redis.Options{
		Addr:         "127.0.0.1:1",
		DialTimeout:  20 * time.Millisecond,
		ReadTimeout:  20 * time.Millisecond,
		WriteTimeout: 20 * time.Millisecond,
	})
	t.Cleanup(func() { _ = badClient.Close() })
	limiter = NewRedisFixedWindowLimiter(badClient, "")
	ctx, cancel := context.WithTimeout(context.Background(), 50*time.Millisecond)
	defer cancel()
	if _, _, err := limiter.Allow(ctx, "k", 1, time.Minute); err == nil {
		t.Fatal("expected backend error")
	}
}

func TestParseRedisInt64Branches(t *testing.T) {
	if v, err := parseRedisInt64(int64(4)); err != nil || v != 4 {
		t.Fatalf("int64 parse mismatch v=%d err=%v", v, err)
	}
	if v, err := parseRedisInt64(int(3)); err != nil || v != 3 {
		t.Fatalf("int parse mismatch v=%d err=%v", v, err)
	}
	if _, err := parseRedisInt64("1"); err == nil {
		t.Fatal("expected string type error")
	}
}
