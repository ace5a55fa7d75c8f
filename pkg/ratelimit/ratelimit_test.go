package ratelimit

import (
	"context"
	"os"
	"testing"
	"time"

	"github.com/redis/go-redis/v9"

	"github.com/jllopis/actionhub/pkg/registry"
)

func TestMemoryLimiterMinuteWindow(t *testing.T) {
	l := NewMemoryLimiter()
	now := time.Date(2026, 1, 1, 10, 0, 5, 0, time.UTC)
	l.now = func() time.Time { return now }
	policy := registry.RateLimit{RequestsPerMinute: 2}

	for i := 0; i < 2; i++ {
		d, err := l.Allow(context.Background(), "cap.email.send", policy)
		if err != nil || !d.Allowed {
			t.Fatalf("request %d should pass: %+v %v", i, d, err)
		}
	}
	d, _ := l.Allow(context.Background(), "cap.email.send", policy)
	if d.Allowed || d.Window != "minute" || d.Limit != 2 {
		t.Fatalf("third request should be limited: %+v", d)
	}
	if d.RetryAfter != 55*time.Second {
		t.Errorf("expected 55s retry, got %s", d.RetryAfter)
	}

	other, _ := l.Allow(context.Background(), "cap.social.post", policy)
	if !other.Allowed {
		t.Errorf("keys must be counted independently")
	}

	now = now.Add(time.Minute)
	if d, _ := l.Allow(context.Background(), "cap.email.send", policy); !d.Allowed {
		t.Errorf("next window should reset the count: %+v", d)
	}
}

func TestMemoryLimiterHourWindow(t *testing.T) {
	l := NewMemoryLimiter()
	now := time.Date(2026, 1, 1, 10, 0, 0, 0, time.UTC)
	l.now = func() time.Time { return now }
	policy := registry.RateLimit{RequestsPerMinute: 10, RequestsPerHour: 3}

	for i := 0; i < 3; i++ {
		now = now.Add(2 * time.Minute)
		if d, _ := l.Allow(context.Background(), "k", policy); !d.Allowed {
			t.Fatalf("request %d should pass", i)
		}
	}
	now = now.Add(2 * time.Minute)
	d, _ := l.Allow(context.Background(), "k", policy)
	if d.Allowed || d.Window != "hour" {
		t.Fatalf("expected hour window to trip: %+v", d)
	}
}

func TestMemoryLimiterUnlimited(t *testing.T) {
	l := NewMemoryLimiter()
	for i := 0; i < 100; i++ {
		if d, _ := l.Allow(context.Background(), "k", registry.RateLimit{}); !d.Allowed {
			t.Fatal("empty policy must never limit")
		}
	}
	if len(l.counters) != 0 {
		t.Errorf("empty policy must not allocate counters")
	}
}

func TestRedisLimiter(t *testing.T) {
	addr := os.Getenv("ACTIONHUB_TEST_REDIS_ADDR")
	if addr == "" {
		t.Skip("set ACTIONHUB_TEST_REDIS_ADDR to run")
	}
	client := redis.NewClient(&redis.Options{Addr: addr})
	defer client.Close()

	l := NewRedisLimiter(client)
	if err := l.Ping(context.Background()); err != nil {
		t.Fatalf("ping: %v", err)
	}
	key := "test-" + time.Now().Format("150405.000000")
	policy := registry.RateLimit{RequestsPerMinute: 1}
	if d, err := l.Allow(context.Background(), key, policy); err != nil || !d.Allowed {
		t.Fatalf("first request should pass: %+v %v", d, err)
	}
	if d, err := l.Allow(context.Background(), key, policy); err != nil || d.Allowed {
		t.Fatalf("second request should be limited: %+v %v", d, err)
	}
}

func TestBucketKey(t *testing.T) {
	now := time.Date(2026, 1, 1, 10, 30, 15, 0, time.UTC)
	k, reset := bucketKey("cap.x", window{name: "hour", size: time.Hour}, now)
	want := "actionhub:ratelimit:cap.x:hour:" + "1767261600"
	if k != want {
		t.Errorf("got %s, want %s", k, want)
	}
	if !reset.Equal(time.Date(2026, 1, 1, 11, 0, 0, 0, time.UTC)) {
		t.Errorf("unexpected reset %s", reset)
	}
}
