package ratelimit

import (
	"context"
	"net/http"
	"net/http/httptest"
	"os"
	"testing"
	"time"

	"github.com/redis/go-redis/v9"
)

type clock struct{ t time.Time }

func (c *clock) now() time.Time { return c.t }

func TestMemoryLimiter_Allow(t *testing.T) {
	c := &clock{t: time.Date(2025, 1, 1, 0, 0, 0, 0, time.UTC)}
	rl := newMemoryLimiter(c.now)
	ctx := context.Background()

	for i := 1; i <= 3; i++ {
		d := rl.Allow(ctx, "ip:1", 3, time.Minute)
		if !d.Allowed || d.Count != i {
			t.Fatalf("request %d: %+v", i, d)
		}
	}
	if d := rl.Allow(ctx, "ip:1", 3, time.Minute); d.Allowed {
		t.Fatalf("fourth request should be limited: %+v", d)
	}
	if d := rl.Allow(ctx, "ip:2", 3, time.Minute); !d.Allowed {
		t.Fatal("other keys are independent")
	}

	c.t = c.t.Add(time.Minute)
	if d := rl.Allow(ctx, "ip:1", 3, time.Minute); !d.Allowed || d.Count != 1 {
		t.Fatalf("window should reset: %+v", d)
	}
}

func TestMemoryLimiter_ZeroLimitDisables(t *testing.T) {
	rl := newMemoryLimiter(time.Now)
	for i := 0; i < 100; i++ {
		if !rl.Allow(context.Background(), "k", 0, time.Minute).Allowed {
			t.Fatal("limit 0 should allow everything")
		}
	}
	if rl.ActiveClients() != 0 {
		t.Error("disabled limiter should not track keys")
	}
}

func TestMemoryLimiter_Cleanup(t *testing.T) {
	c := &clock{t: time.Now()}
	rl := newMemoryLimiter(c.now)
	rl.Allow(context.Background(), "a", 5, time.Minute)
	rl.Allow(context.Background(), "b", 5, time.Hour)

	c.t = c.t.Add(2 * time.Minute)
	rl.cleanupStaleEntries()

	if got := rl.ActiveClients(); got != 1 {
		t.Errorf("ActiveClients() = %d, want 1", got)
	}
}

func TestMemoryLimiter_CloseIsIdempotent(t *testing.T) {
	rl := NewMemoryLimiter(time.Hour)
	rl.Close()
	rl.Close()
}

func TestMiddleware(t *testing.T) {
	rl := newMemoryLimiter(time.Now)
	h := Middleware(rl, 2, time.Minute, func(r *http.Request) string { return "ip:test" }, nil)(
		http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) { w.WriteHeader(http.StatusOK) }))

	codes := make([]int, 0, 3)
	var last *httptest.ResponseRecorder
	for i := 0; i < 3; i++ {
		last = httptest.NewRecorder()
		h.ServeHTTP(last, httptest.NewRequest(http.MethodPost, "/auth/forgot-password", nil))
		codes = append(codes, last.Code)
	}

	if codes[0] != http.StatusOK || codes[1] != http.StatusOK || codes[2] != http.StatusTooManyRequests {
		t.Fatalf("status codes = %v", codes)
	}
	if last.Header().Get("Retry-After") == "" {
		t.Error("429 should carry Retry-After")
	}
	if last.Header().Get("X-RateLimit-Remaining") != "0" {
		t.Errorf("remaining = %q", last.Header().Get("X-RateLimit-Remaining"))
	}
}

func TestMiddleware_CustomOnLimit(t *testing.T) {
	rl := newMemoryLimiter(time.Now)
	called := false
	h := Middleware(rl, 1, time.Minute, func(*http.Request) string { return "k" }, func(w http.ResponseWriter, r *http.Request) {
		called = true
		w.WriteHeader(http.StatusTooManyRequests)
	})(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {}))

	h.ServeHTTP(httptest.NewRecorder(), httptest.NewRequest(http.MethodGet, "/", nil))
	h.ServeHTTP(httptest.NewRecorder(), httptest.NewRequest(http.MethodGet, "/", nil))
	if !called {
		t.Error("onLimit should be used for limited requests")
	}
}

func TestRedisLimiter_FailsOpen(t *testing.T) {
	client := redis.NewClient(&redis.Options{
		Addr:        "127.0.0.1:1",
		DialTimeout: 50 * time.Millisecond,
		MaxRetries:  -1,
	})
	rl := newRedisLimiter(client, nil)
	defer rl.Close()

	for i := 0; i < 3; i++ {
		if d := rl.Allow(context.Background(), "ip:x", 1, time.Minute); !d.Allowed {
			t.Fatalf("unreachable redis should fail open: %+v", d)
		}
	}
}

func TestNewRedisLimiter_BadURL(t *testing.T) {
	if _, err := NewRedisLimiter(context.Background(), "not-a-url", nil); err == nil {
		t.Error("expected parse error")
	}
}

func TestWindowTTL(t *testing.T) {
	tests := []struct {
		name       string
		ttl        time.Duration
		wantTTL    time.Duration
		wantRepair bool
	}{
		{"live window", 20 * time.Second, 20 * time.Second, false},
		{"no expiry", -1, time.Minute, true},
		{"missing key", -2, time.Minute, true},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			ttl, repair := windowTTL(tt.ttl, time.Minute)
			if ttl != tt.wantTTL || repair != tt.wantRepair {
				t.Fatalf("windowTTL(%v) = %v, %v", tt.ttl, ttl, repair)
			}
		})
	}
}

func TestRedisLimiter_RestoresMissingExpiry(t *testing.T) {
	url := os.Getenv("TEST_REDIS_URL")
	if url == "" {
		t.Skip("TEST_REDIS_URL not set")
	}
	ctx := context.Background()
	rl, err := NewRedisLimiter(ctx, url, nil)
	if err != nil {
		t.Fatalf("connect: %v", err)
	}
	defer rl.Close()

	key := "test:" + t.Name()
	redisKey := rl.prefix + key
	// A counter left over limit with no expiry.
	if err := rl.client.Set(ctx, redisKey, 10, 0).Err(); err != nil {
		t.Fatalf("seed: %v", err)
	}
	defer rl.client.Del(ctx, redisKey)

	if d := rl.Allow(ctx, key, 5, time.Minute); d.Allowed {
		t.Fatalf("over-limit key should be denied: %+v", d)
	}
	ttl, err := rl.client.TTL(ctx, redisKey).Result()
	if err != nil {
		t.Fatalf("ttl: %v", err)
	}
	if ttl <= 0 || ttl > time.Minute {
		t.Fatalf("expiry not restored, ttl = %v", ttl)
	}
}
