package rate

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/alicebob/miniredis/v2"
	"github.com/redis/go-redis/v9"
)

func newTestLimiter(t *testing.T, cfg Config) (*Limiter, *miniredis.Miniredis) {
	t.Helper()

	srv := miniredis.RunT(t)
	client := redis.NewClient(&redis.Options{Addr: srv.Addr()})
	t.Cleanup(func() { _ = client.Close() })

	return NewLimiter(client, "login", cfg), srv
}

func TestLimiterAllowsWithinBudget(t *testing.T) {
	l, _ := newTestLimiter(t, Config{Enabled: true, Attempts: 3, Window: time.Minute})
	ctx := context.Background()

	for i := 0; i < 3; i++ {
		if err := l.Allow(ctx, "1.2.3.4"); err != nil {
			t.Fatalf("attempt %d: %v", i+1, err)
		}
	}
	if err := l.Allow(ctx, "1.2.3.4"); !errors.Is(err, ErrLimited) {
		t.Fatalf("attempt 4: got %v, want ErrLimited", err)
	}
}

func TestLimiterKeysAreIndependent(t *testing.T) {
	l, _ := newTestLimiter(t, Config{Enabled: true, Attempts: 1, Window: time.Minute})
	ctx := context.Background()

	if err := l.Allow(ctx, "1.2.3.4"); err != nil {
		t.Fatalf("first key: %v", err)
	}
	if err := l.Allow(ctx, "5.6.7.8"); err != nil {
		t.Fatalf("second key should have its own budget: %v", err)
	}
}

func TestLimiterWindowExpires(t *testing.T) {
	l, srv := newTestLimiter(t, Config{Enabled: true, Attempts: 1, Window: time.Minute})
	ctx := context.Background()

	if err := l.Allow(ctx, "1.2.3.4"); err != nil {
		t.Fatalf("first attempt: %v", err)
	}
	if err := l.Allow(ctx, "1.2.3.4"); !errors.Is(err, ErrLimited) {
		t.Fatalf("second attempt: got %v, want ErrLimited", err)
	}

	srv.FastForward(2 * time.Minute)

	if err := l.Allow(ctx, "1.2.3.4"); err != nil {
		t.Fatalf("after window: %v", err)
	}
}

func TestLimiterReset(t *testing.T) {
	l, _ := newTestLimiter(t, Config{Enabled: true, Attempts: 1, Window: time.Minute})
	ctx := context.Background()

	if err := l.Allow(ctx, "1.2.3.4"); err != nil {
		t.Fatalf("first attempt: %v", err)
	}
	if err := l.Reset(ctx, "1.2.3.4"); err != nil {
		t.Fatalf("reset: %v", err)
	}
	if err := l.Allow(ctx, "1.2.3.4"); err != nil {
		t.Fatalf("after reset: %v", err)
	}
}

func TestLimiterDisabled(t *testing.T) {
	l, _ := newTestLimiter(t, Config{Enabled: false, Attempts: 1, Window: time.Minute})
	ctx := context.Background()

	for i := 0; i < 10; i++ {
		if err := l.Allow(ctx, "1.2.3.4"); err != nil {
			t.Fatalf("disabled limiter must always allow: %v", err)
		}
	}
}
