package rate

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/alicebob/miniredis/v2"
	"github.com/redis/go-redis/v9"
)

func newLimiterTest(t *testing.T, cfg Config) (*Limiter, *miniredis.Miniredis) {
	t.Helper()
	mr, err := miniredis.Run()
	if err != nil {
		t.Fatalf("miniredis start: %v", err)
	}
	rdb := redis.NewClient(&redis.Options{Addr: mr.Addr()})
	t.Cleanup(func() {
		_ = rdb.Close()
		mr.Close()
	})
	return New(rdb, cfg), mr
}

func TestCheckStartDisabledAlwaysAdmits(t *testing.T) {
	l, mr := newLimiterTest(t, Config{Enabled: false, MaxStarts: 1, Window: time.Minute})
	for i := 0; i < 5; i++ {
		if err := l.CheckStart(context.Background(), "u1"); err != nil {
			t.Fatalf("attempt %d: %v", i, err)
		}
	}
	if len(mr.Keys()) != 0 {
		t.Fatalf("disabled limiter must not write, keys=%v", mr.Keys())
	}
}

func TestCheckStartWindow(t *testing.T) {
	l, mr := newLimiterTest(t, Config{Enabled: true, MaxStarts: 2, Window: time.Minute})
	ctx := context.Background()

	for i := 0; i < 2; i++ {
		if err := l.CheckStart(ctx, "u1"); err != nil {
			t.Fatalf("start %d: %v", i, err)
		}
	}
	if err := l.CheckStart(ctx, "u1"); !errors.Is(err, ErrRateLimited) {
		t.Fatalf("expected ErrRateLimited, got %v", err)
	}
	if err := l.CheckStart(ctx, "u2"); err != nil {
		t.Fatalf("other users are independent: %v", err)
	}

	left, err := l.Remaining(ctx, "u1")
	if err != nil || left != 0 {
		t.Fatalf("expected 0 remaining, got %d err=%v", left, err)
	}

	mr.FastForward(2 * time.Minute)
	if err := l.CheckStart(ctx, "u1"); err != nil {
		t.Fatalf("window should have reset: %v", err)
	}
}

func TestResetClearsWindow(t *testing.T) {
	l, mr := newLimiterTest(t, Config{Enabled: true, MaxStarts: 1, Window: time.Minute, Prefix: "bot:"})
	ctx := context.Background()

	if err := l.CheckStart(ctx, "u1"); err != nil {
		t.Fatalf("start: %v", err)
	}
	if !mr.Exists("bot:rs:u1") {
		t.Fatalf("expected prefixed key, got %v", mr.Keys())
	}
	if err := l.Reset(ctx, "u1"); err != nil {
		t.Fatalf("reset: %v", err)
	}
	left, err := l.Remaining(ctx, "u1")
	if err != nil || left != 1 {
		t.Fatalf("expected full budget after reset, got %d err=%v", left, err)
	}
}

func TestCheckStartBackendFailure(t *testing.T) {
	l, mr := newLimiterTest(t, Config{Enabled: true, MaxStarts: 1, Window: time.Minute})
	mr.Close()

	if err := l.CheckStart(context.Background(), "u1"); !errors.Is(err, ErrRedisUnavailable) {
		t.Fatalf("expected ErrRedisUnavailable, got %v", err)
	}
}
