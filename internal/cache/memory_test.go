package cache

import (
	"context"
	"errors"
	"testing"
	"time"
)

func TestMemoryProviderSetNX(t *testing.T) {
	ctx := context.Background()
	p := NewMemoryProvider()

	ok, err := p.SetNX(ctx, "alert:a:b", []byte("1"), time.Minute)
	if err != nil || !ok {
		t.Fatalf("first claim should succeed: ok=%v err=%v", ok, err)
	}
	ok, err = p.SetNX(ctx, "alert:a:b", []byte("2"), time.Minute)
	if err != nil || ok {
		t.Fatalf("second claim should be rejected: ok=%v err=%v", ok, err)
	}

	value, err := p.Get(ctx, "alert:a:b")
	if err != nil || string(value) != "1" {
		t.Fatalf("expected original value, got %q err=%v", value, err)
	}
}

func TestMemoryProviderExpiry(t *testing.T) {
	ctx := context.Background()
	now := time.Date(2026, 1, 1, 0, 0, 0, 0, time.UTC)
	p := NewMemoryProvider()
	p.now = func() time.Time { return now }

	if err := p.Set(ctx, "k", []byte("v"), time.Second); err != nil {
		t.Fatalf("set: %v", err)
	}
	now = now.Add(time.Second)
	if _, err := p.Get(ctx, "k"); !errors.Is(err, ErrCacheMiss) {
		t.Fatalf("expected expired entry to miss, got %v", err)
	}
	ok, _ := p.SetNX(ctx, "k", []byte("w"), 0)
	if !ok {
		t.Fatalf("expected claim on expired key to succeed")
	}
	now = now.Add(24 * time.Hour)
	if _, err := p.Get(ctx, "k"); err != nil {
		t.Fatalf("zero ttl should not expire: %v", err)
	}
}

func TestMemoryProviderReturnsCopies(t *testing.T) {
	ctx := context.Background()
	p := NewMemoryProvider()
	buf := []byte("abc")
	_ = p.Set(ctx, "k", buf, 0)
	buf[0] = 'x'

	got, _ := p.Get(ctx, "k")
	got[1] = 'y'
	again, _ := p.Get(ctx, "k")
	if string(again) != "abc" {
		t.Fatalf("cache value mutated through caller slices: %q", again)
	}

	_ = p.Del(ctx, "k")
	if _, err := p.Get(ctx, "k"); !errors.Is(err, ErrCacheMiss) {
		t.Fatalf("expected miss after delete")
	}
}

func TestNoopProviderAlwaysClaims(t *testing.T) {
	var p Provider = NoopProvider{}
	ok, err := p.SetNX(context.Background(), "k", nil, 0)
	if err != nil || !ok {
		t.Fatalf("noop provider should report claims as successful")
	}
	if _, err := p.Get(context.Background(), "k"); !errors.Is(err, ErrCacheMiss) {
		t.Fatalf("noop provider should always miss")
	}
}
