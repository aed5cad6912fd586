package loginguard

import (
	"context"
	"errors"
	"sync"
	"testing"
	"time"

	"github.com/alicebob/miniredis/v2"
	"github.com/redis/go-redis/v9"
)

func newTestRedis(t *testing.T) (*miniredis.Miniredis, *redis.Client) {
	t.Helper()

	mr, err := miniredis.Run()
	if err != nil {
		t.Fatalf("miniredis.Run failed: %v", err)
	}

	client := redis.NewClient(&redis.Options{Addr: mr.Addr()})
	return mr, client
}

// fakeClock is a settable time source so lockout expiry and delay decay can
// be tested without sleeping.
type fakeClock struct {
	mu  sync.Mutex
	now time.Time
}

func newFakeClock() *fakeClock {
	return &fakeClock{now: time.Date(2026, 3, 14, 9, 0, 0, 0, time.UTC)}
}

func (c *fakeClock) Now() time.Time {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.now
}

func (c *fakeClock) Advance(d time.Duration) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.now = c.now.Add(d)
}

// stubProvider authenticates one hard-coded credential pair.
type stubProvider struct {
	identifier string
	secret     string
	err        error

	mu    sync.Mutex
	calls int
}

func (p *stubProvider) SignIn(ctx context.Context, identifier, secret string) (*AuthResult, error) {
	p.mu.Lock()
	p.calls++
	p.mu.Unlock()

	if p.err != nil {
		return nil, p.err
	}
	if identifier != p.identifier || secret != p.secret {
		return nil, errors.New("provider rejected credentials")
	}
	return &AuthResult{UserID: "user-1", SessionToken: "token-1"}, nil
}

func (p *stubProvider) Calls() int {
	p.mu.Lock()
	defer p.mu.Unlock()
	return p.calls
}

// gateProvider blocks inside SignIn until released, to hold a login in
// flight deterministically.
type gateProvider struct {
	entered   chan struct{}
	release   chan struct{}
	enterOnce sync.Once
}

func newGateProvider() *gateProvider {
	return &gateProvider{
		entered: make(chan struct{}),
		release: make(chan struct{}),
	}
}

func (p *gateProvider) SignIn(ctx context.Context, identifier, secret string) (*AuthResult, error) {
	p.enterOnce.Do(func() { close(p.entered) })
	<-p.release
	return &AuthResult{UserID: "user-1", SessionToken: "token-1"}, nil
}

func buildTestEngine(t *testing.T, mutate func(*Builder)) (*Engine, *fakeClock, func()) {
	t.Helper()

	mr, rdb := newTestRedis(t)
	clock := newFakeClock()

	builder := New().
		WithRedis(rdb).
		WithClock(clock).
		WithProvider(&stubProvider{identifier: "alice@example.com", secret: "correct-horse"}).
		WithMetricsEnabled(true)
	if mutate != nil {
		mutate(builder)
	}

	engine, err := builder.Build()
	if err != nil {
		mr.Close()
		t.Fatalf("Build failed: %v", err)
	}

	return engine, clock, func() {
		engine.Close()
		_ = rdb.Close()
		mr.Close()
	}
}
