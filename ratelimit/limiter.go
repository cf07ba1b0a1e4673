package ratelimit

import (
	"context"
	"sync"
	"time"

	"github.com/benbjohnson/clock"
	"go.uber.org/zap"
)

// Default request budget per (client address, tenant) key
const (
	DefaultMaxRequests = 100
	DefaultWindow      = 60 * time.Second
)

// Result is the outcome of one limiter check
type Result struct {
	Allowed    bool
	Remaining  int
	ResetAt    time.Time
	RetryAfter time.Duration // populated on rejection
}

// record is one fixed window for a key. resetAt is immutable once set;
// a racing increment after expiry simply starts a new window.
type record struct {
	count   int
	resetAt time.Time
}

// Limiter bounds request volume per key within a fixed rolling window.
// Records are ephemeral and held in memory only; a background sweep
// evicts expired windows to bound growth. Construct one Limiter per
// policy; routes needing a different budget get their own instance.
type Limiter struct {
	max    int
	window time.Duration
	clk    clock.Clock
	logger *zap.Logger

	mu      sync.Mutex
	records map[string]*record
}

// New creates a limiter with the given budget. A nil clock defaults to
// the wall clock.
func New(max int, window time.Duration, clk clock.Clock, logger *zap.Logger) *Limiter {
	if clk == nil {
		clk = clock.New()
	}
	return &Limiter{
		max:     max,
		window:  window,
		clk:     clk,
		logger:  logger,
		records: make(map[string]*record),
	}
}

// Allow consumes one request from the key's budget. On the first request
// of a window the count starts at 1; once the count would exceed the
// budget the request is rejected with the seconds left until reset.
func (l *Limiter) Allow(key string) Result {
	now := l.clk.Now()

	l.mu.Lock()
	defer l.mu.Unlock()

	rec, ok := l.records[key]
	if !ok || now.After(rec.resetAt) {
		rec = &record{count: 1, resetAt: now.Add(l.window)}
		l.records[key] = rec
		return Result{Allowed: true, Remaining: l.max - 1, ResetAt: rec.resetAt}
	}

	rec.count++
	if rec.count > l.max {
		return Result{
			Allowed:    false,
			Remaining:  0,
			ResetAt:    rec.resetAt,
			RetryAfter: rec.resetAt.Sub(now),
		}
	}
	return Result{Allowed: true, Remaining: l.max - rec.count, ResetAt: rec.resetAt}
}

// Sweep removes records whose window has already expired and returns the
// number evicted. Safe to run concurrently with Allow: only dead windows
// are touched.
func (l *Limiter) Sweep() int {
	now := l.clk.Now()

	l.mu.Lock()
	defer l.mu.Unlock()

	evicted := 0
	for key, rec := range l.records {
		if now.After(rec.resetAt) {
			delete(l.records, key)
			evicted++
		}
	}
	return evicted
}

// StartSweeper runs Sweep every interval until ctx is cancelled
func (l *Limiter) StartSweeper(ctx context.Context, interval time.Duration) {
	ticker := l.clk.Ticker(interval)
	defer ticker.Stop()

	l.logger.Info("started rate limit sweeper", zap.Duration("interval", interval))

	for {
		select {
		case <-ticker.C:
			if n := l.Sweep(); n > 0 {
				l.logger.Debug("swept expired rate limit records", zap.Int("evicted", n))
			}
		case <-ctx.Done():
			l.logger.Info("stopping rate limit sweeper")
			return
		}
	}
}

// Len returns the number of live records, for tests and diagnostics
func (l *Limiter) Len() int {
	l.mu.Lock()
	defer l.mu.Unlock()
	return len(l.records)
}
