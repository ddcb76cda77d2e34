package pacing

import (
	"context"
	"sync"
	"time"

	"golang.org/x/time/rate"

	"visawatch/internal/config"
)

// Pacer spaces out page actions against the scheduling site, combining a
// minimum inter-action delay with an optional token bucket. The monitor
// drives a single site, so there is no per-host bookkeeping.
type Pacer struct {
	delay   time.Duration
	limiter *rate.Limiter

	mu   sync.Mutex
	last time.Time
}

// New builds a pacer from configuration. A nil pacer is valid and waits
// for nothing.
func New(cfg config.PacingConfig) *Pacer {
	p := &Pacer{delay: cfg.MinDelay.Duration}
	if cfg.RateLimit.Enabled() {
		interval := cfg.RateLimit.Window.Duration / time.Duration(cfg.RateLimit.Requests)
		if interval <= 0 {
			interval = time.Millisecond
		}
		p.limiter = rate.NewLimiter(rate.Every(interval), cfg.RateLimit.Requests)
	}
	return p
}

// Wait blocks until the next page action is allowed, or the context ends.
func (p *Pacer) Wait(ctx context.Context) error {
	if p == nil {
		return nil
	}
	if p.delay <= 0 && p.limiter == nil {
		return nil
	}

	var sleep time.Duration
	now := time.Now()
	p.mu.Lock()
	if p.delay > 0 && !p.last.IsZero() {
		if rest := p.last.Add(p.delay).Sub(now); rest > 0 {
			sleep = rest
		}
	}
	p.mu.Unlock()

	if sleep > 0 {
		timer := time.NewTimer(sleep)
		defer timer.Stop()
		select {
		case <-timer.C:
		case <-ctx.Done():
			return ctx.Err()
		}
	}

	if p.limiter != nil {
		if err := p.limiter.Wait(ctx); err != nil {
			return err
		}
	}

	p.mu.Lock()
	p.last = time.Now()
	p.mu.Unlock()
	return nil
}
