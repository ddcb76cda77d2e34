package pacing

import (
	"context"
	"errors"
	"testing"
	"time"

	"visawatch/internal/config"
)

func TestPacerEnforcesMinDelay(t *testing.T) {
	p := New(config.PacingConfig{MinDelay: config.DurationFrom(50 * time.Millisecond)})
	ctx := context.Background()

	if err := p.Wait(ctx); err != nil {
		t.Fatalf("first wait: %v", err)
	}
	start := time.Now()
	if err := p.Wait(ctx); err != nil {
		t.Fatalf("second wait: %v", err)
	}
	if elapsed := time.Since(start); elapsed < 40*time.Millisecond {
		t.Fatalf("second wait returned after %s, want >= ~50ms", elapsed)
	}
}

func TestPacerZeroConfigIsFree(t *testing.T) {
	p := New(config.PacingConfig{})
	start := time.Now()
	for i := 0; i < 100; i++ {
		if err := p.Wait(context.Background()); err != nil {
			t.Fatalf("wait %d: %v", i, err)
		}
	}
	if elapsed := time.Since(start); elapsed > 100*time.Millisecond {
		t.Fatalf("unconfigured pacer should not block, took %s", elapsed)
	}

	var nilPacer *Pacer
	if err := nilPacer.Wait(context.Background()); err != nil {
		t.Fatalf("nil pacer must be a no-op, got %v", err)
	}
}

func TestPacerCancellableMidWait(t *testing.T) {
	p := New(config.PacingConfig{MinDelay: config.DurationFrom(5 * time.Second)})
	if err := p.Wait(context.Background()); err != nil {
		t.Fatalf("prime wait: %v", err)
	}

	ctx, cancel := context.WithCancel(context.Background())
	go func() {
		time.Sleep(20 * time.Millisecond)
		cancel()
	}()

	start := time.Now()
	err := p.Wait(ctx)
	if !errors.Is(err, context.Canceled) {
		t.Fatalf("expected context.Canceled, got %v", err)
	}
	if elapsed := time.Since(start); elapsed > time.Second {
		t.Fatalf("cancellation should interrupt the wait promptly, took %s", elapsed)
	}
}
