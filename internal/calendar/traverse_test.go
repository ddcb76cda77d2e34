package calendar

import (
	"context"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"testing"
	"time"

	"visawatch/internal/browser"
	"visawatch/pkg/types"
)

// fakePager renders a fixed sequence of months; months[i] is the node id
// of the first selectable day in month i, zero meaning none.
type fakePager struct {
	months   []int64
	month    int
	scans    int
	advances int
	blockAt  int
}

func (f *fakePager) FirstSelectableDay(ctx context.Context) (types.CandidateSlot, error) {
	f.scans++
	if f.month < len(f.months) && f.months[f.month] != 0 {
		return types.CandidateSlot{NodeID: f.months[f.month], Epoch: 7}, nil
	}
	return types.CandidateSlot{}, fmt.Errorf("%w: no numeric day cell", browser.ErrNoMatch)
}

func (f *fakePager) AdvanceMonth(ctx context.Context) error {
	if f.blockAt > 0 && f.advances >= f.blockAt {
		return errors.New("next month control not found")
	}
	f.advances++
	f.month++
	return nil
}

func testLogger() *slog.Logger {
	return slog.New(slog.NewTextHandler(io.Discard, nil))
}

func TestFirstAvailableFindsDayInLaterMonth(t *testing.T) {
	p := &fakePager{months: []int64{0, 0, 42}}
	slot, err := FirstAvailable(context.Background(), p, 6, testLogger())
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if slot.NodeID != 42 {
		t.Fatalf("expected node 42, got %d", slot.NodeID)
	}
	if p.advances != 2 {
		t.Fatalf("expected 2 month advances, got %d", p.advances)
	}
}

func TestFirstAvailableIdempotentPerMonth(t *testing.T) {
	p := &fakePager{months: []int64{42}}
	first, err := FirstAvailable(context.Background(), p, 6, testLogger())
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	second, err := FirstAvailable(context.Background(), p, 6, testLogger())
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if first.NodeID != second.NodeID {
		t.Fatalf("two scans without navigation disagreed: %d vs %d", first.NodeID, second.NodeID)
	}
	if p.advances != 0 {
		t.Fatalf("expected no month advances, got %d", p.advances)
	}
}

func TestFirstAvailableExhaustsAtBound(t *testing.T) {
	p := &fakePager{months: []int64{0, 0, 0, 0, 0, 0, 0, 0}}
	_, err := FirstAvailable(context.Background(), p, 3, testLogger())
	if !errors.Is(err, ErrExhausted) {
		t.Fatalf("expected ErrExhausted, got %v", err)
	}
	if p.advances != 3 {
		t.Fatalf("expected exactly 3 advances at bound 3, got %d", p.advances)
	}
}

func TestFirstAvailableExhaustsWhenControlVanishes(t *testing.T) {
	p := &fakePager{months: []int64{0, 0, 0}, blockAt: 1}
	_, err := FirstAvailable(context.Background(), p, 10, testLogger())
	if !errors.Is(err, ErrExhausted) {
		t.Fatalf("expected ErrExhausted, got %v", err)
	}
	if p.advances != 1 {
		t.Fatalf("expected traversal to stop after the blocked advance, got %d", p.advances)
	}
}

func TestFirstAvailableHonoursCancellation(t *testing.T) {
	ctx, cancel := context.WithCancel(context.Background())
	cancel()
	p := &fakePager{months: []int64{0, 0, 0}}
	_, err := FirstAvailable(ctx, p, 10, testLogger())
	if !errors.Is(err, context.Canceled) {
		t.Fatalf("expected context.Canceled, got %v", err)
	}
	if p.scans != 0 {
		t.Fatal("expected no scan after cancellation")
	}
}

func TestMonthBound(t *testing.T) {
	today := time.Date(2026, time.February, 10, 0, 0, 0, 0, time.UTC)
	cases := []struct {
		name   string
		latest types.Date
		want   int
	}{
		{"absent", types.Date{}, 24},
		{"same month", types.Date{Year: 2026, Month: 2, Day: 28}, 1},
		{"three months out", types.Date{Year: 2026, Month: 5, Day: 1}, 4},
		{"far future capped", types.Date{Year: 2031, Month: 1, Day: 1}, 24},
		{"already passed", types.Date{Year: 2025, Month: 12, Day: 1}, 24},
	}
	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			if got := MonthBound(today, tc.latest); got != tc.want {
				t.Fatalf("expected %d, got %d", tc.want, got)
			}
		})
	}
}
