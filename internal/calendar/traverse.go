// Package calendar walks the appointment date picker month by month
// until it finds a selectable day or runs out of months to try.
package calendar

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"time"

	"visawatch/internal/browser"
	"visawatch/pkg/types"
)

// ErrExhausted is returned when the traversal hits its month bound, or
// the next-month control disappears, without finding a selectable day.
var ErrExhausted = errors.New("no selectable day within the traversal bound")

// monthCap is the hard ceiling on month advances, keeping the traversal
// bounded when the configured latest date is absent or malformed.
const monthCap = 24

// Pager is the slice of the page adapter the traversal drives.
type Pager interface {
	// FirstSelectableDay returns a handle to the first enabled day cell
	// in the rendered month, or an error wrapping browser.ErrNoMatch
	// when the month has none.
	FirstSelectableDay(ctx context.Context) (types.CandidateSlot, error)
	// AdvanceMonth clicks the widget's next-month control.
	AdvanceMonth(ctx context.Context) error
}

// MonthBound derives how many times the traversal may advance past the
// rendered month: one more than the months between today and the latest
// acceptable date, capped at the hard ceiling. A zero or already-passed
// latest date falls back to the ceiling.
func MonthBound(today time.Time, latest types.Date) int {
	if latest.IsZero() {
		return monthCap
	}
	months := (latest.Year-today.Year())*12 + int(latest.Month) - int(today.Month())
	if months < 0 {
		return monthCap
	}
	if months+1 > monthCap {
		return monthCap
	}
	return months + 1
}

// FirstAvailable scans the rendered month and, while none of its days is
// selectable, advances month by month up to bound. Day cells are taken
// in document order; the first hit wins. The returned slot carries only
// the element handle, the caller resolves the actual date by selecting
// the day and reading the widget's date field back.
func FirstAvailable(ctx context.Context, p Pager, bound int, logger *slog.Logger) (types.CandidateSlot, error) {
	if logger == nil {
		logger = slog.Default()
	}
	if bound <= 0 {
		bound = monthCap
	}

	advances := 0
	for {
		if err := ctx.Err(); err != nil {
			return types.CandidateSlot{}, err
		}

		slot, err := p.FirstSelectableDay(ctx)
		if err == nil {
			logger.Debug("selectable day found", "advances", advances, "node", slot.NodeID)
			return slot, nil
		}
		if !errors.Is(err, browser.ErrNoMatch) {
			return types.CandidateSlot{}, fmt.Errorf("scan month: %w", err)
		}

		if advances >= bound {
			return types.CandidateSlot{}, fmt.Errorf("%w (%d month advances)", ErrExhausted, advances)
		}
		if err := p.AdvanceMonth(ctx); err != nil {
			if ctx.Err() != nil {
				return types.CandidateSlot{}, ctx.Err()
			}
			return types.CandidateSlot{}, fmt.Errorf("%w: next month control: %v", ErrExhausted, err)
		}
		advances++
		logger.Debug("month advanced", "advances", advances, "bound", bound)
	}
}
