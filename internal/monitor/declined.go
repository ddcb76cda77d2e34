package monitor

import (
	"sync"
	"time"

	"visawatch/pkg/types"
)

// declined remembers candidate dates the user turned down so the loop does
// not re-prompt for the same slot on every cycle. Entries age out so a slot
// can be offered again later.
type declined struct {
	mu      sync.Mutex
	entries map[types.Date]time.Time
	ttl     time.Duration
	max     int
}

func newDeclined(ttl time.Duration, max int) *declined {
	if max <= 0 {
		max = 64
	}
	return &declined{
		entries: make(map[types.Date]time.Time),
		ttl:     ttl,
		max:     max,
	}
}

func (d *declined) Add(date types.Date) {
	now := time.Now()
	d.mu.Lock()
	d.pruneLocked(now)
	if len(d.entries) >= d.max {
		d.evictOldestLocked()
	}
	d.entries[date] = now
	d.mu.Unlock()
}

func (d *declined) Contains(date types.Date) bool {
	now := time.Now()
	d.mu.Lock()
	defer d.mu.Unlock()
	d.pruneLocked(now)
	_, ok := d.entries[date]
	return ok
}

func (d *declined) pruneLocked(now time.Time) {
	if d.ttl <= 0 {
		return
	}
	for date, when := range d.entries {
		if now.Sub(when) > d.ttl {
			delete(d.entries, date)
		}
	}
}

func (d *declined) evictOldestLocked() {
	var oldestDate types.Date
	var oldestTime time.Time
	first := true
	for date, when := range d.entries {
		if first || when.Before(oldestTime) {
			oldestDate = date
			oldestTime = when
			first = false
		}
	}
	if !first {
		delete(d.entries, oldestDate)
	}
}
