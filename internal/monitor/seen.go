package monitor

import (
	"sync"
	"time"

	"visawatch/pkg/types"
)

// seenStats aggregates every date the calendar has ever offered during this
// run, whether accepted or not. The /status command uses it to show how the
// search is going: availability comes and goes, and the best date spotted so
// far tells the user whether the configured window is realistic.
type seenStats struct {
	mu      sync.Mutex
	entries map[types.Date]*seenEntry
	max     int
}

type seenEntry struct {
	first time.Time
	last  time.Time
	count int
}

func newSeenStats(max int) *seenStats {
	if max <= 0 {
		max = 512
	}
	return &seenStats{
		entries: make(map[types.Date]*seenEntry),
		max:     max,
	}
}

// Observe records one sighting of the given date.
func (s *seenStats) Observe(date types.Date) {
	if date.IsZero() {
		return
	}
	now := time.Now()
	s.mu.Lock()
	e, ok := s.entries[date]
	if !ok {
		if len(s.entries) >= s.max {
			s.evictStalestLocked()
		}
		e = &seenEntry{first: now}
		s.entries[date] = e
	}
	e.last = now
	e.count++
	s.mu.Unlock()
}

// Earliest returns the earliest date observed so far and how often it has
// come up.
func (s *seenStats) Earliest() (types.Date, int, bool) {
	s.mu.Lock()
	defer s.mu.Unlock()
	var best types.Date
	found := false
	for date := range s.entries {
		if !found || date.Before(best) {
			best = date
			found = true
		}
	}
	if !found {
		return types.Date{}, 0, false
	}
	return best, s.entries[best].count, true
}

// Distinct returns the number of different dates observed.
func (s *seenStats) Distinct() int {
	s.mu.Lock()
	defer s.mu.Unlock()
	return len(s.entries)
}

// evictStalestLocked drops the date that has not been offered for the
// longest time, keeping the map bounded on very chatty calendars.
func (s *seenStats) evictStalestLocked() {
	var stalest types.Date
	var when time.Time
	first := true
	for date, e := range s.entries {
		if first || e.last.Before(when) {
			stalest = date
			when = e.last
			first = false
		}
	}
	if !first {
		delete(s.entries, stalest)
	}
}
