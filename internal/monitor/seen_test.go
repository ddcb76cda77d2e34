package monitor

import (
	"os"
	"path/filepath"
	"strings"
	"testing"
	"time"

	"visawatch/internal/artifacts"
	"visawatch/internal/config"
	"visawatch/internal/session"
	"visawatch/pkg/types"
)

func TestSeenStatsTracksEarliest(t *testing.T) {
	s := newSeenStats(0)
	june := types.Date{Year: 2026, Month: time.June, Day: 15}
	march := types.Date{Year: 2026, Month: time.March, Day: 3}
	s.Observe(june)
	s.Observe(march)
	s.Observe(june)
	s.Observe(types.Date{})

	best, count, ok := s.Earliest()
	if !ok || !best.Equal(march) {
		t.Fatalf("expected earliest %s, got %s (ok=%v)", march, best, ok)
	}
	if count != 1 {
		t.Fatalf("expected one sighting of %s, got %d", march, count)
	}
	if s.Distinct() != 2 {
		t.Fatalf("expected two distinct dates, got %d", s.Distinct())
	}
}

func TestSeenStatsCountsRepeats(t *testing.T) {
	s := newSeenStats(0)
	date := types.Date{Year: 2026, Month: time.June, Day: 15}
	for i := 0; i < 3; i++ {
		s.Observe(date)
	}
	_, count, ok := s.Earliest()
	if !ok || count != 3 {
		t.Fatalf("expected three sightings, got %d (ok=%v)", count, ok)
	}
}

func TestSeenStatsEvictsStalest(t *testing.T) {
	s := newSeenStats(2)
	a := types.Date{Year: 2026, Month: time.June, Day: 1}
	b := types.Date{Year: 2026, Month: time.June, Day: 2}
	c := types.Date{Year: 2026, Month: time.June, Day: 3}
	s.Observe(a)
	time.Sleep(time.Millisecond)
	s.Observe(b)
	time.Sleep(time.Millisecond)
	s.Observe(a) // refresh a, so b is now the stalest
	time.Sleep(time.Millisecond)
	s.Observe(c)

	if s.Distinct() != 2 {
		t.Fatalf("expected cap of 2, got %d", s.Distinct())
	}
	best, _, ok := s.Earliest()
	if !ok || !best.Equal(a) {
		t.Fatalf("expected refreshed date to survive eviction, earliest = %s", best)
	}
}

func TestStatusReportsEarliestSeen(t *testing.T) {
	cfg := scenarioConfig()
	mon := New(Options{Config: cfg, Notifier: &recordingNotifier{}, Logger: discardLogger()})
	mon.seen.Observe(types.Date{Year: 2026, Month: time.June, Day: 15})
	mon.seen.Observe(types.Date{Year: 2026, Month: time.April, Day: 2})

	status := mon.Status()
	if !strings.Contains(status, "Earliest seen: 2026-04-02") {
		t.Fatalf("expected earliest-seen line, got:\n%s", status)
	}
	if !strings.Contains(status, "2 distinct dates") {
		t.Fatalf("expected distinct-date count, got:\n%s", status)
	}
}

func TestBookingFailureCapturesArtifacts(t *testing.T) {
	cfg := scenarioConfig()
	dir := t.TempDir()
	store, err := artifacts.New(config.ArtifactsConfig{Enabled: true, Directory: dir})
	if err != nil {
		t.Fatalf("artifacts store: %v", err)
	}

	found := types.Date{Year: 2026, Month: time.June, Day: 15}
	site := newScriptedSite()
	site.finds = []findStep{{slot: types.CandidateSlot{Date: found, Location: "Toronto"}}}
	site.outcome = types.BookingFailure(found, "stayed on scheduling page")

	opener := &siteOpener{sites: []*scriptedSite{site}}
	mgr := session.NewManager(opener.open, cfg, discardLogger())
	rec := &recordingNotifier{confirm: true}
	mon := New(Options{
		Config:    cfg,
		Sessions:  mgr,
		Notifier:  rec,
		Artifacts: store,
		Logger:    discardLogger(),
	})

	cancel, done := startMonitor(t, mon)
	waitUntil(t, "capture after booking failure", func() bool { return site.called("page-source") })
	cancel()
	if err := waitDone(t, done); err != nil {
		t.Fatalf("expected clean stop, got %v", err)
	}

	var captured []string
	err = filepath.Walk(dir, func(path string, info os.FileInfo, err error) error {
		if err == nil && !info.IsDir() {
			captured = append(captured, filepath.Base(path))
		}
		return err
	})
	if err != nil {
		t.Fatalf("walk artifacts: %v", err)
	}
	if len(captured) == 0 {
		t.Fatal("expected at least one artifact file")
	}
	foundLabel := false
	for _, name := range captured {
		if strings.HasPrefix(name, "booking-failed-") {
			foundLabel = true
		}
	}
	if !foundLabel {
		t.Fatalf("expected booking-failed capture, got %v", captured)
	}
}
