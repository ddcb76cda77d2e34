// Package monitor drives the check-evaluate-book loop: poll the calendar for
// a candidate date, validate it against the acceptance bounds, attempt the
// booking, and recover from the site's many ways of saying no.
package monitor

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"sync"
	"time"

	"visawatch/internal/artifacts"
	"visawatch/internal/calendar"
	"visawatch/internal/config"
	"visawatch/internal/history"
	"visawatch/internal/notify"
	"visawatch/internal/page"
	"visawatch/internal/session"
	"visawatch/internal/state"
	"visawatch/pkg/types"
)

// Fatal setup conditions, distinguished so the command layer can exit with
// different codes.
var (
	// ErrSetupFailed reports that the first session could not be
	// established: bad credentials or the reschedule page never loaded.
	ErrSetupFailed = errors.New("setup failed")

	// ErrBusyAtStart reports the site declared itself busy while the first
	// session was being established. Worth retrying later, unlike
	// ErrSetupFailed.
	ErrBusyAtStart = errors.New("site busy during startup")
)

const initialEstablishAttempts = 3

// Declined dates are suppressed for this long before being offered again.
const declineMemory = 6 * time.Hour

type cycleResult int

const (
	cycleClean cycleResult = iota
	cycleBooked
	cycleFailed
)

// Options wires a Monitor.
type Options struct {
	Config    *config.Config
	Sessions  *session.Manager
	Notifier  notify.Notifier
	Store     state.Store      // optional
	Journal   *history.Journal // optional, nil drops records
	Artifacts *artifacts.Store // optional, nil skips captures
	Logger    *slog.Logger
}

// Monitor owns the single long-lived polling loop. Not safe for concurrent
// Run calls; Status may be called from other goroutines.
type Monitor struct {
	cfg       *config.Config
	sessions  *session.Manager
	notifier  notify.Notifier
	store     state.Store
	journal   *history.Journal
	artifacts *artifacts.Store
	logger    *slog.Logger

	facility types.Facility
	declined *declined
	seen     *seenStats

	mu          sync.Mutex
	cycles      int // completed poll cycles since the last restart
	totalCycles int
	restarts    int
	failures    int // consecutive failed cycles
	lastCheck   time.Time
	lastFound   types.Date
}

// New builds a monitor from its collaborators.
func New(opts Options) *Monitor {
	logger := opts.Logger
	if logger == nil {
		logger = slog.Default()
	}
	return &Monitor{
		cfg:       opts.Config,
		sessions:  opts.Sessions,
		notifier:  opts.Notifier,
		store:     opts.Store,
		journal:   opts.Journal,
		artifacts: opts.Artifacts,
		logger:    logger,
		declined:  newDeclined(declineMemory, 0),
		seen:      newSeenStats(0),
	}
}

// Run executes the monitoring loop until a booking succeeds, a fatal setup
// condition occurs, or ctx is cancelled. A nil return means the loop ended
// on purpose: either booked or stopped by the user.
func (m *Monitor) Run(ctx context.Context) error {
	fac, ok := types.FacilityByName(m.cfg.Booking.Facility)
	if !ok {
		return fmt.Errorf("%w: unknown facility %q", ErrSetupFailed, m.cfg.Booking.Facility)
	}
	m.facility = fac

	m.notifier.Notify(ctx, "🤖 US Visa Appointment Bot started!")

	if err := m.initialEstablish(ctx); err != nil {
		if ctx.Err() != nil {
			return m.userStopped(ctx)
		}
		return err
	}
	m.notifier.Notify(ctx, "✅ Successfully logged in to visa website!")
	if d, ok := m.sessions.ExistingDate(); ok {
		m.notifier.Notify(ctx, fmt.Sprintf("📌 Appointment currently on file: %s", d))
		if !m.cfg.Booking.CurrentBooking.Equal(d) {
			m.logger.Warn("configured current booking differs from the site",
				"configured", m.cfg.Booking.CurrentBooking.String(), "site", d.String())
		}
	}
	m.notifier.Notify(ctx, m.startBanner())
	m.logger.Info("monitoring started",
		"facility", fac.Name,
		"earliest", m.cfg.Booking.Earliest.String(),
		"latest", m.cfg.Booking.Latest.String(),
		"current_booking", m.cfg.Booking.CurrentBooking.String(),
		"poll_interval", m.cfg.Schedule.PollInterval.Duration.String())

	for {
		if ctx.Err() != nil {
			return m.userStopped(ctx)
		}

		if !m.sessions.Ready() {
			if stop, err := m.reestablish(ctx); stop {
				return err
			}
			continue
		}

		result, err := m.cycle(ctx)
		switch {
		case err != nil:
			if ctx.Err() != nil || errors.Is(err, context.Canceled) {
				return m.userStopped(ctx)
			}
			if errors.Is(err, page.ErrSiteBusy) {
				m.logger.Warn("site busy mid-loop", "error", err)
				m.capture(ctx, m.sessions.Site(), "site-busy")
				m.notifier.Notify(ctx, "⚠️ <b>System is busy</b>\n\nPlease try again later. Continuing to monitor...")
			} else {
				m.logger.Error("poll cycle failed", "error", err)
				m.notifier.Notify(ctx, fmt.Sprintf("⚠️ Error occurred: %v. Continuing to monitor...", err))
			}
			m.bumpFailures()
		case result == cycleBooked:
			return nil
		case result == cycleFailed:
			m.bumpFailures()
			m.completeCycle()
		default:
			m.resetFailures()
			m.completeCycle()
		}

		m.maybeRestart(ctx)

		if err := m.wait(ctx, m.cfg.Schedule.PollInterval.Duration); err != nil {
			return m.userStopped(ctx)
		}
	}
}

// initialEstablish brings up the first session. Login failures and a busy
// site are fatal here; anything transient is retried a few times before
// giving up.
func (m *Monitor) initialEstablish(ctx context.Context) error {
	var lastErr error
	for attempt := 1; attempt <= initialEstablishAttempts; attempt++ {
		err := m.sessions.Establish(ctx)
		if err == nil {
			return nil
		}
		lastErr = err
		if ctx.Err() != nil {
			return ctx.Err()
		}
		if errors.Is(err, page.ErrLoginFailed) {
			m.notifier.Notify(ctx, "❌ Failed to login to visa website. Please check credentials.")
			return fmt.Errorf("%w: %v", ErrSetupFailed, err)
		}
		if errors.Is(err, page.ErrSiteBusy) {
			m.notifier.Notify(ctx, "⚠️ <b>System is busy</b>\n\nPlease try again.")
			return fmt.Errorf("%w: %v", ErrBusyAtStart, err)
		}
		m.logger.Warn("session establish failed", "attempt", attempt, "error", err)
		if attempt < initialEstablishAttempts {
			if err := m.wait(ctx, m.cfg.Schedule.RestartDelay.Duration); err != nil {
				return err
			}
		}
	}
	m.notifier.Notify(ctx, "❌ Failed to reach the reschedule page. Exiting.")
	return fmt.Errorf("%w: %v", ErrSetupFailed, lastErr)
}

// reestablish recovers a broken session mid-run. Returns stop=true when the
// loop must end (cancellation or a mid-run login failure).
func (m *Monitor) reestablish(ctx context.Context) (bool, error) {
	err := m.sessions.Establish(ctx)
	if err == nil {
		m.resetCycles()
		return false, nil
	}
	if ctx.Err() != nil {
		return true, m.userStopped(ctx)
	}
	if errors.Is(err, page.ErrLoginFailed) {
		m.notifier.Notify(ctx, "❌ Failed to login to visa website. Please check credentials.")
		return true, fmt.Errorf("%w: %v", ErrSetupFailed, err)
	}
	if errors.Is(err, page.ErrSiteBusy) {
		m.logger.Warn("site busy during re-establish", "error", err)
		m.notifier.Notify(ctx, "⚠️ <b>System is busy</b>\n\nPlease try again later. Continuing to monitor...")
	} else {
		m.logger.Warn("re-establish failed", "error", err)
		m.notifier.Notify(ctx, fmt.Sprintf("⚠️ Session restart failed: %v. Retrying...", err))
	}
	if err := m.wait(ctx, m.cfg.Schedule.PollInterval.Duration); err != nil {
		return true, m.userStopped(ctx)
	}
	return false, nil
}

// cycle is one full poll: verify the page, find a candidate, evaluate it,
// and book when it qualifies.
func (m *Monitor) cycle(ctx context.Context) (cycleResult, error) {
	site := m.sessions.Site()

	if !site.OnAppointmentPage(ctx) {
		m.logger.Info("not on appointment page, navigating back")
		if err := site.NavigateToAppointment(ctx); err != nil {
			return cycleClean, fmt.Errorf("return to appointment page: %w", err)
		}
		if err := site.SelectLocation(ctx, m.facility); err != nil {
			return cycleClean, fmt.Errorf("reselect location: %w", err)
		}
	}

	bound := calendar.MonthBound(time.Now(), m.cfg.Booking.Latest)
	slot, err := site.FindAvailableDate(ctx, bound)
	if err != nil {
		if errors.Is(err, calendar.ErrExhausted) {
			m.logger.Info("no available dates this cycle")
			m.recordCheck(ctx, types.Date{}, false, "no dates")
			m.notifier.Notify(ctx, "😕 No available dates found. Continuing to monitor...")
			m.recover(ctx, site)
			return cycleClean, nil
		}
		return cycleClean, err
	}

	m.logger.Info("available date found", "date", slot.Date.String(), "location", slot.Location)
	m.seen.Observe(slot.Date)
	if reason, ok := m.acceptable(slot.Date); !ok {
		m.recordCheck(ctx, slot.Date, false, reason)
		m.notifier.Notify(ctx, fmt.Sprintf("↩️ Found %s but %s. Skipping.", slot.Date, reason))
		m.discard(ctx, site)
		return cycleClean, nil
	}
	if m.cfg.Booking.ConfirmFirst && m.declined.Contains(slot.Date) {
		m.logger.Info("candidate was declined earlier, skipping", "date", slot.Date.String())
		m.recordCheck(ctx, slot.Date, false, "declined earlier")
		m.discard(ctx, site)
		return cycleClean, nil
	}
	m.recordCheck(ctx, slot.Date, true, "")

	m.notifier.Notify(ctx, fmt.Sprintf(
		"🎯 <b>New slot found: %s @ %s</b>\n\n"+
			"✅ Date: %s\n"+
			"📍 Location: %s\n\n"+
			"⏳ Now attempting to book the appointment...",
		slot.Date, slot.Location, slot.Date, slot.Location))

	if m.cfg.Booking.ConfirmFirst {
		confirmed, err := m.confirmSlot(ctx, slot)
		if err != nil {
			return cycleClean, err
		}
		if !confirmed {
			m.declined.Add(slot.Date)
			m.notifier.Notify(ctx, fmt.Sprintf("↩️ Skipping %s, booking was not confirmed.", slot.Date))
			m.discard(ctx, site)
			return cycleClean, nil
		}
	}

	preferred, err := m.preferredTime(ctx)
	if err != nil {
		return cycleClean, err
	}

	outcome, err := site.CompleteBooking(ctx, slot, preferred)
	if err != nil {
		return cycleClean, err
	}
	m.recordAttempt(ctx, outcome)

	switch outcome.Status {
	case types.BookingBooked:
		m.persistBooking(ctx, outcome.Date)
		m.notifier.Notify(ctx, fmt.Sprintf(
			"🎉 <b>Appointment Booked!</b>\n\n"+
				"📅 Date: %s\n"+
				"📍 Location: %s\n"+
				"✅ Status: Confirmed",
			outcome.Date, slot.Location))
		m.logger.Info("appointment booked", "date", outcome.Date.String(), "location", slot.Location)
		return cycleBooked, nil
	case types.BookingTimeUnavailable:
		m.notifier.Notify(ctx, fmt.Sprintf(
			"⚠️ <b>No time slots available</b>\n\n"+
				"Date %s had no selectable times. Continuing to monitor...", outcome.Date))
		m.capture(ctx, site, "time-unavailable")
		m.recover(ctx, site)
		return cycleFailed, nil
	default:
		m.notifier.Notify(ctx, fmt.Sprintf(
			"⚠️ <b>Booking Failed!</b>\n\n"+
				"Slot was found on %s @ %s, but failed to book.\n"+
				"Please check manually.", outcome.Date, slot.Location))
		m.logger.Error("booking failed", "date", outcome.Date.String(), "reason", outcome.Reason)
		m.capture(ctx, site, "booking-failed")
		m.recover(ctx, site)
		return cycleFailed, nil
	}
}

// acceptable applies the acceptance bounds: inside [earliest, latest] and
// strictly earlier than the current booking.
func (m *Monitor) acceptable(d types.Date) (string, bool) {
	earliest := m.cfg.Booking.Earliest
	latest := m.cfg.Booking.Latest
	current := m.cfg.Booking.CurrentBooking
	if d.Before(earliest) || d.After(latest) {
		return fmt.Sprintf("outside acceptable range (%s to %s)", earliest, latest), false
	}
	if !d.Before(current) {
		return fmt.Sprintf("not earlier than current booking %s", current), false
	}
	return "", true
}

func (m *Monitor) confirmSlot(ctx context.Context, slot types.CandidateSlot) (bool, error) {
	prompt := fmt.Sprintf(
		"📅 <b>Appointment Date Available!</b>\n\n"+
			"📅 <b>Date:</b> %s\n"+
			"📍 <b>Location:</b> %s\n\n"+
			"Reply with <b>yes</b> to book this appointment or <b>no</b> to skip.",
		slot.Date, slot.Location)
	confirmed, err := m.notifier.RequestConfirmation(ctx, prompt, m.cfg.Telegram.ConfirmTimeout.Duration)
	if err != nil {
		if errors.Is(err, context.Canceled) || ctx.Err() != nil {
			return false, ctx.Err()
		}
		// No reply in time counts as a decline.
		m.logger.Warn("confirmation not received", "error", err)
		return false, nil
	}
	return confirmed, nil
}

func (m *Monitor) preferredTime(ctx context.Context) (string, error) {
	preferred := m.cfg.Booking.PreferredTime
	if !m.cfg.Booking.AskTime {
		return preferred, nil
	}
	prompt := "⏰ <b>Select Preferred Time</b>\n\n" +
		"Reply with your preferred time (e.g., <b>07:30</b> or <b>08:00</b>)\n" +
		"Or reply <b>skip</b> to select first available time."
	value, err := m.notifier.RequestValue(ctx, prompt, m.cfg.Telegram.ValueTimeout.Duration)
	if err != nil {
		if errors.Is(err, context.Canceled) || ctx.Err() != nil {
			return "", ctx.Err()
		}
		m.logger.Warn("time preference not received, using configured value", "error", err)
		return preferred, nil
	}
	if value == "" {
		return preferred, nil
	}
	return value, nil
}

// discard drops a rejected candidate: clear the date field so the stale
// value cannot satisfy the next read, then walk back to a clean page.
func (m *Monitor) discard(ctx context.Context, site session.Site) {
	if err := site.ClearDateField(ctx); err != nil {
		m.logger.Warn("clearing rejected date failed", "error", err)
	}
	m.recover(ctx, site)
}

// capture saves the current page for offline inspection. Best-effort: a
// failed capture is logged and forgotten.
func (m *Monitor) capture(ctx context.Context, site session.Site, label string) {
	if m.artifacts == nil || site == nil || ctx.Err() != nil {
		return
	}
	html, err := site.PageSource(ctx)
	if err != nil {
		m.logger.Debug("page source capture failed", "error", err)
	}
	shot, err := site.Screenshot(ctx)
	if err != nil {
		m.logger.Debug("screenshot capture failed", "error", err)
	}
	rel, err := m.artifacts.Save(ctx, artifacts.Capture{Label: label, HTML: html, Screenshot: shot})
	if err != nil {
		m.logger.Warn("artifact save failed", "label", label, "error", err)
		return
	}
	if rel != "" {
		m.logger.Info("diagnostics captured", "label", label, "path", rel)
	}
}

// recover walks back through home, continue, reschedule, and location
// selection so the next cycle starts from the appointment page.
// Best-effort: a failed step is left for the next cycle's page check to
// repair.
func (m *Monitor) recover(ctx context.Context, site session.Site) {
	steps := []struct {
		name string
		run  func(context.Context) error
	}{
		{"home", site.GoHome},
		{"continue", site.ClickContinue},
		{"reschedule", site.NavigateToReschedule},
		{"location", func(ctx context.Context) error { return site.SelectLocation(ctx, m.facility) }},
	}
	for _, step := range steps {
		if ctx.Err() != nil {
			return
		}
		if err := step.run(ctx); err != nil {
			m.logger.Warn("recovery step failed", "step", step.name, "error", err)
			return
		}
	}
}

// maybeRestart applies the restart policy: proactively after the configured
// number of completed cycles, reactively after too many consecutive
// failures. Establish errors surface through the not-ready path on the next
// iteration.
func (m *Monitor) maybeRestart(ctx context.Context) {
	if ctx.Err() != nil {
		return
	}
	cycles, failures := m.counters()

	if threshold := m.cfg.Schedule.RestartAfterCycles; threshold > 0 && cycles >= threshold {
		m.logger.Info("proactive session restart", "completed_cycles", cycles)
		m.notifier.Notify(ctx, fmt.Sprintf("🔄 Restarting session after %d checks...", cycles))
		m.noteRestart()
		if err := m.sessions.Restart(ctx, 0); err != nil {
			m.logger.Warn("proactive restart failed", "error", err)
		}
		m.resetCycles()
		return
	}

	if threshold := m.cfg.Schedule.RestartAfterFailures; threshold > 0 && failures >= threshold {
		m.logger.Warn("restarting session after repeated failures", "failures", failures)
		m.notifier.Notify(ctx, "🔄 Restarting session after repeated failures...")
		m.noteRestart()
		if err := m.sessions.Restart(ctx, m.cfg.Schedule.RestartDelay.Duration); err != nil {
			m.logger.Warn("failure restart did not establish", "error", err)
		}
		m.resetCycles()
		m.resetFailures()
	}
}

func (m *Monitor) persistBooking(ctx context.Context, booked types.Date) {
	if m.store == nil {
		return
	}
	err := m.store.Update(ctx, func(s *state.Snapshot) {
		s.Facility = m.facility.Name
		s.CurrentBooking = booked
		s.LatestAcceptable = booked
		s.LastChecked = time.Now()
	})
	if err != nil {
		m.logger.Error("persisting new booking date failed", "date", booked.String(), "error", err)
		m.notifier.Notify(ctx, fmt.Sprintf(
			"⚠️ Booked %s but saving the new date failed: %v. Update your configuration by hand.", booked, err))
	}
}

func (m *Monitor) userStopped(ctx context.Context) error {
	m.logger.Info("stopped by user")
	m.notifier.Notify(context.WithoutCancel(ctx), "⚠️ Bot stopped by user")
	return nil
}

func (m *Monitor) startBanner() string {
	b := m.cfg.Booking
	return fmt.Sprintf(
		"✅ Monitoring appointments\n"+
			"📍 Location: %s\n"+
			"📅 Date range: %s to %s\n"+
			"📆 Current booking: %s\n"+
			"🔍 Looking for dates earlier than current booking...",
		m.facility.Name, b.Earliest, b.Latest, b.CurrentBooking)
}

// wait blocks for d or until ctx is cancelled, whichever comes first.
func (m *Monitor) wait(ctx context.Context, d time.Duration) error {
	if d <= 0 {
		return ctx.Err()
	}
	t := time.NewTimer(d)
	defer t.Stop()
	select {
	case <-ctx.Done():
		return ctx.Err()
	case <-t.C:
		return nil
	}
}

func (m *Monitor) recordCheck(ctx context.Context, found types.Date, accepted bool, note string) {
	now := time.Now()
	m.mu.Lock()
	m.lastCheck = now
	if !found.IsZero() {
		m.lastFound = found
	}
	m.mu.Unlock()

	err := m.journal.RecordCheck(ctx, history.CheckRecord{
		CheckedAt: now,
		Facility:  m.facility.Name,
		Found:     found,
		Accepted:  accepted,
		Note:      note,
	})
	if err != nil {
		m.logger.Warn("history check write failed", "error", err)
	}
}

func (m *Monitor) recordAttempt(ctx context.Context, outcome types.BookingOutcome) {
	err := m.journal.RecordAttempt(ctx, history.AttemptRecord{
		AttemptedAt: time.Now(),
		Facility:    m.facility.Name,
		Date:        outcome.Date,
		Status:      outcome.Status,
		Detail:      outcome.Reason,
	})
	if err != nil {
		m.logger.Warn("history attempt write failed", "error", err)
	}
}

func (m *Monitor) completeCycle() {
	m.mu.Lock()
	m.cycles++
	m.totalCycles++
	m.mu.Unlock()
}

func (m *Monitor) resetCycles() {
	m.mu.Lock()
	m.cycles = 0
	m.mu.Unlock()
}

func (m *Monitor) bumpFailures() {
	m.mu.Lock()
	m.failures++
	m.mu.Unlock()
}

func (m *Monitor) resetFailures() {
	m.mu.Lock()
	m.failures = 0
	m.mu.Unlock()
}

func (m *Monitor) noteRestart() {
	m.mu.Lock()
	m.restarts++
	m.mu.Unlock()
}

func (m *Monitor) counters() (cycles, failures int) {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.cycles, m.failures
}
