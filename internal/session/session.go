// Package session owns the lifecycle of a browser session against the
// appointment site: bringing a fresh session to the point where dates can be
// checked, and tearing it down and rebuilding it when the site or the browser
// degrades.
package session

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"sync"
	"time"

	"visawatch/internal/config"
	"visawatch/internal/page"
	"visawatch/pkg/types"
)

// ErrNotReady marks an establish failure that is expected to clear on its
// own: a slow page, a missed element, a flaky redirect. Callers retry these
// without treating the site as down.
var ErrNotReady = errors.New("session not ready")

// Site is the surface of an authenticated appointment-site session. It is
// implemented by page.Adapter plus the browser lifecycle, and faked in tests.
type Site interface {
	SignIn(ctx context.Context, email, password string) error
	ClickContinue(ctx context.Context) error
	ExistingAppointmentDate(ctx context.Context) (types.Date, bool)
	NavigateToReschedule(ctx context.Context) error
	SelectLocation(ctx context.Context, fac types.Facility) error
	OpenCalendar(ctx context.Context) error
	CloseCalendar(ctx context.Context) error
	FindAvailableDate(ctx context.Context, monthBound int) (types.CandidateSlot, error)
	ReadDateField(ctx context.Context) (string, error)
	ClearDateField(ctx context.Context) error
	CompleteBooking(ctx context.Context, slot types.CandidateSlot, preferred string) (types.BookingOutcome, error)
	SystemBusy(ctx context.Context) (string, bool)
	GoHome(ctx context.Context) error
	OnAppointmentPage(ctx context.Context) bool
	NavigateToAppointment(ctx context.Context) error

	// Diagnostics.
	PageSource(ctx context.Context) (string, error)
	Screenshot(ctx context.Context) ([]byte, error)

	Close() error
	Kill()
}

// OpenFunc produces a fresh Site backed by a new browser. The manager calls
// it once per establish so every session starts from a clean profile.
type OpenFunc func(ctx context.Context) (Site, error)

// Manager keeps at most one live Site and knows how to (re)establish it.
// All methods except Kill are called from the monitoring goroutine; Kill may
// be called concurrently from the shutdown path.
type Manager struct {
	open      OpenFunc
	preflight func(ctx context.Context) error
	cfg       *config.Config
	logger    *slog.Logger

	mu    sync.Mutex
	site  Site
	ready bool

	existing    types.Date
	existingSet bool
}

// NewManager wires a manager around the given site factory.
func NewManager(open OpenFunc, cfg *config.Config, logger *slog.Logger) *Manager {
	if logger == nil {
		logger = slog.Default()
	}
	return &Manager{open: open, cfg: cfg, logger: logger}
}

// SetPreflight installs a cheap reachability probe that Establish runs
// before a browser is launched. A probe reporting page.ErrSiteBusy aborts
// the establish with that error; any other probe failure counts as
// ErrNotReady. Must be set before the first Establish.
func (m *Manager) SetPreflight(fn func(ctx context.Context) error) {
	m.preflight = fn
}

// Site returns the current live site, or nil when none is established.
func (m *Manager) Site() Site {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.site
}

// Ready reports whether the last establish completed its readiness probe.
func (m *Manager) Ready() bool {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.ready
}

// ExistingDate returns the appointment date the account already holds, as
// read during the last establish, if one was shown.
func (m *Manager) ExistingDate() (types.Date, bool) {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.existing, m.existingSet
}

// Establish opens a fresh session and walks it to the date-checking state:
// sign in, dismiss the interstitial, note any existing appointment, open the
// reschedule form, select the facility, and prove the calendar widget opens.
// The calendar is closed again before returning so the first monitoring cycle
// starts from the same state as every later one.
//
// Errors are classified for the caller: page.ErrLoginFailed means the
// credentials were rejected, page.ErrSiteBusy means the site told us to come
// back later, and ErrNotReady covers transient failures worth retrying.
func (m *Manager) Establish(ctx context.Context) error {
	m.closeCurrent()

	fac, ok := types.FacilityByName(m.cfg.Booking.Facility)
	if !ok {
		return fmt.Errorf("unknown facility %q", m.cfg.Booking.Facility)
	}

	if m.preflight != nil {
		if err := m.preflight(ctx); err != nil {
			if errors.Is(err, page.ErrSiteBusy) || ctx.Err() != nil {
				return err
			}
			return fmt.Errorf("%w: preflight: %v", ErrNotReady, err)
		}
	}

	site, err := m.open(ctx)
	if err != nil {
		return fmt.Errorf("open session: %w", err)
	}
	m.setSite(site)

	if err := site.SignIn(ctx, m.cfg.Account.Email, m.cfg.Account.Password); err != nil {
		return err
	}
	if err := site.ClickContinue(ctx); err != nil {
		return fmt.Errorf("%w: continue step: %v", ErrNotReady, err)
	}
	if d, ok := site.ExistingAppointmentDate(ctx); ok {
		m.setExisting(d)
		m.logger.Info("existing appointment on file", "date", d.String())
	} else {
		m.logger.Debug("no existing appointment date shown")
	}
	if err := site.NavigateToReschedule(ctx); err != nil {
		return fmt.Errorf("%w: reschedule page: %v", ErrNotReady, err)
	}
	if err := site.SelectLocation(ctx, fac); err != nil {
		return fmt.Errorf("%w: select location: %v", ErrNotReady, err)
	}

	// Readiness probe. If the calendar refuses to open this is where a
	// "system is busy" banner surfaces, so check for it before writing the
	// failure off as transient.
	if err := site.OpenCalendar(ctx); err != nil {
		if ctx.Err() != nil {
			return ctx.Err()
		}
		if reason, busy := site.SystemBusy(ctx); busy {
			return fmt.Errorf("%w: %s", page.ErrSiteBusy, reason)
		}
		return fmt.Errorf("%w: calendar probe: %v", ErrNotReady, err)
	}
	if err := site.CloseCalendar(ctx); err != nil {
		m.logger.Debug("closing probe calendar failed", "error", err)
	}

	m.markReady()
	m.logger.Info("session established", "facility", fac.Name)
	return nil
}

// Restart tears down the current session, waits out the given delay, and
// establishes a new one. The delay wait is interruptible.
func (m *Manager) Restart(ctx context.Context, delay time.Duration) error {
	m.logger.Info("restarting session", "delay", delay.String())
	m.closeCurrent()
	if delay > 0 {
		if err := sleepCtx(ctx, delay); err != nil {
			return err
		}
	}
	return m.Establish(ctx)
}

// Close releases the current session, if any.
func (m *Manager) Close() {
	m.closeCurrent()
}

// Kill force-reclaims the browser without waiting for graceful teardown.
// Safe to call from another goroutine while the monitor loop is blocked.
func (m *Manager) Kill() {
	m.mu.Lock()
	site := m.site
	m.mu.Unlock()
	if site != nil {
		site.Kill()
	}
}

func (m *Manager) setSite(s Site) {
	m.mu.Lock()
	m.site = s
	m.ready = false
	m.mu.Unlock()
}

func (m *Manager) markReady() {
	m.mu.Lock()
	m.ready = true
	m.mu.Unlock()
}

func (m *Manager) setExisting(d types.Date) {
	m.mu.Lock()
	m.existing = d
	m.existingSet = true
	m.mu.Unlock()
}

func (m *Manager) closeCurrent() {
	m.mu.Lock()
	site := m.site
	m.site = nil
	m.ready = false
	m.mu.Unlock()
	if site == nil {
		return
	}
	if err := site.Close(); err != nil {
		m.logger.Warn("session close failed", "error", err)
	}
}

func sleepCtx(ctx context.Context, d time.Duration) error {
	t := time.NewTimer(d)
	defer t.Stop()
	select {
	case <-ctx.Done():
		return ctx.Err()
	case <-t.C:
		return nil
	}
}
