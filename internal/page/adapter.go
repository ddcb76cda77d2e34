// Package page drives the scheduling site's pages through a browser
// session. Every operation is built from ordered locator strategies so
// markup drift degrades one strategy at a time instead of breaking the
// whole flow.
package page

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"strconv"
	"strings"
	"time"

	"github.com/PuerkitoBio/goquery"
	"github.com/chromedp/cdproto/cdp"
	"github.com/chromedp/chromedp/kb"

	"visawatch/internal/browser"
	"visawatch/internal/calendar"
	"visawatch/internal/config"
	"visawatch/internal/pacing"
	"visawatch/pkg/types"
)

var (
	// ErrSiteBusy marks the site's load-shedding state, detected
	// heuristically after a calendar-open failure.
	ErrSiteBusy = errors.New("scheduling site is busy")
	// ErrLoginFailed marks rejected credentials or a sign-in page that
	// never went away.
	ErrLoginFailed = errors.New("sign-in failed")
)

const selectOptionsJS = `(q => {
	const el = document.querySelector(q);
	if (!el || !el.options) return [];
	return Array.from(el.options).map(o => ({value: o.value, label: (o.textContent || '').trim(), disabled: o.disabled}));
})(%s)`

const setSelectValueJS = `((q, v) => {
	const el = document.querySelector(q);
	if (!el) return false;
	el.value = v;
	if (el.value !== v) return false;
	el.dispatchEvent(new Event('input', { bubbles: true }));
	el.dispatchEvent(new Event('change', { bubbles: true }));
	return true;
})(%s, %s)`

const tickCheckboxJS = `(() => {
	const boxes = Array.from(document.querySelectorAll("input[type='checkbox']"));
	for (const box of boxes) {
		if (box.offsetParent === null) continue;
		if (box.checked) return true;
		box.click();
		return true;
	}
	return false;
})()`

// Adapter exposes the site's page actions as idempotent operations over
// one browser session. It is single-owner: exactly one loop may call it
// at a time.
type Adapter struct {
	b      *browser.Browser
	site   config.SiteConfig
	pace   *pacing.Pacer
	logger *slog.Logger

	location string
}

// New wraps a running browser session.
func New(b *browser.Browser, site config.SiteConfig, pace *pacing.Pacer, logger *slog.Logger) *Adapter {
	if logger == nil {
		logger = slog.Default()
	}
	return &Adapter{
		b:      b,
		site:   site,
		pace:   pace,
		logger: logger.With("component", "page"),
	}
}

// SignIn opens the sign-in page, fills the credential fields, ticks the
// policy checkbox and submits. The result is judged from the landing
// URL; a page still showing sign_in is inspected for an error box.
func (a *Adapter) SignIn(ctx context.Context, email, password string) error {
	if err := a.pace.Wait(ctx); err != nil {
		return err
	}
	a.logger.Info("signing in", "url", a.site.SignInURL())
	if err := a.b.Navigate(ctx, a.site.SignInURL()); err != nil {
		return fmt.Errorf("open sign-in page: %w", err)
	}
	if _, err := a.b.SendKeys(ctx, email, 20*time.Second, emailField...); err != nil {
		return fmt.Errorf("email field: %w", err)
	}
	if _, err := a.b.SendKeys(ctx, password, 10*time.Second, passwordField...); err != nil {
		return fmt.Errorf("password field: %w", err)
	}
	a.tickPolicyBox(ctx)
	if _, err := a.b.Click(ctx, 10*time.Second, signInSubmit...); err != nil {
		return fmt.Errorf("sign-in submit: %w", err)
	}
	return a.confirmSignedIn(ctx)
}

func (a *Adapter) tickPolicyBox(ctx context.Context) {
	var ticked bool
	if err := a.b.Eval(ctx, tickCheckboxJS, &ticked); err == nil && ticked {
		a.logger.Debug("policy checkbox ticked")
		return
	}
	if _, err := a.b.Click(ctx, 2*time.Second, policyCheckboxLabel...); err != nil {
		a.logger.Warn("policy checkbox not found, submitting anyway")
	}
}

func (a *Adapter) confirmSignedIn(ctx context.Context) error {
	deadline := time.Now().Add(10 * time.Second)
	for {
		loc, err := a.b.Location(ctx)
		if err != nil {
			return fmt.Errorf("%w: %v", ErrLoginFailed, err)
		}
		if !strings.Contains(loc, "sign_in") {
			a.logger.Info("signed in", "url", loc)
			return nil
		}
		if time.Now().After(deadline) {
			break
		}
		if err := a.b.Sleep(ctx, 500*time.Millisecond); err != nil {
			return err
		}
	}
	doc, err := a.doc(ctx)
	if err != nil {
		return fmt.Errorf("%w: %v", ErrLoginFailed, err)
	}
	if text, ok := loginErrorText(doc); ok {
		return fmt.Errorf("%w: %s", ErrLoginFailed, text)
	}
	// No error box but still on the sign-in URL. Seen with slow
	// redirects; let the next navigation decide.
	a.logger.Warn("sign-in state unclear, proceeding")
	return nil
}

// ExistingAppointmentDate reads the currently booked appointment date
// from the groups page status paragraph. Best effort, informational only.
func (a *Adapter) ExistingAppointmentDate(ctx context.Context) (types.Date, bool) {
	text, err := a.b.Text(ctx, 10*time.Second, appointmentStatus...)
	if err != nil {
		a.logger.Debug("appointment status paragraph not found", "error", err)
		return types.Date{}, false
	}
	d, err := parseAppointmentText(text)
	if err != nil {
		a.logger.Warn("appointment status not parseable", "text", normalizeWhitespace(text))
		return types.Date{}, false
	}
	a.logger.Info("existing appointment", "date", d)
	return d, true
}

// ClickContinue advances past the post-login landing page.
func (a *Adapter) ClickContinue(ctx context.Context) error {
	if err := a.pace.Wait(ctx); err != nil {
		return err
	}
	if _, err := a.b.Click(ctx, 20*time.Second, continueButton...); err != nil {
		return fmt.Errorf("continue button: %w", err)
	}
	return a.b.Sleep(ctx, 2*time.Second)
}

// NavigateToReschedule expands the reschedule accordion and follows its
// appointment link.
func (a *Adapter) NavigateToReschedule(ctx context.Context) error {
	if err := a.pace.Wait(ctx); err != nil {
		return err
	}
	if _, err := a.b.Click(ctx, 20*time.Second, accordionTitle...); err != nil {
		a.logger.Warn("reschedule accordion not found, trying the button directly")
	} else {
		if err := a.b.Sleep(ctx, 2*time.Second); err != nil {
			return err
		}
	}
	if err := a.clickFiltered(ctx, 20*time.Second, "reschedule", rescheduleButton); err != nil {
		return fmt.Errorf("reschedule button: %w", err)
	}
	return a.b.Sleep(ctx, 3*time.Second)
}

// SelectLocation resolves the facility name against the location
// dropdown, exact label first, then case-insensitive substring, and
// selects the matching option.
func (a *Adapter) SelectLocation(ctx context.Context, fac types.Facility) error {
	if err := a.pace.Wait(ctx); err != nil {
		return err
	}
	m, err := a.b.FirstMatch(ctx, 20*time.Second, locationSelect...)
	if err != nil {
		return fmt.Errorf("location dropdown: %w", err)
	}
	opts, err := a.selectOptions(ctx, m.Strategy)
	if err != nil {
		return fmt.Errorf("read location options: %w", err)
	}

	var chosen selectOption
	found := false
	for _, opt := range opts {
		if strings.TrimSpace(opt.Label) == fac.Name {
			chosen, found = opt, true
			break
		}
	}
	if !found {
		for _, opt := range opts {
			if strings.Contains(strings.ToLower(opt.Label), strings.ToLower(fac.Name)) {
				chosen, found = opt, true
				break
			}
		}
	}
	if !found {
		return fmt.Errorf("no location option matches %q (%d options)", fac.Name, len(opts))
	}
	if fac.ID != "" && chosen.Value != fac.ID {
		a.logger.Warn("facility id differs from catalog", "option", chosen.Value, "catalog", fac.ID)
	}

	if err := a.setSelectValue(ctx, m.Strategy, chosen.Value); err != nil {
		return fmt.Errorf("select location %q: %w", fac.Name, err)
	}
	a.location = fac.Name
	a.logger.Info("location selected", "location", fac.Name, "value", chosen.Value)
	return a.b.Sleep(ctx, 2*time.Second)
}

// OpenCalendar clicks the calendar icon next to the date field.
func (a *Adapter) OpenCalendar(ctx context.Context) error {
	if err := a.pace.Wait(ctx); err != nil {
		return err
	}
	if _, err := a.b.FirstMatch(ctx, 10*time.Second, dateField...); err != nil {
		return fmt.Errorf("date field: %w", err)
	}
	if _, err := a.b.Click(ctx, 10*time.Second, calendarIcon...); err != nil {
		return fmt.Errorf("calendar icon: %w", err)
	}
	return a.b.Sleep(ctx, 800*time.Millisecond)
}

// CloseCalendar dismisses an open calendar popup.
func (a *Adapter) CloseCalendar(ctx context.Context) error {
	if err := a.b.PressKey(ctx, kb.Escape); err != nil {
		return err
	}
	return a.b.Sleep(ctx, 200*time.Millisecond)
}

// FindAvailableDate produces a candidate slot. A pre-filled date field
// short-circuits the calendar entirely; otherwise the calendar is
// opened, traversed up to monthBound advances, the first selectable day
// is clicked and the resulting field value read back. A calendar that
// will not open triggers the busy scan; ErrSiteBusy is returned when it
// hits.
func (a *Adapter) FindAvailableDate(ctx context.Context, monthBound int) (types.CandidateSlot, error) {
	if err := a.pace.Wait(ctx); err != nil {
		return types.CandidateSlot{}, err
	}
	if _, err := a.b.FirstMatch(ctx, 20*time.Second, dateField...); err != nil {
		return types.CandidateSlot{}, fmt.Errorf("date field not present: %w", err)
	}

	if value, err := a.ReadDateField(ctx); err == nil && strings.TrimSpace(value) != "" {
		d, err := types.ParseDate(value)
		if err != nil {
			return types.CandidateSlot{}, fmt.Errorf("pre-filled date field: %w", err)
		}
		a.logger.Info("date field already filled", "date", d)
		return types.CandidateSlot{Date: d, Location: a.location, Epoch: a.b.Epoch()}, nil
	}

	if err := a.OpenCalendar(ctx); err != nil {
		if ctx.Err() != nil {
			return types.CandidateSlot{}, ctx.Err()
		}
		if reason, busy := a.SystemBusy(ctx); busy {
			return types.CandidateSlot{}, fmt.Errorf("%w: %s", ErrSiteBusy, reason)
		}
		return types.CandidateSlot{}, fmt.Errorf("open calendar: %w", err)
	}

	day, err := calendar.FirstAvailable(ctx, a, monthBound, a.logger)
	if err != nil {
		return types.CandidateSlot{}, err
	}
	if !day.HandleValid(a.b.Epoch()) {
		return types.CandidateSlot{}, errors.New("day handle expired before selection")
	}
	if err := a.b.ClickNodeID(ctx, day.NodeID); err != nil {
		return types.CandidateSlot{}, fmt.Errorf("select day: %w", err)
	}
	if err := a.b.Sleep(ctx, 1500*time.Millisecond); err != nil {
		return types.CandidateSlot{}, err
	}

	value, err := a.ReadDateField(ctx)
	if err != nil {
		return types.CandidateSlot{}, fmt.Errorf("read back date field: %w", err)
	}
	d, err := types.ParseDate(value)
	if err != nil {
		return types.CandidateSlot{}, fmt.Errorf("date field after selection: %w", err)
	}

	slot := types.CandidateSlot{Date: d, Location: a.location, Epoch: a.b.Epoch(), NodeID: day.NodeID}
	a.logger.Info("candidate slot selected", "date", d, "location", slot.Location)
	return slot, nil
}

// FirstSelectableDay scans the rendered month for the first enabled day
// cell in document order. Cells are accepted only when their text is a
// bare day number, which drops navigation arrows swept up by the looser
// selectors. Implements calendar.Pager.
func (a *Adapter) FirstSelectableDay(ctx context.Context) (types.CandidateSlot, error) {
	if !a.b.Exists(ctx, calendarPopup...) {
		a.logger.Debug("calendar popup not detected, scanning cells anyway")
	}
	rest := dayCells
	for len(rest) > 0 {
		m, err := a.b.FirstMatch(ctx, 2*time.Second, rest...)
		if err != nil {
			return types.CandidateSlot{}, err
		}
		for _, n := range m.Nodes {
			text, err := a.nodeText(ctx, n)
			if err != nil {
				continue
			}
			if isAllDigits(strings.TrimSpace(text)) {
				return types.CandidateSlot{Epoch: a.b.Epoch(), NodeID: int64(n.NodeID)}, nil
			}
		}
		rest = rest[m.Index+1:]
	}
	return types.CandidateSlot{}, fmt.Errorf("%w: no numeric day cell", browser.ErrNoMatch)
}

// AdvanceMonth clicks the calendar's next-month control. Implements
// calendar.Pager.
func (a *Adapter) AdvanceMonth(ctx context.Context) error {
	if _, err := a.b.Click(ctx, 2*time.Second, nextMonth...); err != nil {
		return fmt.Errorf("next month control: %w", err)
	}
	return a.b.Sleep(ctx, 800*time.Millisecond)
}

// ReadDateField returns the date input's current value.
func (a *Adapter) ReadDateField(ctx context.Context) (string, error) {
	return a.b.Value(ctx, 5*time.Second, dateField...)
}

// ClearDateField wipes a rejected candidate from the date input so a
// stale value cannot leak into the next cycle.
func (a *Adapter) ClearDateField(ctx context.Context) error {
	if err := a.b.SetValue(ctx, "", 5*time.Second, dateField...); err != nil {
		return fmt.Errorf("clear date field: %w", err)
	}
	return nil
}

// CompleteBooking selects a time for the slot and submits the
// reschedule form, handling both native dialogs and in-page overlay
// confirmations. Semantic results come back as a BookingOutcome; the
// error return is reserved for cancellation and a dead session.
func (a *Adapter) CompleteBooking(ctx context.Context, slot types.CandidateSlot, preferred string) (types.BookingOutcome, error) {
	if err := a.pace.Wait(ctx); err != nil {
		return types.BookingOutcome{}, err
	}

	// Re-assert the day selection when the handle is still current, the
	// same way a human would re-click before filling the time box.
	if slot.HandleValid(a.b.Epoch()) {
		if err := a.b.ClickNodeID(ctx, slot.NodeID); err != nil {
			a.logger.Debug("day cell re-click failed", "error", err)
		} else if err := a.b.Sleep(ctx, 2*time.Second); err != nil {
			return types.BookingOutcome{}, err
		}
	}

	opts, timeStrategy, err := a.waitTimeOptions(ctx)
	if err != nil {
		if ctx.Err() != nil {
			return types.BookingOutcome{}, ctx.Err()
		}
		if errors.Is(err, browser.ErrNoMatch) {
			return types.BookingFailure(slot.Date, "time dropdown not found"), nil
		}
		return types.BookingOutcome{}, err
	}

	chosen, how := chooseTime(opts, preferred)
	if how == matchNone {
		a.logger.Warn("no selectable time options", "date", slot.Date)
		return types.TimeUnavailable(slot.Date), nil
	}
	if how == matchFirst && preferred != "" {
		a.logger.Warn("preferred time not offered, taking first available", "preferred", preferred, "chosen", chosen.Label)
	}
	if err := a.setSelectValue(ctx, timeStrategy, chosen.Value); err != nil {
		if ctx.Err() != nil {
			return types.BookingOutcome{}, ctx.Err()
		}
		return types.BookingFailure(slot.Date, fmt.Sprintf("select time %q: %v", chosen.Label, err)), nil
	}
	a.logger.Info("time selected", "time", chosen.Label, "match", how.String())
	if err := a.b.Sleep(ctx, 500*time.Millisecond); err != nil {
		return types.BookingOutcome{}, err
	}

	m, err := a.b.FirstMatch(ctx, 20*time.Second, submitButton...)
	if err != nil {
		if ctx.Err() != nil {
			return types.BookingOutcome{}, ctx.Err()
		}
		return types.BookingFailure(slot.Date, "reschedule submit button not found"), nil
	}
	submitNode := m.Nodes[0]
	dataConfirm := submitNode.AttributeValue("data-confirm")
	if dataConfirm != "" {
		a.logger.Debug("submit button carries data-confirm", "prompt", dataConfirm)
	}

	dialogsBefore := a.b.DialogCount()
	if err := a.b.ClickNode(ctx, submitNode); err != nil {
		// The button can sit under a sticky footer; a selector click
		// scrolls it into view first.
		if _, err := a.b.Click(ctx, 2*time.Second, m.Strategy); err != nil {
			if ctx.Err() != nil {
				return types.BookingOutcome{}, ctx.Err()
			}
			return types.BookingFailure(slot.Date, fmt.Sprintf("click reschedule button: %v", err)), nil
		}
	}
	if dataConfirm != "" {
		if err := a.b.Sleep(ctx, 200*time.Millisecond); err != nil {
			return types.BookingOutcome{}, err
		}
	}

	if !a.confirmSubmission(ctx, dialogsBefore) {
		a.logger.Warn("no confirmation control appeared, verifying outcome anyway")
	}
	if err := a.b.Sleep(ctx, 1500*time.Millisecond); err != nil {
		return types.BookingOutcome{}, err
	}

	loc, err := a.b.Location(ctx)
	if err != nil {
		return types.BookingOutcome{}, fmt.Errorf("read post-submit location: %w", err)
	}
	src, err := a.b.HTML(ctx)
	if err != nil {
		a.logger.Debug("post-submit page capture failed", "error", err)
		src = ""
	}
	outcome := classifySubmission(slot.Date, loc, src)
	a.logger.Info("booking submission classified", "status", string(outcome.Status), "url", loc, "reason", outcome.Reason)
	return outcome, nil
}

// waitTimeOptions locates the time dropdown and polls until it holds
// more than its blank placeholder or the window closes.
func (a *Adapter) waitTimeOptions(ctx context.Context) ([]selectOption, browser.Strategy, error) {
	m, err := a.b.FirstMatch(ctx, 20*time.Second, timeSelect...)
	if err != nil {
		return nil, browser.Strategy{}, err
	}
	deadline := time.Now().Add(5 * time.Second)
	for {
		opts, err := a.selectOptions(ctx, m.Strategy)
		if err != nil {
			return nil, m.Strategy, err
		}
		if len(opts) > 1 || time.Now().After(deadline) {
			return opts, m.Strategy, nil
		}
		if err := a.b.Sleep(ctx, 300*time.Millisecond); err != nil {
			return nil, m.Strategy, err
		}
	}
}

// confirmSubmission walks the confirmation fallback chain: an already
// auto-accepted native dialog, the Foundation reveal modal, the known
// confirm button selectors, then a last-resort scan of every visible
// modal for a confirm/ok button.
func (a *Adapter) confirmSubmission(ctx context.Context, dialogsBefore int64) bool {
	if a.b.DialogCount() > dialogsBefore {
		a.logger.Info("native confirmation dialog auto-accepted")
		return true
	}

	if a.b.Exists(ctx, revealModal...) {
		if _, err := a.b.Click(ctx, time.Second, revealConfirm...); err == nil {
			a.logger.Info("reveal modal confirmed")
			a.b.Sleep(ctx, 200*time.Millisecond)
			return true
		}
	}

	a.b.Sleep(ctx, 200*time.Millisecond)
	for _, st := range confirmButtonsCSS {
		if _, err := a.b.Click(ctx, time.Second, st); err == nil {
			a.logger.Info("confirmation clicked", "strategy", st.Name)
			a.b.Sleep(ctx, 200*time.Millisecond)
			return true
		}
	}
	for _, st := range confirmButtonsXPath {
		if _, err := a.b.Click(ctx, time.Second, st); err == nil {
			a.logger.Info("confirmation clicked", "strategy", st.Name)
			a.b.Sleep(ctx, 200*time.Millisecond)
			return true
		}
	}
	if a.clickModalConfirm(ctx) {
		return true
	}
	if _, err := a.b.Click(ctx, time.Second, anyConfirmButton...); err == nil {
		a.logger.Info("confirmation clicked via direct search")
		a.b.Sleep(ctx, time.Second)
		return true
	}
	return false
}

// clickModalConfirm scans the document for any modal whose buttons read
// confirm/ok without cancel/close, and clicks the first by its text.
func (a *Adapter) clickModalConfirm(ctx context.Context) bool {
	doc, err := a.doc(ctx)
	if err != nil {
		return false
	}
	clicked := false
	for _, container := range modalContainers {
		doc.Find(container).EachWithBreak(func(_ int, modal *goquery.Selection) bool {
			modal.Find("button, a.button").EachWithBreak(func(_ int, btn *goquery.Selection) bool {
				text := normalizeWhitespace(btn.Text())
				lower := strings.ToLower(text)
				wanted := strings.Contains(lower, "confirm") || strings.Contains(lower, "ok")
				blocked := strings.Contains(lower, "cancel") || strings.Contains(lower, "close")
				if wanted && !blocked && a.clickByText(ctx, text) {
					clicked = true
				}
				return !clicked
			})
			return !clicked
		})
		if clicked {
			a.b.Sleep(ctx, 300*time.Millisecond)
			return true
		}
	}
	return false
}

func (a *Adapter) clickByText(ctx context.Context, text string) bool {
	if text == "" || strings.ContainsAny(text, `'"`) {
		return false
	}
	query := fmt.Sprintf("//div[contains(@class, 'reveal') or contains(@class, 'modal')]//*[self::button or self::a][normalize-space(.)='%s']", text)
	_, err := a.b.Click(ctx, time.Second, browser.Search("modal button "+text, query))
	return err == nil
}

// SystemBusy scans the current page for the site's busy banner.
func (a *Adapter) SystemBusy(ctx context.Context) (string, bool) {
	doc, err := a.doc(ctx)
	if err != nil {
		a.logger.Debug("busy scan failed", "error", err)
		return "", false
	}
	return busyReason(doc)
}

// GoHome navigates back to the account landing page and waits for its
// continue link.
func (a *Adapter) GoHome(ctx context.Context) error {
	if err := a.pace.Wait(ctx); err != nil {
		return err
	}
	if err := a.b.Navigate(ctx, a.site.HomeURL()); err != nil {
		return fmt.Errorf("go home: %w", err)
	}
	if _, err := a.b.FirstMatch(ctx, 20*time.Second, homeContinueLink...); err != nil {
		return fmt.Errorf("home continue link: %w", err)
	}
	return nil
}

// OnAppointmentPage reports whether the browser is on the scheduling form.
func (a *Adapter) OnAppointmentPage(ctx context.Context) bool {
	loc, err := a.b.Location(ctx)
	return err == nil && strings.Contains(loc, "/appointment")
}

// NavigateToAppointment loads the reschedule form directly by URL.
func (a *Adapter) NavigateToAppointment(ctx context.Context) error {
	url := a.site.AppointmentURL()
	if url == "" {
		return errors.New("no appointment url configured")
	}
	if err := a.pace.Wait(ctx); err != nil {
		return err
	}
	return a.b.Navigate(ctx, url)
}

// PageSource returns the rendered DOM for diagnostic captures.
func (a *Adapter) PageSource(ctx context.Context) (string, error) {
	return a.b.HTML(ctx)
}

// Screenshot returns a viewport PNG for diagnostic captures.
func (a *Adapter) Screenshot(ctx context.Context) ([]byte, error) {
	return a.b.Screenshot(ctx)
}

func (a *Adapter) doc(ctx context.Context) (*goquery.Document, error) {
	src, err := a.b.HTML(ctx)
	if err != nil {
		return nil, err
	}
	return goquery.NewDocumentFromReader(strings.NewReader(src))
}

func (a *Adapter) nodeText(ctx context.Context, n *cdp.Node) (string, error) {
	src, err := a.b.OuterHTMLNode(ctx, n)
	if err != nil {
		return "", err
	}
	return flattenFragment(src), nil
}

// clickFiltered clicks the first node whose text contains needle. CSS
// strategies match broadly and get the text filter; search strategies
// encode their text already and take their first node.
func (a *Adapter) clickFiltered(ctx context.Context, within time.Duration, needle string, strategies []browser.Strategy) error {
	rest := strategies
	for len(rest) > 0 {
		m, err := a.b.FirstMatch(ctx, within, rest...)
		if err != nil {
			return err
		}
		node := m.Nodes[0]
		if m.Strategy.By == nil {
			node = nil
			for _, n := range m.Nodes {
				text, err := a.nodeText(ctx, n)
				if err != nil {
					continue
				}
				if strings.Contains(strings.ToLower(text), needle) {
					node = n
					break
				}
			}
		}
		if node != nil {
			return a.b.ClickNode(ctx, node)
		}
		rest = rest[m.Index+1:]
	}
	return fmt.Errorf("%w: no element containing %q", browser.ErrNoMatch, needle)
}

func (a *Adapter) selectOptions(ctx context.Context, st browser.Strategy) ([]selectOption, error) {
	if st.By != nil {
		return nil, fmt.Errorf("options snapshot needs a css strategy, got %s", st.Name)
	}
	var opts []selectOption
	expr := fmt.Sprintf(selectOptionsJS, strconv.Quote(st.Query))
	if err := a.b.Eval(ctx, expr, &opts); err != nil {
		return nil, err
	}
	return opts, nil
}

func (a *Adapter) setSelectValue(ctx context.Context, st browser.Strategy, value string) error {
	if st.By != nil {
		return fmt.Errorf("set value needs a css strategy, got %s", st.Name)
	}
	var ok bool
	expr := fmt.Sprintf(setSelectValueJS, strconv.Quote(st.Query), strconv.Quote(value))
	if err := a.b.Eval(ctx, expr, &ok); err != nil {
		return err
	}
	if !ok {
		return fmt.Errorf("option %q not accepted by %s", value, st.Name)
	}
	a.b.Mutated()
	return nil
}
