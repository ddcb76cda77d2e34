package page

import "visawatch/internal/browser"

// The scheduling site ships unversioned markup that changes without
// notice. Every operation therefore carries an ordered list of locator
// strategies and takes the first that matches; specific ids come first,
// loose class and attribute probes last.

var emailField = []browser.Strategy{
	browser.Css("email input", "input[type='email']"),
	browser.Css("email name", "input[name='user[email]']"),
	browser.Css("email id", "input[id*='email']"),
	browser.Css("email placeholder", "input[placeholder*='email' i]"),
	browser.Css("user_email", "#user_email"),
	browser.Css("email class", ".email"),
}

var passwordField = []browser.Strategy{
	browser.Css("password input", "input[type='password']"),
	browser.Css("password name", "input[name='user[password]']"),
	browser.Css("password id", "input[id*='password']"),
	browser.Css("user_password", "#user_password"),
	browser.Css("password class", ".password"),
}

var policyCheckboxLabel = []browser.Strategy{
	browser.Search("policy label", "//label[contains(., 'Privacy Policy') or contains(., 'Terms of Use') or contains(., 'read and understood')]//input[@type='checkbox']"),
}

var signInSubmit = []browser.Strategy{
	browser.Css("submit input", "input[type='submit']"),
	browser.Css("submit button", "button[type='submit']"),
	browser.Css("sign value", "input[value*='Sign' i]"),
	browser.Css("btn-primary", ".btn-primary"),
	browser.Css("sign_in id", "#sign_in"),
}

var appointmentStatus = []browser.Strategy{
	browser.Css("consular-appt p", "p.consular-appt"),
	browser.Css("consular-appt", ".consular-appt"),
	browser.Search("consular text", "//p[contains(@class, 'consular-appt') or contains(text(), 'Consular Appointment')]"),
}

var continueButton = []browser.Strategy{
	browser.Css("continue primary", "a.button.primary[href*='continue_actions']"),
	browser.Css("continue href", "a[href*='continue_actions']"),
	browser.Css("continue button", "a.button[href*='continue']"),
	browser.Css("primary button", ".button.primary"),
	browser.Search("continue xpath", "//a[contains(@href, 'continue_actions')]"),
	browser.Search("continue text", "//a[contains(text(), 'Continue')]"),
}

var accordionTitle = []browser.Strategy{
	browser.Search("reschedule accordion", "//a[@class='accordion-title' and contains(.//h5, 'Reschedule Appointment')]"),
}

// The CSS entries need a text filter on top (any appointment link
// matches them); the XPath entries encode the text themselves.
var rescheduleButton = []browser.Strategy{
	browser.Css("appt button", "a.button[href*='/appointment']:not([href*='continue'])"),
	browser.Css("appt primary", "a.button.primary[href*='appointment']"),
	browser.Css("appt small", "a.button.small[href*='appointment']"),
	browser.Search("reschedule xpath", "//a[contains(@href, '/appointment') and contains(@class, 'button') and contains(text(), 'Reschedule Appointment')]"),
	browser.Search("accordion content", "//a[@class='accordion-content']//a[contains(@href, '/appointment') and contains(@class, 'button')]"),
}

var locationSelect = []browser.Strategy{
	browser.Css("facility id", "#appointments_consulate_appointment_facility_id"),
	browser.Css("facility name", "select[name*='facility_id']"),
	browser.Css("consular name", "select[name*='consular']"),
	browser.Css("facility attr", "select[id*='facility']"),
	browser.Css("facility full", "select[name*='appointments[consulate_appointment][facility_id]']"),
}

var dateField = []browser.Strategy{
	browser.Css("date field", "#appointments_consulate_appointment_date"),
}

var calendarIcon = []browser.Strategy{
	browser.Css("calendar_icon", ".calendar_icon"),
	browser.Css("calendar img", "img.calendar_icon"),
	browser.Css("calendar src", "img[src*='calendar']"),
	browser.Css("select anchor", "a[href='#select']"),
}

var calendarPopup = []browser.Strategy{
	browser.Css("ui-datepicker", ".ui-datepicker"),
	browser.Css("calendar-popup", ".calendar-popup"),
	browser.Css("datepicker", ".datepicker"),
	browser.Css("dialog role", "[role='dialog']"),
	browser.Css("yatri", ".yatri-datepicker"),
}

// Day cells carry a numeric label; anything else the selectors sweep up
// (month navigation arrows and the like) is dropped by the digit filter.
var dayCells = []browser.Strategy{
	browser.Css("enabled cells", "td:not(.ui-state-disabled):not(.disabled) a"),
	browser.Css("available cells", "td.available a"),
	browser.Css("non-disabled anchors", "td a:not(.ui-state-disabled)"),
	browser.Css("hash anchors", "td a[href*='#']"),
	browser.Css("class filter", "td:not([class*='disabled']) a"),
	browser.Css("ui-state-default", "a.ui-state-default:not(.ui-state-disabled)"),
	browser.Css("not unavailable", "td:not([class*='unavailable']) a"),
	browser.Css("any cell anchor", "td a"),
}

var nextMonth = []browser.Strategy{
	browser.Css("ui next", ".ui-datepicker-next"),
	browser.Css("dp next", ".datepicker-next"),
	browser.Css("ui next anchor", "a.ui-datepicker-next"),
	browser.Css("next title", "a[title='Next']"),
	browser.Css("next class", ".next"),
	browser.Css("next anchor", "a.next"),
	browser.Css("triangle icon", "span.ui-icon-circle-triangle-e"),
	browser.Css("yatri next", ".yatri-datepicker-next"),
}

var timeSelect = []browser.Strategy{
	browser.Css("time id", "select#appointments_consulate_appointment_time"),
	browser.Css("time name", "select[name*='time']"),
	browser.Css("time attr", "select[id*='time']"),
	browser.Css("time-select", ".time-select select"),
	browser.Css("time-slot", "select.time-slot"),
}

var submitButton = []browser.Strategy{
	browser.Css("appointments_submit", "input#appointments_submit"),
	browser.Css("reschedule value", "input[value*='Reschedule' i]"),
	browser.Css("reschedule button", "button[value*='Reschedule' i]"),
	browser.Css("any submit", "input[type='submit']"),
}

var revealModal = []browser.Strategy{
	browser.Css("reveal-modal", ".reveal-modal"),
	browser.Css("reveal", ".reveal"),
}

var revealConfirm = []browser.Strategy{
	browser.Search("reveal confirm", "//div[contains(@class, 'reveal')]//button[contains(translate(text(), 'ABCDEFGHIJKLMNOPQRSTUVWXYZ', 'abcdefghijklmnopqrstuvwxyz'), 'confirm')]"),
	browser.Search("reveal primary", "//div[contains(@class, 'reveal')]//button[contains(@class, 'primary')]"),
	browser.Search("reveal anchor", "//div[contains(@class, 'reveal')]//a[contains(@class, 'button') and contains(translate(text(), 'ABCDEFGHIJKLMNOPQRSTUVWXYZ', 'abcdefghijklmnopqrstuvwxyz'), 'confirm')]"),
}

var confirmButtonsCSS = []browser.Strategy{
	browser.Css("reveal-modal primary", ".reveal-modal button.primary"),
	browser.Css("reveal primary", ".reveal button.primary"),
	browser.Css("reveal button primary", ".reveal button.button.primary"),
	browser.Css("reveal-modal .button", ".reveal-modal .button.primary"),
	browser.Css("reveal non-close", ".reveal button[type='button']:not(.close-button)"),
	browser.Css("reveal-modal non-close", ".reveal-modal button[type='button']:not(.close-button)"),
	browser.Css("modal btn-primary", ".modal button.btn-primary"),
	browser.Css("modal-dialog btn", ".modal-dialog button.btn-primary"),
	browser.Css("modal-content btn", ".modal-content button.btn-primary"),
	browser.Css("confirm class", "button.confirm"),
	browser.Css("confirm id", "#confirm-button"),
	browser.Css("confirm-button", ".confirm-button"),
}

var confirmButtonsXPath = []browser.Strategy{
	browser.Search("modal confirm", "//div[contains(@class, 'reveal') or contains(@class, 'modal')]//button[contains(translate(text(), 'ABCDEFGHIJKLMNOPQRSTUVWXYZ', 'abcdefghijklmnopqrstuvwxyz'), 'confirm')]"),
	browser.Search("modal ok", "//div[contains(@class, 'reveal') or contains(@class, 'modal')]//button[contains(translate(text(), 'ABCDEFGHIJKLMNOPQRSTUVWXYZ', 'abcdefghijklmnopqrstuvwxyz'), 'ok')]"),
	browser.Search("confirm not cancel", "//button[contains(translate(text(), 'ABCDEFGHIJKLMNOPQRSTUVWXYZ', 'abcdefghijklmnopqrstuvwxyz'), 'confirm') and not(contains(translate(text(), 'ABCDEFGHIJKLMNOPQRSTUVWXYZ', 'abcdefghijklmnopqrstuvwxyz'), 'cancel'))]"),
	browser.Search("reveal-modal primary", "//div[@class='reveal-modal']//button[contains(@class, 'primary')]"),
	browser.Search("reveal primary any", "//div[contains(@class, 'reveal')]//button[contains(@class, 'primary')]"),
	browser.Search("confirm exact", "//button[normalize-space(text())='Confirm']"),
	browser.Search("ok exact", "//button[normalize-space(text())='OK']"),
}

var anyConfirmButton = []browser.Strategy{
	browser.Search("confirm anywhere", "//button[contains(translate(text(), 'ABCDEFGHIJKLMNOPQRSTUVWXYZ', 'abcdefghijklmnopqrstuvwxyz'), 'confirm')]"),
}

var homeContinueLink = []browser.Strategy{
	browser.Search("home continue", "//a[contains(text(), 'Continue')]"),
}

// modalContainers feeds the last-resort document scan, not a click; it
// stays as plain CSS selectors for goquery.
var modalContainers = []string{
	".reveal-modal", ".reveal", ".modal", "[role='dialog']", "[class*='reveal']", "[class*='modal']",
}
