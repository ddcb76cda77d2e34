package page

import (
	"strings"
	"testing"

	"github.com/PuerkitoBio/goquery"
)

func parseDoc(t *testing.T, src string) *goquery.Document {
	t.Helper()
	doc, err := goquery.NewDocumentFromReader(strings.NewReader(src))
	if err != nil {
		t.Fatalf("parse document: %v", err)
	}
	return doc
}

func TestBusyReasonFromErrorBox(t *testing.T) {
	doc := parseDoc(t, `<html><body>
		<div class="alert-box">The system is busy. Please try again later.</div>
		<p>Schedule your appointment</p>
	</body></html>`)

	reason, busy := busyReason(doc)
	if !busy {
		t.Fatal("expected busy to be detected")
	}
	if !strings.Contains(strings.ToLower(reason), "system is busy") {
		t.Fatalf("expected the banner text, got %q", reason)
	}
}

func TestBusyReasonFromBodyText(t *testing.T) {
	doc := parseDoc(t, `<html><body>
		<p>Our scheduling service is temporarily unavailable.</p>
	</body></html>`)

	if _, busy := busyReason(doc); !busy {
		t.Fatal("expected busy from plain body text")
	}
}

func TestBusyReasonIgnoresOrdinaryErrors(t *testing.T) {
	doc := parseDoc(t, `<html><body>
		<div class="error">Date is required</div>
	</body></html>`)

	if reason, busy := busyReason(doc); busy {
		t.Fatalf("validation error misread as busy: %q", reason)
	}
}

func TestBusyReasonSkipsScriptBodies(t *testing.T) {
	doc := parseDoc(t, `<html><body>
		<script>var msg = "system is busy";</script>
		<p>All good</p>
	</body></html>`)

	if reason, busy := busyReason(doc); busy {
		t.Fatalf("script source misread as busy: %q", reason)
	}
}

func TestLoginErrorText(t *testing.T) {
	doc := parseDoc(t, `<html><body>
		<div class="flash-message">Invalid email or password.</div>
		<form action="/users/sign_in"></form>
	</body></html>`)

	text, ok := loginErrorText(doc)
	if !ok {
		t.Fatal("expected an error box")
	}
	if text != "Invalid email or password." {
		t.Fatalf("expected the flash text, got %q", text)
	}

	clean := parseDoc(t, `<html><body><form></form></body></html>`)
	if text, ok := loginErrorText(clean); ok {
		t.Fatalf("expected no error box, got %q", text)
	}
}
