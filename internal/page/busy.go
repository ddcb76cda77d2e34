package page

import (
	"strings"

	"github.com/PuerkitoBio/goquery"
)

// busyPhrases are the load-shedding messages the site renders instead of
// the calendar when it is overloaded. Matching is substring on lowered
// text; absence of a match is a weak signal, presence a strong one.
var busyPhrases = []string{
	"system is busy",
	"overloaded",
	"temporarily unavailable",
	"try again later",
	"please try again later",
}

// errorBoxSelectors cover the flash and alert containers the site uses
// for both validation errors and busy banners.
var errorBoxSelectors = []string{
	".error",
	".alert",
	".alert-box",
	"[class*='error'], [class*='alert']",
}

// busyReason scans the document for a busy banner. Error-styled boxes
// are checked first; the page's rendered text is the fallback, since
// the banner sometimes lands outside any alert container. Script and
// style bodies never count.
func busyReason(doc *goquery.Document) (string, bool) {
	if doc == nil {
		return "", false
	}
	for _, sel := range errorBoxSelectors {
		var reason string
		doc.Find(sel).EachWithBreak(func(_ int, s *goquery.Selection) bool {
			text := selectionText(s)
			if _, ok := MatchBusyPhrase(text); ok {
				reason = text
				return false
			}
			return true
		})
		if reason != "" {
			return reason, true
		}
	}

	if phrase, ok := MatchBusyPhrase(selectionText(doc.Find("body"))); ok {
		return phrase, true
	}
	return "", false
}

// MatchBusyPhrase reports whether text contains one of the site's
// load-shedding messages, and which one matched. Exported for the HTTP
// pre-flight probe, which scans raw bodies without building a document.
func MatchBusyPhrase(text string) (string, bool) {
	lower := strings.ToLower(text)
	for _, phrase := range busyPhrases {
		if strings.Contains(lower, phrase) {
			return phrase, true
		}
	}
	return "", false
}

// selectionText flattens a selection to its visible text.
func selectionText(s *goquery.Selection) string {
	var parts []string
	for _, n := range s.Nodes {
		if text := textContent(n); text != "" {
			parts = append(parts, text)
		}
	}
	return strings.Join(parts, " ")
}

// loginErrorSelectors are the boxes the sign-in page fills on a rejected
// credential pair.
var loginErrorSelectors = []string{
	".alert-danger",
	".error",
	"[class*='error']",
	".flash-message",
}

// loginErrorText returns the first non-empty error box text on a page
// that is still showing the sign-in form.
func loginErrorText(doc *goquery.Document) (string, bool) {
	if doc == nil {
		return "", false
	}
	for _, sel := range loginErrorSelectors {
		var found string
		doc.Find(sel).EachWithBreak(func(_ int, s *goquery.Selection) bool {
			if text := selectionText(s); text != "" {
				found = text
				return false
			}
			return true
		})
		if found != "" {
			return found, true
		}
	}
	return "", false
}
