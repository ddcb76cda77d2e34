package page

import (
	"fmt"
	"strings"

	"visawatch/pkg/types"
)

// The site has no structured booking response; the result is judged
// from where the browser landed and what the page says.

var errorIndicators = []string{
	"error",
	"failed",
	"try again",
	"system is busy",
}

// classifySubmission decides whether a submitted reschedule stuck. The
// instructions, groups and account pages all mean the form was accepted;
// remaining on the scheduling form means it was not. Any other landing
// page counts as success, matching the site's habit of bouncing through
// interstitial pages after a booking.
func classifySubmission(date types.Date, currentURL, pageSource string) types.BookingOutcome {
	url := strings.ToLower(currentURL)
	source := strings.ToLower(pageSource)

	if strings.Contains(url, "instructions") || strings.Contains(url, "/groups") || strings.Contains(url, "/account") {
		return types.Booked(date)
	}

	if strings.Contains(url, "/appointment") {
		for _, phrase := range errorIndicators {
			if strings.Contains(source, phrase) {
				return types.BookingFailure(date, fmt.Sprintf("still on scheduling page, found %q", phrase))
			}
		}
		return types.BookingFailure(date, "still on scheduling page with no confirmation")
	}

	return types.Booked(date)
}
