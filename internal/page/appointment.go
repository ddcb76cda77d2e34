package page

import (
	"errors"
	"fmt"
	"regexp"
	"strings"
	"time"

	"visawatch/pkg/types"
)

// The appointment status paragraph is free text, typically
// "21 June, 2027, 09:15 Toronto local time at Toronto". Date extraction
// is best-effort across the formats the site has been seen to render.

var (
	monthNameDate = regexp.MustCompile(`(\d{1,2})\s+(\w+),\s+(\d{4})`)
	slashDate     = regexp.MustCompile(`(\d{1,2})/(\d{1,2})/(\d{4})`)
	isoDate       = regexp.MustCompile(`(\d{4})-(\d{1,2})-(\d{1,2})`)
)

var monthsByName = map[string]time.Month{
	"january": time.January, "february": time.February, "march": time.March,
	"april": time.April, "may": time.May, "june": time.June,
	"july": time.July, "august": time.August, "september": time.September,
	"october": time.October, "november": time.November, "december": time.December,
	"jan": time.January, "feb": time.February, "mar": time.March,
	"apr": time.April, "jun": time.June, "jul": time.July,
	"aug": time.August, "sep": time.September, "oct": time.October,
	"nov": time.November, "dec": time.December,
}

var errNoDateInText = errors.New("no recognizable date in text")

// parseAppointmentText pulls a calendar date out of the status
// paragraph. Day-month-name form is tried first, then slash numerics
// (day-first, then month-first), then ISO.
func parseAppointmentText(text string) (types.Date, error) {
	if m := monthNameDate.FindStringSubmatch(text); m != nil {
		if month, ok := monthsByName[strings.ToLower(m[2])]; ok {
			return checkDate(fmt.Sprintf("%s-%02d-%s", m[3], int(month), pad2(m[1])))
		}
	}
	if m := slashDate.FindStringSubmatch(text); m != nil {
		for _, layout := range []string{"2/1/2006", "1/2/2006"} {
			if t, err := time.Parse(layout, m[0]); err == nil {
				return types.DateOf(t), nil
			}
		}
	}
	if m := isoDate.FindStringSubmatch(text); m != nil {
		return checkDate(fmt.Sprintf("%s-%s-%s", m[1], pad2(m[2]), pad2(m[3])))
	}
	return types.Date{}, fmt.Errorf("%w: %q", errNoDateInText, normalizeWhitespace(text))
}

func checkDate(iso string) (types.Date, error) {
	d, err := types.ParseDate(iso)
	if err != nil {
		return types.Date{}, fmt.Errorf("%w: %v", errNoDateInText, err)
	}
	return d, nil
}

func pad2(s string) string {
	if len(s) == 1 {
		return "0" + s
	}
	return s
}
