package types

import (
	"fmt"
	"strings"
	"time"
)

// Date is a civil calendar date without a time component.
type Date struct {
	Year  int
	Month time.Month
	Day   int
}

// ParseDate parses a date in YYYY-MM-DD form.
func ParseDate(s string) (Date, error) {
	t, err := time.Parse("2006-01-02", strings.TrimSpace(s))
	if err != nil {
		return Date{}, fmt.Errorf("invalid date %q: %w", s, err)
	}
	return DateOf(t), nil
}

// DateOf truncates a time.Time to its civil date.
func DateOf(t time.Time) Date {
	return Date{Year: t.Year(), Month: t.Month(), Day: t.Day()}
}

// Time returns the date at midnight UTC.
func (d Date) Time() time.Time {
	return time.Date(d.Year, d.Month, d.Day, 0, 0, 0, 0, time.UTC)
}

func (d Date) String() string {
	return fmt.Sprintf("%04d-%02d-%02d", d.Year, d.Month, d.Day)
}

// IsZero reports whether the date is the zero value.
func (d Date) IsZero() bool {
	return d.Year == 0 && d.Month == 0 && d.Day == 0
}

// Before reports whether d is strictly earlier than other.
func (d Date) Before(other Date) bool {
	return d.Time().Before(other.Time())
}

// After reports whether d is strictly later than other.
func (d Date) After(other Date) bool {
	return d.Time().After(other.Time())
}

// Equal reports whether both dates name the same day.
func (d Date) Equal(other Date) bool {
	return d.Year == other.Year && d.Month == other.Month && d.Day == other.Day
}

func (d Date) MarshalText() ([]byte, error) {
	if d.IsZero() {
		return []byte(""), nil
	}
	return []byte(d.String()), nil
}

func (d *Date) UnmarshalText(text []byte) error {
	raw := strings.TrimSpace(string(text))
	if raw == "" {
		*d = Date{}
		return nil
	}
	parsed, err := ParseDate(raw)
	if err != nil {
		return err
	}
	*d = parsed
	return nil
}

// MarshalYAML emits the date in YYYY-MM-DD form.
func (d Date) MarshalYAML() (any, error) {
	if d.IsZero() {
		return "", nil
	}
	return d.String(), nil
}

// UnmarshalYAML accepts a YYYY-MM-DD string. The YAML resolver hands
// bare date scalars over as time.Time, so both shapes are taken.
func (d *Date) UnmarshalYAML(unmarshal func(any) error) error {
	var raw any
	if err := unmarshal(&raw); err != nil {
		return err
	}
	switch v := raw.(type) {
	case nil:
		*d = Date{}
		return nil
	case string:
		return d.UnmarshalText([]byte(v))
	case time.Time:
		*d = DateOf(v)
		return nil
	default:
		return fmt.Errorf("invalid date value %v (%T)", raw, raw)
	}
}

// Facility maps a consulate name onto the scheduling site's facility identifier.
type Facility struct {
	Name string
	ID   string
}

// Consulates lists the selectable consulate facilities in display order.
var Consulates = []Facility{
	{Name: "Calgary", ID: "89"},
	{Name: "Halifax", ID: "90"},
	{Name: "Montreal", ID: "91"},
	{Name: "Ottawa", ID: "92"},
	{Name: "Quebec", ID: "93"},
	{Name: "Toronto", ID: "94"},
	{Name: "Vancouver", ID: "95"},
}

// FacilityByName resolves a consulate by exact name, falling back to a
// case-insensitive match.
func FacilityByName(name string) (Facility, bool) {
	name = strings.TrimSpace(name)
	for _, f := range Consulates {
		if f.Name == name {
			return f, true
		}
	}
	for _, f := range Consulates {
		if strings.EqualFold(f.Name, name) {
			return f, true
		}
	}
	return Facility{}, false
}

// FacilityNames returns the consulate names in display order.
func FacilityNames() []string {
	names := make([]string, len(Consulates))
	for i, f := range Consulates {
		names[i] = f.Name
	}
	return names
}

// CandidateSlot is a bookable appointment date discovered in the calendar
// widget. NodeID references the originating day cell and is only meaningful
// while the page epoch it was captured under is still current.
type CandidateSlot struct {
	Date     Date
	Location string
	Epoch    int64
	NodeID   int64
}

// HandleValid reports whether the element back-reference may still be used.
func (s CandidateSlot) HandleValid(currentEpoch int64) bool {
	return s.NodeID != 0 && s.Epoch == currentEpoch
}

// BookingStatus tags the outcome of a booking attempt.
type BookingStatus string

const (
	BookingBooked          BookingStatus = "booked"
	BookingTimeUnavailable BookingStatus = "time_unavailable"
	BookingFailed          BookingStatus = "failed"
)

// BookingOutcome is the result of attempting to finalise a candidate slot.
type BookingOutcome struct {
	Status BookingStatus
	Date   Date
	Reason string
}

// Booked builds a successful outcome for the given date.
func Booked(d Date) BookingOutcome {
	return BookingOutcome{Status: BookingBooked, Date: d}
}

// TimeUnavailable builds the outcome for a slot whose time options vanished.
func TimeUnavailable(d Date) BookingOutcome {
	return BookingOutcome{Status: BookingTimeUnavailable, Date: d, Reason: "no time options available"}
}

// BookingFailure builds a failed outcome with a human-readable reason.
func BookingFailure(d Date, reason string) BookingOutcome {
	return BookingOutcome{Status: BookingFailed, Date: d, Reason: reason}
}
