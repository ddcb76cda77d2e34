package page

import (
	"testing"

	"visawatch/pkg/types"
)

func TestParseAppointmentText(t *testing.T) {
	cases := []struct {
		name string
		text string
		want string
	}{
		{
			name: "month name form",
			text: "21 June, 2027, 09:15 Toronto local time at Toronto",
			want: "2027-06-21",
		},
		{
			name: "abbreviated month",
			text: "3 Sep, 2026 at Vancouver",
			want: "2026-09-03",
		},
		{
			name: "slash form day first",
			text: "Consular Appointment: 21/06/2027 09:15",
			want: "2027-06-21",
		},
		{
			name: "slash form month first",
			text: "Consular Appointment: 06/21/2027 09:15",
			want: "2027-06-21",
		},
		{
			name: "iso form",
			text: "next appointment 2027-6-1",
			want: "2027-06-01",
		},
	}
	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			got, err := parseAppointmentText(tc.text)
			if err != nil {
				t.Fatalf("expected a date, got error %v", err)
			}
			if got.String() != tc.want {
				t.Fatalf("expected %s, got %s", tc.want, got)
			}
		})
	}
}

func TestParseAppointmentTextRejectsNoise(t *testing.T) {
	for _, text := range []string{
		"",
		"no appointment scheduled",
		"21 Smarch, 2027",
	} {
		if d, err := parseAppointmentText(text); err == nil {
			t.Fatalf("expected error for %q, got %v", text, d)
		}
	}
}

func TestParseAppointmentTextPrefersMonthName(t *testing.T) {
	// Both forms present; the human-readable one is what the status
	// paragraph actually shows, so it must win.
	got, err := parseAppointmentText("21 June, 2027 (ref 2026-01-01)")
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if !got.Equal(types.Date{Year: 2027, Month: 6, Day: 21}) {
		t.Fatalf("expected 2027-06-21, got %s", got)
	}
}
