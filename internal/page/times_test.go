package page

import "testing"

func timeOptions(labels ...string) []selectOption {
	opts := make([]selectOption, 0, len(labels)+1)
	opts = append(opts, selectOption{Value: "", Label: ""})
	for _, l := range labels {
		opts = append(opts, selectOption{Value: l, Label: l})
	}
	return opts
}

func TestChooseTimeExact(t *testing.T) {
	opts := timeOptions("07:30", "09:15", "11:00")
	got, how := chooseTime(opts, "09:15")
	if how != matchExact || got.Label != "09:15" {
		t.Fatalf("expected exact 09:15, got %q (%s)", got.Label, how)
	}
}

func TestChooseTimeLooseZeroStripping(t *testing.T) {
	opts := timeOptions("07:30", "09:15")
	got, how := chooseTime(opts, "7:30")
	if how != matchLoose || got.Label != "07:30" {
		t.Fatalf("expected loose 07:30, got %q (%s)", got.Label, how)
	}

	// Containment runs both directions.
	got, how = chooseTime(timeOptions("9:15"), "09:15")
	if how == matchNone || got.Label != "9:15" {
		t.Fatalf("expected 9:15, got %q (%s)", got.Label, how)
	}
}

func TestChooseTimeEarlierLooseBeatsLaterExact(t *testing.T) {
	// Options scan in document order, trying exact then loose per
	// option, so an early loose hit shadows a later exact one.
	opts := timeOptions("07:30", "7:3")
	got, how := chooseTime(opts, "7:3")
	if how != matchLoose || got.Label != "07:30" {
		t.Fatalf("expected the earlier loose hit 07:30, got %q (%s)", got.Label, how)
	}
}

func TestChooseTimeFallsBackToFirst(t *testing.T) {
	opts := timeOptions("08:00", "10:30")
	got, how := chooseTime(opts, "16:45")
	if how != matchFirst || got.Label != "08:00" {
		t.Fatalf("expected first 08:00, got %q (%s)", got.Label, how)
	}

	got, how = chooseTime(opts, "")
	if how != matchFirst || got.Label != "08:00" {
		t.Fatalf("expected first without preference, got %q (%s)", got.Label, how)
	}
}

func TestChooseTimeSkipsUnusable(t *testing.T) {
	opts := []selectOption{
		{Value: "", Label: ""},
		{Value: "08:00", Label: "08:00", Disabled: true},
		{Value: "10:30", Label: "10:30"},
	}
	got, how := chooseTime(opts, "08:00")
	if got.Label != "10:30" {
		t.Fatalf("disabled option must be skipped, got %q (%s)", got.Label, how)
	}

	if _, how := chooseTime(timeOptions(), "08:00"); how != matchNone {
		t.Fatalf("expected no match on placeholder-only options, got %s", how)
	}
}
