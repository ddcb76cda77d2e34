package page

import "strings"

// selectOption is one entry of a native select dropdown, as lifted out
// of the page by the options snapshot script.
type selectOption struct {
	Value    string `json:"value"`
	Label    string `json:"label"`
	Disabled bool   `json:"disabled"`
}

func (o selectOption) usable() bool {
	return strings.TrimSpace(o.Label) != "" && o.Value != "" && !o.Disabled
}

// timeMatch reports how a time option was chosen.
type timeMatch int

const (
	matchNone timeMatch = iota
	matchExact
	matchLoose
	matchFirst
)

func (m timeMatch) String() string {
	switch m {
	case matchExact:
		return "exact"
	case matchLoose:
		return "loose"
	case matchFirst:
		return "first"
	}
	return "none"
}

// chooseTime picks a time option for the preferred value. Options are
// scanned in document order; for each one an exact comparison is tried
// before the loose one, so an earlier loose hit wins over a later exact
// hit. The loose form strips spaces and every zero, which lets "7:30"
// meet "07:30". With no preferred value, or none matching, the first
// usable option wins.
func chooseTime(options []selectOption, preferred string) (selectOption, timeMatch) {
	preferred = strings.TrimSpace(preferred)
	if preferred != "" {
		wantTight := stripSpaces(preferred)
		wantLoose := stripZeros(wantTight)
		for _, opt := range options {
			if !opt.usable() {
				continue
			}
			label := strings.TrimSpace(opt.Label)
			tight := stripSpaces(label)
			if tight == wantTight || label == preferred {
				return opt, matchExact
			}
			loose := stripZeros(tight)
			if loose != "" && wantLoose != "" &&
				(strings.Contains(loose, wantLoose) || strings.Contains(wantLoose, loose)) {
				return opt, matchLoose
			}
		}
	}
	for _, opt := range options {
		if opt.usable() {
			return opt, matchFirst
		}
	}
	return selectOption{}, matchNone
}

func stripSpaces(s string) string {
	return strings.ReplaceAll(s, " ", "")
}

func stripZeros(s string) string {
	return strings.ReplaceAll(s, "0", "")
}
