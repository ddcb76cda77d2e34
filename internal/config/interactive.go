package config

import (
	"context"
	"fmt"
	"strings"
	"time"

	"visawatch/pkg/types"
)

// Required field identifiers, also used in prompts and error messages.
const (
	FieldEmail    = "account.email"
	FieldPassword = "account.password"
	FieldFacility = "booking.facility"
)

const completionAttempts = 3

// ValueRequester is the slice of the notifier gateway interactive
// completion needs: ask the user for one value and block until a reply or
// the timeout.
type ValueRequester interface {
	RequestValue(ctx context.Context, prompt string, timeout time.Duration) (string, error)
}

type fieldPrompt struct {
	field    string
	prompt   string
	validate func(string) error
	apply    func(*Config, string)
}

// Complete fills the still-missing required fields by asking the user
// through the notifier channel. Each field gets up to three attempts; a
// field that never validates is left empty for RequireComplete to reject.
func Complete(ctx context.Context, cfg *Config, req ValueRequester, timeout time.Duration) error {
	if req == nil {
		return cfg.RequireComplete()
	}
	prompts := map[string]fieldPrompt{
		FieldEmail: {
			field:  FieldEmail,
			prompt: "Please send the email address used on the scheduling site.",
			validate: func(v string) error {
				if !strings.Contains(v, "@") {
					return fmt.Errorf("%q does not look like an email address", v)
				}
				return nil
			},
			apply: func(c *Config, v string) { c.Account.Email = strings.TrimSpace(v) },
		},
		FieldPassword: {
			field:  FieldPassword,
			prompt: "Please send the account password.",
			validate: func(v string) error {
				if strings.TrimSpace(v) == "" {
					return fmt.Errorf("password must not be empty")
				}
				return nil
			},
			apply: func(c *Config, v string) { c.Account.Password = v },
		},
		FieldFacility: {
			field: FieldFacility,
			prompt: "Which consulate should be monitored? One of: " +
				strings.Join(types.FacilityNames(), ", "),
			validate: func(v string) error {
				if _, ok := types.FacilityByName(v); !ok {
					return fmt.Errorf("%q is not a known consulate", v)
				}
				return nil
			},
			apply: func(c *Config, v string) {
				f, _ := types.FacilityByName(v)
				c.Booking.Facility = f.Name
			},
		},
	}

	for _, field := range cfg.MissingRequired() {
		p, ok := prompts[field]
		if !ok {
			continue
		}
		if err := askField(ctx, cfg, req, p, timeout); err != nil {
			return err
		}
	}
	return cfg.RequireComplete()
}

func askField(ctx context.Context, cfg *Config, req ValueRequester, p fieldPrompt, timeout time.Duration) error {
	prompt := p.prompt
	for attempt := 1; attempt <= completionAttempts; attempt++ {
		if err := ctx.Err(); err != nil {
			return err
		}
		value, err := req.RequestValue(ctx, prompt, timeout)
		if err != nil {
			return fmt.Errorf("request %s: %w", p.field, err)
		}
		value = strings.TrimSpace(value)
		if value == "" {
			prompt = "No value received. " + p.prompt
			continue
		}
		if err := p.validate(value); err != nil {
			prompt = fmt.Sprintf("Invalid value (%v). %s", err, p.prompt)
			continue
		}
		p.apply(cfg, value)
		return nil
	}
	return nil
}
