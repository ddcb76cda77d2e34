package session

import (
	"context"
	"log/slog"

	"visawatch/internal/browser"
	"visawatch/internal/config"
	"visawatch/internal/pacing"
	"visawatch/internal/page"
)

// liveSite pairs the page adapter with the browser it drives so the manager
// can treat navigation and lifecycle as one handle.
type liveSite struct {
	*page.Adapter
	browser *browser.Browser
}

func (s *liveSite) Close() error { return s.browser.Close() }
func (s *liveSite) Kill()        { s.browser.ForceKill() }

// Live returns an OpenFunc that launches a fresh browser for every session.
// The parent context bounds the browser's lifetime: cancelling it tears the
// whole Chrome tree down even mid-navigation.
func Live(cfg *config.Config, pace *pacing.Pacer, logger *slog.Logger) OpenFunc {
	return func(ctx context.Context) (Site, error) {
		b, err := browser.Launch(ctx, cfg.Browser, logger)
		if err != nil {
			return nil, err
		}
		return &liveSite{
			Adapter: page.New(b, cfg.Site, pace, logger),
			browser: b,
		}, nil
	}
}
