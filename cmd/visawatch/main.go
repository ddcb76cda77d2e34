// Command visawatch monitors a US visa appointment calendar and rebooks the
// account's appointment when an earlier acceptable date opens up.
package main

import (
	"context"
	"errors"
	"flag"
	"fmt"
	"log/slog"
	"os"
	"os/signal"
	"strings"
	"syscall"
	"time"

	"visawatch/internal/artifacts"
	"visawatch/internal/config"
	"visawatch/internal/history"
	"visawatch/internal/monitor"
	"visawatch/internal/notify"
	"visawatch/internal/pacing"
	"visawatch/internal/session"
	"visawatch/internal/sitecheck"
	"visawatch/internal/state"
)

// killGrace is how long a cancelled run may spend on graceful teardown
// before the browser process is reclaimed by force.
const killGrace = 10 * time.Second

func main() {
	cfgPath := flag.String("config", "config.yaml", "Path to the configuration file")
	headful := flag.Bool("headful", false, "Run the browser with a visible window")
	logLevel := flag.String("log-level", "", "Override logging.level (debug, info, warn, error)")
	logText := flag.Bool("log-text", false, "Force human-readable log output")
	flag.Parse()

	cfg, err := config.LoadOrDefault(*cfgPath)
	if err != nil {
		fmt.Fprintf(os.Stderr, "failed to load config: %v\n", err)
		os.Exit(1)
	}
	if *headful {
		cfg.Browser.Headless = false
	}
	if *logLevel != "" {
		cfg.Logging.Level = *logLevel
	}
	if *logText {
		cfg.Logging.Structured = false
	}

	logger, err := buildLogger(cfg.Logging)
	if err != nil {
		fmt.Fprintf(os.Stderr, "failed to initialise logging: %v\n", err)
		os.Exit(1)
	}

	ctx, cancel := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer cancel()

	err = run(ctx, cancel, cfg, logger)
	switch {
	case err == nil:
		// Booked, or stopped on purpose.
	case errors.Is(err, monitor.ErrBusyAtStart):
		// The site shed us before monitoring began. Not our failure, so
		// exit clean and let the operator (or a scheduler) try again.
		logger.Warn("site is busy, try again later")
	case errors.Is(err, monitor.ErrSetupFailed):
		logger.Error("setup failed", "error", err)
		os.Exit(1)
	default:
		logger.Error("monitor stopped with error", "error", err)
		os.Exit(1)
	}
}

func run(ctx context.Context, cancel context.CancelFunc, cfg *config.Config, logger *slog.Logger) error {
	var store state.Store
	var fileStore *state.FileStore
	if cfg.State.Path != "" {
		fileStore = state.NewFileStore(cfg.State.Path)
		store = fileStore
		if snap, err := fileStore.Load(ctx); err != nil {
			logger.Warn("state file unreadable, continuing without it", "path", cfg.State.Path, "error", err)
		} else {
			applyState(cfg, snap, logger)
		}
	}

	var notifier notify.Notifier
	var tg *notify.Telegram
	if cfg.Telegram.Enabled() {
		var err error
		tg, err = notify.New(cfg.Telegram, logger)
		if err != nil {
			return fmt.Errorf("telegram: %w", err)
		}
		defer tg.Close()
		if fileStore != nil {
			tg.SetOnChatBound(func(id int64) {
				err := fileStore.Update(context.Background(), func(s *state.Snapshot) { s.ChatID = id })
				if err != nil {
					logger.Warn("persisting chat id failed", "error", err)
				}
			})
		}
		go tg.Run(ctx)
		notifier = tg
	} else {
		logger.Warn("telegram token not configured, notifications go to the log only")
		notifier = notify.LogNotifier{Logger: logger}
	}

	// Required fields that are still missing are collected over chat. With
	// no chat channel this reduces to a completeness check.
	var requester config.ValueRequester
	if tg != nil {
		requester = tg
	}
	if err := config.Complete(ctx, cfg, requester, cfg.Telegram.ValueTimeout.Duration); err != nil {
		return fmt.Errorf("complete configuration: %w", err)
	}

	journal, err := history.Open(cfg.History)
	if err != nil {
		return fmt.Errorf("history: %w", err)
	}
	defer journal.Close()

	captures, err := artifacts.New(cfg.Artifacts)
	if err != nil {
		return fmt.Errorf("artifacts: %w", err)
	}

	pacer := pacing.New(cfg.Pacing)
	sessions := session.NewManager(session.Live(cfg, pacer, logger), cfg, logger)
	if probe := sitecheck.New(cfg.Sitecheck, cfg.Site, cfg.Browser.UserAgent, logger); probe != nil {
		sessions.SetPreflight(probe.Probe)
	}
	defer sessions.Close()

	mon := monitor.New(monitor.Options{
		Config:    cfg,
		Sessions:  sessions,
		Notifier:  notifier,
		Store:     store,
		Journal:   journal,
		Artifacts: captures,
		Logger:    logger,
	})
	if tg != nil {
		tg.SetStatus(mon.Status)
	}
	notifier.OnStop(func() {
		logger.Info("stop requested from chat")
		cancel()
	})

	// Watchdog: if teardown after cancellation drags past the grace
	// period, reclaim the browser by force.
	monDone := make(chan struct{})
	go func() {
		select {
		case <-monDone:
		case <-ctx.Done():
			select {
			case <-monDone:
			case <-time.After(killGrace):
				logger.Warn("graceful shutdown overdue, force-killing browser")
				sessions.Kill()
			}
		}
	}()

	err = mon.Run(ctx)
	close(monDone)
	return err
}

// applyState folds the persisted snapshot into the effective config. The
// booking ceilings only ever tighten: a previous successful rebooking must
// not be re-offered by a later run with a stale config file.
func applyState(cfg *config.Config, snap state.Snapshot, logger *slog.Logger) {
	if cfg.Telegram.ChatID == 0 && snap.ChatID != 0 {
		cfg.Telegram.ChatID = snap.ChatID
		logger.Debug("chat id restored from state", "chat_id", snap.ChatID)
	}
	if cfg.Booking.Facility == "" && snap.Facility != "" {
		cfg.Booking.Facility = snap.Facility
		logger.Debug("facility restored from state", "facility", snap.Facility)
	}
	if !snap.CurrentBooking.IsZero() && snap.CurrentBooking.Before(cfg.Booking.CurrentBooking) {
		cfg.Booking.CurrentBooking = snap.CurrentBooking
		logger.Info("current booking date restored from state", "date", snap.CurrentBooking.String())
	}
	if !snap.LatestAcceptable.IsZero() && snap.LatestAcceptable.Before(cfg.Booking.Latest) {
		cfg.Booking.Latest = snap.LatestAcceptable
	}
}

func buildLogger(cfg config.LoggingConfig) (*slog.Logger, error) {
	level := slog.LevelInfo
	switch strings.ToLower(cfg.Level) {
	case "debug":
		level = slog.LevelDebug
	case "info", "":
		level = slog.LevelInfo
	case "warn", "warning":
		level = slog.LevelWarn
	case "error":
		level = slog.LevelError
	default:
		return nil, fmt.Errorf("unsupported log level %q", cfg.Level)
	}

	opts := &slog.HandlerOptions{Level: level}
	var handler slog.Handler
	if cfg.Structured {
		handler = slog.NewJSONHandler(os.Stdout, opts)
	} else {
		handler = slog.NewTextHandler(os.Stdout, opts)
	}
	return slog.New(handler), nil
}
