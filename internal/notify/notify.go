// Package notify carries user-facing events out of the monitor and user
// replies back in. The Telegram gateway is the production channel; LogNotifier
// stands in when no channel is configured.
package notify

import (
	"context"
	"errors"
	"log/slog"
	"time"
)

// ErrNoReply is returned by value and confirmation requests when no usable
// reply arrives before the timeout. Callers fall back to their defaults.
var ErrNoReply = errors.New("no reply received")

// Notifier is the gateway the monitor and the interactive config completion
// talk to. Notify must never block the caller on network delivery.
type Notifier interface {
	// Notify delivers a one-way message. Failures are logged, not returned:
	// monitoring does not stop because a message could not be sent.
	Notify(ctx context.Context, text string)

	// RequestValue sends prompt and waits up to timeout for a free-form
	// reply. An empty reply with a nil error means the user asked for the
	// default.
	RequestValue(ctx context.Context, prompt string, timeout time.Duration) (string, error)

	// RequestConfirmation sends prompt and waits up to timeout for a yes or
	// no.
	RequestConfirmation(ctx context.Context, prompt string, timeout time.Duration) (bool, error)

	// OnStop registers a callback run when the user asks the bot to stop.
	OnStop(fn func())
}

// LogNotifier routes notifications to the log and answers every request with
// ErrNoReply.
type LogNotifier struct {
	Logger *slog.Logger
}

func (l LogNotifier) logger() *slog.Logger {
	if l.Logger != nil {
		return l.Logger
	}
	return slog.Default()
}

func (l LogNotifier) Notify(ctx context.Context, text string) {
	l.logger().Info("notification", "text", text)
}

func (l LogNotifier) RequestValue(ctx context.Context, prompt string, timeout time.Duration) (string, error) {
	l.logger().Info("value requested but no reply channel is configured", "prompt", prompt)
	return "", ErrNoReply
}

func (l LogNotifier) RequestConfirmation(ctx context.Context, prompt string, timeout time.Duration) (bool, error) {
	l.logger().Info("confirmation requested but no reply channel is configured", "prompt", prompt)
	return false, ErrNoReply
}

func (l LogNotifier) OnStop(fn func()) {}
