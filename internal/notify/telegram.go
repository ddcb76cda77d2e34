package notify

import (
	"context"
	"fmt"
	"log/slog"
	"strings"
	"sync"
	"time"

	tgbotapi "github.com/go-telegram-bot-api/telegram-bot-api/v5"

	"visawatch/internal/config"
)

const outboundQueueSize = 16

// sender is the slice of the bot API the gateway sends through, split out so
// tests can capture outbound messages.
type sender interface {
	Send(c tgbotapi.Chattable) (tgbotapi.Message, error)
}

type pendingKind int

const (
	pendingNone pendingKind = iota
	pendingValue
	pendingConfirm
)

type reply struct {
	text string
	ok   bool
}

// Telegram is the chat gateway. One chat owns the bot: either the configured
// chat id, or the first chat that messages it when none is configured.
type Telegram struct {
	api    sender
	bot    *tgbotapi.BotAPI
	queue  *dispatcher
	logger *slog.Logger

	mu          sync.Mutex
	chatID      int64
	pending     pendingKind
	replyCh     chan reply
	stopFns     []func()
	status      func() string
	onChatBound func(int64)
}

// New connects to the Telegram Bot API and starts the outbound dispatcher.
func New(cfg config.TelegramConfig, logger *slog.Logger) (*Telegram, error) {
	bot, err := tgbotapi.NewBotAPI(cfg.Token)
	if err != nil {
		return nil, fmt.Errorf("telegram connect: %w", err)
	}
	t := newWithSender(bot, cfg, logger)
	t.bot = bot
	logger.Info("telegram bot connected", "username", bot.Self.UserName)
	return t, nil
}

func newWithSender(api sender, cfg config.TelegramConfig, logger *slog.Logger) *Telegram {
	if logger == nil {
		logger = slog.Default()
	}
	return &Telegram{
		api:    api,
		queue:  newDispatcher(context.Background(), outboundQueueSize, logger),
		logger: logger,
		chatID: cfg.ChatID,
	}
}

// Run consumes incoming updates until ctx is cancelled.
func (t *Telegram) Run(ctx context.Context) {
	u := tgbotapi.NewUpdate(0)
	u.Timeout = 30
	updates := t.bot.GetUpdatesChan(u)
	for {
		select {
		case <-ctx.Done():
			t.bot.StopReceivingUpdates()
			return
		case upd, ok := <-updates:
			if !ok {
				return
			}
			t.handleUpdate(upd)
		}
	}
}

// Close stops the outbound dispatcher. Messages still queued are dropped.
func (t *Telegram) Close() {
	t.queue.close()
}

// ChatID returns the currently bound chat, zero when none has claimed the
// bot yet.
func (t *Telegram) ChatID() int64 {
	t.mu.Lock()
	defer t.mu.Unlock()
	return t.chatID
}

// SetStatus installs the callback that renders the /status reply.
func (t *Telegram) SetStatus(fn func() string) {
	t.mu.Lock()
	t.status = fn
	t.mu.Unlock()
}

// SetOnChatBound installs a callback invoked when a chat first claims the
// bot, so the id can be persisted.
func (t *Telegram) SetOnChatBound(fn func(int64)) {
	t.mu.Lock()
	t.onChatBound = fn
	t.mu.Unlock()
}

func (t *Telegram) Notify(ctx context.Context, text string) {
	t.queue.submit(func(context.Context) {
		t.send(text)
	})
}

func (t *Telegram) RequestValue(ctx context.Context, prompt string, timeout time.Duration) (string, error) {
	ch, err := t.beginRequest(pendingValue)
	if err != nil {
		return "", err
	}
	defer t.endRequest()

	t.Notify(ctx, prompt)
	timer := time.NewTimer(timeout)
	defer timer.Stop()
	select {
	case r := <-ch:
		return r.text, nil
	case <-timer.C:
		t.logger.Warn("value request timed out")
		t.Notify(ctx, "⏱️ No reply received in time. Using the default.")
		return "", ErrNoReply
	case <-ctx.Done():
		return "", ctx.Err()
	}
}

func (t *Telegram) RequestConfirmation(ctx context.Context, prompt string, timeout time.Duration) (bool, error) {
	ch, err := t.beginRequest(pendingConfirm)
	if err != nil {
		return false, err
	}
	defer t.endRequest()

	t.Notify(ctx, prompt)
	timer := time.NewTimer(timeout)
	defer timer.Stop()
	select {
	case r := <-ch:
		return r.ok, nil
	case <-timer.C:
		t.logger.Warn("confirmation request timed out")
		t.Notify(ctx, "⏱️ Confirmation timeout. Continuing to check for other dates.")
		return false, ErrNoReply
	case <-ctx.Done():
		return false, ctx.Err()
	}
}

func (t *Telegram) OnStop(fn func()) {
	t.mu.Lock()
	t.stopFns = append(t.stopFns, fn)
	t.mu.Unlock()
}

func (t *Telegram) handleUpdate(u tgbotapi.Update) {
	msg := u.Message
	if msg == nil || msg.Chat == nil || msg.Text == "" {
		return
	}
	if !t.bindChat(msg.Chat.ID) {
		return
	}
	if msg.IsCommand() {
		t.handleCommand(msg.Command())
		return
	}
	t.handleReply(strings.TrimSpace(msg.Text))
}

// bindChat adopts the first chat that talks to the bot and ignores every
// other chat afterwards.
func (t *Telegram) bindChat(id int64) bool {
	t.mu.Lock()
	if t.chatID == 0 {
		t.chatID = id
		fn := t.onChatBound
		t.mu.Unlock()
		t.logger.Info("chat bound", "chat_id", id)
		if fn != nil {
			fn(id)
		}
		return true
	}
	known := t.chatID == id
	t.mu.Unlock()
	return known
}

func (t *Telegram) handleCommand(cmd string) {
	switch cmd {
	case "start":
		t.send("👋 US Visa Appointment Bot is running!\n\n" +
			"I will notify you when appointment dates become available.\n" +
			"Use /status to check the current status.")
	case "status":
		t.send(t.statusText())
	case "stop":
		t.send("🛑 Stopping as requested.")
		t.fireStop()
	}
}

func (t *Telegram) statusText() string {
	t.mu.Lock()
	fn := t.status
	pending := t.pending
	t.mu.Unlock()

	text := "✅ Bot is active and monitoring for appointments."
	if fn != nil {
		if s := fn(); s != "" {
			text = s
		}
	}
	if pending == pendingConfirm {
		text += "\n⏳ Waiting for your confirmation on an available date."
	}
	return text
}

func (t *Telegram) handleReply(text string) {
	t.mu.Lock()
	kind := t.pending
	t.mu.Unlock()

	lower := strings.ToLower(text)
	switch kind {
	case pendingValue:
		switch lower {
		case "skip", "any", "first", "auto":
			if t.deliver(reply{}) {
				t.send("✅ Will use the default.")
			}
		default:
			if t.deliver(reply{text: text}) {
				t.send("✅ Got it.")
			}
		}
	case pendingConfirm:
		switch lower {
		case "yes", "y", "confirm", "ok", "book":
			if t.deliver(reply{ok: true}) {
				t.send("✅ Confirmed! Booking the appointment...")
			}
		case "no", "n", "cancel", "skip":
			if t.deliver(reply{}) {
				t.send("❌ Cancelled. Will continue checking for other dates.")
			}
		default:
			t.send("Please reply with 'yes' to confirm or 'no' to cancel.")
		}
	}
}

func (t *Telegram) beginRequest(kind pendingKind) (chan reply, error) {
	t.mu.Lock()
	defer t.mu.Unlock()
	if t.pending != pendingNone {
		return nil, fmt.Errorf("another request is already awaiting a reply")
	}
	t.pending = kind
	t.replyCh = make(chan reply, 1)
	return t.replyCh, nil
}

func (t *Telegram) endRequest() {
	t.mu.Lock()
	t.pending = pendingNone
	t.replyCh = nil
	t.mu.Unlock()
}

// deliver hands a reply to the waiting request, reporting false when the
// request already timed out.
func (t *Telegram) deliver(r reply) bool {
	t.mu.Lock()
	defer t.mu.Unlock()
	if t.pending == pendingNone || t.replyCh == nil {
		return false
	}
	t.replyCh <- r
	t.pending = pendingNone
	t.replyCh = nil
	return true
}

func (t *Telegram) fireStop() {
	t.mu.Lock()
	fns := append([]func(){}, t.stopFns...)
	t.mu.Unlock()
	for _, fn := range fns {
		fn()
	}
}

func (t *Telegram) send(text string) {
	t.mu.Lock()
	chatID := t.chatID
	t.mu.Unlock()
	if chatID == 0 {
		t.logger.Warn("dropping message, no chat bound yet", "text", clip(text))
		return
	}

	msg := tgbotapi.NewMessage(chatID, text)
	msg.ParseMode = tgbotapi.ModeHTML
	if _, err := t.api.Send(msg); err != nil {
		if strings.Contains(strings.ToLower(err.Error()), "chat not found") {
			t.logger.Error("chat not found, waiting for /start to rebind", "chat_id", chatID)
			t.mu.Lock()
			t.chatID = 0
			t.mu.Unlock()
			return
		}
		t.logger.Error("telegram send failed", "error", err)
	}
}

func clip(s string) string {
	if len(s) <= 50 {
		return s
	}
	return s[:50] + "..."
}
