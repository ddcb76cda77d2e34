package notify

import (
	"context"
	"errors"
	"io"
	"log/slog"
	"strings"
	"sync"
	"testing"
	"time"

	tgbotapi "github.com/go-telegram-bot-api/telegram-bot-api/v5"

	"visawatch/internal/config"
)

type fakeSender struct {
	mu   sync.Mutex
	sent []tgbotapi.MessageConfig
}

func (f *fakeSender) Send(c tgbotapi.Chattable) (tgbotapi.Message, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	if mc, ok := c.(tgbotapi.MessageConfig); ok {
		f.sent = append(f.sent, mc)
	}
	return tgbotapi.Message{}, nil
}

func (f *fakeSender) texts() []string {
	f.mu.Lock()
	defer f.mu.Unlock()
	out := make([]string, len(f.sent))
	for i, m := range f.sent {
		out[i] = m.Text
	}
	return out
}

func (f *fakeSender) waitForText(t *testing.T, substr string) {
	t.Helper()
	deadline := time.Now().Add(2 * time.Second)
	for time.Now().Before(deadline) {
		for _, text := range f.texts() {
			if strings.Contains(text, substr) {
				return
			}
		}
		time.Sleep(5 * time.Millisecond)
	}
	t.Fatalf("expected a message containing %q, got %v", substr, f.texts())
}

func newTestGateway(t *testing.T, chatID int64) (*Telegram, *fakeSender) {
	t.Helper()
	fake := &fakeSender{}
	tg := newWithSender(fake, config.TelegramConfig{ChatID: chatID}, slog.New(slog.NewTextHandler(io.Discard, nil)))
	t.Cleanup(tg.Close)
	return tg, fake
}

func textUpdate(chatID int64, text string) tgbotapi.Update {
	return tgbotapi.Update{Message: &tgbotapi.Message{
		Text: text,
		Chat: &tgbotapi.Chat{ID: chatID},
	}}
}

func commandUpdate(chatID int64, cmd string) tgbotapi.Update {
	text := "/" + cmd
	return tgbotapi.Update{Message: &tgbotapi.Message{
		Text: text,
		Chat: &tgbotapi.Chat{ID: chatID},
		Entities: []tgbotapi.MessageEntity{
			{Type: "bot_command", Offset: 0, Length: len(text)},
		},
	}}
}

func (t *Telegram) pendingKind() pendingKind {
	t.mu.Lock()
	defer t.mu.Unlock()
	return t.pending
}

func TestChatAutodetect(t *testing.T) {
	tg, fake := newTestGateway(t, 0)
	var bound int64
	tg.SetOnChatBound(func(id int64) { bound = id })

	tg.handleUpdate(textUpdate(42, "hello"))

	if got := tg.ChatID(); got != 42 {
		t.Fatalf("expected chat 42 to be bound, got %d", got)
	}
	if bound != 42 {
		t.Fatalf("expected bind callback with 42, got %d", bound)
	}

	tg.Notify(context.Background(), "first notification")
	fake.waitForText(t, "first notification")
}

func TestIgnoresForeignChat(t *testing.T) {
	tg, fake := newTestGateway(t, 42)
	ch, err := tg.beginRequest(pendingConfirm)
	if err != nil {
		t.Fatalf("begin request: %v", err)
	}

	tg.handleUpdate(textUpdate(99, "yes"))

	select {
	case r := <-ch:
		t.Fatalf("expected no reply from a foreign chat, got %+v", r)
	default:
	}
	if len(fake.texts()) != 0 {
		t.Fatalf("expected no outbound messages, got %v", fake.texts())
	}
}

func TestConfirmationVocabulary(t *testing.T) {
	tg, _ := newTestGateway(t, 42)
	cases := map[string]bool{
		"yes": true, "y": true, "confirm": true, "OK": true, "Book": true,
		"no": false, "n": false, "cancel": false, "skip": false,
	}
	for word, want := range cases {
		ch, err := tg.beginRequest(pendingConfirm)
		if err != nil {
			t.Fatalf("begin request for %q: %v", word, err)
		}
		tg.handleReply(word)
		select {
		case r := <-ch:
			if r.ok != want {
				t.Fatalf("expected %q to mean %v, got %v", word, want, r.ok)
			}
		default:
			t.Fatalf("expected a reply for %q", word)
		}
		tg.endRequest()
	}
}

func TestUnrecognisedConfirmReplyKeepsWaiting(t *testing.T) {
	tg, fake := newTestGateway(t, 42)
	ch, err := tg.beginRequest(pendingConfirm)
	if err != nil {
		t.Fatalf("begin request: %v", err)
	}

	tg.handleReply("maybe")

	select {
	case r := <-ch:
		t.Fatalf("expected no reply for ambiguous text, got %+v", r)
	default:
	}
	if tg.pendingKind() != pendingConfirm {
		t.Fatal("expected confirmation to still be pending")
	}
	fake.waitForText(t, "Please reply with 'yes'")
}

func TestValueSkipMeansDefault(t *testing.T) {
	tg, _ := newTestGateway(t, 42)
	for _, word := range []string{"skip", "any", "first", "auto"} {
		ch, err := tg.beginRequest(pendingValue)
		if err != nil {
			t.Fatalf("begin request for %q: %v", word, err)
		}
		tg.handleReply(word)
		select {
		case r := <-ch:
			if r.text != "" {
				t.Fatalf("expected empty value for %q, got %q", word, r.text)
			}
		default:
			t.Fatalf("expected a reply for %q", word)
		}
		tg.endRequest()
	}
}

func TestValueReplyDelivered(t *testing.T) {
	tg, _ := newTestGateway(t, 42)
	done := make(chan struct{})
	var got string
	var gotErr error
	go func() {
		defer close(done)
		got, gotErr = tg.RequestValue(context.Background(), "Preferred time?", 2*time.Second)
	}()

	deadline := time.Now().Add(time.Second)
	for tg.pendingKind() != pendingValue && time.Now().Before(deadline) {
		time.Sleep(time.Millisecond)
	}
	tg.handleUpdate(textUpdate(42, "07:30"))
	<-done

	if gotErr != nil {
		t.Fatalf("expected reply, got error %v", gotErr)
	}
	if got != "07:30" {
		t.Fatalf("expected 07:30, got %q", got)
	}
}

func TestValueTimeout(t *testing.T) {
	tg, fake := newTestGateway(t, 42)
	got, err := tg.RequestValue(context.Background(), "Preferred time?", 20*time.Millisecond)
	if !errors.Is(err, ErrNoReply) {
		t.Fatalf("expected ErrNoReply, got %v", err)
	}
	if got != "" {
		t.Fatalf("expected empty value on timeout, got %q", got)
	}
	fake.waitForText(t, "No reply received")
}

func TestConcurrentRequestRejected(t *testing.T) {
	tg, _ := newTestGateway(t, 42)
	if _, err := tg.beginRequest(pendingConfirm); err != nil {
		t.Fatalf("first request: %v", err)
	}
	if _, err := tg.beginRequest(pendingValue); err == nil {
		t.Fatal("expected second concurrent request to be rejected")
	}
}

func TestStatusCommand(t *testing.T) {
	tg, fake := newTestGateway(t, 42)
	tg.SetStatus(func() string { return "Monitoring Toronto, 12 cycles done." })

	tg.handleUpdate(commandUpdate(42, "status"))
	fake.waitForText(t, "Monitoring Toronto")

	if _, err := tg.beginRequest(pendingConfirm); err != nil {
		t.Fatalf("begin request: %v", err)
	}
	tg.handleUpdate(commandUpdate(42, "status"))
	fake.waitForText(t, "Waiting for your confirmation")
}

func TestStopCommand(t *testing.T) {
	tg, fake := newTestGateway(t, 42)
	stopped := make(chan struct{})
	tg.OnStop(func() { close(stopped) })

	tg.handleUpdate(commandUpdate(42, "stop"))

	select {
	case <-stopped:
	case <-time.After(time.Second):
		t.Fatal("expected stop callback to fire")
	}
	fake.waitForText(t, "Stopping")
}
