package notify

import (
	"context"
	"errors"
	"net/http"
	"net/http/httptest"
	"strings"
	"sync"
	"testing"

	tgbotapi "github.com/go-telegram-bot-api/telegram-bot-api/v5"
	"go.uber.org/zap"
)

type fakeTelegram struct {
	mu    sync.Mutex
	texts []string
	fail  bool
}

func (f *fakeTelegram) handler() http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("Content-Type", "application/json")
		switch {
		case strings.HasSuffix(r.URL.Path, "/getMe"):
			w.Write([]byte(`{"ok":true,"result":{"id":1,"is_bot":true,"first_name":"ipdr","username":"ipdr_bot"}}`))
		case strings.HasSuffix(r.URL.Path, "/sendMessage"):
			if f.fail {
				w.Write([]byte(`{"ok":false,"error_code":400,"description":"Bad Request: chat not found"}`))
				return
			}
			r.ParseForm()
			f.mu.Lock()
			f.texts = append(f.texts, r.FormValue("text"))
			f.mu.Unlock()
			w.Write([]byte(`{"ok":true,"result":{"message_id":1,"date":0,"chat":{"id":100,"type":"private"}}}`))
		default:
			http.NotFound(w, r)
		}
	})
}

func newTestBot(t *testing.T, fake *fakeTelegram, stats StatsSource) *Bot {
	t.Helper()
	srv := httptest.NewServer(fake.handler())
	t.Cleanup(srv.Close)
	bot, err := NewBotWithEndpoint("token", srv.URL+"/bot%s/%s", srv.Client(), 100, stats, zap.NewNop())
	if err != nil {
		t.Fatalf("failed to create bot: %v", err)
	}
	return bot
}

func TestNotifyAnomalies(t *testing.T) {
	fake := &fakeTelegram{}
	bot := newTestBot(t, fake, nil)

	err := bot.NotifyAnomalies(context.Background(), Summary{Total: 10, Scored: 8, Flagged: 2, Contamination: 0.1, TopSources: []string{"8.8.8.8"}})
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if len(fake.texts) != 1 || !strings.Contains(fake.texts[0], "Flagged: 2 of 8") {
		t.Fatalf("unexpected messages: %q", fake.texts)
	}
}

func TestNotifyAnomalies_APIError(t *testing.T) {
	bot := newTestBot(t, &fakeTelegram{fail: true}, nil)
	if err := bot.NotifyAnomalies(context.Background(), Summary{}); err == nil {
		t.Fatal("expected error")
	}
}

func TestNilBotIsNoop(t *testing.T) {
	var b *Bot
	if err := b.NotifyAnomalies(context.Background(), Summary{}); err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if err := b.Start(context.Background()); err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
}

type countStub struct {
	n   int
	err error
}

func (c countStub) Count(ctx context.Context) (int, error) { return c.n, c.err }

func TestHandleStatsCommand(t *testing.T) {
	fake := &fakeTelegram{}
	bot := newTestBot(t, fake, countStub{n: 42})

	msg := &tgbotapi.Message{
		Text:     "/stats",
		Chat:     &tgbotapi.Chat{ID: 100},
		Entities: []tgbotapi.MessageEntity{{Type: "bot_command", Offset: 0, Length: 6}},
	}
	bot.handleMessage(context.Background(), msg)

	bot.stats = countStub{err: errors.New("db down")}
	bot.handleMessage(context.Background(), msg)

	if len(fake.texts) != 2 || fake.texts[0] != "Stored sessions: 42" || fake.texts[1] != "Failed to read statistics." {
		t.Fatalf("unexpected replies: %q", fake.texts)
	}
}

func TestFormatSummary(t *testing.T) {
	text := FormatSummary(Summary{RequestedBy: "analyst", Contamination: 0.05, Total: 3, Scored: 2, Flagged: 1})
	for _, want := range []string{"Flagged: 1 of 2 scored sessions (3 total)", "Contamination: 0.05", "Requested by: analyst"} {
		if !strings.Contains(text, want) {
			t.Fatalf("summary %q missing %q", text, want)
		}
	}
	if strings.Contains(text, "Sources:") {
		t.Fatal("no sources line expected")
	}
}
