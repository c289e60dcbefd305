package logger

import (
	"bytes"
	"context"
	"log/slog"
	"strings"
	"testing"

	"github.com/go-telegram/bot"
	"github.com/go-telegram/bot/models"
)

func TestParseLevel(t *testing.T) {
	t.Parallel()

	tests := []struct {
		in   string
		want slog.Level
	}{
		{in: "debug", want: slog.LevelDebug},
		{in: "info", want: slog.LevelInfo},
		{in: "warn", want: slog.LevelWarn},
		{in: "error", want: slog.LevelError},
		{in: "verbose", want: slog.LevelInfo},
		{in: "", want: slog.LevelInfo},
	}

	for _, tt := range tests {
		if got := ParseLevel(tt.in); got != tt.want {
			t.Errorf("ParseLevel(%q) = %v, want %v", tt.in, got, tt.want)
		}
	}
}

func TestTruncateString(t *testing.T) {
	t.Parallel()

	tests := []struct {
		name   string
		input  string
		maxLen int
		want   string
	}{
		{name: "short", input: "hello", maxLen: 10, want: "hello"},
		{name: "exact", input: "hello", maxLen: 5, want: "hello"},
		{name: "long", input: "hello world", maxLen: 8, want: "hello..."},
		{name: "tiny limit", input: "hello", maxLen: 2, want: "..."},
		{name: "multibyte", input: "привет мир", maxLen: 7, want: "прив..."},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			t.Parallel()
			if got := truncateString(tt.input, tt.maxLen); got != tt.want {
				t.Errorf("truncateString(%q, %d) = %q, want %q", tt.input, tt.maxLen, got, tt.want)
			}
		})
	}
}

func TestMiddlewareLogsUpdate(t *testing.T) {
	t.Parallel()

	var buf bytes.Buffer
	log := newLogger(&buf, "debug", true)

	called := false
	handler := Middleware(log)(func(context.Context, *bot.Bot, *models.Update) { called = true })
	handler(context.Background(), nil, &models.Update{
		ID: 42,
		Message: &models.Message{
			ID:   7,
			Chat: models.Chat{ID: 100, Type: models.ChatTypePrivate},
			From: &models.User{ID: 5},
			Text: "what is the middle way?",
		},
	})

	if !called {
		t.Fatal("next handler was not called")
	}
	out := buf.String()
	for _, want := range []string{`"update_id":42`, `"chat_id":100`, `"update_type":"message"`, "Finished processing update"} {
		if !strings.Contains(out, want) {
			t.Errorf("log output missing %s:\n%s", want, out)
		}
	}
}

func TestRecovererSwallowsPanic(t *testing.T) {
	t.Parallel()

	var buf bytes.Buffer
	log := newLogger(&buf, "info", false)

	handler := Recoverer(log)(func(context.Context, *bot.Bot, *models.Update) { panic("boom") })
	handler(context.Background(), nil, &models.Update{ID: 1})

	if !strings.Contains(buf.String(), "boom") {
		t.Errorf("expected panic value in log output, got:\n%s", buf.String())
	}
}

func TestGocronLogger(t *testing.T) {
	t.Parallel()

	var buf bytes.Buffer
	l := NewGocronLogger(newLogger(&buf, "debug", true))

	l.Debug("job scheduled", "name", "webhook_maintenance")
	l.Error("job failed", "error", "boom")

	out := buf.String()
	for _, want := range []string{`"component":"gocron"`, `"msg":"job scheduled"`, `"level":"ERROR"`, `"error":"boom"`} {
		if !strings.Contains(out, want) {
			t.Errorf("log output missing %s:\n%s", want, out)
		}
	}
}
