package handlers

import (
	"context"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"strings"
	"sync"
	"testing"
	"unicode/utf16"
	"unicode/utf8"

	"github.com/go-telegram/bot"
	"github.com/go-telegram/bot/models"

	"github.com/edgard/askbot/internal/config"
)

type sentMessage struct {
	chatID any
	text   string
}

type fakeSender struct {
	mu       sync.Mutex
	sent     []sentMessage
	edits    []*bot.EditMessageTextParams
	actions  int
	sendErrs []error
	editErr  error
	nextID   int
	events   *[]string
}

func record(events *[]string, event string) {
	if events != nil {
		*events = append(*events, event)
	}
}

func (f *fakeSender) SendMessage(_ context.Context, p *bot.SendMessageParams) (*models.Message, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	if len(f.sendErrs) > 0 {
		err := f.sendErrs[0]
		f.sendErrs = f.sendErrs[1:]
		if err != nil {
			return nil, err
		}
	}
	f.nextID++
	f.sent = append(f.sent, sentMessage{chatID: p.ChatID, text: p.Text})
	record(f.events, "send:"+p.Text)
	return &models.Message{ID: f.nextID}, nil
}

func (f *fakeSender) EditMessageText(_ context.Context, p *bot.EditMessageTextParams) (*models.Message, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.edits = append(f.edits, p)
	record(f.events, "edit:"+p.Text)
	if f.editErr != nil {
		return nil, f.editErr
	}
	return &models.Message{ID: p.MessageID}, nil
}

func (f *fakeSender) SendChatAction(context.Context, *bot.SendChatActionParams) (bool, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.actions++
	record(f.events, "typing")
	return true, nil
}

type fakeChat struct {
	answer    string
	err       error
	clearErr  error
	questions []string
	sessions  []string
	cleared   []string
	events    *[]string
}

func (f *fakeChat) Ask(_ context.Context, sessionID, question string) (string, error) {
	f.sessions = append(f.sessions, sessionID)
	f.questions = append(f.questions, question)
	record(f.events, "ask:"+question)
	return f.answer, f.err
}

func (f *fakeChat) ClearHistory(_ context.Context, sessionID string) error {
	f.cleared = append(f.cleared, sessionID)
	return f.clearErr
}

func testDeps(chat ChatService) HandlerDeps {
	return HandlerDeps{
		Logger: slog.New(slog.NewTextHandler(io.Discard, nil)),
		Config: &config.Config{
			Telegram: config.TelegramConfig{
				BotInfo: &models.User{ID: 1, FirstName: "Buddha", Username: "buddha_bot"},
			},
			Messages: config.MessagesConfig{
				Welcome:        "Hi, what is your question?",
				HistoryCleared: "Conversation history has been cleared.",
				Loading:        "Loading…",
				EmptyAnswer:    "I have no answer to that.",
			},
		},
		Chat: chat,
	}
}

func textUpdate(chatType models.ChatType, text string) *models.Update {
	return &models.Update{
		ID: 1,
		Message: &models.Message{
			ID:   10,
			Chat: models.Chat{ID: 555, Type: chatType},
			From: &models.User{ID: 9},
			Text: text,
		},
	}
}

func commandUpdate(text string) *models.Update {
	u := textUpdate(models.ChatTypeGroup, text)
	cmdLen := len(text)
	if i := strings.IndexByte(text, ' '); i >= 0 {
		cmdLen = i
	}
	u.Message.Entities = []models.MessageEntity{{Type: models.MessageEntityTypeBotCommand, Offset: 0, Length: cmdLen}}
	return u
}

func badRequest(description string) error {
	return fmt.Errorf("%w, %s", bot.ErrorBadRequest, description)
}

func forbidden(description string) error {
	return fmt.Errorf("%w, %s", bot.ErrorForbidden, description)
}

func TestStartHandler(t *testing.T) {
	t.Parallel()

	s := &fakeSender{}
	startHandler{testDeps(&fakeChat{})}.handle(context.Background(), s, commandUpdate("/start"))

	if len(s.sent) != 1 || s.sent[0].text != "Hi, what is your question?" {
		t.Fatalf("unexpected messages: %+v", s.sent)
	}
	if s.sent[0].chatID != int64(555) {
		t.Errorf("chat id = %v, want 555", s.sent[0].chatID)
	}
}

func TestClearHistoryHandler(t *testing.T) {
	t.Parallel()

	chat := &fakeChat{}
	s := &fakeSender{}
	clearHistoryHandler{testDeps(chat)}.handle(context.Background(), s, commandUpdate("/clear_history"))

	if len(chat.cleared) != 1 || chat.cleared[0] != "555" {
		t.Fatalf("cleared sessions = %v, want [555]", chat.cleared)
	}
	if len(s.sent) != 1 || s.sent[0].text != "Conversation history has been cleared." {
		t.Fatalf("unexpected messages: %+v", s.sent)
	}
}

func TestClearHistoryHandlerSendsRawError(t *testing.T) {
	t.Parallel()

	chat := &fakeChat{clearErr: errors.New("failed to clear history: database is locked")}
	s := &fakeSender{}
	clearHistoryHandler{testDeps(chat)}.handle(context.Background(), s, commandUpdate("/clear_history"))

	if len(s.sent) != 1 || s.sent[0].text != "failed to clear history: database is locked" {
		t.Fatalf("unexpected messages: %+v", s.sent)
	}
}

func TestConversationEditsPlaceholder(t *testing.T) {
	t.Parallel()

	chat := &fakeChat{answer: "The middle way avoids extremes."}
	s := &fakeSender{}
	conversationHandler{testDeps(chat)}.handle(context.Background(), s, textUpdate(models.ChatTypePrivate, "what is the middle way?"))

	if len(s.sent) != 1 || s.sent[0].text != "Loading…" {
		t.Fatalf("expected only the placeholder to be sent, got %+v", s.sent)
	}
	if s.actions != 1 {
		t.Errorf("typing actions = %d, want 1", s.actions)
	}
	if len(s.edits) != 1 {
		t.Fatalf("edits = %d, want 1", len(s.edits))
	}
	if s.edits[0].MessageID != 1 || s.edits[0].Text != "The middle way avoids extremes." {
		t.Errorf("unexpected edit: %+v", s.edits[0])
	}
	if len(chat.sessions) != 1 || chat.sessions[0] != "555" || chat.questions[0] != "what is the middle way?" {
		t.Errorf("unexpected ask: sessions=%v questions=%v", chat.sessions, chat.questions)
	}
}

func TestConversationCallOrder(t *testing.T) {
	t.Parallel()

	var events []string
	chat := &fakeChat{answer: strings.Repeat("a", maxMessageLength) + "b", events: &events}
	s := &fakeSender{events: &events}
	conversationHandler{testDeps(chat)}.handle(context.Background(), s, textUpdate(models.ChatTypePrivate, "why?"))

	want := []string{
		"send:Loading…",
		"typing",
		"ask:why?",
		"edit:" + strings.Repeat("a", maxMessageLength),
		"send:b",
	}
	if strings.Join(events, "|") != strings.Join(want, "|") {
		t.Fatalf("call order = %q, want %q", events, want)
	}
}

func TestConversationSendsRawErrorText(t *testing.T) {
	t.Parallel()

	chat := &fakeChat{err: errors.New("You exceeded your current quota")}
	s := &fakeSender{}
	conversationHandler{testDeps(chat)}.handle(context.Background(), s, textUpdate(models.ChatTypePrivate, "q"))

	if len(s.edits) != 1 || s.edits[0].Text != "You exceeded your current quota" {
		t.Fatalf("unexpected edits: %+v", s.edits)
	}
}

func TestConversationEmptyAnswer(t *testing.T) {
	t.Parallel()

	s := &fakeSender{}
	conversationHandler{testDeps(&fakeChat{answer: "  \n"})}.handle(context.Background(), s, textUpdate(models.ChatTypePrivate, "q"))

	if len(s.edits) != 1 || s.edits[0].Text != "I have no answer to that." {
		t.Fatalf("unexpected edits: %+v", s.edits)
	}
}

func TestConversationNotModifiedIsSwallowed(t *testing.T) {
	t.Parallel()

	s := &fakeSender{editErr: badRequest("Bad Request: message is not modified: specified new message content and reply markup are exactly the same")}
	conversationHandler{testDeps(&fakeChat{answer: "Loading…"})}.handle(context.Background(), s, textUpdate(models.ChatTypePrivate, "q"))

	if len(s.edits) != 1 {
		t.Fatalf("edits = %d, want 1", len(s.edits))
	}
	if !isMessageNotModified(s.editErr) {
		t.Error("expected edit error to be classified as not modified")
	}
}

func TestConversationBlockedAbandons(t *testing.T) {
	t.Parallel()

	chat := &fakeChat{answer: "a"}
	s := &fakeSender{sendErrs: []error{forbidden("Forbidden: bot was blocked by the user")}}
	conversationHandler{testDeps(chat)}.handle(context.Background(), s, textUpdate(models.ChatTypePrivate, "q"))

	if len(chat.questions) != 0 {
		t.Errorf("model was asked after placeholder failed: %v", chat.questions)
	}
	if len(s.edits) != 0 {
		t.Errorf("unexpected edits: %+v", s.edits)
	}
}

func TestConversationSplitsLongAnswer(t *testing.T) {
	t.Parallel()

	long := strings.Repeat("a", maxMessageLength) + strings.Repeat("b", 10)
	s := &fakeSender{}
	conversationHandler{testDeps(&fakeChat{answer: long})}.handle(context.Background(), s, textUpdate(models.ChatTypePrivate, "q"))

	if len(s.edits) != 1 || s.edits[0].Text != strings.Repeat("a", maxMessageLength) {
		t.Fatalf("first chunk should replace the placeholder")
	}
	if len(s.sent) != 2 || s.sent[1].text != strings.Repeat("b", 10) {
		t.Fatalf("expected continuation message, got %d messages", len(s.sent))
	}
}

func TestIsAllowed(t *testing.T) {
	t.Parallel()

	deps := testDeps(&fakeChat{})
	named := testDeps(&fakeChat{})
	named.Config.Telegram.BotName = "Sage"

	tests := []struct {
		name string
		deps HandlerDeps
		msg  *models.Message
		want bool
	}{
		{name: "private", deps: deps, msg: textUpdate(models.ChatTypePrivate, "hello").Message, want: true},
		{name: "group without name", deps: deps, msg: textUpdate(models.ChatTypeGroup, "hello everyone").Message, want: false},
		{name: "group with name", deps: deps, msg: textUpdate(models.ChatTypeGroup, "Buddha, what is karma?").Message, want: true},
		{name: "group name is case sensitive", deps: deps, msg: textUpdate(models.ChatTypeGroup, "buddha, what is karma?").Message, want: false},
		{name: "supergroup with name", deps: deps, msg: textUpdate(models.ChatTypeSupergroup, "ask Buddha").Message, want: true},
		{name: "configured name wins", deps: named, msg: textUpdate(models.ChatTypeGroup, "Buddha?").Message, want: false},
		{name: "configured name matches", deps: named, msg: textUpdate(models.ChatTypeGroup, "Sage?").Message, want: true},
		{name: "nil message", deps: deps, msg: nil, want: false},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			t.Parallel()
			if got := isAllowed(tt.deps, tt.msg); got != tt.want {
				t.Errorf("isAllowed() = %v, want %v", got, tt.want)
			}
		})
	}
}

func TestAllowedChatsMiddleware(t *testing.T) {
	t.Parallel()

	deps := testDeps(&fakeChat{})
	called := 0
	h := AllowedChats(deps)(func(context.Context, *bot.Bot, *models.Update) { called++ })

	h(context.Background(), nil, textUpdate(models.ChatTypeGroup, "no mention here"))
	h(context.Background(), nil, textUpdate(models.ChatTypeGroup, "hey Buddha"))

	if called != 1 {
		t.Errorf("next called %d times, want 1", called)
	}
}

func TestCommandMatcher(t *testing.T) {
	t.Parallel()

	match := commandMatcher(testDeps(&fakeChat{}), "start")

	tests := []struct {
		update *models.Update
		want   bool
	}{
		{update: commandUpdate("/start"), want: true},
		{update: commandUpdate("/start@buddha_bot"), want: true},
		{update: commandUpdate("/start@Buddha_Bot extra"), want: true},
		{update: commandUpdate("/start@other_bot"), want: false},
		{update: commandUpdate("/starting"), want: false},
		{update: textUpdate(models.ChatTypePrivate, "/start"), want: false},
		{update: &models.Update{ID: 2}, want: false},
	}

	for _, tt := range tests {
		text := ""
		if tt.update.Message != nil {
			text = tt.update.Message.Text
		}
		if got := match(tt.update); got != tt.want {
			t.Errorf("match(%q) = %v, want %v", text, got, tt.want)
		}
	}
}

func TestTextMatcher(t *testing.T) {
	t.Parallel()

	if !textMatcher(textUpdate(models.ChatTypePrivate, "hello")) {
		t.Error("plain text should match")
	}
	if textMatcher(commandUpdate("/unknown")) {
		t.Error("commands should not match")
	}
	if textMatcher(textUpdate(models.ChatTypePrivate, "   ")) {
		t.Error("blank text should not match")
	}
	if textMatcher(&models.Update{ID: 3}) {
		t.Error("non-message updates should not match")
	}
}

func TestSplitMessage(t *testing.T) {
	t.Parallel()

	if got := splitMessage("short", 10); len(got) != 1 || got[0] != "short" {
		t.Errorf("short text split: %q", got)
	}

	got := splitMessage("line one\nline two\nline three", 12)
	want := []string{"line one\n", "line two\n", "line three"}
	if strings.Join(got, "|") != strings.Join(want, "|") {
		t.Errorf("split at newlines = %q, want %q", got, want)
	}

	got = splitMessage("абвгдеёжзи", 4)
	if len(got) != 3 || got[0] != "абвг" || got[2] != "зи" {
		t.Errorf("rune split = %q", got)
	}
}

func TestSplitMessageCountsUTF16Units(t *testing.T) {
	t.Parallel()

	tests := []struct {
		name      string
		text      string
		limit     int
		wantParts int
	}{
		{name: "emoji only", text: strings.Repeat("🙏", 5000), limit: maxMessageLength, wantParts: 3},
		{name: "emoji fits exactly", text: strings.Repeat("🙏", 2048), limit: maxMessageLength, wantParts: 1},
		{name: "pair straddles the limit", text: "abc🙏def", limit: 4, wantParts: 3},
		{name: "mixed with newlines", text: strings.Repeat("om 🕉\n", 1000), limit: maxMessageLength, wantParts: 2},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			t.Parallel()

			got := splitMessage(tt.text, tt.limit)
			if len(got) != tt.wantParts {
				t.Fatalf("parts = %d, want %d", len(got), tt.wantParts)
			}
			if strings.Join(got, "") != tt.text {
				t.Error("parts do not reassemble the original text")
			}
			for i, part := range got {
				if n := len(utf16.Encode([]rune(part))); n > tt.limit {
					t.Errorf("part %d is %d UTF-16 units, limit %d", i, n, tt.limit)
				}
				if !utf8.ValidString(part) {
					t.Errorf("part %d is not valid UTF-8", i)
				}
			}
		})
	}
}

func TestRegisterAllCommands(t *testing.T) {
	t.Parallel()

	handlers := RegisterAllCommands(testDeps(&fakeChat{}))
	for _, key := range []string{"/start", "/clear_history", "conversation"} {
		h, ok := handlers[key]
		if !ok {
			t.Fatalf("missing handler %s", key)
		}
		if h.Match == nil || h.Handler == nil {
			t.Errorf("handler %s is incomplete", key)
		}
	}
	if len(handlers["conversation"].Middleware) != 1 {
		t.Error("conversation handler should be filtered")
	}
}
