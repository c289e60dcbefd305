package handlers

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"strconv"
	"strings"
	"unicode/utf16"

	"github.com/go-telegram/bot"
	"github.com/go-telegram/bot/models"
)

// maxMessageLength is Telegram's limit on the text of one message.
const maxMessageLength = 4096

// NewConversationHandler returns the handler for free-text questions. It
// shows a placeholder while the model works and then replaces it with the
// answer.
func NewConversationHandler(deps HandlerDeps) bot.HandlerFunc {
	h := conversationHandler{deps}
	return func(ctx context.Context, b *bot.Bot, update *models.Update) {
		h.handle(ctx, b, update)
	}
}

type conversationHandler struct {
	deps HandlerDeps
}

func (h conversationHandler) handle(ctx context.Context, s Sender, update *models.Update) {
	log := h.deps.Logger.With("handler", "conversation")

	msg := update.Message
	if msg == nil || strings.TrimSpace(msg.Text) == "" {
		log.DebugContext(ctx, "Ignoring update without text", "update_id", update.ID)
		return
	}

	chatID := msg.Chat.ID
	log = log.With("chat_id", chatID)

	if err := h.answer(ctx, log, s, chatID, msg.Text); err != nil {
		if isBotBlocked(err) {
			log.WarnContext(ctx, "Bot cannot write to chat, abandoning answer", "error", err)
			return
		}
		log.ErrorContext(ctx, "Failed to deliver answer", "error", err)
	}
}

func (h conversationHandler) answer(ctx context.Context, log *slog.Logger, s Sender, chatID int64, question string) error {
	messages := h.deps.Config.Messages

	placeholder, err := s.SendMessage(ctx, &bot.SendMessageParams{ChatID: chatID, Text: messages.Loading})
	if err != nil {
		return fmt.Errorf("failed to send placeholder: %w", err)
	}

	if _, err := s.SendChatAction(ctx, &bot.SendChatActionParams{ChatID: chatID, Action: models.ChatActionTyping}); err != nil {
		log.DebugContext(ctx, "Failed to send typing action", "error", err)
	}

	answer, err := h.deps.Chat.Ask(ctx, strconv.FormatInt(chatID, 10), question)
	if err != nil {
		log.ErrorContext(ctx, "Failed to get answer", "error", err)
		answer = err.Error()
	}
	if strings.TrimSpace(answer) == "" {
		answer = messages.EmptyAnswer
	}

	chunks := splitMessage(answer, maxMessageLength)

	_, err = s.EditMessageText(ctx, &bot.EditMessageTextParams{
		ChatID:    chatID,
		MessageID: placeholder.ID,
		Text:      chunks[0],
	})
	if err != nil && !isMessageNotModified(err) {
		return fmt.Errorf("failed to edit placeholder: %w", err)
	}

	for _, chunk := range chunks[1:] {
		if _, err := s.SendMessage(ctx, &bot.SendMessageParams{ChatID: chatID, Text: chunk}); err != nil {
			return fmt.Errorf("failed to send answer continuation: %w", err)
		}
	}

	log.DebugContext(ctx, "Answer delivered", "parts", len(chunks))
	return nil
}

// isMessageNotModified reports an edit that would leave the message as it
// already is.
func isMessageNotModified(err error) bool {
	return errors.Is(err, bot.ErrorBadRequest) && strings.Contains(err.Error(), "message is not modified")
}

// isBotBlocked reports that Telegram refused to let the bot write to the
// chat, for example because the user blocked it.
func isBotBlocked(err error) bool {
	return errors.Is(err, bot.ErrorForbidden)
}

// splitMessage cuts text into parts of at most limit UTF-16 code units, the
// unit Telegram counts message length in, preferring to break after a newline
// in the second half of a part. Surrogate pairs are never split.
func splitMessage(text string, limit int) []string {
	runes := []rune(text)
	if utf16Len(runes) <= limit {
		return []string{text}
	}

	var parts []string
	for len(runes) > 0 {
		end, units := 0, 0
		for end < len(runes) {
			n := runeUnits(runes[end])
			if units+n > limit {
				break
			}
			units += n
			end++
		}
		if end == len(runes) {
			parts = append(parts, string(runes))
			break
		}

		cut := end
		for i, u := end-1, units; i > 0; i-- {
			u -= runeUnits(runes[i])
			if u < limit/2 {
				break
			}
			if runes[i] == '\n' {
				cut = i + 1
				break
			}
		}
		if cut == 0 {
			cut = 1
		}

		parts = append(parts, string(runes[:cut]))
		runes = runes[cut:]
	}
	return parts
}

func utf16Len(runes []rune) int {
	n := 0
	for _, r := range runes {
		n += runeUnits(r)
	}
	return n
}

func runeUnits(r rune) int {
	if n := utf16.RuneLen(r); n > 0 {
		return n
	}
	return 1
}
