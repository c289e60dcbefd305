package handlers

import (
	"strings"

	"github.com/go-telegram/bot/models"
)

// parseCommand returns the command a message starts with, without the
// leading slash and without an @BotUsername suffix. target is the suffix,
// empty when the command was not addressed to a specific bot.
func parseCommand(msg *models.Message) (name, target string, ok bool) {
	if msg == nil || msg.Text == "" {
		return "", "", false
	}

	for _, e := range msg.Entities {
		if e.Type != models.MessageEntityTypeBotCommand || e.Offset != 0 {
			continue
		}
		if e.Length <= 1 || e.Length > len(msg.Text) {
			return "", "", false
		}

		cmd := msg.Text[1:e.Length]
		name, target, _ = strings.Cut(cmd, "@")
		return name, target, name != ""
	}
	return "", "", false
}

// isCommand reports whether the message starts with any bot command.
func isCommand(msg *models.Message) bool {
	_, _, ok := parseCommand(msg)
	return ok
}

// commandMatcher matches messages invoking command, bare or addressed to
// the bot itself.
func commandMatcher(deps HandlerDeps, command string) func(update *models.Update) bool {
	return func(update *models.Update) bool {
		name, target, ok := parseCommand(update.Message)
		if !ok || name != command {
			return false
		}
		if target == "" {
			return true
		}
		info := deps.Config.Telegram.BotInfo
		return info != nil && strings.EqualFold(target, info.Username)
	}
}

// textMatcher matches plain text messages that are not commands.
func textMatcher(update *models.Update) bool {
	msg := update.Message
	return msg != nil && strings.TrimSpace(msg.Text) != "" && !isCommand(msg)
}
