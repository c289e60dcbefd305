package handlers

import (
	"github.com/go-telegram/bot"
	"github.com/go-telegram/bot/models"
)

// RegisteredHandler is a handler together with the updates it serves and
// its middleware.
type RegisteredHandler struct {
	Name       string
	Match      func(update *models.Update) bool
	Handler    bot.HandlerFunc
	Middleware []bot.Middleware
}

// RegisterAllCommands returns every command and message handler, keyed by
// name.
func RegisterAllCommands(deps HandlerDeps) map[string]RegisteredHandler {
	handlers := make(map[string]RegisteredHandler)

	handlers["/start"] = RegisteredHandler{
		Name:    "start",
		Match:   commandMatcher(deps, "start"),
		Handler: NewStartHandler(deps),
	}
	handlers["/clear_history"] = RegisteredHandler{
		Name:    "clear_history",
		Match:   commandMatcher(deps, "clear_history"),
		Handler: NewClearHistoryHandler(deps),
	}
	handlers["conversation"] = RegisteredHandler{
		Name:       "conversation",
		Match:      textMatcher,
		Handler:    NewConversationHandler(deps),
		Middleware: []bot.Middleware{AllowedChats(deps)},
	}

	return handlers
}
