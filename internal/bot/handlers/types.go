package handlers

import (
	telebot "gopkg.in/telebot.v3"
)

// Handler processes bot commands.
type Handler func(c telebot.Context) error

// CallbackHandler processes inline callback events.
type CallbackHandler func(c telebot.Context) error

// Middleware wraps handlers with additional behavior.
type Middleware func(Handler) Handler

const msgStartFirst = "Please start the bot first with /start"

// NewFallbackHandler replies to anything no other handler matched.
func NewFallbackHandler() Handler {
	return func(c telebot.Context) error {
		return c.Send("Sorry, something went wrong. Please try again later.")
	}
}
