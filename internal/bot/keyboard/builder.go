// Package keyboard renders the inline keyboards attached to bot replies.
package keyboard

import (
	telebot "gopkg.in/telebot.v3"
)

// Builder creates the inline keyboards used across bot replies.
type Builder struct{}

// NewBuilder returns a new Builder instance.
func NewBuilder() *Builder {
	return &Builder{}
}

// Welcome builds the post-/start menu.
func (b *Builder) Welcome() *telebot.ReplyMarkup {
	markup := &telebot.ReplyMarkup{}
	markup.InlineKeyboard = [][]telebot.InlineButton{
		{
			{Text: "🎮 Play Now", Data: "play_game"},
			{Text: "👥 Refer Friends", Data: "refer"},
		},
	}
	return markup
}

// PlayLink builds a single URL button opening the game site.
func (b *Builder) PlayLink(url string) *telebot.ReplyMarkup {
	markup := &telebot.ReplyMarkup{}
	markup.InlineKeyboard = [][]telebot.InlineButton{
		{
			{Text: "🌐 Open Website", URL: url},
		},
	}
	return markup
}

// WithdrawButton builds the single withdraw action button.
func (b *Builder) WithdrawButton() *telebot.ReplyMarkup {
	markup := &telebot.ReplyMarkup{}
	markup.InlineKeyboard = [][]telebot.InlineButton{
		{
			{Text: "💸 Withdraw", Data: "withdraw"},
		},
	}
	return markup
}

// WithdrawMethods builds the payment method chooser.
func (b *Builder) WithdrawMethods() *telebot.ReplyMarkup {
	markup := &telebot.ReplyMarkup{}
	markup.InlineKeyboard = [][]telebot.InlineButton{
		{{Text: "💳 Bank Transfer", Data: "withdraw_bank"}},
		{{Text: "💰 Crypto", Data: "withdraw_crypto"}},
		{{Text: "📞 Other", Data: "withdraw_other"}},
	}
	return markup
}
