// Package notify delivers outbound Telegram messages that are side
// effects of ledger transitions: user congratulations, channel
// announcements, and admin broadcasts.
package notify

import (
	"context"
	"log/slog"
	"strconv"

	telebot "gopkg.in/telebot.v3"

	"github.com/marketbet/referral-bot/internal/apperr"
)

// Sender is the part of telebot.Bot used for outbound delivery.
type Sender interface {
	Send(to telebot.Recipient, what interface{}, opts ...interface{}) (*telebot.Message, error)
}

// chatTarget addresses a chat by numeric id or @username.
type chatTarget string

func (t chatTarget) Recipient() string { return string(t) }

// TelegramNotifier sends fire-and-forget notifications. Delivery
// failures are logged and dropped; ledger state never depends on a
// message reaching Telegram.
type TelegramNotifier struct {
	sender    Sender
	channelID string
	log       *slog.Logger
}

// NewTelegramNotifier builds a notifier posting announcements to
// channelID. An empty channelID disables channel announcements.
func NewTelegramNotifier(sender Sender, channelID string, log *slog.Logger) *TelegramNotifier {
	if log == nil {
		log = slog.Default()
	}

	return &TelegramNotifier{
		sender:    sender,
		channelID: channelID,
		log:       log,
	}
}

// NotifyUser sends a direct message to the given telegram id.
func (n *TelegramNotifier) NotifyUser(ctx context.Context, telegramID, text string) {
	if _, err := strconv.ParseInt(telegramID, 10, 64); err != nil {
		n.log.Warn("skipping notification for malformed telegram id",
			slog.String("telegram_id", telegramID))
		return
	}

	if _, err := n.sender.Send(chatTarget(telegramID), text); err != nil {
		n.log.Warn("failed to notify user",
			slog.Any("error", apperr.NewNotifyError(telegramID, err)),
		)
	}
}

// NotifyChannel posts an announcement to the configured channel.
func (n *TelegramNotifier) NotifyChannel(ctx context.Context, text string) {
	if n.channelID == "" {
		return
	}

	if _, err := n.sender.Send(chatTarget(n.channelID), text); err != nil {
		n.log.Warn("failed to post channel announcement",
			slog.Any("error", apperr.NewNotifyError(n.channelID, err)),
		)
	}
}
