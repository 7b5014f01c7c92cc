package notify

import (
	"context"
	"log/slog"
	"time"

	"github.com/marketbet/referral-bot/internal/domain"
	"github.com/marketbet/referral-bot/pkg/metrics"
)

const defaultSendDelay = 50 * time.Millisecond

// RecipientLister yields the users eligible for a broadcast.
type RecipientLister interface {
	ListBroadcastable(ctx context.Context) ([]*domain.User, error)
}

// Broadcaster delivers an admin message to every non-blocked user,
// sequentially with a pause between sends to stay under Telegram's rate
// limits. Individual failures are logged and counted, never fatal.
type Broadcaster struct {
	sender Sender
	users  RecipientLister
	delay  time.Duration
	log    *slog.Logger
}

// NewBroadcaster builds a broadcaster. A non-positive delay falls back
// to the default pacing.
func NewBroadcaster(sender Sender, users RecipientLister, delay time.Duration, log *slog.Logger) *Broadcaster {
	if delay <= 0 {
		delay = defaultSendDelay
	}
	if log == nil {
		log = slog.Default()
	}

	return &Broadcaster{
		sender: sender,
		users:  users,
		delay:  delay,
		log:    log,
	}
}

// Broadcast sends text to all broadcastable users. It returns how many
// deliveries succeeded and failed; cancelling ctx stops the run early
// with the counts accumulated so far.
func (b *Broadcaster) Broadcast(ctx context.Context, text string) (sent, failed int, err error) {
	recipients, err := b.users.ListBroadcastable(ctx)
	if err != nil {
		return 0, 0, err
	}

	b.log.Info("starting broadcast", slog.Int("recipients", len(recipients)))

	defer func() { metrics.RecordBroadcast(sent, failed) }()

	for i, recipient := range recipients {
		if i > 0 {
			select {
			case <-ctx.Done():
				b.log.Warn("broadcast cancelled",
					slog.Int("sent", sent), slog.Int("failed", failed))
				return sent, failed, ctx.Err()
			case <-time.After(b.delay):
			}
		}

		if b.deliver(recipient, text) {
			sent++
		} else {
			failed++
		}
	}

	b.log.Info("broadcast finished", slog.Int("sent", sent), slog.Int("failed", failed))

	return sent, failed, nil
}

func (b *Broadcaster) deliver(user *domain.User, text string) bool {
	if _, err := b.sender.Send(chatTarget(user.TelegramID), text); err != nil {
		b.log.Warn("broadcast delivery failed",
			slog.Int64("user_id", user.ID),
			slog.String("telegram_id", user.TelegramID),
			slog.Any("error", err),
		)
		return false
	}

	return true
}
