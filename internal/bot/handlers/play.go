package handlers

import (
	"context"
	"log/slog"

	telebot "gopkg.in/telebot.v3"

	"github.com/marketbet/referral-bot/internal/apperr"
	"github.com/marketbet/referral-bot/internal/bot/keyboard"
	"github.com/marketbet/referral-bot/internal/repository"
)

// NewPlayHandler returns the play_game callback handler. The first play
// completes the pending referral and credits the referrer.
func NewPlayHandler(ledger Ledger, users repository.UserRepository, kb *keyboard.Builder, fallbackURL string, log *slog.Logger) CallbackHandler {
	return func(c telebot.Context) error {
		ctx := context.Background()

		user, err := lookupUser(ctx, users, c)
		if err != nil {
			return err
		}
		if user == nil {
			return c.Send(msgStartFirst)
		}

		if !user.HasPlayedOnce {
			err := apperr.WithRetry(ctx, func() error {
				return ledger.CompleteReferral(ctx, user.ID)
			})
			if err != nil {
				// The play button must keep working even when the
				// referral bookkeeping fails.
				log.Error("failed to record first play",
					slog.Int64("user_id", user.ID), slog.Any("error", err))
			}
		}

		settings, err := ledger.Settings(ctx)
		if err != nil {
			return err
		}

		playURL := settings.PlayButtonURL
		if playURL == "" {
			playURL = fallbackURL
		}

		return c.Send("🎮 Click the button below to play!", kb.PlayLink(playURL))
	}
}
