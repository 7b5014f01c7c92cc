package handlers

import (
	"context"
	"fmt"
	"log/slog"

	telebot "gopkg.in/telebot.v3"

	"github.com/marketbet/referral-bot/internal/apperr"
	"github.com/marketbet/referral-bot/internal/bot/keyboard"
	"github.com/marketbet/referral-bot/internal/domain"
)

// NewStartHandler returns the /start handler. The command payload, when
// present, is a referral token pointing at the referrer.
func NewStartHandler(ledger Ledger, kb *keyboard.Builder, log *slog.Logger) Handler {
	return func(c telebot.Context) error {
		sender := c.Sender()
		if sender == nil {
			return nil
		}

		ctx := context.Background()

		profile := domain.Profile{
			Username:  sender.Username,
			FirstName: sender.FirstName,
			LastName:  sender.LastName,
		}

		var (
			user    *domain.User
			created bool
		)
		// Registration is idempotent on telegram_id, so transient store
		// failures are safe to retry.
		err := apperr.WithRetry(ctx, func() error {
			var regErr error
			user, created, regErr = ledger.RegisterUser(ctx, senderID(c), profile, c.Message().Payload)
			return regErr
		})
		if err != nil {
			return err
		}

		if created {
			log.Info("user started bot",
				slog.Int64("user_id", user.ID),
				slog.Bool("referred", user.ReferredBy != nil),
			)
		}

		settings, err := ledger.Settings(ctx)
		if err != nil {
			return err
		}

		welcome := fmt.Sprintf(`%s

💰 New users get %s bonus
🎯 Earn %s per referral
🎁 Get unique codes after %d referrals

Use the buttons below to get started!`,
			settings.WelcomeMessage,
			settings.NewUserBonus.USD(),
			settings.ReferralReward.USD(),
			settings.ReferralsForCode,
		)

		if settings.WelcomePhotoURL != "" {
			photo := &telebot.Photo{
				File:    telebot.FromURL(settings.WelcomePhotoURL),
				Caption: welcome,
			}
			return c.Send(photo, kb.Welcome())
		}

		return c.Send(welcome, kb.Welcome())
	}
}
