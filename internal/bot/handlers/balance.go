package handlers

import (
	"context"
	"fmt"

	telebot "gopkg.in/telebot.v3"

	"github.com/marketbet/referral-bot/internal/bot/keyboard"
	"github.com/marketbet/referral-bot/internal/repository"
)

// NewBalanceHandler returns the /balance handler.
func NewBalanceHandler(ledger Ledger, users repository.UserRepository, kb *keyboard.Builder) Handler {
	return func(c telebot.Context) error {
		ctx := context.Background()

		user, err := lookupUser(ctx, users, c)
		if err != nil {
			return err
		}
		if user == nil {
			return c.Send(msgStartFirst)
		}

		settings, err := ledger.Settings(ctx)
		if err != nil {
			return err
		}

		message := fmt.Sprintf(`💰 Your Balance

Current Balance: %s
Total Referrals: %d/%d

`,
			user.Balance.USD(),
			user.TotalReferrals, settings.ReferralsForCode,
		)

		if user.Balance >= settings.MinWithdrawal {
			message += "✅ You can withdraw your earnings!"
			return c.Send(message, kb.WithdrawButton())
		}

		message += fmt.Sprintf(`❌ Minimum withdrawal amount: %s
Need: %s more

Keep referring friends to reach the minimum!`,
			settings.MinWithdrawal.USD(),
			(settings.MinWithdrawal - user.Balance).USD(),
		)

		return c.Send(message)
	}
}
