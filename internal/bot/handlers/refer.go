package handlers

import (
	"context"
	"fmt"

	telebot "gopkg.in/telebot.v3"

	"github.com/marketbet/referral-bot/internal/repository"
)

// NewReferHandler returns the /refer handler. The referral link embeds
// the user's own ledger id as the start payload.
func NewReferHandler(ledger Ledger, users repository.UserRepository, botUsername func() string) Handler {
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

		link := fmt.Sprintf("https://t.me/%s?start=%d", botUsername(), user.ID)

		message := fmt.Sprintf(`👥 Your Referral Link

🔗 %s

💰 How it works:
• Share this link with friends
• They get %s when they join and play
• You get %s for each successful referral
• Get a unique code after %d referrals!

📊 Your Stats:
• Referrals: %d/%d
• Balance: %s`,
			link,
			settings.NewUserBonus.USD(),
			settings.ReferralReward.USD(),
			settings.ReferralsForCode,
			user.TotalReferrals, settings.ReferralsForCode,
			user.Balance.USD(),
		)

		return c.Send(message)
	}
}
