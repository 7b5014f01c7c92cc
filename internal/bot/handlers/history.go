package handlers

import (
	"context"
	"fmt"
	"strings"

	telebot "gopkg.in/telebot.v3"

	"github.com/marketbet/referral-bot/internal/domain"
	"github.com/marketbet/referral-bot/internal/repository"
)

const (
	historyReferralLimit   = 5
	historyWithdrawalLimit = 3
)

// NewHistoryHandler returns the /history handler summarizing the user's
// referrals, withdrawals, and redemption codes.
func NewHistoryHandler(users repository.UserRepository, referrals repository.ReferralRepository, withdrawals repository.WithdrawalRepository, codes repository.CodeRepository) Handler {
	return func(c telebot.Context) error {
		ctx := context.Background()

		user, err := lookupUser(ctx, users, c)
		if err != nil {
			return err
		}
		if user == nil {
			return c.Send(msgStartFirst)
		}

		userReferrals, err := referrals.ListByReferrer(ctx, user.ID)
		if err != nil {
			return err
		}
		userWithdrawals, err := withdrawals.ListByUser(ctx, user.ID)
		if err != nil {
			return err
		}
		userCodes, err := codes.ListByUser(ctx, user.ID)
		if err != nil {
			return err
		}

		var sb strings.Builder
		fmt.Fprintf(&sb, "📊 Your History\n\n💰 Balance: %s\n🎯 Total Referrals: %d\n\n",
			user.Balance.USD(), user.TotalReferrals)

		if len(userReferrals) > 0 {
			sb.WriteString("👥 Recent Referrals:\n")
			for i, ref := range userReferrals {
				if i == historyReferralLimit {
					break
				}
				status := "⏳"
				if ref.IsCompleted {
					status = "✅"
				}
				name := "User"
				if ref.Referred != nil {
					name = ref.Referred.DisplayName()
				}
				fmt.Fprintf(&sb, "%d. %s %s - %s\n", i+1, status, name, ref.CreatedAt.Format("Mon Jan 2 2006"))
			}
			sb.WriteString("\n")
		}

		if len(userWithdrawals) > 0 {
			sb.WriteString("💸 Recent Withdrawals:\n")
			for i, wd := range userWithdrawals {
				if i == historyWithdrawalLimit {
					break
				}
				fmt.Fprintf(&sb, "%d. %s %s - %s\n",
					i+1, withdrawalEmoji(wd.Status), wd.Amount.USD(), wd.RequestedAt.Format("Mon Jan 2 2006"))
			}
			sb.WriteString("\n")
		}

		if len(userCodes) > 0 {
			sb.WriteString("🎁 Your Unique Codes:\n")
			for i, code := range userCodes {
				fmt.Fprintf(&sb, "%d. %s - %s\n", i+1, code.Code, code.GeneratedAt.Format("Mon Jan 2 2006"))
			}
		}

		return c.Send(sb.String())
	}
}

func withdrawalEmoji(status domain.WithdrawalStatus) string {
	switch status {
	case domain.WithdrawalApproved:
		return "✅"
	case domain.WithdrawalRejected:
		return "❌"
	default:
		return "⏳"
	}
}
