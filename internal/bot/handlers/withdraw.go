package handlers

import (
	"context"
	"encoding/json"
	"fmt"
	"strings"

	telebot "gopkg.in/telebot.v3"

	"github.com/marketbet/referral-bot/internal/bot/keyboard"
	"github.com/marketbet/referral-bot/internal/domain"
	"github.com/marketbet/referral-bot/internal/repository"
)

// NewWithdrawHandler returns the withdraw callback handler, which shows
// the payment method chooser after re-checking the minimum.
func NewWithdrawHandler(ledger Ledger, users repository.UserRepository, kb *keyboard.Builder) CallbackHandler {
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

		if user.Balance < settings.MinWithdrawal {
			return c.Send(fmt.Sprintf(`❌ Insufficient balance for withdrawal.

Current Balance: %s
Minimum Required: %s
Need: %s more

Keep referring friends to earn more!`,
				user.Balance.USD(),
				settings.MinWithdrawal.USD(),
				(settings.MinWithdrawal - user.Balance).USD(),
			))
		}

		message := fmt.Sprintf(`💸 Please choose a withdrawal method:

Current Balance: %s`, user.Balance.USD())

		return c.Send(message, kb.WithdrawMethods())
	}
}

// NewWithdrawMethodHandler returns the withdraw_<method> callback
// handler. It debits the full balance and hands the user their code.
func NewWithdrawMethodHandler(ledger Ledger, users repository.UserRepository) CallbackHandler {
	return func(c telebot.Context) error {
		ctx := context.Background()

		user, err := lookupUser(ctx, users, c)
		if err != nil {
			return err
		}
		if user == nil {
			return c.Send(msgStartFirst)
		}

		method := parseMethod(callbackData(c))

		details, err := json.Marshal(map[string]string{"method": method})
		if err != nil {
			return err
		}

		result, err := ledger.RequestWithdrawal(ctx, user.ID, user.Balance, method, details)
		if err != nil {
			return err
		}

		return c.Send(fmt.Sprintf(`🎉 Withdrawal Request Processed!

💎 Your Unique 14-Digit Code:
%s

💰 Amount Withdrawn: %s
💳 Withdrawal Method: %s
💳 Your new balance: $0.00

Keep this code safe! You can check all your codes with /history command.`,
			result.Code.Code,
			result.Withdrawal.Amount.USD(),
			titleCase(method),
		))
	}
}

func callbackData(c telebot.Context) string {
	if cb := c.Callback(); cb != nil {
		return strings.TrimPrefix(cb.Data, "\f")
	}
	return ""
}

func parseMethod(data string) string {
	method := strings.TrimPrefix(data, "withdraw_")
	switch method {
	case domain.MethodBank, domain.MethodCrypto:
		return method
	default:
		return domain.MethodOther
	}
}

func titleCase(s string) string {
	if s == "" {
		return s
	}
	return strings.ToUpper(s[:1]) + s[1:]
}
