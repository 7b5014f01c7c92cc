// Package handlers implements the bot command and callback handlers.
package handlers

import (
	"context"
	"database/sql"
	"encoding/json"
	"errors"

	telebot "gopkg.in/telebot.v3"

	"github.com/marketbet/referral-bot/internal/domain"
	"github.com/marketbet/referral-bot/internal/repository"
	"github.com/marketbet/referral-bot/internal/reward"
)

// Ledger is the slice of the reward engine the handlers drive.
type Ledger interface {
	RegisterUser(ctx context.Context, telegramID string, profile domain.Profile, referralToken string) (*domain.User, bool, error)
	CompleteReferral(ctx context.Context, referredUserID int64) error
	RequestWithdrawal(ctx context.Context, userID int64, amount domain.Cents, method string, details json.RawMessage) (*reward.WithdrawalResult, error)
	Settings(ctx context.Context) (*domain.BotSettings, error)
}

// senderID formats the telegram sender id the way the ledger stores it.
func senderID(c telebot.Context) string {
	return telebot.ChatID(c.Sender().ID).Recipient()
}

// lookupUser resolves the sender's ledger row. A nil user with nil error
// means the sender never ran /start; the caller should prompt for it.
func lookupUser(ctx context.Context, users repository.UserRepository, c telebot.Context) (*domain.User, error) {
	if c.Sender() == nil {
		return nil, nil
	}

	user, err := users.GetByTelegramID(ctx, senderID(c))
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, nil
		}
		return nil, err
	}

	return user, nil
}
