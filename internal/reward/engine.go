// Package reward implements the referral/reward ledger state machine:
// every balance, referral-count, and code-eligibility change flows
// through the four operations defined here.
package reward

import (
	"context"
	"database/sql"
	"encoding/json"
	"errors"
	"fmt"
	"log/slog"
	"strconv"
	"time"

	"github.com/marketbet/referral-bot/internal/apperr"
	"github.com/marketbet/referral-bot/internal/code"
	"github.com/marketbet/referral-bot/internal/domain"
	"github.com/marketbet/referral-bot/internal/lock"
	"github.com/marketbet/referral-bot/internal/repository"
	"github.com/marketbet/referral-bot/pkg/metrics"
)

// Notifier delivers fire-and-forget messages after a state change has
// committed. Implementations must swallow and log their own failures; a
// failed notification never rolls back ledger state.
type Notifier interface {
	NotifyUser(ctx context.Context, telegramID, text string)
	NotifyChannel(ctx context.Context, text string)
}

// Stores bundles the ledger store contracts the engine mutates.
type Stores struct {
	Users       repository.UserRepository
	Referrals   repository.ReferralRepository
	Withdrawals repository.WithdrawalRepository
	Codes       repository.CodeRepository
	Settings    repository.SettingsRepository
	Activity    repository.ActivityRepository
}

// Config carries engine policy knobs.
type Config struct {
	// RecreditOnReject re-credits the debited amount when an admin
	// rejects a withdrawal. Off by default: historically rejected funds
	// stayed debited, which loses them from the ledger.
	RecreditOnReject bool
}

// Engine performs atomic state transitions against the ledger store.
// Mutations for the same user are serialized through the locker; every
// operation is idempotent on its natural key or guarded by a one-way
// flag, so re-execution under at-least-once delivery is safe.
type Engine struct {
	tx       repository.TxRunner
	stores   Stores
	locker   lock.Locker
	codes    *code.Generator
	notifier Notifier
	cfg      Config
	log      *slog.Logger
}

// NewEngine constructs the reward engine.
func NewEngine(tx repository.TxRunner, stores Stores, locker lock.Locker, gen *code.Generator, notifier Notifier, cfg Config, log *slog.Logger) *Engine {
	if log == nil {
		log = slog.Default()
	}

	return &Engine{
		tx:       tx,
		stores:   stores,
		locker:   locker,
		codes:    gen,
		notifier: notifier,
		cfg:      cfg,
		log:      log,
	}
}

// Settings returns the active configuration row.
func (e *Engine) Settings(ctx context.Context) (*domain.BotSettings, error) {
	settings, err := e.stores.Settings.GetActive(ctx)
	if err != nil {
		return nil, apperr.NewStoreError(err)
	}
	return settings, nil
}

// RegisterUser creates a user on first /start. Calling it again with the
// same telegram id returns the existing row unchanged, which makes
// duplicate delivery harmless. A referral token is the referrer's own
// user id; unresolvable tokens silently degrade to a plain signup.
func (e *Engine) RegisterUser(ctx context.Context, telegramID string, profile domain.Profile, referralToken string) (user *domain.User, created bool, err error) {
	defer func(start time.Time) { metrics.RecordOperation("register_user", err, time.Since(start)) }(time.Now())

	release, err := e.locker.Acquire(ctx, "user:reg:"+telegramID)
	if err != nil {
		return nil, false, apperr.NewStoreError(err)
	}
	defer release()

	existing, err := e.stores.Users.GetByTelegramID(ctx, telegramID)
	if err == nil {
		return existing, false, nil
	}
	if !errors.Is(err, sql.ErrNoRows) {
		return nil, false, apperr.NewStoreError(err)
	}

	settings, err := e.stores.Settings.GetActive(ctx)
	if err != nil {
		return nil, false, apperr.NewStoreError(err)
	}

	referrer := e.resolveReferrer(ctx, referralToken)

	var newUser *domain.User
	err = e.tx.InTx(ctx, func(tx *sql.Tx) error {
		users := e.stores.Users.WithTx(tx)

		toCreate := &domain.User{
			TelegramID: telegramID,
			Username:   profile.Username,
			FirstName:  profile.FirstName,
			LastName:   profile.LastName,
			Balance:    settings.NewUserBonus,
		}
		if referrer != nil {
			toCreate.ReferredBy = &referrer.ID
		}

		var createErr error
		newUser, createErr = users.Create(ctx, toCreate)
		if createErr != nil {
			return createErr
		}

		if referrer != nil {
			if _, refErr := e.stores.Referrals.WithTx(tx).Create(ctx, referrer.ID, newUser.ID); refErr != nil {
				return refErr
			}
		}

		data, dataErr := domain.MarshalActivityData(domain.NewUserData{
			TelegramID: telegramID,
			Username:   profile.Username,
		})
		if dataErr != nil {
			return dataErr
		}

		return e.stores.Activity.WithTx(tx).Append(ctx, domain.ActivityNewUser, &newUser.ID, data)
	})
	if err != nil {
		return nil, false, apperr.NewStoreError(err)
	}

	e.log.Info("registered new user",
		slog.String("telegram_id", telegramID),
		slog.Int64("user_id", newUser.ID),
		slog.Bool("referred", referrer != nil),
	)

	e.notifier.NotifyChannel(ctx, fmt.Sprintf(
		"🎉 New user joined: @%s and earned %s!",
		newUser.DisplayName(), settings.NewUserBonus.USD(),
	))

	return newUser, true, nil
}

// resolveReferrer maps a referral token to an existing user. Bogus or
// empty tokens resolve to no referrer rather than an error.
func (e *Engine) resolveReferrer(ctx context.Context, token string) *domain.User {
	if token == "" {
		return nil
	}

	referrerID, err := strconv.ParseInt(token, 10, 64)
	if err != nil {
		return nil
	}

	referrer, err := e.stores.Users.GetByID(ctx, referrerID)
	if err != nil {
		if !errors.Is(err, sql.ErrNoRows) {
			e.log.Warn("referrer lookup failed", slog.String("token", token), slog.Any("error", err))
		}
		return nil
	}

	return referrer
}

// CompleteReferral handles the referred user's first play. The
// has_played_once flag transitions false→true exactly once; replays are
// no-ops. When the user was referred, the matching referral is completed
// and the referrer is credited atomically.
func (e *Engine) CompleteReferral(ctx context.Context, referredUserID int64) (err error) {
	defer func(start time.Time) { metrics.RecordOperation("complete_referral", err, time.Since(start)) }(time.Now())

	release, err := e.locker.Acquire(ctx, lock.UserKey(referredUserID))
	if err != nil {
		return apperr.NewStoreError(err)
	}
	defer release()

	referred, err := e.stores.Users.GetByID(ctx, referredUserID)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return apperr.NewNotFoundError("user")
		}
		return apperr.NewStoreError(err)
	}
	if referred.HasPlayedOnce {
		// Duplicate delivery of the play event.
		return nil
	}

	settings, err := e.stores.Settings.GetActive(ctx)
	if err != nil {
		return apperr.NewStoreError(err)
	}

	if referred.ReferredBy != nil {
		// Lock ordering is always referred first, then referrer; no
		// other code path holds two user locks.
		releaseReferrer, lockErr := e.locker.Acquire(ctx, lock.UserKey(*referred.ReferredBy))
		if lockErr != nil {
			return apperr.NewStoreError(lockErr)
		}
		defer releaseReferrer()
	}

	// The flag flips inside the same transaction as the reward credit so
	// a failed commit leaves the user eligible for a clean replay.
	var referrer *domain.User
	err = e.tx.InTx(ctx, func(tx *sql.Tx) error {
		played, txErr := e.stores.Users.WithTx(tx).MarkPlayed(ctx, referredUserID)
		if txErr != nil {
			return txErr
		}
		if !played || referred.ReferredBy == nil {
			return nil
		}
		referrerID := *referred.ReferredBy

		completed, txErr := e.stores.Referrals.WithTx(tx).Complete(ctx, referredUserID)
		if txErr != nil {
			return txErr
		}
		if !completed {
			// Referral row already completed; nothing to credit.
			return nil
		}

		referrer, txErr = e.stores.Users.WithTx(tx).ApplyReferralReward(ctx, referrerID, settings.ReferralReward)
		if txErr != nil {
			return txErr
		}

		data, dataErr := domain.MarshalActivityData(domain.ReferralCompleteData{
			ReferredID:     referredUserID,
			Reward:         settings.ReferralReward,
			TotalReferrals: referrer.TotalReferrals,
		})
		if dataErr != nil {
			return dataErr
		}

		return e.stores.Activity.WithTx(tx).Append(ctx, domain.ActivityReferralComplete, &referrerID, data)
	})
	if err != nil {
		return apperr.NewStoreError(err)
	}

	if referrer == nil {
		return nil
	}

	e.log.Info("referral completed",
		slog.Int64("referrer_id", referrer.ID),
		slog.Int64("referred_id", referredUserID),
		slog.Int("total_referrals", referrer.TotalReferrals),
	)

	e.notifyReferralCompleted(ctx, referrer, settings)

	return nil
}

func (e *Engine) notifyReferralCompleted(ctx context.Context, referrer *domain.User, settings *domain.BotSettings) {
	text := fmt.Sprintf(
		"🎉 Congratulations! One of your referrals completed the task!\n\n"+
			"💰 You earned %s\n📊 Total referrals: %d/%d",
		settings.ReferralReward.USD(), referrer.TotalReferrals, settings.ReferralsForCode,
	)

	// Crossing the threshold is informational only; codes are minted at
	// withdrawal time.
	if referrer.TotalReferrals >= settings.ReferralsForCode {
		text += fmt.Sprintf(
			"\n\n🎁 Amazing! You've completed %d referrals!\n"+
				"Use /balance to withdraw your earnings and get your unique code!",
			settings.ReferralsForCode,
		)
	}

	e.notifier.NotifyUser(ctx, referrer.TelegramID, text)
	e.notifier.NotifyChannel(ctx, fmt.Sprintf(
		"💰 Referral completed! @%s earned %s (%d/%d referrals)",
		referrer.DisplayName(), settings.ReferralReward.USD(),
		referrer.TotalReferrals, settings.ReferralsForCode,
	))
}

// WithdrawalResult is the outcome of a successful withdrawal request.
type WithdrawalResult struct {
	Withdrawal *domain.Withdrawal
	Code       *domain.UniqueCode
}

// RequestWithdrawal debits the user's full balance, creates the pending
// withdrawal, and mints the redemption code in one atomic transition.
// The debit happens at request time so a second request cannot spend the
// same balance while an admin deliberates.
func (e *Engine) RequestWithdrawal(ctx context.Context, userID int64, amount domain.Cents, method string, details json.RawMessage) (result *WithdrawalResult, err error) {
	defer func(start time.Time) { metrics.RecordOperation("request_withdrawal", err, time.Since(start)) }(time.Now())

	if amount <= 0 {
		return nil, apperr.NewValidationError("withdrawal amount must be positive")
	}

	user, err := e.stores.Users.GetByID(ctx, userID)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, apperr.NewNotFoundError("user")
		}
		return nil, apperr.NewStoreError(err)
	}

	release, err := e.locker.Acquire(ctx, lock.UserKey(userID))
	if err != nil {
		return nil, apperr.NewStoreError(err)
	}
	defer release()

	codeValue, err := e.codes.Generate(ctx)
	if err != nil {
		return nil, err
	}

	var (
		withdrawal *domain.Withdrawal
		minted     *domain.UniqueCode
	)
	err = e.tx.InTx(ctx, func(tx *sql.Tx) error {
		debited, txErr := e.stores.Users.WithTx(tx).DebitFullBalance(ctx, userID)
		if txErr != nil {
			return txErr
		}
		if debited <= 0 {
			return apperr.NewInvalidStateError("balance is already empty")
		}

		withdrawal, txErr = e.stores.Withdrawals.WithTx(tx).Create(ctx, &domain.Withdrawal{
			UserID:         userID,
			Amount:         debited,
			PaymentMethod:  method,
			PaymentDetails: details,
		})
		if txErr != nil {
			return txErr
		}

		minted, txErr = e.stores.Codes.WithTx(tx).Create(ctx, userID, codeValue)
		if txErr != nil {
			return txErr
		}

		activity := e.stores.Activity.WithTx(tx)

		requestData, dataErr := domain.MarshalActivityData(domain.WithdrawalRequestData{
			WithdrawalID: withdrawal.ID,
			Amount:       debited,
			Method:       method,
		})
		if dataErr != nil {
			return dataErr
		}
		if txErr = activity.Append(ctx, domain.ActivityWithdrawalRequest, &userID, requestData); txErr != nil {
			return txErr
		}

		codeData, dataErr := domain.MarshalActivityData(domain.CodeGeneratedData{
			Code:   codeValue,
			Amount: debited,
			Method: method,
		})
		if dataErr != nil {
			return dataErr
		}

		return activity.Append(ctx, domain.ActivityCodeGenerated, &userID, codeData)
	})
	if err != nil {
		var appErr *apperr.Error
		if errors.As(err, &appErr) {
			return nil, appErr
		}
		return nil, apperr.NewStoreError(err)
	}

	e.log.Info("withdrawal requested",
		slog.Int64("user_id", userID),
		slog.Int64("withdrawal_id", withdrawal.ID),
		slog.String("amount", withdrawal.Amount.String()),
		slog.String("method", method),
	)

	e.notifier.NotifyChannel(ctx, fmt.Sprintf(
		"💸 Withdrawal processed: @%s withdrew %s via %s and received code: %s",
		user.DisplayName(), withdrawal.Amount.USD(), method, codeValue,
	))

	return &WithdrawalResult{Withdrawal: withdrawal, Code: minted}, nil
}

// ResolveWithdrawal records the admin decision on a pending withdrawal.
// The transition is terminal; re-resolving fails with an invalid state
// error and leaves the row unchanged. No balance moves on approval; on
// rejection a compensating credit is applied only when the engine is
// configured with RecreditOnReject.
func (e *Engine) ResolveWithdrawal(ctx context.Context, withdrawalID int64, decision domain.WithdrawalStatus, notes string) (err error) {
	defer func(start time.Time) { metrics.RecordOperation("resolve_withdrawal", err, time.Since(start)) }(time.Now())

	if !decision.ValidDecision() {
		return apperr.NewValidationError(fmt.Sprintf("unknown decision %q", decision))
	}

	withdrawal, err := e.stores.Withdrawals.GetByID(ctx, withdrawalID)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return apperr.NewNotFoundError("withdrawal")
		}
		return apperr.NewStoreError(err)
	}

	release, err := e.locker.Acquire(ctx, lock.UserKey(withdrawal.UserID))
	if err != nil {
		return apperr.NewStoreError(err)
	}
	defer release()

	err = e.tx.InTx(ctx, func(tx *sql.Tx) error {
		resolved, txErr := e.stores.Withdrawals.WithTx(tx).Resolve(ctx, withdrawalID, decision, notes)
		if txErr != nil {
			return txErr
		}
		if !resolved {
			return apperr.NewInvalidStateError("withdrawal is already resolved")
		}

		if decision == domain.WithdrawalRejected && e.cfg.RecreditOnReject {
			return e.stores.Users.WithTx(tx).CreditBalance(ctx, withdrawal.UserID, withdrawal.Amount)
		}

		return nil
	})
	if err != nil {
		var appErr *apperr.Error
		if errors.As(err, &appErr) {
			return appErr
		}
		return apperr.NewStoreError(err)
	}

	e.log.Info("withdrawal resolved",
		slog.Int64("withdrawal_id", withdrawalID),
		slog.String("decision", string(decision)),
		slog.Bool("recredited", decision == domain.WithdrawalRejected && e.cfg.RecreditOnReject),
	)

	return nil
}
