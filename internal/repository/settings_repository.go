package repository

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"log/slog"

	"github.com/marketbet/referral-bot/internal/domain"
)

// SettingsRepository manages the append-only bot configuration history.
type SettingsRepository interface {
	GetActive(ctx context.Context) (*domain.BotSettings, error)
	Replace(ctx context.Context, settings *domain.BotSettings) (*domain.BotSettings, error)
}

type settingsRepository struct {
	db  *sql.DB
	log *slog.Logger
}

// NewSettingsRepository creates a SQL-backed settings repository.
func NewSettingsRepository(db *sql.DB, log *slog.Logger) SettingsRepository {
	return &settingsRepository{db: db, log: log}
}

const settingsColumns = `id, welcome_message, welcome_photo_url, play_button_url,
	new_user_bonus, referral_reward, min_withdrawal, referrals_for_code, is_active, updated_at`

// GetActive returns the single active settings row, or built-in defaults
// when none has been stored yet.
func (r *settingsRepository) GetActive(ctx context.Context) (*domain.BotSettings, error) {
	query := fmt.Sprintf(`SELECT %s FROM bot_settings WHERE is_active = TRUE LIMIT 1`, settingsColumns)

	settings, err := scanSettings(r.db.QueryRowContext(ctx, query))
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return domain.DefaultSettings(), nil
		}
		return nil, fmt.Errorf("select active settings: %w", err)
	}

	return settings, nil
}

// Replace deactivates every existing settings row and inserts the new one
// as active, inside a single transaction.
func (r *settingsRepository) Replace(ctx context.Context, settings *domain.BotSettings) (*domain.BotSettings, error) {
	var stored *domain.BotSettings

	err := NewTxRunner(r.db).InTx(ctx, func(tx *sql.Tx) error {
		if _, err := tx.ExecContext(ctx, `UPDATE bot_settings SET is_active = FALSE WHERE is_active = TRUE`); err != nil {
			return fmt.Errorf("deactivate settings: %w", err)
		}

		query := fmt.Sprintf(`
			INSERT INTO bot_settings (welcome_message, welcome_photo_url, play_button_url,
				new_user_bonus, referral_reward, min_withdrawal, referrals_for_code, is_active)
			VALUES ($1, $2, $3, $4, $5, $6, $7, TRUE)
			RETURNING %s
		`, settingsColumns)

		row := tx.QueryRowContext(
			ctx,
			query,
			settings.WelcomeMessage,
			settings.WelcomePhotoURL,
			settings.PlayButtonURL,
			int64(settings.NewUserBonus),
			int64(settings.ReferralReward),
			int64(settings.MinWithdrawal),
			settings.ReferralsForCode,
		)

		var err error
		stored, err = scanSettings(row)
		if err != nil {
			return fmt.Errorf("insert settings: %w", err)
		}

		return nil
	})
	if err != nil {
		if r.log != nil {
			r.log.Error("failed to replace bot settings", slog.Any("error", err))
		}
		return nil, err
	}

	return stored, nil
}

func scanSettings(s scanner) (*domain.BotSettings, error) {
	var (
		settings                                   domain.BotSettings
		newUserBonus, referralReward, minWithdrawal int64
	)

	if err := s.Scan(
		&settings.ID,
		&settings.WelcomeMessage,
		&settings.WelcomePhotoURL,
		&settings.PlayButtonURL,
		&newUserBonus,
		&referralReward,
		&minWithdrawal,
		&settings.ReferralsForCode,
		&settings.IsActive,
		&settings.UpdatedAt,
	); err != nil {
		return nil, err
	}

	settings.NewUserBonus = domain.Cents(newUserBonus)
	settings.ReferralReward = domain.Cents(referralReward)
	settings.MinWithdrawal = domain.Cents(minWithdrawal)

	return &settings, nil
}
