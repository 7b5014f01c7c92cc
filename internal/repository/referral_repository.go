package repository

import (
	"context"
	"database/sql"
	"fmt"
	"log/slog"

	"github.com/marketbet/referral-bot/internal/domain"
)

// ReferralRepository defines persistence operations for referral records.
type ReferralRepository interface {
	Create(ctx context.Context, referrerID, referredID int64) (*domain.Referral, error)
	Complete(ctx context.Context, referredID int64) (bool, error)
	GetByReferredID(ctx context.Context, referredID int64) (*domain.Referral, error)
	ListByReferrer(ctx context.Context, referrerID int64) ([]*domain.ReferralWithUser, error)
	WithTx(tx *sql.Tx) ReferralRepository
}

type referralRepository struct {
	db  dbtx
	log *slog.Logger
}

// NewReferralRepository creates a SQL-backed referral repository.
func NewReferralRepository(db *sql.DB, log *slog.Logger) ReferralRepository {
	return &referralRepository{db: db, log: log}
}

func (r *referralRepository) WithTx(tx *sql.Tx) ReferralRepository {
	return &referralRepository{db: tx, log: r.log}
}

const referralColumns = `id, referrer_id, referred_id, is_completed, reward_paid, created_at, completed_at`

// Create inserts a pending referral for the (referrer, referred) pair.
// The unique constraint on referred_id guarantees a user is referred at
// most once.
func (r *referralRepository) Create(ctx context.Context, referrerID, referredID int64) (*domain.Referral, error) {
	query := fmt.Sprintf(`
		INSERT INTO referrals (referrer_id, referred_id)
		VALUES ($1, $2)
		RETURNING %s
	`, referralColumns)

	referral, err := scanReferral(r.db.QueryRowContext(ctx, query, referrerID, referredID))
	if err != nil {
		if r.log != nil {
			r.log.Error("failed to create referral",
				slog.Int64("referrer_id", referrerID),
				slog.Int64("referred_id", referredID),
				slog.Any("error", err),
			)
		}
		return nil, fmt.Errorf("insert referral: %w", err)
	}

	return referral, nil
}

// Complete marks the referred user's record completed and paid, setting
// completed_at. Reports whether a pending record transitioned.
func (r *referralRepository) Complete(ctx context.Context, referredID int64) (bool, error) {
	const query = `
		UPDATE referrals
		SET is_completed = TRUE, reward_paid = TRUE, completed_at = now()
		WHERE referred_id = $1 AND is_completed = FALSE
	`

	result, err := r.db.ExecContext(ctx, query, referredID)
	if err != nil {
		return false, fmt.Errorf("complete referral: %w", err)
	}

	affected, err := result.RowsAffected()
	if err != nil {
		return false, fmt.Errorf("complete referral rows affected: %w", err)
	}

	return affected > 0, nil
}

// GetByReferredID fetches the referral record naming referredID, if any.
func (r *referralRepository) GetByReferredID(ctx context.Context, referredID int64) (*domain.Referral, error) {
	query := fmt.Sprintf(`SELECT %s FROM referrals WHERE referred_id = $1`, referralColumns)

	referral, err := scanReferral(r.db.QueryRowContext(ctx, query, referredID))
	if err != nil {
		return nil, err
	}

	return referral, nil
}

// ListByReferrer returns the referrer's referrals joined with the
// referred users' profiles, newest first.
func (r *referralRepository) ListByReferrer(ctx context.Context, referrerID int64) ([]*domain.ReferralWithUser, error) {
	query := fmt.Sprintf(`
		SELECT r.id, r.referrer_id, r.referred_id, r.is_completed, r.reward_paid,
		       r.created_at, r.completed_at, %s
		FROM referrals r
		LEFT JOIN users u ON u.id = r.referred_id
		WHERE r.referrer_id = $1
		ORDER BY r.created_at DESC
	`, prefixedUserColumns("u"))

	rows, err := r.db.QueryContext(ctx, query, referrerID)
	if err != nil {
		return nil, fmt.Errorf("select referrals: %w", err)
	}
	defer rows.Close()

	var out []*domain.ReferralWithUser
	for rows.Next() {
		var (
			item domain.ReferralWithUser
			user nullableUser
		)

		targets := []any{
			&item.ID,
			&item.ReferrerID,
			&item.ReferredID,
			&item.IsCompleted,
			&item.RewardPaid,
			&item.CreatedAt,
			&item.CompletedAt,
		}
		targets = append(targets, user.targets()...)

		if err := rows.Scan(targets...); err != nil {
			return nil, fmt.Errorf("scan referral row: %w", err)
		}

		item.Referred = user.value()
		out = append(out, &item)
	}

	return out, rows.Err()
}

func scanReferral(s scanner) (*domain.Referral, error) {
	var (
		referral    domain.Referral
		completedAt sql.NullTime
	)

	if err := s.Scan(
		&referral.ID,
		&referral.ReferrerID,
		&referral.ReferredID,
		&referral.IsCompleted,
		&referral.RewardPaid,
		&referral.CreatedAt,
		&completedAt,
	); err != nil {
		return nil, err
	}

	if completedAt.Valid {
		referral.CompletedAt = &completedAt.Time
	}

	return &referral, nil
}
