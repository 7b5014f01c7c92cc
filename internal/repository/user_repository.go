package repository

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"log/slog"

	"github.com/marketbet/referral-bot/internal/domain"
)

const userColumns = `id, telegram_id, username, first_name, last_name, balance,
	total_referrals, has_played_once, is_blocked, referred_by, joined_at, last_active_at`

// UserRepository defines persistence operations for users.
type UserRepository interface {
	GetByID(ctx context.Context, id int64) (*domain.User, error)
	GetByTelegramID(ctx context.Context, telegramID string) (*domain.User, error)
	Create(ctx context.Context, user *domain.User) (*domain.User, error)
	ApplyReferralReward(ctx context.Context, referrerID int64, reward domain.Cents) (*domain.User, error)
	DebitFullBalance(ctx context.Context, id int64) (domain.Cents, error)
	CreditBalance(ctx context.Context, id int64, amount domain.Cents) error
	MarkPlayed(ctx context.Context, id int64) (bool, error)
	TouchLastActive(ctx context.Context, telegramID string) error
	ListAll(ctx context.Context) ([]*domain.User, error)
	ListBroadcastable(ctx context.Context) ([]*domain.User, error)
	WithTx(tx *sql.Tx) UserRepository
}

type userRepository struct {
	db  dbtx
	log *slog.Logger
}

// NewUserRepository creates a SQL-backed user repository.
func NewUserRepository(db *sql.DB, log *slog.Logger) UserRepository {
	return &userRepository{db: db, log: log}
}

func (r *userRepository) WithTx(tx *sql.Tx) UserRepository {
	return &userRepository{db: tx, log: r.log}
}

// GetByID retrieves a user by primary key.
func (r *userRepository) GetByID(ctx context.Context, id int64) (*domain.User, error) {
	query := fmt.Sprintf(`SELECT %s FROM users WHERE id = $1`, userColumns)
	return r.scanOne(r.db.QueryRowContext(ctx, query, id))
}

// GetByTelegramID retrieves a user by their Telegram identifier.
func (r *userRepository) GetByTelegramID(ctx context.Context, telegramID string) (*domain.User, error) {
	query := fmt.Sprintf(`SELECT %s FROM users WHERE telegram_id = $1`, userColumns)
	return r.scanOne(r.db.QueryRowContext(ctx, query, telegramID))
}

// Create persists a new user record and returns it with generated fields.
func (r *userRepository) Create(ctx context.Context, user *domain.User) (*domain.User, error) {
	query := fmt.Sprintf(`
		INSERT INTO users (telegram_id, username, first_name, last_name, balance, referred_by)
		VALUES ($1, $2, $3, $4, $5, $6)
		RETURNING %s
	`, userColumns)

	created, err := r.scanOne(r.db.QueryRowContext(
		ctx,
		query,
		user.TelegramID,
		user.Username,
		user.FirstName,
		user.LastName,
		int64(user.Balance),
		user.ReferredBy,
	))
	if err != nil {
		r.logError("create user", user.TelegramID, err)
		return nil, fmt.Errorf("insert user: %w", err)
	}

	return created, nil
}

// ApplyReferralReward increments the referrer's counter and credits the
// reward in a single atomic statement, returning the updated row.
func (r *userRepository) ApplyReferralReward(ctx context.Context, referrerID int64, reward domain.Cents) (*domain.User, error) {
	query := fmt.Sprintf(`
		UPDATE users
		SET total_referrals = total_referrals + 1, balance = balance + $2
		WHERE id = $1
		RETURNING %s
	`, userColumns)

	return r.scanOne(r.db.QueryRowContext(ctx, query, referrerID, int64(reward)))
}

// DebitFullBalance zeroes the user's balance and returns the debited
// amount. Returns sql.ErrNoRows when the user does not exist.
func (r *userRepository) DebitFullBalance(ctx context.Context, id int64) (domain.Cents, error) {
	const query = `
		UPDATE users u
		SET balance = 0
		FROM (SELECT id, balance FROM users WHERE id = $1 FOR UPDATE) prev
		WHERE u.id = prev.id
		RETURNING prev.balance
	`

	var debited int64
	if err := r.db.QueryRowContext(ctx, query, id).Scan(&debited); err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return 0, sql.ErrNoRows
		}
		return 0, fmt.Errorf("debit balance: %w", err)
	}

	return domain.Cents(debited), nil
}

// CreditBalance adds amount to the user's balance.
func (r *userRepository) CreditBalance(ctx context.Context, id int64, amount domain.Cents) error {
	const query = `UPDATE users SET balance = balance + $2 WHERE id = $1`

	if _, err := r.db.ExecContext(ctx, query, id, int64(amount)); err != nil {
		return fmt.Errorf("credit balance: %w", err)
	}

	return nil
}

// MarkPlayed flips has_played_once to true and reports whether this call
// performed the transition. The conditional update makes the flag a true
// one-way guard under concurrent delivery.
func (r *userRepository) MarkPlayed(ctx context.Context, id int64) (bool, error) {
	const query = `UPDATE users SET has_played_once = TRUE WHERE id = $1 AND has_played_once = FALSE`

	result, err := r.db.ExecContext(ctx, query, id)
	if err != nil {
		return false, fmt.Errorf("mark played: %w", err)
	}

	affected, err := result.RowsAffected()
	if err != nil {
		return false, fmt.Errorf("mark played rows affected: %w", err)
	}

	return affected > 0, nil
}

// TouchLastActive refreshes last_active_at for the user.
func (r *userRepository) TouchLastActive(ctx context.Context, telegramID string) error {
	const query = `UPDATE users SET last_active_at = now() WHERE telegram_id = $1`

	if _, err := r.db.ExecContext(ctx, query, telegramID); err != nil {
		return fmt.Errorf("touch last active: %w", err)
	}

	return nil
}

// ListAll returns every user ordered by most recent signup first.
func (r *userRepository) ListAll(ctx context.Context) ([]*domain.User, error) {
	query := fmt.Sprintf(`SELECT %s FROM users ORDER BY joined_at DESC`, userColumns)
	return r.scanMany(ctx, query)
}

// ListBroadcastable returns users eligible to receive broadcast messages.
func (r *userRepository) ListBroadcastable(ctx context.Context) ([]*domain.User, error) {
	query := fmt.Sprintf(`SELECT %s FROM users WHERE is_blocked = FALSE ORDER BY id`, userColumns)
	return r.scanMany(ctx, query)
}

func (r *userRepository) scanMany(ctx context.Context, query string, args ...any) ([]*domain.User, error) {
	rows, err := r.db.QueryContext(ctx, query, args...)
	if err != nil {
		return nil, fmt.Errorf("select users: %w", err)
	}
	defer rows.Close()

	var users []*domain.User
	for rows.Next() {
		user, err := scanUser(rows)
		if err != nil {
			return nil, err
		}
		users = append(users, user)
	}

	return users, rows.Err()
}

func (r *userRepository) scanOne(row *sql.Row) (*domain.User, error) {
	user, err := scanUser(row)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, sql.ErrNoRows
		}
		return nil, fmt.Errorf("scan user: %w", err)
	}

	return user, nil
}

func (r *userRepository) logError(operation, telegramID string, err error) {
	if r.log == nil || err == nil {
		return
	}

	r.log.Error("user repository operation failed",
		slog.String("operation", operation),
		slog.String("telegram_id", telegramID),
		slog.Any("error", err),
	)
}

type scanner interface {
	Scan(dest ...any) error
}

func scanUser(s scanner) (*domain.User, error) {
	var (
		user       domain.User
		balance    int64
		referredBy sql.NullInt64
	)

	if err := s.Scan(
		&user.ID,
		&user.TelegramID,
		&user.Username,
		&user.FirstName,
		&user.LastName,
		&balance,
		&user.TotalReferrals,
		&user.HasPlayedOnce,
		&user.IsBlocked,
		&referredBy,
		&user.JoinedAt,
		&user.LastActiveAt,
	); err != nil {
		return nil, err
	}

	user.Balance = domain.Cents(balance)
	if referredBy.Valid {
		user.ReferredBy = &referredBy.Int64
	}

	return &user, nil
}
