package repository

import (
	"context"
	"database/sql"
	"fmt"
	"log/slog"

	"github.com/marketbet/referral-bot/internal/domain"
)

// WithdrawalRepository defines persistence operations for payout requests.
type WithdrawalRepository interface {
	Create(ctx context.Context, w *domain.Withdrawal) (*domain.Withdrawal, error)
	GetByID(ctx context.Context, id int64) (*domain.Withdrawal, error)
	Resolve(ctx context.Context, id int64, status domain.WithdrawalStatus, notes string) (bool, error)
	ListByUser(ctx context.Context, userID int64) ([]*domain.Withdrawal, error)
	ListAllWithUser(ctx context.Context) ([]*domain.WithdrawalWithUser, error)
	WithTx(tx *sql.Tx) WithdrawalRepository
}

type withdrawalRepository struct {
	db  dbtx
	log *slog.Logger
}

// NewWithdrawalRepository creates a SQL-backed withdrawal repository.
func NewWithdrawalRepository(db *sql.DB, log *slog.Logger) WithdrawalRepository {
	return &withdrawalRepository{db: db, log: log}
}

func (r *withdrawalRepository) WithTx(tx *sql.Tx) WithdrawalRepository {
	return &withdrawalRepository{db: tx, log: r.log}
}

const withdrawalColumns = `id, user_id, amount, status, payment_method, payment_details,
	requested_at, processed_at, notes`

// Create inserts a pending withdrawal and returns the stored row.
func (r *withdrawalRepository) Create(ctx context.Context, w *domain.Withdrawal) (*domain.Withdrawal, error) {
	query := fmt.Sprintf(`
		INSERT INTO withdrawals (user_id, amount, status, payment_method, payment_details)
		VALUES ($1, $2, 'pending', $3, $4)
		RETURNING %s
	`, withdrawalColumns)

	var details any
	if len(w.PaymentDetails) > 0 {
		details = []byte(w.PaymentDetails)
	}

	created, err := scanWithdrawal(r.db.QueryRowContext(
		ctx,
		query,
		w.UserID,
		int64(w.Amount),
		w.PaymentMethod,
		details,
	))
	if err != nil {
		if r.log != nil {
			r.log.Error("failed to create withdrawal",
				slog.Int64("user_id", w.UserID),
				slog.Any("error", err),
			)
		}
		return nil, fmt.Errorf("insert withdrawal: %w", err)
	}

	return created, nil
}

// GetByID fetches a withdrawal by primary key.
func (r *withdrawalRepository) GetByID(ctx context.Context, id int64) (*domain.Withdrawal, error) {
	query := fmt.Sprintf(`SELECT %s FROM withdrawals WHERE id = $1`, withdrawalColumns)
	return scanWithdrawal(r.db.QueryRowContext(ctx, query, id))
}

// Resolve moves a pending withdrawal into a terminal status, stamping
// processed_at. Reports whether a pending row was actually transitioned;
// false means the withdrawal was already resolved.
func (r *withdrawalRepository) Resolve(ctx context.Context, id int64, status domain.WithdrawalStatus, notes string) (bool, error) {
	const query = `
		UPDATE withdrawals
		SET status = $2, notes = $3, processed_at = now()
		WHERE id = $1 AND status = 'pending'
	`

	result, err := r.db.ExecContext(ctx, query, id, string(status), notes)
	if err != nil {
		return false, fmt.Errorf("resolve withdrawal: %w", err)
	}

	affected, err := result.RowsAffected()
	if err != nil {
		return false, fmt.Errorf("resolve withdrawal rows affected: %w", err)
	}

	return affected > 0, nil
}

// ListByUser returns the user's withdrawals, newest first.
func (r *withdrawalRepository) ListByUser(ctx context.Context, userID int64) ([]*domain.Withdrawal, error) {
	query := fmt.Sprintf(`
		SELECT %s FROM withdrawals WHERE user_id = $1 ORDER BY requested_at DESC
	`, withdrawalColumns)

	rows, err := r.db.QueryContext(ctx, query, userID)
	if err != nil {
		return nil, fmt.Errorf("select withdrawals: %w", err)
	}
	defer rows.Close()

	var out []*domain.Withdrawal
	for rows.Next() {
		w, err := scanWithdrawal(rows)
		if err != nil {
			return nil, err
		}
		out = append(out, w)
	}

	return out, rows.Err()
}

// ListAllWithUser returns every withdrawal joined with the requesting
// user, newest first.
func (r *withdrawalRepository) ListAllWithUser(ctx context.Context) ([]*domain.WithdrawalWithUser, error) {
	query := fmt.Sprintf(`
		SELECT w.id, w.user_id, w.amount, w.status, w.payment_method, w.payment_details,
		       w.requested_at, w.processed_at, w.notes, %s
		FROM withdrawals w
		LEFT JOIN users u ON u.id = w.user_id
		ORDER BY w.requested_at DESC
	`, prefixedUserColumns("u"))

	rows, err := r.db.QueryContext(ctx, query)
	if err != nil {
		return nil, fmt.Errorf("select withdrawals with users: %w", err)
	}
	defer rows.Close()

	var out []*domain.WithdrawalWithUser
	for rows.Next() {
		var (
			item        domain.WithdrawalWithUser
			amount      int64
			details     []byte
			processedAt sql.NullTime
			user        nullableUser
		)

		targets := []any{
			&item.ID,
			&item.UserID,
			&amount,
			&item.Status,
			&item.PaymentMethod,
			&details,
			&item.RequestedAt,
			&processedAt,
			&item.Notes,
		}
		targets = append(targets, user.targets()...)

		if err := rows.Scan(targets...); err != nil {
			return nil, fmt.Errorf("scan withdrawal row: %w", err)
		}

		item.Amount = domain.Cents(amount)
		item.PaymentDetails = details
		if processedAt.Valid {
			item.ProcessedAt = &processedAt.Time
		}
		item.User = user.value()

		out = append(out, &item)
	}

	return out, rows.Err()
}

func scanWithdrawal(s scanner) (*domain.Withdrawal, error) {
	var (
		w           domain.Withdrawal
		amount      int64
		details     []byte
		processedAt sql.NullTime
	)

	if err := s.Scan(
		&w.ID,
		&w.UserID,
		&amount,
		&w.Status,
		&w.PaymentMethod,
		&details,
		&w.RequestedAt,
		&processedAt,
		&w.Notes,
	); err != nil {
		return nil, err
	}

	w.Amount = domain.Cents(amount)
	w.PaymentDetails = details
	if processedAt.Valid {
		w.ProcessedAt = &processedAt.Time
	}

	return &w, nil
}
