package repository

import (
	"context"
	"database/sql"
	"fmt"
	"log/slog"

	"github.com/marketbet/referral-bot/internal/domain"
)

// CodeRepository defines persistence operations for redemption codes.
type CodeRepository interface {
	Create(ctx context.Context, userID int64, code string) (*domain.UniqueCode, error)
	Exists(ctx context.Context, code string) (bool, error)
	ListByUser(ctx context.Context, userID int64) ([]*domain.UniqueCode, error)
	ListAllWithUser(ctx context.Context) ([]*domain.UniqueCodeWithUser, error)
	WithTx(tx *sql.Tx) CodeRepository
}

type codeRepository struct {
	db  dbtx
	log *slog.Logger
}

// NewCodeRepository creates a SQL-backed code repository.
func NewCodeRepository(db *sql.DB, log *slog.Logger) CodeRepository {
	return &codeRepository{db: db, log: log}
}

func (r *codeRepository) WithTx(tx *sql.Tx) CodeRepository {
	return &codeRepository{db: tx, log: r.log}
}

// Create stores a freshly minted code. The unique constraint on code is
// the last line of defense against generator collisions.
func (r *codeRepository) Create(ctx context.Context, userID int64, code string) (*domain.UniqueCode, error) {
	const query = `
		INSERT INTO unique_codes (user_id, code)
		VALUES ($1, $2)
		RETURNING id, user_id, code, generated_at
	`

	var out domain.UniqueCode
	if err := r.db.QueryRowContext(ctx, query, userID, code).Scan(
		&out.ID,
		&out.UserID,
		&out.Code,
		&out.GeneratedAt,
	); err != nil {
		if r.log != nil {
			r.log.Error("failed to create unique code", slog.Int64("user_id", userID), slog.Any("error", err))
		}
		return nil, fmt.Errorf("insert unique code: %w", err)
	}

	return &out, nil
}

// Exists reports whether code is already taken.
func (r *codeRepository) Exists(ctx context.Context, code string) (bool, error) {
	const query = `SELECT EXISTS (SELECT 1 FROM unique_codes WHERE code = $1)`

	var exists bool
	if err := r.db.QueryRowContext(ctx, query, code).Scan(&exists); err != nil {
		return false, fmt.Errorf("check code existence: %w", err)
	}

	return exists, nil
}

// ListByUser returns the user's codes, newest first.
func (r *codeRepository) ListByUser(ctx context.Context, userID int64) ([]*domain.UniqueCode, error) {
	const query = `
		SELECT id, user_id, code, generated_at
		FROM unique_codes
		WHERE user_id = $1
		ORDER BY generated_at DESC
	`

	rows, err := r.db.QueryContext(ctx, query, userID)
	if err != nil {
		return nil, fmt.Errorf("select codes: %w", err)
	}
	defer rows.Close()

	var out []*domain.UniqueCode
	for rows.Next() {
		var code domain.UniqueCode
		if err := rows.Scan(&code.ID, &code.UserID, &code.Code, &code.GeneratedAt); err != nil {
			return nil, fmt.Errorf("scan code row: %w", err)
		}
		out = append(out, &code)
	}

	return out, rows.Err()
}

// ListAllWithUser returns every code joined with its owner, newest first.
func (r *codeRepository) ListAllWithUser(ctx context.Context) ([]*domain.UniqueCodeWithUser, error) {
	query := fmt.Sprintf(`
		SELECT c.id, c.user_id, c.code, c.generated_at, %s
		FROM unique_codes c
		LEFT JOIN users u ON u.id = c.user_id
		ORDER BY c.generated_at DESC
	`, prefixedUserColumns("u"))

	rows, err := r.db.QueryContext(ctx, query)
	if err != nil {
		return nil, fmt.Errorf("select codes with users: %w", err)
	}
	defer rows.Close()

	var out []*domain.UniqueCodeWithUser
	for rows.Next() {
		var (
			item domain.UniqueCodeWithUser
			user nullableUser
		)

		targets := []any{&item.ID, &item.UserID, &item.Code, &item.GeneratedAt}
		targets = append(targets, user.targets()...)

		if err := rows.Scan(targets...); err != nil {
			return nil, fmt.Errorf("scan code row: %w", err)
		}

		item.User = user.value()
		out = append(out, &item)
	}

	return out, rows.Err()
}
