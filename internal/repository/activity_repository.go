package repository

import (
	"context"
	"database/sql"
	"encoding/json"
	"fmt"
	"log/slog"

	"github.com/marketbet/referral-bot/internal/domain"
)

// ActivityRepository appends to and reads the audit trail. Entries are
// never mutated or deleted.
type ActivityRepository interface {
	Append(ctx context.Context, typ domain.ActivityType, userID *int64, data json.RawMessage) error
	Recent(ctx context.Context, limit int) ([]*domain.ActivityWithUser, error)
	WithTx(tx *sql.Tx) ActivityRepository
}

type activityRepository struct {
	db  dbtx
	log *slog.Logger
}

// NewActivityRepository creates a SQL-backed activity repository.
func NewActivityRepository(db *sql.DB, log *slog.Logger) ActivityRepository {
	return &activityRepository{db: db, log: log}
}

func (r *activityRepository) WithTx(tx *sql.Tx) ActivityRepository {
	return &activityRepository{db: tx, log: r.log}
}

// Append inserts one audit entry.
func (r *activityRepository) Append(ctx context.Context, typ domain.ActivityType, userID *int64, data json.RawMessage) error {
	const query = `INSERT INTO activity_log (type, user_id, data) VALUES ($1, $2, $3)`

	var payload any
	if len(data) > 0 {
		payload = []byte(data)
	}

	if _, err := r.db.ExecContext(ctx, query, string(typ), userID, payload); err != nil {
		if r.log != nil {
			r.log.Error("failed to append activity", slog.String("type", string(typ)), slog.Any("error", err))
		}
		return fmt.Errorf("insert activity: %w", err)
	}

	return nil
}

// Recent returns the latest entries joined with the acting user,
// most-recent-first, bounded by limit.
func (r *activityRepository) Recent(ctx context.Context, limit int) ([]*domain.ActivityWithUser, error) {
	if limit <= 0 {
		limit = 50
	}

	query := fmt.Sprintf(`
		SELECT a.id, a.type, a.user_id, a.data, a.created_at, %s
		FROM activity_log a
		LEFT JOIN users u ON u.id = a.user_id
		ORDER BY a.created_at DESC
		LIMIT $1
	`, prefixedUserColumns("u"))

	rows, err := r.db.QueryContext(ctx, query, limit)
	if err != nil {
		return nil, fmt.Errorf("select activity: %w", err)
	}
	defer rows.Close()

	var out []*domain.ActivityWithUser
	for rows.Next() {
		var (
			item   domain.ActivityWithUser
			userID sql.NullInt64
			data   []byte
			user   nullableUser
		)

		targets := []any{&item.ID, &item.Type, &userID, &data, &item.CreatedAt}
		targets = append(targets, user.targets()...)

		if err := rows.Scan(targets...); err != nil {
			return nil, fmt.Errorf("scan activity row: %w", err)
		}

		if userID.Valid {
			item.UserID = &userID.Int64
		}
		item.Data = data
		item.User = user.value()

		out = append(out, &item)
	}

	return out, rows.Err()
}
