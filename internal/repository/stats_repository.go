package repository

import (
	"context"
	"database/sql"
	"fmt"
	"log/slog"

	"github.com/marketbet/referral-bot/internal/domain"
)

// StatsRepository derives the dashboard aggregates from the ledger store.
type StatsRepository interface {
	Stats(ctx context.Context) (*domain.Stats, error)
	TopReferrers(ctx context.Context, limit int) ([]*domain.TopReferrer, error)
}

type statsRepository struct {
	db  *sql.DB
	log *slog.Logger
}

// NewStatsRepository creates a SQL-backed stats repository.
func NewStatsRepository(db *sql.DB, log *slog.Logger) StatsRepository {
	return &statsRepository{db: db, log: log}
}

// Stats computes total users, completed referrals, the sum of all user
// balances, and the pending withdrawal count in one round trip.
func (r *statsRepository) Stats(ctx context.Context) (*domain.Stats, error) {
	const query = `
		SELECT
			(SELECT COUNT(*) FROM users),
			(SELECT COUNT(*) FROM referrals WHERE is_completed = TRUE),
			(SELECT COALESCE(SUM(balance), 0) FROM users),
			(SELECT COUNT(*) FROM withdrawals WHERE status = 'pending')
	`

	var (
		stats    domain.Stats
		earnings int64
	)
	if err := r.db.QueryRowContext(ctx, query).Scan(
		&stats.TotalUsers,
		&stats.TotalReferrals,
		&earnings,
		&stats.PendingWithdrawals,
	); err != nil {
		if r.log != nil {
			r.log.Error("failed to compute stats", slog.Any("error", err))
		}
		return nil, fmt.Errorf("select stats: %w", err)
	}

	stats.TotalEarnings = domain.Cents(earnings)
	return &stats, nil
}

// TopReferrers returns users with at least one referral ordered by
// total_referrals descending, bounded by limit.
func (r *statsRepository) TopReferrers(ctx context.Context, limit int) ([]*domain.TopReferrer, error) {
	if limit <= 0 {
		limit = 10
	}

	const query = `
		SELECT id, COALESCE(NULLIF(username, ''), first_name), total_referrals, balance
		FROM users
		WHERE total_referrals > 0
		ORDER BY total_referrals DESC, id
		LIMIT $1
	`

	rows, err := r.db.QueryContext(ctx, query, limit)
	if err != nil {
		return nil, fmt.Errorf("select top referrers: %w", err)
	}
	defer rows.Close()

	var out []*domain.TopReferrer
	for rows.Next() {
		var (
			item    domain.TopReferrer
			balance int64
		)
		if err := rows.Scan(&item.ID, &item.Username, &item.Referrals, &balance); err != nil {
			return nil, fmt.Errorf("scan top referrer: %w", err)
		}
		item.Balance = domain.Cents(balance)
		out = append(out, &item)
	}

	return out, rows.Err()
}
