package repository

import (
	"database/sql"
	"fmt"

	"github.com/marketbet/referral-bot/internal/domain"
)

// prefixedUserColumns renders the user column list qualified with a table
// alias, for LEFT JOIN projections.
func prefixedUserColumns(alias string) string {
	return fmt.Sprintf(`%[1]s.id, %[1]s.telegram_id, %[1]s.username, %[1]s.first_name,
		%[1]s.last_name, %[1]s.balance, %[1]s.total_referrals, %[1]s.has_played_once,
		%[1]s.is_blocked, %[1]s.referred_by, %[1]s.joined_at, %[1]s.last_active_at`, alias)
}

// nullableUser scans the user side of a LEFT JOIN, where every column may
// be NULL when the joined row is absent.
type nullableUser struct {
	id             sql.NullInt64
	telegramID     sql.NullString
	username       sql.NullString
	firstName      sql.NullString
	lastName       sql.NullString
	balance        sql.NullInt64
	totalReferrals sql.NullInt64
	hasPlayedOnce  sql.NullBool
	isBlocked      sql.NullBool
	referredBy     sql.NullInt64
	joinedAt       sql.NullTime
	lastActiveAt   sql.NullTime
}

func (n *nullableUser) targets() []any {
	return []any{
		&n.id,
		&n.telegramID,
		&n.username,
		&n.firstName,
		&n.lastName,
		&n.balance,
		&n.totalReferrals,
		&n.hasPlayedOnce,
		&n.isBlocked,
		&n.referredBy,
		&n.joinedAt,
		&n.lastActiveAt,
	}
}

func (n *nullableUser) value() *domain.User {
	if !n.id.Valid {
		return nil
	}

	user := &domain.User{
		ID:             n.id.Int64,
		TelegramID:     n.telegramID.String,
		Username:       n.username.String,
		FirstName:      n.firstName.String,
		LastName:       n.lastName.String,
		Balance:        domain.Cents(n.balance.Int64),
		TotalReferrals: int(n.totalReferrals.Int64),
		HasPlayedOnce:  n.hasPlayedOnce.Bool,
		IsBlocked:      n.isBlocked.Bool,
		JoinedAt:       n.joinedAt.Time,
		LastActiveAt:   n.lastActiveAt.Time,
	}
	if n.referredBy.Valid {
		user.ReferredBy = &n.referredBy.Int64
	}

	return user
}
