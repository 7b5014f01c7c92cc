package domain

import "time"

// Referral links a referrer to a user they invited. A referred user
// appears in at most one referral record. IsCompleted and RewardPaid are
// one-way flags set when the referred user performs their first play.
type Referral struct {
	ID          int64
	ReferrerID  int64
	ReferredID  int64
	IsCompleted bool
	RewardPaid  bool
	CreatedAt   time.Time
	CompletedAt *time.Time
}

// ReferralWithUser is a referral joined with the referred user's profile,
// used by the history command and the admin API.
type ReferralWithUser struct {
	Referral
	Referred *User
}
