package domain

import "time"

// User represents a bot participant stored in the database.
// TelegramID is unique and immutable. ReferredBy is resolved once at
// registration time and never mutated afterwards.
type User struct {
	ID             int64
	TelegramID     string
	Username       string
	FirstName      string
	LastName       string
	Balance        Cents
	TotalReferrals int
	HasPlayedOnce  bool
	IsBlocked      bool
	ReferredBy     *int64
	JoinedAt       time.Time
	LastActiveAt   time.Time
}

// DisplayName returns the username when present, otherwise the first name.
func (u *User) DisplayName() string {
	if u == nil {
		return ""
	}
	if u.Username != "" {
		return u.Username
	}
	return u.FirstName
}

// Profile carries the identity fields supplied by the chat transport on
// first contact.
type Profile struct {
	Username  string
	FirstName string
	LastName  string
}
