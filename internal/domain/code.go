package domain

import "time"

// CodeLength is the exact length of a redemption code.
const CodeLength = 14

// UniqueCode is a redemption code minted together with a withdrawal
// debit. The code is globally unique and immutable once stored.
type UniqueCode struct {
	ID          int64
	UserID      int64
	Code        string
	GeneratedAt time.Time
}

// UniqueCodeWithUser is a code joined with its owner.
type UniqueCodeWithUser struct {
	UniqueCode
	User *User
}
