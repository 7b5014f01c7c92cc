package domain

import (
	"encoding/json"
	"time"
)

// WithdrawalStatus enumerates the lifecycle of a payout request.
// A withdrawal is terminal once it leaves pending.
type WithdrawalStatus string

const (
	WithdrawalPending  WithdrawalStatus = "pending"
	WithdrawalApproved WithdrawalStatus = "approved"
	WithdrawalRejected WithdrawalStatus = "rejected"
)

// Valid reports whether s is a known terminal decision.
func (s WithdrawalStatus) ValidDecision() bool {
	return s == WithdrawalApproved || s == WithdrawalRejected
}

// Payment methods offered by the bot withdrawal flow.
const (
	MethodBank   = "bank"
	MethodCrypto = "crypto"
	MethodOther  = "other"
)

// Withdrawal is a payout request. Amount snapshots the user's balance at
// request time; the balance is debited when the row is created, so
// approval is a bookkeeping decision rather than a funds-moving event.
type Withdrawal struct {
	ID             int64
	UserID         int64
	Amount         Cents
	Status         WithdrawalStatus
	PaymentMethod  string
	PaymentDetails json.RawMessage
	RequestedAt    time.Time
	ProcessedAt    *time.Time
	Notes          string
}

// WithdrawalWithUser is a withdrawal joined with the requesting user.
type WithdrawalWithUser struct {
	Withdrawal
	User *User
}
