package domain

import (
	"encoding/json"
	"fmt"
	"time"
)

// ActivityType tags an audit trail entry.
type ActivityType string

const (
	ActivityNewUser           ActivityType = "new_user"
	ActivityReferralComplete  ActivityType = "referral_complete"
	ActivityWithdrawalRequest ActivityType = "withdrawal_request"
	ActivityCodeGenerated     ActivityType = "code_generated"
)

// ActivityLog is an append-only audit record. Data holds the per-type
// payload serialized as JSON; the shape is fixed by the activity type.
type ActivityLog struct {
	ID        int64
	Type      ActivityType
	UserID    *int64
	Data      json.RawMessage
	CreatedAt time.Time
}

// ActivityWithUser is an activity entry joined with the acting user.
type ActivityWithUser struct {
	ActivityLog
	User *User
}

// NewUserData is the payload for ActivityNewUser.
type NewUserData struct {
	TelegramID string `json:"telegram_id"`
	Username   string `json:"username,omitempty"`
}

// ReferralCompleteData is the payload for ActivityReferralComplete.
type ReferralCompleteData struct {
	ReferredID     int64 `json:"referred_id"`
	Reward         Cents `json:"reward"`
	TotalReferrals int   `json:"total_referrals"`
}

// WithdrawalRequestData is the payload for ActivityWithdrawalRequest.
type WithdrawalRequestData struct {
	WithdrawalID int64  `json:"withdrawal_id"`
	Amount       Cents  `json:"amount"`
	Method       string `json:"method"`
}

// CodeGeneratedData is the payload for ActivityCodeGenerated.
type CodeGeneratedData struct {
	Code   string `json:"code"`
	Amount Cents  `json:"amount"`
	Method string `json:"method"`
}

// MarshalActivityData serializes a typed activity payload.
func MarshalActivityData(v any) (json.RawMessage, error) {
	data, err := json.Marshal(v)
	if err != nil {
		return nil, fmt.Errorf("marshal activity data: %w", err)
	}
	return data, nil
}
