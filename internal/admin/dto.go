package admin

import (
	"encoding/json"
	"time"

	"github.com/marketbet/referral-bot/internal/domain"
)

type userResponse struct {
	ID             int64        `json:"id"`
	TelegramID     string       `json:"telegramId"`
	Username       string       `json:"username,omitempty"`
	FirstName      string       `json:"firstName,omitempty"`
	LastName       string       `json:"lastName,omitempty"`
	Balance        domain.Cents `json:"balance"`
	TotalReferrals int          `json:"totalReferrals"`
	HasPlayedOnce  bool         `json:"hasPlayedOnce"`
	IsBlocked      bool         `json:"isBlocked"`
	ReferredBy     *int64       `json:"referredBy,omitempty"`
	JoinedAt       time.Time    `json:"joinedAt"`
	LastActiveAt   time.Time    `json:"lastActiveAt"`
}

func toUserResponse(u *domain.User) userResponse {
	return userResponse{
		ID:             u.ID,
		TelegramID:     u.TelegramID,
		Username:       u.Username,
		FirstName:      u.FirstName,
		LastName:       u.LastName,
		Balance:        u.Balance,
		TotalReferrals: u.TotalReferrals,
		HasPlayedOnce:  u.HasPlayedOnce,
		IsBlocked:      u.IsBlocked,
		ReferredBy:     u.ReferredBy,
		JoinedAt:       u.JoinedAt,
		LastActiveAt:   u.LastActiveAt,
	}
}

type withdrawalResponse struct {
	ID             int64           `json:"id"`
	UserID         int64           `json:"userId"`
	Username       string          `json:"username,omitempty"`
	Amount         domain.Cents    `json:"amount"`
	Status         string          `json:"status"`
	PaymentMethod  string          `json:"paymentMethod"`
	PaymentDetails json.RawMessage `json:"paymentDetails,omitempty"`
	RequestedAt    time.Time       `json:"requestedAt"`
	ProcessedAt    *time.Time      `json:"processedAt,omitempty"`
	Notes          string          `json:"notes,omitempty"`
}

func toWithdrawalResponse(w *domain.Withdrawal, user *domain.User) withdrawalResponse {
	resp := withdrawalResponse{
		ID:             w.ID,
		UserID:         w.UserID,
		Amount:         w.Amount,
		Status:         string(w.Status),
		PaymentMethod:  w.PaymentMethod,
		PaymentDetails: w.PaymentDetails,
		RequestedAt:    w.RequestedAt,
		ProcessedAt:    w.ProcessedAt,
		Notes:          w.Notes,
	}
	if user != nil {
		resp.Username = user.DisplayName()
	}
	return resp
}

type codeResponse struct {
	ID          int64     `json:"id"`
	UserID      int64     `json:"userId"`
	Username    string    `json:"username,omitempty"`
	Code        string    `json:"code"`
	GeneratedAt time.Time `json:"generatedAt"`
}

func toCodeResponse(c *domain.UniqueCodeWithUser) codeResponse {
	resp := codeResponse{
		ID:          c.ID,
		UserID:      c.UserID,
		Code:        c.Code,
		GeneratedAt: c.GeneratedAt,
	}
	if c.User != nil {
		resp.Username = c.User.DisplayName()
	}
	return resp
}

type referralResponse struct {
	ID          int64      `json:"id"`
	ReferredID  int64      `json:"referredId"`
	Referred    string     `json:"referred,omitempty"`
	IsCompleted bool       `json:"isCompleted"`
	CreatedAt   time.Time  `json:"createdAt"`
	CompletedAt *time.Time `json:"completedAt,omitempty"`
}

func toReferralResponse(r *domain.ReferralWithUser) referralResponse {
	resp := referralResponse{
		ID:          r.ID,
		ReferredID:  r.ReferredID,
		IsCompleted: r.IsCompleted,
		CreatedAt:   r.CreatedAt,
		CompletedAt: r.CompletedAt,
	}
	if r.Referred != nil {
		resp.Referred = r.Referred.DisplayName()
	}
	return resp
}

type activityResponse struct {
	ID        int64           `json:"id"`
	Type      string          `json:"type"`
	UserID    *int64          `json:"userId,omitempty"`
	Username  string          `json:"username,omitempty"`
	Data      json.RawMessage `json:"data,omitempty"`
	CreatedAt time.Time       `json:"createdAt"`
}

func toActivityResponse(a *domain.ActivityWithUser) activityResponse {
	resp := activityResponse{
		ID:        a.ID,
		Type:      string(a.Type),
		UserID:    a.UserID,
		Data:      a.Data,
		CreatedAt: a.CreatedAt,
	}
	if a.User != nil {
		resp.Username = a.User.DisplayName()
	}
	return resp
}

type settingsRequest struct {
	WelcomeMessage   string       `json:"welcomeMessage"`
	WelcomePhotoURL  string       `json:"welcomePhotoUrl"`
	PlayButtonURL    string       `json:"playButtonUrl"`
	NewUserBonus     domain.Cents `json:"newUserBonus"`
	ReferralReward   domain.Cents `json:"referralReward"`
	MinWithdrawal    domain.Cents `json:"minWithdrawal"`
	ReferralsForCode int          `json:"referralsForCode"`
}

type settingsResponse struct {
	ID               int64        `json:"id"`
	WelcomeMessage   string       `json:"welcomeMessage"`
	WelcomePhotoURL  string       `json:"welcomePhotoUrl,omitempty"`
	PlayButtonURL    string       `json:"playButtonUrl,omitempty"`
	NewUserBonus     domain.Cents `json:"newUserBonus"`
	ReferralReward   domain.Cents `json:"referralReward"`
	MinWithdrawal    domain.Cents `json:"minWithdrawal"`
	ReferralsForCode int          `json:"referralsForCode"`
	UpdatedAt        time.Time    `json:"updatedAt"`
}

func toSettingsResponse(s *domain.BotSettings) settingsResponse {
	return settingsResponse{
		ID:               s.ID,
		WelcomeMessage:   s.WelcomeMessage,
		WelcomePhotoURL:  s.WelcomePhotoURL,
		PlayButtonURL:    s.PlayButtonURL,
		NewUserBonus:     s.NewUserBonus,
		ReferralReward:   s.ReferralReward,
		MinWithdrawal:    s.MinWithdrawal,
		ReferralsForCode: s.ReferralsForCode,
		UpdatedAt:        s.UpdatedAt,
	}
}
