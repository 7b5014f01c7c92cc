package domain

import "time"

// BotSettings is the configuration row governing bonus and reward
// amounts. Exactly one row is active at any time; replacing settings
// deactivates the previous row and inserts a new one, keeping history.
type BotSettings struct {
	ID               int64
	WelcomeMessage   string
	WelcomePhotoURL  string
	PlayButtonURL    string
	NewUserBonus     Cents
	ReferralReward   Cents
	MinWithdrawal    Cents
	ReferralsForCode int
	IsActive         bool
	UpdatedAt        time.Time
}

// DefaultSettings mirrors the seed values used when no settings row
// exists yet.
func DefaultSettings() *BotSettings {
	return &BotSettings{
		WelcomeMessage: "🎉 Welcome to our referral bot!\n\n" +
			"Start earning by referring friends and get rewards for every successful referral!",
		PlayButtonURL:    "",
		NewUserBonus:     100,
		ReferralReward:   10,
		MinWithdrawal:    100,
		ReferralsForCode: 10,
		IsActive:         true,
	}
}
