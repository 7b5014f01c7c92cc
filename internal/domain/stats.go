package domain

// Stats is the dashboard aggregate view. It reflects the ledger store at
// query time with no snapshot isolation guarantee.
type Stats struct {
	TotalUsers         int   `json:"totalUsers"`
	TotalReferrals     int   `json:"totalReferrals"`
	TotalEarnings      Cents `json:"totalEarnings"`
	PendingWithdrawals int   `json:"pendingWithdrawals"`
}

// TopReferrer is one row of the top-referrers leaderboard.
type TopReferrer struct {
	ID        int64  `json:"id"`
	Username  string `json:"username"`
	Referrals int    `json:"referrals"`
	Balance   Cents  `json:"balance"`
}
