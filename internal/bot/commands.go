package bot

// Command constants for Telegram bot commands.
const (
	CommandStart   = "/start"
	CommandRefer   = "/refer"
	CommandHistory = "/history"
	CommandBalance = "/balance"
	CommandSupport = "/support"
)

// Callback constants for inline button interactions.
const (
	CallbackPlayGame       = "play_game"
	CallbackRefer          = "refer"
	CallbackWithdraw       = "withdraw"
	CallbackWithdrawMethod = "withdraw_"
)
