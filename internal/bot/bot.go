// Package bot wires the Telegram surface: telebot session, update
// routing, middleware chain, and the command handlers.
package bot

import (
	"fmt"
	"log/slog"

	telebot "gopkg.in/telebot.v3"

	"github.com/marketbet/referral-bot/internal/apperr"
	"github.com/marketbet/referral-bot/internal/bot/handlers"
	"github.com/marketbet/referral-bot/internal/bot/keyboard"
	"github.com/marketbet/referral-bot/internal/idempotency"
	"github.com/marketbet/referral-bot/internal/middleware"
	"github.com/marketbet/referral-bot/internal/repository"
	"github.com/marketbet/referral-bot/pkg/config"
)

// Stores bundles the read-side repositories the handlers query.
type Stores struct {
	Users       repository.UserRepository
	Referrals   repository.ReferralRepository
	Withdrawals repository.WithdrawalRepository
	Codes       repository.CodeRepository
}

// Bot wraps telebot.Bot with the routing and middleware stack.
type Bot struct {
	telebot    *telebot.Bot
	router     *Router
	keyboard   *keyboard.Builder
	errHandler *apperr.Handler
	log        *slog.Logger
}

// NewTelebot builds the underlying telebot session. It is separate from
// New so the session can back the notifier before the routing layer,
// which depends on the reward engine, exists.
func NewTelebot(cfg config.Config) (*telebot.Bot, error) {
	settings := telebot.Settings{
		Token: cfg.Bot.Token,
	}

	if cfg.Bot.Mode == "webhook" {
		settings.Poller = &telebot.Webhook{
			Listen: ":" + cfg.Bot.WebhookPort,
			Endpoint: &telebot.WebhookEndpoint{
				PublicURL: cfg.Bot.WebhookURL,
			},
		}
	} else {
		settings.Poller = &telebot.LongPoller{
			Timeout: cfg.Bot.Timeout,
		}
	}

	tb, err := telebot.NewBot(settings)
	if err != nil {
		return nil, fmt.Errorf("initialize telebot: %w", err)
	}

	return tb, nil
}

// New assembles the routing and middleware stack on top of an existing
// telebot session.
func New(
	tb *telebot.Bot,
	cfg config.Config,
	log *slog.Logger,
	ledger handlers.Ledger,
	stores Stores,
	dedup idempotency.Manager,
) *Bot {
	b := &Bot{
		telebot:    tb,
		router:     NewRouter(log),
		keyboard:   keyboard.NewBuilder(),
		errHandler: apperr.NewHandler(log, cfg.Sentry.Enabled),
		log:        log,
	}

	b.setupRouter(cfg, ledger, stores, dedup)
	b.registerTelebotHandlers()

	return b
}

// Start runs the telegram bot event loop.
func (b *Bot) Start() {
	if b.telebot != nil {
		b.telebot.Start()
	}
}

// Stop gracefully stops the telegram bot.
func (b *Bot) Stop() {
	if b.telebot == nil {
		return
	}

	b.log.Info("stopping telegram bot...")
	b.telebot.Stop()
}

// Telebot exposes the underlying telebot.Bot instance for integrations
// such as health checks and the notifier.
func (b *Bot) Telebot() *telebot.Bot {
	return b.telebot
}

func (b *Bot) username() string {
	if b.telebot != nil && b.telebot.Me != nil {
		return b.telebot.Me.Username
	}
	return "unknown_bot"
}

func (b *Bot) setupRouter(cfg config.Config, ledger handlers.Ledger, stores Stores, dedup idempotency.Manager) {
	b.router.Use(RecoveryMiddleware(b.log, b.errHandler))
	b.router.Use(middleware.Idempotency(dedup, cfg.Dedup.TTL, b.log))
	b.router.Use(ErrorHandlingMiddleware(b.errHandler))
	b.router.Use(LoggingMiddleware(b.log))
	b.router.Use(middleware.Metrics)
	b.router.Use(LastActiveMiddleware(stores.Users))

	refer := handlers.NewReferHandler(ledger, stores.Users, b.username)

	b.router.RegisterCommand(CommandStart, handlers.NewStartHandler(ledger, b.keyboard, b.log))
	b.router.RegisterCommand(CommandRefer, refer)
	b.router.RegisterCommand(CommandHistory, handlers.NewHistoryHandler(stores.Users, stores.Referrals, stores.Withdrawals, stores.Codes))
	b.router.RegisterCommand(CommandBalance, handlers.NewBalanceHandler(ledger, stores.Users, b.keyboard))
	b.router.RegisterCommand(CommandSupport, handlers.NewSupportHandler(cfg.Bot.SupportContact))

	b.router.RegisterCallback(CallbackPlayGame, handlers.NewPlayHandler(ledger, stores.Users, b.keyboard, cfg.Bot.WebsiteURL, b.log))
	b.router.RegisterCallback(CallbackRefer, handlers.CallbackHandler(refer))
	b.router.RegisterCallback(CallbackWithdraw, handlers.NewWithdrawHandler(ledger, stores.Users, b.keyboard))
	b.router.RegisterCallback(CallbackWithdrawMethod, handlers.NewWithdrawMethodHandler(ledger, stores.Users))

	b.router.SetDefault(handlers.NewFallbackHandler())
}

func (b *Bot) registerTelebotHandlers() {
	if b.telebot == nil {
		return
	}

	b.telebot.Handle(telebot.OnText, b.router.Route)
	b.telebot.Handle(telebot.OnCallback, func(c telebot.Context) error {
		// Acknowledge the button press before doing any work.
		_ = c.Respond()
		return b.router.Route(c)
	})
}
