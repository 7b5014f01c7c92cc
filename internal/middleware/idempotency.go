// Package middleware holds handler middlewares shared between the bot's
// update pipeline and supporting infrastructure.
package middleware

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"time"

	telebot "gopkg.in/telebot.v3"

	"github.com/marketbet/referral-bot/internal/bot/handlers"
	"github.com/marketbet/referral-bot/internal/idempotency"
)

const defaultDedupTTL = 24 * time.Hour

// Idempotency ensures handlers execute at most once per Telegram update
// key, so redelivered updates cannot double-credit the ledger.
func Idempotency(manager idempotency.Manager, ttl time.Duration, log *slog.Logger) handlers.Middleware {
	if manager == nil {
		return func(next handlers.Handler) handlers.Handler {
			return next
		}
	}
	if ttl <= 0 {
		ttl = defaultDedupTTL
	}
	if log == nil {
		log = slog.Default()
	}

	return func(next handlers.Handler) handlers.Handler {
		if next == nil {
			return nil
		}

		return func(c telebot.Context) error {
			key := extractKey(c)
			if key == "" {
				return next(c)
			}

			_, err := manager.Execute(context.Background(), key, ttl, func(execCtx context.Context) (any, error) {
				return nil, next(c)
			})
			if err != nil {
				if errors.Is(err, idempotency.ErrInProgress) {
					return nil
				}

				log.Error("deduplicated handler failed", slog.String("key", key), slog.Any("error", err))
				return err
			}

			return nil
		}
	}
}

func extractKey(c telebot.Context) string {
	if c == nil {
		return ""
	}

	if update := c.Update(); update.ID != 0 {
		return idempotency.UpdateKey(update.ID)
	}

	if cb := c.Callback(); cb != nil && cb.ID != "" {
		return fmt.Sprintf("cb:%s", cb.ID)
	}

	if msg := c.Message(); msg != nil && msg.ID != 0 && msg.Chat != nil {
		return fmt.Sprintf("msg:%d:%d", msg.Chat.ID, msg.ID)
	}

	return ""
}
