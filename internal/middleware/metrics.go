package middleware

import (
	"strings"
	"time"

	telebot "gopkg.in/telebot.v3"

	"github.com/marketbet/referral-bot/internal/bot/handlers"
	"github.com/marketbet/referral-bot/pkg/metrics"
)

// Metrics measures execution time and status for bot handlers, reporting them to Prometheus.
func Metrics(next handlers.Handler) handlers.Handler {
	if next == nil {
		return nil
	}

	return func(c telebot.Context) error {
		start := time.Now()
		err := next(c)

		status := "ok"
		if err != nil {
			status = "error"
		}

		metrics.RecordCommand(extractCommandName(c), status, time.Since(start))

		return err
	}
}

func extractCommandName(c telebot.Context) string {
	if c == nil {
		return "unknown"
	}

	if cb := c.Callback(); cb != nil && cb.Data != "" {
		return strings.TrimPrefix(cb.Data, "\f")
	}

	if text := c.Text(); text != "" {
		// Strip the payload so /start variants share one label.
		cmd, _, _ := strings.Cut(text, " ")
		return cmd
	}

	return "unknown"
}
