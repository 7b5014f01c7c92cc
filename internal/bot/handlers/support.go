package handlers

import (
	"fmt"

	telebot "gopkg.in/telebot.v3"
)

// NewSupportHandler returns the /support handler.
func NewSupportHandler(supportContact string) Handler {
	return func(c telebot.Context) error {
		return c.Send(fmt.Sprintf(`🆘 Support Contact

For any issues or questions, please contact our support team:

👤 Support: %s

We'll get back to you as soon as possible!`, supportContact))
	}
}
