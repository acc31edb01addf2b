package bot

import (
	"fmt"

	tele "gopkg.in/telebot.v4"
)

// recoverPanics turns a panicking handler into an error for OnError.
func (b *Bot) recoverPanics(next tele.HandlerFunc) tele.HandlerFunc {
	return func(c tele.Context) (err error) {
		defer func() {
			if r := recover(); r != nil {
				err = fmt.Errorf("handler panic: %v", r)
			}
		}()
		return next(c)
	}
}

// touchUser records the sender so limits and admin stats know about them.
func (b *Bot) touchUser(next tele.HandlerFunc) tele.HandlerFunc {
	return func(c tele.Context) error {
		u := c.Sender()
		if u == nil || u.IsBot {
			return nil
		}
		if b.deps.Users != nil {
			ctx, cancel := b.requestContext()
			err := b.deps.Users.Touch(ctx, u.ID, u.Username)
			cancel()
			if err != nil {
				b.log.Warn().Err(err).Int64("user_id", u.ID).Msg("failed to touch user")
			}
		}
		return next(c)
	}
}
