package lifecycle

import (
	"context"

	tgbotapi "github.com/go-telegram-bot-api/telegram-bot-api/v5"
	"github.com/sethvargo/go-retry"
	"github.com/sirupsen/logrus"
	"github.com/tonkeeper/geocode-bot/internal/handler"
	"github.com/tonkeeper/geocode-bot/internal/telegram"
	"github.com/tonkeeper/geocode-bot/internal/utils"
)

// poll pulls updates until ctx is cancelled and returns ctx's error.
func (c *Controller) poll(ctx context.Context) error {
	log := logrus.WithField("prefix", "poll")
	pause := retry.NewConstant(c.opts.PollPause)
	offset := 0

	for {
		var updates []tgbotapi.Update
		err := retry.Do(ctx, pause, func(ctx context.Context) error {
			var err error
			updates, err = c.messenger.GetUpdates(ctx, offset, c.opts.PollTimeout)
			if err == nil {
				return nil
			}
			if ctx.Err() != nil {
				return ctx.Err()
			}
			log.WithError(err).Warn("getUpdates failed")
			return retry.RetryableError(err)
		})
		if err != nil {
			return err
		}

		offset = telegram.NextOffset(offset, updates)
		for _, update := range updates {
			if err := ctx.Err(); err != nil {
				return err
			}
			traceID := handler.ParseOrGenerateTraceID("")
			utils.Recover("HandleUpdate", func() {
				c.handler.HandleUpdate(ctx, handler.SourcePolling, traceID, update)
			})
		}
	}
}
