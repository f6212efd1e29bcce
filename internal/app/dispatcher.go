// internal/app/dispatcher.go
package app

import (
	"context"
	"math"

	domainTelegram "otp_forwarder_bot/internal/domain/telegram"

	"github.com/sirupsen/logrus"
	"golang.org/x/time/rate"
	"gopkg.in/telebot.v3"
)

// Notifier delivers a rendered message and reports whether the endpoint acknowledged it.
type Notifier interface {
	Dispatch(ctx context.Context, text string) bool
}

// Dispatcher sends HTML messages to the configured chat, one attempt per call.
type Dispatcher struct {
	client  domainTelegram.Client
	chatID  int64
	limiter *rate.Limiter
	logger  *logrus.Entry
}

// NewDispatcher creates a dispatcher. ratePerSec <= 0 disables rate limiting.
func NewDispatcher(client domainTelegram.Client, chatID int64, ratePerSec float64, logger *logrus.Entry) *Dispatcher {
	limit := rate.Limit(ratePerSec)
	if ratePerSec <= 0 {
		limit = rate.Inf
	}
	burst := int(math.Max(1, math.Ceil(ratePerSec)))
	return &Dispatcher{
		client:  client,
		chatID:  chatID,
		limiter: rate.NewLimiter(limit, burst),
		logger:  logger.WithField("chat_id", chatID),
	}
}

// Dispatch never returns an error; failures are logged and reported as false.
func (d *Dispatcher) Dispatch(ctx context.Context, text string) bool {
	if err := d.limiter.Wait(ctx); err != nil {
		d.logger.WithError(err).Warn("Dispatch cancelled while waiting for rate limiter")
		return false
	}

	err := d.client.SendMessage(d.chatID, text, &telebot.SendOptions{
		ParseMode:             telebot.ModeHTML,
		DisableWebPagePreview: true,
	})
	if err != nil {
		d.logger.WithError(err).Error("Telegram API rejected message")
		return false
	}
	d.logger.Debug("Telegram message sent successfully")
	return true
}
