// Package console: канал, который пишет уведомление в лог. Доступен всегда.
package console

import (
	"context"
	"log/slog"

	"github.com/BearBump/busnoti/internal/models"
)

type Channel struct {
	log *slog.Logger
}

func New(log *slog.Logger) *Channel {
	if log == nil {
		log = slog.Default()
	}
	return &Channel{log: log}
}

func (c *Channel) Type() string { return models.ChannelConsole }

func (c *Channel) IsAvailable(models.NotificationTarget) bool { return true }

func (c *Channel) Send(ctx context.Context, target models.NotificationTarget, msg models.AlertMessage) error {
	c.log.InfoContext(ctx, msg.Title,
		"user_id", target.UserID,
		"subscription_id", msg.Data.SubscriptionID,
		"route_id", msg.Data.RouteID,
		"plate_no", msg.Data.PlateNo,
		"predict_time_min", msg.Data.PredictTimeMin,
		"body", msg.Body,
	)
	return nil
}
