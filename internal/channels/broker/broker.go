// Package broker: канал, публикующий уведомления в Kafka для внешних потребителей.
package broker

import (
	"context"
	"encoding/json"
	"time"

	"github.com/BearBump/busnoti/internal/broker/messages"
	"github.com/BearBump/busnoti/internal/models"
	"github.com/google/uuid"
	"github.com/pkg/errors"
)

type Producer interface {
	Publish(ctx context.Context, topic string, key, value []byte) error
}

type Channel struct {
	producer Producer
	topic    string
	now      func() time.Time
}

func New(producer Producer, topic string) *Channel {
	return &Channel{producer: producer, topic: topic, now: time.Now}
}

func (c *Channel) Type() string { return models.ChannelKafka }

// IsAvailable не зависит от получателя: событие уходит в топик, адресат указан в user_id.
func (c *Channel) IsAvailable(models.NotificationTarget) bool {
	return c.producer != nil && c.topic != ""
}

func (c *Channel) Send(ctx context.Context, target models.NotificationTarget, msg models.AlertMessage) error {
	ev := messages.ArrivalAlert{
		AlertID:        uuid.NewString(),
		UserID:         target.UserID,
		SubscriptionID: msg.Data.SubscriptionID,
		RouteID:        msg.Data.RouteID,
		RouteName:      msg.Data.RouteName,
		PlateNo:        msg.Data.PlateNo,
		PredictTimeMin: msg.Data.PredictTimeMin,
		PredictTimeSec: msg.Data.PredictTimeSec,
		RemainingStops: msg.Data.RemainingStops,
		Title:          msg.Title,
		Body:           msg.Body,
		CreatedAt:      c.now().UTC(),
	}
	b, err := json.Marshal(ev)
	if err != nil {
		return errors.Wrap(err, "marshal kafka msg")
	}
	return c.producer.Publish(ctx, c.topic, []byte(ev.SubscriptionID), b)
}
