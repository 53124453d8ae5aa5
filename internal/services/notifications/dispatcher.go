package notifications

import (
	"context"
	"fmt"
	"log/slog"

	"github.com/BearBump/busnoti/internal/models"
)

type Dispatcher struct {
	channels map[string]Channel
}

func NewDispatcher(channels ...Channel) *Dispatcher {
	d := &Dispatcher{channels: make(map[string]Channel, len(channels))}
	for _, ch := range channels {
		d.Register(ch)
	}
	return d
}

// Register добавляет канал; канал того же типа заменяется.
func (d *Dispatcher) Register(ch Channel) {
	if ch == nil {
		return
	}
	d.channels[ch.Type()] = ch
}

func (d *Dispatcher) Channels() []string {
	out := make([]string, 0, len(d.channels))
	for t := range d.channels {
		out = append(out, t)
	}
	return out
}

// SendNotification пытается доставить msg в каждый запрошенный канал.
// Возвращает по одному результату на запрошенный тег в том же порядке; сбой или паника
// одного канала не мешает остальным.
func (d *Dispatcher) SendNotification(ctx context.Context, target models.NotificationTarget, msg models.AlertMessage, channels []string) []models.DeliveryResult {
	out := make([]models.DeliveryResult, 0, len(channels))
	for _, tag := range channels {
		out = append(out, models.DeliveryResult{Channel: tag, Success: d.sendOne(ctx, target, msg, tag)})
	}
	return out
}

func (d *Dispatcher) sendOne(ctx context.Context, target models.NotificationTarget, msg models.AlertMessage, tag string) (ok bool) {
	ch, found := d.channels[tag]
	if !found {
		slog.Warn("unknown notification channel", "channel", tag, "user_id", target.UserID)
		return false
	}

	defer func() {
		if r := recover(); r != nil {
			slog.Error("notification channel panic", "channel", tag, "user_id", target.UserID, "panic", fmt.Sprint(r))
			ok = false
		}
	}()

	if !ch.IsAvailable(target) {
		slog.Debug("notification channel unavailable for user", "channel", tag, "user_id", target.UserID)
		return false
	}
	if err := ch.Send(ctx, target, msg); err != nil {
		slog.Error("send notification", "channel", tag, "user_id", target.UserID, "error", err.Error())
		return false
	}
	return true
}
