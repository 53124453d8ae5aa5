package notifications

import (
	"context"

	"github.com/BearBump/busnoti/internal/models"
)

// Channel: транспорт доставки. Новые каналы регистрируются в Dispatcher
// без изменений логики рассылки.
type Channel interface {
	Type() string
	// IsAvailable: есть ли у получателя всё нужное каналу (email, push-подписка).
	IsAvailable(target models.NotificationTarget) bool
	Send(ctx context.Context, target models.NotificationTarget, msg models.AlertMessage) error
}
