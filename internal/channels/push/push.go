// Package push: Web Push (VAPID) канал.
package push

import (
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"

	"github.com/BearBump/busnoti/internal/models"
	webpush "github.com/SherClockHolmes/webpush-go"
	"github.com/pkg/errors"
)

type Config struct {
	VAPIDPublicKey  string
	VAPIDPrivateKey string
	// Subject: mailto: или https: контакт отправителя.
	Subject string
	TTL     int
}

type sendFunc func(ctx context.Context, payload []byte, sub *webpush.Subscription, opts *webpush.Options) (*http.Response, error)

type Channel struct {
	cfg  Config
	send sendFunc
}

func New(cfg Config) *Channel {
	if cfg.TTL <= 0 {
		cfg.TTL = 60
	}
	return &Channel{cfg: cfg, send: webpush.SendNotificationWithContext}
}

func (c *Channel) Type() string { return models.ChannelPush }

// IsAvailable: нужны VAPID-ключи сервера и полная push-подписка пользователя.
func (c *Channel) IsAvailable(target models.NotificationTarget) bool {
	if c.cfg.VAPIDPublicKey == "" || c.cfg.VAPIDPrivateKey == "" {
		return false
	}
	p := target.Push
	return p != nil && p.Endpoint != "" && p.P256dh != "" && p.Auth != ""
}

type payload struct {
	Title string           `json:"title"`
	Body  string           `json:"body"`
	Data  models.AlertData `json:"data"`
}

func (c *Channel) Send(ctx context.Context, target models.NotificationTarget, msg models.AlertMessage) error {
	if !c.IsAvailable(target) {
		return errors.New("push subscription is not configured")
	}
	b, err := json.Marshal(payload{Title: msg.Title, Body: msg.Body, Data: msg.Data})
	if err != nil {
		return errors.Wrap(err, "marshal push payload")
	}

	resp, err := c.send(ctx, b, &webpush.Subscription{
		Endpoint: target.Push.Endpoint,
		Keys: webpush.Keys{
			P256dh: target.Push.P256dh,
			Auth:   target.Push.Auth,
		},
	}, &webpush.Options{
		Subscriber:      c.cfg.Subject,
		VAPIDPublicKey:  c.cfg.VAPIDPublicKey,
		VAPIDPrivateKey: c.cfg.VAPIDPrivateKey,
		TTL:             c.cfg.TTL,
		Urgency:         webpush.UrgencyHigh,
	})
	if err != nil {
		return errors.Wrap(err, "web push send")
	}
	defer resp.Body.Close()
	_, _ = io.Copy(io.Discard, resp.Body)

	if resp.StatusCode/100 != 2 {
		// 404/410: подписка протухла; чистить её должен CRUD-слой.
		return fmt.Errorf("web push: push service responded %d", resp.StatusCode)
	}
	return nil
}
