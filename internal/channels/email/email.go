// Package email: SMTP канал с HTML-телом письма.
package email

import (
	"bytes"
	"context"
	"fmt"
	"html/template"
	"mime"
	"net"
	"net/smtp"
	"strconv"

	"github.com/BearBump/busnoti/internal/models"
	"github.com/pkg/errors"
)

type Config struct {
	Host     string
	Port     int
	Username string
	Password string
	From     string
}

type sendMailFunc func(addr string, a smtp.Auth, from string, to []string, msg []byte) error

type Channel struct {
	cfg      Config
	sendMail sendMailFunc
}

func New(cfg Config) *Channel {
	if cfg.Port <= 0 {
		cfg.Port = 587
	}
	if cfg.From == "" {
		cfg.From = cfg.Username
	}
	return &Channel{cfg: cfg, sendMail: smtp.SendMail}
}

func (c *Channel) Type() string { return models.ChannelEmail }

func (c *Channel) IsAvailable(target models.NotificationTarget) bool {
	return c.cfg.Host != "" && c.cfg.From != "" && target.Email != ""
}

var bodyTmpl = template.Must(template.New("alert").Parse(`<!DOCTYPE html>
<html><body style="font-family: sans-serif">
<h2>{{.Title}}</h2>
<p>{{.Body}}</p>
<table>
<tr><td>노선</td><td>{{.Data.RouteName}}</td></tr>
<tr><td>차량번호</td><td>{{.Data.PlateNo}}</td></tr>
<tr><td>도착 예정</td><td>약 {{.Data.PredictTimeMin}}분</td></tr>
{{- if .Data.RemainingStops}}
<tr><td>남은 정류장</td><td>{{.Data.RemainingStops}}</td></tr>
{{- end}}
</table>
</body></html>
`))

func (c *Channel) Send(ctx context.Context, target models.NotificationTarget, msg models.AlertMessage) error {
	if !c.IsAvailable(target) {
		return errors.New("email transport or recipient is not configured")
	}
	if err := ctx.Err(); err != nil {
		return err
	}

	raw, err := c.buildMessage(target.Email, msg)
	if err != nil {
		return err
	}

	var auth smtp.Auth
	if c.cfg.Username != "" {
		auth = smtp.PlainAuth("", c.cfg.Username, c.cfg.Password, c.cfg.Host)
	}
	addr := net.JoinHostPort(c.cfg.Host, strconv.Itoa(c.cfg.Port))
	if err := c.sendMail(addr, auth, c.cfg.From, []string{target.Email}, raw); err != nil {
		return errors.Wrap(err, "smtp send")
	}
	return nil
}

func (c *Channel) buildMessage(to string, msg models.AlertMessage) ([]byte, error) {
	var body bytes.Buffer
	if err := bodyTmpl.Execute(&body, msg); err != nil {
		return nil, errors.Wrap(err, "render email body")
	}

	var b bytes.Buffer
	fmt.Fprintf(&b, "From: %s\r\n", c.cfg.From)
	fmt.Fprintf(&b, "To: %s\r\n", to)
	fmt.Fprintf(&b, "Subject: %s\r\n", mime.BEncoding.Encode("utf-8", msg.Title))
	b.WriteString("MIME-Version: 1.0\r\n")
	b.WriteString("Content-Type: text/html; charset=\"utf-8\"\r\n")
	b.WriteString("\r\n")
	b.Write(body.Bytes())
	return b.Bytes(), nil
}
