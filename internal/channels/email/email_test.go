package email

import (
	"context"
	"errors"
	"mime"
	"net/smtp"
	"strings"
	"testing"

	"github.com/BearBump/busnoti/internal/models"
	"github.com/stretchr/testify/require"
)

func TestChannel_IsAvailable(t *testing.T) {
	c := New(Config{Host: "smtp.example.com", Username: "bot@example.com"})
	require.Equal(t, models.ChannelEmail, c.Type())
	require.True(t, c.IsAvailable(models.NotificationTarget{Email: "u@example.com"}))
	require.False(t, c.IsAvailable(models.NotificationTarget{}))
	require.False(t, New(Config{}).IsAvailable(models.NotificationTarget{Email: "u@example.com"}))
}

func TestChannel_Send(t *testing.T) {
	c := New(Config{Host: "smtp.example.com", Port: 2525, Username: "bot", Password: "pw", From: "noreply@busnoti.dev"})

	var (
		gotAddr string
		gotAuth smtp.Auth
		gotFrom string
		gotTo   []string
		gotMsg  string
	)
	c.sendMail = func(addr string, a smtp.Auth, from string, to []string, msg []byte) error {
		gotAddr, gotAuth, gotFrom, gotTo, gotMsg = addr, a, from, to, string(msg)
		return nil
	}

	stops := 2
	err := c.Send(context.Background(), models.NotificationTarget{UserID: "u1", Email: "u@example.com"}, models.AlertMessage{
		Title: "버스 도착 알림",
		Body:  "버스 도착 알림: 1번 버스가 약 8분 후 도착합니다",
		Data:  models.AlertData{RouteName: "1", PlateNo: "<A>", PredictTimeMin: 8, RemainingStops: &stops},
	})
	require.NoError(t, err)

	require.Equal(t, "smtp.example.com:2525", gotAddr)
	require.NotNil(t, gotAuth)
	require.Equal(t, "noreply@busnoti.dev", gotFrom)
	require.Equal(t, []string{"u@example.com"}, gotTo)

	headers, body, ok := strings.Cut(gotMsg, "\r\n\r\n")
	require.True(t, ok)
	require.Contains(t, headers, "To: u@example.com")
	require.Contains(t, headers, "Content-Type: text/html")

	var subject string
	for _, h := range strings.Split(headers, "\r\n") {
		if v, ok := strings.CutPrefix(h, "Subject: "); ok {
			subject = v
		}
	}
	decoded, err := new(mime.WordDecoder).DecodeHeader(subject)
	require.NoError(t, err)
	require.Equal(t, "버스 도착 알림", decoded)

	require.Contains(t, body, "1번 버스가 약 8분 후 도착합니다")
	require.Contains(t, body, "&lt;A&gt;")
	require.Contains(t, body, "남은 정류장")
}

func TestChannel_Send_Errors(t *testing.T) {
	c := New(Config{Host: "smtp.example.com", From: "noreply@busnoti.dev"})
	c.sendMail = func(string, smtp.Auth, string, []string, []byte) error { return errors.New("550 mailbox unavailable") }

	err := c.Send(context.Background(), models.NotificationTarget{Email: "u@example.com"}, models.AlertMessage{})
	require.Error(t, err)
	require.Contains(t, err.Error(), "smtp send")

	require.Error(t, c.Send(context.Background(), models.NotificationTarget{}, models.AlertMessage{}))

	ctx, cancel := context.WithCancel(context.Background())
	cancel()
	require.ErrorIs(t, c.Send(ctx, models.NotificationTarget{Email: "u@example.com"}, models.AlertMessage{}), context.Canceled)
}
