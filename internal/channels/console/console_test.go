package console

import (
	"bytes"
	"context"
	"encoding/json"
	"log/slog"
	"testing"

	"github.com/BearBump/busnoti/internal/models"
	"github.com/stretchr/testify/require"
)

func TestChannel_Send(t *testing.T) {
	var buf bytes.Buffer
	c := New(slog.New(slog.NewJSONHandler(&buf, nil)))

	require.Equal(t, models.ChannelConsole, c.Type())
	require.True(t, c.IsAvailable(models.NotificationTarget{}))

	err := c.Send(context.Background(), models.NotificationTarget{UserID: "u1"}, models.AlertMessage{
		Title: "버스 도착 알림",
		Body:  "버스 도착 알림: 1번 버스가 약 8분 후 도착합니다",
		Data:  models.AlertData{SubscriptionID: "s1", PlateNo: "A", PredictTimeMin: 8},
	})
	require.NoError(t, err)

	var line map[string]any
	require.NoError(t, json.Unmarshal(buf.Bytes(), &line))
	require.Equal(t, "버스 도착 알림", line["msg"])
	require.Equal(t, "u1", line["user_id"])
	require.Equal(t, "s1", line["subscription_id"])
	require.EqualValues(t, 8, line["predict_time_min"])
}
