package notifications

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/BearBump/busnoti/internal/models"
	"github.com/stretchr/testify/mock"
	"github.com/stretchr/testify/require"

	notifmocks "github.com/BearBump/busnoti/internal/services/notifications/mocks"
)

func newTestLedger(store Store) *Ledger {
	l := NewLedger(store, 0)
	l.now = func() time.Time { return time.Date(2026, 3, 2, 8, 10, 0, 0, time.UTC) }
	n := 0
	l.newID = func() string { n++; return "id-" + string(rune('0'+n)) }
	return l
}

func TestLedger_HasAlreadySent_Window(t *testing.T) {
	store := &notifmocks.MockStore{}
	l := newTestLedger(store)
	arrival := time.Date(2026, 3, 2, 8, 18, 0, 0, time.UTC)

	store.On("FindNotification", mock.Anything, "s1", "A", arrival.Add(-10*time.Minute), arrival.Add(10*time.Minute)).
		Return(&models.NotificationRecord{ID: "x"}, nil).Once()
	sent, err := l.HasAlreadySent(context.Background(), "s1", "A", arrival)
	require.NoError(t, err)
	require.True(t, sent)

	store.On("FindNotification", mock.Anything, "s1", "B", mock.Anything, mock.Anything).
		Return(nil, nil).Once()
	sent, err = l.HasAlreadySent(context.Background(), "s1", "B", arrival)
	require.NoError(t, err)
	require.False(t, sent)

	store.On("FindNotification", mock.Anything, "s1", "C", mock.Anything, mock.Anything).
		Return(nil, errors.New("db down")).Once()
	_, err = l.HasAlreadySent(context.Background(), "s1", "C", arrival)
	require.Error(t, err)

	store.AssertExpectations(t)
}

func TestLedger_CustomWindow(t *testing.T) {
	store := &notifmocks.MockStore{}
	l := NewLedger(store, 3*time.Minute)
	arrival := time.Date(2026, 3, 2, 8, 18, 0, 0, time.UTC)

	store.On("FindNotification", mock.Anything, "s1", "A", arrival.Add(-3*time.Minute), arrival.Add(3*time.Minute)).
		Return(nil, nil).Once()
	_, err := l.HasAlreadySent(context.Background(), "s1", "A", arrival)
	require.NoError(t, err)
	store.AssertExpectations(t)
}

func TestLedger_RecordNotification(t *testing.T) {
	store := &notifmocks.MockStore{}
	l := newTestLedger(store)
	arrival := time.Date(2026, 3, 2, 17, 18, 0, 0, time.FixedZone("KST", 9*3600))

	store.On("InsertNotification", mock.Anything, mock.MatchedBy(func(r *models.NotificationRecord) bool {
		return r.ID == "id-1" && r.SubscriptionID == "s1" && r.PlateNo == "A" &&
			r.Channel == models.ChannelPush &&
			r.PredictedArrivalAt.Equal(arrival) && r.PredictedArrivalAt.Location() == time.UTC &&
			r.SentAt.Equal(time.Date(2026, 3, 2, 8, 10, 0, 0, time.UTC))
	})).Return(nil).Once()

	rec, err := l.RecordNotification(context.Background(), "s1", "A", arrival, models.ChannelPush)
	require.NoError(t, err)
	require.Equal(t, "id-1", rec.ID)
	store.AssertExpectations(t)
}

func TestLedger_RecordResults_PerSuccessfulChannel(t *testing.T) {
	store := &notifmocks.MockStore{}
	l := newTestLedger(store)
	arrival := time.Date(2026, 3, 2, 8, 18, 0, 0, time.UTC)

	var channels []string
	store.On("InsertNotification", mock.Anything, mock.Anything).
		Run(func(args mock.Arguments) { channels = append(channels, args.Get(1).(*models.NotificationRecord).Channel) }).
		Return(nil)

	recs, err := l.RecordResults(context.Background(), "s1", "A", arrival, []models.DeliveryResult{
		{Channel: models.ChannelPush, Success: true},
		{Channel: models.ChannelEmail, Success: false},
		{Channel: models.ChannelConsole, Success: true},
	})
	require.NoError(t, err)
	require.Len(t, recs, 2)
	require.Equal(t, []string{models.ChannelPush, models.ChannelConsole}, channels)
}

func TestLedger_RecordResults_AttemptedSentinel(t *testing.T) {
	store := &notifmocks.MockStore{}
	l := newTestLedger(store)
	arrival := time.Date(2026, 3, 2, 8, 18, 0, 0, time.UTC)

	store.On("InsertNotification", mock.Anything, mock.MatchedBy(func(r *models.NotificationRecord) bool {
		return r.Channel == models.ChannelAttempted
	})).Return(nil).Once()

	recs, err := l.RecordResults(context.Background(), "s1", "A", arrival, []models.DeliveryResult{
		{Channel: models.ChannelPush, Success: false},
		{Channel: models.ChannelEmail, Success: false},
	})
	require.NoError(t, err)
	require.Len(t, recs, 1)
	store.AssertExpectations(t)

	// без запрошенных каналов ничего не пишем
	recs, err = l.RecordResults(context.Background(), "s1", "A", arrival, nil)
	require.NoError(t, err)
	require.Empty(t, recs)
	store.AssertNumberOfCalls(t, "InsertNotification", 1)
}

func TestLedger_RecordResults_InsertError(t *testing.T) {
	store := &notifmocks.MockStore{}
	l := newTestLedger(store)
	store.On("InsertNotification", mock.Anything, mock.Anything).Return(errors.New("db down")).Once()

	_, err := l.RecordResults(context.Background(), "s1", "A", time.Now(), []models.DeliveryResult{{Channel: "push", Success: true}})
	require.Error(t, err)
}
