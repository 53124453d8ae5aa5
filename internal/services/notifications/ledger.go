package notifications

import (
	"context"
	"time"

	"github.com/BearBump/busnoti/internal/models"
	"github.com/google/uuid"
	"github.com/pkg/errors"
)

type Store interface {
	// FindNotification ищет запись с predictedArrivalAt в [from, to]; nil, если нет.
	FindNotification(ctx context.Context, subscriptionID, plateNo string, from, to time.Time) (*models.NotificationRecord, error)
	InsertNotification(ctx context.Context, rec *models.NotificationRecord) error
}

// DefaultDedupWindow поглощает дрейф прогноза между тиками: та же машина с
// прогнозом в пределах окна считается тем же событием прибытия.
const DefaultDedupWindow = 10 * time.Minute

// Ledger: журнал отправленных уведомлений (только добавление).
type Ledger struct {
	store  Store
	window time.Duration
	now    func() time.Time
	newID  func() string
}

func NewLedger(store Store, window time.Duration) *Ledger {
	if window <= 0 {
		window = DefaultDedupWindow
	}
	return &Ledger{
		store:  store,
		window: window,
		now:    time.Now,
		newID:  func() string { return uuid.NewString() },
	}
}

func (l *Ledger) HasAlreadySent(ctx context.Context, subscriptionID, plateNo string, arrivalTime time.Time) (bool, error) {
	rec, err := l.store.FindNotification(ctx, subscriptionID, plateNo, arrivalTime.Add(-l.window), arrivalTime.Add(l.window))
	if err != nil {
		return false, errors.Wrap(err, "find notification")
	}
	return rec != nil, nil
}

func (l *Ledger) RecordNotification(ctx context.Context, subscriptionID, plateNo string, arrivalTime time.Time, channel string) (*models.NotificationRecord, error) {
	rec := &models.NotificationRecord{
		ID:                 l.newID(),
		SubscriptionID:     subscriptionID,
		PlateNo:            plateNo,
		PredictedArrivalAt: arrivalTime.UTC(),
		SentAt:             l.now().UTC(),
		Channel:            channel,
	}
	if err := l.store.InsertNotification(ctx, rec); err != nil {
		return nil, errors.Wrap(err, "insert notification")
	}
	return rec, nil
}

// RecordResults пишет по записи на каждый успешный канал, а если таких нет,
// одну запись "attempted", чтобы событие не повторялось на следующем тике.
func (l *Ledger) RecordResults(ctx context.Context, subscriptionID, plateNo string, arrivalTime time.Time, results []models.DeliveryResult) ([]*models.NotificationRecord, error) {
	if len(results) == 0 {
		return nil, nil
	}
	var out []*models.NotificationRecord
	for _, r := range results {
		if !r.Success {
			continue
		}
		rec, err := l.RecordNotification(ctx, subscriptionID, plateNo, arrivalTime, r.Channel)
		if err != nil {
			return out, err
		}
		out = append(out, rec)
	}
	if len(out) > 0 {
		return out, nil
	}
	rec, err := l.RecordNotification(ctx, subscriptionID, plateNo, arrivalTime, models.ChannelAttempted)
	if err != nil {
		return nil, err
	}
	return []*models.NotificationRecord{rec}, nil
}
