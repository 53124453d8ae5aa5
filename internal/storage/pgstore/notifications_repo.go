package pgstore

import (
	"context"
	"time"

	"github.com/BearBump/busnoti/internal/models"
	"github.com/jackc/pgx/v5"
	"github.com/pkg/errors"
)

func (s *Storage) FindNotification(ctx context.Context, subscriptionID, plateNo string, from, to time.Time) (*models.NotificationRecord, error) {
	var r models.NotificationRecord
	err := s.db.QueryRow(ctx, `
SELECT id, subscription_id, plate_no, predicted_arrival_at, sent_at, channel
FROM notifications
WHERE subscription_id = $1
  AND plate_no = $2
  AND predicted_arrival_at BETWEEN $3 AND $4
ORDER BY sent_at DESC
LIMIT 1
`, subscriptionID, plateNo, from.UTC(), to.UTC()).Scan(
		&r.ID, &r.SubscriptionID, &r.PlateNo, &r.PredictedArrivalAt, &r.SentAt, &r.Channel,
	)
	if errors.Is(err, pgx.ErrNoRows) {
		return nil, nil
	}
	if err != nil {
		return nil, errors.Wrap(err, "select notification")
	}
	return &r, nil
}

func (s *Storage) InsertNotification(ctx context.Context, rec *models.NotificationRecord) error {
	_, err := s.db.Exec(ctx, `
INSERT INTO notifications (id, subscription_id, plate_no, predicted_arrival_at, sent_at, channel)
VALUES ($1,$2,$3,$4,$5,$6)
`, rec.ID, rec.SubscriptionID, rec.PlateNo, rec.PredictedArrivalAt.UTC(), rec.SentAt.UTC(), rec.Channel)
	if err != nil {
		return errors.Wrap(err, "insert notification")
	}
	return nil
}
